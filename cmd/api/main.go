package main

import (
    "bufio"
    "errors"
    "log"
    "net"
    "net/http"
    "strconv"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "curbside/internal/api"
    "curbside/internal/buildinfo"
    "curbside/internal/config"
    "curbside/internal/metrics"
)

func main() {
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("failed to load config: %v", err)
    }
    srvDeps, err := api.NewServer(cfg)
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Auth
    mux.HandleFunc("/v1/auth/apple", srvDeps.AppleLoginHandler)
    mux.HandleFunc("/v1/auth/google", srvDeps.GoogleLoginHandler)
    mux.HandleFunc("/v1/auth/refresh", srvDeps.RefreshHandler)
    mux.HandleFunc("/v1/auth/logout", srvDeps.LogoutHandler)

    // Users
    mux.HandleFunc("/v1/users/me", srvDeps.MeHandler)
    mux.HandleFunc("/v1/users/locations", srvDeps.SavedLocationsHandler)
    mux.HandleFunc("/v1/users/locations/", srvDeps.SavedLocationByIDHandler)

    // Parking
    mux.HandleFunc("/v1/parking/status", srvDeps.StatusHandler)
    mux.HandleFunc("/v1/parking/current", srvDeps.CurrentSessionHandler)
    mux.HandleFunc("/v1/parking/sessions", srvDeps.SessionsHandler)
    mux.HandleFunc("/v1/parking/sessions/", srvDeps.SessionByIDHandler) // includes /end, /location, /payment, /events/stream
    mux.HandleFunc("/v1/parking/history", srvDeps.HistoryHandler)
    mux.HandleFunc("/v1/parking/live", srvDeps.LiveStatusHandler)

    // Notifications
    mux.HandleFunc("/v1/notifications/token", srvDeps.PushTokenHandler)
    mux.HandleFunc("/v1/notifications/preferences", srvDeps.PreferencesHandler)

    // Admin
    mux.HandleFunc("/v1/admin/catalog", srvDeps.AdminCatalogHandler)
    mux.HandleFunc("/v1/admin/catalog/reload", srvDeps.AdminCatalogReloadHandler)

    // Health + metrics
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":" + cfg.Port

    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("curbside %s listening on %s (env=%s)", buildinfo.Version, addr, cfg.Env)
    // Start reminder worker
    worker := srvDeps.NewReminderWorker()
    worker.Start()
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        dur := time.Since(start)
        code := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, code).Observe(dur.Seconds())
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the middleware wrapper.
func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// Hijack keeps WebSocket upgrades working through the middleware wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    if h, ok := r.ResponseWriter.(http.Hijacker); ok { return h.Hijack() }
    return nil, nil, errors.New("hijack not supported")
}
