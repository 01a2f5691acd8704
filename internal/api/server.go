package api

import (
    "os"
    "strings"
    "sync"

    "golang.org/x/time/rate"

    "curbside/internal/auth"
    "curbside/internal/catalog"
    "curbside/internal/config"
    "curbside/internal/notify"
    "curbside/internal/rules"
    "curbside/internal/store"
)

type Server struct {
    Cfg       *config.Config
    Store     store.Store
    Catalog   *catalog.Catalog
    Engine    *rules.Engine
    Tokens    *auth.TokenService
    Apple     *auth.AppleVerifier
    Google    *auth.GoogleVerifier
    Scheduler *notify.Scheduler
    Broker    EventBroker

    limMu    sync.Mutex
    limiters map[string]*rate.Limiter
}

// allowStatus rate-limits status evaluations per principal.
func (s *Server) allowStatus(key string) bool {
    s.limMu.Lock()
    lim := s.limiters[key]
    if lim == nil {
        lim = rate.NewLimiter(rate.Limit(s.Cfg.RateRPS), s.Cfg.RateBurst)
        s.limiters[key] = lim
    }
    s.limMu.Unlock()
    return lim.Allow()
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer(cfg *config.Config) (*Server, error) {
    var s store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker
    if cfg.RedisURL != "" {
        if rb, err := NewRedisBroker(cfg.RedisURL); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    cat := catalog.Load(cfg.DataDir)
    engine := rules.NewEngine(cat, cfg.Location(), cfg.SoonThresholdMin, cfg.WarnThresholdMin)
    return &Server{
        Cfg:           cfg,
        Store:         s,
        Catalog:       cat,
        Engine:        engine,
        Tokens:        auth.NewTokenService(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
        Apple:         auth.NewAppleVerifier(cfg.AppleBundleID),
        Google:        auth.NewGoogleVerifier(),
        Scheduler:     notify.NewScheduler(s),
        Broker:        broker,
        limiters:      map[string]*rate.Limiter{},
    }, nil
}

// NewReminderWorker creates a background worker for push reminders.
func (s *Server) NewReminderWorker() *notify.Worker {
    w := notify.NewWorker(s.Store, s.Cfg.PushGatewayURL, s.Cfg.PushMaxAttempts)
    w.Publish = func(sessionID string, data map[string]any) {
        s.Broker.Publish(sessionID, SSEEvent{Type: "reminder.sent", Data: data})
    }
    return w
}
