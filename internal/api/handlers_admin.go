package api

import (
    "context"
    "net/http"
    "time"

    "curbside/internal/buildinfo"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    body := map[string]string{"status": "ok"}
    for k, v := range buildinfo.Info() {
        if v != "" { body[k] = v }
    }
    writeJSON(w, 200, body)
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

func (s *Server) isAdmin(r *http.Request) bool {
    if s.Cfg.AdminToken != "" {
        return r.Header.Get("X-Admin-Token") == s.Cfg.AdminToken
    }
    return s.Cfg.IsDevelopment()
}

// AdminCatalogHandler handles GET /v1/admin/catalog
func (s *Server) AdminCatalogHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if !s.isAdmin(r) { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    writeJSON(w, 200, s.Catalog.Summary())
}

// AdminCatalogReloadHandler handles POST /v1/admin/catalog/reload
func (s *Server) AdminCatalogReloadHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if !s.isAdmin(r) { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    s.Catalog.Reload()
    writeJSON(w, 200, s.Catalog.Summary())
}
