// Package api implements HTTP handlers and helpers for the Curbside service.
package api

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "curbside/internal/model"
    "curbside/internal/store"
)

// currentUser resolves the authenticated user from a Bearer access token.
// In development a missing token falls back to a shared dev user so the
// mobile client can be pointed at a local server without sign-in.
func (s *Server) currentUser(r *http.Request) (model.User, error) {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        uid, err := s.Tokens.VerifyAccess(tok)
        if err != nil {
            return model.User{}, err
        }
        return s.Store.GetUser(r.Context(), uid)
    }
    if s.Cfg.IsDevelopment() {
        return s.devUser(r.Context())
    }
    return model.User{}, errUnauthorized
}

var errUnauthorized = &authError{"missing or invalid bearer token"}

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

func (s *Server) devUser(ctx context.Context) (model.User, error) {
    u, err := s.Store.GetUserByProvider(ctx, "google", "dev-user")
    if err == nil {
        return u, nil
    }
    if !errors.Is(err, store.ErrNotFound) {
        return model.User{}, err
    }
    return s.Store.CreateUser(ctx, model.User{Email: "dev@localhost", Name: "Dev User", GoogleID: "dev-user", Provider: "dev"})
}
