package api

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"

    "curbside/internal/auth"
    "curbside/internal/model"
    "curbside/internal/store"
)

// AppleLoginHandler handles POST /v1/auth/apple
func (s *Server) AppleLoginHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.AppleLoginRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.IDToken == "" {
        writeProblem(w, http.StatusBadRequest, "Missing idToken", "", r.URL.Path)
        return
    }
    ident, err := s.Apple.Verify(req.IDToken, req.Nonce)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Apple sign-in failed", err.Error(), r.URL.Path)
        return
    }
    u, err := s.upsertProviderUser(r.Context(), "apple", ident)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "User lookup failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, model.AuthResponse{User: u, Tokens: s.Tokens.IssuePair(u.ID)})
}

// GoogleLoginHandler handles POST /v1/auth/google
func (s *Server) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.GoogleLoginRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.AccessToken == "" {
        writeProblem(w, http.StatusBadRequest, "Missing accessToken", "", r.URL.Path)
        return
    }
    ident, err := s.Google.Verify(r.Context(), req.AccessToken)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Google sign-in failed", err.Error(), r.URL.Path)
        return
    }
    u, err := s.upsertProviderUser(r.Context(), "google", ident)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "User lookup failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, model.AuthResponse{User: u, Tokens: s.Tokens.IssuePair(u.ID)})
}

// upsertProviderUser finds the account for a provider subject or creates it.
// A later sign-in may carry a name/email the first one lacked (Apple only
// sends these once), so blanks are filled in on match.
func (s *Server) upsertProviderUser(ctx context.Context, provider string, ident auth.Identity) (model.User, error) {
    u, err := s.Store.GetUserByProvider(ctx, provider, ident.Subject)
    if err == nil {
        changed := false
        if u.Email == "" && ident.Email != "" { u.Email = ident.Email; changed = true }
        if u.Name == "" && ident.Name != "" { u.Name = ident.Name; changed = true }
        if u.AvatarURL == "" && ident.AvatarURL != "" { u.AvatarURL = ident.AvatarURL; changed = true }
        if changed {
            return s.Store.UpdateUser(ctx, u)
        }
        return u, nil
    }
    if !errors.Is(err, store.ErrNotFound) {
        return model.User{}, err
    }
    // Link to an existing account with the same verified email.
    if ident.Email != "" {
        if eu, eerr := s.Store.GetUserByEmail(ctx, ident.Email); eerr == nil {
            if provider == "apple" {
                eu.AppleID = ident.Subject
            } else {
                eu.GoogleID = ident.Subject
            }
            return s.Store.UpdateUser(ctx, eu)
        }
    }
    nu := model.User{Email: ident.Email, Name: ident.Name, AvatarURL: ident.AvatarURL, Provider: provider}
    if provider == "apple" {
        nu.AppleID = ident.Subject
    } else {
        nu.GoogleID = ident.Subject
    }
    return s.Store.CreateUser(ctx, nu)
}

// RefreshHandler handles POST /v1/auth/refresh
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.RefreshRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    uid, err := s.Tokens.VerifyRefresh(req.RefreshToken)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Invalid refresh token", err.Error(), r.URL.Path)
        return
    }
    if _, err := s.Store.GetUser(r.Context(), uid); err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unknown user", "", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, s.Tokens.IssuePair(uid))
}

// LogoutHandler handles POST /v1/auth/logout. Tokens are stateless, so
// logout only drops the device push token if the client supplies one.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    var req model.UnregisterTokenRequest
    if r.Body != nil {
        _ = json.NewDecoder(r.Body).Decode(&req)
    }
    if req.Token != "" {
        _ = s.Store.DeletePushToken(r.Context(), u.ID, req.Token)
    }
    writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
