package api

import (
    "encoding/json"
    "errors"
    "net/http"
    "sort"

    "curbside/internal/model"
    "curbside/internal/store"
)

// PushTokenHandler handles POST/DELETE /v1/notifications/token
func (s *Server) PushTokenHandler(w http.ResponseWriter, r *http.Request) {
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    switch r.Method {
    case http.MethodPost:
        var req model.RegisterTokenRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.Token == "" {
            writeProblem(w, http.StatusBadRequest, "Missing token", "", r.URL.Path)
            return
        }
        if req.Platform != "ios" && req.Platform != "android" {
            writeProblem(w, http.StatusBadRequest, "Invalid platform", "must be ios or android", r.URL.Path)
            return
        }
        t, err := s.Store.UpsertPushToken(r.Context(), model.PushToken{UserID: u.ID, Token: req.Token, Platform: req.Platform})
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Register token failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, t)
    case http.MethodDelete:
        var req model.UnregisterTokenRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := s.Store.DeletePushToken(r.Context(), u.ID, req.Token); err != nil {
            if errors.Is(err, store.ErrNotFound) {
                writeProblem(w, http.StatusNotFound, "Token not found", "", r.URL.Path)
                return
            }
            writeProblem(w, http.StatusInternalServerError, "Unregister token failed", err.Error(), r.URL.Path)
            return
        }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// PreferencesHandler handles GET/PATCH /v1/notifications/preferences
func (s *Server) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    switch r.Method {
    case http.MethodGet:
        prefs, err := s.Store.GetPreferences(r.Context(), u.ID)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Load preferences failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, prefs)
    case http.MethodPatch:
        var req struct {
            Enabled       *bool  `json:"enabled,omitempty"`
            ReminderTimes *[]int `json:"reminderTimes,omitempty"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        prefs, err := s.Store.GetPreferences(r.Context(), u.ID)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Load preferences failed", err.Error(), r.URL.Path)
            return
        }
        if req.Enabled != nil { prefs.Enabled = *req.Enabled }
        if req.ReminderTimes != nil {
            times := *req.ReminderTimes
            for _, m := range times {
                if m <= 0 || m > 24*60 {
                    writeProblem(w, http.StatusBadRequest, "Invalid reminder time", "lead times must be 1..1440 minutes", r.URL.Path)
                    return
                }
            }
            // largest lead first, matching the default ordering
            sort.Sort(sort.Reverse(sort.IntSlice(times)))
            prefs.ReminderTimes = times
        }
        if err := s.Store.SavePreferences(r.Context(), u.ID, prefs); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Save preferences failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, prefs)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}
