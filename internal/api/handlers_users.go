package api

import (
    "encoding/json"
    "errors"
    "net/http"
    "strings"

    "curbside/internal/model"
    "curbside/internal/store"
)

// MeHandler handles GET/PATCH/DELETE /v1/users/me
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    switch r.Method {
    case http.MethodGet:
        writeJSON(w, http.StatusOK, u)
    case http.MethodPatch:
        var req model.UpdateUserRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.Name != nil { u.Name = strings.TrimSpace(*req.Name) }
        upd, err := s.Store.UpdateUser(r.Context(), u)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Update failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, upd)
    case http.MethodDelete:
        if err := s.Store.DeleteUser(r.Context(), u.ID); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Delete failed", err.Error(), r.URL.Path)
            return
        }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SavedLocationsHandler handles GET/POST /v1/users/locations
func (s *Server) SavedLocationsHandler(w http.ResponseWriter, r *http.Request) {
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    switch r.Method {
    case http.MethodGet:
        items, err := s.Store.ListSavedLocations(r.Context(), u.ID)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List locations failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
    case http.MethodPost:
        var req model.SavedLocationRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        req.Name = strings.TrimSpace(req.Name)
        if req.Name == "" {
            writeProblem(w, http.StatusBadRequest, "Missing name", "", r.URL.Path)
            return
        }
        if err := validateCoordinates(req.Coordinates); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid coordinates", err.Error(), r.URL.Path)
            return
        }
        existing, err := s.Store.ListSavedLocations(r.Context(), u.ID)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List locations failed", err.Error(), r.URL.Path)
            return
        }
        for _, l := range existing {
            if strings.EqualFold(l.Name, req.Name) {
                writeProblem(w, http.StatusConflict, "Duplicate name", "a location with that name already exists", r.URL.Path)
                return
            }
        }
        loc, err := s.Store.CreateSavedLocation(r.Context(), model.SavedLocation{
            UserID:    u.ID,
            Name:      req.Name,
            Latitude:  req.Coordinates.Latitude,
            Longitude: req.Coordinates.Longitude,
            Address:   req.Address,
        })
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create location failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, loc)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SavedLocationByIDHandler handles DELETE /v1/users/locations/{id}
func (s *Server) SavedLocationByIDHandler(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/v1/users/locations/")
    if id == "" || strings.Contains(id, "/") {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    if r.Method != http.MethodDelete {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    if err := s.Store.DeleteSavedLocation(r.Context(), u.ID, id); err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Location not found", "", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Delete location failed", err.Error(), r.URL.Path)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}
