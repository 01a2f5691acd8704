package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "curbside/internal/metrics"
    "curbside/internal/model"
    "curbside/internal/store"
)

// StatusHandler handles GET /v1/parking/status?lat=&lng=[&at=]
// It evaluates the rules engine without persisting anything.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    if !s.allowStatus(u.ID) {
        writeProblem(w, http.StatusTooManyRequests, "Rate limited", "too many status checks", r.URL.Path)
        return
    }
    lat, lng, err := parseCoords(r)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid coordinates", err.Error(), r.URL.Path)
        return
    }
    at := time.Now()
    if v := r.URL.Query().Get("at"); v != "" {
        t, err := time.Parse(time.RFC3339, v)
        if err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid at timestamp", err.Error(), r.URL.Path)
            return
        }
        at = t
    }
    res := s.Engine.Check(lat, lng, at)
    metrics.ParkingChecks.WithLabelValues(string(res.Status), string(res.ParkingType)).Inc()
    writeJSON(w, http.StatusOK, res)
}

func parseCoords(r *http.Request) (float64, float64, error) {
    lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
    if err != nil {
        return 0, 0, fmt.Errorf("lat: %w", err)
    }
    lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
    if err != nil {
        return 0, 0, fmt.Errorf("lng: %w", err)
    }
    if err := validateCoordinates(model.Coordinates{Latitude: lat, Longitude: lng}); err != nil {
        return 0, 0, err
    }
    return lat, lng, nil
}

// CurrentSessionHandler handles GET /v1/parking/current
func (s *Server) CurrentSessionHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    sess, err := s.Store.GetActiveSession(r.Context(), u.ID)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "No active session", "", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Lookup failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, sess)
}

// SessionsHandler handles POST /v1/parking/sessions
func (s *Server) SessionsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    var req model.CreateSessionRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateCoordinates(req.Coordinates); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid coordinates", err.Error(), r.URL.Path)
        return
    }
    if err := validateDetectionMethod(req.DetectionMethod); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid detection method", err.Error(), r.URL.Path)
        return
    }
    if _, err := s.Store.GetActiveSession(r.Context(), u.ID); err == nil {
        writeProblem(w, http.StatusConflict, "Active session exists", "end the current session before starting a new one", r.URL.Path)
        return
    } else if !errors.Is(err, store.ErrNotFound) {
        writeProblem(w, http.StatusInternalServerError, "Lookup failed", err.Error(), r.URL.Path)
        return
    }
    now := time.Now()
    res := s.Engine.Check(req.Coordinates.Latitude, req.Coordinates.Longitude, now)
    metrics.ParkingChecks.WithLabelValues(string(res.Status), string(res.ParkingType)).Inc()
    method := req.DetectionMethod
    if method == "" { method = "manual" }
    sess := model.ParkingSession{
        UserID:          u.ID,
        Latitude:        req.Coordinates.Latitude,
        Longitude:       req.Coordinates.Longitude,
        Address:         res.Address,
        ZoneCode:        res.ZoneCode,
        Borough:         res.Borough,
        Status:          res.Status,
        StatusReason:    res.Reason,
        ParkingType:     res.ParkingType,
        Rules:           res.Rules,
        StartedAt:       now.UTC(),
        ExpiresAt:       res.ExpiresAt,
        PaymentStatus:   "unpaid",
        DetectionMethod: method,
    }
    created, err := s.Store.CreateSession(r.Context(), sess)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Create session failed", err.Error(), r.URL.Path)
        return
    }
    s.Scheduler.Schedule(r.Context(), u.ID, created)
    s.Broker.Publish(created.ID, SSEEvent{Type: "session.started", Data: map[string]any{
        "sessionId": created.ID, "status": created.Status, "ts": now.UTC().Format(time.RFC3339),
    }})
    writeJSON(w, http.StatusCreated, created)
}

// SessionByIDHandler handles
//
//	POST  /v1/parking/sessions/{id}/end
//	PATCH /v1/parking/sessions/{id}/location
//	POST  /v1/parking/sessions/{id}/payment
//	GET   /v1/parking/sessions/{id}/events/stream
func (s *Server) SessionByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/parking/sessions/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.streamSessionEvents(w, r, u, id)
        return
    }
    if len(parts) != 2 {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    sess, err := s.Store.GetSession(r.Context(), u.ID, id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Session not found", "", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Lookup failed", err.Error(), r.URL.Path)
        return
    }
    switch parts[1] {
    case "end":
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        s.endSession(w, r, sess)
    case "location":
        if r.Method != http.MethodPatch { w.WriteHeader(http.StatusMethodNotAllowed); return }
        s.relocateSession(w, r, sess)
    case "payment":
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        s.paySession(w, r, sess)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    }
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request, sess model.ParkingSession) {
    if !sess.Active() {
        writeProblem(w, http.StatusConflict, "Session already ended", "", r.URL.Path)
        return
    }
    now := time.Now().UTC()
    sess.EndedAt = &now
    upd, err := s.Store.UpdateSession(r.Context(), sess)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "End session failed", err.Error(), r.URL.Path)
        return
    }
    s.Scheduler.Cancel(r.Context(), sess.ID)
    s.Broker.Publish(sess.ID, SSEEvent{Type: "session.ended", Data: map[string]any{
        "sessionId": sess.ID, "ts": now.Format(time.RFC3339),
    }})
    writeJSON(w, http.StatusOK, upd)
}

// relocateSession re-runs the engine at the new coordinates and resets
// payment state: a paid meter stub does not travel with the car.
func (s *Server) relocateSession(w http.ResponseWriter, r *http.Request, sess model.ParkingSession) {
    if !sess.Active() {
        writeProblem(w, http.StatusConflict, "Session already ended", "", r.URL.Path)
        return
    }
    var req model.UpdateLocationRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateCoordinates(req.Coordinates); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid coordinates", err.Error(), r.URL.Path)
        return
    }
    now := time.Now()
    res := s.Engine.Check(req.Coordinates.Latitude, req.Coordinates.Longitude, now)
    metrics.ParkingChecks.WithLabelValues(string(res.Status), string(res.ParkingType)).Inc()
    sess.Latitude = req.Coordinates.Latitude
    sess.Longitude = req.Coordinates.Longitude
    sess.Address = res.Address
    sess.ZoneCode = res.ZoneCode
    sess.Borough = res.Borough
    sess.Status = res.Status
    sess.StatusReason = res.Reason
    sess.ParkingType = res.ParkingType
    sess.Rules = res.Rules
    sess.ExpiresAt = res.ExpiresAt
    sess.PaymentStatus = "unpaid"
    sess.PaymentMethod = ""
    sess.PaidDurationMin = 0
    sess.PaymentExpiresAt = nil
    upd, err := s.Store.UpdateSession(r.Context(), sess)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Update location failed", err.Error(), r.URL.Path)
        return
    }
    s.Scheduler.Reschedule(r.Context(), sess.UserID, upd)
    s.Broker.Publish(sess.ID, SSEEvent{Type: "status.updated", Data: map[string]any{
        "sessionId": sess.ID, "status": upd.Status, "reason": upd.StatusReason, "ts": now.UTC().Format(time.RFC3339),
    }})
    writeJSON(w, http.StatusOK, upd)
}

func (s *Server) paySession(w http.ResponseWriter, r *http.Request, sess model.ParkingSession) {
    if !sess.Active() {
        writeProblem(w, http.StatusConflict, "Session already ended", "", r.URL.Path)
        return
    }
    var req model.ConfirmPaymentRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validatePaymentRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid payment", err.Error(), r.URL.Path)
        return
    }
    now := time.Now().UTC()
    payUntil := now.Add(time.Duration(req.DurationMinutes) * time.Minute)
    sess.PaymentStatus = "paid"
    sess.PaymentMethod = req.Method
    sess.PaidDurationMin = req.DurationMinutes
    sess.PaymentExpiresAt = &payUntil
    sess.Status = model.StatusGreen
    sess.StatusReason = fmt.Sprintf("Paid parking until %s", payUntil.In(s.Cfg.Location()).Format("3:04 PM"))
    sess.ExpiresAt = &payUntil
    upd, err := s.Store.UpdateSession(r.Context(), sess)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Confirm payment failed", err.Error(), r.URL.Path)
        return
    }
    s.Scheduler.Reschedule(r.Context(), sess.UserID, upd)
    s.Broker.Publish(sess.ID, SSEEvent{Type: "payment.confirmed", Data: map[string]any{
        "sessionId": sess.ID, "paidUntil": payUntil.Format(time.RFC3339), "ts": now.Format(time.RFC3339),
    }})
    writeJSON(w, http.StatusOK, upd)
}

func (s *Server) streamSessionEvents(w http.ResponseWriter, r *http.Request, u model.User, id string) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if _, err := s.Store.GetSession(r.Context(), u.ID, id); err != nil {
        writeProblem(w, http.StatusNotFound, "Session not found", "", r.URL.Path)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"sessionId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"sessionId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// HistoryHandler handles GET /v1/parking/history?page=&pageSize=
func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    u, err := s.currentUser(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return
    }
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
    if page <= 0 { page = 1 }
    if pageSize <= 0 || pageSize > 100 { pageSize = 20 }
    items, total, err := s.Store.ListSessionHistory(r.Context(), u.ID, page, pageSize)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List history failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, model.PaginatedSessions{
        Items:    items,
        Total:    total,
        Page:     page,
        PageSize: pageSize,
        HasMore:  page*pageSize < total,
    })
}
