package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"curbside/internal/metrics"
	"curbside/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type liveQuery struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// LiveStatusHandler handles GET /v1/parking/live. The client streams
// {lat,lng} frames as it moves and gets a full status result back for
// each one, so the map can repaint without HTTP round-trips.
func (s *Server) LiveStatusHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// keepalive
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var q liveQuery
		if err := conn.ReadJSON(&q); err != nil {
			return
		}
		if err := validateCoordinates(model.Coordinates{Latitude: q.Latitude, Longitude: q.Longitude}); err != nil {
			_ = conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		if !s.allowStatus(u.ID) {
			_ = conn.WriteJSON(map[string]string{"error": "rate limited"})
			continue
		}
		res := s.Engine.Check(q.Latitude, q.Longitude, time.Now())
		metrics.ParkingChecks.WithLabelValues(string(res.Status), string(res.ParkingType)).Inc()
		if err := conn.WriteJSON(res); err != nil {
			return
		}
	}
}
