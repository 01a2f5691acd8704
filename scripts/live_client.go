// Package main runs a demo WebSocket client for the live status feed.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// Runs against a development-mode server (no bearer token needed).
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/parking/live"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// Walk a short path up a Manhattan block and print each verdict.
	points := []struct{ Lat, Lng float64 }{
		{40.7580, -73.9855},
		{40.7589, -73.9851},
		{40.7598, -73.9847},
	}
	for _, p := range points {
		if err := c.WriteJSON(map[string]float64{"lat": p.Lat, "lng": p.Lng}); err != nil {
			log.Fatal(err)
		}
		var res map[string]any
		if err := c.ReadJSON(&res); err != nil {
			log.Fatal(err)
		}
		b, _ := json.Marshal(res)
		fmt.Printf("(%.4f, %.4f) -> %s\n", p.Lat, p.Lng, string(b))
		time.Sleep(200 * time.Millisecond)
	}
}
