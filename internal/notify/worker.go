package notify

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "curbside/internal/metrics"
    "curbside/internal/store"
)

// Worker drains due reminders and posts them to the push gateway.
type Worker struct {
    Store       store.Store
    HTTP        *http.Client
    Stop        chan struct{}
    GatewayURL  string
    MaxAttempts int
    // Publish, when set, announces a delivered reminder on the session's
    // event stream.
    Publish func(sessionID string, data map[string]any)
}

func NewWorker(s store.Store, gatewayURL string, maxAttempts int) *Worker {
    if maxAttempts <= 0 { maxAttempts = 5 }
    return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), GatewayURL: gatewayURL, MaxAttempts: maxAttempts}
}

func (w *Worker) Start() {
    go func() {
        ticker := time.NewTicker(15 * time.Second)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

type pushMessage struct {
    To    string `json:"to"`
    Title string `json:"title"`
    Body  string `json:"body"`
    Sound string `json:"sound"`
}

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueReminders(ctx, 50)
    if err != nil || len(items) == 0 { return }
    for _, it := range items {
        success := false
        next := time.Now().Add(nextBackoff(it.Attempts))
        payload, _ := json.Marshal(pushMessage{To: it.PushToken, Title: it.Title, Body: it.Body, Sound: "default"})
        req, _ := http.NewRequestWithContext(ctx, http.MethodPost, w.GatewayURL, bytes.NewReader(payload))
        req.Header.Set("Content-Type", "application/json")
        start := time.Now()
        resp, err := w.HTTP.Do(req)
        latency := float64(time.Since(start).Milliseconds())
        if err == nil && resp != nil {
            if resp.Body != nil { _ = resp.Body.Close() }
            if resp.StatusCode >= 200 && resp.StatusCode < 300 { success = true }
        }
        lastErr := ""
        if err != nil { lastErr = err.Error() } else if !success && resp != nil { lastErr = fmt.Sprintf("gateway status %d", resp.StatusCode) }
        outcome := "ok"
        if !success { outcome = "error" }
        metrics.PushDeliveries.WithLabelValues(it.Platform, outcome).Inc()
        metrics.PushLatency.WithLabelValues(it.Platform, outcome).Observe(latency)
        if success && w.Publish != nil {
            w.Publish(it.SessionID, map[string]any{"sessionId": it.SessionID, "title": it.Title, "body": it.Body, "ts": time.Now().UTC().Format(time.RFC3339)})
        }
        if !success && it.Attempts+1 >= w.MaxAttempts {
            _ = w.Store.FailReminder(ctx, it.ID, lastErr)
            continue
        }
        _ = w.Store.MarkReminder(ctx, it.ID, success, &next, lastErr)
    }
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 10 { attempts = 10 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
