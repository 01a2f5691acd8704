package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // ParkingChecks counts status evaluations by resulting status and type
    ParkingChecks = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "parking_checks_total", Help: "Parking status evaluations by status and type."},
        []string{"status", "type"},
    )
    // PushDeliveries counts reminder push outcomes by platform and status
    PushDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "push_deliveries_total", Help: "Push reminder deliveries by platform and status."},
        []string{"platform", "status"},
    )
    // PushLatency tracks push gateway latencies in milliseconds
    PushLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "push_delivery_latency_ms", Help: "Push delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"platform", "status"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(ParkingChecks)
        Registry.MustRegister(PushDeliveries)
        Registry.MustRegister(PushLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
