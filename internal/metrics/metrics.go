// Package metrics exposes the daemon's Prometheus instrumentation. Counters
// are registered on the default registry and served by promhttp.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquaponics_readings_created_total",
		Help: "Readings persisted, labelled by the backend that stored them.",
	}, []string{"backend"})

	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquaponics_store_fallback_total",
		Help: "Durable-store operations that fell through to the local buffer.",
	}, []string{"op"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquaponics_http_requests_total",
		Help: "HTTP requests served, labelled by method and status code.",
	}, []string{"method", "status"})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aquaponics_stream_clients",
		Help: "Currently connected WebSocket stream subscribers.",
	})
)

// Backend label values for IncReadingCreated.
const (
	BackendDurable = "durable"
	BackendBuffer  = "buffer"
)

// IncReadingCreated records a successfully stored reading.
func IncReadingCreated(backend string) {
	readingsCreated.WithLabelValues(backend).Inc()
}

// IncFallback records a durable-store operation that degraded to the buffer.
func IncFallback(op string) {
	fallbacks.WithLabelValues(op).Inc()
}

// IncHTTPRequest records one served request.
func IncHTTPRequest(method string, status int) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// StreamClientConnected adjusts the subscriber gauge.
func StreamClientConnected(delta int) {
	streamClients.Add(float64(delta))
}
