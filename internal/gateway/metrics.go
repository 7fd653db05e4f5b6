package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks gateway counters on a dedicated Prometheus registry so
// multiple gateway instances (tests) never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	exchanges *prometheus.CounterVec
	events    *prometheus.CounterVec
}

// NewMetrics creates the gateway metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request duration by path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_chat_exchanges_total",
			Help: "Chat exchanges by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_stream_events_total",
			Help: "Streamed events by type.",
		}, []string{"type"}),
	}
	registry.MustRegister(m.requests, m.durations, m.exchanges, m.events)
	return m
}

// RecordRequest records one completed HTTP request.
func (m *Metrics) RecordRequest(method, path string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(path).Observe(d.Seconds())
}

// RecordExchange records a finished chat exchange.
// Outcome is one of "complete", "stalled", "error", or "rejected".
func (m *Metrics) RecordExchange(outcome string) {
	m.exchanges.WithLabelValues(outcome).Inc()
}

// RecordEvent records one streamed event.
func (m *Metrics) RecordEvent(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
