// Package observability exports Prometheus metrics for the BINN document
// server.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "binn"

// Byte counter directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics holds the server's collectors, registered on a private registry so
// that several servers in one process do not collide.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	activeConns prometheus.Gauge
}

// NewMetrics returns Metrics with every collector registered, plus the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests by opcode.",
		}, []string{"opcode"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of error responses by code.",
		}, []string{"code"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Frame payload bytes received (in) and sent (out).",
		}, []string{"direction"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request handling latency by opcode.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"opcode"}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Current number of open client connections.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.errors, m.bytes, m.latency, m.activeConns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one request for opcode and records its latency.
func (m *Metrics) ObserveRequest(opcode string, d time.Duration) {
	m.requests.WithLabelValues(opcode).Inc()
	m.latency.WithLabelValues(opcode).Observe(d.Seconds())
}

func (m *Metrics) IncError(code string) { m.errors.WithLabelValues(code).Inc() }

// AddBytes adds n payload bytes in the given direction.
func (m *Metrics) AddBytes(direction string, n int) {
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) ConnOpened() { m.activeConns.Inc() }
func (m *Metrics) ConnClosed() { m.activeConns.Dec() }

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
