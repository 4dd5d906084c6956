package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector exported on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GateDecisions   *prometheus.CounterVec
	RateLimitChecks *prometheus.CounterVec
	SessionEvents   *prometheus.CounterVec
	AuditEvents     *prometheus.CounterVec
	AuditQueueDepth prometheus.Gauge

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Security gate decisions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RateLimitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_checks_total",
			Help: "Rate limiter checks by result (allowed, denied, error).",
		}, []string{"result"}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_events_total",
			Help: "Session lifecycle events by event and reason.",
		}, []string{"event", "reason"}),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Audit entries by result (queued, dropped, written, failed).",
		}, []string{"result"}),
		AuditQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Audit entries waiting to be written.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GateDecisions,
		m.RateLimitChecks,
		m.SessionEvents,
		m.AuditEvents,
		m.AuditQueueDepth,
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GateDecision counts one gate outcome for an operation
func (m *Metrics) GateDecision(operation, outcome string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(operation, outcome).Inc()
}

// RateLimitCheck counts one limiter result
func (m *Metrics) RateLimitCheck(result string) {
	if m == nil {
		return
	}
	m.RateLimitChecks.WithLabelValues(result).Inc()
}

// SessionEvent counts one session lifecycle event
func (m *Metrics) SessionEvent(event, reason string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event, reason).Inc()
}

// AuditEvent counts one audit pipeline result
func (m *Metrics) AuditEvent(result string) {
	if m == nil {
		return
	}
	m.AuditEvents.WithLabelValues(result).Inc()
}

// SetAuditQueueDepth records the current audit buffer length
func (m *Metrics) SetAuditQueueDepth(n int) {
	if m == nil {
		return
	}
	m.AuditQueueDepth.Set(float64(n))
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// InFlight adjusts the in-flight gauge by delta
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.httpInFlight.Add(delta)
}
