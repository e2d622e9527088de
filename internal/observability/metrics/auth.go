package metrics

// Package metrics exposes Prometheus instrumentation for the auth pipeline.

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/sentrypost/authcore/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// AuthMetrics groups every collector authcore exports. A nil *AuthMetrics is a
// valid no-op, so components accept it as optional.
type AuthMetrics struct {
	registry *prometheus.Registry

	authAttempts   *prometheus.CounterVec
	authDuration   *prometheus.HistogramVec
	authzDenials   *prometheus.CounterVec
	sessionOps     *prometheus.CounterVec
	indexPruned    prometheus.Counter
	auditWritten   prometheus.Counter
	auditDropped   prometheus.Counter
	auditFailures  *prometheus.CounterVec
	httpInFlight   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDurationsS *prometheus.HistogramVec
}

// New creates the collectors on a private registry, along with Go runtime and process collectors.
func New() *AuthMetrics {
	m := &AuthMetrics{
		registry: prometheus.NewRegistry(),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "authentication_attempts_total",
			Help:      "Authentication attempts by token kind, method and outcome.",
		}, []string{"kind", "method", "result", "code"}),
		authDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authcore",
			Name:      "authentication_duration_seconds",
			Help:      "Latency of the authentication pipeline.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		authzDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "authorization_denials_total",
			Help:      "Authorization denials by error code.",
		}, []string{"code"}),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "session_operations_total",
			Help:      "Session manager operations by outcome.",
		}, []string{"op", "result"}),
		indexPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "session_index_entries_pruned_total",
			Help:      "Expired session hashes removed from per-user indexes.",
		}),
		auditWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "audit_entries_written_total",
			Help:      "Audit entries delivered to the sink.",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "audit_entries_dropped_total",
			Help:      "Audit entries dropped because the queue was full.",
		}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "audit_sink_failures_total",
			Help:      "Audit sink write failures by error class.",
		}, []string{"error_class"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "authcore",
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDurationsS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authcore",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.authAttempts, m.authDuration, m.authzDenials, m.sessionOps, m.indexPruned,
		m.auditWritten, m.auditDropped, m.auditFailures,
		m.httpInFlight, m.httpRequests, m.httpDurationsS,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (for tests and custom exposition).
func (m *AuthMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *AuthMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AuthAttempt is one pass through the authentication pipeline.
type AuthAttempt struct {
	Kind     string
	Method   string
	Code     string // empty on success
	Duration time.Duration
}

// ObserveAuthentication records an authentication attempt.
func (m *AuthMetrics) ObserveAuthentication(a AuthAttempt) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if a.Code != "" {
		result = ResultFailure
	}
	m.authAttempts.WithLabelValues(a.Kind, a.Method, result, a.Code).Inc()
	if a.Duration > 0 {
		m.authDuration.WithLabelValues(a.Kind).Observe(a.Duration.Seconds())
	}
}

// AuthorizationDenied counts a 403/500 authorization outcome.
func (m *AuthMetrics) AuthorizationDenied(code string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(code).Inc()
}

// SessionOp counts a session manager operation.
func (m *AuthMetrics) SessionOp(op, result string) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(op, result).Inc()
}

// SessionIndexPruned counts index entries removed by the session reaper.
func (m *AuthMetrics) SessionIndexPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.indexPruned.Add(float64(n))
}

// AuditWritten counts a delivered audit entry.
func (m *AuthMetrics) AuditWritten() {
	if m == nil {
		return
	}
	m.auditWritten.Inc()
}

// AuditDropped counts an audit entry discarded on a full queue.
func (m *AuthMetrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// AuditFailed counts a sink failure, labelled by the innermost error type.
func (m *AuthMetrics) AuditFailed(err error) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(obserrors.Classify(err)).Inc()
}

// Instrument wraps an HTTP handler with in-flight, count and latency collectors.
// route should be the registered pattern, not the raw path, to bound cardinality.
func (m *AuthMetrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		m.httpRequests.WithLabelValues(r.Method, route, status).Inc()
		m.httpDurationsS.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
