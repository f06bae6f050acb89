// Package metrics owns the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	AuditWriteFailures prometheus.Counter
	AuditSwept         prometheus.Counter
	AuthFailures       *prometheus.CounterVec
	Logins             *prometheus.CounterVec
	MailDeliveries     *prometheus.CounterVec
}

// New builds the collectors on a private registry together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
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
		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit entries that could not be persisted.",
		}),
		AuditSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_entries_swept_total",
			Help: "Audit entries removed by the retention sweep.",
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gate_rejections_total",
			Help: "Requests rejected by the authorization gate, by cause.",
		}, []string{"cause"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Login attempts by principal kind and outcome.",
		}, []string{"kind", "outcome"}),
		MailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_deliveries_total",
			Help: "Notification emails by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.AuditWriteFailures, m.AuditSwept, m.AuthFailures, m.Logins, m.MailDeliveries,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records RPS, latency and in-flight requests, labelled by the
// matched chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
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

// MailOutcome adapts MailDeliveries to the mailer queue's outcome hook.
func (m *Metrics) MailOutcome() LabelCounter {
	return LabelCounter{vec: m.MailDeliveries}
}

// LabelCounter increments a single-label counter vector.
type LabelCounter struct {
	vec *prometheus.CounterVec
}

func (c LabelCounter) Inc(label string) {
	c.vec.WithLabelValues(label).Inc()
}

// AuthCauses adapts AuthFailures to the gate's cause counter.
func (m *Metrics) AuthCauses() LabelCounter {
	return LabelCounter{vec: m.AuthFailures}
}

// LoginOutcome adapts Logins to the account service.
func (m *Metrics) LoginOutcome() PairCounter {
	return PairCounter{vec: m.Logins}
}

type PairCounter struct {
	vec *prometheus.CounterVec
}

func (c PairCounter) Inc(kind, outcome string) {
	c.vec.WithLabelValues(kind, outcome).Inc()
}
