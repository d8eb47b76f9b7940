// Package metrics exposes the Prometheus collectors of repairdesk.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for repairdesk.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AuditWrites      *prometheus.CounterVec
	ResolverOutcomes *prometheus.CounterVec
	LoginAttempts    *prometheus.CounterVec
	RateLimitErrors  prometheus.Counter
	Mutations        *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		AuditWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repairdesk_audit_writes_total",
				Help: "Audit write attempts by action and result",
			},
			[]string{"action", "result"},
		),
		ResolverOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repairdesk_admin_resolutions_total",
				Help: "Admin identity resolutions by outcome",
			},
			[]string{"outcome"},
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repairdesk_login_attempts_total",
				Help: "Sign-in attempts by outcome",
			},
			[]string{"outcome"},
		),
		RateLimitErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "repairdesk_ratelimit_backend_errors_total",
				Help: "Rate limiter backend failures (the attempt was allowed)",
			},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repairdesk_catalog_mutations_total",
				Help: "Privileged catalog mutations by table and action",
			},
			[]string{"table", "action"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repairdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Audit write results.
const (
	AuditOK         = "ok"
	AuditFailed     = "failed"
	AuditRejected   = "rejected"
	AuditUnresolved = "unresolved"
)

// Resolver outcomes.
const (
	ResolveOK        = "resolved"
	ResolveNoSession = "no_session"
	ResolveNotAdmin  = "not_admin"
	ResolveError     = "error"
)

func (m *Metrics) RecordAudit(action, result string) {
	if m == nil {
		return
	}
	m.AuditWrites.WithLabelValues(action, result).Inc()
}

func (m *Metrics) RecordResolve(outcome string) {
	if m == nil {
		return
	}
	m.ResolverOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRateLimitError() {
	if m == nil {
		return
	}
	m.RateLimitErrors.Inc()
}

func (m *Metrics) RecordMutation(table, action string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(table, action).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
