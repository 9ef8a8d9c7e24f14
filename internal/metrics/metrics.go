// Package metrics exposes Prometheus collectors for the evaluation pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semaforo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semaforo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semaforo_evaluations_total",
			Help: "Total number of traffic light evaluations by aggregated color",
		},
		[]string{"color", "action"},
	)

	evaluationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "semaforo_evaluation_duration_seconds",
			Help:    "End-to-end evaluation latency in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	ruleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semaforo_rule_failures_total",
			Help: "Total number of recovered rule evaluation panics",
		},
		[]string{"rule_id"},
	)

	degradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semaforo_degraded_evaluations_total",
			Help: "Total number of fail-open degraded evaluations",
		},
	)

	glosaFlagsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semaforo_glosa_flags_total",
			Help: "Total number of evaluations with aggregate glosa risk",
		},
	)

	auditDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semaforo_audit_drops_total",
			Help: "Total number of audit captures dropped on publish failure",
		},
	)
)

// RecordEvaluation records one completed evaluation.
func RecordEvaluation(color, action string, latency time.Duration) {
	evaluationsTotal.WithLabelValues(color, action).Inc()
	evaluationLatency.Observe(latency.Seconds())
}

// RecordRuleFailure records a recovered rule panic.
func RecordRuleFailure(ruleID string) {
	ruleFailuresTotal.WithLabelValues(ruleID).Inc()
}

// RecordDegraded records a fail-open degraded evaluation.
func RecordDegraded() {
	degradedTotal.Inc()
}

// RecordGlosaFlag records an evaluation carrying aggregate glosa risk.
func RecordGlosaFlag() {
	glosaFlagsTotal.Inc()
}

// RecordAuditDrop records a dropped audit capture.
func RecordAuditDrop() {
	auditDropsTotal.Inc()
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for the HTTP middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and durations per method/path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
