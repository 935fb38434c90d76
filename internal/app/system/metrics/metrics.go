// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
)

var (
	// RequestTotal counts HTTP requests by method, route pattern and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collabhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// OperationsTotal counts membership and task operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_operations_total",
			Help: "Total number of membership and task operations",
		},
		[]string{"operation", "outcome"},
	)
	// VersionConflicts counts optimistic-concurrency retries.
	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_version_conflicts_total",
			Help: "Project writes that lost a version race and were re-validated",
		},
		[]string{"operation"},
	)
	// JobRuns counts background job executions.
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collabhub_job_runs_total",
			Help: "Background job executions",
		},
		[]string{"job", "outcome"},
	)
	// Documents reports document counts per collection.
	Documents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collabhub_documents",
			Help: "Documents per collection, refreshed by the stats job",
		},
		[]string{"collection"},
	)
)

// RecordOperation increments the operation counter.
func RecordOperation(operation, outcome string) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordConflict increments the version conflict counter for operation.
func RecordConflict(operation string) {
	VersionConflicts.WithLabelValues(operation).Inc()
}

// RecordJob increments the job counter; err selects the outcome.
func RecordJob(job string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailure
	}
	JobRuns.WithLabelValues(job, outcome).Inc()
}

// SetDocuments sets the document gauge for collection.
func SetDocuments(collection string, n int64) {
	Documents.WithLabelValues(collection).Set(float64(n))
}

// Middleware records request count and latency. Routes are labeled by their
// chi pattern so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
