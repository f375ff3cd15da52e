package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route template and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diary_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// ExtractionsTotal counts insight extractions by outcome.
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_extractions_total",
			Help: "Insight extractions by outcome",
		},
		[]string{"outcome"},
	)

	// OracleRequestDuration measures oracle round trips.
	OracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diary_oracle_request_duration_seconds",
			Help:    "Oracle request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"operation"},
	)

	// OracleCircuitState is the oracle breaker state (0 closed, 1 half-open, 2 open).
	OracleCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diary_oracle_circuit_state",
			Help: "Oracle circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
	)

	// TaxonomyRebuildsTotal counts full taxonomy rebuilds by result.
	TaxonomyRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_taxonomy_rebuilds_total",
			Help: "Full taxonomy rebuilds from the entry store",
		},
		[]string{"result"},
	)

	// TaxonomySkippedInsightsTotal counts malformed stored insights skipped during rebuilds.
	TaxonomySkippedInsightsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diary_taxonomy_skipped_insights_total",
			Help: "Malformed stored insights skipped during taxonomy rebuilds",
		},
	)

	// QueriesTotal counts metric queries by result and cache status.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_queries_total",
			Help: "Metric queries by result",
		},
		[]string{"result", "cache"},
	)

	// JobsProcessedTotal counts queue jobs by type and result.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_jobs_processed_total",
			Help: "Queue jobs processed by type and result",
		},
		[]string{"type", "result"},
	)
)

// Handler serves the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware records request counts and durations by route template
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
