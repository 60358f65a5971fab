package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Case lifecycle metrics
	casesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cases_created_total",
			Help: "Total number of medical cases created",
		},
	)

	diagnosesSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diagnoses_submitted_total",
			Help: "Total number of doctor diagnoses submitted",
		},
	)

	// Sync coordinator metrics
	syncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_operations_total",
			Help: "Total number of sync coordinator operations",
		},
		[]string{"operation", "outcome"},
	)

	syncFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_fallbacks_total",
			Help: "Total number of operations that fell back to the local cache",
		},
		[]string{"operation"},
	)

	// Local cache metrics
	localCacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "local_cache_operations_total",
			Help: "Total number of local cache operations",
		},
		[]string{"operation", "outcome"},
	)

	// AI analysis metrics
	analysisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of AI analysis requests",
		},
		[]string{"kind", "status"},
	)

	analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Duration of AI analysis requests in seconds",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "status"},
	)
)

// init registers all metrics with the default registry
func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		casesCreatedTotal,
		diagnosesSubmittedTotal,
		syncOperationsTotal,
		syncFallbacksTotal,
		localCacheOperationsTotal,
		analysisRequestsTotal,
		analysisDuration,
		authAttemptsTotal,
	)
}

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCaseCreated records a case creation event
func RecordCaseCreated() {
	casesCreatedTotal.Inc()
}

// RecordDiagnosisSubmitted records a diagnosis submission event
func RecordDiagnosisSubmitted() {
	diagnosesSubmittedTotal.Inc()
}

// RecordSyncOperation records a sync coordinator operation outcome
func RecordSyncOperation(operation, outcome string) {
	syncOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSyncFallback records a fallback to the local cache
func RecordSyncFallback(operation string) {
	syncFallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordLocalCacheOperation records a local cache operation outcome
func RecordLocalCacheOperation(operation, outcome string) {
	localCacheOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAnalysisRequest records an AI analysis request
func RecordAnalysisRequest(kind, status string, duration time.Duration) {
	analysisRequestsTotal.WithLabelValues(kind, status).Inc()
	analysisDuration.Observe(duration.Seconds())
}

// RecordAuthAttempt records an authentication attempt
func RecordAuthAttempt(method, status string) {
	authAttemptsTotal.WithLabelValues(method, status).Inc()
}

// MetricsHandler returns the Prometheus metrics HTTP handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
