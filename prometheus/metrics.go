package prometheus

import (
	"production-service/pkg/config"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Pipeline metrics
	OperationEventsCounter prometheus.CounterVec
	CascadeDepthHistogram  prometheus.Histogram

	// Lock metrics
	LockOperationsCounter prometheus.CounterVec

	// Audit metrics
	AuditFailuresCounter prometheus.Counter
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Database operation metrics
	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Pipeline operation events (start, complete, defect record/delete)
	OperationEventsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operation_events_total",
			Help: "Total number of pipeline operation events",
		},
		[]string{"event", "result"},
	)

	// Downstream steps touched per cascade
	CascadeDepthHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_cascade_depth",
			Help:    "Number of downstream operations updated per cascade",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 12},
		},
	)

	// Lock transitions
	LockOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_lock_operations_total",
			Help: "Total number of lock operations",
		},
		[]string{"operation", "result"},
	)

	// Swallowed audit-write failures
	AuditFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_audit_failures_total",
			Help: "Total number of swallowed audit write failures",
		},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordOperationEvent increments the counter for pipeline operation events
func RecordOperationEvent(event, result string) {
	OperationEventsCounter.WithLabelValues(event, result).Inc()
}

// RecordLockOperation increments the counter for lock transitions
func RecordLockOperation(operation, result string) {
	LockOperationsCounter.WithLabelValues(operation, result).Inc()
}
