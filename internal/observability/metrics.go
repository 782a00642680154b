package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postdesk_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postdesk_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// PostOperations counts post operations by outcome.
	PostOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postdesk_post_operations_total",
		Help: "Total number of post operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// RateLimitRejections counts requests refused by the write rate limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postdesk_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"resource", "backend"})
)

// DatabaseMetrics records query latency for one table.
type DatabaseMetrics struct {
	table string
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(table string) *DatabaseMetrics {
	return &DatabaseMetrics{table: table}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, m.table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, start)
	}
}

// RecordPostOperation increments the post operation counter.
func RecordPostOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	PostOperations.WithLabelValues(operation, outcome).Inc()
}
