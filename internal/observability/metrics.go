// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Verification metrics
	VerificationsTotal  *prometheus.CounterVec
	VerificationLatency prometheus.Histogram
	CacheHits           prometheus.Counter
	StaleFallbacks      prometheus.Counter
	CoalescedRequests   prometheus.Counter
	VerdictFailures     prometheus.Counter
	PersistenceFailures prometheus.Counter

	// Source adapter metrics
	SourceRequests *prometheus.CounterVec
	SourceFailures *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec

	// Scheduler metrics
	SchedulerPhaseRuns     *prometheus.CounterVec
	SchedulerPhaseDuration *prometheus.HistogramVec
	IdentitiesDiscovered   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulResync prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "agent_trust_lab"
	}

	return &Metrics{
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "runs_total",
			Help:      "Total number of verifications by outcome",
		}, []string{"outcome"}),
		VerificationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "latency_seconds",
			Help:      "End-to-end verification latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "cache_hits_total",
			Help:      "Total number of verifications served from fresh records",
		}),
		StaleFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "stale_fallbacks_total",
			Help:      "Total number of stale records served after all sources failed",
		}),
		CoalescedRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "coalesced_requests_total",
			Help:      "Total number of requests coalesced into an in-flight verification",
		}),
		VerdictFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "verdict_failures_total",
			Help:      "Total number of analyst verdict generation failures",
		}),
		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "persistence_failures_total",
			Help:      "Total number of record persistence failures",
		}),

		SourceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "requests_total",
			Help:      "Total number of source adapter requests",
		}, []string{"source"}),
		SourceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "failures_total",
			Help:      "Total number of source adapter failures by kind",
		}, []string{"source", "kind"}),
		SourceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "latency_seconds",
			Help:      "Source adapter request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		SchedulerPhaseRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "phase_runs_total",
			Help:      "Total number of scheduler phase runs by status",
		}, []string{"phase", "status"}),
		SchedulerPhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "phase_duration_seconds",
			Help:      "Scheduler phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		IdentitiesDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "identities_discovered_total",
			Help:      "Total number of previously unseen identities discovered",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulResync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_resync_timestamp",
			Help:      "Unix timestamp of last successful roster resync",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordVerification records a completed verification.
func RecordVerification(outcome string, seconds float64) {
	DefaultMetrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.VerificationLatency.Observe(seconds)
}

// RecordCacheHit increments the fresh-record cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordStaleFallback increments the stale fallback counter.
func RecordStaleFallback() {
	DefaultMetrics.StaleFallbacks.Inc()
}

// RecordCoalesced increments the coalesced request counter.
func RecordCoalesced() {
	DefaultMetrics.CoalescedRequests.Inc()
}

// RecordVerdictFailure increments the verdict failure counter.
func RecordVerdictFailure() {
	DefaultMetrics.VerdictFailures.Inc()
}

// RecordPersistenceFailure increments the persistence failure counter.
func RecordPersistenceFailure() {
	DefaultMetrics.PersistenceFailures.Inc()
}

// RecordSourceRequest records a source adapter call.
func RecordSourceRequest(source string, seconds float64, err error) {
	DefaultMetrics.SourceRequests.WithLabelValues(source).Inc()
	DefaultMetrics.SourceLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		DefaultMetrics.SourceFailures.WithLabelValues(source, "error").Inc()
	}
}

// RecordSchedulerPhase records a scheduler phase run.
func RecordSchedulerPhase(phase, status string, seconds float64) {
	DefaultMetrics.SchedulerPhaseRuns.WithLabelValues(phase, status).Inc()
	DefaultMetrics.SchedulerPhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordIdentityDiscovered increments the discovery counter.
func RecordIdentityDiscovered() {
	DefaultMetrics.IdentitiesDiscovered.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
