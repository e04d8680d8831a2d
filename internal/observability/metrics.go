package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the portfolio ledger.
type Metrics struct {
	// --- Engine ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter

	// --- Outbound ---
	PublishDrops    prometheus.Counter
	PublishedEvents *prometheus.CounterVec
	PublishErrors   prometheus.Counter
	ChannelSize     *prometheus.GaugeVec
	ChannelCapacity *prometheus.GaugeVec

	// --- Ingestion ---
	IngestMessages *prometheus.CounterVec

	// --- Scheduler ---
	SchedulerRuns *prometheus.CounterVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	opBuckets := []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

	return &Metrics{
		OpsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_ops_applied_total",
			Help: "Ledger operations committed",
		}, []string{"op"}),

		OpsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_ops_rejected_total",
			Help: "Ledger operations rolled back, by error kind",
		}, []string{"op", "reason"}),

		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_op_duration_seconds",
			Help:    "Time to apply one ledger operation including commit",
			Buckets: opBuckets,
		}, []string{"op"}),

		IdempotencyDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_idempotency_duplicates_total",
			Help: "Duplicate external ids caught (lru/db)",
		}, []string{"op", "tier"}),

		DedupLRUSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_publish_drops_total",
			Help: "Outbound events dropped due to full publish channel",
		}),

		PublishedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_published_events_total",
			Help: "Outbound events published to NATS",
		}, []string{"event_type"}),

		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_publish_errors_total",
			Help: "Outbound publish failures",
		}),

		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portfolio_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portfolio_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		IngestMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_ingest_messages_total",
			Help: "Inbound NATS messages by subject and outcome (applied/rejected/malformed/retry)",
		}, []string{"subject", "outcome"}),

		SchedulerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_scheduler_runs_total",
			Help: "Scheduled job runs by job and outcome",
		}, []string{"job", "outcome"}),

		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_query_errors_total",
			Help: "Query API errors by kind",
		}, []string{"endpoint", "kind"}),
	}
}
