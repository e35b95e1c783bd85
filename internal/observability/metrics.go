package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the aggregation engine,
// organized by subsystem: aggregations, source searches, cache, and dedup.
// All counters and histograms are registered via promauto against the default
// registry.
type Metrics struct {
	// AggregationsStarted counts aggregation runs initiated.
	AggregationsStarted prometheus.Counter

	// AggregationsCompleted counts aggregation runs that returned a result.
	AggregationsCompleted prometheus.Counter

	// AggregationsFailed counts aggregation runs where every source failed.
	AggregationsFailed prometheus.Counter

	// AggregationDuration observes end-to-end aggregation duration in seconds.
	AggregationDuration prometheus.Histogram

	// SearchesStarted counts searches initiated, labeled by source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by source and error type.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes per-source search duration in seconds.
	SearchDuration *prometheus.HistogramVec

	// RecordsFetched counts candidate records fetched, labeled by source.
	RecordsFetched *prometheus.CounterVec

	// RecordsDropped counts malformed records dropped at ingestion, labeled by source.
	RecordsDropped *prometheus.CounterVec

	// RecordsMerged counts duplicate records merged by the identity resolver.
	RecordsMerged prometheus.Counter

	// CacheHits counts cache hits, labeled by key class.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts cache misses, labeled by key class.
	CacheMisses *prometheus.CounterVec

	// CacheErrors counts cache backend errors, labeled by operation.
	CacheErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AggregationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_started_total",
			Help:      "Total number of aggregation runs started",
		}),
		AggregationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_completed_total",
			Help:      "Total number of aggregation runs completed",
		}),
		AggregationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_failed_total",
			Help:      "Total number of aggregation runs where all sources failed",
		}),
		AggregationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of aggregation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of source searches started",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of source searches completed",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of source searches that failed",
		}, []string{"source", "error_type"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of source searches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),

		RecordsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total number of candidate records fetched by source",
		}, []string{"source"}),
		RecordsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Total number of malformed records dropped at ingestion",
		}, []string{"source"}),
		RecordsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_merged_total",
			Help:      "Total number of duplicate records merged",
		}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}, []string{"class"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}, []string{"class"}),
		CacheErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of cache backend errors",
		}, []string{"op"}),
	}
}

// RecordAggregationStarted records that an aggregation run has started.
func (m *Metrics) RecordAggregationStarted() {
	m.AggregationsStarted.Inc()
}

// RecordAggregationCompleted records a completed aggregation run.
func (m *Metrics) RecordAggregationCompleted(durationSeconds float64) {
	m.AggregationsCompleted.Inc()
	m.AggregationDuration.Observe(durationSeconds)
}

// RecordAggregationFailed records an aggregation run where all sources failed.
func (m *Metrics) RecordAggregationFailed(durationSeconds float64) {
	m.AggregationsFailed.Inc()
	m.AggregationDuration.Observe(durationSeconds)
}

// RecordSearchStarted records that a source search has started.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records a successful source search.
func (m *Metrics) RecordSearchCompleted(source string, recordCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.RecordsFetched.WithLabelValues(source).Add(float64(recordCount))
}

// RecordSearchFailed records a failed source search.
func (m *Metrics) RecordSearchFailed(source, errorType string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source, errorType).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordRecordDropped records a malformed record dropped at ingestion.
func (m *Metrics) RecordRecordDropped(source string) {
	m.RecordsDropped.WithLabelValues(source).Inc()
}

// RecordRecordsMerged records duplicate records merged by the resolver.
func (m *Metrics) RecordRecordsMerged(count int) {
	m.RecordsMerged.Add(float64(count))
}

// RecordCacheHits records cache hits for a key class.
func (m *Metrics) RecordCacheHits(class string, count int) {
	m.CacheHits.WithLabelValues(class).Add(float64(count))
}

// RecordCacheMisses records cache misses for a key class.
func (m *Metrics) RecordCacheMisses(class string, count int) {
	m.CacheMisses.WithLabelValues(class).Add(float64(count))
}

// RecordCacheError records a cache backend error.
func (m *Metrics) RecordCacheError(op string) {
	m.CacheErrors.WithLabelValues(op).Inc()
}
