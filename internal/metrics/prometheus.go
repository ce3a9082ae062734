package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion service

var (
	// Fetch metrics
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xgform_fetch_requests_total",
			Help: "Total number of upstream season page requests",
		},
		[]string{"status"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xgform_fetch_duration_seconds",
			Help:    "Duration of a season fetch including retries",
			Buckets: []float64{.5, 1, 5, 15, 30, 60, 180, 600},
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xgform_fetch_rate_limited_total",
			Help: "Total number of 429 responses from upstream",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xgform_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xgform_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xgform_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Pipeline metrics
	SeasonsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xgform_seasons_skipped_total",
			Help: "Seasons skipped during a run",
		},
		[]string{"stage"},
	)

	RowsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xgform_rows_dropped_total",
			Help: "Rows dropped during a run",
		},
		[]string{"stage"},
	)

	MatchesUpsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xgform_matches_upserted_total",
			Help: "Team-match rows written to the store",
		},
		[]string{"op"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xgform_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xgform_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xgform_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xgform_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xgform_reconcile_duration_seconds",
			Help:    "Duration of the reconcile stage in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60},
		},
	)

	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xgform_runs_total",
			Help: "Total number of ingestion runs",
		},
		[]string{"trigger", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xgform_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds",
			Buckets: []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
		},
		[]string{"trigger"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xgform_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xgform_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xgform_last_successful_run_timestamp",
			Help: "Timestamp of last successful ingestion run",
		},
	)
)

// RecordFetch records one upstream request outcome
func RecordFetch(status string) {
	FetchRequestsTotal.WithLabelValues(status).Inc()
}

// RecordFetchDuration records how long a season fetch took
func RecordFetchDuration(duration float64) {
	FetchDuration.Observe(duration)
}

// RecordRateLimited records a 429 response
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordSeasonSkipped records a season skipped at the given stage
func RecordSeasonSkipped(stage string) {
	SeasonsSkippedTotal.WithLabelValues(stage).Inc()
}

// RecordRowsDropped records rows dropped at the given stage
func RecordRowsDropped(stage string, n int) {
	if n <= 0 {
		return
	}
	RowsDroppedTotal.WithLabelValues(stage).Add(float64(n))
}

// RecordUpsert records inserted and updated row counts
func RecordUpsert(inserted, updated int) {
	MatchesUpsertedTotal.WithLabelValues("insert").Add(float64(inserted))
	MatchesUpsertedTotal.WithLabelValues("update").Add(float64(updated))
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordReconcile records the duration of a reconcile pass
func RecordReconcile(duration float64) {
	ReconcileDuration.Observe(duration)
}

// RecordRun records an ingestion run
func RecordRun(trigger, status string, duration float64) {
	RunsTotal.WithLabelValues(trigger, status).Inc()
	RunDuration.WithLabelValues(trigger).Observe(duration)

	if status == "success" {
		LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
