package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutline_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Editing Metrics
	EditOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutline_edit_operations_total",
			Help: "Total number of committed timeline edit operations",
		},
		[]string{"operation"},
	)

	EditRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutline_edit_rejections_total",
			Help: "Total number of edit operations rejected by invariant checks",
		},
		[]string{"operation"},
	)

	UndoOperationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cutline_undo_operations_total",
			Help: "Total number of undo operations applied",
		},
	)

	RedoOperationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cutline_redo_operations_total",
			Help: "Total number of redo operations applied",
		},
	)

	// Asset Metrics
	AssetIngestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutline_asset_ingests_total",
			Help: "Total number of ingested assets",
		},
		[]string{"kind"},
	)

	AssetIngestSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutline_asset_ingest_size_bytes",
			Help:    "Size of ingested assets in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 15), // 1MB to 16GB
		},
	)

	// Playback Metrics
	PlaybackResyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutline_playback_resyncs_total",
			Help: "Total number of media element drift corrections",
		},
		[]string{"kind"},
	)

	PlaybackSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cutline_playback_sessions_active",
			Help: "Number of live preview sessions",
		},
	)

	StaleTicksDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cutline_playback_stale_ticks_discarded_total",
			Help: "Clock ticks discarded because a later seek advanced the generation",
		},
	)

	// Export Metrics
	ExportsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cutline_exports_started_total",
			Help: "Total number of export runs started",
		},
	)

	ExportsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutline_exports_completed_total",
			Help: "Total number of export runs finished, by outcome",
		},
		[]string{"status"},
	)

	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutline_export_duration_seconds",
			Help:    "Export render wall-clock duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
	)

	ExportQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cutline_export_queue_depth",
			Help: "Number of export jobs waiting in queue",
		},
	)
)

// RecordHTTPRequest records an HTTP request observation
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordAssetIngest records an ingested asset
func RecordAssetIngest(kind string, sizeBytes int64) {
	AssetIngestsTotal.WithLabelValues(kind).Inc()
	AssetIngestSizeBytes.Observe(float64(sizeBytes))
}

// RecordExportFinished records an export outcome with its wall-clock duration
func RecordExportFinished(status string, seconds float64) {
	ExportsCompletedTotal.WithLabelValues(status).Inc()
	ExportDuration.Observe(seconds)
}
