package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadventory_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_db_queries_total",
			Help: "Total number of metadata store queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadventory_db_query_duration_seconds",
			Help:    "Metadata store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadventory_db_transaction_duration_seconds",
			Help:    "Duration of batch transactions in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	DBHashFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadventory_db_hash_failures_total",
			Help: "Files that could not be read for content hashing",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadventory_indexer_runs_total",
			Help: "Total number of top-level index calls",
		},
	)

	IndexerFilesIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadventory_indexer_files_indexed_total",
			Help: "Total number of files recorded by the indexer",
		},
	)

	IndexerDirsVisited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadventory_indexer_directories_visited_total",
			Help: "Total number of directories entered by the indexer",
		},
	)

	IndexerEntriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_indexer_entries_skipped_total",
			Help: "Entries skipped by the indexer, by reason",
		},
		[]string{"reason"}, // "error", "cycle", "ignored", "irregular"
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_indexer_last_run_duration_seconds",
			Help: "Duration of the last index call in seconds",
		},
	)
)

// Toolkit metrics
var (
	ToolkitCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_toolkit_calls_total",
			Help: "External toolkit invocations by operation and result",
		},
		[]string{"operation", "result"}, // result: "ok", "timeout", "exit", "spawn"
	)

	ToolkitCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadventory_toolkit_call_duration_seconds",
			Help:    "External toolkit call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)
)

// Pipeline metrics
var (
	PipelineFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_pipeline_files_total",
			Help: "Files handled by the processing pipeline, by final status",
		},
		[]string{"status"},
	)

	PipelineFileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadventory_pipeline_file_duration_seconds",
			Help:    "Time spent processing a single geometry file",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	PipelineCandidatesTried = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadventory_pipeline_render_attempts",
			Help:    "Render attempts needed per file",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	PipelineWorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_pipeline_workers_busy",
			Help: "Pool workers currently processing a file",
		},
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_pipeline_queue_depth",
			Help: "Paths waiting in the shared pipeline queue",
		},
	)

	PipelineRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_pipeline_running",
			Help: "Whether a processing run is active (1 = running, 0 = idle)",
		},
	)
)

// Catalog metrics
var (
	CatalogModelsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadventory_catalog_models",
			Help: "Models in the metadata store by state",
		},
		[]string{"state"}, // "total", "processed", "thumbnail", "selected"
	)

	CatalogTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_catalog_tags",
			Help: "Distinct tags in the metadata store",
		},
	)

	AuditFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_audit_files_total",
			Help: "Files classified by audit runs",
		},
		[]string{"result"}, // "added", "changed", "missing", "unchanged", "error"
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after stale handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadventory_filesystem_stale_errors_total",
			Help: "Stale file handle errors seen by filesystem operations",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadventory_memory_paused",
			Help: "Whether processing is paused for memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadventory_memory_pauses_total",
			Help: "Times processing was paused for memory pressure",
		},
	)
)

// AppInfo exposes build information as labels on a constant gauge.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cadventory_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
