// Package metrics provides Prometheus instrumentation for cadventory.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "cadventory_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of requests being served
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBTransactionDuration: Histogram of batch duration by outcome (commit/rollback)
//   - DBHashFailures: Counter of files that could not be hashed
//
// ## Indexer Metrics
//
//   - IndexerRunsTotal: Counter of library walks
//   - IndexerFilesIndexed: Counter of files recorded
//   - IndexerDirsVisited: Counter of directories entered
//   - IndexerEntriesSkipped: Counter of skipped entries by reason
//   - IndexerLastRunDuration: Gauge of the last walk duration
//
// ## Toolkit Metrics
//
//   - ToolkitCallsTotal: Counter of mged/rt invocations by operation and result
//   - ToolkitCallDuration: Histogram of invocation duration by operation
//
// ## Pipeline Metrics
//
//   - PipelineFilesTotal: Counter of processed files by final status
//   - PipelineFileDuration: Histogram of time spent per file
//   - PipelineCandidatesTried: Histogram of render attempts per file
//   - PipelineWorkersBusy, PipelineQueueDepth, PipelineRunning: pool state
//
// ## Catalog and Audit Metrics
//
//   - CatalogModelsTotal: Gauge of models by state (total/processed/thumbnail/selected)
//   - CatalogTagsTotal: Gauge of distinct tags
//   - AuditFilesTotal: Counter of audited files by result
//
// ## Filesystem and Memory Metrics
//
//   - FilesystemRetryAttempts, FilesystemRetryFailures, FilesystemStaleErrors
//   - MemoryUsageRatio, MemoryPaused, MemoryPausesTotal
//
// ## Application Info
//
//   - AppInfo: Gauge with version, commit and Go version labels
//
// # Collector
//
// Catalog gauges are refreshed by a [Collector] that polls a [StatsProvider]
// (the metadata store):
//
//	collector := metrics.NewCollector(store, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Models without a preview:
//
//	cadventory_catalog_models{state="processed"} - cadventory_catalog_models{state="thumbnail"}
//
// Render timeouts per minute:
//
//	sum(rate(cadventory_toolkit_calls_total{operation="render",result="timeout"}[5m])) * 60
//
// P95 time per model:
//
//	histogram_quantile(0.95, sum(rate(cadventory_pipeline_file_duration_seconds_bucket[15m])) by (le))
package metrics
