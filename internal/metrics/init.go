package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every series is exported from the first scrape.
func InitializeMetrics() {
	for _, reason := range []string{"error", "cycle", "ignored", "irregular"} {
		IndexerEntriesSkipped.WithLabelValues(reason)
	}

	for _, op := range []string{"title", "tops", "tree", "exists", "render"} {
		for _, result := range []string{"ok", "timeout", "exit", "spawn"} {
			ToolkitCallsTotal.WithLabelValues(op, result)
		}
		ToolkitCallDuration.WithLabelValues(op)
	}

	for _, status := range []string{"processed", "no_preview", "skipped", "unidentified", "failed"} {
		PipelineFilesTotal.WithLabelValues(status)
	}

	for _, state := range []string{"total", "processed", "thumbnail", "selected"} {
		CatalogModelsTotal.WithLabelValues(state)
	}

	for _, result := range []string{"added", "changed", "missing", "unchanged", "error"} {
		AuditFilesTotal.WithLabelValues(result)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	DBTransactionDuration.WithLabelValues("commit")
	DBTransactionDuration.WithLabelValues("rollback")
}
