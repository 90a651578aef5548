package handlers

import (
	"net/http"

	"cadventory/internal/indexing"
	"cadventory/internal/logging"
)

// ProcessStatus reports the current or most recent processing run.
type ProcessStatus struct {
	Running     bool              `json:"running"`
	RunID       string            `json:"runId,omitempty"`
	Phase       string            `json:"phase,omitempty"`
	Done        int               `json:"done"`
	Total       int               `json:"total"`
	LastPath    string            `json:"lastPath,omitempty"`
	LastSummary *indexing.Summary `json:"lastSummary,omitempty"`
}

func (h *Handlers) processing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress.Running
}

func (h *Handlers) status() ProcessStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// GetProcessStatus returns the progress of the current run, or the summary
// of the last finished one.
func (h *Handlers) GetProcessStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSONCode(w, http.StatusOK, h.status())
}

// StartProcess starts a processing run over the library. While a run is in
// progress, reindex=true schedules another pass instead; any other request
// is rejected with 409.
func (h *Handlers) StartProcess(w http.ResponseWriter, r *http.Request) {
	reindex, err := queryBool(r, "reindex")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.auditMu.TryLock() {
		writeJSONError(w, "Audit in progress", http.StatusConflict)
		return
	}
	h.auditMu.Unlock()

	h.mu.Lock()
	if h.progress.Running {
		w2 := h.worker
		h.mu.Unlock()
		if reindex != nil && *reindex {
			w2.RequestReindex()
			writeJSONCode(w, http.StatusAccepted, h.status())
			return
		}
		writeJSONError(w, "Processing run already in progress", http.StatusConflict)
		return
	}

	opts := h.workerOpts
	opts.Reindex = reindex != nil && *reindex
	worker := indexing.New(h.lib, h.proc, opts)
	events := worker.Start(h.ctx)
	h.worker = worker
	h.progress = ProcessStatus{Running: true, RunID: worker.RunID(), LastSummary: h.progress.LastSummary}
	h.consumer.Add(1)
	h.mu.Unlock()

	go h.consume(worker, events)

	writeJSONCode(w, http.StatusAccepted, h.status())
}

// StopProcess asks the current run to stop after its in-flight files.
func (h *Handlers) StopProcess(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	worker := h.worker
	h.mu.Unlock()

	if worker == nil || !h.processing() {
		writeJSONError(w, "No processing run in progress", http.StatusConflict)
		return
	}
	worker.Stop()
	writeJSONCode(w, http.StatusAccepted, h.status())
}

// consume folds worker events into the status and keeps the search index
// current with every finished model. The run counts as finished once the
// summary is recorded.
func (h *Handlers) consume(worker *indexing.Worker, events <-chan indexing.Event) {
	defer h.consumer.Done()

	for ev := range events {
		switch ev.Kind {
		case indexing.EventProgress:
			h.mu.Lock()
			h.progress.Phase = ev.Phase
			h.progress.Done = ev.Done
			h.progress.Total = ev.Total
			h.mu.Unlock()
		case indexing.EventModelProcessed:
			h.mu.Lock()
			h.progress.LastPath = ev.Path
			h.mu.Unlock()
			if ev.ModelID != 0 {
				h.refreshSearch(h.ctx, ev.ModelID)
			}
		}
	}

	summary := worker.Wait()
	h.mu.Lock()
	h.progress.Running = false
	h.progress.LastSummary = &summary
	h.mu.Unlock()
	logging.Info("Processing run %s finished: %d processed, %d without preview, %d skipped",
		summary.RunID, summary.Processed, summary.NoPreview, summary.Skipped)
}
