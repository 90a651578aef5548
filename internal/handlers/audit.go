package handlers

import (
	"net/http"

	"cadventory/internal/audit"
	"cadventory/internal/filesystem"
	"cadventory/internal/logging"
)

// RunAudit checksums the library files and reports differences against
// the previous audit. dryRun=true leaves the stored checksums untouched.
// Only one audit runs at a time.
func (h *Handlers) RunAudit(w http.ResponseWriter, r *http.Request) {
	dryRun, err := queryBool(r, "dryRun")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.processing() {
		writeJSONError(w, "Processing run in progress", http.StatusConflict)
		return
	}
	if !h.auditMu.TryLock() {
		writeJSONError(w, "Audit already running", http.StatusConflict)
		return
	}
	defer h.auditMu.Unlock()

	opts := audit.Options{Retry: filesystem.DefaultRetryConfig()}
	if dryRun != nil {
		opts.DryRun = *dryRun
	}

	report, err := audit.Run(r.Context(), h.lib, opts)
	if err != nil {
		logging.Error("Audit failed: %v", err)
		writeJSONError(w, "Audit failed", http.StatusInternalServerError)
		return
	}
	writeJSONCode(w, http.StatusOK, report)
}
