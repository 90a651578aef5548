package handlers

import (
	"net/http"

	"cadventory/internal/database"
	"cadventory/internal/logging"
)

// SelectionRequest flags a set of models in one transaction. Field is
// "selected" (the default) or "included".
type SelectionRequest struct {
	IDs   []int64 `json:"ids"`
	Field string  `json:"field,omitempty"`
	Value bool    `json:"value"`
}

// maxSelection bounds the ids of one SelectionRequest.
const maxSelection = 10000

// UpdateSelection applies a SelectionRequest. Either every model is updated
// or none is.
func (h *Handlers) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.IDs) == 0 {
		writeJSONError(w, "ids array is required", http.StatusBadRequest)
		return
	}
	if len(req.IDs) > maxSelection {
		writeJSONError(w, "too many ids", http.StatusBadRequest)
		return
	}

	var apply func(b *database.Batch, id int64) error
	switch req.Field {
	case "", "selected":
		apply = func(b *database.Batch, id int64) error { return b.SetModelSelected(id, req.Value) }
	case "included":
		apply = func(b *database.Batch, id int64) error { return b.SetModelIncluded(id, req.Value) }
	default:
		writeJSONError(w, "field must be selected or included", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	b, err := h.db.BeginBatch(ctx)
	if err != nil {
		writeStoreError(w, "begin batch", err)
		return
	}
	for _, id := range req.IDs {
		if err = apply(b, id); err != nil {
			break
		}
	}
	if err = h.db.EndBatch(b, err); err != nil {
		writeStoreError(w, "update selection", err)
		return
	}

	logging.Debug("Updated %s=%v on %d models", req.Field, req.Value, len(req.IDs))
	writeJSONCode(w, http.StatusOK, map[string]int{"updated": len(req.IDs)})
}
