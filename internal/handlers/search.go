package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cadventory/internal/database"
	"cadventory/internal/search"
)

// SearchResult is one hit hydrated with its model.
type SearchResult struct {
	Model database.Model `json:"model"`
	Score float64        `json:"score"`
}

// SearchResponse lists hits in score order.
type SearchResponse struct {
	Query   string         `json:"query"`
	Total   uint64         `json:"total"`
	Results []SearchResult `json:"results"`
}

// Search runs the q parameter against the model index.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSONError(w, "q is required", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", search.DefaultLimit)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	hits, total, err := h.search.Search(q, limit)
	if err != nil {
		writeJSONError(w, "Invalid query: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		m, err := h.db.GetModel(ctx, hit.ModelID)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			writeStoreError(w, "load search hit", err)
			return
		}
		m.Thumbnail = nil
		results = append(results, SearchResult{Model: *m, Score: hit.Score})
	}

	writeJSONCode(w, http.StatusOK, SearchResponse{Query: q, Total: total, Results: results})
}
