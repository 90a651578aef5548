package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cadventory/internal/database"
	"cadventory/internal/logging"
)

// ModelResponse is a model with its tags.
type ModelResponse struct {
	database.Model
	Tags []string `json:"tags"`
}

// ModelListResponse is one page of models.
type ModelListResponse struct {
	Models []ModelResponse `json:"models"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ModelDetailResponse is a model with tags and objects.
type ModelDetailResponse struct {
	ModelResponse
	Objects []database.Object `json:"objects"`
}

// ModelUpdate carries the user-editable fields of a model. Nil fields are
// left unchanged.
type ModelUpdate struct {
	Title        *string `json:"title,omitempty"`
	Author       *string `json:"author,omitempty"`
	OverrideInfo *string `json:"overrideInfo,omitempty"`
	Selected     *bool   `json:"isSelected,omitempty"`
	Included     *bool   `json:"isIncluded,omitempty"`
}

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// ListModels returns models filtered by the processed, selected and
// included query parameters, paged by limit and offset. A tag parameter
// lists the models carrying that tag instead.
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	var f database.ModelFilter
	var err error
	if f.Processed, err = queryBool(r, "processed"); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.Selected, err = queryBool(r, "selected"); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.Included, err = queryBool(r, "included"); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.Limit, err = queryInt(r, "limit", defaultPageSize); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.Limit == 0 || f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	ctx := r.Context()

	var models []database.Model
	var total int
	if tag := strings.TrimSpace(r.URL.Query().Get("tag")); tag != "" {
		models, err = h.db.GetModelsByTag(ctx, tag)
		total = len(models)
	} else {
		models, err = h.db.ListModels(ctx, f)
		if err == nil {
			total, err = h.db.CountModels(ctx, f)
		}
	}
	if err != nil {
		writeStoreError(w, "list models", err)
		return
	}

	tags, err := h.db.GetTagsForModels(ctx)
	if err != nil {
		writeStoreError(w, "load tags", err)
		return
	}

	out := make([]ModelResponse, 0, len(models))
	for _, m := range models {
		out = append(out, withTags(m, tags[m.ID]))
	}

	writeJSONCode(w, http.StatusOK, ModelListResponse{
		Models: out,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

func withTags(m database.Model, tags []string) ModelResponse {
	if tags == nil {
		tags = []string{}
	}
	return ModelResponse{Model: m, Tags: tags}
}

// GetModel returns one model with its tags and objects.
func (h *Handlers) GetModel(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	m, err := h.db.GetModel(ctx, id)
	if err != nil {
		writeStoreError(w, "get model", err)
		return
	}
	tags, err := h.db.GetModelTags(ctx, id)
	if err != nil {
		writeStoreError(w, "get model tags", err)
		return
	}
	objects, err := h.db.GetObjectsForModel(ctx, id)
	if err != nil {
		writeStoreError(w, "get model objects", err)
		return
	}
	if objects == nil {
		objects = []database.Object{}
	}

	writeJSONCode(w, http.StatusOK, ModelDetailResponse{
		ModelResponse: withTags(*m, tags),
		Objects:       objects,
	})
}

// UpdateModel applies a ModelUpdate.
func (h *Handlers) UpdateModel(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req ModelUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	m, err := h.db.GetModel(ctx, id)
	if err != nil {
		writeStoreError(w, "get model", err)
		return
	}

	if req.Title != nil {
		m.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		m.Author = strings.TrimSpace(*req.Author)
	}
	if req.OverrideInfo != nil {
		m.OverrideInfo = *req.OverrideInfo
	}
	if req.Selected != nil {
		m.IsSelected = *req.Selected
	}
	if req.Included != nil {
		m.IsIncluded = *req.Included
	}

	if err := h.db.UpdateModel(ctx, m); err != nil {
		writeStoreError(w, "update model", err)
		return
	}
	h.refreshSearch(ctx, id)

	tags, err := h.db.GetModelTags(ctx, id)
	if err != nil {
		writeStoreError(w, "get model tags", err)
		return
	}
	writeJSONCode(w, http.StatusOK, withTags(*m, tags))
}

// GetThumbnail serves the stored preview image of a model.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.db.GetThumbnail(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "Thumbnail not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeStoreError(w, "get thumbnail", err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail write for model %d aborted: %v", id, err)
	}
}

// GetObjects returns the objects of a model ordered by object id.
func (h *Handlers) GetObjects(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := h.db.GetModel(ctx, id); err != nil {
		writeStoreError(w, "get model", err)
		return
	}
	objects, err := h.db.GetObjectsForModel(ctx, id)
	if err != nil {
		writeStoreError(w, "get model objects", err)
		return
	}
	if objects == nil {
		objects = []database.Object{}
	}
	writeJSONCode(w, http.StatusOK, objects)
}
