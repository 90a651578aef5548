package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"cadventory/internal/database"
)

// TagRequest adds one tag or replaces the whole tag set of a model.
type TagRequest struct {
	Tag  string   `json:"tag,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// GetAllTags returns all tags with their model counts
func (h *Handlers) GetAllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.GetAllTags(r.Context())
	if err != nil {
		writeStoreError(w, "get tags", err)
		return
	}
	if tags == nil {
		tags = []database.TagCount{}
	}
	writeJSONCode(w, http.StatusOK, tags)
}

// GetModelTags returns the tags of one model
func (h *Handlers) GetModelTags(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tags, err := h.db.GetModelTags(r.Context(), id)
	if err != nil {
		writeStoreError(w, "get model tags", err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSONCode(w, http.StatusOK, tags)
}

// AddModelTag adds req.Tag to a model
func (h *Handlers) AddModelTag(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req TagRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.db.AddTag(r.Context(), id, req.Tag); err != nil {
		writeStoreError(w, "add tag", err)
		return
	}
	h.refreshSearch(r.Context(), id)
	writeJSONStatus(w, "ok")
}

// SetModelTags replaces the tags of a model with req.Tags
func (h *Handlers) SetModelTags(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req TagRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.db.SetModelTags(r.Context(), id, req.Tags); err != nil {
		writeStoreError(w, "set tags", err)
		return
	}
	h.refreshSearch(r.Context(), id)
	writeJSONStatus(w, "ok")
}

// RemoveModelTag removes the {tag} route variable from a model
func (h *Handlers) RemoveModelTag(w http.ResponseWriter, r *http.Request) {
	id, err := modelID(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.db.RemoveTag(r.Context(), id, mux.Vars(r)["tag"]); err != nil {
		writeStoreError(w, "remove tag", err)
		return
	}
	h.refreshSearch(r.Context(), id)
	writeJSONStatus(w, "ok")
}

// GetModelsByTag returns the models carrying the {tag} route variable
func (h *Handlers) GetModelsByTag(w http.ResponseWriter, r *http.Request) {
	models, err := h.db.GetModelsByTag(r.Context(), mux.Vars(r)["tag"])
	if err != nil {
		writeStoreError(w, "get models by tag", err)
		return
	}
	if models == nil {
		models = []database.Model{}
	}
	writeJSONCode(w, http.StatusOK, models)
}
