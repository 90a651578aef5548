package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"cadventory/internal/cadtypes"
	"cadventory/internal/library"
	"cadventory/internal/metrics"
)

// LibraryResponse describes the served library.
type LibraryResponse struct {
	Name     string           `json:"name"`
	Root     string           `json:"root"`
	Manifest library.Manifest `json:"manifest"`
	Files    map[string]int   `json:"files"`
	Stats    metrics.Stats    `json:"stats"`
}

// FilesResponse lists root-relative paths of one category.
type FilesResponse struct {
	Category string   `json:"category"`
	Count    int      `json:"count"`
	Files    []string `json:"files"`
}

var fileCategories = []cadtypes.Category{
	cadtypes.CategoryGeometry,
	cadtypes.CategoryImage,
	cadtypes.CategoryDocument,
	cadtypes.CategoryData,
}

// GetLibrary returns the library manifest with file and catalog counts.
func (h *Handlers) GetLibrary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.CatalogStats(r.Context())
	if err != nil {
		writeStoreError(w, "load catalog stats", err)
		return
	}

	files := map[string]int{"models": len(h.lib.Models())}
	for _, c := range fileCategories {
		files[string(c)] = len(h.lib.Files(c))
	}

	writeJSONCode(w, http.StatusOK, LibraryResponse{
		Name:     h.lib.Name(),
		Root:     h.lib.Path(),
		Manifest: h.lib.Manifest(),
		Files:    files,
		Stats:    stats,
	})
}

// GetFiles lists the files of the category named by {category}. "models"
// selects native geometry databases only.
func (h *Handlers) GetFiles(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["category"]

	var files []string
	if name == "models" {
		files = h.lib.Models()
	} else {
		c, ok := cadtypes.ParseCategory(name)
		if !ok {
			writeJSONError(w, "Unknown category", http.StatusBadRequest)
			return
		}
		name = string(c)
		files = h.lib.Files(c)
	}
	if files == nil {
		files = []string{}
	}

	writeJSONCode(w, http.StatusOK, FilesResponse{Category: name, Count: len(files), Files: files})
}

// Reindex walks the library root again and returns the new file counts.
func (h *Handlers) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.processing() {
		writeJSONError(w, "Processing run in progress", http.StatusConflict)
		return
	}
	h.lib.IndexFiles()
	h.GetLibrary(w, r)
}
