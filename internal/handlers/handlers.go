package handlers

import (
	"context"
	"sync"
	"time"

	"cadventory/internal/database"
	"cadventory/internal/indexing"
	"cadventory/internal/library"
	"cadventory/internal/logging"
	"cadventory/internal/pipeline"
	"cadventory/internal/search"
)

// Handlers serves one library.
type Handlers struct {
	lib        *library.Library
	db         *database.Database
	proc       pipeline.FileProcessor
	search     *search.Index
	workerOpts indexing.Options
	startedAt  time.Time

	// ctx outlives individual requests; processing runs are bound to it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	worker   *indexing.Worker
	progress ProcessStatus
	consumer sync.WaitGroup

	auditMu sync.Mutex
}

// New creates Handlers for lib. db must be the library's store and idx an
// index of its models; proc is used for processing runs started over HTTP.
func New(lib *library.Library, db *database.Database, proc pipeline.FileProcessor, idx *search.Index, opts indexing.Options) *Handlers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		lib:        lib,
		db:         db,
		proc:       proc,
		search:     idx,
		workerOpts: opts,
		startedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Close stops a running processing run and waits for it to wind down.
func (h *Handlers) Close() {
	h.mu.Lock()
	w := h.worker
	h.mu.Unlock()

	if w != nil && w.Running() {
		logging.Info("Stopping processing run %s", w.RunID())
		w.Stop()
	}
	h.cancel()
	h.consumer.Wait()
}

// refreshSearch re-reads one model and its tags into the search index.
func (h *Handlers) refreshSearch(ctx context.Context, id int64) {
	m, err := h.db.GetModel(ctx, id)
	if err != nil {
		logging.Debug("Search refresh skipped for model %d: %v", id, err)
		return
	}
	tags, err := h.db.GetModelTags(ctx, id)
	if err != nil {
		logging.Warn("Failed to load tags of model %d for search: %v", id, err)
	}
	if err := h.search.IndexModel(*m, tags); err != nil {
		logging.Warn("Failed to index model %d for search: %v", id, err)
	}
}
