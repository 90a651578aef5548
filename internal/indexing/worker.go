package indexing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cadventory/internal/database"
	"cadventory/internal/indexer"
	"cadventory/internal/library"
	"cadventory/internal/logging"
	"cadventory/internal/pipeline"
	"cadventory/internal/workers"
)

// EventKind identifies an Event.
type EventKind string

const (
	// EventProgress reports Done of Total for the current pass. During the
	// walk Phase is "indexing" and Done counts files found.
	EventProgress EventKind = "progress"
	// EventModelProcessed is sent once per file that reached a final status.
	EventModelProcessed EventKind = "model_processed"
	// EventFinished is the last event of a run.
	EventFinished EventKind = "finished"
)

// Phases reported in progress events.
const (
	PhaseIndexing   = "indexing"
	PhaseProcessing = "processing"
)

// Event is one notification from a running Worker.
type Event struct {
	Kind    EventKind       `json:"kind"`
	RunID   string          `json:"runId"`
	Phase   string          `json:"phase,omitempty"`
	Done    int             `json:"done,omitempty"`
	Total   int             `json:"total,omitempty"`
	Path    string          `json:"path,omitempty"`
	ModelID int64           `json:"modelId,omitempty"`
	Status  pipeline.Status `json:"status,omitempty"`
	Summary *Summary        `json:"summary,omitempty"`
}

// Summary aggregates every pass of one run.
type Summary struct {
	RunID   string `json:"runId"`
	Passes  int    `json:"passes"`
	Indexed int    `json:"indexed"`
	Stopped bool   `json:"stopped"`
	pipeline.Summary
}

func (s *Summary) merge(p pipeline.Summary) {
	s.Total += p.Total
	s.Processed += p.Processed
	s.NoPreview += p.NoPreview
	s.Skipped += p.Skipped
	s.Unidentified += p.Unidentified
	s.Failed += p.Failed
	s.NotStarted += p.NotStarted
	s.RenderFailures = append(s.RenderFailures, p.RenderFailures...)
}

// Options configures a Worker.
type Options struct {
	// Workers sizes the processing pool; 0 picks workers.ForMixed(4).
	Workers int
	// Reindex walks the library root before the first pass instead of
	// reusing an existing index.
	Reindex bool
	// EventBuffer is the event channel capacity.
	EventBuffer int
	// ProgressInterval throttles indexing progress events.
	ProgressInterval time.Duration
	// Gate, if set, is consulted by pool workers before each file.
	Gate pipeline.Gate
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		EventBuffer:      64,
		ProgressInterval: 250 * time.Millisecond,
	}
}

// Worker runs one library scan-and-process job.
type Worker struct {
	lib  *library.Library
	proc pipeline.FileProcessor
	opts Options

	started atomic.Bool
	stopped atomic.Bool
	reindex atomic.Bool
	running atomic.Bool

	poolMu sync.Mutex
	pool   *pipeline.Pool

	done      chan struct{}
	summary   Summary
	runID     string
	startedAt time.Time
}

// New creates a Worker. Nothing runs until Start.
func New(lib *library.Library, proc pipeline.FileProcessor, opts Options) *Worker {
	if opts.Workers <= 0 {
		opts.Workers = workers.ForMixed(4)
	}
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	return &Worker{
		lib:  lib,
		proc: proc,
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start launches the run and returns its event channel. A Worker runs at
// most once; later calls return a closed channel.
func (w *Worker) Start(ctx context.Context) <-chan Event {
	events := make(chan Event, w.opts.EventBuffer)
	if !w.started.CompareAndSwap(false, true) {
		logging.Warn("Indexing worker for %q already started", w.lib.Name())
		close(events)
		return events
	}

	w.runID = newRunID()
	w.summary.RunID = w.runID
	w.startedAt = time.Now()
	w.running.Store(true)

	go w.run(ctx, events)
	return events
}

// Stop keeps the pool from taking new files. In-flight files finish.
func (w *Worker) Stop() {
	logging.Debug("Indexing worker stop requested")
	w.stopped.Store(true)

	w.poolMu.Lock()
	defer w.poolMu.Unlock()
	if w.pool != nil {
		w.pool.Stop()
	}
}

// RequestReindex schedules one more walk-and-process pass after the current
// one. Requests made while a pass runs collapse into one.
func (w *Worker) RequestReindex() {
	logging.Debug("Indexing reindex requested")
	w.reindex.Store(true)
}

// Running reports whether the run has started and not yet finished.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// RunID returns the id carried by this run's events, or "" before Start.
func (w *Worker) RunID() string {
	return w.runID
}

// Wait blocks until the run finishes and returns its summary. It returns
// immediately with a zero Summary if Start was never called.
func (w *Worker) Wait() Summary {
	if !w.started.Load() {
		return Summary{}
	}
	<-w.done
	return w.summary
}

func (w *Worker) run(ctx context.Context, events chan<- Event) {
	defer close(events)
	defer close(w.done)
	defer w.running.Store(false)

	emit := func(ev Event) {
		ev.RunID = w.runID
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	logging.Info("Indexing run %s started for library %q", w.runID, w.lib.Name())
	excluded := w.excludedPaths(ctx)

	walk := w.opts.Reindex
	for {
		w.reindex.Store(false)
		w.summary.Passes++

		if walk {
			throttled := indexer.Throttle(indexer.ProgressFunc(func(path string) {
				emit(Event{Kind: EventProgress, Phase: PhaseIndexing, Done: int(w.lib.Indexer().GetProgress().FilesIndexed), Path: path})
			}), w.opts.ProgressInterval)
			w.summary.Indexed += w.lib.IndexFilesWithProgress(throttled)
			excluded = w.excludedPaths(ctx)
		}

		paths := filterPaths(w.lib.ModelPaths(), excluded)
		total := len(paths)
		done := 0
		emit(Event{Kind: EventProgress, Phase: PhaseProcessing, Done: 0, Total: total})

		pool := pipeline.NewPool(w.proc, w.opts.Workers)
		if w.opts.Gate != nil {
			pool.SetGate(w.opts.Gate)
		}
		w.poolMu.Lock()
		w.pool = pool
		if w.stopped.Load() {
			pool.Stop()
		}
		w.poolMu.Unlock()

		sum := pool.Run(ctx, paths, func(o pipeline.Outcome) {
			done++
			emit(Event{Kind: EventModelProcessed, Path: o.Path, ModelID: o.ModelID, Status: o.Status})
			emit(Event{Kind: EventProgress, Phase: PhaseProcessing, Done: done, Total: total, Path: o.Path})
		})
		w.summary.merge(sum)

		if w.stopped.Load() || ctx.Err() != nil {
			w.summary.Stopped = true
			break
		}
		if !w.reindex.Load() {
			break
		}
		logging.Info("Reindex requested during run %s, starting pass %d", w.runID, w.summary.Passes+1)
		walk = true
	}

	w.summary.Duration = time.Since(w.startedAt)
	logging.Info("Indexing run %s finished after %d pass(es) in %v: %d processed, %d without preview, %d skipped",
		w.runID, w.summary.Passes, w.summary.Duration.Round(time.Millisecond),
		w.summary.Processed, w.summary.NoPreview, w.summary.Skipped)

	final := w.summary
	emit(Event{Kind: EventFinished, Summary: &final})
}

// excludedPaths returns the file paths of models the user excluded from
// processing. Store errors are logged and treated as "none excluded".
func (w *Worker) excludedPaths(ctx context.Context) map[string]bool {
	db, err := w.lib.Store(ctx)
	if err != nil {
		logging.Warn("Cannot read exclusions: %v", err)
		return nil
	}
	models, err := db.ListModels(ctx, database.ModelFilter{Included: database.Bool(false)})
	if err != nil {
		logging.Warn("Cannot read exclusions: %v", err)
		return nil
	}
	out := make(map[string]bool, len(models))
	for _, m := range models {
		out[m.FilePath] = true
	}
	return out
}

func filterPaths(paths []string, excluded map[string]bool) []string {
	if len(excluded) == 0 {
		return paths
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if excluded[p] {
			logging.Debug("Skipping excluded model %s", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
