package indexer

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"cadventory/internal/cadtypes"
	"cadventory/internal/filesystem"
	"cadventory/internal/logging"
	"cadventory/internal/metrics"
)

// Ignorer decides whether a path is skipped during the walk.
type Ignorer interface {
	Ignore(path string, isDir bool) bool
}

// Indexer maintains a suffix → paths index for one or more roots.
// An Indexer is not meant to be walked from several goroutines at once;
// concurrent Index calls are serialized.
type Indexer struct {
	mu      sync.Mutex
	index   map[string][]string
	total   int
	ignorer Ignorer
	retry   filesystem.RetryConfig

	isIndexing     atomic.Bool
	filesIndexed   atomic.Int64
	foldersIndexed atomic.Int64
	startedAt      atomic.Value
}

// IndexProgress is a snapshot of the walk currently running, if any.
type IndexProgress struct {
	FilesIndexed   int64     `json:"filesIndexed"`
	FoldersIndexed int64     `json:"foldersIndexed"`
	IsIndexing     bool      `json:"isIndexing"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithIgnore installs an ignore matcher consulted for every entry.
func WithIgnore(ig Ignorer) Option {
	return func(idx *Indexer) {
		idx.ignorer = ig
	}
}

// WithRetryConfig overrides the retry behaviour for directory reads.
func WithRetryConfig(cfg filesystem.RetryConfig) Option {
	return func(idx *Indexer) {
		idx.retry = cfg
	}
}

// New creates an empty Indexer.
func New(opts ...Option) *Indexer {
	idx := &Indexer{
		index: make(map[string][]string),
		retry: filesystem.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.startedAt.Store(time.Time{})
	return idx
}

// walkState is scoped to a single top-level Index call.
type walkState struct {
	visitedDirs map[string]bool
	seenFiles   map[string]bool
	progress    Progress
	count       int
}

// Index walks root to the given depth and returns the number of files
// recorded by this call.
func (idx *Indexer) Index(root string, depth int) int {
	return idx.IndexWithProgress(root, depth, nil)
}

// IndexWithProgress is Index with a per-file progress callback. p may be nil.
func (idx *Indexer) IndexWithProgress(root string, depth int, p Progress) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	metrics.IndexerRunsTotal.Inc()
	if depth == 0 {
		logging.Debug("Index of %s requested with depth 0, nothing to do", root)
		return 0
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		logging.Warn("Cannot resolve library root %s: %v", root, err)
		return 0
	}

	start := time.Now()
	idx.isIndexing.Store(true)
	idx.filesIndexed.Store(0)
	idx.foldersIndexed.Store(0)
	idx.startedAt.Store(start)
	defer idx.isIndexing.Store(false)

	state := &walkState{
		visitedDirs: make(map[string]bool),
		seenFiles:   make(map[string]bool),
		progress:    p,
	}

	canonical, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		logging.Warn("Cannot canonicalize library root %s: %v", absRoot, err)
		metrics.IndexerEntriesSkipped.WithLabelValues("error").Inc()
		return 0
	}
	state.visitedDirs[canonical] = true

	idx.scanDir(state, absRoot, depth)
	idx.total += state.count

	elapsed := time.Since(start)
	metrics.IndexerLastRunDuration.Set(elapsed.Seconds())
	logging.Info("Indexed %d files in %d folders under %s (%v)",
		state.count, idx.foldersIndexed.Load(), absRoot, elapsed.Round(time.Millisecond))

	return state.count
}

func (idx *Indexer) scanDir(state *walkState, dir string, depth int) {
	entries, err := filesystem.ReadDirWithRetry(dir, idx.retry)
	if err != nil {
		logging.Warn("Skipping unreadable directory %s: %v", dir, err)
		metrics.IndexerEntriesSkipped.WithLabelValues("error").Inc()
		return
	}
	idx.foldersIndexed.Add(1)
	metrics.IndexerDirsVisited.Inc()

	next := depth
	if depth > 0 {
		next = depth - 1
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			info, err := filesystem.StatWithRetry(path, idx.retry)
			if err != nil {
				logging.Warn("Skipping dangling link %s: %v", path, err)
				metrics.IndexerEntriesSkipped.WithLabelValues("error").Inc()
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if idx.ignorer != nil && idx.ignorer.Ignore(path, true) {
				metrics.IndexerEntriesSkipped.WithLabelValues("ignored").Inc()
				continue
			}
			if next == 0 {
				continue
			}
			canonical, err := filepath.EvalSymlinks(path)
			if err != nil {
				logging.Warn("Skipping directory %s: %v", path, err)
				metrics.IndexerEntriesSkipped.WithLabelValues("error").Inc()
				continue
			}
			if state.visitedDirs[canonical] {
				logging.Debug("Already visited %s (via %s), not descending", canonical, path)
				metrics.IndexerEntriesSkipped.WithLabelValues("cycle").Inc()
				continue
			}
			state.visitedDirs[canonical] = true
			idx.scanDir(state, path, next)

		case mode.IsRegular():
			if idx.ignorer != nil && idx.ignorer.Ignore(path, false) {
				metrics.IndexerEntriesSkipped.WithLabelValues("ignored").Inc()
				continue
			}
			canonical, err := filepath.EvalSymlinks(path)
			if err != nil {
				logging.Warn("Skipping file %s: %v", path, err)
				metrics.IndexerEntriesSkipped.WithLabelValues("error").Inc()
				continue
			}
			if state.seenFiles[canonical] {
				continue
			}
			state.seenFiles[canonical] = true
			idx.record(state, path)

		default:
			metrics.IndexerEntriesSkipped.WithLabelValues("irregular").Inc()
		}
	}
}

func (idx *Indexer) record(state *walkState, path string) {
	ext := cadtypes.NormalizeExt(filepath.Ext(path))
	idx.index[ext] = append(idx.index[ext], path)
	state.count++
	idx.filesIndexed.Add(1)
	metrics.IndexerFilesIndexed.Inc()

	if state.progress != nil {
		state.progress.FileIndexed(path)
	}
}

// FindWithSuffixes returns the paths recorded under each suffix, concatenated
// in argument order. Suffixes are matched case-insensitively and the leading
// dot is optional. Unknown suffixes contribute nothing.
func (idx *Indexer) FindWithSuffixes(suffixes ...string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []string
	for _, s := range suffixes {
		out = append(out, idx.index[cadtypes.NormalizeExt(s)]...)
	}
	return out
}

// Suffixes returns the number of files per suffix.
func (idx *Indexer) Suffixes() map[string]int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	counts := make(map[string]int, len(idx.index))
	for ext, paths := range idx.index {
		counts[ext] = len(paths)
	}
	return counts
}

// Indexed returns the number of files recorded since creation or the last
// Reset.
func (idx *Indexer) Indexed() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.total
}

// Reset drops everything recorded so far.
func (idx *Indexer) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.index = make(map[string][]string)
	idx.total = 0
}

// GetProgress returns a snapshot of the running walk.
func (idx *Indexer) GetProgress() IndexProgress {
	started, _ := idx.startedAt.Load().(time.Time)
	return IndexProgress{
		FilesIndexed:   idx.filesIndexed.Load(),
		FoldersIndexed: idx.foldersIndexed.Load(),
		IsIndexing:     idx.isIndexing.Load(),
		StartedAt:      started,
	}
}
