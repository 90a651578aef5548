package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cadventory/internal/cadtypes"
	"cadventory/internal/database"
	"cadventory/internal/ignore"
	"cadventory/internal/indexer"
	"cadventory/internal/logging"
	"cadventory/internal/pipeline"
)

const (
	// HiddenDirName holds everything the library writes.
	HiddenDirName = ".cadventory"
	// DatabaseFile is the metadata store inside the hidden directory.
	DatabaseFile = "cadventory.db"
	// PreviewDirName receives render output before it is absorbed.
	PreviewDirName = "previews"
)

// Options configures a Library.
type Options struct {
	// Depth bounds the walk; negative is unbounded, 0 indexes nothing.
	Depth int
	// IgnorePatterns are doublestar globs applied on top of the
	// .cadventoryignore file.
	IgnorePatterns []string
}

// DefaultOptions indexes the whole tree.
func DefaultOptions() Options {
	return Options{Depth: -1}
}

// Library is one catalog root.
type Library struct {
	root     string
	hidden   string
	opts     Options
	manifest *Manifest

	matcher *ignore.Matcher
	idx     *indexer.Indexer

	indexMu sync.Mutex
	indexed bool

	storeMu sync.Mutex
	db      *database.Database
}

// New opens the library rooted at root, creating its hidden directory and
// manifest if needed. An empty name falls back to the manifest's name and
// then to the root's base name.
func New(name, root string, opts Options) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve library root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", abs)
	}

	hidden := filepath.Join(abs, HiddenDirName)
	if err := os.MkdirAll(hidden, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", hidden, err)
	}

	manifest, err := loadOrCreateManifest(hidden, abs, name)
	if err != nil {
		return nil, fmt.Errorf("library manifest: %w", err)
	}

	matcher := ignore.NewMatcher(ignore.Options{
		RootDir:        abs,
		Patterns:       opts.IgnorePatterns,
		AlwaysSkipDirs: []string{HiddenDirName},
	})

	logging.Debug("Opened library %q at %s", manifest.Name, abs)
	return &Library{
		root:     abs,
		hidden:   hidden,
		opts:     opts,
		manifest: manifest,
		matcher:  matcher,
		idx:      indexer.New(indexer.WithIgnore(matcher)),
	}, nil
}

// Name returns the library's display name.
func (l *Library) Name() string { return l.manifest.Name }

// Path returns the absolute root directory.
func (l *Library) Path() string { return l.root }

// HiddenDir returns <root>/.cadventory.
func (l *Library) HiddenDir() string { return l.hidden }

// PreviewDir returns the directory render output is written to.
func (l *Library) PreviewDir() string { return filepath.Join(l.hidden, PreviewDirName) }

// DatabasePath returns the metadata store location.
func (l *Library) DatabasePath() string { return filepath.Join(l.hidden, DatabaseFile) }

// Manifest returns a copy of the library manifest.
func (l *Library) Manifest() Manifest { return *l.manifest }

// Indexer exposes the underlying indexer, mostly for progress reporting.
func (l *Library) Indexer() *indexer.Indexer { return l.idx }

// IndexFiles discards the current index and walks the root again. The
// ignore file is re-read first.
func (l *Library) IndexFiles() int {
	return l.IndexFilesWithProgress(nil)
}

// IndexFilesWithProgress is IndexFiles with a per-file callback.
func (l *Library) IndexFilesWithProgress(p indexer.Progress) int {
	l.indexMu.Lock()
	defer l.indexMu.Unlock()

	l.matcher.Reload()
	l.idx.Reset()
	n := l.idx.IndexWithProgress(l.root, l.opts.Depth, p)
	l.indexed = true
	return n
}

func (l *Library) ensureIndexed() {
	l.indexMu.Lock()
	defer l.indexMu.Unlock()
	if l.indexed {
		return
	}
	l.idx.Index(l.root, l.opts.Depth)
	l.indexed = true
}

// Files returns the root-relative paths in a category, de-duplicated, in
// discovery order. The root is indexed on first use.
func (l *Library) Files(c cadtypes.Category) []string {
	exts := cadtypes.Extensions(c)
	if exts == nil {
		return nil
	}
	l.ensureIndexed()
	return l.relative(l.idx.FindWithSuffixes(exts...))
}

// Models returns the native geometry files.
func (l *Library) Models() []string {
	l.ensureIndexed()
	return l.relative(l.idx.FindWithSuffixes(cadtypes.NativeExtension))
}

// Geometry returns native and third-party geometry files.
func (l *Library) Geometry() []string { return l.Files(cadtypes.CategoryGeometry) }

// Images returns image files.
func (l *Library) Images() []string { return l.Files(cadtypes.CategoryImage) }

// Documents returns document files.
func (l *Library) Documents() []string { return l.Files(cadtypes.CategoryDocument) }

// Data returns structured data files.
func (l *Library) Data() []string { return l.Files(cadtypes.CategoryData) }

// ModelPaths returns the absolute paths of the native geometry files.
func (l *Library) ModelPaths() []string {
	l.ensureIndexed()
	return dedupe(l.idx.FindWithSuffixes(cadtypes.NativeExtension))
}

// Abs resolves a root-relative path.
func (l *Library) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.root, filepath.FromSlash(rel))
}

func (l *Library) relative(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			rel = p
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, rel)
	}
	return out
}

func dedupe(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Store returns the library's metadata store, opening it on first call.
// A failed open is retried by the next call.
func (l *Library) Store(ctx context.Context) (*database.Database, error) {
	l.storeMu.Lock()
	defer l.storeMu.Unlock()

	if l.db != nil {
		return l.db, nil
	}
	db, err := database.New(ctx, l.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store for library %q: %w", l.Name(), err)
	}
	l.db = db
	return db, nil
}

// LoadResult summarizes a LoadDatabase pass.
type LoadResult struct {
	Files        int              `json:"files"`
	Unidentified int              `json:"unidentified"`
	Existing     int              `json:"existing"`
	Inserted     int              `json:"inserted"`
	Summary      pipeline.Summary `json:"summary"`
}

// LoadDatabase walks the native geometry files and, for every file whose
// content is not yet in the store, inserts a stub model and runs proc on it
// before moving on. Files whose content is already known are left alone.
func (l *Library) LoadDatabase(ctx context.Context, proc pipeline.FileProcessor) (LoadResult, error) {
	start := time.Now()
	db, err := l.Store(ctx)
	if err != nil {
		return LoadResult{}, err
	}

	paths := l.ModelPaths()
	res := LoadResult{Files: len(paths)}
	res.Summary.Total = len(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			res.Summary.NotStarted = res.Files - res.Unidentified - res.Existing - res.Inserted
			res.Summary.Duration = time.Since(start)
			return res, err
		}

		id := database.Hash(path)
		if id == 0 {
			logging.Warn("Cannot identify %s, not cataloged", path)
			res.Unidentified++
			res.Summary.Unidentified++
			continue
		}

		exists, err := db.ModelExists(ctx, id)
		if err != nil {
			return res, fmt.Errorf("check model %d: %w", id, err)
		}
		if exists {
			res.Existing++
			res.Summary.Skipped++
			continue
		}

		base := filepath.Base(path)
		stub := &database.Model{
			ID:          id,
			ShortName:   base[:len(base)-len(filepath.Ext(base))],
			PrimaryFile: base,
			FilePath:    path,
			LibraryName: l.Name(),
			IsIncluded:  true,
		}
		if err := db.InsertModel(ctx, stub); err != nil {
			return res, fmt.Errorf("insert model for %s: %w", path, err)
		}
		res.Inserted++

		if proc != nil {
			res.Summary.Add(proc.Process(ctx, path))
		}
	}

	res.Summary.Duration = time.Since(start)
	logging.Info("Loaded library %q: %d files, %d new, %d already known, %d unidentified",
		l.Name(), res.Files, res.Inserted, res.Existing, res.Unidentified)
	return res, nil
}

// Close closes the store if it was opened.
func (l *Library) Close() error {
	l.storeMu.Lock()
	defer l.storeMu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
