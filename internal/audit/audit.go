package audit

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"cadventory/internal/cadtypes"
	"cadventory/internal/database"
	"cadventory/internal/filesystem"
	"cadventory/internal/library"
	"cadventory/internal/logging"
	"cadventory/internal/metrics"
	"cadventory/internal/workers"
)

// Categories are audited in this order.
var Categories = []cadtypes.Category{
	cadtypes.CategoryGeometry,
	cadtypes.CategoryImage,
	cadtypes.CategoryDocument,
	cadtypes.CategoryData,
}

// Options configures a run.
type Options struct {
	// Workers bounds concurrent hashing; 0 picks workers.ForIO(8).
	Workers int
	// DryRun reports differences without updating the store.
	DryRun bool
	Retry  filesystem.RetryConfig
}

// Report lists root-relative paths per result, each sorted.
type Report struct {
	Added     []string          `json:"added"`
	Changed   []string          `json:"changed"`
	Missing   []string          `json:"missing"`
	Unchanged []string          `json:"unchanged"`
	Errors    map[string]string `json:"errors,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// Clean reports whether nothing was added, changed, missing or unreadable.
func (r *Report) Clean() bool {
	return len(r.Added) == 0 && len(r.Changed) == 0 && len(r.Missing) == 0 && len(r.Errors) == 0
}

type hashed struct {
	rel  string
	sum  string
	size int64
	err  error
}

// Run re-indexes lib and audits every categorized file.
func Run(ctx context.Context, lib *library.Library, opts Options) (*Report, error) {
	start := time.Now()
	if opts.Workers <= 0 {
		opts.Workers = workers.ForIO(8)
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialBackoff == 0 {
		opts.Retry = filesystem.DefaultRetryConfig()
	}

	db, err := lib.Store(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := db.GetFileChecksums(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checksums: %w", err)
	}

	lib.IndexFiles()
	files := collectFiles(lib)
	logging.Info("Auditing %d files in library %q with %d workers", len(files), lib.Name(), opts.Workers)

	results := hashAll(ctx, lib, files, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{}
	now := time.Now()
	var upserts []database.FileChecksum
	present := make(map[string]bool, len(results))

	for _, h := range results {
		present[h.rel] = true
		if h.err != nil {
			if report.Errors == nil {
				report.Errors = make(map[string]string)
			}
			report.Errors[h.rel] = h.err.Error()
			metrics.AuditFilesTotal.WithLabelValues("error").Inc()
			continue
		}

		prev, known := stored[h.rel]
		switch {
		case !known:
			report.Added = append(report.Added, h.rel)
			metrics.AuditFilesTotal.WithLabelValues("added").Inc()
		case prev.Checksum != h.sum:
			report.Changed = append(report.Changed, h.rel)
			metrics.AuditFilesTotal.WithLabelValues("changed").Inc()
		default:
			report.Unchanged = append(report.Unchanged, h.rel)
			metrics.AuditFilesTotal.WithLabelValues("unchanged").Inc()
		}
		upserts = append(upserts, database.FileChecksum{Path: h.rel, Checksum: h.sum, Size: h.size, CheckedAt: now})
	}

	for path := range stored {
		if !present[path] {
			report.Missing = append(report.Missing, path)
			metrics.AuditFilesTotal.WithLabelValues("missing").Inc()
		}
	}

	sort.Strings(report.Added)
	sort.Strings(report.Changed)
	sort.Strings(report.Missing)
	sort.Strings(report.Unchanged)

	if !opts.DryRun {
		if err := persist(ctx, db, upserts, report.Missing); err != nil {
			return report, fmt.Errorf("record checksums: %w", err)
		}
	}

	report.Duration = time.Since(start)
	logging.Info("Audit of %q finished in %v: %d added, %d changed, %d missing, %d unchanged, %d unreadable",
		lib.Name(), report.Duration.Round(time.Millisecond), len(report.Added), len(report.Changed),
		len(report.Missing), len(report.Unchanged), len(report.Errors))
	return report, nil
}

func persist(ctx context.Context, db *database.Database, upserts []database.FileChecksum, missing []string) (err error) {
	b, err := db.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer func() { err = db.EndBatch(b, err) }()

	for _, fc := range upserts {
		if err = b.UpsertFileChecksum(fc); err != nil {
			return err
		}
	}
	for _, path := range missing {
		if err = b.DeleteFileChecksum(path); err != nil {
			return err
		}
	}
	return nil
}

// collectFiles returns the root-relative paths of every audited category,
// without repeats.
func collectFiles(lib *library.Library) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range Categories {
		for _, rel := range lib.Files(c) {
			if !seen[rel] {
				seen[rel] = true
				out = append(out, rel)
			}
		}
	}
	return out
}

func hashAll(ctx context.Context, lib *library.Library, files []string, opts Options) []hashed {
	jobs := make(chan int)
	results := make([]hashed, len(files))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				rel := files[j]
				sum, size, err := Checksum(lib.Abs(rel), opts.Retry)
				results[j] = hashed{rel: rel, sum: sum, size: size, err: err}
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// Checksum returns the hex BLAKE2b-256 digest and size of a file.
func Checksum(path string, retry filesystem.RetryConfig) (string, int64, error) {
	f, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
