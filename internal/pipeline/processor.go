package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cadventory/internal/database"
	"cadventory/internal/logging"
	"cadventory/internal/metrics"
	"cadventory/internal/toolkit"
)

// UnknownTitle is stored when the toolkit reports no title.
const UnknownTitle = "Unknown"

// maxObjects bounds the object hierarchy stored for one model.
const maxObjects = 4096

// Status is the final state of one Process call.
type Status string

const (
	// StatusProcessed means a thumbnail was rendered and stored.
	StatusProcessed Status = "processed"
	// StatusNoPreview means metadata was stored but no render succeeded.
	StatusNoPreview Status = "no_preview"
	// StatusSkipped means the content was already processed.
	StatusSkipped Status = "skipped"
	// StatusUnidentified means the file could not be hashed.
	StatusUnidentified Status = "unidentified"
	// StatusFailed means the store rejected the result.
	StatusFailed Status = "failed"
)

// Toolkit is the subset of the external toolkit the processor drives.
type Toolkit interface {
	Title(ctx context.Context, file string) (toolkit.Output, error)
	TopObjects(ctx context.Context, file string) (toolkit.Output, error)
	Tree(ctx context.Context, file, object string) (toolkit.Output, error)
	ObjectExists(ctx context.Context, file, object string) (bool, error)
	Render(ctx context.Context, file, object, output string) error
}

// FileProcessor processes one file. Process must not panic or return
// errors; every failure is reported in the Outcome.
type FileProcessor interface {
	Process(ctx context.Context, path string) Outcome
}

// Outcome describes what happened to one file.
type Outcome struct {
	Path     string        `json:"path"`
	ModelID  int64         `json:"modelId"`
	Status   Status        `json:"status"`
	Title    string        `json:"title,omitempty"`
	Objects  []string      `json:"objects,omitempty"`
	Rendered string        `json:"rendered,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Options configures a Processor.
type Options struct {
	LibraryName     string
	PreviewDir      string
	ImageFormat     string
	ThumbnailSize   int
	PreviewsEnabled bool
	// Force reprocesses content that is already marked processed.
	Force bool
}

// DefaultOptions returns PNG previews of at most 512 px.
func DefaultOptions() Options {
	return Options{
		ImageFormat:     "png",
		ThumbnailSize:   512,
		PreviewsEnabled: true,
	}
}

// Processor runs the per-file state machine against a store and a toolkit.
// It is safe for concurrent use.
type Processor struct {
	db   *database.Database
	tk   Toolkit
	opts Options

	previewLocks sync.Map // preview path -> *sync.Mutex
	modelLocks   sync.Map // model id -> *sync.Mutex
}

// NewProcessor creates a Processor.
func NewProcessor(db *database.Database, tk Toolkit, opts Options) *Processor {
	if opts.ImageFormat == "" {
		opts.ImageFormat = "png"
	}
	opts.ImageFormat = strings.TrimPrefix(strings.ToLower(opts.ImageFormat), ".")
	return &Processor{db: db, tk: tk, opts: opts}
}

// Options returns the processor configuration.
func (p *Processor) Options() Options {
	return p.opts
}

// Process implements FileProcessor.
func (p *Processor) Process(ctx context.Context, path string) (out Outcome) {
	start := time.Now()
	out = Outcome{Path: path}
	defer func() {
		out.Duration = time.Since(start)
		metrics.PipelineFilesTotal.WithLabelValues(string(out.Status)).Inc()
		if out.Status == StatusProcessed || out.Status == StatusNoPreview {
			metrics.PipelineFileDuration.Observe(out.Duration.Seconds())
			metrics.PipelineCandidatesTried.Observe(float64(out.Attempts))
		}
	}()

	// Work on a file, once started, is never preempted.
	ctx = context.WithoutCancel(ctx)

	id := database.Hash(path)
	if id == 0 {
		logging.Warn("Cannot identify %s, skipping", path)
		out.Status = StatusUnidentified
		return out
	}
	out.ModelID = id

	// Identical content reached through several paths is processed once.
	mu, _ := p.modelLocks.LoadOrStore(id, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	model, err := p.db.GetModel(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		model = p.newModel(id, path)
	case err != nil:
		logging.Error("Failed to load model %d for %s: %v", id, path, err)
		out.Status = StatusFailed
		out.Err = err
		return out
	case model.IsProcessed && !p.opts.Force:
		logging.Debug("Skipping %s, content already processed as model %d", path, id)
		out.Status = StatusSkipped
		out.Title = model.Title
		return out
	}

	titleOut, err := p.tk.Title(ctx, path)
	if err != nil {
		logging.Debug("Title lookup failed for %s: %v", path, err)
	}
	model.Title = UnknownTitle
	if !untrusted(err) {
		model.Title = extractTitle(titleOut.Stdout, titleOut.Stderr)
	}
	out.Title = model.Title

	topsOut, err := p.tk.TopObjects(ctx, path)
	if err != nil {
		logging.Debug("Top-level object listing failed for %s: %v", path, err)
	}
	if !untrusted(err) {
		out.Objects = parseTopObjects(topsOut.Combined)
	}

	out.Status = StatusNoPreview
	model.Thumbnail = nil
	if p.opts.PreviewsEnabled {
		valid := p.validCandidates(ctx, path, candidateObjects(path, out.Objects))
		if len(valid) == 0 {
			logging.Info("No renderable object found in %s", path)
		} else if thumb, obj, attempts := p.render(ctx, path, model.ShortName, valid); thumb != nil {
			model.Thumbnail = thumb
			out.Rendered = obj
			out.Attempts = attempts
			out.Status = StatusProcessed
		} else {
			out.Attempts = attempts
			logging.Warn("All %d render attempts failed for %s", attempts, path)
		}
	}
	model.IsProcessed = true

	if err := p.db.SaveModel(ctx, model); err != nil {
		logging.Error("Failed to save model %d for %s: %v", id, path, err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	objs := p.objectTree(ctx, path, out.Objects)
	for i := range objs {
		objs[i].IsSelected = objs[i].Name == out.Rendered
	}
	if _, err := p.db.ReplaceObjects(ctx, id, objs); err != nil {
		logging.Error("Failed to store objects of %s: %v", path, err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	logging.Debug("Processed %s as model %d: %s (title %q, rendered %q)", path, id, out.Status, out.Title, out.Rendered)
	return out
}

func (p *Processor) newModel(id int64, path string) *database.Model {
	base := filepath.Base(path)
	return &database.Model{
		ID:          id,
		ShortName:   strings.TrimSuffix(base, filepath.Ext(base)),
		PrimaryFile: base,
		FilePath:    path,
		LibraryName: p.opts.LibraryName,
		IsIncluded:  true,
	}
}

// untrusted reports whether a toolkit error leaves its output unusable.
// A non-zero exit still carries the tool's answer.
func untrusted(err error) bool {
	return errors.Is(err, toolkit.ErrTimedOut) || errors.Is(err, toolkit.ErrSpawnFailed)
}

// objectTree expands the top-level objects breadth first into their
// combination members. Each name is stored once, under the first
// combination that lists it, with parents referenced by index.
func (p *Processor) objectTree(ctx context.Context, path string, tops []string) []database.Object {
	objs := make([]database.Object, 0, len(tops))
	seen := make(map[string]bool, len(tops))
	for _, name := range tops {
		if seen[name] {
			continue
		}
		seen[name] = true
		objs = append(objs, database.Object{Name: name, ParentObjectID: database.RootParent})
	}

	for i := 0; i < len(objs); i++ {
		treeOut, err := p.tk.Tree(ctx, path, objs[i].Name)
		if err != nil {
			// Primitives are not combinations and exit non-zero.
			continue
		}
		for _, child := range parseTree(treeOut.Combined) {
			if seen[child] {
				continue
			}
			if len(objs) >= maxObjects {
				logging.Warn("Object hierarchy of %s truncated at %d objects", path, maxObjects)
				return objs
			}
			seen[child] = true
			objs = append(objs, database.Object{Name: child, ParentObjectID: database.ParentRef(i)})
		}
	}
	return objs
}

// validCandidates keeps, in order, the candidates the toolkit confirms.
func (p *Processor) validCandidates(ctx context.Context, path string, candidates []string) []string {
	var valid []string
	for _, c := range candidates {
		ok, err := p.tk.ObjectExists(ctx, path, c)
		if err != nil {
			logging.Debug("Validation of %s in %s failed: %v", c, path, err)
			continue
		}
		if ok {
			valid = append(valid, c)
		}
	}
	return valid
}

// render tries each object in turn and returns the first non-empty image.
func (p *Processor) render(ctx context.Context, path, shortName string, objects []string) ([]byte, string, int) {
	if err := os.MkdirAll(p.opts.PreviewDir, 0o755); err != nil {
		logging.Error("Cannot create preview directory %s: %v", p.opts.PreviewDir, err)
		return nil, "", 0
	}
	preview := filepath.Join(p.opts.PreviewDir, shortName+"."+p.opts.ImageFormat)

	mu, _ := p.previewLocks.LoadOrStore(preview, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()
	defer os.Remove(preview)

	attempts := 0
	for _, obj := range objects {
		attempts++
		_ = os.Remove(preview)

		err := p.tk.Render(ctx, path, obj, preview)
		if errors.Is(err, toolkit.ErrTimedOut) {
			logging.Debug("Render of %s in %s timed out", obj, path)
			continue
		}
		data, readErr := os.ReadFile(preview)
		if readErr != nil || len(data) == 0 {
			logging.Debug("Render of %s in %s produced no image (err=%v)", obj, path, err)
			continue
		}
		return normalizeThumbnail(data, p.opts.ThumbnailSize, p.opts.ImageFormat), obj, attempts
	}
	return nil, "", attempts
}
