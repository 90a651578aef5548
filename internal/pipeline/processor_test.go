package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cadventory/internal/database"
	"cadventory/internal/toolkit"
)

// fakeToolkit records every call and answers from canned data.
type fakeToolkit struct {
	mu sync.Mutex

	titleOut toolkit.Output
	titleErr error
	topsOut  toolkit.Output
	topsErr  error

	// combination name -> lt output; anything else is a primitive
	trees map[string]string

	// nil means every object exists
	exists      map[string]bool
	renders     map[string][]byte
	renderErr   map[string]error
	renderDelay time.Duration

	calls    map[string]int
	rendered []string
}

func newFakeToolkit() *fakeToolkit {
	return &fakeToolkit{
		calls:     make(map[string]int),
		renders:   make(map[string][]byte),
		renderErr: make(map[string]error),
	}
}

func (f *fakeToolkit) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeToolkit) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeToolkit) Title(ctx context.Context, file string) (toolkit.Output, error) {
	f.count("title")
	return f.titleOut, f.titleErr
}

func (f *fakeToolkit) TopObjects(ctx context.Context, file string) (toolkit.Output, error) {
	f.count("tops")
	return f.topsOut, f.topsErr
}

func (f *fakeToolkit) Tree(ctx context.Context, file, object string) (toolkit.Output, error) {
	f.count("tree")
	f.mu.Lock()
	listing, ok := f.trees[object]
	f.mu.Unlock()
	if !ok {
		return toolkit.Output{Combined: object + " is not a combination"}, &toolkit.ExitError{Code: 1}
	}
	return toolkit.Output{Combined: listing}, nil
}

func (f *fakeToolkit) ObjectExists(ctx context.Context, file, object string) (bool, error) {
	f.count("exists")
	if f.exists == nil {
		return true, nil
	}
	return f.exists[object], nil
}

func (f *fakeToolkit) Render(ctx context.Context, file, object, output string) error {
	f.count("render")
	f.mu.Lock()
	f.rendered = append(f.rendered, object)
	data := f.renders[object]
	err := f.renderErr[object]
	f.mu.Unlock()

	time.Sleep(f.renderDelay)
	if data != nil {
		if werr := os.WriteFile(output, data, 0o644); werr != nil {
			return werr
		}
	}
	return err
}

type fixture struct {
	db      *database.Database
	tk      *fakeToolkit
	proc    *Processor
	dir     string
	preview string
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(dir, ".cadventory", "cadventory.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	opts := DefaultOptions()
	opts.LibraryName = "test"
	opts.PreviewDir = filepath.Join(dir, ".cadventory", "previews")
	if mutate != nil {
		mutate(&opts)
	}
	tk := newFakeToolkit()
	return &fixture{db: db, tk: tk, proc: NewProcessor(db, tk, opts), dir: dir, preview: opts.PreviewDir}
}

func (f *fixture) file(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProcess_FallsBackToThirdCandidate(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "tank.g", "tank geometry")
	f.tk.titleOut = toolkit.Output{Stdout: "Tank\n"}
	f.tk.topsOut = toolkit.Output{Combined: "hull/ turret/"}
	f.tk.renders["tank"] = []byte("not really a png")

	out := f.proc.Process(context.Background(), path)

	if out.Status != StatusProcessed {
		t.Fatalf("Status = %v, want %v", out.Status, StatusProcessed)
	}
	if out.Rendered != "tank" || out.Attempts != 3 {
		t.Errorf("Rendered = %q after %d attempts, want tank after 3", out.Rendered, out.Attempts)
	}
	wantOrder := []string{"all", "all.g", "tank"}
	if len(f.tk.rendered) != 3 {
		t.Fatalf("rendered = %v, want %v", f.tk.rendered, wantOrder)
	}
	for i, obj := range wantOrder {
		if f.tk.rendered[i] != obj {
			t.Errorf("render %d = %q, want %q", i, f.tk.rendered[i], obj)
		}
	}

	m, err := f.db.GetModel(context.Background(), out.ModelID)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsProcessed || m.Title != "Tank" || string(m.Thumbnail) != "not really a png" {
		t.Errorf("stored model = %+v", m)
	}
	if m.ShortName != "tank" || m.PrimaryFile != "tank.g" || m.LibraryName != "test" {
		t.Errorf("stored names = %q %q %q", m.ShortName, m.PrimaryFile, m.LibraryName)
	}

	if _, err := os.Stat(filepath.Join(f.preview, "tank.png")); !os.IsNotExist(err) {
		t.Errorf("preview temp file not removed: %v", err)
	}
}

func TestProcess_NoValidCandidates(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "empty.g", "nothing here")
	f.tk.titleOut = toolkit.Output{Stderr: "Empty Model"}
	f.tk.exists = map[string]bool{}

	out := f.proc.Process(context.Background(), path)

	if out.Status != StatusNoPreview {
		t.Fatalf("Status = %v, want %v", out.Status, StatusNoPreview)
	}
	if f.tk.calls["render"] != 0 {
		t.Errorf("render calls = %d, want 0", f.tk.calls["render"])
	}
	m, _ := f.db.GetModel(context.Background(), out.ModelID)
	if !m.IsProcessed || m.Title != "Empty Model" || m.HasThumbnail {
		t.Errorf("stored model = %+v", m)
	}
}

func TestProcess_AllRendersFail(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "broken.g", "broken")
	f.tk.topsOut = toolkit.Output{Combined: "a b"}

	out := f.proc.Process(context.Background(), path)

	if out.Status != StatusNoPreview {
		t.Fatalf("Status = %v, want %v", out.Status, StatusNoPreview)
	}
	// all, all.g, broken, broken.g, broken.c, a, b
	if out.Attempts != 7 {
		t.Errorf("Attempts = %d, want 7", out.Attempts)
	}
	m, _ := f.db.GetModel(context.Background(), out.ModelID)
	if !m.IsProcessed || m.Title != UnknownTitle || m.HasThumbnail {
		t.Errorf("stored model = %+v", m)
	}
}

func TestProcess_TimedOutRenderIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "slow.g", "slow")
	f.tk.renders["all"] = []byte("partial")
	f.tk.renderErr["all"] = toolkit.ErrTimedOut
	f.tk.renders["all.g"] = []byte("complete")

	out := f.proc.Process(context.Background(), path)

	if out.Status != StatusProcessed || out.Rendered != "all.g" {
		t.Fatalf("Outcome = %+v, want all.g rendered", out)
	}
	m, _ := f.db.GetModel(context.Background(), out.ModelID)
	if string(m.Thumbnail) != "complete" {
		t.Errorf("thumbnail = %q, want complete", m.Thumbnail)
	}
}

func TestProcess_SkipsProcessedContent(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "tank.g", "tank geometry")
	f.tk.renders["all"] = []byte("img")

	first := f.proc.Process(context.Background(), path)
	if first.Status != StatusProcessed {
		t.Fatalf("first Status = %v", first.Status)
	}
	calls := f.tk.total()

	second := f.proc.Process(context.Background(), path)
	if second.Status != StatusSkipped {
		t.Errorf("second Status = %v, want %v", second.Status, StatusSkipped)
	}
	if got := f.tk.total(); got != calls {
		t.Errorf("toolkit calls grew from %d to %d on a skipped file", calls, got)
	}
}

func TestProcess_SkipsNoPreviewContent(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "x.g", "x")
	f.tk.exists = map[string]bool{}

	if out := f.proc.Process(context.Background(), path); out.Status != StatusNoPreview {
		t.Fatalf("first Status = %v", out.Status)
	}
	if out := f.proc.Process(context.Background(), path); out.Status != StatusSkipped {
		t.Errorf("second Status = %v, want %v", out.Status, StatusSkipped)
	}
}

func TestProcess_Force(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Force = true })
	path := f.file(t, "tank.g", "tank geometry")
	f.tk.renders["all"] = []byte("img")

	f.proc.Process(context.Background(), path)
	out := f.proc.Process(context.Background(), path)
	if out.Status != StatusProcessed {
		t.Errorf("forced Status = %v, want %v", out.Status, StatusProcessed)
	}
	if f.tk.calls["title"] != 2 {
		t.Errorf("title calls = %d, want 2", f.tk.calls["title"])
	}
}

func TestProcess_IdenticalContentMerged(t *testing.T) {
	f := newFixture(t, nil)
	a := f.file(t, "a.g", "same bytes")
	b := f.file(t, "copies/b.g", "same bytes")
	f.tk.renders["all"] = []byte("img")

	outA := f.proc.Process(context.Background(), a)
	outB := f.proc.Process(context.Background(), b)

	if outA.ModelID != outB.ModelID {
		t.Fatalf("ids differ for identical content: %d vs %d", outA.ModelID, outB.ModelID)
	}
	if outB.Status != StatusSkipped {
		t.Errorf("duplicate Status = %v, want %v", outB.Status, StatusSkipped)
	}
	if n, _ := f.db.CountModels(context.Background(), database.ModelFilter{}); n != 1 {
		t.Errorf("CountModels() = %d, want 1", n)
	}
}

func TestProcess_Unidentified(t *testing.T) {
	f := newFixture(t, nil)

	out := f.proc.Process(context.Background(), filepath.Join(f.dir, "missing.g"))
	if out.Status != StatusUnidentified {
		t.Errorf("Status = %v, want %v", out.Status, StatusUnidentified)
	}
	if f.tk.total() != 0 {
		t.Errorf("toolkit called %d times for an unreadable file", f.tk.total())
	}
	if n, _ := f.db.CountModels(context.Background(), database.ModelFilter{}); n != 0 {
		t.Errorf("CountModels() = %d, want 0", n)
	}
}

func TestProcess_PreviewsDisabled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PreviewsEnabled = false })
	path := f.file(t, "tank.g", "tank")
	f.tk.topsOut = toolkit.Output{Combined: "hull"}

	out := f.proc.Process(context.Background(), path)
	if out.Status != StatusNoPreview {
		t.Errorf("Status = %v, want %v", out.Status, StatusNoPreview)
	}
	if f.tk.calls["exists"] != 0 || f.tk.calls["render"] != 0 {
		t.Errorf("calls = %v, want no validation or render", f.tk.calls)
	}
	objs, _ := f.db.GetObjectsForModel(context.Background(), out.ModelID)
	if len(objs) != 1 || objs[0].Name != "hull" {
		t.Errorf("objects = %+v", objs)
	}
}

func TestProcess_StoresTopObjects(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "tank.g", "tank")
	f.tk.topsOut = toolkit.Output{Combined: "all.g/  hull\\ tur$ret"}
	f.tk.exists = map[string]bool{"hull": true}
	f.tk.renders["hull"] = []byte("img")

	out := f.proc.Process(context.Background(), path)
	if out.Rendered != "hull" {
		t.Fatalf("Rendered = %q, want hull", out.Rendered)
	}

	objs, err := f.db.GetObjectsForModel(context.Background(), out.ModelID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"all.g", "hull", "turret"}
	if len(objs) != len(want) {
		t.Fatalf("objects = %+v", objs)
	}
	for i, o := range objs {
		if o.Name != want[i] || !o.IsRoot() {
			t.Errorf("object %d = %+v, want root %q", i, o, want[i])
		}
		if o.IsSelected != (o.Name == "hull") {
			t.Errorf("object %q IsSelected = %v", o.Name, o.IsSelected)
		}
	}
}

func TestProcess_ResizesLargeThumbnails(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ThumbnailSize = 64 })
	path := f.file(t, "big.g", "big")

	img := image.NewRGBA(image.Rect(0, 0, 256, 128))
	for x := 0; x < 256; x++ {
		img.Set(x, x%128, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	f.tk.renders["all"] = buf.Bytes()

	out := f.proc.Process(context.Background(), path)
	m, _ := f.db.GetModel(context.Background(), out.ModelID)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(m.Thumbnail))
	if err != nil {
		t.Fatalf("stored thumbnail does not decode: %v", err)
	}
	if format != "png" || cfg.Width != 64 || cfg.Height != 32 {
		t.Errorf("thumbnail = %s %dx%d, want png 64x32", format, cfg.Width, cfg.Height)
	}
}

func TestProcess_OnlyStemValidates(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "tank.g", "tank geometry")
	f.tk.exists = map[string]bool{"tank": true}
	f.tk.renders["tank"] = []byte("img")

	out := f.proc.Process(context.Background(), path)

	if out.Status != StatusProcessed || out.Rendered != "tank" {
		t.Fatalf("Outcome = %+v, want tank rendered", out)
	}
	if len(f.tk.rendered) != 1 || f.tk.rendered[0] != "tank" {
		t.Errorf("rendered = %v, want [tank]", f.tk.rendered)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
}

func TestProcess_MetadataFailuresIgnoreOutput(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "timed out", err: toolkit.ErrTimedOut},
		{name: "spawn failed", err: toolkit.ErrSpawnFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(o *Options) { o.PreviewsEnabled = false })
			path := f.file(t, "tank.g", "tank geometry")
			f.tk.titleOut = toolkit.Output{Stdout: "partial"}
			f.tk.titleErr = tt.err
			f.tk.topsOut = toolkit.Output{Combined: "half_written"}
			f.tk.topsErr = tt.err

			out := f.proc.Process(context.Background(), path)

			if out.Title != UnknownTitle || len(out.Objects) != 0 {
				t.Errorf("Outcome title %q objects %v, want %q and none", out.Title, out.Objects, UnknownTitle)
			}
			m, _ := f.db.GetModel(context.Background(), out.ModelID)
			if m.Title != UnknownTitle || !m.IsProcessed {
				t.Errorf("stored model = %+v", m)
			}
			objs, _ := f.db.GetObjectsForModel(context.Background(), out.ModelID)
			if len(objs) != 0 {
				t.Errorf("objects = %+v, want none", objs)
			}
		})
	}
}

func TestProcess_NonZeroTitleExitKeepsOutput(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PreviewsEnabled = false })
	path := f.file(t, "tank.g", "tank geometry")
	f.tk.titleOut = toolkit.Output{Stderr: "Tank Assembly\n"}
	f.tk.titleErr = &toolkit.ExitError{Code: 1}

	if out := f.proc.Process(context.Background(), path); out.Title != "Tank Assembly" {
		t.Errorf("Title = %q, want Tank Assembly", out.Title)
	}
}

func TestProcess_StoresObjectHierarchy(t *testing.T) {
	f := newFixture(t, nil)
	path := f.file(t, "tank.g", "tank geometry")
	f.tk.topsOut = toolkit.Output{Combined: "all/ spare.s"}
	f.tk.trees = map[string]string{
		"all": "{u hull.r} {u turret.c}",
		// hull.r already hangs off all
		"turret.c": "{u gun.r} {- hull.r}",
	}
	f.tk.exists = map[string]bool{"all": true}
	f.tk.renders["all"] = []byte("img")

	out := f.proc.Process(context.Background(), path)
	if out.Rendered != "all" {
		t.Fatalf("Rendered = %q, want all", out.Rendered)
	}

	objs, err := f.db.GetObjectsForModel(context.Background(), out.ModelID)
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]int64, len(objs))
	for _, o := range objs {
		byName[o.Name] = o.ObjectID
	}
	want := []struct {
		name     string
		parent   string
		selected bool
	}{
		{name: "all", selected: true},
		{name: "spare.s"},
		{name: "hull.r", parent: "all"},
		{name: "turret.c", parent: "all"},
		{name: "gun.r", parent: "turret.c"},
	}
	if len(objs) != len(want) {
		t.Fatalf("objects = %+v", objs)
	}
	for i, w := range want {
		o := objs[i]
		if o.Name != w.name || o.IsSelected != w.selected {
			t.Errorf("object %d = %+v, want %q selected=%v", i, o, w.name, w.selected)
		}
		if w.parent == "" {
			if !o.IsRoot() {
				t.Errorf("%s parent = %d, want root", o.Name, o.ParentObjectID)
			}
		} else if o.ParentObjectID != byName[w.parent] {
			t.Errorf("%s parent = %d, want %s (%d)", o.Name, o.ParentObjectID, w.parent, byName[w.parent])
		}
	}
}

func TestProcess_ConcurrentIdenticalContent(t *testing.T) {
	f := newFixture(t, nil)
	a := f.file(t, "a.g", "same bytes")
	b := f.file(t, "sub/b.g", "same bytes")
	f.tk.exists = map[string]bool{"all": true}
	f.tk.renders["all"] = []byte("img")
	f.tk.renderDelay = 100 * time.Millisecond

	var outcomes []Outcome
	sum := NewPool(f.proc, 2).Run(context.Background(), []string{a, b}, func(o Outcome) {
		outcomes = append(outcomes, o)
	})

	if sum.Processed != 1 || sum.Skipped != 1 {
		t.Fatalf("Summary = %+v, want one processed and one skipped", sum)
	}
	if n := f.tk.calls["render"]; n != 1 {
		t.Errorf("render calls = %d, want 1", n)
	}
	if n := f.tk.calls["title"]; n != 1 {
		t.Errorf("title calls = %d, want 1", n)
	}

	var owner string
	for _, o := range outcomes {
		if o.Status == StatusProcessed {
			owner = o.Path
		}
	}
	m, err := f.db.GetModel(context.Background(), outcomes[0].ModelID)
	if err != nil {
		t.Fatal(err)
	}
	if m.FilePath != owner {
		t.Errorf("FilePath = %q, want the processed path %q", m.FilePath, owner)
	}
}
