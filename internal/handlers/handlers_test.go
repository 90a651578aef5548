package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"cadventory/internal/database"
	"cadventory/internal/indexing"
	"cadventory/internal/library"
	"cadventory/internal/pipeline"
	"cadventory/internal/search"
)

const (
	tankID int64 = 101
	heliID int64 = 202
)

// stubProcessor reports every file as processed. When release is set,
// Process blocks until it is closed.
type stubProcessor struct {
	mu      sync.Mutex
	paths   []string
	release chan struct{}
}

func (s *stubProcessor) Process(ctx context.Context, path string) pipeline.Outcome {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
		}
	}
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	return pipeline.Outcome{Path: path, Status: pipeline.StatusProcessed, ModelID: database.Hash(path)}
}

type testServer struct {
	h      *Handlers
	router *mux.Router
	db     *database.Database
	lib    *library.Library
	proc   *stubProcessor
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, proc *stubProcessor) *testServer {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	files := map[string]string{
		"tank.g":          "tank geometry",
		"heli.g":          "helicopter geometry",
		"parts/bolt.step": "ISO-10303-21;",
		"docs/manual.pdf": "%PDF-1.4",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	lib, err := library.New("armory", root, library.DefaultOptions())
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	db, err := lib.Store(ctx)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	models := []*database.Model{
		{
			ID: tankID, ShortName: "tank", PrimaryFile: "tank.g", FilePath: lib.Abs("tank.g"),
			LibraryName: "armory", Title: "Main Battle Tank", Thumbnail: pngBytes(t),
			IsProcessed: true, IsIncluded: true,
		},
		{
			ID: heliID, ShortName: "heli", PrimaryFile: "heli.g", FilePath: lib.Abs("heli.g"),
			LibraryName: "armory", Title: "Attack Helicopter", IsIncluded: true,
		},
	}
	for _, m := range models {
		if err := db.InsertModel(ctx, m); err != nil {
			t.Fatalf("InsertModel: %v", err)
		}
	}
	objects := []database.Object{
		{Name: "all", ParentObjectID: database.RootParent},
		{Name: "hull", ParentObjectID: database.RootParent, IsSelected: true},
	}
	if _, err := db.ReplaceObjects(ctx, tankID, objects); err != nil {
		t.Fatalf("ReplaceObjects: %v", err)
	}

	idx, err := search.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Rebuild(ctx, db); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if proc == nil {
		proc = &stubProcessor{}
	}
	h := New(lib, db, proc, idx, indexing.DefaultOptions())
	t.Cleanup(func() {
		h.Close()
		idx.Close()
		lib.Close()
	})

	return &testServer{h: h, router: NewRouter(h, DefaultRouterConfig()), db: db, lib: lib, proc: proc}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"GET", "/health", http.StatusOK, `"status":"healthy"`},
		{"GET", "/healthz", http.StatusOK, `"models":2`},
		{"GET", "/livez", http.StatusOK, `"alive"`},
		{"HEAD", "/livez", http.StatusOK, ""},
		{"GET", "/readyz", http.StatusOK, `"ready"`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody == "" && rec.Body.Len() != 0 {
				t.Errorf("expected empty body, got %q", rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHealthCheck_StoreClosed(t *testing.T) {
	s := newTestServer(t, nil)
	s.db.Close()

	rec := s.do(t, "GET", "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decode[HealthResponse](t, rec)
	if resp.Status != statusDegraded || resp.Ready {
		t.Errorf("response = %+v", resp)
	}

	if rec := s.do(t, "GET", "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
}

func TestGetVersion(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, "GET", "/api/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
	if !strings.Contains(rec.Body.String(), `"goVersion"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetLibrary(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, "GET", "/api/library", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[LibraryResponse](t, rec)

	if resp.Name != "armory" || resp.Root != s.lib.Path() {
		t.Errorf("name/root = %q/%q", resp.Name, resp.Root)
	}
	want := map[string]int{"models": 2, "geometry": 3, "images": 0, "documents": 1, "data": 0}
	for k, v := range want {
		if resp.Files[k] != v {
			t.Errorf("Files[%s] = %d, want %d", k, resp.Files[k], v)
		}
	}
	if resp.Stats.Models != 2 || resp.Stats.Processed != 1 {
		t.Errorf("Stats = %+v", resp.Stats)
	}
}

func TestGetFiles(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		category     string
		wantStatus   int
		wantCategory string
		wantCount    int
	}{
		{"models", http.StatusOK, "models", 2},
		{"geometry", http.StatusOK, "geometry", 3},
		{"docs", http.StatusOK, "documents", 1},
		{"images", http.StatusOK, "images", 0},
		{"bogus", http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			rec := s.do(t, "GET", "/api/files/"+tt.category, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			resp := decode[FilesResponse](t, rec)
			if resp.Category != tt.wantCategory || resp.Count != tt.wantCount || len(resp.Files) != tt.wantCount {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestReindex_PicksUpNewFiles(t *testing.T) {
	s := newTestServer(t, nil)
	if err := os.WriteFile(filepath.Join(s.lib.Path(), "truck.g"), []byte("truck"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := s.do(t, "POST", "/api/library/reindex", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[LibraryResponse](t, rec); resp.Files["models"] != 3 {
		t.Errorf("models = %d, want 3", resp.Files["models"])
	}
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, "GET", "/api/nothing-here", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
