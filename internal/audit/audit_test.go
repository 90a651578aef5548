package audit

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/crypto/blake2b"

	"cadventory/internal/filesystem"
	"cadventory/internal/library"
)

func newLibrary(t *testing.T, files map[string]string) *library.Library {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		write(t, root, name, content)
	}
	lib, err := library.New("audit", root, library.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func write(t *testing.T, root, name, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.g")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	want := blake2b.Sum256([]byte("abc"))
	sum, size, err := Checksum(path, filesystem.DefaultRetryConfig())
	if err != nil {
		t.Fatal(err)
	}
	if sum != hex.EncodeToString(want[:]) || size != 3 {
		t.Errorf("Checksum() = %s, %d", sum, size)
	}

	if _, _, err := Checksum(filepath.Join(dir, "missing"), filesystem.RetryConfig{}); err == nil {
		t.Error("Checksum() of a missing file succeeded")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	lib := newLibrary(t, map[string]string{
		"tank.g":          "tank v1",
		"tank.stl":        "mesh",
		"docs/manual.pdf": "manual",
		"img/tank.png":    "png",
		"data/bom.csv":    "a,b",
		"notes.unknown":   "ignored",
	})
	ctx := context.Background()

	first, err := Run(ctx, lib, Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	wantAll := []string{"data/bom.csv", "docs/manual.pdf", "img/tank.png", "tank.g", "tank.stl"}
	if !reflect.DeepEqual(first.Added, wantAll) {
		t.Errorf("first Added = %v, want %v", first.Added, wantAll)
	}
	if first.Clean() {
		t.Error("first run reported clean")
	}

	second, err := Run(ctx, lib, Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Clean() || !reflect.DeepEqual(second.Unchanged, wantAll) {
		t.Errorf("second run = %+v, want everything unchanged", second)
	}

	write(t, lib.Path(), "tank.g", "tank v2")
	write(t, lib.Path(), "img/turret.png", "new")
	if err := os.Remove(filepath.Join(lib.Path(), "data", "bom.csv")); err != nil {
		t.Fatal(err)
	}

	third, err := Run(ctx, lib, Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name string
		got  []string
		want []string
	}{
		{"Added", third.Added, []string{"img/turret.png"}},
		{"Changed", third.Changed, []string{"tank.g"}},
		{"Missing", third.Missing, []string{"data/bom.csv"}},
		{"Unchanged", third.Unchanged, []string{"docs/manual.pdf", "img/tank.png", "tank.stl"}},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	db, _ := lib.Store(ctx)
	stored, err := db.GetFileChecksums(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stored["data/bom.csv"]; ok {
		t.Error("missing file still has a stored checksum")
	}
	if len(stored) != 5 {
		t.Errorf("stored %d checksums, want 5", len(stored))
	}
}

func TestRun_DryRun(t *testing.T) {
	lib := newLibrary(t, map[string]string{"a.g": "a"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		report, err := Run(ctx, lib, Options{DryRun: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Added) != 1 {
			t.Errorf("run %d Added = %v, want [a.g]", i, report.Added)
		}
	}

	db, _ := lib.Store(ctx)
	stored, _ := db.GetFileChecksums(ctx)
	if len(stored) != 0 {
		t.Errorf("dry run stored %d checksums", len(stored))
	}
}

func TestRun_Cancelled(t *testing.T) {
	lib := newLibrary(t, map[string]string{"a.g": "a"})
	if _, err := lib.Store(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, lib, Options{}); err == nil {
		t.Error("Run() with cancelled context succeeded")
	}
}
