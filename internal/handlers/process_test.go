package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cadventory/internal/audit"
)

func waitIdle(t *testing.T, s *testServer) ProcessStatus {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		st := decode[ProcessStatus](t, s.do(t, "GET", "/api/process", ""))
		if !st.Running {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("processing run did not finish")
	return ProcessStatus{}
}

func TestProcessRun(t *testing.T) {
	proc := &stubProcessor{release: make(chan struct{})}
	s := newTestServer(t, proc)

	rec := s.do(t, "POST", "/api/process", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	started := decode[ProcessStatus](t, rec)
	if !started.Running || started.RunID == "" {
		t.Errorf("start response = %+v", started)
	}

	if rec := s.do(t, "POST", "/api/process", ""); rec.Code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", rec.Code)
	}
	if rec := s.do(t, "POST", "/api/audit", ""); rec.Code != http.StatusConflict {
		t.Errorf("audit during run = %d, want 409", rec.Code)
	}

	close(proc.release)
	st := waitIdle(t, s)

	if st.LastSummary == nil {
		t.Fatal("no summary after the run")
	}
	if st.LastSummary.RunID != started.RunID {
		t.Errorf("summary run id = %q, want %q", st.LastSummary.RunID, started.RunID)
	}
	if st.LastSummary.Processed != 2 {
		t.Errorf("Processed = %d, want 2", st.LastSummary.Processed)
	}
	if len(proc.paths) != 2 {
		t.Errorf("processed paths = %v", proc.paths)
	}
}

func TestProcessRun_SkipsExcludedModels(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := s.do(t, "POST", "/api/selection", `{"ids":[202],"field":"included","value":false}`); rec.Code != http.StatusOK {
		t.Fatalf("exclude = %d", rec.Code)
	}

	if rec := s.do(t, "POST", "/api/process", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("start = %d", rec.Code)
	}
	st := waitIdle(t, s)

	if st.LastSummary == nil || st.LastSummary.Processed != 1 {
		t.Fatalf("summary = %+v", st.LastSummary)
	}
	if len(s.proc.paths) != 1 || filepath.Base(s.proc.paths[0]) != "tank.g" {
		t.Errorf("processed paths = %v", s.proc.paths)
	}
}

func TestStopProcess(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := s.do(t, "DELETE", "/api/process", ""); rec.Code != http.StatusConflict {
		t.Errorf("stop without run = %d, want 409", rec.Code)
	}

	proc := &stubProcessor{release: make(chan struct{})}
	s = newTestServer(t, proc)
	if rec := s.do(t, "POST", "/api/process", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("start = %d", rec.Code)
	}
	if rec := s.do(t, "DELETE", "/api/process", ""); rec.Code != http.StatusAccepted {
		t.Errorf("stop = %d, want 202", rec.Code)
	}
	close(proc.release)

	st := waitIdle(t, s)
	if st.LastSummary == nil || !st.LastSummary.Stopped {
		t.Errorf("summary = %+v, want a stopped run", st.LastSummary)
	}
}

func TestRunAudit(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, "POST", "/api/audit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	first := decode[audit.Report](t, rec)
	if len(first.Added) != 4 {
		t.Errorf("Added = %v, want 4 files", first.Added)
	}

	if err := os.WriteFile(filepath.Join(s.lib.Path(), "tank.g"), []byte("modified tank"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := decode[audit.Report](t, s.do(t, "POST", "/api/audit?dryRun=true", ""))
	if len(second.Changed) != 1 || second.Changed[0] != "tank.g" {
		t.Errorf("Changed = %v, want [tank.g]", second.Changed)
	}

	third := decode[audit.Report](t, s.do(t, "POST", "/api/audit", ""))
	if len(third.Changed) != 1 {
		t.Errorf("dry run must not update checksums; Changed = %v", third.Changed)
	}

	if rec := s.do(t, "POST", "/api/audit?dryRun=perhaps", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad dryRun = %d, want 400", rec.Code)
	}
}
