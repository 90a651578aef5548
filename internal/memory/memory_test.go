package memory

import (
	"context"
	"errors"
	"math"
	"runtime/debug"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{512 * 1024 * 1024, "512.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	tests := []struct {
		name      string
		limit     int64
		ratio     float64
		wantSrc   string
		wantSoft  int64
		wantRatio float64
	}{
		{"unset", 0, 0.5, SourceNone, 0, 0},
		{"explicit ratio", 1000 << 20, 0.5, SourceConfig, 500 << 20, 0.5},
		{"default ratio", 1000 << 20, 0, SourceConfig, int64(float64(1000<<20) * DefaultRatio), DefaultRatio},
		{"ratio out of range", 1000 << 20, 1.5, SourceConfig, int64(float64(1000<<20) * DefaultRatio), DefaultRatio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ApplyLimit(tt.limit, tt.ratio)
			if res.Source != tt.wantSrc {
				t.Errorf("Source = %q, want %q", res.Source, tt.wantSrc)
			}
			if res.SoftLimit != tt.wantSoft {
				t.Errorf("SoftLimit = %d, want %d", res.SoftLimit, tt.wantSoft)
			}
			if res.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", res.Ratio, tt.wantRatio)
			}
			if tt.wantSoft > 0 {
				if got := debug.SetMemoryLimit(-1); got != tt.wantSoft {
					t.Errorf("runtime limit = %d, want %d", got, tt.wantSoft)
				}
			}
		})
	}
}

func TestApplyLimit_EnvironmentWins(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "1GiB")
	prev := debug.SetMemoryLimit(1 << 30)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	res := ApplyLimit(4<<30, 0.5)
	if res.Source != SourceEnv || !res.Configured || res.SoftLimit != 1<<30 {
		t.Errorf("ApplyLimit() = %+v", res)
	}
	if got := debug.SetMemoryLimit(-1); got != 1<<30 {
		t.Errorf("runtime limit changed to %d", got)
	}
}

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	cfg := DefaultConfig()
	cfg.Limit = limit
	m := NewMonitor(cfg)
	m.sample = func() uint64 { return *alloc }
	return m
}

func TestMonitor_PauseAndResume(t *testing.T) {
	alloc := uint64(10)
	m := newTestMonitor(100, &alloc)
	defer m.Stop()

	m.check()
	if m.Paused() {
		t.Fatal("paused at 10% usage")
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v", err)
	}

	alloc = 90
	m.check()
	if !m.Paused() {
		t.Fatal("not paused at 90% usage")
	}
	if u := m.Usage(); u != 0.9 {
		t.Errorf("Usage() = %v, want 0.9", u)
	}

	released := make(chan error, 1)
	go func() { released <- m.Wait(context.Background()) }()

	select {
	case err := <-released:
		t.Fatalf("Wait returned %v while paused", err)
	case <-time.After(20 * time.Millisecond):
	}

	// Between the water marks the pause holds.
	alloc = 80
	m.check()
	if !m.Paused() {
		t.Fatal("resumed above the high water mark")
	}

	alloc = 50
	m.check()
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("Wait() = %v after resume", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestMonitor_WaitEndsOnStopOrCancel(t *testing.T) {
	alloc := uint64(95)

	t.Run("stop", func(t *testing.T) {
		m := newTestMonitor(100, &alloc)
		m.check()
		done := make(chan error, 1)
		go func() { done <- m.Wait(context.Background()) }()
		m.Stop()
		m.Stop()
		if err := <-done; !errors.Is(err, ErrStopped) {
			t.Errorf("Wait() = %v, want ErrStopped", err)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		m := newTestMonitor(100, &alloc)
		defer m.Stop()
		m.check()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Wait() = %v, want context.Canceled", err)
		}
	})
}

func TestMonitor_NoLimit(t *testing.T) {
	prev := debug.SetMemoryLimit(math.MaxInt64)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	alloc := uint64(1 << 40)
	m := newTestMonitor(0, &alloc)
	defer m.Stop()
	m.Start()

	m.check()
	if m.Paused() || m.Usage() != 0 || m.Limit() != 0 {
		t.Errorf("Paused = %v, Usage = %v, Limit = %d", m.Paused(), m.Usage(), m.Limit())
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}
