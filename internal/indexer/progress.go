package indexer

import (
	"sync"
	"time"
)

// Progress receives one call per file recorded by the indexer.
type Progress interface {
	FileIndexed(path string)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(path string)

// FileIndexed calls f(path).
func (f ProgressFunc) FileIndexed(path string) {
	f(path)
}

// Throttle forwards at most one call per interval to p. The first call is
// always forwarded.
func Throttle(p Progress, interval time.Duration) Progress {
	if p == nil || interval <= 0 {
		return p
	}
	return &throttled{next: p, interval: interval}
}

type throttled struct {
	mu       sync.Mutex
	next     Progress
	interval time.Duration
	last     time.Time
}

func (t *throttled) FileIndexed(path string) {
	t.mu.Lock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return
	}
	t.last = now
	t.mu.Unlock()

	t.next.FileIndexed(path)
}
