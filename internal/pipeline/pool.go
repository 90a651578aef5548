package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cadventory/internal/logging"
	"cadventory/internal/metrics"
	"cadventory/internal/workers"
)

// Summary aggregates the outcomes of one Pool.Run.
type Summary struct {
	Total          int           `json:"total"`
	Processed      int           `json:"processed"`
	NoPreview      int           `json:"noPreview"`
	Skipped        int           `json:"skipped"`
	Unidentified   int           `json:"unidentified"`
	Failed         int           `json:"failed"`
	NotStarted     int           `json:"notStarted"`
	RenderFailures []string      `json:"renderFailures,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Add folds one outcome into the summary.
func (s *Summary) Add(o Outcome) {
	switch o.Status {
	case StatusProcessed:
		s.Processed++
	case StatusNoPreview:
		s.NoPreview++
		s.RenderFailures = append(s.RenderFailures, o.Path)
	case StatusSkipped:
		s.Skipped++
	case StatusUnidentified:
		s.Unidentified++
	case StatusFailed:
		s.Failed++
	}
}

// Done is the number of files that reached a final status.
func (s Summary) Done() int {
	return s.Processed + s.NoPreview + s.Skipped + s.Unidentified + s.Failed
}

// Gate holds workers back before they take the next path. Wait returns an
// error when the worker should give up instead.
type Gate interface {
	Wait(ctx context.Context) error
}

// Pool runs a FileProcessor over many paths with a fixed number of workers.
type Pool struct {
	proc    FileProcessor
	workers int
	gate    Gate
	stopped atomic.Bool
}

// NewPool creates a pool. A non-positive worker count picks a default sized
// for mixed IO and subprocess work.
func NewPool(proc FileProcessor, n int) *Pool {
	if n <= 0 {
		n = workers.ForMixed(4)
	}
	return &Pool{proc: proc, workers: n}
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// SetGate installs g, which every worker consults before taking a path.
// It must be called before Run.
func (p *Pool) SetGate(g Gate) {
	p.gate = g
}

// Stop keeps workers from taking further paths. Files already being
// processed finish normally.
func (p *Pool) Stop() {
	p.stopped.Store(true)
}

// Run processes paths and calls onOutcome, serialized, as each file
// completes. It returns once every worker has exited. Cancelling ctx has the
// same effect as Stop.
func (p *Pool) Run(ctx context.Context, paths []string, onOutcome func(Outcome)) Summary {
	start := time.Now()
	summary := Summary{Total: len(paths)}

	q := NewQueue()
	for _, path := range paths {
		q.Push(path)
	}
	q.Close()
	metrics.PipelineQueueDepth.Set(float64(q.Len()))
	metrics.PipelineRunning.Set(1)
	defer metrics.PipelineRunning.Set(0)

	n := p.workers
	if n > len(paths) {
		n = len(paths)
	}
	logging.Info("Processing %d files with %d workers", len(paths), n)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !p.stopped.Load() && ctx.Err() == nil {
				if p.gate != nil {
					if err := p.gate.Wait(ctx); err != nil {
						return
					}
					if p.stopped.Load() {
						return
					}
				}
				path, ok := q.Pop()
				if !ok {
					return
				}
				metrics.PipelineQueueDepth.Set(float64(q.Len()))

				metrics.PipelineWorkersBusy.Inc()
				out := p.proc.Process(ctx, path)
				metrics.PipelineWorkersBusy.Dec()

				mu.Lock()
				summary.Add(out)
				if onOutcome != nil {
					onOutcome(out)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	summary.NotStarted = q.Len()
	summary.Duration = time.Since(start)
	metrics.PipelineQueueDepth.Set(0)

	logging.Info("Processing finished in %v: %d processed, %d without preview, %d skipped, %d unidentified, %d failed, %d not started",
		summary.Duration.Round(time.Millisecond), summary.Processed, summary.NoPreview, summary.Skipped,
		summary.Unidentified, summary.Failed, summary.NotStarted)
	return summary
}
