package toolkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

var (
	// ErrTimedOut is returned when a command outlives its timeout.
	ErrTimedOut = errors.New("command timed out")
	// ErrNonZeroExit is returned (wrapped in *ExitError) when a command
	// exits with a non-zero status.
	ErrNonZeroExit = errors.New("command exited with non-zero status")
	// ErrSpawnFailed is returned when a command cannot be started.
	ErrSpawnFailed = errors.New("command could not be started")
)

// ExitError carries the exit code of a failed command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v: %d", ErrNonZeroExit, e.Code)
}

// Unwrap lets errors.Is match ErrNonZeroExit.
func (e *ExitError) Unwrap() error {
	return ErrNonZeroExit
}

// Output is what a command printed. Combined interleaves both streams in the
// order they were written.
type Output struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Duration time.Duration
}

// Runner runs one command with a timeout. A non-positive timeout means no
// limit beyond ctx.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error)
}

// DefaultWaitDelay bounds how long ExecRunner waits for output pipes after
// the process is gone.
const DefaultWaitDelay = 2 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	WaitDelay time.Duration
	Dir       string
}

// lockedBuffer lets the stdout and stderr copiers share one buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = r.Dir
	setProcessGroup(cmd)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}
	cmd.Stdout = io.MultiWriter(&stdout, combined)
	cmd.Stderr = io.MultiWriter(&stderr, combined)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{ExitCode: -1}, fmt.Errorf("%s: %w: %v", name, ErrSpawnFailed, err)
	}
	err := cmd.Wait()

	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return out, fmt.Errorf("%s after %v: %w", name, timeout, ErrTimedOut)
	case ctx.Err() != nil:
		return out, ctx.Err()
	case err == nil:
		return out, nil
	case errors.Is(err, exec.ErrWaitDelay) && out.ExitCode == 0:
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, fmt.Errorf("%s: %w", name, &ExitError{Code: exitErr.ExitCode()})
	}
	return out, fmt.Errorf("%s: %w", name, err)
}
