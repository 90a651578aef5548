package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"cadventory/internal/logging"
)

// DefaultRatio is the fraction of the container limit handed to the Go heap.
const DefaultRatio = 0.85

// Limit sources reported in LimitResult.
const (
	SourceEnv    = "GOMEMLIMIT"
	SourceConfig = "memory_limit"
	SourceNone   = "none"
)

// LimitResult describes what ApplyLimit did.
type LimitResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	SoftLimit      int64
	Ratio          float64
}

// ApplyLimit sets the Go soft memory limit to ratio of limit bytes. A ratio
// outside (0, 1] falls back to DefaultRatio. A non-positive limit leaves the
// runtime untouched.
func ApplyLimit(limit int64, ratio float64) LimitResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		res := LimitResult{Source: SourceEnv}
		if current := debug.SetMemoryLimit(-1); current > 0 && current < math.MaxInt64 {
			res.Configured = true
			res.SoftLimit = current
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return res
	}

	if limit <= 0 {
		logging.Debug("memory_limit not set, soft memory limit left at runtime default")
		return LimitResult{Source: SourceNone}
	}

	if ratio <= 0 || ratio > 1 {
		if ratio != 0 {
			logging.Warn("memory_ratio %.2f out of range (0.0-1.0], using %.2f", ratio, DefaultRatio)
		}
		ratio = DefaultRatio
	}

	soft := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(soft)

	logging.Info("Configured soft memory limit: %s (%.1f%% of %s)",
		FormatBytes(soft), ratio*100, FormatBytes(limit))

	return LimitResult{
		Configured:     true,
		Source:         SourceConfig,
		ContainerLimit: limit,
		SoftLimit:      soft,
		Ratio:          ratio,
	}
}

// FormatBytes renders b with binary units, e.g. "1.5 GiB".
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
