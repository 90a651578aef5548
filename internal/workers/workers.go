package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that overrides computed counts.
const EnvOverride = "CADVENTORY_WORKERS"

// Count returns the number of workers for a task whose CPU share is
// expressed by multiplier (1.0 CPU-bound, 2.0 IO-bound, 1.5 mixed). limit
// caps the result; 0 means no cap.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Resolve returns configured when positive, otherwise ForMixed(defaultLimit).
func Resolve(configured, defaultLimit int) int {
	if configured > 0 {
		return configured
	}
	return ForMixed(defaultLimit)
}
