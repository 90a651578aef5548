package database

import (
	"io"

	"github.com/zeebo/xxh3"

	"cadventory/internal/filesystem"
	"cadventory/internal/logging"
	"cadventory/internal/metrics"
)

// Hash returns the content id of the file at path: its xxh3-64 digest as a
// signed integer. It returns 0 if the file cannot be read. A genuine zero
// digest is mapped to 1 so that 0 always means failure.
func Hash(path string) int64 {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Cannot hash %s: %v", path, err)
		metrics.DBHashFailures.Inc()
		return 0
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		logging.Warn("Cannot hash %s: %v", path, err)
		metrics.DBHashFailures.Inc()
		return 0
	}

	id := int64(h.Sum64())
	if id == 0 {
		id = 1
	}
	return id
}
