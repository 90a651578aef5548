// Package memory keeps large processing runs inside a memory budget.
//
// [ApplyLimit] sets the Go soft memory limit from the configured container
// limit, leaving headroom for the mged and rt subprocesses and for decoded
// preview images. An explicit GOMEMLIMIT environment variable always wins.
//
// [Monitor] samples heap usage and acts as a gate for the processing pool.
// Above the critical water mark workers stop taking new models until usage
// falls back below the high water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	opts := indexing.DefaultOptions()
//	opts.Gate = monitor
//
// Without a limit the monitor never pauses.
//
// Configuration keys (see package startup):
//
//   - memory_limit: container memory limit in bytes, 0 to leave unset
//   - memory_ratio: fraction of memory_limit given to the Go heap (default: 0.85)
package memory
