// Package logging provides the leveled logger used across cadventory.
//
// Levels, from most to least verbose:
//   - DEBUG: toolkit command lines, per-file pipeline steps
//   - INFO: library scans, pipeline summaries, server lifecycle
//   - WARN: skipped filesystem entries, failed renders
//   - ERROR: store failures
//   - FATAL: unrecoverable startup errors
//
// The initial level comes from DEBUG or LOG_LEVEL; the CLI may replace it
// with SetLevel once flags are parsed.
package logging
