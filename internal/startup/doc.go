// Package startup handles configuration loading and the startup and shutdown
// logging of the cadventory commands.
//
// # Configuration
//
// Configuration is layered with viper. From lowest to highest precedence:
//
//   - built-in defaults registered by [SetDefaults]
//   - an optional cadventory.toml, cadventory.yaml or cadventory.json in the
//     working directory (or the file named by --config)
//   - CADVENTORY_* environment variables, e.g. CADVENTORY_RENDER_TIMEOUT=45s
//   - command line flags bound through [BindFlags]
//
// The recognized keys are:
//
//   - root: library root directory (default: .)
//   - name: library name (default: recorded name or base name of root)
//   - depth: maximum directory depth, -1 for unlimited (default: -1)
//   - workers: processing workers, 0 for automatic (default: 0)
//   - metadata_timeout, validate_timeout, render_timeout: per-call toolkit limits
//   - thumbnail_size: longest edge of stored previews in pixels (default: 512)
//   - previews: render previews at all (default: true)
//   - image_format: preview encoding (default: png)
//   - ignore: doublestar globs excluded from indexing
//   - mged, rt: toolkit executables (default: found on PATH)
//   - listen: HTTP address for serve (default: :8080)
//   - metrics: expose /metrics (default: true)
//   - force: reprocess models that already have results (default: false)
//   - log_level: debug, info, warn or error
//   - memory_limit, memory_ratio: soft memory limit (see package memory)
//
// [LoadConfig] decodes the layers into a [Config] and validates it; the
// library root must exist and be a directory.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogStartup]: banner and host information
//   - [LogDatabaseInit], [LogToolkitInit], [LogLibraryOpened]
//   - [LogHTTPRoutes]: registered HTTP routes (debug level)
//   - [LogServerStarted]: endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]
package startup
