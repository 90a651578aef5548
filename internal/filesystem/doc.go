// Package filesystem wraps the handful of filesystem calls cadventory makes
// against library roots with retry logic for network filesystems.
//
// CAD libraries frequently live on NFS shares. A stat, open or directory read
// against such a share can fail with ESTALE when the server-side handle is
// invalidated underneath the client; repeating the call usually succeeds once
// the client revalidates the path. Only ESTALE is retried, every other error
// is returned immediately.
//
// # Usage
//
//	cfg := filesystem.DefaultRetryConfig()
//	entries, err := filesystem.ReadDirWithRetry(dir, cfg)
//	f, err := filesystem.OpenWithRetry(path, cfg)
//
// Retries back off exponentially from InitialBackoff up to MaxBackoff and are
// counted in the cadventory_filesystem_* metrics.
package filesystem
