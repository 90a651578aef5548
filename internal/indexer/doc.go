// Package indexer walks a library root once and buckets every regular file by
// its lower-cased extension.
//
// The walk is a sorted, depth-first traversal bounded by a depth argument:
//   - negative: unbounded
//   - 0: the root is not entered
//   - 1: only direct children of the root
//   - n > 1: decremented at each level
//
// Symlinked directories are followed. Each directory is canonicalized before
// it is entered and checked against a visited set that lives only for the
// duration of one top-level Index call, so symlink cycles terminate while
// separate calls never share state. Files reachable through several paths are
// recorded once per call, under the first path seen.
//
// Unreadable entries are logged and skipped; indexing never fails as a whole.
// File contents are never read.
package indexer
