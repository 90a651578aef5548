// Package database implements the per-library metadata store.
//
// The store is a single SQLite file (mattn/go-sqlite3, WAL journal, 5s busy
// timeout) holding:
//   - models: one row per distinct geometry file content, keyed by Hash
//   - objects: named objects inside a model, forming an acyclic forest
//   - tags: free-form labels attached to models
//   - file_checksums: digests recorded by library audits
//   - metadata: key/value pairs such as the schema version
//
// # Identity
//
// A model's ID is the xxh3-64 digest of the file's bytes reinterpreted as a
// signed integer. Two files with identical content therefore share one model,
// and renaming or moving a file does not lose its metadata. Zero is reserved
// to mean "could not be hashed".
//
// # Writes
//
// Single-record methods on Database serialize through an internal mutex and
// each run under a short timeout. Read-modify-write sequences built from them
// are not atomic. For bulk work use BeginBatch / EndBatch:
//
//	b, err := db.BeginBatch(ctx)
//	if err != nil {
//	    return err
//	}
//	err = b.SetModelSelected(id, true)
//	return db.EndBatch(b, err)
//
// A batch holds SQLite's write lock until EndBatch. Single-record writes
// issued meanwhile wait on the busy timeout and fail if the batch outlives
// it, so do not interleave the two.
package database
