// Package library wraps one catalog root directory.
//
// A Library owns an indexer configured with the root's ignore rules, lazily
// classifies the files it finds into categories (geometry, images, documents,
// data) and opens the per-library metadata store on first use. All state a
// library writes lives under the hidden directory:
//
//	<root>/.cadventory/
//	    cadventory.db    metadata store
//	    library.toml     manifest (name, root, creation time, schema version)
//	    previews/        transient render output
//
// LoadDatabase is the synchronous scan-and-process entry point; the
// indexing package runs the same work off the caller's goroutine.
package library
