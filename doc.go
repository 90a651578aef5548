// Command cadventory catalogs a directory tree of BRL-CAD geometry
// databases and related files.
//
// It indexes a library root, records every model in a SQLite store keyed by
// content hash, and drives the external mged and rt tools to extract titles
// and top-level objects and to render preview thumbnails.
//
// # Commands
//
//	cadventory index          walk the library and report what was found
//	cadventory process        extract metadata and render previews
//	cadventory models         list catalogued models
//	cadventory show <id>      show one model and its objects
//	cadventory tag ...        add, remove and list tags
//	cadventory select <id>... mark models selected or included
//	cadventory search <query> full-text search over titles, names and tags
//	cadventory audit          compare files on disk against the catalog
//	cadventory serve          serve the catalog over HTTP
//	cadventory version        print build information
//
// # Serve Lifecycle
//
//  1. Configuration: defaults, cadventory.toml, CADVENTORY_* variables, flags
//  2. Memory: soft limit from memory_limit and a monitor gating the pool
//  3. Library: index the root and open the metadata store
//  4. Toolkit: check that mged can be launched (missing tools only warn)
//  5. Components: processor, search index, metrics collector
//  6. HTTP server: routes, logging and compression middleware
//  7. Graceful shutdown on SIGINT/SIGTERM: stop the server, let in-flight
//     models finish, stop the collector
//
// See [cadventory/internal/startup] for every configuration key.
package main
