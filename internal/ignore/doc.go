// Package ignore decides which paths under a library root the indexer skips.
//
// Three sources are combined: the library's own hidden store directory
// (always skipped), a .cadventoryignore file at the root written in gitignore
// syntax, and doublestar glob patterns supplied through configuration such as
// "**/scratch/**" or "*.bak".
package ignore
