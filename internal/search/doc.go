// Package search keeps an in-memory full-text index over catalog models.
//
// Short name, title, author, file path, library name and tags are indexed.
// Queries are interpreted as:
//
//	tank              match query over all fields plus a short-name prefix
//	"battle tank"     phrase query
//	/t[a-z]+k/        regular expression
//	tags:armor title:m1*   bleve query-string syntax when a field is named
//
// The index is rebuilt from the store on demand; it is not persisted.
package search
