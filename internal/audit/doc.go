// Package audit verifies the files of a library against the checksums
// recorded by the previous audit.
//
// Every categorized file (geometry, images, documents, data) is hashed with
// BLAKE2b-256 and classified as added, changed, missing or unchanged. The
// new checksums replace the old ones in a single store transaction unless
// the run is a dry run.
package audit
