// Package pipeline turns geometry files into catalogued models.
//
// Processor.Process runs one file through a fixed sequence:
//
//  1. hash the content and lock its id; an existing processed model is
//     skipped
//  2. read the title
//  3. list and sanitize the top-level objects
//  4. build the render candidates: all, all.g, <stem>, <stem>.g, <stem>.c,
//     then the top-level names, first occurrence wins
//  5. keep the candidates the toolkit confirms exist
//  6. render them in order until one produces a non-empty image
//  7. persist the model by full overwrite
//  8. expand the top-level objects into their combination members and
//     store the hierarchy
//
// Every toolkit call is bounded by its own timeout and none of them see
// the caller's cancellation: a file already being processed always runs
// to completion. Output of a call that timed out or never started is
// discarded. Failures degrade to StatusNoPreview with whatever metadata
// was gathered.
//
// Pool fans a list of paths out over a fixed number of goroutines reading
// one shared FIFO Queue.
package pipeline
