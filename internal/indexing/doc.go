// Package indexing runs a library scan and the processing pipeline off the
// caller's goroutine.
//
// A Worker enumerates the library's native geometry files, hands them to a
// pipeline.Pool and reports what happens on an event channel:
//
//	ev := worker.Start(ctx)
//	for e := range ev {
//	    switch e.Kind {
//	    case indexing.EventProgress:       // e.Done of e.Total, e.Path
//	    case indexing.EventModelProcessed: // e.ModelID, e.Status
//	    case indexing.EventFinished:       // e.Summary
//	    }
//	}
//
// Every event of one Start carries the same run id. Events arrive in
// completion order and the channel is closed after EventFinished.
// Consumers must drain the channel; sends only give up once the context
// passed to Start is done.
//
// RequestReindex during a run schedules exactly one more walk-and-process
// pass after the current one. Stop keeps workers from taking new files
// but lets files already being processed finish.
package indexing
