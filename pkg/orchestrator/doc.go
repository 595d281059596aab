// Package orchestrator is the façade tying the pipeline together: it
// classifies intent, builds the model request with the caller preamble,
// routes work through the admission controller into the stream executor,
// and merges component health into one report.
//
// A Manager is cheap to construct; shared resources initialize lazily on
// the first request via sync.Once, so constructing one for wiring or
// health probing never touches the archive or the model pool.
package orchestrator
