// Package metrics implements Ganymede's in-process metrics and alerting
// engine.
//
// Every model attempt is traced: a RequestTrace is opened at attempt start
// and finalized exactly once at attempt end, whether it succeeded, failed or
// was cancelled. Finalized traces land in a bounded ring buffer; latencies
// land in a parallel bounded buffer. The event path is O(1).
//
// Rolling system metrics (success/error rate, requests and tokens per
// minute, latency percentiles) are recomputed on a fixed timer over the
// traces finished within a trailing window, never per-event. Percentiles use
// the nearest-rank method.
//
// Alerting compares per-completion latency, the rolling error rate, and the
// externally reported queue depth against configured thresholds. An alert
// whose message matches an unresolved alert raised within the last
// DedupWindow is suppressed, which keeps a sustained condition from storming
// the log. Alert history is capped; the oldest entries are evicted.
//
// The engine also exports Prometheus metrics when given a registry, and can
// forward finalized traces to a sink (the trace archive).
//
// # Thread Safety
//
// All engine methods are safe for concurrent use. Ring buffers and the alert
// log are guarded by a mutex; the active-request count is atomic.
package metrics
