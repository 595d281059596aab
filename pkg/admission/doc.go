// Package admission implements Ganymede's request admission controller:
// per-caller rate limiting, strict-priority queueing, concurrency capping,
// backpressure rejection and queue-wait timeout enforcement.
//
// # Admission Pipeline
//
// Enqueue runs the checks in order, cheapest first:
//
//  1. Fixed-window rate limit for the caller key → RateLimitedError
//  2. Backpressure: total queued across all buckets → BusyError
//  3. Queue into the request's priority bucket with a deadline timer
//
// A queued request is dequeued in strict priority order (urgent, high,
// medium, low; FIFO within a bucket) whenever a concurrency slot is free.
// Priority strictly dominates submission time: a low request can be starved
// indefinitely by continuous urgent arrivals. That is the contract, not a
// bug.
//
// If the request's queue wait exceeds the configured timeout before
// processing starts it is removed from its bucket and rejected with
// TimedOutError. Once processing starts the queue timeout no longer
// applies; the stream executor owns attempt-level timeouts and retries.
//
// If processing fails, the controller re-enqueues the request with an
// incremented retry count up to the configured maximum, then rejects
// terminally. This coarse queue-level retry is independent of the stream
// executor's fine-grained attempt retry. Re-admission bypasses the
// backpressure check, so total queued can transiently exceed
// MaxQueueSize by up to MaxConcurrent retrying requests.
//
// # Thread Safety
//
// All mutable state (priority buckets, rate-limit records, in-flight set)
// is guarded by a single mutex. Dispatch is edge-triggered: releasing a
// slot immediately attempts the next dequeue; nothing polls.
package admission
