// Package stream implements the resilient stream executor: it drives
// model calls through a round-robin client pool, retries transient
// failures with exponential backoff, forwards chunks to the consumer and
// supports cooperative cancellation by request id.
//
// # Retry Model
//
// Each request gets at most MaxRetries+1 attempts. Failures are
// classified by model.IsRetryable: rate limits, timeouts, resets and
// 429/502/503 server errors retry after a backoff of
// initial × multiplier^(attempt−1), capped at the configured maximum;
// everything else fails the stream immediately. Chunks already forwarded
// before a mid-stream failure are never retracted, so a retried attempt
// can deliver overlapping text. Consumers that need exactly-once
// delivery must deduplicate on their side.
//
// A stream that exhausts its attempts or is cancelled always ends with
// a terminal chunk carrying a non-nil Err before the channel closes.
// One buffer slot is reserved for that chunk, so the signal survives a
// consumer that has fallen a full buffer behind.
//
// # Cancellation
//
// Every stream runs under its own context, registered by request id.
// CancelStream cancels that context; the delivery loop observes it
// between chunks and the retry loop observes it before each backoff.
// A cancelled stream finalizes its trace as cancelled, which is neither
// a success nor an error in the rolling rates, and terminates with
// model.ErrStreamCancelled.
package stream
