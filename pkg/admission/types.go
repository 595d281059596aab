package admission

import (
	"context"
	"fmt"
	"time"
)

// Priority is a queue priority bucket.
type Priority string

const (
	// PriorityUrgent is dequeued before all other buckets.
	PriorityUrgent Priority = "urgent"

	// PriorityHigh is dequeued after urgent.
	PriorityHigh Priority = "high"

	// PriorityMedium is the default bucket.
	PriorityMedium Priority = "medium"

	// PriorityLow is dequeued last and may be starved by higher buckets.
	PriorityLow Priority = "low"
)

// priorityOrder is the strict dequeue order.
var priorityOrder = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority converts a string to a Priority, or reports false.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), true
	}
	return "", false
}

// Request is a unit of work submitted for admission.
// The controller owns the request while it is queued; callers must not
// mutate it after Enqueue.
type Request struct {
	// ID is the opaque request identifier. Assigned if empty.
	ID string

	// Priority selects the bucket. Defaults to the configured default.
	Priority Priority

	// CallerKey identifies the caller for rate limiting (customer email
	// or anonymous id). Empty falls back to the anonymous bucket.
	CallerKey string

	// Message is the request payload text.
	Message string

	// ConversationID ties the request to a conversation.
	ConversationID string

	// EnqueuedAt is when the request entered the queue. Set by Enqueue.
	EnqueuedAt time.Time

	// RetryCount is how many times processing has been re-attempted at
	// the queue level. Managed by the controller.
	RetryCount int

	// MaxRetries bounds RetryCount. Defaults to the configured maximum.
	MaxRetries int
}

// result is a terminal resolution for a queued request.
type result struct {
	value any
	err   error
}

// Handle resolves with the processing result once the request has been
// dequeued and processed, or with a typed rejection.
type Handle struct {
	requestID string
	ch        <-chan result
}

// RequestID returns the identifier assigned to the queued request.
func (h *Handle) RequestID() string {
	return h.requestID
}

// Wait blocks until the request resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-h.ch:
		return res.value, res.err
	}
}

// AnonymousCallerKey is the rate-limit bucket for requests without a
// caller identity.
const AnonymousCallerKey = "anonymous"

// RateLimitedError is returned when a caller exceeds its window quota.
// The caller must back off; the controller does not retry on its behalf.
type RateLimitedError struct {
	// CallerKey is the rate-limited caller.
	CallerKey string

	// Limit is the admitted request count per window.
	Limit int

	// RetryAfter is the time until the window resets.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("caller %q rate limited (limit %d, retry after %s)",
		e.CallerKey, e.Limit, e.RetryAfter.Round(time.Millisecond))
}

// BusyError is returned when the queue is at capacity.
type BusyError struct {
	// QueueSize is the total queued count at rejection time.
	QueueSize int

	// MaxQueueSize is the configured bound.
	MaxQueueSize int
}

// Error implements the error interface.
func (e *BusyError) Error() string {
	return fmt.Sprintf("queue at capacity (%d/%d)", e.QueueSize, e.MaxQueueSize)
}

// TimedOutError is returned when a request waits in the queue longer than
// the configured timeout without starting processing.
type TimedOutError struct {
	// RequestID is the expired request.
	RequestID string

	// Waited is how long the request sat in the queue.
	Waited time.Duration
}

// Error implements the error interface.
func (e *TimedOutError) Error() string {
	return fmt.Sprintf("request %s timed out after waiting %s in queue",
		e.RequestID, e.Waited.Round(time.Millisecond))
}

// Stats is a point-in-time view of the controller's queues.
type Stats struct {
	// Queued is the total queued count across all buckets.
	Queued int `json:"queued"`

	// PerBucket is the queued count per priority bucket.
	PerBucket map[Priority]int `json:"per_bucket"`

	// InFlight is the number of requests currently processing.
	InFlight int `json:"in_flight"`

	// MaxConcurrent is the configured concurrency cap.
	MaxConcurrent int `json:"max_concurrent"`

	// MaxQueueSize is the configured queue bound.
	MaxQueueSize int `json:"max_queue_size"`
}
