package admission

import (
	"context"
	"time"
)

// pending is a queued request awaiting dispatch.
type pending struct {
	req *Request

	// ctx is the submitting caller's context; it governs processing.
	ctx context.Context

	// ch receives exactly one terminal resolution.
	ch chan result

	// timer fires the queue-wait timeout while the request is queued.
	// Stopped on dispatch; re-armed on re-enqueue.
	timer *time.Timer
}

func (p *pending) resolve(value any, err error) {
	p.ch <- result{value: value, err: err}
}

// priorityQueue holds the four strict-priority FIFO buckets.
// Not safe for concurrent use; the controller's mutex guards it.
type priorityQueue struct {
	buckets map[Priority][]*pending
}

func newPriorityQueue() *priorityQueue {
	q := &priorityQueue{buckets: make(map[Priority][]*pending, len(priorityOrder))}
	for _, p := range priorityOrder {
		q.buckets[p] = nil
	}
	return q
}

// push appends to the tail of the request's bucket.
func (q *priorityQueue) push(p *pending) {
	q.buckets[p.req.Priority] = append(q.buckets[p.req.Priority], p)
}

// pop removes and returns the head of the highest non-empty bucket, or
// nil when everything is empty. Priority strictly dominates age: an older
// low request never preempts a newer urgent one.
func (q *priorityQueue) pop() *pending {
	for _, pr := range priorityOrder {
		bucket := q.buckets[pr]
		if len(bucket) == 0 {
			continue
		}
		head := bucket[0]
		bucket[0] = nil
		q.buckets[pr] = bucket[1:]
		return head
	}
	return nil
}

// remove deletes a specific pending entry from its bucket, reporting
// whether it was still queued. Used by the timeout path; a request that
// already dispatched is not found and not touched.
func (q *priorityQueue) remove(p *pending) bool {
	bucket := q.buckets[p.req.Priority]
	for i, cand := range bucket {
		if cand == p {
			q.buckets[p.req.Priority] = append(bucket[:i:i], bucket[i+1:]...)
			return true
		}
	}
	return false
}

// size is the total queued count across all buckets.
func (q *priorityQueue) size() int {
	n := 0
	for _, bucket := range q.buckets {
		n += len(bucket)
	}
	return n
}

// sizes returns the per-bucket counts.
func (q *priorityQueue) sizes() map[Priority]int {
	out := make(map[Priority]int, len(priorityOrder))
	for _, pr := range priorityOrder {
		out[pr] = len(q.buckets[pr])
	}
	return out
}
