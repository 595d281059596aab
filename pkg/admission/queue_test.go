package admission

import (
	"context"
	"fmt"
	"testing"
)

func queued(pr Priority, id string) *pending {
	return &pending{
		req: &Request{ID: id, Priority: pr},
		ctx: context.Background(),
		ch:  make(chan result, 1),
	}
}

func TestPriorityQueue_StrictPriorityThenFIFO(t *testing.T) {
	q := newPriorityQueue()

	// Interleaved arrival order across buckets.
	q.push(queued(PriorityLow, "low-1"))
	q.push(queued(PriorityMedium, "med-1"))
	q.push(queued(PriorityUrgent, "urg-1"))
	q.push(queued(PriorityMedium, "med-2"))
	q.push(queued(PriorityHigh, "high-1"))
	q.push(queued(PriorityUrgent, "urg-2"))

	want := []string{"urg-1", "urg-2", "high-1", "med-1", "med-2", "low-1"}
	for i, id := range want {
		p := q.pop()
		if p == nil {
			t.Fatalf("pop %d returned nil", i)
		}
		if p.req.ID != id {
			t.Errorf("pop %d = %s, want %s", i, p.req.ID, id)
		}
	}
	if q.pop() != nil {
		t.Error("pop on empty queue should return nil")
	}
}

func TestPriorityQueue_Remove(t *testing.T) {
	q := newPriorityQueue()

	a := queued(PriorityMedium, "a")
	b := queued(PriorityMedium, "b")
	c := queued(PriorityMedium, "c")
	q.push(a)
	q.push(b)
	q.push(c)

	if !q.remove(b) {
		t.Fatal("remove returned false for a queued entry")
	}
	if q.remove(b) {
		t.Error("remove returned true for an already-removed entry")
	}
	if q.size() != 2 {
		t.Errorf("size = %d, want 2", q.size())
	}

	// FIFO order preserved around the removal.
	if got := q.pop().req.ID; got != "a" {
		t.Errorf("first pop = %s, want a", got)
	}
	if got := q.pop().req.ID; got != "c" {
		t.Errorf("second pop = %s, want c", got)
	}
}

func TestPriorityQueue_Sizes(t *testing.T) {
	q := newPriorityQueue()
	for i := 0; i < 3; i++ {
		q.push(queued(PriorityHigh, fmt.Sprintf("h-%d", i)))
	}
	q.push(queued(PriorityLow, "l-0"))

	sizes := q.sizes()
	if sizes[PriorityHigh] != 3 || sizes[PriorityLow] != 1 {
		t.Errorf("sizes = %v", sizes)
	}
	if sizes[PriorityUrgent] != 0 || sizes[PriorityMedium] != 0 {
		t.Errorf("empty buckets missing from sizes: %v", sizes)
	}
	if q.size() != 4 {
		t.Errorf("size = %d, want 4", q.size())
	}
}
