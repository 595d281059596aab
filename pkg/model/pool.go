package model

import (
	"fmt"
	"sync/atomic"
)

// Pool is a fixed-size pool of pre-constructed model clients selected
// round-robin per call. Constructing a client handle is comparatively
// expensive, so a bounded number of handles is built once at startup and
// shared by all in-flight requests.
//
// Handles are never mutated after pool construction; the pool is read-mostly
// and selection is lock-free using an atomic counter.
type Pool struct {
	// clients is the fixed set of handles; immutable after construction
	clients []Client

	// counter is the global round-robin counter
	counter atomic.Uint64
}

// DefaultPoolSize is the default number of client handles in a pool.
const DefaultPoolSize = 5

// NewPool creates a pool from the given clients.
// Returns an error if no clients are provided.
func NewPool(clients []Client) (*Pool, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("pool requires at least one client")
	}

	// Copy to guard against caller mutation of the slice.
	owned := make([]Client, len(clients))
	copy(owned, clients)

	return &Pool{clients: owned}, nil
}

// NewPoolWithFactory builds a pool of size handles using the factory.
// If size <= 0, DefaultPoolSize is used.
func NewPoolWithFactory(size int, factory func(i int) Client) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	clients := make([]Client, size)
	for i := 0; i < size; i++ {
		clients[i] = factory(i)
	}

	return NewPool(clients)
}

// Next returns the next client in round-robin order.
func (p *Pool) Next() Client {
	n := p.counter.Add(1)
	return p.clients[(n-1)%uint64(len(p.clients))]
}

// Size returns the number of clients in the pool.
func (p *Pool) Size() int {
	return len(p.clients)
}
