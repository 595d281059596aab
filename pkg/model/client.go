package model

import "context"

// Client is the interface every model backend handle must implement.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return promptly when
// the context is cancelled.
type Client interface {
	// Generate sends a request and waits for the complete response.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Stream sends a request and returns a channel yielding incremental
	// chunks as they arrive. The channel is closed when the stream ends.
	// If the stream fails mid-flight, the final chunk carries Err and the
	// channel closes.
	//
	// Example:
	//
	//	chunks, err := client.Stream(ctx, req)
	//	if err != nil {
	//	    return err
	//	}
	//	for chunk := range chunks {
	//	    if chunk.Err != nil {
	//	        return chunk.Err
	//	    }
	//	    fmt.Print(chunk.Delta)
	//	}
	Stream(ctx context.Context, req *Request) (<-chan *Chunk, error)

	// Name returns the handle's identifier (used in metrics traces).
	Name() string
}
