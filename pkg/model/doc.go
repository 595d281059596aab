// Package model defines the provider-agnostic surface for the text-generation
// backend that Ganymede executes requests against.
//
// The backend itself is an external collaborator: this package only defines
// the Client interface, the wire types exchanged with it (Message, Request,
// Response, Chunk), the error taxonomy used to classify failures as retryable
// or fatal, and a fixed-size round-robin Pool of pre-constructed clients.
//
// # Error Classification
//
// The stream executor retries transient failures. IsRetryable reports whether
// an error from a model call is transient:
//
//   - RateLimitError (backend quota exhausted)
//   - TimeoutError (request deadline exceeded)
//   - ServerError with status 429, 502 or 503
//   - network-level errors (connection reset, refused, timeouts)
//
// Everything else is fatal and surfaces to the caller immediately.
//
// # Thread Safety
//
// Client implementations must be safe for concurrent use: the Pool hands the
// same handle to multiple in-flight requests. Pool itself is lock-free.
package model
