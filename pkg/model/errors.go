package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrStreamCancelled is returned by the stream executor when a caller aborts
// a request mid-flight. It is a distinct terminal signal, not a failure.
var ErrStreamCancelled = errors.New("stream cancelled by caller")

// RateLimitError represents a rate limit response from the backend (HTTP 429).
type RateLimitError struct {
	// Backend is the name of the client handle that was rate limited
	Backend string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the backend
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("backend %q rate limit exceeded (retry after %s): %s",
			e.Backend, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("backend %q rate limit exceeded: %s", e.Backend, e.Message)
}

// TimeoutError represents a model call that exceeded its deadline.
type TimeoutError struct {
	// Backend is the name of the client handle where the timeout occurred
	Backend string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %q request timeout after %s", e.Backend, e.Timeout)
}

// ServerError represents a non-2xx response from the backend.
type ServerError struct {
	// Backend is the name of the client handle that returned the error
	Backend string

	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the error message from the backend
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("backend %q error (status %d): %s", e.Backend, e.StatusCode, e.Message)
}

// StreamError represents an error that occurred mid-stream.
type StreamError struct {
	// Backend is the name of the client handle where the error occurred
	Backend string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %q stream error: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %q stream error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a model-call error is transient and worth
// retrying with backoff. Rate limits, timeouts, network-level failures and
// 429/502/503 responses are retryable; everything else is fatal.
//
// Context cancellation is never retryable: a cancelled caller must not
// trigger another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrStreamCancelled) {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		switch serverErr.StatusCode {
		case 429, 502, 503:
			return true
		}
		return false
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) && streamErr.Cause != nil {
		return IsRetryable(streamErr.Cause)
	}

	// Deadline exceeded without a typed wrapper still counts as a timeout.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Connection-level failures are often surfaced as plain errors by
	// transport wrappers.
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"connection reset", "connection refused", "broken pipe", "network"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}
