package admission

import (
	"sync"
	"time"

	"nimbus-hq/ganymede/pkg/config"
)

// idleWindowsBeforeSweep is how many full windows a caller record may sit
// untouched before Sweep removes it.
const idleWindowsBeforeSweep = 2

// callerRecord tracks one caller's count within the current window.
type callerRecord struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool

	// Remaining is the caller's remaining quota in the current window.
	Remaining int

	// RetryAfter is the time until the caller's window resets. Only
	// meaningful when Allowed is false.
	RetryAfter time.Duration
}

// WindowLimiter is a per-caller fixed-window rate limiter. Each caller
// gets an independent counter that resets wholesale when its window
// elapses; there is no sliding behavior, so up to 2x the limit can pass
// across a window boundary. That coarseness is accepted for O(1) checks.
type WindowLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int // max requests plus burst headroom
	records map[string]*callerRecord

	now func() time.Time
}

// NewWindowLimiter builds a limiter from rate-limit configuration.
func NewWindowLimiter(cfg config.RateLimitConfig) *WindowLimiter {
	return &WindowLimiter{
		window:  cfg.Window,
		limit:   cfg.MaxRequests + cfg.Burst,
		records: make(map[string]*callerRecord),
		now:     time.Now,
	}
}

// Allow counts one request against key and reports whether it is within
// the caller's window quota. An empty key uses the anonymous bucket.
func (l *WindowLimiter) Allow(key string) Decision {
	if key == "" {
		key = AnonymousCallerKey
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.Sub(rec.windowStart) >= l.window {
		rec = &callerRecord{windowStart: now}
		l.records[key] = rec
	}
	rec.lastSeen = now

	if rec.count >= l.limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: rec.windowStart.Add(l.window).Sub(now),
		}
	}
	rec.count++
	return Decision{Allowed: true, Remaining: l.limit - rec.count}
}

// Limit returns the per-window admission count, burst included.
func (l *WindowLimiter) Limit() int {
	return l.limit
}

// Sweep removes caller records idle for at least two full windows and
// returns how many were removed. Run it periodically to keep the record
// map proportional to the active caller set.
func (l *WindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleWindowsBeforeSweep * l.window)
	removed := 0
	for key, rec := range l.records {
		if rec.lastSeen.Before(cutoff) {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of caller records currently held.
func (l *WindowLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
