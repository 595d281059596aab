package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity is the alert severity level.
type Severity string

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = "info"

	// SeverityWarning indicates a threshold warning breach.
	SeverityWarning Severity = "warning"

	// SeverityCritical indicates a threshold critical breach.
	SeverityCritical Severity = "critical"
)

// DedupWindow is how long an unresolved alert suppresses identical messages.
const DedupWindow = 60 * time.Second

// Alert is a single raised alert.
type Alert struct {
	// ID is the unique alert identifier.
	ID string `json:"id"`

	// Severity is the alert severity.
	Severity Severity `json:"severity"`

	// Message describes the condition. Identical messages deduplicate.
	Message string `json:"message"`

	// Timestamp is when the alert was raised.
	Timestamp time.Time `json:"timestamp"`

	// Resolved is true once the alert has been resolved.
	Resolved bool `json:"resolved"`

	// ResolvedAt is when the alert was resolved, if it was.
	ResolvedAt time.Time `json:"resolved_at,omitzero"`
}

// AlertLog is a bounded, deduplicating alert history.
//
// Raising an alert whose message matches an unresolved alert created within
// DedupWindow is suppressed. Once the history reaches capacity the oldest
// entry is evicted.
type AlertLog struct {
	mu       sync.Mutex
	alerts   []Alert
	maxCount int

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewAlertLog creates an alert log holding at most maxCount alerts.
func NewAlertLog(maxCount int) *AlertLog {
	if maxCount < 1 {
		maxCount = 1
	}
	return &AlertLog{
		alerts:   make([]Alert, 0, maxCount),
		maxCount: maxCount,
		now:      time.Now,
	}
}

// Raise records a new alert unless an unresolved alert with the identical
// message was created within DedupWindow. Returns the new alert, or nil if
// suppressed.
func (l *AlertLog) Raise(severity Severity, message string) *Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-DedupWindow)

	for i := range l.alerts {
		a := &l.alerts[i]
		if !a.Resolved && a.Message == message && a.Timestamp.After(cutoff) {
			return nil
		}
	}

	alert := Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   message,
		Timestamp: now,
	}

	if len(l.alerts) >= l.maxCount {
		// Evict oldest.
		copy(l.alerts, l.alerts[1:])
		l.alerts = l.alerts[:len(l.alerts)-1]
	}
	l.alerts = append(l.alerts, alert)

	return &alert
}

// Resolve marks the alert with the given id resolved.
// Returns false if no such unresolved alert exists.
func (l *AlertLog) Resolve(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.alerts {
		if l.alerts[i].ID == id && !l.alerts[i].Resolved {
			l.alerts[i].Resolved = true
			l.alerts[i].ResolvedAt = l.now()
			return true
		}
	}
	return false
}

// ResolveMatching resolves all unresolved alerts whose message satisfies
// match. Returns how many alerts were resolved. Used for automatic
// resolution once a condition clears.
func (l *AlertLog) ResolveMatching(match func(message string) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	resolved := 0
	now := l.now()
	for i := range l.alerts {
		if !l.alerts[i].Resolved && match(l.alerts[i].Message) {
			l.alerts[i].Resolved = true
			l.alerts[i].ResolvedAt = now
			resolved++
		}
	}
	return resolved
}

// All returns a copy of the alert history, oldest first.
func (l *AlertLog) All() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}

// Active returns unresolved alerts, oldest first.
func (l *AlertLog) Active() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Alert
	for _, a := range l.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out
}

// HasActiveCritical reports whether any unresolved critical alert exists.
func (l *AlertLog) HasActiveCritical() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.alerts {
		if !a.Resolved && a.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
