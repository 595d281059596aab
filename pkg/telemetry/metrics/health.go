package metrics

import "time"

// Status is a component or system health verdict.
type Status string

const (
	// StatusHealthy means all checks pass.
	StatusHealthy Status = "healthy"

	// StatusDegraded means at least one check is at its warning level.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means at least one check fails outright.
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of a single health check.
type Check struct {
	// Status is the check verdict.
	Status Status `json:"status"`

	// Message provides context for non-healthy checks.
	Message string `json:"message,omitempty"`
}

// Report is an aggregated health verdict with per-check detail.
type Report struct {
	// Status is the overall verdict: the worst of all checks.
	Status Status `json:"status"`

	// Checks contains individual check results keyed by check name.
	Checks map[string]Check `json:"checks"`

	// Timestamp is when the report was produced.
	Timestamp time.Time `json:"timestamp"`
}

// WorstOf combines statuses: any unhealthy wins, then any degraded,
// otherwise healthy.
func WorstOf(statuses ...Status) Status {
	worst := StatusHealthy
	for _, s := range statuses {
		switch s {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			worst = StatusDegraded
		}
	}
	return worst
}

// Health evaluates the engine's health from the last aggregated snapshot:
// error rate, p95 latency, queue depth, and absence of active critical
// alerts. Any failing check yields unhealthy; any warning-level check yields
// degraded; otherwise healthy.
func (e *Engine) Health() Report {
	e.mu.Lock()
	snap := e.snapshot
	th := e.thresholds
	e.mu.Unlock()

	checks := make(map[string]Check, 4)

	// Error rate check. Thresholds are inclusive: a rate exactly at the
	// threshold breaches it.
	errCheck := Check{Status: StatusHealthy}
	switch {
	case th.ErrorRateCritical > 0 && snap.ErrorRate >= th.ErrorRateCritical:
		errCheck = Check{Status: StatusUnhealthy, Message: "error rate at critical threshold"}
	case th.ErrorRateWarning > 0 && snap.ErrorRate >= th.ErrorRateWarning:
		errCheck = Check{Status: StatusDegraded, Message: "error rate at warning threshold"}
	}
	checks["error_rate"] = errCheck

	latCheck := Check{Status: StatusHealthy}
	switch {
	case th.LatencyCritical > 0 && snap.P95Latency >= th.LatencyCritical:
		latCheck = Check{Status: StatusUnhealthy, Message: "p95 latency at critical threshold"}
	case th.LatencyWarning > 0 && snap.P95Latency >= th.LatencyWarning:
		latCheck = Check{Status: StatusDegraded, Message: "p95 latency at warning threshold"}
	}
	checks["latency"] = latCheck

	depthCheck := Check{Status: StatusHealthy}
	switch {
	case th.QueueDepthCritical > 0 && snap.QueuedRequests >= th.QueueDepthCritical:
		depthCheck = Check{Status: StatusUnhealthy, Message: "queue depth at critical threshold"}
	case th.QueueDepthWarning > 0 && snap.QueuedRequests >= th.QueueDepthWarning:
		depthCheck = Check{Status: StatusDegraded, Message: "queue depth at warning threshold"}
	}
	checks["queue_depth"] = depthCheck

	alertCheck := Check{Status: StatusHealthy}
	if e.alerts.HasActiveCritical() {
		alertCheck = Check{Status: StatusUnhealthy, Message: "active critical alerts"}
	}
	checks["alerts"] = alertCheck

	return Report{
		Status: WorstOf(errCheck.Status, latCheck.Status,
			depthCheck.Status, alertCheck.Status),
		Checks:    checks,
		Timestamp: e.now(),
	}
}
