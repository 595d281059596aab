package metrics

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"nimbus-hq/ganymede/pkg/config"
)

// SystemMetrics is a rolling snapshot of pipeline health, recomputed on a
// fixed timer from the traces finished within the trailing window.
type SystemMetrics struct {
	// ActiveRequests is the number of attempts currently in flight.
	ActiveRequests int `json:"active_requests"`

	// QueuedRequests is the last reported admission queue depth.
	QueuedRequests int `json:"queued_requests"`

	// WindowRequests is how many attempts finished within the window.
	WindowRequests int `json:"window_requests"`

	// SuccessRate is successes / finished, 0..1. 1 when nothing finished.
	SuccessRate float64 `json:"success_rate"`

	// ErrorRate is errors / finished, 0..1. Cancellations count as
	// neither success nor error.
	ErrorRate float64 `json:"error_rate"`

	// RequestsPerMinute is the finished-attempt rate extrapolated to a
	// minute.
	RequestsPerMinute float64 `json:"requests_per_minute"`

	// TokensPerMinute is the token consumption rate extrapolated to a
	// minute.
	TokensPerMinute float64 `json:"tokens_per_minute"`

	// AvgLatency is the mean latency over the window.
	AvgLatency time.Duration `json:"avg_latency"`

	// P50Latency, P95Latency and P99Latency are nearest-rank percentiles
	// over the window.
	P50Latency time.Duration `json:"p50_latency"`
	P95Latency time.Duration `json:"p95_latency"`
	P99Latency time.Duration `json:"p99_latency"`

	// ComputedAt is when this snapshot was produced.
	ComputedAt time.Time `json:"computed_at"`
}

// Percentile computes the p-th percentile of latencies using the
// nearest-rank method: sort ascending, index = ceil(p/100 × n) − 1, clamped
// to ≥ 0. Returns 0 for an empty input.
func Percentile(latencies []time.Duration, p float64) time.Duration {
	n := len(latencies)
	if n == 0 {
		return 0
	}

	sorted := make([]time.Duration, n)
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// Aggregate recomputes the rolling snapshot immediately and runs the
// error-rate and queue-depth alert checks. It is invoked by the Run loop on
// every tick and can be called directly (tests, on-demand refresh).
func (e *Engine) Aggregate() SystemMetrics {
	now := e.now()
	cutoff := now.Add(-e.rollingWindow)
	recent := e.recentTraces(cutoff)

	snap := SystemMetrics{
		ActiveRequests: int(e.active.Load()),
		ComputedAt:     now,
		SuccessRate:    1,
	}

	var (
		successes int
		errors    int
		tokens    int
		totalLat  time.Duration
	)
	latencies := make([]time.Duration, 0, len(recent))

	for _, t := range recent {
		switch t.Outcome {
		case OutcomeSuccess:
			successes++
		case OutcomeError:
			errors++
		}
		tokens += t.TokensUsed
		totalLat += t.Latency
		latencies = append(latencies, t.Latency)
	}

	snap.WindowRequests = len(recent)
	if len(recent) > 0 {
		snap.SuccessRate = float64(successes) / float64(len(recent))
		snap.ErrorRate = float64(errors) / float64(len(recent))
		snap.AvgLatency = totalLat / time.Duration(len(recent))

		perMinute := float64(time.Minute) / float64(e.rollingWindow)
		snap.RequestsPerMinute = float64(len(recent)) * perMinute
		snap.TokensPerMinute = float64(tokens) * perMinute

		snap.P50Latency = Percentile(latencies, 50)
		snap.P95Latency = Percentile(latencies, 95)
		snap.P99Latency = Percentile(latencies, 99)
	}

	e.mu.Lock()
	snap.QueuedRequests = e.queueDepth
	e.snapshot = snap
	thresholds := e.thresholds
	e.mu.Unlock()

	if e.enabled {
		e.checkErrorRate(snap.ErrorRate, snap.WindowRequests, thresholds)
		e.checkQueueDepth(snap.QueuedRequests, thresholds)
	}

	return snap
}

// checkErrorRate raises or auto-resolves error-rate alerts.
func (e *Engine) checkErrorRate(rate float64, finished int, th config.AlertThresholds) {
	const message = "rolling error rate above threshold"

	if finished == 0 {
		return
	}

	switch {
	case th.ErrorRateCritical > 0 && rate >= th.ErrorRateCritical:
		e.raise(SeverityCritical, message)
	case th.ErrorRateWarning > 0 && rate >= th.ErrorRateWarning:
		e.raise(SeverityWarning, message)
	default:
		// Condition cleared: resolve any standing error-rate alert.
		e.alerts.ResolveMatching(func(msg string) bool { return msg == message })
	}
}

// checkQueueDepth raises or auto-resolves queue-depth alerts.
func (e *Engine) checkQueueDepth(depth int, th config.AlertThresholds) {
	const message = "admission queue depth above threshold"

	switch {
	case th.QueueDepthCritical > 0 && depth >= th.QueueDepthCritical:
		e.raise(SeverityCritical, message)
	case th.QueueDepthWarning > 0 && depth >= th.QueueDepthWarning:
		e.raise(SeverityWarning, message)
	default:
		e.alerts.ResolveMatching(func(msg string) bool { return msg == message })
	}
}

// SystemSnapshot returns the last aggregated snapshot. It does not trigger
// recomputation; the Run loop keeps the snapshot fresh.
func (e *Engine) SystemSnapshot() SystemMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Run drives periodic aggregation until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	logger := slog.Default().With("component", "metrics.engine")
	logger.Info("metrics aggregation started",
		"interval", e.aggregationInterval,
		"window", e.rollingWindow,
	)

	ticker := time.NewTicker(e.aggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("metrics aggregation stopped")
			return
		case <-ticker.C:
			e.Aggregate()
		}
	}
}
