package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"nimbus-hq/ganymede/pkg/config"
)

// Outcome is the terminal state of a traced attempt.
type Outcome string

const (
	// OutcomeSuccess means the attempt completed and delivered a response.
	OutcomeSuccess Outcome = "success"

	// OutcomeError means the attempt failed terminally.
	OutcomeError Outcome = "error"

	// OutcomeCancelled means the caller aborted the attempt. Cancellation
	// is a distinct outcome: neither a success nor a failure.
	OutcomeCancelled Outcome = "cancelled"
)

// RequestTrace records the lifecycle of a single logical model attempt.
// It is created by Engine.StartRequest and finalized exactly once by
// Engine.CompleteRequest.
type RequestTrace struct {
	// ID is the unique trace identifier.
	ID string `json:"id"`

	// RequestID is the logical request this attempt belongs to.
	RequestID string `json:"request_id"`

	// AgentID identifies the logical agent handling the request.
	AgentID string `json:"agent_id"`

	// ModelID identifies the model invoked.
	ModelID string `json:"model_id"`

	// CallerID identifies the caller (email or anonymous id), if known.
	CallerID string `json:"caller_id,omitempty"`

	// Intent is the classified intent label, if classification ran.
	Intent string `json:"intent,omitempty"`

	// StartTime is when the attempt started.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the attempt finished.
	EndTime time.Time `json:"end_time"`

	// Latency is EndTime minus StartTime.
	Latency time.Duration `json:"latency"`

	// TokensUsed is the total token count reported by the backend.
	TokensUsed int `json:"tokens_used"`

	// ToolsInvoked lists tool names the model invoked, in first-seen order.
	ToolsInvoked []string `json:"tools_invoked,omitempty"`

	// Outcome is the terminal state of the attempt.
	Outcome Outcome `json:"outcome"`

	// Success is true when Outcome is OutcomeSuccess.
	Success bool `json:"success"`

	// ErrorMessage carries the terminal error text for failed attempts.
	ErrorMessage string `json:"error_message,omitempty"`

	// finalized guards against double finalization.
	finalized atomic.Bool
}

// Result carries the terminal details of an attempt into CompleteRequest.
type Result struct {
	// Outcome is the terminal state.
	Outcome Outcome

	// TokensUsed is the token count for the attempt, if known.
	TokensUsed int

	// Tools lists tool names invoked during the attempt.
	Tools []string

	// Intent is the classified intent label, if any.
	Intent string

	// Err is the terminal error for failed attempts.
	Err error
}

// TraceSink receives finalized traces, e.g. for archival.
type TraceSink func(t *RequestTrace)

// Engine collects request traces, aggregates rolling system metrics, and
// raises threshold alerts.
type Engine struct {
	mu sync.Mutex

	enabled bool

	// thresholds may be swapped at runtime via SetThresholds (config hot
	// reload); reads take the mutex.
	thresholds config.AlertThresholds

	// traces is a bounded ring buffer of finalized traces.
	traces []*RequestTrace
	// latencies is a parallel bounded ring buffer of finalized latencies.
	latencies []time.Duration
	// pos is the next write position; size is the filled length.
	pos, size int

	rollingWindow       time.Duration
	aggregationInterval time.Duration

	// snapshot is the last aggregation result.
	snapshot SystemMetrics

	// queueDepth is the last externally reported queue depth.
	queueDepth int

	alerts *AlertLog

	active atomic.Int64

	prom *promMetrics
	sink TraceSink

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewEngine creates a metrics engine from configuration. If registry is
// non-nil, Prometheus metrics are registered on it.
func NewEngine(cfg config.MetricsConfig, registry *prometheus.Registry) *Engine {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = config.DefaultMetricsBufferSize
	}

	maxAlerts := cfg.MaxAlerts
	if maxAlerts <= 0 {
		maxAlerts = config.DefaultMaxAlerts
	}

	rollingWindow := cfg.RollingWindow
	if rollingWindow <= 0 {
		rollingWindow = config.DefaultRollingWindow
	}

	aggregationInterval := cfg.AggregationInterval
	if aggregationInterval <= 0 {
		aggregationInterval = config.DefaultAggregationInterval
	}

	enabled := cfg.Enabled == nil || *cfg.Enabled

	e := &Engine{
		enabled:             enabled,
		thresholds:          cfg.Alerts,
		traces:              make([]*RequestTrace, bufferSize),
		latencies:           make([]time.Duration, bufferSize),
		rollingWindow:       rollingWindow,
		aggregationInterval: aggregationInterval,
		alerts:              NewAlertLog(maxAlerts),
		now:                 time.Now,
	}

	if registry != nil && enabled {
		e.prom = newPromMetrics(cfg, registry)
	}

	return e
}

// StartRequest opens a trace for a model attempt.
func (e *Engine) StartRequest(agentID, modelID, callerID string) *RequestTrace {
	t := &RequestTrace{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		ModelID:   modelID,
		CallerID:  callerID,
		StartTime: e.now(),
	}

	e.active.Add(1)
	if e.prom != nil {
		e.prom.activeRequests.Inc()
	}

	return t
}

// CompleteRequest finalizes a trace with the given result. Finalization
// happens exactly once; repeated calls for the same trace are no-ops.
// Success, failure and cancellation all count as one finalization.
func (e *Engine) CompleteRequest(t *RequestTrace, res Result) *RequestTrace {
	if t == nil || !t.finalized.CompareAndSwap(false, true) {
		return t
	}

	t.EndTime = e.now()
	t.Latency = t.EndTime.Sub(t.StartTime)
	t.Outcome = res.Outcome
	t.Success = res.Outcome == OutcomeSuccess
	t.TokensUsed = res.TokensUsed
	if len(res.Tools) > 0 {
		t.ToolsInvoked = res.Tools
	}
	if res.Intent != "" {
		t.Intent = res.Intent
	}
	if res.Err != nil {
		t.ErrorMessage = res.Err.Error()
	}

	e.active.Add(-1)

	if !e.enabled {
		return t
	}

	e.mu.Lock()
	e.traces[e.pos] = t
	e.latencies[e.pos] = t.Latency
	e.pos = (e.pos + 1) % len(e.traces)
	if e.size < len(e.traces) {
		e.size++
	}
	thresholds := e.thresholds
	e.mu.Unlock()

	// Latency alerting runs on every completion, unlike the rolling
	// aggregates which run on the timer.
	e.checkLatency(t.Latency, thresholds)

	if e.prom != nil {
		e.prom.recordCompletion(t)
	}

	if e.sink != nil {
		e.sink(t)
	}

	return t
}

// checkLatency raises latency alerts against per-request thresholds.
func (e *Engine) checkLatency(latency time.Duration, th config.AlertThresholds) {
	if th.LatencyCritical > 0 && latency >= th.LatencyCritical {
		e.raise(SeverityCritical, "request latency above critical threshold")
		return
	}
	if th.LatencyWarning > 0 && latency >= th.LatencyWarning {
		e.raise(SeverityWarning, "request latency above warning threshold")
	}
}

// raise records an alert and exports it, honoring deduplication.
func (e *Engine) raise(severity Severity, message string) {
	if alert := e.alerts.Raise(severity, message); alert != nil && e.prom != nil {
		e.prom.alertsTotal.WithLabelValues(string(severity)).Inc()
	}
}

// ReportQueueDepth records the admission controller's current queue depth.
func (e *Engine) ReportQueueDepth(depth int) {
	e.mu.Lock()
	e.queueDepth = depth
	e.mu.Unlock()

	if e.prom != nil {
		e.prom.queueDepth.Set(float64(depth))
	}
}

// RecordRetry counts a retry attempt in the stream executor.
func (e *Engine) RecordRetry(reason string) {
	if e.prom != nil {
		e.prom.retriesTotal.WithLabelValues(reason).Inc()
	}
}

// ActiveRequests returns the number of traces started but not yet finalized.
func (e *Engine) ActiveRequests() int {
	return int(e.active.Load())
}

// SetThresholds replaces the alert thresholds at runtime (config reload).
func (e *Engine) SetThresholds(th config.AlertThresholds) {
	e.mu.Lock()
	e.thresholds = th
	e.mu.Unlock()
}

// SetTraceSink installs a sink receiving every finalized trace.
// Must be called before traffic starts; it is not synchronized.
func (e *Engine) SetTraceSink(sink TraceSink) {
	e.sink = sink
}

// Alerts returns a copy of the alert history, newest last.
func (e *Engine) Alerts() []Alert {
	return e.alerts.All()
}

// ActiveAlerts returns unresolved alerts.
func (e *Engine) ActiveAlerts() []Alert {
	return e.alerts.Active()
}

// ResolveAlert marks the alert with the given id resolved.
func (e *Engine) ResolveAlert(id string) bool {
	return e.alerts.Resolve(id)
}

// recentTraces returns the finalized traces whose end time falls within the
// trailing window, plus the latencies buffer copy, under one lock.
func (e *Engine) recentTraces(cutoff time.Time) []*RequestTrace {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*RequestTrace, 0, e.size)
	for i := 0; i < e.size; i++ {
		t := e.traces[i]
		if t != nil && !t.EndTime.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
