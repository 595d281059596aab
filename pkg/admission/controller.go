package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbus-hq/ganymede/pkg/config"
)

// ProcessFunc is the embedded processing step a dequeued request runs
// through. A non-nil error triggers the controller's coarse re-enqueue
// retry; context errors are terminal.
type ProcessFunc func(ctx context.Context, req *Request) (any, error)

// Monitor receives queue telemetry. *metrics.Engine satisfies it.
type Monitor interface {
	ReportQueueDepth(depth int)
	RecordRetry(reason string)
}

// Controller admits, queues and dispatches requests. See the package
// documentation for the admission pipeline.
type Controller struct {
	cfg     config.QueueConfig
	process ProcessFunc
	limiter *WindowLimiter
	monitor Monitor
	logger  *slog.Logger

	mu       sync.Mutex
	queue    *priorityQueue
	inflight map[string]struct{}

	now func() time.Time
}

// NewController builds a controller. process must be non-nil; monitor
// may be nil when telemetry is disabled.
func NewController(cfg config.QueueConfig, process ProcessFunc, monitor Monitor) *Controller {
	return &Controller{
		cfg:      cfg,
		process:  process,
		limiter:  NewWindowLimiter(cfg.RateLimit),
		monitor:  monitor,
		logger:   slog.Default().With("component", "admission"),
		queue:    newPriorityQueue(),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Enqueue admits req into the queue and returns a handle that resolves
// once processing finishes or the request is rejected. Rejections that
// happen before queueing (rate limit, backpressure) are returned
// directly; later rejections (queue timeout, exhausted retries) resolve
// through the handle.
//
// The MaxQueueSize bound applies to new admissions only. A coarse retry
// re-enqueues an already-admitted request without re-checking it, so
// total queued can transiently exceed the bound by up to MaxConcurrent
// retrying requests.
//
// ctx governs the request end to end: it cancels processing and, via
// Handle.Wait, the caller's wait.
func (c *Controller) Enqueue(ctx context.Context, req *Request) (*Handle, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if _, ok := ParsePriority(string(req.Priority)); !ok {
		req.Priority = Priority(c.cfg.DefaultPriority)
	}
	if req.MaxRetries == 0 {
		req.MaxRetries = c.cfg.MaxRetries
	}

	if d := c.limiter.Allow(req.CallerKey); !d.Allowed {
		c.logger.Warn("request rate limited",
			"request_id", req.ID,
			"caller", req.CallerKey,
			"retry_after", d.RetryAfter)
		return nil, &RateLimitedError{
			CallerKey:  req.CallerKey,
			Limit:      c.limiter.Limit(),
			RetryAfter: d.RetryAfter,
		}
	}

	c.mu.Lock()
	if size := c.queue.size(); size >= c.cfg.MaxQueueSize {
		c.mu.Unlock()
		c.logger.Warn("queue at capacity, rejecting request",
			"request_id", req.ID,
			"queue_size", size)
		return nil, &BusyError{QueueSize: size, MaxQueueSize: c.cfg.MaxQueueSize}
	}

	req.EnqueuedAt = c.now()
	p := &pending{req: req, ctx: ctx, ch: make(chan result, 1)}
	p.timer = time.AfterFunc(c.cfg.RequestTimeout, func() { c.onQueueTimeout(p) })
	c.queue.push(p)
	c.reportDepthLocked()
	c.dispatchLocked()
	c.mu.Unlock()

	c.logger.Debug("request enqueued",
		"request_id", req.ID,
		"priority", req.Priority,
		"caller", req.CallerKey)

	return &Handle{requestID: req.ID, ch: p.ch}, nil
}

// dispatchLocked starts processing for queued requests while concurrency
// slots remain. Caller holds c.mu.
func (c *Controller) dispatchLocked() {
	for len(c.inflight) < c.cfg.MaxConcurrent {
		p := c.queue.pop()
		if p == nil {
			return
		}
		p.timer.Stop()
		c.inflight[p.req.ID] = struct{}{}
		c.reportDepthLocked()
		go c.run(p)
	}
}

// run executes the processing step for a dispatched request, applying
// the coarse queue-level retry, then releases the concurrency slot.
func (c *Controller) run(p *pending) {
	req := p.req

	if err := p.ctx.Err(); err != nil {
		p.resolve(nil, err)
		c.release(req.ID)
		return
	}

	value, err := c.process(p.ctx, req)
	switch {
	case err == nil:
		p.resolve(value, nil)

	case p.ctx.Err() != nil:
		// Cancellation is terminal regardless of remaining retries.
		p.resolve(nil, p.ctx.Err())

	case req.RetryCount < req.MaxRetries:
		req.RetryCount++
		if c.monitor != nil {
			c.monitor.RecordRetry("queue_reprocess")
		}
		c.logger.Info("processing failed, re-enqueueing",
			"request_id", req.ID,
			"retry", req.RetryCount,
			"max_retries", req.MaxRetries,
			"error", err)

		// Re-admission skips the MaxQueueSize check: the request already
		// holds its admission, rejecting it now would turn a transient
		// failure into a Busy rejection.
		c.mu.Lock()
		delete(c.inflight, req.ID)
		req.EnqueuedAt = c.now()
		p.timer = time.AfterFunc(c.cfg.RequestTimeout, func() { c.onQueueTimeout(p) })
		c.queue.push(p)
		c.reportDepthLocked()
		c.dispatchLocked()
		c.mu.Unlock()
		return

	default:
		c.logger.Error("processing failed terminally",
			"request_id", req.ID,
			"retries", req.RetryCount,
			"error", err)
		p.resolve(nil, err)
	}

	c.release(req.ID)
}

// release frees a concurrency slot and dispatches the next queued
// request, if any.
func (c *Controller) release(requestID string) {
	c.mu.Lock()
	delete(c.inflight, requestID)
	c.dispatchLocked()
	c.mu.Unlock()
}

// onQueueTimeout rejects a request that waited past the queue timeout.
// A request that already dispatched is left alone.
func (c *Controller) onQueueTimeout(p *pending) {
	c.mu.Lock()
	removed := c.queue.remove(p)
	if removed {
		c.reportDepthLocked()
	}
	c.mu.Unlock()

	if !removed {
		return
	}
	waited := c.now().Sub(p.req.EnqueuedAt)
	c.logger.Warn("request timed out in queue",
		"request_id", p.req.ID,
		"priority", p.req.Priority,
		"waited", waited)
	p.resolve(nil, &TimedOutError{RequestID: p.req.ID, Waited: waited})
}

// reportDepthLocked pushes the current queue depth to the monitor.
// Caller holds c.mu.
func (c *Controller) reportDepthLocked() {
	if c.monitor != nil {
		c.monitor.ReportQueueDepth(c.queue.size())
	}
}

// Run performs periodic maintenance (rate-limit record sweeping) until
// ctx is cancelled. Call it in its own goroutine.
func (c *Controller) Run(ctx context.Context) {
	interval := c.cfg.RateLimit.Window
	if interval <= 0 {
		interval = config.DefaultRateLimitWindow
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.limiter.Sweep(); removed > 0 {
				c.logger.Debug("swept idle rate-limit records", "removed", removed)
			}
		}
	}
}

// Stats returns a point-in-time view of the queues.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Queued:        c.queue.size(),
		PerBucket:     c.queue.sizes(),
		InFlight:      len(c.inflight),
		MaxConcurrent: c.cfg.MaxConcurrent,
		MaxQueueSize:  c.cfg.MaxQueueSize,
	}
}
