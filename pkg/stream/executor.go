package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbus-hq/ganymede/pkg/config"
	"nimbus-hq/ganymede/pkg/model"
	"nimbus-hq/ganymede/pkg/telemetry/metrics"
)

// chunkBuffer is the forwarding channel capacity. Large enough to absorb
// delivery bursts without blocking the model read loop on a slow consumer.
// The last slot is reserved for the terminal chunk: data sends stop at
// chunkBuffer-1, so a failure or cancellation signal is never dropped.
const chunkBuffer = 32

// reservePoll is how often a blocked data send re-checks the reserved
// slot while the consumer is not draining.
const reservePoll = 5 * time.Millisecond

// Request is a unit of streaming work.
type Request struct {
	// RequestID identifies the stream for cancellation. Assigned if empty.
	RequestID string

	// ConversationID ties the stream to a conversation.
	ConversationID string

	// CallerKey identifies the caller for tracing.
	CallerKey string

	// AgentID labels the logical agent handling the request.
	AgentID string

	// Intent is the classified intent label, if classification ran.
	Intent string

	// Model is the request forwarded to the model client.
	Model *model.Request
}

// Stream is a live chunk stream handed to the consumer. Chunks closes
// when the stream finishes; the final chunk carries a non-nil Err when
// the stream failed or was cancelled.
type Stream struct {
	RequestID      string
	ConversationID string
	Chunks         <-chan *model.Chunk
}

// Executor drives model calls through a round-robin client pool with
// retry, backoff and cancellation by request id.
type Executor struct {
	cfg     config.StreamConfig
	pool    *model.Pool
	metrics *metrics.Engine
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc

	// sleep is injectable so retry tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an executor. engine may be nil when telemetry is
// disabled.
func NewExecutor(cfg config.StreamConfig, pool *model.Pool, engine *metrics.Engine) *Executor {
	return &Executor{
		cfg:     cfg,
		pool:    pool,
		metrics: engine,
		logger:  slog.Default().With("component", "stream"),
		active:  make(map[string]context.CancelFunc),
		sleep:   sleep,
	}
}

// CreateStream starts a streaming attempt and returns immediately; the
// retry loop runs in a goroutine feeding the returned channel.
func (e *Executor) CreateStream(ctx context.Context, req *Request) (*Stream, error) {
	if req.Model == nil {
		return nil, errors.New("stream: nil model request")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	e.register(req.RequestID, cancel)

	out := make(chan *model.Chunk, chunkBuffer)
	go e.run(streamCtx, req, out)

	return &Stream{
		RequestID:      req.RequestID,
		ConversationID: req.ConversationID,
		Chunks:         out,
	}, nil
}

// Execute runs a non-streaming generation with the same retry policy.
func (e *Executor) Execute(ctx context.Context, req *Request) (*model.Response, error) {
	if req.Model == nil {
		return nil, errors.New("stream: nil model request")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	execCtx, cancel := context.WithCancel(ctx)
	e.register(req.RequestID, cancel)
	defer e.deregister(req.RequestID)
	defer cancel()

	trace := e.startTrace(req)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries+1; attempt++ {
		if err := execCtx.Err(); err != nil {
			e.finalize(trace, req, metrics.Result{Outcome: metrics.OutcomeCancelled, Err: model.ErrStreamCancelled})
			return nil, model.ErrStreamCancelled
		}

		client := e.pool.Next()
		resp, err := e.generateOnce(execCtx, client, req.Model)
		if err == nil {
			tokens := resp.Usage.TotalTokens
			tools := toolNames(resp.ToolCalls, nil)
			e.finalize(trace, req, metrics.Result{
				Outcome:    metrics.OutcomeSuccess,
				TokensUsed: tokens,
				Tools:      tools,
			})
			return resp, nil
		}

		lastErr = err
		if !e.retry(execCtx, req, attempt, err) {
			break
		}
	}

	if execCtx.Err() != nil {
		e.finalize(trace, req, metrics.Result{Outcome: metrics.OutcomeCancelled, Err: model.ErrStreamCancelled})
		return nil, model.ErrStreamCancelled
	}
	e.finalize(trace, req, metrics.Result{Outcome: metrics.OutcomeError, Err: lastErr})
	return nil, lastErr
}

// generateOnce runs one generation attempt under the optional per-attempt
// deadline.
func (e *Executor) generateOnce(ctx context.Context, client model.Client, req *model.Request) (*model.Response, error) {
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()
	}
	return client.Generate(ctx, req)
}

// CancelStream cancels the live stream with the given request id,
// reporting whether one was found.
func (e *Executor) CancelStream(requestID string) bool {
	e.mu.Lock()
	cancel, ok := e.active[requestID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	e.logger.Info("stream cancelled", "request_id", requestID)
	return true
}

// ActiveStreams returns the number of live streams.
func (e *Executor) ActiveStreams() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *Executor) register(requestID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.active[requestID] = cancel
	e.mu.Unlock()
}

func (e *Executor) deregister(requestID string) {
	e.mu.Lock()
	delete(e.active, requestID)
	e.mu.Unlock()
}

// run is the stream retry loop. It owns out and always closes it.
func (e *Executor) run(ctx context.Context, req *Request, out chan<- *model.Chunk) {
	defer close(out)
	defer e.deregister(req.RequestID)

	trace := e.startTrace(req)

	// Tool invocations accumulate across attempts so the trace carries
	// the full list even when an attempt is retried mid-stream.
	var tools []string
	tokens := 0

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries+1; attempt++ {
		if ctx.Err() != nil {
			e.finishCancelled(trace, req, out, tokens, tools)
			return
		}

		client := e.pool.Next()
		ch, err := e.streamOnce(ctx, client, req.Model)
		if err == nil {
			var done bool
			done, err = e.deliver(ctx, ch, out, &tokens, &tools)
			if done {
				e.finalize(trace, req, metrics.Result{
					Outcome:    metrics.OutcomeSuccess,
					TokensUsed: tokens,
					Tools:      tools,
				})
				return
			}
		}

		if ctx.Err() != nil {
			e.finishCancelled(trace, req, out, tokens, tools)
			return
		}

		lastErr = err
		if !e.retry(ctx, req, attempt, err) {
			break
		}
	}

	if ctx.Err() != nil {
		e.finishCancelled(trace, req, out, tokens, tools)
		return
	}

	e.finalize(trace, req, metrics.Result{
		Outcome:    metrics.OutcomeError,
		TokensUsed: tokens,
		Tools:      tools,
		Err:        lastErr,
	})
	e.emit(out, &model.Chunk{ID: req.RequestID, Err: lastErr})
}

// streamOnce opens one streaming attempt.
func (e *Executor) streamOnce(ctx context.Context, client model.Client, req *model.Request) (<-chan *model.Chunk, error) {
	return client.Stream(ctx, req)
}

// deliver forwards chunks from one attempt. It returns done=true when the
// attempt finished cleanly, or the chunk error that interrupted it.
func (e *Executor) deliver(ctx context.Context, ch <-chan *model.Chunk, out chan<- *model.Chunk, tokens *int, tools *[]string) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				// Clean close without an explicit finish marker still
				// counts as a finished attempt.
				return true, nil
			}
			if chunk.Err != nil {
				return false, chunk.Err
			}

			*tools = toolNames(chunk.ToolCalls, *tools)
			if chunk.Usage != nil {
				*tokens = chunk.Usage.TotalTokens
			}

			if err := e.send(ctx, out, chunk); err != nil {
				return false, err
			}

			if chunk.FinishReason != "" {
				return true, nil
			}
		}
	}
}

// retry reports whether another attempt should run, sleeping the backoff
// if so.
func (e *Executor) retry(ctx context.Context, req *Request, attempt int, err error) bool {
	if attempt > e.cfg.MaxRetries || !model.IsRetryable(err) {
		return false
	}

	delay := Backoff(e.cfg, attempt)
	e.logger.Warn("attempt failed, retrying",
		"request_id", req.RequestID,
		"attempt", attempt,
		"backoff", delay,
		"error", err)

	if e.metrics != nil {
		e.metrics.RecordRetry(retryReason(err))
	}

	return e.sleep(ctx, delay) == nil
}

// finishCancelled finalizes a cancelled stream and emits the terminal
// cancellation chunk.
func (e *Executor) finishCancelled(trace *metrics.RequestTrace, req *Request, out chan<- *model.Chunk, tokens int, tools []string) {
	e.finalize(trace, req, metrics.Result{
		Outcome:    metrics.OutcomeCancelled,
		TokensUsed: tokens,
		Tools:      tools,
		Err:        model.ErrStreamCancelled,
	})
	e.emit(out, &model.Chunk{ID: req.RequestID, Err: model.ErrStreamCancelled})
}

// send forwards a data chunk, holding back while the buffer is at
// chunkBuffer-1 so the reserved terminal slot stays free. run is the
// only sender, so occupancy can only drop between the check and the
// send.
func (e *Executor) send(ctx context.Context, out chan<- *model.Chunk, chunk *model.Chunk) error {
	for len(out) >= cap(out)-1 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reservePoll):
		}
	}
	select {
	case out <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit sends the terminal chunk. Data sends never fill the last buffer
// slot and run emits at most one terminal chunk, so this cannot block.
func (e *Executor) emit(out chan<- *model.Chunk, chunk *model.Chunk) {
	out <- chunk
}

// startTrace opens a trace when telemetry is on.
func (e *Executor) startTrace(req *Request) *metrics.RequestTrace {
	if e.metrics == nil || !e.tracingEnabled() {
		return nil
	}
	trace := e.metrics.StartRequest(req.AgentID, req.Model.Model, req.CallerKey)
	trace.RequestID = req.RequestID
	return trace
}

func (e *Executor) tracingEnabled() bool {
	return e.cfg.MetricsEnabled == nil || *e.cfg.MetricsEnabled
}

// finalize completes the trace, if any.
func (e *Executor) finalize(trace *metrics.RequestTrace, req *Request, res metrics.Result) {
	if trace == nil || e.metrics == nil {
		return
	}
	res.Intent = req.Intent
	e.metrics.CompleteRequest(trace, res)
}

// retryReason labels a retryable error for the retry counter.
func retryReason(err error) string {
	var rateLimit *model.RateLimitError
	var timeout *model.TimeoutError
	var server *model.ServerError
	switch {
	case errors.As(err, &rateLimit):
		return "rate_limited"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &server):
		return "server_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network"
	}
}

// toolNames appends tool call names to acc, skipping duplicates.
func toolNames(calls []model.ToolCall, acc []string) []string {
	for _, call := range calls {
		seen := false
		for _, name := range acc {
			if name == call.Name {
				seen = true
				break
			}
		}
		if !seen {
			acc = append(acc, call.Name)
		}
	}
	return acc
}
