package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbus-hq/ganymede/pkg/admission"
	"nimbus-hq/ganymede/pkg/archive"
	"nimbus-hq/ganymede/pkg/config"
	"nimbus-hq/ganymede/pkg/model"
	"nimbus-hq/ganymede/pkg/stream"
	"nimbus-hq/ganymede/pkg/telemetry/metrics"
)

// ChatRequest is an inbound chat turn.
type ChatRequest struct {
	// RequestID identifies the request. Assigned if empty.
	RequestID string `json:"request_id,omitempty"`

	// ConversationID ties the turn to a conversation.
	ConversationID string `json:"conversation_id,omitempty"`

	// Message is the user's message for this turn.
	Message string `json:"message"`

	// History holds prior turns, oldest first. Sent in full on every
	// call; the pipeline keeps no conversation state.
	History []model.Message `json:"history,omitempty"`

	// Priority is the caller-requested queue priority. Classification
	// may override it.
	Priority admission.Priority `json:"priority,omitempty"`

	// Caller is what is known about the caller.
	Caller CallerContext `json:"caller,omitempty"`
}

// GenerateResult is the outcome of a non-streaming turn.
type GenerateResult struct {
	// RequestID is the identifier assigned to the request.
	RequestID string `json:"request_id"`

	// Intent is the classified intent label.
	Intent string `json:"intent,omitempty"`

	// Response is the complete model response.
	Response *model.Response `json:"response"`
}

// job is the per-request processing step dispatched by the admission
// controller.
type job func(ctx context.Context) (any, error)

// Manager is the pipeline façade.
type Manager struct {
	cfg        *config.Config
	controller *admission.Controller
	executor   *stream.Executor
	engine     *metrics.Engine
	store      *archive.Store
	classifier Classifier
	logger     *slog.Logger

	// jobs maps a request id to its processing step for the lifetime of
	// the request, surviving coarse re-enqueues.
	jobs sync.Map

	initOnce sync.Once
	initErr  error
}

// NewManager wires the façade. engine must be non-nil: it receives the
// admission controller's queue telemetry and anchors Health. store may
// be nil when archiving is disabled; a nil classifier falls back to the
// keyword classifier.
func NewManager(cfg *config.Config, executor *stream.Executor, engine *metrics.Engine, store *archive.Store, classifier Classifier) *Manager {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	m := &Manager{
		cfg:        cfg,
		executor:   executor,
		engine:     engine,
		store:      store,
		classifier: classifier,
		logger:     slog.Default().With("component", "orchestrator"),
	}
	m.controller = admission.NewController(cfg.Queue, m.runJob, engine)
	return m
}

// Controller exposes the admission controller for lifecycle wiring
// (maintenance loop).
func (m *Manager) Controller() *admission.Controller {
	return m.controller
}

// ensureInit lazily initializes shared resources on the first request.
func (m *Manager) ensureInit(ctx context.Context) error {
	m.initOnce.Do(func() {
		if m.executor == nil {
			m.initErr = errors.New("orchestrator: no stream executor configured")
			return
		}
		if m.store != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := m.store.Ping(pingCtx); err != nil {
				// The archive is observability storage; its absence
				// degrades health but never blocks chat traffic.
				m.logger.Warn("trace archive unreachable at init", "error", err)
			}
		}
		m.logger.Info("pipeline initialized")
	})
	return m.initErr
}

// ProcessStream admits a chat turn and returns its live chunk stream.
// The admission slot is held until the stream finishes, so the
// concurrency cap bounds running streams, not just their creation.
func (m *Manager) ProcessStream(ctx context.Context, req *ChatRequest) (*stream.Stream, error) {
	if err := m.ensureInit(ctx); err != nil {
		return nil, err
	}

	sreq, priority := m.prepare(ctx, req)
	streamCh := make(chan *stream.Stream, 1)
	m.jobs.Store(sreq.RequestID, job(func(jctx context.Context) (any, error) {
		s, err := m.executor.CreateStream(jctx, sreq)
		if err != nil {
			return nil, err
		}

		proxied := make(chan *model.Chunk, cap(s.Chunks))
		streamCh <- &stream.Stream{
			RequestID:      s.RequestID,
			ConversationID: s.ConversationID,
			Chunks:         proxied,
		}

		defer close(proxied)
		for chunk := range s.Chunks {
			select {
			case proxied <- chunk:
			case <-jctx.Done():
				return nil, jctx.Err()
			}
		}
		return nil, nil
	}))

	h, err := m.controller.Enqueue(ctx, &admission.Request{
		ID:             sreq.RequestID,
		Priority:       priority,
		CallerKey:      sreq.CallerKey,
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		m.jobs.Delete(sreq.RequestID)
		return nil, err
	}

	waitRes := make(chan error, 1)
	go func() {
		_, werr := h.Wait(ctx)
		m.jobs.Delete(sreq.RequestID)
		waitRes <- werr
	}()

	select {
	case s := <-streamCh:
		return s, nil
	case werr := <-waitRes:
		// The request resolved before delivering a stream: a rejection,
		// or a stream so short it finished first.
		select {
		case s := <-streamCh:
			return s, nil
		default:
		}
		if werr == nil {
			werr = fmt.Errorf("request %s finished without producing a stream", sreq.RequestID)
		}
		return nil, werr
	}
}

// ProcessGenerate admits a chat turn and blocks for the complete response.
func (m *Manager) ProcessGenerate(ctx context.Context, req *ChatRequest) (*GenerateResult, error) {
	if err := m.ensureInit(ctx); err != nil {
		return nil, err
	}

	sreq, priority := m.prepare(ctx, req)
	m.jobs.Store(sreq.RequestID, job(func(jctx context.Context) (any, error) {
		return m.executor.Execute(jctx, sreq)
	}))
	defer m.jobs.Delete(sreq.RequestID)

	h, err := m.controller.Enqueue(ctx, &admission.Request{
		ID:             sreq.RequestID,
		Priority:       priority,
		CallerKey:      sreq.CallerKey,
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return nil, err
	}

	value, err := h.Wait(ctx)
	if err != nil {
		return nil, err
	}
	resp, ok := value.(*model.Response)
	if !ok {
		return nil, fmt.Errorf("request %s produced no response", sreq.RequestID)
	}
	return &GenerateResult{
		RequestID: sreq.RequestID,
		Intent:    sreq.Intent,
		Response:  resp,
	}, nil
}

// CancelStream cancels a live stream by request id.
func (m *Manager) CancelStream(requestID string) bool {
	return m.executor.CancelStream(requestID)
}

// runJob dispatches the admission controller's processing step to the
// job registered for the request.
func (m *Manager) runJob(ctx context.Context, req *admission.Request) (any, error) {
	v, ok := m.jobs.Load(req.ID)
	if !ok {
		return nil, fmt.Errorf("no job registered for request %s", req.ID)
	}
	return v.(job)(ctx)
}

// prepare classifies the message and assembles the executor request.
func (m *Manager) prepare(ctx context.Context, req *ChatRequest) (*stream.Request, admission.Priority) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	classification, err := m.classifier.Classify(ctx, req.Message)
	if err != nil {
		m.logger.Warn("intent classification failed",
			"request_id", req.RequestID,
			"error", err)
		classification = Classification{Intent: "general", Strategy: "single_agent"}
	}

	priority := req.Priority
	if classification.Priority != "" {
		priority = classification.Priority
	}

	messages := make([]model.Message, 0, len(req.History)+2)
	if sys := preamble(req.Caller); sys != nil {
		messages = append(messages, *sys)
	}
	messages = append(messages, req.History...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: req.Message})

	return &stream.Request{
		RequestID:      req.RequestID,
		ConversationID: req.ConversationID,
		CallerKey:      req.Caller.Key(),
		AgentID:        "chat",
		Intent:         classification.Intent,
		Model: &model.Request{
			Model:       m.cfg.Agents.Model,
			Messages:    messages,
			Temperature: m.cfg.Agents.Temperature,
			MaxTokens:   m.cfg.Agents.MaxTokens,
			Metadata: map[string]string{
				"request_id":      req.RequestID,
				"conversation_id": req.ConversationID,
				"intent":          classification.Intent,
				"strategy":        classification.Strategy,
			},
		},
	}, priority
}

// Health merges the metrics engine verdict with admission queue state
// and archive reachability under the same worst-of rule.
func (m *Manager) Health(ctx context.Context) metrics.Report {
	report := m.engine.Health()
	th := m.cfg.Telemetry.Metrics.Alerts

	stats := m.controller.Stats()
	admCheck := metrics.Check{Status: metrics.StatusHealthy}
	switch {
	case th.QueueDepthCritical > 0 && stats.Queued >= th.QueueDepthCritical:
		admCheck = metrics.Check{Status: metrics.StatusUnhealthy, Message: "admission queue at critical depth"}
	case th.QueueDepthWarning > 0 && stats.Queued >= th.QueueDepthWarning:
		admCheck = metrics.Check{Status: metrics.StatusDegraded, Message: "admission queue at warning depth"}
	}
	report.Checks["admission"] = admCheck

	if m.store != nil {
		archCheck := metrics.Check{Status: metrics.StatusHealthy}
		if err := m.store.Ping(ctx); err != nil {
			archCheck = metrics.Check{Status: metrics.StatusDegraded, Message: "trace archive unreachable"}
		}
		report.Checks["archive"] = archCheck
	}

	statuses := make([]metrics.Status, 0, len(report.Checks))
	for _, check := range report.Checks {
		statuses = append(statuses, check.Status)
	}
	report.Status = metrics.WorstOf(statuses...)
	return report
}
