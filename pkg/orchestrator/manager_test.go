package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nimbus-hq/ganymede/pkg/admission"
	"nimbus-hq/ganymede/pkg/config"
	"nimbus-hq/ganymede/pkg/model"
	"nimbus-hq/ganymede/pkg/stream"
	"nimbus-hq/ganymede/pkg/telemetry/metrics"
)

type fakeClient struct {
	mu       sync.Mutex
	requests []*model.Request

	streamFn   func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error)
	generateFn func(ctx context.Context, req *model.Request) (*model.Response, error)
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) record(req *model.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
}

func (f *fakeClient) lastRequest() *model.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeClient) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	f.record(req)
	if f.generateFn != nil {
		return f.generateFn(ctx, req)
	}
	return &model.Response{
		ID:           "resp-1",
		Model:        req.Model,
		Content:      "a full reply",
		FinishReason: model.FinishReasonStop,
		Usage:        model.TokenUsage{TotalTokens: 12},
	}, nil
}

func (f *fakeClient) Stream(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
	f.record(req)
	if f.streamFn != nil {
		return f.streamFn(ctx, req)
	}
	ch := make(chan *model.Chunk, 3)
	ch <- &model.Chunk{ID: "resp-1", Delta: "a streamed "}
	ch <- &model.Chunk{ID: "resp-1", Delta: "reply"}
	ch <- &model.Chunk{ID: "resp-1", FinishReason: model.FinishReasonStop}
	close(ch)
	return ch, nil
}

func testManager(t *testing.T, client model.Client, mutate func(*config.Config)) (*Manager, *metrics.Engine) {
	t.Helper()
	cfg := config.Default()
	cfg.Stream.InitialBackoff = time.Millisecond
	cfg.Stream.MaxBackoff = 2 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	engine := metrics.NewEngine(cfg.Telemetry.Metrics, nil)
	pool, err := model.NewPoolWithFactory(1, func(i int) model.Client { return client })
	if err != nil {
		t.Fatalf("NewPoolWithFactory: %v", err)
	}
	exec := stream.NewExecutor(cfg.Stream, pool, engine)
	return NewManager(cfg, exec, engine, nil, nil), engine
}

func TestManager_ProcessGenerate(t *testing.T) {
	client := &fakeClient{}
	m, _ := testManager(t, client, nil)

	res, err := m.ProcessGenerate(context.Background(), &ChatRequest{
		Message: "Where is my order?",
		Caller:  CallerContext{Email: "dana@example.com"},
	})
	if err != nil {
		t.Fatalf("ProcessGenerate: %v", err)
	}
	if res.RequestID == "" {
		t.Error("RequestID not assigned")
	}
	if res.Intent != "order_status" {
		t.Errorf("Intent = %q, want order_status", res.Intent)
	}
	if res.Response.Content != "a full reply" {
		t.Errorf("Content = %q", res.Response.Content)
	}
}

func TestManager_ProcessStream(t *testing.T) {
	client := &fakeClient{}
	m, _ := testManager(t, client, nil)

	s, err := m.ProcessStream(context.Background(), &ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}

	text := ""
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-s.Chunks:
			if !ok {
				if text != "a streamed reply" {
					t.Errorf("assembled text = %q", text)
				}
				return
			}
			if chunk.Err != nil {
				t.Fatalf("chunk error: %v", chunk.Err)
			}
			text += chunk.Delta
		case <-deadline:
			t.Fatal("stream did not close")
		}
	}
}

func TestManager_PreambleAndHistoryAssembly(t *testing.T) {
	client := &fakeClient{}
	m, _ := testManager(t, client, nil)

	history := []model.Message{
		{Role: model.RoleUser, Content: "earlier question"},
		{Role: model.RoleAssistant, Content: "earlier answer"},
	}
	_, err := m.ProcessGenerate(context.Background(), &ChatRequest{
		Message: "and a follow-up",
		History: history,
		Caller:  CallerContext{Name: "Dana Reyes", OrderID: "ORD-4471"},
	})
	if err != nil {
		t.Fatalf("ProcessGenerate: %v", err)
	}

	sent := client.lastRequest()
	if sent == nil {
		t.Fatal("model client never invoked")
	}
	if len(sent.Messages) != 4 {
		t.Fatalf("messages = %d, want 4 (preamble + 2 history + user)", len(sent.Messages))
	}
	if sent.Messages[0].Role != model.RoleSystem {
		t.Errorf("first message role = %q, want system preamble", sent.Messages[0].Role)
	}
	last := sent.Messages[len(sent.Messages)-1]
	if last.Role != model.RoleUser || last.Content != "and a follow-up" {
		t.Errorf("last message = %+v, want the user turn", last)
	}
}

func TestManager_ClassificationOverridesPriority(t *testing.T) {
	client := &fakeClient{}
	m, _ := testManager(t, client, nil)

	sreq, priority := m.prepare(context.Background(), &ChatRequest{
		Message:  "this is unacceptable, I demand a manager",
		Priority: admission.PriorityLow,
	})
	if priority != admission.PriorityUrgent {
		t.Errorf("priority = %q, want urgent override from classification", priority)
	}
	if sreq.Intent != "complaint" {
		t.Errorf("intent = %q, want complaint", sreq.Intent)
	}
	if sreq.Model.Metadata["intent"] != "complaint" {
		t.Errorf("metadata intent = %q", sreq.Model.Metadata["intent"])
	}
}

func TestManager_CallerPriorityKeptWithoutOverride(t *testing.T) {
	client := &fakeClient{}
	m, _ := testManager(t, client, nil)

	_, priority := m.prepare(context.Background(), &ChatRequest{
		Message:  "what are your opening hours?",
		Priority: admission.PriorityLow,
	})
	if priority != admission.PriorityLow {
		t.Errorf("priority = %q, want the caller's low", priority)
	}
}

func TestManager_RateLimitedPropagates(t *testing.T) {
	client := &fakeClient{}
	m, _ := testManager(t, client, func(cfg *config.Config) {
		cfg.Queue.RateLimit.MaxRequests = 1
		cfg.Queue.RateLimit.Burst = 0
	})

	caller := CallerContext{Email: "dana@example.com"}
	if _, err := m.ProcessGenerate(context.Background(), &ChatRequest{Message: "one", Caller: caller}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	_, err := m.ProcessGenerate(context.Background(), &ChatRequest{Message: "two", Caller: caller})
	var limited *admission.RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
}

func TestManager_CancelStream(t *testing.T) {
	client := &fakeClient{
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			ch := make(chan *model.Chunk)
			go func() {
				defer close(ch)
				ch <- &model.Chunk{ID: "resp-1", Delta: "partial"}
				<-ctx.Done()
			}()
			return ch, nil
		},
	}
	m, _ := testManager(t, client, nil)

	s, err := m.ProcessStream(context.Background(), &ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}

	first := <-s.Chunks
	if first.Delta != "partial" {
		t.Fatalf("first chunk = %+v", first)
	}
	if !m.CancelStream(s.RequestID) {
		t.Fatal("CancelStream returned false for a live stream")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-s.Chunks:
			if !ok {
				return
			}
			if chunk.Err != nil && !errors.Is(chunk.Err, model.ErrStreamCancelled) {
				t.Errorf("terminal err = %v, want ErrStreamCancelled", chunk.Err)
			}
		case <-deadline:
			t.Fatal("stream did not terminate after cancel")
		}
	}
}

func TestManager_CancelStream_UnknownID(t *testing.T) {
	m, _ := testManager(t, &fakeClient{}, nil)
	if m.CancelStream("no-such-stream") {
		t.Error("CancelStream returned true for an unknown id")
	}
}

func TestManager_Health(t *testing.T) {
	m, _ := testManager(t, &fakeClient{}, nil)

	report := m.Health(context.Background())
	if report.Status != metrics.StatusHealthy {
		t.Errorf("status = %v, want healthy at rest", report.Status)
	}
	if _, ok := report.Checks["admission"]; !ok {
		t.Error("report missing the admission check")
	}
	// No archive configured, so no archive check.
	if _, ok := report.Checks["archive"]; ok {
		t.Error("report has an archive check with no archive wired")
	}
}

func TestManager_HealthReflectsCriticalAlert(t *testing.T) {
	m, engine := testManager(t, &fakeClient{}, nil)

	for i := 0; i < 4; i++ {
		tr := engine.StartRequest("chat", "test-model", "")
		engine.CompleteRequest(tr, metrics.Result{Outcome: metrics.OutcomeError})
	}
	engine.Aggregate()

	report := m.Health(context.Background())
	if report.Status != metrics.StatusUnhealthy {
		t.Errorf("status = %v, want unhealthy with critical error rate", report.Status)
	}
}
