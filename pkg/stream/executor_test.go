package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"nimbus-hq/ganymede/pkg/config"
	"nimbus-hq/ganymede/pkg/model"
	"nimbus-hq/ganymede/pkg/telemetry/metrics"
)

type fakeClient struct {
	name       string
	streamFn   func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error)
	generateFn func(ctx context.Context, req *model.Request) (*model.Response, error)
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	return f.generateFn(ctx, req)
}

func (f *fakeClient) Stream(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
	return f.streamFn(ctx, req)
}

func streamCfg() config.StreamConfig {
	return config.StreamConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// newTestExecutor wires an executor around a single fake client with
// instant backoff sleeps.
func newTestExecutor(t *testing.T, cfg config.StreamConfig, client model.Client) (*Executor, *metrics.Engine) {
	t.Helper()
	engine := metrics.NewEngine(config.Default().Telemetry.Metrics, nil)
	pool, err := model.NewPoolWithFactory(1, func(i int) model.Client { return client })
	if err != nil {
		t.Fatalf("NewPoolWithFactory: %v", err)
	}
	e := NewExecutor(cfg, pool, engine)
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e, engine
}

// chunksOf builds a finished stream delivering the given deltas.
func chunksOf(deltas ...string) <-chan *model.Chunk {
	ch := make(chan *model.Chunk, len(deltas)+1)
	for _, d := range deltas {
		ch <- &model.Chunk{ID: "resp-1", Delta: d}
	}
	ch <- &model.Chunk{
		ID:           "resp-1",
		FinishReason: model.FinishReasonStop,
		Usage:        &model.TokenUsage{TotalTokens: 42},
	}
	close(ch)
	return ch
}

func collect(t *testing.T, s *Stream) []*model.Chunk {
	t.Helper()
	var out []*model.Chunk
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-s.Chunks:
			if !ok {
				return out
			}
			out = append(out, chunk)
		case <-deadline:
			t.Fatal("stream did not close in time")
		}
	}
}

func TestCreateStream_Success(t *testing.T) {
	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			return chunksOf("Hel", "lo"), nil
		},
	}
	e, engine := newTestExecutor(t, streamCfg(), client)

	s, err := e.CreateStream(context.Background(), &Request{
		ConversationID: "conv-1",
		Model:          &model.Request{Model: "test-model"},
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if s.RequestID == "" {
		t.Error("request ID not assigned")
	}

	chunks := collect(t, s)
	text := ""
	for _, c := range chunks {
		if c.Err != nil {
			t.Fatalf("unexpected chunk error: %v", c.Err)
		}
		text += c.Delta
	}
	if text != "Hello" {
		t.Errorf("assembled text = %q, want Hello", text)
	}

	snap := engine.Aggregate()
	if snap.WindowRequests != 1 || snap.SuccessRate != 1 {
		t.Errorf("snapshot = %+v, want 1 successful request", snap)
	}
	if e.ActiveStreams() != 0 {
		t.Errorf("ActiveStreams = %d after close, want 0", e.ActiveStreams())
	}
}

func TestCreateStream_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			if attempts.Add(1) <= 2 {
				return nil, &model.ServerError{Backend: "agent-1", StatusCode: 503, Message: "overloaded"}
			}
			return chunksOf("ok"), nil
		},
	}
	e, _ := newTestExecutor(t, streamCfg(), client)

	s, err := e.CreateStream(context.Background(), &Request{Model: &model.Request{Model: "test-model"}})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	chunks := collect(t, s)
	if len(chunks) == 0 || chunks[len(chunks)-1].Err != nil {
		t.Fatalf("stream failed: %+v", chunks)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (two transient failures then success)", got)
	}
}

func TestCreateStream_FatalErrorNoRetry(t *testing.T) {
	fatal := errors.New("invalid api key")
	var attempts atomic.Int32
	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			attempts.Add(1)
			return nil, fatal
		},
	}
	e, _ := newTestExecutor(t, streamCfg(), client)

	s, err := e.CreateStream(context.Background(), &Request{Model: &model.Request{Model: "test-model"}})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	chunks := collect(t, s)
	if len(chunks) != 1 || !errors.Is(chunks[0].Err, fatal) {
		t.Fatalf("chunks = %+v, want single terminal error chunk", chunks)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (fatal errors never retry)", got)
	}
}

func TestCreateStream_ExhaustsAttempts(t *testing.T) {
	var attempts atomic.Int32
	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			attempts.Add(1)
			return nil, &model.TimeoutError{Backend: "agent-1", Timeout: time.Second}
		},
	}
	cfg := streamCfg() // MaxRetries: 3
	e, engine := newTestExecutor(t, cfg, client)

	s, err := e.CreateStream(context.Background(), &Request{Model: &model.Request{Model: "test-model"}})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	chunks := collect(t, s)
	if len(chunks) != 1 || chunks[0].Err == nil {
		t.Fatalf("chunks = %+v, want single terminal error chunk", chunks)
	}

	if got := attempts.Load(); got != int32(cfg.MaxRetries+1) {
		t.Errorf("attempts = %d, want exactly %d", got, cfg.MaxRetries+1)
	}

	snap := engine.Aggregate()
	if snap.ErrorRate != 1 {
		t.Errorf("ErrorRate = %v, want 1 (exhausted retries count as error)", snap.ErrorRate)
	}
}

func TestCancelStream_MidStream(t *testing.T) {
	var attempts atomic.Int32
	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			attempts.Add(1)
			ch := make(chan *model.Chunk)
			go func() {
				defer close(ch)
				ch <- &model.Chunk{ID: "resp-1", Delta: "partial "}
				ch <- &model.Chunk{ID: "resp-1", Delta: "text"}
				<-ctx.Done()
			}()
			return ch, nil
		},
	}
	e, engine := newTestExecutor(t, streamCfg(), client)

	s, err := e.CreateStream(context.Background(), &Request{
		RequestID: "req-cancel",
		Model:     &model.Request{Model: "test-model"},
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}

	// Read the partial chunks, then cancel.
	first := <-s.Chunks
	second := <-s.Chunks
	if first.Delta+second.Delta != "partial text" {
		t.Fatalf("partial chunks = %q %q", first.Delta, second.Delta)
	}
	if !e.CancelStream("req-cancel") {
		t.Fatal("CancelStream returned false for a live stream")
	}

	var terminal *model.Chunk
	deadline := time.After(2 * time.Second)
	for terminal == nil {
		select {
		case chunk, ok := <-s.Chunks:
			if !ok {
				t.Fatal("stream closed without a terminal cancellation chunk")
			}
			if chunk.Err != nil {
				terminal = chunk
			}
		case <-deadline:
			t.Fatal("no terminal chunk after cancel")
		}
	}
	if !errors.Is(terminal.Err, model.ErrStreamCancelled) {
		t.Errorf("terminal err = %v, want ErrStreamCancelled", terminal.Err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry after cancellation)", got)
	}

	// The trace records cancellation as neither success nor error.
	snap := engine.Aggregate()
	if snap.WindowRequests != 1 || snap.SuccessRate != 0 || snap.ErrorRate != 0 {
		t.Errorf("snapshot = %+v, want one cancelled request", snap)
	}

	if e.CancelStream("req-cancel") {
		t.Error("CancelStream returned true for an already-finished stream")
	}
}

func TestCancelStream_UnknownID(t *testing.T) {
	e, _ := newTestExecutor(t, streamCfg(), &fakeClient{})
	if e.CancelStream("no-such-request") {
		t.Error("CancelStream returned true for an unknown id")
	}
}

// A consumer a full buffer behind must still observe the terminal error
// chunk rather than a clean close.
func TestCreateStream_TerminalErrorSurvivesFullBuffer(t *testing.T) {
	fatal := errors.New("invalid api key")
	ch := make(chan *model.Chunk, chunkBuffer+1)
	for i := 0; i < chunkBuffer; i++ {
		ch <- &model.Chunk{ID: "resp-1", Delta: "x"}
	}
	ch <- &model.Chunk{ID: "resp-1", Err: fatal}
	close(ch)

	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			return ch, nil
		},
	}
	e, _ := newTestExecutor(t, streamCfg(), client)

	s, err := e.CreateStream(context.Background(), &Request{Model: &model.Request{Model: "test-model"}})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}

	// Let the delivery loop run as far ahead as the buffer allows before
	// draining anything.
	time.Sleep(50 * time.Millisecond)

	chunks := collect(t, s)
	if len(chunks) != chunkBuffer+1 {
		t.Fatalf("len(chunks) = %d, want %d data chunks plus the terminal chunk", len(chunks), chunkBuffer+1)
	}
	if last := chunks[len(chunks)-1]; !errors.Is(last.Err, fatal) {
		t.Fatalf("last chunk err = %v, want the stream failure", last.Err)
	}
}

// Cancelling a stream whose consumer has stalled a full buffer behind
// must still deliver the terminal cancellation chunk.
func TestCancelStream_TerminalSurvivesFullBuffer(t *testing.T) {
	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			ch := make(chan *model.Chunk, chunkBuffer)
			for i := 0; i < chunkBuffer; i++ {
				ch <- &model.Chunk{ID: "resp-1", Delta: "x"}
			}
			// The attempt outlives its buffered chunks until cancelled.
			go func() {
				<-ctx.Done()
				close(ch)
			}()
			return ch, nil
		},
	}
	e, _ := newTestExecutor(t, streamCfg(), client)

	s, err := e.CreateStream(context.Background(), &Request{
		RequestID: "req-backpressure",
		Model:     &model.Request{Model: "test-model"},
	})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if !e.CancelStream("req-backpressure") {
		t.Fatal("CancelStream returned false for a live stream")
	}

	chunks := collect(t, s)
	if len(chunks) == 0 {
		t.Fatal("stream delivered no chunks")
	}
	if last := chunks[len(chunks)-1]; !errors.Is(last.Err, model.ErrStreamCancelled) {
		t.Fatalf("last chunk err = %v, want ErrStreamCancelled", last.Err)
	}
}

func TestCreateStream_ToolAccumulationAcrossAttempts(t *testing.T) {
	var attempts atomic.Int32
	client := &fakeClient{
		name: "agent-1",
		streamFn: func(ctx context.Context, req *model.Request) (<-chan *model.Chunk, error) {
			n := attempts.Add(1)
			ch := make(chan *model.Chunk, 3)
			if n == 1 {
				ch <- &model.Chunk{ID: "resp-1", ToolCalls: []model.ToolCall{{ID: "t1", Name: "lookup_order"}}}
				ch <- &model.Chunk{ID: "resp-1", Err: &model.StreamError{Backend: "agent-1", Message: "reset", Cause: &model.TimeoutError{Backend: "agent-1"}}}
			} else {
				ch <- &model.Chunk{ID: "resp-2", ToolCalls: []model.ToolCall{{ID: "t2", Name: "check_refund"}}}
				ch <- &model.Chunk{ID: "resp-2", FinishReason: model.FinishReasonToolCalls}
			}
			close(ch)
			return ch, nil
		},
	}
	e, engine := newTestExecutor(t, streamCfg(), client)

	traces := make(chan *metrics.RequestTrace, 1)
	engine.SetTraceSink(func(tr *metrics.RequestTrace) { traces <- tr })

	s, err := e.CreateStream(context.Background(), &Request{Model: &model.Request{Model: "test-model"}})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	collect(t, s)

	select {
	case tr := <-traces:
		want := []string{"lookup_order", "check_refund"}
		if len(tr.ToolsInvoked) != 2 || tr.ToolsInvoked[0] != want[0] || tr.ToolsInvoked[1] != want[1] {
			t.Errorf("ToolsInvoked = %v, want %v", tr.ToolsInvoked, want)
		}
		if tr.Outcome != metrics.OutcomeSuccess {
			t.Errorf("outcome = %v, want success", tr.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trace sink never received the finalized trace")
	}
}

func TestExecute_RetryThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	client := &fakeClient{
		name: "agent-1",
		generateFn: func(ctx context.Context, req *model.Request) (*model.Response, error) {
			if attempts.Add(1) == 1 {
				return nil, &model.RateLimitError{Backend: "agent-1", RetryAfter: time.Second}
			}
			return &model.Response{
				ID:           "resp-1",
				Content:      "full reply",
				FinishReason: model.FinishReasonStop,
				Usage:        model.TokenUsage{TotalTokens: 7},
			}, nil
		},
	}
	e, _ := newTestExecutor(t, streamCfg(), client)

	resp, err := e.Execute(context.Background(), &Request{Model: &model.Request{Model: "test-model"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Content != "full reply" {
		t.Errorf("Content = %q", resp.Content)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestExecute_Cancelled(t *testing.T) {
	client := &fakeClient{
		name: "agent-1",
		generateFn: func(ctx context.Context, req *model.Request) (*model.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	e, _ := newTestExecutor(t, streamCfg(), client)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Execute(ctx, &Request{Model: &model.Request{Model: "test-model"}})
	if !errors.Is(err, model.ErrStreamCancelled) {
		t.Errorf("err = %v, want ErrStreamCancelled", err)
	}
}
