package model

import (
	"context"
	"testing"
)

func TestLoopbackClient_Generate(t *testing.T) {
	c := NewLoopbackClient("loopback-0", 0)

	resp, err := c.Generate(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "where is my order"}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.FinishReason != FinishReasonStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens == 0 {
		t.Error("Usage not populated")
	}
}

func TestLoopbackClient_StreamAssembles(t *testing.T) {
	c := NewLoopbackClient("loopback-0", 0)

	ch, err := c.Stream(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	streamed := ""
	sawFinish := false
	for chunk := range ch {
		streamed += chunk.Delta
		if chunk.FinishReason != "" {
			sawFinish = true
		}
	}
	if !sawFinish {
		t.Error("stream never delivered a finish chunk")
	}

	resp, err := c.Generate(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if streamed != resp.Content {
		t.Errorf("streamed %q != generated %q", streamed, resp.Content)
	}
}

func TestLoopbackClient_StreamCancellation(t *testing.T) {
	c := NewLoopbackClient("loopback-0", 0)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Stream(ctx, &Request{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "a few words to stream"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	<-ch
	cancel()
	for range ch {
		// Drain; the channel must close promptly after cancellation.
	}
}
