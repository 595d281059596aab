package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LoopbackClient is a local development client: it answers every request
// with a canned acknowledgement of the last user message, streamed word
// by word. It lets the full pipeline run end to end with no backend
// configured; deployments wire a real Client instead.
type LoopbackClient struct {
	// name labels the handle, e.g. "loopback-3".
	name string

	// chunkDelay paces streamed chunks. Zero streams as fast as the
	// consumer reads.
	chunkDelay time.Duration
}

// NewLoopbackClient creates a loopback client with the given handle name.
func NewLoopbackClient(name string, chunkDelay time.Duration) *LoopbackClient {
	return &LoopbackClient{name: name, chunkDelay: chunkDelay}
}

// Name implements Client.
func (c *LoopbackClient) Name() string { return c.name }

func (c *LoopbackClient) reply(req *Request) string {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	if last == "" {
		return "Hello! How can I help you today?"
	}
	return fmt.Sprintf("You said: %q. A real backend is not configured, so this is a loopback reply.", last)
}

// Generate implements Client.
func (c *LoopbackClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := c.reply(req)
	return &Response{
		ID:           fmt.Sprintf("loopback-%d", time.Now().UnixNano()),
		Model:        req.Model,
		Content:      content,
		FinishReason: FinishReasonStop,
		Usage: TokenUsage{
			PromptTokens:     approximateTokens(req),
			CompletionTokens: len(strings.Fields(content)),
			TotalTokens:      approximateTokens(req) + len(strings.Fields(content)),
		},
	}, nil
}

// Stream implements Client.
func (c *LoopbackClient) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := c.reply(req)
	words := strings.Fields(content)
	id := fmt.Sprintf("loopback-%d", time.Now().UnixNano())

	ch := make(chan *Chunk)
	go func() {
		defer close(ch)
		for i, word := range words {
			delta := word
			if i < len(words)-1 {
				delta += " "
			}
			select {
			case ch <- &Chunk{ID: id, Delta: delta}:
			case <-ctx.Done():
				return
			}
			if c.chunkDelay > 0 {
				select {
				case <-time.After(c.chunkDelay):
				case <-ctx.Done():
					return
				}
			}
		}
		final := &Chunk{
			ID:           id,
			FinishReason: FinishReasonStop,
			Usage: &TokenUsage{
				PromptTokens:     approximateTokens(req),
				CompletionTokens: len(words),
				TotalTokens:      approximateTokens(req) + len(words),
			},
		}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// approximateTokens estimates prompt size by word count.
func approximateTokens(req *Request) int {
	n := 0
	for _, m := range req.Messages {
		n += len(strings.Fields(m.Content))
	}
	return n
}
