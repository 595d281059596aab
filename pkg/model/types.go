package model

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`
}

// ToolCall represents a tool invocation reported by the model.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Name is the tool name being invoked
	Name string `json:"name"`

	// Arguments is a JSON string containing the tool arguments
	Arguments string `json:"arguments,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// Request represents a model invocation request.
// The full message history is sent on every call; Ganymede holds no
// conversation state inside the model layer.
type Request struct {
	// Model is the model identifier (e.g. "gpt-4o", "claude-sonnet-4")
	Model string `json:"model"`

	// Messages is the conversation history, oldest first
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 1.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// Metadata carries request context (caller id, conversation id).
	// It is not sent to the backend.
	Metadata map[string]string `json:"-"`
}

// Response represents a complete (non-streaming) model response.
type Response struct {
	// ID is the unique response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the generated text
	Content string `json:"content"`

	// FinishReason indicates why generation stopped (stop, length, tool_calls)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption information
	Usage TokenUsage `json:"usage"`

	// ToolCalls contains any tool invocations made by the model
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Chunk represents a single increment of a streaming response.
type Chunk struct {
	// ID is the response identifier (same across all chunks of one attempt)
	ID string `json:"id"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk
	FinishReason string `json:"finish_reason,omitempty"`

	// ToolCalls contains tool invocations reported mid-stream
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Usage is included in the final chunk if the backend reports it
	Usage *TokenUsage `json:"usage,omitempty"`

	// Err is set if the stream failed; no further chunks follow
	Err error `json:"-"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reason constants
const (
	FinishReasonStop      = "stop"
	FinishReasonLength    = "length"
	FinishReasonToolCalls = "tool_calls"
)
