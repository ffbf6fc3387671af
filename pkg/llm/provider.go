package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role       string // "user", "assistant", "system", "tool"
	Content    string
	ToolCalls  []ToolCall // For assistant messages that requested tool invocations
	ToolCallID string     // For tool-result messages
	Name       string     // Tool name for tool-result messages
}

// ToolCall is a model-issued request to invoke one registered tool
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// Tool describes a callable tool in JSON-schema form
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// StreamFunc receives generated tokens as they arrive
type StreamFunc func(token string)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	JSONMode    bool   // Constrain output to a single JSON value
	Tools       []Tool
	Stream      StreamFunc
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithJSONMode() Option {
	return func(o *Options) {
		o.JSONMode = true
	}
}

func WithTools(tools []Tool) Option {
	return func(o *Options) {
		o.Tools = tools
	}
}

// WithStream enables token-by-token delivery. The full text is still
// returned from the call once generation completes.
func WithStream(fn StreamFunc) Option {
	return func(o *Options) {
		o.Stream = fn
	}
}

// Result is the outcome of one model call: free text, or a list of
// tool calls when tools were offered and the model chose to use them.
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (*Result, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
