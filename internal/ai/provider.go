package ai

import (
	"context"
	"encoding/json"
)

// Message is a model-agnostic chat message.
type Message struct {
	Role    string
	Content string

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall
	// ToolCallID is set on role "tool" result messages.
	ToolCallID string
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDef describes a callable tool in the request schema.
type ToolDef struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object.
	Parameters map[string]any
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventToolCall       EventType = "tool-call"
	EventDone           EventType = "done"
)

// Event is one incremental unit of a tool-aware completion stream.
type Event struct {
	Type EventType
	// Text carries the delta for text/reasoning events.
	Text string
	// ToolCall is set for tool-call events.
	ToolCall *ToolCall
	// FinishReason is set on done events ("stop", "tool_calls", ...).
	FinishReason string
}

// ToolStreamProvider is an optional interface for providers that
// support tool calling on the streaming path.
type ToolStreamProvider interface {
	StreamChatTools(ctx context.Context, messages []Message, tools []ToolDef) (<-chan Event, <-chan error)
}
