// Package stream carries one turn's incremental output: an ordered,
// multi-consumer conduit of typed frames addressed by an opaque stream
// key, resumable across client reconnects.
package stream

import (
	"context"
	"encoding/json"
)

// Frame types delivered to clients.
const (
	FrameTextDelta      = "text-delta"
	FrameReasoningDelta = "reasoning-delta"
	FrameToolCall       = "tool-call"
	FrameToolResult     = "tool-result"

	// Artifact sub-events emitted by document tools.
	FrameDataKind       = "data-kind"
	FrameDataID         = "data-id"
	FrameDataTitle      = "data-title"
	FrameDataClear      = "data-clear"
	FrameDataFinish     = "data-finish"
	FrameDataSuggestion = "data-suggestion"
	FrameDataTextDelta  = "data-textDelta"
	FrameDataCodeDelta  = "data-codeDelta"
	FrameDataSheetDelta = "data-sheetDelta"

	FrameError  = "error"
	FrameFinish = "finish"
)

// Frame is one unit of turn output. Seq is assigned by the producer;
// within one stream key the sequence is a strict FIFO total order.
type Frame struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	Delta      string          `json:"delta,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`

	// Transient frames are rendered live but not part of the final
	// transcript (suggestion previews, canvas signals).
	Transient bool `json:"transient,omitempty"`
}

func (f Frame) EncodeJSON() []byte {
	b, err := json.Marshal(f)
	if err != nil {
		// Frame fields are all marshalable types; this cannot fail at
		// runtime with well-formed raw messages.
		return []byte(`{"type":"error","message":"frame encode failed"}`)
	}
	return b
}

// Writer is the produce side seen by the engine and tools. Producer
// implements it; tests substitute an in-memory recorder.
type Writer interface {
	Write(ctx context.Context, f Frame) error
}

func DataFrame(typ string, data any) Frame {
	b, err := json.Marshal(data)
	if err != nil {
		return Frame{Type: FrameError, Message: "payload encode failed"}
	}
	return Frame{Type: typ, Data: b, Transient: true}
}
