package chat

import (
	"encoding/json"
	"fmt"
)

// Part is one element of a message body. Messages are stored as a JSON
// array of tagged parts; within the process each kind is a concrete
// type, never an untyped blob.
type Part interface {
	PartType() string
}

const (
	PartTypeText       = "text"
	PartTypeFile       = "file"
	PartTypeReasoning  = "reasoning"
	PartTypeToolCall   = "tool-call"
	PartTypeToolResult = "tool-result"
)

type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) PartType() string { return PartTypeText }

type FilePart struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

func (FilePart) PartType() string { return PartTypeFile }

// ReasoningPart carries model reasoning, tagged distinctly so clients
// can render or suppress it.
type ReasoningPart struct {
	Text string `json:"text"`
}

func (ReasoningPart) PartType() string { return PartTypeReasoning }

type ToolCallPart struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Input      json.RawMessage `json:"input"`
}

func (ToolCallPart) PartType() string { return PartTypeToolCall }

type ToolResultPart struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Output     json.RawMessage `json:"output"`
}

func (ToolResultPart) PartType() string { return PartTypeToolResult }

// Parts is the ordered part list of one message.
type Parts []Part

type taggedPart struct {
	Type string `json:"type"`

	Text       string          `json:"text,omitempty"`
	URL        string          `json:"url,omitempty"`
	Name       string          `json:"name,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

func (ps Parts) MarshalJSON() ([]byte, error) {
	out := make([]taggedPart, 0, len(ps))
	for _, p := range ps {
		t := taggedPart{Type: p.PartType()}
		switch v := p.(type) {
		case TextPart:
			t.Text = v.Text
		case ReasoningPart:
			t.Text = v.Text
		case FilePart:
			t.URL = v.URL
			t.Name = v.Name
			t.MediaType = v.MediaType
		case ToolCallPart:
			t.ToolCallID = v.ToolCallID
			t.ToolName = v.ToolName
			t.Input = v.Input
		case ToolResultPart:
			t.ToolCallID = v.ToolCallID
			t.ToolName = v.ToolName
			t.Output = v.Output
		default:
			return nil, fmt.Errorf("unknown part type %T", p)
		}
		out = append(out, t)
	}
	return json.Marshal(out)
}

func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raw []taggedPart
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Parts, 0, len(raw))
	for _, t := range raw {
		switch t.Type {
		case PartTypeText:
			out = append(out, TextPart{Text: t.Text})
		case PartTypeReasoning:
			out = append(out, ReasoningPart{Text: t.Text})
		case PartTypeFile:
			out = append(out, FilePart{URL: t.URL, Name: t.Name, MediaType: t.MediaType})
		case PartTypeToolCall:
			out = append(out, ToolCallPart{ToolCallID: t.ToolCallID, ToolName: t.ToolName, Input: t.Input})
		case PartTypeToolResult:
			out = append(out, ToolResultPart{ToolCallID: t.ToolCallID, ToolName: t.ToolName, Output: t.Output})
		default:
			return fmt.Errorf("unknown part type %q", t.Type)
		}
	}
	*ps = out
	return nil
}

// PlainText concatenates the text parts, used for title generation and
// provider history.
func (ps Parts) PlainText() string {
	var s string
	for _, p := range ps {
		if t, ok := p.(TextPart); ok {
			if s != "" {
				s += "\n"
			}
			s += t.Text
		}
	}
	return s
}
