package chat

import (
	"encoding/json"
	"testing"
)

func TestParts_RoundTrip(t *testing.T) {
	in := Parts{
		ReasoningPart{Text: "thinking"},
		TextPart{Text: "hello"},
		FilePart{URL: "https://example.com/a.png", Name: "a.png", MediaType: "image/png"},
		ToolCallPart{ToolCallID: "call-1", ToolName: "getWeather", Input: json.RawMessage(`{"latitude":1}`)},
		ToolResultPart{ToolCallID: "call-1", ToolName: "getWeather", Output: json.RawMessage(`{"temp":20}`)},
	}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Parts
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d parts, got %d", len(in), len(out))
	}

	if r, ok := out[0].(ReasoningPart); !ok || r.Text != "thinking" {
		t.Fatalf("unexpected part 0: %#v", out[0])
	}
	if tp, ok := out[1].(TextPart); !ok || tp.Text != "hello" {
		t.Fatalf("unexpected part 1: %#v", out[1])
	}
	if f, ok := out[2].(FilePart); !ok || f.URL != "https://example.com/a.png" || f.MediaType != "image/png" {
		t.Fatalf("unexpected part 2: %#v", out[2])
	}
	if c, ok := out[3].(ToolCallPart); !ok || c.ToolCallID != "call-1" || string(c.Input) != `{"latitude":1}` {
		t.Fatalf("unexpected part 3: %#v", out[3])
	}
	if r, ok := out[4].(ToolResultPart); !ok || r.ToolName != "getWeather" || string(r.Output) != `{"temp":20}` {
		t.Fatalf("unexpected part 4: %#v", out[4])
	}
}

func TestParts_UnmarshalRejectsUnknownType(t *testing.T) {
	var ps Parts
	err := json.Unmarshal([]byte(`[{"type":"video","url":"x"}]`), &ps)
	if err == nil {
		t.Fatalf("expected error for unknown part type")
	}
}

func TestParts_PlainTextSkipsNonText(t *testing.T) {
	ps := Parts{
		ReasoningPart{Text: "hidden"},
		TextPart{Text: "one"},
		FilePart{URL: "https://example.com/x"},
		TextPart{Text: "two"},
	}
	if got := ps.PlainText(); got != "one\ntwo" {
		t.Fatalf("unexpected plain text: %q", got)
	}
}
