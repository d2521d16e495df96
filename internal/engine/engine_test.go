package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/stream"
)

// scriptedProvider replays one scripted event sequence per step.
type scriptedProvider struct {
	mu    sync.Mutex
	steps [][]ai.Event
	seen  [][]ai.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "plain", nil
}

func (p *scriptedProvider) StreamChatTools(ctx context.Context, messages []ai.Message, tools []ai.ToolDef) (<-chan ai.Event, <-chan error) {
	p.mu.Lock()
	p.seen = append(p.seen, append([]ai.Message(nil), messages...))
	var step []ai.Event
	if len(p.steps) > 0 {
		step = p.steps[0]
		p.steps = p.steps[1:]
	}
	p.mu.Unlock()

	events := make(chan ai.Event, len(step))
	errs := make(chan error, 1)
	for _, ev := range step {
		events <- ev
	}
	close(events)
	errs <- nil
	return events, errs
}

type recordingWriter struct {
	mu     sync.Mutex
	frames []stream.Frame
}

func (w *recordingWriter) Write(ctx context.Context, f stream.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, f)
	return nil
}

func (w *recordingWriter) types() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.frames))
	for _, f := range w.frames {
		out = append(out, f.Type)
	}
	return out
}

// echoTool returns its input back as the result.
type echoTool struct {
	gotInput json.RawMessage
}

func (e *echoTool) Def() ai.ToolDef {
	return ai.ToolDef{Name: "echo", Description: "echoes input", Parameters: map[string]any{"type": "object"}}
}

func (e *echoTool) Execute(ctx context.Context, input json.RawMessage, w stream.Writer) (any, error) {
	e.gotInput = input
	return map[string]string{"echoed": "yes"}, nil
}

func TestRun_ToolLoopThenFinalText(t *testing.T) {
	tool := &echoTool{}
	prov := &scriptedProvider{steps: [][]ai.Event{
		{
			{Type: ai.EventTextDelta, Text: "Let me check. "},
			{Type: ai.EventToolCall, ToolCall: &ai.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"q":1}`)}},
			{Type: ai.EventDone, FinishReason: "tool_calls"},
		},
		{
			{Type: ai.EventTextDelta, Text: "All "},
			{Type: ai.EventTextDelta, Text: "done."},
			{Type: ai.EventDone, FinishReason: "stop"},
		},
	}}

	w := &recordingWriter{}
	eng := New(prov, Toolset{"echo": tool}, Config{MaxSteps: 5})

	res, err := eng.Run(context.Background(), "sys", []ai.Message{{Role: "user", Content: "hi"}}, w)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if string(tool.gotInput) != `{"q":1}` {
		t.Fatalf("tool got wrong input: %s", tool.gotInput)
	}

	want := []string{"text-delta", "tool-call", "tool-result", "text-delta", "text-delta"}
	got := w.types()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("frame sequence mismatch:\n got %v\nwant %v", got, want)
	}

	if len(res.Messages) != 2 {
		t.Fatalf("expected 2 assistant messages, got %d", len(res.Messages))
	}

	// first message: text, tool call, tool result
	first := res.Messages[0].Parts
	if len(first) != 3 {
		t.Fatalf("expected 3 parts in first message, got %d: %#v", len(first), first)
	}
	if _, ok := first[1].(chat.ToolCallPart); !ok {
		t.Fatalf("expected tool call part, got %#v", first[1])
	}
	if r, ok := first[2].(chat.ToolResultPart); !ok || !strings.Contains(string(r.Output), "echoed") {
		t.Fatalf("expected tool result part, got %#v", first[2])
	}

	if res.Messages[1].Parts.PlainText() != "All done." {
		t.Fatalf("unexpected final text: %q", res.Messages[1].Parts.PlainText())
	}

	// second step context contains the tool result message
	if len(prov.seen) != 2 {
		t.Fatalf("expected 2 provider steps, got %d", len(prov.seen))
	}
	last := prov.seen[1][len(prov.seen[1])-1]
	if last.Role != "tool" || last.ToolCallID != "c1" {
		t.Fatalf("expected final context message to be the tool result, got %+v", last)
	}
	if prov.seen[0][0].Role != "system" || prov.seen[0][0].Content != "sys" {
		t.Fatalf("expected system prompt prepended, got %+v", prov.seen[0][0])
	}
}

func TestRun_UnknownToolBecomesErrorResult(t *testing.T) {
	prov := &scriptedProvider{steps: [][]ai.Event{
		{
			{Type: ai.EventToolCall, ToolCall: &ai.ToolCall{ID: "c1", Name: "missing", Arguments: json.RawMessage(`{}`)}},
		},
		{
			{Type: ai.EventTextDelta, Text: "recovered"},
		},
	}}

	w := &recordingWriter{}
	eng := New(prov, Toolset{}, Config{MaxSteps: 5})

	res, err := eng.Run(context.Background(), "", []ai.Message{{Role: "user", Content: "hi"}}, w)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	first := res.Messages[0].Parts
	r, ok := first[len(first)-1].(chat.ToolResultPart)
	if !ok {
		t.Fatalf("expected tool result part, got %#v", first[len(first)-1])
	}
	var payload map[string]string
	if err := json.Unmarshal(r.Output, &payload); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("expected error result for unknown tool, got %v", payload)
	}
	if res.Messages[1].Parts.PlainText() != "recovered" {
		t.Fatalf("expected loop to continue after tool error")
	}
}

func TestRun_StepBound(t *testing.T) {
	// every step requests another tool call; the loop must stop anyway
	call := func() []ai.Event {
		return []ai.Event{
			{Type: ai.EventToolCall, ToolCall: &ai.ToolCall{ID: "c", Name: "echo", Arguments: json.RawMessage(`{}`)}},
		}
	}
	prov := &scriptedProvider{steps: [][]ai.Event{call(), call(), call(), call(), call(), call(), call()}}

	w := &recordingWriter{}
	eng := New(prov, Toolset{"echo": &echoTool{}}, Config{MaxSteps: 3})

	res, err := eng.Run(context.Background(), "", []ai.Message{{Role: "user", Content: "go"}}, w)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(prov.seen) != 3 {
		t.Fatalf("expected exactly 3 model steps, got %d", len(prov.seen))
	}
	if len(res.Messages) != 3 {
		t.Fatalf("expected 3 assistant messages, got %d", len(res.Messages))
	}
}

// streamOnly implements plain streaming without tool support.
type streamOnly struct{}

func (streamOnly) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "fallback", nil
}

func (streamOnly) StreamChat(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 2)
	errs := make(chan error, 1)
	chunks <- "a"
	chunks <- "b"
	close(chunks)
	errs <- nil
	return chunks, errs
}

func TestRun_PlainProviderFallback(t *testing.T) {
	w := &recordingWriter{}
	eng := New(streamOnly{}, Toolset{}, Config{MaxSteps: 5})

	res, err := eng.Run(context.Background(), "sys", []ai.Message{{Role: "user", Content: "hi"}}, w)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0].Parts.PlainText() != "ab" {
		t.Fatalf("unexpected fallback result: %#v", res.Messages)
	}
	if got := w.types(); len(got) != 2 || got[0] != "text-delta" {
		t.Fatalf("unexpected frames: %v", got)
	}
}

// firehoseProvider streams many deltas from a goroutine over an
// unbuffered channel and signals when its sender has finished.
type firehoseProvider struct {
	n    int
	done chan struct{}
}

func (p *firehoseProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "", nil
}

func (p *firehoseProvider) StreamChatTools(ctx context.Context, messages []ai.Message, tools []ai.ToolDef) (<-chan ai.Event, <-chan error) {
	events := make(chan ai.Event)
	errs := make(chan error, 1)
	go func() {
		for i := 0; i < p.n; i++ {
			events <- ai.Event{Type: ai.EventTextDelta, Text: "x"}
		}
		close(events)
		close(p.done)
		errs <- nil
	}()
	return events, errs
}

type failingWriter struct {
	err error
}

func (w *failingWriter) Write(ctx context.Context, f stream.Frame) error { return w.err }

func TestRun_WriteFailureDrainsProvider(t *testing.T) {
	boom := errors.New("subscriber gone")
	prov := &firehoseProvider{n: 100, done: make(chan struct{})}
	eng := New(prov, Toolset{}, Config{MaxSteps: 5})

	_, err := eng.Run(context.Background(), "", []ai.Message{{Role: "user", Content: "hi"}}, &failingWriter{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("run error = %v, want %v", err, boom)
	}

	// Run consumes the error channel after the event channel closes,
	// so the sender must already have finished by the time it returns.
	select {
	case <-prov.done:
	default:
		t.Fatalf("provider goroutine still blocked on an undrained event channel")
	}
}
