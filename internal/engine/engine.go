// Package engine drives one model-generation turn: a bounded loop of
// model steps with synchronous tool dispatch, relaying every
// incremental unit to the turn's stream in strict emission order.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/stream"
)

// Tool is one callable capability exposed to the model. Execute may
// emit its own sub-events through the writer before returning the
// result fed back into the model's context.
type Tool interface {
	Def() ai.ToolDef
	Execute(ctx context.Context, input json.RawMessage, w stream.Writer) (any, error)
}

type Toolset map[string]Tool

func (ts Toolset) Defs() []ai.ToolDef {
	out := make([]ai.ToolDef, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Def())
	}
	return out
}

// Result is everything the loop produced, for final persistence. The
// assistant messages appear in emission order.
type Result struct {
	Messages []AssistantMessage
}

// AssistantMessage is one assistant turn message assembled from
// streamed parts.
type AssistantMessage struct {
	ID    string
	Parts chat.Parts
}

type Config struct {
	// MaxSteps bounds the number of model steps per turn.
	MaxSteps int
}

type Engine struct {
	provider ai.Provider
	tools    Toolset
	cfg      Config
}

func New(provider ai.Provider, tools Toolset, cfg Config) *Engine {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 5
	}
	return &Engine{provider: provider, tools: tools, cfg: cfg}
}

// Run executes the step loop until the model stops, the step bound is
// reached, or ctx is cancelled. history must already end with the
// inbound user message; system is prepended.
func (e *Engine) Run(ctx context.Context, system string, history []ai.Message, w stream.Writer) (*Result, error) {
	msgs := make([]ai.Message, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, ai.Message{Role: "system", Content: system})
	}
	msgs = append(msgs, history...)

	tsp, hasTools := e.provider.(ai.ToolStreamProvider)
	if !hasTools {
		return e.runPlain(ctx, msgs, w)
	}

	res := &Result{}
	for step := 0; step < e.cfg.MaxSteps; step++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		stepMsg, calls, err := e.streamStep(ctx, tsp, msgs, w)
		if err != nil {
			return res, err
		}

		assistant := ai.Message{Role: chat.RoleAssistant, Content: textOf(stepMsg.Parts)}
		for _, c := range calls {
			assistant.ToolCalls = append(assistant.ToolCalls, *c)
		}
		msgs = append(msgs, assistant)

		if len(calls) == 0 {
			res.Messages = append(res.Messages, *stepMsg)
			return res, nil
		}

		// Dispatch tools sequentially; results go both to the stream
		// and back into the model context for the next step.
		for _, call := range calls {
			output, err := e.dispatch(ctx, call, w)
			if err != nil {
				return res, err
			}
			stepMsg.Parts = append(stepMsg.Parts, chat.ToolResultPart{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Output:     output,
			})
			if err := w.Write(ctx, stream.Frame{
				Type:       stream.FrameToolResult,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Output:     output,
			}); err != nil {
				return res, err
			}
			msgs = append(msgs, ai.Message{Role: "tool", ToolCallID: call.ID, Content: string(output)})
		}
		res.Messages = append(res.Messages, *stepMsg)
	}

	log.Printf("[engine] step bound reached steps=%d", e.cfg.MaxSteps)
	return res, nil
}

// streamStep runs one model step, relaying deltas and assembling the
// step's assistant message and tool calls.
func (e *Engine) streamStep(ctx context.Context, tsp ai.ToolStreamProvider, msgs []ai.Message, w stream.Writer) (*AssistantMessage, []*ai.ToolCall, error) {
	events, errs := tsp.StreamChatTools(ctx, msgs, e.tools.Defs())

	var (
		text      string
		reasoning string
		calls     []*ai.ToolCall
		writeErr  error
	)
	// Keep ranging to the end even after a write failure so the
	// provider goroutine is never left blocked mid-send.
	for ev := range events {
		if writeErr != nil {
			continue
		}
		switch ev.Type {
		case ai.EventTextDelta:
			text += ev.Text
			writeErr = w.Write(ctx, stream.Frame{Type: stream.FrameTextDelta, Delta: ev.Text})
		case ai.EventReasoningDelta:
			reasoning += ev.Text
			writeErr = w.Write(ctx, stream.Frame{Type: stream.FrameReasoningDelta, Delta: ev.Text})
		case ai.EventToolCall:
			call := ev.ToolCall
			if call.ID == "" {
				call.ID = common.NewUUID()
			}
			calls = append(calls, call)
			writeErr = w.Write(ctx, stream.Frame{
				Type:       stream.FrameToolCall,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Input:      call.Arguments,
			})
		case ai.EventDone:
		}
	}
	err := <-errs
	if writeErr != nil {
		return nil, nil, writeErr
	}
	if err != nil {
		return nil, nil, err
	}

	m := &AssistantMessage{ID: common.NewUUID()}
	if reasoning != "" {
		m.Parts = append(m.Parts, chat.ReasoningPart{Text: reasoning})
	}
	if text != "" {
		m.Parts = append(m.Parts, chat.TextPart{Text: text})
	}
	for _, c := range calls {
		m.Parts = append(m.Parts, chat.ToolCallPart{ToolCallID: c.ID, ToolName: c.Name, Input: c.Arguments})
	}
	return m, calls, nil
}

// dispatch executes one tool call. Tool failures become error results
// fed back to the model rather than aborting the turn; only stream
// write failures propagate.
func (e *Engine) dispatch(ctx context.Context, call *ai.ToolCall, w stream.Writer) (json.RawMessage, error) {
	tool, ok := e.tools[call.Name]
	if !ok {
		return json.Marshal(map[string]string{"error": fmt.Sprintf("unknown tool %q", call.Name)})
	}
	out, err := tool.Execute(ctx, call.Arguments, w)
	if err != nil {
		log.Printf("[engine] tool %s failed: %v", call.Name, err)
		return json.Marshal(map[string]string{"error": err.Error()})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return json.Marshal(map[string]string{"error": "tool result not serializable"})
	}
	return b, nil
}

// runPlain handles providers without tool support: a single streamed
// text step.
func (e *Engine) runPlain(ctx context.Context, msgs []ai.Message, w stream.Writer) (*Result, error) {
	sp, ok := e.provider.(ai.StreamProvider)
	if !ok {
		content, err := e.provider.Chat(ctx, msgs)
		if err != nil {
			return nil, err
		}
		if err := w.Write(ctx, stream.Frame{Type: stream.FrameTextDelta, Delta: content}); err != nil {
			return nil, err
		}
		return &Result{Messages: []AssistantMessage{{
			ID:    common.NewUUID(),
			Parts: chat.Parts{chat.TextPart{Text: content}},
		}}}, nil
	}

	chunks, errs := sp.StreamChat(ctx, msgs)
	var (
		text     string
		writeErr error
	)
	for c := range chunks {
		if writeErr != nil {
			continue
		}
		text += c
		writeErr = w.Write(ctx, stream.Frame{Type: stream.FrameTextDelta, Delta: c})
	}
	err := <-errs
	if writeErr != nil {
		return nil, writeErr
	}
	if err != nil {
		return nil, err
	}
	return &Result{Messages: []AssistantMessage{{
		ID:    common.NewUUID(),
		Parts: chat.Parts{chat.TextPart{Text: text}},
	}}}, nil
}

func textOf(parts chat.Parts) string {
	return parts.PlainText()
}
