package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterToolCall struct {
	Index    *int   `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type openRouterMsg struct {
	Role       string               `json:"role"`
	Content    string               `json:"content"`
	ToolCalls  []openRouterToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
}

type openRouterTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

type openRouterChatReq struct {
	Model    string           `json:"model"`
	Messages []openRouterMsg  `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []openRouterTool `json:"tools,omitempty"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openRouterStreamResp struct {
	Choices []struct {
		Delta struct {
			Content   string               `json:"content"`
			Reasoning string               `json:"reasoning"`
			ToolCalls []openRouterToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenRouterProvider) checkConfig() error {
	if p.Client == nil {
		return errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return errors.New("openrouter: api key is required")
	}
	if strings.TrimSpace(p.Model) == "" {
		return errors.New("openrouter: model is required")
	}
	return nil
}

func toOpenRouterMsgs(messages []Message) []openRouterMsg {
	out := make([]openRouterMsg, 0, len(messages))
	for _, m := range messages {
		om := openRouterMsg{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			otc := openRouterToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Name
			otc.Function.Arguments = string(tc.Arguments)
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

func toOpenRouterTools(tools []ToolDef) []openRouterTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openRouterTool, 0, len(tools))
	for _, t := range tools {
		ot := openRouterTool{Type: "function"}
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.Parameters
		out = append(out, ot)
	}
	return out
}

func (p *OpenRouterProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}
	return req, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("openrouter: %s", msg)
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := p.checkConfig(); err != nil {
		return "", err
	}

	b, err := json.Marshal(openRouterChatReq{
		Model:    strings.TrimSpace(p.Model),
		Stream:   false,
		Messages: toOpenRouterMsgs(messages),
	})
	if err != nil {
		return "", err
	}

	req, err := p.newRequest(ctx, b)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readAPIError(resp)
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}

// StreamChat streams assistant content chunks via SSE.
func (p *OpenRouterProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		events, evErrs := p.StreamChatTools(ctx, messages, nil)
		for ev := range events {
			if ev.Type == EventTextDelta && ev.Text != "" {
				chunks <- ev.Text
			}
		}
		if err := <-evErrs; err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

// StreamChatTools streams the completion as typed events. Tool-call
// arguments arrive as incremental fragments on the wire; they are
// accumulated per index and emitted as whole tool-call events once the
// model finishes the step.
func (p *OpenRouterProvider) StreamChatTools(ctx context.Context, messages []Message, tools []ToolDef) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		if err := p.checkConfig(); err != nil {
			errs <- err
			return
		}

		b, err := json.Marshal(openRouterChatReq{
			Model:    strings.TrimSpace(p.Model),
			Stream:   true,
			Messages: toOpenRouterMsgs(messages),
			Tools:    toOpenRouterTools(tools),
		})
		if err != nil {
			errs <- err
			return
		}

		req, err := p.newRequest(ctx, b)
		if err != nil {
			errs <- err
			return
		}

		if p.Client.Timeout != 0 && p.Client.Timeout < 30*time.Second {
			p.Client.Timeout = 0
		}

		resp, err := p.Client.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- readAPIError(resp)
			return
		}

		type pendingCall struct {
			id   string
			name string
			args strings.Builder
		}
		pending := map[int]*pendingCall{}
		order := []int{}
		finishReason := ""

		flushCalls := func() {
			for _, idx := range order {
				pc := pending[idx]
				if pc == nil || pc.name == "" {
					continue
				}
				args := pc.args.String()
				if args == "" {
					args = "{}"
				}
				events <- Event{Type: EventToolCall, ToolCall: &ToolCall{
					ID:        pc.id,
					Name:      pc.name,
					Arguments: json.RawMessage(args),
				}}
			}
			pending = map[int]*pendingCall{}
			order = nil
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}
			var decoded openRouterStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				errs <- errors.New(decoded.Error.Message)
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			choice := decoded.Choices[0]
			if choice.Delta.Reasoning != "" {
				events <- Event{Type: EventReasoningDelta, Text: choice.Delta.Reasoning}
			}
			if choice.Delta.Content != "" {
				events <- Event{Type: EventTextDelta, Text: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				pc, ok := pending[idx]
				if !ok {
					pc = &pendingCall{}
					pending[idx] = pc
					order = append(order, idx)
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				pc.args.WriteString(tc.Function.Arguments)
			}
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
			return
		}

		flushCalls()
		if finishReason == "" {
			finishReason = "stop"
		}
		events <- Event{Type: EventDone, FinishReason: finishReason}
	}()

	return events, errs
}
