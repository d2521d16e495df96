package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/document"
	"github.com/loomlabs/chatloom/internal/stream"
)

const maxSuggestions = 5

const suggestionsSystemPrompt = "You are a help writing assistant. Given a piece of writing, " +
	"please offer suggestions to improve the piece of writing and describe the change. " +
	"It is very important for the edits to contain full sentences instead of just words. " +
	"Respond with a JSON array of at most 5 objects, each with keys " +
	"\"originalSentence\", \"suggestedSentence\" and \"description\". Output only JSON."

// RequestSuggestions generates edit suggestions for a document,
// streaming each one as a transient event and persisting the batch
// against the exact document version it was generated from.
type RequestSuggestions struct {
	Repo     *document.Repo
	Provider ai.Provider
	UserID   uint64
}

func (t *RequestSuggestions) Def() ai.ToolDef {
	return ai.ToolDef{
		Name:        "requestSuggestions",
		Description: "Request suggestions for a document",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"documentId": map[string]any{"type": "string", "description": "The ID of the document to request edits"},
			},
			"required": []string{"documentId"},
		},
	}
}

type suggestionDraft struct {
	OriginalSentence  string `json:"originalSentence"`
	SuggestedSentence string `json:"suggestedSentence"`
	Description       string `json:"description"`
}

func (t *RequestSuggestions) Execute(ctx context.Context, input json.RawMessage, w stream.Writer) (any, error) {
	var args struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("requestSuggestions: bad arguments: %w", err)
	}

	doc, err := t.Repo.GetDocumentByID(ctx, args.DocumentID)
	if err != nil || doc.Content == "" {
		return map[string]any{"error": "Document not found"}, nil
	}

	raw, err := t.Provider.Chat(ctx, []ai.Message{
		{Role: "system", Content: suggestionsSystemPrompt},
		{Role: "user", Content: doc.Content},
	})
	if err != nil {
		return nil, fmt.Errorf("requestSuggestions: %w", err)
	}

	drafts, err := parseSuggestionDrafts(raw)
	if err != nil {
		return nil, fmt.Errorf("requestSuggestions: %w", err)
	}
	if len(drafts) > maxSuggestions {
		drafts = drafts[:maxSuggestions]
	}

	sugs := make([]document.Suggestion, 0, len(drafts))
	for _, d := range drafts {
		s := document.Suggestion{
			ID:                common.NewUUID(),
			DocumentID:        doc.ID,
			DocumentCreatedAt: doc.CreatedAt,
			UserID:            t.UserID,
			OriginalText:      d.OriginalSentence,
			SuggestedText:     d.SuggestedSentence,
			Description:       d.Description,
		}
		if err := w.Write(ctx, stream.DataFrame(stream.FrameDataSuggestion, s)); err != nil {
			return nil, err
		}
		sugs = append(sugs, s)
	}

	if err := t.Repo.SaveSuggestions(ctx, sugs); err != nil {
		return nil, err
	}

	return map[string]any{
		"id":      doc.ID,
		"title":   doc.Title,
		"kind":    doc.Kind,
		"message": "Suggestions have been added to the document",
	}, nil
}

// parseSuggestionDrafts tolerates fenced or prose-wrapped model output
// by extracting the outermost JSON array.
func parseSuggestionDrafts(raw string) ([]suggestionDraft, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}
	var drafts []suggestionDraft
	if err := json.Unmarshal([]byte(raw[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return drafts, nil
}
