package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/document"
	"github.com/loomlabs/chatloom/internal/stream"
)

// CreateDocument allocates a new artifact, streams its generation and
// persists the finished version owned by the turn's principal.
type CreateDocument struct {
	Repo     *document.Repo
	Handlers document.Handlers
	UserID   uint64
}

func (t *CreateDocument) Def() ai.ToolDef {
	return ai.ToolDef{
		Name: "createDocument",
		Description: "Create a document for a writing or content creation activity. " +
			"This tool will generate the contents of the document based on the title and kind.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
				"kind":  map[string]any{"type": "string", "enum": []string{"text", "code", "sheet"}},
			},
			"required": []string{"title", "kind"},
		},
	}
}

func (t *CreateDocument) Execute(ctx context.Context, input json.RawMessage, w stream.Writer) (any, error) {
	var args struct {
		Title string        `json:"title"`
		Kind  document.Kind `json:"kind"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("createDocument: bad arguments: %w", err)
	}

	handler, err := t.Handlers.For(args.Kind)
	if err != nil {
		return nil, err
	}

	id := common.NewUUID()
	if err := w.Write(ctx, stream.DataFrame(stream.FrameDataKind, args.Kind)); err != nil {
		return nil, err
	}
	if err := w.Write(ctx, stream.DataFrame(stream.FrameDataID, id)); err != nil {
		return nil, err
	}
	if err := w.Write(ctx, stream.DataFrame(stream.FrameDataTitle, args.Title)); err != nil {
		return nil, err
	}
	if err := w.Write(ctx, stream.DataFrame(stream.FrameDataClear, nil)); err != nil {
		return nil, err
	}

	content, err := handler.Create(ctx, args.Title, w)
	if err != nil {
		return nil, err
	}

	if err := t.Repo.SaveDocument(ctx, &document.Document{
		ID:      id,
		UserID:  t.UserID,
		Title:   args.Title,
		Kind:    args.Kind,
		Content: content,
	}); err != nil {
		return nil, err
	}

	if err := w.Write(ctx, stream.DataFrame(stream.FrameDataFinish, nil)); err != nil {
		return nil, err
	}

	return map[string]any{
		"id":      id,
		"title":   args.Title,
		"kind":    args.Kind,
		"content": "A document was created and is now visible to the user.",
	}, nil
}

// UpdateDocument revises the current version of an artifact, writing a
// new version row with the same id.
type UpdateDocument struct {
	Repo     *document.Repo
	Handlers document.Handlers
	UserID   uint64
}

func (t *UpdateDocument) Def() ai.ToolDef {
	return ai.ToolDef{
		Name:        "updateDocument",
		Description: "Update a document with the given description.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":          map[string]any{"type": "string", "description": "The ID of the document to update"},
				"description": map[string]any{"type": "string", "description": "The description of changes that need to be made"},
			},
			"required": []string{"id", "description"},
		},
	}
}

func (t *UpdateDocument) Execute(ctx context.Context, input json.RawMessage, w stream.Writer) (any, error) {
	var args struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("updateDocument: bad arguments: %w", err)
	}

	doc, err := t.Repo.GetDocumentByID(ctx, args.ID)
	if err != nil {
		return map[string]any{"error": "Document not found"}, nil
	}

	if err := w.Write(ctx, stream.DataFrame(stream.FrameDataClear, nil)); err != nil {
		return nil, err
	}

	handler, err := t.Handlers.For(doc.Kind)
	if err != nil {
		return nil, err
	}

	content, err := handler.Update(ctx, doc, args.Description, w)
	if err != nil {
		return nil, err
	}

	if err := t.Repo.SaveDocument(ctx, &document.Document{
		ID:      doc.ID,
		UserID:  t.UserID,
		Title:   doc.Title,
		Kind:    doc.Kind,
		Content: content,
	}); err != nil {
		return nil, err
	}

	if err := w.Write(ctx, stream.DataFrame(stream.FrameDataFinish, nil)); err != nil {
		return nil, err
	}

	return map[string]any{
		"id":      doc.ID,
		"title":   doc.Title,
		"kind":    doc.Kind,
		"content": "The document has been updated successfully.",
	}, nil
}
