package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/apperr"
	"github.com/loomlabs/chatloom/internal/stream"
)

// Handler generates content for one document kind, streaming deltas as
// it goes and returning the finished content for persistence.
type Handler interface {
	Kind() Kind
	Create(ctx context.Context, title string, w stream.Writer) (string, error)
	Update(ctx context.Context, doc *Document, description string, w stream.Writer) (string, error)
}

// Handlers routes by document kind.
type Handlers map[Kind]Handler

func NewHandlers(provider ai.Provider) Handlers {
	return Handlers{
		KindText:  &textHandler{provider: provider},
		KindCode:  &codeHandler{provider: provider},
		KindSheet: &sheetHandler{provider: provider},
	}
}

func (h Handlers) For(kind Kind) (Handler, error) {
	handler, ok := h[kind]
	if !ok {
		return nil, apperr.New(apperr.KindBadRequest, "document", fmt.Sprintf("no handler for document kind %q", kind))
	}
	return handler, nil
}

// generate streams the provider's output, relaying each chunk as a
// delta frame of the given type, and returns the accumulated content.
func generate(ctx context.Context, provider ai.Provider, system, prompt, deltaFrame string, w stream.Writer) (string, error) {
	msgs := []ai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}

	sp, ok := provider.(ai.StreamProvider)
	if !ok {
		content, err := provider.Chat(ctx, msgs)
		if err != nil {
			return "", err
		}
		if err := w.Write(ctx, stream.DataFrame(deltaFrame, content)); err != nil {
			return "", err
		}
		return content, nil
	}

	chunks, errs := sp.StreamChat(ctx, msgs)
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
		if err := w.Write(ctx, stream.DataFrame(deltaFrame, c)); err != nil {
			return "", err
		}
	}
	if err := <-errs; err != nil {
		return "", err
	}
	return b.String(), nil
}

type textHandler struct {
	provider ai.Provider
}

func (h *textHandler) Kind() Kind { return KindText }

func (h *textHandler) Create(ctx context.Context, title string, w stream.Writer) (string, error) {
	system := "Write about the given topic. Markdown is supported. Use headings wherever appropriate."
	return generate(ctx, h.provider, system, title, stream.FrameDataTextDelta, w)
}

func (h *textHandler) Update(ctx context.Context, doc *Document, description string, w stream.Writer) (string, error) {
	system := "Improve the following contents of the document based on the given prompt.\n\n" + doc.Content
	return generate(ctx, h.provider, system, description, stream.FrameDataTextDelta, w)
}

type codeHandler struct {
	provider ai.Provider
}

func (h *codeHandler) Kind() Kind { return KindCode }

func (h *codeHandler) Create(ctx context.Context, title string, w stream.Writer) (string, error) {
	system := "Generate a self-contained, runnable code snippet for the given request. Include helpful comments. Output only code, no prose."
	return generate(ctx, h.provider, system, title, stream.FrameDataCodeDelta, w)
}

func (h *codeHandler) Update(ctx context.Context, doc *Document, description string, w stream.Writer) (string, error) {
	system := "Update the following code snippet based on the given prompt. Output only code, no prose.\n\n" + doc.Content
	return generate(ctx, h.provider, system, description, stream.FrameDataCodeDelta, w)
}

type sheetHandler struct {
	provider ai.Provider
}

func (h *sheetHandler) Kind() Kind { return KindSheet }

func (h *sheetHandler) Create(ctx context.Context, title string, w stream.Writer) (string, error) {
	system := "Generate a spreadsheet in CSV format based on the given prompt. The sheet should contain meaningful column headers and data."
	return generate(ctx, h.provider, system, title, stream.FrameDataSheetDelta, w)
}

func (h *sheetHandler) Update(ctx context.Context, doc *Document, description string, w stream.Writer) (string, error) {
	system := "Update the following spreadsheet based on the given prompt. Output CSV only.\n\n" + doc.Content
	return generate(ctx, h.provider, system, description, stream.FrameDataSheetDelta, w)
}
