package turn

import (
	"context"
	"log"
	"strings"

	"github.com/loomlabs/chatloom/internal/ai"
)

const titleSystemPrompt = `- you will generate a short title based on the first message a user begins a conversation with
- ensure it is not more than 80 characters long
- the title should be a summary of the user's message
- do not use quotes or colons`

const fallbackTitle = "New chat"

// generateTitle summarizes the first user message. Title generation is
// cosmetic: failures fall back to a default rather than failing the
// turn.
func generateTitle(ctx context.Context, provider ai.Provider, firstMessage string) string {
	if provider == nil || strings.TrimSpace(firstMessage) == "" {
		return fallbackTitle
	}
	title, err := provider.Chat(ctx, []ai.Message{
		{Role: "system", Content: titleSystemPrompt},
		{Role: "user", Content: firstMessage},
	})
	if err != nil {
		log.Printf("[turn] title generation failed: %v", err)
		return fallbackTitle
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" {
		return fallbackTitle
	}
	// Cap by runes, not bytes, so multibyte titles stay valid UTF-8.
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}
	return title
}
