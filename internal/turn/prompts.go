package turn

import (
	"fmt"
	"strings"

	"github.com/loomlabs/chatloom/internal/character"
	"github.com/loomlabs/chatloom/internal/chat"
)

// RequestHints is coarse request context folded into the system prompt.
type RequestHints struct {
	Latitude  string
	Longitude string
	City      string
	Country   string
}

const basePrompt = "You are a friendly assistant! Keep your responses concise and helpful."

const artifactsPrompt = `Artifacts is a special user interface mode shown beside the conversation. When asked to write content such as essays, code or spreadsheets, use the createDocument tool so the result appears as an editable artifact. Use updateDocument to revise an existing artifact and wait for user feedback before updating a document you just created. For improvement requests on a document, use requestSuggestions.`

func hintsBlock(h RequestHints) string {
	if h.Latitude == "" && h.City == "" && h.Country == "" {
		return ""
	}
	return fmt.Sprintf("\n\nAbout the origin of the user's request:\n- lat: %s\n- lon: %s\n- city: %s\n- country: %s",
		h.Latitude, h.Longitude, h.City, h.Country)
}

func personaBlock(p character.Persona) string {
	var b strings.Builder
	b.WriteString("You are roleplaying as " + p.Name + ".")
	if p.SystemPrompt != "" {
		b.WriteString("\n\n" + p.SystemPrompt)
	}
	if p.Personality != "" {
		b.WriteString("\n\nPersonality: " + p.Personality)
	}
	if p.Scenario != "" {
		b.WriteString("\n\nScenario: " + p.Scenario)
	}
	if p.PostHistoryInstructions != "" {
		b.WriteString("\n\n" + p.PostHistoryInstructions)
	}
	return b.String()
}

// systemPrompt composes base instructions, request context and the
// optional persona. The reasoning model runs without the artifacts
// toolset, so its prompt omits the artifacts instructions.
func systemPrompt(model string, hints RequestHints, persona *character.Persona) string {
	var parts []string
	if persona != nil {
		parts = append(parts, personaBlock(*persona))
	} else {
		parts = append(parts, basePrompt)
	}
	parts = append(parts, hintsBlock(hints))
	if model != chat.ModelChatReasoning && persona == nil {
		parts = append(parts, "\n\n"+artifactsPrompt)
	}
	return strings.Join(parts, "")
}
