package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loomlabs/chatloom/internal/apperr"
	"github.com/loomlabs/chatloom/internal/common"
)

// Chat models selectable by clients.
const (
	ModelChat          = "chat-model"
	ModelChatReasoning = "chat-model-reasoning"
)

var selectableModels = map[string]bool{
	ModelChat:          true,
	ModelChatReasoning: true,
}

const (
	maxTextPartLen = 2000
	maxAttachments = 5
)

// TurnRequest is the inbound POST /chat payload.
type TurnRequest struct {
	ID                     string      `json:"id"`
	Message                TurnMessage `json:"message"`
	SelectedChatModel      string      `json:"selectedChatModel"`
	SelectedVisibilityType Visibility  `json:"selectedVisibilityType"`
	CharacterID            string      `json:"characterId,omitempty"`
}

type TurnMessage struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	Parts       Parts           `json:"parts"`
	Attachments json.RawMessage `json:"attachments"`
}

func badField(field, reason string) error {
	return apperr.New(apperr.KindBadRequest, "api", fmt.Sprintf("invalid field %q: %s", field, reason))
}

// Validate normalizes and checks the payload shape. No side effects.
func (r *TurnRequest) Validate() error {
	if !common.IsUUID(r.ID) {
		return badField("id", "must be a UUID")
	}
	if !common.IsUUID(r.Message.ID) {
		return badField("message.id", "must be a UUID")
	}
	if r.Message.Role != RoleUser {
		return badField("message.role", "must be \"user\"")
	}

	var text, files int
	for _, p := range r.Message.Parts {
		switch v := p.(type) {
		case TextPart:
			if len(v.Text) == 0 {
				return badField("message.parts", "text part must not be empty")
			}
			if len(v.Text) > maxTextPartLen {
				return badField("message.parts", fmt.Sprintf("text part exceeds %d characters", maxTextPartLen))
			}
			text++
		case FilePart:
			if strings.TrimSpace(v.URL) == "" {
				return badField("message.parts", "file part requires a url")
			}
			files++
		default:
			return badField("message.parts", fmt.Sprintf("part type %q not allowed in a user message", p.PartType()))
		}
	}
	if text == 0 && files == 0 {
		return badField("message.parts", "at least one text or file part is required")
	}
	if files > maxAttachments {
		return badField("message.parts", fmt.Sprintf("at most %d file parts allowed", maxAttachments))
	}

	if !selectableModels[r.SelectedChatModel] {
		return badField("selectedChatModel", "unknown model")
	}
	switch r.SelectedVisibilityType {
	case VisibilityPrivate, VisibilityPublic:
	default:
		return badField("selectedVisibilityType", "must be \"private\" or \"public\"")
	}
	if r.CharacterID != "" && !common.IsUUID(r.CharacterID) {
		return badField("characterId", "must be a UUID")
	}
	return nil
}
