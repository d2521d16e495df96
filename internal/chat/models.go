package chat

import (
	"encoding/json"
	"time"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

type Chat struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      uint64     `gorm:"index;not null" json:"-"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Visibility  Visibility `gorm:"type:varchar(16);not null;default:private" json:"visibility"`
	CharacterID *string    `gorm:"type:varchar(36);index" json:"character_id,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message rows are immutable once written; only cascade deletion
// removes them.
type Message struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChatID string `gorm:"type:varchar(36);index:idx_messages_chat_created,priority:1;not null" json:"chat_id"`
	Role   string `gorm:"type:varchar(16);not null" json:"role"`
	// JSON array of tagged parts, see Parts.
	Parts       json.RawMessage `gorm:"type:json;not null" json:"parts"`
	Attachments json.RawMessage `gorm:"type:json;not null" json:"attachments"`
	CreatedAt   time.Time       `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// DecodedParts parses the stored part list.
func (m *Message) DecodedParts() (Parts, error) {
	var ps Parts
	if err := json.Unmarshal(m.Parts, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

type Vote struct {
	ChatID    string    `gorm:"primaryKey;type:varchar(36)" json:"chat_id"`
	MessageID string    `gorm:"primaryKey;type:varchar(36)" json:"message_id"`
	IsUpvoted bool      `gorm:"not null" json:"is_upvoted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vote) TableName() string { return "votes" }

// Stream is the per-turn resumability marker. One row is appended
// before each generation attempt; rows are never updated.
type Stream struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChatID    string    `gorm:"type:varchar(36);index:idx_streams_chat_created,priority:1;not null" json:"chat_id"`
	CreatedAt time.Time `gorm:"index:idx_streams_chat_created,priority:2" json:"created_at"`
}

func (Stream) TableName() string { return "streams" }
