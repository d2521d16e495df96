// Package character provides read-only access to configured personas.
// This core consumes characters, it never mutates them.
package character

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
)

type Character struct {
	ID                      string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name                    string    `gorm:"type:varchar(128);not null" json:"name"`
	Personality             string    `gorm:"type:text" json:"personality"`
	Scenario                string    `gorm:"type:text" json:"scenario"`
	SystemPrompt            string    `gorm:"type:text" json:"system_prompt"`
	PostHistoryInstructions string    `gorm:"type:text" json:"post_history_instructions"`
	FirstMessage            string    `gorm:"type:text" json:"first_message"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (Character) TableName() string { return "characters" }

// Persona is the prompt-facing view of a character.
type Persona struct {
	Name                    string
	Personality             string
	Scenario                string
	SystemPrompt            string
	PostHistoryInstructions string
}

type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve loads the persona for an optional character id. Persona
// enrichment is not essential to producing a response, so lookup
// failures are logged and mapped to "no persona" instead of aborting
// the turn.
func (r *Resolver) Resolve(ctx context.Context, id string) (Persona, bool) {
	if id == "" {
		return Persona{}, false
	}
	var c Character
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[character] resolve failed id=%s err=%v", id, err)
		}
		return Persona{}, false
	}
	return Persona{
		Name:                    c.Name,
		Personality:             c.Personality,
		Scenario:                c.Scenario,
		SystemPrompt:            c.SystemPrompt,
		PostHistoryInstructions: c.PostHistoryInstructions,
	}, true
}
