package document

import "time"

type Kind string

const (
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindImage Kind = "image"
	KindSheet Kind = "sheet"
)

func ValidKind(k Kind) bool {
	switch k {
	case KindText, KindCode, KindImage, KindSheet:
		return true
	}
	return false
}

// Document versions share an id; each save inserts a new row with a
// distinct created_at and the current version is the newest row.
// Historical versions are retained until explicitly truncated.
type Document struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `gorm:"primaryKey" json:"created_at"`
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Kind      Kind      `gorm:"type:varchar(16);not null" json:"kind"`
	Content   string    `gorm:"type:text" json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "documents" }

// Suggestion is tied to the exact document version it was generated
// against via (DocumentID, DocumentCreatedAt).
type Suggestion struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DocumentID        string    `gorm:"type:varchar(36);index:idx_suggestions_doc,priority:1;not null" json:"document_id"`
	DocumentCreatedAt time.Time `gorm:"index:idx_suggestions_doc,priority:2;not null" json:"document_created_at"`
	UserID            uint64    `gorm:"index;not null" json:"-"`
	OriginalText      string    `gorm:"type:text;not null" json:"original_text"`
	SuggestedText     string    `gorm:"type:text;not null" json:"suggested_text"`
	Description       string    `gorm:"type:text" json:"description"`
	IsResolved        bool      `gorm:"not null;default:false" json:"is_resolved"`
	CreatedAt         time.Time `json:"created_at"`
}

func (Suggestion) TableName() string { return "suggestions" }
