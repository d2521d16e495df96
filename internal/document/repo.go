package document

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/loomlabs/chatloom/internal/apperr"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// SaveDocument inserts a new version row. Same id, new created_at.
func (r *Repo) SaveDocument(ctx context.Context, d *Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return apperr.Database("save_document", err)
	}
	return nil
}

// GetDocumentByID returns the current (newest) version.
func (r *Repo) GetDocumentByID(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Order("created_at DESC").
		First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "document", "document not found")
		}
		return nil, apperr.Database("get_document_by_id", err)
	}
	return &d, nil
}

// GetDocumentVersion returns the version created at exactly ts.
func (r *Repo) GetDocumentVersion(ctx context.Context, id string, ts time.Time) (*Document, error) {
	var d Document
	if err := r.db.WithContext(ctx).
		Where("id = ? AND created_at = ?", id, ts).
		First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "document", "document version not found")
		}
		return nil, apperr.Database("get_document_version", err)
	}
	return &d, nil
}

// GetDocumentsByID lists all versions oldest-first.
func (r *Repo) GetDocumentsByID(ctx context.Context, id string) ([]Document, error) {
	var docs []Document
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Order("created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, apperr.Database("get_documents_by_id", err)
	}
	return docs, nil
}

// DeleteDocumentsByIDAfterTimestamp truncates versions newer than ts,
// cascading their suggestions first.
func (r *Repo) DeleteDocumentsByIDAfterTimestamp(ctx context.Context, id string, ts time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ? AND document_created_at > ?", id, ts).
			Delete(&Suggestion{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND created_at > ?", id, ts).Delete(&Document{}).Error
	})
	if err != nil {
		return apperr.Database("delete_documents_by_id_after_timestamp", err)
	}
	return nil
}

func (r *Repo) SaveSuggestions(ctx context.Context, sugs []Suggestion) error {
	if len(sugs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&sugs).Error; err != nil {
		return apperr.Database("save_suggestions", err)
	}
	return nil
}

func (r *Repo) GetSuggestionsByDocumentID(ctx context.Context, documentID string) ([]Suggestion, error) {
	var sugs []Suggestion
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&sugs).Error; err != nil {
		return nil, apperr.Database("get_suggestions_by_document_id", err)
	}
	return sugs, nil
}
