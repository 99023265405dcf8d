package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ragchat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndSessionID(id, sessionID string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND session_id = ?", id, sessionID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// ListBySessionID returns documents without their raw content; listings are
// for status visibility, not for re-downloading uploads.
func (r *DocumentRepository) ListBySessionID(sessionID string) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.
		Select("id", "session_id", "filename", "mime_type", "size", "status", "failure_reason", "created_at").
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// TransitionStatus moves a document from one status to another with a single
// conditional update, and is the only write path for document status. The
// WHERE clause on the expected prior status makes each transition atomic:
// concurrent runs race on the same row and exactly one wins, which is what
// gives the pipeline its at-most-one-active-run guarantee. Returns false if
// the document was not in the expected status.
func (r *DocumentRepository) TransitionStatus(id string, from, to model.DocumentStatus, reason string) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("document status transition %s -> %s is not allowed", from, to)
	}
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":         to,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, fmt.Errorf("update document status failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *DocumentRepository) DeleteBySessionID(sessionID string) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete documents by session failed: %w", err)
	}
	return nil
}
