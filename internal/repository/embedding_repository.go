package repository

import (
	"fmt"

	"gorm.io/gorm"

	"ragchat/internal/model"
)

// EmbeddingRepository persists chunk embeddings. Session scoping lives here
// and nowhere else: every read is keyed by session_id in the SQL predicate,
// so there is exactly one auditable place enforcing isolation.
type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

func (r *EmbeddingRepository) CreateBatch(embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	if err := r.db.Create(&embeddings).Error; err != nil {
		return fmt.Errorf("create embeddings batch failed: %w", err)
	}
	return nil
}

// ListBySessionID returns every embedding owned by the session, in insertion
// order. The session filter is part of the query predicate, never applied
// after the fact.
func (r *EmbeddingRepository) ListBySessionID(sessionID string) ([]model.Embedding, error) {
	var embeddings []model.Embedding
	err := r.db.
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&embeddings).Error
	if err != nil {
		return nil, fmt.Errorf("list embeddings by session failed: %w", err)
	}
	return embeddings, nil
}

func (r *EmbeddingRepository) CountBySessionID(sessionID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Embedding{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count embeddings by session failed: %w", err)
	}
	return count, nil
}

// DeleteByDocumentID removes a document's chunks; used before re-indexing so
// an ingestion re-run starts clean.
func (r *EmbeddingRepository) DeleteByDocumentID(documentID string) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.Embedding{}).Error; err != nil {
		return fmt.Errorf("delete embeddings by document failed: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) DeleteBySessionID(sessionID string) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.Embedding{}).Error; err != nil {
		return fmt.Errorf("delete embeddings by session failed: %w", err)
	}
	return nil
}
