package repository

import (
	"fmt"

	"gorm.io/gorm"

	"ragchat/internal/model"
)

// MessageRepository is the append-only conversation log. There is no update
// or per-message delete; messages disappear only when their session is
// deleted.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(message *model.Message) error {
	if !message.Role.Valid() {
		return fmt.Errorf("invalid message role %q", message.Role)
	}
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("append message failed: %w", err)
	}
	return nil
}

// RecentBySessionID returns the last limit messages in chronological order.
// The auto-increment id breaks created_at ties, so concurrent appends in the
// same instant still have a total order.
func (r *MessageRepository) RecentBySessionID(sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []model.Message
	err := r.db.
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) DeleteBySessionID(sessionID string) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete messages by session failed: %w", err)
	}
	return nil
}
