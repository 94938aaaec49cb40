package repository

import (
	"context"
	"time"

	"shopdesk-realtime/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

// Create inserts the message and its attachments in one transaction.
func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	return mapError(r.db.WithContext(ctx).Omit("ReplyTo").Create(m).Error)
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("ReplyTo").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return message.Message{}, mapError(err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("ReplyTo").
		Where("conversation_id = ? AND deleted_at IS NULL", conversationID)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}

	var messages []message.Message
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *PostgresMessageRepository) Update(ctx context.Context, m message.Message) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"content":    m.Content,
			"metadata":   m.Metadata,
			"is_edited":  m.IsEdited,
			"updated_at": time.Now(),
		})
	return rowsOrNotFound(res)
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at)
	return rowsOrNotFound(res)
}
