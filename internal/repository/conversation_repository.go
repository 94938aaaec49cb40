package repository

import (
	"context"
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	return mapError(r.db.WithContext(ctx).Create(c).Error)
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, mapError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetPrivateBetween(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation

	// Private conversation where both users are members
	subQuery := r.db.Model(&conversation.Member{}).
		Select("conversation_id").
		Where("user_id IN (?, ?)", userID1, userID2).
		Group("conversation_id").
		Having("COUNT(DISTINCT user_id) = 2")

	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id IN (?) AND type = ?", subQuery, conversation.TypePrivate).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, mapError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	subQuery := r.db.Model(&conversation.Member{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id IN (?)", subQuery)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(page, limit)
	if err := q.
		Preload("Members").
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

func (r *PostgresConversationRepository) SetLatestMessage(ctx context.Context, conversationID, messageID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"latest_message_id": messageID,
			"updated_at":        time.Now(),
		})
	return rowsOrNotFound(res)
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&conversation.Member{}).Error; err != nil {
			return err
		}
		return rowsOrNotFound(tx.Delete(&conversation.Conversation{}, "id = ?", id))
	})
}

func (r *PostgresConversationRepository) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Member, error) {
	var m conversation.Member
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		return conversation.Member{}, mapError(err)
	}
	return m, nil
}

func (r *PostgresConversationRepository) ListMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&conversation.Member{}).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresConversationRepository) AddMember(ctx context.Context, m *conversation.Member) error {
	return mapError(r.db.WithContext(ctx).Create(m).Error)
}

func (r *PostgresConversationRepository) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&conversation.Member{})
	return rowsOrNotFound(res)
}

func (r *PostgresConversationRepository) UpdateReadState(ctx context.Context, conversationID, userID uuid.UUID, state conversation.ReadState) error {
	updates := map[string]interface{}{}
	if state.LastReadAt != nil {
		updates["last_read_at"] = *state.LastReadAt
	}
	if state.IsMuted != nil {
		updates["is_muted"] = *state.IsMuted
	}
	if state.IsPinned != nil {
		updates["is_pinned"] = *state.IsPinned
	}
	if len(updates) == 0 {
		return shopdesk_errors.ErrInvalidInput
	}
	res := r.db.WithContext(ctx).
		Model(&conversation.Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(updates)
	return rowsOrNotFound(res)
}

func (r *PostgresConversationRepository) LockConversation(ctx context.Context, conversationID uuid.UUID, fn func(ConversationRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c conversation.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", conversationID).
			First(&c).Error
		if err != nil {
			return mapError(err)
		}
		return fn(&PostgresConversationRepository{db: tx})
	})
}
