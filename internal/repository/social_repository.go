package repository

import (
	"context"
	"time"

	"shopdesk-realtime/internal/domain/social"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresFriendshipRepository struct {
	db *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

func (r *PostgresFriendshipRepository) Create(ctx context.Context, f *social.Friendship) error {
	return mapError(r.db.WithContext(ctx).Create(f).Error)
}

func (r *PostgresFriendshipRepository) GetByID(ctx context.Context, id uuid.UUID) (social.Friendship, error) {
	var f social.Friendship
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return social.Friendship{}, mapError(err)
	}
	return f, nil
}

func (r *PostgresFriendshipRepository) GetBetween(ctx context.Context, userID1, userID2 uuid.UUID) (social.Friendship, error) {
	var f social.Friendship
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userID1, userID2, userID2, userID1).
		First(&f).Error
	if err != nil {
		return social.Friendship{}, mapError(err)
	}
	return f, nil
}

func (r *PostgresFriendshipRepository) Update(ctx context.Context, f social.Friendship) error {
	f.UpdatedAt = time.Now()
	return rowsOrNotFound(r.db.WithContext(ctx).Save(&f))
}

func (r *PostgresFriendshipRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return rowsOrNotFound(r.db.WithContext(ctx).Delete(&social.Friendship{}, "id = ?", id))
}

func (r *PostgresFriendshipRepository) ListForUser(ctx context.Context, userID uuid.UUID, status string) ([]social.Friendship, error) {
	var out []social.Friendship
	q := r.db.WithContext(ctx).Where("requester_id = ? OR addressee_id = ?", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *social.Notification) error {
	return mapError(r.db.WithContext(ctx).Create(n).Error)
}

func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]social.Notification, int64, error) {
	var out []social.Notification
	var total int64

	q := r.db.WithContext(ctx).Model(&social.Notification{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := pageOffset(page, limit)
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresNotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&social.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&social.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	return rowsOrNotFound(res)
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&social.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at).Error
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return rowsOrNotFound(r.db.WithContext(ctx).Delete(&social.Notification{}, "id = ? AND user_id = ?", id, userID))
}
