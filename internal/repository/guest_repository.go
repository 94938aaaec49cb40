package repository

import (
	"context"
	"time"

	"shopdesk-realtime/internal/domain/guest"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresGuestSessionRepository struct {
	db *gorm.DB
}

func NewGuestSessionRepository(db *gorm.DB) GuestSessionRepository {
	return &PostgresGuestSessionRepository{db: db}
}

func (r *PostgresGuestSessionRepository) Create(ctx context.Context, s *guest.Session) error {
	return mapError(r.db.WithContext(ctx).Create(s).Error)
}

func (r *PostgresGuestSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (guest.Session, error) {
	var s guest.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return guest.Session{}, mapError(err)
	}
	return s, nil
}

func (r *PostgresGuestSessionRepository) GetByTokenHash(ctx context.Context, hash string) (guest.Session, error) {
	var s guest.Session
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&s).Error; err != nil {
		return guest.Session{}, mapError(err)
	}
	return s, nil
}

func (r *PostgresGuestSessionRepository) RecordMessage(ctx context.Context, id uuid.UUID, at time.Time) (int, error) {
	var row struct{ MessageCount int }
	res := r.db.WithContext(ctx).Raw(
		`UPDATE guest_sessions
		 SET message_count = message_count + 1, last_activity_at = GREATEST(last_activity_at, ?)
		 WHERE id = ? AND status = ?
		 RETURNING message_count`,
		at, id, guest.StatusOpen,
	).Scan(&row)
	if err := rowsOrNotFound(res); err != nil {
		return 0, err
	}
	return row.MessageCount, nil
}

func (r *PostgresGuestSessionRepository) TouchByConversation(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&guest.Session{}).
		Where("conversation_id = ? AND status = ?", conversationID, guest.StatusOpen).
		Update("last_activity_at", gorm.Expr("GREATEST(last_activity_at, ?)", at)).Error
}

func (r *PostgresGuestSessionRepository) AssignStaff(ctx context.Context, id, staffID uuid.UUID, at time.Time) error {
	return rowsOrNotFound(r.db.WithContext(ctx).Model(&guest.Session{}).
		Where("id = ? AND status = ?", id, guest.StatusOpen).
		Updates(map[string]any{
			"assigned_staff_id": staffID,
			"last_activity_at":  gorm.Expr("GREATEST(last_activity_at, ?)", at),
		}))
}

func (r *PostgresGuestSessionRepository) Close(ctx context.Context, id uuid.UUID, at, idleBefore time.Time) error {
	q := r.db.WithContext(ctx).Model(&guest.Session{}).
		Where("id = ? AND status = ?", id, guest.StatusOpen)
	if !idleBefore.IsZero() {
		q = q.Where("last_activity_at < ?", idleBefore)
	}
	return rowsOrNotFound(q.Updates(map[string]any{"status": guest.StatusClosed, "closed_at": at}))
}

func (r *PostgresGuestSessionRepository) ListIdle(ctx context.Context, lastActivityBefore time.Time, limit int) ([]guest.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []guest.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_activity_at < ?", guest.StatusOpen, lastActivityBefore).
		Order("last_activity_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
