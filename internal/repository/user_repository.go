package repository

import (
	"context"

	"shopdesk-realtime/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostgresUserRepository reads profiles from the users table owned by the
// account collaborator. It never writes.
type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetProfile(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	var a user.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return user.Profile{}, mapError(err)
	}
	return a.Profile(), nil
}

func (r *PostgresUserRepository) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, error) {
	out := make(map[uuid.UUID]user.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var accounts []user.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		out[a.ID] = a.Profile()
	}
	return out, nil
}
