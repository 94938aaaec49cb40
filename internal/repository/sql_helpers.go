package repository

import (
	"errors"

	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// mapError converts driver errors into the service error taxonomy.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shopdesk_errors.ErrNotFound
	case isUniqueViolation(err):
		return shopdesk_errors.ErrAlreadyExists
	default:
		return err
	}
}

// rowsOrNotFound turns a zero-row write into ErrNotFound.
func rowsOrNotFound(res *gorm.DB) error {
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return shopdesk_errors.ErrNotFound
	}
	return nil
}

func pageOffset(page, limit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return (page - 1) * limit, limit
}
