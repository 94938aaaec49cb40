package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories so services can run several writes in
// one transaction.
type Store interface {
	Conversations() ConversationRepository
	Messages() MessageRepository
	Friendships() FriendshipRepository
	Notifications() NotificationRepository
	GuestSessions() GuestSessionRepository
	Users() UserRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type PostgresStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Conversations() ConversationRepository {
	return NewConversationRepository(s.db)
}

func (s *PostgresStore) Messages() MessageRepository {
	return NewMessageRepository(s.db)
}

func (s *PostgresStore) Friendships() FriendshipRepository {
	return NewFriendshipRepository(s.db)
}

func (s *PostgresStore) Notifications() NotificationRepository {
	return NewNotificationRepository(s.db)
}

func (s *PostgresStore) GuestSessions() GuestSessionRepository {
	return NewGuestSessionRepository(s.db)
}

func (s *PostgresStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresStore{db: tx})
	})
}
