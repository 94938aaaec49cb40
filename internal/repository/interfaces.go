package repository

import (
	"context"
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/domain/guest"
	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/domain/social"
	"shopdesk-realtime/internal/domain/user"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetPrivateBetween(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	SetLatestMessage(ctx context.Context, conversationID, messageID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	GetMember(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Member, error)
	ListMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	AddMember(ctx context.Context, m *conversation.Member) error
	RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error
	UpdateReadState(ctx context.Context, conversationID, userID uuid.UUID, state conversation.ReadState) error

	// LockConversation runs fn inside a transaction holding the
	// conversation's row lock. fn receives a repository bound to that
	// transaction.
	LockConversation(ctx context.Context, conversationID uuid.UUID, fn func(ConversationRepository) error) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// ListByConversation returns up to limit messages created strictly
	// before the cursor (or the newest ones when before is nil), oldest first.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error)
	Update(ctx context.Context, m message.Message) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}

type FriendshipRepository interface {
	Create(ctx context.Context, f *social.Friendship) error
	GetByID(ctx context.Context, id uuid.UUID) (social.Friendship, error)
	GetBetween(ctx context.Context, userID1, userID2 uuid.UUID) (social.Friendship, error)
	Update(ctx context.Context, f social.Friendship) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID, status string) ([]social.Friendship, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *social.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]social.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type GuestSessionRepository interface {
	Create(ctx context.Context, s *guest.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (guest.Session, error)
	GetByTokenHash(ctx context.Context, hash string) (guest.Session, error)
	// RecordMessage counts one message on an open session, moves its last
	// activity forward and returns the new count. ErrNotFound when the
	// session is closed.
	RecordMessage(ctx context.Context, id uuid.UUID, at time.Time) (int, error)
	// TouchByConversation moves the last activity of the open session on
	// conversationID forward. No session is not an error.
	TouchByConversation(ctx context.Context, conversationID uuid.UUID, at time.Time) error
	AssignStaff(ctx context.Context, id, staffID uuid.UUID, at time.Time) error
	// Close closes an open session. A non-zero idleBefore only closes it
	// while its last activity is still before idleBefore.
	Close(ctx context.Context, id uuid.UUID, at, idleBefore time.Time) error
	ListIdle(ctx context.Context, lastActivityBefore time.Time, limit int) ([]guest.Session, error)
}

type UserRepository interface {
	user.ProfileLookup
}
