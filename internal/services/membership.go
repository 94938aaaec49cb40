package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/repository"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

// MembershipStore is the only component that decides who belongs to a
// conversation. Writes for one conversation are serialized by an
// in-process lock and by the conversation's row lock, so they are
// visible to the very next read. Membership is never cached.
type MembershipStore struct {
	conversations repository.ConversationRepository
	locks         *conversationLocks
	now           func() time.Time
}

func NewMembershipStore(conversations repository.ConversationRepository) *MembershipStore {
	return &MembershipStore{
		conversations: conversations,
		locks:         newConversationLocks(),
		now:           time.Now,
	}
}

func (s *MembershipStore) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	unlock := s.locks.rlock(conversationID)
	defer unlock()
	return s.conversations.IsMember(ctx, conversationID, userID)
}

// MembersOf reads under the same lock writers take, so a dispatch never
// sees a half-applied membership change.
func (s *MembershipStore) MembersOf(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	unlock := s.locks.rlock(conversationID)
	defer unlock()
	return s.conversations.ListMemberIDs(ctx, conversationID)
}

func (s *MembershipStore) Member(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Member, error) {
	unlock := s.locks.rlock(conversationID)
	defer unlock()
	return s.conversations.GetMember(ctx, conversationID, userID)
}

// IsAdmin reports whether userID holds the admin role. Non-members are
// simply not admins.
func (s *MembershipStore) IsAdmin(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	m, err := s.Member(ctx, conversationID, userID)
	if errors.Is(err, shopdesk_errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Role == conversation.RoleAdmin, nil
}

func (s *MembershipStore) AddMember(ctx context.Context, conversationID, userID uuid.UUID, role string) (conversation.Member, error) {
	if role == "" {
		role = conversation.RoleMember
	}
	if role != conversation.RoleMember && role != conversation.RoleAdmin {
		return conversation.Member{}, shopdesk_errors.ErrInvalidInput
	}
	unlock := s.locks.lock(conversationID)
	defer unlock()

	m := conversation.Member{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       s.now(),
	}
	err := s.conversations.LockConversation(ctx, conversationID, func(repo repository.ConversationRepository) error {
		exists, err := repo.IsMember(ctx, conversationID, userID)
		if err != nil {
			return err
		}
		if exists {
			return shopdesk_errors.ErrAlreadyExists
		}
		return repo.AddMember(ctx, &m)
	})
	if err != nil {
		return conversation.Member{}, err
	}
	return m, nil
}

// RemoveMember rejects removing the creator: a conversation keeps at
// least its creator until it is deleted.
func (s *MembershipStore) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	unlock := s.locks.lock(conversationID)
	defer unlock()

	return s.conversations.LockConversation(ctx, conversationID, func(repo repository.ConversationRepository) error {
		c, err := repo.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if c.CreatedBy == userID {
			return shopdesk_errors.ErrConflict
		}
		return repo.RemoveMember(ctx, conversationID, userID)
	})
}

func (s *MembershipStore) UpdateReadState(ctx context.Context, conversationID, userID uuid.UUID, state conversation.ReadState) error {
	if state.LastReadAt == nil && state.IsMuted == nil && state.IsPinned == nil {
		return shopdesk_errors.ErrInvalidInput
	}
	unlock := s.locks.lock(conversationID)
	defer unlock()

	return s.conversations.LockConversation(ctx, conversationID, func(repo repository.ConversationRepository) error {
		return repo.UpdateReadState(ctx, conversationID, userID, state)
	})
}

// conversationLocks hands out one RWMutex per conversation and drops it
// once no goroutine holds or waits for it.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refLock
}

type refLock struct {
	sync.RWMutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[uuid.UUID]*refLock)}
}

func (l *conversationLocks) acquire(id uuid.UUID) *refLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.locks[id]
	if !ok {
		rl = &refLock{}
		l.locks[id] = rl
	}
	rl.refs++
	return rl
}

func (l *conversationLocks) release(id uuid.UUID, rl *refLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *conversationLocks) lock(id uuid.UUID) func() {
	rl := l.acquire(id)
	rl.Lock()
	return func() {
		rl.Unlock()
		l.release(id, rl)
	}
}

func (l *conversationLocks) rlock(id uuid.UUID) func() {
	rl := l.acquire(id)
	rl.RLock()
	return func() {
		rl.RUnlock()
		l.release(id, rl)
	}
}
