package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/repository"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

type ConversationService struct {
	store   repository.Store
	members *MembershipStore
	now     func() time.Time
}

func NewConversationService(store repository.Store, members *MembershipStore) *ConversationService {
	return &ConversationService{store: store, members: members, now: time.Now}
}

type CreateConversationInput struct {
	CreatorID uuid.UUID
	Type      string
	Name      string
	Avatar    string
	MemberIDs []uuid.UUID
}

// ConversationView is a conversation as listed for one member.
type ConversationView struct {
	Conversation  conversation.Conversation
	LatestMessage *message.Message
}

// Create starts a conversation. A private conversation has exactly one
// other participant and is reused if one already exists between the two;
// the bool result reports whether a new one was created.
func (s *ConversationService) Create(ctx context.Context, in CreateConversationInput) (conversation.Conversation, bool, error) {
	if in.CreatorID == uuid.Nil || !conversation.ValidType(in.Type) {
		return conversation.Conversation{}, false, shopdesk_errors.ErrInvalidInput
	}
	others := uniqueExcept(in.MemberIDs, in.CreatorID)

	now := s.now()
	c := conversation.Conversation{
		ID:        uuid.New(),
		Type:      in.Type,
		Avatar:    in.Avatar,
		CreatedBy: in.CreatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch in.Type {
	case conversation.TypePrivate:
		if len(others) != 1 {
			return conversation.Conversation{}, false, shopdesk_errors.ErrInvalidInput
		}
		existing, err := s.store.Conversations().GetPrivateBetween(ctx, in.CreatorID, others[0])
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, shopdesk_errors.ErrNotFound) {
			return conversation.Conversation{}, false, err
		}
		c.Members = []conversation.Member{
			{UserID: in.CreatorID, Role: conversation.RoleMember, JoinedAt: now},
			{UserID: others[0], Role: conversation.RoleMember, JoinedAt: now},
		}
	case conversation.TypeGroup:
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return conversation.Conversation{}, false, shopdesk_errors.ErrInvalidInput
		}
		c.Name = &name
		c.Members = append(c.Members, conversation.Member{UserID: in.CreatorID, Role: conversation.RoleAdmin, JoinedAt: now})
		for _, id := range others {
			c.Members = append(c.Members, conversation.Member{UserID: id, Role: conversation.RoleMember, JoinedAt: now})
		}
	}
	for i := range c.Members {
		c.Members[i].ConversationID = c.ID
	}

	if err := s.store.Conversations().Create(ctx, &c); err != nil {
		return conversation.Conversation{}, false, err
	}
	return c, true, nil
}

func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]ConversationView, int64, error) {
	list, total, err := s.store.Conversations().ListForUser(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	views := make([]ConversationView, 0, len(list))
	for _, c := range list {
		view := ConversationView{Conversation: c}
		if c.LatestMessageID != nil {
			latest, err := s.store.Messages().GetByID(ctx, *c.LatestMessageID)
			if err == nil && !latest.IsDeleted() {
				view.LatestMessage = &latest
			}
		}
		views = append(views, view)
	}
	return views, total, nil
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Conversation, error) {
	ok, err := s.members.IsMember(ctx, conversationID, userID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !ok {
		return conversation.Conversation{}, shopdesk_errors.ErrForbidden
	}
	return s.store.Conversations().GetByID(ctx, conversationID)
}

// AddMembers adds users to a group. Only admins may add; users who are
// already members are skipped.
func (s *ConversationService) AddMembers(ctx context.Context, conversationID, actorID uuid.UUID, userIDs []uuid.UUID) ([]conversation.Member, error) {
	c, err := s.store.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.IsGroup() || len(userIDs) == 0 {
		return nil, shopdesk_errors.ErrInvalidInput
	}
	admin, err := s.members.IsAdmin(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, shopdesk_errors.ErrForbidden
	}

	var added []conversation.Member
	for _, id := range uniqueExcept(userIDs, uuid.Nil) {
		m, err := s.members.AddMember(ctx, conversationID, id, conversation.RoleMember)
		if errors.Is(err, shopdesk_errors.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return added, err
		}
		added = append(added, m)
	}
	return added, nil
}

// RemoveMember kicks a member (admins only) or leaves (actor == user).
func (s *ConversationService) RemoveMember(ctx context.Context, conversationID, actorID, userID uuid.UUID) error {
	if actorID != userID {
		admin, err := s.members.IsAdmin(ctx, conversationID, actorID)
		if err != nil {
			return err
		}
		if !admin {
			return shopdesk_errors.ErrForbidden
		}
	}
	return s.members.RemoveMember(ctx, conversationID, userID)
}

// UpdateSettings changes the caller's mute and pin flags.
func (s *ConversationService) UpdateSettings(ctx context.Context, conversationID, userID uuid.UUID, muted, pinned *bool) error {
	err := s.members.UpdateReadState(ctx, conversationID, userID, conversation.ReadState{IsMuted: muted, IsPinned: pinned})
	if errors.Is(err, shopdesk_errors.ErrNotFound) {
		return shopdesk_errors.ErrForbidden
	}
	return err
}

func uniqueExcept(ids []uuid.UUID, except uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == except || id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
