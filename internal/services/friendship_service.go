package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"shopdesk-realtime/internal/domain/social"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/repository"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

const NotificationFriendRequest = "friend_request"

type FriendshipService struct {
	store      repository.Store
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewFriendshipService(store repository.Store, dispatcher *Dispatcher) *FriendshipService {
	return &FriendshipService{store: store, dispatcher: dispatcher, now: time.Now}
}

// SendRequest stores a pending friendship and a notification for the
// addressee, then pushes friend.request to the addressee's channel.
func (s *FriendshipService) SendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (social.Friendship, error) {
	if requesterID == uuid.Nil || addresseeID == uuid.Nil || requesterID == addresseeID {
		return social.Friendship{}, shopdesk_errors.ErrInvalidInput
	}
	requester, err := s.store.Users().GetProfile(ctx, requesterID)
	if err != nil {
		return social.Friendship{}, err
	}
	if _, err := s.store.Users().GetProfile(ctx, addresseeID); err != nil {
		return social.Friendship{}, err
	}

	existing, err := s.store.Friendships().GetBetween(ctx, requesterID, addresseeID)
	switch {
	case err == nil && existing.Status == social.FriendshipBlocked:
		return social.Friendship{}, shopdesk_errors.ErrForbidden
	case err == nil:
		return social.Friendship{}, shopdesk_errors.ErrAlreadyExists
	case !errors.Is(err, shopdesk_errors.ErrNotFound):
		return social.Friendship{}, err
	}

	now := s.now()
	f := social.Friendship{
		ID:          uuid.New(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      social.FriendshipPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload := events.FriendRequestPayload{
		FriendshipID: f.ID,
		From:         profilePayload(requester),
		Status:       f.Status,
		CreatedAt:    now,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return social.Friendship{}, err
	}
	n := social.Notification{
		ID:          uuid.New(),
		UserID:      addresseeID,
		Type:        NotificationFriendRequest,
		SubjectType: "friendship",
		SubjectID:   f.ID,
		Data:        data,
		CreatedAt:   now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Friendships().Create(ctx, &f); err != nil {
			return err
		}
		return tx.Notifications().Create(ctx, &n)
	})
	if err != nil {
		return social.Friendship{}, err
	}

	s.dispatcher.DispatchToUser(ctx, addresseeID, events.EventFriendRequest, payload)
	s.dispatcher.Record(ctx, events.RecordFriendship, f.ID.String(), f)
	s.dispatcher.Record(ctx, events.RecordNotification, addresseeID.String(), n)
	return f, nil
}

func (s *FriendshipService) Accept(ctx context.Context, friendshipID, userID uuid.UUID) (social.Friendship, error) {
	f, err := s.pendingFor(ctx, friendshipID, userID, func(f social.Friendship) bool { return f.AddresseeID == userID })
	if err != nil {
		return social.Friendship{}, err
	}
	f.Status = social.FriendshipAccepted
	f.UpdatedAt = s.now()
	if err := s.store.Friendships().Update(ctx, f); err != nil {
		return social.Friendship{}, err
	}
	s.dispatcher.Record(ctx, events.RecordFriendship, f.ID.String(), f)
	return f, nil
}

func (s *FriendshipService) Reject(ctx context.Context, friendshipID, userID uuid.UUID) error {
	f, err := s.pendingFor(ctx, friendshipID, userID, func(f social.Friendship) bool { return f.AddresseeID == userID })
	if err != nil {
		return err
	}
	return s.store.Friendships().Delete(ctx, f.ID)
}

func (s *FriendshipService) Cancel(ctx context.Context, friendshipID, userID uuid.UUID) error {
	f, err := s.pendingFor(ctx, friendshipID, userID, func(f social.Friendship) bool { return f.RequesterID == userID })
	if err != nil {
		return err
	}
	return s.store.Friendships().Delete(ctx, f.ID)
}

func (s *FriendshipService) Unfriend(ctx context.Context, userID, otherID uuid.UUID) error {
	f, err := s.store.Friendships().GetBetween(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if f.Status != social.FriendshipAccepted {
		return shopdesk_errors.ErrNotFound
	}
	return s.store.Friendships().Delete(ctx, f.ID)
}

// Block records userID as the blocking side, replacing any pending or
// accepted relation between the two.
func (s *FriendshipService) Block(ctx context.Context, userID, otherID uuid.UUID) (social.Friendship, error) {
	if userID == otherID || otherID == uuid.Nil {
		return social.Friendship{}, shopdesk_errors.ErrInvalidInput
	}
	now := s.now()
	f, err := s.store.Friendships().GetBetween(ctx, userID, otherID)
	if errors.Is(err, shopdesk_errors.ErrNotFound) {
		f = social.Friendship{
			ID:          uuid.New(),
			RequesterID: userID,
			AddresseeID: otherID,
			Status:      social.FriendshipBlocked,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Friendships().Create(ctx, &f); err != nil {
			return social.Friendship{}, err
		}
		return f, nil
	}
	if err != nil {
		return social.Friendship{}, err
	}
	if f.Status == social.FriendshipBlocked && f.RequesterID != userID {
		return social.Friendship{}, shopdesk_errors.ErrForbidden
	}
	f.RequesterID = userID
	f.AddresseeID = otherID
	f.Status = social.FriendshipBlocked
	f.UpdatedAt = now
	if err := s.store.Friendships().Update(ctx, f); err != nil {
		return social.Friendship{}, err
	}
	return f, nil
}

func (s *FriendshipService) List(ctx context.Context, userID uuid.UUID, status string) ([]social.Friendship, error) {
	return s.store.Friendships().ListForUser(ctx, userID, status)
}

// pendingFor loads a pending request the caller may act on. Requests the
// caller is not part of read as missing.
func (s *FriendshipService) pendingFor(ctx context.Context, id, userID uuid.UUID, allowed func(social.Friendship) bool) (social.Friendship, error) {
	f, err := s.store.Friendships().GetByID(ctx, id)
	if err != nil {
		return social.Friendship{}, err
	}
	if !f.Involves(userID) {
		return social.Friendship{}, shopdesk_errors.ErrNotFound
	}
	if !allowed(f) {
		return social.Friendship{}, shopdesk_errors.ErrForbidden
	}
	if f.Status != social.FriendshipPending {
		return social.Friendship{}, shopdesk_errors.ErrConflict
	}
	return f, nil
}
