package services

import (
	"context"

	"shopdesk-realtime/internal/domain/call"
	"shopdesk-realtime/internal/events"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

// CallRelay forwards WebRTC negotiation and call status between peers.
// It keeps no call state and does not check status transitions; receivers
// ignore events that do not fit their local call state.
type CallRelay struct {
	members    *MembershipStore
	dispatcher *Dispatcher
}

func NewCallRelay(members *MembershipStore, dispatcher *Dispatcher) *CallRelay {
	return &CallRelay{members: members, dispatcher: dispatcher}
}

// Signal delivers an offer, answer or ICE candidate to the target peer's
// private channel only. SDP and candidates must not reach other members.
func (r *CallRelay) Signal(ctx context.Context, s call.Signal) error {
	if s.ConversationID == uuid.Nil || s.ToID == uuid.Nil || s.FromID == s.ToID {
		return shopdesk_errors.ErrInvalidInput
	}
	if !call.ValidSignalType(s.Type) || !call.ValidCallType(s.CallType) || len(s.Payload) == 0 {
		return shopdesk_errors.ErrInvalidInput
	}
	if err := r.requireMembers(ctx, s.ConversationID, s.FromID, s.ToID); err != nil {
		return err
	}
	r.dispatcher.DispatchToUser(ctx, s.ToID, events.EventCallSignal, events.CallSignalPayload{
		ConversationID: s.ConversationID,
		FromID:         s.FromID,
		ToID:           s.ToID,
		Type:           s.Type,
		CallType:       s.CallType,
		Payload:        s.Payload,
	})
	return nil
}

// StatusChanged delivers a status to one peer when ToID is set, otherwise
// to the whole conversation.
func (r *CallRelay) StatusChanged(ctx context.Context, s call.StatusChange) error {
	if s.ConversationID == uuid.Nil || !call.ValidStatus(s.Status) || !call.ValidCallType(s.CallType) {
		return shopdesk_errors.ErrInvalidInput
	}
	if s.ToID != nil && (*s.ToID == uuid.Nil || *s.ToID == s.FromID) {
		return shopdesk_errors.ErrInvalidInput
	}
	ids := []uuid.UUID{s.FromID}
	if s.ToID != nil {
		ids = append(ids, *s.ToID)
	}
	if err := r.requireMembers(ctx, s.ConversationID, ids...); err != nil {
		return err
	}

	payload := events.CallStatusPayload{
		ConversationID: s.ConversationID,
		FromID:         s.FromID,
		ToID:           s.ToID,
		Status:         s.Status,
		CallType:       s.CallType,
		Metadata:       s.Metadata,
	}
	if s.ToID != nil {
		r.dispatcher.DispatchToUser(ctx, *s.ToID, events.EventCallStatusChanged, payload)
		return nil
	}
	r.dispatcher.DispatchToConversation(ctx, s.ConversationID, events.EventCallStatusChanged, payload)
	return nil
}

func (r *CallRelay) requireMembers(ctx context.Context, conversationID uuid.UUID, ids ...uuid.UUID) error {
	for _, id := range ids {
		ok, err := r.members.IsMember(ctx, conversationID, id)
		if err != nil {
			return err
		}
		if !ok {
			return shopdesk_errors.ErrForbidden
		}
	}
	return nil
}
