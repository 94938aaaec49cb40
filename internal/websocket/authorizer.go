package websocket

import (
	"context"
	"errors"
	"fmt"

	"shopdesk-realtime/internal/channels"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/metrics"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

// MembershipChecker is satisfied by services.MembershipStore.
type MembershipChecker interface {
	IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

// Authorization is a granted subscription. Channel is the canonical name
// the client is subscribed under; Presence is set for presence channels.
type Authorization struct {
	Channel  string
	Kind     channels.Kind
	Presence *user.Profile
}

// Gateway decides whether an identity may subscribe to a channel. It only
// reads membership and is safe to call on every subscription attempt.
type Gateway struct {
	members MembershipChecker
}

func NewGateway(members MembershipChecker) *Gateway {
	return &Gateway{members: members}
}

// Authorize returns ErrUnauthorized for a missing identity and
// ErrForbidden for unknown channels or failed checks.
func (g *Gateway) Authorize(ctx context.Context, requester *user.Profile, channelName string) (Authorization, error) {
	if requester == nil || requester.ID == uuid.Nil {
		metrics.ChannelAuthTotal.WithLabelValues("none", "unauthenticated").Inc()
		return Authorization{}, shopdesk_errors.ErrUnauthorized
	}
	desc, err := channels.Parse(channelName)
	if err != nil {
		metrics.ChannelAuthTotal.WithLabelValues("unknown", "forbidden").Inc()
		return Authorization{}, fmt.Errorf("%w: %s", shopdesk_errors.ErrForbidden, err)
	}

	allowed, err := g.check(ctx, requester, desc)
	if err != nil {
		metrics.ChannelAuthTotal.WithLabelValues(string(desc.Kind()), "error").Inc()
		return Authorization{}, err
	}
	if !allowed {
		metrics.ChannelAuthTotal.WithLabelValues(string(desc.Kind()), "forbidden").Inc()
		return Authorization{}, shopdesk_errors.ErrForbidden
	}
	metrics.ChannelAuthTotal.WithLabelValues(string(desc.Kind()), "granted").Inc()

	auth := Authorization{Channel: desc.Name(), Kind: desc.Kind()}
	if desc.Kind() == channels.KindPresenceConversation {
		p := *requester
		auth.Presence = &p
	}
	return auth, nil
}

func (g *Gateway) check(ctx context.Context, requester *user.Profile, desc channels.Descriptor) (bool, error) {
	switch ch := desc.(type) {
	case channels.UserChannel:
		return ch.UserID == requester.ID, nil
	case channels.ConversationChannel:
		return g.isMember(ctx, ch.ConversationID, requester.ID)
	case channels.PresenceConversationChannel:
		return g.isMember(ctx, ch.ConversationID, requester.ID)
	case channels.StaffGuestsChannel:
		return requester.Staff, nil
	}
	return false, nil
}

func (g *Gateway) isMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	ok, err := g.members.IsMember(ctx, conversationID, userID)
	if errors.Is(err, shopdesk_errors.ErrNotFound) {
		return false, nil
	}
	return ok, err
}
