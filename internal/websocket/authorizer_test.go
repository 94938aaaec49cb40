package websocket

import (
	"context"
	"errors"
	"testing"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/repository/memory"
	"shopdesk-realtime/internal/services"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	ctx     context.Context
	members *services.MembershipStore
	gateway *Gateway
	conv    conversation.Conversation
	alice   user.Profile
	bob     user.Profile
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	store := memory.NewStore()
	f := &gatewayFixture{
		ctx:   context.Background(),
		alice: user.Profile{ID: uuid.New(), Name: "Alice", Avatar: "a.png"},
		bob:   user.Profile{ID: uuid.New(), Name: "Bob"},
	}
	f.conv = conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeGroup,
		CreatedBy: f.bob.ID,
		Members: []conversation.Member{
			{UserID: f.bob.ID, Role: conversation.RoleAdmin},
			{UserID: f.alice.ID, Role: conversation.RoleMember},
		},
	}
	require.NoError(t, store.Conversations().Create(f.ctx, &f.conv))
	f.members = services.NewMembershipStore(store.Conversations())
	f.gateway = NewGateway(f.members)
	return f
}

func TestAuthorizeUnknownChannelsForbidden(t *testing.T) {
	f := newGatewayFixture(t)
	for _, name := range []string{
		"",
		"orders.1",
		"private-orders.1",
		"user.",
		"user.not-a-uuid",
		"conversation.42",
		"presence-user",
		"presence.user." + f.alice.ID.String(),
		"App.Models.Order." + f.alice.ID.String(),
		"staff.guests.extra",
		"presence-conversation." + f.conv.ID.String(),
		"private-presence.conversation." + f.conv.ID.String(),
	} {
		_, err := f.gateway.Authorize(f.ctx, &f.alice, name)
		assert.True(t, errors.Is(err, shopdesk_errors.ErrForbidden), "channel %q: %v", name, err)
	}
}

func TestAuthorizeRequiresIdentity(t *testing.T) {
	f := newGatewayFixture(t)
	_, err := f.gateway.Authorize(f.ctx, nil, "user."+f.alice.ID.String())
	assert.True(t, errors.Is(err, shopdesk_errors.ErrUnauthorized))
}

func TestAuthorizeUserChannels(t *testing.T) {
	f := newGatewayFixture(t)

	for _, name := range []string{
		"user." + f.alice.ID.String(),
		"private-user." + f.alice.ID.String(),
		"App.Models.User." + f.alice.ID.String(),
		"private-App.Models.User." + f.alice.ID.String(),
	} {
		auth, err := f.gateway.Authorize(f.ctx, &f.alice, name)
		require.NoError(t, err, name)
		assert.Equal(t, "user."+f.alice.ID.String(), auth.Channel)
		assert.Nil(t, auth.Presence)
	}

	_, err := f.gateway.Authorize(f.ctx, &f.bob, "App.Models.User."+f.alice.ID.String())
	assert.True(t, errors.Is(err, shopdesk_errors.ErrForbidden))
}

func TestAuthorizeConversationAndPresence(t *testing.T) {
	f := newGatewayFixture(t)
	outsider := user.Profile{ID: uuid.New(), Name: "Eve"}

	auth, err := f.gateway.Authorize(f.ctx, &f.alice, "private-conversation."+f.conv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "conversation."+f.conv.ID.String(), auth.Channel)
	assert.Nil(t, auth.Presence)

	auth, err = f.gateway.Authorize(f.ctx, &f.alice, "presence-presence.conversation."+f.conv.ID.String())
	require.NoError(t, err)
	require.NotNil(t, auth.Presence)
	assert.Equal(t, f.alice.ID, auth.Presence.ID)
	assert.Equal(t, "Alice", auth.Presence.Name)
	assert.Equal(t, "a.png", auth.Presence.Avatar)

	_, err = f.gateway.Authorize(f.ctx, &outsider, "conversation."+f.conv.ID.String())
	assert.True(t, errors.Is(err, shopdesk_errors.ErrForbidden))
	_, err = f.gateway.Authorize(f.ctx, &f.alice, "conversation."+uuid.NewString())
	assert.True(t, errors.Is(err, shopdesk_errors.ErrForbidden))
}

func TestAuthorizeRevokedMembershipFlipsImmediately(t *testing.T) {
	f := newGatewayFixture(t)
	channel := "presence.conversation." + f.conv.ID.String()

	_, err := f.gateway.Authorize(f.ctx, &f.alice, channel)
	require.NoError(t, err)

	require.NoError(t, f.members.RemoveMember(f.ctx, f.conv.ID, f.alice.ID))

	_, err = f.gateway.Authorize(f.ctx, &f.alice, channel)
	assert.True(t, errors.Is(err, shopdesk_errors.ErrForbidden))

	_, err = f.members.AddMember(f.ctx, f.conv.ID, f.alice.ID, "")
	require.NoError(t, err)
	_, err = f.gateway.Authorize(f.ctx, &f.alice, channel)
	assert.NoError(t, err)
}

func TestAuthorizeStaffChannel(t *testing.T) {
	f := newGatewayFixture(t)
	staff := user.Profile{ID: uuid.New(), Name: "Sam", Staff: true}

	auth, err := f.gateway.Authorize(f.ctx, &staff, "private-staff.guests")
	require.NoError(t, err)
	assert.Equal(t, "staff.guests", auth.Channel)

	_, err = f.gateway.Authorize(f.ctx, &f.alice, "staff.guests")
	assert.True(t, errors.Is(err, shopdesk_errors.ErrForbidden))
}
