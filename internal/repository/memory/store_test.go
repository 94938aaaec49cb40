package memory

import (
	"context"
	"testing"
	"time"

	"shopdesk-realtime/internal/domain/conversation"
	"shopdesk-realtime/internal/domain/guest"
	"shopdesk-realtime/internal/domain/message"
	"shopdesk-realtime/internal/domain/social"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/repository"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func privateBetween(a, b uuid.UUID) conversation.Conversation {
	return conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypePrivate,
		CreatedBy: a,
		Members:   []conversation.Member{{UserID: a, Role: conversation.RoleAdmin}, {UserID: b, Role: conversation.RoleMember}},
	}
}

func TestConversationMembership(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	c := privateBetween(alice, bob)
	require.NoError(t, s.Conversations().Create(ctx, &c))
	assert.ErrorIs(t, s.Conversations().Create(ctx, &c), shopdesk_errors.ErrAlreadyExists)

	found, err := s.Conversations().GetPrivateBetween(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	assert.Len(t, found.Members, 2)

	_, err = s.Conversations().GetPrivateBetween(ctx, alice, carol)
	assert.ErrorIs(t, err, shopdesk_errors.ErrNotFound)

	require.NoError(t, s.Conversations().AddMember(ctx, &conversation.Member{ConversationID: c.ID, UserID: carol}))
	assert.ErrorIs(t, s.Conversations().AddMember(ctx, &conversation.Member{ConversationID: c.ID, UserID: carol}), shopdesk_errors.ErrAlreadyExists)
	ids, err := s.Conversations().ListMemberIDs(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob, carol}, ids)

	require.NoError(t, s.Conversations().RemoveMember(ctx, c.ID, carol))
	ok, err := s.Conversations().IsMember(ctx, c.ID, carol)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Conversations().RemoveMember(ctx, c.ID, carol), shopdesk_errors.ErrNotFound)

	muted := true
	require.NoError(t, s.Conversations().UpdateReadState(ctx, c.ID, bob, conversation.ReadState{IsMuted: &muted}))
	m, err := s.Conversations().GetMember(ctx, c.ID, bob)
	require.NoError(t, err)
	assert.True(t, m.IsMuted)
	assert.ErrorIs(t, s.Conversations().UpdateReadState(ctx, c.ID, bob, conversation.ReadState{}), shopdesk_errors.ErrInvalidInput)
}

func TestListForUserPaging(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	alice := uuid.New()
	for i := 0; i < 5; i++ {
		c := privateBetween(alice, uuid.New())
		c.UpdatedAt = time.Unix(int64(i), 0)
		require.NoError(t, s.Conversations().Create(ctx, &c))
	}

	list, total, err := s.Conversations().ListForUser(ctx, alice, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, list, 2)
	assert.Equal(t, time.Unix(2, 0), list[0].UpdatedAt)

	list, _, err = s.Conversations().ListForUser(ctx, alice, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMessagesCursorAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	conv := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		m := message.Message{ID: uuid.New(), ConversationID: conv, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Messages().Create(ctx, &m))
		ids = append(ids, m.ID)
	}
	reply := message.Message{ID: uuid.New(), ConversationID: conv, ReplyToID: &ids[0], CreatedAt: base.Add(time.Hour)}
	require.NoError(t, s.Messages().Create(ctx, &reply))

	got, err := s.Messages().GetByID(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReplyTo)
	assert.Equal(t, ids[0], got.ReplyTo.ID)

	before := base.Add(3 * time.Minute)
	page, err := s.Messages().ListByConversation(ctx, conv, &before, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	require.NoError(t, s.Messages().SoftDelete(ctx, ids[1], time.Now()))
	assert.ErrorIs(t, s.Messages().SoftDelete(ctx, ids[1], time.Now()), shopdesk_errors.ErrNotFound)
	all, err := s.Messages().ListByConversation(ctx, conv, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestFriendshipPairIsUnordered(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, b := uuid.New(), uuid.New()

	f := social.Friendship{ID: uuid.New(), RequesterID: a, AddresseeID: b, Status: social.FriendshipPending}
	require.NoError(t, s.Friendships().Create(ctx, &f))
	reverse := social.Friendship{ID: uuid.New(), RequesterID: b, AddresseeID: a, Status: social.FriendshipPending}
	assert.ErrorIs(t, s.Friendships().Create(ctx, &reverse), shopdesk_errors.ErrAlreadyExists)

	got, err := s.Friendships().GetBetween(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	accepted, err := s.Friendships().ListForUser(ctx, a, social.FriendshipAccepted)
	require.NoError(t, err)
	assert.Empty(t, accepted)
}

func TestNotificationsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	owner, other := uuid.New(), uuid.New()
	n := social.Notification{ID: uuid.New(), UserID: owner, CreatedAt: time.Now()}
	require.NoError(t, s.Notifications().Create(ctx, &n))

	assert.ErrorIs(t, s.Notifications().MarkRead(ctx, n.ID, other, time.Now()), shopdesk_errors.ErrNotFound)
	assert.ErrorIs(t, s.Notifications().Delete(ctx, n.ID, other), shopdesk_errors.ErrNotFound)

	count, err := s.Notifications().UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.NoError(t, s.Notifications().MarkRead(ctx, n.ID, owner, time.Now()))
	count, err = s.Notifications().UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGuestSessionsIdleOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	mk := func(hash string, last time.Time, status string) guest.Session {
		g := guest.Session{ID: uuid.New(), TokenHash: hash, Status: status, LastActivityAt: last}
		require.NoError(t, s.GuestSessions().Create(ctx, &g))
		return g
	}
	newer := mk("h1", base.Add(-10*time.Minute), guest.StatusOpen)
	older := mk("h2", base.Add(-40*time.Minute), guest.StatusOpen)
	mk("h3", base.Add(-50*time.Minute), guest.StatusClosed)
	mk("h4", base, guest.StatusOpen)

	dup := guest.Session{ID: uuid.New(), TokenHash: "h1"}
	assert.ErrorIs(t, s.GuestSessions().Create(ctx, &dup), shopdesk_errors.ErrAlreadyExists)

	idle, err := s.GuestSessions().ListIdle(ctx, base.Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, idle, 2)
	assert.Equal(t, older.ID, idle[0].ID)
	assert.Equal(t, newer.ID, idle[1].ID)

	byHash, err := s.GuestSessions().GetByTokenHash(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, older.ID, byHash.ID)
	byID, err := s.GuestSessions().GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "h1", byID.TokenHash)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := user.Profile{ID: uuid.New(), Name: "Lan", Staff: true}
	s.PutProfile(p)

	got, err := s.Users().GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.Users().GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, shopdesk_errors.ErrNotFound)

	many, err := s.Users().GetProfiles(ctx, []uuid.UUID{p.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}

func TestWithinTxRestoresOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, b := uuid.New(), uuid.New()
	kept := privateBetween(a, b)
	require.NoError(t, s.Conversations().Create(ctx, &kept))

	orphan := privateBetween(a, uuid.New())
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Conversations().Create(ctx, &orphan); err != nil {
			return err
		}
		return tx.GuestSessions().Create(ctx, &guest.Session{ID: uuid.New(), TokenHash: "x"})
	})
	require.NoError(t, err)

	second := privateBetween(b, uuid.New())
	err = s.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Conversations().Create(ctx, &second); err != nil {
			return err
		}
		return tx.GuestSessions().Create(ctx, &guest.Session{ID: uuid.New(), TokenHash: "x"})
	})
	assert.ErrorIs(t, err, shopdesk_errors.ErrAlreadyExists)

	_, err = s.Conversations().GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, shopdesk_errors.ErrNotFound)
	_, err = s.Conversations().GetByID(ctx, orphan.ID)
	assert.NoError(t, err)
	ok, err := s.Conversations().IsMember(ctx, second.ID, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuestSessionConditionalWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	conv := uuid.New()
	g := guest.Session{ID: uuid.New(), TokenHash: "h", ConversationID: conv, Status: guest.StatusOpen, LastActivityAt: base}
	require.NoError(t, s.GuestSessions().Create(ctx, &g))

	n, err := s.GuestSessions().RecordMessage(ctx, g.ID, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.GuestSessions().RecordMessage(ctx, g.ID, base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.GuestSessions().TouchByConversation(ctx, conv, base.Add(10*time.Minute)))
	require.NoError(t, s.GuestSessions().TouchByConversation(ctx, uuid.New(), base.Add(time.Hour)))
	got, err := s.GuestSessions().GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, base.Add(10*time.Minute), got.LastActivityAt)

	// Active after the sweeper's cutoff: the idle close must not apply.
	err = s.GuestSessions().Close(ctx, g.ID, base.Add(time.Hour), base.Add(5*time.Minute))
	assert.ErrorIs(t, err, shopdesk_errors.ErrNotFound)
	require.NoError(t, s.GuestSessions().Close(ctx, g.ID, base.Add(time.Hour), time.Time{}))

	got, err = s.GuestSessions().GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, guest.StatusClosed, got.Status)
	assert.Equal(t, 2, got.MessageCount)

	_, err = s.GuestSessions().RecordMessage(ctx, g.ID, base.Add(2*time.Hour))
	assert.ErrorIs(t, err, shopdesk_errors.ErrNotFound)
	assert.ErrorIs(t, s.GuestSessions().AssignStaff(ctx, g.ID, uuid.New(), base), shopdesk_errors.ErrNotFound)
	assert.ErrorIs(t, s.GuestSessions().Close(ctx, g.ID, base, time.Time{}), shopdesk_errors.ErrNotFound)
}
