package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"shopdesk-realtime/internal/channels"
	"shopdesk-realtime/internal/domain/guest"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/repository"
	"shopdesk-realtime/internal/repository/memory"
	shopdesk_errors "shopdesk-realtime/pkg/errors"
	"shopdesk-realtime/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newGuestBridge(t *testing.T, f *fixture) (*GuestBridge, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := NewGuestBridge(f.store, f.members, f.dispatcher, GuestConfig{
		DeskUserID:  f.desk.ID,
		IdleTimeout: 30 * time.Minute,
	}, logger.NewNop())
	b.now = clock.now
	return b, clock
}

func TestGuestChatScenario(t *testing.T) {
	f := newFixture(t)
	b, _ := newGuestBridge(t, f)

	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)
	require.NotEmpty(t, start.Token)
	require.NotEqual(t, uuid.Nil, start.ConversationID)

	msg, err := b.SendMessage(f.ctx, start.Token, "hello", nil)
	require.NoError(t, err)
	require.Equal(t, start.ConversationID, msg.ConversationID)
	require.Equal(t, uuid.Nil, msg.SenderID)

	msgs, err := b.GetMessages(f.ctx, start.Token)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", *msgs[0].Content)

	started := f.pub.framesFor(events.EventGuestChatStarted)
	require.Len(t, started, 1)
	require.Equal(t, channels.StaffGuests, started[0].channel)
	var payload events.GuestChatStartedPayload
	require.NoError(t, json.Unmarshal(started[0].envelope.Data, &payload))
	require.Equal(t, "Mai", payload.GuestName)
	require.Equal(t, "hello", payload.FirstMessage)
	require.Equal(t, start.ConversationID, payload.ConversationID)

	require.ElementsMatch(t, []string{
		channels.Conversation(start.ConversationID),
		channels.User(f.desk.ID),
	}, f.pub.channelsFor(events.EventMessageSent))
	var sent events.MessagePayload
	require.NoError(t, json.Unmarshal(f.pub.framesFor(events.EventMessageSent)[0].envelope.Data, &sent))
	require.Equal(t, "Mai", sent.Sender.Name)

	_, err = b.SendMessage(f.ctx, start.Token, "anyone there?", nil)
	require.NoError(t, err)
	require.Len(t, f.pub.framesFor(events.EventGuestChatStarted), 1)

	_, err = b.AssignStaff(f.ctx, start.Token, f.staff.ID)
	require.NoError(t, err)

	info, err := b.GetSessionInfo(f.ctx, start.Token)
	require.NoError(t, err)
	require.NotNil(t, info.AssignedStaff)
	require.Equal(t, f.staff.ID, info.AssignedStaff.ID)
	require.Equal(t, "Sam", info.AssignedStaff.Name)
	require.Equal(t, 2, info.MessageCount)

	require.ElementsMatch(t, []string{
		channels.Conversation(start.ConversationID),
		channels.StaffGuests,
	}, f.pub.channelsFor(events.EventGuestChatAssigned))

	ok, err := f.members.IsMember(f.ctx, start.ConversationID, f.staff.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// The assigned staff member now receives guest messages on their own channel.
	f.pub.reset()
	_, err = b.SendMessage(f.ctx, start.Token, "thanks", nil)
	require.NoError(t, err)
	require.Contains(t, f.pub.channelsFor(events.EventMessageSent), channels.User(f.staff.ID))
}

func TestGuestTokenIsOpaque(t *testing.T) {
	f := newFixture(t)
	b, _ := newGuestBridge(t, f)

	a, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)
	c, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)

	require.Len(t, a.Token, 64)
	require.NotEqual(t, a.Token, c.Token)
	require.NotEqual(t, a.ConversationID, c.ConversationID)

	_, err = f.store.GuestSessions().GetByTokenHash(f.ctx, a.Token)
	isErr(t, err, shopdesk_errors.ErrNotFound)
	s, err := f.store.GuestSessions().GetByTokenHash(f.ctx, hashGuestToken(a.Token))
	require.NoError(t, err)
	require.NotContains(t, s.TokenHash, a.Token)
}

func TestGuestInvalidInputAndUnknownToken(t *testing.T) {
	f := newFixture(t)
	b, _ := newGuestBridge(t, f)

	_, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "fax"})
	isErr(t, err, shopdesk_errors.ErrInvalidInput)
	_, err = b.StartSession(f.ctx, StartGuestInput{Name: " ", Contact: "mai@x.com", ContactType: "email"})
	isErr(t, err, shopdesk_errors.ErrInvalidInput)

	_, err = b.SendMessage(f.ctx, "deadbeef", "hello", nil)
	isErr(t, err, shopdesk_errors.ErrNotFound)
	_, err = b.GetMessages(f.ctx, "")
	isErr(t, err, shopdesk_errors.ErrNotFound)
	_, err = b.GetSessionStatus(f.ctx, "deadbeef")
	isErr(t, err, shopdesk_errors.ErrNotFound)

	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "0900", ContactType: "phone"})
	require.NoError(t, err)
	_, err = b.SendMessage(f.ctx, start.Token, "   ", nil)
	isErr(t, err, shopdesk_errors.ErrInvalidInput)
	_, err = b.AssignStaff(f.ctx, start.Token, f.alice.ID)
	isErr(t, err, shopdesk_errors.ErrForbidden)
}

func TestGuestEndSession(t *testing.T) {
	f := newFixture(t)
	b, _ := newGuestBridge(t, f)
	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)

	require.NoError(t, b.EndSession(f.ctx, start.Token))

	_, err = b.SendMessage(f.ctx, start.Token, "hello?", nil)
	isErr(t, err, shopdesk_errors.ErrNotFound)
	_, err = b.GetSessionInfo(f.ctx, start.Token)
	isErr(t, err, shopdesk_errors.ErrNotFound)
	isErr(t, b.EndSession(f.ctx, start.Token), shopdesk_errors.ErrNotFound)

	status, err := b.GetSessionStatus(f.ctx, start.Token)
	require.NoError(t, err)
	require.Equal(t, guest.StatusClosed, status.Status)

	closed := f.pub.framesFor(events.EventGuestChatClosed)
	require.Len(t, closed, 2)
	var payload events.GuestChatClosedPayload
	require.NoError(t, json.Unmarshal(closed[0].envelope.Data, &payload))
	require.Equal(t, CloseReasonEnded, payload.Reason)
}

func TestGuestIdleSessionsExpire(t *testing.T) {
	f := newFixture(t)
	b, clock := newGuestBridge(t, f)

	idle, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)
	clock.advance(20 * time.Minute)
	active, err := b.StartSession(f.ctx, StartGuestInput{Name: "Lan", Contact: "lan@x.com", ContactType: "email"})
	require.NoError(t, err)
	clock.advance(15 * time.Minute)

	// Past the timeout the token is dead even before the sweeper runs.
	_, err = b.GetMessages(f.ctx, idle.Token)
	isErr(t, err, shopdesk_errors.ErrNotFound)
	status, err := b.GetSessionStatus(f.ctx, idle.Token)
	require.NoError(t, err)
	require.Equal(t, guest.StatusClosed, status.Status)

	n, err := b.CloseIdle(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = b.SendMessage(f.ctx, active.Token, "still here", nil)
	require.NoError(t, err)

	n, err = b.CloseIdle(f.ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestGuestAssignBySessionID(t *testing.T) {
	f := newFixture(t)
	b, clock := newGuestBridge(t, f)

	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "0901", ContactType: "phone"})
	require.NoError(t, err)

	_, err = b.AssignStaffToSession(f.ctx, start.SessionID, f.alice.ID)
	require.ErrorIs(t, err, shopdesk_errors.ErrForbidden)

	info, err := b.AssignStaffToSession(f.ctx, start.SessionID, f.staff.ID)
	require.NoError(t, err)
	require.Equal(t, start.ConversationID, info.ConversationID)
	require.Equal(t, f.staff.ID, info.AssignedStaff.ID)

	_, err = b.AssignStaffToSession(f.ctx, uuid.New(), f.staff.ID)
	require.ErrorIs(t, err, shopdesk_errors.ErrNotFound)

	clock.advance(31 * time.Minute)
	_, err = b.AssignStaffToSession(f.ctx, start.SessionID, f.staff.ID)
	require.ErrorIs(t, err, shopdesk_errors.ErrNotFound)
}

func TestStaffRepliesKeepGuestSessionAlive(t *testing.T) {
	f := newFixture(t)
	b, clock := newGuestBridge(t, f)
	f.messages.now = clock.now

	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)
	_, err = b.SendMessage(f.ctx, start.Token, "hello", nil)
	require.NoError(t, err)
	_, err = b.AssignStaff(f.ctx, start.Token, f.staff.ID)
	require.NoError(t, err)

	clock.advance(25 * time.Minute)
	reply := "how can I help?"
	_, err = f.messages.Send(f.ctx, SendMessageInput{ConversationID: start.ConversationID, SenderID: f.staff.ID, Content: &reply})
	require.NoError(t, err)

	clock.advance(10 * time.Minute)
	msgs, err := b.GetMessages(f.ctx, start.Token)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	n, err := b.CloseIdle(f.ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, f.pub.framesFor(events.EventGuestChatClosed))
}

func TestConcurrentFirstGuestMessagesAnnounceOnce(t *testing.T) {
	f := newFixture(t)
	b, _ := newGuestBridge(t, f)
	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)

	const senders = 8
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.SendMessage(f.ctx, start.Token, "hi", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, f.pub.framesFor(events.EventGuestChatStarted), 1)
	info, err := b.GetSessionInfo(f.ctx, start.Token)
	require.NoError(t, err)
	require.Equal(t, senders, info.MessageCount)
}

func TestIdleCloseSkipsSessionActiveSinceListing(t *testing.T) {
	f := newFixture(t)
	b, clock := newGuestBridge(t, f)
	f.messages.now = clock.now

	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)
	_, err = b.AssignStaffToSession(f.ctx, start.SessionID, f.staff.ID)
	require.NoError(t, err)

	clock.advance(31 * time.Minute)
	cutoff := clock.now().Add(-b.cfg.IdleTimeout)
	listed, err := f.store.GuestSessions().ListIdle(f.ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	reply := "still with you"
	_, err = f.messages.Send(f.ctx, SendMessageInput{ConversationID: start.ConversationID, SenderID: f.staff.ID, Content: &reply})
	require.NoError(t, err)

	isErr(t, b.close(f.ctx, listed[0], CloseReasonIdle, cutoff), shopdesk_errors.ErrNotFound)
	s, err := f.store.GuestSessions().GetByID(f.ctx, start.SessionID)
	require.NoError(t, err)
	require.Equal(t, guest.StatusOpen, s.Status)
	require.Empty(t, f.pub.framesFor(events.EventGuestChatClosed))
}

// brokenGuestStore fails the session bookkeeping that follows a guest
// message insert.
type brokenGuestStore struct {
	*memory.Store
}

type brokenGuestSessions struct {
	repository.GuestSessionRepository
}

func (brokenGuestSessions) RecordMessage(context.Context, uuid.UUID, time.Time) (int, error) {
	return 0, errors.New("connection reset")
}

func (s brokenGuestStore) GuestSessions() repository.GuestSessionRepository {
	return brokenGuestSessions{s.Store.GuestSessions()}
}

func (s brokenGuestStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(repository.Store) error { return fn(s) })
}

func TestGuestMessageRolledBackWhenBookkeepingFails(t *testing.T) {
	f := newFixture(t)
	b := NewGuestBridge(brokenGuestStore{f.store}, f.members, f.dispatcher, GuestConfig{
		DeskUserID:  f.desk.ID,
		IdleTimeout: 30 * time.Minute,
	}, logger.NewNop())

	start, err := b.StartSession(f.ctx, StartGuestInput{Name: "Mai", Contact: "mai@x.com", ContactType: "email"})
	require.NoError(t, err)

	_, err = b.SendMessage(f.ctx, start.Token, "hello", nil)
	require.Error(t, err)

	msgs, err := f.store.Messages().ListByConversation(f.ctx, start.ConversationID, nil, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
	conv, err := f.store.Conversations().GetByID(f.ctx, start.ConversationID)
	require.NoError(t, err)
	require.Nil(t, conv.LatestMessageID)
	require.Empty(t, f.pub.framesFor(events.EventMessageSent))
}
