package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shopdesk-realtime/config"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/handler"
	"shopdesk-realtime/internal/redis"
	"shopdesk-realtime/internal/repository/memory"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/websocket"
	"shopdesk-realtime/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	server *Server
	http   *httptest.Server
	auth   *services.AuthService

	alice, bob, carol, desk, staff user.Profile
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := &testApp{
		auth:  services.NewAuthService("test-secret", time.Hour),
		alice: user.Profile{ID: uuid.New(), Name: "Alice"},
		bob:   user.Profile{ID: uuid.New(), Name: "Bob"},
		carol: user.Profile{ID: uuid.New(), Name: "Carol"},
		desk:  user.Profile{ID: uuid.New(), Name: "Guest Desk", Staff: true},
		staff: user.Profile{ID: uuid.New(), Name: "Sam", Staff: true},
	}
	store := memory.NewStore()
	for _, p := range []user.Profile{a.alice, a.bob, a.carol, a.desk, a.staff} {
		store.PutProfile(p)
	}

	log := logger.NewNop()
	members := services.NewMembershipStore(store.Conversations())
	dispatcher := services.NewDispatcher(members, store.Users(), redis.NewPublisher(client), events.NopSink{}, log)
	messages := services.NewMessageService(store, members, dispatcher)
	gateway := websocket.NewGateway(members)
	hub := websocket.NewHub()
	go hub.Run(ctx)
	bridge := websocket.NewPushBridge(redis.NewSubscriber(client), hub)
	go func() { _ = bridge.Run(ctx) }()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 1 }, 2*time.Second, 10*time.Millisecond)

	handlers := &Handlers{
		Broadcast:    handler.NewBroadcastHandler(gateway),
		Conversation: handler.NewConversationHandler(services.NewConversationService(store, members), messages, dispatcher),
		Message:      handler.NewMessageHandler(messages, dispatcher),
		Social: handler.NewSocialHandler(
			services.NewFriendshipService(store, dispatcher),
			services.NewNotificationService(store.Notifications()),
		),
		Call: handler.NewCallHandler(services.NewCallRelay(members, dispatcher)),
		Guest: handler.NewGuestHandler(services.NewGuestBridge(store, members, dispatcher, services.GuestConfig{
			DeskUserID:  a.desk.ID,
			IdleTimeout: time.Hour,
		}, log), dispatcher),
		Attachment: handler.NewAttachmentHandler(services.NewAttachmentService(nil)),
		Socket: websocket.NewHandler(gateway, hub, redis.NewPresenceStore(client, time.Minute), dispatcher,
			websocket.HandlerConfig{}, log),
	}
	limiter := redis.NewRateLimiter(client, redis.DefaultRateLimitConfig())

	a.server = New(&config.Config{AppMode: TestMode, AppPort: "0"}, log)
	a.server.SetupRoutes(handlers, a.auth, limiter, nil)
	a.http = httptest.NewServer(a.server.Engine())
	t.Cleanup(a.http.Close)
	return a
}

func (a *testApp) token(t *testing.T, p user.Profile) string {
	t.Helper()
	token, err := a.auth.IssueAccessToken(p)
	require.NoError(t, err)
	return token
}

// do calls the router in-process. as may be nil for unauthenticated calls.
func (a *testApp) do(t *testing.T, method, path string, as *user.Profile, body any, headers ...string) (int, envelope, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, *as))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.server.Engine().ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env, w.Body.Bytes()
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (a *testApp) createGroup(t *testing.T, creator user.Profile, others ...user.Profile) string {
	t.Helper()
	ids := make([]string, 0, len(others))
	for _, o := range others {
		ids = append(ids, o.ID.String())
	}
	status, env, _ := a.do(t, http.MethodPost, "/v1/conversations", &creator, map[string]any{
		"type": "group", "name": "Ops", "member_ids": ids,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	return decode[struct {
		ID string `json:"id"`
	}](t, env.Data).ID
}

func TestPingAndAuthRequired(t *testing.T) {
	a := newTestApp(t)

	status, _, _ := a.do(t, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env, _ := a.do(t, http.MethodGet, "/v1/conversations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestConversationAndMessageRoutes(t *testing.T) {
	a := newTestApp(t)
	convID := a.createGroup(t, a.alice, a.bob)
	base := "/v1/conversations/" + convID

	status, env, _ := a.do(t, http.MethodPost, base+"/messages", &a.alice, map[string]any{"content": "hello"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	sent := decode[events.MessagePayload](t, env.Data)
	assert.Equal(t, "Alice", sent.Sender.Name)

	status, env, _ = a.do(t, http.MethodPost, base+"/messages", &a.carol, map[string]any{"content": "let me in"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)

	status, env, _ = a.do(t, http.MethodPost, base+"/messages", &a.alice, map[string]any{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env, _ = a.do(t, http.MethodGet, base+"/messages", &a.bob, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[struct {
		Messages []events.MessagePayload `json:"messages"`
	}](t, env.Data)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, sent.ID, list.Messages[0].ID)

	status, env, _ = a.do(t, http.MethodGet, "/v1/conversations", &a.bob, nil)
	require.Equal(t, http.StatusOK, status)
	convs := decode[struct {
		Conversations []struct {
			ID            string                 `json:"id"`
			LatestMessage *events.MessagePayload `json:"latest_message"`
		} `json:"conversations"`
		Total int64 `json:"total"`
	}](t, env.Data)
	require.Len(t, convs.Conversations, 1)
	require.NotNil(t, convs.Conversations[0].LatestMessage)
	assert.Equal(t, sent.ID, convs.Conversations[0].LatestMessage.ID)

	msgPath := "/v1/messages/" + sent.ID.String()
	status, _, _ = a.do(t, http.MethodPatch, msgPath, &a.bob, map[string]any{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, status)
	status, env, _ = a.do(t, http.MethodPatch, msgPath, &a.alice, map[string]any{"content": "hello!"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[events.MessagePayload](t, env.Data).IsEdited)

	status, _, _ = a.do(t, http.MethodPost, base+"/read", &a.bob, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = a.do(t, http.MethodPatch, base, &a.bob, map[string]any{"is_muted": true})
	assert.Equal(t, http.StatusOK, status)

	status, _, _ = a.do(t, http.MethodDelete, msgPath, &a.alice, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = a.do(t, http.MethodDelete, msgPath, &a.alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = a.do(t, http.MethodGet, "/v1/conversations/not-a-uuid", &a.alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMemberRoutes(t *testing.T) {
	a := newTestApp(t)
	convID := a.createGroup(t, a.alice, a.bob)
	base := "/v1/conversations/" + convID

	status, _, _ := a.do(t, http.MethodPost, base+"/members", &a.bob, map[string]any{"user_ids": []string{a.carol.ID.String()}})
	assert.Equal(t, http.StatusForbidden, status)

	status, env, _ := a.do(t, http.MethodPost, base+"/members", &a.alice, map[string]any{"user_ids": []string{a.carol.ID.String()}})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, _, _ = a.do(t, http.MethodGet, base, &a.carol, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _, _ = a.do(t, http.MethodDelete, base+"/members/"+a.carol.ID.String(), &a.carol, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _, _ = a.do(t, http.MethodGet, base, &a.carol, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _, _ = a.do(t, http.MethodDelete, base+"/members/"+a.alice.ID.String(), &a.alice, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestBroadcastingAuth(t *testing.T) {
	a := newTestApp(t)
	convID := a.createGroup(t, a.alice, a.bob)

	status, _, body := a.do(t, http.MethodPost, "/v1/broadcasting/auth", &a.alice,
		map[string]string{"channel_name": "private-user." + a.alice.ID.String()})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "true", string(body))

	status, _, body = a.do(t, http.MethodPost, "/v1/broadcasting/auth", &a.bob,
		map[string]string{"channel_name": "presence-presence.conversation." + convID})
	require.Equal(t, http.StatusOK, status)
	var presence struct {
		ChannelData struct {
			UserID   string            `json:"user_id"`
			UserInfo map[string]string `json:"user_info"`
		} `json:"channel_data"`
	}
	require.NoError(t, json.Unmarshal(body, &presence))
	assert.Equal(t, a.bob.ID.String(), presence.ChannelData.UserID)
	assert.Equal(t, "Bob", presence.ChannelData.UserInfo["name"])

	for _, name := range []string{
		"private-user." + a.bob.ID.String(),
		"private-conversation." + uuid.NewString(),
		"private-anything",
	} {
		status, _, _ = a.do(t, http.MethodPost, "/v1/broadcasting/auth", &a.alice, map[string]string{"channel_name": name})
		assert.Equal(t, http.StatusForbidden, status, name)
	}

	status, _, _ = a.do(t, http.MethodPost, "/v1/broadcasting/auth", &a.alice, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _, _ = a.do(t, http.MethodPost, "/v1/broadcasting/auth", nil,
		map[string]string{"channel_name": "private-user." + a.alice.ID.String()})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGuestRoutes(t *testing.T) {
	a := newTestApp(t)

	status, env, _ := a.do(t, http.MethodPost, "/v1/guest/sessions", nil, map[string]string{
		"name": "Mai", "contact": "mai@x.com", "contact_type": "email",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	start := decode[struct {
		Token     string `json:"token"`
		SessionID string `json:"session_id"`
	}](t, env.Data)
	require.NotEmpty(t, start.Token)
	guestHeader := []string{handler.GuestTokenHeader, start.Token}

	status, env, _ = a.do(t, http.MethodPost, "/v1/guest/messages", nil, map[string]string{"content": "hello"}, guestHeader...)
	require.Equal(t, http.StatusCreated, status, env.Error)
	msg := decode[events.MessagePayload](t, env.Data)
	assert.Equal(t, "Mai", msg.Sender.Name)

	status, _, _ = a.do(t, http.MethodGet, "/v1/guest/messages", nil, nil, handler.GuestTokenHeader, "bogus")
	assert.Equal(t, http.StatusNotFound, status)

	assignPath := "/v1/guest/sessions/" + start.SessionID + "/assign"
	status, _, _ = a.do(t, http.MethodPost, assignPath, &a.alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, env, _ = a.do(t, http.MethodPost, assignPath, &a.staff, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	status, _, _ = a.do(t, http.MethodPost, "/v1/guest/session/assign", &a.alice, nil, guestHeader...)
	assert.Equal(t, http.StatusForbidden, status)
	status, env, _ = a.do(t, http.MethodPost, "/v1/guest/session/assign", &a.staff, nil, guestHeader...)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env, _ = a.do(t, http.MethodGet, "/v1/guest/session", nil, nil, guestHeader...)
	require.Equal(t, http.StatusOK, status)
	info := decode[struct {
		Status        string `json:"status"`
		MessageCount  int    `json:"message_count"`
		AssignedStaff *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"assigned_staff"`
	}](t, env.Data)
	assert.Equal(t, "open", info.Status)
	assert.Equal(t, 1, info.MessageCount)
	require.NotNil(t, info.AssignedStaff)
	assert.Equal(t, a.staff.ID.String(), info.AssignedStaff.ID)
	assert.Equal(t, "Sam", info.AssignedStaff.Name)

	status, env, _ = a.do(t, http.MethodGet, "/v1/guest/messages", nil, nil, guestHeader...)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[struct {
		Messages []events.MessagePayload `json:"messages"`
	}](t, env.Data).Messages, 1)

	status, _, _ = a.do(t, http.MethodPost, "/v1/guest/session/end", nil, nil, guestHeader...)
	require.Equal(t, http.StatusOK, status)

	status, env, _ = a.do(t, http.MethodGet, "/v1/guest/session/status", nil, nil, guestHeader...)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "closed", decode[struct {
		Status string `json:"status"`
	}](t, env.Data).Status)

	status, _, _ = a.do(t, http.MethodPost, "/v1/guest/messages", nil, map[string]string{"content": "still there?"}, guestHeader...)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFriendAndNotificationRoutes(t *testing.T) {
	a := newTestApp(t)

	status, env, _ := a.do(t, http.MethodPost, "/v1/friends/requests", &a.alice, map[string]string{"addressee_id": a.bob.ID.String()})
	require.Equal(t, http.StatusCreated, status, env.Error)
	requestID := decode[struct {
		ID string `json:"id"`
	}](t, env.Data).ID

	status, _, _ = a.do(t, http.MethodPost, "/v1/friends/requests", &a.alice, map[string]string{"addressee_id": a.bob.ID.String()})
	assert.Equal(t, http.StatusConflict, status)

	status, env, _ = a.do(t, http.MethodGet, "/v1/notifications/unread-count", &a.bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, decode[struct {
		Count int64 `json:"count"`
	}](t, env.Data).Count)

	status, _, _ = a.do(t, http.MethodPost, "/v1/friends/requests/"+requestID+"/accept", &a.alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _, _ = a.do(t, http.MethodPost, "/v1/friends/requests/"+requestID+"/accept", &a.bob, nil)
	require.Equal(t, http.StatusOK, status)

	status, env, _ = a.do(t, http.MethodGet, "/v1/friends?status=accepted", &a.alice, nil)
	require.Equal(t, http.StatusOK, status)
	friends := decode[[]struct {
		AddresseeID string `json:"addressee_id"`
	}](t, env.Data)
	require.Len(t, friends, 1)
	assert.Equal(t, a.bob.ID.String(), friends[0].AddresseeID)

	status, _, _ = a.do(t, http.MethodPost, "/v1/notifications/read-all", &a.bob, nil)
	require.Equal(t, http.StatusOK, status)
	_, env, _ = a.do(t, http.MethodGet, "/v1/notifications/unread-count", &a.bob, nil)
	assert.EqualValues(t, 0, decode[struct {
		Count int64 `json:"count"`
	}](t, env.Data).Count)

	status, _, _ = a.do(t, http.MethodDelete, "/v1/friends/"+a.bob.ID.String(), &a.alice, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCallAndAttachmentRoutes(t *testing.T) {
	a := newTestApp(t)
	convID := a.createGroup(t, a.alice, a.bob)

	status, env, _ := a.do(t, http.MethodPost, "/v1/calls/signal", &a.alice, map[string]any{
		"conversation_id": convID,
		"to_id":           a.bob.ID.String(),
		"type":            "offer",
		"call_type":       "video",
		"payload":         map[string]string{"sdp": "v=0"},
	})
	assert.Equal(t, http.StatusAccepted, status, env.Error)

	status, _, _ = a.do(t, http.MethodPost, "/v1/calls/signal", &a.alice, map[string]any{
		"conversation_id": convID,
		"to_id":           a.carol.ID.String(),
		"type":            "offer",
		"call_type":       "video",
		"payload":         map[string]string{"sdp": "v=0"},
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _, _ = a.do(t, http.MethodPost, "/v1/calls/status", &a.bob, map[string]any{
		"conversation_id": convID,
		"status":          "ended",
		"call_type":       "video",
	})
	assert.Equal(t, http.StatusAccepted, status)

	status, env, _ = a.do(t, http.MethodPost, "/v1/attachments/presign", &a.alice, map[string]any{
		"file_name": "a.png", "content_type": "image/png", "file_size": 10,
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "UNAVAILABLE", env.Code)
}

func TestSentMessageReachesSubscribedSocket(t *testing.T) {
	a := newTestApp(t)
	convID := a.createGroup(t, a.alice, a.bob)

	url := "ws" + strings.TrimPrefix(a.http.URL, "http") + "/ws?token=" + a.token(t, a.bob)
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	read := func() events.Envelope {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var env events.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		return env
	}

	assert.Equal(t, websocket.EventSubscriptionSucceeded, read().Event)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "channel": "private-conversation." + convID}))
	require.Equal(t, websocket.EventSubscriptionSucceeded, read().Event)

	status, env, _ := a.do(t, http.MethodPost, "/v1/conversations/"+convID+"/messages", &a.alice, map[string]any{"content": "ping"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	sent := decode[events.MessagePayload](t, env.Data)

	// Bob holds both the conversation channel and his own: one frame per
	// channel, both carrying the message id.
	got := map[string]string{}
	for i := 0; i < 2; i++ {
		frame := read()
		assert.Equal(t, events.EventMessageSent, frame.Event)
		got[frame.Channel] = frame.ID
	}
	assert.Equal(t, map[string]string{
		"conversation." + convID:    sent.ID.String(),
		"user." + a.bob.ID.String(): sent.ID.String(),
	}, got)
}
