package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"shopdesk-realtime/internal/channels"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/redis"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"
	shopdesk_errors "shopdesk-realtime/pkg/errors"
	"shopdesk-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Control frames the socket sends besides pushed events.
const (
	EventSubscriptionSucceeded = "subscription_succeeded"
	EventSubscriptionError     = "subscription_error"
	EventPong                  = "pong"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionPing        = "ping"

	maxCommandBytes = 4096
)

// PresenceTracker is satisfied by redis.PresenceStore.
type PresenceTracker interface {
	Join(ctx context.Context, channel string, profile user.Profile) (bool, error)
	Leave(ctx context.Context, channel, userID string) (bool, error)
	Heartbeat(ctx context.Context, channel string) error
	Members(ctx context.Context, channel string) ([]redis.PresenceMember, error)
}

// Broadcaster is satisfied by services.Dispatcher.
type Broadcaster interface {
	DispatchToChannels(ctx context.Context, event string, targets []string, data any)
}

type HandlerConfig struct {
	AllowedOrigins []string
	// PresenceHeartbeat must be shorter than the presence TTL.
	PresenceHeartbeat time.Duration
}

type Handler struct {
	gateway     *Gateway
	hub         *Hub
	presence    PresenceTracker
	broadcaster Broadcaster
	upgrader    websocket.Upgrader
	heartbeat   time.Duration
	log         *connLogger
}

func NewHandler(gateway *Gateway, hub *Hub, presence PresenceTracker, broadcaster Broadcaster, cfg HandlerConfig, log *logger.Logger) *Handler {
	if cfg.PresenceHeartbeat <= 0 {
		cfg.PresenceHeartbeat = 30 * time.Second
	}
	return &Handler{
		gateway:     gateway,
		hub:         hub,
		presence:    presence,
		broadcaster: broadcaster,
		heartbeat:   cfg.PresenceHeartbeat,
		log:         newConnLogger(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

type command struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// Connect upgrades an authenticated request and serves the socket until
// the peer goes away. The identity's own channel is subscribed up front.
func (h *Handler) Connect(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade_failed", identity.ID, "", err)
		return
	}

	client := NewClient(conn, identity)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	h.hub.Register(client)
	h.log.Info("connected", identity.ID, client.ID)
	go client.WriteLoop(ctx)
	go h.heartbeatLoop(ctx, client)

	h.subscribe(ctx, client, channels.User(identity.ID))
	h.readLoop(ctx, client)

	h.leaveAll(client)
	h.hub.Unregister(client)
	h.log.Info("disconnected", identity.ID, client.ID)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.Conn
	conn.SetReadLimit(maxCommandBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("read_failed", client.Identity.ID, client.ID, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.sendError(client, "", shopdesk_errors.ErrInvalidInput)
			continue
		}
		switch cmd.Action {
		case actionSubscribe:
			h.subscribe(ctx, client, cmd.Channel)
		case actionUnsubscribe:
			h.unsubscribe(ctx, client, cmd.Channel)
		case actionPing:
			h.send(client, EventPong, "", nil)
		default:
			h.sendError(client, cmd.Channel, shopdesk_errors.ErrInvalidInput)
		}
	}
}

func (h *Handler) subscribe(ctx context.Context, client *Client, name string) {
	auth, err := h.gateway.Authorize(ctx, &client.Identity, name)
	if err != nil {
		if !errors.Is(err, shopdesk_errors.ErrForbidden) {
			h.log.Warn("authorize_failed", client.Identity.ID, client.ID, err, zap.String("channel", name))
		}
		h.sendError(client, name, err)
		return
	}
	h.hub.Subscribe(ctx, client, auth.Channel)

	if auth.Presence == nil || h.presence == nil {
		h.send(client, EventSubscriptionSucceeded, auth.Channel, nil)
		return
	}

	if client.markPresence(auth.Channel, true) {
		first, err := h.presence.Join(ctx, auth.Channel, *auth.Presence)
		if err != nil {
			h.log.Warn("presence_join_failed", client.Identity.ID, client.ID, err, zap.String("channel", auth.Channel))
		} else if first {
			h.broadcaster.DispatchToChannels(ctx, events.EventPresenceJoined, []string{auth.Channel}, presencePayload(auth.Channel, *auth.Presence))
		}
	}
	members, err := h.presence.Members(ctx, auth.Channel)
	if err != nil {
		h.log.Warn("presence_members_failed", client.Identity.ID, client.ID, err, zap.String("channel", auth.Channel))
	}
	h.send(client, EventSubscriptionSucceeded, auth.Channel, gin.H{
		"me":      presencePayload(auth.Channel, *auth.Presence).Member,
		"members": members,
	})
}

func (h *Handler) unsubscribe(ctx context.Context, client *Client, name string) {
	desc, err := channels.Parse(name)
	if err != nil {
		h.sendError(client, name, shopdesk_errors.ErrInvalidInput)
		return
	}
	h.hub.Unsubscribe(ctx, client, desc.Name())
	if desc.Kind() == channels.KindPresenceConversation {
		h.leave(ctx, client, desc.Name())
	}
}

func (h *Handler) leave(ctx context.Context, client *Client, channel string) {
	if h.presence == nil || !client.markPresence(channel, false) {
		return
	}
	removed, err := h.presence.Leave(ctx, channel, client.Identity.ID.String())
	if err != nil {
		h.log.Warn("presence_leave_failed", client.Identity.ID, client.ID, err, zap.String("channel", channel))
		return
	}
	if removed {
		h.broadcaster.DispatchToChannels(ctx, events.EventPresenceLeft, []string{channel}, presencePayload(channel, client.Identity))
	}
}

// leaveAll runs after the request context may already be cancelled.
func (h *Handler) leaveAll(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, channel := range client.presenceChannels() {
		h.leave(ctx, client, channel)
	}
}

func (h *Handler) heartbeatLoop(ctx context.Context, client *Client) {
	if h.presence == nil {
		return
	}
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, channel := range client.presenceChannels() {
				if err := h.presence.Heartbeat(ctx, channel); err != nil {
					h.log.Warn("presence_heartbeat_failed", client.Identity.ID, client.ID, err, zap.String("channel", channel))
				}
			}
		}
	}
}

func (h *Handler) send(client *Client, event, channel string, data any) {
	env, err := events.NewEnvelope("", event, channel, data)
	if err != nil {
		return
	}
	frame, err := env.Marshal()
	if err != nil {
		return
	}
	client.SendMessage(frame)
}

func (h *Handler) sendError(client *Client, channel string, err error) {
	h.send(client, EventSubscriptionError, channel, gin.H{
		"code":   shopdesk_errors.Code(err),
		"status": shopdesk_errors.HTTPStatus(err),
	})
}

func presencePayload(channel string, p user.Profile) events.PresencePayload {
	return events.PresencePayload{
		Channel: channel,
		Member:  events.SenderPayload{ID: p.ID, Name: p.Name, Avatar: p.Avatar},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
