package websocket

import (
	"context"
	"sync"
	"time"

	"shopdesk-realtime/internal/domain/user"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Client is one socket connection of an authenticated identity.
type Client struct {
	ID       string
	Identity user.Profile
	Conn     *websocket.Conn
	Send     chan []byte
	channels map[string]bool
	presence map[string]bool
	mu       sync.RWMutex
}

func NewClient(conn *websocket.Conn, identity user.Profile) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		channels: make(map[string]bool),
		presence: make(map[string]bool),
	}
}

// Subscribe records a channel on the client. Only the hub calls it.
func (c *Client) Subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) Unsubscribe(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *Client) GetChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// markPresence tracks presence channels joined by this connection. It
// reports whether the state changed.
func (c *Client) markPresence(channel string, joined bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.presence[channel] == joined {
		return false
	}
	if joined {
		c.presence[channel] = true
	} else {
		delete(c.presence, channel)
	}
	return true
}

func (c *Client) presenceChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.presence))
	for ch := range c.presence {
		out = append(out, ch)
	}
	return out
}

// WriteLoop drains Send to the socket and pings the peer until Send is
// closed by the hub or ctx ends.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case msg, ok := <-c.Send:
			if !ok {
				c.close()
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Client) close() {
	c.mu.Lock()
	_ = c.Conn.Close()
	c.mu.Unlock()
}

// SendMessage queues a frame without blocking. A client that cannot keep
// up loses frames and recovers them by polling.
func (c *Client) SendMessage(msg []byte) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}
