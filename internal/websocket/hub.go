package websocket

import (
	"context"
	"sync"

	"shopdesk-realtime/internal/metrics"
)

type subscriptionRequest struct {
	client    *Client
	channel   string
	subscribe bool
	done      chan struct{}
}

// Hub tracks the connections of this node and which channels each one
// listens on. Mutations go through one event loop; Broadcast reads under
// a lock.
type Hub struct {
	mu sync.RWMutex

	clients  map[string]*Client
	channels map[string]map[*Client]struct{}

	unregister   chan *Client
	subscription chan subscriptionRequest
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		channels:     make(map[string]map[*Client]struct{}),
		unregister:   make(chan *Client, 256),
		subscription: make(chan subscriptionRequest, 512),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.subscription:
			if req.subscribe {
				h.subscribeToChannel(req.client, req.channel)
			} else {
				h.unsubscribeFromChannel(req.client, req.channel)
			}
			if req.done != nil {
				close(req.done)
			}
		}
	}
}

// Register takes effect immediately, before any Subscribe for the client.
func (h *Hub) Register(client *Client) {
	h.addClient(client)
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe returns once the subscription is in place, so frames sent on
// the channel afterwards reach the client.
func (h *Hub) Subscribe(ctx context.Context, client *Client, channel string) {
	h.request(ctx, subscriptionRequest{client: client, channel: channel, subscribe: true})
}

func (h *Hub) Unsubscribe(ctx context.Context, client *Client, channel string) {
	h.request(ctx, subscriptionRequest{client: client, channel: channel, subscribe: false})
}

func (h *Hub) request(ctx context.Context, req subscriptionRequest) {
	req.done = make(chan struct{})
	select {
	case h.subscription <- req:
	case <-ctx.Done():
		return
	}
	select {
	case <-req.done:
	case <-ctx.Done():
	}
}

// Broadcast sends a frame to every local client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		c.SendMessage(payload)
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, channel := range client.GetChannels() {
		h.detach(client, channel)
	}
	delete(h.clients, client.ID)
	close(client.Send)
	metrics.WSConnections.Dec()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.removeClient(c)
	}
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.Subscribe(channel)
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(client, channel)
}

func (h *Hub) detach(client *Client, channel string) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.Unsubscribe(channel)
}
