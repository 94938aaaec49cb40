package websocket

import (
	"context"

	"shopdesk-realtime/internal/events"
)

// PushBridge feeds frames from the push transport into the local hub.
// Every node runs one, so a dispatch on any node reaches sockets on all.
type PushBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewPushBridge(subscriber events.Subscriber, hub *Hub) *PushBridge {
	return &PushBridge{subscriber: subscriber, hub: hub}
}

func (b *PushBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
