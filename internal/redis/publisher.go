package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces push channels inside Redis so the subscriber
// can pattern-subscribe to all of them.
const ChannelPrefix = "push:"

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, ChannelPrefix+channel, payload).Err()
}
