package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe receives every pushed frame and hands it to handler with the
// push prefix stripped. It returns when ctx is cancelled.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		handler(strings.TrimPrefix(msg.Channel, ChannelPrefix), []byte(msg.Payload))
	}
}
