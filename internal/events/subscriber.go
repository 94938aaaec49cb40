package events

import "context"

// Subscriber delivers every frame published on the push transport until
// ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(channel string, payload []byte)) error
}
