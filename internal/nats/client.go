// Package nats carries pushed frames over NATS core pub/sub, as an
// alternative to Redis when socket nodes already share a NATS cluster.
package nats

import (
	"context"
	"fmt"
	"time"

	"shopdesk-realtime/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix namespaces push subjects. Channel names already use dots,
// so they map onto NATS tokens directly.
const SubjectPrefix = "push."

type Client struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Connect establishes a connection to the NATS server.
func Connect(url string, log *logger.Logger) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name("shopdesk-realtime"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: conn, logger: log}, nil
}

// Publish implements events.Publisher.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Publish(SubjectPrefix+channel, payload)
}

// Subscribe receives every pushed frame until ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, handler func(channel string, payload []byte)) error {
	sub, err := c.conn.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		handler(msg.Subject[len(SubjectPrefix):], msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
