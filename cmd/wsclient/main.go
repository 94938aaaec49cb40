// Command wsclient is a terminal client for one conversation. It keeps a
// socket subscription and a polling loop running side by side and merges
// both through the reconciliation cache, the way the admin UI does.
// Lines typed on stdin are sent as messages.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shopdesk-realtime/internal/events"
	"shopdesk-realtime/internal/reconcile"
	"shopdesk-realtime/internal/transport/httpdto"
	realtime "shopdesk-realtime/internal/websocket"
	"shopdesk-realtime/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type client struct {
	api          string
	token        string
	conversation uuid.UUID
	session      *reconcile.Session
	http         *http.Client
	log          *logger.Logger
}

func main() {
	server := flag.String("server", "http://localhost:8080", "API base URL")
	token := flag.String("token", os.Getenv("SHOPDESK_TOKEN"), "bearer token (see cmd/devtoken)")
	conv := flag.String("conversation", "", "conversation id")
	poll := flag.Duration("poll", 10*time.Second, "polling interval, 0 disables polling")
	flag.Parse()

	log := logger.New("development")
	defer log.Sync()

	conversationID, err := uuid.Parse(*conv)
	if err != nil || *token == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := reconcile.NewSession(reconcile.NewDedupCache(reconcile.DefaultCapacity, reconcile.DefaultTTL))
	defer session.Close()

	c := &client{
		api:          strings.TrimRight(*server, "/"),
		token:        *token,
		conversation: conversationID,
		session:      session,
		http:         &http.Client{Timeout: 10 * time.Second},
		log:          log,
	}
	ctx = reconcile.WithSession(ctx, session)

	conn, err := c.dial(ctx)
	if err != nil {
		log.Logger.Fatal("dial failed", zap.Error(err))
	}
	defer conn.Close()

	go c.readPushes(ctx, conn)
	if *poll > 0 {
		go c.pollLoop(ctx, *poll)
	}
	c.readInput(ctx)
}

func (c *client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.api + "/ws")
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	err = conn.WriteJSON(map[string]string{
		"action":  "subscribe",
		"channel": "private-conversation." + c.conversation.String(),
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *client) readPushes(ctx context.Context, conn *websocket.Conn) {
	session, _ := reconcile.SessionFrom(ctx)
	for {
		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				c.log.Logger.Warn("socket closed", zap.Error(err))
			}
			return
		}
		switch env.Event {
		case realtime.EventSubscriptionSucceeded, realtime.EventSubscriptionError:
			c.log.Logger.Info(env.Event, zap.String("channel", env.Channel), zap.ByteString("data", env.Data))
			continue
		}
		if session.ApplyPush(env) {
			c.render()
		}
	}
}

func (c *client) pollLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		c.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *client) poll(ctx context.Context) {
	var page httpdto.Response[httpdto.MessageListResponse]
	path := fmt.Sprintf("/v1/conversations/%s/messages", c.conversation)
	if err := c.call(ctx, http.MethodGet, path, nil, &page); err != nil {
		c.log.Logger.Warn("poll failed", zap.Error(err))
		return
	}
	if n := c.session.ApplyPoll(page.Data.Messages); n > 0 {
		c.render()
	}
}

func (c *client) readInput(ctx context.Context) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) != "" {
				c.send(ctx, line)
			}
		}
	}
}

// send shows the message at once and reconciles when the server answers.
func (c *client) send(ctx context.Context, text string) {
	tempID := "tmp-" + uuid.NewString()
	c.session.AddOptimistic(tempID, events.MessagePayload{
		ConversationID: c.conversation,
		Content:        &text,
		Type:           "text",
	})
	c.render()

	var resp httpdto.Response[events.MessagePayload]
	path := fmt.Sprintf("/v1/conversations/%s/messages", c.conversation)
	if err := c.call(ctx, http.MethodPost, path, httpdto.SendMessageRequest{Content: &text}, &resp); err != nil {
		c.log.Logger.Warn("send failed", zap.Error(err))
		c.session.Revert(c.conversation, tempID)
	} else {
		c.session.Confirm(tempID, resp.Data)
	}
	c.render()
}

func (c *client) call(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.api+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e httpdto.Response[any]
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) render() {
	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	for _, e := range c.session.Timeline(c.conversation) {
		marker := " "
		if e.Pending {
			marker = "…"
		}
		content := ""
		if e.Message.Content != nil {
			content = *e.Message.Content
		}
		name := e.Message.Sender.Name
		if name == "" {
			name = "me"
		}
		fmt.Fprintf(&b, "%s %s %-12s %s\n", marker, e.Message.CreatedAt.Local().Format("15:04:05"), name, content)
	}
	fmt.Print(b.String())
}
