package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"shopdesk-realtime/internal/domain/user"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceMember is what a presence channel announces for each identity.
type PresenceMember struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// PresenceStore tracks which identities currently hold a presence channel
// open. One hash per channel maps user id -> member JSON and a second one
// counts sockets, so a user only leaves with their last connection. Keys
// expire unless some socket on the channel keeps heartbeating.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const (
	presenceMembersKey = "presence:members:"
	presenceConnsKey   = "presence:conns:"
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// Join records p on channel. It reports true when this is the user's
// first open connection on the channel.
func (p *PresenceStore) Join(ctx context.Context, channel string, profile user.Profile) (bool, error) {
	id := profile.ID.String()
	data, err := json.Marshal(PresenceMember{
		ID:       id,
		Name:     profile.Name,
		Avatar:   profile.Avatar,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	pipe := p.client.TxPipeline()
	conns := pipe.HIncrBy(ctx, presenceConnsKey+channel, id, 1)
	pipe.HSetNX(ctx, presenceMembersKey+channel, id, data)
	pipe.Expire(ctx, presenceMembersKey+channel, p.ttl)
	pipe.Expire(ctx, presenceConnsKey+channel, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("presence join: %w", err)
	}
	return conns.Val() == 1, nil
}

// Leave drops one connection of userID from channel. It reports true when
// the user has no connection left and was removed from the member set.
func (p *PresenceStore) Leave(ctx context.Context, channel, userID string) (bool, error) {
	remaining, err := p.client.HIncrBy(ctx, presenceConnsKey+channel, userID, -1).Result()
	if err != nil {
		return false, fmt.Errorf("presence leave: %w", err)
	}
	if remaining > 0 {
		return false, nil
	}
	return true, p.remove(ctx, channel, userID)
}

func (p *PresenceStore) remove(ctx context.Context, channel, userID string) error {
	pipe := p.client.TxPipeline()
	pipe.HDel(ctx, presenceConnsKey+channel, userID)
	pipe.HDel(ctx, presenceMembersKey+channel, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat keeps the presence keys of channel alive.
func (p *PresenceStore) Heartbeat(ctx context.Context, channel string) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, presenceMembersKey+channel, p.ttl)
	pipe.Expire(ctx, presenceConnsKey+channel, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Members lists the identities present on channel, ordered by join time.
func (p *PresenceStore) Members(ctx context.Context, channel string) ([]PresenceMember, error) {
	raw, err := p.client.HGetAll(ctx, presenceMembersKey+channel).Result()
	if err != nil {
		return nil, err
	}
	members := make([]PresenceMember, 0, len(raw))
	for _, data := range raw {
		var m PresenceMember
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			continue
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}
