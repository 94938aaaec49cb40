package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopdesk-realtime/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - profile:{user_id} - public profile (name, avatar), ProfileTTL
//
// Membership is never cached: authorization must observe the latest
// write.

type cachedProfile struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
	Staff  bool      `json:"staff,omitempty"`
}

// ProfileCache is a read-through cache in front of the account
// collaborator's profile lookup. Payload building hits it on every
// dispatch, so it saves a users-table read per message.
type ProfileCache struct {
	client *goredis.Client
	next   user.ProfileLookup
	ttl    time.Duration
}

func NewProfileCache(client *goredis.Client, next user.ProfileLookup, ttl time.Duration) *ProfileCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{client: client, next: next, ttl: ttl}
}

func profileKey(id uuid.UUID) string {
	return fmt.Sprintf("profile:%s", id.String())
}

func (c *ProfileCache) GetProfile(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	data, err := c.client.Get(ctx, profileKey(id)).Result()
	if err == nil {
		var p cachedProfile
		if json.Unmarshal([]byte(data), &p) == nil {
			return user.Profile{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Staff: p.Staff}, nil
		}
	}

	profile, err := c.next.GetProfile(ctx, id)
	if err != nil {
		return user.Profile{}, err
	}
	c.set(ctx, profile)
	return profile, nil
}

func (c *ProfileCache) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, error) {
	result := make(map[uuid.UUID]user.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	pipe := c.client.Pipeline()
	cmds := make(map[uuid.UUID]*goredis.StringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.Get(ctx, profileKey(id))
	}
	_, _ = pipe.Exec(ctx)

	var misses []uuid.UUID
	for id, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			misses = append(misses, id)
			continue
		}
		var p cachedProfile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			misses = append(misses, id)
			continue
		}
		result[id] = user.Profile{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Staff: p.Staff}
	}

	if len(misses) == 0 {
		return result, nil
	}
	fetched, err := c.next.GetProfiles(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, p := range fetched {
		result[id] = p
		c.set(ctx, p)
	}
	return result, nil
}

// Invalidate drops a cached profile after the account collaborator
// changed it.
func (c *ProfileCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, profileKey(id)).Err()
}

func (c *ProfileCache) set(ctx context.Context, p user.Profile) {
	data, err := json.Marshal(cachedProfile{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Staff: p.Staff})
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, profileKey(p.ID), data, c.ttl).Err()
}
