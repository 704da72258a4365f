// Package cache keeps a best-effort Redis copy of guild member summaries.
// When live member enumeration times out, candidate lists degrade to this
// view instead of failing the operation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/TempVoice/internal/platform"
)

// DefaultTTL bounds how stale the cached member view may get.
const DefaultTTL = 10 * time.Minute

// MemberCache stores per-guild member summaries.
type MemberCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMemberCache(client *redis.Client, ttl time.Duration) *MemberCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemberCache{client: client, ttl: ttl}
}

// Put replaces the cached member view for a guild.
func (c *MemberCache) Put(ctx context.Context, guildID string, members []platform.Member) error {
	bytes, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(guildID), bytes, c.ttl).Err()
}

// List returns the cached member view, or an empty slice when nothing is
// cached.
func (c *MemberCache) List(ctx context.Context, guildID string) ([]platform.Member, error) {
	bytes, err := c.client.Get(ctx, c.key(guildID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var members []platform.Member
	if err := json.Unmarshal(bytes, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *MemberCache) key(guildID string) string {
	return fmt.Sprintf("members:%s", guildID)
}
