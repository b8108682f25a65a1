package redisc

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceTTL    = 120 * time.Second
	onlineSetKey   = "chat:online_sessions"
	presencePrefix = "chat:presence:"
)

// Presence records connected chat sessions, keyed by session key
// ("agency:<id>" or "freelancer:<id>").
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

func (p *Presence) SetOnline(ctx context.Context, key string) error {
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, onlineSetKey, key)
	pipe.Set(ctx, presencePrefix+key, "online", presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Presence) SetOffline(ctx context.Context, key string) error {
	pipe := p.client.Pipeline()
	pipe.SRem(ctx, onlineSetKey, key)
	pipe.Del(ctx, presencePrefix+key)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Presence) Refresh(ctx context.Context, key string) error {
	return p.client.Expire(ctx, presencePrefix+key, presenceTTL).Err()
}

// Online lists sessions whose presence key has not expired. Stale set members
// left behind by a crashed instance are pruned on the way.
func (p *Presence) Online(ctx context.Context) ([]string, error) {
	keys, err := p.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}
	online := make([]string, 0, len(keys))
	for _, key := range keys {
		n, err := p.client.Exists(ctx, presencePrefix+key).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			p.client.SRem(ctx, onlineSetKey, key)
			continue
		}
		online = append(online, key)
	}
	return online, nil
}
