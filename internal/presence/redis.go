package presence

import (
	"context"
	"fmt"
	"time"

	"storefront-chat/internal/env"

	"github.com/go-redis/redis/v8"
)

const lastSeenTTL = 90 * 24 * time.Hour

// RedisMirror stores one hash per user: online flag and last-seen time.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisClient builds a client from CHAT_REDIS_URL / CHAT_REDIS_PASS, or
// returns nil when no address is configured.
func NewRedisClient() *redis.Client {
	addr := env.Get(env.ChatRedisURL)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})
}

func NewRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	if prefix == "" {
		prefix = "chat"
	}
	return &RedisMirror{client: client, prefix: prefix}
}

func (m *RedisMirror) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", m.prefix, userID)
}

func (m *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	key := m.key(userID)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, "online", "1")
	pipe.Expire(ctx, key, lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis presence online: %w", err)
	}
	return nil
}

func (m *RedisMirror) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	key := m.key(userID)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, "online", "0", "lastSeen", lastSeen.UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis presence offline: %w", err)
	}
	return nil
}

func (m *RedisMirror) Lookup(ctx context.Context, userID string) (Record, bool, error) {
	values, err := m.client.HGetAll(ctx, m.key(userID)).Result()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis presence lookup: %w", err)
	}
	if len(values) == 0 {
		return Record{}, false, nil
	}
	rec := Record{UserID: userID, Online: values["online"] == "1"}
	if ts := values["lastSeen"]; ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.LastSeen = parsed
		}
	}
	return rec, true, nil
}
