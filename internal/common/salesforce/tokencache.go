package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache shares minted sessions between instances.
type TokenCache interface {
	Get(ctx context.Context, username string) (*Session, error)
	Put(ctx context.Context, username string, session *Session) error
	Delete(ctx context.Context, username string) error
}

// RedisTokenCache stores sessions as JSON until shortly before they expire.
type RedisTokenCache struct {
	client redis.Cmdable
	prefix string
	skew   time.Duration
}

func NewRedisTokenCache(client redis.Cmdable, prefix string) *RedisTokenCache {
	return &RedisTokenCache{client: client, prefix: prefix, skew: 30 * time.Second}
}

func (c *RedisTokenCache) key(username string) string {
	return c.prefix + username
}

// Get returns nil, nil on a miss.
func (c *RedisTokenCache) Get(ctx context.Context, username string) (*Session, error) {
	raw, err := c.client.Get(ctx, c.key(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token cache get: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("token cache decode: %w", err)
	}
	return &s, nil
}

func (c *RedisTokenCache) Put(ctx context.Context, username string, session *Session) error {
	ttl := time.Until(session.ExpiresAt) - c.skew
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("token cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(username), raw, ttl).Err(); err != nil {
		return fmt.Errorf("token cache set: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Delete(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, c.key(username)).Err(); err != nil {
		return fmt.Errorf("token cache delete: %w", err)
	}
	return nil
}
