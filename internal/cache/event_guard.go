// Package cache holds the Redis-backed helpers. The only consumer today is
// the inbound deposit webhook, which uses an EventGuard to drop partner
// retries before they reach the database.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9" // Redis client
)

// EventGuard claims external event ids so each is processed once.
type EventGuard interface {
	// Claim reports true if the caller is the first to claim key.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets a claim so a retry of the event can be processed.
	Release(ctx context.Context, key string) error
}

// RedisEventGuard implements EventGuard with SET NX and a TTL.
type RedisEventGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisEventGuard creates a guard whose keys live under prefix for ttl.
func NewRedisEventGuard(rdb *redis.Client, prefix string, ttl time.Duration) *RedisEventGuard {
	return &RedisEventGuard{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (g *RedisEventGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.prefix+key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisEventGuard) Release(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// NoopEventGuard accepts every claim. It is used when Redis is not configured.
type NoopEventGuard struct{}

func (NoopEventGuard) Claim(context.Context, string) (bool, error) { return true, nil }
func (NoopEventGuard) Release(context.Context, string) error       { return nil }

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,     // Redis server address
		Password: password, // Redis password
		DB:       db,       // Redis database number
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}
