package kvstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/alice-bridge/internal/infrastructure/config"
)

// Redis is a Store backed by Redis hashes. Per-field TTLs use HEXPIRE and
// need Redis 7.4 or later.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Address, err)
	}
	return &Redis{client: client}, nil
}

// HGet returns the field value if present.
func (r *Redis) HGet(ctx context.Context, hash, field string) (string, bool, error) {
	v, err := r.client.HGet(ctx, hash, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %s/%s: %w", hash, field, err)
	}
	return v, true, nil
}

// HSet stores the value.
func (r *Redis) HSet(ctx context.Context, hash, field, value string) error {
	if err := r.client.HSet(ctx, hash, field, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s/%s: %w", hash, field, err)
	}
	return nil
}

// HExpire sets a TTL on one field.
func (r *Redis) HExpire(ctx context.Context, hash, field string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := r.client.HExpire(ctx, hash, ttl, field).Err(); err != nil {
		return fmt.Errorf("redis hexpire %s/%s: %w", hash, field, err)
	}
	return nil
}

// HDel removes a field.
func (r *Redis) HDel(ctx context.Context, hash, field string) error {
	if err := r.client.HDel(ctx, hash, field).Err(); err != nil {
		return fmt.Errorf("redis hdel %s/%s: %w", hash, field, err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
