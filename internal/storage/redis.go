package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamcoffee/storefront/pkg/database"
)

const keyPrefix = "storefront:session:"

// Redis keeps values under storefront:session:<namespace>:<key> so several
// client profiles can share one server.
type Redis struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedis creates a Redis-backed store. A zero ttl keeps values forever.
func NewRedis(client *redis.Client, namespace string, ttl time.Duration) *Redis {
	if namespace == "" {
		namespace = "default"
	}
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

func (r *Redis) key(k string) string {
	return keyPrefix + r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) (_ string, err error) {
	full := r.key(key)
	ctx, end := database.TraceCommand(ctx, "redis", "GET", full)
	defer func() { end(err) }()

	v, err := r.client.Get(ctx, full).Result()
	if errors.Is(err, redis.Nil) {
		return "", notFound(key)
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) (err error) {
	full := r.key(key)
	ctx, end := database.TraceCommand(ctx, "redis", "SET", full)
	defer func() { end(err) }()

	if err := r.client.Set(ctx, full, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	ctx, end := database.TraceCommand(ctx, "redis", "DEL", r.key("*"))
	defer func() { end(err) }()

	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
