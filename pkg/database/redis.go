package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// ConnectAttempts bounds the initial ping; connection errors are retried
	// with exponential backoff starting at RetryBaseWait.
	ConnectAttempts int
	RetryBaseWait   time.Duration
}

// DefaultRedisConfig returns sensible defaults for Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:            "localhost:6379",
		Password:        "",
		DB:              0,
		ConnectAttempts: 3,
		RetryBaseWait:   200 * time.Millisecond,
	}
}

// NewRedisClient creates a new Redis client and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	return NewRedisClientWithLogger(ctx, cfg, slog.Default())
}

// NewRedisClientWithLogger is NewRedisClient with a logger for retry warnings.
func NewRedisClientWithLogger(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := max(cfg.ConnectAttempts, 1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			return client, nil
		}
		if !isConnectionError(lastErr) || attempt == attempts-1 {
			break
		}

		wait := retryBackoff(cfg.RetryBaseWait, attempt)
		logger.Warn("redis ping failed, retrying",
			slog.String("addr", cfg.Addr),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: context canceled during retry: %w", ctx.Err())
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("ping redis: %w", lastErr)
}
