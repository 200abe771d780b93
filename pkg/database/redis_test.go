package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Zero(t, cfg.DB)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryBaseWait)
}

func TestNewRedisClient_Pings(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestNewRedisClient_RetriesUntilServerUp(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	restarted := make(chan struct{})
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = mr.Restart()
		close(restarted)
	}()
	t.Cleanup(func() {
		<-restarted
		mr.Close()
	})

	cfg := RedisConfig{Addr: addr, ConnectAttempts: 5, RetryBaseWait: 20 * time.Millisecond}
	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	_ = client.Close()
}

func TestNewRedisClient_WrongPasswordNotRetried(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	start := time.Now()
	cfg := RedisConfig{Addr: mr.Addr(), Password: "nope", ConnectAttempts: 3, RetryBaseWait: time.Second}
	_, err := NewRedisClient(context.Background(), cfg)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewRedisClient_ContextCanceledDuringRetry(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	cfg := RedisConfig{Addr: addr, ConnectAttempts: 3, RetryBaseWait: time.Second}
	_, err := NewRedisClient(ctx, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
