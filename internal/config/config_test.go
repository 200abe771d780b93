package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "/auth/refresh", cfg.RefreshPath)
	assert.Equal(t, "/wishlists", cfg.WishlistPath)
	assert.Equal(t, StoreFile, cfg.SessionStore)
	assert.Equal(t, "default", cfg.SessionNamespace)
	assert.True(t, cfg.BreakerEnabled)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.False(t, cfg.ProactiveRefresh)
	assert.False(t, cfg.TracingEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "서울시 성동구 왕십리로 123", cfg.PlaceholderAddress)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STOREFRONT_API_URL", "https://api.coffee.test")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WISHLIST_PATH", "/api/v1/wishlists")
	t.Setenv("AUTH_PROACTIVE_REFRESH", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://api.coffee.test", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, StoreRedis, cfg.SessionStore)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "/api/v1/wishlists", cfg.WishlistPath)
	assert.True(t, cfg.ProactiveRefresh)
}

func TestLoad_ExtraHeaders(t *testing.T) {
	t.Setenv("EXTRA_HEADERS", "X-Client:cli,ngrok-skip-browser-warning:true")

	cfg, err := Load()

	require.NoError(t, err)
	h := cfg.Headers()
	assert.Equal(t, "cli", h.Get("X-Client"))
	assert.Equal(t, "true", h.Get("Ngrok-Skip-Browser-Warning"))
}

func TestLoad_InvalidAPIURL(t *testing.T) {
	for _, raw := range []string{"localhost:8080", "ftp://coffee.test", "http://"} {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("STOREFRONT_API_URL", raw)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid STOREFRONT_API_URL")
		})
	}
}

func TestLoad_InvalidSessionStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "sqlite")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SESSION_STORE")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "-1s")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
}

func TestLoad_UnparsableDuration(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_RateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "4")

	cfg, err := Load()

	require.NoError(t, err)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, 4, cfg.RateLimitBurst)
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_RPS")

	t.Setenv("RATE_LIMIT_RPS", "5")
	t.Setenv("RATE_LIMIT_BURST", "0")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_BURST")
}
