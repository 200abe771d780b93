package config

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	pkgconfig "github.com/teamcoffee/storefront/pkg/config"
)

// Session store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all configuration for the storefront client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend
	APIURL       string            `env:"STOREFRONT_API_URL" envDefault:"http://localhost:8080"`
	HTTPTimeout  time.Duration     `env:"HTTP_TIMEOUT" envDefault:"10s"`
	ExtraHeaders map[string]string `env:"EXTRA_HEADERS" envSeparator:"," envKeyValSeparator:":"`
	RefreshPath  string            `env:"REFRESH_PATH" envDefault:"/auth/refresh"`
	WishlistPath string            `env:"WISHLIST_PATH" envDefault:"/wishlists"`

	BreakerEnabled bool `env:"BREAKER_ENABLED" envDefault:"true"`

	// Client-side request pacing; disabled when RateLimitRPS is 0.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Session persistence
	SessionStore     string        `env:"SESSION_STORE" envDefault:"file"`
	SessionFile      string        `env:"SESSION_FILE"`
	SessionNamespace string        `env:"SESSION_NAMESPACE" envDefault:"default"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Auth
	ProactiveRefresh bool          `env:"AUTH_PROACTIVE_REFRESH" envDefault:"false"`
	RefreshSkew      time.Duration `env:"AUTH_REFRESH_SKEW" envDefault:"30s"`

	// Orders
	PlaceholderAddress string `env:"ORDER_PLACEHOLDER_ADDRESS" envDefault:"서울시 성동구 왕십리로 123"`

	// Kafka; events are disabled when empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Headers returns ExtraHeaders as an http.Header.
func (c *Config) Headers() http.Header {
	h := make(http.Header, len(c.ExtraHeaders))
	for k, v := range c.ExtraHeaders {
		h.Set(k, v)
	}
	return h
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid STOREFRONT_API_URL: %q", c.APIURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid HTTP_TIMEOUT: %s", c.HTTPTimeout)
	}
	switch c.SessionStore {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("invalid SESSION_STORE %q, must be one of: file, memory, redis", c.SessionStore)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("invalid RATE_LIMIT_RPS: %g", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("invalid RATE_LIMIT_BURST: %d", c.RateLimitBurst)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid REDIS_DB: %d", c.RedisDB)
	}
	return nil
}
