package client

import (
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/datagarden-client/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// Known API environments.
const (
	ProductionURL = "https://www.the-datagarden.io/"
	LocalURL      = "http://127.0.0.1:8000/"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvURL       = "THE_DATAGARDEN_URL"
	EnvEmail     = "THE_DATAGARDEN_USER_EMAIL"
	EnvPassword  = "THE_DATAGARDEN_USER_PASSWORD"
	EnvRedisURL  = "REDIS_URL"
	EnvUserAgent = "THE_DATAGARDEN_USER_AGENT"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. ProductionURL. A trailing slash is added
	// when missing.
	BaseURL string

	// Credentials used to acquire the access token
	Email    string
	Password string

	// UserAgent header sent with every request
	UserAgent string

	// HTTPTimeout bounds a single HTTP round trip
	HTTPTimeout time.Duration

	// Redis enables the response cache when set
	Redis *redis.Client

	// CacheTTL applies to cached responses without an Expires header
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration for the production API without
// credentials and without response caching.
func DefaultConfig() Config {
	return Config{
		BaseURL:     ProductionURL,
		UserAgent:   "datagarden-client/0.1.0",
		HTTPTimeout: 30 * time.Second,
		CacheTTL:    cache.DefaultTTL,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by the THE_DATAGARDEN_*
// environment variables. REDIS_URL, when set, enables the response cache.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvURL); v != "" {
		cfg.BaseURL = v
	}
	cfg.Email = os.Getenv(EnvEmail)
	cfg.Password = os.Getenv(EnvPassword)
	if v := os.Getenv(EnvUserAgent); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.Redis = newRedisClient(v)
	}
	return cfg
}

// newRedisClient accepts either a redis:// URL or a plain host:port address.
func newRedisClient(v string) *redis.Client {
	if opts, err := redis.ParseURL(v); err == nil {
		return redis.NewClient(opts)
	}
	return redis.NewClient(&redis.Options{Addr: v})
}

// normalizeBaseURL ensures the URL ends with a slash.
func normalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	if u != "" && !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}
