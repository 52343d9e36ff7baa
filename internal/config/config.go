// Package config holds the service configuration and the chat defaults.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// Message window
	DefaultMessageWindow = 50
	MaxMessageWindow     = 200

	// Room list
	DefaultUnreadWindow = 20

	// Identity
	DefaultTokenTTL = 72 * time.Hour
	TokenIssuer     = "pawchat-service"

	// Store backends
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is read from the environment (and an optional .env file).
type Config struct {
	HTTPAddr string `env:"PAWCHAT_HTTP_ADDR" envDefault:":8080"`

	StoreBackend string `env:"PAWCHAT_STORE_BACKEND" envDefault:"postgres"`
	DatabaseDSN  string `env:"PAWCHAT_DATABASE_DSN" envDefault:"host=localhost user=user password=password dbname=pawchatdb port=5432 sslmode=disable"`

	RedisAddr     string `env:"PAWCHAT_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"PAWCHAT_REDIS_PASSWORD"`
	RedisDB       int    `env:"PAWCHAT_REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"PAWCHAT_JWT_SECRET" envDefault:"dev-only-secret"`
	TokenTTL  time.Duration `env:"PAWCHAT_TOKEN_TTL" envDefault:"72h"`
	// DevTokens mounts POST /token, which signs tokens for fresh anonymous ids.
	DevTokens bool `env:"PAWCHAT_DEV_TOKENS" envDefault:"false"`

	MessageWindow int `env:"PAWCHAT_MESSAGE_WINDOW" envDefault:"50"`
	UnreadWindow  int `env:"PAWCHAT_UNREAD_WINDOW" envDefault:"20"`
	// ProfileCacheTTL of 0 keeps resolved names for the whole session.
	ProfileCacheTTL time.Duration `env:"PAWCHAT_PROFILE_CACHE_TTL" envDefault:"0s"`
}

// Load reads .env if present and parses the environment into a Config.
// A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that env tags cannot express.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.MessageWindow <= 0 || c.MessageWindow > MaxMessageWindow {
		return fmt.Errorf("message window must be in 1..%d, got %d", MaxMessageWindow, c.MessageWindow)
	}
	if c.UnreadWindow <= 0 {
		return fmt.Errorf("unread window must be positive, got %d", c.UnreadWindow)
	}
	if c.ProfileCacheTTL < 0 {
		return fmt.Errorf("profile cache ttl must not be negative")
	}
	return nil
}
