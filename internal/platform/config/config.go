package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Storage backends for the per-profile cache document.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	TallyEndpoint  string        `env:"TALLY_ENDPOINT"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" default:"10s"`

	StorageBackend string        `env:"STORAGE_BACKEND" default:"file"`
	StorageDir     string        `env:"STORAGE_DIR" default:"./data"`
	RedisURL       string        `env:"REDIS_URL"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	CacheKey       string        `env:"CACHE_KEY" default:"rating-cache"`
	CacheTTL       time.Duration `env:"CACHE_TTL" default:"1h"`

	SessionSecret  string        `env:"SESSION_SECRET"`
	SessionMaxAge  time.Duration `env:"SESSION_MAX_AGE" default:"8760h"` // 1 year
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" default:"30m"`

	VoteRateLimit float64 `env:"VOTE_RATE_LIMIT" default:"2"`
	VoteRateBurst int     `env:"VOTE_RATE_BURST" default:"4"`

	WSMaxConnections      int `env:"WS_MAX_CONNECTIONS" default:"10000"`
	WSMaxConnectionsPerIP int `env:"WS_MAX_CONNECTIONS_PER_IP" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsProduction reports whether secure cookies and HSTS should be enabled.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	if cfg.TallyEndpoint == "" {
		return errors.New("TALLY_ENDPOINT is required")
	}
	u, err := url.Parse(cfg.TallyEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TALLY_ENDPOINT must be an absolute http(s) URL, got %q", cfg.TallyEndpoint)
	}

	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters, got %d", len(cfg.SessionSecret))
	}

	switch cfg.StorageBackend {
	case StorageMemory:
	case StorageFile:
		if cfg.StorageDir == "" {
			return errors.New("STORAGE_DIR is required for the file storage backend")
		}
	case StorageRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis storage backend")
		}
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, file, redis, postgres, got %q", cfg.StorageBackend)
	}

	if cfg.CacheKey == "" {
		return errors.New("CACHE_KEY must not be empty")
	}
	if cfg.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if cfg.SessionIdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL must be positive")
	}
	if cfg.VoteRateLimit <= 0 || cfg.VoteRateBurst < 1 {
		return errors.New("VOTE_RATE_LIMIT must be positive and VOTE_RATE_BURST at least 1")
	}
	if cfg.WSMaxConnections < 1 || cfg.WSMaxConnectionsPerIP < 1 {
		return errors.New("WS_MAX_CONNECTIONS and WS_MAX_CONNECTIONS_PER_IP must be at least 1")
	}

	return nil
}
