package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Host            string        `env:"BLUESKY_HOST"           envDefault:"https://bsky.social"`
	Handle          string        `env:"BLUESKY_HANDLE,required,notEmpty"`
	AppPassword     string        `env:"BLUESKY_APP_PASSWORD,required,notEmpty"`
	PostLanguages   []string      `env:"BLUESKY_POST_LANGUAGES" envDefault:"en"`
	PostLimit       int           `env:"BLUESKY_POST_LIMIT"     envDefault:"0"`
	Feeds           []string      `env:"RSS_FEEDS,required,notEmpty"`
	MaxAgeHours     int           `env:"RSS_MAX_AGE"            envDefault:"24"`
	DryRun          bool          `env:"DRY_RUN"                envDefault:"false"`
	DBPath          string        `env:"DB_PATH"                envDefault:"posts.sqlite"`
	MemcachedAddr   string        `env:"MEMCACHED_ADDR"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT"           envDefault:"30s"`
	PublishInterval time.Duration `env:"PUBLISH_INTERVAL"       envDefault:"1s"`
	Schedule        string        `env:"SCHEDULE"`
	LogLevel        string        `env:"LOG_LEVEL"              envDefault:"info"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// MaxAge is the maximum entry age as a duration.
func (c Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

// Storage is the part of the environment needed by commands that only read
// the ledger, so they work without Bluesky credentials.
type Storage struct {
	DBPath   string `env:"DB_PATH"   envDefault:"posts.sqlite"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadStorage() (Storage, error) {
	s, err := env.ParseAs[Storage]()
	if err != nil {
		return Storage{}, fmt.Errorf("parse env: %w", err)
	}

	s.DBPath = strings.TrimSpace(s.DBPath)
	if s.DBPath == "" {
		return Storage{}, errors.New("DB_PATH is empty")
	}

	return s, nil
}

func (s Storage) SlogLevel() slog.Level {
	return parseLevel(s.LogLevel)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) normalize() {
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
	c.Handle = strings.TrimSpace(c.Handle)
	c.AppPassword = strings.TrimSpace(c.AppPassword)
	c.Feeds = trimList(c.Feeds)
	c.PostLanguages = trimList(c.PostLanguages)
	c.DBPath = strings.TrimSpace(c.DBPath)
	c.MemcachedAddr = strings.TrimSpace(c.MemcachedAddr)
	c.Schedule = strings.TrimSpace(c.Schedule)

	if len(c.PostLanguages) == 0 {
		c.PostLanguages = []string{"en"}
	}
	if c.PostLimit < 0 {
		c.PostLimit = 0
	}
}

func (c Config) validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("BLUESKY_HOST is empty"))
	}
	if len(c.Feeds) == 0 {
		errs = append(errs, errors.New("RSS_FEEDS has no feed URLs"))
	}
	if c.MaxAgeHours <= 0 {
		errs = append(errs, fmt.Errorf("RSS_MAX_AGE must be positive, got %d", c.MaxAgeHours))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is empty"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	if c.PublishInterval < 0 {
		errs = append(errs, fmt.Errorf("PUBLISH_INTERVAL must not be negative, got %s", c.PublishInterval))
	}

	return errors.Join(errs...)
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}

	return out
}
