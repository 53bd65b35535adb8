// Package config loads the dashboard configuration from the environment
// (optionally seeded from a .env file) and resolves secrets through an
// ordered provider chain.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata" // DASHBOARD_TZ must resolve in minimal containers

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP server
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Timezone string `envconfig:"DASHBOARD_TZ" default:"America/Sao_Paulo"`

	// Refresh loop
	RefreshInterval    time.Duration `envconfig:"REFRESH_INTERVAL" default:"20m"`
	DealsFrom          string        `envconfig:"DEALS_FROM" default:"2025-01-01"`
	AlertAfterFailures int           `envconfig:"ALERT_AFTER_FAILURES" default:"3"`
	MaxSnapshotAge     time.Duration `envconfig:"MAX_SNAPSHOT_AGE" default:"1h"`

	// Marketplace API
	BBCEBaseURL   string  `envconfig:"BBCE_BASE_URL" default:"https://api-ehub.bbce.com.br/"`
	BBCERateLimit float64 `envconfig:"BBCE_RATE_LIMIT" default:"2"`

	// Dashboard sessions
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	// Redis relay; empty address keeps events in-process
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Alerting
	WebhookURL       string `envconfig:"ALERT_WEBHOOK_URL"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`

	SecretsFile string `envconfig:"SECRETS_FILE"`

	Secrets Secrets `ignored:"true"`

	location  *time.Location
	dealsFrom time.Time
}

// Load reads .env (when present) and the environment, then resolves
// secrets from SECRETS_FILE and the environment, in that order.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	chain := Chain{EnvProvider{}}
	if cfg.SecretsFile != "" {
		file, err := LoadSecretsFile(cfg.SecretsFile)
		if err != nil {
			return nil, err
		}
		chain = Chain{file, EnvProvider{}}
	}
	secrets, err := ResolveSecrets(chain)
	if err != nil {
		return nil, err
	}
	cfg.Secrets = secrets
	return &cfg, nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("config: DASHBOARD_TZ %q: %w", c.Timezone, err)
	}
	c.location = loc

	from, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(c.DealsFrom), loc)
	if err != nil {
		return fmt.Errorf("config: DEALS_FROM %q: want YYYY-MM-DD", c.DealsFrom)
	}
	c.dealsFrom = from

	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("config: REFRESH_INTERVAL %s is below 1m", c.RefreshInterval)
	}
	if c.AlertAfterFailures < 1 {
		return fmt.Errorf("config: ALERT_AFTER_FAILURES must be at least 1")
	}
	return nil
}

// Location returns the dashboard time zone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DealsFromTime returns DEALS_FROM as midnight in the dashboard zone.
func (c *Config) DealsFromTime() time.Time { return c.dealsFrom }

// RedisEnabled reports whether events are relayed through Redis.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }
