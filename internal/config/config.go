package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type StoreDriver string

const (
	StorePostgres StoreDriver = "postgres"
	StoreSQLite   StoreDriver = "sqlite"
)

type Config struct {
	// Core
	BotToken     string `env:"BOT_TOKEN,required"`
	GeminiAPIKey string `env:"GEMINI_API_KEY,required"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash-lite"`
	GeminiURL    string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`

	// Encryption at rest: either a base64 key or a passphrase + salt
	CipherKey        string `env:"CIPHER_KEY"`
	CipherPassphrase string `env:"CIPHER_PASSPHRASE"`
	CipherSalt       string `env:"CIPHER_SALT"`

	// Storage
	StoreDriver StoreDriver `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL string      `env:"DATABASE_URL"`
	SQLitePath  string      `env:"SQLITE_PATH" envDefault:"data/audiodesc.db"`

	// Sessions and provider pacing
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"180s"`
	DispatchCooldown   time.Duration `env:"DISPATCH_COOLDOWN" envDefault:"500ms"`
	DispatchQueueSize  int           `env:"DISPATCH_QUEUE_SIZE" envDefault:"256"`
	SweepSchedule      string        `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Bot behavior
	DropPendingUpdates bool   `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicConsent   int   `env:"LOG_TOPIC_CONSENT"`

	// Shown next to the consent button when set
	PrivacyPolicyURL string `env:"PRIVACY_POLICY_URL"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CipherKey == "" && c.CipherPassphrase == "" {
		return fmt.Errorf("one of CIPHER_KEY or CIPHER_PASSPHRASE is required")
	}
	if c.CipherPassphrase != "" && c.CipherSalt == "" {
		return fmt.Errorf("CIPHER_SALT is required with CIPHER_PASSPHRASE")
	}
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.DispatchQueueSize <= 0 {
		return fmt.Errorf("DISPATCH_QUEUE_SIZE must be positive")
	}
	return nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
