package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string `envconfig:"TELEGRAM_TOKEN"` // may be empty when bot_token is stored in the database
	DatabaseURL     string `envconfig:"DATABASE_URL" required:"true"`
	AdminTelegramID int64  `envconfig:"ADMIN_TELEGRAM_ID" required:"true"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`

	CronSpecDelivery      string        `envconfig:"CRON_SPEC_DELIVERY" default:"@every 1m"`
	BroadcastSendInterval time.Duration `envconfig:"BROADCAST_SEND_INTERVAL" default:"50ms"`
	DripWindow            time.Duration `envconfig:"DRIP_WINDOW" default:"5m"`
	LongPollTimeout       time.Duration `envconfig:"LONG_POLL_TIMEOUT" default:"10s"`
	MetricsAddr           string        `envconfig:"METRICS_ADDR" default:":9090"`
	MigrateOnStart        bool          `envconfig:"MIGRATE_ON_START" default:"true"`
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.Environment = strings.ToLower(c.Environment)
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.AdminTelegramID == 0 {
		return fmt.Errorf("invalid ADMIN_TELEGRAM_ID: must be non-zero")
	}
	if c.DripWindow <= 0 {
		return fmt.Errorf("invalid DRIP_WINDOW %s: must be positive", c.DripWindow)
	}
	if c.BroadcastSendInterval < 0 {
		return fmt.Errorf("invalid BROADCAST_SEND_INTERVAL %s: must not be negative", c.BroadcastSendInterval)
	}
	if strings.TrimSpace(c.CronSpecDelivery) == "" {
		return fmt.Errorf("CRON_SPEC_DELIVERY is empty")
	}
	return nil
}
