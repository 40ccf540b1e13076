package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Trading TradingConfig `yaml:"trading"`
	CLOB    CLOBConfig    `yaml:"clob"`
	Storage StorageConfig `yaml:"storage"`
	Email   EmailConfig   `yaml:"email"`
	Log     LogConfig     `yaml:"log"`
}

// TradingConfig controls whether the process is allowed to touch the venue
// and how often the Settlement Monitor ticks (spec.md §6: "Live trading
// requires both flags flipped and CLOB credentials present").
type TradingConfig struct {
	EnableTrading     bool   `yaml:"enable_trading"`
	DryRun            bool   `yaml:"dry_run"`
	MonitorSeconds    int    `yaml:"monitor_interval_seconds"`
	WebhookWorkers    int    `yaml:"webhook_workers"`
	WebhookBatchSize  int    `yaml:"webhook_batch_size"`
	WebhookPollSeconds int   `yaml:"webhook_poll_seconds"`
	DryRunCSVPath     string `yaml:"dry_run_csv_path"`
}

// CLOBConfig holds the Polymarket CLOB base URL and L2 HMAC credentials.
type CLOBConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Secret     string `yaml:"secret"`
	Passphrase string `yaml:"passphrase"`
}

// HasCredentials reports whether every L2 credential field is present.
func (c CLOBConfig) HasCredentials() bool {
	return c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// StorageConfig controls where durable state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// EmailConfig holds SendGrid delivery settings for the Notification
// Dispatcher's email channel.
type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config at path, then applies .env and environment
// variable overrides, and fills in defaults for anything left unset.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	cfg.Trading.DryRun = true // safe default, overridable by YAML or TRADING_DRY_RUN
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// MonitorInterval returns the Settlement Monitor's tick period.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Trading.MonitorSeconds) * time.Second
}

// WebhookPollInterval returns the webhook worker pool's queue poll period.
func (c *Config) WebhookPollInterval() time.Duration {
	return time.Duration(c.Trading.WebhookPollSeconds) * time.Second
}

// LiveTradingEnabled reports whether the process should place real orders:
// both flags must be flipped and CLOB credentials must be present.
func (c *Config) LiveTradingEnabled() bool {
	return c.Trading.EnableTrading && !c.Trading.DryRun && c.CLOB.HasCredentials()
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v, ok := parseBoolEnv("ENABLE_TRADING"); ok {
		cfg.Trading.EnableTrading = v
	}
	if v, ok := parseBoolEnv("TRADING_DRY_RUN"); ok {
		cfg.Trading.DryRun = v
	}
	if v := os.Getenv("CLOB_BASE_URL"); v != "" {
		cfg.CLOB.BaseURL = v
	}
	if v := os.Getenv("POLY_API_KEY"); v != "" {
		cfg.CLOB.APIKey = v
	}
	if v := os.Getenv("POLY_SECRET"); v != "" {
		cfg.CLOB.Secret = v
	}
	if v := os.Getenv("POLY_PASSPHRASE"); v != "" {
		cfg.CLOB.Passphrase = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.Email.SendGridAPIKey = v
	}
	if v := os.Getenv("ALERT_FROM_EMAIL"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func parseBoolEnv(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func setDefaults(cfg *Config) {
	if cfg.Trading.MonitorSeconds <= 0 {
		cfg.Trading.MonitorSeconds = 60
	}
	if cfg.Trading.WebhookWorkers <= 0 {
		cfg.Trading.WebhookWorkers = 4
	}
	if cfg.Trading.WebhookBatchSize <= 0 {
		cfg.Trading.WebhookBatchSize = 20
	}
	if cfg.Trading.WebhookPollSeconds <= 0 {
		cfg.Trading.WebhookPollSeconds = 5
	}
	if cfg.Trading.DryRunCSVPath == "" {
		cfg.Trading.DryRunCSVPath = "dry_run_trades.csv"
	}
	if cfg.CLOB.BaseURL == "" {
		cfg.CLOB.BaseURL = "https://clob.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "tradingcore.db"
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "PolySignal Alerts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
