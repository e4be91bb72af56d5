package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Index      IndexConfig      `mapstructure:"index"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	API        APIConfig        `mapstructure:"api"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds the trade feed configuration
type PolymarketConfig struct {
	DataAPIURL   string        `mapstructure:"data_api_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Limit        int           `mapstructure:"limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// ExchangeConfig holds the spot price feed configuration. When the
// feed is disabled the static Prices map is used instead, so price
// target markets still resolve without an external dependency.
type ExchangeConfig struct {
	BaseURL     string             `mapstructure:"base_url"`
	Enabled     bool               `mapstructure:"enabled"`
	Timeout     time.Duration      `mapstructure:"timeout"`
	Assets      []string           `mapstructure:"assets"`
	HistoryDays int                `mapstructure:"history_days"`
	Prices      map[string]float64 `mapstructure:"prices"`
}

// IndexConfig holds the tunables of the index computation itself
type IndexConfig struct {
	CategoryWeights map[string]float64 `mapstructure:"category_weights"`
	Sensitivity     map[string]int     `mapstructure:"sensitivity"`
	Baseline        float64            `mapstructure:"baseline"`
	SmoothingWindow time.Duration      `mapstructure:"smoothing_window"`
	HistoryTail     int                `mapstructure:"history_tail"`
}

// AlertsConfig controls threshold alerting on the smoothed index
type AlertsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Threshold float64       `mapstructure:"threshold"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// APIConfig holds the HTTP read API configuration
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Enabled    bool   `mapstructure:"enabled"`
}

// StorageConfig holds the snapshot diagnostics configuration
type StorageConfig struct {
	MaxSnapshots int    `mapstructure:"max_snapshots"`
	DBPath       string `mapstructure:"db_path"`
	Enabled      bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("CPMI")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polymarket defaults
	v.SetDefault("polymarket.data_api_url", "https://data-api.polymarket.com")
	v.SetDefault("polymarket.poll_interval", "5m")
	v.SetDefault("polymarket.limit", 500)
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay", "2s")

	// Exchange defaults. The static price table keeps price target
	// extraction working when the feed is disabled.
	v.SetDefault("exchange.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("exchange.enabled", false)
	v.SetDefault("exchange.timeout", "15s")
	v.SetDefault("exchange.assets", []string{"bitcoin", "ethereum", "solana"})
	v.SetDefault("exchange.history_days", 30)
	v.SetDefault("exchange.prices", map[string]float64{
		"bitcoin":  95000,
		"ethereum": 3500,
		"solana":   180,
	})

	// Index defaults
	v.SetDefault("index.category_weights", map[string]float64{
		"bitcoin-price":  0.40,
		"ethereum-price": 0.30,
		"solana-price":   0.10,
		"regulation":     0.10,
		"adoption":       0.10,
	})
	v.SetDefault("index.sensitivity", map[string]int{
		"volume":     8,
		"recency":    6,
		"impact":     7,
		"market_cap": 5,
		"volatility": 4,
	})
	v.SetDefault("index.baseline", 100.0)
	v.SetDefault("index.smoothing_window", "1h")
	v.SetDefault("index.history_tail", 20)

	// Alert defaults
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.threshold", 10.0)
	v.SetDefault("alerts.cooldown", "30m")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "2s")

	// API defaults
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.enabled", true)

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.max_snapshots", 1000)
	v.SetDefault("storage.db_path", "./data/cpmi.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Polymarket.DataAPIURL == "" {
		return fmt.Errorf("polymarket.data_api_url is required")
	}
	if c.Polymarket.PollInterval < 10*time.Second {
		return fmt.Errorf("polymarket.poll_interval must be at least 10 seconds")
	}
	if c.Polymarket.Limit < 1 || c.Polymarket.Limit > 1000 {
		return fmt.Errorf("polymarket.limit must be between 1 and 1000")
	}
	if c.Polymarket.MaxRetries < 0 {
		return fmt.Errorf("polymarket.max_retries must not be negative")
	}

	if c.Exchange.Enabled {
		if c.Exchange.BaseURL == "" {
			return fmt.Errorf("exchange.base_url is required when exchange is enabled")
		}
		if len(c.Exchange.Assets) == 0 {
			return fmt.Errorf("exchange.assets must contain at least one asset when exchange is enabled")
		}
		if c.Exchange.HistoryDays < 2 {
			return fmt.Errorf("exchange.history_days must be at least 2")
		}
	}

	if len(c.Index.CategoryWeights) == 0 {
		return fmt.Errorf("index.category_weights must contain at least one category")
	}
	for name, w := range c.Index.CategoryWeights {
		if w < 0 {
			return fmt.Errorf("index.category_weights[%s] must not be negative", name)
		}
	}
	for name, s := range c.Index.Sensitivity {
		if s < 0 || s > 10 {
			return fmt.Errorf("index.sensitivity[%s] must be between 0 and 10", name)
		}
	}
	if c.Index.Baseline <= 0 {
		return fmt.Errorf("index.baseline must be positive")
	}
	if c.Index.SmoothingWindow < 1*time.Minute {
		return fmt.Errorf("index.smoothing_window must be at least 1 minute")
	}
	if c.Index.HistoryTail < 1 {
		return fmt.Errorf("index.history_tail must be at least 1")
	}

	if c.Alerts.Enabled {
		if c.Alerts.Threshold <= 0 {
			return fmt.Errorf("alerts.threshold must be positive")
		}
		if c.Alerts.Cooldown < 1*time.Minute {
			return fmt.Errorf("alerts.cooldown must be at least 1 minute")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.API.Enabled && c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required when api is enabled")
	}

	if c.Storage.Enabled {
		if c.Storage.MaxSnapshots < 1 {
			return fmt.Errorf("storage.max_snapshots must be at least 1")
		}
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required when storage is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
