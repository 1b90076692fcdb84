package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment"` // "dev" or "prod"
	Binance     BinanceConfig     `mapstructure:"binance"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Signal      SignalConfig      `mapstructure:"signal"`
	Universe    UniverseConfig    `mapstructure:"universe"`
	Liquidation LiquidationConfig `mapstructure:"liquidation"`
	Status      StatusConfig      `mapstructure:"status"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
}

type BinanceConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WSConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Streams []string      `mapstructure:"streams"` // e.g. "!forceOrder@arr"
}

// TelegramConfig configures alert delivery. When ChatIDs is empty the chats are
// discovered from the bot's updates.
type TelegramConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	BotToken      string  `mapstructure:"bot_token"`
	BotTokenParam string  `mapstructure:"bot_token_param"` // SSM parameter name used in prod
	ChatIDs       []int64 `mapstructure:"chat_ids"`
	QueueSize     int     `mapstructure:"queue_size"`
}

type MonitorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Workers       int           `mapstructure:"workers"`
	Capacity      int           `mapstructure:"capacity"` // samples kept per symbol and metric
	ReportUpdates bool          `mapstructure:"report_updates"`
	// Offsets maps a horizon label ("1m", "5m", ...) to a sample offset.
	Offsets map[string]int `mapstructure:"offsets"`
	// OIPeriods maps a horizon label to the exchange open-interest period.
	OIPeriods map[string]string `mapstructure:"oi_periods"`
}

type SignalConfig struct {
	OIDrop5m         float64   `mapstructure:"oi_drop_5m"`
	PriceDrop5m      float64   `mapstructure:"price_drop_5m"`
	VolumeDrop5m     float64   `mapstructure:"volume_drop_5m"`
	StopLossFraction float64   `mapstructure:"stop_loss_fraction"`
	RewardMultiples  []float64 `mapstructure:"reward_multiples"`
	TakeProfitTiers  int       `mapstructure:"take_profit_tiers"`
}

type UniverseConfig struct {
	RefreshEnabled bool     `mapstructure:"refresh_enabled"`
	QuoteSuffix    string   `mapstructure:"quote_suffix"`
	VolumeCeiling  float64  `mapstructure:"volume_ceiling"`
	Symbols        []string `mapstructure:"symbols"` // static universe when refresh is disabled
}

type LiquidationConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	NotionalThreshold float64 `mapstructure:"notional_threshold"`
	DedupeSize        int     `mapstructure:"dedupe_size"`
	UniverseOnly      bool    `mapstructure:"universe_only"`
	Workers           int     `mapstructure:"workers"`
}

type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Password string        `mapstructure:"password"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("binance.rest.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.rest.timeout", 10*time.Second)
	v.SetDefault("binance.ws.url", "wss://fstream.binance.com/ws")
	v.SetDefault("binance.ws.timeout", 30*time.Second)
	v.SetDefault("binance.ws.streams", []string{"!forceOrder@arr"})

	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	// registered so env overrides (e.g. TELEGRAM_BOT_TOKEN) apply without a config file
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.bot_token_param", "")
	v.SetDefault("telegram.queue_size", 256)

	v.SetDefault("monitor.interval", time.Minute)
	v.SetDefault("monitor.workers", 5)
	v.SetDefault("monitor.capacity", 61)
	v.SetDefault("monitor.report_updates", false)
	v.SetDefault("monitor.offsets", map[string]int{"1m": 1, "5m": 5, "15m": 15, "1h": 60})
	v.SetDefault("monitor.oi_periods", map[string]string{
		"1m": "5m", "5m": "5m", "15m": "15m", "1h": "1h", "24h": "1d",
	})

	v.SetDefault("signal.oi_drop_5m", 1.5)
	v.SetDefault("signal.price_drop_5m", 1.3)
	v.SetDefault("signal.volume_drop_5m", 12.0)
	v.SetDefault("signal.stop_loss_fraction", 0.02)
	v.SetDefault("signal.reward_multiples", []float64{2})
	v.SetDefault("signal.take_profit_tiers", 3)

	v.SetDefault("universe.refresh_enabled", true)
	v.SetDefault("universe.quote_suffix", "USDT")
	v.SetDefault("universe.volume_ceiling", 1_000_000.0)

	v.SetDefault("liquidation.enabled", true)
	v.SetDefault("liquidation.notional_threshold", 700_000.0)
	v.SetDefault("liquidation.dedupe_size", 1024)
	v.SetDefault("liquidation.workers", 4)

	v.SetDefault("status.addr", ":8080")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.dbname", "oiwatch")
	v.SetDefault("postgres.sslmode", "disable")
}

// Load loads application configuration using Viper.
// It reads config.yaml from dir (or the default search paths when dir is empty)
// and overrides it with environment variables. A missing file is not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath("./config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., TELEGRAM_BOT_TOKEN)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}

	return &cfg, nil
}

// oiHorizons are the open-interest horizons that must all be contracting for a
// signal.
var oiHorizons = []string{"1m", "5m", "15m", "1h", "24h"}

// Validate checks that thresholds, offsets and capacities are usable.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if c.Monitor.Workers < 1 {
		return fmt.Errorf("monitor workers must be at least 1")
	}
	maxOffset := 0
	for label, off := range c.Monitor.Offsets {
		if off < 1 {
			return fmt.Errorf("offset for %s must be >= 1, got %d", label, off)
		}
		if off > maxOffset {
			maxOffset = off
		}
	}
	if _, ok := c.Monitor.Offsets["5m"]; !ok {
		return fmt.Errorf("offsets must include the 5m horizon used by the signal thresholds")
	}
	for _, label := range oiHorizons {
		if c.Monitor.OIPeriods[label] == "" {
			return fmt.Errorf("oi_periods must map the %s horizon", label)
		}
	}
	if c.Monitor.Capacity <= maxOffset {
		return fmt.Errorf("monitor capacity %d must exceed the largest offset %d", c.Monitor.Capacity, maxOffset)
	}

	if c.Signal.StopLossFraction <= 0 || c.Signal.StopLossFraction >= 1 {
		return fmt.Errorf("stop loss fraction must be in (0, 1), got %v", c.Signal.StopLossFraction)
	}
	if len(c.Signal.RewardMultiples) == 0 {
		return fmt.Errorf("at least one reward multiple must be configured")
	}
	if c.Signal.OIDrop5m < 0 || c.Signal.PriceDrop5m < 0 || c.Signal.VolumeDrop5m < 0 {
		return fmt.Errorf("drop thresholds are magnitudes and must not be negative")
	}

	if c.Universe.RefreshEnabled {
		if c.Universe.QuoteSuffix == "" {
			return fmt.Errorf("universe quote suffix must be set")
		}
	} else if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("static universe requires at least one symbol")
	}

	if c.Telegram.BotToken == "" && c.Telegram.BotTokenParam == "" {
		return fmt.Errorf("telegram bot token is not set")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	return nil
}
