package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pairwatch/internal/logging"
)

// Price source selectors.
const (
	SourceKraken  = "kraken"
	SourceOnchain = "onchain"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig      `mapstructure:"app"`
	Logging     logging.Config `mapstructure:"logging"`
	Server      ServerConfig   `mapstructure:"server"`
	PriceSource string         `mapstructure:"price_source"`
	Kraken      KrakenConfig   `mapstructure:"kraken"`
	Metadata    MetadataConfig `mapstructure:"metadata"`
	Onchain     OnchainConfig  `mapstructure:"onchain"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Tracker     TrackerConfig  `mapstructure:"tracker"`
	Trackers    []BootTracker  `mapstructure:"trackers"`
	Alerting    AlertingConfig `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig governs the HTTP control surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KrakenConfig captures Kraken public API connectivity.
type KrakenConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MetadataConfig covers the coin metadata lookup.
type MetadataConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	ImageBaseURL   string        `mapstructure:"image_base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TTL            time.Duration `mapstructure:"ttl"`
}

// OnchainConfig covers the aggregator-feed price source.
type OnchainConfig struct {
	RPCURL         string            `mapstructure:"rpc_url"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	Feeds          map[string]string `mapstructure:"feeds"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Redis    RedisConfig   `mapstructure:"redis"`
	PairsTTL time.Duration `mapstructure:"pairs_ttl"`
}

// RedisConfig encapsulates Redis connectivity. An empty addr keeps the
// in-memory cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TrackerConfig governs per-pair polling behaviour.
type TrackerConfig struct {
	Interval        time.Duration   `mapstructure:"interval"`
	HistoryCapacity int             `mapstructure:"history_capacity"`
	FetchTimeout    time.Duration   `mapstructure:"fetch_timeout"`
	Defaults        TrackerDefaults `mapstructure:"defaults"`
}

// TrackerDefaults fill in omitted create-request fields.
type TrackerDefaults struct {
	Units          float64 `mapstructure:"units"`
	MarkupPercent  float64 `mapstructure:"markup_percent"`
	BuyInThreshold float64 `mapstructure:"buy_in_threshold"`
}

// BootTracker describes a tracker started at launch. Zero numeric fields
// fall back to tracker.defaults.
type BootTracker struct {
	Pair           string  `mapstructure:"pair"`
	Units          float64 `mapstructure:"units"`
	MarkupPercent  float64 `mapstructure:"markup_percent"`
	BuyInThreshold float64 `mapstructure:"buy_in_threshold"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAIRWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pairwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("price_source", SourceKraken)

	v.SetDefault("kraken.base_url", "https://api.kraken.com")
	v.SetDefault("kraken.request_timeout", "10s")
	v.SetDefault("kraken.user_agent", "pairwatch/1.0")

	v.SetDefault("metadata.enabled", true)
	v.SetDefault("metadata.base_url", "https://min-api.cryptocompare.com")
	v.SetDefault("metadata.image_base_url", "https://www.cryptocompare.com")
	v.SetDefault("metadata.request_timeout", "10s")
	v.SetDefault("metadata.ttl", "24h")

	v.SetDefault("onchain.request_timeout", "10s")

	v.SetDefault("cache.pairs_ttl", "1h")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("tracker.interval", "1s")
	v.SetDefault("tracker.history_capacity", 300)
	v.SetDefault("tracker.fetch_timeout", "5s")
	v.SetDefault("tracker.defaults.units", 1.0)
	v.SetDefault("tracker.defaults.markup_percent", 5.0)
	v.SetDefault("tracker.defaults.buy_in_threshold", 0.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "5m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be greater than zero")
	}
	if c.PriceSource != SourceKraken && c.PriceSource != SourceOnchain {
		return fmt.Errorf("price_source must be %q or %q, got %q", SourceKraken, SourceOnchain, c.PriceSource)
	}
	if c.PriceSource == SourceOnchain && c.Onchain.RPCURL == "" {
		return fmt.Errorf("onchain.rpc_url must be configured for the onchain price source")
	}
	if c.Tracker.Interval <= 0 {
		return fmt.Errorf("tracker.interval must be greater than zero")
	}
	if c.Tracker.HistoryCapacity <= 0 {
		return fmt.Errorf("tracker.history_capacity must be greater than zero")
	}
	if c.Tracker.FetchTimeout <= 0 {
		return fmt.Errorf("tracker.fetch_timeout must be greater than zero")
	}
	if c.Tracker.Defaults.Units <= 0 {
		return fmt.Errorf("tracker.defaults.units must be greater than zero")
	}
	if c.Tracker.Defaults.MarkupPercent <= 0 {
		return fmt.Errorf("tracker.defaults.markup_percent must be greater than zero")
	}
	if c.Tracker.Defaults.BuyInThreshold < 0 {
		return fmt.Errorf("tracker.defaults.buy_in_threshold cannot be negative")
	}
	for i, bt := range c.Trackers {
		if strings.TrimSpace(bt.Pair) == "" {
			return fmt.Errorf("trackers[%d].pair must be set", i)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be configured")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be configured")
		}
	}
	return nil
}
