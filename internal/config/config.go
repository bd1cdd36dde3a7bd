package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/carlos-olivera/data-bs-cripto/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Coingecko CoingeckoConfig `mapstructure:"coingecko"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs sampling and analysis cadence.
type SchedulerConfig struct {
	SampleInterval   time.Duration `mapstructure:"sample_interval"`
	AnalysisInterval time.Duration `mapstructure:"analysis_interval"`
	AlignToBucket    bool          `mapstructure:"align_to_bucket"`
	RunAtStart       bool          `mapstructure:"run_at_start"`
	AdvisoryLockKey  int64         `mapstructure:"advisory_lock_key"`
	StartupDelay     time.Duration `mapstructure:"startup_delay"`
}

// BinanceConfig captures Binance P2P search connectivity.
type BinanceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Fiat           string        `mapstructure:"fiat"`
	Asset          string        `mapstructure:"asset"`
	PageSize       int           `mapstructure:"page_size"`
	VerifiedOnly   bool          `mapstructure:"verified_only"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// CoingeckoConfig covers the reference spot-price source.
type CoingeckoConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	CoinID         string        `mapstructure:"coin_id"`
	VsCurrency     string        `mapstructure:"vs_currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AnalysisConfig tunes the trend detector.
type AnalysisConfig struct {
	Lookback        time.Duration      `mapstructure:"lookback"`
	OffersToAverage int                `mapstructure:"offers_to_average"`
	Thresholds      map[string]float64 `mapstructure:"thresholds"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRIPTOWATCH")
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
	v.SetDefault("app.name", "criptowatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.sample_interval", "10m")
	v.SetDefault("scheduler.analysis_interval", "4h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.run_at_start", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x626f6275))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("binance.base_url", "https://p2p.binance.com")
	v.SetDefault("binance.fiat", "BOB")
	v.SetDefault("binance.asset", "USDT")
	v.SetDefault("binance.page_size", 10)
	v.SetDefault("binance.verified_only", true)
	v.SetDefault("binance.max_retries", 3)
	v.SetDefault("binance.retry_delay", "60s")
	v.SetDefault("binance.request_timeout", "10s")
	v.SetDefault("binance.user_agent", "criptowatch/1.0")

	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.coin_id", "bitcoin")
	v.SetDefault("coingecko.vs_currency", "usd")
	v.SetDefault("coingecko.request_timeout", "10s")
	v.SetDefault("coingecko.user_agent", "criptowatch/1.0")

	v.SetDefault("analysis.lookback", "4h")
	v.SetDefault("analysis.offers_to_average", 10)
	v.SetDefault("analysis.thresholds", map[string]float64{
		"bol2usdt": 2.0,
		"usdt2bol": 2.0,
		"btc2usd":  5.0,
	})

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "5s")
	v.SetDefault("database.migrations_path", "migrations")
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.SampleInterval <= 0 {
		return fmt.Errorf("scheduler.sample_interval must be greater than zero")
	}
	if c.Scheduler.AnalysisInterval <= 0 {
		return fmt.Errorf("scheduler.analysis_interval must be greater than zero")
	}
	if c.Binance.Fiat == "" || c.Binance.Asset == "" {
		return fmt.Errorf("binance.fiat and binance.asset are required")
	}
	if c.Binance.PageSize <= 0 {
		return fmt.Errorf("binance.page_size must be greater than zero")
	}
	if c.Binance.MaxRetries <= 0 {
		return fmt.Errorf("binance.max_retries must be greater than zero")
	}
	if c.Analysis.Lookback <= 0 {
		return fmt.Errorf("analysis.lookback must be greater than zero")
	}
	if c.Analysis.OffersToAverage <= 0 {
		return fmt.Errorf("analysis.offers_to_average must be greater than zero")
	}
	for field, threshold := range c.Analysis.Thresholds {
		if threshold < 0 {
			return fmt.Errorf("analysis.thresholds.%s cannot be negative", field)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
