// Package config defines the top-level configuration for the scanner and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by EDGESCAN_* environment variables.
type Config struct {
	Gamma     GammaConfig     `toml:"gamma"`
	Estimator EstimatorConfig `toml:"estimator"`
	Scanner   ScannerConfig   `toml:"scanner"`
	Sizing    SizingConfig    `toml:"sizing"`
	Engine    EngineConfig    `toml:"engine"`
	Store     StoreConfig     `toml:"store"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// GammaConfig holds the market data API endpoint and fetch parameters.
type GammaConfig struct {
	Host         string   `toml:"host"`
	FetchTimeout duration `toml:"fetch_timeout"`
}

// EstimatorConfig holds the probability estimation parameters.
type EstimatorConfig struct {
	BaseMultiplier float64 `toml:"base_multiplier"`
	MaxProbability float64 `toml:"max_probability"`
}

// ScannerConfig holds the opportunity screening thresholds.
type ScannerConfig struct {
	MinLiquidity      float64 `toml:"min_liquidity"`
	MaxPriceCeiling   float64 `toml:"max_price_ceiling"`
	MinExpectedReturn float64 `toml:"min_expected_return"`
	MinDaysRemaining  int     `toml:"min_days_remaining"`
}

// SizingConfig holds the position sizing parameters.
type SizingConfig struct {
	SizeScale    float64 `toml:"size_scale"`
	KellyDamping float64 `toml:"kelly_damping"`
	MinStake     float64 `toml:"min_stake"`
	MaxStake     float64 `toml:"max_stake"`
}

// EngineConfig holds portfolio limits, exit thresholds, and cycle timing.
type EngineConfig struct {
	MaxPositions   int      `toml:"max_positions"`
	MaxNewPerCycle int      `toml:"max_new_per_cycle"`
	MaxHoldingDays int      `toml:"max_holding_days"`
	TakeProfit     float64  `toml:"take_profit"`
	StopLoss       float64  `toml:"stop_loss"`
	CycleInterval  duration `toml:"cycle_interval"`
}

// StoreConfig selects the durable position backend.
type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend string `toml:"backend"`
	// Path is the position log location for the file backend.
	Path string `toml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// disabled the scanner runs without the price cache, cycle lock, and signal
// bus.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl"`
	MaxStale   duration `toml:"max_stale"`
}

// S3Config holds S3-compatible object storage parameters for report and
// archive uploads. Optional.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Gamma: GammaConfig{
			Host:         "https://gamma-api.polymarket.com",
			FetchTimeout: duration{30 * time.Second},
		},
		Estimator: EstimatorConfig{
			BaseMultiplier: 2.5,
			MaxProbability: 0.45,
		},
		Scanner: ScannerConfig{
			MinLiquidity:      5_000,
			MaxPriceCeiling:   0.15,
			MinExpectedReturn: 0.30,
			MinDaysRemaining:  7,
		},
		Sizing: SizingConfig{
			SizeScale:    1_000,
			KellyDamping: 0.5,
			MinStake:     10,
			MaxStake:     50,
		},
		Engine: EngineConfig{
			MaxPositions:   20,
			MaxNewPerCycle: 5,
			MaxHoldingDays: 30,
			TakeProfit:     0.30,
			StopLoss:       0.05,
			CycleInterval:  duration{15 * time.Minute},
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    "positions.json",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "edgescan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			PriceTTL:   duration{10 * time.Minute},
			MaxStale:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "edgescan-data",
			ForcePathStyle: true,
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"scan":    true,
	"loop":    true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"file":     true,
	"postgres": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, loop, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Gamma.Host == "" {
		errs = append(errs, "gamma: host must not be empty")
	}
	if c.Gamma.FetchTimeout.Duration <= 0 {
		errs = append(errs, "gamma: fetch_timeout must be > 0")
	}

	if c.Estimator.BaseMultiplier <= 0 {
		errs = append(errs, "estimator: base_multiplier must be > 0")
	}
	if c.Estimator.MaxProbability <= 0 || c.Estimator.MaxProbability >= 1 {
		errs = append(errs, fmt.Sprintf("estimator: max_probability must be in (0, 1), got %g", c.Estimator.MaxProbability))
	}

	if c.Scanner.MinLiquidity < 0 {
		errs = append(errs, "scanner: min_liquidity must be >= 0")
	}
	if c.Scanner.MaxPriceCeiling <= 0 || c.Scanner.MaxPriceCeiling >= 1 {
		errs = append(errs, fmt.Sprintf("scanner: max_price_ceiling must be in (0, 1), got %g", c.Scanner.MaxPriceCeiling))
	}
	if c.Scanner.MinExpectedReturn <= 0 {
		errs = append(errs, "scanner: min_expected_return must be > 0")
	}
	if c.Scanner.MinDaysRemaining < 0 {
		errs = append(errs, "scanner: min_days_remaining must be >= 0")
	}

	if c.Sizing.SizeScale <= 0 {
		errs = append(errs, "sizing: size_scale must be > 0")
	}
	if c.Sizing.KellyDamping <= 0 || c.Sizing.KellyDamping > 1 {
		errs = append(errs, fmt.Sprintf("sizing: kelly_damping must be in (0, 1], got %g", c.Sizing.KellyDamping))
	}
	if c.Sizing.MinStake <= 0 {
		errs = append(errs, "sizing: min_stake must be > 0")
	}
	if c.Sizing.MaxStake < c.Sizing.MinStake {
		errs = append(errs, "sizing: max_stake must be >= min_stake")
	}

	if c.Engine.MaxPositions < 1 {
		errs = append(errs, "engine: max_positions must be >= 1")
	}
	if c.Engine.MaxNewPerCycle < 1 {
		errs = append(errs, "engine: max_new_per_cycle must be >= 1")
	}
	if c.Engine.MaxHoldingDays < 1 {
		errs = append(errs, "engine: max_holding_days must be >= 1")
	}
	if c.Engine.TakeProfit <= 0 || c.Engine.TakeProfit >= 1 {
		errs = append(errs, fmt.Sprintf("engine: take_profit must be in (0, 1), got %g", c.Engine.TakeProfit))
	}
	if c.Engine.StopLoss <= 0 || c.Engine.StopLoss >= c.Engine.TakeProfit {
		errs = append(errs, fmt.Sprintf("engine: stop_loss must be in (0, take_profit), got %g", c.Engine.StopLoss))
	}
	if (c.Mode == "loop" || c.Mode == "monitor") && c.Engine.CycleInterval.Duration <= 0 {
		errs = append(errs, "engine: cycle_interval must be > 0 for loop and monitor modes")
	}

	if !validBackends[strings.ToLower(c.Store.Backend)] {
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: file, postgres)", c.Store.Backend))
	}
	if strings.ToLower(c.Store.Backend) == "file" && c.Store.Path == "" {
		errs = append(errs, "store: path must not be empty for the file backend")
	}
	if strings.ToLower(c.Store.Backend) == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}
	if c.Mode == "monitor" && !c.Redis.Enabled {
		errs = append(errs, "redis: must be enabled for monitor mode (it consumes the signal bus)")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
