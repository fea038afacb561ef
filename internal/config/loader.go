package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EDGESCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EDGESCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Gamma ──
	setStr(&cfg.Gamma.Host, "EDGESCAN_GAMMA_HOST")
	setDuration(&cfg.Gamma.FetchTimeout, "EDGESCAN_GAMMA_FETCH_TIMEOUT")

	// ── Estimator ──
	setFloat64(&cfg.Estimator.BaseMultiplier, "EDGESCAN_ESTIMATOR_BASE_MULTIPLIER")
	setFloat64(&cfg.Estimator.MaxProbability, "EDGESCAN_ESTIMATOR_MAX_PROBABILITY")

	// ── Scanner ──
	setFloat64(&cfg.Scanner.MinLiquidity, "EDGESCAN_SCANNER_MIN_LIQUIDITY")
	setFloat64(&cfg.Scanner.MaxPriceCeiling, "EDGESCAN_SCANNER_MAX_PRICE_CEILING")
	setFloat64(&cfg.Scanner.MinExpectedReturn, "EDGESCAN_SCANNER_MIN_EXPECTED_RETURN")
	setInt(&cfg.Scanner.MinDaysRemaining, "EDGESCAN_SCANNER_MIN_DAYS_REMAINING")

	// ── Sizing ──
	setFloat64(&cfg.Sizing.SizeScale, "EDGESCAN_SIZING_SIZE_SCALE")
	setFloat64(&cfg.Sizing.KellyDamping, "EDGESCAN_SIZING_KELLY_DAMPING")
	setFloat64(&cfg.Sizing.MinStake, "EDGESCAN_SIZING_MIN_STAKE")
	setFloat64(&cfg.Sizing.MaxStake, "EDGESCAN_SIZING_MAX_STAKE")

	// ── Engine ──
	setInt(&cfg.Engine.MaxPositions, "EDGESCAN_ENGINE_MAX_POSITIONS")
	setInt(&cfg.Engine.MaxNewPerCycle, "EDGESCAN_ENGINE_MAX_NEW_PER_CYCLE")
	setInt(&cfg.Engine.MaxHoldingDays, "EDGESCAN_ENGINE_MAX_HOLDING_DAYS")
	setFloat64(&cfg.Engine.TakeProfit, "EDGESCAN_ENGINE_TAKE_PROFIT")
	setFloat64(&cfg.Engine.StopLoss, "EDGESCAN_ENGINE_STOP_LOSS")
	setDuration(&cfg.Engine.CycleInterval, "EDGESCAN_ENGINE_CYCLE_INTERVAL")

	// ── Store ──
	setStr(&cfg.Store.Backend, "EDGESCAN_STORE_BACKEND")
	setStr(&cfg.Store.Path, "EDGESCAN_STORE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "EDGESCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "EDGESCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EDGESCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EDGESCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EDGESCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EDGESCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EDGESCAN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EDGESCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EDGESCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EDGESCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "EDGESCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "EDGESCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EDGESCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EDGESCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EDGESCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EDGESCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EDGESCAN_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.PriceTTL, "EDGESCAN_REDIS_PRICE_TTL")
	setDuration(&cfg.Redis.MaxStale, "EDGESCAN_REDIS_MAX_STALE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "EDGESCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EDGESCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EDGESCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "EDGESCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EDGESCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EDGESCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EDGESCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EDGESCAN_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "EDGESCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "EDGESCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "EDGESCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "EDGESCAN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "EDGESCAN_MODE")
	setStr(&cfg.LogLevel, "EDGESCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
