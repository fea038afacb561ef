package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCatchesEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Scanner.MinExpectedReturn = 0
	cfg.Sizing.MaxStake = 1 // below min_stake

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "min_expected_return")
	assert.Contains(t, err.Error(), "max_stake")
}

func TestValidateStopLossBelowTakeProfit(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.StopLoss = 0.40

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_loss")
}

func TestValidateBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Store.Backend = "postgres"
	assert.NoError(t, cfg.Validate())

	cfg.Postgres.Host = ""
	assert.Error(t, cfg.Validate())

	// An explicit DSN replaces the individual fields.
	cfg.Postgres.DSN = "postgres://u:p@db:5432/edgescan"
	assert.NoError(t, cfg.Validate())
}

func TestValidateMonitorNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	assert.Error(t, cfg.Validate())

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestValidateMonitorNeedsCycleInterval(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Redis.Enabled = true
	cfg.Engine.CycleInterval.Duration = 0
	assert.ErrorContains(t, cfg.Validate(), "cycle_interval")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "loop"

[scanner]
min_liquidity = 2500.0

[engine]
cycle_interval = "5m"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "loop", cfg.Mode)
	assert.Equal(t, 2500.0, cfg.Scanner.MinLiquidity)
	assert.Equal(t, 5*time.Minute, cfg.Engine.CycleInterval.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.15, cfg.Scanner.MaxPriceCeiling)
	assert.Equal(t, 2.5, cfg.Estimator.BaseMultiplier)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "scan"`), 0o644))

	t.Setenv("EDGESCAN_MODE", "loop")
	t.Setenv("EDGESCAN_SIZING_MAX_STAKE", "75")
	t.Setenv("EDGESCAN_ENGINE_CYCLE_INTERVAL", "1h")
	t.Setenv("EDGESCAN_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "loop", cfg.Mode)
	assert.Equal(t, 75.0, cfg.Sizing.MaxStake)
	assert.Equal(t, time.Hour, cfg.Engine.CycleInterval.Duration)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadIgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv("EDGESCAN_SIZING_MAX_STAKE", "plenty")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Sizing.MaxStake, cfg.Sizing.MaxStake)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.SecretKey = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Notify.Events = []string{"position_opened"}

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Empty secrets stay empty rather than advertising their absence.
	assert.Empty(t, red.Postgres.DSN)

	// The original is untouched, including through the copied slice.
	red.Notify.Events[0] = "mutated"
	assert.Equal(t, "position_opened", cfg.Notify.Events[0])
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
