package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "figlang.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 6, cfg.Batch.Concurrency)
	assert.Equal(t, 10, cfg.Batch.ProgressEvery)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 0.5, cfg.Retry.InitialBackoffSecs, 0.001)

	require.Len(t, cfg.Tiers.Detection, 3)
	assert.Equal(t, "gemini", cfg.Tiers.Detection[0].Vendor)
	assert.Equal(t, "gemini-2.5-flash", cfg.Tiers.Detection[0].Model)
	assert.Zero(t, cfg.Tiers.Detection[0].ThinkingBudget)
	assert.Equal(t, "gemini-2.5-pro", cfg.Tiers.Detection[1].Model)
	assert.Equal(t, 4096, cfg.Tiers.Detection[1].ThinkingBudget)
	assert.Equal(t, "anthropic", cfg.Tiers.Detection[2].Vendor)

	// Validation skips the flash tier but keeps the cross-vendor fallback.
	require.Len(t, cfg.Tiers.Validation, 2)
	assert.Equal(t, "gemini-2.5-pro", cfg.Tiers.Validation[0].Model)
	assert.Equal(t, "anthropic", cfg.Tiers.Validation[1].Vendor)

	assert.Contains(t, cfg.Pricing, "gemini/gemini-2.5-flash")
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/figlang
log:
  level: debug
  format: console
batch:
  concurrency: 2
keys:
  gemini: test-key
tiers:
  detection:
    - vendor: gemini
      model: gemini-2.5-flash
      max_output_tokens: 4096
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/figlang", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 2, cfg.Batch.Concurrency)
	assert.Equal(t, "test-key", cfg.Keys.Gemini)
	require.Len(t, cfg.Tiers.Detection, 1)
	assert.Equal(t, 4096, cfg.Tiers.Detection[0].MaxOutputTokens)
	// Validation tiers were not configured, so defaults fill in.
	require.Len(t, cfg.Tiers.Validation, 2)
}

func TestLoadFromEnv(t *testing.T) {
	chtemp(t)
	t.Setenv("FIGLANG_STORE_DRIVER", "postgres")
	t.Setenv("FIGLANG_KEYS_ANTHROPIC", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "sk-test", cfg.Keys.Anthropic)
}

func TestRetryConfigResilience(t *testing.T) {
	r := RetryConfig{MaxAttempts: 5, InitialBackoffSecs: 1.5, Multiplier: 3.0}
	cfg := r.Resilience()

	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, cfg.InitialBackoff)
	assert.InDelta(t, 3.0, cfg.Multiplier, 0.001)
	// Unset fields keep defaults.
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.InDelta(t, 0.25, cfg.JitterFraction, 0.001)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
