// Package config loads application configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/backend"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/cost"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/resilience"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig  `yaml:"store" mapstructure:"store"`
	Keys    backend.Keys `yaml:"keys" mapstructure:"keys"`
	Tiers   TiersConfig  `yaml:"tiers" mapstructure:"tiers"`
	Retry   RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Batch   BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Pricing cost.Rates   `yaml:"pricing" mapstructure:"pricing"`
	Log     LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool,omitempty" mapstructure:"pool"`
}

// TiersConfig holds the escalation chain, cheapest first.
type TiersConfig struct {
	Detection  []backend.Profile `yaml:"detection" mapstructure:"detection"`
	Validation []backend.Profile `yaml:"validation" mapstructure:"validation"`
}

// RetryConfig configures same-tier transport retries.
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSecs float64 `yaml:"initial_backoff_secs" mapstructure:"initial_backoff_secs"`
	MaxBackoffSecs     float64 `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
	Multiplier         float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction     float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Resilience converts the file representation into runtime retry settings.
// Unset fields fall through to the package defaults.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffSecs > 0 {
		cfg.InitialBackoff = time.Duration(r.InitialBackoffSecs * float64(time.Second))
	}
	if r.MaxBackoffSecs > 0 {
		cfg.MaxBackoff = time.Duration(r.MaxBackoffSecs * float64(time.Second))
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.JitterFraction > 0 {
		cfg.JitterFraction = r.JitterFraction
	}
	return cfg
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FIGLANG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "figlang.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.concurrency", 6)
	v.SetDefault("batch.progress_every", 10)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_secs", 0.5)
	v.SetDefault("retry.max_backoff_secs", 30.0)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	// Empty defaults register the keys with viper so env-only values
	// survive Unmarshal.
	v.SetDefault("keys.gemini", "")
	v.SetDefault("keys.anthropic", "")
	v.SetDefault("keys.openai", "")
	v.SetDefault("keys.openai_base_url", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Tiers.Detection) == 0 {
		cfg.Tiers.Detection = DefaultDetectionTiers()
	}
	if len(cfg.Tiers.Validation) == 0 {
		cfg.Tiers.Validation = DefaultValidationTiers()
	}
	if len(cfg.Pricing) == 0 {
		cfg.Pricing = cost.DefaultRates()
	}

	return &cfg, nil
}

// DefaultDetectionTiers is the stock escalation chain: a fast model first,
// a reasoning model second, and a different vendor last so policy blocks at
// one vendor do not doom the passage.
func DefaultDetectionTiers() []backend.Profile {
	return []backend.Profile{
		{
			Vendor:            "gemini",
			Model:             "gemini-2.5-flash",
			MaxOutputTokens:   8192,
			Timeout:           90 * time.Second,
			RequestsPerMinute: 60,
		},
		{
			Vendor:            "gemini",
			Model:             "gemini-2.5-pro",
			MaxOutputTokens:   16384,
			ThinkingBudget:    4096,
			Timeout:           180 * time.Second,
			RequestsPerMinute: 30,
		},
		{
			Vendor:            "anthropic",
			Model:             "claude-sonnet-4-5-20250929",
			MaxOutputTokens:   16384,
			ThinkingBudget:    4096,
			Timeout:           300 * time.Second,
			RequestsPerMinute: 30,
		},
	}
}

// DefaultValidationTiers reuses the detection chain without the flash tier.
// Validation prompts carry every candidate for a passage, so they start at
// the reasoning model.
func DefaultValidationTiers() []backend.Profile {
	return DefaultDetectionTiers()[1:]
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
