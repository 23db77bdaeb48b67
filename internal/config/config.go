package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fundamentals/internal/alphavantage"
	"fundamentals/internal/cache"
	"fundamentals/internal/fetcher"
	"fundamentals/internal/pipeline"
	"fundamentals/internal/ratelimit"
)

// Default freshness per data kind, in days
const (
	DefaultMaxAgeEarnings  = 1
	DefaultMaxAgeValuation = 7
	DefaultMaxAgeRevenue   = 1
	DefaultMaxAgeCashFlow  = 1
)

// MaxAgeConfig holds the freshness policy of each data kind
type MaxAgeConfig struct {
	Earnings  cache.MaxAge `mapstructure:"earnings"`
	Valuation cache.MaxAge `mapstructure:"valuation"`
	Revenue   cache.MaxAge `mapstructure:"revenue"`
	CashFlow  cache.MaxAge `mapstructure:"cashflow"`
}

// Config holds all configuration for the fundamentals command.
type Config struct {
	// Upstream API
	AlphavantageAPIKey  string `mapstructure:"alphavantage_api_key"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`
	RequestsPerMinute   int    `mapstructure:"requests_per_minute"`
	RetryCount          int    `mapstructure:"retry_count"`
	// Timeout bounds each upstream request; hitting it only fails that identifier
	Timeout time.Duration `mapstructure:"timeout"`

	// Cache and batching
	CacheDir   string        `mapstructure:"cache_dir"`
	ChunkSize  int           `mapstructure:"chunk_size"`
	ChunkPause time.Duration `mapstructure:"chunk_pause"`
	MaxAge     MaxAgeConfig  `mapstructure:"max_age"`

	LogLevel string `mapstructure:"log_level"`
}

// Options controls where Load looks for configuration
type Options struct {
	// ConfigFile is an explicit config file; when empty config.yaml is searched
	// for in the working directory and $HOME/.fundamentals
	ConfigFile string
	// Flags are command line flags bound over every other source
	Flags *pflag.FlagSet
}

// envBindings maps config keys to environment variables
var envBindings = map[string]string{
	"alphavantage_api_key":  "ALPHAVANTAGE_API_KEY",
	"alphavantage_base_url": "ALPHAVANTAGE_BASE_URL",
	"requests_per_minute":   "FUNDAMENTALS_REQUESTS_PER_MINUTE",
	"retry_count":           "FUNDAMENTALS_RETRY_COUNT",
	"timeout":               "FUNDAMENTALS_TIMEOUT",
	"cache_dir":             "FUNDAMENTALS_CACHE_DIR",
	"chunk_size":            "FUNDAMENTALS_CHUNK_SIZE",
	"chunk_pause":           "FUNDAMENTALS_CHUNK_PAUSE",
	"log_level":             "FUNDAMENTALS_LOG_LEVEL",
	"max_age.earnings":      "FUNDAMENTALS_MAX_AGE_EARNINGS",
	"max_age.valuation":     "FUNDAMENTALS_MAX_AGE_VALUATION",
	"max_age.revenue":       "FUNDAMENTALS_MAX_AGE_REVENUE",
	"max_age.cashflow":      "FUNDAMENTALS_MAX_AGE_CASHFLOW",
}

// flagBindings maps config keys to command line flag names
var flagBindings = map[string]string{
	"cache_dir":   "cache-dir",
	"chunk_size":  "chunk-size",
	"chunk_pause": "chunk-pause",
	"log_level":   "log-level",
}

// Load reads configuration from environment variables and the optional config file.
// Environment variables take precedence over config file values.
//
// Expected environment variables:
//   - ALPHAVANTAGE_API_KEY (required for commands that reach upstream)
//   - ALPHAVANTAGE_BASE_URL (optional, defaults to production)
//   - FUNDAMENTALS_CACHE_DIR, FUNDAMENTALS_CHUNK_SIZE, FUNDAMENTALS_CHUNK_PAUSE
//   - FUNDAMENTALS_REQUESTS_PER_MINUTE, FUNDAMENTALS_RETRY_COUNT, FUNDAMENTALS_TIMEOUT
//   - FUNDAMENTALS_LOG_LEVEL
//   - FUNDAMENTALS_MAX_AGE_EARNINGS, FUNDAMENTALS_MAX_AGE_VALUATION, FUNDAMENTALS_MAX_AGE_REVENUE,
//     FUNDAMENTALS_MAX_AGE_CASHFLOW
//     (days, or "preserve")
func Load(opts Options) (*Config, error) {
	v := viper.New()

	v.SetDefault("alphavantage_base_url", alphavantage.DefaultBaseURL)
	v.SetDefault("requests_per_minute", ratelimit.DefaultAlphaVantagePerMinute)
	v.SetDefault("retry_count", fetcher.DefaultRetryCount)
	v.SetDefault("timeout", fetcher.DefaultTimeout.String())
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("chunk_size", pipeline.DefaultChunkSize)
	v.SetDefault("chunk_pause", pipeline.DefaultChunkPause.String())
	v.SetDefault("log_level", "info")
	v.SetDefault("max_age.earnings", DefaultMaxAgeEarnings)
	v.SetDefault("max_age.valuation", DefaultMaxAgeValuation)
	v.SetDefault("max_age.revenue", DefaultMaxAgeRevenue)
	v.SetDefault("max_age.cashflow", DefaultMaxAgeCashFlow)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fundamentals")

		// Read config file (ignore if not found)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if opts.Flags != nil {
		for key, name := range flagBindings {
			if flag := opts.Flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	config := &Config{}
	hook := mapstructure.ComposeDecodeHookFunc(
		maxAgeHook,
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(config, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// RequireAPIKey reports a missing upstream credential
func (c *Config) RequireAPIKey() error {
	if c.AlphavantageAPIKey == "" {
		return fmt.Errorf("missing required configuration: %s", envBindings["alphavantage_api_key"])
	}
	return nil
}

// MaxAgeFor returns the configured freshness policy of kind
func (c *Config) MaxAgeFor(kind fetcher.Kind) cache.MaxAge {
	switch kind {
	case fetcher.KindEarnings:
		return c.MaxAge.Earnings
	case fetcher.KindValuation:
		return c.MaxAge.Valuation
	case fetcher.KindRevenue:
		return c.MaxAge.Revenue
	case fetcher.KindCashFlow:
		return c.MaxAge.CashFlow
	default:
		return cache.Disabled()
	}
}

func (c *Config) validate() error {
	var invalid []string
	if c.CacheDir == "" {
		invalid = append(invalid, "cache_dir must not be empty")
	}
	if c.ChunkSize <= 0 {
		invalid = append(invalid, fmt.Sprintf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkPause < 0 {
		invalid = append(invalid, fmt.Sprintf("chunk_pause must not be negative, got %s", c.ChunkPause))
	}
	if c.Timeout < 0 {
		invalid = append(invalid, fmt.Sprintf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.RetryCount < 0 {
		invalid = append(invalid, fmt.Sprintf("retry_count must not be negative, got %d", c.RetryCount))
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}
	return nil
}

// maxAgeHook decodes "preserve" or a number of days into a cache.MaxAge
func maxAgeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(cache.MaxAge{}) {
		return data, nil
	}
	if from == to {
		return data, nil
	}

	s, err := cast.ToStringE(data)
	if err != nil {
		return nil, fmt.Errorf("max age: %w", err)
	}
	return cache.ParseMaxAge(s)
}

// defaultCacheDir is the per-user cache directory, or a local directory when none exists
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "fundamentals")
	}
	return ".fundamentals-cache"
}
