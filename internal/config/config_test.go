package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundamentals/internal/cache"
	"fundamentals/internal/fetcher"
)

// clearEnv unsets every bound variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestLoad_Success(t *testing.T) {
	clearEnv(t)

	envVars := map[string]string{
		"ALPHAVANTAGE_API_KEY":             "test_alphavantage_key",
		"ALPHAVANTAGE_BASE_URL":            "https://test.alphavantage.co",
		"FUNDAMENTALS_CACHE_DIR":           "/tmp/fundamentals-test",
		"FUNDAMENTALS_CHUNK_SIZE":          "5",
		"FUNDAMENTALS_CHUNK_PAUSE":         "30s",
		"FUNDAMENTALS_REQUESTS_PER_MINUTE": "75",
		"FUNDAMENTALS_RETRY_COUNT":         "1",
		"FUNDAMENTALS_TIMEOUT":             "5s",
		"FUNDAMENTALS_LOG_LEVEL":           "debug",
		"FUNDAMENTALS_MAX_AGE_EARNINGS":    "preserve",
		"FUNDAMENTALS_MAX_AGE_VALUATION":   "0",
		"FUNDAMENTALS_MAX_AGE_REVENUE":     "30",
		"FUNDAMENTALS_MAX_AGE_CASHFLOW":    "90",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "test_alphavantage_key", cfg.AlphavantageAPIKey)
	assert.Equal(t, "https://test.alphavantage.co", cfg.AlphavantageBaseURL)
	assert.Equal(t, "/tmp/fundamentals-test", cfg.CacheDir)
	assert.Equal(t, 5, cfg.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.ChunkPause)
	assert.Equal(t, 75, cfg.RequestsPerMinute)
	assert.Equal(t, 1, cfg.RetryCount)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.Equal(t, cache.Preserve(), cfg.MaxAgeFor(fetcher.KindEarnings))
	assert.Equal(t, cache.Disabled(), cfg.MaxAgeFor(fetcher.KindValuation))
	assert.Equal(t, cache.Days(30), cfg.MaxAgeFor(fetcher.KindRevenue))
	assert.Equal(t, cache.Days(90), cfg.MaxAgeFor(fetcher.KindCashFlow))
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoad_WithDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALPHAVANTAGE_API_KEY", "test_alphavantage_key")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "https://www.alphavantage.co/query", cfg.AlphavantageBaseURL)
	assert.Equal(t, 10, cfg.ChunkSize)
	assert.Equal(t, 2*time.Second, cfg.ChunkPause)
	assert.Equal(t, 5, cfg.RequestsPerMinute)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.CacheDir)

	assert.Equal(t, cache.Days(1), cfg.MaxAgeFor(fetcher.KindEarnings))
	assert.Equal(t, cache.Days(7), cfg.MaxAgeFor(fetcher.KindValuation))
	assert.Equal(t, cache.Days(1), cfg.MaxAgeFor(fetcher.KindRevenue))
	assert.Equal(t, cache.Days(1), cfg.MaxAgeFor(fetcher.KindCashFlow))
	assert.Equal(t, cache.Disabled(), cfg.MaxAgeFor(fetcher.Kind("dividends")))
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err, "the key is only required by commands that reach upstream")

	err = cfg.RequireAPIKey()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALPHAVANTAGE_API_KEY")
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "fundamentals.yaml")
	content := `
alphavantage_api_key: file_key
cache_dir: /var/cache/fundamentals
chunk_size: 20
max_age:
  earnings: preserve
  valuation: 14
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// environment variables win over the file
	t.Setenv("FUNDAMENTALS_CHUNK_SIZE", "4")

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "file_key", cfg.AlphavantageAPIKey)
	assert.Equal(t, "/var/cache/fundamentals", cfg.CacheDir)
	assert.Equal(t, 4, cfg.ChunkSize)
	assert.Equal(t, cache.Preserve(), cfg.MaxAge.Earnings)
	assert.Equal(t, cache.Days(14), cfg.MaxAge.Valuation)
	assert.Equal(t, cache.Days(1), cfg.MaxAge.Revenue)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestLoad_Flags(t *testing.T) {
	clearEnv(t)
	t.Setenv("FUNDAMENTALS_CACHE_DIR", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cache-dir", "", "")
	flags.Int("chunk-size", 0, "")
	flags.Duration("chunk-pause", 0, "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--cache-dir", "/from/flag", "--chunk-pause", "1m"}))

	cfg, err := Load(Options{Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.CacheDir)
	assert.Equal(t, time.Minute, cfg.ChunkPause)
	// unchanged flags do not shadow defaults
	assert.Equal(t, 10, cfg.ChunkSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "zero chunk size",
			env:     map[string]string{"FUNDAMENTALS_CHUNK_SIZE": "0"},
			wantErr: "chunk_size must be positive",
		},
		{
			name:    "negative pause",
			env:     map[string]string{"FUNDAMENTALS_CHUNK_PAUSE": "-1s"},
			wantErr: "chunk_pause must not be negative",
		},
		{
			name:    "negative timeout",
			env:     map[string]string{"FUNDAMENTALS_TIMEOUT": "-5s"},
			wantErr: "timeout must not be negative",
		},
		{
			name:    "bad max age",
			env:     map[string]string{"FUNDAMENTALS_MAX_AGE_EARNINGS": "forever"},
			wantErr: "failed to unmarshal config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load(Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
