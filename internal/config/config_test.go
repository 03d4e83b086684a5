package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "https://api.tensorlake.ai/documents/v1", cfg.DocAI.BaseURL)
	assert.InDelta(t, 5.0, cfg.DocAI.RequestsPerSec, 0.001)
	assert.Equal(t, 600, cfg.DocAI.PollTimeoutSecs)
	assert.Equal(t, 2, cfg.DocAI.PollIntervalSecs)
	assert.Equal(t, 5, cfg.Pipeline.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FILINGS_DOCAI_KEY", "tl-test-key")
	t.Setenv("FILINGS_STORE_DRIVER", "sqlite")
	t.Setenv("FILINGS_PIPELINE_CONCURRENCY", "12")
	t.Setenv("FILINGS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tl-test-key", cfg.DocAI.Key)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 12, cfg.Pipeline.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Store: StoreConfig{Driver: "sqlite"},
			DocAI: DocAIConfig{Key: "tl-test-key"},
		}
	}

	t.Run("valid sqlite", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, base().Validate())
	})

	t.Run("valid postgres", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Store.Driver = "postgres"
		cfg.Store.DatabaseURL = "postgres://localhost:5432/filings"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.DocAI.Key = ""
		assert.ErrorContains(t, cfg.Validate(), "FILINGS_DOCAI_KEY")
	})

	t.Run("postgres without database url", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Store.Driver = "postgres"
		assert.ErrorContains(t, cfg.Validate(), "FILINGS_STORE_DATABASE_URL")
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()
		cfg := base()
		cfg.Store.Driver = "duckdb"
		assert.ErrorContains(t, cfg.Validate(), "unknown store driver")
	})
}
