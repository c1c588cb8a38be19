package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymkit/pkg/config"
)

type workerConfig struct {
	PullInterval time.Duration `env:"TEST_WORKER_PULL_INTERVAL" envDefault:"1s"`
	MaxRetries   int           `env:"TEST_WORKER_MAX_RETRIES" envDefault:"3"`
	SenderName   string        `env:"TEST_WORKER_SENDER" envDefault:"gymkit"`
}

type requiredConfig struct {
	APIKey string `env:"TEST_REQUIRED_API_KEY,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply", func(t *testing.T) {
		config.ResetCache()

		var cfg workerConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, time.Second, cfg.PullInterval)
		assert.Equal(t, 3, cfg.MaxRetries)
		assert.Equal(t, "gymkit", cfg.SenderName)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_WORKER_PULL_INTERVAL", "250ms")
		t.Setenv("TEST_WORKER_MAX_RETRIES", "5")

		var cfg workerConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 250*time.Millisecond, cfg.PullInterval)
		assert.Equal(t, 5, cfg.MaxRetries)
	})

	t.Run("cached between loads", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_WORKER_MAX_RETRIES", "7")

		var first workerConfig
		require.NoError(t, config.Load(&first))

		// Later environment changes do not affect the cached value
		t.Setenv("TEST_WORKER_MAX_RETRIES", "9")
		var second workerConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, 7, second.MaxRetries)
	})

	t.Run("missing required variable", func(t *testing.T) {
		config.ResetCache()

		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		config.ResetCache()

		err := config.Load[workerConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}
