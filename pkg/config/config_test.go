package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdesk/notify/pkg/config"
)

type serverTestConfig struct {
	Addr  string `env:"TEST_SERVER_ADDR" envDefault:":8080"`
	Debug bool   `env:"TEST_SERVER_DEBUG" envDefault:"false"`
}

type requiredTestConfig struct {
	Secret string `env:"TEST_REQUIRED_SECRET,required"`
}

type cachedTestConfig struct {
	Value string `env:"TEST_CACHED_VALUE" envDefault:"initial"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		var cfg serverTestConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.False(t, cfg.Debug)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[serverTestConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredTestConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("same type is parsed once per process", func(t *testing.T) {
		t.Setenv("TEST_CACHED_VALUE", "first")

		var first cachedTestConfig
		require.NoError(t, config.Load(&first))
		assert.Equal(t, "first", first.Value)

		// A changed environment is not observed by later loads of the
		// same type; every component sees one consistent configuration.
		t.Setenv("TEST_CACHED_VALUE", "second")

		var second cachedTestConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "first", second.Value)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("returns the config", func(t *testing.T) {
		var cfg serverTestConfig
		config.MustLoad(&cfg)
		assert.Equal(t, ":8080", cfg.Addr)
	})

	t.Run("panics on failure", func(t *testing.T) {
		assert.Panics(t, func() {
			var cfg requiredTestConfig
			config.MustLoad(&cfg)
		})
	})
}
