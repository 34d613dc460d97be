package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silstore/storefront/core/config"
)

type backendConfig struct {
	BaseURL string `env:"TEST_API_BASE_URL" envDefault:"http://localhost:8000"`
	Timeout int    `env:"TEST_API_TIMEOUT" envDefault:"15"`
}

type requiredConfig struct {
	Token string `env:"TEST_REQUIRED_TOKEN,required"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg backendConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, 15, cfg.Timeout)
}

func TestLoad_CachesPerType(t *testing.T) {
	var first backendConfig
	require.NoError(t, config.Load(&first))

	// Changing the environment after the first load has no effect; the cached
	// value wins.
	t.Setenv("TEST_API_BASE_URL", "http://changed.example")

	var second backendConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first, second)
}

func TestLoad_RequiredMissing(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	assert.Error(t, err)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *backendConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}
