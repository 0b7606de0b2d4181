package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/config"
)

type streamSettings struct {
	IdleTimeout time.Duration  `env:"PULSE_TEST_IDLE_TIMEOUT" envDefault:"5m"`
	Workers     int            `env:"PULSE_TEST_WORKERS" envDefault:"4"`
	Limits      map[string]int `env:"PULSE_TEST_LIMITS" envDefault:"web:100,sms:5"`
}

type requiredSettings struct {
	Secret string `env:"PULSE_TEST_REQUIRED_SECRET,required"`
}

type prefixed struct {
	Addr string `env:"ADDR" envDefault:":8080"`
}

func TestLoad(t *testing.T) {
	t.Setenv("PULSE_TEST_WORKERS", "8")

	var cfg streamSettings
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, map[string]int{"web": 100, "sms": 5}, cfg.Limits)

	t.Setenv("PULSE_TEST_WORKERS", "16")
	var again streamSettings
	require.NoError(t, config.Load(&again))
	assert.Equal(t, 8, again.Workers, "second load is served from cache")
}

func TestLoad_Errors(t *testing.T) {
	var cfg requiredSettings
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	assert.ErrorIs(t, config.Load[streamSettings](nil), config.ErrNilPointer)
	assert.Panics(t, func() { config.MustLoad(&requiredSettings{}) })
}

func TestParse_Prefix(t *testing.T) {
	t.Setenv("ADMIN_ADDR", ":9090")

	var cfg prefixed
	require.NoError(t, config.Parse(&cfg, "ADMIN_"))
	assert.Equal(t, ":9090", cfg.Addr)
}
