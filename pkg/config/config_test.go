package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Valid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTAddress())
	assert.Equal(t, "localhost:6379", cfg.RedisAddress())
	assert.Equal(t, time.Minute, cfg.EvaluationInterval())
	assert.Equal(t, 10*time.Second, cfg.RefreshCooldown())
	assert.Equal(t, 48*time.Hour, cfg.StateTTL())
	assert.Equal(t, []string{SourceMQTT, SourceSunCalc}, cfg.AnchorSources)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JEEVES_MIN_KELVIN", "1800")
	t.Setenv("JEEVES_TOP_EXPONENT", "2.5")
	t.Setenv("JEEVES_PHASE_MODEL", "plateau")
	t.Setenv("JEEVES_ANCHOR_SOURCES", "redis, suncalc")
	t.Setenv("JEEVES_EVALUATION_INTERVAL_SEC", "not-a-number")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, 1800, cfg.MinKelvin)
	assert.Equal(t, 2.5, cfg.TopExponent)
	assert.Equal(t, "plateau", cfg.PhaseModel)
	assert.Equal(t, []string{"redis", "suncalc"}, cfg.AnchorSources)
	assert.Equal(t, 60, cfg.EvaluationIntervalSec)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circadian.yaml")
	yamlData := `
sensor_name: bedroom
min: 2200
max: 6000
bottom_exponent: 3
anchor_sources: [redis]
time_zone: UTC
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "bedroom", cfg.SensorName)
	assert.Equal(t, 2200, cfg.MinKelvin)
	assert.Equal(t, 4500, cfg.MidKelvin)
	assert.Equal(t, 6000, cfg.MaxKelvin)
	assert.Equal(t, 3.0, cfg.BottomExponent)
	assert.Equal(t, []string{"redis"}, cfg.AnchorSources)
	require.NoError(t, cfg.Validate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadFromFile_Errors(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min: [1, 2"), 0o600))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty broker", func(c *Config) { c.MQTTBroker = "" }},
		{"bad mqtt port", func(c *Config) { c.MQTTPort = 0 }},
		{"bad api port", func(c *Config) { c.APIPort = 70000 }},
		{"empty sensor", func(c *Config) { c.SensorName = "" }},
		{"zero interval", func(c *Config) { c.EvaluationIntervalSec = 0 }},
		{"negative cooldown", func(c *Config) { c.RefreshCooldownSec = -1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"no sources", func(c *Config) { c.AnchorSources = nil }},
		{"unknown source", func(c *Config) { c.AnchorSources = []string{"astral"} }},
		{"bad latitude", func(c *Config) { c.Latitude = 91 }},
		{"bad time zone", func(c *Config) { c.TimeZone = "Mars/Olympus_Mons" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
