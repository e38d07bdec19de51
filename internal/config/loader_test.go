package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeFixture marshals a config tree to YAML and points viper at it.
func writeFixture(t *testing.T, tree map[string]any) {
	t.Helper()

	data, err := yaml.Marshal(tree)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
}

func baseFixture() map[string]any {
	return map[string]any{
		"api": map[string]any{
			"base_url": "https://api.example.com",
			"key":      "secret",
		},
		"fetch": map[string]any{
			"concurrency": 4,
			"timeout":     "15s",
		},
		"rate": map[string]any{
			"cap_per_minute": 100,
			"min_interval":   "620ms",
			"min_penalty":    "5s",
		},
		"retry": map[string]any{
			"max_attempts":      5,
			"backoff_base":      "600ms",
			"backoff_ceiling":   "8s",
			"honor_retry_after": true,
		},
		"cache": map[string]any{
			"ttl":     "24h",
			"preload": true,
		},
		"connectivity": map[string]any{
			"probe_url": "https://probe.example.com",
			"interval":  "15s",
			"threshold": 3,
		},
		"store": map[string]any{
			"driver": "libsql",
			"path":   ":memory:",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "SIMPLE",
		},
	}
}

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDecodesTypedConfig(t *testing.T) {
	resetViper(t)
	writeFixture(t, baseFixture())

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Key)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 100, cfg.Rate.CapPerMinute)
	assert.Equal(t, 620*time.Millisecond, cfg.Rate.MinInterval)
	assert.Equal(t, 5*time.Second, cfg.Rate.MinPenalty)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 600*time.Millisecond, cfg.Retry.BackoffBase)
	assert.Equal(t, 8*time.Second, cfg.Retry.BackoffCeiling)
	assert.True(t, cfg.Retry.HonorRetryAfter)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Preload)
	assert.Equal(t, 3, cfg.Connectivity.Threshold)
	assert.Equal(t, ":memory:", cfg.Store.Path)
}

func TestLoadAppliesRosterDefaults(t *testing.T) {
	resetViper(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	writeFixture(t, baseFixture())

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Roster.TargetsFile)
	assert.Equal(t, "targets.json", filepath.Base(cfg.Roster.TargetsFile))
	assert.Equal(t, "ignore.json", filepath.Base(cfg.Roster.IgnoreFile))
}

func TestLoadDefaultsStorePathWhenUnset(t *testing.T) {
	resetViper(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	fixture := baseFixture()
	delete(fixture, "store")
	writeFixture(t, fixture)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "rosterwatch.db", filepath.Base(cfg.Store.Path))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"zero concurrency", func(m map[string]any) {
			m["fetch"].(map[string]any)["concurrency"] = 0
		}},
		{"zero rate cap", func(m map[string]any) {
			m["rate"].(map[string]any)["cap_per_minute"] = 0
		}},
		{"zero attempts", func(m map[string]any) {
			m["retry"].(map[string]any)["max_attempts"] = 0
		}},
		{"ceiling below base", func(m map[string]any) {
			m["retry"].(map[string]any)["backoff_ceiling"] = "100ms"
		}},
		{"negative ttl", func(m map[string]any) {
			m["cache"].(map[string]any)["ttl"] = "-1h"
		}},
		{"zero threshold", func(m map[string]any) {
			m["connectivity"].(map[string]any)["threshold"] = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetViper(t)
			fixture := baseFixture()
			tc.mutate(fixture)
			writeFixture(t, fixture)

			_, err := Load(context.Background())
			require.Error(t, err)
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	resetViper(t)
	writeFixture(t, baseFixture())

	viper.SetEnvPrefix("ROSTERWATCH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(EnvKeyReplacer())
	t.Setenv("ROSTERWATCH_FETCH_CONCURRENCY", "8")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
}

func TestGetConfigReturnsLatestLoad(t *testing.T) {
	resetViper(t)
	writeFixture(t, baseFixture())

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Fetch.Concurrency, retrieved.Fetch.Concurrency)
}
