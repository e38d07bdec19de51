// Package config provides centralized configuration management.
// Defaults and discovery are wired in the command layer through viper;
// Load decodes the merged viper state into the typed Config and keeps
// the result available process-wide.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/rosterwatch/rosterwatch/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// Load decodes the merged viper state (defaults, config file, env,
// flags) into a validated Config. It is safe to call multiple times;
// the latest result wins.
func Load(ctx context.Context) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if strings.TrimSpace(cfg.Roster.TargetsFile) == "" {
		cfg.Roster.TargetsFile = DefaultTargetsPath()
	}
	if strings.TrimSpace(cfg.Roster.IgnoreFile) == "" {
		cfg.Roster.IgnoreFile = DefaultIgnorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	setConfig(cfg)

	return cfg, nil
}

// EnvKeyReplacer maps nested config keys onto environment variable
// segments, so fetch.concurrency binds to {PREFIX}_FETCH_CONCURRENCY.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// appNamesForPaths returns the config name and binary name from app
// identity, falling back to "rosterwatch" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = "rosterwatch"
	binaryName = "rosterwatch"

	identity, err := appid.Get(context.Background())
	if err != nil || identity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(identity.ConfigName) != "" {
		configName = identity.ConfigName
	}
	if strings.TrimSpace(identity.BinaryName) != "" {
		binaryName = identity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultCacheDir returns the XDG-compliant cache directory for the app.
func DefaultCacheDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppCacheDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}

// DefaultTargetsPath returns the default roster file location.
func DefaultTargetsPath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./targets.json"
	}
	return filepath.Join(dataDir, "targets.json")
}

// DefaultIgnorePath returns the default ignore file location.
func DefaultIgnorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./ignore.json"
	}
	return filepath.Join(dataDir, "ignore.json")
}
