package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	pebblestore "github.com/skade/drossel-journal/internal/storage/pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is the journal directory.
	DataDir string `json:"dataDir"`
	// Fsync is the durability mode: always|interval|never.
	Fsync string `json:"fsync"`
	// FsyncIntervalMs is the group-commit window when Fsync is "interval".
	FsyncIntervalMs int    `json:"fsyncIntervalMs"`
	LogLevel        string `json:"logLevel"`
	LogFormat       string `json:"logFormat"`
}

// Default returns built-in defaults. Fsync defaults to "always" because
// the journal's no-duplicate-after-pop guarantee depends on it.
func Default() Config {
	return Config{
		Fsync:           "always",
		FsyncIntervalMs: 5,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FsyncMode maps the configured fsync string to the store's mode.
func (c Config) FsyncMode() (pebblestore.FsyncMode, error) {
	switch c.Fsync {
	case "always", "":
		return pebblestore.FsyncModeAlways, nil
	case "interval":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	}
	return pebblestore.FsyncModeUnspecified, fmt.Errorf("config: invalid fsync %q; use always|interval|never", c.Fsync)
}

// FsyncInterval returns the group-commit window as a duration.
func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}
