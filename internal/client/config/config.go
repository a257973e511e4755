// Package config loads runtime configuration for the shiftledger CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults.
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
package config

import (
	"os"
	"path/filepath"
)

// Config holds runtime settings for the CLI.
type Config struct {
	// ServerAddr is the base URL of the sync server.
	ServerAddr string
	// DatabasePath is the SQLite file holding the local ledger.
	DatabasePath string
	// KeyringDir holds the device secret and wrapped session keys.
	KeyringDir string
}

// LoadDefaults populates c with sensible defaults. Local state lives under
// the per-user data directory so it survives reinstalls of the binary.
func (c *Config) LoadDefaults() {
	base := dataDir()
	c.ServerAddr = "http://127.0.0.1:8080"
	c.DatabasePath = filepath.Join(base, "ledger.db")
	c.KeyringDir = filepath.Join(base, "keys")
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}

func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "shiftledger")
	}
	return ".shiftledger"
}
