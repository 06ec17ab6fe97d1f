// Package config loads the engine's TOML configuration file. Absent keys
// keep their defaults; a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// #region types
// Config is the full file layout.
type Config struct {
	Monitor MonitorConfig `toml:"monitor"`
	Engine  EngineConfig  `toml:"engine"`
	Audit   AuditConfig   `toml:"audit"`
}

// MonitorConfig mirrors monitor.Config.
type MonitorConfig struct {
	WarnRatio          float64 `toml:"warn_ratio"`
	HaltRatio          float64 `toml:"halt_ratio"`
	ContradictionLimit int     `toml:"contradiction_limit"`
	HaltOnVeto         bool    `toml:"halt_on_veto"`
	HaltOnBudget       bool    `toml:"halt_on_budget"`
	RevokeOnHalt       bool    `toml:"revoke_on_halt"`
}

// EngineConfig holds the validation-layer toggles.
type EngineConfig struct {
	DisableFSM        bool `toml:"disable_fsm"`
	DisableInvariants bool `toml:"disable_invariants"`
	DisableClock      bool `toml:"disable_clock"`
}

// AuditConfig selects the event sink. An empty path keeps events
// in memory.
type AuditConfig struct {
	DBPath string `toml:"db_path"`
}

// #endregion types

// #region load
// Default returns the production configuration.
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			WarnRatio:          0.8,
			HaltRatio:          1.0,
			ContradictionLimit: 3,
			HaltOnVeto:         true,
			HaltOnBudget:       true,
			RevokeOnHalt:       true,
		},
	}
}

// Load reads a TOML file over the defaults. A missing file returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects threshold settings the monitor cannot act on.
func (c Config) Validate() error {
	if c.Monitor.WarnRatio <= 0 || c.Monitor.WarnRatio > 1 {
		return fmt.Errorf("monitor.warn_ratio must be in (0, 1], got %v", c.Monitor.WarnRatio)
	}
	if c.Monitor.HaltRatio < c.Monitor.WarnRatio {
		return fmt.Errorf("monitor.halt_ratio %v is below warn_ratio %v", c.Monitor.HaltRatio, c.Monitor.WarnRatio)
	}
	if c.Monitor.ContradictionLimit < 0 {
		return fmt.Errorf("monitor.contradiction_limit must be non-negative, got %d", c.Monitor.ContradictionLimit)
	}
	return nil
}

// #endregion load
