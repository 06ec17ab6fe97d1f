package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packetgate.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[monitor]
warn_ratio = 0.7
contradiction_limit = 5

[engine]
disable_clock = true

[audit]
db_path = "/var/lib/packetgate/audit.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.WarnRatio != 0.7 || cfg.Monitor.ContradictionLimit != 5 {
		t.Fatalf("monitor overlay failed: %+v", cfg.Monitor)
	}
	if cfg.Monitor.HaltRatio != 1.0 || !cfg.Monitor.HaltOnVeto || !cfg.Monitor.HaltOnBudget {
		t.Fatalf("absent keys must keep defaults: %+v", cfg.Monitor)
	}
	if !cfg.Engine.DisableClock || cfg.Engine.DisableFSM {
		t.Fatalf("engine overlay failed: %+v", cfg.Engine)
	}
	if cfg.Audit.DBPath != "/var/lib/packetgate/audit.db" {
		t.Fatalf("audit overlay failed: %+v", cfg.Audit)
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"warn ratio over one", "[monitor]\nwarn_ratio = 1.5\n"},
		{"halt below warn", "[monitor]\nwarn_ratio = 0.9\nhalt_ratio = 0.5\n"},
		{"negative contradiction limit", "[monitor]\ncontradiction_limit = -1\n"},
		{"malformed toml", "[monitor\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
