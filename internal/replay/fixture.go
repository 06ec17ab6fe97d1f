package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// #region fixture-types

// Fixture is the top-level JSON structure of a golden episode fixture: a
// recorded packet sequence plus the expected per-packet outcomes.
type Fixture struct {
	Description string            `json:"description"`
	ClockChecks bool              `json:"clock_checks"`
	Packets     []json.RawMessage `json:"packets"`
	Expected    []ExpectedOutcome `json:"expected"`
}

// ExpectedOutcome is the recorded verdict for one packet.
type ExpectedOutcome struct {
	PacketID string `json:"packet_id"`
	OK       bool   `json:"ok"`
	ToState  string `json:"to_state"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Packets) != len(f.Expected) {
		return nil, fmt.Errorf("fixture %s: %d packets but %d expected outcomes",
			path, len(f.Packets), len(f.Expected))
	}
	return &f, nil
}

// FindFixtures lists the fixture files under a directory, sorted by name.
func FindFixtures(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan fixtures in %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// #endregion fixture-loader
