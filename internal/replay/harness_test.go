package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// #region fixture-tests

// TestGoldenFixtures replays every testdata fixture and compares each
// packet's outcome against the recorded expectation. This is the primary
// regression test: a change to the transition table, an enforcement rule,
// or an invariant shows up here as drift.
func TestGoldenFixtures(t *testing.T) {
	paths, err := FindFixtures("testdata")
	if err != nil {
		t.Fatalf("FindFixtures: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures under testdata")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			steps, sum, err := RunFile(path)
			if err != nil {
				t.Fatalf("RunFile: %v", err)
			}
			for i, step := range steps {
				if !step.Match {
					t.Errorf("step %d (%s): %s", i, step.PacketID, step.Mismatch)
				}
			}
			if !sum.Passed() {
				t.Fatalf("%s: %d/%d steps matched", sum.Description, sum.Matches, sum.TotalSteps)
			}
		})
	}
}

// #endregion fixture-tests

// #region loader-tests

func TestLoadFixtureRejectsLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	content := `{"description": "d", "packets": [{}], "expected": []}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestRunFlagsMalformedPacket(t *testing.T) {
	f := &Fixture{
		Description: "structurally broken packet",
		Packets:     []json.RawMessage{json.RawMessage(`{"header": {"packet_id": "pkt-1"}}`)},
		Expected:    []ExpectedOutcome{{PacketID: "pkt-1", OK: true, ToState: "S1_SENSE"}},
	}
	steps, sum, err := Run(f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Passed() || steps[0].Match {
		t.Fatal("structural failure on an expected-pass packet must be a mismatch")
	}
}

// #endregion loader-tests
