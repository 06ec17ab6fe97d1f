// Package replay runs golden episode fixtures through a fresh engine and
// compares the per-packet outcomes against the recorded expectations. It
// is the primary regression harness: a change to the transition table or
// an invariant shows up as fixture drift.
package replay

import (
	"fmt"

	"packetgate/internal/engine"
	"packetgate/internal/fsm"
	"packetgate/internal/monitor"
	"packetgate/internal/packet"
)

// #region types
// StepResult is the comparison of one packet's outcome against the
// fixture's expectation.
type StepResult struct {
	PacketID string
	OK       bool
	ToState  fsm.State
	Errors   []string
	Warnings []string
	Match    bool
	Mismatch string // empty when Match
}

// Summary aggregates one fixture run.
type Summary struct {
	Description string
	TotalSteps  int
	Matches     int
	Mismatches  int
}

// Passed reports whether every step matched its expectation.
func (s Summary) Passed() bool {
	return s.Mismatches == 0
}

// #endregion types

// #region run
// Run replays a fixture from scratch on a fresh engine. Structural
// validation runs on every raw packet before decoding; a structural or
// decode failure on a packet the fixture expects to pass is a mismatch.
func Run(f *Fixture) ([]StepResult, Summary, error) {
	mon := monitor.New(monitor.DefaultConfig(), nil)
	eng := engine.New(engine.Options{DisableClock: !f.ClockChecks}, mon)

	results := make([]StepResult, 0, len(f.Packets))
	sum := Summary{Description: f.Description, TotalSteps: len(f.Packets)}

	for i, raw := range f.Packets {
		exp := f.Expected[i]
		step := StepResult{PacketID: exp.PacketID}

		if err := packet.CheckStructure(raw); err != nil {
			step.Errors = append(step.Errors, err.Error())
			step.compare(exp)
			results = append(results, step)
			sum.count(step)
			continue
		}

		p, err := packet.Unmarshal(raw)
		if err != nil {
			return nil, sum, fmt.Errorf("packet %d (%s): %w", i, exp.PacketID, err)
		}
		if p.Header.PacketID != exp.PacketID {
			return nil, sum, fmt.Errorf("packet %d: fixture expects id %s, wire carries %s",
				i, exp.PacketID, p.Header.PacketID)
		}

		out := eng.Submit(p)
		step.OK = out.OK
		step.ToState = out.To
		step.Errors = out.Errors
		step.Warnings = out.Warnings
		step.compare(exp)
		results = append(results, step)
		sum.count(step)
	}
	return results, sum, nil
}

// compare fills Match/Mismatch against the expectation.
func (r *StepResult) compare(exp ExpectedOutcome) {
	switch {
	case r.OK != exp.OK:
		r.Mismatch = fmt.Sprintf("expected ok=%v, got ok=%v (errors: %v)", exp.OK, r.OK, r.Errors)
	case exp.ToState != "" && string(r.ToState) != exp.ToState:
		r.Mismatch = fmt.Sprintf("expected state %s, got %s", exp.ToState, r.ToState)
	default:
		r.Match = true
	}
}

func (s *Summary) count(step StepResult) {
	if step.Match {
		s.Matches++
	} else {
		s.Mismatches++
	}
}

// RunFile loads and replays one fixture file.
func RunFile(path string) ([]StepResult, Summary, error) {
	f, err := LoadFixture(path)
	if err != nil {
		return nil, Summary{}, err
	}
	return Run(f)
}

// #endregion run
