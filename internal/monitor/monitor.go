// Package monitor implements the integrity supervisor: a coarse global
// mode machine over potentially many registered episode ledgers, with an
// append-only event log of every alert and mode change.
package monitor

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"packetgate/internal/ledger"
	"packetgate/internal/packet"
)

// #region mode
// Mode is the global safe-mode level. It orders strictly: each level
// includes the restrictions of the ones before it.
type Mode string

const (
	ModeNormal     Mode = "NORMAL"
	ModeCautious   Mode = "CAUTIOUS"
	ModeRestricted Mode = "RESTRICTED"
	ModeHalted     Mode = "HALTED"
)

// #endregion mode

// #region config
// Config tunes the monitor's thresholds and halt behavior.
type Config struct {
	// WarnRatio is the budget consumption ratio that emits a warning.
	WarnRatio float64
	// HaltRatio is the ratio that emits a critical alert.
	HaltRatio float64
	// ContradictionLimit is the per-episode contradiction count past which
	// the global mode drops to CAUTIOUS.
	ContradictionLimit int
	// HaltOnVeto halts the system on a constitutional veto.
	HaltOnVeto bool
	// HaltOnBudget halts the system on a critical budget alert. Off, the
	// alert is recorded but the mode is left alone.
	HaltOnBudget bool
	// RevokeOnHalt revokes the episode's tokens when a critical budget
	// alert requests a halt.
	RevokeOnHalt bool
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		WarnRatio:          0.8,
		HaltRatio:          1.0,
		ContradictionLimit: 3,
		HaltOnVeto:         true,
		HaltOnBudget:       true,
		RevokeOnHalt:       true,
	}
}

// #endregion config

// #region events
// Event is one recorded supervisory occurrence: an alert, a mode change,
// or a token action.
type Event struct {
	EventID       string
	At            time.Time
	CorrelationID string
	AlertType     packet.AlertType
	Severity      packet.Severity
	Detail        string
	Mode          Mode
}

// EventFilter selects events from the log. Zero values match everything.
type EventFilter struct {
	CorrelationID string
	Severity      packet.Severity
}

// EventSink records supervisory events. Implementations must be safe for
// concurrent use; the monitor appends while readers query.
type EventSink interface {
	Append(ev Event) error
	Query(f EventFilter) ([]Event, error)
}

// MemorySink is the in-memory EventSink.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append records one event.
func (s *MemorySink) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Query returns events matching the filter in append order.
func (s *MemorySink) Query(f EventFilter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if f.CorrelationID != "" && ev.CorrelationID != f.CorrelationID {
			continue
		}
		if f.Severity != "" && ev.Severity != f.Severity {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// #endregion events

// #region monitor
// Callback receives each event as it is recorded. It runs under the
// monitor's lock; keep it short.
type Callback func(ev Event)

// Monitor supervises registered episode ledgers. All methods are safe for
// concurrent use; mode transitions are linearizable under one mutex.
type Monitor struct {
	config   Config
	sink     EventSink
	callback Callback

	mu      sync.Mutex
	mode    Mode
	ledgers map[string]*ledger.Ledger
}

// New creates a monitor in NORMAL mode recording to the given sink.
func New(config Config, sink EventSink) *Monitor {
	if sink == nil {
		sink = NewMemorySink()
	}
	return &Monitor{
		config:  config,
		sink:    sink,
		mode:    ModeNormal,
		ledgers: make(map[string]*ledger.Ledger),
	}
}

// SetCallback installs an optional event callback.
func (m *Monitor) SetCallback(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// RegisterLedger places an episode ledger under supervision.
func (m *Monitor) RegisterLedger(led *ledger.Ledger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[led.CorrelationID()] = led
}

// UnregisterLedger removes an episode from supervision.
func (m *Monitor) UnregisterLedger(correlationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ledgers, correlationID)
}

// Mode returns the current global mode.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// IsHalted reports whether the system is halted.
func (m *Monitor) IsHalted() bool {
	return m.Mode() == ModeHalted
}

// Events queries the event log.
func (m *Monitor) Events(f EventFilter) ([]Event, error) {
	return m.sink.Query(f)
}

// #endregion monitor

// #region checks
// Observe is the bus handler: it reacts to integrity alerts in transit.
// A constitutional veto from the governance layer revokes every token for
// the episode and, when configured, halts the system. Veto authority
// belongs to governance alone; a veto claimed by any other layer is
// recorded and ignored.
func (m *Monitor) Observe(p packet.Packet) error {
	alert, ok := p.Payload.(packet.IntegrityAlert)
	if !ok {
		return nil
	}
	if alert.AlertType != packet.AlertConstitutionalVeto {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Header.SourceLayer != packet.LayerGovernance {
		log.Printf("[MONITOR] ignoring constitutional veto from %s on %s", p.Header.SourceLayer, p.Header.CorrelationID)
		m.record(p.Header.CorrelationID, packet.AlertConstitutionalVeto, packet.SeverityWarning,
			fmt.Sprintf("veto from non-governance layer %s ignored", p.Header.SourceLayer), p.Header.CreatedAt)
		return nil
	}

	revoked := 0
	if led, ok := m.ledgers[p.Header.CorrelationID]; ok {
		revoked = led.RevokeAllTokens()
	}
	log.Printf("[MONITOR] constitutional veto on %s: revoked %d tokens", p.Header.CorrelationID, revoked)
	m.record(p.Header.CorrelationID, packet.AlertConstitutionalVeto, packet.SeverityCritical,
		fmt.Sprintf("constitutional veto: revoked %d tokens (%s)", revoked, alert.Detail), p.Header.CreatedAt)

	if m.config.HaltOnVeto {
		m.transition(ModeHalted, p.Header.CorrelationID, p.Header.CreatedAt)
	}
	return nil
}

// CheckBudget evaluates an episode's budget consumption against the
// thresholds and emits warning or critical alerts.
func (m *Monitor) CheckBudget(led *ledger.Ledger, now time.Time) {
	ratio := led.Budget().MaxRatio()
	if ratio < m.config.WarnRatio {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := led.CorrelationID()
	if ratio >= m.config.HaltRatio {
		revoked := 0
		if m.config.HaltOnBudget && m.config.RevokeOnHalt {
			revoked = led.RevokeAllTokens()
		}
		log.Printf("[MONITOR] budget critical on %s: ratio %.2f, revoked %d tokens", id, ratio, revoked)
		m.record(id, packet.AlertBudgetCritical, packet.SeverityCritical,
			fmt.Sprintf("budget ratio %.2f at or above halt threshold %.2f", ratio, m.config.HaltRatio), now)
		if m.config.HaltOnBudget {
			m.transition(ModeHalted, id, now)
		}
		return
	}

	log.Printf("[MONITOR] budget warning on %s: ratio %.2f", id, ratio)
	m.record(id, packet.AlertBudgetWarning, packet.SeverityWarning,
		fmt.Sprintf("budget ratio %.2f at or above warning threshold %.2f", ratio, m.config.WarnRatio), now)
}

// CheckToken emits alerts for a dead token without mutating it.
func (m *Monitor) CheckToken(correlationID string, tok ledger.ActiveToken, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok.Revoked {
		m.record(correlationID, packet.AlertTokenRevoked, packet.SeverityWarning,
			fmt.Sprintf("token %s is revoked", tok.TokenID), now)
		return
	}
	if !tok.IsValid(now, true) {
		m.record(correlationID, packet.AlertTokenInvalid, packet.SeverityWarning,
			fmt.Sprintf("token %s is expired or exhausted", tok.TokenID), now)
	}
}

// FlagContradiction appends to the episode's contradiction log and drops
// the global mode to CAUTIOUS once the count passes the limit.
func (m *Monitor) FlagContradiction(led *ledger.Ledger, detail string, now time.Time) {
	count := led.FlagContradiction(detail, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	id := led.CorrelationID()
	m.record(id, packet.AlertContradiction, packet.SeverityWarning,
		fmt.Sprintf("contradiction %d: %s", count, detail), now)
	if count > m.config.ContradictionLimit && m.mode == ModeNormal {
		log.Printf("[MONITOR] %d contradictions on %s exceeds limit %d", count, id, m.config.ContradictionLimit)
		m.transition(ModeCautious, id, now)
	}
}

// CheckSafeMode reports whether an operation of the given safety class may
// proceed under the current mode: RESTRICTED blocks mutating operations,
// HALTED blocks everything.
func (m *Monitor) CheckSafeMode(class packet.SafetyClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.mode {
	case ModeHalted:
		return fmt.Errorf("system is HALTED: all operations blocked")
	case ModeRestricted:
		if class.Mutating() {
			return fmt.Errorf("system is RESTRICTED: %s operations blocked", class)
		}
	}
	return nil
}

// SetMode forces a mode, recording the transition. Used by operators and
// tests; automatic transitions go through the check methods.
func (m *Monitor) SetMode(mode Mode, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition(mode, "", now)
}

// #endregion checks

// #region internal
// transition changes mode and records the change. Caller holds the lock.
func (m *Monitor) transition(to Mode, correlationID string, now time.Time) {
	if m.mode == to {
		return
	}
	from := m.mode
	m.mode = to
	log.Printf("[MONITOR] mode %s -> %s", from, to)
	m.record(correlationID, packet.AlertSafeModeChange, packet.SeverityCritical,
		fmt.Sprintf("mode %s -> %s", from, to), now)
}

// record appends one event to the sink and invokes the callback. Caller
// holds the lock.
func (m *Monitor) record(correlationID string, at packet.AlertType, sev packet.Severity, detail string, now time.Time) {
	ev := Event{
		EventID:       uuid.NewString(),
		At:            now,
		CorrelationID: correlationID,
		AlertType:     at,
		Severity:      sev,
		Detail:        detail,
		Mode:          m.mode,
	}
	if err := m.sink.Append(ev); err != nil {
		log.Printf("[MONITOR] event sink append failed: %v", err)
	}
	if m.callback != nil {
		m.callback(ev)
	}
}

// #endregion internal
