// Package engine is the top-level protocol enforcement surface: it owns
// the episode arena, runs every validation layer over submitted packets,
// fans accepted packets out on the layer buses, and keeps the integrity
// monitor informed.
package engine

import (
	"fmt"
	"log"
	"sync"

	"packetgate/internal/auditlog"
	"packetgate/internal/bus"
	"packetgate/internal/fsm"
	"packetgate/internal/invariant"
	"packetgate/internal/ledger"
	"packetgate/internal/monitor"
	"packetgate/internal/packet"
)

// #region options
// Options toggles individual validation layers, mainly for replaying
// historical fixtures.
type Options struct {
	// DisableFSM skips transition and enforcement errors. Transitions are
	// still applied so episode state keeps tracking the sequence.
	DisableFSM bool
	// DisableInvariants skips the cross-packet invariant errors.
	DisableInvariants bool
	// DisableClock turns off timestamp-based checks (token expiry,
	// directive timeouts).
	DisableClock bool
	// Recorder, when set, persists every validation outcome.
	Recorder ValidationRecorder
}

// ValidationRecorder persists per-packet validation outcomes.
type ValidationRecorder interface {
	RecordValidation(rec auditlog.ValidationRecord) error
}

// #endregion options

// #region outcome
// Outcome is the structured result of submitting one packet.
type Outcome struct {
	OK       bool
	From     fsm.State
	To       fsm.State
	Errors   []string
	Warnings []string
}

// Summary describes an episode's current position.
type Summary struct {
	CorrelationID string
	State         fsm.State
	Packets       int
	Ledger        ledger.Summary
}

// #endregion outcome

// #region engine
// episode is one arena slot. Its mutex serializes all per-episode work;
// validation and application form one atomic step under it.
type episode struct {
	mu      sync.Mutex
	state   *fsm.EpisodeState
	led     *ledger.Ledger
	history []packet.Packet
}

// Engine validates packets against per-episode state. Episodes progress
// independently; only arena lookup takes the engine-wide lock.
type Engine struct {
	opts      Options
	validator *fsm.Validator
	checker   *invariant.Checker
	mon       *monitor.Monitor
	north     *bus.Bus
	south     *bus.Bus

	mu       sync.Mutex
	episodes map[string]*episode
}

// New creates an engine supervised by the given monitor. The monitor is
// subscribed to the integrity layer of both buses.
func New(opts Options, mon *monitor.Monitor) *Engine {
	e := &Engine{
		opts:      opts,
		validator: fsm.NewValidator(fsm.Config{ClockChecks: !opts.DisableClock}),
		checker:   invariant.NewChecker(),
		mon:       mon,
		north:     bus.New(bus.Northbound),
		south:     bus.New(bus.Southbound),
		episodes:  make(map[string]*episode),
	}
	e.north.Subscribe(packet.LayerIntegrity, mon.Observe)
	e.south.Subscribe(packet.LayerIntegrity, mon.Observe)
	return e
}

// Northbound returns the lower-to-higher layer bus for subscribers.
func (e *Engine) Northbound() *bus.Bus { return e.north }

// Southbound returns the higher-to-lower layer bus for subscribers.
func (e *Engine) Southbound() *bus.Bus { return e.south }

// Monitor returns the supervising integrity monitor.
func (e *Engine) Monitor() *monitor.Monitor { return e.mon }

// episodeFor returns the arena slot for a correlation id, creating it on
// first sight. A new episode's budgets come from the first packet's
// envelope and its ledger is registered with the monitor.
func (e *Engine) episodeFor(p packet.Packet) *episode {
	e.mu.Lock()
	defer e.mu.Unlock()

	ep, ok := e.episodes[p.Header.CorrelationID]
	if !ok {
		led := ledger.New(p.Header.CorrelationID, p.MCP.Budgets, p.Header.CreatedAt)
		ep = &episode{
			state: fsm.NewEpisodeState(p.Header.CorrelationID),
			led:   led,
		}
		e.episodes[p.Header.CorrelationID] = ep
		e.mon.RegisterLedger(led)
		log.Printf("[ENGINE] episode %s opened", p.Header.CorrelationID)
	}
	return ep
}

// #endregion engine

// #region submit
// safetyOf maps a packet onto the safety class the monitor gates on.
func safetyOf(p packet.Packet) packet.SafetyClass {
	if dir, ok := p.Payload.(packet.TaskDirective); ok {
		return dir.Safety
	}
	return packet.SafetyRead
}

// lockdownExempt reports whether a packet type passes the halted gate.
func lockdownExempt(t packet.PacketType) bool {
	return t == packet.TypeIntegrityAlert || t == packet.TypeBeliefUpdate
}

// Submit validates one packet against its episode and, on success, applies
// its effects and publishes it. Violations are returned as values; the
// caller retries with a corrected packet if it wants to.
func (e *Engine) Submit(p packet.Packet) Outcome {
	if p.Header.CorrelationID == "" {
		return Outcome{Errors: []string{"packet has no correlation id"}}
	}

	// Cooperative admission gate: the monitor's global mode is checked
	// before any per-episode work. Integrity alerts and belief updates
	// pass even under full lockdown.
	if !lockdownExempt(p.Header.PacketType) {
		if err := e.mon.CheckSafeMode(safetyOf(p)); err != nil {
			return Outcome{Errors: []string{err.Error()}}
		}
	}

	ep := e.episodeFor(p)
	ep.mu.Lock()
	defer ep.mu.Unlock()

	out := Outcome{From: ep.state.Current, To: ep.state.Current}
	if ep.led.Completed() {
		out.Errors = append(out.Errors, fmt.Sprintf("episode %s is complete", p.Header.CorrelationID))
		e.record(p, out)
		return out
	}

	fsmResult := e.validator.Validate(ep.state, ep.led, p)
	out.To = fsmResult.To
	if e.opts.DisableFSM {
		// Disabled layers still report, just without rejecting.
		out.Warnings = append(out.Warnings, fsmResult.Errors...)
	} else {
		out.Errors = append(out.Errors, fsmResult.Errors...)
	}
	out.Warnings = append(out.Warnings, fsmResult.Warnings...)

	// Invariants run even on FSM-rejected packets so one report carries
	// the complete violation list for the packet.
	ctx := invariant.Context{
		Ledger:      ep.led,
		History:     ep.history,
		ClockChecks: !e.opts.DisableClock,
	}
	for _, v := range e.checker.Check(p, ctx) {
		switch {
		case v.Warning || e.opts.DisableInvariants:
			out.Warnings = append(out.Warnings, v.String())
		default:
			out.Errors = append(out.Errors, v.String())
		}
	}

	if len(out.Errors) > 0 {
		out.To = out.From
		e.record(p, out)
		return out
	}

	if fsmResult.OK {
		e.validator.Apply(ep.state, ep.led, p)
	}
	ep.history = append(ep.history, p)
	out.OK = true
	out.To = ep.state.Current

	e.publish(p)
	e.mon.CheckBudget(ep.led, p.Header.CreatedAt)

	// A halt imposed while this packet was in flight locks the episode
	// down. S9_SAFEMODE is only ever entered this way, never by a packet.
	if e.mon.IsHalted() && ep.state.Current != fsm.S9SafeMode {
		fsm.EnterSafeMode(ep.state)
		out.To = fsm.S9SafeMode
		log.Printf("[ENGINE] episode %s locked down in safe mode", p.Header.CorrelationID)
	}

	e.record(p, out)
	return out
}

// publish fans an accepted packet out on the bus matching its direction of
// travel. Integrity alerts raised by the layers climb north, where the
// integrity sink receives from anyone; integrity- and governance-sourced
// traffic otherwise travels south. Delivery failures are logged, never
// propagated.
func (e *Engine) publish(p packet.Packet) {
	b := e.north
	if p.Header.SourceLayer == packet.LayerIntegrity {
		b = e.south
	} else if p.Header.SourceLayer == packet.LayerGovernance && p.Header.PacketType != packet.TypeIntegrityAlert {
		b = e.south
	}
	res := b.Publish(p, nil)
	for _, f := range res.Failures {
		log.Printf("[ENGINE] delivery of %s to %s failed: %s", p.Header.PacketID, f.Layer, f.Err)
	}
}

// record persists the outcome when a recorder is configured.
func (e *Engine) record(p packet.Packet, out Outcome) {
	if e.opts.Recorder == nil {
		return
	}
	err := e.opts.Recorder.RecordValidation(auditlog.ValidationRecord{
		At:            p.Header.CreatedAt,
		CorrelationID: p.Header.CorrelationID,
		PacketID:      p.Header.PacketID,
		PacketType:    string(p.Header.PacketType),
		OK:            out.OK,
		FromState:     string(out.From),
		ToState:       string(out.To),
		Errors:        out.Errors,
		Warnings:      out.Warnings,
	})
	if err != nil {
		log.Printf("[ENGINE] audit record for %s failed: %v", p.Header.PacketID, err)
	}
}

// #endregion submit

// #region episode-ops
// ValidateEpisode submits a packet sequence in order and stops at the
// first failing packet. It returns one outcome per processed packet.
func (e *Engine) ValidateEpisode(packets []packet.Packet) []Outcome {
	var out []Outcome
	for _, p := range packets {
		res := e.Submit(p)
		out = append(out, res)
		if !res.OK {
			break
		}
	}
	return out
}

// EpisodeSummary reports an episode's current state and ledger contents.
func (e *Engine) EpisodeSummary(correlationID string) (Summary, error) {
	e.mu.Lock()
	ep, ok := e.episodes[correlationID]
	e.mu.Unlock()
	if !ok {
		return Summary{}, fmt.Errorf("unknown episode %s", correlationID)
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()
	return Summary{
		CorrelationID: correlationID,
		State:         ep.state.Current,
		Packets:       len(ep.history),
		Ledger:        ep.led.Summary(),
	}, nil
}

// CompleteEpisode marks an episode finished; further packets are rejected.
func (e *Engine) CompleteEpisode(correlationID string) error {
	e.mu.Lock()
	ep, ok := e.episodes[correlationID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown episode %s", correlationID)
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.led.MarkComplete()
	log.Printf("[ENGINE] episode %s completed in %s", correlationID, ep.state.Current)
	return nil
}

// AbandonEpisode cancels an episode's open directives and removes it from
// the arena.
func (e *Engine) AbandonEpisode(correlationID string) error {
	e.mu.Lock()
	ep, ok := e.episodes[correlationID]
	if ok {
		delete(e.episodes, correlationID)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown episode %s", correlationID)
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()
	for _, d := range ep.led.OpenDirectives() {
		ep.led.CloseDirective(d.DirectiveID, ledger.DirectiveCancelled)
	}
	e.mon.UnregisterLedger(correlationID)
	log.Printf("[ENGINE] episode %s abandoned", correlationID)
	return nil
}

// EnterSafeMode forces one episode into its lockdown state.
func (e *Engine) EnterSafeMode(correlationID string) error {
	e.mu.Lock()
	ep, ok := e.episodes[correlationID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown episode %s", correlationID)
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()
	fsm.EnterSafeMode(ep.state)
	return nil
}

// #endregion episode-ops
