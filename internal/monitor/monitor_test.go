package monitor

import (
	"testing"
	"time"

	"packetgate/internal/ledger"
	"packetgate/internal/packet"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testLedger(id string) *ledger.Ledger {
	return ledger.New(id, packet.Budgets{Tokens: 1000, ToolCalls: 10, TimeMS: 60000}, t0)
}

func vetoPacket(correlation string) packet.Packet {
	return packet.Packet{
		Header: packet.Header{
			PacketID:      "pkt-veto",
			PacketType:    packet.TypeIntegrityAlert,
			CreatedAt:     t0,
			SourceLayer:   packet.LayerGovernance,
			CorrelationID: correlation,
		},
		Payload: packet.IntegrityAlert{
			AlertType: packet.AlertConstitutionalVeto,
			Severity:  packet.SeverityCritical,
			Detail:    "forbidden action",
		},
	}
}

func TestVetoRevokesAndHalts(t *testing.T) {
	m := New(DefaultConfig(), nil)
	led := testLedger("ep-1")
	led.IssueToken(ledger.ActiveToken{TokenID: "tok-1", MaxUses: 3, UsesRemaining: 3})
	m.RegisterLedger(led)

	if err := m.Observe(vetoPacket("ep-1")); err != nil {
		t.Fatalf("observe: %v", err)
	}

	tok, _ := led.Token("tok-1")
	if !tok.Revoked {
		t.Fatal("veto must revoke all episode tokens")
	}
	if !m.IsHalted() {
		t.Fatal("veto must halt with HaltOnVeto set")
	}

	evs, err := m.Events(EventFilter{CorrelationID: "ep-1", Severity: packet.SeverityCritical})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) == 0 {
		t.Fatal("veto must be recorded")
	}
}

func TestVetoWithoutHalt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HaltOnVeto = false
	m := New(cfg, nil)
	led := testLedger("ep-1")
	m.RegisterLedger(led)

	m.Observe(vetoPacket("ep-1"))
	if m.IsHalted() {
		t.Fatal("veto must not halt when HaltOnVeto is off")
	}
}

func TestVetoFromNonGovernanceIgnored(t *testing.T) {
	m := New(DefaultConfig(), nil)
	led := testLedger("ep-1")
	led.IssueToken(ledger.ActiveToken{TokenID: "tok-1", MaxUses: 3, UsesRemaining: 3})
	m.RegisterLedger(led)

	forged := vetoPacket("ep-1")
	forged.Header.SourceLayer = packet.LayerSensing
	if err := m.Observe(forged); err != nil {
		t.Fatalf("observe: %v", err)
	}

	if m.IsHalted() {
		t.Fatal("veto from a non-governance layer must not halt")
	}
	tok, _ := led.Token("tok-1")
	if tok.Revoked {
		t.Fatal("veto from a non-governance layer must not revoke tokens")
	}
	evs, _ := m.Events(EventFilter{Severity: packet.SeverityWarning})
	if len(evs) != 1 {
		t.Fatalf("ignored veto must be recorded, got %d events", len(evs))
	}
}

func TestObserveIgnoresOtherPackets(t *testing.T) {
	m := New(DefaultConfig(), nil)
	p := packet.Packet{
		Header:  packet.Header{PacketID: "p1", PacketType: packet.TypeObservation, CorrelationID: "ep-1"},
		Payload: packet.Observation{Subject: "s", Content: "c"},
	}
	if err := m.Observe(p); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if evs, _ := m.Events(EventFilter{}); len(evs) != 0 {
		t.Fatalf("non-alert packets must not produce events, got %d", len(evs))
	}
}

func TestBudgetThresholds(t *testing.T) {
	m := New(DefaultConfig(), nil)
	led := testLedger("ep-1")
	led.IssueToken(ledger.ActiveToken{TokenID: "tok-1", MaxUses: 1, UsesRemaining: 1})
	m.RegisterLedger(led)

	// Below the warning threshold: silence.
	led.Consume(500, 0, 0)
	m.CheckBudget(led, t0)
	if evs, _ := m.Events(EventFilter{}); len(evs) != 0 {
		t.Fatalf("expected no events at 0.5, got %d", len(evs))
	}

	// At 0.85: warning.
	led.Consume(350, 0, 0)
	m.CheckBudget(led, t0)
	evs, _ := m.Events(EventFilter{Severity: packet.SeverityWarning})
	if len(evs) != 1 || evs[0].AlertType != packet.AlertBudgetWarning {
		t.Fatalf("expected one warning, got %+v", evs)
	}
	if m.Mode() != ModeNormal {
		t.Fatalf("warning must not change mode, got %s", m.Mode())
	}

	// Over 1.0: critical, halt, revoke.
	led.Consume(200, 0, 0)
	m.CheckBudget(led, t0)
	if !m.IsHalted() {
		t.Fatal("expected halt at ratio >= 1.0")
	}
	tok, _ := led.Token("tok-1")
	if !tok.Revoked {
		t.Fatal("expected tokens revoked on halt")
	}
}

func TestBudgetCriticalWithoutHalt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HaltOnBudget = false
	m := New(cfg, nil)
	led := testLedger("ep-1")
	led.IssueToken(ledger.ActiveToken{TokenID: "tok-1", MaxUses: 1, UsesRemaining: 1})
	m.RegisterLedger(led)

	led.Consume(1200, 0, 0)
	m.CheckBudget(led, t0)

	if m.IsHalted() {
		t.Fatal("critical budget must not halt when HaltOnBudget is off")
	}
	tok, _ := led.Token("tok-1")
	if tok.Revoked {
		t.Fatal("tokens must survive when no halt is requested")
	}
	evs, _ := m.Events(EventFilter{Severity: packet.SeverityCritical})
	if len(evs) != 1 || evs[0].AlertType != packet.AlertBudgetCritical {
		t.Fatalf("critical alert must still be recorded, got %+v", evs)
	}
}

func TestCheckTokenDoesNotMutate(t *testing.T) {
	m := New(DefaultConfig(), nil)
	tok := ledger.ActiveToken{TokenID: "tok-1", MaxUses: 1, UsesRemaining: 0}

	m.CheckToken("ep-1", tok, t0)
	evs, _ := m.Events(EventFilter{CorrelationID: "ep-1"})
	if len(evs) != 1 || evs[0].AlertType != packet.AlertTokenInvalid {
		t.Fatalf("expected token-invalid event, got %+v", evs)
	}
	if tok.UsesRemaining != 0 || tok.Revoked {
		t.Fatal("check must not mutate the token")
	}
}

func TestContradictionsTriggerCaution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContradictionLimit = 2
	m := New(cfg, nil)
	led := testLedger("ep-1")
	m.RegisterLedger(led)

	m.FlagContradiction(led, "a said x, b said not-x", t0)
	m.FlagContradiction(led, "c said y, d said not-y", t0)
	if m.Mode() != ModeNormal {
		t.Fatalf("at the limit mode must stay NORMAL, got %s", m.Mode())
	}

	m.FlagContradiction(led, "third", t0)
	if m.Mode() != ModeCautious {
		t.Fatalf("past the limit mode must be CAUTIOUS, got %s", m.Mode())
	}
	if led.Contradictions() != 3 {
		t.Fatalf("expected 3 ledger contradictions, got %d", led.Contradictions())
	}
}

func TestCheckSafeMode(t *testing.T) {
	m := New(DefaultConfig(), nil)

	if err := m.CheckSafeMode(packet.SafetyWrite); err != nil {
		t.Fatalf("NORMAL must allow writes: %v", err)
	}

	m.SetMode(ModeRestricted, t0)
	if err := m.CheckSafeMode(packet.SafetyWrite); err == nil {
		t.Fatal("RESTRICTED must block writes")
	}
	if err := m.CheckSafeMode(packet.SafetyMixed); err == nil {
		t.Fatal("RESTRICTED must block mixed operations")
	}
	if err := m.CheckSafeMode(packet.SafetyRead); err != nil {
		t.Fatalf("RESTRICTED must allow reads: %v", err)
	}

	m.SetMode(ModeHalted, t0)
	if err := m.CheckSafeMode(packet.SafetyRead); err == nil {
		t.Fatal("HALTED must block everything")
	}
}

func TestCallbackReceivesEvents(t *testing.T) {
	m := New(DefaultConfig(), nil)
	var got []Event
	m.SetCallback(func(ev Event) { got = append(got, ev) })

	m.SetMode(ModeCautious, t0)
	if len(got) != 1 || got[0].AlertType != packet.AlertSafeModeChange {
		t.Fatalf("expected one mode-change event, got %+v", got)
	}
	if got[0].Mode != ModeCautious {
		t.Fatalf("event must carry the post-transition mode, got %s", got[0].Mode)
	}
}

func TestEventFilterBySeverity(t *testing.T) {
	sink := NewMemorySink()
	m := New(DefaultConfig(), sink)
	led := testLedger("ep-1")
	m.RegisterLedger(led)

	led.Consume(850, 0, 0)
	m.CheckBudget(led, t0) // warning
	m.Observe(vetoPacket("ep-1"))

	warns, _ := m.Events(EventFilter{Severity: packet.SeverityWarning})
	crits, _ := m.Events(EventFilter{Severity: packet.SeverityCritical})
	if len(warns) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warns))
	}
	if len(crits) < 2 { // veto + mode change
		t.Fatalf("expected veto and mode-change criticals, got %d", len(crits))
	}
}
