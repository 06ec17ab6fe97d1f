package packet

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func samplePacket(t PacketType, payload Payload) Packet {
	return Packet{
		Header: Header{
			PacketID:      "pkt-001",
			PacketType:    t,
			CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			SourceLayer:   LayerReasoning,
			CorrelationID: "ep-001",
		},
		MCP: Envelope{
			Intent: Intent{Summary: "test intent"},
			Stakes: Stakes{
				Impact:          ImpactLow,
				Irreversibility: Reversible,
				Uncertainty:     UncertaintyLow,
				Adversariality:  Benign,
				Level:           StakesLow,
			},
			Quality: Quality{
				Tier:             TierStandard,
				DefinitionOfDone: DefinitionOfDone{Text: "done", Checks: []string{"check"}},
			},
			Budgets:    Budgets{Tokens: 1000, ToolCalls: 10, TimeMS: 60000, Risk: RiskLow},
			Epistemics: Epistemics{Status: StatusObserved, Confidence: 0.9, Freshness: FreshRealtime},
			Evidence:   Evidence{Refs: []EvidenceRef{{Kind: EvidenceToolOutput, Ref: "tool://ls/1"}}},
			Routing:    Routing{TaskClass: "test", Tools: ToolsOK},
		},
		Payload: payload,
	}
}

func TestWireRoundTrip(t *testing.T) {
	p := samplePacket(TypeDecision, Decision{
		Outcome:              OutcomeVerifyFirst,
		Action:               "check disk state",
		ConstraintsSatisfied: ConstraintChecks{Constitutional: true, Budget: true},
	})

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Header.PacketType != TypeDecision {
		t.Fatalf("expected Decision, got %s", got.Header.PacketType)
	}
	dec, ok := got.Payload.(Decision)
	if !ok {
		t.Fatalf("expected Decision payload, got %T", got.Payload)
	}
	if dec.Outcome != OutcomeVerifyFirst {
		t.Fatalf("expected VERIFY_FIRST, got %s", dec.Outcome)
	}
	if got.MCP.Epistemics.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %f", got.MCP.Epistemics.Confidence)
	}
}

func TestMarshalKindMismatch(t *testing.T) {
	p := samplePacket(TypeDecision, Observation{Subject: "x", Content: "y"})
	if _, err := Marshal(p); err == nil {
		t.Fatal("expected error for header/payload kind mismatch")
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	raw := `{"header":{"packet_id":"p1","packet_type":"Bogus","correlation_id":"ep"},"mcp":{},"payload":{}}`
	if _, err := Unmarshal([]byte(raw)); err == nil {
		t.Fatal("expected error for unknown packet type")
	}
}

func TestReadSequence(t *testing.T) {
	p1 := samplePacket(TypeObservation, Observation{Subject: "disk", Content: "mounted"})
	p2 := samplePacket(TypeBeliefUpdate, BeliefUpdate{BeliefID: "b1", Statement: "disk ok", NewConfidence: 0.8})
	p2.Header.PacketID = "pkt-002"

	var buf bytes.Buffer
	if err := WriteSequence(&buf, []Packet{p1, p2}); err != nil {
		t.Fatalf("WriteSequence: %v", err)
	}

	got, err := ReadSequence(&buf)
	if err != nil {
		t.Fatalf("ReadSequence: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(got))
	}
	if got[1].Header.PacketID != "pkt-002" {
		t.Fatalf("expected pkt-002, got %s", got[1].Header.PacketID)
	}
}

func TestReadSequenceSkipsBlankLines(t *testing.T) {
	p := samplePacket(TypeObservation, Observation{Subject: "s", Content: "c"})
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	input := string(data) + "\n\n" + string(data) + "\n"

	got, err := ReadSequence(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadSequence: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(got))
	}
}
