// Package invariant checks cross-packet semantic invariants (INV-001 to
// INV-012) against a packet plus accumulated episode state. It overlaps the
// FSM's enforcement rules in two places (token scope, loop closure) and
// re-derives both independently so the checks stay in agreement by
// construction, not by shared code.
package invariant

import (
	"fmt"

	"packetgate/internal/ledger"
	"packetgate/internal/packet"
)

// #region violation
// Violation is a single invariant failure. Warnings flag conditions that
// should change behavior but do not reject the packet.
type Violation struct {
	Code    string
	Detail  string
	Warning bool
}

func (v Violation) String() string {
	return v.Code + ": " + v.Detail
}

// Context carries the episode state a check may consult. History holds the
// episode's accepted packets in order, excluding the packet under check.
type Context struct {
	Ledger      *ledger.Ledger
	History     []packet.Packet
	ClockChecks bool
}

// #endregion violation

// #region checker
// Checker evaluates all invariants against a single packet.
type Checker struct{}

// NewChecker creates a checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check runs every applicable invariant and collects violations; it never
// stops at the first failure.
func (c *Checker) Check(p packet.Packet, ctx Context) []Violation {
	var out []Violation
	out = append(out, checkEnvelope(p)...)
	out = append(out, checkQualityTier(p)...)
	out = append(out, checkStakesGate(p)...)
	out = append(out, checkGrounding(p)...)
	out = append(out, checkBudgetOverrun(p, ctx)...)
	out = append(out, checkConstraints(p)...)
	out = append(out, checkTokenScope(p, ctx)...)
	out = append(out, checkLoopClosure(p, ctx)...)
	out = append(out, checkEscalationShape(p)...)
	out = append(out, checkDegradedTools(p)...)
	out = append(out, checkDirectiveTimeouts(p, ctx)...)
	out = append(out, checkStakesConsistency(p)...)
	return out
}

// #endregion checker

// #region envelope
// consequential reports whether the packet type carries authority that
// demands a complete envelope.
func consequential(t packet.PacketType) bool {
	switch t {
	case packet.TypeDecision, packet.TypeTaskDirective,
		packet.TypeToolAuthorizationToken, packet.TypeEscalation:
		return true
	}
	return false
}

// checkEnvelope enforces INV-001: envelope completeness for consequential
// packets. The evidence refs-or-reason rule holds for every packet.
func checkEnvelope(p packet.Packet) []Violation {
	var out []Violation
	if !p.MCP.Evidence.Grounded() {
		out = append(out, Violation{Code: "INV-001",
			Detail: "evidence has no refs and no absence reason"})
	}
	if !consequential(p.Header.PacketType) {
		return out
	}

	m := p.MCP
	if m.Intent.Summary == "" {
		out = append(out, Violation{Code: "INV-001", Detail: "intent summary is empty"})
	}
	if m.Stakes.Level == "" || m.Stakes.Impact == "" || m.Stakes.Irreversibility == "" ||
		m.Stakes.Uncertainty == "" || m.Stakes.Adversariality == "" {
		out = append(out, Violation{Code: "INV-001", Detail: "stakes section is incomplete"})
	}
	if m.Quality.Tier == "" {
		out = append(out, Violation{Code: "INV-001", Detail: "quality tier is empty"})
	}
	if m.Quality.DefinitionOfDone.Text == "" || len(m.Quality.DefinitionOfDone.Checks) == 0 {
		out = append(out, Violation{Code: "INV-001",
			Detail: "definition of done requires text and at least one check"})
	}
	if m.Epistemics.Status == "" {
		out = append(out, Violation{Code: "INV-001", Detail: "epistemic status is empty"})
	}
	if m.Routing.TaskClass == "" || m.Routing.Tools == "" {
		out = append(out, Violation{Code: "INV-001", Detail: "routing section is incomplete"})
	}
	return out
}

// #endregion envelope

// #region quality-stakes
// checkQualityTier enforces INV-002: SUBPAR tier never authorizes ACT.
func checkQualityTier(p packet.Packet) []Violation {
	dec, ok := p.Payload.(packet.Decision)
	if !ok || dec.Outcome != packet.OutcomeAct {
		return nil
	}
	if p.MCP.Quality.Tier == packet.TierSubpar {
		return []Violation{{Code: "INV-002", Detail: "SUBPAR quality tier cannot authorize ACT"}}
	}
	return nil
}

// checkStakesGate enforces INV-003: at HIGH/CRITICAL stakes a direct ACT
// needs SUPERB tier with verification required and every load-bearing
// assumption verified; any non-ACT outcome passes.
func checkStakesGate(p packet.Packet) []Violation {
	dec, ok := p.Payload.(packet.Decision)
	if !ok || dec.Outcome != packet.OutcomeAct {
		return nil
	}
	level := p.MCP.Stakes.Level
	if level != packet.StakesHigh && level != packet.StakesCritical {
		return nil
	}
	var out []Violation
	if p.MCP.Quality.Tier != packet.TierSuperb || !p.MCP.Quality.VerificationRequired {
		out = append(out, Violation{Code: "INV-003",
			Detail: fmt.Sprintf("ACT at %s stakes requires SUPERB tier with verification required", level)})
	}
	for _, a := range p.MCP.Epistemics.Assumptions {
		if a.LoadBearing && !a.Verified {
			out = append(out, Violation{Code: "INV-003",
				Detail: fmt.Sprintf("ACT at %s stakes with unverified load-bearing assumption: %s", level, a.Text)})
		}
	}
	return out
}

// #endregion quality-stakes

// #region grounding
// checkGrounding enforces INV-004: no live-truth claims without grounding.
// A VERIFY_FIRST decision is exempt; it exists to trigger verification.
func checkGrounding(p packet.Packet) []Violation {
	status := p.MCP.Epistemics.Status
	if status != packet.StatusInferred && status != packet.StatusHypothesized &&
		status != packet.StatusUnknown {
		return nil
	}
	fresh := p.MCP.Epistemics.Freshness
	if fresh != packet.FreshRealtime && fresh != packet.FreshOperational {
		return nil
	}
	if dec, ok := p.Payload.(packet.Decision); ok && dec.Outcome == packet.OutcomeVerifyFirst {
		return nil
	}
	for _, ref := range p.MCP.Evidence.Refs {
		if ref.Kind == packet.EvidenceToolOutput || ref.Kind == packet.EvidenceUserObservation {
			return nil
		}
	}
	return []Violation{{Code: "INV-004",
		Detail: fmt.Sprintf("%s claim at %s freshness cites no tool-output or user-observation evidence", status, fresh)}}
}

// #endregion grounding

// #region budget
// checkBudgetOverrun enforces INV-005: cumulative consumption over any
// allocated budget is legal only after an escalation or a governance
// override in the episode history.
func checkBudgetOverrun(p packet.Packet, ctx Context) []Violation {
	if ctx.Ledger == nil || !ctx.Ledger.Budget().IsOverBudget() {
		return nil
	}
	for _, h := range ctx.History {
		if h.Header.PacketType == packet.TypeEscalation {
			return nil
		}
		if alert, ok := h.Payload.(packet.IntegrityAlert); ok &&
			alert.AlertType == packet.AlertBudgetOverride {
			return nil
		}
	}
	return []Violation{{Code: "INV-005",
		Detail: "budget exceeded without a prior escalation or override"}}
}

// checkConstraints enforces INV-006: a decision's arbitration flags must
// both be true.
func checkConstraints(p packet.Packet) []Violation {
	dec, ok := p.Payload.(packet.Decision)
	if !ok {
		return nil
	}
	var out []Violation
	if !dec.ConstraintsSatisfied.Constitutional {
		out = append(out, Violation{Code: "INV-006", Detail: "constitutional check not satisfied"})
	}
	if !dec.ConstraintsSatisfied.Budget {
		out = append(out, Violation{Code: "INV-006", Detail: "budget/feasibility check not satisfied"})
	}
	return out
}

// #endregion budget

// #region token-scope
// checkTokenScope enforces INV-007: WRITE/MIXED directives must reference a
// live token whose scope contains the directive's tool id and safety class.
// Checked directly against the ledger's token records.
func checkTokenScope(p packet.Packet, ctx Context) []Violation {
	dir, ok := p.Payload.(packet.TaskDirective)
	if !ok || !dir.Safety.Mutating() || ctx.Ledger == nil {
		return nil
	}
	if dir.TokenID == "" {
		return []Violation{{Code: "INV-007",
			Detail: fmt.Sprintf("%s directive %s carries no token", dir.Safety, dir.DirectiveID)}}
	}
	tok, found := ctx.Ledger.Token(dir.TokenID)
	if !found {
		return []Violation{{Code: "INV-007",
			Detail: fmt.Sprintf("token %s is not in the ledger", dir.TokenID)}}
	}
	var out []Violation
	if !tok.IsValid(p.Header.CreatedAt, ctx.ClockChecks) {
		out = append(out, Violation{Code: "INV-007",
			Detail: fmt.Sprintf("token %s is revoked, exhausted, or expired", dir.TokenID)})
	}
	if !tok.Scope.AllowsTool(dir.ToolID) {
		out = append(out, Violation{Code: "INV-007",
			Detail: fmt.Sprintf("token %s scope does not contain tool %s", dir.TokenID, dir.ToolID)})
	}
	if !tok.Scope.AllowsClass(dir.Safety) {
		out = append(out, Violation{Code: "INV-007",
			Detail: fmt.Sprintf("token %s scope does not allow %s operations", dir.TokenID, dir.Safety)})
	}
	return out
}

// #endregion token-scope

// #region loop-closure
// checkLoopClosure enforces INV-008: when a decision closes an open
// verification loop, the loop's packet set must contain a READ directive, a
// SUCCESS result (when tools were available at loop start), an OBSERVED
// observation, and a closing belief update. The loop is derived here from
// the packet history alone, independent of the FSM's loop record.
func checkLoopClosure(p packet.Packet, ctx Context) []Violation {
	if _, ok := p.Payload.(packet.Decision); !ok {
		return nil
	}

	// Find the most recent VERIFY_FIRST decision with no later decision.
	opening := -1
	for i, h := range ctx.History {
		if dec, ok := h.Payload.(packet.Decision); ok {
			if dec.Outcome == packet.OutcomeVerifyFirst {
				opening = i
			} else {
				opening = -1
			}
		}
	}
	if opening == -1 {
		return nil
	}

	toolsAtStart := ctx.History[opening].MCP.Routing.Tools
	var readDirective, successResult, observed, closingBelief bool
	for _, h := range ctx.History[opening+1:] {
		switch payload := h.Payload.(type) {
		case packet.TaskDirective:
			if payload.Safety == packet.SafetyRead {
				readDirective = true
			}
		case packet.TaskResult:
			if payload.Status == packet.ResultSuccess {
				successResult = true
			}
		case packet.Observation:
			if h.MCP.Epistemics.Status == packet.StatusObserved {
				observed = true
			}
		case packet.BeliefUpdate:
			closingBelief = true
		}
	}

	var missing []string
	if !readDirective {
		missing = append(missing, "READ directive")
	}
	if toolsAtStart == packet.ToolsOK && !successResult {
		missing = append(missing, "SUCCESS result")
	}
	if !observed {
		missing = append(missing, "OBSERVED observation")
	}
	if !closingBelief {
		missing = append(missing, "closing belief update")
	}
	if len(missing) == 0 {
		return nil
	}
	return []Violation{{Code: "INV-008",
		Detail: fmt.Sprintf("verification loop opened by %s is incomplete: missing %v",
			ctx.History[opening].Header.PacketID, missing)}}
}

// #endregion loop-closure

// #region escalation
// checkEscalationShape enforces INV-009, the standalone counterpart of the
// FSM's escalation rule.
func checkEscalationShape(p packet.Packet) []Violation {
	esc, ok := p.Payload.(packet.Escalation)
	if !ok {
		return nil
	}
	var out []Violation
	if n := len(esc.Options); n < 2 || n > 3 {
		out = append(out, Violation{Code: "INV-009",
			Detail: fmt.Sprintf("escalation must have 2-3 options, got %d", n)})
	}
	if len(esc.EvidenceGaps) == 0 {
		out = append(out, Violation{Code: "INV-009",
			Detail: "escalation must name at least one evidence gap"})
	}
	if esc.RecommendedOption == "" {
		out = append(out, Violation{Code: "INV-009",
			Detail: "escalation must carry a recommended next step"})
	}
	return out
}

// #endregion escalation

// #region degraded-tools
// checkDegradedTools enforces INV-010: degraded tooling forbids mutating
// directives; an ACT decision under tools_down is flagged as a warning
// because the producer should escalate or defer instead.
func checkDegradedTools(p packet.Packet) []Violation {
	tools := p.MCP.Routing.Tools
	switch payload := p.Payload.(type) {
	case packet.TaskDirective:
		if payload.Safety.Mutating() &&
			(tools == packet.ToolsPartial || tools == packet.ToolsDown) {
			return []Violation{{Code: "INV-010",
				Detail: fmt.Sprintf("%s directive is illegal while tools are %s", payload.Safety, tools)}}
		}
	case packet.Decision:
		if payload.Outcome == packet.OutcomeAct && tools == packet.ToolsDown {
			return []Violation{{Code: "INV-010", Warning: true,
				Detail: "ACT while tools are down; ESCALATE or DEFER instead"}}
		}
	}
	return nil
}

// #endregion degraded-tools

// #region timeouts
// checkDirectiveTimeouts enforces INV-011: any open directive whose elapsed
// time exceeds its declared timeout is reported. The incoming packet's
// timestamp serves as "now" so replays stay deterministic.
func checkDirectiveTimeouts(p packet.Packet, ctx Context) []Violation {
	if ctx.Ledger == nil || !ctx.ClockChecks {
		return nil
	}
	var out []Violation
	for _, d := range ctx.Ledger.OpenDirectives() {
		if d.TimeoutMS <= 0 {
			continue
		}
		elapsed := p.Header.CreatedAt.Sub(d.IssuedAt).Milliseconds()
		if elapsed > d.TimeoutMS {
			out = append(out, Violation{Code: "INV-011",
				Detail: fmt.Sprintf("directive %s open for %dms, timeout %dms", d.DirectiveID, elapsed, d.TimeoutMS)})
		}
	}
	return out
}

// #endregion timeouts

// #region stakes-consistency
var levelRank = map[packet.StakesLevel]int{
	packet.StakesLow:      1,
	packet.StakesMedium:   2,
	packet.StakesHigh:     3,
	packet.StakesCritical: 4,
}

// checkStakesConsistency enforces INV-012: the declared stakes level must
// be justified by the four contributing axes. A HIGH- or CRITICAL-ranked
// axis sets the floor for the declared level; a CRITICAL declaration
// additionally needs a CRITICAL-ranked axis or the high-impact irreversible
// high-uncertainty combination. Over-declaration below CRITICAL is allowed.
func checkStakesConsistency(p packet.Packet) []Violation {
	s := p.MCP.Stakes
	declared, known := levelRank[s.Level]
	if !known {
		return nil // structural layer reports unknown levels
	}
	maxAxis := s.MaxAxisRank()

	var out []Violation
	if maxAxis >= 3 && declared < maxAxis {
		out = append(out, Violation{Code: "INV-012",
			Detail: fmt.Sprintf("stakes_level %s under-declares axis severity (max axis rank %d)", s.Level, maxAxis)})
	}
	if s.Level == packet.StakesCritical {
		combo := s.Impact.Rank() >= 3 &&
			s.Irreversibility == packet.Irreversible &&
			s.Uncertainty == packet.UncertaintyHigh
		if maxAxis < 4 && !combo {
			out = append(out, Violation{Code: "INV-012",
				Detail: "CRITICAL stakes_level is not justified by any axis"})
		}
	}
	return out
}

// #endregion stakes-consistency
