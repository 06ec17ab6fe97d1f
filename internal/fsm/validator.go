// Package fsm implements the per-episode protocol state machine: packet
// transition legality, sequencing enforcement rules, and the ledger
// mutations that accompany an accepted packet.
package fsm

import (
	"fmt"

	"packetgate/internal/ledger"
	"packetgate/internal/packet"
)

// #region validator
// Config controls validator behavior.
type Config struct {
	// ClockChecks enables timestamp-based checks (token expiry). Disabled
	// when replaying historical fixtures.
	ClockChecks bool
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{ClockChecks: true}
}

// Validator applies the transition table and enforcement rules. It holds
// no per-episode state itself; callers own the EpisodeState and Ledger and
// must serialize calls per episode.
type Validator struct {
	config Config
}

// NewValidator creates a validator.
func NewValidator(config Config) *Validator {
	return &Validator{config: config}
}

// #endregion validator

// #region validate
// Validate checks one packet against the current episode state without
// mutating anything. Errors are collected, not fail-fast: the result
// carries every applicable violation for this packet.
func (v *Validator) Validate(ep *EpisodeState, led *ledger.Ledger, p packet.Packet) Result {
	res := Result{From: ep.Current, To: ep.Current}

	if p.Payload == nil || p.Payload.Kind() != p.Header.PacketType {
		res.Errors = append(res.Errors,
			fmt.Sprintf("E6: payload kind does not match header type %s", p.Header.PacketType))
		return res
	}

	// Safe-mode lockdown: only integrity alerts and belief updates pass.
	if ep.Current == S9SafeMode &&
		p.Header.PacketType != packet.TypeIntegrityAlert &&
		p.Header.PacketType != packet.TypeBeliefUpdate {
		res.Errors = append(res.Errors,
			fmt.Sprintf("E5: safe mode rejects %s packets", p.Header.PacketType))
		return res
	}

	to, ok := resolve(ep.Current, p)
	if !ok {
		res.Errors = append(res.Errors,
			fmt.Sprintf("illegal transition: no rule for (%s, %s)", ep.Current, p.Header.PacketType))
		return res
	}
	res.To = to

	res.Errors = append(res.Errors, v.enforce(ep, led, p)...)
	if len(res.Errors) > 0 {
		res.To = ep.Current // recorded state never advances on failure
		return res
	}

	res.OK = true
	return res
}

// enforce evaluates the sequencing rules beyond raw transition legality.
func (v *Validator) enforce(ep *EpisodeState, led *ledger.Ledger, p packet.Packet) []string {
	var errs []string

	switch payload := p.Payload.(type) {
	case packet.TaskDirective:
		// E1: no action without a decision.
		if ep.LastOutcome != packet.OutcomeAct && ep.LastOutcome != packet.OutcomeVerifyFirst {
			errs = append(errs,
				fmt.Sprintf("E1: task directive requires a prior ACT or VERIFY_FIRST decision (last outcome %q)", ep.LastOutcome))
		}
		// E3: writes require a valid, scoped token.
		if payload.Safety.Mutating() {
			errs = append(errs, v.checkWriteToken(led, p, payload)...)
		}
		// E7: directive ids are issued once.
		if _, exists := led.Directive(payload.DirectiveID); exists {
			errs = append(errs, fmt.Sprintf("E7: directive %s already issued", payload.DirectiveID))
		}

	case packet.Decision:
		// E2: an open verification loop must be complete before re-deciding.
		if ep.Loop != nil && !ep.Loop.Complete() {
			errs = append(errs,
				fmt.Sprintf("E2: verification loop opened by %s is incomplete: missing %v",
					ep.Loop.StartedBy, ep.Loop.Missing()))
		}

	case packet.Escalation:
		// E4: escalation structure.
		if n := len(payload.Options); n < 2 || n > 3 {
			errs = append(errs, fmt.Sprintf("E4: escalation must have 2-3 options, got %d", n))
		}
		if len(payload.EvidenceGaps) == 0 {
			errs = append(errs, "E4: escalation must name at least one evidence gap")
		}
		if payload.RecommendedOption == "" {
			errs = append(errs, "E4: escalation must carry a recommended next step")
		}

	case packet.ToolAuthorizationToken:
		// E7: token ids are issued once.
		if _, exists := led.Token(payload.TokenID); exists {
			errs = append(errs, fmt.Sprintf("E7: token %s already issued", payload.TokenID))
		}
	}

	return errs
}

// checkWriteToken verifies the token referenced by a mutating directive.
func (v *Validator) checkWriteToken(led *ledger.Ledger, p packet.Packet, d packet.TaskDirective) []string {
	if d.TokenID == "" {
		return []string{fmt.Sprintf("E3: %s directive %s carries no token", d.Safety, d.DirectiveID)}
	}
	tok, ok := led.Token(d.TokenID)
	if !ok {
		return []string{fmt.Sprintf("E3: token %s was never issued", d.TokenID)}
	}
	var errs []string
	if tok.Revoked {
		errs = append(errs, fmt.Sprintf("E3: token %s is revoked", d.TokenID))
	}
	if tok.UsesRemaining <= 0 {
		errs = append(errs, fmt.Sprintf("E3: token %s is exhausted", d.TokenID))
	}
	if v.config.ClockChecks && !tok.ExpiresAt.IsZero() && !p.Header.CreatedAt.Before(tok.ExpiresAt) {
		errs = append(errs, fmt.Sprintf("E3: token %s expired at %s", d.TokenID, tok.ExpiresAt.Format("2006-01-02T15:04:05Z")))
	}
	if !tok.Scope.AllowsTool(d.ToolID) {
		errs = append(errs, fmt.Sprintf("E3: token %s scope does not contain tool %s", d.TokenID, d.ToolID))
	}
	return errs
}

// #endregion validate

// #region apply
// Apply commits the packet's effects: state advance, counters, ledger
// mutations, and verification-loop bookkeeping. The caller must have
// validated the packet first and must hold the episode serialized;
// validation and mutation form one atomic step under that lock.
func (v *Validator) Apply(ep *EpisodeState, led *ledger.Ledger, p packet.Packet) {
	to, _ := resolve(ep.Current, p)
	now := p.Header.CreatedAt

	led.AppendEvidence(p.Header.PacketID, p.MCP.Evidence.Refs, now)
	led.AppendAssumptions(p.Header.PacketID, p.MCP.Epistemics.Assumptions, now)

	switch payload := p.Payload.(type) {
	case packet.Observation:
		if ep.Loop != nil && p.MCP.Epistemics.Status == packet.StatusObserved {
			ep.Loop.Observed++
		}

	case packet.BeliefUpdate:
		ep.BeliefUpdates++
		if ep.Loop != nil {
			ep.Loop.ClosingBelief = true
		}

	case packet.Decision:
		ep.Decisions++
		ep.LastOutcome = payload.Outcome
		ep.Loop = nil // a validated decision closes any open loop
		if payload.Outcome == packet.OutcomeVerifyFirst {
			ep.Loop = &VerificationLoop{
				StartedBy:      p.Header.PacketID,
				ToolsAtStart:   p.MCP.Routing.Tools,
				ReadDirectives: make(map[string]struct{}),
			}
		}

	case packet.ToolAuthorizationToken:
		led.IssueToken(ledger.ActiveToken{
			TokenID:       payload.TokenID,
			Scope:         payload.Scope,
			IssuedAt:      now,
			ExpiresAt:     payload.ExpiresAt,
			MaxUses:       payload.MaxUses,
			UsesRemaining: payload.UsesRemaining,
			Revoked:       payload.Revoked,
		})

	case packet.TaskDirective:
		led.OpenDirective(ledger.OpenDirective{
			DirectiveID: payload.DirectiveID,
			TaskID:      payload.TaskID,
			ToolID:      payload.ToolID,
			Safety:      payload.Safety,
			IssuedAt:    now,
			TimeoutMS:   payload.TimeoutMS,
			Status:      ledger.DirectiveExecuting,
		})
		if payload.Safety.Mutating() {
			led.UseToken(payload.TokenID, now, v.config.ClockChecks)
		}
		if ep.Loop != nil && payload.Safety == packet.SafetyRead {
			ep.Loop.ReadDirectives[payload.DirectiveID] = struct{}{}
		}

	case packet.TaskResult:
		led.CloseDirective(payload.DirectiveID, resultStatus(payload.Status))
		led.Consume(payload.Usage.TokensUsed, payload.Usage.ToolCalls, payload.Usage.ElapsedMS)
		if ep.Loop != nil && payload.Status == packet.ResultSuccess {
			ep.Loop.SuccessResults++
		}
	}

	ep.Current = to
}

// EnterSafeMode forces the episode into S9_SAFEMODE. This is the only
// externally imposed entry; the integrity monitor uses it.
func EnterSafeMode(ep *EpisodeState) {
	ep.Current = S9SafeMode
}

// resultStatus maps a result's terminal status onto the directive ledger.
func resultStatus(s packet.ResultStatus) ledger.DirectiveStatus {
	if s == packet.ResultSuccess {
		return ledger.DirectiveCompleted
	}
	return ledger.DirectiveFailed
}

// #endregion apply
