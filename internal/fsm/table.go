package fsm

import "packetgate/internal/packet"

// #region static-table
type transitionKey struct {
	from State
	typ  packet.PacketType
}

// staticTable holds every packet-driven transition that does not depend on
// payload content. Decision transitions are outcome-dependent and resolved
// separately; IntegrityAlert is accepted in every state without advancing
// it; S9_SAFEMODE is entered only by the integrity monitor, never by a
// packet.
var staticTable = map[transitionKey]State{
	// Observations restart or continue sensing; inside a verification
	// loop they stay in S4.
	{S0Idle, packet.TypeObservation}:    S1Sense,
	{S1Sense, packet.TypeObservation}:   S1Sense,
	{S2Model, packet.TypeObservation}:   S1Sense,
	{S4Verify, packet.TypeObservation}:  S4Verify,
	{S6Execute, packet.TypeObservation}: S6Execute,
	{S7Review, packet.TypeObservation}:  S1Sense,

	// Belief updates move modelling forward; from S4 the closing update
	// returns to S2; in safe mode they are accepted without leaving S9.
	{S1Sense, packet.TypeBeliefUpdate}:    S2Model,
	{S2Model, packet.TypeBeliefUpdate}:    S2Model,
	{S3Decide, packet.TypeBeliefUpdate}:   S2Model,
	{S4Verify, packet.TypeBeliefUpdate}:   S2Model,
	{S7Review, packet.TypeBeliefUpdate}:   S2Model,
	{S9SafeMode, packet.TypeBeliefUpdate}: S9SafeMode,

	// Verification plans open or refine a loop.
	{S3Decide, packet.TypeVerificationPlan}: S4Verify,
	{S4Verify, packet.TypeVerificationPlan}: S4Verify,

	// Tokens may be pre-authorized from idle or follow a decision.
	{S0Idle, packet.TypeToolAuthorizationToken}:      S5Authorize,
	{S3Decide, packet.TypeToolAuthorizationToken}:    S5Authorize,
	{S5Authorize, packet.TypeToolAuthorizationToken}: S5Authorize,

	// Directives start execution; verification READs stay in S4.
	{S3Decide, packet.TypeTaskDirective}:    S6Execute,
	{S5Authorize, packet.TypeTaskDirective}: S6Execute,
	{S4Verify, packet.TypeTaskDirective}:    S4Verify,

	// Results close directives.
	{S6Execute, packet.TypeTaskResult}: S7Review,
	{S7Review, packet.TypeTaskResult}:  S7Review,
	{S4Verify, packet.TypeTaskResult}:  S4Verify,

	// Escalation packets hand control upward.
	{S2Model, packet.TypeEscalation}:   S8Escalated,
	{S3Decide, packet.TypeEscalation}:  S8Escalated,
	{S4Verify, packet.TypeEscalation}:  S8Escalated,
	{S6Execute, packet.TypeEscalation}: S8Escalated,
	{S7Review, packet.TypeEscalation}:  S8Escalated,
}

// #endregion static-table

// #region decision-resolution
// resolveDecision returns the target state for a Decision packet. From
// S8_ESCALATED a new decision always returns to S3_DECIDE; from modelling
// or deciding the target depends on the outcome.
func resolveDecision(from State, outcome packet.Outcome) (State, bool) {
	if from == S8Escalated {
		return S3Decide, true
	}
	if from != S2Model && from != S3Decide {
		return from, false
	}
	switch outcome {
	case packet.OutcomeAct:
		return S3Decide, true
	case packet.OutcomeVerifyFirst:
		return S4Verify, true
	case packet.OutcomeEscalate:
		return S8Escalated, true
	case packet.OutcomeDefer:
		return S7Review, true
	}
	return from, false
}

// resolve computes the target state for any packet, or reports an illegal
// transition. Safe-mode lockdown is enforced by the validator before
// resolution.
func resolve(from State, p packet.Packet) (State, bool) {
	switch p.Header.PacketType {
	case packet.TypeIntegrityAlert:
		return from, true
	case packet.TypeDecision:
		dec, ok := p.Payload.(packet.Decision)
		if !ok {
			return from, false
		}
		return resolveDecision(from, dec.Outcome)
	default:
		to, ok := staticTable[transitionKey{from, p.Header.PacketType}]
		return to, ok
	}
}

// #endregion decision-resolution
