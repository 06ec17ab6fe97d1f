package fsm

import "packetgate/internal/packet"

// #region state
// State enumerates the per-episode protocol states.
type State string

const (
	S0Idle      State = "S0_IDLE"
	S1Sense     State = "S1_SENSE"
	S2Model     State = "S2_MODEL"
	S3Decide    State = "S3_DECIDE"
	S4Verify    State = "S4_VERIFY"
	S5Authorize State = "S5_AUTHORIZE"
	S6Execute   State = "S6_EXECUTE"
	S7Review    State = "S7_REVIEW"
	S8Escalated State = "S8_ESCALATED"
	S9SafeMode  State = "S9_SAFEMODE"
)

// #endregion state

// #region result
// Result is the structured outcome of validating one packet. Failures are
// values, never panics: a producer needs the full list to correct and
// retry.
type Result struct {
	OK       bool
	From     State
	To       State
	Errors   []string
	Warnings []string
}

// #endregion result

// #region verification-loop
// VerificationLoop records the sub-sequence between a VERIFY_FIRST
// decision and the decision that closes it.
type VerificationLoop struct {
	StartedBy      string // packet id of the opening decision
	ToolsAtStart   packet.ToolsState
	ReadDirectives map[string]struct{}
	SuccessResults int
	Observed       int
	ClosingBelief  bool
}

// Complete reports whether the loop satisfies the closure criteria: a READ
// directive, a SUCCESS result (when tools were available at loop start),
// an OBSERVED observation, and a closing belief update.
func (l *VerificationLoop) Complete() bool {
	if len(l.ReadDirectives) == 0 {
		return false
	}
	if l.ToolsAtStart == packet.ToolsOK && l.SuccessResults == 0 {
		return false
	}
	return l.Observed > 0 && l.ClosingBelief
}

// Missing lists the closure criteria not yet satisfied.
func (l *VerificationLoop) Missing() []string {
	var out []string
	if len(l.ReadDirectives) == 0 {
		out = append(out, "READ directive")
	}
	if l.ToolsAtStart == packet.ToolsOK && l.SuccessResults == 0 {
		out = append(out, "SUCCESS result")
	}
	if l.Observed == 0 {
		out = append(out, "OBSERVED observation")
	}
	if !l.ClosingBelief {
		out = append(out, "closing belief update")
	}
	return out
}

// #endregion verification-loop

// #region episode-state
// EpisodeState is the FSM's per-episode record. It is a pure function of
// the episode's accepted packet history plus the transition table.
type EpisodeState struct {
	CorrelationID string
	Current       State
	BeliefUpdates int
	Decisions     int
	LastOutcome   packet.Outcome // empty until the first decision
	Loop          *VerificationLoop
}

// NewEpisodeState creates the initial state for a fresh episode.
func NewEpisodeState(correlationID string) *EpisodeState {
	return &EpisodeState{CorrelationID: correlationID, Current: S0Idle}
}

// #endregion episode-state
