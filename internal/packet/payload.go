package packet

import "time"

// #region payload
// Payload is the tagged-variant interface implemented by the nine packet
// payload kinds. Kind must agree with the header's packet type.
type Payload interface {
	Kind() PacketType
}

// #endregion payload

// #region observation
// Observation reports something sensed about the world.
type Observation struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// Kind implements Payload.
func (Observation) Kind() PacketType { return TypeObservation }

// #endregion observation

// #region belief-update
// BeliefUpdate revises a held belief and its confidence.
type BeliefUpdate struct {
	BeliefID        string  `json:"belief_id"`
	Statement       string  `json:"statement"`
	PriorConfidence float64 `json:"prior_confidence"`
	NewConfidence   float64 `json:"new_confidence"`
}

// Kind implements Payload.
func (BeliefUpdate) Kind() PacketType { return TypeBeliefUpdate }

// #endregion belief-update

// #region decision
// ConstraintChecks records the arbitration gates a decision passed through.
type ConstraintChecks struct {
	Constitutional bool `json:"constitutional"`
	Budget         bool `json:"budget"`
}

// Decision carries the arbitration outcome for the next step.
type Decision struct {
	Outcome              Outcome          `json:"outcome"`
	Action               string           `json:"action"`
	Rationale            string           `json:"rationale,omitempty"`
	ConstraintsSatisfied ConstraintChecks `json:"constraints_satisfied"`
}

// Kind implements Payload.
func (Decision) Kind() PacketType { return TypeDecision }

// #endregion decision

// #region verification-plan
// VerificationPlan declares the checks a verification loop will run.
type VerificationPlan struct {
	Target string   `json:"target"`
	Checks []string `json:"checks"`
}

// Kind implements Payload.
func (VerificationPlan) Kind() PacketType { return TypeVerificationPlan }

// #endregion verification-plan

// #region token
// TokenScope bounds what a token authorizes.
type TokenScope struct {
	ToolIDs       []string      `json:"tool_ids"`
	SafetyClasses []SafetyClass `json:"safety_classes"`
}

// AllowsTool reports whether the scope contains the given tool id.
func (s TokenScope) AllowsTool(toolID string) bool {
	for _, id := range s.ToolIDs {
		if id == toolID {
			return true
		}
	}
	return false
}

// AllowsClass reports whether the scope contains the given safety class.
func (s TokenScope) AllowsClass(class SafetyClass) bool {
	for _, c := range s.SafetyClasses {
		if c == class {
			return true
		}
	}
	return false
}

// ToolAuthorizationToken grants scoped, expiring, use-limited authority.
type ToolAuthorizationToken struct {
	TokenID       string     `json:"token_id"`
	Scope         TokenScope `json:"scope"`
	ExpiresAt     time.Time  `json:"expires_at"`
	MaxUses       int        `json:"max_uses"`
	UsesRemaining int        `json:"uses_remaining"`
	Revoked       bool       `json:"revoked"`
}

// Kind implements Payload.
func (ToolAuthorizationToken) Kind() PacketType { return TypeToolAuthorizationToken }

// #endregion token

// #region task-directive
// TaskDirective instructs the execution layer to run one tool action.
type TaskDirective struct {
	DirectiveID string      `json:"directive_id"`
	TaskID      string      `json:"task_id"`
	ToolID      string      `json:"tool_id"`
	Safety      SafetyClass `json:"safety"`
	TokenID     string      `json:"token_id,omitempty"`
	Instruction string      `json:"instruction"`
	TimeoutMS   int64       `json:"timeout_ms"`
}

// Kind implements Payload.
func (TaskDirective) Kind() PacketType { return TypeTaskDirective }

// #endregion task-directive

// #region task-result
// ExecutionUsage reports declared per-call resource consumption.
type ExecutionUsage struct {
	TokensUsed int64 `json:"tokens_used"`
	ToolCalls  int64 `json:"tool_calls"`
	ElapsedMS  int64 `json:"elapsed_ms"`
}

// TaskResult closes a directive with its terminal status and usage.
type TaskResult struct {
	DirectiveID string         `json:"directive_id"`
	Status      ResultStatus   `json:"status"`
	Output      string         `json:"output,omitempty"`
	Usage       ExecutionUsage `json:"usage"`
}

// Kind implements Payload.
func (TaskResult) Kind() PacketType { return TypeTaskResult }

// #endregion task-result

// #region escalation
// EscalationOption is one candidate path offered to the arbiter.
type EscalationOption struct {
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

// Escalation hands a blocked choice upward with structured options.
type Escalation struct {
	Reason            string             `json:"reason"`
	Options           []EscalationOption `json:"options"`
	EvidenceGaps      []string           `json:"evidence_gaps"`
	RecommendedOption string             `json:"recommended_option"`
}

// Kind implements Payload.
func (Escalation) Kind() PacketType { return TypeEscalation }

// #endregion escalation

// #region integrity-alert
// IntegrityAlert is a supervisory event raised onto the packet stream.
type IntegrityAlert struct {
	AlertType AlertType `json:"alert_type"`
	Severity  Severity  `json:"severity"`
	Detail    string    `json:"detail"`
}

// Kind implements Payload.
func (IntegrityAlert) Kind() PacketType { return TypeIntegrityAlert }

// #endregion integrity-alert
