package packet

import "time"

// #region packet-type
// PacketType enumerates the nine packet kinds carried on the wire.
type PacketType string

const (
	TypeObservation            PacketType = "Observation"
	TypeBeliefUpdate           PacketType = "BeliefUpdate"
	TypeDecision               PacketType = "Decision"
	TypeVerificationPlan       PacketType = "VerificationPlan"
	TypeToolAuthorizationToken PacketType = "ToolAuthorizationToken"
	TypeTaskDirective          PacketType = "TaskDirective"
	TypeTaskResult             PacketType = "TaskResult"
	TypeEscalation             PacketType = "Escalation"
	TypeIntegrityAlert         PacketType = "IntegrityAlert"
)

// AllTypes lists every packet type in a stable order.
func AllTypes() []PacketType {
	return []PacketType{
		TypeObservation, TypeBeliefUpdate, TypeDecision, TypeVerificationPlan,
		TypeToolAuthorizationToken, TypeTaskDirective, TypeTaskResult,
		TypeEscalation, TypeIntegrityAlert,
	}
}

// Known reports whether t is one of the nine catalogue types.
func (t PacketType) Known() bool {
	switch t {
	case TypeObservation, TypeBeliefUpdate, TypeDecision, TypeVerificationPlan,
		TypeToolAuthorizationToken, TypeTaskDirective, TypeTaskResult,
		TypeEscalation, TypeIntegrityAlert:
		return true
	}
	return false
}

// #endregion packet-type

// #region layer
// Layer identifies one of the six ordered processing layers, or the
// Integrity overlay which sits outside the ordering.
type Layer string

const (
	LayerSensing      Layer = "L1_SENSING"
	LayerBelief       Layer = "L2_BELIEF"
	LayerReasoning    Layer = "L3_REASONING"
	LayerVerification Layer = "L4_VERIFICATION"
	LayerExecution    Layer = "L5_EXECUTION"
	LayerGovernance   Layer = "L6_GOVERNANCE"
	LayerIntegrity    Layer = "INTEGRITY"
)

// Order returns the layer's position in the L1..L6 ordering.
// The Integrity overlay and unknown layers return 0.
func (l Layer) Order() int {
	switch l {
	case LayerSensing:
		return 1
	case LayerBelief:
		return 2
	case LayerReasoning:
		return 3
	case LayerVerification:
		return 4
	case LayerExecution:
		return 5
	case LayerGovernance:
		return 6
	}
	return 0
}

// OrderedLayers returns L1..L6 in ascending order, excluding Integrity.
func OrderedLayers() []Layer {
	return []Layer{
		LayerSensing, LayerBelief, LayerReasoning,
		LayerVerification, LayerExecution, LayerGovernance,
	}
}

// #endregion layer

// #region header
// Header carries packet identity and causal lineage. Immutable once emitted.
type Header struct {
	PacketID         string     `json:"packet_id"`
	PacketType       PacketType `json:"packet_type"`
	CreatedAt        time.Time  `json:"created_at"`
	SourceLayer      Layer      `json:"source_layer"`
	CorrelationID    string     `json:"correlation_id"`
	CampaignID       string     `json:"campaign_id,omitempty"`
	PreviousPacketID string     `json:"previous_packet_id,omitempty"`
}

// #endregion header

// #region packet
// Packet is one typed message: header, MCP envelope, and a tagged payload.
type Packet struct {
	Header  Header
	MCP     Envelope
	Payload Payload
}

// #endregion packet

// #region decision-outcome
// Outcome enumerates the arbitration result a Decision payload may carry.
type Outcome string

const (
	OutcomeAct         Outcome = "ACT"
	OutcomeVerifyFirst Outcome = "VERIFY_FIRST"
	OutcomeEscalate    Outcome = "ESCALATE"
	OutcomeDefer       Outcome = "DEFER"
)

// #endregion decision-outcome

// #region safety-class
// SafetyClass classifies the side-effect profile of a tool action.
type SafetyClass string

const (
	SafetyRead  SafetyClass = "READ"
	SafetyWrite SafetyClass = "WRITE"
	SafetyMixed SafetyClass = "MIXED"
)

// Mutating reports whether the class can produce external side effects.
func (c SafetyClass) Mutating() bool {
	return c == SafetyWrite || c == SafetyMixed
}

// #endregion safety-class

// #region result-status
// ResultStatus is the terminal status a TaskResult reports for a directive.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailure ResultStatus = "FAILURE"
	ResultTimeout ResultStatus = "TIMEOUT"
)

// #endregion result-status

// #region alert-type
// AlertType classifies an IntegrityAlert payload or monitor event.
type AlertType string

const (
	AlertBudgetWarning      AlertType = "BUDGET_WARNING"
	AlertBudgetCritical     AlertType = "BUDGET_CRITICAL"
	AlertTokenRevoked       AlertType = "TOKEN_REVOKED"
	AlertTokenInvalid       AlertType = "TOKEN_INVALID"
	AlertContradiction      AlertType = "CONTRADICTION"
	AlertConstitutionalVeto AlertType = "CONSTITUTIONAL_VETO"
	AlertBudgetOverride     AlertType = "BUDGET_OVERRIDE"
	AlertSafeModeChange     AlertType = "SAFE_MODE_CHANGE"
)

// Severity grades an alert or monitor event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// #endregion alert-type
