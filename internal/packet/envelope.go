package packet

// #region envelope
// Envelope is the MCP policy metadata block attached to every packet.
type Envelope struct {
	Intent     Intent     `json:"intent"`
	Stakes     Stakes     `json:"stakes"`
	Quality    Quality    `json:"quality"`
	Budgets    Budgets    `json:"budgets"`
	Epistemics Epistemics `json:"epistemics"`
	Evidence   Evidence   `json:"evidence"`
	Routing    Routing    `json:"routing"`
}

// #endregion envelope

// #region intent
// Intent summarizes what the packet is trying to accomplish.
type Intent struct {
	Summary string   `json:"summary"`
	Scope   []string `json:"scope,omitempty"`
}

// #endregion intent

// #region stakes
// ImpactLevel grades the blast radius of the action under consideration.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "LOW"
	ImpactMedium   ImpactLevel = "MEDIUM"
	ImpactHigh     ImpactLevel = "HIGH"
	ImpactCritical ImpactLevel = "CRITICAL"
)

// Irreversibility grades how hard the action is to undo.
type Irreversibility string

const (
	Reversible   Irreversibility = "REVERSIBLE"
	PartiallyRev Irreversibility = "PARTIAL"
	Irreversible Irreversibility = "IRREVERSIBLE"
)

// UncertaintyLevel grades confidence in the world model behind the action.
type UncertaintyLevel string

const (
	UncertaintyLow    UncertaintyLevel = "LOW"
	UncertaintyMedium UncertaintyLevel = "MEDIUM"
	UncertaintyHigh   UncertaintyLevel = "HIGH"
)

// Adversariality grades how contested the environment is.
type Adversariality string

const (
	Benign    Adversariality = "BENIGN"
	Contested Adversariality = "CONTESTED"
	Hostile   Adversariality = "HOSTILE"
)

// StakesLevel is the derived overall stakes grade.
type StakesLevel string

const (
	StakesLow      StakesLevel = "LOW"
	StakesMedium   StakesLevel = "MEDIUM"
	StakesHigh     StakesLevel = "HIGH"
	StakesCritical StakesLevel = "CRITICAL"
)

// Stakes carries the four contributing axes plus the derived level.
type Stakes struct {
	Impact          ImpactLevel      `json:"impact"`
	Irreversibility Irreversibility  `json:"irreversibility"`
	Uncertainty     UncertaintyLevel `json:"uncertainty"`
	Adversariality  Adversariality   `json:"adversariality"`
	Level           StakesLevel      `json:"stakes_level"`
}

// Rank maps an impact grade onto the shared 1..4 severity ranking.
func (v ImpactLevel) Rank() int {
	switch v {
	case ImpactCritical:
		return 4
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	}
	return 0
}

// Rank maps an irreversibility grade onto the shared 1..4 severity ranking.
func (v Irreversibility) Rank() int {
	switch v {
	case Irreversible:
		return 4
	case PartiallyRev:
		return 3
	case Reversible:
		return 1
	}
	return 0
}

// Rank maps an uncertainty grade onto the shared 1..4 severity ranking.
func (v UncertaintyLevel) Rank() int {
	switch v {
	case UncertaintyHigh:
		return 3
	case UncertaintyMedium:
		return 2
	case UncertaintyLow:
		return 1
	}
	return 0
}

// Rank maps an adversariality grade onto the shared 1..4 severity ranking.
func (v Adversariality) Rank() int {
	switch v {
	case Hostile:
		return 4
	case Contested:
		return 3
	case Benign:
		return 1
	}
	return 0
}

// Rank maps the derived stakes level onto the shared 1..4 severity ranking.
func (v StakesLevel) Rank() int {
	switch v {
	case StakesCritical:
		return 4
	case StakesHigh:
		return 3
	case StakesMedium:
		return 2
	case StakesLow:
		return 1
	}
	return 0
}

// MaxAxisRank returns the highest severity rank among the four axes.
func (s Stakes) MaxAxisRank() int {
	max := s.Impact.Rank()
	if r := s.Irreversibility.Rank(); r > max {
		max = r
	}
	if r := s.Uncertainty.Rank(); r > max {
		max = r
	}
	if r := s.Adversariality.Rank(); r > max {
		max = r
	}
	return max
}

// #endregion stakes

// #region quality
// QualityTier grades the required quality of the work product.
type QualityTier string

const (
	TierSubpar   QualityTier = "SUBPAR"
	TierStandard QualityTier = "STANDARD"
	TierSuperb   QualityTier = "SUPERB"
)

// DefinitionOfDone states when the work is acceptably complete.
type DefinitionOfDone struct {
	Text   string   `json:"text"`
	Checks []string `json:"checks,omitempty"`
}

// Quality carries tier, satisficing intent, and completion criteria.
type Quality struct {
	Tier                 QualityTier      `json:"tier"`
	Satisficing          bool             `json:"satisficing"`
	DefinitionOfDone     DefinitionOfDone `json:"definition_of_done"`
	VerificationRequired bool             `json:"verification_required"`
}

// #endregion quality

// #region budgets
// RiskBudget grades how much residual risk the episode may accept.
type RiskBudget string

const (
	RiskLow    RiskBudget = "LOW"
	RiskMedium RiskBudget = "MEDIUM"
	RiskHigh   RiskBudget = "HIGH"
)

// Budgets declares the resource ceilings for the episode.
type Budgets struct {
	Tokens    int64      `json:"tokens"`
	ToolCalls int64      `json:"tool_calls"`
	TimeMS    int64      `json:"time_ms"`
	Risk      RiskBudget `json:"risk"`
}

// #endregion budgets

// #region epistemics
// EpistemicStatus grades how the claim behind the packet was obtained.
type EpistemicStatus string

const (
	StatusObserved     EpistemicStatus = "OBSERVED"
	StatusInferred     EpistemicStatus = "INFERRED"
	StatusRemembered   EpistemicStatus = "REMEMBERED"
	StatusHypothesized EpistemicStatus = "HYPOTHESIZED"
	StatusUnknown      EpistemicStatus = "UNKNOWN"
)

// Freshness grades how current the claim needs to be, or is.
type Freshness string

const (
	FreshRealtime    Freshness = "REALTIME"
	FreshOperational Freshness = "OPERATIONAL"
	FreshStable      Freshness = "STABLE"
	FreshStale       Freshness = "STALE"
)

// Assumption records one assumption the packet rests on.
type Assumption struct {
	Text        string `json:"text"`
	LoadBearing bool   `json:"load_bearing"`
	Verified    bool   `json:"verified"`
}

// Epistemics carries grounding status, confidence, and assumptions.
type Epistemics struct {
	Status      EpistemicStatus `json:"status"`
	Confidence  float64         `json:"confidence"`
	Freshness   Freshness       `json:"freshness"`
	Assumptions []Assumption    `json:"assumptions,omitempty"`
}

// #endregion epistemics

// #region evidence
// EvidenceKind classifies the provenance of an evidence reference.
type EvidenceKind string

const (
	EvidenceToolOutput      EvidenceKind = "TOOL_OUTPUT"
	EvidenceUserObservation EvidenceKind = "USER_OBSERVATION"
	EvidenceMemory          EvidenceKind = "MEMORY"
	EvidenceInference       EvidenceKind = "INFERENCE"
	EvidenceDocument        EvidenceKind = "DOCUMENT"
)

// EvidenceRef points at one piece of supporting evidence.
type EvidenceRef struct {
	Kind EvidenceKind `json:"kind"`
	Ref  string       `json:"ref"`
	Note string       `json:"note,omitempty"`
}

// Evidence carries references, or an explicit reason for their absence.
// Empty refs with an empty absence reason is never legal.
type Evidence struct {
	Refs          []EvidenceRef `json:"refs,omitempty"`
	AbsenceReason string        `json:"absence_reason,omitempty"`
}

// Grounded reports whether the section satisfies the refs-XOR-reason rule.
func (e Evidence) Grounded() bool {
	return len(e.Refs) > 0 || e.AbsenceReason != ""
}

// #endregion evidence

// #region routing
// ToolsState reports tool availability as seen by the packet producer.
type ToolsState string

const (
	ToolsOK      ToolsState = "TOOLS_OK"
	ToolsPartial ToolsState = "TOOLS_PARTIAL"
	ToolsDown    ToolsState = "TOOLS_DOWN"
)

// Routing carries task classification and tool availability.
type Routing struct {
	TaskClass string     `json:"task_class"`
	Tools     ToolsState `json:"tools"`
}

// #endregion routing
