package ledger

import (
	"time"

	"packetgate/internal/packet"
)

// #region budget-state
// BudgetState tracks allocated vs consumed resources. Consumption is
// monotonically increasing; over-budget is derived, never stored.
type BudgetState struct {
	AllocatedTokens    int64
	ConsumedTokens     int64
	AllocatedToolCalls int64
	ConsumedToolCalls  int64
	AllocatedTimeMS    int64
	ConsumedTimeMS     int64
}

// IsOverBudget reports whether any consumed counter exceeds its allocation.
// A zero allocation means "not budgeted" and never trips.
func (b BudgetState) IsOverBudget() bool {
	if b.AllocatedTokens > 0 && b.ConsumedTokens > b.AllocatedTokens {
		return true
	}
	if b.AllocatedToolCalls > 0 && b.ConsumedToolCalls > b.AllocatedToolCalls {
		return true
	}
	if b.AllocatedTimeMS > 0 && b.ConsumedTimeMS > b.AllocatedTimeMS {
		return true
	}
	return false
}

// MaxRatio returns the highest consumed/allocated ratio across the token
// and tool-call budgets. Unbudgeted dimensions contribute 0.
func (b BudgetState) MaxRatio() float64 {
	var max float64
	if b.AllocatedTokens > 0 {
		if r := float64(b.ConsumedTokens) / float64(b.AllocatedTokens); r > max {
			max = r
		}
	}
	if b.AllocatedToolCalls > 0 {
		if r := float64(b.ConsumedToolCalls) / float64(b.AllocatedToolCalls); r > max {
			max = r
		}
	}
	return max
}

// #endregion budget-state

// #region active-token
// ActiveToken is the ledger's record of an issued authorization token.
type ActiveToken struct {
	TokenID       string
	Scope         packet.TokenScope
	IssuedAt      time.Time
	ExpiresAt     time.Time
	MaxUses       int
	UsesRemaining int
	Revoked       bool
}

// IsValid reports validity: not revoked, uses remaining, and (when clock
// checks are on) not expired. Invalidity is permanent by construction:
// revocation never clears and uses never increase.
func (t ActiveToken) IsValid(now time.Time, clockChecks bool) bool {
	if t.Revoked || t.UsesRemaining <= 0 {
		return false
	}
	if clockChecks && !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt) {
		return false
	}
	return true
}

// #endregion active-token

// #region open-directive
// DirectiveStatus is the lifecycle state of an issued task directive.
type DirectiveStatus string

const (
	DirectivePending   DirectiveStatus = "PENDING"
	DirectiveExecuting DirectiveStatus = "EXECUTING"
	DirectiveCompleted DirectiveStatus = "COMPLETED"
	DirectiveFailed    DirectiveStatus = "FAILED"
	DirectiveCancelled DirectiveStatus = "CANCELLED"
)

// Closed reports whether the status is terminal.
func (s DirectiveStatus) Closed() bool {
	return s == DirectiveCompleted || s == DirectiveFailed || s == DirectiveCancelled
}

// OpenDirective is the ledger's record of an issued task directive.
type OpenDirective struct {
	DirectiveID string
	TaskID      string
	ToolID      string
	Safety      packet.SafetyClass
	IssuedAt    time.Time
	TimeoutMS   int64
	Status      DirectiveStatus
}

// #endregion open-directive

// #region append-only-entries
// EvidenceEntry is one appended evidence reference.
type EvidenceEntry struct {
	PacketID string
	Ref      packet.EvidenceRef
	At       time.Time
}

// AssumptionEntry is one appended assumption.
type AssumptionEntry struct {
	PacketID   string
	Assumption packet.Assumption
	At         time.Time
}

// ContradictionEntry is one appended contradiction flag.
type ContradictionEntry struct {
	Detail string
	At     time.Time
}

// #endregion append-only-entries

// #region summary
// Summary is a point-in-time, side-effect-free view of ledger state.
type Summary struct {
	CorrelationID    string
	CreatedAt        time.Time
	Completed        bool
	Budget           BudgetState
	ActiveTokens     int
	RevokedTokens    int
	OpenDirectives   int
	ClosedDirectives int
	Evidence         int
	Assumptions      int
	Contradictions   int
}

// #endregion summary
