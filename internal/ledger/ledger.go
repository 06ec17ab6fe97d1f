package ledger

import (
	"fmt"
	"sync"
	"time"

	"packetgate/internal/packet"
)

// #region ledger-struct
// Ledger owns all per-episode mutable state. One instance per correlation
// id, created on the episode's first packet. The mutex exists because the
// integrity monitor reads ledgers across episodes while the owning episode
// mutates them.
type Ledger struct {
	mu sync.Mutex

	correlationID string
	createdAt     time.Time
	completed     bool

	budget     BudgetState
	tokens     map[string]*ActiveToken
	directives map[string]*OpenDirective

	evidence       []EvidenceEntry
	assumptions    []AssumptionEntry
	contradictions []ContradictionEntry
}

// New creates a ledger for one episode with its budget allocation.
func New(correlationID string, budgets packet.Budgets, now time.Time) *Ledger {
	return &Ledger{
		correlationID: correlationID,
		createdAt:     now,
		budget: BudgetState{
			AllocatedTokens:    budgets.Tokens,
			AllocatedToolCalls: budgets.ToolCalls,
			AllocatedTimeMS:    budgets.TimeMS,
		},
		tokens:     make(map[string]*ActiveToken),
		directives: make(map[string]*OpenDirective),
	}
}

// CorrelationID returns the episode identity this ledger belongs to.
func (l *Ledger) CorrelationID() string { return l.correlationID }

// #endregion ledger-struct

// #region budget
// Consume adds declared usage to the consumed counters. Negative values
// are rejected: consumption only increases.
func (l *Ledger) Consume(tokens, toolCalls, timeMS int64) error {
	if tokens < 0 || toolCalls < 0 || timeMS < 0 {
		return fmt.Errorf("consume: negative usage (tokens=%d tool_calls=%d time_ms=%d)", tokens, toolCalls, timeMS)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budget.ConsumedTokens += tokens
	l.budget.ConsumedToolCalls += toolCalls
	l.budget.ConsumedTimeMS += timeMS
	return nil
}

// Budget returns a copy of the current budget state.
func (l *Ledger) Budget() BudgetState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.budget
}

// #endregion budget

// #region tokens
// IssueToken registers a new authorization token. Re-issuing an existing
// token id is an error.
func (l *Ledger) IssueToken(tok ActiveToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tokens[tok.TokenID]; exists {
		return fmt.Errorf("issue token: %s already issued", tok.TokenID)
	}
	cp := tok
	l.tokens[tok.TokenID] = &cp
	return nil
}

// Token returns a copy of the token record, if issued.
func (l *Ledger) Token(id string) (ActiveToken, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[id]
	if !ok {
		return ActiveToken{}, false
	}
	return *tok, true
}

// RevokeToken marks a token revoked. Idempotent and irreversible.
// Returns false when the token was never issued.
func (l *Ledger) RevokeToken(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[id]
	if !ok {
		return false
	}
	tok.Revoked = true
	return true
}

// RevokeAllTokens revokes every issued token and returns how many were
// newly revoked.
func (l *Ledger) RevokeAllTokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, tok := range l.tokens {
		if !tok.Revoked {
			tok.Revoked = true
			n++
		}
	}
	return n
}

// UseToken decrements a token's remaining uses. Fails on unknown, revoked,
// exhausted, or (when clock checks are on) expired tokens.
func (l *Ledger) UseToken(id string, now time.Time, clockChecks bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[id]
	if !ok {
		return fmt.Errorf("use token: %s not issued", id)
	}
	if !tok.IsValid(now, clockChecks) {
		return fmt.Errorf("use token: %s is not valid", id)
	}
	tok.UsesRemaining--
	return nil
}

// Tokens returns copies of all issued tokens.
func (l *Ledger) Tokens() []ActiveToken {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ActiveToken, 0, len(l.tokens))
	for _, tok := range l.tokens {
		out = append(out, *tok)
	}
	return out
}

// #endregion tokens

// #region directives
// OpenDirective registers an issued directive. Re-opening an existing
// directive id is an error.
func (l *Ledger) OpenDirective(d OpenDirective) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.directives[d.DirectiveID]; exists {
		return fmt.Errorf("open directive: %s already open", d.DirectiveID)
	}
	if d.Status == "" {
		d.Status = DirectivePending
	}
	cp := d
	l.directives[d.DirectiveID] = &cp
	return nil
}

// CloseDirective moves a directive to a terminal status. Closing a
// directive that does not exist, or is already closed, is a no-op
// reported as false. A directive closes exactly once.
func (l *Ledger) CloseDirective(id string, status DirectiveStatus) bool {
	if !status.Closed() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.directives[id]
	if !ok || d.Status.Closed() {
		return false
	}
	d.Status = status
	return true
}

// Directive returns a copy of the directive record, if present.
func (l *Ledger) Directive(id string) (OpenDirective, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.directives[id]
	if !ok {
		return OpenDirective{}, false
	}
	return *d, true
}

// OpenDirectives returns copies of all directives not yet closed.
func (l *Ledger) OpenDirectives() []OpenDirective {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []OpenDirective
	for _, d := range l.directives {
		if !d.Status.Closed() {
			out = append(out, *d)
		}
	}
	return out
}

// #endregion directives

// #region append-only
// AppendEvidence appends evidence references to the audit log.
func (l *Ledger) AppendEvidence(packetID string, refs []packet.EvidenceRef, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ref := range refs {
		l.evidence = append(l.evidence, EvidenceEntry{PacketID: packetID, Ref: ref, At: at})
	}
}

// AppendAssumptions appends assumptions to the audit log.
func (l *Ledger) AppendAssumptions(packetID string, assumptions []packet.Assumption, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range assumptions {
		l.assumptions = append(l.assumptions, AssumptionEntry{PacketID: packetID, Assumption: a, At: at})
	}
}

// FlagContradiction appends a contradiction flag and returns the new count.
func (l *Ledger) FlagContradiction(detail string, at time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contradictions = append(l.contradictions, ContradictionEntry{Detail: detail, At: at})
	return len(l.contradictions)
}

// Contradictions returns the number of flagged contradictions.
func (l *Ledger) Contradictions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.contradictions)
}

// #endregion append-only

// #region lifecycle
// MarkComplete flags the episode complete. State is retained for audit
// until the owner discards the ledger; there is no implicit cleanup.
func (l *Ledger) MarkComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = true
}

// Completed reports whether the episode was marked complete.
func (l *Ledger) Completed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}

// Summary produces a point-in-time view without side effects.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		CorrelationID:  l.correlationID,
		CreatedAt:      l.createdAt,
		Completed:      l.completed,
		Budget:         l.budget,
		Evidence:       len(l.evidence),
		Assumptions:    len(l.assumptions),
		Contradictions: len(l.contradictions),
	}
	for _, tok := range l.tokens {
		if tok.Revoked {
			s.RevokedTokens++
		} else {
			s.ActiveTokens++
		}
	}
	for _, d := range l.directives {
		if d.Status.Closed() {
			s.ClosedDirectives++
		} else {
			s.OpenDirectives++
		}
	}
	return s
}

// #endregion lifecycle
