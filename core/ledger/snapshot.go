package ledger

import "cellcore/crypto"

// MemberSnapshot is one member's ledger-owned state at a point in time.
type MemberSnapshot struct {
	ID      crypto.ID
	Balance int64
	Reserve int64
}

// CellState is a consistent, point-in-time copy of every member's
// ledger-owned state plus the journal head offset (spec.md section 4.3,
// snapshot()).
type CellState struct {
	Members     []MemberSnapshot
	JournalHead int
}

// Snapshot returns a consistent copy of every account and the current
// journal length.
func (l *Ledger) Snapshot() CellState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	members := make([]MemberSnapshot, 0, len(l.accounts))
	for k, acc := range l.accounts {
		id, err := crypto.NewID(k[:])
		if err != nil {
			continue // unreachable: keys are always 20 bytes
		}
		members = append(members, MemberSnapshot{ID: id, Balance: acc.balance, Reserve: acc.reserve})
	}
	return CellState{Members: members, JournalHead: len(l.journal)}
}
