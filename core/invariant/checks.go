// Package invariant implements C6, the invariant runner: repeated
// independent trials over a fresh core driven by core/genop, each
// evaluated against the registered checkers INV-01..06 (spec.md section
// 4.6).
package invariant

import (
	"encoding/json"
	"fmt"

	"cellcore/core/commitment"
	"cellcore/core/ledger"
	"cellcore/core/types"
	"cellcore/crypto"
)

func keyOf(id crypto.ID) [20]byte {
	var k [20]byte
	copy(k[:], id.Bytes())
	return k
}

// Snapshot is the combined point-in-time view the checkers evaluate: ledger
// balances/reserves, each member's current limit, the outstanding
// commitments, and the full journal.
type Snapshot struct {
	Ledger      ledger.CellState
	Limits      map[[20]byte]int64
	Commitments []*commitment.Commitment
	Journal     []ledger.Entry
}

// limitEntry is one member's limit as rendered for JSON export; [20]byte map
// keys are not directly JSON-marshalable, so MarshalJSON flattens Limits
// into this form.
type limitEntry struct {
	Member string `json:"member"`
	Limit  int64  `json:"limit"`
}

// MarshalJSON renders Snapshot for forensic counterexample export (spec.md
// section 4.6), flattening the internal [20]byte-keyed Limits map into a
// list of (member, limit) pairs.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	limits := make([]limitEntry, 0, len(s.Limits))
	for k, v := range s.Limits {
		id, err := crypto.NewID(k[:])
		if err != nil {
			continue
		}
		limits = append(limits, limitEntry{Member: id.String(), Limit: v})
	}
	return json.Marshal(struct {
		Ledger      ledger.CellState         `json:"ledger"`
		Limits      []limitEntry             `json:"limits"`
		Commitments []*commitment.Commitment `json:"commitments"`
		Journal     []ledger.Entry           `json:"journal"`
	}{
		Ledger:      s.Ledger,
		Limits:      limits,
		Commitments: s.Commitments,
		Journal:     s.Journal,
	})
}

// Violation describes one failed checker.
type Violation struct {
	CheckID string
	Detail  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.CheckID, v.Detail)
}

// Checker evaluates one invariant against a snapshot, returning a non-nil
// *Violation on failure.
type Checker func(Snapshot) *Violation

// Checkers is the registered set, in the order given by spec.md section
// 4.6's table.
var Checkers = []Checker{
	CheckConservation,
	CheckFloor,
	CheckReserveNonNegative,
	CheckEscrowSafety,
	CheckEscrowReserveCoverage,
	CheckJournalBalance,
}

// CheckConservation is INV-01: the sum of every member's balance is exactly
// zero.
func CheckConservation(s Snapshot) *Violation {
	var total int64
	for _, m := range s.Ledger.Members {
		total += m.Balance
	}
	if total != 0 {
		return &Violation{"INV-01", fmt.Sprintf("sum of balances = %d, want 0", total)}
	}
	return nil
}

// CheckFloor is INV-02: no member's balance may fall below its negative
// credit limit.
func CheckFloor(s Snapshot) *Violation {
	for _, m := range s.Ledger.Members {
		limit := s.Limits[keyOf(m.ID)]
		if m.Balance < -limit {
			return &Violation{"INV-02", fmt.Sprintf("member %s balance %d breaches floor -%d", m.ID, m.Balance, limit)}
		}
	}
	return nil
}

// CheckReserveNonNegative is INV-03: reserve never goes negative.
func CheckReserveNonNegative(s Snapshot) *Violation {
	for _, m := range s.Ledger.Members {
		if m.Reserve < 0 {
			return &Violation{"INV-03", fmt.Sprintf("member %s reserve %d is negative", m.ID, m.Reserve)}
		}
	}
	return nil
}

// CheckEscrowSafety is INV-04: balance minus reserve never falls below the
// negative credit limit.
func CheckEscrowSafety(s Snapshot) *Violation {
	for _, m := range s.Ledger.Members {
		limit := s.Limits[keyOf(m.ID)]
		if m.Balance-m.Reserve < -limit {
			return &Violation{"INV-04", fmt.Sprintf("member %s balance-reserve %d breaches floor -%d", m.ID, m.Balance-m.Reserve, limit)}
		}
	}
	return nil
}

// CheckEscrowReserveCoverage is INV-05: for every PENDING escrowed
// commitment, the promisor's held reserve covers at least the sum of its
// outstanding escrowed commitment values.
func CheckEscrowReserveCoverage(s Snapshot) *Violation {
	pendingByPromisor := map[[20]byte]int64{}
	for _, c := range s.Commitments {
		if c.State == types.CommitmentPending && c.Body.IsEscrowed() {
			pendingByPromisor[keyOf(c.Promisor)] += c.Value
		}
	}
	reserveByMember := map[[20]byte]int64{}
	for _, m := range s.Ledger.Members {
		reserveByMember[keyOf(m.ID)] = m.Reserve
	}
	for k, pending := range pendingByPromisor {
		if reserveByMember[k] < pending {
			return &Violation{"INV-05", fmt.Sprintf("promisor reserve %d does not cover pending escrowed total %d", reserveByMember[k], pending)}
		}
	}
	return nil
}

// CheckJournalBalance is INV-06: every correlation id's deltas sum to zero.
func CheckJournalBalance(s Snapshot) *Violation {
	sums := map[string]int64{}
	for _, e := range s.Journal {
		sums[e.CorrelationID] += e.Delta
	}
	for corrID, sum := range sums {
		if sum != 0 {
			return &Violation{"INV-06", fmt.Sprintf("correlation %q deltas sum to %d, want 0", corrID, sum)}
		}
	}
	return nil
}

// Evaluate runs every registered checker against the snapshot, returning
// the first violation found, or nil if every checker passed.
func Evaluate(s Snapshot) *Violation {
	for _, check := range Checkers {
		if v := check(s); v != nil {
			return v
		}
	}
	return nil
}
