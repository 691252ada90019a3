package adversarial

import (
	"fmt"

	"cellcore/core/types"
)

// RunGovernanceCapture implements ADV-07: an infiltrator that has acquired
// policy (governance) authority attempts direct, balance-altering abuse —
// issuing itself credit out of thin air and moving its own floor out from
// under an already-negative balance — using every entry point this core
// exposes to a governance collaborator. There is no ledger API that sets a
// balance directly; every balance change is only reachable through
// Ledger.ApplyBalanceUpdates, which enforces conservation (delta sums to
// zero) and signature/status checks unconditionally. This scenario
// exercises that structural guarantee at runtime: every attempted abuse via
// the real entry points is rejected, and conservation/floor never break
// (spec.md section 4.7).
func RunGovernanceCapture(p GovernanceCaptureParams) (Result, error) {
	w := newWorld(p.Seed, nil, true)

	infiltrator, err := w.admitActive("infiltrator", p.DefaultLimit)
	if err != nil {
		return Result{}, fmt.Errorf("adv-07: seed infiltrator: %w", err)
	}
	victims, err := admitIndexedMembers(w, p.N, p.DefaultLimit)
	if err != nil {
		return Result{}, fmt.Errorf("adv-07: seed victims: %w", err)
	}

	// Put the infiltrator at its floor first, so the limit-shrink abuse
	// below is tested against a real already-negative balance rather than a
	// fabricated one.
	if debt := w.maxTransferable(infiltrator); debt > 0 {
		_ = w.transfer(infiltrator, victims[0], debt)
	}

	var rejectedAbuses, attemptedAbuses int

	for round := 0; round < p.AbuseRounds; round++ {
		// Attempt 1: issue credit to self by transferring far more than any
		// single victim could legally cover — every multi-party update must
		// still conserve, so this can only ever move existing capacity,
		// never mint it.
		attemptedAbuses++
		victim := victims[round%len(victims)]
		oversized := w.maxTransferable(victim) + p.DefaultLimit*1000
		if err := w.transfer(victim, infiltrator, oversized); err != nil {
			rejectedAbuses++
		}

		// Attempt 2: move its own floor out from under its real,
		// already-negative balance via a direct AdjustLimit call bypassing
		// any eta-respecting governance wrapper.
		attemptedAbuses++
		bal := w.balance(infiltrator)
		if err := w.registry.AdjustLimit(infiltrator, 1, bal); err != nil {
			rejectedAbuses++
		}

		// Attempt 3: force a status transition that would let it both send
		// and receive while EXCLUDED (skipping the lattice entirely would be
		// the only way to legally move funds post-capture).
		attemptedAbuses++
		if err := w.registry.SetStatus(infiltrator, types.StatusExcluded, "capture", "infiltrator"); err == nil {
			// If exclusion succeeds (the first round), a subsequent transfer
			// attempt must still be rejected by CanInitiateOutflow.
			if err := w.transfer(infiltrator, victims[0], 1); err != nil {
				rejectedAbuses++
			}
		} else {
			rejectedAbuses++
		}
	}

	violation := w.checkCore()
	pass := violation == nil && rejectedAbuses == attemptedAbuses

	detail := fmt.Sprintf("rejected=%d/%d", rejectedAbuses, attemptedAbuses)
	if violation != nil {
		detail = violation.Error() + "; " + detail
	}

	return Result{
		Scenario: "ADV-07",
		Pass:     pass,
		Detail:   detail,
		Metrics: map[string]float64{
			"rejected_abuses":  float64(rejectedAbuses),
			"attempted_abuses": float64(attemptedAbuses),
		},
	}, nil
}
