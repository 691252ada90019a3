package adversarial

import (
	"fmt"

	"cellcore/crypto"
)

// RunResourceShock implements ADV-04: every member's credit limit is cut
// simultaneously (a modeled liquidity shock), tripping panic mode once
// average available capacity falls below a threshold fraction of its
// pre-shock level, and limits are then restored gradually over a recovery
// window (external liquidity returning) rather than all at once. Pass
// requires panic mode was actually triggered by the shock and that average
// capacity recovers to a target fraction of its pre-shock level by the end
// of the window. A shock that would break a member's floor invariant is
// applied only down to the largest safe cut for that member, mirroring how
// AdjustLimit itself refuses an unsafe reduction (spec.md section 4.7).
func RunResourceShock(p ResourceShockParams) (Result, error) {
	w := newWorld(p.Seed, nil, true)

	members := make([]crypto.ID, 0, p.N)
	originalLimits := make(map[[20]byte]int64, p.N)
	for i := 0; i < p.N; i++ {
		id, err := w.admitActive(fmt.Sprintf("member-%d", i), p.DefaultLimit)
		if err != nil {
			return Result{}, fmt.Errorf("adv-04: seed member %d: %w", i, err)
		}
		members = append(members, id)
		originalLimits[keyBytes(id)] = p.DefaultLimit
	}

	// Ordinary pre-shock activity so balances are not all zero.
	for tick := 0; tick < p.ShockTick; tick++ {
		payer := members[w.rng.Intn(len(members))]
		payee := members[w.rng.Intn(len(members))]
		if payer == payee {
			continue
		}
		amount := w.maxTransferable(payer) / 4
		if amount > 0 {
			_ = w.transfer(payer, payee, amount)
		}
	}

	preShockCapacity := w.averageCapacity(members)

	for _, id := range members {
		rec, err := w.registry.Get(id)
		if err != nil {
			continue
		}
		target := int64(float64(rec.Limit) * p.ShockFactor)
		bal := w.balance(id)
		if target < -bal {
			target = -bal // largest safe cut: floor must not break
		}
		if target <= 0 {
			continue
		}
		_ = w.registry.AdjustLimit(id, target, bal)
	}

	postShockCapacity := w.averageCapacity(members)
	panicked := preShockCapacity > 0 && postShockCapacity < preShockCapacity*p.PanicThreshold

	// Recovery window: limits are restored toward their pre-shock values in
	// even steps, as external liquidity returns, while ordinary activity
	// continues.
	for tick := 0; tick < p.RecoveryWindow; tick++ {
		remaining := p.RecoveryWindow - tick
		for _, id := range members {
			rec, err := w.registry.Get(id)
			if err != nil {
				continue
			}
			target := originalLimits[keyBytes(id)]
			if rec.Limit >= target {
				continue
			}
			step := (target - rec.Limit) / int64(remaining)
			if step <= 0 {
				step = 1
			}
			newLimit := rec.Limit + step
			if newLimit > target {
				newLimit = target
			}
			_ = w.registry.AdjustLimit(id, newLimit, w.balance(id))
		}

		payer := members[w.rng.Intn(len(members))]
		payee := members[w.rng.Intn(len(members))]
		if payer == payee {
			continue
		}
		amount := w.maxTransferable(payer) / 4
		if amount > 0 {
			_ = w.transfer(payer, payee, amount)
		}
	}
	recoveredCapacity := w.averageCapacity(members)

	violation := w.checkCore()
	recoveryRatio := 0.0
	if preShockCapacity > 0 {
		recoveryRatio = recoveredCapacity / preShockCapacity
	}
	pass := violation == nil && panicked && recoveryRatio >= p.RecoveryTarget

	detail := fmt.Sprintf("pre=%.1f post=%.1f recovered=%.1f ratio=%.2f panicked=%v", preShockCapacity, postShockCapacity, recoveredCapacity, recoveryRatio, panicked)
	if violation != nil {
		detail = violation.Error() + "; " + detail
	}

	return Result{
		Scenario: "ADV-04",
		Pass:     pass,
		Detail:   detail,
		Metrics: map[string]float64{
			"pre_shock_capacity":  preShockCapacity,
			"post_shock_capacity": postShockCapacity,
			"recovered_capacity":  recoveredCapacity,
			"recovery_ratio":      recoveryRatio,
		},
	}, nil
}

func (w *world) averageCapacity(members []crypto.ID) float64 {
	if len(members) == 0 {
		return 0
	}
	var total int64
	for _, id := range members {
		total += w.maxTransferable(id)
	}
	return float64(total) / float64(len(members))
}
