package adversarial

import (
	"fmt"
	"math/rand"

	"cellcore/crypto"
)

// RunExitScamWave implements ADV-01: attackers sit quietly inside ordinary
// honest-to-honest economic activity (the "legitimate-looking" camouflage),
// then at the defection tick simultaneously stop providing value and each
// push for one maximal final inflow from an assigned honest counterparty
// before going dormant. "Extraction" is the positive balance the attackers
// end up holding afterward — value they took that they will never pay
// back, since they go dormant immediately after (spec.md section 4.7).
func RunExitScamWave(p ExitScamParams) (Result, error) {
	w := newWorld(p.Seed, nil, true)

	type member struct {
		id        crypto.ID
		attacker  bool
	}
	members := make([]member, 0, p.N)
	for i := 0; i < p.N; i++ {
		id, err := w.admitActive(fmt.Sprintf("member-%d", i), p.DefaultLimit)
		if err != nil {
			return Result{}, fmt.Errorf("adv-01: seed member %d: %w", i, err)
		}
		members = append(members, member{id: id})
	}
	attackerCount := int(float64(p.N) * p.AttackerFraction)
	order := rand.New(rand.NewSource(p.Seed)).Perm(len(members))
	for i := 0; i < attackerCount; i++ {
		members[order[i]].attacker = true
	}

	honest := make([]int, 0, p.N-attackerCount)
	attackers := make([]int, 0, attackerCount)
	for i, m := range members {
		if m.attacker {
			attackers = append(attackers, i)
		} else {
			honest = append(honest, i)
		}
	}

	var violation error
	for tick := 0; tick < p.DefectionTick+10; tick++ {
		if len(honest) == 0 || len(attackers) == 0 {
			break
		}
		if tick < p.DefectionTick {
			// Ramp-up: ordinary honest-to-honest churn the attackers hide
			// inside, camouflaging their dormancy as unremarkable quiet.
			payerIdx := honest[w.rng.Intn(len(honest))]
			payeeIdx := honest[w.rng.Intn(len(honest))]
			if payerIdx == payeeIdx {
				continue
			}
			amount := w.maxTransferable(members[payerIdx].id) / 10
			if amount > 0 {
				_ = w.transfer(members[payerIdx].id, members[payeeIdx].id, amount)
			}
		} else if tick == p.DefectionTick {
			// Defection: every attacker pushes for one maximal final inflow
			// from a single assigned honest counterparty (round-robin, so
			// no attacker competes with another for the same victim) before
			// halting all activity — bounding any one attacker's extraction
			// at roughly its own apparent creditworthiness, L_default.
			for i, ai := range attackers {
				hi := honest[i%len(honest)]
				amount := w.maxTransferable(members[hi].id)
				if amount > p.DefaultLimit {
					amount = p.DefaultLimit
				}
				if amount > 0 {
					_ = w.transfer(members[hi].id, members[ai].id, amount)
				}
			}
		}
		if v := w.checkCore(); v != nil {
			violation = v
			break
		}
	}

	var totalExtraction int64
	for _, ai := range attackers {
		if b := w.balance(members[ai].id); b > 0 {
			totalExtraction += b
		}
	}

	survivors := 0
	for _, hi := range honest {
		if w.balance(members[hi].id) > -p.DefaultLimit {
			survivors++
		}
	}
	survivalRate := 1.0
	if len(honest) > 0 {
		survivalRate = float64(survivors) / float64(len(honest))
	}

	extractionCap := float64(p.AttackerFraction) * float64(p.N) * float64(p.DefaultLimit)
	pass := violation == nil && float64(totalExtraction) <= extractionCap && survivalRate >= 0.7

	detail := fmt.Sprintf("extraction=%d cap=%.0f survival=%.2f", totalExtraction, extractionCap, survivalRate)
	if violation != nil {
		detail = violation.Error() + "; " + detail
	}

	return Result{
		Scenario: "ADV-01",
		Pass:     pass,
		Detail:   detail,
		Metrics: map[string]float64{
			"total_extraction": float64(totalExtraction),
			"extraction_cap":   extractionCap,
			"honest_survival":  survivalRate,
		},
	}, nil
}
