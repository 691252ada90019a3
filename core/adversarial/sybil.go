package adversarial

import (
	"fmt"

	"cellcore/core/identity"
	"cellcore/crypto"
)

// RunSybilInfiltration implements ADV-02: an attacker attempts to admit far
// more identities than a legitimate member would, subject to the identity
// registry's admission friction (identity.FrictionPolicy). Each admitted
// Sybil then attempts to extract value from one honest anchor member; pass
// requires both the admitted count and the extraction to stay under their
// caps (spec.md section 4.7).
func RunSybilInfiltration(p SybilParams) (Result, error) {
	policy := identity.NewFrictionPolicy(p.AdmissionRate, p.AdmissionCap, nil)
	w := newWorld(p.Seed, policy, true)

	anchor, err := w.admitActive("anchor", p.DefaultLimit*int64(p.AttemptedSybils))
	if err != nil {
		return Result{}, fmt.Errorf("adv-02: seed anchor: %w", err)
	}

	var admitted []crypto.ID
	for i := 0; i < p.AttemptedSybils; i++ {
		id, err := w.admitActive(fmt.Sprintf("sybil-%d", i), p.DefaultLimit)
		if err != nil {
			continue // denied by friction — expected and desired
		}
		admitted = append(admitted, id)
	}

	var totalExtraction int64
	for _, id := range admitted {
		amount := w.maxTransferable(anchor)
		if amount > p.DefaultLimit {
			amount = p.DefaultLimit // each Sybil's extraction is bounded by its own apparent creditworthiness
		}
		if amount <= 0 {
			break
		}
		if err := w.transfer(anchor, id, amount); err == nil {
			totalExtraction += amount
		}
	}

	violation := w.checkCore()
	extractionCap := float64(p.AdmissionCap) * float64(p.DefaultLimit)
	pass := violation == nil && len(admitted) <= p.AdmissionCap && float64(totalExtraction) <= extractionCap

	detail := fmt.Sprintf("admitted=%d cap=%d extraction=%d extraction_cap=%.0f", len(admitted), p.AdmissionCap, totalExtraction, extractionCap)
	if violation != nil {
		detail = violation.Error() + "; " + detail
	}

	return Result{
		Scenario: "ADV-02",
		Pass:     pass,
		Detail:   detail,
		Metrics: map[string]float64{
			"admitted_sybils":  float64(len(admitted)),
			"admission_cap":    float64(p.AdmissionCap),
			"total_extraction": float64(totalExtraction),
			"extraction_cap":   extractionCap,
		},
	}, nil
}
