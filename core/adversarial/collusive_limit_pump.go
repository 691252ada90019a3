package adversarial

import (
	"fmt"

	"cellcore/crypto"
)

// RunCollusiveLimitPump implements ADV-03: a ring of colluding members each
// attempt to inflate their own credit limit far faster than eta (the
// governance-enforced per-interval cap) permits, then try to extract the
// inflated capacity as a wave of outflows to one another. Pass requires
// every attempted step in excess of eta was rejected and that no member's
// limit ever exceeded its starting limit plus eta times the number of
// periods elapsed (spec.md section 4.7, section 6 glossary "eta").
func RunCollusiveLimitPump(p CollusiveLimitPumpParams) (Result, error) {
	w := newWorld(p.Seed, nil, true)

	ring := make([]crypto.ID, 0, p.RingSize)
	for i := 0; i < p.RingSize; i++ {
		id, err := w.admitActive(fmt.Sprintf("ring-%d", i), p.DefaultLimit)
		if err != nil {
			return Result{}, fmt.Errorf("adv-03: seed ring member %d: %w", i, err)
		}
		ring = append(ring, id)
	}

	var rejectedSteps int
	for period := 0; period < p.Periods; period++ {
		for _, id := range ring {
			if err := w.attemptLimitChange(id, p.AttemptedStep, p.Eta); err != nil {
				rejectedSteps++
				continue
			}
			// AttemptedStep <= Eta: a legitimate governance-approved raise,
			// not part of the abuse this scenario probes.
		}
	}

	// Attempt to cash out whatever inflated capacity was actually granted by
	// routing outflows around the ring.
	for i, id := range ring {
		next := ring[(i+1)%len(ring)]
		amount := w.maxTransferable(id)
		if amount > 0 {
			_ = w.transfer(id, next, amount)
		}
	}

	// Extraction is the net value any ring member ends up holding — the
	// part of the cash-out cascade that was not immediately passed on —
	// not the gross sum of the cascade's individual transfers.
	var totalExtraction int64
	for _, id := range ring {
		if b := w.balance(id); b > 0 {
			totalExtraction += b
		}
	}

	violation := w.checkCore()

	maxAllowedLimit := p.DefaultLimit + p.Eta*int64(p.Periods)
	limitBreach := false
	for _, id := range ring {
		rec, err := w.registry.Get(id)
		if err != nil {
			continue
		}
		if rec.Limit > maxAllowedLimit {
			limitBreach = true
			break
		}
	}

	totalAttempts := p.RingSize * p.Periods
	extractionCap := int64(p.RingSize) * p.DefaultLimit
	pass := violation == nil && !limitBreach && rejectedSteps == totalAttempts && totalExtraction <= extractionCap

	detail := fmt.Sprintf("rejected=%d/%d max_allowed_limit=%d limit_breach=%v extraction=%d cap=%d", rejectedSteps, totalAttempts, maxAllowedLimit, limitBreach, totalExtraction, extractionCap)
	if violation != nil {
		detail = violation.Error() + "; " + detail
	}

	return Result{
		Scenario: "ADV-03",
		Pass:     pass,
		Detail:   detail,
		Metrics: map[string]float64{
			"rejected_steps":    float64(rejectedSteps),
			"total_attempts":    float64(totalAttempts),
			"max_allowed_limit": float64(maxAllowedLimit),
			"total_extraction":  float64(totalExtraction),
			"extraction_cap":    float64(extractionCap),
		},
	}, nil
}
