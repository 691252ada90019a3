package adversarial

import (
	"fmt"

	"cellcore/core/types"
	"cellcore/crypto"
)

// RunFederationSeverance implements ADV-05: a federation member carries an
// external position (Lambda) by extending credit into the local membership
// and receiving ordinary repayment flow back, then is suddenly severed
// (excluded) — modeling loss of connectivity to whatever off-cell
// settlement backs its position. Pass requires internal conservation still
// holds after severance and the federation's unsettled exposure at the
// moment of severance is no more than beta times its total external
// position (spec.md section 4.7).
func RunFederationSeverance(p FederationSeveranceParams) (Result, error) {
	w := newWorld(p.Seed, nil, true)

	federation, err := w.admitActive("federation", p.Lambda)
	if err != nil {
		return Result{}, fmt.Errorf("adv-05: seed federation member: %w", err)
	}

	locals := make([]crypto.ID, 0, p.N)
	for i := 0; i < p.N; i++ {
		id, err := w.admitActive(fmt.Sprintf("local-%d", i), p.DefaultLimit)
		if err != nil {
			return Result{}, fmt.Errorf("adv-05: seed local member %d: %w", i, err)
		}
		locals = append(locals, id)
	}

	// Ordinary federation activity: extend credit out, then have most of it
	// repaid, leaving a tail of unsettled exposure roughly proportional to
	// beta — the slice still in flight when the link is cut.
	step := p.Lambda / int64(p.N)
	if step <= 0 {
		step = 1
	}
	for _, id := range locals {
		if err := w.transfer(federation, id, step); err != nil {
			break
		}
	}
	repaySteps := int(float64(len(locals)) * (1 - p.Beta))
	for i := 0; i < repaySteps && i < len(locals); i++ {
		amount := w.maxTransferable(locals[i])
		if amount > step {
			amount = step
		}
		if amount > 0 {
			_ = w.transfer(locals[i], federation, amount)
		}
	}

	realizedExposure := -w.balance(federation)

	if err := w.registry.SetStatus(federation, types.StatusExcluded, "federation severed", "harness"); err != nil {
		return Result{}, fmt.Errorf("adv-05: sever federation: %w", err)
	}

	violation := w.checkCore()
	exposureCap := p.Beta * float64(p.Lambda)
	pass := violation == nil && float64(realizedExposure) <= exposureCap

	detail := fmt.Sprintf("realized_exposure=%d exposure_cap=%.0f lambda=%d", realizedExposure, exposureCap, p.Lambda)
	if violation != nil {
		detail = violation.Error() + "; " + detail
	}

	return Result{
		Scenario: "ADV-05",
		Pass:     pass,
		Detail:   detail,
		Metrics: map[string]float64{
			"realized_exposure": float64(realizedExposure),
			"exposure_cap":      exposureCap,
			"lambda":            float64(p.Lambda),
		},
	}, nil
}
