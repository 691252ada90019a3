package identity

import (
	"fmt"

	"golang.org/x/time/rate"

	"cellcore/crypto"
)

// FrictionPolicy is an AdmissionPolicy that bounds admission throughput with
// a token bucket, the concrete friction the Sybil-infiltration adversarial
// scenario (ADV-02) exercises: an attacker minting many identities in a
// short window exhausts the bucket and is denied, independent of any
// per-identity validation.
type FrictionPolicy struct {
	limiter *rate.Limiter
	inner   AdmissionPolicy
}

// NewFrictionPolicy wraps inner (or AllowAllPolicy if nil) with a limiter
// permitting ratePerInterval admissions per second, bursting up to burst.
func NewFrictionPolicy(ratePerInterval float64, burst int, inner AdmissionPolicy) *FrictionPolicy {
	if inner == nil {
		inner = AllowAllPolicy{}
	}
	return &FrictionPolicy{
		limiter: rate.NewLimiter(rate.Limit(ratePerInterval), burst),
		inner:   inner,
	}
}

func (p *FrictionPolicy) Allow(id crypto.ID, displayName string, limit int64) error {
	if !p.limiter.Allow() {
		return fmt.Errorf("admission rate exceeded")
	}
	return p.inner.Allow(id, displayName, limit)
}
