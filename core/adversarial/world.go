// Package adversarial implements C7, the adversarial scenario harness:
// scripted attack programs over a fresh core with numeric success criteria
// evaluated against post-run metrics (spec.md section 4.7).
package adversarial

import (
	"fmt"
	"math/rand"

	"cellcore/core/commitment"
	"cellcore/core/identity"
	"cellcore/core/invariant"
	"cellcore/core/ledger"
	"cellcore/core/types"
	"cellcore/crypto"
)

// world bundles one scenario run's fresh identity registry, ledger, and
// commitment engine plus the signing keys the harness holds on members'
// behalf, mirroring invariant.trialCore (core/invariant/runner.go) since
// both need the same "fresh core driven by an external operator holding
// every key" shape.
type world struct {
	registry   *identity.Registry
	ledger     *ledger.Ledger
	commitment *commitment.Engine
	port       crypto.Port
	keys       map[[20]byte]*crypto.PrivateKey
	rng        *rand.Rand
}

func newWorld(seed int64, policy identity.AdmissionPolicy, enforceEscrowSafety bool) *world {
	port := crypto.NewFakePort()
	reg := identity.NewRegistry(policy, nil)
	led := ledger.New(ledger.Config{Identity: reg, Port: port, EnforceEscrowSafety: enforceEscrowSafety})
	eng := commitment.New(commitment.Config{Ledger: led, Identity: reg, Port: port})
	return &world{
		registry:   reg,
		ledger:     led,
		commitment: eng,
		port:       port,
		keys:       map[[20]byte]*crypto.PrivateKey{},
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func keyBytes(id crypto.ID) [20]byte {
	var k [20]byte
	copy(k[:], id.Bytes())
	return k
}

// admitActive admits a member and fast-tracks it to ACTIVE. A non-nil error
// (e.g. the admission policy's friction denying the request) is returned to
// the caller rather than treated as a harness bug — scenarios that probe
// admission friction (ADV-02) need to observe the rejection.
func (w *world) admitActive(displayName string, limit int64) (crypto.ID, error) {
	pub, sk, err := w.port.Keypair()
	if err != nil {
		return crypto.ID{}, err
	}
	id := w.port.DeriveIdentityID(pub)
	if _, err := w.registry.AddMember(id, pub.Bytes(), displayName, limit, types.StatusPending, 0); err != nil {
		return crypto.ID{}, err
	}
	w.keys[keyBytes(id)] = sk
	if err := w.registry.SetStatus(id, types.StatusProbation, "admit", "harness"); err != nil {
		return id, err
	}
	if err := w.registry.SetStatus(id, types.StatusActive, "complete", "harness"); err != nil {
		return id, err
	}
	w.ledger.OpenAccount(id)
	return id, nil
}

var nonceCounter uint64

func nextNonce() uint64 {
	nonceCounter++
	return nonceCounter
}

// transfer signs and applies a two-party spot transaction. Rejections
// (e.g. FLOOR_BREACH) are returned to the caller, not panicked — a fraction
// of attack steps are expected to be illegal.
func (w *world) transfer(payer, payee crypto.ID, amount int64) error {
	sk, ok := w.keys[keyBytes(payer)]
	if !ok {
		return fmt.Errorf("adversarial: no signing key for %s", payer)
	}
	tx := crypto.SpotTransaction{Payer: payer, Payee: payee, Amount: amount, Description: "harness", Nonce: nextNonce()}
	sig, err := w.port.Sign(tx.CanonicalBytes(), sk)
	if err != nil {
		return err
	}
	set := ledger.SignedUpdateSet{
		Updates: []ledger.Update{
			{Member: payer, Delta: -amount, Reason: types.ReasonSpotTransactionPayer},
			{Member: payee, Delta: amount, Reason: types.ReasonSpotTransactionPayee},
		},
		CorrelationID: fmt.Sprintf("adv-%d", tx.Nonce),
		Message:       tx.CanonicalBytes(),
		Signatures:    map[[20]byte][]byte{keyBytes(payer): sig},
	}
	return w.ledger.ApplyBalanceUpdates(set)
}

// maxTransferable returns the largest amount payer could legally send right
// now, per spec.md section 4.3's floor/escrow-safety preconditions.
func (w *world) maxTransferable(payer crypto.ID) int64 {
	capacity, err := w.ledger.GetAvailableCapacity(payer)
	if err != nil || capacity < 0 {
		return 0
	}
	return capacity
}

func (w *world) balance(id crypto.ID) int64 {
	b, _ := w.ledger.GetBalance(id)
	return b
}

// attemptLimitChange models a governance collaborator that enforces eta
// (spec.md glossary: the maximum per-interval change permitted to any
// member's limit) before delegating to the registry. The core itself does
// not enforce eta — spec.md section 6 treats governance as an external
// collaborator — so ADV-03 exercises this as the harness's own governance
// stand-in: a request whose magnitude exceeds eta is rejected outright,
// never partially applied.
func (w *world) attemptLimitChange(id crypto.ID, delta, eta int64) error {
	if delta > eta || delta < -eta {
		return fmt.Errorf("adversarial: governance: requested delta %d exceeds eta %d", delta, eta)
	}
	rec, err := w.registry.Get(id)
	if err != nil {
		return err
	}
	bal := w.balance(id)
	return w.registry.AdjustLimit(id, rec.Limit+delta, bal)
}

func (w *world) snapshot() invariant.Snapshot {
	limits := map[[20]byte]int64{}
	for _, rec := range w.registry.Snapshot() {
		limits[keyBytes(rec.ID)] = rec.Limit
	}
	return invariant.Snapshot{
		Ledger:      w.ledger.Snapshot(),
		Limits:      limits,
		Commitments: w.commitment.Snapshot(),
		Journal:     w.ledger.Journal(),
	}
}

// checkCore evaluates every registered invariant checker, returning the
// first violation (if any), so every scenario can assert INV-01/02 held
// throughout its run.
func (w *world) checkCore() *invariant.Violation {
	return invariant.Evaluate(w.snapshot())
}
