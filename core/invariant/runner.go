package invariant

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"

	"cellcore/core/commitment"
	"cellcore/core/genop"
	"cellcore/core/identity"
	"cellcore/core/ledger"
	"cellcore/core/types"
	"cellcore/crypto"
)

// Config bundles Runner construction parameters, matching the trial
// structure described in spec.md section 4.6: "construct a fresh core, add
// initial_member_count members, apply up to max_operations_per_iteration
// generated operations, take a snapshot, evaluate every registered
// checker."
type Config struct {
	Seed                     int64
	Trials                   int
	InitialMemberCount       int
	MaxOperationsPerTrial    int
	Weights                  genop.Weights
	DefaultLimit             int64
	EnforceEscrowSafety      bool
}

// Counterexample is the reproducible failure record spec.md section 4.6
// requires: the seed, the trial and operation index, the pre-operation
// state, and the offending operation.
type Counterexample struct {
	Seed          int64            `json:"seed"`
	TrialIndex    int              `json:"trial_index"`
	OperationIndex int             `json:"operation_index"`
	PreState      Snapshot         `json:"pre_state"`
	Operation     genop.Operation  `json:"operation"`
	Violation     Violation        `json:"violation"`
}

// Report summarizes a completed run.
type Report struct {
	TrialsRun        int
	OperationsRun    int
	Counterexamples  []Counterexample
}

// Passed reports whether every trial satisfied every checker.
func (r *Report) Passed() bool { return len(r.Counterexamples) == 0 }

// trialCore bundles one trial's fresh identity registry, ledger, and
// commitment engine plus the private keys generated for its members (held
// only by the runner, never by the core components themselves).
type trialCore struct {
	registry   *identity.Registry
	ledger     *ledger.Ledger
	commitment *commitment.Engine
	port       crypto.Port
	keys       map[[20]byte]*crypto.PrivateKey
}

func newTrialCore(enforceEscrowSafety bool) *trialCore {
	port := crypto.NewFakePort()
	reg := identity.NewRegistry(identity.AllowAllPolicy{}, nil)
	led := ledger.New(ledger.Config{Identity: reg, Port: port, EnforceEscrowSafety: enforceEscrowSafety})
	eng := commitment.New(commitment.Config{Ledger: led, Identity: reg, Port: port})
	return &trialCore{registry: reg, ledger: led, commitment: eng, port: port, keys: map[[20]byte]*crypto.PrivateKey{}}
}

func keyBytes(id crypto.ID) [20]byte {
	var k [20]byte
	copy(k[:], id.Bytes())
	return k
}

// admitActive adds a member and fast-tracks it straight to ACTIVE, a
// simplification: the runner is exercising ledger and commitment
// invariants, not the admission probation window itself.
func (c *trialCore) admitActive(displayName string, limit int64) (crypto.ID, *crypto.PrivateKey, error) {
	pub, sk, err := c.port.Keypair()
	if err != nil {
		return crypto.ID{}, nil, err
	}
	id := c.port.DeriveIdentityID(pub)
	if _, err := c.registry.AddMember(id, pub.Bytes(), displayName, limit, types.StatusPending, 0); err != nil {
		return crypto.ID{}, nil, err
	}
	if err := c.registry.SetStatus(id, types.StatusProbation, "admit", "genop"); err != nil {
		return crypto.ID{}, nil, err
	}
	if err := c.registry.SetStatus(id, types.StatusActive, "complete", "genop"); err != nil {
		return crypto.ID{}, nil, err
	}
	c.ledger.OpenAccount(id)
	c.keys[keyBytes(id)] = sk
	return id, sk, nil
}

func (c *trialCore) genopState() genopState {
	return genopState{core: c}
}

type genopState struct {
	core *trialCore
}

func (s genopState) Members() []genop.MemberView {
	recs := s.core.registry.Snapshot()
	out := make([]genop.MemberView, 0, len(recs))
	for _, rec := range recs {
		if rec.Status != types.StatusActive {
			continue
		}
		bal, _ := s.core.ledger.GetBalance(rec.ID)
		res, _ := s.core.ledger.GetReserve(rec.ID)
		out = append(out, genop.MemberView{ID: rec.ID, Status: rec.Status, Limit: rec.Limit, Balance: bal, Reserve: res})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID.Bytes(), out[j].ID.Bytes()) < 0 })
	return out
}

func (s genopState) PendingEscrows() []genop.PendingEscrow {
	var out []genop.PendingEscrow
	snap := s.core.commitment.Snapshot()
	sort.Slice(snap, func(i, j int) bool { return snap[i].Nonce < snap[j].Nonce })
	for _, c := range snap {
		if c.State == types.CommitmentPending && c.Body.IsEscrowed() {
			out = append(out, genop.PendingEscrow{ID: c.ID, Promisor: c.Promisor, Promisee: c.Promisee, Value: c.Value})
		}
	}
	return out
}

// apply executes one generated operation against the trial core. Errors
// returned by the core (illegal draws) are not failures of the runner — the
// spec expects a fraction of draws to be rejected. A non-nil *Violation is
// reserved for invariant checker failures evaluated separately.
func (c *trialCore) apply(op genop.Operation, nonce uint64) error {
	switch op.Kind {
	case genop.OpTransfer:
		return c.applyTransfer(op, nonce)
	case genop.OpCreateCommitment:
		return c.applyCreateCommitment(op, nonce)
	case genop.OpFulfillCommitment:
		return c.applyFulfill(op)
	case genop.OpAdjustLimit:
		bal, _ := c.ledger.GetBalance(op.TargetMember)
		return c.registry.AdjustLimit(op.TargetMember, op.NewLimit, bal)
	case genop.OpAddMember:
		_, _, err := c.admitActive(fmt.Sprintf("genop-%d", op.NewMemberSeed), 100)
		return err
	case genop.OpRemoveMember:
		bal, _ := c.ledger.GetBalance(op.TargetMember)
		res, _ := c.ledger.GetReserve(op.TargetMember)
		if err := c.registry.RemoveMember(op.TargetMember, bal, res, "genop", "genop"); err != nil {
			return err
		}
		c.ledger.CloseAccount(op.TargetMember)
		return nil
	default:
		return fmt.Errorf("invariant: unknown operation kind %v", op.Kind)
	}
}

func (c *trialCore) applyTransfer(op genop.Operation, nonce uint64) error {
	payerSK, ok := c.keys[keyBytes(op.Payer)]
	if !ok {
		return fmt.Errorf("invariant: no signing key for payer %s", op.Payer)
	}
	tx := crypto.SpotTransaction{Payer: op.Payer, Payee: op.Payee, Amount: op.Amount, Description: "genop", CreatedAt: 0, Nonce: nonce}
	msg := tx.CanonicalBytes()
	sig, err := c.port.Sign(msg, payerSK)
	if err != nil {
		return err
	}
	set := ledger.SignedUpdateSet{
		Updates: []ledger.Update{
			{Member: op.Payer, Delta: -op.Amount, Reason: types.ReasonSpotTransactionPayer},
			{Member: op.Payee, Delta: op.Amount, Reason: types.ReasonSpotTransactionPayee},
		},
		CorrelationID: fmt.Sprintf("genop-tx-%d", nonce),
		Message:       msg,
		Signatures:    map[[20]byte][]byte{keyBytes(op.Payer): sig},
	}
	return c.ledger.ApplyBalanceUpdates(set)
}

func (c *trialCore) applyCreateCommitment(op genop.Operation, nonce uint64) error {
	promisorSK, ok := c.keys[keyBytes(op.Payer)]
	if !ok {
		return fmt.Errorf("invariant: no signing key for promisor %s", op.Payer)
	}
	req := commitment.CreateRequest{
		Escrowed:    op.Escrowed,
		Promisor:    op.Payer,
		Promisee:    op.Payee,
		Value:       op.Amount,
		Category:    "genop",
		Description: "genop",
		CreatedAt:   0,
		Nonce:       nonce,
		Deadline:    op.Deadline,
	}
	sig, err := c.port.Sign(req.CanonicalPayload().CanonicalBytes(), promisorSK)
	if err != nil {
		return err
	}
	req.Signature = sig
	_, err = c.commitment.CreateCommitment(req)
	return err
}

func (c *trialCore) applyFulfill(op genop.Operation) error {
	promiseeSK, ok := c.keys[keyBytes(op.Payee)]
	if !ok {
		return fmt.Errorf("invariant: no signing key for promisee %s", op.Payee)
	}
	confirmation, err := c.port.Sign(commitment.FulfillConfirmationMessage(op.CommitmentID), promiseeSK)
	if err != nil {
		return err
	}
	_, err = c.commitment.FulfillCommitment(op.CommitmentID, confirmation)
	return err
}

func (c *trialCore) snapshot() Snapshot {
	limits := map[[20]byte]int64{}
	for _, rec := range c.registry.Snapshot() {
		limits[keyBytes(rec.ID)] = rec.Limit
	}
	return Snapshot{
		Ledger:      c.ledger.Snapshot(),
		Limits:      limits,
		Commitments: c.commitment.Snapshot(),
		Journal:     c.ledger.Journal(),
	}
}

// Run executes cfg.Trials independent trials, returning every
// counterexample encountered.
func Run(cfg Config) (*Report, error) {
	report := &Report{}
	for trial := 0; trial < cfg.Trials; trial++ {
		trialSeed := deriveTrialSeed(cfg.Seed, trial)
		core := newTrialCore(cfg.EnforceEscrowSafety)
		for i := 0; i < cfg.InitialMemberCount; i++ {
			if _, _, err := core.admitActive(fmt.Sprintf("member-%d", i), cfg.DefaultLimit); err != nil {
				return report, fmt.Errorf("invariant: seeding member %d: %w", i, err)
			}
		}

		gen := genop.New(trialSeed, cfg.Weights, nil)
		for opIdx := 0; opIdx < cfg.MaxOperationsPerTrial; opIdx++ {
			op, ok := gen.Next(core.genopState())
			if !ok {
				continue
			}
			pre := core.snapshot()
			_ = core.apply(op, uint64(opIdx)) // rejection of illegal draws is expected and not a violation
			report.OperationsRun++

			if v := Evaluate(core.snapshot()); v != nil {
				report.Counterexamples = append(report.Counterexamples, Counterexample{
					Seed:           cfg.Seed,
					TrialIndex:     trial,
					OperationIndex: opIdx,
					PreState:       pre,
					Operation:      op,
					Violation:      *v,
				})
			}
		}
		report.TrialsRun++
	}
	return report, nil
}

// deriveTrialSeed derives trial i's generator seed from the run seed. This
// derivation itself must be deterministic (no time- or entropy-based
// input) so a fixed Config always reproduces the same sequence of trials.
func deriveTrialSeed(runSeed int64, trial int) int64 {
	r := rand.New(rand.NewSource(runSeed))
	var s int64
	for i := 0; i <= trial; i++ {
		s = r.Int63()
	}
	return s
}
