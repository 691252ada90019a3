// Package genop implements C5, the deterministic operation generator: a
// seeded PRNG producing a sequence of typed operations drawn from a
// weighted mixture, with arguments pulled from the live state at
// generation time so a meaningful fraction of generated operations are
// legal (spec.md section 4.5).
package genop

import (
	"math/rand"

	"golang.org/x/time/rate"

	"cellcore/core/types"
	"cellcore/crypto"
)

// OpKind is the kind of operation drawn by the generator.
type OpKind uint8

const (
	OpTransfer OpKind = iota
	OpCreateCommitment
	OpFulfillCommitment
	OpAdjustLimit
	OpAddMember
	OpRemoveMember
)

func (k OpKind) String() string {
	switch k {
	case OpTransfer:
		return "TRANSFER"
	case OpCreateCommitment:
		return "CREATE_COMMITMENT"
	case OpFulfillCommitment:
		return "FULFILL_COMMITMENT"
	case OpAdjustLimit:
		return "ADJUST_LIMIT"
	case OpAddMember:
		return "ADD_MEMBER"
	case OpRemoveMember:
		return "REMOVE_MEMBER"
	default:
		return "UNKNOWN"
	}
}

// Weights is the configurable weighted mixture. The zero value is invalid;
// use DefaultWeights for the spec's canonical split.
type Weights struct {
	Transfer         float64
	CreateCommitment float64
	Fulfill          float64
	AdjustLimit      float64
	AddMember        float64
	RemoveMember     float64
}

// DefaultWeights returns the canonical mixture from spec.md section 4.5:
// transactions 50%, create commitment 20%, fulfill 15%, limit adjust 5%,
// add member 5%, remove member 5%.
func DefaultWeights() Weights {
	return Weights{
		Transfer:         0.50,
		CreateCommitment: 0.20,
		Fulfill:          0.15,
		AdjustLimit:      0.05,
		AddMember:        0.05,
		RemoveMember:     0.05,
	}
}

func (w Weights) total() float64 {
	return w.Transfer + w.CreateCommitment + w.Fulfill + w.AdjustLimit + w.AddMember + w.RemoveMember
}

// MemberView is a member as the generator sees it: only the fields needed
// to pick plausible arguments. Balance/Reserve let the generator favor
// legal operations without being required to; illegal draws are permitted
// and expected (spec.md section 4.5).
type MemberView struct {
	ID      crypto.ID
	Status  types.Status
	Limit   int64
	Balance int64
	Reserve int64
}

// PendingEscrow is a pending escrowed commitment available to fulfill.
type PendingEscrow struct {
	ID       string
	Promisor crypto.ID
	Promisee crypto.ID
	Value    int64
}

// State is the live view of the world the generator draws arguments from.
// The caller (typically the invariant runner) supplies a fresh State
// reflecting the result of the previously generated operation before
// requesting the next one.
type State interface {
	Members() []MemberView
	PendingEscrows() []PendingEscrow
}

// Operation is one generated command. Only the fields relevant to Kind are
// populated; the caller is responsible for constructing the concrete
// signed call (it holds the signing keys and crypto port, which the
// generator does not).
type Operation struct {
	Kind OpKind

	Payer  crypto.ID
	Payee  crypto.ID
	Amount int64

	Escrowed bool
	Deadline *int64

	CommitmentID string

	TargetMember crypto.ID
	NewLimit     int64

	// NewMemberSeed seeds deterministic key material for an ADD_MEMBER
	// draw; the caller's crypto port (typically a FakePort in property
	// tests) turns it into an actual keypair.
	NewMemberSeed uint64
}

// Generator produces a deterministic sequence of operations from a seeded
// PRNG. Given the same seed, weights, and sequence of States, it produces
// the same sequence of Operations (spec.md section 4.5, "pure function of
// its inputs").
type Generator struct {
	rng              *rand.Rand
	weights          Weights
	addMemberLimiter *rate.Limiter
	memberSeed       uint64
}

// New constructs a Generator. addMemberLimiter may be nil to disable
// pacing of ADD_MEMBER draws (they are simply always eligible).
func New(seed int64, weights Weights, addMemberLimiter *rate.Limiter) *Generator {
	return &Generator{
		rng:              rand.New(rand.NewSource(seed)),
		weights:          weights,
		addMemberLimiter: addMemberLimiter,
	}
}

// Next draws one operation against the supplied live state. It returns
// false if no legal draw is possible at all (e.g. fewer than two members
// exist for a transfer-shaped draw and every other kind is also
// unavailable) — callers should treat this as "skip this tick".
func (g *Generator) Next(state State) (Operation, bool) {
	members := state.Members()
	kind := g.pickKind(len(members) >= 2, len(state.PendingEscrows()) > 0)
	switch kind {
	case OpTransfer:
		return g.genTransfer(members)
	case OpCreateCommitment:
		return g.genCreateCommitment(members)
	case OpFulfillCommitment:
		return g.genFulfill(state.PendingEscrows())
	case OpAdjustLimit:
		return g.genAdjustLimit(members)
	case OpAddMember:
		return g.genAddMember()
	case OpRemoveMember:
		return g.genRemoveMember(members)
	default:
		return Operation{}, false
	}
}

func (g *Generator) pickKind(canTransact, canFulfill bool) OpKind {
	w := g.weights
	if !canFulfill {
		w.Transfer += w.Fulfill
		w.Fulfill = 0
	}
	if !canTransact {
		// Fall back entirely to member-management draws.
		w = Weights{AddMember: 0.5, RemoveMember: 0.5}
	}
	total := w.total()
	if total <= 0 {
		return OpAddMember
	}
	r := g.rng.Float64() * total
	if r -= w.Transfer; r < 0 {
		return OpTransfer
	}
	if r -= w.CreateCommitment; r < 0 {
		return OpCreateCommitment
	}
	if r -= w.Fulfill; r < 0 {
		return OpFulfillCommitment
	}
	if r -= w.AdjustLimit; r < 0 {
		return OpAdjustLimit
	}
	if r -= w.AddMember; r < 0 {
		if g.addMemberLimiter != nil && !g.addMemberLimiter.Allow() {
			return OpTransfer
		}
		return OpAddMember
	}
	return OpRemoveMember
}

func (g *Generator) pickTwoDistinct(members []MemberView) (MemberView, MemberView, bool) {
	if len(members) < 2 {
		return MemberView{}, MemberView{}, false
	}
	i := g.rng.Intn(len(members))
	j := g.rng.Intn(len(members) - 1)
	if j >= i {
		j++
	}
	return members[i], members[j], true
}

// plausibleAmount draws an amount that is within the payer's available
// capacity 80% of the time and a wider, sometimes-illegal range the rest,
// per the spec's "meaningful fraction ... legal, illegal permitted".
func (g *Generator) plausibleAmount(payer MemberView) int64 {
	capacity := payer.Limit + payer.Balance - payer.Reserve
	if capacity < 1 {
		capacity = 1
	}
	if g.rng.Float64() < 0.8 {
		return 1 + g.rng.Int63n(capacity)
	}
	return 1 + g.rng.Int63n(capacity*2+1)
}

func (g *Generator) genTransfer(members []MemberView) (Operation, bool) {
	payer, payee, ok := g.pickTwoDistinct(members)
	if !ok {
		return Operation{}, false
	}
	return Operation{
		Kind:   OpTransfer,
		Payer:  payer.ID,
		Payee:  payee.ID,
		Amount: g.plausibleAmount(payer),
	}, true
}

func (g *Generator) genCreateCommitment(members []MemberView) (Operation, bool) {
	promisor, promisee, ok := g.pickTwoDistinct(members)
	if !ok {
		return Operation{}, false
	}
	op := Operation{
		Kind:     OpCreateCommitment,
		Payer:    promisor.ID,
		Payee:    promisee.ID,
		Amount:   g.plausibleAmount(promisor),
		Escrowed: g.rng.Intn(2) == 0,
	}
	if g.rng.Float64() < 0.3 {
		d := g.rng.Int63n(1000)
		op.Deadline = &d
	}
	return op, true
}

func (g *Generator) genFulfill(pending []PendingEscrow) (Operation, bool) {
	if len(pending) == 0 {
		return Operation{}, false
	}
	p := pending[g.rng.Intn(len(pending))]
	return Operation{
		Kind:         OpFulfillCommitment,
		CommitmentID: p.ID,
		Payer:        p.Promisor,
		Payee:        p.Promisee,
		Amount:       p.Value,
	}, true
}

func (g *Generator) genAdjustLimit(members []MemberView) (Operation, bool) {
	if len(members) == 0 {
		return Operation{}, false
	}
	m := members[g.rng.Intn(len(members))]
	delta := int64(g.rng.Intn(41) - 20) // [-20, 20]
	newLimit := m.Limit + delta
	if newLimit < 0 {
		newLimit = 0
	}
	return Operation{Kind: OpAdjustLimit, TargetMember: m.ID, NewLimit: newLimit}, true
}

func (g *Generator) genAddMember() (Operation, bool) {
	g.memberSeed++
	return Operation{Kind: OpAddMember, NewMemberSeed: g.memberSeed}, true
}

func (g *Generator) genRemoveMember(members []MemberView) (Operation, bool) {
	// Prefer a member with no outstanding balance or reserve, since removal
	// requires both to be zero; fall back to any member so the illegal draw
	// is still exercised.
	var clean, any []MemberView
	for _, m := range members {
		any = append(any, m)
		if m.Balance == 0 && m.Reserve == 0 {
			clean = append(clean, m)
		}
	}
	pool := clean
	if len(pool) == 0 {
		pool = any
	}
	if len(pool) == 0 {
		return Operation{}, false
	}
	m := pool[g.rng.Intn(len(pool))]
	return Operation{Kind: OpRemoveMember, TargetMember: m.ID}, true
}
