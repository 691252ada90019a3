// Package commitment implements C4, the commitment engine: soft and
// escrowed promises between members, reserve bookkeeping via the ledger,
// and the fulfillment/cancellation/expiry lifecycle (spec.md section 4.4).
package commitment

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"cellcore/core/identity"
	"cellcore/core/ledger"
	"cellcore/core/types"
	"cellcore/crypto"
)

// IdentityView is the read-only slice of the identity registry the
// commitment engine needs to validate promisor/promisee existence and
// exclusion status.
type IdentityView interface {
	Get(id crypto.ID) (*identity.Record, error)
}

// LedgerOps is the slice of ledger.Ledger the commitment engine drives.
// Declared as an interface so tests can substitute a fake ledger without
// standing up a full identity registry.
type LedgerOps interface {
	TakeReserve(id crypto.ID, amount int64, correlationID string) error
	ReleaseReserve(id crypto.ID, amount int64, correlationID string) error
	ApplyBalanceUpdates(set ledger.SignedUpdateSet) error
}

// Engine manages commitment lifecycle state, mutating ledger state only
// through LedgerOps — never touching member balance or reserve directly
// (spec.md section 3, "Ownership & lifecycle").
type Engine struct {
	mu       sync.Mutex
	ledger   LedgerOps
	identity IdentityView
	port     crypto.Port
	byID     map[string]*Commitment
	logger   *slog.Logger
}

// Config bundles Engine construction parameters.
type Config struct {
	Ledger   LedgerOps
	Identity IdentityView
	Port     crypto.Port
	Logger   *slog.Logger
}

// New constructs an Engine with no commitments.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger:   cfg.Ledger,
		identity: cfg.Identity,
		port:     cfg.Port,
		byID:     make(map[string]*Commitment),
		logger:   logger,
	}
}

// CreateRequest describes a create_commitment call.
type CreateRequest struct {
	Escrowed    bool
	Promisor    crypto.ID
	Promisee    crypto.ID
	Value       int64
	Category    string
	Description string
	CreatedAt   int64
	Nonce       uint64
	Deadline    *int64
	Signature   []byte // promisor's signature over the canonical commitment payload
}

// CanonicalPayload renders the request as the canonical commitment payload
// the promisor signs over (spec.md section 6).
func (r CreateRequest) CanonicalPayload() crypto.CommitmentPayload {
	kind := crypto.CommitmentKindSoft
	if r.Escrowed {
		kind = crypto.CommitmentKindEscrowed
	}
	return crypto.CommitmentPayload{
		Type:        kind,
		Promisor:    r.Promisor,
		Promisee:    r.Promisee,
		Value:       r.Value,
		Category:    r.Category,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		Nonce:       r.Nonce,
		Deadline:    r.Deadline,
	}
}

// CreateCommitment validates and records a new commitment, reserving ledger
// capacity for escrowed commitments (spec.md section 4.4).
func (e *Engine) CreateCommitment(req CreateRequest) (*Commitment, error) {
	if req.Value <= 0 {
		return nil, ErrInvalidValue
	}
	if req.Promisor == req.Promisee {
		return nil, ErrSelfCommitment
	}
	promisorRec, err := e.identity.Get(req.Promisor)
	if err != nil {
		return nil, err
	}
	promiseeRec, err := e.identity.Get(req.Promisee)
	if err != nil {
		return nil, err
	}
	if promisorRec.Status == types.StatusExcluded || promiseeRec.Status == types.StatusExcluded {
		return nil, ErrPromisorExcluded
	}
	if e.port != nil {
		pub, err := crypto.PublicKeyFromBytes(promisorRec.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("commitment: invalid promisor key: %w", err)
		}
		if !e.port.Verify(req.CanonicalPayload().CanonicalBytes(), req.Signature, pub) {
			return nil, ErrNotAuthorized
		}
	}

	body := types.NewSoftBody()
	if req.Escrowed {
		body = types.NewEscrowedBody()
	}

	c := &Commitment{
		ID:                uuid.NewString(),
		Body:              body,
		Promisor:          req.Promisor,
		Promisee:          req.Promisee,
		Value:             req.Value,
		Category:          req.Category,
		Description:       req.Description,
		CreatedAt:         req.CreatedAt,
		Nonce:             req.Nonce,
		Deadline:          req.Deadline,
		State:             types.CommitmentPending,
		PromisorSignature: append([]byte(nil), req.Signature...),
	}

	if body.IsEscrowed() {
		if err := e.ledger.TakeReserve(req.Promisor, req.Value, c.ID); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	e.byID[c.ID] = c
	e.mu.Unlock()
	e.logger.Debug("commitment: created", "id", c.ID, "kind", body.Kind(), "value", req.Value)
	return c.Clone(), nil
}

// Get returns a defensive copy of a commitment record.
func (e *Engine) Get(id string) (*Commitment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.byID[id]
	if !ok {
		return nil, ErrCommitmentNotFound
	}
	return c.Clone(), nil
}

// FulfillCommitment marks a PENDING commitment fulfilled. Soft commitments
// are recorded only; escrowed commitments atomically release the reserve
// and transfer the value under one correlation id. If the transfer fails,
// the reserve is re-taken so net state is unchanged and the caller sees the
// ledger's error (spec.md section 4.4).
func (e *Engine) FulfillCommitment(id string, confirmation []byte) (*Commitment, error) {
	e.mu.Lock()
	c, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return nil, ErrCommitmentNotFound
	}
	if c.State != types.CommitmentPending {
		e.mu.Unlock()
		return nil, ErrCommitmentTerminal
	}
	e.mu.Unlock()

	if e.port != nil {
		promiseeRec, err := e.identity.Get(c.Promisee)
		if err != nil {
			return nil, err
		}
		pub, err := crypto.PublicKeyFromBytes(promiseeRec.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("commitment: invalid promisee key: %w", err)
		}
		if !e.port.Verify(FulfillConfirmationMessage(id), confirmation, pub) {
			return nil, ErrNotAuthorized
		}
	}

	if c.Body.IsEscrowed() {
		if err := e.settleEscrowed(c); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	c.State = types.CommitmentFulfilled
	c.PromiseeConfirmation = append([]byte(nil), confirmation...)
	out := c.Clone()
	e.mu.Unlock()
	e.logger.Debug("commitment: fulfilled", "id", id)
	return out, nil
}

func (e *Engine) settleEscrowed(c *Commitment) error {
	if err := e.ledger.ReleaseReserve(c.Promisor, c.Value, c.ID); err != nil {
		return err
	}
	// The settlement transfer replays the promisor's original commitment
	// signature: escrow creation is itself the promisor's authorization to
	// move Value to the promisee once fulfillment is confirmed, so the
	// canonical message presented to the ledger is the same commitment
	// payload the promisor signed at creation time.
	payload := crypto.CommitmentPayload{
		Type:        crypto.CommitmentKindEscrowed,
		Promisor:    c.Promisor,
		Promisee:    c.Promisee,
		Value:       c.Value,
		Category:    c.Category,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		Nonce:       c.Nonce,
		Deadline:    c.Deadline,
	}
	var payerKey [20]byte
	copy(payerKey[:], c.Promisor.Bytes())
	set := ledger.SignedUpdateSet{
		Updates: []ledger.Update{
			{Member: c.Promisor, Delta: -c.Value, Reason: types.ReasonCommitmentFulfillPayer},
			{Member: c.Promisee, Delta: c.Value, Reason: types.ReasonCommitmentFulfillPayee},
		},
		CorrelationID: c.ID,
		Message:       payload.CanonicalBytes(),
		Signatures:    map[[20]byte][]byte{payerKey: c.PromisorSignature},
	}
	if err := e.ledger.ApplyBalanceUpdates(set); err != nil {
		// Roll back: re-take the reserve so net state is unchanged.
		if rerr := e.ledger.TakeReserve(c.Promisor, c.Value, c.ID+":rollback"); rerr != nil {
			e.logger.Error("commitment: failed to restore reserve after failed settlement", "id", c.ID, "error", rerr)
		}
		return err
	}
	return nil
}

func FulfillConfirmationMessage(id string) []byte {
	return []byte("fulfill:" + id)
}

// CancelCommitment cancels a pre-terminal commitment. Direct cancellation is
// permitted only by the promisor; the promisee may only reach a cancellation
// outcome via dispute resolution (spec.md section 4.4).
func (e *Engine) CancelCommitment(id string, actor crypto.ID, reason string) error {
	e.mu.Lock()
	c, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return ErrCommitmentNotFound
	}
	if c.State.Terminal() {
		e.mu.Unlock()
		return ErrCommitmentTerminal
	}
	if c.State != types.CommitmentDisputed && actor != c.Promisor {
		e.mu.Unlock()
		return ErrNotAuthorized
	}
	e.mu.Unlock()

	if c.Body.IsEscrowed() {
		if err := e.ledger.ReleaseReserve(c.Promisor, c.Value, c.ID); err != nil {
			return err
		}
	}

	e.mu.Lock()
	c.State = types.CommitmentCancelled
	e.mu.Unlock()
	e.logger.Debug("commitment: cancelled", "id", id, "reason", reason, "actor", actor.String())
	return nil
}

// Dispute transitions a PENDING commitment to DISPUTED. Only the promisee
// may raise a dispute.
func (e *Engine) Dispute(id string, actor crypto.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.byID[id]
	if !ok {
		return ErrCommitmentNotFound
	}
	if actor != c.Promisee {
		return ErrNotAuthorized
	}
	if c.State != types.CommitmentPending {
		return ErrCommitmentTerminal
	}
	c.State = types.CommitmentDisputed
	return nil
}

// ResolveDisputeFulfill resolves a DISPUTED commitment as fulfilled.
func (e *Engine) ResolveDisputeFulfill(id string, confirmation []byte) (*Commitment, error) {
	if err := e.requireDisputed(id); err != nil {
		return nil, err
	}
	e.mu.Lock()
	c := e.byID[id]
	c.State = types.CommitmentPending // reuse the PENDING fulfillment path
	e.mu.Unlock()
	out, err := e.FulfillCommitment(id, confirmation)
	if err != nil {
		e.mu.Lock()
		c.State = types.CommitmentDisputed
		e.mu.Unlock()
	}
	return out, err
}

// ResolveDisputeCancel resolves a DISPUTED commitment as cancelled.
func (e *Engine) ResolveDisputeCancel(id, reason string) error {
	if err := e.requireDisputed(id); err != nil {
		return err
	}
	e.mu.Lock()
	c := e.byID[id]
	e.mu.Unlock()
	return e.CancelCommitment(id, c.Promisor, reason)
}

func (e *Engine) requireDisputed(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.byID[id]
	if !ok {
		return ErrCommitmentNotFound
	}
	if c.State != types.CommitmentDisputed {
		return fmt.Errorf("%w: commitment is not disputed", ErrNotAuthorized)
	}
	return nil
}

// ExpireCommitments transitions every pre-terminal commitment whose deadline
// is before now to EXPIRED, releasing any held reserve. It is idempotent: a
// second call with the same now produces no further state change (spec.md
// section 8).
func (e *Engine) ExpireCommitments(now int64) ([]string, error) {
	e.mu.Lock()
	var candidates []*Commitment
	for _, c := range e.byID {
		if c.State.Terminal() {
			continue
		}
		if c.Deadline == nil || *c.Deadline >= now {
			continue
		}
		candidates = append(candidates, c)
	}
	e.mu.Unlock()

	expired := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Body.IsEscrowed() {
			if err := e.ledger.ReleaseReserve(c.Promisor, c.Value, c.ID); err != nil {
				return expired, err
			}
		}
		e.mu.Lock()
		c.State = types.CommitmentExpired
		e.mu.Unlock()
		expired = append(expired, c.ID)
	}
	return expired, nil
}

// PendingEscrowedReserve sums the value of every PENDING escrowed commitment
// a member has outstanding as promisor, the quantity INV-05 checks against
// the ledger's held reserve.
func (e *Engine) PendingEscrowedReserve(promisor crypto.ID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total int64
	for _, c := range e.byID {
		if c.State == types.CommitmentPending && c.Body.IsEscrowed() && c.Promisor == promisor {
			total += c.Value
		}
	}
	return total
}

// Snapshot returns defensive copies of every commitment record.
func (e *Engine) Snapshot() []*Commitment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Commitment, 0, len(e.byID))
	for _, c := range e.byID {
		out = append(out, c.Clone())
	}
	return out
}
