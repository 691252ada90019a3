// Package identity implements C1, the identity registry: the set of
// admitted members, their status, credit limits, and public keys. It holds
// no network code and no admission policy of its own — admission decisions
// are delegated to an injected AdmissionPolicy, and status/limit are the only
// fields this package owns (balance and reserve belong exclusively to the
// ledger).
package identity

import (
	"fmt"
	"log/slog"
	"sync"

	"cellcore/core/types"
	"cellcore/crypto"
)

// AdmissionPolicy is the opaque external collaborator (spec.md section 6)
// that validates an add_member request. The core supplies no policy itself.
type AdmissionPolicy interface {
	// Allow is invoked before a new member record is created. A non-nil
	// error denies admission; the registry wraps it in
	// AdmissionDeniedError.
	Allow(id crypto.ID, displayName string, limit int64) error
}

// AllowAllPolicy is a trivial AdmissionPolicy that never denies. It is a
// reasonable default for tests and for deployments that gate admission
// entirely upstream of the core.
type AllowAllPolicy struct{}

func (AllowAllPolicy) Allow(crypto.ID, string, int64) error { return nil }

// Record is a single member's identity-registry-owned state. PublicKey is
// stored as its uncompressed byte encoding; higher layers reconstruct a
// *crypto.PublicKey from it as needed.
type Record struct {
	ID            crypto.ID
	DisplayName   string
	PublicKey     []byte
	CreatedAt     int64
	LastActiveAt  int64
	Status        types.Status
	Limit         int64
}

// Clone returns a defensive deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.PublicKey = append([]byte(nil), r.PublicKey...)
	return &clone
}

// Registry is the in-memory identity store. It is safe for concurrent use:
// writes are serialized by the caller's single-logical-writer discipline
// (spec.md section 5), but reads may run concurrently via the embedded
// RWMutex.
type Registry struct {
	mu      sync.RWMutex
	members map[[20]byte]*Record
	byKey   map[string][20]byte
	policy  AdmissionPolicy
	logger  *slog.Logger
}

// NewRegistry constructs an empty registry. A nil policy defaults to
// AllowAllPolicy; a nil logger defaults to slog.Default().
func NewRegistry(policy AdmissionPolicy, logger *slog.Logger) *Registry {
	if policy == nil {
		policy = AllowAllPolicy{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		members: make(map[[20]byte]*Record),
		byKey:   make(map[string][20]byte),
		policy:  policy,
		logger:  logger,
	}
}

func keyOf(id crypto.ID) [20]byte {
	var k [20]byte
	copy(k[:], id.Bytes())
	return k
}

// AddMember creates a new member record. initialStatus must be StatusPending
// or StatusProbation per the lattice's documented entry points (spec.md
// section 4.1). publicKey must be a valid uncompressed secp256k1 encoding.
func (r *Registry) AddMember(id crypto.ID, publicKey []byte, displayName string, limit int64, initialStatus types.Status, now int64) (*Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidPublicKey)
	}
	pub, err := crypto.PublicKeyFromBytes(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if initialStatus != types.StatusPending && initialStatus != types.StatusProbation {
		return nil, fmt.Errorf("%w: initial status must be PENDING or PROBATION", ErrStatusTransitionForbidden)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyOf(id)
	if _, exists := r.members[k]; exists {
		return nil, ErrIdentityExists
	}
	keyDigest := string(pub.Bytes())
	if _, exists := r.byKey[keyDigest]; exists {
		return nil, ErrIdentityExists
	}

	if err := r.policy.Allow(id, displayName, limit); err != nil {
		return nil, &AdmissionDeniedError{Reason: err.Error()}
	}

	rec := &Record{
		ID:           id,
		DisplayName:  displayName,
		PublicKey:    append([]byte(nil), publicKey...),
		CreatedAt:    now,
		LastActiveAt: now,
		Status:       initialStatus,
		Limit:        limit,
	}
	r.members[k] = rec
	r.byKey[keyDigest] = k
	r.logger.Debug("identity: member admitted", "id", id.String(), "status", initialStatus.String())
	return rec.Clone(), nil
}

// Get returns a defensive copy of the member record.
func (r *Registry) Get(id crypto.ID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.members[keyOf(id)]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return rec.Clone(), nil
}

// SetStatus transitions a member's status, enforcing the lattice in
// spec.md section 4.1.
func (r *Registry) SetStatus(id crypto.ID, next types.Status, reason, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.members[keyOf(id)]
	if !ok {
		return ErrIdentityNotFound
	}
	if !rec.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusTransitionForbidden, rec.Status, next)
	}
	r.logger.Debug("identity: status transition", "id", id.String(), "from", rec.Status.String(), "to", next.String(), "reason", reason, "actor", actor)
	rec.Status = next
	return nil
}

// AdjustLimit changes a member's credit limit. The caller (typically a
// governance collaborator) is responsible for enforcing the per-interval
// bound eta; this method enforces only that the new limit stays positive and
// does not break balance >= -new_limit for the member's current balance.
// currentBalance is supplied by the ledger, which owns balance.
func (r *Registry) AdjustLimit(id crypto.ID, newLimit int64, currentBalance int64) error {
	if newLimit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrLimitAdjustUnsafe)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.members[keyOf(id)]
	if !ok {
		return ErrIdentityNotFound
	}
	if currentBalance < -newLimit {
		return ErrLimitAdjustUnsafe
	}
	rec.Limit = newLimit
	return nil
}

// RemoveMember deletes a member record. Permitted only when the ledger
// reports a zero balance and zero reserve for the member; the caller
// (typically the Cell façade) must check this before calling, since balance
// and reserve are owned by the ledger, not the registry.
func (r *Registry) RemoveMember(id crypto.ID, balance, reserve int64, reason, actor string) error {
	if balance != 0 || reserve != 0 {
		return ErrCannotRemoveNonzero
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.members[keyOf(id)]
	if !ok {
		return ErrIdentityNotFound
	}
	delete(r.members, keyOf(id))
	delete(r.byKey, string(rec.PublicKey))
	r.logger.Debug("identity: member removed", "id", id.String(), "reason", reason, "actor", actor)
	return nil
}

// Snapshot returns defensive copies of every member record, sorted by
// nothing in particular — callers that need determinism should sort by ID.
func (r *Registry) Snapshot() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.members))
	for _, rec := range r.members {
		out = append(out, rec.Clone())
	}
	return out
}

// Touch updates a member's last-active timestamp. It does not participate
// in any invariant and failures are non-fatal to callers that choose to
// ignore them.
func (r *Registry) Touch(id crypto.ID, now int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.members[keyOf(id)]
	if !ok {
		return ErrIdentityNotFound
	}
	rec.LastActiveAt = now
	return nil
}
