// Package ledger implements C3, the balance ledger: atomic multi-party
// balance deltas, floor enforcement, escrow-safe available-capacity
// computation, and reserve bookkeeping. It is the only component that
// mutates member balance or reserve (spec.md section 3, "Ownership &
// lifecycle").
package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"cellcore/core/identity"
	"cellcore/core/types"
	"cellcore/crypto"
)

// IdentityView is the read-only slice of the identity registry the ledger
// needs: current status and credit limit. The ledger never mutates either —
// those fields are exclusively owned by the identity registry.
type IdentityView interface {
	Get(id crypto.ID) (*identity.Record, error)
}

type account struct {
	balance int64
	reserve int64
}

// Update is one member's balance delta within an apply_balance_updates
// command (spec.md section 4.3).
type Update struct {
	Member crypto.ID
	Delta  int64
	Reason types.Reason
}

// SignedUpdateSet bundles an update batch with the canonical message each
// negative-delta member signed and the signatures collected over it. The
// canonical message construction (e.g. crypto.SpotTransaction.CanonicalBytes
// for a simple two-party transfer) is the caller's responsibility, since
// spec.md section 6 only fixes the canonical form for specific signable
// operation shapes, not for arbitrary n-way splits.
type SignedUpdateSet struct {
	Updates       []Update
	CorrelationID string
	Message       []byte
	Signatures    map[[20]byte][]byte // keyed by signing member's raw id bytes
}

// Ledger is the accounting kernel. All mutating methods serialize through
// whatever single-logical-writer discipline the caller provides (spec.md
// section 5); Ledger itself only guarantees that reads observe a
// consistent snapshot via its RWMutex.
type Ledger struct {
	mu                  sync.RWMutex
	accounts            map[[20]byte]account
	identity            IdentityView
	port                crypto.Port
	enforceEscrowSafety bool
	journal             []Entry
	observer            Observer
	logger              *slog.Logger
	metrics             *metrics
}

// Config bundles Ledger construction parameters.
type Config struct {
	Identity            IdentityView
	Port                crypto.Port
	EnforceEscrowSafety bool
	Observer            Observer
	Logger              *slog.Logger
}

// New constructs a Ledger over an empty account table.
func New(cfg Config) *Ledger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Ledger{
		accounts:            make(map[[20]byte]account),
		identity:            cfg.Identity,
		port:                cfg.Port,
		enforceEscrowSafety: cfg.EnforceEscrowSafety,
		observer:            observer,
		logger:              logger,
		metrics:             Metrics(),
	}
}

func keyOf(id crypto.ID) [20]byte {
	var k [20]byte
	copy(k[:], id.Bytes())
	return k
}

// OpenAccount registers a zero-balance, zero-reserve account for a newly
// admitted member. It is idempotent: reopening an existing account is a
// no-op.
func (l *Ledger) OpenAccount(id crypto.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := keyOf(id)
	if _, ok := l.accounts[k]; !ok {
		l.accounts[k] = account{}
	}
}

// CloseAccount removes a member's account entry once the identity registry
// has confirmed removal is safe (balance and reserve both zero).
func (l *Ledger) CloseAccount(id crypto.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, keyOf(id))
}

// GetBalance returns a member's current balance.
func (l *Ledger) GetBalance(id crypto.ID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[keyOf(id)]
	if !ok {
		return 0, ErrMemberNotFound
	}
	return acc.balance, nil
}

// GetReserve returns a member's currently held reserve.
func (l *Ledger) GetReserve(id crypto.ID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[keyOf(id)]
	if !ok {
		return 0, ErrMemberNotFound
	}
	return acc.reserve, nil
}

// GetAvailableCapacity returns max(0, limit + balance - reserve) for ACTIVE
// members and 0 otherwise (spec.md section 4.3).
func (l *Ledger) GetAvailableCapacity(id crypto.ID) (int64, error) {
	l.mu.RLock()
	acc, ok := l.accounts[keyOf(id)]
	l.mu.RUnlock()
	if !ok {
		return 0, ErrMemberNotFound
	}
	rec, err := l.identity.Get(id)
	if err != nil {
		return 0, err
	}
	if rec.Status != types.StatusActive {
		return 0, nil
	}
	capacity := rec.Limit + acc.balance - acc.reserve
	if capacity < 0 {
		return 0, nil
	}
	l.metrics.recordCapacity(id.String(), capacity)
	return capacity, nil
}

// sumDeltas computes Σ deltas, per-member net deltas, and whether any member
// appears with mixed-sign entries (a candidate self-exchange), failing with
// NUMERIC_OVERFLOW if the running sum cannot be represented in int64.
func sumDeltas(updates []Update) (total int64, net map[[20]byte]int64, mixedSign map[[20]byte]bool, err error) {
	net = make(map[[20]byte]int64, len(updates))
	mixedSign = make(map[[20]byte]bool)
	sawNegative := make(map[[20]byte]bool)
	sawPositive := make(map[[20]byte]bool)
	for _, u := range updates {
		k := keyOf(u.Member)
		newTotal, ok := addOverflowCheck(total, u.Delta)
		if !ok {
			return 0, nil, nil, ErrNumericOverflow
		}
		total = newTotal
		newNet, ok := addOverflowCheck(net[k], u.Delta)
		if !ok {
			return 0, nil, nil, ErrNumericOverflow
		}
		net[k] = newNet
		if u.Delta < 0 {
			sawNegative[k] = true
		} else if u.Delta > 0 {
			sawPositive[k] = true
		}
	}
	for k := range net {
		if sawNegative[k] && sawPositive[k] {
			mixedSign[k] = true
		}
	}
	return total, net, mixedSign, nil
}

func addOverflowCheck(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	if sum == math.MinInt64 {
		return 0, false
	}
	return sum, true
}

// ApplyBalanceUpdates is apply_balance_updates from spec.md section 4.3. All
// deltas commit or none do; preconditions are evaluated against the state as
// it stood before this call, in the order given by the spec: conservation,
// status, floor/escrow-safety, self-exchange, signature.
func (l *Ledger) ApplyBalanceUpdates(set SignedUpdateSet) error {
	if len(set.Updates) == 0 {
		return nil
	}

	total, net, mixedSign, err := sumDeltas(set.Updates)
	if err != nil {
		l.metrics.recordCommand("apply_balance_updates", "numeric_overflow")
		return err
	}
	if total != 0 {
		l.metrics.recordCommand("apply_balance_updates", "conservation_violation")
		return ErrConservationViolation
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Precondition 2: status. Senders (net negative) must be ACTIVE;
	// receivers (net non-negative) must be ACTIVE, PROBATION, or FROZEN
	// (spec.md section 4.1 — FROZEN and PROBATION may receive but not
	// initiate outflows).
	for k, delta := range net {
		rec, err := l.identityByKey(k)
		if err != nil {
			l.metrics.recordCommand("apply_balance_updates", "status_forbids")
			return fmt.Errorf("%w: %v", ErrStatusForbids, err)
		}
		if delta < 0 {
			if !rec.Status.CanInitiateOutflow() {
				l.metrics.recordCommand("apply_balance_updates", "status_forbids")
				return fmt.Errorf("%w: %s must be ACTIVE to send", ErrStatusForbids, rec.ID.String())
			}
		} else {
			if !rec.Status.CanReceive() {
				l.metrics.recordCommand("apply_balance_updates", "status_forbids")
				return fmt.Errorf("%w: %s cannot receive in status %s", ErrStatusForbids, rec.ID.String(), rec.Status)
			}
		}
	}

	// Precondition 3: floor and escrow safety for negative net deltas.
	for k, delta := range net {
		if delta >= 0 {
			continue
		}
		acc := l.accounts[k]
		rec, err := l.identityByKey(k)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStatusForbids, err)
		}
		newBalance, ok := addOverflowCheck(acc.balance, delta)
		if !ok {
			l.metrics.recordCommand("apply_balance_updates", "numeric_overflow")
			return ErrNumericOverflow
		}
		if newBalance < -rec.Limit {
			l.metrics.recordCommand("apply_balance_updates", "floor_breach")
			return ErrFloorBreach
		}
		if l.enforceEscrowSafety {
			if newBalance-acc.reserve < -rec.Limit {
				l.metrics.recordCommand("apply_balance_updates", "escrow_unsafe")
				return ErrEscrowUnsafe
			}
		}
	}

	// Precondition 4: self-exchange. A member touched with both a negative
	// and a positive entry in this set must net strictly positive.
	for k := range mixedSign {
		if net[k] <= 0 {
			l.metrics.recordCommand("apply_balance_updates", "self_exchange")
			return ErrSelfExchange
		}
	}

	// Precondition 5: each negative-net member must present a valid
	// signature over the canonical command, when a crypto port is wired.
	if l.port != nil {
		for k, delta := range net {
			if delta >= 0 {
				continue
			}
			rec, err := l.identityByKey(k)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStatusForbids, err)
			}
			sig, ok := set.Signatures[k]
			if !ok {
				l.metrics.recordCommand("apply_balance_updates", "signature_invalid")
				return ErrSignatureInvalid
			}
			pub, err := crypto.PublicKeyFromBytes(rec.PublicKey)
			if err != nil {
				l.metrics.recordCommand("apply_balance_updates", "signature_invalid")
				return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
			}
			if !l.port.Verify(set.Message, sig, pub) {
				l.metrics.recordCommand("apply_balance_updates", "signature_invalid")
				return ErrSignatureInvalid
			}
		}
	}

	// All preconditions satisfied: commit.
	entries := make([]Entry, 0, len(set.Updates))
	for _, u := range set.Updates {
		k := keyOf(u.Member)
		acc := l.accounts[k]
		acc.balance += u.Delta
		l.accounts[k] = acc
		entries = append(entries, Entry{
			MemberID:      k,
			Delta:         u.Delta,
			Reason:        u.Reason,
			CorrelationID: set.CorrelationID,
		})
	}
	l.journal = append(l.journal, entries...)
	l.observer.Notify(entries)
	l.metrics.recordCommand("apply_balance_updates", "ok")
	l.logger.Debug("ledger: applied balance updates", "correlation_id", set.CorrelationID, "count", len(entries))
	return nil
}

func (l *Ledger) identityByKey(k [20]byte) (*identity.Record, error) {
	id, err := crypto.NewID(k[:])
	if err != nil {
		return nil, err
	}
	return l.identity.Get(id)
}

// TakeReserve increases a member's reserve by amount, enforcing escrow
// safety at reservation time (spec.md section 4.3).
func (l *Ledger) TakeReserve(id crypto.ID, amount int64, correlationID string) error {
	if amount <= 0 {
		l.metrics.recordCommand("take_reserve", "reserve_unsafe")
		return ErrReserveUnsafe
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := keyOf(id)
	acc, ok := l.accounts[k]
	if !ok {
		return ErrMemberNotFound
	}
	rec, err := l.identity.Get(id)
	if err != nil {
		return err
	}
	newReserve, ok := addOverflowCheck(acc.reserve, amount)
	if !ok {
		l.metrics.recordCommand("take_reserve", "numeric_overflow")
		return ErrNumericOverflow
	}
	if acc.balance-newReserve < -rec.Limit {
		l.metrics.recordCommand("take_reserve", "reserve_unsafe")
		return ErrReserveUnsafe
	}
	acc.reserve = newReserve
	l.accounts[k] = acc
	entry := Entry{MemberID: k, Delta: 0, Reason: types.ReasonReserveTake, CorrelationID: correlationID}
	l.journal = append(l.journal, entry)
	l.observer.Notify([]Entry{entry})
	l.metrics.recordCommand("take_reserve", "ok")
	return nil
}

// ReleaseReserve decreases a member's reserve by amount.
func (l *Ledger) ReleaseReserve(id crypto.ID, amount int64, correlationID string) error {
	if amount <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := keyOf(id)
	acc, ok := l.accounts[k]
	if !ok {
		return ErrMemberNotFound
	}
	if acc.reserve < amount {
		l.metrics.recordCommand("release_reserve", "reserve_underflow")
		return ErrReserveUnderflow
	}
	acc.reserve -= amount
	l.accounts[k] = acc
	entry := Entry{MemberID: k, Delta: 0, Reason: types.ReasonReserveRelease, CorrelationID: correlationID}
	l.journal = append(l.journal, entry)
	l.observer.Notify([]Entry{entry})
	l.metrics.recordCommand("release_reserve", "ok")
	return nil
}

// Journal returns a defensive copy of every entry committed so far.
func (l *Ledger) Journal() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.journal))
	copy(out, l.journal)
	return out
}
