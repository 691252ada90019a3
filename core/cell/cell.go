// Package cell wires the identity registry (C1), balance ledger (C3), and
// commitment engine (C4) behind a single façade implementing the
// single-logical-writer discipline of spec.md section 5: every mutating
// command is submitted to one dedicated writer goroutine draining a bounded
// channel, so observed command order is total and fixed at acceptance even
// when callers submit concurrently. Reads are served directly against the
// underlying components, which already guard themselves with their own locks.
package cell

import (
	"log/slog"

	"github.com/google/uuid"

	"cellcore/core/commitment"
	"cellcore/core/identity"
	"cellcore/core/ledger"
	"cellcore/core/types"
	"cellcore/crypto"
)

// Config bundles Cell construction parameters.
type Config struct {
	Port            crypto.Port
	Policy          identity.AdmissionPolicy
	EnforceEscrow   bool
	Logger          *slog.Logger
	WriterQueueSize int
}

// Cell is the top-level façade a deployment drives: every exported mutating
// method enqueues a closure onto the writer goroutine and blocks for its
// result, giving callers a synchronous command interface over the
// single-logical-writer core (DESIGN NOTES, "Concurrency").
type Cell struct {
	Registry   *identity.Registry
	Ledger     *ledger.Ledger
	Commitment *commitment.Engine
	Port       crypto.Port

	logger *slog.Logger
	cmds   chan func()
	done   chan struct{}
}

// New constructs a Cell with empty registry, ledger, and commitment engine,
// and starts its single writer goroutine.
func New(cfg Config) *Cell {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.WriterQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	reg := identity.NewRegistry(cfg.Policy, logger)
	led := ledger.New(ledger.Config{Identity: reg, Port: cfg.Port, EnforceEscrowSafety: cfg.EnforceEscrow, Logger: logger})
	eng := commitment.New(commitment.Config{Ledger: led, Identity: reg, Port: cfg.Port, Logger: logger})

	c := &Cell{
		Registry:   reg,
		Ledger:     led,
		Commitment: eng,
		Port:       cfg.Port,
		logger:     logger,
		cmds:       make(chan func(), queueSize),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

// run is the single writer goroutine. It drains cmds in arrival order until
// Close is called, giving the core's total command ordering guarantee.
func (c *Cell) run() {
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.done:
			// Drain whatever is already queued before exiting, so a Close
			// racing with in-flight Submit calls never silently drops a
			// command that was already accepted onto the channel.
			for {
				select {
				case fn := <-c.cmds:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Close stops the writer goroutine after draining any queued commands. It
// does not wait for commands submitted after Close returns; callers must
// stop calling mutating methods before closing.
func (c *Cell) Close() {
	close(c.done)
}

// submit runs fn on the writer goroutine and blocks for its error result.
func (c *Cell) submit(fn func() error) error {
	result := make(chan error, 1)
	c.cmds <- func() { result <- fn() }
	return <-result
}

// AddMemberRequest describes an admit_member command.
type AddMemberRequest struct {
	ID            crypto.ID
	PublicKey     []byte
	DisplayName   string
	Limit         int64
	InitialStatus types.Status
	Now           int64
}

// AddMember admits a new member and opens its ledger account atomically
// from the caller's perspective: either both succeed or neither is visible.
func (c *Cell) AddMember(req AddMemberRequest) (*identity.Record, error) {
	var rec *identity.Record
	err := c.submit(func() error {
		r, err := c.Registry.AddMember(req.ID, req.PublicKey, req.DisplayName, req.Limit, req.InitialStatus, req.Now)
		if err != nil {
			return err
		}
		c.Ledger.OpenAccount(req.ID)
		rec = r
		return nil
	})
	return rec, err
}

// SetStatus transitions a member's status through the identity lattice.
func (c *Cell) SetStatus(id crypto.ID, next types.Status, reason, actor string) error {
	return c.submit(func() error {
		return c.Registry.SetStatus(id, next, reason, actor)
	})
}

// AdjustLimit changes a member's credit limit, reading the member's current
// balance from the ledger so the registry can enforce floor safety without
// owning balance itself.
func (c *Cell) AdjustLimit(id crypto.ID, newLimit int64) error {
	return c.submit(func() error {
		bal, err := c.Ledger.GetBalance(id)
		if err != nil {
			return err
		}
		return c.Registry.AdjustLimit(id, newLimit, bal)
	})
}

// RemoveMember removes a member once the ledger confirms a zero balance and
// reserve, then closes its ledger account.
func (c *Cell) RemoveMember(id crypto.ID, reason, actor string) error {
	return c.submit(func() error {
		bal, err := c.Ledger.GetBalance(id)
		if err != nil {
			return err
		}
		res, err := c.Ledger.GetReserve(id)
		if err != nil {
			return err
		}
		if err := c.Registry.RemoveMember(id, bal, res, reason, actor); err != nil {
			return err
		}
		c.Ledger.CloseAccount(id)
		return nil
	})
}

// TransferRequest describes a two-party spot transaction.
type TransferRequest struct {
	Payer       crypto.ID
	Payee       crypto.ID
	Amount      int64
	Description string
	CreatedAt   int64
	Nonce       uint64
	Signature   []byte
}

// Transfer applies a signed two-party balance update through the ledger.
func (c *Cell) Transfer(req TransferRequest) error {
	tx := crypto.SpotTransaction{
		Payer:       req.Payer,
		Payee:       req.Payee,
		Amount:      req.Amount,
		Description: req.Description,
		CreatedAt:   req.CreatedAt,
		Nonce:       req.Nonce,
	}
	var payerKey [20]byte
	copy(payerKey[:], req.Payer.Bytes())
	set := ledger.SignedUpdateSet{
		Updates: []ledger.Update{
			{Member: req.Payer, Delta: -req.Amount, Reason: types.ReasonSpotTransactionPayer},
			{Member: req.Payee, Delta: req.Amount, Reason: types.ReasonSpotTransactionPayee},
		},
		CorrelationID: uuid.NewString(),
		Message:       tx.CanonicalBytes(),
		Signatures:    map[[20]byte][]byte{payerKey: req.Signature},
	}
	return c.submit(func() error {
		return c.Ledger.ApplyBalanceUpdates(set)
	})
}

// CreateCommitment creates a soft or escrowed commitment.
func (c *Cell) CreateCommitment(req commitment.CreateRequest) (*commitment.Commitment, error) {
	var out *commitment.Commitment
	err := c.submit(func() error {
		created, err := c.Commitment.CreateCommitment(req)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// FulfillCommitment confirms and settles a pending commitment.
func (c *Cell) FulfillCommitment(id string, confirmation []byte) (*commitment.Commitment, error) {
	var out *commitment.Commitment
	err := c.submit(func() error {
		fulfilled, err := c.Commitment.FulfillCommitment(id, confirmation)
		if err != nil {
			return err
		}
		out = fulfilled
		return nil
	})
	return out, err
}

// CancelCommitment cancels a pre-terminal commitment.
func (c *Cell) CancelCommitment(id string, actor crypto.ID, reason string) error {
	return c.submit(func() error {
		return c.Commitment.CancelCommitment(id, actor, reason)
	})
}

// ExpireCommitments sweeps every pre-terminal commitment whose deadline has
// passed now. It is idempotent: a second call with the same now changes
// nothing further (spec.md section 5, "Timeouts").
func (c *Cell) ExpireCommitments(now int64) ([]string, error) {
	var expired []string
	err := c.submit(func() error {
		ids, err := c.Commitment.ExpireCommitments(now)
		expired = ids
		return err
	})
	return expired, err
}

// GetBalance returns a member's current balance. Reads bypass the writer
// queue: the ledger's own RWMutex already gives a consistent view.
func (c *Cell) GetBalance(id crypto.ID) (int64, error) {
	return c.Ledger.GetBalance(id)
}

// GetAvailableCapacity returns a member's currently spendable capacity.
func (c *Cell) GetAvailableCapacity(id crypto.ID) (int64, error) {
	return c.Ledger.GetAvailableCapacity(id)
}

// Snapshot returns a consistent point-in-time view of ledger state,
// identity limits, and outstanding commitments — the combined view the
// invariant checkers evaluate.
func (c *Cell) Snapshot() (ledger.CellState, map[crypto.ID]int64, []*commitment.Commitment) {
	state := c.Ledger.Snapshot()
	limits := make(map[crypto.ID]int64, len(state.Members))
	for _, rec := range c.Registry.Snapshot() {
		limits[rec.ID] = rec.Limit
	}
	return state, limits, c.Commitment.Snapshot()
}

// Journal returns every journal entry committed so far.
func (c *Cell) Journal() []ledger.Entry {
	return c.Ledger.Journal()
}
