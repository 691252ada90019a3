package commitment

import "errors"

// Sentinel errors for the commitment engine, one per spec.md section 7
// "Commitment" kind. Ledger errors surfaced from a nested apply_balance_updates
// or take_reserve/release_reserve call propagate verbatim, per spec.md
// section 7 "Propagation policy".
var (
	ErrCommitmentNotFound = errors.New("commitment: not found")
	ErrCommitmentTerminal = errors.New("commitment: already in a terminal state")
	ErrNotAuthorized      = errors.New("commitment: caller not authorized for this action")
	ErrDeadlinePassed     = errors.New("commitment: deadline has passed")
	ErrInvalidValue       = errors.New("commitment: value must be positive")
	ErrSelfCommitment     = errors.New("commitment: promisor and promisee must differ")
	ErrPromisorExcluded   = errors.New("commitment: promisor or promisee is excluded")
)
