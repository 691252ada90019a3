package ledger

import "errors"

// Sentinel errors for the balance ledger, one per spec.md section 7
// "Ledger" kind.
var (
	ErrConservationViolation = errors.New("ledger: update set does not sum to zero")
	ErrFloorBreach           = errors.New("ledger: update would breach credit floor")
	ErrEscrowUnsafe          = errors.New("ledger: update would breach reserved capacity")
	ErrSelfExchange          = errors.New("ledger: member cannot transact with itself")
	ErrStatusForbids         = errors.New("ledger: member status forbids this role")
	ErrSignatureInvalid      = errors.New("ledger: signature does not verify")
	ErrNumericOverflow       = errors.New("ledger: arithmetic overflow")
	ErrReserveUnderflow      = errors.New("ledger: release exceeds held reserve")
	ErrReserveUnsafe         = errors.New("ledger: reserve would breach credit floor")
	ErrMemberNotFound        = errors.New("ledger: member not found")
)
