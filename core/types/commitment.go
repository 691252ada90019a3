package types

// CommitmentState is the commitment lifecycle state (spec.md section 4.4).
type CommitmentState uint8

const (
	CommitmentPending CommitmentState = iota
	CommitmentFulfilled
	CommitmentCancelled
	CommitmentExpired
	CommitmentDisputed
)

func (s CommitmentState) String() string {
	switch s {
	case CommitmentPending:
		return "PENDING"
	case CommitmentFulfilled:
		return "FULFILLED"
	case CommitmentCancelled:
		return "CANCELLED"
	case CommitmentExpired:
		return "EXPIRED"
	case CommitmentDisputed:
		return "DISPUTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state has no further transitions.
func (s CommitmentState) Terminal() bool {
	switch s {
	case CommitmentFulfilled, CommitmentCancelled, CommitmentExpired:
		return true
	default:
		return false
	}
}

// CommitmentBody is the closed sum distinguishing a recorded-only promise
// from one that reserves ledger capacity, per the DESIGN NOTES guidance to
// model commitment types as a closed sum rather than a string-tag field
// checked at runtime. Exactly one of Soft or Escrowed is non-nil. The
// optional deadline is a property of the commitment record itself (spec.md
// section 3), not of the body, since either kind may carry one.
type CommitmentBody struct {
	Soft     *SoftCommitment
	Escrowed *EscrowedCommitment
}

// SoftCommitment carries no ledger-reserved capacity.
type SoftCommitment struct{}

// EscrowedCommitment reserves Value on the promisor at creation time.
type EscrowedCommitment struct{}

// NewSoftBody constructs a CommitmentBody in the Soft arm.
func NewSoftBody() CommitmentBody {
	return CommitmentBody{Soft: &SoftCommitment{}}
}

// NewEscrowedBody constructs a CommitmentBody in the Escrowed arm.
func NewEscrowedBody() CommitmentBody {
	return CommitmentBody{Escrowed: &EscrowedCommitment{}}
}

// IsEscrowed reports whether the body reserves ledger capacity.
func (b CommitmentBody) IsEscrowed() bool {
	return b.Escrowed != nil
}

// Kind renders the commitment body as the closed label used in canonical
// signing and logging.
func (b CommitmentBody) Kind() string {
	if b.IsEscrowed() {
		return "ESCROWED"
	}
	return "SOFT"
}
