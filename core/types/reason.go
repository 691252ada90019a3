package types

// Reason is the closed enum of journal entry reasons (spec.md section 3).
type Reason uint8

const (
	ReasonSpotTransactionPayer Reason = iota
	ReasonSpotTransactionPayee
	ReasonCommitmentFulfillPayer
	ReasonCommitmentFulfillPayee
	ReasonReserveTake
	ReasonReserveRelease
	ReasonAdmissionGrant
	ReasonExclusionWriteoff
)

func (r Reason) String() string {
	switch r {
	case ReasonSpotTransactionPayer:
		return "SPOT_TRANSACTION_PAYER"
	case ReasonSpotTransactionPayee:
		return "SPOT_TRANSACTION_PAYEE"
	case ReasonCommitmentFulfillPayer:
		return "COMMITMENT_FULFILL_PAYER"
	case ReasonCommitmentFulfillPayee:
		return "COMMITMENT_FULFILL_PAYEE"
	case ReasonReserveTake:
		return "RESERVE_TAKE"
	case ReasonReserveRelease:
		return "RESERVE_RELEASE"
	case ReasonAdmissionGrant:
		return "ADMISSION_GRANT"
	case ReasonExclusionWriteoff:
		return "EXCLUSION_WRITEOFF"
	default:
		return "UNKNOWN"
	}
}
