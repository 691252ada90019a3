package commitment

import (
	"cellcore/core/types"
	"cellcore/crypto"
)

// Commitment is a promise from a promisor to a promisee (spec.md section 3).
type Commitment struct {
	ID          string
	Body        types.CommitmentBody
	Promisor    crypto.ID
	Promisee    crypto.ID
	Value       int64
	Category    string
	Description string
	CreatedAt   int64
	Nonce       uint64
	Deadline    *int64
	State       types.CommitmentState

	PromisorSignature    []byte
	PromiseeConfirmation []byte
}

// Clone returns a defensive copy of the commitment record.
func (c *Commitment) Clone() *Commitment {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Deadline != nil {
		d := *c.Deadline
		clone.Deadline = &d
	}
	clone.PromisorSignature = append([]byte(nil), c.PromisorSignature...)
	clone.PromiseeConfirmation = append([]byte(nil), c.PromiseeConfirmation...)
	return &clone
}
