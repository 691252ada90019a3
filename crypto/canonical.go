package crypto

import (
	"fmt"
	"strconv"
	"strings"
)

// SpotTransaction is the canonical signable payload for a spot transaction,
// field order fixed by spec.md section 6.
type SpotTransaction struct {
	Payer       ID
	Payee       ID
	Amount      int64
	Description string
	CreatedAt   int64
	Nonce       uint64
}

// CanonicalBytes serializes the transaction in the fixed declared field
// order, integers as base-10 digits, strings unescaped, no trailing
// whitespace. Two implementations producing identical logical content must
// produce byte-identical output.
func (t SpotTransaction) CanonicalBytes() []byte {
	var b strings.Builder
	writeField(&b, "payer", t.Payer.String())
	writeField(&b, "payee", t.Payee.String())
	writeField(&b, "amount", strconv.FormatInt(t.Amount, 10))
	writeField(&b, "description", t.Description)
	writeField(&b, "created_at", strconv.FormatInt(t.CreatedAt, 10))
	writeFieldLast(&b, "nonce", strconv.FormatUint(t.Nonce, 10))
	return []byte(b.String())
}

// CommitmentKind distinguishes soft from escrowed commitments in the
// canonical signable form.
type CommitmentKind string

const (
	CommitmentKindSoft     CommitmentKind = "SOFT"
	CommitmentKindEscrowed CommitmentKind = "ESCROWED"
)

// CommitmentPayload is the canonical signable payload for commitment
// creation, field order fixed by spec.md section 6.
type CommitmentPayload struct {
	Type        CommitmentKind
	Promisor    ID
	Promisee    ID
	Value       int64
	Category    string
	Description string
	CreatedAt   int64
	Nonce       uint64
	Deadline    *int64
}

// CanonicalBytes serializes the commitment payload per section 6. Deadline
// is optional: when nil, the field is omitted entirely rather than encoded
// as an empty value, so presence itself is part of the canonical content.
func (c CommitmentPayload) CanonicalBytes() []byte {
	var b strings.Builder
	writeField(&b, "type", string(c.Type))
	writeField(&b, "promisor", c.Promisor.String())
	writeField(&b, "promisee", c.Promisee.String())
	writeField(&b, "value", strconv.FormatInt(c.Value, 10))
	writeField(&b, "category", c.Category)
	writeField(&b, "description", c.Description)
	writeField(&b, "created_at", strconv.FormatInt(c.CreatedAt, 10))
	if c.Deadline == nil {
		writeFieldLast(&b, "nonce", strconv.FormatUint(c.Nonce, 10))
	} else {
		writeField(&b, "nonce", strconv.FormatUint(c.Nonce, 10))
		writeFieldLast(&b, "deadline", strconv.FormatInt(*c.Deadline, 10))
	}
	return []byte(b.String())
}

// RevocationPayload is the canonical signable payload for a revocation,
// field order fixed by spec.md section 6.
type RevocationPayload struct {
	Target    ID
	Reason    string
	CreatedAt int64
	Nonce     uint64
}

func (r RevocationPayload) CanonicalBytes() []byte {
	var b strings.Builder
	writeField(&b, "target", r.Target.String())
	writeField(&b, "reason", r.Reason)
	writeField(&b, "created_at", strconv.FormatInt(r.CreatedAt, 10))
	writeFieldLast(&b, "nonce", strconv.FormatUint(r.Nonce, 10))
	return []byte(b.String())
}

func writeField(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s=%s\n", key, value)
}

func writeFieldLast(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s=%s", key, value)
}
