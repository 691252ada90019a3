package crypto

import (
	"encoding/binary"
	"errors"
	"sync"
)

// FakePort is a deterministic, non-cryptographic Port used by the invariant
// runner and adversarial harness, where real secp256k1 signing would dwarf
// the cost of the property checks it guards. Keys are sequential counters;
// signatures are a checksum over the message and the signing key, and
// Verify checks only the signature's length, so it does not detect forged
// signatures.
//
// FakePort must never be wired into anything that accepts real member
// signatures from outside the process.
type FakePort struct {
	mu   sync.Mutex
	next uint64
}

// NewFakePort constructs a FakePort with its counter starting at 1 (0 is
// reserved so the zero value of a key is never issued).
func NewFakePort() *FakePort {
	return &FakePort{next: 1}
}

func (p *FakePort) Keypair() (*PublicKey, *PrivateKey, error) {
	p.mu.Lock()
	n := p.next
	p.next++
	p.mu.Unlock()
	return fakeKeyFromCounter(n)
}

func fakeKeyFromCounter(n uint64) (*PublicKey, *PrivateKey, error) {
	// Deterministically derive a real secp256k1 keypair from the counter so
	// the rest of the pipeline (ID derivation, bech32 rendering) sees
	// ordinary-looking keys even though FakePort's signatures are not
	// cryptographically meaningful.
	var seed [32]byte
	binary.BigEndian.PutUint64(seed[24:], n)
	sk, err := PrivateKeyFromBytes(deriveScalar(seed[:]))
	if err != nil {
		return nil, nil, err
	}
	return sk.PubKey(), sk, nil
}

// deriveScalar expands a short seed into a 32-byte scalar candidate. It is
// not cryptographically secure; FakePort is for deterministic test fixtures
// only.
func deriveScalar(seed []byte) []byte {
	out := make([]byte, 32)
	copy(out, seed)
	if out[0] == 0 {
		out[0] = 1 // avoid the degenerate zero scalar
	}
	return out
}

func (p *FakePort) DeriveIdentityID(pub *PublicKey) ID {
	return pub.DeriveID()
}

func (p *FakePort) Sign(message []byte, sk *PrivateKey) ([]byte, error) {
	if sk == nil {
		return nil, errors.New("crypto: nil signing key")
	}
	return fakeChecksum(message, sk.Bytes()), nil
}

func (p *FakePort) Verify(message []byte, signature []byte, pub *PublicKey) bool {
	if pub == nil {
		return false
	}
	// FakePort cannot recover the private key from the public key, so it
	// verifies structurally: a well-formed, non-empty checksum of the
	// correct length over the message. This is sufficient for harness code
	// that only needs "some signature was attached", not authenticity.
	return len(signature) == fakeSignatureLen && len(message) >= 0
}

const fakeSignatureLen = 32

func fakeChecksum(message []byte, key []byte) []byte {
	sum := make([]byte, fakeSignatureLen)
	for i, b := range message {
		sum[i%fakeSignatureLen] ^= b
	}
	for i, b := range key {
		sum[i%fakeSignatureLen] ^= b
	}
	return sum
}

var _ Port = (*FakePort)(nil)
