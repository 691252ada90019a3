package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// IDPrefix is the human-readable prefix used when rendering a member id as a
// bech32 string for logs and forensic export. It carries no meaning for the
// core, which compares ids as raw bytes.
const IDPrefix = "cell"

// ID is the 20-byte collision-resistant identifier derived from a member's
// public key (spec.md section 4.2, derive_identity_id).
type ID struct {
	bytes [20]byte
}

// NewID wraps a 20-byte slice as an ID.
func NewID(b []byte) (ID, error) {
	if len(b) != 20 {
		return ID{}, fmt.Errorf("crypto: id must be 20 bytes, got %d", len(b))
	}
	var id ID
	copy(id.bytes[:], b)
	return id, nil
}

// Bytes returns a defensive copy of the identifier's raw bytes.
func (id ID) Bytes() []byte {
	return append([]byte(nil), id.bytes[:]...)
}

// IsZero reports whether the identifier is the zero value.
func (id ID) IsZero() bool {
	return id.bytes == [20]byte{}
}

// String renders the identifier as a bech32 string with IDPrefix. It is
// informational only; equality and storage use the raw bytes.
func (id ID) String() string {
	conv, err := bech32.ConvertBits(id.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(IDPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalJSON renders the identifier as its bech32 string, so forensic
// counterexample export (spec.md section 4.6) produces human-readable ids
// rather than the zero-value JSON for an all-unexported-field struct.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// PrivateKey wraps an ECDSA secp256k1 private key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey wraps an ECDSA secp256k1 public key.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey produces a new secp256k1 keypair using crypto/rand.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the raw private key scalar.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// PubKey derives the public key half of the pair.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Bytes returns the uncompressed public key encoding.
func (k *PublicKey) Bytes() []byte {
	return crypto.FromECDSAPub(k.PublicKey)
}

// DeriveID computes the member identifier for this public key: the 20-byte
// Ethereum-style address derived from Keccak256 of the uncompressed key.
func (k *PublicKey) DeriveID() ID {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	id, err := NewID(addrBytes)
	if err != nil {
		panic(err) // PubkeyToAddress always returns 20 bytes
	}
	return id
}

// PrivateKeyFromBytes reconstructs a private key from its raw scalar bytes.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PublicKeyFromBytes reconstructs a public key from its uncompressed encoding.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	key, err := crypto.UnmarshalPubkey(b)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid public key: %w", err)
	}
	return &PublicKey{key}, nil
}
