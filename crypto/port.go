package crypto

import (
	"errors"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Port is the abstract cryptographic boundary described in spec.md section
// 4.2. Components depend on this interface, never on a concrete signer, so
// the invariant runner and adversarial harness can inject deterministic
// stand-ins without touching real key material.
type Port interface {
	Keypair() (*PublicKey, *PrivateKey, error)
	DeriveIdentityID(pub *PublicKey) ID
	Sign(message []byte, sk *PrivateKey) ([]byte, error)
	Verify(message []byte, signature []byte, pub *PublicKey) bool
}

// ErrVerificationFailed is returned by callers that want a typed error for a
// signature that fails verification; Verify itself reports false rather than
// erroring, per spec.md section 4.2 ("no exceptions escape the port").
var ErrVerificationFailed = errors.New("crypto: verification failed")

// ECDSAPort is the production Port implementation backed by secp256k1 ECDSA
// signatures over the Keccak256 digest of the canonical message bytes.
type ECDSAPort struct{}

// NewECDSAPort constructs the production cryptographic port.
func NewECDSAPort() ECDSAPort { return ECDSAPort{} }

func (ECDSAPort) Keypair() (*PublicKey, *PrivateKey, error) {
	sk, err := GeneratePrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return sk.PubKey(), sk, nil
}

func (ECDSAPort) DeriveIdentityID(pub *PublicKey) ID {
	return pub.DeriveID()
}

func (ECDSAPort) Sign(message []byte, sk *PrivateKey) ([]byte, error) {
	if sk == nil {
		return nil, errors.New("crypto: nil signing key")
	}
	digest := gethcrypto.Keccak256(message)
	return gethcrypto.Sign(digest, sk.PrivateKey)
}

func (ECDSAPort) Verify(message []byte, signature []byte, pub *PublicKey) bool {
	if pub == nil || len(signature) < 64 {
		return false
	}
	digest := gethcrypto.Keccak256(message)
	sig := signature[:64]
	pubBytes := gethcrypto.FromECDSAPub(pub.PublicKey)
	return gethcrypto.VerifySignature(pubBytes, digest, sig)
}

var _ Port = ECDSAPort{}
