package crypto

import "testing"

func TestDeriveIDStableAndUnique(t *testing.T) {
	sk1, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sk2, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	id1a := sk1.PubKey().DeriveID()
	id1b := sk1.PubKey().DeriveID()
	if id1a.Bytes() == nil || string(id1a.Bytes()) != string(id1b.Bytes()) {
		t.Fatalf("DeriveID not stable across calls")
	}

	id2 := sk2.PubKey().DeriveID()
	if string(id1a.Bytes()) == string(id2.Bytes()) {
		t.Fatalf("distinct keys produced the same id")
	}
}

func TestIDRoundTripBytes(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	id, err := NewID(raw)
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if string(id.Bytes()) != string(raw) {
		t.Fatalf("Bytes() mismatch: got %x want %x", id.Bytes(), raw)
	}
}

func TestNewIDRejectsWrongLength(t *testing.T) {
	if _, err := NewID([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short id")
	}
}

func TestIDStringIsBech32(t *testing.T) {
	raw := make([]byte, 20)
	id, err := NewID(raw)
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	s := id.String()
	if len(s) == 0 {
		t.Fatalf("expected non-empty bech32 string")
	}
	if s[:len(IDPrefix)] != IDPrefix {
		t.Fatalf("expected prefix %q, got %q", IDPrefix, s)
	}
}

func TestECDSASignVerifyRoundTrip(t *testing.T) {
	port := NewECDSAPort()
	pub, sk, err := port.Keypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	msg := []byte("payer=cell1abc\npayee=cell1def\namount=30")
	sig, err := port.Sign(msg, sk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !port.Verify(msg, sig, pub) {
		t.Fatalf("expected signature to verify")
	}
	if port.Verify([]byte("tampered"), sig, pub) {
		t.Fatalf("expected verification to fail for tampered message")
	}
}

func TestECDSAVerifyRejectsWrongKey(t *testing.T) {
	port := NewECDSAPort()
	_, sk1, err := port.Keypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	pub2, _, err := port.Keypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	msg := []byte("hello")
	sig, err := port.Sign(msg, sk1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if port.Verify(msg, sig, pub2) {
		t.Fatalf("expected verification against the wrong key to fail")
	}
}
