package ledger

import (
	"errors"
	"testing"

	"cellcore/core/identity"
	"cellcore/core/types"
	"cellcore/crypto"
)

type testMember struct {
	id  crypto.ID
	sk  *crypto.PrivateKey
	pub *crypto.PublicKey
}

func newTestMember(t *testing.T) testMember {
	t.Helper()
	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := sk.PubKey()
	return testMember{id: pub.DeriveID(), sk: sk, pub: pub}
}

// harness wires a registry + ledger pair with all members ACTIVE and a
// configurable default limit, mirroring the concrete scenarios in spec.md
// section 8.
type harness struct {
	t        *testing.T
	registry *identity.Registry
	ledger   *Ledger
	port     crypto.Port
	members  map[string]testMember
}

func newHarness(t *testing.T, enforceEscrowSafety bool) *harness {
	t.Helper()
	reg := identity.NewRegistry(nil, nil)
	port := crypto.NewECDSAPort()
	led := New(Config{Identity: reg, Port: port, EnforceEscrowSafety: enforceEscrowSafety})
	return &harness{t: t, registry: reg, ledger: led, port: port, members: map[string]testMember{}}
}

func (h *harness) addActive(name string, limit int64) testMember {
	h.t.Helper()
	m := newTestMember(h.t)
	if _, err := h.registry.AddMember(m.id, m.pub.Bytes(), name, limit, types.StatusPending, 0); err != nil {
		h.t.Fatalf("add %s: %v", name, err)
	}
	if err := h.registry.SetStatus(m.id, types.StatusProbation, "admit", "test"); err != nil {
		h.t.Fatalf("admit %s: %v", name, err)
	}
	if err := h.registry.SetStatus(m.id, types.StatusActive, "complete", "test"); err != nil {
		h.t.Fatalf("activate %s: %v", name, err)
	}
	h.ledger.OpenAccount(m.id)
	h.members[name] = m
	return m
}

func (h *harness) transfer(payer, payee testMember, amount int64, nonce uint64) error {
	h.t.Helper()
	tx := crypto.SpotTransaction{
		Payer:       payer.id,
		Payee:       payee.id,
		Amount:      amount,
		Description: "test",
		CreatedAt:   1,
		Nonce:       nonce,
	}
	msg := tx.CanonicalBytes()
	sig, err := h.port.Sign(msg, payer.sk)
	if err != nil {
		h.t.Fatalf("sign: %v", err)
	}
	var payerKey [20]byte
	copy(payerKey[:], payer.id.Bytes())
	set := SignedUpdateSet{
		Updates: []Update{
			{Member: payer.id, Delta: -amount, Reason: types.ReasonSpotTransactionPayer},
			{Member: payee.id, Delta: amount, Reason: types.ReasonSpotTransactionPayee},
		},
		CorrelationID: "corr",
		Message:       msg,
		Signatures:    map[[20]byte][]byte{payerKey: sig},
	}
	return h.ledger.ApplyBalanceUpdates(set)
}

func TestS1SimpleTransfer(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)
	bob := h.addActive("bob", 100)

	if err := h.transfer(alice, bob, 30, 1); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBal, _ := h.ledger.GetBalance(alice.id)
	bobBal, _ := h.ledger.GetBalance(bob.id)
	if aliceBal != -30 {
		t.Fatalf("expected alice=-30, got %d", aliceBal)
	}
	if bobBal != 30 {
		t.Fatalf("expected bob=30, got %d", bobBal)
	}
	assertConservation(t, h)
}

func TestS2SecondTransferReversesNet(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)
	bob := h.addActive("bob", 100)

	mustTransfer(t, h, alice, bob, 30, 1)
	mustTransfer(t, h, bob, alice, 50, 2)

	aliceBal, _ := h.ledger.GetBalance(alice.id)
	bobBal, _ := h.ledger.GetBalance(bob.id)
	if aliceBal != 20 {
		t.Fatalf("expected alice=20, got %d", aliceBal)
	}
	if bobBal != -20 {
		t.Fatalf("expected bob=-20, got %d", bobBal)
	}
}

func TestS3EscrowReservesCapacity(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)
	bob := h.addActive("bob", 100)
	carol := h.addActive("carol", 100)

	mustTransfer(t, h, alice, bob, 30, 1)
	mustTransfer(t, h, bob, alice, 50, 2) // alice = +20

	if err := h.ledger.TakeReserve(alice.id, 80, "escrow-1"); err != nil {
		t.Fatalf("take reserve: %v", err)
	}
	cap, err := h.ledger.GetAvailableCapacity(alice.id)
	if err != nil {
		t.Fatalf("available capacity: %v", err)
	}
	if cap != 40 {
		t.Fatalf("expected available capacity 40, got %d", cap)
	}

	if err := h.transfer(alice, carol, 50, 3); !errors.Is(err, ErrEscrowUnsafe) {
		t.Fatalf("expected ESCROW_UNSAFE, got %v", err)
	}
	if err := h.transfer(alice, carol, 40, 4); err != nil {
		t.Fatalf("expected 40-unit transfer to succeed, got %v", err)
	}
}

func TestS4FulfillmentAtFloor(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)
	bob := h.addActive("bob", 100)
	carol := h.addActive("carol", 100)

	mustTransfer(t, h, alice, bob, 30, 1)
	mustTransfer(t, h, bob, alice, 50, 2) // alice = +20
	if err := h.ledger.TakeReserve(alice.id, 80, "escrow-1"); err != nil {
		t.Fatalf("take reserve: %v", err)
	}
	mustTransfer(t, h, alice, carol, 40, 3) // alice = -20

	// Fulfillment: release reserve then transfer the escrowed value.
	if err := h.ledger.ReleaseReserve(alice.id, 80, "fulfill-1"); err != nil {
		t.Fatalf("release reserve: %v", err)
	}
	mustTransfer(t, h, alice, carol, 80, 4) // alice = -100, exactly at floor

	aliceBal, _ := h.ledger.GetBalance(alice.id)
	carolBal, _ := h.ledger.GetBalance(carol.id)
	if aliceBal != -100 {
		t.Fatalf("expected alice at floor -100, got %d", aliceBal)
	}
	if carolBal != 120 {
		t.Fatalf("expected carol=120, got %d", carolBal)
	}
	assertConservation(t, h)
}

func TestS5FloorBreach(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)
	bob := h.addActive("bob", 100)
	carol := h.addActive("carol", 100)

	mustTransfer(t, h, alice, bob, 30, 1)
	mustTransfer(t, h, bob, alice, 50, 2)
	if err := h.ledger.TakeReserve(alice.id, 80, "escrow-1"); err != nil {
		t.Fatalf("take reserve: %v", err)
	}
	mustTransfer(t, h, alice, carol, 40, 3)
	if err := h.ledger.ReleaseReserve(alice.id, 80, "fulfill-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	mustTransfer(t, h, alice, carol, 80, 4) // alice at floor -100

	if err := h.transfer(alice, bob, 1, 5); !errors.Is(err, ErrFloorBreach) {
		t.Fatalf("expected FLOOR_BREACH, got %v", err)
	}
}

func TestS6SelfExchangeRejected(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)

	var aliceKey [20]byte
	copy(aliceKey[:], alice.id.Bytes())
	set := SignedUpdateSet{
		Updates: []Update{
			{Member: alice.id, Delta: -10, Reason: types.ReasonSpotTransactionPayer},
			{Member: alice.id, Delta: 10, Reason: types.ReasonSpotTransactionPayee},
		},
		CorrelationID: "corr",
		Message:       []byte("self"),
		Signatures:    map[[20]byte][]byte{aliceKey: {}},
	}
	if err := h.ledger.ApplyBalanceUpdates(set); !errors.Is(err, ErrSelfExchange) {
		t.Fatalf("expected SELF_EXCHANGE, got %v", err)
	}
}

func TestTakeReserveBoundaryThenOneUnitFails(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)

	if err := h.ledger.TakeReserve(alice.id, 100, "r1"); err != nil {
		t.Fatalf("expected boundary reserve to succeed, got %v", err)
	}
	if err := h.ledger.TakeReserve(alice.id, 1, "r2"); !errors.Is(err, ErrReserveUnsafe) {
		t.Fatalf("expected RESERVE_UNSAFE for one unit over, got %v", err)
	}
}

func TestConservationViolationRejected(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)
	bob := h.addActive("bob", 100)

	var aliceKey [20]byte
	copy(aliceKey[:], alice.id.Bytes())
	set := SignedUpdateSet{
		Updates: []Update{
			{Member: alice.id, Delta: -10, Reason: types.ReasonSpotTransactionPayer},
			{Member: bob.id, Delta: 5, Reason: types.ReasonSpotTransactionPayee},
		},
		CorrelationID: "corr",
		Message:       []byte("bad"),
		Signatures:    map[[20]byte][]byte{aliceKey: {}},
	}
	if err := h.ledger.ApplyBalanceUpdates(set); !errors.Is(err, ErrConservationViolation) {
		t.Fatalf("expected CONSERVATION_VIOLATION, got %v", err)
	}
}

func TestInvalidSignatureRejected(t *testing.T) {
	h := newHarness(t, true)
	alice := h.addActive("alice", 100)
	bob := h.addActive("bob", 100)

	var aliceKey [20]byte
	copy(aliceKey[:], alice.id.Bytes())
	set := SignedUpdateSet{
		Updates: []Update{
			{Member: alice.id, Delta: -10, Reason: types.ReasonSpotTransactionPayer},
			{Member: bob.id, Delta: 10, Reason: types.ReasonSpotTransactionPayee},
		},
		CorrelationID: "corr",
		Message:       []byte("unsigned message"),
		Signatures:    map[[20]byte][]byte{aliceKey: {0xDE, 0xAD}},
	}
	if err := h.ledger.ApplyBalanceUpdates(set); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected SIGNATURE_INVALID, got %v", err)
	}
}

func mustTransfer(t *testing.T, h *harness, payer, payee testMember, amount int64, nonce uint64) {
	t.Helper()
	if err := h.transfer(payer, payee, amount, nonce); err != nil {
		t.Fatalf("transfer %d (nonce %d): %v", amount, nonce, err)
	}
}

func assertConservation(t *testing.T, h *harness) {
	t.Helper()
	snap := h.ledger.Snapshot()
	var total int64
	for _, m := range snap.Members {
		total += m.Balance
	}
	if total != 0 {
		t.Fatalf("conservation violated: total balance = %d", total)
	}
}
