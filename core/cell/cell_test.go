package cell

import (
	"testing"

	"cellcore/core/types"
	"cellcore/crypto"
)

func mustMember(t *testing.T, c *Cell, name string, limit int64) (crypto.ID, *crypto.PrivateKey) {
	t.Helper()
	pub, sk, err := c.Port.Keypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	id := c.Port.DeriveIdentityID(pub)
	if _, err := c.AddMember(AddMemberRequest{ID: id, PublicKey: pub.Bytes(), DisplayName: name, Limit: limit, InitialStatus: types.StatusPending}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := c.SetStatus(id, types.StatusProbation, "admit", "test"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := c.SetStatus(id, types.StatusActive, "complete", "test"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return id, sk
}

func newTestCell(t *testing.T) *Cell {
	t.Helper()
	port := crypto.NewFakePort()
	c := New(Config{Port: port, EnforceEscrow: true})
	t.Cleanup(c.Close)
	return c
}

func TestCellTransferMovesBalance(t *testing.T) {
	c := newTestCell(t)
	alice, aliceSK := mustMember(t, c, "alice", 100)
	bob, _ := mustMember(t, c, "bob", 100)

	tx := crypto.SpotTransaction{Payer: alice, Payee: bob, Amount: 30, Description: "s1", CreatedAt: 0, Nonce: 1}
	sig, err := c.Port.Sign(tx.CanonicalBytes(), aliceSK)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := c.Transfer(TransferRequest{Payer: alice, Payee: bob, Amount: 30, Description: "s1", Nonce: 1, Signature: sig}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	aliceBal, _ := c.GetBalance(alice)
	bobBal, _ := c.GetBalance(bob)
	if aliceBal != -30 || bobBal != 30 {
		t.Fatalf("unexpected balances: alice=%d bob=%d", aliceBal, bobBal)
	}
}

func TestCellRemoveMemberRequiresZeroBalance(t *testing.T) {
	c := newTestCell(t)
	alice, aliceSK := mustMember(t, c, "alice", 100)
	bob, _ := mustMember(t, c, "bob", 100)

	tx := crypto.SpotTransaction{Payer: alice, Payee: bob, Amount: 10, Description: "s", Nonce: 1}
	sig, _ := c.Port.Sign(tx.CanonicalBytes(), aliceSK)
	if err := c.Transfer(TransferRequest{Payer: alice, Payee: bob, Amount: 10, Description: "s", Nonce: 1, Signature: sig}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if err := c.RemoveMember(alice, "test", "test"); err == nil {
		t.Fatalf("expected removal to fail with nonzero balance")
	}
}

func TestCellSnapshotReflectsCommittedState(t *testing.T) {
	c := newTestCell(t)
	alice, aliceSK := mustMember(t, c, "alice", 100)
	bob, _ := mustMember(t, c, "bob", 100)

	tx := crypto.SpotTransaction{Payer: alice, Payee: bob, Amount: 15, Description: "s", Nonce: 1}
	sig, _ := c.Port.Sign(tx.CanonicalBytes(), aliceSK)
	if err := c.Transfer(TransferRequest{Payer: alice, Payee: bob, Amount: 15, Description: "s", Nonce: 1, Signature: sig}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	state, _, _ := c.Snapshot()
	var total int64
	for _, m := range state.Members {
		total += m.Balance
	}
	if total != 0 {
		t.Fatalf("conservation violated in snapshot: total=%d", total)
	}
}
