package identity

import (
	"errors"
	"testing"

	"cellcore/core/types"
	"cellcore/crypto"
)

func newMemberKey(t *testing.T) (crypto.ID, []byte) {
	t.Helper()
	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := sk.PubKey()
	return pub.DeriveID(), pub.Bytes()
}

func TestAddMemberCreatesPendingRecord(t *testing.T) {
	reg := NewRegistry(nil, nil)
	id, pub := newMemberKey(t)
	rec, err := reg.AddMember(id, pub, "alice", 100, types.StatusPending, 1000)
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if rec.Status != types.StatusPending {
		t.Fatalf("expected PENDING, got %s", rec.Status)
	}
	if rec.Limit != 100 {
		t.Fatalf("expected limit 100, got %d", rec.Limit)
	}
}

func TestAddMemberDuplicateIDRejected(t *testing.T) {
	reg := NewRegistry(nil, nil)
	id, pub := newMemberKey(t)
	if _, err := reg.AddMember(id, pub, "alice", 100, types.StatusPending, 0); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if _, err := reg.AddMember(id, pub, "alice-2", 50, types.StatusPending, 0); !errors.Is(err, ErrIdentityExists) {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}
}

func TestAddMemberInvalidPublicKey(t *testing.T) {
	reg := NewRegistry(nil, nil)
	id, _ := newMemberKey(t)
	if _, err := reg.AddMember(id, []byte{1, 2, 3}, "bob", 100, types.StatusPending, 0); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
}

func TestStatusLattice(t *testing.T) {
	reg := NewRegistry(nil, nil)
	id, pub := newMemberKey(t)
	if _, err := reg.AddMember(id, pub, "alice", 100, types.StatusPending, 0); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if err := reg.SetStatus(id, types.StatusActive, "skip", "test"); !errors.Is(err, ErrStatusTransitionForbidden) {
		t.Fatalf("expected forbidden PENDING->ACTIVE, got %v", err)
	}
	if err := reg.SetStatus(id, types.StatusProbation, "admit", "test"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := reg.SetStatus(id, types.StatusActive, "complete", "test"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := reg.SetStatus(id, types.StatusFrozen, "freeze", "test"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := reg.SetStatus(id, types.StatusActive, "unfreeze", "test"); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if err := reg.SetStatus(id, types.StatusExcluded, "exclude", "test"); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	if err := reg.SetStatus(id, types.StatusActive, "resurrect", "test"); !errors.Is(err, ErrStatusTransitionForbidden) {
		t.Fatalf("expected EXCLUDED to be terminal, got %v", err)
	}
}

func TestAdjustLimitUnsafe(t *testing.T) {
	reg := NewRegistry(nil, nil)
	id, pub := newMemberKey(t)
	if _, err := reg.AddMember(id, pub, "alice", 100, types.StatusPending, 0); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := reg.AdjustLimit(id, 50, -80); !errors.Is(err, ErrLimitAdjustUnsafe) {
		t.Fatalf("expected unsafe limit adjustment to fail, got %v", err)
	}
	if err := reg.AdjustLimit(id, 90, -80); err != nil {
		t.Fatalf("expected safe adjustment to succeed, got %v", err)
	}
}

func TestRemoveMemberRequiresZeroBalanceAndReserve(t *testing.T) {
	reg := NewRegistry(nil, nil)
	id, pub := newMemberKey(t)
	if _, err := reg.AddMember(id, pub, "alice", 100, types.StatusPending, 0); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := reg.RemoveMember(id, 5, 0, "cleanup", "test"); !errors.Is(err, ErrCannotRemoveNonzero) {
		t.Fatalf("expected CANNOT_REMOVE_NONZERO, got %v", err)
	}
	if err := reg.RemoveMember(id, 0, 0, "cleanup", "test"); err != nil {
		t.Fatalf("expected removal to succeed, got %v", err)
	}
	if _, err := reg.Get(id); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected member to be gone, got %v", err)
	}
}

func TestFrictionPolicyDeniesBurstAdmissions(t *testing.T) {
	policy := NewFrictionPolicy(0.001, 1, nil)
	reg := NewRegistry(policy, nil)
	id1, pub1 := newMemberKey(t)
	if _, err := reg.AddMember(id1, pub1, "a", 10, types.StatusPending, 0); err != nil {
		t.Fatalf("first admission should succeed: %v", err)
	}
	id2, pub2 := newMemberKey(t)
	_, err := reg.AddMember(id2, pub2, "b", 10, types.StatusPending, 0)
	if !errors.Is(err, ErrAdmissionDenied) {
		t.Fatalf("expected second rapid admission to be denied by friction, got %v", err)
	}
}
