package invariant

import (
	"testing"

	"cellcore/core/genop"
	"cellcore/core/ledger"
	"cellcore/crypto"
)

func TestCheckConservation(t *testing.T) {
	id1, _ := crypto.NewID(make([]byte, 20))
	b := make([]byte, 20)
	b[19] = 1
	id2, _ := crypto.NewID(b)

	ok := Snapshot{Ledger: ledger.CellState{Members: []ledger.MemberSnapshot{
		{ID: id1, Balance: -10},
		{ID: id2, Balance: 10},
	}}}
	if v := CheckConservation(ok); v != nil {
		t.Fatalf("expected conservation to hold, got %v", v)
	}

	bad := Snapshot{Ledger: ledger.CellState{Members: []ledger.MemberSnapshot{
		{ID: id1, Balance: -10},
		{ID: id2, Balance: 5},
	}}}
	if v := CheckConservation(bad); v == nil || v.CheckID != "INV-01" {
		t.Fatalf("expected INV-01 violation, got %v", v)
	}
}

func TestCheckFloor(t *testing.T) {
	id, _ := crypto.NewID(make([]byte, 20))
	var key [20]byte
	copy(key[:], id.Bytes())

	s := Snapshot{
		Ledger: ledger.CellState{Members: []ledger.MemberSnapshot{{ID: id, Balance: -101}}},
		Limits: map[[20]byte]int64{key: 100},
	}
	if v := CheckFloor(s); v == nil || v.CheckID != "INV-02" {
		t.Fatalf("expected INV-02 violation, got %v", v)
	}

	s.Ledger.Members[0].Balance = -100
	if v := CheckFloor(s); v != nil {
		t.Fatalf("expected floor to hold at exactly the limit, got %v", v)
	}
}

func TestCheckReserveNonNegative(t *testing.T) {
	id, _ := crypto.NewID(make([]byte, 20))
	s := Snapshot{Ledger: ledger.CellState{Members: []ledger.MemberSnapshot{{ID: id, Reserve: -1}}}}
	if v := CheckReserveNonNegative(s); v == nil || v.CheckID != "INV-03" {
		t.Fatalf("expected INV-03 violation, got %v", v)
	}
}

func TestCheckEscrowSafety(t *testing.T) {
	id, _ := crypto.NewID(make([]byte, 20))
	var key [20]byte
	copy(key[:], id.Bytes())
	s := Snapshot{
		Ledger: ledger.CellState{Members: []ledger.MemberSnapshot{{ID: id, Balance: -50, Reserve: 60}}},
		Limits: map[[20]byte]int64{key: 100},
	}
	if v := CheckEscrowSafety(s); v == nil || v.CheckID != "INV-04" {
		t.Fatalf("expected INV-04 violation (-50-60=-110 < -100), got %v", v)
	}
}

func TestCheckJournalBalance(t *testing.T) {
	s := Snapshot{Journal: []ledger.Entry{
		{CorrelationID: "a", Delta: 10},
		{CorrelationID: "a", Delta: -10},
		{CorrelationID: "b", Delta: 5},
	}}
	if v := CheckJournalBalance(s); v == nil || v.CheckID != "INV-06" {
		t.Fatalf("expected INV-06 violation for unbalanced correlation b, got %v", v)
	}
}

func TestRunProducesNoCounterexamplesOverManyTrials(t *testing.T) {
	report, err := Run(Config{
		Seed:                  42,
		Trials:                20,
		InitialMemberCount:    5,
		MaxOperationsPerTrial: 30,
		Weights:               genop.DefaultWeights(),
		DefaultLimit:          100,
		EnforceEscrowSafety:   true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("expected no counterexamples, got %+v", report.Counterexamples)
	}
	if report.TrialsRun != 20 {
		t.Fatalf("expected 20 trials run, got %d", report.TrialsRun)
	}
}

func TestRunIsDeterministicGivenSameSeed(t *testing.T) {
	cfg := Config{
		Seed:                  7,
		Trials:                5,
		InitialMemberCount:    4,
		MaxOperationsPerTrial: 20,
		Weights:               genop.DefaultWeights(),
		DefaultLimit:          100,
		EnforceEscrowSafety:   true,
	}
	r1, err := Run(cfg)
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	r2, err := Run(cfg)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if r1.OperationsRun != r2.OperationsRun {
		t.Fatalf("expected deterministic operation counts, got %d vs %d", r1.OperationsRun, r2.OperationsRun)
	}
}
