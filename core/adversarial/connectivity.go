package adversarial

import (
	"fmt"
	"math/rand"

	"cellcore/crypto"
)

// transferStep is one concrete recorded operation in a replay sequence:
// member indices rather than crypto.ID, so the exact same step list can be
// replayed against a second, independently constructed world and land on
// the same identities (FakePort derives identities deterministically from
// admission order; see crypto.FakePort.Keypair).
type transferStep struct {
	payerIdx, payeeIdx int
	amount             int64
}

func admitIndexedMembers(w *world, n int, limit int64) ([]crypto.ID, error) {
	members := make([]crypto.ID, 0, n)
	for i := 0; i < n; i++ {
		id, err := w.admitActive(fmt.Sprintf("member-%d", i), limit)
		if err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, nil
}

func generateSteps(seed int64, n, count int) []transferStep {
	rng := rand.New(rand.NewSource(seed))
	steps := make([]transferStep, 0, count)
	for i := 0; i < count; i++ {
		payer := rng.Intn(n)
		payee := rng.Intn(n)
		if payer == payee {
			payee = (payee + 1) % n
		}
		amount := int64(rng.Intn(20) + 1)
		steps = append(steps, transferStep{payerIdx: payer, payeeIdx: payee, amount: amount})
	}
	return steps
}

// batchSteps randomly partitions steps into contiguous, variably-sized
// batches without reordering them, modeling delayed delivery of otherwise
// totally-ordered traffic.
func batchSteps(seed int64, steps []transferStep) [][]transferStep {
	rng := rand.New(rand.NewSource(seed))
	var batches [][]transferStep
	for i := 0; i < len(steps); {
		size := rng.Intn(4) + 1
		if i+size > len(steps) {
			size = len(steps) - i
		}
		batches = append(batches, steps[i:i+size])
		i += size
	}
	return batches
}

func applySteps(w *world, members []crypto.ID, steps []transferStep) {
	for _, s := range steps {
		_ = w.transfer(members[s.payerIdx], members[s.payeeIdx], s.amount)
	}
}

// RunIntermittentConnectivity implements ADV-06: the harness builds one
// operation stream, partitions it into randomly-sized delayed batches, and
// applies those batches (batch boundaries carry no special handling, only
// grouping) to one world; it then replays the identical stream, in the
// identical total order, directly against a second, independently built
// world. Pass requires the two worlds end in exactly the same balances —
// batching the delivery of a fixed total order never changes the result
// (spec.md section 4.7).
func RunIntermittentConnectivity(p ConnectivityParams) (Result, error) {
	worldA := newWorld(p.Seed, nil, true)
	worldB := newWorld(p.Seed, nil, true)

	membersA, err := admitIndexedMembers(worldA, p.N, p.DefaultLimit)
	if err != nil {
		return Result{}, fmt.Errorf("adv-06: seed world A: %w", err)
	}
	membersB, err := admitIndexedMembers(worldB, p.N, p.DefaultLimit)
	if err != nil {
		return Result{}, fmt.Errorf("adv-06: seed world B: %w", err)
	}

	steps := generateSteps(p.OperationSeed, p.N, p.OperationCount)
	batches := batchSteps(p.OperationSeed, steps)

	for _, batch := range batches {
		applySteps(worldA, membersA, batch)
	}
	applySteps(worldB, membersB, steps)

	violationA := worldA.checkCore()
	violationB := worldB.checkCore()

	identical := true
	var firstMismatch string
	for i := range membersA {
		ba := worldA.balance(membersA[i])
		bb := worldB.balance(membersB[i])
		if ba != bb {
			identical = false
			firstMismatch = fmt.Sprintf("member %d: batched=%d replayed=%d", i, ba, bb)
			break
		}
	}

	pass := violationA == nil && violationB == nil && identical
	detail := fmt.Sprintf("batches=%d steps=%d identical=%v", len(batches), len(steps), identical)
	if !identical {
		detail += "; " + firstMismatch
	}
	if violationA != nil {
		detail = "batched world: " + violationA.Error() + "; " + detail
	}
	if violationB != nil {
		detail = "replayed world: " + violationB.Error() + "; " + detail
	}

	return Result{
		Scenario: "ADV-06",
		Pass:     pass,
		Detail:   detail,
		Metrics: map[string]float64{
			"batch_count": float64(len(batches)),
			"step_count":  float64(len(steps)),
		},
	}, nil
}
