package diameter_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"math/rand/v2"
	"testing"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/diameter"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func reconcile(t *testing.T, prob recon.Problem) *recon.Graph {
	t.Helper()
	g, err := recon.Reconcile(context.Background(), prob)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	return g
}

// bruteForce compares every pair of enumerated reconciliations.
func bruteForce(g1, g2 *recon.Graph) *diameter.Histogram {
	counts := make(map[int]*big.Int)
	for a := range g1.All() {
		for b := range g2.All() {
			d := diameter.Distance(a, b)
			if counts[d] == nil {
				counts[d] = new(big.Int)
			}
			counts[d].Add(counts[d], big.NewInt(1))
		}
	}
	return diameter.NewHistogram(counts)
}

func TestSelfMatchesBruteForce(t *testing.T) {
	problems := []recon.Problem{recontest.Ambiguous(), recontest.Duplications(), recontest.SingleLeaf()}
	rng := rand.New(rand.NewPCG(4, 2))
	for range 25 {
		problems = append(problems, recontest.Random(rng, 2+rng.IntN(4), 2+rng.IntN(4)))
	}

	for i, prob := range problems {
		g := reconcile(t, prob)
		if g.TotalCount().Cmp(big.NewInt(400)) > 0 {
			continue
		}
		got, err := diameter.Self(context.Background(), g)
		if err != nil {
			t.Fatalf("problem %d: Self() error = %v", i, err)
		}
		want := bruteForce(g, g)
		if !got.Equal(want) {
			t.Errorf("problem %d: Self() = %v, want %v", i, got.Map(), want.Map())
		}

		n := g.TotalCount()
		if total := got.Total(); total.Cmp(new(big.Int).Mul(n, n)) != 0 {
			t.Errorf("problem %d: Total() = %v, want %v²", i, total, n)
		}
		if got.Count(0).Cmp(n) < 0 {
			t.Errorf("problem %d: Count(0) = %v, want at least %v", i, got.Count(0), n)
		}
	}
}

func TestComputeAcrossGraphs(t *testing.T) {
	g := reconcile(t, recontest.Ambiguous())
	roots := g.Roots()
	root := roots[0]
	first := g.Events(root)[0]
	if len(roots) == 1 && len(g.Events(root)) < 2 {
		t.Fatalf("fixture has a single choice at its root")
	}

	// Split the reconciliations by the event chosen at the first root.
	a, err := g.Restrict(roots[:1], func(m recon.MappingNode, e recon.Event) bool {
		return m != root || e == first
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Restrict(roots, func(m recon.MappingNode, e recon.Event) bool {
		return m != root || e != first
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := diameter.Compute(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if want := bruteForce(a, b); !got.Equal(want) {
		t.Errorf("Compute() = %v, want %v", got.Map(), want.Map())
	}
	if got.Count(0).Sign() != 0 {
		t.Errorf("disjoint graphs share %v reconciliations", got.Count(0))
	}
}

func TestSingleReconciliation(t *testing.T) {
	g := reconcile(t, recontest.SingleLeaf())
	h, err := diameter.Self(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if h.Diameter() != 0 || h.Count(0).Int64() != 1 || h.Mean() != 0 {
		t.Errorf("Self() = %v, want {0: 1}", h.Map())
	}
}

func TestComputeCanceled(t *testing.T) {
	g := reconcile(t, recontest.Ambiguous())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := diameter.Self(ctx, g); !errors.Is(err, context.Canceled) {
		t.Errorf("Self() error = %v, want context.Canceled", err)
	}
}

func TestComputeDifferentTrees(t *testing.T) {
	a := reconcile(t, recontest.Ambiguous())
	b := reconcile(t, recontest.Duplications())
	if _, err := diameter.Compute(context.Background(), a, b); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
		t.Errorf("Compute() error = %v, want INVALID_INPUT", err)
	}
}

func TestDistance(t *testing.T) {
	prob := recontest.Duplications()
	r := recontest.DuplicationsReconciliation(prob)
	if d := diameter.Distance(r, r); d != 0 {
		t.Errorf("Distance(r, r) = %d, want 0", d)
	}

	other := &recon.Reconciliation{Root: r.Root, Events: map[recon.MappingNode]recon.Event{}}
	for m, e := range r.Events {
		other.Events[m] = e
	}
	n2 := recontest.Node(prob, "n2", "m4")
	other.Events[n2] = recon.NewEvent(recon.Loss, recontest.Node(prob, "n2", "m3"))
	if d := diameter.Distance(r, other); d != 2 {
		t.Errorf("Distance() = %d, want 2", d)
	}
}

func TestHistogramStats(t *testing.T) {
	h := diameter.NewHistogram(map[int]*big.Int{
		0: big.NewInt(3),
		2: big.NewInt(4),
		4: big.NewInt(2),
	})
	if h.Total().Int64() != 9 {
		t.Errorf("Total() = %v, want 9", h.Total())
	}
	if h.Sum().Int64() != 16 {
		t.Errorf("Sum() = %v, want 16", h.Sum())
	}
	if h.Diameter() != 4 {
		t.Errorf("Diameter() = %d, want 4", h.Diameter())
	}
	if got := h.Fractions(); len(got) != 5 || got[1] != 0 {
		t.Errorf("Fractions() = %v", got)
	}

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"0":3,"2":4,"4":2}` {
		t.Errorf("MarshalJSON() = %s", data)
	}
	var back diameter.Histogram
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(h) {
		t.Errorf("round trip = %v, want %v", back.Map(), h.Map())
	}
}
