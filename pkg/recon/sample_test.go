package recon_test

import (
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func TestMedianCostIsOptimal(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 8))
	for range 15 {
		prob := recontest.Random(rng, 4, 5)
		g := reconcile(t, prob)

		med, err := g.Median(rng)
		if err != nil {
			t.Fatalf("Median() error = %v", err)
		}
		if err := med.Validate(prob); err != nil {
			t.Fatalf("median invalid: %v", err)
		}
		if got := med.Cost(prob.Costs); got != g.MinCost() {
			t.Errorf("median cost = %v, want %v", got, g.MinCost())
		}
		if !g.Contains(med) {
			t.Errorf("median is not a reconciliation of the graph")
		}
	}
}

func TestMedianIsDeterministicForSeed(t *testing.T) {
	g := reconcile(t, recontest.Ambiguous())
	a, err := g.Median(rand.New(rand.NewPCG(42, 0)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Median(rand.New(rand.NewPCG(42, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if fingerprint(a) != fingerprint(b) {
		t.Errorf("Median() differs for equal seeds")
	}
}

func TestMedianGraphMaximizesScore(t *testing.T) {
	prob := recontest.Ambiguous()
	g := reconcile(t, prob)
	f := g.Frequencies()

	best := -1e18
	for r := range g.All() {
		var s float64
		for m, e := range r.Events {
			i := mustIndex(t, g, m)
			for k, x := range g.EventsAt(i) {
				if x == e {
					s += f.EventAt(i, k) - 0.5
				}
			}
		}
		best = max(best, s)
	}

	med, err := g.MedianGraph()
	if err != nil {
		t.Fatal(err)
	}
	for r := range med.All() {
		var s float64
		for m, e := range r.Events {
			i := mustIndex(t, g, m)
			for k, x := range g.EventsAt(i) {
				if x == e {
					s += f.EventAt(i, k) - 0.5
				}
			}
		}
		if !near(s, best) {
			t.Errorf("median reconciliation score = %v, want %v", s, best)
		}
	}
}

func TestSampleIsMember(t *testing.T) {
	prob := recontest.Ambiguous()
	g := reconcile(t, prob)
	rng := rand.New(rand.NewPCG(9, 9))
	for range 50 {
		r := g.Sample(rng)
		if !g.Contains(r) {
			t.Fatalf("sample is not a reconciliation of the graph")
		}
		if err := r.Validate(prob); err != nil {
			t.Fatalf("sample invalid: %v", err)
		}
	}
}
