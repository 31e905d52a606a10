package recon_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

// TestAgainstExhaustiveSearch compares the dynamic program with a solver
// that accounts for every reconciliation of trees with up to six leaves.
func TestAgainstExhaustiveSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40

	properties := gopter.NewProperties(parameters)

	properties.Property("minimum cost and MPR count match exhaustive search", prop.ForAll(
		func(seed uint64, hostLeaves, parasiteLeaves int) bool {
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b9))
			prob := recontest.Random(rng, hostLeaves, parasiteLeaves)

			g, err := recon.Reconcile(context.Background(), prob)
			if err != nil {
				return false
			}
			x, err := recontest.NewExhaustive(prob)
			if err != nil {
				return false
			}
			cost, count := x.Optimum()
			return g.MinCost() == cost && g.TotalCount().Cmp(count) == 0
		},
		gen.UInt64(),
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
	))

	properties.Property("counts match exhaustive search with a zero loss cost", prop.ForAll(
		func(seed uint64, hostLeaves, parasiteLeaves int) bool {
			rng := rand.New(rand.NewPCG(seed, 7))
			prob := recontest.Random(rng, hostLeaves, parasiteLeaves)
			prob.Costs.Loss = 0

			g, err := recon.Reconcile(context.Background(), prob)
			if err != nil {
				return false
			}
			x, err := recontest.NewExhaustive(prob)
			if err != nil {
				return false
			}
			cost, count := x.Optimum()
			if g.MinCost() != cost || g.TotalCount().Cmp(count) != 0 {
				return false
			}
			again, err := recon.FromEvents(prob, g.EventTable())
			return err == nil && again.TotalCount().Cmp(count) == 0
		},
		gen.UInt64(),
		gen.IntRange(1, 5),
		gen.IntRange(1, 5),
	))

	properties.Property("every enumerated reconciliation is valid and optimal", prop.ForAll(
		func(seed uint64, hostLeaves, parasiteLeaves int) bool {
			rng := rand.New(rand.NewPCG(seed, 1))
			prob := recontest.Random(rng, hostLeaves, parasiteLeaves)
			g, err := recon.Reconcile(context.Background(), prob)
			if err != nil {
				return false
			}
			limit := 200
			for r := range g.All() {
				if r.Validate(prob) != nil || r.Cost(prob.Costs) != g.MinCost() {
					return false
				}
				if limit--; limit == 0 {
					break
				}
			}
			return true
		},
		gen.UInt64(),
		gen.IntRange(1, 5),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
