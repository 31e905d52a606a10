package costregion_test

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/mprscape/pkg/costregion"
	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func rectArea(r costregion.Rect) float64 {
	return (r.TransferMax - r.TransferMin) * (r.DuplicationMax - r.DuplicationMin)
}

// checkRegions verifies that the regions tile the rectangle and that each
// region's vector is optimal at its centroid.
func checkRegions(t *testing.T, prob recon.Problem, rect costregion.Rect, regions []costregion.Region) {
	t.Helper()
	if len(regions) == 0 {
		t.Fatal("no regions")
	}
	var total float64
	seen := make(map[costregion.CostVector]bool)
	for _, r := range regions {
		if seen[r.Vector] {
			t.Errorf("vector %v appears twice", r.Vector)
		}
		seen[r.Vector] = true
		if r.Area <= 0 {
			t.Errorf("region %v has area %v", r.Vector, r.Area)
		}
		total += r.Area

		p := prob
		p.Costs.Transfer = r.Centroid.Transfer
		p.Costs.Duplication = r.Centroid.Duplication
		g, err := recon.Reconcile(context.Background(), p)
		if err != nil {
			t.Fatalf("Reconcile at %+v: %v", r.Centroid, err)
		}
		if got, want := r.Cost, g.MinCost().Float(); math.Abs(got-want) > 1e-3 {
			t.Errorf("region %v cost at centroid = %v, want %v", r.Vector, got, want)
		}
	}
	if want := rectArea(rect); math.Abs(total-want) > 1e-6*want {
		t.Errorf("total area = %v, want %v", total, want)
	}
}

func TestComputeSingleVector(t *testing.T) {
	prob := recontest.Duplications()
	rect := costregion.DefaultRect()

	regions, err := costregion.Compute(context.Background(), prob, rect)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("len(regions) = %d, want 1", len(regions))
	}
	want := costregion.CostVector{Duplications: 2}
	if regions[0].Vector != want {
		t.Errorf("vector = %v, want %v", regions[0].Vector, want)
	}
	checkRegions(t, prob, rect, regions)
}

func TestComputeFixtures(t *testing.T) {
	for name, prob := range map[string]recon.Problem{
		"transfers": recontest.Transfers(),
		"ambiguous": recontest.Ambiguous(),
	} {
		t.Run(name, func(t *testing.T) {
			rect := costregion.DefaultRect()
			regions, err := costregion.Compute(context.Background(), prob, rect)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			checkRegions(t, prob, rect, regions)
		})
	}
}

func TestComputeRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	rect := costregion.Rect{TransferMin: 0.5, TransferMax: 6, DuplicationMin: 0.5, DuplicationMax: 6}
	for i := range 8 {
		prob := recontest.Random(rng, 3+i%3, 3+i%4)
		regions, err := costregion.Compute(context.Background(), prob, rect)
		if err != nil {
			t.Fatalf("Compute #%d: %v", i, err)
		}
		checkRegions(t, prob, rect, regions)
	}
}

func TestComputeEnvelopeMatchesDP(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	rect := costregion.DefaultRect()
	for i := range 6 {
		prob := recontest.Random(rng, 3+i%3, 3+i%4)
		regions, err := costregion.Compute(context.Background(), prob, rect)
		if err != nil {
			t.Fatalf("Compute #%d: %v", i, err)
		}
		if len(regions) == 0 {
			t.Fatalf("Compute #%d: no regions", i)
		}
		for range 10 {
			pt := costregion.Point{
				Transfer:    rect.TransferMin + rng.Float64()*(rect.TransferMax-rect.TransferMin),
				Duplication: rect.DuplicationMin + rng.Float64()*(rect.DuplicationMax-rect.DuplicationMin),
			}
			env := math.Inf(1)
			for _, r := range regions {
				env = min(env, r.Vector.Cost(pt, prob.Costs.Loss))
			}
			p := prob
			p.Costs.Transfer, p.Costs.Duplication = pt.Transfer, pt.Duplication
			g, err := recon.Reconcile(context.Background(), p)
			if err != nil {
				t.Fatalf("Reconcile at %+v: %v", pt, err)
			}
			if want := g.MinCost().Float(); math.Abs(env-want) > 1e-3 {
				t.Errorf("#%d at %+v: envelope = %v, optimum = %v", i, pt, env, want)
			}
		}
	}
}

func TestComputeSorted(t *testing.T) {
	regions, err := costregion.Compute(context.Background(), recontest.Transfers(), costregion.DefaultRect())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := 1; i < len(regions); i++ {
		a, b := regions[i-1].Vector, regions[i].Vector
		if a.Duplications > b.Duplications ||
			(a.Duplications == b.Duplications && a.Transfers > b.Transfers) {
			t.Errorf("regions out of order: %v before %v", a, b)
		}
	}
}

func TestComputeErrors(t *testing.T) {
	tests := []struct {
		name string
		prob recon.Problem
		rect costregion.Rect
		code perrors.Code
	}{
		{"empty range", recontest.Transfers(), costregion.Rect{TransferMin: 2, TransferMax: 2, DuplicationMin: 1, DuplicationMax: 3}, perrors.ErrCodeInvalidInput},
		{"inverted", recontest.Transfers(), costregion.Rect{TransferMin: 3, TransferMax: 1, DuplicationMin: 1, DuplicationMax: 3}, perrors.ErrCodeInvalidInput},
		{"negative", recontest.Transfers(), costregion.Rect{TransferMin: -1, TransferMax: 1, DuplicationMin: 1, DuplicationMax: 3}, perrors.ErrCodeInvalidCost},
		{"nan", recontest.Transfers(), costregion.Rect{TransferMin: 0, TransferMax: math.NaN(), DuplicationMin: 1, DuplicationMax: 3}, perrors.ErrCodeInvalidCost},
		{"no trees", recon.Problem{}, costregion.DefaultRect(), perrors.ErrCodeStructural},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := costregion.Compute(context.Background(), tt.prob, tt.rect)
			if !perrors.Is(err, tt.code) {
				t.Errorf("Compute error = %v, want code %v", err, tt.code)
			}
		})
	}
}

func TestComputeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := costregion.Compute(ctx, recontest.Transfers(), costregion.DefaultRect()); err == nil {
		t.Error("Compute with canceled context succeeded")
	}
}

func TestCostVector(t *testing.T) {
	v := costregion.CostVector{Duplications: 1, Transfers: 2, Losses: 3}
	if got := v.Cost(costregion.Point{Transfer: 2, Duplication: 5}, 0.5); got != 10.5 {
		t.Errorf("Cost = %v, want 10.5", got)
	}
	if got := v.String(); got != "(D=1, T=2, L=3)" {
		t.Errorf("String = %q", got)
	}
}
