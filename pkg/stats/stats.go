// Package stats tests whether an optimal reconciliation cost is lower than
// expected by chance.
//
// The null distribution is built by shuffling which host leaf each parasite
// leaf is mapped to and re-solving. The p-value is the fraction of shuffled
// problems whose optimal cost is at most the observed one.
package stats

import (
	"context"
	"io"
	"math/rand/v2"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
)

// DefaultTrials is the number of shuffled tip mappings used by default.
const DefaultTrials = 100

// Result holds the observed cost and the null distribution.
type Result struct {
	Observed float64   `json:"observed"`
	Costs    []float64 `json:"costs"`
	PValue   float64   `json:"p_value"`
}

// Options configures PValue. The zero value runs DefaultTrials trials on
// GOMAXPROCS goroutines.
type Options struct {
	Trials  int
	Workers int
	Logger  *log.Logger
}

// PValue solves prob, then solves trials copies of prob with permuted tip
// mappings. Each trial draws its permutation from its own generator seeded
// from rng, so results do not depend on scheduling.
func PValue(ctx context.Context, prob recon.Problem, rng *rand.Rand, opts Options) (*Result, error) {
	if opts.Trials == 0 {
		opts.Trials = DefaultTrials
	}
	if opts.Trials < 0 {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "trials must be positive, got %d", opts.Trials)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	start := time.Now()
	g, err := recon.Reconcile(ctx, prob, recon.WithWorkers(1))
	if err != nil {
		return nil, err
	}
	observed := g.MinCost().Float()

	seeds := make([][2]uint64, opts.Trials)
	for i := range seeds {
		seeds[i] = [2]uint64{rng.Uint64(), rng.Uint64()}
	}

	costs := make([]float64, opts.Trials)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i, s := range seeds {
		eg.Go(func() error {
			trial := prob
			perm := rand.New(rand.NewPCG(s[0], s[1])).Perm(len(prob.Tips))
			trial.Tips = prob.Tips.Permute(perm)
			tg, err := recon.Reconcile(ctx, trial, recon.WithWorkers(1))
			if err != nil {
				return err
			}
			costs[i] = tg.MinCost().Float()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var hits int
	for _, c := range costs {
		if c <= observed {
			hits++
		}
	}
	slices.Sort(costs)
	res := &Result{Observed: observed, Costs: costs, PValue: float64(hits) / float64(opts.Trials)}
	opts.Logger.Debug("p-value computed",
		"observed", observed,
		"trials", opts.Trials,
		"p", res.PValue,
		"duration", time.Since(start))
	return res, nil
}
