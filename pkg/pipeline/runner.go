package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/mprscape/pkg/cache"
	"github.com/matzehuels/mprscape/pkg/costregion"
	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/observability"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/cluster"
	"github.com/matzehuels/mprscape/pkg/recon/diameter"
	"github.com/matzehuels/mprscape/pkg/stats"
)

// Runner runs engine stages with caching and instrumentation.
//
// The Runner holds no per-run state, so one Runner may serve concurrent
// calls with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer means DefaultKeyer and a nil
// cache means NullCache.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Result is the outcome of [Runner.Reconcile].
type Result struct {
	RunID       string
	Problem     recon.Problem
	ProblemHash string
	Graph       *recon.Graph
	CacheHit    bool
	Duration    time.Duration
}

// Reconcile solves prob, with costs overridden by opts, and returns the
// graph of all maximum parsimony reconciliations.
func (r *Runner) Reconcile(ctx context.Context, prob recon.Problem, opts Options) (*Result, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	prob = opts.ApplyCosts(prob)
	res := &Result{RunID: uuid.NewString(), Problem: prob}
	start := time.Now()

	hash, err := ProblemHash(prob)
	if err != nil {
		return nil, err
	}
	res.ProblemHash = hash

	key := r.Keyer.GraphKey(hash)
	err = r.stage(ctx, observability.StageReconcile, func() error {
		if data, ok := r.lookup(ctx, "graph", key, opts.Refresh); ok {
			if g, err := mio.UnmarshalGraph(data); err == nil {
				res.Graph, res.CacheHit = g, true
				return nil
			}
		}
		g, err := recon.Reconcile(ctx, prob, recon.WithWorkers(opts.Workers), recon.WithLogger(opts.Logger))
		if err != nil {
			return err
		}
		res.Graph = g
		if data, err := mio.MarshalGraph(g); err == nil {
			r.store(ctx, "graph", key, data, cache.TTLGraph)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	g := res.Graph
	mprs, _ := new(big.Float).SetInt(g.TotalCount()).Float64()
	observability.Engine().OnGraph(ctx, g.Len(), g.EventCount(), mprs)
	r.Logger.Info("reconciled",
		"run", res.RunID,
		"cost", g.MinCost(),
		"mprs", g.TotalCount(),
		"nodes", g.Len(),
		"events", g.EventCount(),
		"cached", res.CacheHit,
		"duration", res.Duration)
	return res, nil
}

// Median returns a median reconciliation of g.
func (r *Runner) Median(ctx context.Context, g *recon.Graph, opts Options) (*recon.Reconciliation, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	var med *recon.Reconciliation
	err := r.stage(ctx, observability.StageMedian, func() error {
		var err error
		med, err = g.Median(opts.rng())
		return err
	})
	if err != nil {
		return nil, err
	}
	return med, nil
}

// Sample draws opts.Samples reconciliations from g, weighted so that each
// reconciliation is equally likely.
func (r *Runner) Sample(ctx context.Context, g *recon.Graph, opts Options) ([]*recon.Reconciliation, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	out := make([]*recon.Reconciliation, 0, opts.Samples)
	err := r.stage(ctx, observability.StageSample, func() error {
		rng := opts.rng()
		for range opts.Samples {
			if err := ctx.Err(); err != nil {
				return err
			}
			out = append(out, g.Sample(rng))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Histogram returns the pairwise distance histogram of g.
func (r *Runner) Histogram(ctx context.Context, g *recon.Graph, opts Options) (*diameter.Histogram, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	data, err := mio.MarshalGraph(g)
	if err != nil {
		return nil, err
	}
	key := r.Keyer.HistogramKey(cache.Hash(data))

	var h *diameter.Histogram
	err = r.stage(ctx, observability.StageHistogram, func() error {
		if data, ok := r.lookup(ctx, "histogram", key, opts.Refresh); ok {
			cached := new(diameter.Histogram)
			if json.Unmarshal(data, cached) == nil {
				h = cached
				return nil
			}
		}
		var err error
		if h, err = diameter.Self(ctx, g); err != nil {
			return err
		}
		if data, err := json.Marshal(h); err == nil {
			r.store(ctx, "histogram", key, data, cache.TTLHistogram)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("histogram", "diameter", h.Diameter(), "mean", h.Mean())
	return h, nil
}

// Cluster partitions g into opts.Clusters groups.
func (r *Runner) Cluster(ctx context.Context, g *recon.Graph, opts Options) (*cluster.Result, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	var res *cluster.Result
	err := r.stage(ctx, observability.StageCluster, func() error {
		var err error
		res, err = cluster.Cluster(ctx, g, opts.Clusters, cluster.Options{
			Splits:     opts.Splits,
			Candidates: opts.Candidates,
			Logger:     opts.Logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	r.Logger.Info("clustered",
		"groups", len(res.Groups),
		"improvement", res.Improvement())
	return res, nil
}

// Regions partitions opts.Region for prob's trees and tips, holding the
// loss cost fixed.
func (r *Runner) Regions(ctx context.Context, prob recon.Problem, opts Options) ([]costregion.Region, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	prob = opts.ApplyCosts(prob)
	keyed := prob
	keyed.Costs.Duplication, keyed.Costs.Transfer = 0, 0
	hash, err := ProblemHash(keyed)
	if err != nil {
		return nil, err
	}
	rect := opts.Region
	key := r.Keyer.RegionsKey(hash, cache.RegionsKeyOpts{
		TransferMin:    rect.TransferMin,
		TransferMax:    rect.TransferMax,
		DuplicationMin: rect.DuplicationMin,
		DuplicationMax: rect.DuplicationMax,
	})

	var regions []costregion.Region
	err = r.stage(ctx, observability.StageRegions, func() error {
		if data, ok := r.lookup(ctx, "regions", key, opts.Refresh); ok {
			if json.Unmarshal(data, &regions) == nil {
				return nil
			}
		}
		var err error
		if regions, err = costregion.Compute(ctx, prob, rect, recon.WithWorkers(opts.Workers)); err != nil {
			return err
		}
		if data, err := json.Marshal(regions); err == nil {
			r.store(ctx, "regions", key, data, cache.TTLRegions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.Logger.Info("cost regions", "regions", len(regions))
	return regions, nil
}

// Stats computes the p-value of prob's optimal cost against opts.Trials
// shuffled tip mappings.
func (r *Runner) Stats(ctx context.Context, prob recon.Problem, opts Options) (*stats.Result, error) {
	if err := r.prepare(&opts); err != nil {
		return nil, err
	}
	prob = opts.ApplyCosts(prob)
	hash, err := ProblemHash(prob)
	if err != nil {
		return nil, err
	}
	key := r.Keyer.StatsKey(hash, cache.StatsKeyOpts{Trials: opts.Trials, Seed: opts.Seed})

	var res *stats.Result
	err = r.stage(ctx, observability.StageStats, func() error {
		if data, ok := r.lookup(ctx, "stats", key, opts.Refresh); ok {
			cached := new(stats.Result)
			if json.Unmarshal(data, cached) == nil {
				res = cached
				return nil
			}
		}
		var err error
		res, err = stats.PValue(ctx, prob, opts.rng(), stats.Options{
			Trials:  opts.Trials,
			Workers: opts.Workers,
			Logger:  opts.Logger,
		})
		if err != nil {
			return err
		}
		if data, err := json.Marshal(res); err == nil {
			r.store(ctx, "stats", key, data, cache.TTLStats)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.Logger.Info("p-value", "observed", res.Observed, "p", res.PValue, "trials", len(res.Costs))
	return res, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// ProblemHash returns a content hash of prob's trees, tips and costs.
func ProblemHash(prob recon.Problem) (string, error) {
	data, err := json.Marshal(mio.ProblemDocOf(prob))
	if err != nil {
		return "", fmt.Errorf("hash problem: %w", err)
	}
	return cache.Hash(data), nil
}

func (r *Runner) prepare(opts *Options) error {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	opts.SetDefaults()
	return opts.Validate()
}

func (o *Options) rng() *rand.Rand {
	return rand.New(rand.NewPCG(o.Seed, o.Seed^math.MaxUint32))
}

func (r *Runner) stage(ctx context.Context, name string, fn func() error) error {
	hooks := observability.Engine()
	hooks.OnStageStart(ctx, name)
	start := time.Now()
	err := fn()
	hooks.OnStageComplete(ctx, name, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *Runner) lookup(ctx context.Context, keyType, key string, refresh bool) ([]byte, bool) {
	if refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "type", keyType, "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return data, true
}

func (r *Runner) store(ctx context.Context, keyType, key string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "type", keyType, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}
