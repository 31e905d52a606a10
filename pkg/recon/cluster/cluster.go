// Package cluster partitions the reconciliations of a graph into groups of
// structurally similar solutions.
//
// The distance between two reconciliations counts the events present in
// only one of them, which is the squared Euclidean distance between their
// event indicator vectors. The within-group error sum of squares of a
// group of n reconciliations is therefore W/(2n), where W is the sum of
// distances over all ordered pairs in the group, and it can be computed
// exactly from [diameter] histograms.
//
// # Algorithm
//
// Splitting: a group is divided either by its roots or at a mandatory
// mapping node (one every reconciliation of the group passes through) with
// several events, one sub-group per event. Each group is a restriction of
// the input graph, so sub-groups partition their parent exactly. The split
// with the largest reduction in error sum of squares is applied until
// Options.Splits groups exist or no group can be split further.
//
// Coalescing: sibling groups of the split tree are merged with Ward's
// criterion until exactly k groups remain. Merging siblings yields again a
// restriction of their common parent.
package cluster

import (
	"context"
	"io"
	"math"
	"math/big"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/diameter"
)

const (
	// DefaultSplits is the number of groups built before coalescing.
	DefaultSplits = 16

	// DefaultCandidates bounds the split points scored per group.
	DefaultCandidates = 8
)

// Options configures [Cluster].
type Options struct {
	// Splits is the split granularity. It is raised to k when smaller.
	Splits int
	// Candidates bounds the mandatory nodes scored per group, preferring
	// nodes with many events.
	Candidates int
	// Logger receives debug progress messages.
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Splits <= 0 {
		o.Splits = DefaultSplits
	}
	if o.Candidates <= 0 {
		o.Candidates = DefaultCandidates
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Group is one cluster: a sub-graph of the input together with its
// distance histogram.
type Group struct {
	Graph     *recon.Graph
	Histogram *diameter.Histogram
}

// Count returns the number of reconciliations in the group.
func (c Group) Count() *big.Int { return c.Graph.TotalCount() }

// MeanDistance returns the average distance between two reconciliations of
// the group.
func (c Group) MeanDistance() float64 { return c.Histogram.Mean() }

// Result is the outcome of clustering.
type Result struct {
	Groups []Group
	// Histogram is the distance histogram of the input graph.
	Histogram *diameter.Histogram
	total     *big.Int
}

// WeightedMeanDistance averages the groups' mean distances weighted by
// their sizes.
func (r *Result) WeightedMeanDistance() float64 {
	var s float64
	for _, c := range r.Groups {
		frac, _ := new(big.Rat).SetFrac(c.Count(), r.total).Float64()
		s += frac * c.MeanDistance()
	}
	return s
}

// Improvement is the ratio of the input's mean distance to the weighted
// mean distance within groups. Values above one mean the groups are
// tighter than the whole.
func (r *Result) Improvement() float64 {
	global, within := r.Histogram.Mean(), r.WeightedMeanDistance()
	switch {
	case within > 0:
		return global / within
	case global > 0:
		return math.Inf(1)
	default:
		return 1
	}
}

// Cluster partitions the reconciliations of g into exactly k groups. k
// must lie in [1, g.TotalCount()]; otherwise a CLUSTER_COUNT error is
// returned.
func Cluster(ctx context.Context, g *recon.Graph, k int, opts Options) (*Result, error) {
	opts.setDefaults()
	total := g.TotalCount()
	if k < 1 || big.NewInt(int64(k)).Cmp(total) > 0 {
		return nil, perrors.New(perrors.ErrCodeClusterCount,
			"cluster count %d outside [1, %s]", k, total)
	}
	start := time.Now()

	b := &builder{ctx: ctx, opts: opts, cross: make(map[[2]*part]*big.Int)}
	top, err := b.newPart(g, nil)
	if err != nil {
		return nil, err
	}
	b.top = top

	target := max(opts.Splits, k)
	if err := b.splitUntil(target); err != nil {
		return nil, err
	}
	opts.Logger.Debug("split reconciliations", "groups", len(b.leaves()), "target", target)

	if err := b.coalesceTo(k); err != nil {
		return nil, err
	}

	res := &Result{Histogram: top.histogram, total: total}
	for _, p := range b.leaves() {
		if p.histogram == nil {
			h, err := diameter.Self(ctx, p.g)
			if err != nil {
				return nil, err
			}
			p.histogram = h
		}
		res.Groups = append(res.Groups, Group{Graph: p.g, Histogram: p.histogram})
	}
	opts.Logger.Debug("clustered reconciliations",
		"k", k,
		"improvement", res.Improvement(),
		"duration", time.Since(start))
	return res, nil
}

// part is a node of the split tree: a group of reconciliations given as a
// restriction of the graph of the part it was split from.
type part struct {
	g         *recon.Graph
	n         *big.Int
	w         *big.Int
	histogram *diameter.Histogram

	options []int
	split   *split
}

// ess returns the part's error sum of squares W/(2n).
func (p *part) ess() *big.Rat {
	return new(big.Rat).SetFrac(p.w, new(big.Int).Lsh(p.n, 1))
}

// split divides parent by its roots (node unset) or by the events of node.
type split struct {
	parent   *part
	byRoot   bool
	node     recon.MappingNode
	width    int
	children []*part
}

// restrict builds the sub-graph of s.parent covering the given options.
func (s *split) restrict(options []int) (*recon.Graph, error) {
	g := s.parent.g
	if s.byRoot {
		roots := g.Roots()
		sel := make([]recon.MappingNode, len(options))
		for i, o := range options {
			sel[i] = roots[o]
		}
		return g.Restrict(sel, nil)
	}
	events := g.Events(s.node)
	return g.Restrict(g.Roots(), func(m recon.MappingNode, e recon.Event) bool {
		if m != s.node {
			return true
		}
		for _, o := range options {
			if events[o] == e {
				return true
			}
		}
		return false
	})
}

type candidate struct {
	split *split
	score *big.Rat
}

type builder struct {
	ctx   context.Context
	opts  Options
	top   *part
	best  map[*part]*candidate
	cross map[[2]*part]*big.Int
}

func (b *builder) newPart(g *recon.Graph, options []int) (*part, error) {
	h, err := diameter.Self(b.ctx, g)
	if err != nil {
		return nil, err
	}
	return &part{g: g, n: g.TotalCount(), w: h.Sum(), histogram: h, options: options}, nil
}

// leaves returns the unsplit parts in split tree order.
func (b *builder) leaves() []*part {
	var out []*part
	stack := []*part{b.top}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.split == nil {
			out = append(out, p)
			continue
		}
		for i := len(p.split.children) - 1; i >= 0; i-- {
			stack = append(stack, p.split.children[i])
		}
	}
	return out
}

// candidates lists the split points of p: its roots when there are
// several, otherwise mandatory nodes with more than one event.
func (b *builder) candidates(p *part) []*split {
	g := p.g
	if roots := g.Roots(); len(roots) > 1 {
		return []*split{{parent: p, byRoot: true, width: len(roots)}}
	}
	f := g.Frequencies()
	var out []*split
	for i := range g.Len() {
		if n := len(g.EventsAt(i)); n > 1 && f.Through[i].Cmp(p.n) == 0 {
			out = append(out, &split{parent: p, node: g.NodeAt(i), width: n})
		}
	}
	// Wide nodes first, then nodes closer to the root.
	slices.SortStableFunc(out, func(a, c *split) int {
		if a.width != c.width {
			return c.width - a.width
		}
		ia, _ := g.Index(a.node)
		ic, _ := g.Index(c.node)
		return ic - ia
	})
	if len(out) > b.opts.Candidates {
		out = out[:b.opts.Candidates]
	}
	return out
}

// evaluate scores the best split of p, building its children.
func (b *builder) evaluate(p *part) (*candidate, error) {
	if p.n.Cmp(big.NewInt(1)) <= 0 {
		return nil, nil
	}
	var best *candidate
	for _, s := range b.candidates(p) {
		score := p.ess()
		for o := range s.width {
			g, err := s.restrict([]int{o})
			if err != nil {
				return nil, err
			}
			child, err := b.newPart(g, []int{o})
			if err != nil {
				return nil, err
			}
			s.children = append(s.children, child)
			score.Sub(score, child.ess())
		}
		if best == nil || score.Cmp(best.score) > 0 {
			best = &candidate{split: s, score: score}
		}
	}
	return best, nil
}

func (b *builder) splitUntil(target int) error {
	b.best = make(map[*part]*candidate)
	for {
		leaves := b.leaves()
		if len(leaves) >= target {
			return nil
		}
		var pick *candidate
		for _, p := range leaves {
			c, ok := b.best[p]
			if !ok {
				var err error
				if c, err = b.evaluate(p); err != nil {
					return err
				}
				b.best[p] = c
			}
			if c != nil && (pick == nil || c.score.Cmp(pick.score) > 0) {
				pick = c
			}
		}
		if pick == nil {
			return nil
		}
		pick.split.parent.split = pick.split
	}
}

func (b *builder) crossSum(x, y *part) (*big.Int, error) {
	key := [2]*part{x, y}
	if s, ok := b.cross[key]; ok {
		return s, nil
	}
	h, err := diameter.Compute(b.ctx, x.g, y.g)
	if err != nil {
		return nil, err
	}
	s := h.Sum()
	b.cross[key] = s
	return s, nil
}

// coalesceTo merges sibling leaves with the smallest Ward cost until k
// leaves remain.
func (b *builder) coalesceTo(k int) error {
	for len(b.leaves()) > k {
		var (
			bestDelta *big.Rat
			bestSplit *split
			bi, bj    int
			bestW     *big.Int
		)
		for _, p := range b.internal() {
			s := p.split
			for i := range s.children {
				for j := i + 1; j < len(s.children); j++ {
					x, y := s.children[i], s.children[j]
					if x.split != nil || y.split != nil {
						continue
					}
					cs, err := b.crossSum(x, y)
					if err != nil {
						return err
					}
					w := new(big.Int).Lsh(cs, 1)
					w.Add(w, x.w).Add(w, y.w)
					n := new(big.Int).Add(x.n, y.n)
					delta := new(big.Rat).SetFrac(w, new(big.Int).Lsh(n, 1))
					delta.Sub(delta, x.ess()).Sub(delta, y.ess())
					if bestDelta == nil || delta.Cmp(bestDelta) < 0 {
						bestDelta, bestSplit, bi, bj, bestW = delta, s, i, j, w
					}
				}
			}
		}
		if bestSplit == nil {
			return perrors.New(perrors.ErrCodeInternal, "no mergeable groups left")
		}
		if err := b.merge(bestSplit, bi, bj, bestW); err != nil {
			return err
		}
	}
	return nil
}

// internal returns the split parts in split tree order.
func (b *builder) internal() []*part {
	var out []*part
	stack := []*part{b.top}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.split == nil {
			continue
		}
		out = append(out, p)
		for i := len(p.split.children) - 1; i >= 0; i-- {
			stack = append(stack, p.split.children[i])
		}
	}
	return out
}

func (b *builder) merge(s *split, i, j int, w *big.Int) error {
	x, y := s.children[i], s.children[j]
	if len(s.children) == 2 {
		// The union is the parent itself.
		s.parent.split = nil
		return nil
	}
	options := append(slices.Clone(x.options), y.options...)
	slices.Sort(options)
	g, err := s.restrict(options)
	if err != nil {
		return err
	}
	u := &part{g: g, n: g.TotalCount(), w: w, options: options}
	s.children[i] = u
	s.children = slices.Delete(s.children, j, j+1)
	return nil
}
