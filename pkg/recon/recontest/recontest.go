// Package recontest provides fixtures and an exhaustive reference solver
// for testing code built on package recon.
package recontest

import (
	"fmt"
	"maps"
	"math/big"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/tree"
)

// MustTree builds a tree or panics.
func MustTree(root string, children map[string][2]string) *tree.Tree {
	t, err := tree.Build(root, children)
	if err != nil {
		panic(fmt.Sprintf("recontest: %v", err))
	}
	return t
}

// Node returns the mapping node for a pair of names.
func Node(prob recon.Problem, parasite, host string) recon.MappingNode {
	p, ok := prob.Parasite.ID(parasite)
	if !ok {
		panic("recontest: unknown parasite node " + parasite)
	}
	h, ok := prob.Host.ID(host)
	if !ok {
		panic("recontest: unknown host node " + host)
	}
	return recon.MappingNode{Parasite: p, Host: h}
}

// FixtureHost is the host tree shared by the fixtures: ((m3,m4)m1,m2)m0.
func FixtureHost() *tree.Tree {
	return MustTree("m0", map[string][2]string{
		"m0": {"m1", "m2"},
		"m1": {"m3", "m4"},
	})
}

// Duplications is a problem whose three parasite leaves all live on m4, so
// its only MPR duplicates twice on m4.
func Duplications() recon.Problem {
	return recon.Problem{
		Host: FixtureHost(),
		Parasite: MustTree("n0", map[string][2]string{
			"n0": {"n1", "n2"},
			"n2": {"n3", "n4"},
		}),
		Tips:  tree.TipMapping{"n1": "m4", "n3": "m4", "n4": "m4"},
		Costs: recon.DefaultCosts(),
	}
}

// DuplicationsReconciliation is the single MPR of [Duplications].
func DuplicationsReconciliation(prob recon.Problem) *recon.Reconciliation {
	n := func(p, h string) recon.MappingNode { return Node(prob, p, h) }
	return &recon.Reconciliation{
		Root: n("n0", "m4"),
		Events: map[recon.MappingNode]recon.Event{
			n("n0", "m4"): recon.NewEvent(recon.Duplication, n("n1", "m4"), n("n2", "m4")),
			n("n1", "m4"): recon.NewEvent(recon.Leaf),
			n("n2", "m4"): recon.NewEvent(recon.Duplication, n("n3", "m4"), n("n4", "m4")),
			n("n3", "m4"): recon.NewEvent(recon.Leaf),
			n("n4", "m4"): recon.NewEvent(recon.Leaf),
		},
	}
}

// Transfers is a problem with a reconciliation using two transfers and a
// cospeciation.
func Transfers() recon.Problem {
	return recon.Problem{
		Host: FixtureHost(),
		Parasite: MustTree("n0", map[string][2]string{
			"n0": {"n4", "n2"},
			"n2": {"n5", "n3"},
			"n3": {"n1", "n6"},
		}),
		Tips:  tree.TipMapping{"n1": "m3", "n4": "m4", "n5": "m2", "n6": "m4"},
		Costs: recon.DefaultCosts(),
	}
}

// TransfersReconciliation is the two-transfer reconciliation of [Transfers].
func TransfersReconciliation(prob recon.Problem) *recon.Reconciliation {
	n := func(p, h string) recon.MappingNode { return Node(prob, p, h) }
	return &recon.Reconciliation{
		Root: n("n0", "m4"),
		Events: map[recon.MappingNode]recon.Event{
			n("n0", "m4"): recon.NewEvent(recon.Transfer, n("n4", "m4"), n("n2", "m2")),
			n("n2", "m2"): recon.NewEvent(recon.Transfer, n("n5", "m2"), n("n3", "m1")),
			n("n3", "m1"): recon.NewEvent(recon.Cospeciation, n("n1", "m3"), n("n6", "m4")),
			n("n1", "m3"): recon.NewEvent(recon.Leaf),
			n("n4", "m4"): recon.NewEvent(recon.Leaf),
			n("n5", "m2"): recon.NewEvent(recon.Leaf),
			n("n6", "m4"): recon.NewEvent(recon.Leaf),
		},
	}
}

// SingleLeaf is the degenerate problem of one parasite leaf on one host leaf.
func SingleLeaf() recon.Problem {
	return recon.Problem{
		Host:     MustTree("h", nil),
		Parasite: MustTree("p", nil),
		Tips:     tree.TipMapping{"p": "h"},
		Costs:    recon.DefaultCosts(),
	}
}

// Ambiguous is a small problem with eight tied MPRs, useful for exercising
// counting, clustering and the diameter.
//
// Both parasite cherries straddle the host root, so the only optimal
// placement of p0 is a cospeciation on h0 (cost 8). Either cherry may go
// left or right, and on each side it is reached in two equally cheap ways:
// a loss down to the leaf carrying one tip followed by a transfer, or a
// transfer from the inner host followed by a loss.
func Ambiguous() recon.Problem {
	return recon.Problem{
		Host: MustTree("h0", map[string][2]string{
			"h0": {"h1", "h2"},
			"h1": {"ha", "hb"},
			"h2": {"hc", "hd"},
		}),
		Parasite: MustTree("p0", map[string][2]string{
			"p0": {"p1", "p2"},
			"p1": {"pa", "pb"},
			"p2": {"pc", "pd"},
		}),
		Tips:  tree.TipMapping{"pa": "ha", "pb": "hc", "pc": "ha", "pd": "hc"},
		Costs: recon.Costs{Duplication: 5, Transfer: 3, Loss: 1},
	}
}

// AmbiguousCount is the number of MPRs of [Ambiguous].
const AmbiguousCount = 8

// Random returns a random problem with the given leaf counts. Costs are
// small integers with a positive loss cost.
func Random(rng *rand.Rand, hostLeaves, parasiteLeaves int) recon.Problem {
	host := tree.Random(rng, hostLeaves, "h")
	para := tree.Random(rng, parasiteLeaves, "p")
	return recon.Problem{
		Host:     host,
		Parasite: para,
		Tips:     tree.RandomTips(rng, host, para),
		Costs: recon.Costs{
			Duplication: float64(rng.IntN(4)),
			Transfer:    float64(rng.IntN(4)),
			Loss:        float64(1 + rng.IntN(2)),
		},
	}
}

// Exhaustive accounts for every structurally valid reconciliation of prob
// grouped by total cost, without any pruning of suboptimal choices. It is
// exponential in spirit and meant for trees with a handful of leaves.
type Exhaustive struct {
	prob  recon.Problem
	tips  []tree.NodeID
	memo  map[recon.MappingNode]map[recon.Cost]*big.Int
	costs [3]recon.Cost
}

// NewExhaustive prepares a reference solver for prob.
func NewExhaustive(prob recon.Problem) (*Exhaustive, error) {
	tips, err := prob.Validate()
	if err != nil {
		return nil, err
	}
	return &Exhaustive{
		prob: prob,
		tips: tips,
		memo: make(map[recon.MappingNode]map[recon.Cost]*big.Int),
		costs: [3]recon.Cost{
			prob.Costs.Of(recon.Duplication),
			prob.Costs.Of(recon.Transfer),
			prob.Costs.Of(recon.Loss),
		},
	}, nil
}

// Optimum returns the minimum total cost over all reconciliations and the
// number of reconciliations attaining it.
func (x *Exhaustive) Optimum() (recon.Cost, *big.Int) {
	all := make(map[recon.Cost]*big.Int)
	root := x.prob.Parasite.Root()
	for h := range x.prob.Host.Len() {
		addInto(all, x.dist(root, tree.NodeID(h)), 0)
	}
	keys := slices.Sorted(maps.Keys(all))
	return keys[0], all[keys[0]]
}

func addInto(dst, src map[recon.Cost]*big.Int, shift recon.Cost) {
	for c, n := range src {
		k := c + shift
		if dst[k] == nil {
			dst[k] = new(big.Int)
		}
		dst[k].Add(dst[k], n)
	}
}

func convolve(a, b map[recon.Cost]*big.Int) map[recon.Cost]*big.Int {
	out := make(map[recon.Cost]*big.Int)
	for ca, na := range a {
		for cb, nb := range b {
			k := ca + cb
			if out[k] == nil {
				out[k] = new(big.Int)
			}
			out[k].Add(out[k], new(big.Int).Mul(na, nb))
		}
	}
	return out
}

// dist maps each total cost to the number of reconciliations of the
// parasite subtree of p placed on host h.
func (x *Exhaustive) dist(p, h tree.NodeID) map[recon.Cost]*big.Int {
	key := recon.MappingNode{Parasite: p, Host: h}
	if d, ok := x.memo[key]; ok {
		return d
	}
	host, para := x.prob.Host, x.prob.Parasite
	out := make(map[recon.Cost]*big.Int)
	p1, p2 := para.Children(p)
	h1, h2 := host.Children(h)
	dup, transfer, loss := x.costs[0], x.costs[1], x.costs[2]

	if p1 == tree.NoNode && x.tips[p] == h {
		out[0] = big.NewInt(1)
	}
	if h1 != tree.NoNode {
		addInto(out, x.dist(p, h1), loss)
		addInto(out, x.dist(p, h2), loss)
	}
	if p1 != tree.NoNode {
		if h1 != tree.NoNode {
			addInto(out, convolve(x.dist(p1, h1), x.dist(p2, h2)), 0)
			addInto(out, convolve(x.dist(p1, h2), x.dist(p2, h1)), 0)
		}
		addInto(out, convolve(x.dist(p1, h), x.dist(p2, h)), dup)
		for g := range host.Len() {
			gid := tree.NodeID(g)
			if host.Comparable(h, gid) {
				continue
			}
			addInto(out, convolve(x.dist(p1, h), x.dist(p2, gid)), transfer)
			addInto(out, convolve(x.dist(p1, gid), x.dist(p2, h)), transfer)
		}
	}
	x.memo[key] = out
	return out
}
