package recon

import (
	"math/big"
	"math/rand/v2"
)

// Sample draws one reconciliation uniformly at random. The root is chosen
// with probability proportional to its completion count and, at every
// visited node, an event with probability proportional to its event
// frequency.
func (g *Graph) Sample(rng *rand.Rand) *Reconciliation {
	f := g.Frequencies()
	return g.walk(rng, g.roots, func(i, k int) float64 { return f.EventAt(i, k) }, g.rootShare)
}

// rootShare is the fraction of reconciliations that start at arena
// position i. It differs from the node frequency when a zero-cost loss
// leads from one root into another.
func (g *Graph) rootShare(i int) float64 { return ratio(g.count[i], g.total) }

// walk builds a reconciliation from roots, picking among candidate roots
// and events by the given weights. Events with zero weight are never
// chosen unless every alternative has zero weight.
func (g *Graph) walk(rng *rand.Rand, roots []int32, eventWeight func(i, k int) float64, rootWeight func(i int) float64) *Reconciliation {
	rootIdx := make([]int, len(roots))
	rw := make([]float64, len(roots))
	for a, r := range roots {
		rootIdx[a] = int(r)
		rw[a] = rootWeight(int(r))
	}
	root := rootIdx[pick(rng, rw)]

	r := &Reconciliation{Root: g.nodes[root], Events: make(map[MappingNode]Event)}
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		evs := g.events[i]
		w := make([]float64, len(evs))
		for k := range evs {
			w[k] = eventWeight(i, k)
		}
		e := evs[pick(rng, w)]
		r.Events[g.nodes[i]] = e
		for _, c := range e.Kids() {
			j, _ := g.Index(c)
			stack = append(stack, j)
		}
	}
	return r
}

// pick returns an index with probability proportional to w.
func pick(rng *rand.Rand, w []float64) int {
	var sum float64
	for _, x := range w {
		sum += x
	}
	if sum <= 0 {
		return rng.IntN(len(w))
	}
	x := rng.Float64() * sum
	for i, v := range w {
		if x < v {
			return i
		}
		x -= v
	}
	// Rounding can leave x just above the last weight.
	for i := len(w) - 1; i >= 0; i-- {
		if w[i] > 0 {
			return i
		}
	}
	return len(w) - 1
}

// MedianGraph returns the sub-graph of symmetric median reconciliations:
// those maximizing the sum over their events of (event frequency - 1/2).
// Scores are compared exactly using reconciliation counts.
func (g *Graph) MedianGraph() (*Graph, error) {
	f := g.Frequencies()
	n := len(g.nodes)

	// score(e) = 2*EventThrough(e) - N is the event's (frequency - 1/2)
	// scaled by 2N, so sums compare exactly.
	best := make([]*big.Int, n)
	keep := make([][]bool, n)
	for i := range n {
		evs := g.events[i]
		scores := make([]*big.Int, len(evs))
		for k, e := range evs {
			sc := new(big.Int).Lsh(f.EventThrough[i][k], 1)
			sc.Sub(sc, g.total)
			for _, c := range e.Kids() {
				j, _ := g.Index(c)
				sc.Add(sc, best[j])
			}
			scores[k] = sc
			if best[i] == nil || sc.Cmp(best[i]) > 0 {
				best[i] = sc
			}
		}
		keep[i] = make([]bool, len(evs))
		for k := range evs {
			keep[i][k] = scores[k].Cmp(best[i]) == 0
		}
	}

	var top *big.Int
	for _, r := range g.roots {
		if top == nil || best[r].Cmp(top) > 0 {
			top = best[r]
		}
	}
	var roots []MappingNode
	for _, r := range g.roots {
		if best[r].Cmp(top) == 0 {
			roots = append(roots, g.nodes[r])
		}
	}

	return g.Restrict(roots, func(m MappingNode, e Event) bool {
		i, _ := g.Index(m)
		for k, x := range g.events[i] {
			if x == e {
				return keep[i][k]
			}
		}
		return false
	})
}

// Median returns one symmetric median reconciliation. Among the median
// reconciliations, roots and events are drawn in proportion to their
// frequency in the full graph. The result always has cost MinCost().
func (g *Graph) Median(rng *rand.Rand) (*Reconciliation, error) {
	med, err := g.MedianGraph()
	if err != nil {
		return nil, err
	}
	f := g.Frequencies()
	return med.walk(rng, med.roots,
		func(i, k int) float64 {
			j, _ := g.Index(med.nodes[i])
			for kk, e := range g.events[j] {
				if e == med.events[i][k] {
					return f.EventAt(j, kk)
				}
			}
			return 0
		},
		func(i int) float64 {
			j, _ := g.Index(med.nodes[i])
			return g.rootShare(j)
		},
	), nil
}
