package recon

import (
	"math/big"
)

// Frequencies describes how often mapping nodes and events occur among the
// reconciliations of a graph.
//
// Every reconciliation counts once. A root's share is its own completion
// count, and at a node each event's share is proportional to the product
// of its children's completion counts. Node frequency is therefore the
// fraction of reconciliations containing the node and event frequency the
// fraction choosing that event at that node.
type Frequencies struct {
	// Above counts, per arena position, the partial reconciliations that
	// reach the node from a root.
	Above []*big.Int
	// Through counts the reconciliations containing each node.
	Through []*big.Int
	// EventThrough counts the reconciliations choosing each event.
	EventThrough [][]*big.Int

	total *big.Int
	node  []float64
	event [][]float64
	g     *Graph
}

// Frequencies returns the node and event frequencies of g. The result is
// computed once and shared; it must not be modified.
func (g *Graph) Frequencies() *Frequencies {
	g.freqOnce.Do(func() { g.freq = computeFrequencies(g) })
	return g.freq
}

func computeFrequencies(g *Graph) *Frequencies {
	n := len(g.nodes)
	f := &Frequencies{
		Above:        make([]*big.Int, n),
		Through:      make([]*big.Int, n),
		EventThrough: make([][]*big.Int, n),
		total:        g.total,
		node:         make([]float64, n),
		event:        make([][]float64, n),
		g:            g,
	}
	for i := range f.Above {
		f.Above[i] = new(big.Int)
	}
	for _, r := range g.roots {
		f.Above[r].SetInt64(1)
	}

	// Parents sit after their children in the arena, so a descending pass
	// sees every node after all of its parents.
	var tmp big.Int
	for i := n - 1; i >= 0; i-- {
		above := f.Above[i]
		f.Through[i] = new(big.Int).Mul(above, g.count[i])
		evs := g.events[i]
		f.EventThrough[i] = make([]*big.Int, len(evs))
		for k, e := range evs {
			kids := e.Kids()
			et := new(big.Int).Set(above)
			for _, c := range kids {
				j, _ := g.Index(c)
				et.Mul(et, g.count[j])
			}
			f.EventThrough[i][k] = et
			for a, c := range kids {
				j, _ := g.Index(c)
				tmp.Set(above)
				for b, o := range kids {
					if b != a {
						jb, _ := g.Index(o)
						tmp.Mul(&tmp, g.count[jb])
					}
				}
				f.Above[j].Add(f.Above[j], &tmp)
			}
		}
	}

	for i := range n {
		f.node[i] = ratio(f.Through[i], f.total)
		f.event[i] = make([]float64, len(f.EventThrough[i]))
		for k, et := range f.EventThrough[i] {
			f.event[i][k] = ratio(et, f.total)
		}
	}
	return f
}

func ratio(a, b *big.Int) float64 {
	if b.Sign() == 0 {
		return 0
	}
	r, _ := new(big.Rat).SetFrac(a, b).Float64()
	return r
}

// Node returns the fraction of reconciliations containing m.
func (f *Frequencies) Node(m MappingNode) float64 {
	i, ok := f.g.Index(m)
	if !ok {
		return 0
	}
	return f.node[i]
}

// NodeAt returns the frequency of the node at arena position i.
func (f *Frequencies) NodeAt(i int) float64 { return f.node[i] }

// Event returns the fraction of reconciliations choosing the k-th event of m.
func (f *Frequencies) Event(m MappingNode, k int) float64 {
	i, ok := f.g.Index(m)
	if !ok || k < 0 || k >= len(f.event[i]) {
		return 0
	}
	return f.event[i][k]
}

// EventAt returns the frequency of the k-th event at arena position i.
func (f *Frequencies) EventAt(i, k int) float64 { return f.event[i][k] }
