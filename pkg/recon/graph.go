package recon

import (
	"cmp"
	"context"
	"math/big"
	"slices"
	"sync"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/tree"
)

// Graph is the compact representation of a set of reconciliations: every
// mapping node reachable from a root together with all of its optimal
// events.
//
// Nodes are stored in an arena ordered by (parasite postorder, host
// postorder), so every event's children precede the node that owns it.
// A Graph is immutable once built and safe for concurrent readers.
type Graph struct {
	prob Problem
	tips []tree.NodeID
	nh   int
	slot []int32

	nodes  []MappingNode
	events [][]Event
	cost   []Cost
	count  []*big.Int
	roots  []int32
	total  *big.Int
	best   Cost

	freqOnce sync.Once
	freq     *Frequencies
}

// FromEvents builds a graph from an explicit event table, as read back from
// an export. The roots are the nodes no event references, together with
// the placements of the parasite root that share their cost; the latter
// only arise with a zero loss cost, as the child of a loss from another
// root. The table must describe optimal explanations only: all events of a
// node must have equal cost and every root must have the same cost.
func FromEvents(prob Problem, events map[MappingNode][]Event) (*Graph, error) {
	tips, err := prob.Validate()
	if err != nil {
		return nil, err
	}
	return assemble(prob, tips, events, nil)
}

// assemble builds a graph from an event table. When roots is nil they are
// derived as FromEvents describes.
func assemble(prob Problem, tips []tree.NodeID, events map[MappingNode][]Event, roots []MappingNode) (*Graph, error) {
	host, para := prob.Host, prob.Parasite
	if len(events) == 0 {
		return nil, perrors.New(perrors.ErrCodeStructural, "reconciliation graph has no nodes")
	}

	nodes := make([]MappingNode, 0, len(events))
	for m := range events {
		if m.Parasite < 0 || int(m.Parasite) >= para.Len() || m.Host < 0 || int(m.Host) >= host.Len() {
			return nil, perrors.New(perrors.ErrCodeStructural, "mapping node %v is outside the trees", m)
		}
		nodes = append(nodes, m)
	}
	slices.SortFunc(nodes, func(a, b MappingNode) int {
		return cmp.Or(
			cmp.Compare(para.PostIndex(a.Parasite), para.PostIndex(b.Parasite)),
			cmp.Compare(host.PostIndex(a.Host), host.PostIndex(b.Host)),
		)
	})

	g := &Graph{
		prob:   prob,
		tips:   tips,
		nh:     host.Len(),
		slot:   make([]int32, para.Len()*host.Len()),
		nodes:  nodes,
		events: make([][]Event, len(nodes)),
		cost:   make([]Cost, len(nodes)),
		count:  make([]*big.Int, len(nodes)),
		total:  new(big.Int),
	}
	for i := range g.slot {
		g.slot[i] = -1
	}
	for i, m := range nodes {
		g.slot[g.slotOf(m)] = int32(i)
	}

	c := prob.Costs.fixed()
	referenced := make([]bool, len(nodes))
	for i, m := range nodes {
		evs := events[m]
		if len(evs) == 0 {
			return nil, perrors.New(perrors.ErrCodeStructural, "mapping node (%s, %s) has no events",
				para.Name(m.Parasite), host.Name(m.Host))
		}
		g.events[i] = slices.Clone(evs)
		nodeCost := Infinity
		n := new(big.Int)
		for k, e := range evs {
			if err := checkShape(host, para, tips, m, e); err != nil {
				return nil, err
			}
			ec := c.of(e.Kind)
			ways := big.NewInt(1)
			for _, child := range e.Kids() {
				j, ok := g.Index(child)
				if !ok {
					return nil, perrors.New(perrors.ErrCodeStructural, "event at (%s, %s) references missing node (%s, %s)",
						para.Name(m.Parasite), host.Name(m.Host), para.Name(child.Parasite), host.Name(child.Host))
				}
				if j >= i {
					return nil, perrors.New(perrors.ErrCodeStructural, "event at (%s, %s) does not descend",
						para.Name(m.Parasite), host.Name(m.Host))
				}
				referenced[j] = true
				ec = ec.Add(g.cost[j])
				ways.Mul(ways, g.count[j])
			}
			if k == 0 {
				nodeCost = ec
			} else if ec != nodeCost {
				return nil, perrors.New(perrors.ErrCodeStructural, "events at (%s, %s) have unequal costs %s and %s",
					para.Name(m.Parasite), host.Name(m.Host), nodeCost, ec)
			}
			n.Add(n, ways)
		}
		g.cost[i] = nodeCost
		g.count[i] = n
	}

	if roots == nil {
		// Unreferenced nodes start every reconciliation. A zero loss cost
		// lets another root lose into a placement of equal cost, which is a
		// root of its own.
		low := Infinity
		for i, m := range nodes {
			if !referenced[i] {
				roots = append(roots, m)
				low = g.cost[i]
			}
		}
		for i, m := range nodes {
			if referenced[i] && m.Parasite == para.Root() && g.cost[i] == low {
				roots = append(roots, m)
			}
		}
	}

	isRoot := make([]bool, len(nodes))
	for _, r := range roots {
		i, ok := g.Index(r)
		if !ok {
			return nil, perrors.New(perrors.ErrCodeStructural, "root %v is not a node of the graph", r)
		}
		if r.Parasite != para.Root() {
			return nil, perrors.New(perrors.ErrCodeStructural, "root (%s, %s) is not at the parasite root",
				para.Name(r.Parasite), host.Name(r.Host))
		}
		isRoot[i] = true
	}
	g.best = Infinity
	for i, m := range nodes {
		if !isRoot[i] {
			if !referenced[i] {
				return nil, perrors.New(perrors.ErrCodeStructural, "node (%s, %s) is neither a root nor referenced",
					para.Name(m.Parasite), host.Name(m.Host))
			}
			continue
		}
		if g.best != Infinity && g.cost[i] != g.best {
			return nil, perrors.New(perrors.ErrCodeStructural, "roots have unequal costs %s and %s", g.best, g.cost[i])
		}
		g.best = g.cost[i]
		g.roots = append(g.roots, int32(i))
		g.total.Add(g.total, g.count[i])
	}
	if len(g.roots) == 0 {
		return nil, perrors.New(perrors.ErrCodeStructural, "reconciliation graph has no root")
	}
	return g, nil
}

func (g *Graph) slotOf(m MappingNode) int { return int(m.Parasite)*g.nh + int(m.Host) }

// Problem returns the problem the graph solves.
func (g *Graph) Problem() Problem { return g.prob }

// Host returns the host tree.
func (g *Graph) Host() *tree.Tree { return g.prob.Host }

// Parasite returns the parasite tree.
func (g *Graph) Parasite() *tree.Tree { return g.prob.Parasite }

// Costs returns the event costs the graph was computed with.
func (g *Graph) Costs() Costs { return g.prob.Costs }

// Len returns the number of mapping nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EventCount returns the number of (mapping node, event) pairs.
func (g *Graph) EventCount() int {
	n := 0
	for _, evs := range g.events {
		n += len(evs)
	}
	return n
}

// Index returns the arena position of m.
func (g *Graph) Index(m MappingNode) (int, bool) {
	if m.Parasite < 0 || m.Host < 0 || int(m.Parasite) >= g.prob.Parasite.Len() || int(m.Host) >= g.nh {
		return 0, false
	}
	i := g.slot[g.slotOf(m)]
	return int(i), i >= 0
}

// Has reports whether m is a node of the graph.
func (g *Graph) Has(m MappingNode) bool {
	_, ok := g.Index(m)
	return ok
}

// NodeAt returns the mapping node at arena position i. Positions run from
// descendants to ancestors.
func (g *Graph) NodeAt(i int) MappingNode { return g.nodes[i] }

// Nodes returns all mapping nodes, children before parents. The slice must
// not be modified.
func (g *Graph) Nodes() []MappingNode { return g.nodes }

// Events returns the optimal events of m. The slice must not be modified.
func (g *Graph) Events(m MappingNode) []Event {
	i, ok := g.Index(m)
	if !ok {
		return nil
	}
	return g.events[i]
}

// EventsAt returns the events of the node at arena position i.
func (g *Graph) EventsAt(i int) []Event { return g.events[i] }

// NodeCost returns the minimum cost of explaining the parasite subtree of
// m from host m.Host, or Infinity if m is not in the graph.
func (g *Graph) NodeCost(m MappingNode) Cost {
	i, ok := g.Index(m)
	if !ok {
		return Infinity
	}
	return g.cost[i]
}

// EventCost returns the cost of e at m: its own event cost plus the costs
// of its children. For every stored event this equals NodeCost(m).
func (g *Graph) EventCost(m MappingNode, e Event) Cost {
	c := g.prob.Costs.Of(e.Kind)
	for _, child := range e.Kids() {
		c = c.Add(g.NodeCost(child))
	}
	return c
}

// MinCost returns the cost of every reconciliation in the graph.
func (g *Graph) MinCost() Cost { return g.best }

// Count returns the number of ways to complete the subtree below m, or
// zero when m is not in the graph.
func (g *Graph) Count(m MappingNode) *big.Int {
	i, ok := g.Index(m)
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(g.count[i])
}

// CountAt returns the completion count of the node at arena position i.
// The value must not be modified.
func (g *Graph) CountAt(i int) *big.Int { return g.count[i] }

// TotalCount returns the number of reconciliations in the graph.
func (g *Graph) TotalCount() *big.Int { return new(big.Int).Set(g.total) }

// Roots returns the placements of the parasite root every reconciliation
// starts from, in arena order. With a zero loss cost a root may also be the
// child of a loss from another root.
func (g *Graph) Roots() []MappingNode {
	out := make([]MappingNode, len(g.roots))
	for i, r := range g.roots {
		out[i] = g.nodes[r]
	}
	return out
}

// RootIndexes returns the arena positions of the roots.
func (g *Graph) RootIndexes() []int {
	out := make([]int, len(g.roots))
	for i, r := range g.roots {
		out[i] = int(r)
	}
	return out
}

// EventTable returns a copy of the graph's events keyed by mapping node.
func (g *Graph) EventTable() map[MappingNode][]Event {
	out := make(map[MappingNode][]Event, len(g.nodes))
	for i, m := range g.nodes {
		out[m] = slices.Clone(g.events[i])
	}
	return out
}

// Restrict returns the sub-graph of reconciliations that start at one of
// roots and only use events accepted by allow. Nodes left without an
// allowed event are removed together with every event that needs them.
func (g *Graph) Restrict(roots []MappingNode, allow func(m MappingNode, e Event) bool) (*Graph, error) {
	reach := make([]bool, len(g.nodes))
	var stack []int
	for _, r := range roots {
		if i, ok := g.Index(r); ok && !reach[i] {
			reach[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.events[i] {
			if allow != nil && !allow(g.nodes[i], e) {
				continue
			}
			for _, c := range e.Kids() {
				j, _ := g.Index(c)
				if !reach[j] {
					reach[j] = true
					stack = append(stack, j)
				}
			}
		}
	}

	// Children precede parents, so one ascending pass settles liveness.
	alive := make([]bool, len(g.nodes))
	kept := make([][]Event, len(g.nodes))
	for i := range g.nodes {
		if !reach[i] {
			continue
		}
		for _, e := range g.events[i] {
			if allow != nil && !allow(g.nodes[i], e) {
				continue
			}
			ok := true
			for _, c := range e.Kids() {
				j, _ := g.Index(c)
				ok = ok && alive[j]
			}
			if ok {
				kept[i] = append(kept[i], e)
			}
		}
		alive[i] = len(kept[i]) > 0
	}

	events := make(map[MappingNode][]Event)
	stack = stack[:0]
	for _, r := range roots {
		if i, ok := g.Index(r); ok && alive[i] {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		m := g.nodes[i]
		if _, seen := events[m]; seen {
			continue
		}
		events[m] = kept[i]
		for _, e := range kept[i] {
			for _, c := range e.Kids() {
				if _, seen := events[c]; !seen {
					j, _ := g.Index(c)
					stack = append(stack, j)
				}
			}
		}
	}
	if len(events) == 0 {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "restriction leaves no reconciliation")
	}
	var starts []MappingNode
	for _, r := range roots {
		if i, ok := g.Index(r); ok && alive[i] && !slices.Contains(starts, r) {
			starts = append(starts, r)
		}
	}
	return assemble(g.prob, g.tips, events, starts)
}

// Verify recomputes the dynamic program and checks that every node's cost
// equals the true minimum for its cell and that the roots attain the global
// minimum. It is meant for graphs obtained from [FromEvents].
func (g *Graph) Verify(ctx context.Context) error {
	d := newTable(g.prob, g.tips)
	if err := d.fill(ctx, 1); err != nil {
		return err
	}
	para, host := g.prob.Parasite, g.prob.Host
	for i, m := range g.nodes {
		if want := d.at(m.Parasite, m.Host); g.cost[i] != want {
			return perrors.New(perrors.ErrCodeStructural, "node (%s, %s) costs %s, minimum is %s",
				para.Name(m.Parasite), host.Name(m.Host), g.cost[i], want)
		}
	}
	best := Infinity
	for h := range g.nh {
		best = min(best, d.at(para.Root(), tree.NodeID(h)))
	}
	if g.best != best {
		return perrors.New(perrors.ErrCodeStructural, "graph cost %s, minimum is %s", g.best, best)
	}
	return nil
}
