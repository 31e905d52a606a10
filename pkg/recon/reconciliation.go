package recon

import (
	"iter"
	"math/big"
	"slices"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/tree"
)

// Reconciliation is one concrete solution: a single event for every mapping
// node reachable from Root.
type Reconciliation struct {
	Root   MappingNode
	Events map[MappingNode]Event
}

// EventCounts tallies the events of a reconciliation by kind. Leaf events
// are not counted.
type EventCounts struct {
	Cospeciation int `json:"cospeciation"`
	Duplication  int `json:"duplication"`
	Transfer     int `json:"transfer"`
	Loss         int `json:"loss"`
}

// CountEvents tallies the cospeciation, duplication, transfer and loss
// events of r.
func (r *Reconciliation) CountEvents() EventCounts {
	var c EventCounts
	for _, e := range r.Events {
		switch e.Kind {
		case Cospeciation:
			c.Cospeciation++
		case Duplication:
			c.Duplication++
		case Transfer:
			c.Transfer++
		case Loss:
			c.Loss++
		}
	}
	return c
}

// Cost returns the total event cost of r under costs.
func (r *Reconciliation) Cost(costs Costs) Cost {
	var total Cost
	for _, e := range r.Events {
		total = total.Add(costs.Of(e.Kind))
	}
	return total
}

// Ordered returns the mapping nodes of r from the root down, parents before
// children, with the children of an event in slot order.
func (r *Reconciliation) Ordered() []MappingNode {
	var out []MappingNode
	stack := []MappingNode{r.Root}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, m)
		kids := r.Events[m].Kids()
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// Validate checks that r is a well-formed reconciliation of the problem:
// every event is structurally valid, every referenced child is explained,
// no node is unused and the parasite tree is covered exactly once.
func (r *Reconciliation) Validate(prob Problem) error {
	tips, err := prob.Validate()
	if err != nil {
		return err
	}
	host, para := prob.Host, prob.Parasite
	if r.Root.Parasite != para.Root() {
		return perrors.New(perrors.ErrCodeStructural, "reconciliation root is not at the parasite root")
	}
	seen := make(map[MappingNode]bool, len(r.Events))
	covered := make([]int, para.Len())
	stack := []MappingNode{r.Root}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[m] {
			return perrors.New(perrors.ErrCodeStructural, "mapping node (%s, %s) is used twice",
				para.Name(m.Parasite), host.Name(m.Host))
		}
		seen[m] = true
		e, ok := r.Events[m]
		if !ok {
			return perrors.New(perrors.ErrCodeStructural, "mapping node (%s, %s) has no event",
				para.Name(m.Parasite), host.Name(m.Host))
		}
		if err := checkShape(host, para, tips, m, e); err != nil {
			return err
		}
		if e.Kind != Loss {
			covered[m.Parasite]++
		}
		stack = append(stack, e.Kids()...)
	}
	if len(seen) != len(r.Events) {
		return perrors.New(perrors.ErrCodeStructural, "reconciliation has events unreachable from the root")
	}
	for p, n := range covered {
		if n != 1 {
			return perrors.New(perrors.ErrCodeStructural, "parasite node %s is explained %d times",
				para.Name(tree.NodeID(p)), n)
		}
	}
	return nil
}

// Reconciliation returns the reconciliation with the given rank in
// [0, TotalCount()). Ranks enumerate roots in arena order, events in stored
// order and, for two-child events, the right child fastest.
func (g *Graph) Reconciliation(rank *big.Int) (*Reconciliation, error) {
	if rank.Sign() < 0 || rank.Cmp(g.total) >= 0 {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "rank %s out of range [0, %s)", rank, g.total)
	}
	k := new(big.Int).Set(rank)
	root := -1
	for _, ri := range g.roots {
		if k.Cmp(g.count[ri]) < 0 {
			root = int(ri)
			break
		}
		k.Sub(k, g.count[ri])
	}

	type item struct {
		node int
		rank *big.Int
	}
	r := &Reconciliation{Root: g.nodes[root], Events: make(map[MappingNode]Event)}
	stack := []item{{node: root, rank: k}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		rest := it.rank
		for _, e := range g.events[it.node] {
			kids := e.Kids()
			ways := big.NewInt(1)
			idx := make([]int, len(kids))
			for a, c := range kids {
				idx[a], _ = g.Index(c)
				ways.Mul(ways, g.count[idx[a]])
			}
			if rest.Cmp(ways) >= 0 {
				rest.Sub(rest, ways)
				continue
			}
			r.Events[g.nodes[it.node]] = e
			switch len(kids) {
			case 1:
				stack = append(stack, item{node: idx[0], rank: rest})
			case 2:
				q, m := new(big.Int).QuoRem(rest, g.count[idx[1]], new(big.Int))
				stack = append(stack, item{node: idx[0], rank: q}, item{node: idx[1], rank: m})
			}
			break
		}
	}
	return r, nil
}

// All yields every reconciliation of g in rank order. The number of
// reconciliations grows exponentially with tree size, so All is meant for
// small graphs.
func (g *Graph) All() iter.Seq[*Reconciliation] {
	return func(yield func(*Reconciliation) bool) {
		one := big.NewInt(1)
		for k := new(big.Int); k.Cmp(g.total) < 0; k.Add(k, one) {
			r, err := g.Reconciliation(k)
			if err != nil || !yield(r) {
				return
			}
		}
	}
}

// Contains reports whether every event of r is stored in g and r starts at
// a root of g.
func (g *Graph) Contains(r *Reconciliation) bool {
	if !slices.Contains(g.Roots(), r.Root) {
		return false
	}
	for m, e := range r.Events {
		if !slices.Contains(g.Events(m), e) {
			return false
		}
	}
	return true
}
