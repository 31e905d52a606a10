package diameter

import (
	"context"

	"github.com/matzehuels/mprscape/pkg/recon"
)

type pairKey struct{ a, b int32 }

// exit is the end of a loss chain: the event at position event of node,
// reached after losses loss events.
type exit struct {
	node   int
	event  int
	losses int
}

// engine evaluates pair distributions between the nodes of two graphs over
// the same trees. It is not safe for concurrent use.
type engine struct {
	g1, g2 *recon.Graph
	exits1 [][]exit
	exits2 [][]exit
	memo   map[pairKey]dist
}

func newEngine(g1, g2 *recon.Graph) *engine {
	en := &engine{g1: g1, g2: g2, memo: make(map[pairKey]dist)}
	en.exits1 = exitProfiles(g1)
	if g1 == g2 {
		en.exits2 = en.exits1
	} else {
		en.exits2 = exitProfiles(g2)
	}
	return en
}

// exitProfiles lists, for every node, the non-loss events reachable through
// a chain of loss events, including the node's own non-loss events.
func exitProfiles(g *recon.Graph) [][]exit {
	out := make([][]exit, g.Len())
	for i := range g.Len() {
		for k, e := range g.EventsAt(i) {
			if e.Kind != recon.Loss {
				out[i] = append(out[i], exit{node: i, event: k})
				continue
			}
			j, _ := g.Index(e.Children[0])
			for _, x := range out[j] {
				out[i] = append(out[i], exit{node: x.node, event: x.event, losses: x.losses + 1})
			}
		}
	}
	return out
}

func (en *engine) i1(m recon.MappingNode) int32 {
	i, _ := en.g1.Index(m)
	return int32(i)
}

func (en *engine) i2(m recon.MappingNode) int32 {
	i, _ := en.g2.Index(m)
	return int32(i)
}

// cross pairs the children of two non-loss events on the same parasite node.
func (en *engine) cross(e1, e2 recon.Event) []pairKey {
	if e1.Kind == recon.Leaf {
		return nil
	}
	return []pairKey{
		{en.i1(e1.Children[0]), en.i2(e2.Children[0])},
		{en.i1(e1.Children[1]), en.i2(e2.Children[1])},
	}
}

// same pairs each child of e with itself.
func (en *engine) same(e recon.Event) []pairKey {
	kids := e.Kids()
	out := make([]pairKey, len(kids))
	for i, c := range kids {
		out[i] = pairKey{en.i1(c), en.i2(c)}
	}
	return out
}

// terms enumerates the decomposition of the distribution of pair k: the
// distribution is the sum over emitted terms of the product of the
// distributions of deps, shifted by shift.
//
// Both nodes sit on the same parasite node. When their hosts differ, the
// higher one is advanced along its loss chain; every event above the lower
// host belongs to one reconciliation only and adds one to the distance.
func (en *engine) terms(k pairKey, emit func(shift int, deps []pairKey)) {
	x, y := int(k.a), int(k.b)
	u, v := en.g1.NodeAt(x), en.g2.NodeAt(y)
	host := en.g1.Host()
	ev1, ev2 := en.g1.EventsAt(x), en.g2.EventsAt(y)

	switch {
	case u.Host == v.Host:
		for _, e1 := range ev1 {
			for _, e2 := range ev2 {
				switch {
				case e1 == e2:
					emit(0, en.same(e1))
				case e1.Kind == recon.Loss && e2.Kind == recon.Loss:
					emit(2, []pairKey{{en.i1(e1.Children[0]), en.i2(e2.Children[0])}})
				case e1.Kind == recon.Loss:
					for _, ex := range en.exits1[en.i1(e1.Children[0])] {
						emit(3+ex.losses, en.cross(en.g1.EventsAt(ex.node)[ex.event], e2))
					}
				case e2.Kind == recon.Loss:
					for _, ex := range en.exits2[en.i2(e2.Children[0])] {
						emit(3+ex.losses, en.cross(e1, en.g2.EventsAt(ex.node)[ex.event]))
					}
				default:
					emit(2, en.cross(e1, e2))
				}
			}
		}

	case host.IsAncestor(u.Host, v.Host):
		for _, e1 := range ev1 {
			if e1.Kind == recon.Loss {
				emit(1, []pairKey{{en.i1(e1.Children[0]), k.b}})
				continue
			}
			for _, ex := range en.exits2[y] {
				emit(2+ex.losses, en.cross(e1, en.g2.EventsAt(ex.node)[ex.event]))
			}
		}

	case host.IsAncestor(v.Host, u.Host):
		for _, e2 := range ev2 {
			if e2.Kind == recon.Loss {
				emit(1, []pairKey{{k.a, en.i2(e2.Children[0])}})
				continue
			}
			for _, ex := range en.exits1[x] {
				emit(2+ex.losses, en.cross(en.g1.EventsAt(ex.node)[ex.event], e2))
			}
		}

	default:
		for _, ex1 := range en.exits1[x] {
			e1 := en.g1.EventsAt(ex1.node)[ex1.event]
			for _, ex2 := range en.exits2[y] {
				e2 := en.g2.EventsAt(ex2.node)[ex2.event]
				emit(ex1.losses+ex2.losses+2, en.cross(e1, e2))
			}
		}
	}
}

// pair returns the distance distribution over all pairs of subtree
// completions below g1 node x and g2 node y. Evaluation uses an explicit
// stack; ctx is checked once per evaluated pair.
func (en *engine) pair(ctx context.Context, x, y int) (dist, error) {
	root := pairKey{int32(x), int32(y)}
	if d, ok := en.memo[root]; ok {
		return d, nil
	}
	stack := []pairKey{root}
	var missing []pairKey
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		if _, ok := en.memo[k]; ok {
			stack = stack[:len(stack)-1]
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		missing = missing[:0]
		en.terms(k, func(_ int, deps []pairKey) {
			for _, d := range deps {
				if _, ok := en.memo[d]; !ok {
					missing = append(missing, d)
				}
			}
		})
		if len(missing) > 0 {
			stack = append(stack, missing...)
			continue
		}

		var acc accumulator
		en.terms(k, func(shift int, deps []pairKey) {
			prod := unit
			for _, d := range deps {
				prod = mul(prod, en.memo[d])
			}
			acc.add(prod, shift)
		})
		en.memo[k] = acc.result()
		stack = stack[:len(stack)-1]
	}
	return en.memo[root], nil
}
