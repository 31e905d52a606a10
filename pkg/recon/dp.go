package recon

import (
	"context"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mprscape/pkg/tree"
)

// Option configures [Reconcile].
type Option func(*config)

type config struct {
	workers int
	logger  *log.Logger
}

// WithWorkers bounds the number of parasite nodes filled concurrently.
// Values below one select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) config {
	c := config{}
	for _, o := range opts {
		o(&c)
	}
	if c.workers < 1 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Reconcile runs the DTL dynamic program and returns the graph of all
// maximum parsimony reconciliations.
//
// Parasite nodes of equal height are filled concurrently; a level starts
// only after every lower level is complete. ctx is checked before every
// (parasite, host) cell.
func Reconcile(ctx context.Context, prob Problem, opts ...Option) (*Graph, error) {
	tips, err := prob.Validate()
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	start := time.Now()

	d := newTable(prob, tips)
	if err := d.fill(ctx, cfg.workers); err != nil {
		return nil, err
	}

	g, err := d.graph()
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("reconciled",
		"parasite", prob.Parasite.Len(),
		"host", prob.Host.Len(),
		"cost", g.MinCost(),
		"mprs", g.TotalCount(),
		"duration", time.Since(start))
	return g, nil
}

// table holds the cost and optimal events of every (parasite, host) cell,
// indexed by p*nh+h.
type table struct {
	prob   Problem
	host   *tree.Tree
	para   *tree.Tree
	tips   []tree.NodeID
	c      fixed
	nh     int
	cost   []Cost
	events [][]Event
}

func newTable(prob Problem, tips []tree.NodeID) *table {
	n := prob.Parasite.Len() * prob.Host.Len()
	return &table{
		prob:   prob,
		host:   prob.Host,
		para:   prob.Parasite,
		tips:   tips,
		c:      prob.Costs.fixed(),
		nh:     prob.Host.Len(),
		cost:   make([]Cost, n),
		events: make([][]Event, n),
	}
}

func (d *table) at(p, h tree.NodeID) Cost { return d.cost[int(p)*d.nh+int(h)] }

func (d *table) fill(ctx context.Context, workers int) error {
	for _, level := range d.para.Levels() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, p := range level {
			g.Go(func() error { return d.fillRow(gctx, p) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// fillRow computes every host cell of parasite node p in host postorder.
func (d *table) fillRow(ctx context.Context, p tree.NodeID) error {
	p1, p2 := d.para.Children(p)
	var inc1, inc2 []Cost
	if p1 != tree.NoNode {
		inc1 = d.incomparableMin(p1)
		inc2 = d.incomparableMin(p2)
	}
	for _, h := range d.host.Postorder() {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.fillCell(p, h, p1, p2, inc1, inc2)
	}
	return nil
}

// incomparableMin returns, for every host h, the minimum cost of placing
// parasite node c on any host incomparable to h.
func (d *table) incomparableMin(c tree.NodeID) []Cost {
	post := d.host.Postorder()
	sub := make([]Cost, d.nh)
	for _, h := range post {
		best := d.at(c, h)
		if l, r := d.host.Children(h); l != tree.NoNode {
			best = min(best, sub[l], sub[r])
		}
		sub[h] = best
	}
	inc := make([]Cost, d.nh)
	inc[d.host.Root()] = Infinity
	for i := len(post) - 1; i >= 0; i-- {
		h := post[i]
		if l, r := d.host.Children(h); l != tree.NoNode {
			inc[l] = min(inc[h], sub[r])
			inc[r] = min(inc[h], sub[l])
		}
	}
	return inc
}

// option is one family of candidate explanations for a cell.
type option struct {
	cost Cost
	emit func(events []Event) []Event
}

func (d *table) fillCell(p, h, p1, p2 tree.NodeID, inc1, inc2 []Cost) {
	h1, h2 := d.host.Children(h)
	mn := func(pp, hh tree.NodeID) MappingNode { return MappingNode{Parasite: pp, Host: hh} }
	var opts []option
	add := func(cost Cost, events ...Event) {
		if cost == Infinity {
			return
		}
		opts = append(opts, option{cost: cost, emit: func(dst []Event) []Event { return append(dst, events...) }})
	}

	if p1 == tree.NoNode && d.tips[p] == h {
		add(0, NewEvent(Leaf))
	}
	if h1 != tree.NoNode {
		add(d.c.loss.Add(d.at(p, h1)), NewEvent(Loss, mn(p, h1)))
		add(d.c.loss.Add(d.at(p, h2)), NewEvent(Loss, mn(p, h2)))
	}
	if p1 != tree.NoNode {
		if h1 != tree.NoNode {
			add(d.at(p1, h1).Add(d.at(p2, h2)), NewEvent(Cospeciation, mn(p1, h1), mn(p2, h2)))
			add(d.at(p1, h2).Add(d.at(p2, h1)), NewEvent(Cospeciation, mn(p1, h2), mn(p2, h1)))
		}
		add(d.c.dup.Add(d.at(p1, h)).Add(d.at(p2, h)), NewEvent(Duplication, mn(p1, h), mn(p2, h)))

		// Left child stays, right child moves.
		if target := inc2[h]; target != Infinity {
			cost := d.c.transfer.Add(d.at(p1, h)).Add(target)
			if cost != Infinity {
				opts = append(opts, option{cost: cost, emit: func(dst []Event) []Event {
					for _, g := range d.host.Postorder() {
						if d.at(p2, g) == target && !d.host.Comparable(h, g) {
							dst = append(dst, NewEvent(Transfer, mn(p1, h), mn(p2, g)))
						}
					}
					return dst
				}})
			}
		}
		// Right child stays, left child moves.
		if target := inc1[h]; target != Infinity {
			cost := d.c.transfer.Add(target).Add(d.at(p2, h))
			if cost != Infinity {
				opts = append(opts, option{cost: cost, emit: func(dst []Event) []Event {
					for _, g := range d.host.Postorder() {
						if d.at(p1, g) == target && !d.host.Comparable(h, g) {
							dst = append(dst, NewEvent(Transfer, mn(p1, g), mn(p2, h)))
						}
					}
					return dst
				}})
			}
		}
	}

	best := Infinity
	for _, o := range opts {
		best = min(best, o.cost)
	}
	idx := int(p)*d.nh + int(h)
	d.cost[idx] = best
	if best == Infinity {
		return
	}
	var events []Event
	for _, o := range opts {
		if o.cost == best {
			events = o.emit(events)
		}
	}
	d.events[idx] = events
}

// graph keeps the cells reachable from the optimal placements of the
// parasite root.
func (d *table) graph() (*Graph, error) {
	root := d.para.Root()
	best := Infinity
	for h := range d.nh {
		best = min(best, d.at(root, tree.NodeID(h)))
	}

	var roots []MappingNode
	for _, h := range d.host.Postorder() {
		if d.at(root, h) == best {
			roots = append(roots, MappingNode{Parasite: root, Host: h})
		}
	}

	stack := slices.Clone(roots)

	events := make(map[MappingNode][]Event)
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := events[m]; seen {
			continue
		}
		evs := d.events[int(m.Parasite)*d.nh+int(m.Host)]
		events[m] = evs
		for _, e := range evs {
			for _, c := range e.Kids() {
				if _, seen := events[c]; !seen {
					stack = append(stack, c)
				}
			}
		}
	}
	return assemble(d.prob, d.tips, events, roots)
}
