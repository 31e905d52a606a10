// Package costregion partitions a rectangle of (transfer, duplication)
// cost space into the regions where one event-count vector is optimal.
//
// For fixed trees, tip mapping and loss cost, the optimal total cost as a
// function of the transfer and duplication costs is the lower envelope of
// the linear functions d·D + t·T + l·L over all achievable event-count
// vectors (D, T, L). [Compute] builds that envelope incrementally: it keeps
// a set of known vectors, derives the region of each vector by clipping
// the rectangle with half-planes, and queries every region vertex with the
// reconciliation dynamic program. A query that beats the current envelope
// contributes a new vector. When every vertex is tight the envelope is
// exact, since the true optimum is concave and agrees with the linear
// envelope at all vertices of each region.
package costregion

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"math/big"
	"slices"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
)

// Default rectangle bounds.
const (
	DefaultMin = 0.5
	DefaultMax = 10.0
)

// MaxVectors bounds the number of envelope vectors before Compute gives up.
const MaxVectors = 10_000

// Rect is the cost rectangle to partition.
type Rect struct {
	TransferMin    float64 `json:"transfer_min" toml:"transfer_min" yaml:"transfer_min"`
	TransferMax    float64 `json:"transfer_max" toml:"transfer_max" yaml:"transfer_max"`
	DuplicationMin float64 `json:"duplication_min" toml:"duplication_min" yaml:"duplication_min"`
	DuplicationMax float64 `json:"duplication_max" toml:"duplication_max" yaml:"duplication_max"`
}

// DefaultRect returns [0.5, 10] × [0.5, 10].
func DefaultRect() Rect {
	return Rect{TransferMin: DefaultMin, TransferMax: DefaultMax, DuplicationMin: DefaultMin, DuplicationMax: DefaultMax}
}

// Validate reports an INVALID_COST error for bounds that are not valid
// event costs and an INVALID_INPUT error for empty ranges.
func (r Rect) Validate() error {
	for _, c := range []recon.Costs{
		{Duplication: r.DuplicationMin, Transfer: r.TransferMin},
		{Duplication: r.DuplicationMax, Transfer: r.TransferMax},
	} {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if r.TransferMin >= r.TransferMax || r.DuplicationMin >= r.DuplicationMax {
		return perrors.New(perrors.ErrCodeInvalidInput, "cost rectangle [%v, %v] × [%v, %v] is empty",
			r.TransferMin, r.TransferMax, r.DuplicationMin, r.DuplicationMax)
	}
	return nil
}

func (r Rect) corners() []Point {
	return []Point{
		{r.TransferMin, r.DuplicationMin},
		{r.TransferMax, r.DuplicationMin},
		{r.TransferMax, r.DuplicationMax},
		{r.TransferMin, r.DuplicationMax},
	}
}

// CostVector is an achievable combination of event counts: the duplication,
// transfer and loss counts of one optimal reconciliation. It is stored as
// counts rather than costs because it defines a plane over the rectangle,
// total(t, d) = d*Duplications + t*Transfers + loss*Losses. A vertex of the
// lower envelope in (transfer cost, duplication cost, loss cost, total
// cost) form is recovered from a point p of the region's polygon as
// (p.Transfer, p.Duplication, loss, v.Cost(p, loss)); [Region.Cost] is that
// total at the centroid.
type CostVector struct {
	Duplications int `json:"duplications"`
	Transfers    int `json:"transfers"`
	Losses       int `json:"losses"`
}

// Cost returns the total cost of the vector at point p with the given loss
// cost.
func (v CostVector) Cost(p Point, loss float64) float64 {
	return p.Duplication*float64(v.Duplications) + p.Transfer*float64(v.Transfers) + loss*float64(v.Losses)
}

func (v CostVector) String() string {
	return fmt.Sprintf("(D=%d, T=%d, L=%d)", v.Duplications, v.Transfers, v.Losses)
}

func compareVectors(a, b CostVector) int {
	return cmp.Or(
		cmp.Compare(a.Duplications, b.Duplications),
		cmp.Compare(a.Transfers, b.Transfers),
		cmp.Compare(a.Losses, b.Losses),
	)
}

// Region is the part of the rectangle where Vector is optimal.
type Region struct {
	Vector   CostVector `json:"vector"`
	Polygon  []Point    `json:"polygon"`
	Area     float64    `json:"area"`
	Centroid Point      `json:"centroid"`
	// Cost is the optimal total cost at the centroid.
	Cost float64 `json:"cost"`
}

// Compute partitions rect for prob's trees and tip mapping, holding the
// loss cost at prob.Costs.Loss. Regions of zero area are dropped; the rest
// are returned ordered by vector. opts are passed to every reconciliation
// run.
func Compute(ctx context.Context, prob recon.Problem, rect Rect, opts ...recon.Option) ([]Region, error) {
	if err := rect.Validate(); err != nil {
		return nil, err
	}
	if _, err := prob.Validate(); err != nil {
		return nil, err
	}
	e := &envelope{ctx: ctx, prob: prob, rect: rect, opts: opts, visited: make(map[[2]int64]bool)}

	for _, c := range rect.corners() {
		if _, err := e.query(c); err != nil {
			return nil, err
		}
	}
	for {
		added := false
		for _, r := range e.regions() {
			for _, p := range r.Polygon {
				ok, err := e.query(p)
				if err != nil {
					return nil, err
				}
				added = added || ok
			}
		}
		if !added {
			break
		}
		if len(e.vectors) > MaxVectors {
			return nil, perrors.New(perrors.ErrCodeInternal, "cost envelope exceeds %d vectors", MaxVectors)
		}
	}

	regions := e.regions()
	for i := range regions {
		regions[i].Cost = regions[i].Vector.Cost(regions[i].Centroid, prob.Costs.Loss)
	}
	slices.SortFunc(regions, func(a, b Region) int { return compareVectors(a.Vector, b.Vector) })
	return regions, nil
}

type envelope struct {
	ctx     context.Context
	prob    recon.Problem
	rect    Rect
	opts    []recon.Option
	vectors []CostVector
	visited map[[2]int64]bool
}

func key(p Point) [2]int64 {
	return [2]int64{int64(math.Round(p.Transfer * 1e8)), int64(math.Round(p.Duplication * 1e8))}
}

// query evaluates the optimum at p and adds its vector when it improves on
// the current envelope. Each point is queried at most once.
func (e *envelope) query(p Point) (bool, error) {
	k := key(p)
	if e.visited[k] {
		return false, nil
	}
	e.visited[k] = true

	v, err := e.optimal(p)
	if err != nil {
		return false, err
	}
	if slices.Contains(e.vectors, v) {
		return false, nil
	}
	if len(e.vectors) == 0 {
		e.vectors = append(e.vectors, v)
		return true, nil
	}
	best := e.lowest(p)
	if got := v.Cost(p, e.prob.Costs.Loss); got < best-eps*max(1, math.Abs(best)) {
		e.vectors = append(e.vectors, v)
		return true, nil
	}
	return false, nil
}

// lowest returns the envelope's value at p, or +Inf when it is empty.
func (e *envelope) lowest(p Point) float64 {
	best := math.Inf(1)
	for _, w := range e.vectors {
		best = min(best, w.Cost(p, e.prob.Costs.Loss))
	}
	return best
}

// optimal runs the dynamic program at p and returns the event counts of
// its first optimal reconciliation.
func (e *envelope) optimal(p Point) (CostVector, error) {
	prob := e.prob
	prob.Costs.Transfer = p.Transfer
	prob.Costs.Duplication = p.Duplication
	g, err := recon.Reconcile(e.ctx, prob, e.opts...)
	if err != nil {
		return CostVector{}, err
	}
	r, err := g.Reconciliation(new(big.Int))
	if err != nil {
		return CostVector{}, err
	}
	c := r.CountEvents()
	return CostVector{Duplications: c.Duplication, Transfers: c.Transfer, Losses: c.Loss}, nil
}

// regions clips the rectangle once per known vector; vectors whose region
// has no area are skipped.
func (e *envelope) regions() []Region {
	loss := e.prob.Costs.Loss
	var out []Region
	for i, v := range e.vectors {
		poly := e.rect.corners()
		for j, w := range e.vectors {
			if i == j {
				continue
			}
			// cost_v - cost_w <= 0
			h := halfPlane{
				a: float64(v.Transfers - w.Transfers),
				b: float64(v.Duplications - w.Duplications),
				c: loss * float64(v.Losses-w.Losses),
			}
			poly = clip(poly, h)
			if len(poly) < 3 {
				break
			}
		}
		if len(poly) < 3 {
			continue
		}
		a := area(poly)
		if a <= eps {
			continue
		}
		out = append(out, Region{Vector: v, Polygon: poly, Area: a, Centroid: centroid(poly)})
	}
	return out
}
