// Package diameter measures the diversity of a set of reconciliations.
//
// The distance between two reconciliations is the number of (mapping node,
// event) pairs that occur in exactly one of them. [Compute] returns the
// distribution of this distance over every ordered pair drawn from two
// reconciliation graphs without enumerating the reconciliations: a dynamic
// program over pairs of mapping nodes on the same parasite node convolves
// the distributions of the children.
//
// When both graphs are the same, every ordered pair is counted including
// the pairs of a reconciliation with itself, so the counts sum to n² for a
// graph with n reconciliations.
package diameter

import (
	"context"
	"maps"
	"slices"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/tree"
)

// Compute returns the histogram of distances over all ordered pairs
// (r1, r2) with r1 from g1 and r2 from g2. Both graphs must be built on
// the same host and parasite trees.
func Compute(ctx context.Context, g1, g2 *recon.Graph) (*Histogram, error) {
	if !sameTree(g1.Host(), g2.Host()) || !sameTree(g1.Parasite(), g2.Parasite()) {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "graphs are built on different trees")
	}
	en := newEngine(g1, g2)
	var acc accumulator
	for _, r1 := range g1.RootIndexes() {
		for _, r2 := range g2.RootIndexes() {
			d, err := en.pair(ctx, r1, r2)
			if err != nil {
				return nil, err
			}
			acc.add(d, 0)
		}
	}
	return fromDist(acc.result()), nil
}

// Self returns the histogram of g against itself.
func Self(ctx context.Context, g *recon.Graph) (*Histogram, error) {
	return Compute(ctx, g, g)
}

// Distance returns the number of (mapping node, event) pairs present in
// exactly one of a and b.
func Distance(a, b *recon.Reconciliation) int {
	d := 0
	for m, e := range a.Events {
		if o, ok := b.Events[m]; !ok || o != e {
			d++
		}
	}
	for m, e := range b.Events {
		if o, ok := a.Events[m]; !ok || o != e {
			d++
		}
	}
	return d
}

func sameTree(a, b *tree.Tree) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() || a.Root() != b.Root() {
		return false
	}
	return slices.Equal(a.Names(), b.Names()) && maps.Equal(a.ChildMap(), b.ChildMap())
}
