package diameter

import "math/big"

// dist is a distance distribution: dist[d] counts pairs at distance d.
// Values are never mutated once a dist is stored.
type dist []*big.Int

var unit = dist{big.NewInt(1)}

// mul convolves two distributions.
func mul(a, b dist) dist {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make(dist, len(a)+len(b)-1)
	for i := range out {
		out[i] = new(big.Int)
	}
	var t big.Int
	for i, x := range a {
		if x.Sign() == 0 {
			continue
		}
		for j, y := range b {
			if y.Sign() == 0 {
				continue
			}
			out[i+j].Add(out[i+j], t.Mul(x, y))
		}
	}
	return out
}

// accumulator sums shifted distributions.
type accumulator struct{ d dist }

func (a *accumulator) add(d dist, shift int) {
	for len(a.d) < len(d)+shift {
		a.d = append(a.d, new(big.Int))
	}
	for i, x := range d {
		a.d[i+shift].Add(a.d[i+shift], x)
	}
}

func (a *accumulator) result() dist { return a.d }
