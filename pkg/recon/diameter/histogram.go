package diameter

import (
	"encoding/json"
	"math/big"
	"slices"
	"strconv"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
)

// Histogram maps a distance to the number of ordered reconciliation pairs
// at that distance. The zero value is an empty histogram.
type Histogram struct {
	counts []*big.Int
}

// NewHistogram builds a histogram from a distance → count map.
func NewHistogram(m map[int]*big.Int) *Histogram {
	h := &Histogram{}
	for d, n := range m {
		if d < 0 || n.Sign() == 0 {
			continue
		}
		for len(h.counts) <= d {
			h.counts = append(h.counts, new(big.Int))
		}
		h.counts[d].Add(h.counts[d], n)
	}
	return h
}

func fromDist(d dist) *Histogram {
	h := &Histogram{counts: make([]*big.Int, len(d))}
	for i, n := range d {
		h.counts[i] = new(big.Int).Set(n)
	}
	h.trim()
	return h
}

func (h *Histogram) trim() {
	for len(h.counts) > 0 && h.counts[len(h.counts)-1].Sign() == 0 {
		h.counts = h.counts[:len(h.counts)-1]
	}
}

// Count returns the number of pairs at distance d.
func (h *Histogram) Count(d int) *big.Int {
	if d < 0 || d >= len(h.counts) || h.counts[d] == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(h.counts[d])
}

// Diameter returns the largest distance with a non-zero count, or -1 for
// an empty histogram.
func (h *Histogram) Diameter() int { return len(h.counts) - 1 }

// Total returns the number of pairs.
func (h *Histogram) Total() *big.Int {
	t := new(big.Int)
	for _, n := range h.counts {
		t.Add(t, n)
	}
	return t
}

// Sum returns the sum of distances over all pairs.
func (h *Histogram) Sum() *big.Int {
	s := new(big.Int)
	var t big.Int
	for d, n := range h.counts {
		s.Add(s, t.Mul(n, big.NewInt(int64(d))))
	}
	return s
}

// Mean returns the average distance over all pairs.
func (h *Histogram) Mean() float64 {
	total := h.Total()
	if total.Sign() == 0 {
		return 0
	}
	m, _ := new(big.Rat).SetFrac(h.Sum(), total).Float64()
	return m
}

// Fractions returns, per distance, the fraction of pairs at that distance.
func (h *Histogram) Fractions() []float64 {
	total := h.Total()
	out := make([]float64, len(h.counts))
	if total.Sign() == 0 {
		return out
	}
	for d, n := range h.counts {
		out[d], _ = new(big.Rat).SetFrac(n, total).Float64()
	}
	return out
}

// Map returns the non-zero counts keyed by distance.
func (h *Histogram) Map() map[int]*big.Int {
	m := make(map[int]*big.Int)
	for d, n := range h.counts {
		if n.Sign() != 0 {
			m[d] = new(big.Int).Set(n)
		}
	}
	return m
}

// Equal reports whether two histograms hold the same counts.
func (h *Histogram) Equal(o *Histogram) bool {
	return slices.EqualFunc(h.counts, o.counts, func(a, b *big.Int) bool { return a.Cmp(b) == 0 })
}

// MarshalJSON encodes the histogram as an object from distance to count,
// omitting zero counts.
func (h *Histogram) MarshalJSON() ([]byte, error) {
	m := make(map[string]*big.Int, len(h.counts))
	for d, n := range h.Map() {
		m[strconv.Itoa(d)] = n
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the object form written by MarshalJSON.
func (h *Histogram) UnmarshalJSON(data []byte) error {
	var m map[string]*big.Int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	counts := make(map[int]*big.Int, len(m))
	for k, n := range m {
		d, err := strconv.Atoi(k)
		if err != nil || d < 0 || n == nil {
			return perrors.New(perrors.ErrCodeInvalidFormat, "invalid histogram entry %q", k)
		}
		counts[d] = n
	}
	*h = *NewHistogram(counts)
	return nil
}
