package recon

import (
	"math"
	"strconv"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
)

// Cost is a fixed-point cost with [CostScale] units per 1.0. Costs compare
// by exact integer equality, so two explanations tie exactly when their
// summed event costs are equal after rounding each event cost to six
// decimals.
type Cost int64

// CostScale is the number of Cost units per unit of event cost.
const CostScale = 1_000_000

// Infinity is the cost of an impossible mapping. Sums involving Infinity
// stay Infinity.
const Infinity Cost = math.MaxInt64

// MaxEventCost bounds a single event cost so that the sum over any
// reconciliation of realistic size stays far below Infinity.
const MaxEventCost = 1e6

// CostOf converts a float event cost to fixed point.
func CostOf(f float64) Cost {
	return Cost(math.Round(f * CostScale))
}

// Float returns the cost as a float64. Infinity maps to +Inf.
func (c Cost) Float() float64 {
	if c == Infinity {
		return math.Inf(1)
	}
	return float64(c) / CostScale
}

// String formats the cost with the minimal number of decimals.
func (c Cost) String() string {
	if c == Infinity {
		return "inf"
	}
	return strconv.FormatFloat(c.Float(), 'f', -1, 64)
}

// Add returns c+d, saturating at Infinity.
func (c Cost) Add(d Cost) Cost {
	if c == Infinity || d == Infinity {
		return Infinity
	}
	s := c + d
	if s < c {
		return Infinity
	}
	return s
}

// Costs holds the per-event costs of the DTL model. Cospeciation and leaf
// events are free.
type Costs struct {
	Duplication float64 `json:"duplication" toml:"duplication" yaml:"duplication"`
	Transfer    float64 `json:"transfer" toml:"transfer" yaml:"transfer"`
	Loss        float64 `json:"loss" toml:"loss" yaml:"loss"`
}

// Default event costs.
const (
	DefaultDuplicationCost = 2.0
	DefaultTransferCost    = 3.0
	DefaultLossCost        = 1.0
)

// DefaultCosts returns the default duplication, transfer and loss costs.
func DefaultCosts() Costs {
	return Costs{
		Duplication: DefaultDuplicationCost,
		Transfer:    DefaultTransferCost,
		Loss:        DefaultLossCost,
	}
}

// Validate reports an INVALID_COST error when any cost is negative,
// non-finite or larger than [MaxEventCost]. Zero is valid.
func (c Costs) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"duplication", c.Duplication},
		{"transfer", c.Transfer},
		{"loss", c.Loss},
	} {
		switch {
		case math.IsNaN(f.v) || math.IsInf(f.v, 0):
			return perrors.New(perrors.ErrCodeInvalidCost, "%s cost must be finite, got %v", f.name, f.v)
		case f.v < 0:
			return perrors.New(perrors.ErrCodeInvalidCost, "%s cost must not be negative, got %v", f.name, f.v)
		case f.v > MaxEventCost:
			return perrors.New(perrors.ErrCodeInvalidCost, "%s cost %v exceeds maximum %v", f.name, f.v, MaxEventCost)
		}
	}
	return nil
}

// Of returns the fixed-point cost of one event of the given kind.
func (c Costs) Of(k EventKind) Cost {
	switch k {
	case Duplication:
		return CostOf(c.Duplication)
	case Transfer:
		return CostOf(c.Transfer)
	case Loss:
		return CostOf(c.Loss)
	default:
		return 0
	}
}

// fixed caches the fixed-point form of Costs for the DP inner loop.
type fixed struct {
	dup, transfer, loss Cost
}

func (c Costs) fixed() fixed {
	return fixed{dup: CostOf(c.Duplication), transfer: CostOf(c.Transfer), loss: CostOf(c.Loss)}
}

func (f fixed) of(k EventKind) Cost {
	switch k {
	case Duplication:
		return f.dup
	case Transfer:
		return f.transfer
	case Loss:
		return f.loss
	default:
		return 0
	}
}
