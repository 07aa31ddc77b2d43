// Package cost implements the planner's log-space cost arithmetic: every
// cost value is an integer approximation of 10*log2(x) ("deci-bels"), so
// that comparing or combining the cost of two candidate plans never needs
// to convert back to linear row counts. Cost is its own arithmetic type,
// not a float or raw integer, precisely so nothing outside this package
// can accidentally add two costs linearly.
package cost

import "math"

// Cost is a 16-bit deci-bel cost estimate: value/10 approximates
// log2(linear_cost). The zero value represents "negligible" (<=1 row/unit).
type Cost uint16

// Max is the largest representable Cost; additions saturate at this value.
const Max Cost = 1<<16 - 1

// addTable[i] holds round(10*log2(1+2^(-i/10))) for i in [0,100), used by
// Add to approximate 10*log2(2^(a/10)+2^(b/10)) without floating point at
// call sites. Index i corresponds to a cost difference of i deci-bels.
var addTable [100]uint16

func init() {
	for i := 0; i < len(addTable); i++ {
		// 10*log2(1 + 2^(-i/10))
		v := 10 * math.Log2(1+math.Pow(2, -float64(i)/10))
		addTable[i] = uint16(math.Round(v))
	}
}

// FromRows converts a linear row/unit count into a Cost. n<=1 returns 0.
func FromRows(n float64) Cost {
	if n <= 1 {
		return 0
	}
	v := 10 * math.Log2(n)
	if v >= float64(Max) {
		return Max
	}
	return Cost(math.Round(v))
}

// ToRows converts a Cost back to an approximate linear count. Only
// required at the external boundary, where row-count APIs must hand back
// integers to the catalog or VM emitter.
func (c Cost) ToRows() float64 {
	return math.Pow(2, float64(c)/10)
}

// Add returns a tight upper bound on the deci-bel cost of the sum of the
// two linear quantities c and other represent, i.e.
// 10*log2(2^(c/10) + 2^(other/10)), saturating at Max. Add is symmetric.
func Add(c, other Cost) Cost {
	hi, lo := c, other
	if lo > hi {
		hi, lo = lo, hi
	}
	diff := int(hi) - int(lo)
	var bump uint16
	if diff < len(addTable) {
		bump = addTable[diff]
	}
	sum := uint32(hi) + uint32(bump)
	if sum > uint32(Max) {
		return Max
	}
	return Cost(sum)
}

// Mul returns the cost of n repetitions of a unit costing c, i.e. the
// deci-bel value of n * 2^(c/10). This is log-space multiplication by a
// linear scalar, used e.g. to repeat a skip-scan's per-value cost once
// per distinct leading value, or to apply an OR union's dedup markup.
func Mul(c Cost, n float64) Cost {
	if n <= 0 {
		return 0
	}
	v := float64(c) + 10*math.Log2(n)
	if v >= float64(Max) {
		return Max
	}
	if v < 0 {
		return 0
	}
	return Cost(math.Round(v))
}

// Product returns the cost of the linear product the two log-space costs
// a and b represent, i.e. 10*log2(2^(a/10) * 2^(b/10)) == a+b, saturating
// at Max. Used to fold a loop's per-row cost into the row count of
// everything driving it (e.g. an inner loop's run cost times an outer
// path's row estimate), as opposed to Add, which sums two alternatives.
func Product(a, b Cost) Cost {
	sum := uint32(a) + uint32(b)
	if sum > uint32(Max) {
		return Max
	}
	return Cost(sum)
}

// Less reports whether c represents a smaller linear quantity than other.
func (c Cost) Less(other Cost) bool { return c < other }
