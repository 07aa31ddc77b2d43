package where

import (
	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/cost"
)

// EqualScanEstimate returns the estimated row count of an equality seek on
// idx's leading column for the given bytewise-comparable key encoding,
// refined by idx's sample histogram when present.
func EqualScanEstimate(idx *catalog.Index, key []byte) cost.Cost {
	if len(idx.Samples) == 0 {
		return cost.FromRows(idx.RowEstAt(1))
	}
	pos, exact := idx.SampleSearch(key)
	if exact {
		return cost.FromRows(atLeastOne(idx.Samples[pos].NEq))
	}

	var lo float64
	if pos > 0 {
		lo = idx.Samples[pos-1].NLt + idx.Samples[pos-1].NEq
	}
	hi := idx.RowEstAt(1)
	if pos < len(idx.Samples) {
		hi = idx.Samples[pos].NLt
	}
	return cost.FromRows(atLeastOne(hi - lo))
}

// RangeScanEstimate returns the estimated row count between lo and hi
// (either may be nil for an open bound), refined by idx's histogram when
// present. Absent a histogram, each supplied bound divides the index's
// total row estimate by 4.
func RangeScanEstimate(idx *catalog.Index, lo, hi []byte) cost.Cost {
	total := idx.RowEstAt(0)
	if len(idx.Samples) == 0 {
		divisor := 1.0
		if lo != nil {
			divisor *= 4
		}
		if hi != nil {
			divisor *= 4
		}
		return cost.FromRows(atLeastOne(total / divisor))
	}

	nLtLo := 0.0
	if lo != nil {
		nLtLo = sampledNLt(idx, lo)
	}
	nLtHi := total
	if hi != nil {
		nLtHi = sampledNLt(idx, hi)
	}
	return cost.FromRows(atLeastOne(nLtHi - nLtLo))
}

// InScanEstimate returns the estimated row count of an IN-list seek: the
// sum of each value's EqualScanEstimate, clamped to the index's total row
// estimate.
func InScanEstimate(idx *catalog.Index, values [][]byte) cost.Cost {
	total := 0.0
	for _, v := range values {
		total += EqualScanEstimate(idx, v).ToRows()
	}
	cap := idx.RowEstAt(0)
	if total > cap {
		total = cap
	}
	return cost.FromRows(atLeastOne(total))
}

func sampledNLt(idx *catalog.Index, key []byte) float64 {
	pos, exact := idx.SampleSearch(key)
	if exact {
		return idx.Samples[pos].NLt
	}
	if pos < len(idx.Samples) {
		return idx.Samples[pos].NLt
	}
	if len(idx.Samples) == 0 {
		return 0
	}
	last := idx.Samples[len(idx.Samples)-1]
	return last.NLt + last.NEq
}

func atLeastOne(n float64) float64 {
	if n < 1 {
		return 1
	}
	return n
}
