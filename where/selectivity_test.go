package where

import (
	"testing"

	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/cost"
	"github.com/stretchr/testify/require"
)

func TestEqualScanEstimateExactSample(t *testing.T) {
	idx := &catalog.Index{
		RowEst: []float64{1000, 10},
		Samples: []catalog.Sample{
			{Key: []byte{5}, NLt: 50, NEq: 3},
		},
	}
	got := EqualScanEstimate(idx, []byte{5})
	require.InDelta(t, cost.FromRows(3).ToRows(), got.ToRows(), 0.01)
}

func TestEqualScanEstimateInterpolated(t *testing.T) {
	idx := &catalog.Index{
		RowEst: []float64{1000, 10},
		Samples: []catalog.Sample{
			{Key: []byte{10}, NLt: 100, NEq: 2},
		},
	}
	got := EqualScanEstimate(idx, []byte{1})
	require.Greater(t, got.ToRows(), 0.0)
}

func TestEqualScanEstimateNoSamplesUsesRowEst(t *testing.T) {
	idx := &catalog.Index{RowEst: []float64{1000, 10}}
	got := EqualScanEstimate(idx, []byte{1})
	require.InDelta(t, cost.FromRows(10).ToRows(), got.ToRows(), 0.01)
}

func TestRangeScanEstimateNoSamplesDividesByFour(t *testing.T) {
	idx := &catalog.Index{RowEst: []float64{1000}}
	got := RangeScanEstimate(idx, []byte{1}, nil)
	require.InDelta(t, cost.FromRows(250).ToRows(), got.ToRows(), 0.01)

	got2 := RangeScanEstimate(idx, []byte{1}, []byte{9})
	require.InDelta(t, cost.FromRows(1000.0/16).ToRows(), got2.ToRows(), 0.01)
}

func TestInScanEstimateSumsAndClamps(t *testing.T) {
	idx := &catalog.Index{
		RowEst: []float64{100},
		Samples: []catalog.Sample{
			{Key: []byte{1}, NLt: 0, NEq: 40},
			{Key: []byte{2}, NLt: 40, NEq: 40},
			{Key: []byte{3}, NLt: 80, NEq: 40},
		},
	}
	got := InScanEstimate(idx, [][]byte{{1}, {2}, {3}})
	require.InDelta(t, cost.FromRows(100).ToRows(), got.ToRows(), 0.01)
}
