package where

import (
	"testing"

	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/catalog"
	"github.com/stretchr/testify/require"
)

func TestOrderBySatisfierOneRowTrivial(t *testing.T) {
	items := []OrderByItem{{Cursor: 0, Column: 1}}
	ob := NewOrderBySatisfier(nil, nil, nil, items, OrderByModeOrdered)

	path := &WherePath{Loops: []*CandidateLoop{
		{TableIndex: 0, Self: bitset.Bit(0), Flags: WsOneRow},
	}}
	status, rev := ob.Evaluate(path)
	require.Equal(t, ObSatisfied, status)
	require.Equal(t, bitset.Empty, rev)
}

func TestOrderBySatisfierIndexColumnMatch(t *testing.T) {
	table := &catalog.Table{Cols: []catalog.Column{{}, {}}}
	idx := &catalog.Index{Cols: []int{1}, Desc: []bool{false}}
	items := []OrderByItem{{Cursor: 0, Column: 1, Desc: false}}
	ob := NewOrderBySatisfier(nil, nil, func(int) *catalog.Table { return table }, items, OrderByModeOrdered)

	path := &WherePath{Loops: []*CandidateLoop{
		{TableIndex: 0, Self: bitset.Bit(0), Index: idx, NEq: 0},
	}}
	status, rev := ob.Evaluate(path)
	require.Equal(t, ObSatisfied, status)
	require.Equal(t, bitset.Empty, rev)
}

func TestOrderBySatisfierReverseScan(t *testing.T) {
	table := &catalog.Table{Cols: []catalog.Column{{}, {}}}
	idx := &catalog.Index{Cols: []int{1}, Desc: []bool{false}}
	items := []OrderByItem{{Cursor: 0, Column: 1, Desc: true}}
	ob := NewOrderBySatisfier(nil, nil, func(int) *catalog.Table { return table }, items, OrderByModeOrdered)

	path := &WherePath{Loops: []*CandidateLoop{
		{TableIndex: 0, Self: bitset.Bit(0), Index: idx, NEq: 0},
	}}
	status, rev := ob.Evaluate(path)
	require.Equal(t, ObSatisfied, status)
	require.Equal(t, bitset.Bit(0), rev)
}

func TestOrderBySatisfierNoIndexUnknown(t *testing.T) {
	items := []OrderByItem{{Cursor: 0, Column: 1}}
	ob := NewOrderBySatisfier(nil, nil, nil, items, OrderByModeOrdered)

	path := &WherePath{Loops: []*CandidateLoop{
		{TableIndex: 0, Self: bitset.Bit(0)},
	}}
	status, _ := ob.Evaluate(path)
	require.Equal(t, ObUnknown, status)
}

func TestOrderBySatisfierNoOrderByAlwaysSatisfied(t *testing.T) {
	ob := NewOrderBySatisfier(nil, nil, nil, nil, OrderByModeOrdered)
	status, rev := ob.Evaluate(&WherePath{})
	require.Equal(t, ObSatisfied, status)
	require.Equal(t, bitset.Empty, rev)
}
