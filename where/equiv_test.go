package where

import (
	"testing"

	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/expr"
	"github.com/stretchr/testify/require"
)

func eqTerm(leftCursor, leftColumn int, right expr.Expression, prereqRight bitset.Mask, op OperatorClass, collation string) *Term {
	return &Term{
		Expr:          &expr.Comparison{Op: expr.OpEq, Left: col(leftCursor, leftColumn, "", expr.AffinityInteger), Right: right},
		Op:            op,
		HasLeftColumn: true,
		LeftCursor:    leftCursor,
		LeftColumn:    leftColumn,
		PrereqRight:   prereqRight,
		Collation:     collation,
	}
}

func TestFindTermDirectEquality(t *testing.T) {
	store := NewTermStore(OpClassAnd, nil)
	store.Append(eqTerm(0, 1, lit(int64(7)), bitset.Empty, OpClassEq, ""))

	a := &Analyser{}
	found, ok := a.FindTerm(store, 0, 1, OpClassEq, "")
	require.True(t, ok)
	require.Equal(t, 0, found.LeftCursor)
	require.Equal(t, 1, found.LeftColumn)
}

func TestFindTermPrefersConstantRHSOverColumnRHS(t *testing.T) {
	store := NewTermStore(OpClassAnd, nil)
	store.Append(eqTerm(0, 1, col(1, 0, "", expr.AffinityInteger), bitset.Bit(1), OpClassEq|OpClassEquiv, ""))
	constIdx := store.Append(eqTerm(0, 1, lit(int64(9)), bitset.Empty, OpClassEq, ""))

	a := &Analyser{}
	found, ok := a.FindTerm(store, 0, 1, OpClassEq, "")
	require.True(t, ok)
	require.Same(t, store.Get(constIdx), found)
}

func TestFindTermChasesTransitiveEquality(t *testing.T) {
	store := NewTermStore(OpClassAnd, nil)
	// t0.a = t1.b (equiv edge), t1.b = 5 (constant landing term)
	store.Append(eqTerm(0, 0, col(1, 0, "", expr.AffinityInteger), bitset.Bit(1), OpClassEq|OpClassEquiv, ""))
	landing := store.Append(eqTerm(1, 0, lit(int64(5)), bitset.Empty, OpClassEq, ""))

	a := &Analyser{}
	found, ok := a.FindTerm(store, 0, 0, OpClassEq, "")
	require.True(t, ok)
	require.Same(t, store.Get(landing), found)
}

func TestFindTermRejectsCollationMismatch(t *testing.T) {
	store := NewTermStore(OpClassAnd, nil)
	store.Append(eqTerm(0, 0, lit("x"), bitset.Empty, OpClassEq, "binary"))

	a := &Analyser{}
	_, ok := a.FindTerm(store, 0, 0, OpClassEq, "nocase")
	require.False(t, ok)
}

func TestFindTermIgnoresCodedTerms(t *testing.T) {
	store := NewTermStore(OpClassAnd, nil)
	idx := store.Append(eqTerm(0, 0, lit(int64(1)), bitset.Empty, OpClassEq, ""))
	store.Get(idx).MarkCoded()

	a := &Analyser{}
	_, ok := a.FindTerm(store, 0, 0, OpClassEq, "")
	require.False(t, ok)
}

func TestFindTermSeesOuterStoreTerms(t *testing.T) {
	outer := NewTermStore(OpClassAnd, nil)
	outer.Append(eqTerm(0, 0, lit(int64(3)), bitset.Empty, OpClassEq, ""))
	inner := NewTermStore(OpClassOr, outer)

	a := &Analyser{}
	found, ok := a.FindTerm(inner, 0, 0, OpClassEq, "")
	require.True(t, ok)
	require.Equal(t, 0, found.LeftColumn)
}
