package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/expr"
)

// specialiseOr implements: split an OR term into a fresh
// nested store, recursively analyse each sub-term, then either rewrite
// the whole thing into a single virtual IN term (Case 1) or tag it for
// the enumerator's OR-union candidate (Case 2).
func (a *Analyser) specialiseOr(store *TermStore, idx int, orExpr *expr.Or, extraRight bitset.Mask, newTerms *[]int) {
	t := store.Get(idx)
	sub := NewTermStore(OpClassOr, store)

	origIdx := make([]int, len(orExpr.Terms))
	for i, e := range orExpr.Terms {
		origIdx[i] = sub.Append(&Term{Expr: e, Parent: NoParent})
	}
	for _, i := range origIdx {
		a.classify(sub, i, extraRight)
	}

	t.Flags |= TermOrInfo
	t.Or = &OrInfo{Store: sub}

	if rewritten, ok := a.tryOrToIn(sub, origIdx); ok {
		// Case 1 supersedes Case 2: demote the original OR term and
		// install the synthesized IN term as its sole virtual child.
		t.Op = OpClassNoop
		t.Flags |= TermCopied
		rewritten.Parent = idx
		viIdx := store.Append(rewritten)
		t.ChildCount++
		a.classifyOne(store, viIdx, extraRight)
		*newTerms = append(*newTerms, viIdx)
		return
	}

	// Case 2: indexed OR-union. indexableMask is the intersection, over
	// every sub-term, of the set of tables for which that sub-term has an
	// indexable sub-conjunct.
	var mask bitset.Mask
	for i, subIdx := range origIdx {
		m := a.indexableTableSet(sub, sub.Get(subIdx))
		if i == 0 {
			mask = m
		} else {
			mask = mask.Intersect(m)
		}
	}
	t.Or.IndexableMask = mask
}

// indexableTableSet returns the set of tables for which term st has an
// indexable sub-conjunct: itself if it is a simple `Column <op> Expr`, or
// the union over an AND-group's indexable conjuncts.
func (a *Analyser) indexableTableSet(store *TermStore, st *Term) bitset.Mask {
	if st.Flags.Has(TermAndInfo) && st.And != nil {
		var mask bitset.Mask
		for _, conj := range st.And.Store.All() {
			if conj.HasLeftColumn && conj.UsableAsSeekKey() {
				mask = mask.Union(a.Cursors.MaskOf(conj.LeftCursor))
			}
		}
		return mask
	}
	if st.HasLeftColumn && st.UsableAsSeekKey() {
		return a.Cursors.MaskOf(st.LeftCursor)
	}
	return bitset.Empty
}

// tryOrToIn implements Case 1: if every sub-term is
// `T.C = Expr_i` for the same table and column with compatible affinity,
// synthesize `T.C IN (Expr_1, ..., Expr_n)`.
func (a *Analyser) tryOrToIn(sub *TermStore, origIdx []int) (*Term, bool) {
	if len(origIdx) == 0 {
		return nil, false
	}
	var cursor, column int
	var affinity expr.Affinity
	var list []expr.Expression
	var x expr.Expression

	for i, idx := range origIdx {
		st := sub.Get(idx)
		if !st.HasLeftColumn || st.Op&OpClassEq == 0 {
			return nil, false
		}
		cmp, ok := st.Expr.(*expr.Comparison)
		if !ok {
			return nil, false
		}
		if i == 0 {
			cursor, column, affinity = st.LeftCursor, st.LeftColumn, st.Affinity
			x = cmp.Left
		} else if st.LeftCursor != cursor || st.LeftColumn != column || st.Affinity != affinity {
			return nil, false
		}
		list = append(list, cmp.Right)
	}

	return &Term{
		Expr:          &expr.In{X: x, List: list},
		Op:            OpClassIn,
		Flags:         TermVirtual | TermDynamic,
		HasLeftColumn: true,
		LeftCursor:    cursor,
		LeftColumn:    column,
		Affinity:      affinity,
	}, true
}
