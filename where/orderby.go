package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/catalog"
)

// OrderByMode distinguishes ORDER BY's strict-prefix matching from GROUP
// BY/DISTINCT's unordered matching (spec.md §4.6).
type OrderByMode int

const (
	OrderByModeOrdered OrderByMode = iota
	OrderByModeUnordered
)

// OrderByItem is one position in the ORDER BY / GROUP BY / DISTINCT list,
// reduced to a plain column reference (the only shape OrderBySatisfier
// can match against an index).
type OrderByItem struct {
	Cursor    int
	Column    int
	Desc      bool
	Collation string
}

// OrderBySatisfier decides whether a candidate path's loop order already
// delivers the requested ORDER BY / DISTINCT order, and if so which
// levels must scan their index in reverse to do it.
type OrderBySatisfier struct {
	Analyser *Analyser
	Store    *TermStore
	Tables   TableLookup
	Items    []OrderByItem
	Mode     OrderByMode
}

// NewOrderBySatisfier constructs a satisfier for one compilation's ORDER
// BY / GROUP BY / DISTINCT list.
func NewOrderBySatisfier(a *Analyser, store *TermStore, tables TableLookup, items []OrderByItem, mode OrderByMode) *OrderBySatisfier {
	return &OrderBySatisfier{Analyser: a, Store: store, Tables: tables, Items: items, Mode: mode}
}

// Evaluate walks path's levels outer to inner and reports whether the
// requested order is already satisfied, not satisfiable by this path, or
// still undetermined pending further loops — plus the reverse-scan mask
// for the levels chosen so far.
func (ob *OrderBySatisfier) Evaluate(path *WherePath) (ObStatus, bitset.Mask) {
	if len(ob.Items) == 0 {
		return ObSatisfied, bitset.Empty
	}

	satisfied := make([]bool, len(ob.Items))
	orderDistinct := true
	var revMask bitset.Mask
	var outerMask bitset.Mask

	for levelIdx, loop := range path.Loops {
		cursor := loop.TableIndex

		// Step 1: positions into this table already pinned constant by an
		// equality (or IS NULL) reachable using only outer-loop references.
		for i, item := range ob.Items {
			if satisfied[i] || item.Cursor != cursor {
				continue
			}
			if ob.constrainedByOuterEquality(item, outerMask) {
				satisfied[i] = true
			}
		}

		switch {
		case loop.Flags&WsVirtualTable != 0:
			if loop.VTabOrdered {
				ob.satisfyAllForCursor(satisfied, cursor)
			} else {
				orderDistinct = false
			}
		case loop.Flags&WsOneRow != 0:
			ob.satisfyAllForCursor(satisfied, cursor)
		default:
			reverse, consistent, distinct := ob.matchIndexColumns(loop, cursor, satisfied)
			if !consistent {
				return ObNotSatisfied, revMask
			}
			if reverse {
				revMask = revMask.Union(bitset.Bit(levelIdx))
			}
			if !distinct {
				orderDistinct = false
			}
		}

		// Step 4: once this loop's rows are order-distinct, any remaining
		// position referencing only already-iterated tables is constant
		// within the grouping and therefore trivially satisfied.
		outerMask = outerMask.Union(loop.Self)
		if orderDistinct {
			for i, item := range ob.Items {
				if !satisfied[i] && bitset.Bit(item.Cursor).SubsetOf(outerMask) {
					satisfied[i] = true
				}
			}
		}
	}

	for _, s := range satisfied {
		if !s {
			return ObUnknown, revMask
		}
	}
	return ObSatisfied, revMask
}

func (ob *OrderBySatisfier) satisfyAllForCursor(satisfied []bool, cursor int) {
	for i, item := range ob.Items {
		if item.Cursor == cursor {
			satisfied[i] = true
		}
	}
}

// constrainedByOuterEquality reports whether item's column is equated to
// an expression depending only on outerMask, via FindTerm.
func (ob *OrderBySatisfier) constrainedByOuterEquality(item OrderByItem, outerMask bitset.Mask) bool {
	if ob.Analyser == nil || ob.Store == nil {
		return false
	}
	allowed := OpClassEq | OpClassIsNull
	t, ok := ob.Analyser.FindTerm(ob.Store, item.Cursor, item.Column, allowed, item.Collation)
	if !ok {
		return false
	}
	return t.PrereqRight.SubsetOf(outerMask)
}

// matchIndexColumns walks loop's index columns past the equality prefix,
// matching each against the next still-unsatisfied ORDER BY position (or,
// in unordered mode, any still-unsatisfied position). Returns the level's
// reverse bit, whether the match was internally consistent, and whether
// the loop remains order-distinct (every index column found a match).
func (ob *OrderBySatisfier) matchIndexColumns(loop *CandidateLoop, cursor int, satisfied []bool) (reverse bool, consistent bool, distinct bool) {
	idx := loop.Index
	if idx == nil {
		return false, true, false
	}

	var table *catalog.Table
	if ob.Tables != nil {
		table = ob.Tables(cursor)
	}

	revSet := false
	for k := loop.NEq; k < len(idx.Cols); k++ {
		colOrd := idx.Cols[k]
		desc := k < len(idx.Desc) && idx.Desc[k]
		var collation string
		if table != nil {
			collation = table.IndexCollation(idx, k)
		}

		matchIdx := ob.nextMatch(satisfied, cursor, colOrd, collation)
		if matchIdx == -1 {
			return revSet && reverse, true, false
		}
		satisfied[matchIdx] = true

		bit := desc != ob.Items[matchIdx].Desc
		if revSet && bit != reverse {
			return false, false, false
		}
		reverse, revSet = bit, true
	}
	return reverse, true, true
}

// nextMatch returns the index, into ob.Items, of the item matchIndexColumns
// should bind to next: the first still-unsatisfied item in ordered mode
// (ORDER BY is a strict prefix), or any still-unsatisfied matching item in
// unordered mode (GROUP BY/DISTINCT).
func (ob *OrderBySatisfier) nextMatch(satisfied []bool, cursor, column int, collation string) int {
	if ob.Mode == OrderByModeOrdered {
		for i, item := range ob.Items {
			if satisfied[i] {
				continue
			}
			if item.Cursor == cursor && item.Column == column && collationAgrees(item.Collation, collation) {
				return i
			}
			return -1
		}
		return -1
	}
	for i, item := range ob.Items {
		if satisfied[i] {
			continue
		}
		if item.Cursor == cursor && item.Column == column && collationAgrees(item.Collation, collation) {
			return i
		}
	}
	return -1
}

func collationAgrees(want, have string) bool {
	return want == "" || have == "" || want == have
}
