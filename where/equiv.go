package where

import "github.com/dolthub/wherecore/expr"

// cursorColumn identifies one column of one cursor, used as a node in the
// transitive-equality search graph.
type cursorColumn struct {
	cursor, column int
}

// FindTerm scans for a term `X <op> Expr` reachable from (cursor, column)
// via a chain of Equiv equalities, bounded to equivHopLimit hops.
// Preference order: (1) terms with a constant RHS (PrereqRight empty),
// (2) other equality terms. requiredCollation, if non-empty, restricts
// matches to terms whose collation agrees (or is unset).
func (a *Analyser) FindTerm(store *TermStore, cursor, column int, allowed OperatorClass, requiredCollation string) (*Term, bool) {
	visited := map[cursorColumn]bool{{cursor, column}: true}
	queue := []cursorColumn{{cursor, column}}

	var best *Term
	hops := 0
	for len(queue) > 0 && hops < equivHopLimit {
		node := queue[0]
		queue = queue[1:]
		hops++

		for _, cand := range a.findAtNode(store, node.cursor, node.column, allowed, requiredCollation) {
			if best == nil || findTermBetter(cand, best) {
				best = cand
			}
		}

		for _, term := range allTermsWithOuter(store) {
			if term.Op&OpClassEquiv == 0 || term.IsCoded() {
				continue
			}
			if term.LeftCursor != node.cursor || term.LeftColumn != node.column {
				continue
			}
			cmp, ok := term.Expr.(*expr.Comparison)
			if !ok {
				continue
			}
			rc, ok := expr.AsColumn(cmp.Right)
			if !ok {
				continue
			}
			key := cursorColumn{rc.Cursor, rc.Col}
			if !visited[key] {
				visited[key] = true
				queue = append(queue, key)
			}
		}
	}
	return best, best != nil
}

func (a *Analyser) findAtNode(store *TermStore, cursor, column int, allowed OperatorClass, requiredCollation string) []*Term {
	var out []*Term
	for _, term := range allTermsWithOuter(store) {
		if term.IsCoded() || !term.HasLeftColumn {
			continue
		}
		if term.LeftCursor != cursor || term.LeftColumn != column {
			continue
		}
		if term.Op&allowed == 0 {
			continue
		}
		if requiredCollation != "" && term.Collation != "" && term.Collation != requiredCollation {
			continue
		}
		out = append(out, term)
	}
	return out
}

// findTermBetter reports whether candidate is a better FindTerm result
// than current, by the preference order above.
func findTermBetter(candidate, current *Term) bool {
	candConst := candidate.PrereqRight.IsEmpty()
	curConst := current.PrereqRight.IsEmpty()
	if candConst != curConst {
		return candConst
	}
	candEq := candidate.Op&OpClassEq != 0
	curEq := current.Op&OpClassEq != 0
	if candEq != curEq {
		return candEq
	}
	return false
}

// allTermsWithOuter returns every term visible to store: its own terms
// plus, transitively, every outer store's terms (inner stores inherit
// access to the outer for transitive equality lookups).
func allTermsWithOuter(store *TermStore) []*Term {
	var out []*Term
	for s := store; s != nil; s = s.Outer {
		out = append(out, s.All()...)
	}
	return out
}
