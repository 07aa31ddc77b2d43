package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/expr"
	"github.com/sirupsen/logrus"
)

// equivHopLimit bounds FindTerm's transitive-equality chase through Equiv
// edges. Preserved verbatim rather than made configurable.
const equivHopLimit = 10

// TableLookup resolves a cursor id to its catalog table, so the analyser
// can read column affinity, collation, and histogram presence.
type TableLookup func(cursor int) *catalog.Table

// Analyser implements TermAnalyser: it turns a borrowed
// WHERE expression tree into a flat, fully classified TermStore, deriving
// virtual terms (commuted twins, BETWEEN/LIKE/IS-NOT-NULL rewrites,
// OR->IN) along the way.
type Analyser struct {
	Cursors *bitset.Map
	Tables  TableLookup
	Like    catalog.LikeInfo
	Log     logrus.FieldLogger

	// AndOnly mirrors the AndOnly external flag: when set,
	// OR terms are never split/specialised and act only as opaque
	// residual filters.
	AndOnly bool
}

// NewAnalyser constructs an Analyser. log may be nil, in which case the
// logrus standard logger is used.
func NewAnalyser(cursors *bitset.Map, tables TableLookup, like catalog.LikeInfo, log logrus.FieldLogger) *Analyser {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyser{Cursors: cursors, Tables: tables, Like: like, Log: log}
}

// AnalyseWhere splits root by its top-level AND connective (or treats it
// as one single term if root is not an *expr.And) into a fresh TermStore,
// then classifies and expands every term.
func (a *Analyser) AnalyseWhere(root expr.Expression) *TermStore {
	store := NewTermStore(OpClassAnd, nil)
	if root == nil {
		return store
	}
	for _, sub := range splitByConnective(root, OpClassAnd) {
		idx := store.Append(&Term{Expr: sub, Parent: NoParent})
		a.classify(store, idx, bitset.Empty)
	}
	return store
}

// AnalyseOnClause is identical to AnalyseWhere but ORs in extraRight (the
// phantom "extra right" dependency, mask_of(iRightJoinTable)-1) onto every
// term's PrereqAll: ON-clause terms of a LEFT JOIN must not drive an index
// for a table to their left.
func (a *Analyser) AnalyseOnClause(root expr.Expression, extraRight bitset.Mask) *TermStore {
	store := NewTermStore(OpClassAnd, nil)
	if root == nil {
		return store
	}
	for _, sub := range splitByConnective(root, OpClassAnd) {
		idx := store.Append(&Term{Expr: sub, Parent: NoParent})
		a.classify(store, idx, extraRight)
	}
	return store
}

func splitByConnective(e expr.Expression, connective OperatorClass) []expr.Expression {
	switch connective {
	case OpClassAnd:
		if and, ok := e.(*expr.And); ok {
			return and.Terms
		}
	case OpClassOr:
		if or, ok := e.(*expr.Or); ok {
			return or.Terms
		}
	}
	return []expr.Expression{e}
}

// classify runs the full per-term classification procedure on
// store.Get(idx), using an explicit work queue for any virtual terms it
// synthesizes so pathological OR/AND chains cannot grow the Go call stack
// unboundedly.
func (a *Analyser) classify(store *TermStore, idx int, extraRight bitset.Mask) {
	queue := []int{idx}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		newIdx := a.classifyOne(store, i, extraRight)
		queue = append(queue, newIdx...)
	}
}

// classifyOne runs the full classification procedure on one term and
// returns the indices of any new virtual terms it appended, for the
// caller's work queue.
func (a *Analyser) classifyOne(store *TermStore, idx int, extraRight bitset.Mask) []int {
	t := store.Get(idx)
	var newTerms []int

	// Step 1: dependency masks.
	t.PrereqRight = a.prereqRight(t.Expr)
	t.PrereqAll = expr.Deps(t.Expr, a.Cursors).Union(extraRight)

	switch e := t.Expr.(type) {
	case *expr.Comparison:
		a.classifyComparison(store, idx, e, &newTerms)
	case *expr.In:
		if col, ok := expr.AsColumn(e.X); ok {
			t.HasLeftColumn = true
			t.LeftCursor = col.Cursor
			t.LeftColumn = col.Col
			t.Collation = col.Collation
			t.Affinity = col.Affinity
		}
		if e.Not {
			t.Op = OpClassNoop
		} else {
			t.Op = OpClassIn
		}
	case *expr.IsNull:
		if col, ok := expr.AsColumn(e.X); ok {
			t.HasLeftColumn = true
			t.LeftCursor = col.Cursor
			t.LeftColumn = col.Col
			t.Collation = col.Collation
			t.Affinity = col.Affinity
		}
		t.Op = OpClassIsNull
	case *expr.IsNotNull:
		a.rewriteIsNotNull(store, idx, e, &newTerms)
	case *expr.Between:
		a.rewriteBetween(store, idx, e, &newTerms)
	case *expr.Like:
		a.rewriteLike(store, idx, e, &newTerms)
	case *expr.Match:
		t.Op = OpClassMatch
		if col, ok := expr.AsColumn(e.X); ok {
			t.HasLeftColumn = true
			t.LeftCursor = col.Cursor
			t.LeftColumn = col.Col
		}
	case *expr.Or:
		t.Op = OpClassOr
		if !a.AndOnly {
			a.specialiseOr(store, idx, e, extraRight, &newTerms)
		}
	case *expr.And:
		t.Op = OpClassAnd
		t.Flags |= TermAndInfo
		sub := NewTermStore(OpClassAnd, store)
		t.And = &AndInfo{Store: sub}
		for _, conj := range e.Terms {
			ci := sub.Append(&Term{Expr: conj, Parent: NoParent})
			a.classify(sub, ci, extraRight)
		}
	default:
		t.Op = OpClassNoop
	}

	return newTerms
}

// prereqRight computes the RHS-only dependency mask.
func (a *Analyser) prereqRight(e expr.Expression) bitset.Mask {
	switch t := e.(type) {
	case *expr.Comparison:
		return expr.Deps(t.Right, a.Cursors)
	case *expr.In:
		var mask bitset.Mask
		for _, item := range t.List {
			mask = mask.Union(expr.Deps(item, a.Cursors))
		}
		return mask.Union(t.ExtraDeps)
	case *expr.Between:
		return expr.Deps(t.Lo, a.Cursors).Union(expr.Deps(t.Hi, a.Cursors))
	default:
		return bitset.Empty
	}
}

// classifyComparison classifies a `Left op Right` term and, when both
// sides are plain columns, synthesizes the commuted virtual twin.
func (a *Analyser) classifyComparison(store *TermStore, idx int, c *expr.Comparison, newTerms *[]int) {
	t := store.Get(idx)
	if c.Op == expr.OpNe {
		t.Op = OpClassNoop
		return
	}
	t.Op = cmpOpClass(c.Op)

	leftCol, leftIsCol := expr.AsColumn(c.Left)
	rightCol, rightIsCol := expr.AsColumn(c.Right)

	if leftIsCol {
		t.HasLeftColumn = true
		t.LeftCursor = leftCol.Cursor
		t.LeftColumn = leftCol.Col
		t.Collation = leftCol.Collation
		t.Affinity = leftCol.Affinity
	}

	if leftIsCol && rightIsCol {
		// Synthesize the commuted virtual twin: Right <op.Commute()> Left.
		twin := &Term{
			Expr: &expr.Comparison{Op: c.Op.Commute(), Left: c.Right, Right: c.Left},
			Op:   cmpOpClass(c.Op.Commute()),
			Flags: TermVirtual | TermDynamic,
			Parent: idx,
			HasLeftColumn: true,
			LeftCursor:    rightCol.Cursor,
			LeftColumn:    rightCol.Col,
			Collation:     rightCol.Collation,
			Affinity:      rightCol.Affinity,
		}
		twin.PrereqRight = expr.Deps(c.Left, a.Cursors)
		twin.PrereqAll = t.PrereqAll
		twinIdx := store.Append(twin)
		t.Flags |= TermCopied
		t.ChildCount++
		*newTerms = append(*newTerms, twinIdx)

		if c.Op == expr.OpEq {
			t.Op |= OpClassEquiv
			twin.Op |= OpClassEquiv
		}
	}
}

func cmpOpClass(op expr.CmpOp) OperatorClass {
	switch op {
	case expr.OpEq:
		return OpClassEq
	case expr.OpLt:
		return OpClassLt
	case expr.OpLe:
		return OpClassLe
	case expr.OpGt:
		return OpClassGt
	case expr.OpGe:
		return OpClassGe
	default:
		return OpClassNoop
	}
}

// rewriteBetween splits `x BETWEEN lo AND hi` into two virtual children
// `x >= lo` and `x <= hi`, appended to the same store as children of the
// BETWEEN term itself.
func (a *Analyser) rewriteBetween(store *TermStore, idx int, b *expr.Between, newTerms *[]int) {
	t := store.Get(idx)
	t.Op = OpClassNoop // BETWEEN itself never drives a seek; its children do
	t.Flags |= TermAndInfo
	if col, ok := expr.AsColumn(b.X); ok {
		t.HasLeftColumn = true
		t.LeftCursor = col.Cursor
		t.LeftColumn = col.Col
	}

	lo := &Term{
		Expr:   &expr.Comparison{Op: expr.OpGe, Left: b.X, Right: b.Lo},
		Parent: idx,
		Flags:  TermVirtual | TermDynamic,
	}
	hi := &Term{
		Expr:   &expr.Comparison{Op: expr.OpLe, Left: b.X, Right: b.Hi},
		Parent: idx,
		Flags:  TermVirtual | TermDynamic,
	}
	loIdx := store.Append(lo)
	hiIdx := store.Append(hi)
	t.ChildCount += 2
	*newTerms = append(*newTerms, loIdx, hiIdx)
}

// rewriteIsNotNull synthesizes `x > NULL` (VNull) when histogram data is
// available and the column is not the implicit rowid, which suppresses
// the loop-top null check.
func (a *Analyser) rewriteIsNotNull(store *TermStore, idx int, n *expr.IsNotNull, newTerms *[]int) {
	t := store.Get(idx)
	t.Op = OpClassNoop

	col, ok := expr.AsColumn(n.X)
	if !ok {
		return
	}
	t.HasLeftColumn = true
	t.LeftCursor = col.Cursor
	t.LeftColumn = col.Col

	if col.RowidAlias {
		return
	}
	if !a.hasHistogram(col) {
		return
	}

	vnull := &Term{
		Expr:          &expr.Comparison{Op: expr.OpGt, Left: n.X, Right: &expr.Literal{Value: nil}},
		Op:            OpClassGt,
		Parent:        idx,
		Flags:         TermVirtual | TermDynamic | TermVNull,
		HasLeftColumn: true,
		LeftCursor:    col.Cursor,
		LeftColumn:    col.Col,
		Collation:     col.Collation,
		Affinity:      col.Affinity,
	}
	vIdx := store.Append(vnull)
	t.ChildCount++
	*newTerms = append(*newTerms, vIdx)
}

func (a *Analyser) hasHistogram(col *expr.Column) bool {
	if a.Tables == nil {
		return false
	}
	table := a.Tables(col.Cursor)
	if table == nil {
		return false
	}
	for _, idx := range table.Idxs {
		if len(idx.Cols) > 0 && idx.Cols[0] == col.Col && len(idx.Samples) > 0 {
			return true
		}
	}
	return false
}

// rewriteLike turns a LIKE with a non-wildcard literal prefix into a range:
// when the RHS is a string literal with a non-wildcard prefix, and the LHS
// is a text-affinity column, append `x >= prefix` and `x < succ(prefix)`
// with the same collation. The LIKE term itself is retained as a residual
// filter. succ(prefix) bumps the last byte; when that byte is already
// 0xFF no range is added and the LIKE stays a plain residual filter.
func (a *Analyser) rewriteLike(store *TermStore, idx int, l *expr.Like, newTerms *[]int) {
	t := store.Get(idx)
	t.Op = OpClassNoop

	col, ok := expr.AsColumn(l.X)
	if !ok || col.Affinity != expr.AffinityText {
		return
	}
	lit, ok := l.Pattern.(*expr.Literal)
	if !ok {
		return
	}
	pattern, ok := lit.Value.(string)
	if !ok {
		return
	}
	prefix, reducesToWildcard := likePrefix(pattern, l.Glob)
	if reducesToWildcard {
		return
	}
	if prefix == "" {
		return
	}
	// Disabled when the prefix's last byte is 0xFF: there is no string
	// strictly between prefix and the next value up, so no upper bound
	// can be derived.
	if prefix[len(prefix)-1] == 0xFF {
		return
	}

	succ := []byte(prefix)
	succ[len(succ)-1]++

	t.HasLeftColumn = true
	t.LeftCursor = col.Cursor
	t.LeftColumn = col.Col

	lo := &Term{
		Expr:          &expr.Comparison{Op: expr.OpGe, Left: l.X, Right: &expr.Literal{Value: prefix, Affinity: expr.AffinityText}},
		Op:            OpClassGe,
		Parent:        idx,
		Flags:         TermVirtual | TermDynamic,
		HasLeftColumn: true,
		LeftCursor:    col.Cursor,
		LeftColumn:    col.Col,
		Collation:     col.Collation,
		Affinity:      expr.AffinityText,
	}
	hi := &Term{
		Expr:          &expr.Comparison{Op: expr.OpLt, Left: l.X, Right: &expr.Literal{Value: string(succ), Affinity: expr.AffinityText}},
		Op:            OpClassLt,
		Parent:        idx,
		Flags:         TermVirtual | TermDynamic,
		HasLeftColumn: true,
		LeftCursor:    col.Cursor,
		LeftColumn:    col.Col,
		Collation:     col.Collation,
		Affinity:      expr.AffinityText,
	}
	loIdx := store.Append(lo)
	hiIdx := store.Append(hi)
	t.ChildCount += 2
	*newTerms = append(*newTerms, loIdx, hiIdx)
}

// likePrefix returns the longest wildcard-free prefix of pattern, and
// whether the pattern reduces to a single wildcard character (in which
// case the caller must leave the original term unconsumed — there is no
// range to derive).
func likePrefix(pattern string, isGlob bool) (prefix string, reducesToWildcard bool) {
	wildcards := "%_"
	if isGlob {
		wildcards = "*?["
	}
	if len(pattern) == 1 && isWildcardByte(pattern[0], wildcards) {
		return "", true
	}
	i := 0
	for i < len(pattern) && !isWildcardByte(pattern[i], wildcards) {
		i++
	}
	return pattern[:i], false
}

func isWildcardByte(b byte, wildcards string) bool {
	for i := 0; i < len(wildcards); i++ {
		if wildcards[i] == b {
			return true
		}
	}
	return false
}
