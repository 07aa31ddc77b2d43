package where

import (
	"fmt"

	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/cost"
	"github.com/dolthub/wherecore/expr"
	"github.com/pkg/errors"
)

// nOrCost bounds the number of sub-terms an OR-union candidate will plan
// individually before falling back to a full scan; wide ORs just aren't
// worth the per-branch sub-solve.
const nOrCost = 3

// LoopEnumerator populates a CandidatePool with every access path worth
// considering for one table: a full scan, one candidate per usable index
// prefix, an automatic covering index when no declared index helps, the
// virtual-table best_index dialogue, and OR-union candidates.
type LoopEnumerator struct {
	Analyser *Analyser
	Tables   TableLookup
	Cursors  *bitset.Map
	// VTables maps a cursor to its virtual table implementation; a cursor
	// absent from the map (or a nil map) is an ordinary table.
	VTables map[int]catalog.VirtualTable
	// Flags mirrors the caller's external flag set: ForceTable disables
	// IdxOnly (every candidate is forced to visit the table), DuplicatesOk
	// disables the OR-union dedup cost markup.
	Flags Flags
	// OrderBy is offered to a virtual table's best_index dialogue whenever
	// every item belongs to the table being enumerated; nil/empty means
	// there is nothing to offer.
	OrderBy []OrderByItem
}

// NewLoopEnumerator constructs a LoopEnumerator.
func NewLoopEnumerator(a *Analyser, tables TableLookup, cursors *bitset.Map, vtables map[int]catalog.VirtualTable, flags Flags) *LoopEnumerator {
	return &LoopEnumerator{Analyser: a, Tables: tables, Cursors: cursors, VTables: vtables, Flags: flags}
}

// EnumerateTable inserts every candidate loop for cursor into pool. extra
// is the phantom LEFT JOIN prereq mask that every candidate for this table
// must carry. indexedBy/notIndexed mirror the FROM entry's INDEXED BY/NOT
// INDEXED override: indexedBy, if non-empty, restricts index candidates to
// the named index; notIndexed suppresses every declared index (and the
// automatic covering index), leaving only the full scan.
func (le *LoopEnumerator) EnumerateTable(store *TermStore, pool *CandidatePool, cursor int, extra bitset.Mask, indexedBy string, notIndexed bool) error {
	if indexedBy != "" && notIndexed {
		// A FROM entry naming both INDEXED BY and NOT INDEXED asks for an
		// index and for no index in the same breath; no plan satisfies it.
		return ErrNoSolution.New()
	}

	if vt, ok := le.VTables[cursor]; ok && vt != nil {
		return le.enumerateVirtualTable(store, pool, cursor, extra, vt)
	}

	table := le.Tables(cursor)
	if table == nil {
		return nil
	}
	self := le.Cursors.MaskOf(cursor)

	pool.Insert(&CandidateLoop{
		TableIndex: cursor,
		Self:       self,
		Prereq:     extra,
		Run:        cost.FromRows(table.RowCount),
		RowEst:     cost.FromRows(table.RowCount),
	})

	if notIndexed {
		return nil
	}

	indexes := table.Idxs
	if table.FindPrimaryKey() == nil && table.RowidAlias >= 0 {
		indexes = append(append([]*catalog.Index{}, indexes...), &catalog.Index{
			Name:     "rowid",
			Cols:     []int{table.RowidAlias},
			Desc:     []bool{false},
			Unique:   true,
			Primary:  true,
			Covering: true,
			RowEst:   []float64{table.RowCount, 1},
		})
	}
	if indexedBy != "" {
		var named *catalog.Index
		for _, idx := range indexes {
			if idx.Name == indexedBy {
				named = idx
				break
			}
		}
		if named == nil {
			// INDEXED BY naming an index this table doesn't have is the
			// same contradiction as INDEXED BY plus NOT INDEXED: the
			// caller asked for a specific access path that cannot exist.
			return ErrNoSolution.New()
		}
		indexes = []*catalog.Index{named}
	}

	anyIndexMatched := false
	for _, idx := range indexes {
		if le.emitIndexCandidates(store, pool, cursor, self, extra, table, idx) {
			anyIndexMatched = true
		}
	}
	if !anyIndexMatched && indexedBy == "" {
		le.emitAutoIndexCandidate(store, pool, cursor, self, extra, table)
	}

	le.emitOrUnionCandidates(store, pool, cursor, self, extra, table)
	return nil
}

// emitIndexCandidates walks idx's columns left to right, extending an
// equality/IN/IS-NULL prefix as far as FindTerm can take it, and emitting
// one CandidateLoop per prefix length reached (shorter prefixes included,
// so the dominance pass can choose among them). If the prefix stops at a
// column with no equality-class term, a single range bound (lower, upper,
// or both) closes it instead. Returns whether any candidate beyond the
// trivial zero-prefix scan was emitted.
func (le *LoopEnumerator) emitIndexCandidates(store *TermStore, pool *CandidatePool, cursor int, self, extra bitset.Mask, table *catalog.Table, idx *catalog.Index) bool {
	prereq := extra
	var consumed []int
	var flags WsFlag
	eqCount := 0
	matched := false

	for k := 0; k < len(idx.Cols); k++ {
		col := idx.Cols[k]
		collation := table.IndexCollation(idx, k)

		if t, ok := le.Analyser.FindTerm(store, cursor, col, OpClassEq|OpClassIn|OpClassIsNull, collation); ok && t.UsableAsSeekKey() {
			eqCount++
			consumed = append(consumed, store.IndexOf(t))
			prereq = prereq.Union(termPrereq(t, self))
			switch {
			case t.Op&OpClassIn != 0:
				flags |= WsIn
			case t.Op&OpClassIsNull != 0:
				flags |= WsIsNull
			default:
				flags |= WsEq
			}
			le.emitCandidate(store, pool, cursor, self, table, idx, eqCount, false, prereq, flags, consumed, nil, t)
			matched = true
			continue
		}

		lowT, lowOk := le.Analyser.FindTerm(store, cursor, col, OpClassLower, collation)
		highT, highOk := le.Analyser.FindTerm(store, cursor, col, OpClassUpper, collation)
		if lowOk || highOk {
			rangeFlags := flags
			rangePrereq := prereq
			var rangeTerms []int
			if lowOk {
				rangeFlags |= WsLower
				rangeTerms = append(rangeTerms, store.IndexOf(lowT))
				rangePrereq = rangePrereq.Union(termPrereq(lowT, self))
			}
			if highOk {
				rangeFlags |= WsUpper
				rangeTerms = append(rangeTerms, store.IndexOf(highT))
				rangePrereq = rangePrereq.Union(termPrereq(highT, self))
			}
			le.emitCandidate(store, pool, cursor, self, table, idx, eqCount, true, rangePrereq, rangeFlags, consumed, rangeTerms, nil)
			matched = true
		}
		break
	}

	if eqCount == 0 && len(idx.Cols) >= 2 {
		le.emitSkipScanCandidate(store, pool, cursor, self, extra, table, idx)
	}

	return matched
}

// emitCandidate builds and inserts one CandidateLoop for idx bound to an
// nEq-column equality prefix, optionally closed by a range (rangeTerms).
// eqTerm is the term that produced the final equality-class column, used
// to refine the row estimate via the selectivity oracle when it carries a
// literal RHS. When hasRange is set, rangeTerms' literal bounds (when they
// have one) are passed to RangeScanEstimate so idx.Samples, if present,
// can refine the estimate instead of the flat /4-per-bound heuristic.
func (le *LoopEnumerator) emitCandidate(store *TermStore, pool *CandidatePool, cursor int, self bitset.Mask, table *catalog.Table, idx *catalog.Index, nEq int, hasRange bool, prereq bitset.Mask, flags WsFlag, consumed, rangeTerms []int, eqTerm *Term) {
	rowEst := cost.FromRows(idx.RowEstAt(nEq))
	if eqTerm != nil {
		if key, ok := encodeTermKey(eqTerm); ok {
			if flags&WsIn != 0 {
				rowEst = InScanEstimate(idx, [][]byte{key})
			} else {
				rowEst = EqualScanEstimate(idx, key)
			}
		}
	}
	if hasRange {
		if len(idx.Samples) == 0 {
			rows := idx.RowEstAt(nEq)
			if flags&WsLower != 0 {
				rows /= 4
			}
			if flags&WsUpper != 0 {
				rows /= 4
			}
			rowEst = cost.FromRows(rows)
		} else {
			var lo, hi []byte
			for _, ti := range rangeTerms {
				rt := store.Get(ti)
				key, ok := encodeTermKey(rt)
				if !ok {
					continue
				}
				if rt.Op&OpClassLower != 0 {
					lo = key
				}
				if rt.Op&OpClassUpper != 0 {
					hi = key
				}
			}
			rowEst = RangeScanEstimate(idx, lo, hi)
		}
	}

	run := rowEst
	setup := cost.Cost(0)
	if !idx.Covering && !idx.Primary {
		// Every matched row costs an extra table lookup beyond the index scan.
		run = cost.Add(run, rowEst)
	}
	if flags&WsCovering == 0 && idx.Covering && !le.Flags.ForceTable {
		flags |= WsCovering
	}
	if idx.Unique && nEq == len(idx.Cols) && !hasRange {
		flags |= WsUnique
		if idx.RowEstAt(nEq) <= 1 {
			flags |= WsOneRow
		}
	}

	loop := &CandidateLoop{
		TableIndex: cursor,
		Index:      idx,
		Self:       self,
		Prereq:     prereq,
		Setup:      setup,
		Run:        run,
		RowEst:     rowEst,
		NEq:        nEq,
		HasRange:   hasRange,
		Flags:      flags,
		LTerms:     append(append([]int{}, consumed...), rangeTerms...),
	}
	pool.Insert(loop)
}

// emitSkipScanCandidate offers a supplemented access path: when idx's
// leading column has no usable term but its second column does, the
// engine can still use the index by iterating once per distinct value of
// the leading column. The extra iteration cost is the ratio between the
// index's unconstrained row estimate and its one-column-bound estimate,
// approximating the leading column's distinct-value count.
func (le *LoopEnumerator) emitSkipScanCandidate(store *TermStore, pool *CandidatePool, cursor int, self, extra bitset.Mask, table *catalog.Table, idx *catalog.Index) {
	col := idx.Cols[1]
	collation := table.IndexCollation(idx, 1)
	t, ok := le.Analyser.FindTerm(store, cursor, col, OpClassEq|OpClassIn, collation)
	if !ok || !t.UsableAsSeekKey() {
		return
	}

	distinct := idx.RowEstAt(0) / idx.RowEstAt(1)
	if distinct < 1 {
		distinct = 1
	}
	perValue := cost.FromRows(idx.RowEstAt(2))
	run := cost.Mul(perValue, distinct)
	if !idx.Covering && !idx.Primary {
		run = cost.Add(run, run)
	}

	pool.Insert(&CandidateLoop{
		TableIndex: cursor,
		Index:      idx,
		Self:       self,
		Prereq:     extra.Union(termPrereq(t, self)),
		Run:        run,
		RowEst:     cost.FromRows(idx.RowEstAt(2) * distinct),
		NEq:        1,
		Flags:      WsEq | WsSkipScan,
		LTerms:     []int{store.IndexOf(t)},
	})
}

// emitAutoIndexCandidate offers the automatic-covering-index path: when no
// declared index matched any term, but some column does have a usable
// equality term, a transient single-column index is worth building for
// this one query. Its one-time build cost is a full table scan; each seek
// after that is estimated at a flat tenth of the table's rows, doubled
// for the table lookup, without consulting any histogram.
func (le *LoopEnumerator) emitAutoIndexCandidate(store *TermStore, pool *CandidatePool, cursor int, self, extra bitset.Mask, table *catalog.Table) {
	if len(table.Cols) > 64 {
		// Tables wider than 64 columns get no automatic index candidate:
		// emitAutoIndexForColumn returns at once for column -1, and no
		// per-column or shared key is tried.
		le.emitAutoIndexForColumn(store, pool, cursor, self, extra, table, -1)
		return
	}
	for col := range table.Cols {
		le.emitAutoIndexForColumn(store, pool, cursor, self, extra, table, col)
	}
}

func (le *LoopEnumerator) emitAutoIndexForColumn(store *TermStore, pool *CandidatePool, cursor int, self, extra bitset.Mask, table *catalog.Table, col int) {
	if col < 0 {
		return
	}
	t, ok := le.Analyser.FindTerm(store, cursor, col, OpClassEq|OpClassIn, table.Cols[col].Collation)
	if !ok || !t.UsableAsSeekKey() {
		return
	}

	build := cost.FromRows(table.RowCount)
	rowEst := cost.FromRows(table.RowCount / 10)
	run := cost.Add(rowEst, rowEst)

	pool.Insert(&CandidateLoop{
		TableIndex:   cursor,
		AutoIndexKey: col + 1,
		Self:         self,
		Prereq:       extra.Union(termPrereq(t, self)),
		Setup:        build,
		Run:          run,
		RowEst:       rowEst,
		NEq:          1,
		Flags:        WsEq | WsAutoIndex,
		LTerms:       []int{store.IndexOf(t)},
	})
}

// emitOrUnionCandidates builds one CandidateLoop per un-rewritten OR term
// whose IndexableMask admits cursor: a union of per-branch index seeks,
// deduplicated against rows already yielded by an earlier branch. The
// per-branch cost is the one-column equality estimate of the first index
// led by that branch's column, or a full scan when there is none;
// branches beyond nOrCost fall back to a full scan
// estimate instead of being solved individually.
func (le *LoopEnumerator) emitOrUnionCandidates(store *TermStore, pool *CandidatePool, cursor int, self, extra bitset.Mask, table *catalog.Table) {
	for _, term := range store.All() {
		if term.IsCoded() || !term.Flags.Has(TermOrInfo) || term.Op != OpClassOr {
			continue
		}
		if term.Or == nil || !term.Or.IndexableMask.Intersects(self) {
			continue
		}

		branches := term.Or.Store.All()
		var total cost.Cost
		var prereq = extra
		for i, branch := range branches {
			if i >= nOrCost {
				total = cost.Add(total, cost.FromRows(table.RowCount))
				continue
			}
			branchCost := cost.FromRows(table.RowCount)
			if branch.HasLeftColumn && branch.LeftCursor == cursor {
				idx := findIndexOnColumn(table, branch.LeftColumn)
				if idx != nil {
					branchCost = cost.FromRows(idx.RowEstAt(1))
				}
			}
			prereq = prereq.Union(termPrereq(branch, self))
			total = cost.Add(total, branchCost)
		}
		if !le.Flags.DuplicatesOk {
			// +log2(3.5) dedup markup for the cost of checking each union row
			// against the rowids already yielded by an earlier branch.
			total = cost.Mul(total, 3.5)
		}

		pool.Insert(&CandidateLoop{
			TableIndex: cursor,
			Self:       self,
			Prereq:     prereq,
			Run:        total,
			RowEst:     total,
			Flags:      WsMultiOr,
			LTerms:     []int{store.IndexOf(term)},
		})
	}
}

func findIndexOnColumn(table *catalog.Table, col int) *catalog.Index {
	for _, idx := range table.Idxs {
		if len(idx.Cols) > 0 && idx.Cols[0] == col {
			return idx
		}
	}
	return nil
}

// enumerateVirtualTable runs the planner's side of the best_index dialogue
// across the four phases spec.md §4 mandates — constants without IN,
// constants with IN, non-constants without IN, and finally everything —
// and inserts one CandidateLoop per distinct plan the extension returns.
// Each phase's query lists only the terms that phase admits (see
// filterVtabTerms), every one marked Usable; terms outside the phase are
// left out of the query rather than offered as not usable. An extension
// that only understands simple constant comparisons still gets a
// sensible plan from the first phase. The ORDER BY list is offered in
// every phase's query when every item in it belongs to this table, and
// not at all otherwise (see vtabOrderBy).
func (le *LoopEnumerator) enumerateVirtualTable(store *TermStore, pool *CandidatePool, cursor int, extra bitset.Mask, vt catalog.VirtualTable) error {
	self := le.Cursors.MaskOf(cursor)
	var candidateTerms []int
	for i, term := range store.All() {
		if term.IsCoded() || !term.HasLeftColumn || term.LeftCursor != cursor {
			continue
		}
		if term.Op&(OpClassIndexable|OpClassMatch) == 0 {
			continue
		}
		candidateTerms = append(candidateTerms, i)
	}

	orderBy := le.vtabOrderBy(cursor)

	phases := [][]int{
		filterVtabTerms(store, candidateTerms, true, false),
		filterVtabTerms(store, candidateTerms, true, true),
		filterVtabTerms(store, candidateTerms, false, false),
		filterVtabTerms(store, candidateTerms, false, true),
	}

	seen := map[string]bool{}
	for _, usableSet := range phases {
		q := &BestIndexQuery{OrderBy: orderBy}
		termForConstraint := map[int]int{}
		for _, ti := range usableSet {
			t := store.Get(ti)
			termForConstraint[len(q.Constraints)] = ti
			q.Constraints = append(q.Constraints, BestIndexConstraint{
				Column:    t.LeftColumn,
				Op:        vtabOpFor(t.Op),
				Usable:    true,
				TermIndex: ti,
			})
		}

		plan, err := vt.BestIndex(q)
		if err != nil {
			return ErrVirtualTableError.New(vt.Name(), errors.Wrap(err, "best_index").Error())
		}
		if plan == nil {
			continue
		}
		if len(plan.Usage) != len(q.Constraints) {
			return ErrVirtualTablePlanInvalid.New(vt.Name())
		}

		dedupKey := fmt.Sprintf("%d#%s", plan.IdxNum, plan.IdxStr)
		if seen[dedupKey] {
			continue
		}
		seen[dedupKey] = true

		var consumed []int
		var prereq = extra
		for ci, usage := range plan.Usage {
			if usage.ArgvIndex == 0 {
				continue
			}
			ti := termForConstraint[ci]
			consumed = append(consumed, ti)
			prereq = prereq.Union(termPrereq(store.Get(ti), self))
		}

		pool.Insert(&CandidateLoop{
			TableIndex:   cursor,
			Self:         self,
			Prereq:       prereq,
			Run:          cost.FromRows(plan.EstimatedCost),
			RowEst:       cost.FromRows(plan.EstimatedRows),
			Flags:        WsVirtualTable,
			LTerms:       consumed,
			VIdxNum:      plan.IdxNum,
			VIdxStr:      plan.IdxStr,
			VIdxStrOwned: plan.IdxStrOwned,
			VUsage:       plan.Usage,
			VTabOrdered:  plan.OrderByConsumed,
		})
	}
	return nil
}

// filterVtabTerms narrows terms to one best_index phase: constantOnly
// excludes any term whose RHS depends on another table (PrereqRight
// non-empty); allowIn controls whether an OpClassIn term is offered at
// all, since an IN-list is a pricier constraint for an extension to plan
// around than a single comparison.
func filterVtabTerms(store *TermStore, terms []int, constantOnly, allowIn bool) []int {
	var out []int
	for _, ti := range terms {
		t := store.Get(ti)
		if constantOnly && !t.PrereqRight.IsEmpty() {
			continue
		}
		if !allowIn && t.Op&OpClassIn != 0 {
			continue
		}
		out = append(out, ti)
	}
	return out
}

// vtabOrderBy returns the ORDER BY list offered to cursor's best_index
// dialogue: every item when every one of them belongs to cursor, nil
// otherwise (an extension can only claim to satisfy an ORDER BY it fully
// owns — a mixed-table ORDER BY can never be its responsibility alone).
func (le *LoopEnumerator) vtabOrderBy(cursor int) []catalog.BestIndexOrderColumn {
	if len(le.OrderBy) == 0 {
		return nil
	}
	out := make([]catalog.BestIndexOrderColumn, 0, len(le.OrderBy))
	for _, item := range le.OrderBy {
		if item.Cursor != cursor {
			return nil
		}
		out = append(out, catalog.BestIndexOrderColumn{Column: item.Column, Desc: item.Desc})
	}
	return out
}

func vtabOpFor(op OperatorClass) catalog.BestIndexConstraintOp {
	switch {
	case op&OpClassEq != 0:
		return catalog.VtabEq
	case op&OpClassLt != 0:
		return catalog.VtabLt
	case op&OpClassLe != 0:
		return catalog.VtabLe
	case op&OpClassGt != 0:
		return catalog.VtabGt
	case op&OpClassGe != 0:
		return catalog.VtabGe
	case op&OpClassMatch != 0:
		return catalog.VtabMatch
	default:
		return catalog.VtabEq
	}
}

// termPrereq is the dependency mask a candidate driven by t must carry:
// every table t depends on other than self, including the phantom
// extra-right dependency folded into PrereqAll by AnalyseOnClause. Using
// PrereqAll rather than PrereqRight here is what makes a LEFT JOIN's
// ON-clause equality unusable to drive a loop for a table to its left —
// PrereqAll carries the phantom dependency that PrereqRight does not.
func termPrereq(t *Term, self bitset.Mask) bitset.Mask {
	return t.PrereqAll.Subtract(self)
}

// encodeTermKey returns a bytewise-comparable encoding of t's RHS literal,
// when it has one, for the selectivity oracle. Non-literal RHS values
// (columns, params, subqueries) have no fixed encoding at plan time.
func encodeTermKey(t *Term) ([]byte, bool) {
	cmp, ok := t.Expr.(*expr.Comparison)
	if !ok {
		return nil, false
	}
	lit, ok := cmp.Right.(*expr.Literal)
	if !ok {
		return nil, false
	}
	switch v := lit.Value.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
