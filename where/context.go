package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/expr"
	"github.com/sirupsen/logrus"
)

// JoinType classifies one FROM entry's join to its predecessors.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinCross
)

// FromEntry is one element of the caller's FROM list: a table plus
// whatever the parser already pinned down about how it joins.
type FromEntry struct {
	Cursor       int
	Table        *catalog.Table
	VirtualTable catalog.VirtualTable
	// IndexedBy, if non-empty, restricts this entry to the named index;
	// NotIndexed forbids any index and forces a full scan. The two are
	// mutually exclusive by construction upstream.
	IndexedBy  string
	NotIndexed bool
	Join       JoinType
	// OnClause is this entry's ON-clause expression, non-nil only for
	// JoinLeft (Inner/Cross fold their join condition into the WHERE
	// clause instead).
	OnClause expr.Expression
}

// Flags mirrors the external flag set documented in spec.md §6.
type Flags struct {
	OrderByMin     bool
	OrderByMax     bool
	OnepassDesired bool
	DuplicatesOk   bool
	OmitOpenClose  bool
	ForceTable     bool
	AndOnly        bool
	OneTableOnly   bool
	WantDistinct   bool
	GroupBy        bool
	DistinctBy     bool
}

// DistinctKind is the context's verdict on how (or whether) the chosen
// plan already delivers the requested result-set distinctness.
type DistinctKind int

const (
	// DistinctNoop means no DISTINCT/GROUP BY was requested.
	DistinctNoop DistinctKind = iota
	// DistinctUnique means every result row already has a unique key by
	// construction (e.g. a OneRow loop on every table).
	DistinctUnique
	// DistinctOrdered means the chosen plan's iteration order already
	// groups equal result-set values together, so a streaming dedup
	// suffices without a sort.
	DistinctOrdered
	// DistinctUnordered means the caller must still sort (or hash) to
	// find duplicates.
	DistinctUnordered
)

// Result is WhereContext.Plan's output: everything spec.md §6 lists
// under "Output".
type Result struct {
	Levels           []Level
	OkOnePass        bool
	OrderBySatisfied bool
	RequiresSort     bool
	ReverseMask      bitset.Mask
	DistinctKind     DistinctKind
	EstimatedRows    float64
}

// WhereContext is the per-statement workspace spec.md §5 describes: it
// owns the TermStore, the cursor bitmap, the candidate pool, and the
// level array, and latches OutOfMemory across every subsequent step
// once one occurs.
type WhereContext struct {
	Cursors *bitset.Map
	Store   *TermStore
	Pool    *CandidatePool

	Froms []FromEntry
	Flags Flags
	Like  catalog.LikeInfo
	Log   logrus.FieldLogger

	analyser  *Analyser
	enumer    *LoopEnumerator
	tableByID map[int]*catalog.Table
	vtabByID  map[int]catalog.VirtualTable

	// latch holds the sticky error once set; every exported method checks
	// it first and returns it unchanged rather than doing further work.
	latch error
}

// NewWhereContext interns every FromEntry's cursor (left to right, the
// order bitset.Map's LeftOf contract requires) and builds the analyser
// and enumerator over them. Returns bitset.ErrJoinTooWide if froms has
// more than bitset.Width entries.
func NewWhereContext(froms []FromEntry, flags Flags, like catalog.LikeInfo, log logrus.FieldLogger) (*WhereContext, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cursors := bitset.NewMap()
	tableByID := make(map[int]*catalog.Table, len(froms))
	vtabByID := make(map[int]catalog.VirtualTable)
	for _, f := range froms {
		if _, err := cursors.Intern(f.Cursor); err != nil {
			return nil, err
		}
		tableByID[f.Cursor] = f.Table
		if f.VirtualTable != nil {
			vtabByID[f.Cursor] = f.VirtualTable
		}
	}

	tables := func(cursor int) *catalog.Table { return tableByID[cursor] }
	analyser := NewAnalyser(cursors, tables, like, log)
	enumer := NewLoopEnumerator(analyser, tables, cursors, vtabByID, flags)

	return &WhereContext{
		Cursors:   cursors,
		Pool:      NewCandidatePool(),
		Froms:     froms,
		Flags:     flags,
		Like:      like,
		Log:       log,
		analyser:  analyser,
		enumer:    enumer,
		tableByID: tableByID,
		vtabByID:  vtabByID,
	}, nil
}

// tableLookup returns a TableLookup closure over this context's interned
// tables, for callers (e.g. Explain) that need to resolve a cursor id
// back to its catalog descriptor after Plan has returned.
func (c *WhereContext) tableLookup() TableLookup {
	return func(cursor int) *catalog.Table { return c.tableByID[cursor] }
}

// failed reports the latch set by fail, short-circuiting every
// exported step once one has occurred.
func (c *WhereContext) failed() error { return c.latch }

func (c *WhereContext) fail(err error) error {
	if c.latch == nil {
		c.latch = err
	}
	return c.latch
}

// Plan runs the full pipeline spec.md §2 describes: analyse the WHERE
// clause (and every LEFT JOIN's ON clause), enumerate candidate access
// paths for every FROM entry, solve for the cheapest join order, and
// emit the level array. orderBy/mode may be nil/zero when there is no
// ORDER BY, GROUP BY, or DISTINCT list to satisfy.
func (c *WhereContext) Plan(whereExpr expr.Expression, orderBy []OrderByItem, mode OrderByMode) (*Result, error) {
	if err := c.failed(); err != nil {
		return nil, err
	}

	c.Store = c.analyser.AnalyseWhere(whereExpr)
	if err := c.analyseOnClauses(); err != nil {
		return nil, c.fail(err)
	}

	numTables := len(c.Froms)
	if c.Flags.OneTableOnly && numTables > 1 {
		numTables = 1
	}

	c.enumer.OrderBy = orderBy
	leftJoinTables, err := c.enumerateAll(numTables)
	if err != nil {
		return nil, c.fail(err)
	}

	var ob *OrderBySatisfier
	if len(orderBy) > 0 {
		ob = NewOrderBySatisfier(c.analyser, c.Store, func(cursor int) *catalog.Table { return c.tableByID[cursor] }, orderBy, mode)
	}

	solver := NewSolver(c.Pool, numTables, ob)

	var path *WherePath
	if shortcutEligible(c.Flags, numTables, orderBy) {
		path, _ = solver.trySortableIndexShortcut(orderBy[0], c.Flags.OrderByMax)
	}
	if path == nil {
		path, err = solver.Solve()
		if err != nil {
			return nil, c.fail(err)
		}
	}

	emitter := NewPlanEmitter()
	levels := emitter.Emit(c.Store, path, leftJoinTables)

	return &Result{
		Levels:           levels,
		OkOnePass:        c.Flags.OnepassDesired && onePassEligible(path),
		OrderBySatisfied: path.ObStatus == ObSatisfied,
		RequiresSort:     RequiresFinalSort(path),
		ReverseMask:      path.RevMask,
		DistinctKind:     c.distinctKind(path),
		EstimatedRows:    path.RowEst.ToRows(),
	}, nil
}

// analyseOnClauses runs AnalyseOnClause for every JoinLeft entry,
// folding in the phantom extra-right dependency (everything to that
// entry's left, per bitset.Map.LeftOf) and splices the resulting terms
// into the context's single TermStore, remapping each term's Parent
// index by the offset it lands at so the virtual-child cascade
// (TermStore.DisableParentIfDone) still walks correctly post-splice.
func (c *WhereContext) analyseOnClauses() error {
	for _, f := range c.Froms {
		if f.Join != JoinLeft || f.OnClause == nil {
			continue
		}
		extraRight := c.Cursors.LeftOf(f.Cursor)
		onStore := c.analyser.AnalyseOnClause(f.OnClause, extraRight)
		base := c.Store.Len()
		for _, t := range onStore.All() {
			if t.Parent != NoParent {
				t.Parent += base
			}
			c.Store.Append(t)
		}
	}
	return nil
}

// enumerateAll runs LoopEnumerator over every FROM entry up to
// numTables, honouring IndexedBy/NotIndexed, and returns the mask of
// every cursor that is the right-hand side of a LEFT JOIN.
func (c *WhereContext) enumerateAll(numTables int) (bitset.Mask, error) {
	var leftJoinTables bitset.Mask
	for i, f := range c.Froms {
		if i >= numTables {
			break
		}
		var extra bitset.Mask
		if f.Join == JoinLeft {
			extra = c.Cursors.LeftOf(f.Cursor)
			leftJoinTables = leftJoinTables.Union(c.Cursors.MaskOf(f.Cursor))
		}
		if err := c.enumer.EnumerateTable(c.Store, c.Pool, f.Cursor, extra, f.IndexedBy, f.NotIndexed); err != nil {
			return 0, err
		}
	}
	return leftJoinTables, nil
}

// shortcutEligible reports whether Plan should attempt
// trySortableIndexShortcut instead of the full generational search:
// the caller asked for the MIN/MAX shortcut, didn't disable it via
// ForceTable, the query has exactly one table and exactly one ORDER BY
// position to satisfy.
func shortcutEligible(flags Flags, numTables int, orderBy []OrderByItem) bool {
	if flags.ForceTable {
		return false
	}
	if !flags.OrderByMin && !flags.OrderByMax {
		return false
	}
	return numTables == 1 && len(orderBy) == 1
}

// onePassEligible reports whether path's single chosen loop (there must
// be exactly one, since UPDATE/DELETE plan a single target table) is a
// OneRow loop, per spec.md's OnepassDesired flag semantics.
func onePassEligible(path *WherePath) bool {
	if len(path.Loops) == 0 {
		return false
	}
	return path.Loops[0].Flags&WsOneRow != 0
}

// distinctKind derives the context's DistinctKind from the flags the
// caller set and the final path's ORDER BY verdict: WantDistinct with
// every loop OneRow is trivially Unique; otherwise an already-satisfied
// ORDER BY means the DISTINCT key falls out of the iteration order for
// free (Ordered); anything else needs a real dedup pass (Unordered).
func (c *WhereContext) distinctKind(path *WherePath) DistinctKind {
	if !c.Flags.WantDistinct && !c.Flags.DistinctBy {
		return DistinctNoop
	}
	allOneRow := true
	for _, loop := range path.Loops {
		if loop.Flags&WsOneRow == 0 {
			allOneRow = false
			break
		}
	}
	if allOneRow {
		return DistinctUnique
	}
	if path.ObStatus == ObSatisfied {
		return DistinctOrdered
	}
	return DistinctUnordered
}
