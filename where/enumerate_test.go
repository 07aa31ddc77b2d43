package where

import (
	"testing"

	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/cost"
	"github.com/dolthub/wherecore/expr"
	"github.com/stretchr/testify/require"
)

func setupSingleTable(t *testing.T, table *catalog.Table) (*Analyser, *bitset.Map, *TermStore) {
	t.Helper()
	cursors := bitset.NewMap()
	cursors.Intern(0)
	tables := func(c int) *catalog.Table { return table }
	a := NewAnalyser(cursors, tables, catalog.LikeInfo{}, nil)
	return a, cursors, nil
}

func TestAnalyseWhereClassifiesNotInAsNoop(t *testing.T) {
	cursors := bitset.NewMap()
	cursors.Intern(0)
	a := NewAnalyser(cursors, nil, catalog.LikeInfo{}, nil)

	notIn := &expr.In{X: &expr.Column{Cursor: 0, Col: 0}, List: []expr.Expression{&expr.Literal{Value: int64(1)}}, Not: true}
	store := a.AnalyseWhere(notIn)

	require.Len(t, store.All(), 1)
	term := store.All()[0]
	require.Equal(t, OpClassNoop, term.Op)
	require.False(t, term.UsableAsSeekKey(), "NOT IN must never be usable as an index seek key")
}

func TestEnumerateTableEqualityOnUniqueIndex(t *testing.T) {
	table := &catalog.Table{
		Name:       "t",
		Cols:       []catalog.Column{{Name: "id"}, {Name: "v"}},
		RowCount:   1000,
		RowidAlias: -1,
		Idxs: []*catalog.Index{
			{Name: "pk", Cols: []int{0}, Desc: []bool{false}, Unique: true, Primary: true, Covering: true, RowEst: []float64{1000, 1}},
		},
	}
	a, cursors, _ := setupSingleTable(t, table)

	where := &expr.Comparison{
		Op:    expr.OpEq,
		Left:  &expr.Column{Cursor: 0, Col: 0, Name: "id"},
		Right: &expr.Literal{Value: "k1"},
	}
	store := a.AnalyseWhere(where)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	loops := pool.ForTable(0)
	require.NotEmpty(t, loops)

	var foundUnique bool
	for _, l := range loops {
		if l.Index != nil && l.Index.Unique && l.NEq == 1 {
			foundUnique = true
			require.True(t, l.Flags&WsOneRow != 0)
		}
	}
	require.True(t, foundUnique, "expected a unique single-row candidate")
}

func TestEnumerateTableRangeOnSecondaryIndex(t *testing.T) {
	table := &catalog.Table{
		Name:       "t",
		Cols:       []catalog.Column{{Name: "id"}, {Name: "v", Affinity: expr.AffinityInteger}},
		RowCount:   1000,
		RowidAlias: 0,
		Idxs: []*catalog.Index{
			{Name: "ix_v", Cols: []int{1}, Desc: []bool{false}, RowEst: []float64{1000, 100}},
		},
	}
	a, cursors, _ := setupSingleTable(t, table)

	where := &expr.Comparison{
		Op:    expr.OpGt,
		Left:  &expr.Column{Cursor: 0, Col: 1, Name: "v", Affinity: expr.AffinityInteger},
		Right: &expr.Literal{Value: int64(10)},
	}
	store := a.AnalyseWhere(where)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	var foundRange bool
	for _, l := range pool.ForTable(0) {
		if l.HasRange && l.Flags&WsLower != 0 {
			foundRange = true
		}
	}
	require.True(t, foundRange, "expected a range candidate on ix_v")
}

func TestEnumerateTableAutoIndexWhenNoDeclaredIndexMatches(t *testing.T) {
	table := &catalog.Table{
		Name:       "t",
		Cols:       []catalog.Column{{Name: "id"}, {Name: "v"}},
		RowCount:   500,
		RowidAlias: 0,
	}
	a, cursors, _ := setupSingleTable(t, table)

	where := &expr.Comparison{
		Op:    expr.OpEq,
		Left:  &expr.Column{Cursor: 0, Col: 1, Name: "v"},
		Right: &expr.Literal{Value: "x"},
	}
	store := a.AnalyseWhere(where)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	var foundAuto bool
	for _, l := range pool.ForTable(0) {
		if l.Flags&WsAutoIndex != 0 {
			foundAuto = true
		}
	}
	require.True(t, foundAuto, "expected an automatic covering index candidate")
}

func TestEnumerateVirtualTableUnconstrainedPlan(t *testing.T) {
	cursors := bitset.NewMap()
	cursors.Intern(0)
	a := NewAnalyser(cursors, nil, catalog.LikeInfo{}, nil)
	store := a.AnalyseWhere(nil)

	vt := &fakeVirtualTable{plan: &catalog.BestIndexPlan{EstimatedCost: 100, EstimatedRows: 50}}
	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, nil, cursors, map[int]catalog.VirtualTable{0: vt}, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	loops := pool.ForTable(0)
	require.Len(t, loops, 1)
	require.True(t, loops[0].Flags&WsVirtualTable != 0)
}

type fakeVirtualTable struct {
	plan *catalog.BestIndexPlan
}

func (f *fakeVirtualTable) Name() string { return "fake" }
func (f *fakeVirtualTable) BestIndex(q *catalog.BestIndexQuery) (*catalog.BestIndexPlan, error) {
	usage := make([]catalog.BestIndexUsage, len(q.Constraints))
	p := *f.plan
	p.Usage = usage
	return &p, nil
}

// recordingVirtualTable records every BestIndexQuery it's handed, so a
// test can inspect exactly what each dialogue phase offered.
type recordingVirtualTable struct {
	queries []*catalog.BestIndexQuery
}

func (r *recordingVirtualTable) Name() string { return "rec" }
func (r *recordingVirtualTable) BestIndex(q *catalog.BestIndexQuery) (*catalog.BestIndexPlan, error) {
	r.queries = append(r.queries, q)
	return nil, nil
}

func TestEnumerateVirtualTableFourPhaseDialogueSeparatesIN(t *testing.T) {
	cursors := bitset.NewMap()
	cursors.Intern(0)
	a := NewAnalyser(cursors, nil, catalog.LikeInfo{}, nil)

	eqTerm := &expr.Comparison{Op: expr.OpEq, Left: &expr.Column{Cursor: 0, Col: 0}, Right: &expr.Literal{Value: int64(1)}}
	inTerm := &expr.In{X: &expr.Column{Cursor: 0, Col: 1}, List: []expr.Expression{&expr.Literal{Value: int64(1)}, &expr.Literal{Value: int64(2)}}}
	store := a.AnalyseWhere(&expr.And{Terms: []expr.Expression{eqTerm, inTerm}})

	vt := &recordingVirtualTable{}
	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, nil, cursors, map[int]catalog.VirtualTable{0: vt}, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	require.Len(t, vt.queries, 4, "expected one BestIndex call per dialogue phase")
	require.Len(t, vt.queries[0].Constraints, 1, "phase 1 (constants without IN) should exclude the IN term")
	require.Len(t, vt.queries[1].Constraints, 2, "phase 2 (constants with IN) should include both terms")
	require.Len(t, vt.queries[3].Constraints, 2, "final phase (everything) should include both terms")
}

func TestEnumerateVirtualTableOffersOrderByWhenFullyOwned(t *testing.T) {
	cursors := bitset.NewMap()
	cursors.Intern(0)
	a := NewAnalyser(cursors, nil, catalog.LikeInfo{}, nil)
	store := a.AnalyseWhere(nil)

	vt := &recordingVirtualTable{}
	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, nil, cursors, map[int]catalog.VirtualTable{0: vt}, Flags{})
	le.OrderBy = []OrderByItem{{Cursor: 0, Column: 2, Desc: true}}
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	require.NotEmpty(t, vt.queries)
	require.Equal(t, []catalog.BestIndexOrderColumn{{Column: 2, Desc: true}}, vt.queries[0].OrderBy)
}

func TestEnumerateVirtualTableWithholdsOrderByWhenNotFullyOwned(t *testing.T) {
	cursors := bitset.NewMap()
	cursors.Intern(0)
	cursors.Intern(1)
	a := NewAnalyser(cursors, nil, catalog.LikeInfo{}, nil)
	store := a.AnalyseWhere(nil)

	vt := &recordingVirtualTable{}
	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, nil, cursors, map[int]catalog.VirtualTable{0: vt}, Flags{})
	le.OrderBy = []OrderByItem{{Cursor: 0, Column: 2}, {Cursor: 1, Column: 0}}
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	require.NotEmpty(t, vt.queries)
	require.Nil(t, vt.queries[0].OrderBy)
}

func TestEmitCandidateRefinesRangeEstimateFromHistogram(t *testing.T) {
	table := &catalog.Table{
		Name:       "t",
		Cols:       []catalog.Column{{Name: "v", Affinity: expr.AffinityInteger}},
		RowCount:   1000,
		RowidAlias: -1,
		Idxs: []*catalog.Index{{
			Name: "ix_v", Cols: []int{0}, Desc: []bool{false}, RowEst: []float64{1000, 100},
			Samples: []catalog.Sample{
				{Key: []byte{10}, NLt: 100, NEq: 5},
				{Key: []byte{50}, NLt: 600, NEq: 5},
			},
		}},
	}
	a, cursors, _ := setupSingleTable(t, table)

	where := &expr.And{Terms: []expr.Expression{
		&expr.Comparison{Op: expr.OpGe, Left: &expr.Column{Cursor: 0, Col: 0, Affinity: expr.AffinityInteger}, Right: &expr.Literal{Value: []byte{10}}},
		&expr.Comparison{Op: expr.OpLt, Left: &expr.Column{Cursor: 0, Col: 0, Affinity: expr.AffinityInteger}, Right: &expr.Literal{Value: []byte{50}}},
	}}
	store := a.AnalyseWhere(where)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	var rangeLoop *CandidateLoop
	for _, l := range pool.ForTable(0) {
		if l.HasRange {
			rangeLoop = l
		}
	}
	require.NotNil(t, rangeLoop)
	// Histogram says ~500 rows lie in [10,50); the blanket /4 heuristic
	// would have said 1000/16 = 62.5. Confirms the real bounds were used.
	require.InDelta(t, cost.FromRows(500).ToRows(), rangeLoop.RowEst.ToRows(), 0.01)
}

func TestEnumerateTableForceTableDisablesCovering(t *testing.T) {
	table := &catalog.Table{
		Name:       "t",
		Cols:       []catalog.Column{{Name: "id"}},
		RowCount:   1000,
		RowidAlias: -1,
		Idxs: []*catalog.Index{
			{Name: "pk", Cols: []int{0}, Unique: true, Primary: true, Covering: true, RowEst: []float64{1000, 1}},
		},
	}
	a, cursors, _ := setupSingleTable(t, table)
	where := &expr.Comparison{Op: expr.OpEq, Left: &expr.Column{Cursor: 0, Col: 0}, Right: &expr.Literal{Value: int64(1)}}
	store := a.AnalyseWhere(where)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{ForceTable: true})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", false))

	for _, l := range pool.ForTable(0) {
		if l.Index != nil {
			require.Zero(t, l.Flags&WsCovering, "ForceTable should suppress IdxOnly/covering")
		}
	}
}

func TestEnumerateTableIndexedByRestrictsToNamedIndex(t *testing.T) {
	table := &catalog.Table{
		Name:       "t",
		Cols:       []catalog.Column{{Name: "a"}, {Name: "b"}},
		RowCount:   1000,
		RowidAlias: -1,
		Idxs: []*catalog.Index{
			{Name: "ix_a", Cols: []int{0}, RowEst: []float64{1000, 10}},
			{Name: "ix_b", Cols: []int{1}, RowEst: []float64{1000, 10}},
		},
	}
	a, cursors, _ := setupSingleTable(t, table)
	where := &expr.And{Terms: []expr.Expression{
		&expr.Comparison{Op: expr.OpEq, Left: &expr.Column{Cursor: 0, Col: 0}, Right: &expr.Literal{Value: int64(1)}},
		&expr.Comparison{Op: expr.OpEq, Left: &expr.Column{Cursor: 0, Col: 1}, Right: &expr.Literal{Value: int64(2)}},
	}}
	store := a.AnalyseWhere(where)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "ix_b", false))

	for _, l := range pool.ForTable(0) {
		if l.Index != nil {
			require.Equal(t, "ix_b", l.Index.Name)
		}
	}
}

func TestEnumerateTableNotIndexedSuppressesAllIndexes(t *testing.T) {
	table := &catalog.Table{
		Name:       "t",
		Cols:       []catalog.Column{{Name: "a"}},
		RowCount:   1000,
		RowidAlias: -1,
		Idxs:       []*catalog.Index{{Name: "ix_a", Cols: []int{0}, RowEst: []float64{1000, 10}}},
	}
	a, cursors, _ := setupSingleTable(t, table)
	where := &expr.Comparison{Op: expr.OpEq, Left: &expr.Column{Cursor: 0, Col: 0}, Right: &expr.Literal{Value: int64(1)}}
	store := a.AnalyseWhere(where)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	require.NoError(t, le.EnumerateTable(store, pool, 0, bitset.Empty, "", true))

	for _, l := range pool.ForTable(0) {
		require.Nil(t, l.Index)
	}
}

func TestEnumerateTableContradictoryIndexedByIsNoSolution(t *testing.T) {
	table := &catalog.Table{Name: "t", Cols: []catalog.Column{{Name: "a"}}, RowCount: 100, RowidAlias: -1}
	a, cursors, _ := setupSingleTable(t, table)
	store := a.AnalyseWhere(nil)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	err := le.EnumerateTable(store, pool, 0, bitset.Empty, "ix_a", true)
	require.Error(t, err)
	require.True(t, ErrNoSolution.Is(err))
}

func TestEnumerateTableIndexedByNamingMissingIndexIsNoSolution(t *testing.T) {
	table := &catalog.Table{Name: "t", Cols: []catalog.Column{{Name: "a"}}, RowCount: 100, RowidAlias: -1}
	a, cursors, _ := setupSingleTable(t, table)
	store := a.AnalyseWhere(nil)

	pool := NewCandidatePool()
	le := NewLoopEnumerator(a, func(int) *catalog.Table { return table }, cursors, nil, Flags{})
	err := le.EnumerateTable(store, pool, 0, bitset.Empty, "no_such_index", false)
	require.Error(t, err)
	require.True(t, ErrNoSolution.Is(err))
}
