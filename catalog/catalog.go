// Package catalog defines the narrow interface the planner uses to ask
// about tables, indexes, and statistics. The real catalog — schema,
// indexes, column affinities, sample histograms — is owned by the storage
// engine and SQL engine, both external collaborators;
// this package is the contract, not an implementation. Tests build literal
// *Table/*Index fixtures directly rather than going through a loader.
package catalog

import (
	"sort"

	"github.com/dolthub/wherecore/expr"
)

// Table describes one FROM-clause table's shape and statistics.
type Table struct {
	Name string
	Cols []Column
	Idxs []*Index
	// RowCount is the catalog's estimate of the table's total row count.
	RowCount float64
	// RowidAlias is the ordinal of the column that is an INTEGER PRIMARY
	// KEY alias for the table's rowid, or -1 if none.
	RowidAlias int
}

// Column describes one table column.
type Column struct {
	Name      string
	Affinity  expr.Affinity
	Collation string
	Nullable  bool
}

// Index describes one index on a table (the primary key is represented as
// an Index like any other, with Primary set).
type Index struct {
	Name string
	// Cols holds column ordinals (into Table.Cols) in index key order.
	Cols []int
	// Desc[i] is true when Cols[i] is stored descending.
	Desc     []bool
	Unique   bool
	Primary  bool
	Covering bool // whether this index stores every column the planner may need
	// RowEst[k] is the estimated number of rows visited after the leading
	// k columns are equality-bound; len(RowEst) == len(Cols)+1.
	RowEst []float64
	// Samples is an optional sorted histogram over the leading column,
	// used to refine RowEst for specific values/ranges.
	Samples []Sample
}

// Sample is one STAT4-style histogram bucket over an index's leading
// column, sorted ascending by Key.
type Sample struct {
	// Key is the bytewise-comparable encoding of the sampled value.
	Key []byte
	// NLt is the estimated count of rows strictly less than Key.
	NLt float64
	// NEq is the estimated count of rows equal to Key.
	NEq float64
}

// FindPrimaryKey returns t's primary-key index, or nil if the table is
// rowid-only with no declared PK columns.
func (t *Table) FindPrimaryKey() *Index {
	for _, idx := range t.Idxs {
		if idx.Primary {
			return idx
		}
	}
	return nil
}

// IndexAffinity returns the affinity of idx's k'th key column.
func (t *Table) IndexAffinity(idx *Index, k int) expr.Affinity {
	if k < 0 || k >= len(idx.Cols) {
		return expr.AffinityNone
	}
	col := idx.Cols[k]
	if col < 0 || col >= len(t.Cols) {
		return expr.AffinityNone
	}
	return t.Cols[col].Affinity
}

// IndexCollation returns the collation of idx's k'th key column.
func (t *Table) IndexCollation(idx *Index, k int) string {
	if k < 0 || k >= len(idx.Cols) {
		return ""
	}
	col := idx.Cols[k]
	if col < 0 || col >= len(t.Cols) {
		return ""
	}
	return t.Cols[col].Collation
}

// RowEstAt returns idx's row-count estimate after an nEq-column equality
// prefix, clamped to a minimum of 1. An nEq past the last entry uses the
// last entry; an index with no RowEst returns 0.
func (idx *Index) RowEstAt(nEq int) float64 {
	if len(idx.RowEst) == 0 {
		return 0
	}
	if nEq < 0 {
		nEq = 0
	}
	if nEq >= len(idx.RowEst) {
		nEq = len(idx.RowEst) - 1
	}
	v := idx.RowEst[nEq]
	if v < 1 {
		v = 1
	}
	return v
}

// SampleSearch returns the position of the first sample with Key >= key
// (bytewise), and whether that sample's Key equals key exactly.
func (idx *Index) SampleSearch(key []byte) (pos int, exact bool) {
	pos = sort.Search(len(idx.Samples), func(i int) bool {
		return compareBytes(idx.Samples[i].Key, key) >= 0
	})
	if pos < len(idx.Samples) && compareBytes(idx.Samples[pos].Key, key) == 0 {
		return pos, true
	}
	return pos, false
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// LikeInfo describes the SQL engine's LIKE/GLOB function configuration:
// escape character and case sensitivity. The catalog resolves this once
// per statement since it can be overridden (e.g. `PRAGMA case_sensitive_like`).
type LikeInfo struct {
	Escape        rune
	CaseSensitive bool
	IsGlob        bool
}
