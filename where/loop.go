package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/cost"
)

// WsFlag records how a CandidateLoop drives its table, so the emitter can
// choose opcodes and the dominance pass can compare candidates without
// re-deriving their shape from the underlying index.
type WsFlag uint32

const (
	WsEq WsFlag = 1 << iota
	WsLower
	WsUpper
	WsIn
	WsIsNull
	WsUnique
	WsOneRow
	WsAutoIndex
	WsVirtualTable
	WsMultiOr
	WsCovering
	WsMatch
	// WsSkipScan marks a loop that seeks past distinct values of the
	// index's leading column, left unconstrained, to use a term on its
	// second column instead of falling back to a full index scan.
	WsSkipScan
)

// WsRange is both range-bound flags, used to test "this loop has some
// inequality bound" without caring which side.
const WsRange = WsLower | WsUpper

// CandidateLoop is one table's candidate access path: which index (if
// any), how many leading columns are bound, and the setup/run/row-count
// costs of iterating it once.
type CandidateLoop struct {
	// TableIndex is the FROM-entry position this loop iterates.
	TableIndex int
	// Index is the driving index, or nil for a full table (rowid) scan,
	// an automatic covering index (see AutoIndexKey), or a virtual table.
	Index *catalog.Index
	// AutoIndexKey distinguishes automatic covering index candidates from
	// each other and from a plain full scan when Index is nil; it has no
	// meaning beyond identity.
	AutoIndexKey int

	// Prereq is the set of outer tables this loop requires bound before
	// it can run.
	Prereq bitset.Mask
	// Self is this loop's own table bit, used to test mask_self against
	// a partial path's accumulated loop mask.
	Self bitset.Mask

	Setup  cost.Cost
	Run    cost.Cost
	RowEst cost.Cost

	// NEq is the equality/IN prefix length: the number of leading index
	// columns bound by an equality or IN constraint.
	NEq int
	// HasRange marks a closing range bound past the equality prefix.
	HasRange bool

	Flags WsFlag
	// LTerms holds the indices, into the owning TermStore, of every WHERE
	// term this loop consumes as a seek key.
	LTerms []int

	// VIdxNum/VIdxStr/VIdxStrOwned carry a virtual table's opaque plan
	// identity back to the emitter (WsVirtualTable set).
	VIdxNum      int
	VIdxStr      string
	VIdxStrOwned bool
	// VUsage mirrors catalog.BestIndexUsage per offered constraint, in
	// the order they were offered (LTerms holds only the consumed ones),
	// for the emitter to translate into argv positions.
	VUsage []catalog.BestIndexUsage
	// VTabOrdered is the extension's own is_ordered report (WsVirtualTable
	// set only): the OrderBySatisfier defers to it entirely rather than
	// reasoning about index columns, since a virtual table has none.
	VTabOrdered bool
}

// sortIdentity returns a comparable key grouping candidates that leave
// rows in the same order: candidates with equal identity are weighed
// against each other by the dominance rule in Insert; candidates with
// different identity never dominate one another, since switching index
// changes what order downstream ORDER BY satisfaction sees.
type sortIdentity struct {
	index   *catalog.Index
	auto    int
	virtual bool
	idxNum  int
}

func (c *CandidateLoop) sortIdentity() sortIdentity {
	switch {
	case c.Flags&WsVirtualTable != 0:
		return sortIdentity{virtual: true, idxNum: c.VIdxNum}
	case c.Flags&WsAutoIndex != 0:
		return sortIdentity{auto: c.AutoIndexKey}
	default:
		return sortIdentity{index: c.Index}
	}
}

// CandidatePool holds every CandidateLoop the enumerator has accepted so
// far, across all tables, after weak-dominance pruning.
type CandidatePool struct {
	Loops []*CandidateLoop
}

// NewCandidatePool returns an empty pool.
func NewCandidatePool() *CandidatePool { return &CandidatePool{} }

// dominates reports whether e dominates c per the weak-dominance rule:
// same table, same output order, e's prerequisites a subset of c's, and
// e no worse on setup or run cost.
func dominates(e, c *CandidateLoop) bool {
	if e.TableIndex != c.TableIndex {
		return false
	}
	if e.sortIdentity() != c.sortIdentity() {
		return false
	}
	return e.Prereq.SubsetOf(c.Prereq) && e.Setup <= c.Setup && e.Run <= c.Run
}

// samePrefixExtension reports whether c extends e's index prefix at no
// worse a run cost: a more-constraining candidate on the same index with
// the same prerequisites is strictly better even when dominates(e, c)
// would otherwise hold, since the shorter prefix is never preferable once
// both are equally cheap to run.
func samePrefixExtension(e, c *CandidateLoop) bool {
	if e.Index == nil || e.Index != c.Index {
		return false
	}
	if e.Prereq != c.Prereq {
		return false
	}
	return c.NEq > e.NEq && c.Run <= e.Run
}

// Insert adds c to the pool iff no existing candidate dominates it, and
// removes any existing candidate c weakly dominates (§4.4.5). Returns
// whether c was kept.
func (p *CandidatePool) Insert(c *CandidateLoop) bool {
	keep := make([]*CandidateLoop, 0, len(p.Loops))
	for _, e := range p.Loops {
		if e.TableIndex != c.TableIndex {
			keep = append(keep, e)
			continue
		}
		if samePrefixExtension(e, c) {
			// c supersedes e on the same index; drop e, keep evaluating.
			continue
		}
		if dominates(e, c) {
			return false
		}
		if dominates(c, e) {
			continue // e is dropped
		}
		keep = append(keep, e)
	}
	keep = append(keep, c)
	p.Loops = keep
	return true
}

// ForTable returns every candidate loop for the given FROM-entry position.
func (p *CandidatePool) ForTable(tableIndex int) []*CandidateLoop {
	var out []*CandidateLoop
	for _, c := range p.Loops {
		if c.TableIndex == tableIndex {
			out = append(out, c)
		}
	}
	return out
}
