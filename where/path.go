package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/cost"
)

// ObStatus is the tri-valued ORDER BY / DISTINCT satisfaction decision a
// partial path carries forward generation to generation: a plain boolean
// plus "still don't know" can't express that the solver may yet resolve
// Unknown with a later loop, so callers are forced to handle all three.
type ObStatus int

const (
	ObUnknown ObStatus = iota
	ObSatisfied
	ObNotSatisfied
)

// WherePath is one partial (or full) candidate join order under
// construction by the solver: an ordered list of loops, the accumulated
// table mask and cost, and the running ORDER BY / DISTINCT verdict.
type WherePath struct {
	Loops []*CandidateLoop
	// MaskLoop is the union of every loop's Self bit chosen so far.
	MaskLoop bitset.Mask
	// RevMask has one bit set per level (in Loops order) that must scan
	// its index in descending key order to match ORDER BY direction.
	RevMask bitset.Mask

	Cost   cost.Cost
	RowEst cost.Cost

	ObStatus ObStatus
	// ObSat and OrderDistinct are carried along by Clone but not filled
	// in by the solver: ORDER BY satisfaction is recomputed from Loops on
	// each evaluation and only its verdict is kept, in ObStatus.
	ObSat         uint64
	OrderDistinct bool
}

// Clone returns a shallow copy of p suitable for extending with one more
// loop without mutating the original (the solver keeps up to M surviving
// paths per generation and must not let extensions alias each other).
func (p *WherePath) Clone() *WherePath {
	loops := make([]*CandidateLoop, len(p.Loops))
	copy(loops, p.Loops)
	return &WherePath{
		Loops:         loops,
		MaskLoop:      p.MaskLoop,
		RevMask:       p.RevMask,
		Cost:          p.Cost,
		RowEst:        p.RowEst,
		ObStatus:      p.ObStatus,
		ObSat:         p.ObSat,
		OrderDistinct: p.OrderDistinct,
	}
}

// Extend returns a new path with loop appended, the loop's own bit added
// to MaskLoop, and rev set/cleared at the new level per reverse.
func (p *WherePath) Extend(loop *CandidateLoop, reverse bool) *WherePath {
	next := p.Clone()
	next.Loops = append(next.Loops, loop)
	next.MaskLoop = next.MaskLoop.Union(loop.Self)
	if reverse {
		next.RevMask = next.RevMask.Union(bitset.Bit(len(next.Loops) - 1))
	}
	return next
}
