package where

import (
	"math"

	"github.com/dolthub/wherecore/cost"
)

// generationWidth is the per-generation survivor count M, keyed by total
// table count: 1 for a single table, 5 for two, 10 for more.
func generationWidth(numTables int) int {
	switch {
	case numTables <= 1:
		return 1
	case numTables == 2:
		return 5
	default:
		return 10
	}
}

// Solver runs the N-best generational dynamic-programming join-order
// search over a CandidatePool, producing the single lowest-cost full
// path across NumTables generations.
type Solver struct {
	Pool      *CandidatePool
	NumTables int
	// OrderBy is consulted whenever a partial path's ObStatus is still
	// Unknown; nil means there is no ORDER BY/GROUP BY/DISTINCT to satisfy.
	OrderBy *OrderBySatisfier
}

// NewSolver constructs a Solver over pool for a join of numTables tables.
func NewSolver(pool *CandidatePool, numTables int, orderBy *OrderBySatisfier) *Solver {
	return &Solver{Pool: pool, NumTables: numTables, OrderBy: orderBy}
}

// Solve runs the full generational search and returns the cheapest full
// path, or ErrNoSolution if some generation has no surviving path.
func (s *Solver) Solve() (*WherePath, error) {
	seed := &WherePath{Cost: cost.FromRows(25), ObStatus: ObUnknown}
	if s.OrderBy == nil || len(s.OrderBy.Items) == 0 {
		seed.ObStatus = ObSatisfied
	}

	gen := []*WherePath{seed}
	width := generationWidth(s.NumTables)

	for g := 0; g < s.NumTables; g++ {
		var next []*WherePath
		for _, f := range gen {
			for _, w := range s.Pool.Loops {
				if !w.Prereq.SubsetOf(f.MaskLoop) {
					continue
				}
				if w.Self.Intersects(f.MaskLoop) {
					continue
				}
				next = mergeGeneration(next, s.extend(f, w), width)
			}
		}
		if len(next) == 0 {
			return nil, ErrNoSolution.New()
		}
		gen = next
	}

	best := gen[0]
	for _, p := range gen[1:] {
		if s.finalCost(p) < s.finalCost(best) {
			best = p
		}
	}
	return best, nil
}

// extend produces the path that results from appending loop w to f,
// including the ORDER BY re-evaluation and synthetic sort surcharge §4.7
// describes.
func (s *Solver) extend(f *WherePath, w *CandidateLoop) *WherePath {
	runContribution := cost.Product(w.Run, f.RowEst)
	stepCost := cost.Add(w.Setup, runContribution)

	t := f.Extend(w, false)
	t.Cost = cost.Add(f.Cost, stepCost)
	t.RowEst = cost.Product(f.RowEst, w.RowEst)

	if f.ObStatus == ObUnknown && s.OrderBy != nil {
		status, revMask := s.OrderBy.Evaluate(t)
		t.ObStatus = status
		t.RevMask = revMask
		if status == ObNotSatisfied {
			t.Cost = cost.Add(t.Cost, sortSurcharge(t.RowEst))
		}
	}
	return t
}

// trySortableIndexShortcut implements the OrderByMin/OrderByMax
// single-row optimization: when exactly one table is in play and some
// candidate loop's index has item.Column as its leading, wholly
// unconstrained key column, the solver can skip the full generational
// search and return a single-loop path that seeks straight to the first
// (or, for MAX, the last) row in that index's order, scanning in
// reverse when the index's native direction disagrees with the
// requested one. Returns false when no such loop exists, leaving the
// caller to fall back to the ordinary search.
func (s *Solver) trySortableIndexShortcut(item OrderByItem, wantMax bool) (*WherePath, bool) {
	if s.NumTables != 1 {
		return nil, false
	}
	for _, loop := range s.Pool.Loops {
		if loop.Index == nil || loop.NEq != 0 || loop.HasRange {
			continue
		}
		if len(loop.Index.Cols) == 0 || loop.Index.Cols[0] != item.Column {
			continue
		}
		nativeDesc := len(loop.Index.Desc) > 0 && loop.Index.Desc[0]
		reverse := nativeDesc != wantMax

		path := (&WherePath{}).Extend(loop, reverse)
		path.Cost = cost.Add(loop.Setup, loop.Run)
		path.RowEst = cost.FromRows(1)
		path.ObStatus = ObSatisfied
		return path, true
	}
	return nil, false
}

// sortSurcharge approximates the deci-bel cost of sorting rowEst rows,
// computed in linear space (rows * log2(rows)) and converted back.
func sortSurcharge(rowEst cost.Cost) cost.Cost {
	rows := rowEst.ToRows()
	if rows <= 1 {
		return 0
	}
	return cost.FromRows(rows * math.Log2(rows))
}

// finalCost is the cost Solve compares full paths by: a path still
// Unknown at the end requires a final sort, so its surcharge is added
// for comparison purposes without mutating the path.
func (s *Solver) finalCost(p *WherePath) cost.Cost {
	if p.ObStatus != ObUnknown {
		return p.Cost
	}
	return cost.Add(p.Cost, sortSurcharge(p.RowEst))
}

// RequiresFinalSort reports whether p's ORDER BY status was still
// Unknown after every generation, meaning the caller must emit a final
// sort rather than relying on iteration order.
func RequiresFinalSort(p *WherePath) bool {
	return p.ObStatus == ObUnknown
}

// mergeGeneration implements the per-generation merge policy: a new path
// t replaces an existing path with equal (MaskLoop, ObStatus) iff t is
// cheaper; otherwise it is appended if capacity remains; otherwise it
// displaces the worst surviving path if t beats it.
func mergeGeneration(gen []*WherePath, t *WherePath, width int) []*WherePath {
	for i, existing := range gen {
		if existing.MaskLoop == t.MaskLoop && existing.ObStatus == t.ObStatus {
			if t.Cost < existing.Cost {
				gen[i] = t
			}
			return gen
		}
	}
	if len(gen) < width {
		return append(gen, t)
	}
	worst := 0
	for i := 1; i < len(gen); i++ {
		if gen[i].Cost > gen[worst].Cost {
			worst = i
		}
	}
	if t.Cost < gen[worst].Cost {
		gen[worst] = t
	}
	return gen
}
