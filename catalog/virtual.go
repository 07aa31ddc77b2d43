package catalog

import "github.com/dolthub/wherecore/bitset"

// VirtualTable is the contract for an extension-backed table whose access
// paths are not index descriptors but an opaque dialogue with the
// extension's best_index callback. The callback is
// documented as synchronous and side-effect-free from the planner's point
// of view — the only outward call the planner ever makes.
type VirtualTable interface {
	Name() string
	// BestIndex runs one phase of the dialogue: q lists the WHERE terms
	// on this table that the phase admits plus, if they all belong to it,
	// the ORDER BY columns. The extension returns a BestIndexPlan describing which
	// constraints it will consume and in what form.
	BestIndex(q *BestIndexQuery) (*BestIndexPlan, error)
}

// BestIndexConstraintOp mirrors the planner's own comparison operators,
// restricted to what a virtual-table dialogue can express.
type BestIndexConstraintOp int

const (
	VtabEq BestIndexConstraintOp = iota
	VtabLt
	VtabLe
	VtabGt
	VtabGe
	VtabMatch
)

// BestIndexConstraint is one term offered to the extension in a given
// phase.
type BestIndexConstraint struct {
	Column   int
	Op       BestIndexConstraintOp
	// Usable is true on every constraint the planner offers: each of its
	// four phases (constants without IN, constants with IN, non-constants
	// without IN, everything) varies which terms are listed, not this flag.
	Usable bool
	// TermIndex back-references the WHERE term this constraint came from,
	// so the planner can mark it Coded if the extension adopts it.
	TermIndex int
}

// BestIndexOrderColumn is one ORDER BY position offered to the extension,
// only populated when every ORDER BY expression resolves to a column of
// this table.
type BestIndexOrderColumn struct {
	Column int
	Desc   bool
}

// BestIndexQuery is the planner's request for one phase of the dialogue.
type BestIndexQuery struct {
	Constraints []BestIndexConstraint
	OrderBy     []BestIndexOrderColumn
}

// BestIndexUsage says how the extension will consume one constraint from
// the query: by what argument position (ArgvIndex, 1-based, 0 = omit) and
// whether the planner may skip re-checking it as a residual filter
// (Omit).
type BestIndexUsage struct {
	ArgvIndex int
	Omit      bool
}

// BestIndexPlan is the extension's answer for one phase.
type BestIndexPlan struct {
	// Usage has one entry per constraint offered in the query, in order.
	Usage []BestIndexUsage
	// IdxNum/IdxStr are an opaque plan identity the extension will be
	// handed back at execution time.
	IdxNum int
	IdxStr string
	// IdxStrOwned, when true, means the planner (and then the emitted
	// LevelDescriptor) takes ownership of IdxStr and must not alias it.
	IdxStrOwned bool
	// EstimatedCost is the extension's own cost figure, in whatever units
	// it likes; LoopEnumerator maps it into deci-bels.
	EstimatedCost float64
	EstimatedRows float64
	// OrderByConsumed reports whether the extension's natural iteration
	// order already satisfies every OrderBy column offered in the query.
	OrderByConsumed bool
	// OmittedConstraintMask records which constraints the extension
	// promised to omit from its own residual checking (the planner must
	// not drop them either unless Usage[i].Omit is also set).
	OmittedConstraintMask bitset.Mask
}
