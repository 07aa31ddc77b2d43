// Package vmplan defines the wire contract between the planner's
// PlanEmitter and the downstream bytecode generator. The code
// generator itself is an external collaborator, out of scope for this
// module; this package is only the shape of what PlanEmitter hands it.
package vmplan

// Label is a jump target the code generator resolves at code-emission
// time; the planner only allocates and wires labels together, it never
// assigns them concrete addresses.
type Label int

// NoLabel means "no jump needed here".
const NoLabel Label = 0

// CursorID identifies a VM cursor opened against either a table or one of
// its indexes.
type CursorID int

// Opcode names the seek/termination strategy a level uses, chosen by
// PlanEmitter from a fixed decision table over start variants
// (by start_constraints?/start_eq?/reverse?) and end variants
// (by has_end?/end_eq?/reverse?).
type Opcode int

const (
	// OpFullScan has no start or end constraint: iterate every row.
	OpFullScan Opcode = iota
	// OpSeekGE seeks to the first key >= the start constraint.
	OpSeekGE
	// OpSeekGT seeks to the first key > the start constraint.
	OpSeekGT
	// OpSeekLE seeks to the last key <= the start constraint (reverse scan).
	OpSeekLE
	// OpSeekLT seeks to the last key < the start constraint (reverse scan).
	OpSeekLT
	// OpSeekEQ seeks to an equality prefix match (possibly the whole key).
	OpSeekEQ
	// OpRowid seeks by a forward equality start with no end bound; the
	// decision table picks it whether or not the key is unique.
	OpRowid
	// OpNoop is used for a loop whose access is fully delegated to a
	// virtual table or to an OR-union's shared body.
	OpNoop
)

// StartVariant and EndVariant are the decision table's two axes, named so
// PlanEmitter's opcode choice can be unit tested independent of the rest
// of plan emission.
type StartVariant struct {
	HasConstraint bool
	Equality      bool
	Reverse       bool
}

// EndVariant is the termination test counterpart to StartVariant.
type EndVariant struct {
	HasConstraint bool
	Equality      bool
	Reverse       bool
}

// ChooseOpcode implements the fixed decision table.
func ChooseOpcode(start StartVariant, end EndVariant) Opcode {
	switch {
	case !start.HasConstraint && !end.HasConstraint:
		return OpFullScan
	case start.Equality && end.Equality && !start.Reverse:
		return OpSeekEQ
	case start.HasConstraint && !start.Reverse && start.Equality && !end.HasConstraint:
		return OpRowid
	case start.HasConstraint && !start.Reverse:
		if start.Equality {
			return OpSeekGE
		}
		return OpSeekGT
	case start.HasConstraint && start.Reverse:
		if start.Equality {
			return OpSeekLE
		}
		return OpSeekLT
	case !start.HasConstraint && end.HasConstraint:
		if end.Reverse {
			return OpSeekLE
		}
		return OpSeekGE
	default:
		return OpFullScan
	}
}

// LevelDescriptor is one element of the emitted plan: the VM-facing shape
// of one FROM-entry's chosen access path, independent of the planner's own
// CandidateLoop representation.
type LevelDescriptor struct {
	// TableCursor is the VM cursor opened against the table itself.
	TableCursor CursorID
	// IndexCursor is the VM cursor opened against the driving index, equal
	// to TableCursor when the loop has no separate index cursor (a full
	// table scan, or a seek keyed directly on rowid).
	IndexCursor CursorID

	Op Opcode

	// ContinueLabel/BreakLabel are the jump targets for "next row" and
	// "loop exhausted". NextInLabel is the jump target for an IN-expanded
	// equality's next value, or NoLabel when this level has none.
	ContinueLabel Label
	BreakLabel    Label
	NextInLabel   Label

	Payload LevelPayload

	// LeftJoinMatchRegister is the "any match seen yet" register id for a
	// LEFT JOIN's right-hand level, or 0 when this level is not one.
	LeftJoinMatchRegister int
}

// InLoopCursor describes one IN-expanded equality's micro-loop: a cursor
// iterating the IN list's (or IN subquery's) values, rebinding the outer
// seek key on every iteration.
type InLoopCursor struct {
	Cursor   CursorID
	NextLoop Label
}

// LevelPayload distinguishes the two shapes a level's extra state can
// take: a set of IN-loop cursors (one per IN-expanded equality column), or
// a back-pointer into a shared OR-union body.
type LevelPayload struct {
	InLoops []InLoopCursor
	// ORUnionBody, when non-zero, is the label of the shared body that
	// every sub-scan of an OR-union plan jumps to.
	ORUnionBody Label
	// DedupRegister is the row-key-set register used to deduplicate an
	// OR-union's sub-scans, when deduplication is required (DuplicatesOk
	// flag unset).
	DedupRegister int
}
