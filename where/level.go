package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/vmplan"
)

// Level pairs the CandidateLoop the solver chose for one FROM position
// with the VM-facing descriptor PlanEmitter built for it.
type Level struct {
	Loop       *CandidateLoop
	Descriptor vmplan.LevelDescriptor
}

// PlanEmitter translates a chosen WherePath into a LevelDescriptor array
// in FROM-order, allocating VM cursor ids, labels, and registers, and
// disabling the WHERE terms consumed as seek keys.
type PlanEmitter struct {
	nextCursor   vmplan.CursorID
	nextLabel    vmplan.Label
	nextRegister int
}

// NewPlanEmitter constructs a PlanEmitter. Cursor/label/register ids start
// at 1 so the zero values (vmplan.NoLabel, an unset register) stay
// distinguishable from allocated ones.
func NewPlanEmitter() *PlanEmitter {
	return &PlanEmitter{nextCursor: 1, nextLabel: 1, nextRegister: 1}
}

func (pe *PlanEmitter) allocCursor() vmplan.CursorID {
	c := pe.nextCursor
	pe.nextCursor++
	return c
}

func (pe *PlanEmitter) allocLabel() vmplan.Label {
	l := pe.nextLabel
	pe.nextLabel++
	return l
}

func (pe *PlanEmitter) allocRegister() int {
	r := pe.nextRegister
	pe.nextRegister++
	return r
}

// Emit builds one Level per loop in path, in order, marking every
// consumed WHERE term Coded (cascading to parents via
// TermStore.DisableParentIfDone). leftJoinTables is the set of table bits
// that are the right-hand side of a LEFT JOIN, so their level gets an
// "any match" register.
func (pe *PlanEmitter) Emit(store *TermStore, path *WherePath, leftJoinTables bitset.Mask) []Level {
	levels := make([]Level, 0, len(path.Loops))
	for i, loop := range path.Loops {
		levels = append(levels, pe.emitLevel(store, path, i, loop, leftJoinTables))
	}
	return levels
}

func (pe *PlanEmitter) emitLevel(store *TermStore, path *WherePath, levelIdx int, loop *CandidateLoop, leftJoinTables bitset.Mask) Level {
	tableCursor := pe.allocCursor()
	indexCursor := tableCursor
	if loop.Index != nil && !loop.Index.Primary {
		indexCursor = pe.allocCursor()
	}

	reverse := path.RevMask.Intersects(bitset.Bit(levelIdx))
	start := vmplan.StartVariant{
		HasConstraint: loop.NEq > 0 || (loop.HasRange && loop.Flags&WsLower != 0),
		Equality:      loop.NEq > 0,
		Reverse:       reverse,
	}
	// end.Equality stays false: a closing bound here is always a range
	// comparison (WsUpper), never itself an equality probe, so the
	// decision table only ever reaches OpRowid/OpSeekGE/OpSeekLE for a
	// closed prefix, never OpSeekEQ, through this derivation.
	end := vmplan.EndVariant{
		HasConstraint: loop.HasRange && loop.Flags&WsUpper != 0,
		Reverse:       reverse,
	}
	op := vmplan.ChooseOpcode(start, end)
	if loop.Flags&(WsVirtualTable|WsMultiOr) != 0 {
		op = vmplan.OpNoop
	}

	continueLabel := pe.allocLabel()
	breakLabel := pe.allocLabel()
	payload := vmplan.LevelPayload{}
	nextInLabel := vmplan.NoLabel
	if loop.Flags&WsIn != 0 {
		nextInLabel = pe.allocLabel()
		payload.InLoops = append(payload.InLoops, vmplan.InLoopCursor{Cursor: pe.allocCursor(), NextLoop: nextInLabel})
	}
	if loop.Flags&WsMultiOr != 0 {
		payload.ORUnionBody = pe.allocLabel()
		payload.DedupRegister = pe.allocRegister()
	}

	leftJoinReg := 0
	if leftJoinTables.Intersects(loop.Self) {
		leftJoinReg = pe.allocRegister()
	}

	pe.markConsumed(store, loop)

	return Level{
		Loop: loop,
		Descriptor: vmplan.LevelDescriptor{
			TableCursor:           tableCursor,
			IndexCursor:           indexCursor,
			Op:                    op,
			ContinueLabel:         continueLabel,
			BreakLabel:            breakLabel,
			NextInLabel:           nextInLabel,
			Payload:               payload,
			LeftJoinMatchRegister: leftJoinReg,
		},
	}
}

// markConsumed marks every term loop used as a seek key Coded, cascading
// the disable up through parents whose other children are already Coded.
func (pe *PlanEmitter) markConsumed(store *TermStore, loop *CandidateLoop) {
	for _, ti := range loop.LTerms {
		t := store.Get(ti)
		if t.IsCoded() {
			continue
		}
		t.MarkCoded()
		store.DisableParentIfDone(t.Parent)
	}
}
