package where

import (
	"fmt"
	"strings"

	"github.com/dolthub/wherecore/catalog"
	"github.com/dolthub/wherecore/vmplan"
	"github.com/dustin/go-humanize"
)

// FormatRowEstimate renders an estimated row count the way an EXPLAIN
// QUERY PLAN line does: a thousands-grouped integer.
func FormatRowEstimate(rows float64) string {
	return humanize.Comma(int64(rows + 0.5))
}

// FormatCost renders a linear row count (a cost already converted with
// ToRows): below 10 with its fractional digits kept, otherwise rounded
// to a thousands-grouped integer.
func FormatCost(rows float64) string {
	if rows < 10 {
		return humanize.Commaf(rows)
	}
	return humanize.Comma(int64(rows + 0.5))
}

// opcodeLabel names an Opcode the way EXPLAIN QUERY PLAN names its access
// methods.
func opcodeLabel(op vmplan.Opcode) string {
	switch op {
	case vmplan.OpFullScan:
		return "SCAN"
	case vmplan.OpSeekGE, vmplan.OpSeekGT, vmplan.OpSeekLE, vmplan.OpSeekLT, vmplan.OpSeekEQ:
		return "SEARCH"
	case vmplan.OpRowid:
		return "SEARCH ROWID"
	case vmplan.OpNoop:
		return "SCAN (delegated)"
	default:
		return "SCAN"
	}
}

// Explain renders result as a multi-line EXPLAIN QUERY PLAN-style string,
// one line per level in FROM order, using table as the cursor-to-name
// lookup (nil entries fall back to the raw cursor id). The string is a
// pure function of result and table, so two plans built from the same
// inputs and the same catalog snapshot render byte-identical output, per
// spec.md §8's determinism property.
func Explain(result *Result, loops []*CandidateLoop, table TableLookup) string {
	var b strings.Builder
	for i, lvl := range result.Levels {
		var loop *CandidateLoop
		if i < len(loops) {
			loop = loops[i]
		}
		b.WriteString(explainLine(i, lvl, loop, table))
		b.WriteByte('\n')
	}
	return b.String()
}

func explainLine(i int, lvl Level, loop *CandidateLoop, lookup TableLookup) string {
	name := fmt.Sprintf("cursor%d", lvl.Descriptor.TableCursor)
	if loop != nil && lookup != nil {
		if t := lookup(loop.TableIndex); t != nil {
			name = t.Name
		}
	}

	method := opcodeLabel(lvl.Descriptor.Op)
	using := indexDescription(loop)
	rows := ""
	if loop != nil {
		rows = fmt.Sprintf(" (~%s rows)", FormatRowEstimate(loop.RowEst.ToRows()))
	}

	return fmt.Sprintf("%d|%s %s%s%s", i, method, name, using, rows)
}

func indexDescription(loop *CandidateLoop) string {
	if loop == nil {
		return ""
	}
	switch {
	case loop.Flags&WsVirtualTable != 0:
		return " USING VIRTUAL TABLE INDEX"
	case loop.Flags&WsAutoIndex != 0:
		return " USING AUTOMATIC COVERING INDEX"
	case loop.Index != nil && loop.Index.Primary:
		return " USING PRIMARY KEY"
	case loop.Index != nil:
		return fmt.Sprintf(" USING INDEX %s", indexDisplayName(loop.Index))
	default:
		return ""
	}
}

func indexDisplayName(idx *catalog.Index) string {
	if idx.Name != "" {
		return idx.Name
	}
	return "<unnamed>"
}
