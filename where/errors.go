package where

import (
	"github.com/dolthub/wherecore/bitset"
	"gopkg.in/src-d/go-errors.v1"
)

// ErrJoinTooWide re-exports bitset's cursor-capacity error so callers of
// this package never need to import bitset just to match on it.
var ErrJoinTooWide = bitset.ErrJoinTooWide

// ErrOutOfMemory is returned once an allocation failure has latched the
// WhereContext; every subsequent planning step becomes a no-op that
// returns this same error.
var ErrOutOfMemory = errors.NewKind("out of memory while planning")

// ErrNoSolution is returned when the solver's final generation is empty:
// no combination of candidate loops satisfies every table's prerequisites
// (e.g. a contradictory INDEXED BY choice).
var ErrNoSolution = errors.NewKind("no query solution")

// ErrVirtualTablePlanInvalid is returned when a virtual table's BestIndex
// answers with a Usage list whose length differs from the number of
// constraints offered in that phase.
var ErrVirtualTablePlanInvalid = errors.NewKind("virtual table %q returned an invalid plan")

// ErrVirtualTableError wraps an error returned verbatim by a virtual
// table's BestIndex callback, with the table name attached.
var ErrVirtualTableError = errors.NewKind("virtual table %q: %s")
