// Package where implements the core of the planner: WHERE-clause term
// analysis, candidate access-path enumeration, join-order search, and
// ORDER BY / DISTINCT satisfaction. Everything here is
// single-threaded and scoped to one statement's WhereContext.
package where

import (
	"github.com/dolthub/wherecore/bitset"
	"github.com/dolthub/wherecore/expr"
)

// OperatorClass is a bitmask classification of a Term's comparison
// operator, so tests like "is this usable as an index seek key?" are a
// single mask test.
type OperatorClass uint16

const (
	OpClassEq OperatorClass = 1 << iota
	OpClassLt
	OpClassLe
	OpClassGt
	OpClassGe
	OpClassIn
	OpClassIsNull
	OpClassMatch
	OpClassOr
	OpClassAnd
	OpClassEquiv
	OpClassNoop
)

// OpClassRange is both inequality directions, used to recognize a term
// that can become a bottom or top limit.
const OpClassRange = OpClassLt | OpClassLe | OpClassGt | OpClassGe

// OpClassLower is the two operators that constrain a range's bottom.
const OpClassLower = OpClassGt | OpClassGe

// OpClassUpper is the two operators that constrain a range's top.
const OpClassUpper = OpClassLt | OpClassLe

// OpClassIndexable is every class LoopEnumerator can turn into a seek key.
const OpClassIndexable = OpClassEq | OpClassRange | OpClassIn | OpClassIsNull

// TermFlag is the per-term flag set.
type TermFlag uint16

const (
	// TermDynamic means the term owns its expression (it was synthesized,
	// not borrowed from the parser).
	TermDynamic TermFlag = 1 << iota
	// TermVirtual means the term was synthesized by the analyser rather
	// than appearing in the source predicate.
	TermVirtual
	// TermCoded means this term has already been consumed by the chosen
	// plan (as a seek key or a residual filter) and should not be
	// considered again.
	TermCoded
	// TermCopied means this term has a virtual commuted sibling.
	TermCopied
	// TermOrInfo means this term carries an OrInfo sub-clause payload.
	TermOrInfo
	// TermAndInfo marks a term that was split into sub-terms: a BETWEEN
	// rewrite sets it, and its two synthesized bounds live in the same
	// store with Parent pointing back at it. And is left nil in that case.
	TermAndInfo
	// TermOrOk is a reserved flag bit; no analysis step currently sets it.
	TermOrOk
	// TermVNull marks the `x > NULL` rewrite synthesized from `x IS NOT
	// NULL`; it suppresses the loop-top null
	// check the rewrite would otherwise require.
	TermVNull
)

// Has reports whether f is set in flags.
func (flags TermFlag) Has(f TermFlag) bool { return flags&f != 0 }

// NoParent is the Term.Parent sentinel for a term with no parent.
const NoParent = -1

// Term is one atomic predicate under the top-level AND.
type Term struct {
	// Expr is the owning reference to the parsed expression for borrowed
	// terms, or the synthesized expression for Dynamic ones.
	Expr expr.Expression
	// Op is the operator class this term was classified into.
	Op OperatorClass
	// LeftCursor/LeftColumn/HasLeftColumn describe the LHS when the term's
	// shape is `Column <op> Expr`.
	LeftCursor    int
	LeftColumn    int
	HasLeftColumn bool
	// PrereqRight is the dependency mask of the RHS (for IN, of the RHS
	// list or subquery).
	PrereqRight bitset.Mask
	// PrereqAll is the dependency mask of the whole expression, OR'd with
	// a phantom "extra right" mask when the term came from a LEFT JOIN's
	// ON clause.
	PrereqAll bitset.Mask
	// Parent is a dense index into the owning TermStore of the term this
	// one was derived from, or NoParent.
	Parent int
	// ChildCount is the number of not-yet-Coded virtual children; a
	// parent becomes eligible for disabling when it reaches zero.
	ChildCount int
	Flags      TermFlag

	// Or holds this term's OR sub-clause payload when Flags has TermOrInfo.
	Or *OrInfo
	// And holds an AND sub-clause payload. The BETWEEN rewrite does not
	// fill it: its synthesized pair is stored alongside the parent term.
	And *AndInfo

	// Collation/Affinity are attached during classification for
	// comparison and LIKE-prefix rewrites.
	Collation string
	Affinity  expr.Affinity
}

// IsCoded reports whether this term has already been consumed by the plan.
func (t *Term) IsCoded() bool { return t.Flags.Has(TermCoded) }

// MarkCoded sets TermCoded. Per the monotonicity invariant, this
// must never be called twice in a way that would look like it transitioned
// true->false; callers should check IsCoded first if that distinction
// matters to them.
func (t *Term) MarkCoded() { t.Flags |= TermCoded }

// UsableAsSeekKey reports whether t's operator class can drive an index
// seek at all (excludes OR, AND, EQUIV, NOOP, and already-Coded terms).
func (t *Term) UsableAsSeekKey() bool {
	if t.IsCoded() {
		return false
	}
	return t.Op&OpClassIndexable != 0
}

// OrInfo is the sub-clause payload for a term whose operator is OR.
type OrInfo struct {
	Store *TermStore
	// IndexableMask is the intersection, over every sub-term, of the set
	// of tables for which that sub-term has an indexable sub-conjunct.
	IndexableMask bitset.Mask
}

// AndInfo is a nested AND sub-clause payload. No analysis step currently
// builds one; BETWEEN children are kept in the parent's own store.
type AndInfo struct {
	Store *TermStore
}

// TermStore is an ordered growable vector of terms, one per top-level
// AND/OR conjunct (or sub-conjunct, if nested). Two stores may be linked
// as outer/inner; inner stores can reach the outer for transitive equality
// lookups.
type TermStore struct {
	terms      []*Term
	Connective OperatorClass // OpClassAnd or OpClassOr: how the parent expression was split
	Outer      *TermStore
}

// NewTermStore creates an empty store with the given connective and outer
// link (outer may be nil for the top-level store).
func NewTermStore(connective OperatorClass, outer *TermStore) *TermStore {
	return &TermStore{Connective: connective, Outer: outer}
}

// Append adds t to the store and returns its dense index.
func (s *TermStore) Append(t *Term) int {
	s.terms = append(s.terms, t)
	return len(s.terms) - 1
}

// Get returns the term at index i.
func (s *TermStore) Get(i int) *Term { return s.terms[i] }

// Len returns the number of terms in the store.
func (s *TermStore) Len() int { return len(s.terms) }

// All returns every term in the store, in append order. Callers must not
// retain the slice across further Appends.
func (s *TermStore) All() []*Term { return s.terms }

// IndexOf returns the dense index of t within s, or -1 if not found.
func (s *TermStore) IndexOf(t *Term) int {
	for i, other := range s.terms {
		if other == t {
			return i
		}
	}
	return -1
}

// DisableParentIfDone decrements the child count of the term at parent
// and, if it reaches zero, marks that parent Coded too: a parent with no
// remaining live children is itself redundant once every child has been
// coded, and the cascade continues up through grandparents the same way.
func (s *TermStore) DisableParentIfDone(parent int) {
	if parent == NoParent {
		return
	}
	p := s.terms[parent]
	p.ChildCount--
	if p.ChildCount <= 0 && !p.IsCoded() {
		p.MarkCoded()
		s.DisableParentIfDone(p.Parent)
	}
}
