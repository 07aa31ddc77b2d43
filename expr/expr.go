// Package expr is the narrow slice of a parsed SQL expression tree the
// planner needs. The real tree comes from the SQL parser, an external
// collaborator the planner only borrows; this package
// defines just enough of a shape — columns, literals, comparisons, the
// boolean connectives, and the rewrite targets (BETWEEN/LIKE/IN/IS NULL) —
// for the planner's term analysis to operate on and for tests to build
// fixtures without a real parser.
package expr

import (
	"fmt"
	"strings"

	"github.com/dolthub/wherecore/bitset"
)

// Affinity mirrors SQLite's column type-affinity classes, used to decide
// whether a comparison's two sides are comparable and whether a LIKE
// pattern can drive a range scan.
type Affinity int

const (
	AffinityNone Affinity = iota
	AffinityText
	AffinityNumeric
	AffinityInteger
	AffinityReal
)

// Expression is the common interface for every node in a borrowed
// expression tree.
type Expression interface {
	fmt.Stringer
	// Children returns this node's direct operands, in evaluation order.
	Children() []Expression
}

// Column is a reference to one column of one FROM-clause cursor.
type Column struct {
	Cursor     int
	Col        int
	Name       string
	Affinity   Affinity
	Collation  string
	// RowidAlias marks an INTEGER PRIMARY KEY column, which may be treated
	// as an index seek key without a backing Index descriptor
	//.
	RowidAlias bool
}

func (c *Column) Children() []Expression { return nil }
func (c *Column) String() string         { return c.Name }

// Literal is a constant value known at plan time (parameters bound before
// planning count as literals for cost purposes; unbound parameters use
// Param instead).
type Literal struct {
	Value    any
	Affinity Affinity
}

func (l *Literal) Children() []Expression { return nil }
func (l *Literal) String() string         { return fmt.Sprintf("%v", l.Value) }

// Param is a bound-parameter placeholder (`?`). It has no table
// dependencies (prereq_right == 0) but its value is not
// known until execution, so histograms cannot refine it the way a Literal
// can.
type Param struct {
	Position int
}

func (p *Param) Children() []Expression { return nil }
func (p *Param) String() string         { return "?" }

// CmpOp is a scalar comparison operator.
type CmpOp int

const (
	OpEq CmpOp = iota
	OpLt
	OpLe
	OpGt
	OpGe
	OpNe // never an index seek key; always classified NOOP
)

func (op CmpOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpNe:
		return "<>"
	default:
		return "?op?"
	}
}

// Commute returns the operator that results from swapping operand sides,
// e.g. `a < b` becomes `b > a`.
func (op CmpOp) Commute() CmpOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}

// Comparison is `Left Op Right`.
type Comparison struct {
	Op          CmpOp
	Left, Right Expression
}

func (c *Comparison) Children() []Expression { return []Expression{c.Left, c.Right} }
func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// Between is `X BETWEEN Lo AND Hi`.
type Between struct {
	X, Lo, Hi Expression
}

func (b *Between) Children() []Expression { return []Expression{b.X, b.Lo, b.Hi} }
func (b *Between) String() string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", b.X, b.Lo, b.Hi)
}

// Like is `X LIKE Pattern [ESCAPE ch]`. Glob is true for GLOB semantics
// (case-sensitive, different wildcard characters) rather than LIKE.
type Like struct {
	X, Pattern Expression
	Escape     rune
	Glob       bool
}

func (l *Like) Children() []Expression { return []Expression{l.X, l.Pattern} }
func (l *Like) String() string {
	op := "LIKE"
	if l.Glob {
		op = "GLOB"
	}
	return fmt.Sprintf("%s %s %s", l.X, op, l.Pattern)
}

// In is `X IN (List...)`. Subquery is true when List is empty and the
// source was a subquery instead (planner treats subquery dependencies as
// opaque beyond ExtraDeps).
type In struct {
	X        Expression
	List     []Expression
	Subquery bool
	// Not negates the test: `X NOT IN (List...)`. A NOT IN term is never
	// an index seek key — mirrors OpNe's NOOP treatment for Comparison.
	Not bool
	// ExtraDeps covers correlated references inside a subquery RHS that
	// this tree doesn't otherwise expose.
	ExtraDeps bitset.Mask
}

func (in *In) Children() []Expression {
	out := make([]Expression, 0, len(in.List)+1)
	out = append(out, in.X)
	out = append(out, in.List...)
	return out
}
func (in *In) String() string {
	parts := make([]string, len(in.List))
	for i, e := range in.List {
		parts[i] = e.String()
	}
	op := "IN"
	if in.Not {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", in.X, op, strings.Join(parts, ", "))
}

// IsNull is `X IS NULL`.
type IsNull struct {
	X Expression
}

func (n *IsNull) Children() []Expression { return []Expression{n.X} }
func (n *IsNull) String() string         { return fmt.Sprintf("%s IS NULL", n.X) }

// IsNotNull is `X IS NOT NULL`.
type IsNotNull struct {
	X Expression
}

func (n *IsNotNull) Children() []Expression { return []Expression{n.X} }
func (n *IsNotNull) String() string         { return fmt.Sprintf("%s IS NOT NULL", n.X) }

// Match is a full-text `X MATCH Pattern` term, handled by TermAnalyser as a
// virtual-table-only auxiliary constraint.
type Match struct {
	X, Pattern Expression
}

func (m *Match) Children() []Expression { return []Expression{m.X, m.Pattern} }
func (m *Match) String() string         { return fmt.Sprintf("%s MATCH %s", m.X, m.Pattern) }

// And is a conjunction of two or more operands.
type And struct {
	Terms []Expression
}

func (a *And) Children() []Expression { return a.Terms }
func (a *And) String() string {
	parts := make([]string, len(a.Terms))
	for i, e := range a.Terms {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// Or is a disjunction of two or more operands.
type Or struct {
	Terms []Expression
}

func (o *Or) Children() []Expression { return o.Terms }
func (o *Or) String() string {
	parts := make([]string, len(o.Terms))
	for i, e := range o.Terms {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Deps computes the dependency bitmask of e: the set of cursor bits
// referenced anywhere in the expression tree, via m (which must already
// have interned every cursor e can reference).
func Deps(e Expression, m *bitset.Map) bitset.Mask {
	switch t := e.(type) {
	case *Column:
		return m.MaskOf(t.Cursor)
	case *Param:
		return bitset.Empty
	case *In:
		mask := Deps(t.X, m)
		for _, item := range t.List {
			mask = mask.Union(Deps(item, m))
		}
		return mask.Union(t.ExtraDeps)
	default:
		var mask bitset.Mask
		for _, c := range e.Children() {
			mask = mask.Union(Deps(c, m))
		}
		return mask
	}
}

// AsColumn reports whether e is a direct column reference, returning it if so.
func AsColumn(e Expression) (*Column, bool) {
	c, ok := e.(*Column)
	return c, ok
}

// IsConstant reports whether e has no table dependencies at all (a
// Literal, a Param, or an expression built entirely from those).
func IsConstant(e Expression, m *bitset.Map) bool {
	return Deps(e, m).IsEmpty()
}
