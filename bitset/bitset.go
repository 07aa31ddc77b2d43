// Package bitset implements the cursor-to-bit translation used throughout
// the planner: every FROM-clause entry is assigned a dense bit position in
// a single machine word so that table-dependency sets can be intersected,
// unioned, and compared with ordinary integer operations instead of walking
// cursor-id lists.
package bitset

import "gopkg.in/src-d/go-errors.v1"

// Width is the number of bits available for table membership, i.e. the
// maximum number of FROM entries a single join may reference.
const Width = 64

// ErrJoinTooWide is returned by Map.Intern when Width distinct cursors
// have already been interned and a new one is asked for.
var ErrJoinTooWide = errors.NewKind("join has more than %d tables, cannot plan")

// Mask is a set of dense bit positions, one per interned cursor.
type Mask uint64

// Empty is the mask with no bits set.
const Empty Mask = 0

// Bit returns the mask containing only position i.
func Bit(i int) Mask { return Mask(1) << uint(i) }

// Union returns the union of m and other.
func (m Mask) Union(other Mask) Mask { return m | other }

// Intersect returns the intersection of m and other.
func (m Mask) Intersect(other Mask) Mask { return m & other }

// Subtract returns the bits in m that are not in other.
func (m Mask) Subtract(other Mask) Mask { return m &^ other }

// SubsetOf reports whether every bit in m is also set in other.
func (m Mask) SubsetOf(other Mask) bool { return m&other == m }

// Intersects reports whether m and other share any bit.
func (m Mask) Intersects(other Mask) bool { return m&other != 0 }

// IsEmpty reports whether m has no bits set.
func (m Mask) IsEmpty() bool { return m == 0 }

// Below returns the mask of all positions strictly below the lowest set bit
// of m. It is undefined for an empty mask.
func (m Mask) Below() Mask {
	low := m & (-m)
	return low - 1
}

// Map interns cursor ids into dense bit positions in first-seen order. The
// caller MUST intern cursors in left-to-right FROM-clause order: for any
// two cursors interned in that order, the mask of "everything to the left"
// of the later one is exactly (laterMask - 1), which LEFT JOIN handling
// depends on.
type Map struct {
	order []int       // bit position -> cursor id
	index map[int]int // cursor id -> bit position
}

// NewMap returns an empty cursor map.
func NewMap() *Map {
	return &Map{index: make(map[int]int)}
}

// Intern assigns cursor a dense bit position, returning the existing one if
// already interned. Fails with ErrJoinTooWide once Width cursors are in use.
func (m *Map) Intern(cursor int) (int, error) {
	if pos, ok := m.index[cursor]; ok {
		return pos, nil
	}
	if len(m.order) >= Width {
		return 0, ErrJoinTooWide.New(Width)
	}
	pos := len(m.order)
	m.order = append(m.order, cursor)
	m.index[cursor] = pos
	return pos, nil
}

// MaskOf returns the mask for cursor, or Empty if it was never interned.
func (m *Map) MaskOf(cursor int) Mask {
	pos, ok := m.index[cursor]
	if !ok {
		return Empty
	}
	return Bit(pos)
}

// Len returns the number of distinct cursors interned so far.
func (m *Map) Len() int { return len(m.order) }

// CursorAt returns the cursor id interned at bit position pos.
func (m *Map) CursorAt(pos int) (int, bool) {
	if pos < 0 || pos >= len(m.order) {
		return 0, false
	}
	return m.order[pos], true
}

// LeftOf returns the mask of all cursors interned strictly before cursor,
// i.e. all FROM entries to its left. Requires cursor to already be
// interned.
func (m *Map) LeftOf(cursor int) Mask {
	return m.MaskOf(cursor).Below()
}
