package list

import "github.com/latticekit/collab/position"

// Bias says which neighboring element a Cursor tracks: the one to its
// left (its predecessor) or the one to its right (its successor). A
// cursor recomputes its numeric index from that neighbor's current
// position every time it is read, so it follows the content it is bound
// to across concurrent inserts and deletes rather than drifting with a
// stale offset (spec §4.7, "Open Question: binding" resolved in favor of
// neighbor tracking over numeric offsets).
type Bias int

const (
	// BiasLeft tracks the element just before the cursor's gap. A remote
	// insert landing exactly at the gap appears after the cursor.
	BiasLeft Bias = iota
	// BiasRight tracks the element just after the cursor's gap. A remote
	// insert landing exactly at the gap appears before the cursor.
	BiasRight
)

// Cursor marks a gap in a Value list between two elements (or at either
// end), surviving concurrent inserts and deletes elsewhere in the list.
type Cursor[T any] struct {
	list      *Value[T]
	bias      Bias
	anchor    position.Position
	hasAnchor bool
}

// NewCursor constructs a cursor at the gap immediately before index (for
// bias BiasLeft, the gap tracks the element at index-1; for BiasRight, it
// tracks the element at index). index may equal list.Len() to place the
// cursor at the end.
func NewCursor[T any](list *Value[T], index int, bias Bias) (*Cursor[T], bool) {
	n := list.Len()
	if index < 0 || index > n {
		return nil, false
	}
	c := &Cursor[T]{list: list, bias: bias}
	switch bias {
	case BiasLeft:
		if index == 0 {
			return c, true
		}
		p, ok := list.engine.PositionOf(index - 1)
		if !ok {
			return nil, false
		}
		c.anchor, c.hasAnchor = p, true
	case BiasRight:
		if index == n {
			return c, true
		}
		p, ok := list.engine.PositionOf(index)
		if !ok {
			return nil, false
		}
		c.anchor, c.hasAnchor = p, true
	}
	return c, true
}

// Index returns the cursor's current numeric position, recomputed from
// its tracked neighbor.
func (c *Cursor[T]) Index() int {
	switch c.bias {
	case BiasLeft:
		if !c.hasAnchor {
			return 0
		}
		return c.list.engine.IndexOfPosition(c.anchor) + 1
	default: // BiasRight
		if !c.hasAnchor {
			return c.list.Len()
		}
		return c.list.engine.IndexOfPosition(c.anchor)
	}
}

// Insert inserts vs at the cursor's current gap. A BiasLeft cursor
// advances to sit just after the newly inserted run, so repeated Insert
// calls append in order; a BiasRight cursor is unaffected, since its
// tracked successor has not moved.
func (c *Cursor[T]) Insert(vs ...T) []position.Position {
	positions := c.list.Insert(c.Index(), vs...)
	if c.bias == BiasLeft && len(positions) > 0 {
		c.anchor = positions[len(positions)-1]
		c.hasAnchor = true
	}
	return positions
}

// DeleteNext removes the element on the gap's right-hand side (for
// BiasLeft, this is the element the cursor sits just before).
func (c *Cursor[T]) DeleteNext() (T, bool) {
	return c.list.Delete(c.Index())
}

// DeletePrev removes the element on the gap's left-hand side. A BiasLeft
// cursor re-binds to its new predecessor, if any; a BiasRight cursor's
// tracked successor is unaffected.
func (c *Cursor[T]) DeletePrev() (T, bool) {
	idx := c.Index()
	if idx == 0 {
		var zero T
		return zero, false
	}
	v, ok := c.list.Delete(idx - 1)
	if !ok {
		return v, ok
	}
	if c.bias == BiasLeft {
		if idx-1 == 0 {
			c.hasAnchor = false
		} else {
			p, ok := c.list.engine.PositionOf(idx - 2)
			c.anchor, c.hasAnchor = p, ok
		}
	}
	return v, ok
}
