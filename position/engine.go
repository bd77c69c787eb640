// Package position implements the sequence core of spec §4.7: a
// waypoint-tree position engine yielding dense, totally ordered,
// non-interleaving identifiers for the slots of a collaborative
// sequence.
//
// The teacher's rga.go linearizes a single append-only linked list of
// one-character nodes, ordered by (Lamport timestamp, node id), rebuilt
// by walking sibling pointers at merge time. This engine generalizes
// that idea from single characters to waypoints (runs of positions
// created by one replica in one forward extension): the same
// walk-children-at-each-anchor structure the teacher's integrate/Merge
// perform, but recursing over a tree of runs instead of a flat list of
// single nodes, and ordering siblings by (sender, counter) instead of
// (timestamp, nodeID) since the position engine has no Lamport clock of
// its own.
package position

import (
	"sort"

	"github.com/latticekit/collab/replica"
)

// Side is which side of its anchor slot a waypoint branches to.
type Side int

const (
	// SideLeft: the waypoint's positions sort before its anchor slot.
	SideLeft Side = iota
	// SideRight: the waypoint's positions sort after its anchor slot.
	SideRight
)

// WaypointID identifies a waypoint by the replica that created it and
// that replica's own monotonic waypoint counter.
type WaypointID struct {
	Sender  replica.ID
	Counter uint64
}

// rootWaypoint is the engine's synthetic anchor: it holds no real
// positions, only the (virtual) slot 0 that every other waypoint is
// ultimately anchored to, directly or transitively.
var rootWaypoint = WaypointID{}

// Position addresses one slot: the i-th value created within waypoint w.
// Positions are immutable and dense: deletion tombstones a position but
// never reclaims or reorders it (spec §3).
type Position struct {
	Waypoint WaypointID
	Index    uint64
}

// IsRoot reports whether p is the engine's virtual anchor for "the very
// start of the sequence", which never holds a value.
func (p Position) IsRoot() bool { return p.Waypoint == rootWaypoint }

type waypoint struct {
	id               WaypointID
	parent           WaypointID
	parentValueIndex uint64
	side             Side
	length           uint64
	deleted          []bool
	children         []WaypointID
}

// Engine owns one replica's view of the waypoint tree: the full set of
// waypoints any replica has created, and this replica's own counter for
// minting new ones.
type Engine struct {
	self    replica.ID
	counter replica.Counter

	waypoints map[WaypointID]*waypoint

	// tailWaypoint/hasTail track the waypoint this replica is
	// currently extending, so consecutive local InsertAt calls that
	// keep appending at the same spot grow one waypoint instead of
	// minting a new one per call (spec §4.7: "extends the local
	// current waypoint if possible").
	tailWaypoint WaypointID
	hasTail      bool

	order      []Position
	orderDirty bool
}

// New constructs an engine for replica self, with only the virtual root
// waypoint present.
func New(self replica.ID) *Engine {
	e := &Engine{
		self:      self,
		waypoints: make(map[WaypointID]*waypoint),
	}
	e.waypoints[rootWaypoint] = &waypoint{id: rootWaypoint}
	e.orderDirty = true
	return e
}

// Len returns the number of present (non-tombstoned) positions.
func (e *Engine) Len() int {
	return len(e.presentOnly())
}

// InsertAt mints n fresh positions immediately before the value currently
// at index (or at the end, if index equals the present length), and
// marks them present. It returns the new positions in sequence order.
//
// This is the local half of an insert: the caller is responsible for
// broadcasting the returned positions (and the waypoint metadata needed
// to reconstruct them) to other replicas via ApplyInsert.
func (e *Engine) InsertAt(index int, n int) []Position {
	if n == 0 {
		return nil
	}
	anchorParent, anchorValueIndex, side := e.anchorFor(index)

	if e.hasTail && side == SideRight && anchorParent == e.tailWaypoint {
		tail := e.waypoints[e.tailWaypoint]
		extendable := anchorValueIndex+1 == tail.length
		for _, c := range tail.children {
			child := e.waypoints[c]
			if child.side == SideRight && child.parentValueIndex == anchorValueIndex {
				extendable = false
			}
		}
		if extendable {
			return e.extend(e.tailWaypoint, n)
		}
	}

	id := WaypointID{Sender: e.self, Counter: e.counter.Next()}
	w := &waypoint{
		id:               id,
		parent:           anchorParent,
		parentValueIndex: anchorValueIndex,
		side:             side,
		length:           0,
	}
	e.waypoints[id] = w
	e.attachChild(anchorParent, id)
	e.tailWaypoint = id
	e.hasTail = true
	return e.extend(id, n)
}

// extend grows waypoint id by n fresh positions, all initially present.
func (e *Engine) extend(id WaypointID, n int) []Position {
	w := e.waypoints[id]
	out := make([]Position, n)
	for i := 0; i < n; i++ {
		idx := w.length
		w.length++
		w.deleted = append(w.deleted, false)
		out[i] = Position{Waypoint: id, Index: idx}
	}
	e.orderDirty = true
	return out
}

// ApplyInsert integrates a waypoint (or a further extension of one this
// engine already knows) created by another replica's InsertAt, or a
// restored waypoint from a save. It is idempotent: re-applying a known
// waypoint at a length this engine has already reached is a no-op.
func (e *Engine) ApplyInsert(id WaypointID, parent WaypointID, parentValueIndex uint64, side Side, length uint64) {
	w, ok := e.waypoints[id]
	if !ok {
		w = &waypoint{id: id, parent: parent, parentValueIndex: parentValueIndex, side: side}
		e.waypoints[id] = w
		e.attachChild(parent, id)
	}
	if length <= w.length {
		return
	}
	for w.length < length {
		w.deleted = append(w.deleted, false)
		w.length++
	}
	e.orderDirty = true
}

// anchorFor resolves the (parent waypoint, parentValueIndex, side)
// triple InsertAt(index, ...) should anchor a new waypoint to: the
// position currently at index-1 (branching right of it), or the root's
// virtual slot 0 (branching left of it) when index is 0.
func (e *Engine) anchorFor(index int) (WaypointID, uint64, Side) {
	e.ensureOrder()
	present := e.presentOnly()
	if len(present) == 0 {
		return rootWaypoint, 0, SideLeft
	}
	if index <= 0 {
		first := present[0]
		return first.Waypoint, first.Index, SideLeft
	}
	if index >= len(present) {
		last := present[len(present)-1]
		return last.Waypoint, last.Index, SideRight
	}
	prev := present[index-1]
	return prev.Waypoint, prev.Index, SideRight
}

func (e *Engine) attachChild(parent WaypointID, child WaypointID) {
	p := e.waypoints[parent]
	p.children = append(p.children, child)
	e.orderDirty = true
}

// DeleteAt tombstones the position currently at the given present-index.
// It returns the tombstoned position so the caller can broadcast it.
func (e *Engine) DeleteAt(index int) (Position, bool) {
	e.ensureOrder()
	present := e.presentOnly()
	if index < 0 || index >= len(present) {
		return Position{}, false
	}
	p := present[index]
	e.ApplyDelete(p)
	return p, true
}

// ApplyDelete tombstones p, locally or as integration of a remote
// delete. Deleting an already-deleted position is a no-op (idempotent).
func (e *Engine) ApplyDelete(p Position) {
	w, ok := e.waypoints[p.Waypoint]
	if !ok || p.Index >= uint64(len(w.deleted)) {
		return
	}
	if !w.deleted[p.Index] {
		w.deleted[p.Index] = true
		e.orderDirty = true
	}
}

// IsPresent reports whether p currently holds a value (has been created
// and not tombstoned).
func (e *Engine) IsPresent(p Position) bool {
	w, ok := e.waypoints[p.Waypoint]
	if !ok || p.Index >= uint64(len(w.deleted)) {
		return false
	}
	return !w.deleted[p.Index]
}

// PositionOf returns the position currently at present-index index.
func (e *Engine) PositionOf(index int) (Position, bool) {
	e.ensureOrder()
	present := e.presentOnly()
	if index < 0 || index >= len(present) {
		return Position{}, false
	}
	return present[index], true
}

// IndexOfPosition returns p's index among present positions: the number
// of present positions that sort before p. If p itself is tombstoned,
// this is the index a value inserted at p's slot would have occupied.
func (e *Engine) IndexOfPosition(p Position) int {
	e.ensureOrder()
	idx := 0
	for _, q := range e.order {
		if q == p {
			return idx
		}
		if e.IsPresent(q) {
			idx++
		}
	}
	return idx
}

// Positions returns every position in total order, present or
// tombstoned.
func (e *Engine) Positions() []Position {
	e.ensureOrder()
	out := make([]Position, len(e.order))
	copy(out, e.order)
	return out
}

// PresentPositions returns only the present positions, in total order.
// Prefer this over filtering Positions() when building a whole-sequence
// snapshot: it renders the order once instead of once per index.
func (e *Engine) PresentPositions() []Position {
	return e.presentOnly()
}

// Length returns waypoint id's current length (0 if unknown), the count
// of slots created on it so far regardless of tombstoning.
func (e *Engine) Length(id WaypointID) uint64 {
	w, ok := e.waypoints[id]
	if !ok {
		return 0
	}
	return w.length
}

func (e *Engine) presentOnly() []Position {
	e.ensureOrder()
	out := make([]Position, 0, len(e.order))
	for _, p := range e.order {
		if e.IsPresent(p) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) ensureOrder() {
	if !e.orderDirty {
		return
	}
	var out []Position
	e.appendWaypoint(rootWaypoint, &out)
	e.order = out
	e.orderDirty = false
}

// appendWaypoint recursively renders w's slots in total order: at each
// slot i, left-branching children anchored at i first, then the slot
// itself (root has no real slots), then right-branching children
// anchored at i (spec §4.7 rule 2).
func (e *Engine) appendWaypoint(id WaypointID, out *[]Position) {
	w := e.waypoints[id]
	left, right := e.childBuckets(w)

	if w.length == 0 {
		for _, c := range left[0] {
			e.appendWaypoint(c, out)
		}
		for _, c := range right[0] {
			e.appendWaypoint(c, out)
		}
		return
	}

	for i := uint64(0); i < w.length; i++ {
		for _, c := range left[i] {
			e.appendWaypoint(c, out)
		}
		*out = append(*out, Position{Waypoint: id, Index: i})
		for _, c := range right[i] {
			e.appendWaypoint(c, out)
		}
	}
}

// childBuckets groups w's children by (parentValueIndex, side), each
// bucket ordered by the spec's sibling tie-break: lexicographic by
// sender, then by that sender's waypoint counter.
func (e *Engine) childBuckets(w *waypoint) (left, right map[uint64][]WaypointID) {
	left = make(map[uint64][]WaypointID)
	right = make(map[uint64][]WaypointID)
	for _, childID := range w.children {
		child := e.waypoints[childID]
		if child.side == SideLeft {
			left[child.parentValueIndex] = append(left[child.parentValueIndex], childID)
		} else {
			right[child.parentValueIndex] = append(right[child.parentValueIndex], childID)
		}
	}
	for _, bucket := range left {
		sortSiblings(bucket)
	}
	for _, bucket := range right {
		sortSiblings(bucket)
	}
	return left, right
}

// sortSiblings orders waypoints anchored at the same (parentValueIndex,
// side) lexicographically by sender, then by that sender's counter
// (spec §4.7 rule 3).
func sortSiblings(ids []WaypointID) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if a.Sender != b.Sender {
			return a.Sender < b.Sender
		}
		return a.Counter < b.Counter
	})
}
