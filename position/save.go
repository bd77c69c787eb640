package position

import (
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

// WaypointMeta is everything a remote replica or a save needs to
// reconstruct a waypoint via ApplyInsert, without exposing the engine's
// internal waypoint representation.
type WaypointMeta struct {
	ID               WaypointID
	Parent           WaypointID
	ParentValueIndex uint64
	Side             Side
	Length           uint64
}

// MetaFor returns id's current metadata, for broadcasting a just-created
// or just-extended waypoint to other replicas.
func (e *Engine) MetaFor(id WaypointID) (WaypointMeta, bool) {
	w, ok := e.waypoints[id]
	if !ok {
		return WaypointMeta{}, false
	}
	return WaypointMeta{
		ID:               w.id,
		Parent:           w.parent,
		ParentValueIndex: w.parentValueIndex,
		Side:             w.side,
		Length:           w.length,
	}, true
}

// Apply integrates meta the way ApplyInsert does, from a decoded
// WaypointMeta rather than separate arguments.
func (e *Engine) Apply(meta WaypointMeta) {
	e.ApplyInsert(meta.ID, meta.Parent, meta.ParentValueIndex, meta.Side, meta.Length)
}

// Snapshot returns metadata for every waypoint but the synthetic root,
// in a stable order (by sender, then counter), for Save.
func (e *Engine) Snapshot() []WaypointMeta {
	ids := make([]WaypointID, 0, len(e.waypoints))
	for id := range e.waypoints {
		if id == rootWaypoint {
			continue
		}
		ids = append(ids, id)
	}
	sortSiblings(ids)
	out := make([]WaypointMeta, 0, len(ids))
	for _, id := range ids {
		meta, _ := e.MetaFor(id)
		out = append(out, meta)
	}
	return out
}

// Tombstones returns every currently tombstoned position, for Save.
func (e *Engine) Tombstones() []Position {
	var out []Position
	for id, w := range e.waypoints {
		for i, del := range w.deleted {
			if del {
				out = append(out, Position{Waypoint: id, Index: uint64(i)})
			}
		}
	}
	return out
}

// EncodeWaypointMeta writes meta in the canonical wire encoding.
func EncodeWaypointMeta(w *wire.Writer, meta WaypointMeta) {
	w.PutString(string(meta.ID.Sender))
	w.PutUvarint(meta.ID.Counter)
	w.PutString(string(meta.Parent.Sender))
	w.PutUvarint(meta.Parent.Counter)
	w.PutUvarint(meta.ParentValueIndex)
	w.PutByte(byte(meta.Side))
	w.PutUvarint(meta.Length)
}

// DecodeWaypointMeta reads a WaypointMeta written by EncodeWaypointMeta.
func DecodeWaypointMeta(r *wire.Reader) (WaypointMeta, error) {
	senderID, err := r.String()
	if err != nil {
		return WaypointMeta{}, err
	}
	counter, err := r.Uvarint()
	if err != nil {
		return WaypointMeta{}, err
	}
	parentSender, err := r.String()
	if err != nil {
		return WaypointMeta{}, err
	}
	parentCounter, err := r.Uvarint()
	if err != nil {
		return WaypointMeta{}, err
	}
	parentValueIndex, err := r.Uvarint()
	if err != nil {
		return WaypointMeta{}, err
	}
	sideByte, err := r.Byte()
	if err != nil {
		return WaypointMeta{}, err
	}
	length, err := r.Uvarint()
	if err != nil {
		return WaypointMeta{}, err
	}
	return WaypointMeta{
		ID:               WaypointID{Sender: replica.ID(senderID), Counter: counter},
		Parent:           WaypointID{Sender: replica.ID(parentSender), Counter: parentCounter},
		ParentValueIndex: parentValueIndex,
		Side:             Side(sideByte),
		Length:           length,
	}, nil
}

// EncodePosition writes p in the canonical wire encoding.
func EncodePosition(w *wire.Writer, p Position) {
	w.PutString(string(p.Waypoint.Sender))
	w.PutUvarint(p.Waypoint.Counter)
	w.PutUvarint(p.Index)
}

// DecodePosition reads a Position written by EncodePosition.
func DecodePosition(r *wire.Reader) (Position, error) {
	sender, err := r.String()
	if err != nil {
		return Position{}, err
	}
	counter, err := r.Uvarint()
	if err != nil {
		return Position{}, err
	}
	index, err := r.Uvarint()
	if err != nil {
		return Position{}, err
	}
	return Position{Waypoint: WaypointID{Sender: replica.ID(sender), Counter: counter}, Index: index}, nil
}

// EncodeSelf serializes the engine's full waypoint set: every waypoint's
// metadata, its tombstone bitmap, and the extend-optimization tail state.
// It is a leaf byte blob, meant to be embedded as one child's wire.Save.Self
// by whatever sequence primitive owns this engine.
func (e *Engine) EncodeSelf() []byte {
	w := wire.NewWriter()

	ids := make([]WaypointID, 0, len(e.waypoints))
	for id := range e.waypoints {
		if id == rootWaypoint {
			continue
		}
		ids = append(ids, id)
	}
	sortSiblings(ids)

	w.PutUvarint(uint64(len(ids)))
	for _, id := range ids {
		meta, _ := e.MetaFor(id)
		EncodeWaypointMeta(w, meta)
		wp := e.waypoints[id]
		w.PutUvarint(uint64(len(wp.deleted)))
		for _, d := range wp.deleted {
			b := byte(0)
			if d {
				b = 1
			}
			w.PutByte(b)
		}
	}

	if e.hasTail {
		w.PutByte(1)
		w.PutString(string(e.tailWaypoint.Sender))
		w.PutUvarint(e.tailWaypoint.Counter)
	} else {
		w.PutByte(0)
	}

	return w.Bytes()
}

// DecodeSelf replaces the engine's waypoint set with the one encoded in
// data by EncodeSelf. The engine must be freshly constructed via New.
func (e *Engine) DecodeSelf(data []byte) error {
	r := wire.NewReader(data)

	count, err := r.Uvarint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		meta, err := DecodeWaypointMeta(r)
		if err != nil {
			return err
		}
		deletedLen, err := r.Uvarint()
		if err != nil {
			return err
		}
		w := &waypoint{
			id:               meta.ID,
			parent:           meta.Parent,
			parentValueIndex: meta.ParentValueIndex,
			side:             meta.Side,
			length:           meta.Length,
			deleted:          make([]bool, deletedLen),
		}
		for j := uint64(0); j < deletedLen; j++ {
			b, err := r.Byte()
			if err != nil {
				return err
			}
			w.deleted[j] = b != 0
		}
		e.waypoints[meta.ID] = w
		e.attachChild(meta.Parent, meta.ID)
		if meta.ID.Sender == e.self {
			e.counter.Observe(meta.ID.Counter)
		}
	}

	hasTail, err := r.Byte()
	if err != nil {
		return err
	}
	if hasTail != 0 {
		sender, err := r.String()
		if err != nil {
			return err
		}
		tailCounter, err := r.Uvarint()
		if err != nil {
			return err
		}
		e.tailWaypoint = WaypointID{Sender: replica.ID(sender), Counter: tailCounter}
		e.hasTail = true
	}

	e.orderDirty = true
	return nil
}
