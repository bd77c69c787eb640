// Package list implements the sequence-of-values primitive of spec §4.7:
// an ordered, replicated list built on the waypoint-tree position engine,
// plus a cursor that tracks a gap in the sequence across concurrent
// edits rather than a numeric offset.
package list

import (
	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/position"
	"github.com/latticekit/collab/primitive"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

const (
	tagInsert byte = 0
	tagDelete byte = 1
)

// Codec serializes a list's element type to and from bytes.
type Codec[T any] interface {
	Encode(T) []byte
	Decode([]byte) (T, error)
}

// InsertEvent is emitted after a value is inserted, locally or remotely,
// at the index it now occupies.
type InsertEvent[T any] struct {
	Index int
	Value T
}

// DeleteEvent is emitted after a value is removed from the index it last
// occupied.
type DeleteEvent[T any] struct {
	Index int
	Value T
}

// Value is a replicated ordered sequence of values, each addressed by a
// waypoint-tree position so concurrent inserts at the same spot never
// interleave and deletes never reclaim an identity (spec §4.7).
type Value[T any] struct {
	primitive.Base

	self   replica.ID
	engine *position.Engine
	values map[position.Position]T
	codec  Codec[T]

	onInsert *event.Emitter[InsertEvent[T]]
	onDelete *event.Emitter[DeleteEvent[T]]
}

// NewValue constructs an empty list, registered under name on host.
func NewValue[T any](host primitive.Host, name string, codec Codec[T]) *Value[T] {
	self := host.LocalReplica()
	return &Value[T]{
		Base:     primitive.NewBase(host, name),
		self:     self,
		engine:   position.New(self),
		values:   make(map[position.Position]T),
		codec:    codec,
		onInsert: event.New[InsertEvent[T]](),
		onDelete: event.New[DeleteEvent[T]](),
	}
}

// OnInsert subscribes to insert events.
func (l *Value[T]) OnInsert(h event.Handler[InsertEvent[T]]) event.Subscription {
	return l.onInsert.On(h)
}

// OnDelete subscribes to delete events.
func (l *Value[T]) OnDelete(h event.Handler[DeleteEvent[T]]) event.Subscription {
	return l.onDelete.On(h)
}

// Len returns the number of present values.
func (l *Value[T]) Len() int { return l.engine.Len() }

// Get returns the value at index and whether index is in range.
func (l *Value[T]) Get(index int) (T, bool) {
	p, ok := l.engine.PositionOf(index)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := l.values[p]
	return v, ok
}

// All returns every present value, in order.
func (l *Value[T]) All() []T {
	present := l.engine.PresentPositions()
	out := make([]T, len(present))
	for i, p := range present {
		out[i] = l.values[p]
	}
	return out
}

// Insert mints positions for vs immediately before the value currently at
// index (or at the end, if index equals Len()), applies them locally, and
// broadcasts the new waypoint (or waypoint extension) to other replicas.
// It returns the new positions in sequence order.
func (l *Value[T]) Insert(index int, vs ...T) []position.Position {
	if len(vs) == 0 {
		return nil
	}
	positions := l.engine.InsertAt(index, len(vs))
	for i, p := range positions {
		l.values[p] = vs[i]
		l.onInsert.Emit(InsertEvent[T]{Index: index + i, Value: vs[i]})
	}

	meta, _ := l.engine.MetaFor(positions[0].Waypoint)
	w := wire.NewWriter()
	w.PutByte(tagInsert)
	position.EncodeWaypointMeta(w, meta)
	w.PutUvarint(uint64(len(vs)))
	for _, v := range vs {
		w.PutBytes(l.codec.Encode(v))
	}
	l.Send(w.Bytes(), causal.MetadataRequest{})
	return positions
}

// Delete removes the value at index, applies it locally, and broadcasts
// the tombstoned position to other replicas. It returns the removed value
// and whether index was in range.
func (l *Value[T]) Delete(index int) (T, bool) {
	p, ok := l.engine.DeleteAt(index)
	if !ok {
		var zero T
		return zero, false
	}
	v := l.values[p]
	delete(l.values, p)
	l.onDelete.Emit(DeleteEvent[T]{Index: index, Value: v})

	w := wire.NewWriter()
	w.PutByte(tagDelete)
	position.EncodePosition(w, p)
	l.Send(w.Bytes(), causal.MetadataRequest{})
	return v, true
}

// Deliver applies a received insert or delete. Both are idempotent
// against the local echo of a message this replica itself just sent: the
// engine reports no newly extended length (insert) or an already
// tombstoned position (delete) in that case, so no duplicate event fires.
func (l *Value[T]) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		return collab.NewUnknownChildError("list is a leaf")
	}
	r := wire.NewReader(payload)
	tag, err := r.Byte()
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}

	switch tag {
	case tagInsert:
		return l.deliverInsert(r)
	case tagDelete:
		return l.deliverDelete(r)
	default:
		return collab.NewMalformedError("list: unknown message tag")
	}
}

func (l *Value[T]) deliverInsert(r *wire.Reader) error {
	wpMeta, err := position.DecodeWaypointMeta(r)
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}
	count, err := r.Uvarint()
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}
	encoded := make([][]byte, count)
	for i := range encoded {
		b, err := r.Bytes()
		if err != nil {
			return collab.NewMalformedError(err.Error())
		}
		encoded[i] = b
	}

	before := l.engine.Length(wpMeta.ID)
	l.engine.Apply(wpMeta)
	after := wpMeta.Length

	if after <= before {
		// Already applied: this is the local echo of our own Insert, or a
		// duplicate delivery of a waypoint extension we already know.
		return nil
	}
	if after-before != count {
		return collab.NewMalformedError("list: waypoint extension length does not match value count")
	}

	for i := uint64(0); i < count; i++ {
		v, err := l.codec.Decode(encoded[i])
		if err != nil {
			return collab.NewMalformedError(err.Error())
		}
		p := position.Position{Waypoint: wpMeta.ID, Index: before + i}
		l.values[p] = v
		idx := l.engine.IndexOfPosition(p)
		l.onInsert.Emit(InsertEvent[T]{Index: idx, Value: v})
	}
	return nil
}

func (l *Value[T]) deliverDelete(r *wire.Reader) error {
	p, err := position.DecodePosition(r)
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}

	wasPresent := l.engine.IsPresent(p)
	idx := l.engine.IndexOfPosition(p)
	l.engine.ApplyDelete(p)

	if !wasPresent {
		// Already applied: our own echo, or a duplicate remote delete.
		return nil
	}
	v := l.values[p]
	delete(l.values, p)
	l.onDelete.Emit(DeleteEvent[T]{Index: idx, Value: v})
	return nil
}

// Save serializes the position engine's full waypoint set followed by
// every present value, in the engine's total order.
func (l *Value[T]) Save() wire.Save {
	w := wire.NewWriter()
	w.PutBytes(l.engine.EncodeSelf())
	present := l.engine.PresentPositions()
	w.PutUvarint(uint64(len(present)))
	for _, p := range present {
		w.PutBytes(l.codec.Encode(l.values[p]))
	}
	return wire.Save{Self: w.Bytes()}
}

// Load restores state saved by Save.
func (l *Value[T]) Load(s wire.Save) error {
	r := wire.NewReader(s.Self)
	engineBytes, err := r.Bytes()
	if err != nil {
		return err
	}
	engine := position.New(l.self)
	if err := engine.DecodeSelf(engineBytes); err != nil {
		return err
	}

	count, err := r.Uvarint()
	if err != nil {
		return err
	}
	present := engine.PresentPositions()
	if uint64(len(present)) != count {
		return collab.NewMalformedError("list: save value count does not match present positions")
	}
	values := make(map[position.Position]T, count)
	for _, p := range present {
		payload, err := r.Bytes()
		if err != nil {
			return err
		}
		v, err := l.codec.Decode(payload)
		if err != nil {
			return err
		}
		values[p] = v
	}

	l.engine = engine
	l.values = values
	return nil
}

// CanGC reports whether the list currently holds no present values. As
// with counter.Counter, this reflects logical emptiness (everything
// inserted has since been deleted), not literal never-touched state.
func (l *Value[T]) CanGC() bool { return l.engine.Len() == 0 }
