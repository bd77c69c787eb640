package collabmap

import (
	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/register"
	"github.com/latticekit/collab/wire"
)

// SetEvent is emitted after a Value map key's register gains a value,
// locally or remotely.
type SetEvent[K, V any] struct {
	Key   K
	Value V
}

// DeleteEvent is emitted after a Value map key's register is reset to
// empty.
type DeleteEvent[K any] struct {
	Key K
}

// Value is an LWW map: a Lazy map whose value at each key is a
// register.Optional, surfacing typed Set/Delete events instead of the
// register's raw conflict-set notifications (spec §4.6). A causally later
// Set or Delete replaces earlier ones; among concurrent Sets, Get returns
// the value from the lex-max sender. Lamport timestamps are not compared.
type Value[K, V any] struct {
	lazy   *Lazy[K]
	values register.Codec[V]

	onSet    *event.Emitter[SetEvent[K, V]]
	onDelete *event.Emitter[DeleteEvent[K]]
}

const valueMapChildName = "value"

// NewValue constructs an empty LWW map, registered under ctx's name-path.
func NewValue[K, V any](ctx *collab.InitContext, keys KeyCodec[K], values register.Codec[V]) *Value[K, V] {
	m := &Value[K, V]{
		values:   values,
		onSet:    event.New[SetEvent[K, V]](),
		onDelete: event.New[DeleteEvent[K]](),
	}
	m.lazy = NewLazy[K](ctx, keys, func(childCtx *collab.InitContext) collab.Collab {
		reg := register.NewOptional[V](childCtx, valueMapChildName, values)
		key, err := keys.Decode(childCtx.NamePath()[len(childCtx.NamePath())-1])
		if err != nil {
			return reg
		}
		wasPresent := false
		reg.OnConflict(func(e register.ConflictEvent[V]) {
			present := len(e.Conflicts) > 0
			switch {
			case present && !wasPresent:
				wasPresent = true
				v, _ := reg.Value()
				m.onSet.Emit(SetEvent[K, V]{Key: key, Value: v})
			case present && wasPresent:
				v, _ := reg.Value()
				m.onSet.Emit(SetEvent[K, V]{Key: key, Value: v})
			case !present && wasPresent:
				wasPresent = false
				m.onDelete.Emit(DeleteEvent[K]{Key: key})
			}
		})
		return reg
	})
	return m
}

// OnSet subscribes to key-set events.
func (m *Value[K, V]) OnSet(h event.Handler[SetEvent[K, V]]) event.Subscription {
	return m.onSet.On(h)
}

// OnDelete subscribes to key-deleted events.
func (m *Value[K, V]) OnDelete(h event.Handler[DeleteEvent[K]]) event.Subscription {
	return m.onDelete.On(h)
}

// Set broadcasts a new value for key.
func (m *Value[K, V]) Set(key K, v V) {
	m.lazy.Get(key).(*register.Optional[V]).Set(v)
}

// Delete resets key's underlying register (spec §4.6: delete(k) resets
// the underlying register rather than removing the child).
func (m *Value[K, V]) Delete(key K) {
	m.lazy.Get(key).(*register.Optional[V]).Reset()
}

// Get returns key's current value and whether it is present.
func (m *Value[K, V]) Get(key K) (V, bool) {
	return m.lazy.Get(key).(*register.Optional[V]).Value()
}

// Has reports whether key currently has a value.
func (m *Value[K, V]) Has(key K) bool { return m.lazy.Has(key) }

// Keys returns the currently present keys.
func (m *Value[K, V]) Keys() []K { return m.lazy.Keys() }

// Name returns this map's child-name, satisfying collab.Collab.
func (m *Value[K, V]) Name() string { return m.lazy.Name() }

// Child looks up a constructed child register by its serialized key.
func (m *Value[K, V]) Child(name string) (collab.Collab, bool) { return m.lazy.Child(name) }

// Deliver delegates to the underlying lazy map.
func (m *Value[K, V]) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	return m.lazy.Deliver(path, payload, meta)
}

// Save delegates to the underlying lazy map.
func (m *Value[K, V]) Save() wire.Save { return m.lazy.Save() }

// Load delegates to the underlying lazy map.
func (m *Value[K, V]) Load(s wire.Save) error { return m.lazy.Load(s) }

// CanGC delegates to the underlying lazy map.
func (m *Value[K, V]) CanGC() bool { return m.lazy.CanGC() }
