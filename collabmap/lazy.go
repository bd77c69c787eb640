// Package collabmap implements the map family of spec §4.6: a lazily
// materialized keyed map of child collabs, and an LWW-backed value map
// built on top of it.
package collabmap

import (
	"sort"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/wire"
)

// KeyCodec serializes a map's key type to and from the string a child
// collab is named by.
type KeyCodec[K any] interface {
	Encode(K) string
	Decode(string) (K, error)
}

// Factory constructs the child collab living at a lazy map's key.
type Factory func(ctx *collab.InitContext) collab.Collab

// Lazy is a keyed map where the value at key k is a child collab named
// serialize(k), constructed the first time k is touched, locally or by a
// remote message (spec §4.6). Every replica builds the identical child
// the first time any replica references k, so construction itself
// carries no wire traffic.
type Lazy[K any] struct {
	ctx     *collab.InitContext
	keys    KeyCodec[K]
	factory Factory

	children map[string]collab.Collab
}

// NewLazy constructs an empty lazy map, registered under ctx's name-path.
func NewLazy[K any](ctx *collab.InitContext, keys KeyCodec[K], factory Factory) *Lazy[K] {
	return &Lazy[K]{
		ctx:      ctx,
		keys:     keys,
		factory:  factory,
		children: make(map[string]collab.Collab),
	}
}

// Name returns this map's child-name, satisfying collab.Collab.
func (m *Lazy[K]) Name() string {
	path := m.ctx.NamePath()
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

// Get returns the child collab at key, constructing it via the factory on
// first reference. The returned value is stable: repeated Get calls for
// the same key return the same instance.
func (m *Lazy[K]) Get(key K) collab.Collab {
	name := m.keys.Encode(key)
	return m.getByName(name)
}

func (m *Lazy[K]) getByName(name string) collab.Collab {
	if c, ok := m.children[name]; ok {
		return c
	}
	c := m.factory(m.ctx.Child(name))
	m.children[name] = c
	return c
}

// Has reports whether key's child is present: constructed and not
// canGC()-equivalent to its initial state.
func (m *Lazy[K]) Has(key K) bool {
	c, ok := m.children[m.keys.Encode(key)]
	return ok && !c.CanGC()
}

// Keys returns the currently present keys, in lex order of their
// serialized form.
func (m *Lazy[K]) Keys() []K {
	names := make([]string, 0, len(m.children))
	for name, c := range m.children {
		if !c.CanGC() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]K, 0, len(names))
	for _, name := range names {
		k, err := m.keys.Decode(name)
		if err != nil {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Child looks up a constructed child by its serialized name.
func (m *Lazy[K]) Child(name string) (collab.Collab, bool) {
	c, ok := m.children[name]
	return c, ok
}

// Deliver routes a message to the key's child, constructing it lazily if
// this replica has not referenced the key before.
func (m *Lazy[K]) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) == 0 {
		return collab.NewUnknownChildError("lazy map message must address a key's child")
	}
	child := m.getByName(path[0])
	return child.Deliver(path[1:], payload, meta)
}

// Save serializes every present child (a child indistinguishable from its
// initial state is omitted; load will lazily reconstruct it if ever
// referenced again).
func (m *Lazy[K]) Save() wire.Save {
	names := make([]string, 0, len(m.children))
	for name, c := range m.children {
		if !c.CanGC() {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	children := make([]wire.ChildSave, 0, len(names))
	for _, name := range names {
		children = append(children, wire.ChildSave{Name: name, Save: m.children[name].Save()})
	}
	return wire.Save{Children: children}
}

// Load restores state saved by Save, constructing every saved child
// immediately and replacing any children constructed before.
func (m *Lazy[K]) Load(save wire.Save) error {
	children := make(map[string]collab.Collab, len(save.Children))
	for _, cs := range save.Children {
		c := m.factory(m.ctx.Child(cs.Name))
		if err := c.Load(cs.Save); err != nil {
			return err
		}
		children[cs.Name] = c
	}
	m.children = children
	return nil
}

// CanGC reports whether every constructed child is itself collectible.
func (m *Lazy[K]) CanGC() bool {
	for _, c := range m.children {
		if !c.CanGC() {
			return false
		}
	}
	return true
}
