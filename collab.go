// Package collab is a client-side library for building local-first,
// peer-to-peer collaborative applications out of composable, replicated
// data structures ("collabs"). See SPEC_FULL.md for the full design.
package collab

import (
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/wire"
)

// Collab is the cross-cutting interface every node in the tree satisfies
// (spec §9): a tagged-variant-like closed set of built-in primitives and
// composites, all reachable through this single interface rather than a
// polymorphic base class.
type Collab interface {
	// Name returns this collab's child-name as assigned by its parent.
	Name() string
	// Deliver routes a message whose remaining name-path (after the hop
	// that reached this collab) is path. A leaf collab requires path to
	// be empty; a composite with no child at path[0] returns an
	// UnknownChild error.
	Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error
	// Save returns this collab's own serialized state and, for
	// composites, its children's framed saves.
	Save() wire.Save
	// Load restores state from a Save produced by Save. Load is only
	// ever called by the runtime before the first send or receive.
	Load(wire.Save) error
	// CanGC reports whether this collab's state is indistinguishable
	// from its initial state on every replica that has received the
	// same messages, and so may be dropped from a save (spec §3).
	CanGC() bool
}

// Composite is a Collab that hosts children addressed by the next segment
// of a name-path.
type Composite interface {
	Collab
	// Child looks up a child by its locally assigned name.
	Child(name string) (Collab, bool)
}

// routeReceive walks path against a Composite tree, the way Runtime.Receive
// and every composite collab's own Deliver implementation do: pop one
// segment, find the child, recurse.
func routeReceive(c Composite, path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) == 0 {
		return newError(KindUnknownChild, "message addressed a composite directly")
	}
	child, ok := c.Child(path[0])
	if !ok {
		return newError(KindUnknownChild, "no child named "+path[0])
	}
	return child.Deliver(path[1:], payload, meta)
}
