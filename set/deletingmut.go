package set

import (
	"sort"
	"strconv"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/wire"
)

const (
	deletingMutTagAdd    byte = 0
	deletingMutTagRemove byte = 1
)

// Factory constructs the collab living at a freshly added element's slot.
// It is invoked identically on every replica once the add is delivered, so
// it must be deterministic.
type Factory func(ctx *collab.InitContext) collab.Collab

// DeletingMut is a set of dynamically allocated child collabs (spec
// §4.6): add mints a fresh child at a name derived from the add message's
// own causal stamp, and delete permanently removes a child, discarding
// any operation concurrently in flight to it.
type DeletingMut struct {
	ctx     *collab.InitContext
	factory Factory

	children   map[string]collab.Collab
	tombstoned map[string]struct{}

	// addOrdinal disambiguates multiple adds issued in the same
	// transaction: they share one (sender, senderCounter) stamp, so the
	// child name also carries the add's position among same-stamped
	// adds delivered to this set, consistent across replicas because
	// delivery order within a transaction is preserved end to end.
	addOrdinal map[string]uint64

	onMembership *event.Emitter[MembershipEvent[string]]
}

// NewDeletingMut constructs an empty deleting set of dynamic collabs,
// registered under ctx's name-path. Children ctx mints are passed to
// factory.
func NewDeletingMut(ctx *collab.InitContext, factory Factory) *DeletingMut {
	return &DeletingMut{
		ctx:          ctx,
		factory:      factory,
		children:     make(map[string]collab.Collab),
		tombstoned:   make(map[string]struct{}),
		addOrdinal:   make(map[string]uint64),
		onMembership: event.New[MembershipEvent[string]](),
	}
}

// OnMembership subscribes to child-added/child-removed events, carrying
// the affected child's name.
func (s *DeletingMut) OnMembership(h event.Handler[MembershipEvent[string]]) event.Subscription {
	return s.onMembership.On(h)
}

// Name returns this set's child-name, satisfying collab.Collab.
func (s *DeletingMut) Name() string {
	path := s.ctx.NamePath()
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

// Add broadcasts a creation marker; every replica, including this one via
// local echo, allocates the new child once the marker is delivered.
func (s *DeletingMut) Add() {
	s.ctx.Enqueue([]byte{deletingMutTagAdd}, causal.MetadataRequest{})
}

// Delete broadcasts the removal of an existing child, named by its
// assigned name. The child and every descendant are permanently dropped
// from every replica that delivers the message.
func (s *DeletingMut) Delete(childName string) {
	w := wire.NewWriter()
	w.PutByte(deletingMutTagRemove)
	w.PutString(childName)
	s.ctx.Enqueue(w.Bytes(), causal.MetadataRequest{})
}

// Child looks up a live child by its assigned name.
func (s *DeletingMut) Child(name string) (collab.Collab, bool) {
	c, ok := s.children[name]
	return c, ok
}

// Children returns the currently live children's names, in lex order.
func (s *DeletingMut) Children() []string {
	names := make([]string, 0, len(s.children))
	for name := range s.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deliver applies a received add or remove, or routes a message addressed
// to a child. A message for a tombstoned child's subtree is discarded:
// the concurrent-operation-to-a-deleted-child case (spec §4.6).
func (s *DeletingMut) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		name := path[0]
		if _, gone := s.tombstoned[name]; gone {
			return nil
		}
		child, ok := s.children[name]
		if !ok {
			return collab.NewUnknownChildError("no child named " + name)
		}
		return child.Deliver(path[1:], payload, meta)
	}

	if len(payload) == 0 {
		return collab.NewMalformedError("empty deleting-mut set payload")
	}
	tag := payload[0]
	switch tag {
	case deletingMutTagAdd:
		key := string(meta.Sender) + "-" + strconv.FormatUint(meta.SenderCounter, 10)
		ordinal := s.addOrdinal[key]
		s.addOrdinal[key] = ordinal + 1
		name := key + "-" + strconv.FormatUint(ordinal, 10)

		child := s.factory(s.ctx.Child(name))
		s.children[name] = child
		s.onMembership.Emit(MembershipEvent[string]{Value: name, Present: true})
		return nil
	case deletingMutTagRemove:
		r := wire.NewReader(payload[1:])
		name, err := r.String()
		if err != nil {
			return collab.NewMalformedError(err.Error())
		}
		if _, ok := s.children[name]; ok {
			delete(s.children, name)
			s.onMembership.Emit(MembershipEvent[string]{Value: name, Present: false})
		}
		s.tombstoned[name] = struct{}{}
		return nil
	default:
		return collab.NewMalformedError("unknown deleting-mut set tag")
	}
}

// Save serializes every live child, framed by name, plus the tombstone
// list so a reload does not resurrect a deleted child on a later message.
func (s *DeletingMut) Save() wire.Save {
	names := s.Children()
	children := make([]wire.ChildSave, 0, len(names))
	for _, name := range names {
		children = append(children, wire.ChildSave{Name: name, Save: s.children[name].Save()})
	}

	tombstones := make([]string, 0, len(s.tombstoned))
	for name := range s.tombstoned {
		tombstones = append(tombstones, name)
	}
	sort.Strings(tombstones)

	w := wire.NewWriter()
	w.PutUvarint(uint64(len(tombstones)))
	for _, name := range tombstones {
		w.PutString(name)
	}
	return wire.Save{Self: w.Bytes(), Children: children}
}

// Load restores state saved by Save: it reads the tombstone list, then
// re-runs the factory for each saved child and loads that child from its
// framed save, replacing any children held before.
func (s *DeletingMut) Load(save wire.Save) error {
	r := wire.NewReader(save.Self)
	n, err := r.Uvarint()
	if err != nil {
		return err
	}
	tombstoned := make(map[string]struct{}, n)
	for i := uint64(0); i < n; i++ {
		name, err := r.String()
		if err != nil {
			return err
		}
		tombstoned[name] = struct{}{}
	}
	s.tombstoned = tombstoned

	children := make(map[string]collab.Collab, len(save.Children))
	addOrdinal := make(map[string]uint64)
	for _, cs := range save.Children {
		child := s.factory(s.ctx.Child(cs.Name))
		if err := child.Load(cs.Save); err != nil {
			return err
		}
		children[cs.Name] = child
		recordOrdinal(addOrdinal, cs.Name)
	}
	s.children = children
	s.addOrdinal = addOrdinal
	return nil
}

// recordOrdinal advances addOrdinal's count for name's (sender,
// senderCounter) prefix past the ordinal encoded in name, so a
// post-load add never reuses a name a loaded save already assigned.
func recordOrdinal(addOrdinal map[string]uint64, name string) {
	idx := lastDash(name)
	if idx < 0 {
		return
	}
	key := name[:idx]
	ordinalStr := name[idx+1:]
	ordinal, err := strconv.ParseUint(ordinalStr, 10, 64)
	if err != nil {
		return
	}
	if ordinal+1 > addOrdinal[key] {
		addOrdinal[key] = ordinal + 1
	}
}

func lastDash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return i
		}
	}
	return -1
}

// CanGC reports whether the set has no live children and no tombstones to
// remember.
func (s *DeletingMut) CanGC() bool {
	return len(s.children) == 0 && len(s.tombstoned) == 0
}
