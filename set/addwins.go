// Package set implements the set family of spec §4.6: an add-wins set of
// serializable values, and a deleting set of dynamically allocated child
// collabs.
package set

import (
	"sort"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/primitive"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

const (
	addWinsTagAdd    byte = 0
	addWinsTagRemove byte = 1
)

// Codec serializes a set's element type to and from bytes.
type Codec[T any] interface {
	Encode(T) []byte
	Decode([]byte) (T, error)
}

// mark is one (sender, senderCounter) add witness. A value is present iff
// it has at least one surviving mark.
type mark struct {
	sender  replica.ID
	counter uint64
}

type addWinsEntry[T any] struct {
	value T
	marks map[mark]struct{}
}

// MembershipEvent is emitted after an add or delete changes whether v is a
// member.
type MembershipEvent[T any] struct {
	Value   T
	Present bool
}

// AddWins is an add-wins set: concurrent add and delete of the same value
// resolve in the add's favor (spec §4.6).
type AddWins[T any] struct {
	primitive.Base

	codec   Codec[T]
	entries map[string]*addWinsEntry[T]

	onMembership *event.Emitter[MembershipEvent[T]]
}

// NewAddWins constructs an empty add-wins set, registered under name on
// host.
func NewAddWins[T any](host primitive.Host, name string, codec Codec[T]) *AddWins[T] {
	return &AddWins[T]{
		Base:         primitive.NewBase(host, name),
		codec:        codec,
		entries:      make(map[string]*addWinsEntry[T]),
		onMembership: event.New[MembershipEvent[T]](),
	}
}

// OnMembership subscribes to membership-changed events.
func (s *AddWins[T]) OnMembership(h event.Handler[MembershipEvent[T]]) event.Subscription {
	return s.onMembership.On(h)
}

// Add broadcasts that v should be a member. The add's own (sender,
// senderCounter) becomes the mark witnessing the add.
func (s *AddWins[T]) Add(v T) {
	w := wire.NewWriter()
	w.PutByte(addWinsTagAdd)
	w.PutBytes(s.codec.Encode(v))
	s.Send(w.Bytes(), causal.MetadataRequest{})
}

// Delete broadcasts the currently known marks for v; a concurrent add the
// sender had not yet observed carries a mark not in this set, so it
// survives the delete ("add wins").
func (s *AddWins[T]) Delete(v T) {
	key := string(s.codec.Encode(v))
	w := wire.NewWriter()
	w.PutByte(addWinsTagRemove)
	w.PutBytes(s.codec.Encode(v))

	entry := s.entries[key]
	if entry == nil {
		w.PutUvarint(0)
	} else {
		w.PutUvarint(uint64(len(entry.marks)))
		for _, m := range sortedMarks(entry.marks) {
			w.PutString(string(m.sender))
			w.PutUvarint(m.counter)
		}
	}
	s.Send(w.Bytes(), causal.MetadataRequest{})
}

// Has reports whether v is currently a member.
func (s *AddWins[T]) Has(v T) bool {
	entry, ok := s.entries[string(s.codec.Encode(v))]
	return ok && len(entry.marks) > 0
}

// Values returns the current members, in lex order of their encoded bytes
// for determinism.
func (s *AddWins[T]) Values() []T {
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if len(e.marks) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = s.entries[k].value
	}
	return out
}

// Deliver applies a received add or remove.
func (s *AddWins[T]) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		return collab.NewUnknownChildError("add-wins set is a leaf")
	}
	r := wire.NewReader(payload)
	tag, err := r.Byte()
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}
	valueBytes, err := r.Bytes()
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}
	v, err := s.codec.Decode(valueBytes)
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}
	key := string(valueBytes)

	switch tag {
	case addWinsTagAdd:
		entry := s.entries[key]
		if entry == nil {
			entry = &addWinsEntry[T]{value: v, marks: make(map[mark]struct{})}
			s.entries[key] = entry
		}
		wasPresent := len(entry.marks) > 0
		entry.marks[mark{sender: meta.Sender, counter: meta.SenderCounter}] = struct{}{}
		if !wasPresent {
			s.onMembership.Emit(MembershipEvent[T]{Value: v, Present: true})
		}
	case addWinsTagRemove:
		n, err := r.Uvarint()
		if err != nil {
			return collab.NewMalformedError(err.Error())
		}
		entry := s.entries[key]
		if entry == nil {
			// Nothing local to subtract from; advance the reader past
			// the transmitted marks and stop.
			for i := uint64(0); i < n; i++ {
				if _, err := r.String(); err != nil {
					return collab.NewMalformedError(err.Error())
				}
				if _, err := r.Uvarint(); err != nil {
					return collab.NewMalformedError(err.Error())
				}
			}
			return nil
		}
		wasPresent := len(entry.marks) > 0
		for i := uint64(0); i < n; i++ {
			sender, err := r.String()
			if err != nil {
				return collab.NewMalformedError(err.Error())
			}
			counter, err := r.Uvarint()
			if err != nil {
				return collab.NewMalformedError(err.Error())
			}
			delete(entry.marks, mark{sender: replica.ID(sender), counter: counter})
		}
		if wasPresent && len(entry.marks) == 0 {
			delete(s.entries, key)
			s.onMembership.Emit(MembershipEvent[T]{Value: v, Present: false})
		}
	default:
		return collab.NewMalformedError("unknown add-wins set tag")
	}
	return nil
}

// Save serializes every member value and its surviving marks.
func (s *AddWins[T]) Save() wire.Save {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := wire.NewWriter()
	w.PutUvarint(uint64(len(keys)))
	for _, k := range keys {
		entry := s.entries[k]
		w.PutBytes(s.codec.Encode(entry.value))
		w.PutUvarint(uint64(len(entry.marks)))
		for _, m := range sortedMarks(entry.marks) {
			w.PutString(string(m.sender))
			w.PutUvarint(m.counter)
		}
	}
	return wire.Save{Self: w.Bytes()}
}

// Load restores state saved by Save.
func (s *AddWins[T]) Load(save wire.Save) error {
	r := wire.NewReader(save.Self)
	n, err := r.Uvarint()
	if err != nil {
		return err
	}
	entries := make(map[string]*addWinsEntry[T], n)
	for i := uint64(0); i < n; i++ {
		valueBytes, err := r.Bytes()
		if err != nil {
			return err
		}
		v, err := s.codec.Decode(valueBytes)
		if err != nil {
			return err
		}
		markCount, err := r.Uvarint()
		if err != nil {
			return err
		}
		marks := make(map[mark]struct{}, markCount)
		for j := uint64(0); j < markCount; j++ {
			sender, err := r.String()
			if err != nil {
				return err
			}
			counter, err := r.Uvarint()
			if err != nil {
				return err
			}
			marks[mark{sender: replica.ID(sender), counter: counter}] = struct{}{}
		}
		entries[string(valueBytes)] = &addWinsEntry[T]{value: v, marks: marks}
	}
	s.entries = entries
	return nil
}

// CanGC reports whether the set has no members.
func (s *AddWins[T]) CanGC() bool { return len(s.entries) == 0 }

// sortedMarks returns marks in a deterministic order (by sender, then
// counter) so Save/Delete produce stable byte encodings: Go map iteration
// order is randomized, so callers needing a stable encoding range over
// this slice instead of the mark set directly.
func sortedMarks(marks map[mark]struct{}) []mark {
	ordered := make([]mark, 0, len(marks))
	for m := range marks {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].sender != ordered[j].sender {
			return ordered[i].sender < ordered[j].sender
		}
		return ordered[i].counter < ordered[j].counter
	})
	return ordered
}
