// Package register implements the LWW, multi-value, and optional register
// CRDTs of spec §4.4.
package register

import (
	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/primitive"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

// SetEvent is emitted by LWW after a local or remote Set changes the
// stored value.
type SetEvent[T any] struct {
	Value         T
	PreviousValue T
}

// LWW is a last-writer-wins register: concurrent sets are resolved by
// Lamport timestamp, tie-broken by sender (spec §4.4).
type LWW[T any] struct {
	primitive.Base

	present bool
	value   T
	lamport uint64
	sender  replica.ID

	codec Codec[T]
	onSet *event.Emitter[SetEvent[T]]
}

// Codec serializes a register's value type to and from bytes.
type Codec[T any] interface {
	Encode(T) []byte
	Decode([]byte) (T, error)
}

// NewLWW constructs an LWW register, registered under name on host.
func NewLWW[T any](host primitive.Host, name string, codec Codec[T]) *LWW[T] {
	return &LWW[T]{
		Base:  primitive.NewBase(host, name),
		codec: codec,
		onSet: event.New[SetEvent[T]](),
	}
}

// OnSet subscribes to Set events.
func (r *LWW[T]) OnSet(h event.Handler[SetEvent[T]]) event.Subscription {
	return r.onSet.On(h)
}

// Value returns the current value and whether the register has ever been
// set.
func (r *LWW[T]) Value() (T, bool) {
	return r.value, r.present
}

// Set broadcasts a new value, requesting the Lamport timestamp the
// conflict resolution rule needs (no wall-clock time is requested).
func (r *LWW[T]) Set(v T) {
	payload := r.codec.Encode(v)
	r.Send(payload, causal.MetadataRequest{LamportTimestamp: true})
}

// Deliver applies a received Set message, following LWW's conflict rule:
// the incoming value wins iff its (lamport, sender) strictly exceeds the
// stored one.
func (r *LWW[T]) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		return collab.NewUnknownChildError("LWW register is a leaf")
	}
	v, err := r.codec.Decode(payload)
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}

	if !meta.LamportAvailable() {
		return collab.NewRequestUnavailableError("lamport timestamp not requested")
	}

	if r.present && !wins(meta.Lamport, meta.Sender, r.lamport, r.sender) {
		return nil
	}

	prev := r.value
	r.value = v
	r.lamport = meta.Lamport
	r.sender = meta.Sender
	r.present = true
	r.onSet.Emit(SetEvent[T]{Value: v, PreviousValue: prev})
	return nil
}

// wins reports whether (lamportA, senderA) strictly beats
// (lamportB, senderB) in the arbitration order: higher lamport wins;
// ties broken lexicographically by sender.
func wins(lamportA uint64, senderA replica.ID, lamportB uint64, senderB replica.ID) bool {
	if lamportA != lamportB {
		return lamportA > lamportB
	}
	return senderA > senderB
}

// Save serializes the register's current winning entry, if any.
func (r *LWW[T]) Save() wire.Save {
	if !r.present {
		return wire.Save{Self: []byte{0}}
	}
	w := wire.NewWriter()
	w.PutByte(1)
	w.PutUvarint(r.lamport)
	w.PutString(string(r.sender))
	w.PutBytes(r.codec.Encode(r.value))
	return wire.Save{Self: w.Bytes()}
}

// Load restores state saved by Save.
func (r *LWW[T]) Load(s wire.Save) error {
	if len(s.Self) == 0 || s.Self[0] == 0 {
		r.present = false
		return nil
	}
	rd := wire.NewReader(s.Self[1:])
	lamport, err := rd.Uvarint()
	if err != nil {
		return err
	}
	sender, err := rd.String()
	if err != nil {
		return err
	}
	payload, err := rd.Bytes()
	if err != nil {
		return err
	}
	v, err := r.codec.Decode(payload)
	if err != nil {
		return err
	}
	r.present = true
	r.lamport = lamport
	r.sender = replica.ID(sender)
	r.value = v
	return nil
}

// CanGC reports whether the register still holds its initial (unset)
// state.
func (r *LWW[T]) CanGC() bool { return !r.present }
