package register

import (
	"sort"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/primitive"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

// entry is one surviving concurrent write to a MultiValue register.
type entry[T any] struct {
	value         T
	sender        replica.ID
	senderCounter uint64
}

// ConflictEvent is emitted whenever a MultiValue register's conflict set
// changes shape (a concurrent write arrives or is subsumed).
type ConflictEvent[T any] struct {
	Conflicts []T
}

// MultiValue is a multi-value register: concurrent sets are all retained
// until a causally-later set subsumes them (spec §4.4).
type MultiValue[T any] struct {
	primitive.Base

	entries []entry[T]
	codec   Codec[T]

	onConflict *event.Emitter[ConflictEvent[T]]
}

// NewMultiValue constructs an empty MultiValue register, registered under
// name on host.
func NewMultiValue[T any](host primitive.Host, name string, codec Codec[T]) *MultiValue[T] {
	return &MultiValue[T]{
		Base:       primitive.NewBase(host, name),
		codec:      codec,
		onConflict: event.New[ConflictEvent[T]](),
	}
}

// OnConflict subscribes to conflict-set-changed events.
func (r *MultiValue[T]) OnConflict(h event.Handler[ConflictEvent[T]]) event.Subscription {
	return r.onConflict.On(h)
}

// Set broadcasts a new value, requesting the full vector clock the
// subsumption rule needs.
func (r *MultiValue[T]) Set(v T) {
	payload := r.codec.Encode(v)
	r.Send(payload, causal.MetadataRequest{Kind: causal.RequestAll})
}

// Conflicts returns the current concurrent values in lex order by sender.
func (r *MultiValue[T]) Conflicts() []T {
	sorted := r.sortedEntries()
	out := make([]T, len(sorted))
	for i, e := range sorted {
		out[i] = e.value
	}
	return out
}

// Value returns the lex-max-sender entry's value, a deterministic scalar
// view over the conflict set, and whether the register holds any entry.
func (r *MultiValue[T]) Value() (T, bool) {
	sorted := r.sortedEntries()
	if len(sorted) == 0 {
		var zero T
		return zero, false
	}
	return sorted[len(sorted)-1].value, true
}

func (r *MultiValue[T]) sortedEntries() []entry[T] {
	out := make([]entry[T], len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].sender < out[j].sender })
	return out
}

// Deliver applies a received set: every entry the incoming vector clock
// causally dominates is dropped, then the new entry is inserted.
func (r *MultiValue[T]) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		return collab.NewUnknownChildError("multi-value register is a leaf")
	}
	v, err := r.codec.Decode(payload)
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}
	if !meta.VCAvailable() {
		return collab.NewRequestUnavailableError("vector clock not requested")
	}

	r.subsume(meta.VC)
	r.entries = append(r.entries, entry[T]{value: v, sender: meta.Sender, senderCounter: meta.SenderCounter})
	r.onConflict.Emit(ConflictEvent[T]{Conflicts: r.Conflicts()})
	return nil
}

// subsume drops every entry whose (sender, senderCounter) the vc causally
// dominates, in place.
func (r *MultiValue[T]) subsume(vc causal.VectorClock) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if vc.Get(e.sender) >= e.senderCounter {
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
}

// Save serializes every surviving entry.
func (r *MultiValue[T]) Save() wire.Save {
	w := wire.NewWriter()
	sorted := r.sortedEntries()
	w.PutUvarint(uint64(len(sorted)))
	for _, e := range sorted {
		w.PutString(string(e.sender))
		w.PutUvarint(e.senderCounter)
		w.PutBytes(r.codec.Encode(e.value))
	}
	return wire.Save{Self: w.Bytes()}
}

// Load restores state saved by Save.
func (r *MultiValue[T]) Load(s wire.Save) error {
	rd := wire.NewReader(s.Self)
	n, err := rd.Uvarint()
	if err != nil {
		return err
	}
	entries := make([]entry[T], 0, n)
	for i := uint64(0); i < n; i++ {
		sender, err := rd.String()
		if err != nil {
			return err
		}
		counter, err := rd.Uvarint()
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
		entries = append(entries, entry[T]{value: v, sender: replica.ID(sender), senderCounter: counter})
	}
	r.entries = entries
	return nil
}

// CanGC reports whether the register holds no surviving entries.
func (r *MultiValue[T]) CanGC() bool { return len(r.entries) == 0 }
