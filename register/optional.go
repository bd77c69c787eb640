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

const (
	optTagSet   byte = 0
	optTagClear byte = 1
)

// Optional is a multi-value register with a reset operation: concurrent
// sets are retained like MultiValue, but a reset clears every entry it
// causally dominates (spec §4.4).
type Optional[T any] struct {
	primitive.Base

	entries []entry[T]
	codec   Codec[T]

	onConflict *event.Emitter[ConflictEvent[T]]
}

// NewOptional constructs an empty Optional register, registered under
// name on host.
func NewOptional[T any](host primitive.Host, name string, codec Codec[T]) *Optional[T] {
	return &Optional[T]{
		Base:       primitive.NewBase(host, name),
		codec:      codec,
		onConflict: event.New[ConflictEvent[T]](),
	}
}

// OnConflict subscribes to conflict-set-changed events.
func (r *Optional[T]) OnConflict(h event.Handler[ConflictEvent[T]]) event.Subscription {
	return r.onConflict.On(h)
}

// Set broadcasts a new value.
func (r *Optional[T]) Set(v T) {
	payload := append([]byte{optTagSet}, r.codec.Encode(v)...)
	r.Send(payload, causal.MetadataRequest{Kind: causal.RequestAll})
}

// Reset broadcasts a clear: every entry the clear's vector clock causally
// dominates is dropped on delivery; a set concurrent with the clear (one
// its vector clock does not cover) survives.
func (r *Optional[T]) Reset() {
	r.Send([]byte{optTagClear}, causal.MetadataRequest{Kind: causal.RequestAll})
}

// IsPresent reports whether the register holds any surviving entry.
func (r *Optional[T]) IsPresent() bool { return len(r.entries) > 0 }

// Conflicts returns the current concurrent values in lex order by sender.
func (r *Optional[T]) Conflicts() []T {
	sorted := r.sortedEntries()
	out := make([]T, len(sorted))
	for i, e := range sorted {
		out[i] = e.value
	}
	return out
}

// Value returns the lex-max-sender entry's value and whether the register
// is present.
func (r *Optional[T]) Value() (T, bool) {
	sorted := r.sortedEntries()
	if len(sorted) == 0 {
		var zero T
		return zero, false
	}
	return sorted[len(sorted)-1].value, true
}

func (r *Optional[T]) sortedEntries() []entry[T] {
	out := make([]entry[T], len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].sender < out[j].sender })
	return out
}

// Deliver applies a received set or clear.
func (r *Optional[T]) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		return collab.NewUnknownChildError("optional register is a leaf")
	}
	if len(payload) == 0 {
		return collab.NewMalformedError("empty optional register payload")
	}
	if !meta.VCAvailable() {
		return collab.NewRequestUnavailableError("vector clock not requested")
	}

	tag, body := payload[0], payload[1:]
	r.subsume(meta.VC)
	switch tag {
	case optTagClear:
		// subsume already dropped everything this clear dominates.
	case optTagSet:
		v, err := r.codec.Decode(body)
		if err != nil {
			return collab.NewMalformedError(err.Error())
		}
		r.entries = append(r.entries, entry[T]{value: v, sender: meta.Sender, senderCounter: meta.SenderCounter})
	default:
		return collab.NewMalformedError("unknown optional register tag")
	}
	r.onConflict.Emit(ConflictEvent[T]{Conflicts: r.Conflicts()})
	return nil
}

func (r *Optional[T]) subsume(vc causal.VectorClock) {
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
func (r *Optional[T]) Save() wire.Save {
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
func (r *Optional[T]) Load(s wire.Save) error {
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
func (r *Optional[T]) CanGC() bool { return len(r.entries) == 0 }
