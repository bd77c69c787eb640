// Package counter implements the op-based Counter CRDT of spec §4.5: a
// per-sender accumulator reached through send/receive rather than the
// teacher's state-based Merge, but converging on the same grow-only join
// the teacher's GCounter performs (here, adding per sender rather than
// taking a max, since every add is a distinct op, not a resent state).
package counter

import (
	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/primitive"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

// ChangeEvent is emitted after an add changes the counter's total.
type ChangeEvent struct {
	Value int64
	Delta int64
}

// Counter is an op-based counter: add(n) broadcasts the delta, and every
// replica accumulates a running per-sender sum (spec §4.5). Deltas may be
// negative, making this a PN-counter in the teacher's terms.
type Counter struct {
	primitive.Base

	bySender map[replica.ID]int64
	onChange *event.Emitter[ChangeEvent]
}

// New constructs an empty Counter, registered under name on host.
func New(host primitive.Host, name string) *Counter {
	return &Counter{
		Base:     primitive.NewBase(host, name),
		bySender: make(map[replica.ID]int64),
		onChange: event.New[ChangeEvent](),
	}
}

// OnChange subscribes to value-changed events.
func (c *Counter) OnChange(h event.Handler[ChangeEvent]) event.Subscription {
	return c.onChange.On(h)
}

// Add broadcasts a delta to be accumulated into the counter's total. n may
// be negative.
func (c *Counter) Add(n int64) {
	w := wire.NewWriter()
	putZigzag(w, n)
	c.Send(w.Bytes(), causal.MetadataRequest{})
}

// Value returns the sum of every sender's accumulated delta.
func (c *Counter) Value() int64 {
	var sum int64
	for _, v := range c.bySender {
		sum += v
	}
	return sum
}

// Deliver applies a received add, accumulating it into the sending
// replica's running sum.
func (c *Counter) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		return collab.NewUnknownChildError("counter is a leaf")
	}
	r := wire.NewReader(payload)
	n, err := getZigzag(r)
	if err != nil {
		return collab.NewMalformedError(err.Error())
	}

	c.bySender[meta.Sender] += n
	c.onChange.Emit(ChangeEvent{Value: c.Value(), Delta: n})
	return nil
}

// Save serializes the per-sender accumulator.
func (c *Counter) Save() wire.Save {
	w := wire.NewWriter()
	w.PutUvarint(uint64(len(c.bySender)))
	for sender, total := range c.bySender {
		w.PutString(string(sender))
		putZigzag(w, total)
	}
	return wire.Save{Self: w.Bytes()}
}

// Load restores state saved by Save.
func (c *Counter) Load(s wire.Save) error {
	r := wire.NewReader(s.Self)
	n, err := r.Uvarint()
	if err != nil {
		return err
	}
	bySender := make(map[replica.ID]int64, n)
	for i := uint64(0); i < n; i++ {
		sender, err := r.String()
		if err != nil {
			return err
		}
		total, err := getZigzag(r)
		if err != nil {
			return err
		}
		bySender[replica.ID(sender)] = total
	}
	c.bySender = bySender
	return nil
}

// CanGC reports whether every sender's accumulated delta is zero (spec
// §4.5: "iff every entry is zero", so a counter that nets to zero through
// offsetting adds, not merely one never touched, is still collectible).
func (c *Counter) CanGC() bool {
	for _, v := range c.bySender {
		if v != 0 {
			return false
		}
	}
	return true
}

// putZigzag appends a signed integer zigzag-encoded into an unsigned
// varint, so small negative deltas cost as few bytes as small positive
// ones.
func putZigzag(w *wire.Writer, n int64) {
	w.PutUvarint(uint64((n << 1) ^ (n >> 63)))
}

func getZigzag(r *wire.Reader) (int64, error) {
	u, err := r.Uvarint()
	if err != nil {
		return 0, err
	}
	n := int64(u>>1) ^ -int64(u&1)
	return n, nil
}
