package counter

import (
	"math"

	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/event"
	"github.com/latticekit/collab/primitive"
	"github.com/latticekit/collab/wire"
)

// Fixed is a fixed-point decimal counter: it wraps a Counter scaled by
// 10^decimals, so every replica accumulates exact integer deltas instead of
// floating-point ones. A true floating-point CRDT has no join that is
// both commutative and exactly round-trip stable across replicas (adding
// 0.1 three times in a different order can land on a different float64
// bit pattern), so Fixed sidesteps that by never summing floats at all —
// only Add's rounding to the nearest scaled unit touches float64.
type Fixed struct {
	inner *Counter
	scale int64
}

// NewFixed constructs a Fixed counter with decimals digits after the
// point (e.g. decimals=2 stores cents exactly for a currency total).
func NewFixed(host primitive.Host, name string, decimals int) *Fixed {
	return &Fixed{
		inner: New(host, name),
		scale: pow10(decimals),
	}
}

// OnChange subscribes to value-changed events. The event's Value/Delta
// fields are still in scaled integer units; divide by 10^decimals to
// recover the float64 the caller passed to Add.
func (f *Fixed) OnChange(h event.Handler[ChangeEvent]) event.Subscription {
	return f.inner.OnChange(h)
}

// Add broadcasts n, rounded to the nearest representable unit at this
// counter's scale.
func (f *Fixed) Add(n float64) {
	f.inner.Add(int64(math.Round(n * float64(f.scale))))
}

// Value returns the counter's total, divided back down to a float64.
func (f *Fixed) Value() float64 {
	return float64(f.inner.Value()) / float64(f.scale)
}

// Deliver satisfies collab.Collab by delegating to the inner Counter.
func (f *Fixed) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	return f.inner.Deliver(path, payload, meta)
}

// Save satisfies collab.Collab by delegating to the inner Counter.
func (f *Fixed) Save() wire.Save { return f.inner.Save() }

// Load satisfies collab.Collab by delegating to the inner Counter.
func (f *Fixed) Load(s wire.Save) error { return f.inner.Load(s) }

// CanGC satisfies collab.Collab by delegating to the inner Counter.
func (f *Fixed) CanGC() bool { return f.inner.CanGC() }

// Name satisfies collab.Collab by delegating to the inner Counter.
func (f *Fixed) Name() string { return f.inner.Name() }

func pow10(decimals int) int64 {
	n := int64(1)
	for i := 0; i < decimals; i++ {
		n *= 10
	}
	return n
}
