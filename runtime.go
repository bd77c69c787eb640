package collab

import (
	"sync"
	"sync/atomic"

	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/wire"
)

// State is a Runtime's position in its lifecycle state machine:
// Fresh -> Loaded -> Live -> Closed (spec §4.1).
type State int32

const (
	StateFresh State = iota
	StateLoaded
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateLoaded:
		return "Loaded"
	case StateLive:
		return "Live"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type pendingMessage struct {
	path    []string
	payload []byte
	req     causal.MetadataRequest
}

// Runtime hosts a rooted tree of collabs, routes messages between them,
// groups operations into transactions, and drives save/load (spec §4.1).
type Runtime struct {
	replicaID replica.ID
	logger    Logger
	observer  Observer

	useLamport   bool
	useWallClock bool
	clockSource  ClockSource

	state int32 // atomic State

	mu       sync.Mutex
	children map[string]Collab
	order    []string // registration order, for deterministic Save

	causalSvc *causal.Service
	outbound  func([]byte) error

	// txMu serializes transactions; the runtime's scheduling model is
	// single-threaded cooperative (spec §5), so this only guards against
	// accidental concurrent use from multiple goroutines.
	txMu    sync.Mutex
	pending []pendingMessage

	runLocally []causal.Metadata // stack of active run-locally scopes
}

// NewRuntime constructs a fresh Runtime. If no replica id is supplied via
// WithReplicaID, one is generated from a cryptographic RNG.
func NewRuntime(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		logger:   NopLogger{},
		children: make(map[string]Collab),
		state:    int32(StateFresh),
	}
	for _, o := range opts {
		o(r)
	}
	if r.replicaID == "" {
		id, err := replica.Generate()
		if err != nil {
			return nil, err
		}
		r.replicaID = id
	}

	var causalOpts []causal.Option
	if r.useLamport {
		causalOpts = append(causalOpts, causal.WithLamport())
	}
	if r.useWallClock {
		now := r.clockSource
		if now == nil {
			now = func() int64 { return 0 }
		}
		causalOpts = append(causalOpts, causal.WithWallClock(now))
	}
	r.causalSvc = causal.NewService(r.replicaID, causalOpts...)
	return r, nil
}

// ReplicaID returns this runtime's replica identity.
func (r *Runtime) ReplicaID() replica.ID { return r.replicaID }

// State returns the runtime's current lifecycle state.
func (r *Runtime) State() State { return State(atomic.LoadInt32(&r.state)) }

func (r *Runtime) goLive() {
	for {
		cur := atomic.LoadInt32(&r.state)
		if State(cur) == StateLive || State(cur) == StateClosed {
			return
		}
		if atomic.CompareAndSwapInt32(&r.state, cur, int32(StateLive)) {
			return
		}
	}
}

// SetOutbound installs the callback invoked with each committed
// transaction's wire encoding. A nil sink (the default) discards outbound
// bytes, which is fine for a runtime used purely for local computation and
// saves.
func (r *Runtime) SetOutbound(fn func([]byte) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbound = fn
}

// RegisterCollab installs a top-level collab under name, built by factory.
// It fails once the runtime has sent or received its first message.
func (r *Runtime) RegisterCollab(name string, factory func(*InitContext) Collab) (Collab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if State(atomic.LoadInt32(&r.state)) == StateLive || State(atomic.LoadInt32(&r.state)) == StateClosed {
		return nil, newError(KindInvalidState, "RegisterCollab after runtime went live")
	}
	if _, exists := r.children[name]; exists {
		return nil, newError(KindInvalidState, "duplicate top-level collab name "+name)
	}

	ic := &InitContext{rt: r, path: []string{name}}
	c := factory(ic)
	r.children[name] = c
	r.order = append(r.order, name)
	return c, nil
}

// Child looks up a registered top-level collab by name.
func (r *Runtime) Child(name string) (Collab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.children[name]
	return c, ok
}

// root adapts Runtime to the Composite interface so message routing can
// reuse routeReceive; Runtime's own public Save/Load operate on raw bytes
// (matching spec §4.1's save()/load() signatures) rather than the
// wire.Save tree value Collab.Save returns, so the adaptation lives on a
// distinct, unexported type instead of Runtime itself.
type root struct{ rt *Runtime }

func (root) Name() string { return "" }

func (r root) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	return routeReceive(r, path, payload, meta)
}

func (r root) Child(name string) (Collab, bool) { return r.rt.Child(name) }

func (r root) Save() wire.Save {
	r.rt.mu.Lock()
	defer r.rt.mu.Unlock()
	s := wire.Save{}
	for _, name := range r.rt.order {
		s.Children = append(s.Children, wire.ChildSave{Name: name, Save: r.rt.children[name].Save()})
	}
	return s
}

func (r root) Load(s wire.Save) error {
	r.rt.mu.Lock()
	defer r.rt.mu.Unlock()
	for _, cs := range s.Children {
		c, ok := r.rt.children[cs.Name]
		if !ok {
			return newError(KindUnknownChild, "save references unregistered collab "+cs.Name)
		}
		if err := c.Load(cs.Save); err != nil {
			return err
		}
	}
	return nil
}

func (root) CanGC() bool { return false }

func (r *Runtime) enqueue(path []string, payload []byte, req causal.MetadataRequest) {
	r.mu.Lock()
	inRunLocally := len(r.runLocally) > 0
	var meta causal.Metadata
	if inRunLocally {
		meta = r.runLocally[len(r.runLocally)-1]
	}
	r.mu.Unlock()

	if inRunLocally {
		// Run-locally messages never reach the wire; they are
		// delivered immediately using the externally supplied
		// metadata (spec §4.1, §9).
		r.deliverLocal(path, payload, meta)
		return
	}

	// Enqueue is only ever called from within the dynamic extent of a
	// Transact call (directly, by a primitive's Send), which already
	// holds txMu for the transaction's duration, so no further locking
	// is needed here (spec §5: transactions are a contiguous
	// non-suspending region on a single logical thread).
	r.pending = append(r.pending, pendingMessage{path: append([]string{}, path...), payload: payload, req: req})
}

func (r *Runtime) deliverLocal(path []string, payload []byte, meta causal.Metadata) {
	if err := routeReceive(root{r}, wire.NamePath(path), payload, meta); err != nil {
		r.logger.Warnf("collab: run-locally delivery to %v failed: %v", path, err)
	}
}

// Transact runs fn; every message a collab sends during fn is batched into
// one transaction, sharing a single causal-metadata stamp, and delivered
// atomically (local echo first, then handed to the transport).
//
// txMu only serializes the batching-and-stamping phase, not local-echo
// delivery: spec §5 permits a handler invoked during local echo (e.g.
// register.LWW.OnSet) to start its own Transact, and txMu is a plain,
// non-reentrant Mutex, so that nested call would deadlock on the same
// goroutine if it were still held at delivery time.
func (r *Runtime) Transact(fn func()) error {
	if r.State() == StateClosed {
		return newError(KindInvalidState, "Transact on a closed runtime")
	}
	r.goLive()

	r.txMu.Lock()
	r.pending = nil
	fn()
	batch := r.pending
	r.pending = nil

	if len(batch) == 0 {
		r.txMu.Unlock()
		return nil
	}

	req := mergeRequests(batch)
	stamp := r.causalSvc.Stamp(req)
	meta := stamp.MetadataFor(req)

	msgs := make([]wire.Message, 0, len(batch))
	for _, m := range batch {
		frames := make([]wire.Frame, len(m.path))
		for i, seg := range m.path {
			frames[i] = wire.PlainFrame(seg)
		}
		msgs = append(msgs, wire.Message{Path: frames, Payload: m.payload})
	}

	tx := wire.Transaction{
		Sender:        stamp.Sender,
		SenderCounter: stamp.SenderCounter,
		HasLamport:    meta.HasLamport,
		Lamport:       meta.Lamport,
		HasWallClock:  meta.HasWallClock,
		WallClock:     meta.WallClock,
		Messages:      msgs,
	}
	if meta.VCAvailable() {
		tx.VCPrefix = meta.VC.Entries()
	}

	raw := stamp.AsRaw()
	raw.Body = msgs
	delivered := r.causalSvc.Deliver(raw)

	r.txMu.Unlock()

	// Local echo: replay through the identical causal-delivery and
	// routing path a remote transaction would take. This runs after
	// txMu is released so a handler it invokes can freely start another
	// Transact.
	for _, d := range delivered {
		body, _ := d.Raw.Body.([]wire.Message)
		r.deliverTransaction(d.Raw.Sender, body, d.Meta)
	}

	if r.outbound != nil {
		dict := wire.NewReplicaDict()
		data := tx.Encode(dict)
		if err := r.outbound(data); err != nil {
			return err
		}
	}
	return nil
}

func mergeRequests(batch []pendingMessage) causal.MetadataRequest {
	merged := causal.MetadataRequest{}
	seen := map[replica.ID]bool{}
	for _, m := range batch {
		switch m.req.Kind {
		case causal.RequestAll:
			merged.Kind = causal.RequestAll
		case causal.RequestNamed, causal.RequestAutomatic:
			if merged.Kind != causal.RequestAll {
				merged.Kind = causal.RequestNamed
			}
			for _, id := range m.req.Entries {
				if !seen[id] {
					seen[id] = true
					merged.Entries = append(merged.Entries, id)
				}
			}
		}
		if m.req.WallClockTime {
			merged.WallClockTime = true
		}
		if m.req.LamportTimestamp {
			merged.LamportTimestamp = true
		}
	}
	return merged
}

func (r *Runtime) deliverTransaction(sender replica.ID, msgs []wire.Message, meta causal.Metadata) {
	for _, m := range msgs {
		path := wire.Strings(m.Path)
		if err := routeReceive(root{r}, path, m.Payload, meta); err != nil {
			r.logger.Warnf("collab: delivery from %s to %v failed: %v", sender, path, err)
			if r.observer != nil {
				r.observer.OnTransactionDiscarded(err)
			}
		}
	}
}

// Receive delivers one remote transaction's wire encoding. Malformed bytes
// or an envelope addressing an unregistered top-level name are fatal only
// for that transaction: it is discarded, an observability event fires, and
// the runtime continues (spec §7).
func (r *Runtime) Receive(data []byte) error {
	if State(atomic.LoadInt32(&r.state)) == StateClosed {
		return newError(KindInvalidState, "Receive on a closed runtime")
	}
	r.goLive()

	tx, err := wire.DecodeTransaction(data)
	if err != nil {
		wrapped := newError(KindMalformed, err.Error())
		if r.observer != nil {
			r.observer.OnTransactionDiscarded(wrapped)
		}
		return wrapped
	}

	vc := make(causal.VectorClock, len(tx.VCPrefix))
	for _, e := range tx.VCPrefix {
		vc[e.Replica] = e.Counter
	}
	raw := causal.RawTransaction{
		Sender:        tx.Sender,
		SenderCounter: tx.SenderCounter,
		HasLamport:    tx.HasLamport,
		Lamport:       tx.Lamport,
		HasWallClock:  tx.HasWallClock,
		WallClock:     tx.WallClock,
		VCPrefix:      vc,
		Body:          tx.Messages,
	}

	for _, d := range r.causalSvc.Deliver(raw) {
		body, _ := d.Raw.Body.([]wire.Message)
		r.deliverTransaction(d.Raw.Sender, body, d.Meta)
	}

	return nil
}

// PendingCount returns the number of inbound transactions buffered
// awaiting causal dependencies, for observability (spec §5).
func (r *Runtime) PendingCount() int {
	return r.causalSvc.PendingCount()
}

// RunLocally runs fn in a scoped mode that redirects any outbound messages
// from descendants back into the local receive path, stamped with meta,
// and never onto the wire. Nesting is supported by reference-counting the
// active scope (spec §9's open question, resolved in favor of
// reference-counting): a handler that itself triggers another run-locally
// block keeps using its own metadata for that inner scope.
func (r *Runtime) RunLocally(meta causal.Metadata, fn func()) {
	r.mu.Lock()
	r.runLocally = append(r.runLocally, meta)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.runLocally = r.runLocally[:len(r.runLocally)-1]
		r.mu.Unlock()
	}()

	fn()
}

// Save returns a canonical snapshot of the full subtree: a pre-order
// traversal concatenating each top-level collab's own save with framed
// child saves (spec §4.1, §6).
func (r *Runtime) Save() []byte {
	return root{r}.Save().Marshal()
}

// Load restores state from a snapshot produced by Save. Load is legal only
// in the Fresh state and transitions the runtime to Loaded.
func (r *Runtime) Load(data []byte) error {
	if State(atomic.LoadInt32(&r.state)) != StateFresh {
		return newError(KindInvalidState, "Load outside the Fresh state")
	}

	save, err := wire.UnmarshalSave(data)
	if err != nil {
		return newError(KindMalformed, err.Error())
	}
	if err := (root{r}).Load(save); err != nil {
		return err
	}
	atomic.StoreInt32(&r.state, int32(StateLoaded))
	return nil
}

// Close transitions the runtime to Closed. Further Transact/Receive calls
// fail with InvalidState.
func (r *Runtime) Close() {
	atomic.StoreInt32(&r.state, int32(StateClosed))
}
