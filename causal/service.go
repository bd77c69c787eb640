package causal

import (
	"github.com/latticekit/collab/replica"
)

// RawTransaction is an inbound transaction as decoded off the wire, before
// the causal service has decided it is deliverable.
type RawTransaction struct {
	Sender        replica.ID
	SenderCounter uint64
	HasLamport    bool
	Lamport       uint64
	HasWallClock  bool
	WallClock     int64
	VCPrefix      VectorClock
	Body          any // opaque payload the runtime routes once deliverable
}

// Delivered is a transaction the service has cleared for causal delivery,
// paired with the Metadata its sender requested be visible.
type Delivered struct {
	Raw  RawTransaction
	Meta Metadata
}

// Service is the causal-metadata service of spec §4.2: it stamps outbound
// transactions and buffers inbound ones until their causal dependencies
// have arrived.
type Service struct {
	self    replica.ID
	vc      VectorClock
	lamport uint64

	useLamport   bool
	useWallClock bool
	now          func() int64

	// pending holds, per sender, transactions not yet deliverable,
	// keyed by the senderCounter they are waiting to become current.
	pending map[replica.ID]map[uint64]RawTransaction
}

// Option configures a Service at construction.
type Option func(*Service)

// WithLamport enables Lamport-timestamp tracking.
func WithLamport() Option { return func(s *Service) { s.useLamport = true } }

// WithWallClock enables wall-clock stamping, using now to read the current
// time (injected so tests are deterministic).
func WithWallClock(now func() int64) Option {
	return func(s *Service) {
		s.useWallClock = true
		s.now = now
	}
}

// NewService constructs a causal-metadata service for replica self.
func NewService(self replica.ID, opts ...Option) *Service {
	s := &Service{
		self:    self,
		vc:      make(VectorClock),
		pending: make(map[replica.ID]map[uint64]RawTransaction),
		now:     func() int64 { return 0 },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// VectorClock returns a snapshot of the service's current vector clock.
func (s *Service) VectorClock() VectorClock { return s.vc.Copy() }

// PendingCount returns the number of inbound transactions buffered waiting
// on causal dependencies, for observability (spec §5).
func (s *Service) PendingCount() int {
	n := 0
	for _, m := range s.pending {
		n += len(m)
	}
	return n
}

// TxStamp is the causal stamp for one committed transaction: one
// senderCounter increment and one vector-clock snapshot shared by every
// message in the transaction, from which each message's own Metadata is
// then built according to its own metadata request.
type TxStamp struct {
	Sender        replica.ID
	SenderCounter uint64
	HasLamport    bool
	Lamport       uint64
	HasWallClock  bool
	WallClock     int64
	VC            VectorClock
}

// Stamp advances the local vector clock by one (one senderCounter per
// transaction, not per message, per spec §4.1) and returns the stamp
// shared by every message the transaction sends. HasLamport/HasWallClock
// reflect what req actually asked for, not merely whether the service
// tracks those clocks at all, so the stamp's own view of "what this
// transaction carries" (used for local echo via AsRaw) agrees with the
// Metadata built from the same req for the wire transaction.
func (s *Service) Stamp(req MetadataRequest) TxStamp {
	s.vc[s.self]++
	if s.useLamport {
		s.lamport++
	}
	var wallClock int64
	if s.useWallClock {
		wallClock = s.now()
	}

	return TxStamp{
		Sender:        s.self,
		SenderCounter: s.vc[s.self],
		HasLamport:    req.LamportTimestamp,
		Lamport:       s.lamport,
		HasWallClock:  req.WallClockTime,
		WallClock:     wallClock,
		VC:            s.vc.Copy(),
	}
}

// MetadataFor builds the Metadata a single message sees, from a
// transaction-wide stamp and that message's own metadata request.
func (stamp TxStamp) MetadataFor(req MetadataRequest) Metadata {
	return NewMetadata(stamp.Sender, stamp.SenderCounter, stamp.VC, stamp.Lamport, stamp.WallClock, req)
}

// AsRaw renders the stamp as a RawTransaction's envelope fields, for
// causal delivery bookkeeping (used for local echo, where the runtime
// feeds its own stamped transaction back through Deliver).
func (stamp TxStamp) AsRaw() RawTransaction {
	return RawTransaction{
		Sender:        stamp.Sender,
		SenderCounter: stamp.SenderCounter,
		HasLamport:    stamp.HasLamport,
		Lamport:       stamp.Lamport,
		HasWallClock:  stamp.HasWallClock,
		WallClock:     stamp.WallClock,
		VCPrefix:      stamp.VC,
	}
}

// Deliver admits an inbound transaction. If it is immediately deliverable
// it (and any transactions it unblocks, found by a fixed-point re-scan of
// the pending queues) are returned in causal order. Otherwise it is
// buffered and Deliver returns an empty slice. A transaction already
// reflected in the vector clock (a duplicate) is dropped silently.
func (s *Service) Deliver(tx RawTransaction) []Delivered {
	if tx.Sender == s.self {
		// Local echo: always immediately deliverable, and must not be
		// buffered behind itself.
		return s.admit(tx)
	}

	if tx.SenderCounter <= s.vc[tx.Sender] {
		return nil // duplicate, already delivered
	}

	if s.deliverable(tx) {
		out := s.admit(tx)
		out = append(out, s.drainPending()...)
		return out
	}

	s.buffer(tx)
	return nil
}

func (s *Service) deliverable(tx RawTransaction) bool {
	if s.vc[tx.Sender] != tx.SenderCounter-1 {
		return false
	}
	// The prefix is snapshotted after the sender's own increment, so its
	// entry for the sender names this transaction itself, not a dependency.
	for id, cnt := range tx.VCPrefix {
		if id != tx.Sender && s.vc[id] < cnt {
			return false
		}
	}
	return true
}

func (s *Service) admit(tx RawTransaction) []Delivered {
	if tx.SenderCounter > s.vc[tx.Sender] {
		s.vc[tx.Sender] = tx.SenderCounter
	}
	if s.useLamport && tx.Lamport > s.lamport {
		s.lamport = tx.Lamport
	}
	// The request mirrors exactly what the sender actually stamped onto
	// this transaction (tx.HasLamport/tx.HasWallClock), so meta's
	// availability flags (and meta.Lamport/meta.WallClock themselves,
	// which NewMetadata only copies in when the request asks for them)
	// agree with what was really sent, for both local echo and remote
	// delivery.
	req := MetadataRequest{
		Kind:             RequestAll,
		LamportTimestamp: tx.HasLamport,
		WallClockTime:    tx.HasWallClock,
	}
	meta := NewMetadata(tx.Sender, tx.SenderCounter, tx.VCPrefix, tx.Lamport, tx.WallClock, req)
	return []Delivered{{Raw: tx, Meta: meta}}
}

func (s *Service) buffer(tx RawTransaction) {
	bySender, ok := s.pending[tx.Sender]
	if !ok {
		bySender = make(map[uint64]RawTransaction)
		s.pending[tx.Sender] = bySender
	}
	bySender[tx.SenderCounter] = tx
}

// drainPending re-scans every sender's buffer to a fixed point: repeatedly
// deliver anything newly deliverable until a full pass makes no progress.
func (s *Service) drainPending() []Delivered {
	var out []Delivered
	for {
		progressed := false
		for sender, bySender := range s.pending {
			for {
				next := s.vc[sender] + 1
				tx, ok := bySender[next]
				if !ok || !s.deliverable(tx) {
					break
				}
				delete(bySender, next)
				out = append(out, s.admit(tx)...)
				progressed = true
			}
			if len(bySender) == 0 {
				delete(s.pending, sender)
			}
		}
		if !progressed {
			break
		}
	}
	return out
}
