package causal

import "github.com/latticekit/collab/replica"

// RequestKind is the closed set of metadata a primitive may ask to have
// attached to a message it sends (spec §4.2).
type RequestKind int

const (
	// RequestNone attaches no metadata beyond sender/senderCounter.
	RequestNone RequestKind = iota
	// RequestNamed includes exactly the named vector-clock entries.
	RequestNamed
	// RequestAll includes every vector-clock entry.
	RequestAll
	// RequestAutomatic is handled exactly like RequestNamed: it includes
	// the entries listed in Entries. Which entries the local echo reads
	// is not tracked, and nothing checks that remote receivers read no
	// more than the local receiver did.
	RequestAutomatic
)

// MetadataRequest expresses what a primitive wants attached to a message
// it is about to send.
type MetadataRequest struct {
	Kind             RequestKind
	Entries          []replica.ID
	WallClockTime    bool
	LamportTimestamp bool
}

// Metadata is what was actually attached to a delivered transaction,
// handed to a primitive's receive callback.
type Metadata struct {
	Sender        replica.ID
	SenderCounter uint64
	VC            VectorClock // entries the request promised, or nil
	HasLamport    bool
	Lamport       uint64
	HasWallClock  bool
	WallClock     int64

	// available records which optional fields were actually requested,
	// so a read of an unrequested field can be rejected with
	// RequestUnavailable at the collab layer instead of silently
	// returning a zero value.
	available requestAvailability
}

type requestAvailability struct {
	lamport   bool
	wallClock bool
	vc        bool
}

// NewMetadata builds Metadata reflecting exactly what req promised.
func NewMetadata(sender replica.ID, senderCounter uint64, vc VectorClock, lamport uint64, wallClock int64, req MetadataRequest) Metadata {
	m := Metadata{Sender: sender, SenderCounter: senderCounter}
	if req.LamportTimestamp {
		m.HasLamport = true
		m.Lamport = lamport
		m.available.lamport = true
	}
	if req.WallClockTime {
		m.HasWallClock = true
		m.WallClock = wallClock
		m.available.wallClock = true
	}
	switch req.Kind {
	case RequestAll:
		m.VC = vc.Copy()
		m.available.vc = true
	case RequestNamed, RequestAutomatic:
		filtered := make(VectorClock, len(req.Entries))
		for _, id := range req.Entries {
			filtered[id] = vc.Get(id)
		}
		m.VC = filtered
		m.available.vc = true
	}
	return m
}

// VCAvailable reports whether the vector clock was requested and so may be
// read from this Metadata.
func (m Metadata) VCAvailable() bool { return m.available.vc }

// LamportAvailable reports whether the Lamport timestamp was requested.
func (m Metadata) LamportAvailable() bool { return m.available.lamport }

// WallClockAvailable reports whether the wall-clock time was requested.
func (m Metadata) WallClockAvailable() bool { return m.available.wallClock }
