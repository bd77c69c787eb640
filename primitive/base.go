// Package primitive provides the send/receive plumbing shared by every
// leaf CRDT (spec §4.3): a primitive enqueues a payload for the current
// transaction via its Host and is later invoked, exactly once per sent
// payload and in causal order, through its own Receive method.
//
// Host is intentionally a small structural interface rather than a
// concrete *collab.Runtime reference: it lets every register/counter/set
// package depend only on primitive (and causal, replica for types),
// without importing the root collab package's Runtime, keeping the
// dependency graph acyclic (root collab imports these packages' eventual
// assemblies, not the other way around).
package primitive

import (
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/replica"
)

// Host is the runtime-facing surface a primitive needs to participate in
// the collab tree. A runtime's per-collab context satisfies this
// interface structurally.
type Host interface {
	// LocalReplica returns this runtime's replica id.
	LocalReplica() replica.ID
	// Enqueue stages payload for delivery in the current transaction,
	// requesting the metadata in req be attached when it is delivered.
	Enqueue(payload []byte, req causal.MetadataRequest)
}

// Base embeds into every primitive CRDT, providing the one operation a
// primitive needs of its host: sending a payload.
type Base struct {
	host Host
	name string
}

// NewBase constructs a Base bound to host, for a primitive registered
// under name.
func NewBase(host Host, name string) Base {
	return Base{host: host, name: name}
}

// Name returns the primitive's child-name, satisfying collab.Collab.
func (b Base) Name() string { return b.name }

// Send stages payload for the current transaction.
func (b Base) Send(payload []byte, req causal.MetadataRequest) {
	b.host.Enqueue(payload, req)
}

// LocalReplica returns the owning runtime's replica id.
func (b Base) LocalReplica() replica.ID {
	return b.host.LocalReplica()
}
