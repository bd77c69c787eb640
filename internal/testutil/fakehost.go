// Package testutil holds small test harness helpers shared across this
// module's primitive packages, so each package's _test.go files don't
// redefine the same fake primitive.Host and string codec.
package testutil

import (
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/replica"
)

// Sent records one payload a FakeHost's Enqueue call captured.
type Sent struct {
	Payload []byte
	Req     causal.MetadataRequest
}

// FakeHost is a minimal primitive.Host that records every enqueued send
// instead of routing it through a runtime, for asserting what a primitive
// broadcasts without standing up a full collab.Runtime.
type FakeHost struct {
	Self replica.ID
	Sent []Sent
}

// NewFakeHost returns a FakeHost for replica id.
func NewFakeHost(id replica.ID) *FakeHost {
	return &FakeHost{Self: id}
}

// LocalReplica satisfies primitive.Host.
func (h *FakeHost) LocalReplica() replica.ID { return h.Self }

// Enqueue satisfies primitive.Host, appending to Sent instead of staging a
// real transaction.
func (h *FakeHost) Enqueue(payload []byte, req causal.MetadataRequest) {
	h.Sent = append(h.Sent, Sent{Payload: payload, Req: req})
}

// StringCodec encodes a string as its raw bytes, for primitives under test
// that need a trivial Codec[string].
type StringCodec struct{}

// Encode satisfies a primitive's Codec[string] interface.
func (StringCodec) Encode(s string) []byte { return []byte(s) }

// Decode satisfies a primitive's Codec[string] interface.
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }
