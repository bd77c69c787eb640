package causal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab/replica"
)

func TestServiceLocalEcho(t *testing.T) {
	s := NewService(replica.ID("AAAAAAAAAAA"))
	stamp := s.Stamp(MetadataRequest{})
	delivered := s.Deliver(stamp.AsRaw())
	require.Len(t, delivered, 1)
	require.Equal(t, uint64(1), s.VectorClock().Get(replica.ID("AAAAAAAAAAA")))
}

func TestServiceBuffersOutOfCausalOrder(t *testing.T) {
	self := replica.ID("CCCCCCCCCCC")
	sender := replica.ID("AAAAAAAAAAA")
	s := NewService(self)

	m1 := RawTransaction{Sender: sender, SenderCounter: 1}
	m2 := RawTransaction{Sender: sender, SenderCounter: 2, VCPrefix: VectorClock{sender: 1}}

	// Deliver m2 before m1: it depends on m1 via its own senderCounter
	// sequencing (own-sender FIFO is enforced by senderCounter order).
	delivered := s.Deliver(m2)
	require.Empty(t, delivered, "m2 must wait for m1")
	require.Equal(t, 1, s.PendingCount())

	delivered = s.Deliver(m1)
	require.Len(t, delivered, 2, "delivering m1 should release m1 then m2")
	require.Equal(t, uint64(1), delivered[0].Raw.SenderCounter)
	require.Equal(t, uint64(2), delivered[1].Raw.SenderCounter)
	require.Equal(t, 0, s.PendingCount())
}

func TestServiceDropsDuplicates(t *testing.T) {
	self := replica.ID("CCCCCCCCCCC")
	sender := replica.ID("AAAAAAAAAAA")
	s := NewService(self)

	m1 := RawTransaction{Sender: sender, SenderCounter: 1}
	require.Len(t, s.Deliver(m1), 1)
	require.Empty(t, s.Deliver(m1), "duplicate must be dropped silently")
}

func TestVectorClockDominatesAndMerge(t *testing.T) {
	a := VectorClock{"A": 2, "B": 1}
	b := VectorClock{"A": 1, "B": 1}
	require.True(t, a.Dominates(b))
	require.False(t, b.Dominates(a))

	merged := a.Merge(VectorClock{"C": 5})
	require.Equal(t, uint64(2), merged["A"])
	require.Equal(t, uint64(5), merged["C"])
}
