package register

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/internal/testutil"
	"github.com/latticekit/collab/replica"
)

func TestOptionalEmptyIsNotPresent(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewOptional[string](host, "assignee", testutil.StringCodec{})
	require.False(t, r.IsPresent())
}

func TestOptionalSetThenReset(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewOptional[string](host, "assignee", testutil.StringCodec{})

	r.Set("alice")
	require.Len(t, host.Sent, 1)
	meta := causal.NewMetadata(a, 1, causal.VectorClock{a: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, host.Sent[0].Payload, meta))
	require.True(t, r.IsPresent())

	r.Reset()
	require.Len(t, host.Sent, 2)
	metaClear := causal.NewMetadata(a, 2, causal.VectorClock{a: 2}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, host.Sent[1].Payload, metaClear))
	require.False(t, r.IsPresent())
}

func TestOptionalResetDropsConcurrentSetItDominates(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	b := replica.ID("BBBBBBBBBBB")
	host := testutil.NewFakeHost(a)
	r := NewOptional[string](host, "assignee", testutil.StringCodec{})

	metaSetA := causal.NewMetadata(a, 1, causal.VectorClock{a: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, append([]byte{optTagSet}, []byte("alice")...), metaSetA))
	require.True(t, r.IsPresent())

	// A reset whose VC dominates A's set (a: 1) clears it, even though
	// the reset itself originates from a different sender.
	metaClearB := causal.NewMetadata(b, 1, causal.VectorClock{a: 1, b: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, []byte{optTagClear}, metaClearB))
	require.False(t, r.IsPresent())
}

func TestOptionalSetConcurrentWithResetSurvives(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	b := replica.ID("BBBBBBBBBBB")
	host := testutil.NewFakeHost(a)
	r := NewOptional[string](host, "assignee", testutil.StringCodec{})

	// A clear that has not observed A's write does not remove it.
	metaClearB := causal.NewMetadata(b, 1, causal.VectorClock{b: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, []byte{optTagClear}, metaClearB))

	metaSetA := causal.NewMetadata(a, 1, causal.VectorClock{a: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, append([]byte{optTagSet}, []byte("alice")...), metaSetA))

	require.True(t, r.IsPresent())
	v, _ := r.Value()
	require.Equal(t, "alice", v)
}
