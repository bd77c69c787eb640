package register

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/internal/testutil"
	"github.com/latticekit/collab/replica"
)

func TestMultiValueConcurrentSetsBothSurvive(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewMultiValue[string](host, "color", testutil.StringCodec{})

	sender1 := replica.ID("AAAAAAAAAAA")
	sender2 := replica.ID("BBBBBBBBBBB")

	// Neither vc observed the other's write: both are concurrent.
	meta1 := causal.NewMetadata(sender1, 1, causal.VectorClock{sender1: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	meta2 := causal.NewMetadata(sender2, 1, causal.VectorClock{sender2: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})

	require.NoError(t, r.Deliver(nil, []byte("red"), meta1))
	require.NoError(t, r.Deliver(nil, []byte("blue"), meta2))

	conflicts := r.Conflicts()
	require.ElementsMatch(t, []string{"red", "blue"}, conflicts)

	v, present := r.Value()
	require.True(t, present)
	require.Equal(t, "blue", v, "lex-max sender (B > A) wins the scalar view")
}

func TestMultiValueCausalSetSubsumesPrior(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewMultiValue[string](host, "color", testutil.StringCodec{})

	sender := replica.ID("AAAAAAAAAAA")

	meta1 := causal.NewMetadata(sender, 1, causal.VectorClock{sender: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, []byte("red"), meta1))

	// A second write from the same sender, whose VC dominates the first
	// write's (sender, counter), must subsume it rather than conflict.
	meta2 := causal.NewMetadata(sender, 2, causal.VectorClock{sender: 2}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, []byte("green"), meta2))

	require.Equal(t, []string{"green"}, r.Conflicts())
}

func TestMultiValueSaveLoadRoundTrip(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewMultiValue[string](host, "color", testutil.StringCodec{})

	sender1 := replica.ID("AAAAAAAAAAA")
	sender2 := replica.ID("BBBBBBBBBBB")
	meta1 := causal.NewMetadata(sender1, 1, causal.VectorClock{sender1: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	meta2 := causal.NewMetadata(sender2, 1, causal.VectorClock{sender2: 1}, 0, 0, causal.MetadataRequest{Kind: causal.RequestAll})
	require.NoError(t, r.Deliver(nil, []byte("red"), meta1))
	require.NoError(t, r.Deliver(nil, []byte("blue"), meta2))

	saved := r.Save()
	r2 := NewMultiValue[string](host, "color", testutil.StringCodec{})
	require.NoError(t, r2.Load(saved))
	require.ElementsMatch(t, []string{"red", "blue"}, r2.Conflicts())
}
