package counter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/internal/testutil"
	"github.com/latticekit/collab/replica"
)

func TestCounterConcurrentAddsConverge(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	b := replica.ID("BBBBBBBBBBB")

	hostA := testutil.NewFakeHost(a)
	cA := New(hostA, "likes")
	cA.Add(3)

	hostB := testutil.NewFakeHost(b)
	cB := New(hostB, "likes")
	cB.Add(3)

	// Each replica delivers its own add locally and the other's
	// concurrent add, in either order; both converge to 6.
	metaA := causal.NewMetadata(a, 1, nil, 0, 0, causal.MetadataRequest{})
	metaB := causal.NewMetadata(b, 1, nil, 0, 0, causal.MetadataRequest{})

	require.NoError(t, cA.Deliver(nil, hostA.Sent[0].Payload, metaA))
	require.NoError(t, cA.Deliver(nil, hostB.Sent[0].Payload, metaB))
	require.Equal(t, int64(6), cA.Value())

	require.NoError(t, cB.Deliver(nil, hostB.Sent[0].Payload, metaB))
	require.NoError(t, cB.Deliver(nil, hostA.Sent[0].Payload, metaA))
	require.Equal(t, int64(6), cB.Value())
}

func TestCounterNegativeDeltaDecrements(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	c := New(host, "balance")

	c.Add(10)
	c.Add(-4)

	meta1 := causal.NewMetadata(a, 1, nil, 0, 0, causal.MetadataRequest{})
	meta2 := causal.NewMetadata(a, 2, nil, 0, 0, causal.MetadataRequest{})
	require.NoError(t, c.Deliver(nil, host.Sent[0].Payload, meta1))
	require.NoError(t, c.Deliver(nil, host.Sent[1].Payload, meta2))
	require.Equal(t, int64(6), c.Value())
}

func TestCounterCanGC(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	c := New(host, "balance")
	require.True(t, c.CanGC())

	c.Add(5)
	meta := causal.NewMetadata(a, 1, nil, 0, 0, causal.MetadataRequest{})
	require.NoError(t, c.Deliver(nil, host.Sent[0].Payload, meta))
	require.False(t, c.CanGC())

	c.Add(-5)
	meta2 := causal.NewMetadata(a, 2, nil, 0, 0, causal.MetadataRequest{})
	require.NoError(t, c.Deliver(nil, host.Sent[1].Payload, meta2))
	require.True(t, c.CanGC())
}

func TestCounterSaveLoadRoundTrip(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	c := New(host, "balance")
	c.Add(7)
	meta := causal.NewMetadata(a, 1, nil, 0, 0, causal.MetadataRequest{})
	require.NoError(t, c.Deliver(nil, host.Sent[0].Payload, meta))

	saved := c.Save()
	c2 := New(host, "balance")
	require.NoError(t, c2.Load(saved))
	require.Equal(t, int64(7), c2.Value())
}

func TestCounterOnChange(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	c := New(host, "balance")

	var got []ChangeEvent
	c.OnChange(func(e ChangeEvent) { got = append(got, e) })

	c.Add(2)
	meta := causal.NewMetadata(a, 1, nil, 0, 0, causal.MetadataRequest{})
	require.NoError(t, c.Deliver(nil, host.Sent[0].Payload, meta))
	require.Len(t, got, 1)
	require.Equal(t, int64(2), got[0].Value)
	require.Equal(t, int64(2), got[0].Delta)
}
