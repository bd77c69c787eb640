package register

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/internal/testutil"
	"github.com/latticekit/collab/replica"
)

func TestLWWSetThenDeliverUpdatesValue(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewLWW[string](host, "title", testutil.StringCodec{})

	var events []SetEvent[string]
	r.OnSet(func(e SetEvent[string]) { events = append(events, e) })

	r.Set("hello")
	require.Len(t, host.Sent, 1)
	require.True(t, host.Sent[0].Req.LamportTimestamp)

	meta := causal.NewMetadata(a, 1, nil, 1, 0, causal.MetadataRequest{LamportTimestamp: true})
	require.NoError(t, r.Deliver(nil, host.Sent[0].Payload, meta))

	v, present := r.Value()
	require.True(t, present)
	require.Equal(t, "hello", v)
	require.Len(t, events, 1)
	require.Equal(t, "hello", events[0].Value)
}

func TestLWWTieBrokenBySender(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewLWW[string](host, "title", testutil.StringCodec{})

	lowSender := replica.ID("AAAAAAAAAAA")
	highSender := replica.ID("ZZZZZZZZZZZ")

	metaLow := causal.NewMetadata(lowSender, 1, nil, 5, 0, causal.MetadataRequest{LamportTimestamp: true})
	metaHigh := causal.NewMetadata(highSender, 1, nil, 5, 0, causal.MetadataRequest{LamportTimestamp: true})

	require.NoError(t, r.Deliver(nil, []byte("from-low"), metaLow))
	require.NoError(t, r.Deliver(nil, []byte("from-high"), metaHigh))
	v, _ := r.Value()
	require.Equal(t, "from-high", v, "equal lamport ties broken by higher sender")

	// A second delivery from the low sender, same lamport, must not win
	// back: the stored (lamport, sender) already strictly exceeds it.
	require.NoError(t, r.Deliver(nil, []byte("from-low-again"), metaLow))
	v, _ = r.Value()
	require.Equal(t, "from-high", v)
}

func TestLWWSaveLoadRoundTrip(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewLWW[string](host, "title", testutil.StringCodec{})

	meta := causal.NewMetadata(a, 1, nil, 3, 0, causal.MetadataRequest{LamportTimestamp: true})
	require.NoError(t, r.Deliver(nil, []byte("saved"), meta))

	saved := r.Save()

	r2 := NewLWW[string](host, "title", testutil.StringCodec{})
	require.NoError(t, r2.Load(saved))
	v, present := r2.Value()
	require.True(t, present)
	require.Equal(t, "saved", v)
}

func TestLWWUnsetCanGC(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	host := testutil.NewFakeHost(a)
	r := NewLWW[string](host, "title", testutil.StringCodec{})
	require.True(t, r.CanGC())

	meta := causal.NewMetadata(a, 1, nil, 1, 0, causal.MetadataRequest{LamportTimestamp: true})
	require.NoError(t, r.Deliver(nil, []byte("x"), meta))
	require.False(t, r.CanGC())
}
