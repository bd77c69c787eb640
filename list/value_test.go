package list

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/replica"
)

type stringCodec struct{}

func (stringCodec) Encode(s string) []byte          { return []byte(s) }
func (stringCodec) Decode(b []byte) (string, error) { return string(b), nil }

func newRuntimeWithList(t *testing.T, id replica.ID) (*collab.Runtime, *Value[string]) {
	t.Helper()
	rt, err := collab.NewRuntime(collab.WithReplicaID(id))
	require.NoError(t, err)

	var lv *Value[string]
	_, err = rt.RegisterCollab("chars", func(ctx *collab.InitContext) collab.Collab {
		lv = NewValue[string](ctx, "chars", stringCodec{})
		return lv
	})
	require.NoError(t, err)
	return rt, lv
}

func TestInsertAppendsAndReadsBack(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))

	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "b", "c") }))
	require.Equal(t, 3, lv.Len())
	require.Equal(t, []string{"a", "b", "c"}, lv.All())
}

func TestInsertInMiddle(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "c") }))
	require.NoError(t, rt.Transact(func() { lv.Insert(1, "b") }))
	require.Equal(t, []string{"a", "b", "c"}, lv.All())
}

func TestDeleteRemovesValue(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "b", "c") }))

	var deleted []DeleteEvent[string]
	lv.OnDelete(func(e DeleteEvent[string]) { deleted = append(deleted, e) })

	require.NoError(t, rt.Transact(func() { lv.Delete(1) }))
	require.Equal(t, []string{"a", "c"}, lv.All())
	require.Len(t, deleted, 1)
	require.Equal(t, "b", deleted[0].Value)
}

func TestLocalEchoDoesNotDuplicateEvents(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))

	var inserted []InsertEvent[string]
	lv.OnInsert(func(e InsertEvent[string]) { inserted = append(inserted, e) })

	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "b") }))
	require.Len(t, inserted, 2)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() {
		lv.Insert(0, "a", "b", "c")
	}))
	require.NoError(t, rt.Transact(func() { lv.Delete(1) }))

	data := rt.Save()

	rt2, lv2 := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt2.Load(data))
	require.Equal(t, []string{"a", "c"}, lv2.All())
}

// TestConcurrentInsertsAtSameSpotConverge is spec §8 scenario 3 exercised
// end to end through two real runtimes: both replicas insert a run at the
// same gap without having seen each other's edit, then exchange messages
// and must converge on one consistent, non-interleaved order.
func TestConcurrentInsertsAtSameSpotConverge(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	b := replica.ID("BBBBBBBBBBB")

	rtA, lvA := newRuntimeWithList(t, a)
	rtB, lvB := newRuntimeWithList(t, b)

	var toB, toA [][]byte
	rtA.SetOutbound(func(data []byte) error { toB = append(toB, data); return nil })
	rtB.SetOutbound(func(data []byte) error { toA = append(toA, data); return nil })

	require.NoError(t, rtA.Transact(func() { lvA.Insert(0, "x") }))
	for _, d := range toB {
		require.NoError(t, rtB.Receive(d))
	}
	toB = nil

	require.NoError(t, rtA.Transact(func() { lvA.Insert(1, "1", "2", "3") }))
	require.NoError(t, rtB.Transact(func() { lvB.Insert(1, "y", "z") }))

	for _, d := range toB {
		require.NoError(t, rtB.Receive(d))
	}
	for _, d := range toA {
		require.NoError(t, rtA.Receive(d))
	}

	require.Equal(t, lvA.All(), lvB.All())
	require.Equal(t, 6, lvA.Len())
}
