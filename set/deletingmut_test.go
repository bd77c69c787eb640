package set

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/register"
	"github.com/latticekit/collab/replica"
)

func newRuntimeWithDeletingMut(t *testing.T, id replica.ID) (*collab.Runtime, *DeletingMut) {
	t.Helper()
	rt, err := collab.NewRuntime(collab.WithReplicaID(id))
	require.NoError(t, err)

	var ds *DeletingMut
	_, err = rt.RegisterCollab("todos", func(ctx *collab.InitContext) collab.Collab {
		ds = NewDeletingMut(ctx, func(childCtx *collab.InitContext) collab.Collab {
			return register.NewLWW[string](childCtx, "title", lwwStringCodec{})
		})
		return ds
	})
	require.NoError(t, err)
	return rt, ds
}

type lwwStringCodec struct{}

func (lwwStringCodec) Encode(s string) []byte          { return []byte(s) }
func (lwwStringCodec) Decode(b []byte) (string, error) { return string(b), nil }

func TestDeletingMutAddCreatesChild(t *testing.T) {
	rt, ds := newRuntimeWithDeletingMut(t, replica.ID("AAAAAAAAAAA"))

	require.NoError(t, rt.Transact(func() { ds.Add() }))
	names := ds.Children()
	require.Len(t, names, 1)

	child, ok := ds.Child(names[0])
	require.True(t, ok)
	require.Equal(t, names[0], child.Name())
}

func TestDeletingMutTwoAddsInSameTransactionGetDistinctNames(t *testing.T) {
	rt, ds := newRuntimeWithDeletingMut(t, replica.ID("AAAAAAAAAAA"))

	require.NoError(t, rt.Transact(func() {
		ds.Add()
		ds.Add()
	}))
	names := ds.Children()
	require.Len(t, names, 2)
	require.NotEqual(t, names[0], names[1])
}

func TestDeletingMutDeleteRemovesChildAndTombstones(t *testing.T) {
	rt, ds := newRuntimeWithDeletingMut(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { ds.Add() }))
	name := ds.Children()[0]

	require.NoError(t, rt.Transact(func() { ds.Delete(name) }))
	_, ok := ds.Child(name)
	require.False(t, ok)
	require.Empty(t, ds.Children())
}

func TestDeletingMutConcurrentOpOnDeletedChildDiscarded(t *testing.T) {
	a := replica.ID("AAAAAAAAAAA")
	b := replica.ID("BBBBBBBBBBB")
	rtA, dsA := newRuntimeWithDeletingMut(t, a)
	rtB, dsB := newRuntimeWithDeletingMut(t, b)

	var toB [][]byte
	rtA.SetOutbound(func(data []byte) error { toB = append(toB, data); return nil })
	var toA [][]byte
	rtB.SetOutbound(func(data []byte) error { toA = append(toA, data); return nil })

	require.NoError(t, rtA.Transact(func() { dsA.Add() }))
	for _, data := range toB {
		require.NoError(t, rtB.Receive(data))
	}
	toB = nil
	name := dsA.Children()[0]
	require.Len(t, dsB.Children(), 1)

	childOnA, ok := dsA.Child(name)
	require.True(t, ok)
	title := childOnA.(*register.LWW[string])

	// A sets the child's title concurrently with B deleting the child.
	require.NoError(t, rtA.Transact(func() { title.Set("buy milk") }))
	require.NoError(t, rtB.Transact(func() { dsB.Delete(name) }))

	v, present := title.Value()
	require.True(t, present, "the set must actually have taken effect locally on A")
	require.Equal(t, "buy milk", v)

	for _, data := range toA {
		require.NoError(t, rtA.Receive(data))
	}
	for _, data := range toB {
		require.NoError(t, rtB.Receive(data))
	}

	_, ok = dsB.Child(name)
	require.False(t, ok, "deleted child must stay gone even after a concurrent op targeting it arrives")
}
