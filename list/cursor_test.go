package list

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab/replica"
)

func TestCursorLeftBiasTracksPredecessorAcrossInserts(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "b") }))

	c, ok := NewCursor(lv, 1, BiasLeft)
	require.True(t, ok)
	require.Equal(t, 1, c.Index())

	// Insert before the cursor's tracked predecessor: the cursor should
	// shift forward, since it follows "a", not the number 1.
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "z") }))
	require.Equal(t, 2, c.Index())
}

func TestCursorInsertAdvancesLeftBiasCursor(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "d") }))

	c, ok := NewCursor(lv, 1, BiasLeft)
	require.True(t, ok)

	require.NoError(t, rt.Transact(func() { c.Insert("b", "c") }))
	require.Equal(t, []string{"a", "b", "c", "d"}, lv.All())
	require.Equal(t, 3, c.Index())
}

func TestCursorRightBiasTracksSuccessor(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "b") }))

	c, ok := NewCursor(lv, 1, BiasRight)
	require.True(t, ok)
	require.Equal(t, 1, c.Index())

	require.NoError(t, rt.Transact(func() { lv.Insert(0, "z") }))
	require.Equal(t, 2, c.Index())
}

func TestCursorAtEndOfListAppends(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a") }))

	c, ok := NewCursor(lv, 1, BiasLeft)
	require.True(t, ok)
	require.Equal(t, 1, c.Index())

	require.NoError(t, rt.Transact(func() { c.Insert("b") }))
	require.Equal(t, []string{"a", "b"}, lv.All())
}

func TestCursorDeletePrevRebindsPredecessor(t *testing.T) {
	rt, lv := newRuntimeWithList(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() { lv.Insert(0, "a", "b", "c") }))

	c, ok := NewCursor(lv, 2, BiasLeft)
	require.True(t, ok)
	require.Equal(t, 2, c.Index())

	var removed string
	require.NoError(t, rt.Transact(func() {
		v, ok := c.DeletePrev()
		require.True(t, ok)
		removed = v
	}))
	require.Equal(t, "b", removed)
	require.Equal(t, []string{"a", "c"}, lv.All())
	require.Equal(t, 1, c.Index())
}
