package collabmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/replica"
)

type valueStringCodec struct{}

func (valueStringCodec) Encode(s string) []byte         { return []byte(s) }
func (valueStringCodec) Decode(b []byte) (string, error) { return string(b), nil }

func newRuntimeWithValueMap(t *testing.T, id replica.ID) (*collab.Runtime, *Value[string, string]) {
	t.Helper()
	rt, err := collab.NewRuntime(collab.WithReplicaID(id))
	require.NoError(t, err)

	var vm *Value[string, string]
	_, err = rt.RegisterCollab("profile", func(ctx *collab.InitContext) collab.Collab {
		vm = NewValue[string, string](ctx, stringKeyCodec{}, valueStringCodec{})
		return vm
	})
	require.NoError(t, err)
	return rt, vm
}

func TestValueMapSetThenGet(t *testing.T) {
	rt, vm := newRuntimeWithValueMap(t, replica.ID("AAAAAAAAAAA"))

	var setEvents []SetEvent[string, string]
	vm.OnSet(func(e SetEvent[string, string]) { setEvents = append(setEvents, e) })

	require.NoError(t, rt.Transact(func() { vm.Set("name", "alice") }))
	v, present := vm.Get("name")
	require.True(t, present)
	require.Equal(t, "alice", v)
	require.Len(t, setEvents, 1)
	require.Equal(t, "name", setEvents[0].Key)
	require.Equal(t, "alice", setEvents[0].Value)
}

func TestValueMapDeleteResetsRegister(t *testing.T) {
	rt, vm := newRuntimeWithValueMap(t, replica.ID("AAAAAAAAAAA"))

	var deleteEvents []DeleteEvent[string]
	vm.OnDelete(func(e DeleteEvent[string]) { deleteEvents = append(deleteEvents, e) })

	require.NoError(t, rt.Transact(func() { vm.Set("name", "alice") }))
	require.NoError(t, rt.Transact(func() { vm.Delete("name") }))

	_, present := vm.Get("name")
	require.False(t, present)
	require.Len(t, deleteEvents, 1)
	require.Equal(t, "name", deleteEvents[0].Key)
}

func TestValueMapKeys(t *testing.T) {
	rt, vm := newRuntimeWithValueMap(t, replica.ID("AAAAAAAAAAA"))
	require.NoError(t, rt.Transact(func() {
		vm.Set("a", "1")
		vm.Set("b", "2")
	}))
	require.ElementsMatch(t, []string{"a", "b"}, vm.Keys())
}
