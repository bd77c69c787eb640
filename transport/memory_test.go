package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusBroadcastsToOtherEndpointsOnly(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	a := bus.Endpoint("a", 4)
	b := bus.Endpoint("b", 4)
	c := bus.Endpoint("c", 4)

	inA, err := a.Subscribe(ctx)
	require.NoError(t, err)
	inB, err := b.Subscribe(ctx)
	require.NoError(t, err)
	inC, err := c.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Send(ctx, []byte("hello")))

	select {
	case msg := <-inB:
		require.Equal(t, []byte("hello"), msg)
	default:
		t.Fatal("b should have received a's broadcast")
	}
	select {
	case msg := <-inC:
		require.Equal(t, []byte("hello"), msg)
	default:
		t.Fatal("c should have received a's broadcast")
	}
	select {
	case <-inA:
		t.Fatal("a should not receive its own broadcast")
	default:
	}
}

func TestBusDropsOnFullSubscriberBuffer(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	a := bus.Endpoint("a", 1)
	b := bus.Endpoint("b", 1)
	inB, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Send(ctx, []byte("first")))
	require.NoError(t, a.Send(ctx, []byte("second"))) // b's buffer is full, this one is dropped

	msg := <-inB
	require.Equal(t, []byte("first"), msg)
	select {
	case <-inB:
		t.Fatal("second send should have been dropped, not queued")
	default:
	}
}

func TestMemoryCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	a := bus.Endpoint("a", 4)
	b := bus.Endpoint("b", 4)
	inB, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Close())

	_, stillOpen := <-inB
	require.False(t, stillOpen, "channel should be closed")

	// Sending after the only other subscriber closed must not panic or
	// block; the bus simply has no live subscriber channel to deliver to.
	require.NoError(t, a.Send(ctx, []byte("no one home")))
}
