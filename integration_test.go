package collab_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/counter"
	"github.com/latticekit/collab/metrics"
	"github.com/latticekit/collab/replica"
	"github.com/latticekit/collab/store"
	"github.com/latticekit/collab/transport"
)

// TestRuntimeWithTransportStoreAndMetrics wires a counter.Counter through
// two runtimes connected by a transport.Bus, persisting every outbound
// transaction to a store.Memory and recording it on a metrics.Registry.
// This is how an embedding application actually composes these packages;
// each package's own tests only exercise it in isolation.
func TestRuntimeWithTransportStoreAndMetrics(t *testing.T) {
	ctx := context.Background()
	bus := transport.NewBus(nil)

	regA := metrics.New(prometheus.NewRegistry())
	regB := metrics.New(prometheus.NewRegistry())

	storeA := store.NewMemory()
	storeB := store.NewMemory()

	epA := bus.Endpoint("a", 8)
	epB := bus.Endpoint("b", 8)

	rtA, err := collab.NewRuntime(
		collab.WithReplicaID(replica.ID("AAAAAAAAAAA")),
		collab.WithObserver(metrics.NewObserver(regA)),
	)
	require.NoError(t, err)
	rtB, err := collab.NewRuntime(
		collab.WithReplicaID(replica.ID("BBBBBBBBBBB")),
		collab.WithObserver(metrics.NewObserver(regB)),
	)
	require.NoError(t, err)

	cA, err := rtA.RegisterCollab("score", func(ic *collab.InitContext) collab.Collab {
		return counter.New(ic, "score")
	})
	require.NoError(t, err)
	cB, err := rtB.RegisterCollab("score", func(ic *collab.InitContext) collab.Collab {
		return counter.New(ic, "score")
	})
	require.NoError(t, err)

	scoreA := cA.(*counter.Counter)
	scoreB := cB.(*counter.Counter)

	rtA.SetOutbound(func(data []byte) error {
		if err := storeA.Append(ctx, data); err != nil {
			return err
		}
		regA.RecordCommit()
		return epA.Send(ctx, data)
	})
	rtB.SetOutbound(func(data []byte) error {
		if err := storeB.Append(ctx, data); err != nil {
			return err
		}
		regB.RecordCommit()
		return epB.Send(ctx, data)
	})

	require.NoError(t, rtA.Transact(func() { scoreA.Add(5) }))

	inboundB, err := epB.Subscribe(ctx)
	require.NoError(t, err)
	select {
	case data := <-inboundB:
		require.NoError(t, rtB.Receive(data))
	default:
		t.Fatal("expected a transaction on B's inbound channel")
	}
	regB.RecordPending(rtB.PendingCount())

	require.Equal(t, int64(5), scoreB.Value())
	require.Equal(t, float64(0), gaugeValue(t, regB.PendingTransactions), "no causal dependency, nothing should stay buffered")

	require.NoError(t, rtB.Transact(func() { scoreB.Add(3) }))

	inboundA, err := epA.Subscribe(ctx)
	require.NoError(t, err)
	select {
	case data := <-inboundA:
		require.NoError(t, rtA.Receive(data))
	default:
		t.Fatal("expected a transaction on A's inbound channel")
	}

	require.Equal(t, int64(8), scoreA.Value())
	require.Equal(t, int64(8), scoreB.Value())

	_, trailingA, err := storeA.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, trailingA, 1, "A committed exactly one outbound transaction")

	_, trailingB, err := storeB.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, trailingB, 1, "B committed exactly one outbound transaction")

	require.Equal(t, float64(1), counterValue(t, regA.TransactionsTotal))
	require.Equal(t, float64(1), counterValue(t, regB.TransactionsTotal))
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}
