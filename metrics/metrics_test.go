package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

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

func TestRegistryRecordsPendingAndCommits(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordPending(3)
	require.Equal(t, float64(3), gaugeValue(t, r.PendingTransactions))

	r.RecordCommit()
	r.RecordCommit()
	require.Equal(t, float64(2), counterValue(t, r.TransactionsTotal))

	r.RecordVectorClockSize(5)
	require.Equal(t, float64(5), gaugeValue(t, r.VectorClockSize))
}

func TestObserverDoesNotPanicOnDiscard(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	obs := NewObserver(r)
	obs.OnTransactionDiscarded(nil)
}
