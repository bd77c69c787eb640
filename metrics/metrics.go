// Package metrics exposes the runtime's observability surface (spec §5's
// pending-message count, plus transaction throughput and vector-clock
// growth) as Prometheus metrics. A Registry takes a prometheus.Registerer
// at construction rather than registering against the global default
// registry, so an embedding application controls exactly where these
// metrics land (its own registry, a sub-registry per collab tree, or a
// throwaway one in tests).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds the runtime's Prometheus collectors.
type Registry struct {
	PendingTransactions prometheus.Gauge
	TransactionsTotal   prometheus.Counter
	VectorClockSize     prometheus.Gauge
}

// New constructs and registers a Registry's collectors against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PendingTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collab_pending_transactions",
			Help: "Transactions buffered awaiting causal dependencies before they can be delivered.",
		}),
		TransactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collab_transactions_committed_total",
			Help: "Transactions committed locally or delivered from a remote replica.",
		}),
		VectorClockSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collab_vector_clock_size",
			Help: "Number of distinct replica entries currently tracked in the local vector clock.",
		}),
	}
	reg.MustRegister(r.PendingTransactions, r.TransactionsTotal, r.VectorClockSize)
	return r
}

// Observer adapts a Registry to collab.Observer. collab.Observer only
// reports discarded transactions, and Observer records nothing for them,
// so it changes no collector; committed transactions are counted by
// calling Registry.RecordCommit.
type Observer struct {
	registry *Registry
}

// NewObserver wraps registry as a collab.Observer.
func NewObserver(registry *Registry) *Observer {
	return &Observer{registry: registry}
}

// OnTransactionDiscarded satisfies collab.Observer. Discarded transactions
// are not counted as committed.
func (o *Observer) OnTransactionDiscarded(err error) {}

// RecordCommit increments the committed-transactions counter. Call it
// once per transaction a Runtime.Transact or Runtime.Receive call
// actually delivers.
func (r *Registry) RecordCommit() {
	r.TransactionsTotal.Inc()
}

// RecordPending sets the pending-transaction gauge to n, read from
// collab.Runtime.PendingCount after every Receive call.
func (r *Registry) RecordPending(n int) {
	r.PendingTransactions.Set(float64(n))
}

// RecordVectorClockSize sets the vector-clock-size gauge to n, the number
// of entries in the local replica's vector clock.
func (r *Registry) RecordVectorClockSize(n int) {
	r.VectorClockSize.Set(float64(n))
}
