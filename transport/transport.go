// Package transport carries a runtime's wire-encoded transactions between
// replicas. The contract is deliberately narrow: a transport moves opaque
// byte strings and knows nothing about causal metadata, collab trees, or
// CRDT semantics (spec §6) — that keeps the transport swappable without
// touching anything upstream of collab.Runtime.SetOutbound/Receive.
package transport

import "context"

// Transport moves a runtime's wire-encoded transactions to and from other
// replicas. Send is fire-and-forget from the caller's perspective: once it
// returns nil, delivery is the transport's responsibility. Subscribe
// yields every transaction this transport receives, in receipt order;
// causal buffering and reordering happen downstream, in causal.Service.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}
