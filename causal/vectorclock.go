// Package causal implements the causal-metadata service (spec §4.2): a
// vector clock, optional Lamport and wall-clock stamping, and causal-order
// buffering of inbound transactions.
//
// The vector clock's dominance check is adapted from the
// Before/After/Equal/Concurrent relation in a distributed key-value
// store's replication layer, narrowed to the two predicates the metadata
// service actually needs: "has every dependency arrived yet" (Dominates)
// and "who wins a concurrent tie" (lexicographic by sender).
package causal

import (
	"sort"

	"github.com/latticekit/collab/replica"
)

// VectorClock maps replica id to the number of transactions originated by
// that replica which this clock has observed.
type VectorClock map[replica.ID]uint64

// Get returns the clock's entry for id, or 0 if absent.
func (vc VectorClock) Get(id replica.ID) uint64 {
	return vc[id]
}

// Copy returns an independent copy of vc.
func (vc VectorClock) Copy() VectorClock {
	out := make(VectorClock, len(vc))
	for k, v := range vc {
		out[k] = v
	}
	return out
}

// Dominates reports whether vc's entry is >= other's entry for every
// replica named in other. A vc that dominates other has observed
// everything other has observed.
func (vc VectorClock) Dominates(other VectorClock) bool {
	for id, cnt := range other {
		if vc[id] < cnt {
			return false
		}
	}
	return true
}

// Merge returns the componentwise maximum of vc and other, the standard
// vector-clock join.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	out := vc.Copy()
	for id, cnt := range other {
		if cnt > out[id] {
			out[id] = cnt
		}
	}
	return out
}

// Entries returns the clock's (replica, counter) pairs sorted by replica
// id, for deterministic iteration (e.g. when serializing a VC prefix).
func (vc VectorClock) Entries() []VCEntry {
	out := make([]VCEntry, 0, len(vc))
	for id, cnt := range vc {
		out = append(out, VCEntry{Replica: id, Counter: cnt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Replica < out[j].Replica })
	return out
}

// VCEntry is one (replica, counter) pair.
type VCEntry struct {
	Replica replica.ID
	Counter uint64
}

// ArbitrationLess reports whether a comes before b in the arbitration
// order used to break ties among causally concurrent events:
// lexicographic by sender (spec §4.2).
func ArbitrationLess(a, b replica.ID) bool {
	return a < b
}
