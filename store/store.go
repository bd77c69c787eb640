// Package store persists a runtime's periodic snapshots (collab.Runtime.Save)
// and the trailing transactions received or sent since the last one, so an
// embedding application can restart without replaying its entire history
// (spec §6).
package store

import "context"

// Trailing is one transaction recorded after the last snapshot, in the
// order it must be replayed (collab.Runtime.Receive) atop that snapshot.
type Trailing struct {
	Seq  uint64
	Data []byte
}

// Store persists a runtime's save/load cycle. Latest returns the most
// recent snapshot (nil if none has ever been written) plus every
// trailing transaction recorded since it. Append records one more
// trailing transaction. Replace installs a fresh snapshot and discards
// every trailing record that preceded it (the compaction step an
// embedding application runs after calling Runtime.Save).
type Store interface {
	Latest(ctx context.Context) ([]byte, []Trailing, error)
	Append(ctx context.Context, data []byte) error
	Replace(ctx context.Context, snapshot []byte) error
	Close() error
}
