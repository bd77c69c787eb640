package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store, for tests and for runtimes with no
// durability requirement.
type Memory struct {
	mu       sync.Mutex
	snapshot []byte
	trailing []Trailing
	nextSeq  uint64
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Latest(ctx context.Context) ([]byte, []Trailing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trailing := make([]Trailing, len(m.trailing))
	copy(trailing, m.trailing)
	return m.snapshot, trailing, nil
}

func (m *Memory) Append(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	m.trailing = append(m.trailing, Trailing{Seq: m.nextSeq, Data: append([]byte{}, data...)})
	return nil
}

func (m *Memory) Replace(ctx context.Context, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]byte{}, snapshot...)
	m.trailing = nil
	return nil
}

func (m *Memory) Close() error { return nil }
