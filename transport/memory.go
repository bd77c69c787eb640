package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/latticekit/collab"
)

// Bus is an in-process broadcast hub: every Memory endpoint registered on
// a Bus receives every other endpoint's Send calls, non-blocking (a full
// subscriber channel drops the delivery rather than stalling the
// publisher), following the same broadcast-with-drop shape as a typical
// operational event bus. Intended for tests and the literal multi-replica
// scenarios in spec §8, not for production transport.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan []byte
	logger collab.Logger
}

// NewBus constructs an empty bus. A nil logger discards debug output.
func NewBus(logger collab.Logger) *Bus {
	if logger == nil {
		logger = collab.NopLogger{}
	}
	return &Bus{subs: make(map[string]chan []byte), logger: logger}
}

// Endpoint returns the Transport for name, registering it on the bus if
// this is the first reference. Each name may be bound to at most one
// Memory transport at a time.
func (b *Bus) Endpoint(name string, bufSize int) *Memory {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[name]; !ok {
		b.subs[name] = make(chan []byte, bufSize)
	}
	return &Memory{bus: b, name: name}
}

func (b *Bus) publish(from string, data []byte) {
	traceID := uuid.NewString()
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for name, ch := range b.subs {
		if name == from {
			continue
		}
		select {
		case ch <- data:
			delivered++
		default:
			b.logger.Warnf("transport: dropping trace=%s from=%s to=%s, subscriber buffer full", traceID, from, name)
		}
	}
	b.logger.Debugf("transport: trace=%s from=%s delivered to %d subscriber(s)", traceID, from, delivered)
}

func (b *Bus) subscribe(name string) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[name]
	if !ok {
		ch = make(chan []byte, 64)
		b.subs[name] = ch
	}
	return ch
}

func (b *Bus) unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[name]; ok {
		close(ch)
		delete(b.subs, name)
	}
}

// Memory is one endpoint on an in-process Bus.
type Memory struct {
	bus  *Bus
	name string
}

// Send fans data out to every other endpoint on the bus.
func (m *Memory) Send(ctx context.Context, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	m.bus.publish(m.name, data)
	return nil
}

// Subscribe returns this endpoint's inbound channel.
func (m *Memory) Subscribe(ctx context.Context) (<-chan []byte, error) {
	return m.bus.subscribe(m.name), nil
}

// Close removes this endpoint from the bus, closing its inbound channel.
func (m *Memory) Close() error {
	m.bus.unsubscribe(m.name)
	return nil
}
