package collab

import "github.com/latticekit/collab/replica"

// Logger is the minimal structured-logging surface the runtime accepts,
// letting the dependency-free core log through whatever an embedding
// application already uses (stdlib log, zerolog, a test harness spy)
// without the core importing a concrete logging library.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything. It is the runtime's default.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// ClockSource supplies wall-clock time to the causal-metadata service. It
// is injected so tests can run with a deterministic clock.
type ClockSource func() int64

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithReplicaID pins the runtime's replica id instead of generating a
// random one. Intended for tests and for restoring a replica's identity
// across restarts when the embedding application persists it separately
// from collab saves.
func WithReplicaID(id replica.ID) Option {
	return func(r *Runtime) { r.replicaID = id }
}

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithLamport enables Lamport-timestamp tracking on the causal-metadata
// service (needed by register.LWW's tie-break rule).
func WithLamport() Option {
	return func(r *Runtime) { r.useLamport = true }
}

// WithWallClock enables wall-clock stamping, reading time from src.
func WithWallClock(src ClockSource) Option {
	return func(r *Runtime) {
		r.useWallClock = true
		r.clockSource = src
	}
}

// Observer receives lifecycle and fault events from a Runtime, for the
// observability spec §5 and §7 call for (a pending-message count, and a
// notification when an inbound transaction is discarded as malformed or
// addresses an unknown child).
type Observer interface {
	OnTransactionDiscarded(err error)
}

// WithObserver installs an Observer.
func WithObserver(o Observer) Option {
	return func(r *Runtime) { r.observer = o }
}
