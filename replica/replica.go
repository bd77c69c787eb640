// Package replica generates replica identities and the per-replica
// monotonic counters collabs use to stamp outgoing messages.
package replica

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

// idAlphabet is the printable-ASCII set replica ids are drawn from.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// idLength is the fixed length of a replica id, in bytes.
const idLength = 11

// ID is a replica's identity: 11 bytes of printable ASCII, drawn from a
// cryptographic RNG at replica startup. It is globally unique within a
// session with overwhelming probability and is used, among other things,
// as the tie-break key in the arbitration order (spec §4.2).
type ID string

// Generate draws a new random replica id from a cryptographic RNG.
func Generate() (ID, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "replica: reading random bytes")
	}
	out := make([]byte, idLength)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return ID(out), nil
}

// MustGenerate is Generate, panicking on failure. Reserved for tests and
// command-line tooling where there is no sane recovery from a broken RNG.
func MustGenerate() ID {
	id, err := Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// Counter is a per-replica monotonic counter. Each replica owns exactly one
// per concern that needs one (the causal-metadata service's senderCounter,
// the position engine's per-replica waypoint counter).
type Counter struct {
	next uint64
}

// Next returns the next value and advances the counter. The first call
// returns 1; 0 is reserved to mean "no value" in callers that store
// counters in maps with a zero default.
func (c *Counter) Next() uint64 {
	c.next++
	return c.next
}

// Peek returns the value Next would return without advancing the counter.
func (c *Counter) Peek() uint64 {
	return c.next + 1
}

// Current returns the most recently issued value, or 0 if Next has never
// been called.
func (c *Counter) Current() uint64 {
	return c.next
}

// Observe advances the counter so that Current is at least n. Used when
// integrating a foreign counter value (e.g. replaying a waypoint created by
// this same replica, loaded from a save) to avoid reissuing a used value.
func (c *Counter) Observe(n uint64) {
	if n > c.next {
		c.next = n
	}
}
