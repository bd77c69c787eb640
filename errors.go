package collab

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Kind is the closed error taxonomy of spec §7.
type Kind int

const (
	// KindInvalidState: an operation was attempted in the wrong runtime
	// lifecycle phase (e.g. RegisterCollab after the runtime went live).
	// Always a programmer error; always fatal to the call.
	KindInvalidState Kind = iota
	// KindUnknownChild: a received envelope addresses a name-path
	// segment no composite in the tree registered. Fatal for the
	// enclosing transaction; the runtime discards it and continues.
	KindUnknownChild
	// KindMalformed: wire bytes failed to decode. Fatal for the
	// enclosing transaction; the runtime discards it and continues.
	KindMalformed
	// KindOutOfRange: an indexed operation (list insert/delete/index
	// lookup) fell outside [0, length]. Reported to the caller; does
	// not corrupt state.
	KindOutOfRange
	// KindNotOwner: an operation was applied to a collab from a
	// different parent (e.g. restoring a foreign child). Reported to
	// the caller; does not corrupt state.
	KindNotOwner
	// KindRequestUnavailable: a primitive tried to read metadata its
	// own send request did not ask the causal service to attach.
	KindRequestUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidState:
		return "InvalidState"
	case KindUnknownChild:
		return "UnknownChild"
	case KindMalformed:
		return "Malformed"
	case KindOutOfRange:
		return "OutOfRange"
	case KindNotOwner:
		return "NotOwner"
	case KindRequestUnavailable:
		return "RequestUnavailable"
	default:
		return "Unknown"
	}
}

// Error is a taxonomy error: every error this module returns to a caller
// can be classified with errors.As into one of these.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.msg }

// newError constructs a taxonomy error, wrapping it with pkg/errors so a
// stack trace is attached at the point of origin (the style
// _examples/ghjramos-aistore uses for its cmn/cos error helpers).
func newError(kind Kind, msg string) error {
	return errors.WithStack(&Error{Kind: kind, msg: msg})
}

// NewInvalidStateError builds a KindInvalidState error.
func NewInvalidStateError(msg string) error { return newError(KindInvalidState, msg) }

// NewUnknownChildError builds a KindUnknownChild error.
func NewUnknownChildError(msg string) error { return newError(KindUnknownChild, msg) }

// NewMalformedError builds a KindMalformed error.
func NewMalformedError(msg string) error { return newError(KindMalformed, msg) }

// NewOutOfRangeError builds a KindOutOfRange error.
func NewOutOfRangeError(msg string) error { return newError(KindOutOfRange, msg) }

// NewNotOwnerError builds a KindNotOwner error.
func NewNotOwnerError(msg string) error { return newError(KindNotOwner, msg) }

// NewRequestUnavailableError builds a KindRequestUnavailable error.
func NewRequestUnavailableError(msg string) error { return newError(KindRequestUnavailable, msg) }

// IsKind reports whether err classifies as kind, unwrapping pkg/errors'
// stack-trace wrapper via the stdlib errors.As convention.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
