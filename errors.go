package bridge

import (
	"errors"
	"fmt"
)

// Kind is the high-level category a bridge Error belongs to.
type Kind int

const (
	// KindCommunication covers any transport failure: unresolved host,
	// failed connect, unexpected EOF, listener bind failure.
	KindCommunication Kind = iota
	// KindWrongState covers a command invoked in a state that forbids it.
	KindWrongState
	// KindModule covers an internal invariant violation, e.g. a handshake
	// timeout or malformed configuration document.
	KindModule
	// KindMessage is an informational relay of a board-side feedback entry.
	KindMessage
	// KindBufferWarning covers non-fatal decode anomalies: a sequence gap
	// or an unexpected packet_size.
	KindBufferWarning
)

func (k Kind) String() string {
	switch k {
	case KindCommunication:
		return "communication_error"
	case KindWrongState:
		return "wrong_state"
	case KindModule:
		return "module_error"
	case KindMessage:
		return "message"
	case KindBufferWarning:
		return "buffer_warning"
	default:
		return "unknown"
	}
}

// Error is the bridge's structured error type: an operation, a kind, a
// human-readable message, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("cib-bridge: %s: %s (%s)", e.Op, e.Msg, e.Kind)
	}
	return fmt.Sprintf("cib-bridge: %s (%s)", e.Msg, e.Kind)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is comparison by Kind; callers generally prefer the
// IsKind helper below over building a bare *Error to compare against.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// CommunicationError builds a KindCommunication error wrapping a transport
// failure, e.g. a failed dial, unresolved host, or unexpected EOF.
func CommunicationError(op string, cause error) *Error {
	msg := "communication failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindCommunication, Op: op, Msg: msg, Err: cause}
}

// WrongState builds a KindWrongState error for a command invoked outside
// the lifecycle state that allows it.
func WrongState(op, msg string) *Error {
	return &Error{Kind: KindWrongState, Op: op, Msg: msg}
}

// ModuleError builds a KindModule error for an internal invariant
// violation such as a handshake timeout or malformed configuration.
func ModuleError(op, msg string) *Error {
	return &Error{Kind: KindModule, Op: op, Msg: msg}
}

// IsKind reports whether err is a bridge Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
