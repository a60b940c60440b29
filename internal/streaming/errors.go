package streaming

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConnectFailed     Kind = "connect_failed"
	KindTimeout           Kind = "timeout"
	KindServerTerminated  Kind = "server_terminated"
	KindProtocolViolation Kind = "protocol_violation"
	KindTransmitFailed    Kind = "transmit_failed"
	KindCanceled          Kind = "canceled"
)

// SessionError is the single failure type a session resolves with. The
// partial result is returned alongside it, never inside it.
type SessionError struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, op, message string, cause error) *SessionError {
	return &SessionError{Kind: kind, Op: op, Message: message, Cause: cause}
}

// IsKind reports whether err carries a SessionError of the given kind.
func IsKind(err error, kind Kind) bool {
	var target *SessionError
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first SessionError in the chain, or "".
func KindOf(err error) Kind {
	var target *SessionError
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}
