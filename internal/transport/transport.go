package transport

import (
	"context"
	"encoding/json"
	"errors"
)

const (
	EventStart = "start"
	EventData  = "data"

	EventReady          = "ready"
	EventConnectSuccess = "connect-success"
	EventResponse       = "response"
	EventTerminate      = "terminate"
	// EventDisconnected is synthesized by the transport when the underlying
	// connection goes away. It is always the last event delivered.
	EventDisconnected = "disconnected"
)

var (
	ErrConnectFailed = errors.New("transport connect failed")
	ErrClosed        = errors.New("transport closed")
)

// Event is one inbound named message. Args keep the raw JSON of every
// positional argument so callers decode only what they need.
type Event struct {
	Name string
	Args []json.RawMessage
}

// Transport is a bidirectional named-event channel. Events are delivered in
// arrival order on the channel returned by Events, which is closed after the
// disconnected event.
type Transport interface {
	Connect(ctx context.Context, url, authToken string) error
	Emit(event string, args ...any) error
	Events() <-chan Event
	Close() error
}

// Factory returns a fresh, unconnected transport. Sessions never share one.
type Factory func() Transport
