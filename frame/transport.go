// Package frame defines the byte-stream-to-frame boundary (spec.md
// §4.1): a Transport delivers opaque frames in and out, and Decoders
// turn a raw byte stream into that same discrete-frame shape.
package frame

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by Send once the transport has been
// disconnected, either by the peer or by a call to Disconnect.
var ErrClosed = errors.New("frame: transport closed")

// TransportError wraps a transport-layer I/O failure. Per spec.md
// §4.1's failure model, these surface as terminal stream end, never
// as a decodable frame.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("frame: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

func newTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// Transport is the abstraction the session layer drives: connect,
// write whole frames, and consume a stream of received whole frames.
// Two transports satisfy this: BLETransport (ble.go) frames over a
// caller-supplied SerialLink and includes no BLE radio driver itself,
// and TCPTransport (tcp.go) dials its own TCP connection.
type Transport interface {
	// Connect establishes the underlying link. It is an error to call
	// Connect on an already-connected Transport.
	Connect(ctx context.Context) error

	// Disconnect tears down the link. Safe to call multiple times.
	Disconnect() error

	// Send writes one whole frame. Send does not block on a response;
	// callers needing request/response correlation live in session.
	Send(ctx context.Context, frame []byte) error

	// Frames returns a channel of received, fully decoded frames. The
	// channel is closed when the transport disconnects, either by
	// request or because the underlying stream ended.
	Frames() <-chan []byte

	// IsConnected reports the current connection state.
	IsConnected() bool
}
