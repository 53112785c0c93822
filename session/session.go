// Package session implements the actor described in spec.md §4.4: it
// owns the Transport exclusively, serializes command/response
// correlation, and publishes connection-state transitions and pushes
// on the event.Dispatcher. One actor goroutine both consumes the
// command queue and reads the transport's frames; there is no separate
// receive goroutine. This follows the teacher's client2/connection.go
// onWireConn shape, generalized from the katzenpost wire.Session
// handshake to this module's frame.Transport / wire.DecodeFrame pair.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/meshcore-dev/meshclient/event"
	"github.com/meshcore-dev/meshclient/frame"
	"github.com/meshcore-dev/meshclient/internal/worker"
	"github.com/meshcore-dev/meshclient/wire"
)

// ConnectionState is the spec.md §4.4 connection lifecycle:
// disconnected -> connecting -> connected -> ready -> disconnected.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReady
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// EventConnectionState, EventParseFailure, EventPush, and
// EventMessageReceived are the event.Event.Type values this package
// dispatches.
const (
	EventConnectionState = "connection_state"
	EventParseFailure    = "parse_failure"
	EventPush            = "push"
	EventMessageReceived = "message_received"
)

var (
	ErrTimeout       = errors.New("session: operation timed out")
	ErrShutdown      = errors.New("session: shutdown")
	ErrNotConnected  = errors.New("session: not connected")
	ErrAlreadyActive = errors.New("session: already connected")
)

// SessionError wraps a command that received an explicit error
// response (spec.md §4.2's RespError).
type SessionError struct {
	Code byte
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session: device error code 0x%02x", e.Code)
}

// operation is a unit of work submitted to the actor. run executes on
// the actor goroutine and may call s.transport.Send / s.awaitInline as
// many times as needed (e.g. a streamed contact sync), preserving "at
// most one in-flight exchange at a time" without hardcoding a single
// command/response shape in the queue itself.
type operation struct {
	run     func(ctx context.Context) (interface{}, error)
	timeout time.Duration
	replyCh chan opResult
}

type opResult struct {
	value interface{}
	err   error
}

// Session is a single cooperative actor: one goroutine owns the
// Transport and the command/response correlation; callers submit
// typed operations (see operations.go) that are queued FIFO.
type Session struct {
	worker.Worker

	transport  frame.Transport
	dispatcher *event.Dispatcher
	log        *log.Logger
	cfg        *Config

	mu    sync.Mutex
	state ConnectionState

	opCh chan *operation
}

// New constructs a Session bound to transport and dispatcher. Connect
// must be called before any operation is submitted.
func New(transport frame.Transport, dispatcher *event.Dispatcher, cfg *Config, logger *log.Logger) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.NewWithOptions(nil, log.Options{})
	}
	return &Session{
		transport:  transport,
		dispatcher: dispatcher,
		log:        logger.WithPrefix("session"),
		cfg:        cfg,
		opCh:       make(chan *operation),
	}
}

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state ConnectionState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.dispatcher.Dispatch(event.Event{
		Type:    EventConnectionState,
		Attrs:   map[string]string{"state": state.String()},
		Payload: state,
	})
}

// Connect establishes the transport and starts the actor loop. It
// blocks until the transport reports connected, then transitions
// through connected -> ready (this protocol has no post-transport
// handshake; readiness is purely a transport-level concept at this
// layer, with the sync coordinator doing the substantive bootstrap
// once it observes the ready transition).
func (s *Session) Connect(ctx context.Context) error {
	if s.State() != StateDisconnected {
		return ErrAlreadyActive
	}
	s.setState(StateConnecting)
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(StateDisconnected)
		return err
	}
	s.setState(StateConnected)
	s.Go(s.runLoop)
	s.setState(StateReady)
	return nil
}

// Disconnect tears down the transport and halts the actor loop. All
// in-flight operations observe ErrShutdown.
func (s *Session) Disconnect() error {
	err := s.transport.Disconnect()
	s.Halt()
	s.setState(StateDisconnected)
	return err
}

func (s *Session) runLoop() {
	framesCh := s.transport.Frames()
	for {
		select {
		case <-s.HaltCh():
			return
		case raw, ok := <-framesCh:
			if !ok {
				s.log.Debugf("transport frame stream closed")
				s.setState(StateDisconnected)
				return
			}
			s.handleUnsolicited(raw)
		case op, ok := <-s.opCh:
			if !ok {
				return
			}
			op.replyCh <- s.runOperation(op)
		}
	}
}

// handleUnsolicited processes a frame received while the actor is not
// awaiting a specific operation's response: pushes are dispatched (and
// may trigger auto-fetch); a stray command response is logged and
// dropped, which is the harmless landing spot for a late response to a
// cancelled operation (spec.md §4.4 cancellation contract).
func (s *Session) handleUnsolicited(raw []byte) {
	fr, err := wire.DecodeFrame(raw)
	if err != nil {
		s.emitParseFailure(raw, err)
		return
	}
	if fr.IsPush {
		s.handlePush(fr)
		return
	}
	s.log.Debugf("dropping unsolicited response code 0x%02x (no pending operation)", fr.Code)
}

func (s *Session) handlePush(fr *wire.Frame) {
	s.dispatcher.Dispatch(event.Event{
		Type:    EventPush,
		Attrs:   map[string]string{"code": fmt.Sprintf("0x%02x", fr.Code)},
		Payload: fr,
	})
	if fr.Code == wire.PushMessagesWaiting {
		s.autoFetch()
	}
}

// autoFetch implements spec.md §4.4 point 2: on messages_waiting,
// issue get_next_message repeatedly until no_more_messages, dispatching
// each fetched message as an event. It runs on the actor goroutine
// directly (not via opCh) since it is itself the actor reacting to an
// unsolicited push, not an external caller's operation.
func (s *Session) autoFetch() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Transport.CommandTimeout)
	defer cancel()
	for {
		if err := s.transport.Send(ctx, wire.EncodeGetNextMessage()); err != nil {
			s.log.Warnf("auto-fetch send failed: %v", err)
			return
		}
		fr, err := s.awaitInline(ctx, wire.RespContactMsgRecv, wire.RespChannelMsgRecv, wire.RespNoMoreMessages, wire.RespError)
		if err != nil {
			s.log.Warnf("auto-fetch await failed: %v", err)
			return
		}
		if fr.Code == wire.RespNoMoreMessages {
			return
		}
		if fr.Code == wire.RespError {
			s.log.Warnf("auto-fetch: device returned error")
			return
		}
		s.dispatcher.Dispatch(event.Event{Type: EventMessageReceived, Payload: fr})
	}
}

// awaitInline reads frames directly from the transport, dispatching
// any pushes encountered along the way before the expected response
// (spec.md §5: "Pushes observed between a command write and its
// response... are dispatched before the response is completed"). It
// must only be called from the actor goroutine.
func (s *Session) awaitInline(ctx context.Context, expected ...byte) (*wire.Frame, error) {
	framesCh := s.transport.Frames()
	for {
		select {
		case raw, ok := <-framesCh:
			if !ok {
				return nil, ErrNotConnected
			}
			fr, err := wire.DecodeFrame(raw)
			if err != nil {
				s.emitParseFailure(raw, err)
				continue
			}
			if fr.IsPush {
				s.handlePush(fr)
				continue
			}
			for _, c := range expected {
				if fr.Code == c {
					return fr, nil
				}
			}
			s.log.Debugf("dropping unexpected response code 0x%02x while awaiting %v", fr.Code, expected)
		case <-ctx.Done():
			return nil, ErrTimeout
		case <-s.HaltCh():
			return nil, ErrShutdown
		}
	}
}

// sendAndAwait is the common single-command/single-response operation
// shape: send, then await one of the expected response codes. Must
// only run inside an operation's run closure (on the actor goroutine).
func (s *Session) sendAndAwait(ctx context.Context, command []byte, expected ...byte) (*wire.Frame, error) {
	if err := s.transport.Send(ctx, command); err != nil {
		return nil, err
	}
	return s.awaitInline(ctx, expected...)
}

func (s *Session) runOperation(op *operation) opResult {
	ctx, cancel := context.WithTimeout(context.Background(), op.timeout)
	defer cancel()
	value, err := op.run(ctx)
	return opResult{value: value, err: err}
}

func (s *Session) emitParseFailure(raw []byte, err error) {
	s.log.Warnf("parse_failure: %v", err)
	s.dispatcher.Dispatch(event.Event{
		Type:    EventParseFailure,
		Payload: err,
	})
}

// submit enqueues an operation and blocks for its result, honoring
// caller cancellation (spec.md §4.4: "Cancellation: cancelling a
// pending operation cancels the await but not the on-the-wire
// command").
func (s *Session) submit(ctx context.Context, run func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if s.State() != StateReady && s.State() != StateConnected {
		return nil, ErrNotConnected
	}
	timeout := s.cfg.Transport.CommandTimeout
	op := &operation{run: run, timeout: timeout, replyCh: make(chan opResult, 1)}
	select {
	case s.opCh <- op:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.HaltCh():
		return nil, ErrShutdown
	}
	select {
	case res := <-op.replyCh:
		return res.value, res.err
	case <-ctx.Done():
		// The on-the-wire command is not cancelled: the operation keeps
		// running on the actor under its own timeout, and its result is
		// left in the buffered replyCh unread.
		return nil, ctx.Err()
	case <-s.HaltCh():
		return nil, ErrShutdown
	}
}
