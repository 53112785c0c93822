package session

import (
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/meshcore-dev/meshclient/event"
	"github.com/meshcore-dev/meshclient/wire"
)

// fakeTransport is a hand-rolled frame.Transport double: Send records
// outbound frames and each one can trigger zero or more scripted
// inbound frames, letting tests drive exact request/response pairing
// without a real socket.
type fakeTransport struct {
	framesCh  chan []byte
	connected bool
	sent      [][]byte
	onSend    func(cmd []byte, push chan<- []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{framesCh: make(chan []byte, 16)}
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Disconnect() error {
	f.connected = false
	close(f.framesCh)
	return nil
}
func (f *fakeTransport) Send(ctx context.Context, frame []byte) error {
	f.sent = append(f.sent, frame)
	if f.onSend != nil {
		f.onSend(frame, f.framesCh)
	}
	return nil
}
func (f *fakeTransport) Frames() <-chan []byte { return f.framesCh }
func (f *fakeTransport) IsConnected() bool     { return f.connected }

func testLogger() *log.Logger {
	return log.NewWithOptions(nil, log.Options{Level: log.ErrorLevel})
}

func newTestSession(t *testing.T, ft *fakeTransport) (*Session, *event.Dispatcher) {
	t.Helper()
	disp := event.NewDispatcher(testLogger())
	cfg := DefaultConfig()
	cfg.Transport.CommandTimeout = 2 * time.Second
	s := New(ft, disp, cfg, testLogger())
	require.NoError(t, s.Connect(context.Background()))
	return s, disp
}

func TestConnectDisconnectStateSequence(t *testing.T) {
	ft := newFakeTransport()
	disp := event.NewDispatcher(testLogger())
	var states []string
	disp.Subscribe(strPtr(EventConnectionState), nil, func(ev event.Event) {
		states = append(states, ev.Attrs["state"])
	})

	cfg := DefaultConfig()
	s := New(ft, disp, cfg, testLogger())
	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, StateReady, s.State())
	require.NoError(t, s.Disconnect())
	require.Equal(t, StateDisconnected, s.State())

	require.Eventually(t, func() bool { return len(states) == 4 }, time.Second, time.Millisecond)
	require.Equal(t, []string{"connecting", "connected", "ready", "disconnected"}, states)
}

func TestGetSelfInfoRoundTrip(t *testing.T) {
	ft := newFakeTransport()
	self := &wire.SelfInfo{AdvType: 1, Name: "node-a"}
	ft.onSend = func(cmd []byte, push chan<- []byte) {
		if cmd[0] == wire.CmdGetSelfInfo {
			push <- append([]byte{wire.RespSelfInfo}, self.Encode()...)
		}
	}
	s, _ := newTestSession(t, ft)
	defer s.Disconnect()

	got, err := s.GetSelfInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, self.Name, got.Name)
	require.Equal(t, self.AdvType, got.AdvType)
}

func TestSendDirectMessageDeviceError(t *testing.T) {
	ft := newFakeTransport()
	ft.onSend = func(cmd []byte, push chan<- []byte) {
		push <- []byte{wire.RespError, 0x07}
	}
	s, _ := newTestSession(t, ft)
	defer s.Disconnect()

	var prefix [6]byte
	_, err := s.SendDirectMessage(context.Background(), 1, prefix, "hi", false)
	require.Error(t, err)
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, byte(0x07), sessErr.Code)
}

func TestGetContactsDrainsStream(t *testing.T) {
	ft := newFakeTransport()
	c1 := &wire.ContactRecord{Name: "alice"}
	c2 := &wire.ContactRecord{Name: "bob"}
	ft.onSend = func(cmd []byte, push chan<- []byte) {
		push <- []byte{wire.RespContactsStart}
		push <- append([]byte{wire.RespContact}, c1.Encode()...)
		push <- append([]byte{wire.RespContact}, c2.Encode()...)
		push <- []byte{wire.RespEndOfContacts}
	}
	s, _ := newTestSession(t, ft)
	defer s.Disconnect()

	contacts, err := s.GetContacts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	require.Equal(t, "alice", contacts[0].Name)
	require.Equal(t, "bob", contacts[1].Name)
}

// TestAutoFetchOnMessagesWaiting is the literal §8 scenario 6: an
// unsolicited messages_waiting push must drain the full queue via
// repeated get_next_message, each drained message surfacing as a
// message_received event, without any caller issuing a command.
func TestAutoFetchOnMessagesWaiting(t *testing.T) {
	ft := newFakeTransport()
	var nextMsgSends int
	ft.onSend = func(cmd []byte, push chan<- []byte) {
		if cmd[0] == wire.CmdGetNextMessage {
			nextMsgSends++
			if nextMsgSends <= 2 {
				push <- append([]byte{wire.RespContactMsgRecv}, makeContactMsg()...)
			} else {
				push <- []byte{wire.RespNoMoreMessages}
			}
		}
	}
	s, disp := newTestSession(t, ft)
	defer s.Disconnect()

	received := make(chan struct{}, 8)
	disp.Subscribe(strPtr(EventMessageReceived), nil, func(ev event.Event) {
		received <- struct{}{}
	})

	ft.framesCh <- []byte{wire.PushMessagesWaiting}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("expected message_received event %d", i)
		}
	}
	require.Equal(t, 3, nextMsgSends)
}

func TestParseFailureEmittedOnGarbage(t *testing.T) {
	ft := newFakeTransport()
	s, disp := newTestSession(t, ft)
	defer s.Disconnect()

	failed := make(chan struct{}, 1)
	disp.Subscribe(strPtr(EventParseFailure), nil, func(ev event.Event) { failed <- struct{}{} })

	ft.framesCh <- []byte{0xFF}

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("expected parse_failure event")
	}
}

func TestOperationTimeout(t *testing.T) {
	ft := newFakeTransport()
	cfg := DefaultConfig()
	cfg.Transport.CommandTimeout = 20 * time.Millisecond
	disp := event.NewDispatcher(testLogger())
	s := New(ft, disp, cfg, testLogger())
	require.NoError(t, s.Connect(context.Background()))
	defer s.Disconnect()

	_, err := s.GetSelfInfo(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func strPtr(s string) *string { return &s }

// makeContactMsg builds a minimal raw contact-message body: snr,
// 2 reserved bytes, 6-byte sender prefix, path_len, text_type,
// 4-byte timestamp, then plain text (wire.ContactMessage has no
// Encode method since the device never receives this shape back).
func makeContactMsg() []byte {
	b := make([]byte, 15)
	b[10] = wire.TextTypePlain
	return append(b, []byte("hi")...)
}
