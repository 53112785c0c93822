package frame

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/meshcore-dev/meshclient/internal/worker"
)

// TCPTransport frames a raw TCP byte stream per spec.md §4.1's
// length-prefixed wire format. Its dial/read-loop shape follows the
// teacher's connection.go (onTCPConn / the cmdCh reader goroutine),
// trimmed of the katzenpost-specific handshake and PKI machinery this
// module has no equivalent of.
type TCPTransport struct {
	worker.Worker

	addr   string
	dialer net.Dialer
	log    *log.Logger

	mu        sync.Mutex
	conn      net.Conn
	connected bool

	framesCh chan []byte
}

// NewTCPTransport returns a Transport that dials addr on Connect.
func NewTCPTransport(addr string, logger *log.Logger) *TCPTransport {
	if logger == nil {
		logger = log.NewWithOptions(nil, log.Options{})
	}
	return &TCPTransport{
		addr:     addr,
		dialer:   net.Dialer{Timeout: 30 * time.Second},
		log:      logger.WithPrefix("frame/tcp"),
		framesCh: make(chan []byte, 16),
	}
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return newTransportError("connect", err)
	}
	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	t.Go(func() { t.readLoop(conn) })
	return nil
}

func (t *TCPTransport) readLoop(conn net.Conn) {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		conn.Close()
		close(t.framesCh)
	}()

	var dec Decoder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			t.log.Debugf("read loop terminating: %v", err)
			return
		}
		for _, f := range dec.Feed(buf[:n]) {
			select {
			case t.framesCh <- f:
			case <-t.HaltCh():
				return
			}
		}
	}
}

func (t *TCPTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.connected = false
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	t.Halt()
	return nil
}

func (t *TCPTransport) Send(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()
	if !connected || conn == nil {
		return ErrClosed
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if _, err := conn.Write(Encode(frame)); err != nil {
		return newTransportError("send", err)
	}
	return nil
}

func (t *TCPTransport) Frames() <-chan []byte { return t.framesCh }

func (t *TCPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}
