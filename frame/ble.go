package frame

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/meshcore-dev/meshclient/internal/worker"
)

// SerialLink is the raw primitive a concrete BLE GATT binding
// provides: Write sends one outbound characteristic write, and
// Notifications delivers one already-whole inbound payload per
// notification. Shipping a concrete BLE driver is a spec.md §9
// non-goal; BLETransport adapts whatever binding the caller supplies.
type SerialLink interface {
	io.Closer
	Write(p []byte) (int, error)
	Notifications() <-chan []byte
}

// BLETransport is a pass-through Transport (spec.md §4.1): the
// underlying BLE characteristic already delivers whole frames, so no
// decoder state is needed, unlike TCPTransport.
type BLETransport struct {
	worker.Worker

	link SerialLink
	log  *log.Logger

	mu        sync.Mutex
	connected bool

	framesCh chan []byte
}

// NewBLETransport wraps an already-paired SerialLink.
func NewBLETransport(link SerialLink, logger *log.Logger) *BLETransport {
	if logger == nil {
		logger = log.NewWithOptions(nil, log.Options{})
	}
	return &BLETransport{
		link:     link,
		log:      logger.WithPrefix("frame/ble"),
		framesCh: make(chan []byte, 16),
	}
}

func (t *BLETransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	t.Go(t.forwardLoop)
	return nil
}

func (t *BLETransport) forwardLoop() {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		close(t.framesCh)
	}()
	notifications := t.link.Notifications()
	for {
		select {
		case payload, ok := <-notifications:
			if !ok {
				t.log.Debugf("BLE notification stream closed")
				return
			}
			select {
			case t.framesCh <- payload:
			case <-t.HaltCh():
				return
			}
		case <-t.HaltCh():
			return
		}
	}
}

func (t *BLETransport) Disconnect() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	err := t.link.Close()
	t.Halt()
	return err
}

func (t *BLETransport) Send(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return ErrClosed
	}
	if _, err := t.link.Write(frame); err != nil {
		return newTransportError("send", err)
	}
	return nil
}

func (t *BLETransport) Frames() <-chan []byte { return t.framesCh }

func (t *BLETransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}
