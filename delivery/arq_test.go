package delivery

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/meshcore-dev/meshclient/event"
	"github.com/meshcore-dev/meshclient/store"
	"github.com/meshcore-dev/meshclient/store/boltstore"
	"github.com/meshcore-dev/meshclient/wire"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(nil, log.Options{Level: log.ErrorLevel})
}

func openTestStore(t *testing.T) *boltstore.Store {
	t.Helper()
	st, err := boltstore.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// fakeSession scripts a SuggestedTimeout and optionally drops sends
// (simulating a device that never acks) so the ARQ's deadline-driven
// retry path can be exercised deterministically.
type fakeSession struct {
	mu             sync.Mutex
	suggestTimeout uint32
	sendCount      int
	resetPathCalls int
	modes          []Mode
}

func (f *fakeSession) SendDirectMessage(ctx context.Context, ackCode uint32, prefix [6]byte, text string, flood bool) (*wire.SentPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCount++
	mode := ModeDirect
	if flood {
		mode = ModeFlood
	}
	f.modes = append(f.modes, mode)
	return &wire.SentPayload{AckCode: ackCode, SuggestedTimeout: f.suggestTimeout}, nil
}

func (f *fakeSession) ResetPath(ctx context.Context, prefix [6]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetPathCalls++
	return nil
}

func (f *fakeSession) counts() (sends, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCount, f.resetPathCalls
}

func newTestContact(t *testing.T, st store.Store, deviceID string) *store.Contact {
	t.Helper()
	c := &store.Contact{DeviceID: deviceID, Name: "bob", OutPathLength: -1}
	c.PublicKey[0] = 0xAB
	id, err := st.SaveContact(context.Background(), c)
	require.NoError(t, err)
	c.ID = id
	return c
}

// TestRetryFloodFail is the literal §8 scenario 4: with N1=2, N2=1,
// min_timeout=1s, a device that never acks must walk
// sending(direct,1) -> retrying -> sending(direct,2) -> retrying ->
// reset_path -> sending(flood,1) -> retrying -> failed, with
// reset_path issued exactly once.
func TestRetryFloodFail(t *testing.T) {
	st := openTestStore(t)
	contact := newTestContact(t, st, "dev-1")
	disp := event.NewDispatcher(testLogger())
	fs := &fakeSession{suggestTimeout: 50} // ms; MinTimeout below dominates

	cfg := Config{
		DirectAttempts: 2,
		FloodAttempts:  1,
		MinTimeout:     100 * time.Millisecond,
		Margin:         20 * time.Millisecond,
		AckRetention:   time.Minute,
	}
	arq := NewARQ(fs, st, disp, NewMetrics(nil), cfg, testLogger())
	arq.Start()
	defer arq.Stop()

	var statuses []string
	disp.Subscribe(strPtr(MessageStatusEvent), nil, func(ev event.Event) {
		statuses = append(statuses, ev.Payload.(store.MessageStatus).String())
	})

	msg, err := arq.Send(context.Background(), "dev-1", contact, "hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := st.FetchMessage(context.Background(), msg.ID)
		return err == nil && got.Status == store.StatusFailed
	}, 3*time.Second, 10*time.Millisecond)

	sends, resets := fs.counts()
	require.Equal(t, 3, sends) // 2 direct + 1 flood
	require.Equal(t, 1, resets)
	require.Equal(t, []Mode{ModeDirect, ModeDirect, ModeFlood}, fs.modes)
}

// TestAckDelivers confirms an ack push resolves the tracked message to
// delivered and stops further retries.
func TestAckDelivers(t *testing.T) {
	st := openTestStore(t)
	contact := newTestContact(t, st, "dev-1")
	disp := event.NewDispatcher(testLogger())
	fs := &fakeSession{suggestTimeout: 5000}

	cfg := Config{
		DirectAttempts: 2,
		FloodAttempts:  2,
		MinTimeout:     5 * time.Second,
		Margin:         time.Second,
		AckRetention:   time.Minute,
	}
	arq := NewARQ(fs, st, disp, NewMetrics(nil), cfg, testLogger())
	arq.Start()
	defer arq.Stop()

	msg, err := arq.Send(context.Background(), "dev-1", contact, "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return arq.tracker.Len() == 1
	}, time.Second, 5*time.Millisecond)

	// Simulate the "send confirmed" push arriving via the dispatcher,
	// the same path session.go publishes it on.
	ackCode := fetchTrackedAckCode(t, arq)
	fr, err := wire.DecodeFrame(append([]byte{wire.PushSendConfirmed}, encodeAck(ackCode)...))
	require.NoError(t, err)
	disp.Dispatch(event.Event{Type: "push", Attrs: map[string]string{"code": "0x82"}, Payload: fr})

	require.Eventually(t, func() bool {
		got, err := st.FetchMessage(context.Background(), msg.ID)
		return err == nil && got.Status == store.StatusDelivered
	}, time.Second, 5*time.Millisecond)

	sends, _ := fs.counts()
	require.Equal(t, 1, sends)
}

func TestHandleDisconnectFailsInFlight(t *testing.T) {
	st := openTestStore(t)
	contact := newTestContact(t, st, "dev-1")
	disp := event.NewDispatcher(testLogger())
	fs := &fakeSession{suggestTimeout: 5000}

	cfg := Config{DirectAttempts: 2, FloodAttempts: 2, MinTimeout: 5 * time.Second, Margin: time.Second, AckRetention: time.Minute}
	arq := NewARQ(fs, st, disp, NewMetrics(nil), cfg, testLogger())
	arq.Start()
	defer arq.Stop()

	msg, err := arq.Send(context.Background(), "dev-1", contact, "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return arq.tracker.Len() == 1 }, time.Second, 5*time.Millisecond)

	arq.HandleDisconnect(context.Background())

	got, err := st.FetchMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, got.Status)
	require.Equal(t, 0, arq.tracker.Len())
}

func encodeAck(ackCode uint32) []byte {
	return []byte{byte(ackCode), byte(ackCode >> 8), byte(ackCode >> 16), byte(ackCode >> 24)}
}

// fetchTrackedAckCode pulls the single tracked ack code back out of
// the tracker's internal map for the test's simulated push.
func fetchTrackedAckCode(t *testing.T, arq *ARQ) uint32 {
	t.Helper()
	arq.tracker.mu.Lock()
	defer arq.tracker.mu.Unlock()
	for code := range arq.tracker.byCode {
		return code
	}
	t.Fatal("no tracked ack code")
	return 0
}
