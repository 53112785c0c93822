package sync

import (
	"context"
	"path/filepath"
	"sync/atomic"
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

// fakeSession scripts get_contacts/get_channel_info/get_next_message
// responses for the coordinator without a real transport.
type fakeSession struct {
	contacts    []*wire.ContactRecord
	contactsErr error
	channels    map[uint8]*wire.ChannelInfo
	messages    []*wire.Frame
	nextIdx     int
}

func (f *fakeSession) GetContacts(ctx context.Context, since uint32) ([]*wire.ContactRecord, error) {
	return f.contacts, f.contactsErr
}

func (f *fakeSession) GetChannelInfo(ctx context.Context, slot uint8) (*wire.ChannelInfo, error) {
	if info, ok := f.channels[slot]; ok {
		return info, nil
	}
	return &wire.ChannelInfo{Index: slot}, nil
}

func (f *fakeSession) SetChannelInfo(ctx context.Context, c *wire.ChannelInfo) error { return nil }

func (f *fakeSession) GetNextMessage(ctx context.Context) (*wire.Frame, error) {
	if f.nextIdx >= len(f.messages) {
		return &wire.Frame{Code: wire.RespNoMoreMessages}, nil
	}
	fr := f.messages[f.nextIdx]
	f.nextIdx++
	return fr, nil
}

func pubKey(b byte) [32]byte {
	var k [32]byte
	k[0] = b
	return k
}

// TestSyncArchival is the literal §8 scenario 5: local store has
// {A,B,C} with A discovered; device returns {B,D}. Expected: A stays
// discovered/not archived, B not archived, C archived, D present and
// not archived.
func TestSyncArchival(t *testing.T) {
	st := openTestStore(t)
	device := &store.Device{ID: "dev1", IsActive: true}
	require.NoError(t, st.SaveDevice(context.Background(), device))

	a := pubKey('A')
	b := pubKey('B')
	c := pubKey('C')
	d := pubKey('D')

	_, err := st.SaveContact(context.Background(), &store.Contact{DeviceID: device.ID, PublicKey: a, IsDiscovered: true})
	require.NoError(t, err)
	_, err = st.SaveContact(context.Background(), &store.Contact{DeviceID: device.ID, PublicKey: b})
	require.NoError(t, err)
	_, err = st.SaveContact(context.Background(), &store.Contact{DeviceID: device.ID, PublicKey: c})
	require.NoError(t, err)

	sess := &fakeSession{contacts: []*wire.ContactRecord{
		{PublicKey: b, Name: "bob"},
		{PublicKey: d, Name: "dave"},
	}}
	disp := event.NewDispatcher(testLogger())
	coord := New(sess, st, disp, testLogger())

	result, err := coord.syncContacts(context.Background(), device)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)

	gotA, err := st.FetchContact(context.Background(), device.ID, a)
	require.NoError(t, err)
	require.True(t, gotA.IsDiscovered)
	require.False(t, gotA.IsArchived)

	gotB, err := st.FetchContact(context.Background(), device.ID, b)
	require.NoError(t, err)
	require.False(t, gotB.IsArchived)

	gotC, err := st.FetchContact(context.Background(), device.ID, c)
	require.NoError(t, err)
	require.True(t, gotC.IsArchived)

	gotD, err := st.FetchContact(context.Background(), device.ID, d)
	require.NoError(t, err)
	require.False(t, gotD.IsArchived)
}

// TestSyncMessagesDrainsUntilNoMore is the literal §8 scenario 6's
// storage half: get_next_message is called repeatedly and stops
// exactly at no_more_messages, each message persisted before its
// event is emitted.
func TestSyncMessagesDrainsUntilNoMore(t *testing.T) {
	st := openTestStore(t)
	device := &store.Device{ID: "dev1", IsActive: true}
	require.NoError(t, st.SaveDevice(context.Background(), device))

	contactKey := pubKey('Z')
	contactID, err := st.SaveContact(context.Background(), &store.Contact{DeviceID: device.ID, PublicKey: contactKey})
	require.NoError(t, err)

	var prefix [6]byte
	copy(prefix[:], contactKey[:6])

	sess := &fakeSession{messages: []*wire.Frame{
		{Code: wire.RespContactMsgRecv, Payload: &wire.ContactMessage{SenderPrefix: prefix, Text: "hi", Timestamp: 100}},
		{Code: wire.RespChannelMsgRecv, Payload: &wire.ChannelMessage{ChannelIndex: 0, Text: "alice: yo", Timestamp: 101}},
	}}
	disp := event.NewDispatcher(testLogger())
	var received int32
	disp.Subscribe(strPtr(EventMessageReceived), nil, func(ev event.Event) { atomic.AddInt32(&received, 1) })

	coord := New(sess, st, disp, testLogger())
	result, err := coord.syncMessages(context.Background(), device)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&received) == 2 }, time.Second, 5*time.Millisecond)

	msgs, err := st.ListMessages(context.Background(), device.ID, &contactID, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hi", msgs[0].Text)

	var slot uint8
	chanMsgs, err := st.ListMessages(context.Background(), device.ID, nil, &slot)
	require.NoError(t, err)
	require.Len(t, chanMsgs, 1)
	require.Equal(t, "yo", chanMsgs[0].Text)
}

func strPtr(s string) *string { return &s }
