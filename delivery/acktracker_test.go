package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAckTrackerTrackResolve(t *testing.T) {
	tr := NewAckTracker(time.Minute)
	tr.Track(1, "msg-1", [6]byte{0xAA}, 1, ModeDirect, time.Now().Add(time.Hour))
	require.Equal(t, 1, tr.Len())

	id, ok := tr.Resolve(1)
	require.True(t, ok)
	require.Equal(t, "msg-1", id)
	require.Equal(t, 0, tr.Len())

	_, ok = tr.Resolve(1)
	require.False(t, ok, "resolving a retired code again must be a no-op")
}

func TestAckTrackerExpiredInDeadlineOrder(t *testing.T) {
	tr := NewAckTracker(time.Minute)
	now := time.Now()
	tr.Track(1, "msg-1", [6]byte{}, 1, ModeDirect, now.Add(-2*time.Second))
	tr.Track(2, "msg-2", [6]byte{}, 1, ModeDirect, now.Add(-1*time.Second))
	tr.Track(3, "msg-3", [6]byte{}, 1, ModeDirect, now.Add(time.Hour))

	expired := tr.Expired(now)
	require.Len(t, expired, 2)
	require.Equal(t, "msg-1", expired[0].messageID)
	require.Equal(t, "msg-2", expired[1].messageID)
	require.Equal(t, 1, tr.Len())
}

func TestAckTrackerClear(t *testing.T) {
	tr := NewAckTracker(time.Minute)
	tr.Track(1, "msg-1", [6]byte{}, 1, ModeDirect, time.Now().Add(time.Hour))
	tr.Track(2, "msg-2", [6]byte{}, 1, ModeFlood, time.Now().Add(time.Hour))

	cleared := tr.Clear()
	require.Len(t, cleared, 2)
	require.Equal(t, 0, tr.Len())
}
