package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeFrameUnknownCode(t *testing.T) {
	_, err := DecodeFrame([]byte{0x7E, 0x00})
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestDecodeFrameOKNoValue(t *testing.T) {
	f, err := DecodeFrame([]byte{RespOK})
	require.NoError(t, err)
	require.False(t, f.IsPush)
	ok := f.Payload.(*OKPayload)
	require.False(t, ok.HasValue)
}

func TestDecodeFrameOKWithValue(t *testing.T) {
	raw := []byte{RespOK, 0x2A, 0x00, 0x00, 0x00}
	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	ok := f.Payload.(*OKPayload)
	require.True(t, ok.HasValue)
	require.Equal(t, uint32(42), ok.Value)
}

func TestDecodeFramePushBitRouting(t *testing.T) {
	require.True(t, IsPush(PushMessagesWaiting))
	require.False(t, IsPush(RespOK))

	f, err := DecodeFrame([]byte{PushMessagesWaiting})
	require.NoError(t, err)
	require.True(t, f.IsPush)
}

func TestDecodeFrameSentPayload(t *testing.T) {
	raw := make([]byte, 17)
	raw[0] = RespSent
	raw[1] = 0x01 // ack_code = 1
	raw[5] = 0x02 // expected_ack = 2
	raw[9] = 200  // round_trip_ms
	raw[13] = 8   // suggested_timeout

	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	sp := f.Payload.(*SentPayload)
	require.Equal(t, uint32(1), sp.AckCode)
	require.Equal(t, uint32(2), sp.ExpectedAck)
	require.Equal(t, uint32(200), sp.RoundTripMs)
	require.Equal(t, uint32(8), sp.SuggestedTimeout)
}

func TestDecodeFrameAckPush(t *testing.T) {
	raw := []byte{PushSendConfirmed, 0x07, 0x00, 0x00, 0x00}
	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	require.True(t, f.IsPush)
	ap := f.Payload.(*AckPushPayload)
	require.Equal(t, uint32(7), ap.AckCode)
}

func TestDecodeFrameAckPushTooShort(t *testing.T) {
	_, err := DecodeFrame([]byte{PushSendConfirmed, 0x01})
	require.Error(t, err)
}

func TestDecodeFrameErrorPayload(t *testing.T) {
	f, err := DecodeFrame([]byte{RespError, 0x05})
	require.NoError(t, err)
	ep := f.Payload.(*ErrorPayload)
	require.Equal(t, byte(5), ep.Code)
}
