package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeChannelMessageAndSplitSender(t *testing.T) {
	b := make([]byte, channelMsgFixedSize)
	b[0] = byte(int8(-8)) // snr raw -8 -> -2.0 dB
	b[3] = 2              // channel_index
	b[4] = 3              // path_len
	b[5] = TextTypePlain
	binary.LittleEndian.PutUint32(b[6:10], 1700000000)
	b = append(b, []byte("Bob: hello there")...)

	m, err := DecodeChannelMessage(b)
	require.NoError(t, err)
	require.Equal(t, float32(-2.0), m.SNR)
	require.Equal(t, uint8(2), m.ChannelIndex)
	require.Equal(t, uint32(1700000000), m.Timestamp)

	sender, body := SplitChannelSender(m.Text)
	require.Equal(t, "Bob", sender)
	require.Equal(t, "hello there", body)
}

func TestSplitChannelSenderNoSeparator(t *testing.T) {
	sender, body := SplitChannelSender("just a message")
	require.Equal(t, "", sender)
	require.Equal(t, "just a message", body)
}

func TestDecodeContactMessageSigned(t *testing.T) {
	b := make([]byte, contactMsgFixedSize)
	b[10] = TextTypeSigned
	b = append(b, []byte{0xAA, 0xBB, 0xCC, 0xDD}...) // signature
	b = append(b, []byte("signed body")...)

	m, err := DecodeContactMessage(b)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, m.Signature)
	require.Equal(t, "signed body", m.Text)
}

func TestDecodeContactMessageTooShort(t *testing.T) {
	_, err := DecodeContactMessage(make([]byte, 5))
	require.Error(t, err)
}
