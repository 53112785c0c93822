package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRXLogPacketDirectText(t *testing.T) {
	// route=RouteDirect(1), payload_type=Text(2), version=0 -> header
	// byte = (0<<6)|(2<<2)|1 = 0x09
	header := byte((0 << 6) | (uint8(PayloadTypeText) << 2) | uint8(RouteDirect))
	path := []byte{0xAA, 0xBB}
	payload := []byte{0x05, 0x06, 'h', 'i'}

	raw := append([]byte{header, byte(len(path))}, path...)
	raw = append(raw, payload...)

	p, err := DecodeRXLogPacket(raw)
	require.NoError(t, err)
	require.Equal(t, RouteDirect, p.Header.RouteType)
	require.Equal(t, PayloadTypeText, p.Header.PayloadType)
	require.Equal(t, path, p.PathNodes)
	require.True(t, p.HasPrefixes)
	require.Equal(t, byte(0x05), p.DestPrefix)
	require.Equal(t, byte(0x06), p.SrcPrefix)
}

func TestDecodeRXLogPacketTransportCodeConsumed(t *testing.T) {
	header := byte((0 << 6) | (uint8(PayloadTypeText) << 2) | uint8(RouteTransportDirect))
	transportCode := []byte{0x01, 0x02, 0x03, 0x04}
	path := []byte{0xAA}
	payload := []byte{0x07, 0x08, 'x'}

	raw := append([]byte{header}, transportCode...)
	raw = append(raw, byte(len(path)))
	raw = append(raw, path...)
	raw = append(raw, payload...)

	p, err := DecodeRXLogPacket(raw)
	require.NoError(t, err)
	require.Equal(t, uint32(0x04030201), p.TransportCode)
	require.Equal(t, path, p.PathNodes)
	require.Equal(t, payload, p.Payload)
}

func TestDecodeRXLogPacketFloodHasNoPrefixes(t *testing.T) {
	header := byte((0 << 6) | (uint8(PayloadTypeText) << 2) | uint8(RouteFlood))
	raw := []byte{header, 0x00, 0x01, 0x02}
	p, err := DecodeRXLogPacket(raw)
	require.NoError(t, err)
	require.False(t, p.HasPrefixes)
}
