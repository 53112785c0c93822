package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeInbound builds a device->client frame ('>' delimiter), the
// mirror of Encode's client->device ('<') framing. Decoder only ever
// parses inbound frames; tests exercise it against this shape.
func encodeInbound(payload []byte) []byte {
	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, inboundDelim, byte(len(payload)), byte(len(payload)>>8))
	out = append(out, payload...)
	return out
}

// TestDecoderChunkSplitInvariant is the literal spec.md §8 scenario:
// the decoder must produce the same frames regardless of how the
// input bytes are split across Feed calls.
func TestDecoderChunkSplitInvariant(t *testing.T) {
	payload1 := []byte("hello")
	payload2 := []byte("world!")
	whole := append(encodeInbound(payload1), encodeInbound(payload2)...)

	var wholeDec Decoder
	var wholeFrames [][]byte
	wholeFrames = append(wholeFrames, wholeDec.Feed(whole)...)

	splits := [][]int{
		{1, 2, 3, 4},
		{3, len(whole) - 3},
		{len(whole)},
	}
	for _, cuts := range splits {
		var dec Decoder
		var got [][]byte
		start := 0
		for _, c := range cuts {
			end := start + c
			if end > len(whole) {
				end = len(whole)
			}
			got = append(got, dec.Feed(whole[start:end])...)
			start = end
		}
		if start < len(whole) {
			got = append(got, dec.Feed(whole[start:])...)
		}
		require.Equal(t, wholeFrames, got)
	}

	require.Equal(t, [][]byte{payload1, payload2}, wholeFrames)
}

func TestDecoderDiscardsPreDelimiterGarbage(t *testing.T) {
	var dec Decoder
	garbage := []byte{0x00, 0x01, 0xFF}
	frames := dec.Feed(append(garbage, encodeInbound([]byte("ok"))...))
	require.Equal(t, [][]byte{[]byte("ok")}, frames)
}

func TestDecoderBuffersPartialFrame(t *testing.T) {
	var dec Decoder
	full := encodeInbound([]byte("payload"))
	frames := dec.Feed(full[:5])
	require.Empty(t, frames)
	frames = dec.Feed(full[5:])
	require.Equal(t, [][]byte{[]byte("payload")}, frames)
}

func TestDecoderReset(t *testing.T) {
	var dec Decoder
	full := encodeInbound([]byte("payload"))
	dec.Feed(full[:5])
	dec.Reset()
	frames := dec.Feed(full[5:])
	require.Empty(t, frames)
}

func TestEncodeNeverEmitsGarbage(t *testing.T) {
	out := Encode([]byte("abc"))
	require.Equal(t, byte('<'), out[0])
	require.Equal(t, byte(3), out[1])
	require.Equal(t, byte(0), out[2])
	require.Equal(t, []byte("abc"), out[3:])
}
