package wire

// TraceHop is one path hash / SNR pair from a trace_data response
// (spec.md §4.2). The terminating hop has Hash == 0 and still carries
// a meaningful SNR (the final leg back to this client).
type TraceHop struct {
	Hash byte
	SNR  float32 // raw i8 quarters-of-dB, divided by 4.0
}

// DecodeTraceData parses the interleaved hash/SNR byte pairs, stopping
// at (and including) the first null-hash terminator. A buffer that
// runs out before a terminator is a parse_failure.
func DecodeTraceData(b []byte) ([]TraceHop, error) {
	var hops []TraceHop
	for i := 0; i+2 <= len(b); i += 2 {
		hash := b[i]
		snr := float32(int8(b[i+1])) / 4.0
		hops = append(hops, TraceHop{Hash: hash, SNR: snr})
		if hash == 0 {
			return hops, nil
		}
	}
	return nil, newParseError(RespTraceData, "trace_data ended without a null-hash terminator (%d bytes)", len(b))
}

// EncodeTraceData is the inverse of DecodeTraceData, for test fixtures
// and device-stub implementations.
func EncodeTraceData(hops []TraceHop) []byte {
	b := make([]byte, 0, len(hops)*2)
	for _, h := range hops {
		b = append(b, h.Hash, byte(int8(h.SNR*4.0)))
	}
	return b
}
