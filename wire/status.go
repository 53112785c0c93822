package wire

import "encoding/binary"

// StatusSize is the full fixed counters layout (spec.md §6); the spec
// calls out "≥ 58 B" as the minimum, covering through direct_dups.
// This module enforces the full 64-byte layout and treats the final
// flood_dups/rx_airtime fields as always-present, per the same
// Open Question resolution recorded for SelfInfoFixedSize.
const StatusSize = 64

// Status is a point-in-time device radio/link counter snapshot.
type Status struct {
	PubkeyPrefix [6]byte
	BatteryMV    uint16
	TXQueueLen   uint16
	NoiseFloor   int16
	LastRSSI     int16
	Recv         uint32
	Sent         uint32
	Airtime      uint32
	Uptime       uint32
	FloodTX      uint32
	DirectTX     uint32
	FloodRX      uint32
	DirectRX     uint32
	FullEvents   uint16
	LastSNR      [4]float32 // raw i16 quarters-of-dB, divided by 4.0
	DirectDups   uint16
	FloodDups    uint16
	RxAirtime    uint32
}

func DecodeStatus(b []byte) (*Status, error) {
	if len(b) < StatusSize {
		return nil, newParseError(RespStatus, "status too short: got %d want >= %d bytes", len(b), StatusSize)
	}
	var s Status
	copy(s.PubkeyPrefix[:], b[0:6])
	le := binary.LittleEndian
	s.BatteryMV = le.Uint16(b[6:8])
	s.TXQueueLen = le.Uint16(b[8:10])
	s.NoiseFloor = int16(le.Uint16(b[10:12]))
	s.LastRSSI = int16(le.Uint16(b[12:14]))
	s.Recv = le.Uint32(b[14:18])
	s.Sent = le.Uint32(b[18:22])
	s.Airtime = le.Uint32(b[22:26])
	s.Uptime = le.Uint32(b[26:30])
	s.FloodTX = le.Uint32(b[30:34])
	s.DirectTX = le.Uint32(b[34:38])
	s.FloodRX = le.Uint32(b[38:42])
	s.DirectRX = le.Uint32(b[42:46])
	s.FullEvents = le.Uint16(b[46:48])
	for i := 0; i < 4; i++ {
		raw := int16(le.Uint16(b[48+i*2 : 50+i*2]))
		s.LastSNR[i] = float32(raw) / 4.0
	}
	s.DirectDups = le.Uint16(b[56:58])
	s.FloodDups = le.Uint16(b[58:60])
	s.RxAirtime = le.Uint32(b[60:64])
	return &s, nil
}
