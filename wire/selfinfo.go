package wire

import "encoding/binary"

// SelfInfoFixedSize is this module's concrete choice for the self-info
// fixed-field layout length (spec.md §6 lists the field order and
// calls it "≥ 55 B"; decoded bit-exact here against the full field
// list, which sums to 57 bytes before the trailing variable-length
// name -- see SPEC_FULL.md §5's Open Question log for why 57, not 55, is
// the enforced minimum).
const SelfInfoFixedSize = 57

// TelemetryModes decomposes the single telemetry_modes byte into its
// three 2-bit fields (spec.md §6).
type TelemetryModes struct {
	Env  uint8
	Loc  uint8
	Base uint8
}

func decodeTelemetryModes(b byte) TelemetryModes {
	return TelemetryModes{
		Env:  (b >> 4) & 3,
		Loc:  (b >> 2) & 3,
		Base: b & 3,
	}
}

func (t TelemetryModes) encode() byte {
	return (t.Env&3)<<4 | (t.Loc&3)<<2 | (t.Base & 3)
}

// SelfInfo is the device's report of its own identity and radio state.
type SelfInfo struct {
	AdvType         uint8
	TXPowerDBm      int8
	MaxTXPowerDBm   int8
	PublicKey       [32]byte
	LatMicroDeg     int32
	LonMicroDeg     int32
	MultiAcks       bool
	AdvLocPolicy    uint8
	Telemetry       TelemetryModes
	ManualAdd       bool
	FrequencyKHz    uint32
	BandwidthHz     uint32
	SpreadingFactor uint8
	CodingRate      uint8
	Name            string
}

func DecodeSelfInfo(b []byte) (*SelfInfo, error) {
	if len(b) < SelfInfoFixedSize {
		return nil, newParseError(RespSelfInfo, "self_info too short: got %d want >= %d bytes", len(b), SelfInfoFixedSize)
	}
	var s SelfInfo
	s.AdvType = b[0]
	s.TXPowerDBm = int8(b[1])
	s.MaxTXPowerDBm = int8(b[2])
	copy(s.PublicKey[:], b[3:35])
	s.LatMicroDeg = int32(binary.LittleEndian.Uint32(b[35:39]))
	s.LonMicroDeg = int32(binary.LittleEndian.Uint32(b[39:43]))
	s.MultiAcks = b[43] != 0
	s.AdvLocPolicy = b[44]
	s.Telemetry = decodeTelemetryModes(b[45])
	s.ManualAdd = b[46] != 0
	s.FrequencyKHz = binary.LittleEndian.Uint32(b[47:51])
	s.BandwidthHz = binary.LittleEndian.Uint32(b[51:55])
	s.SpreadingFactor = b[55]
	s.CodingRate = b[56]
	s.Name = decodeFieldText(b[57:])
	return &s, nil
}

func (s *SelfInfo) Encode() []byte {
	nameBytes := []byte(s.Name)
	b := make([]byte, SelfInfoFixedSize+len(nameBytes))
	b[0] = s.AdvType
	b[1] = byte(s.TXPowerDBm)
	b[2] = byte(s.MaxTXPowerDBm)
	copy(b[3:35], s.PublicKey[:])
	binary.LittleEndian.PutUint32(b[35:39], uint32(s.LatMicroDeg))
	binary.LittleEndian.PutUint32(b[39:43], uint32(s.LonMicroDeg))
	if s.MultiAcks {
		b[43] = 1
	}
	b[44] = s.AdvLocPolicy
	b[45] = s.Telemetry.encode()
	if s.ManualAdd {
		b[46] = 1
	}
	binary.LittleEndian.PutUint32(b[47:51], s.FrequencyKHz)
	binary.LittleEndian.PutUint32(b[51:55], s.BandwidthHz)
	b[55] = s.SpreadingFactor
	b[56] = s.CodingRate
	copy(b[57:], nameBytes)
	return b
}
