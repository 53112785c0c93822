package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelfInfoRoundTrip(t *testing.T) {
	s := &SelfInfo{
		AdvType:         1,
		TXPowerDBm:      20,
		MaxTXPowerDBm:   22,
		LatMicroDeg:     37774900,
		LonMicroDeg:     -122419400,
		MultiAcks:       true,
		AdvLocPolicy:    2,
		Telemetry:       TelemetryModes{Env: 1, Loc: 2, Base: 3},
		ManualAdd:       true,
		FrequencyKHz:    915000,
		BandwidthHz:     250000,
		SpreadingFactor: 10,
		CodingRate:      5,
		Name:            "basestation",
	}
	for i := range s.PublicKey {
		s.PublicKey[i] = byte(i + 1)
	}

	encoded := s.Encode()
	decoded, err := DecodeSelfInfo(encoded)
	require.NoError(t, err)
	require.Equal(t, s.PublicKey, decoded.PublicKey)
	require.Equal(t, s.MultiAcks, decoded.MultiAcks)
	require.Equal(t, s.ManualAdd, decoded.ManualAdd)
	require.Equal(t, s.Telemetry, decoded.Telemetry)
	require.Equal(t, s.FrequencyKHz, decoded.FrequencyKHz)
	require.Equal(t, s.Name, decoded.Name)
}

func TestTelemetryModesBitfield(t *testing.T) {
	b := byte(0x1<<4 | 0x2<<2 | 0x3)
	tm := decodeTelemetryModes(b)
	require.Equal(t, TelemetryModes{Env: 1, Loc: 2, Base: 3}, tm)
	require.Equal(t, b, tm.encode())
}
