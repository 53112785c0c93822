package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestContactParseShort is the literal spec.md §8 scenario 3: a
// 100-byte input yields a parse_failure whose reason mentions "147".
func TestContactParseShort(t *testing.T) {
	short := make([]byte, 100)
	_, err := DecodeContactRecord(short)
	require.Error(t, err)
	require.Contains(t, err.Error(), "147")
}

func TestContactRoundTrip(t *testing.T) {
	cases := []int8{-1, 0, 1, 32, 64}
	for _, pathLen := range cases {
		c := &ContactRecord{
			NodeType:         1,
			Flags:            0x02,
			OutPathLength:    pathLen,
			Name:             "Alice",
			LastAdvertUnix:   1700000000,
			LatMicroDeg:      37774900,
			LonMicroDeg:      -122419400,
			LastModifiedUnix: 1700000100,
		}
		for i := range c.PublicKey {
			c.PublicKey[i] = byte(i)
		}
		n := int(pathLen)
		if n < 0 {
			n = 0
		}
		c.OutPath = make([]byte, n)
		for i := range c.OutPath {
			c.OutPath[i] = byte(i + 1)
		}

		encoded := c.Encode()
		require.Len(t, encoded, ContactRecordSize)

		decoded, err := DecodeContactRecord(encoded)
		require.NoError(t, err)
		require.Equal(t, c.PublicKey, decoded.PublicKey)
		require.Equal(t, c.OutPathLength, decoded.OutPathLength)
		require.Equal(t, c.OutPath, decoded.OutPath)
		require.Equal(t, c.Name, decoded.Name)
		require.Equal(t, c.LatMicroDeg, decoded.LatMicroDeg)
		require.Equal(t, c.LonMicroDeg, decoded.LonMicroDeg)
	}
}
