package wire

// ChannelInfoSize is the channel_info record layout (spec.md §6):
// index:1 | name:32 (NUL/ctrl-trimmed UTF-8) | secret:16.
const ChannelInfoSize = 1 + 32 + 16

// ChannelInfo is the wire shape of a single channel slot.
type ChannelInfo struct {
	Index  uint8
	Name   string
	Secret [16]byte
}

func DecodeChannelInfo(b []byte) (*ChannelInfo, error) {
	if len(b) < ChannelInfoSize {
		return nil, newParseError(RespChannelInfo, "channel_info too short: got %d want %d bytes", len(b), ChannelInfoSize)
	}
	var c ChannelInfo
	c.Index = b[0]
	c.Name = decodeFieldText(b[1:33])
	copy(c.Secret[:], b[33:49])
	return &c, nil
}

func (c *ChannelInfo) Encode() []byte {
	b := make([]byte, ChannelInfoSize)
	b[0] = c.Index
	nameBytes := []byte(c.Name)
	if len(nameBytes) > 32 {
		nameBytes = nameBytes[:32]
	}
	copy(b[1:33], nameBytes)
	copy(b[33:49], c.Secret[:])
	return b
}
