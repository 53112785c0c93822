package wire

import "encoding/binary"

// TextType mirrors store.TextType at the wire level: plain, command,
// or signed (the latter carries a 4-byte trailing signature before
// the text).
const (
	TextTypePlain  uint8 = 0
	TextTypeCmd    uint8 = 1
	TextTypeSigned uint8 = 2
)

const (
	contactMsgFixedSize = 1 + 2 + 6 + 1 + 1 + 4 // snr,reserved,sender_prefix,path_len,text_type,timestamp
	channelMsgFixedSize = 1 + 2 + 1 + 1 + 1 + 4 // snr,reserved,channel_index,path_len,text_type,timestamp
	signatureSize       = 4
)

// ContactMessage is a decoded direct (contact) message push/response
// (spec.md §4.2, "Contact message v3").
type ContactMessage struct {
	SNR          float32
	SenderPrefix [6]byte
	PathLength   uint8
	TextType     uint8
	Timestamp    uint32
	Signature    []byte // len 4 iff TextType == TextTypeSigned
	Text         string
}

func DecodeContactMessage(b []byte) (*ContactMessage, error) {
	if len(b) < contactMsgFixedSize {
		return nil, newParseError(RespContactMsgRecv, "contact message too short: got %d want >= %d bytes", len(b), contactMsgFixedSize)
	}
	var m ContactMessage
	m.SNR = float32(int8(b[0])) / 4.0
	copy(m.SenderPrefix[:], b[3:9])
	m.PathLength = b[9]
	m.TextType = b[10]
	m.Timestamp = binary.LittleEndian.Uint32(b[11:15])

	rest := b[15:]
	if m.TextType == TextTypeSigned {
		if len(rest) < signatureSize {
			return nil, newParseError(RespContactMsgRecv, "signed contact message missing 4-byte signature")
		}
		m.Signature = append([]byte(nil), rest[:signatureSize]...)
		rest = rest[signatureSize:]
	}
	m.Text = decodeFieldText(rest)
	return &m, nil
}

// ChannelMessage is a decoded channel message push/response (spec.md
// §4.2, "Channel message v3"). Text may carry a "NodeName: body"
// prefix; SplitChannelSender extracts it. No normalization happens in
// the codec itself (spec.md §9).
type ChannelMessage struct {
	SNR          float32
	ChannelIndex uint8
	PathLength   uint8
	TextType     uint8
	Timestamp    uint32
	Text         string
}

func DecodeChannelMessage(b []byte) (*ChannelMessage, error) {
	if len(b) < channelMsgFixedSize {
		return nil, newParseError(RespChannelMsgRecv, "channel message too short: got %d want >= %d bytes", len(b), channelMsgFixedSize)
	}
	var m ChannelMessage
	m.SNR = float32(int8(b[0])) / 4.0
	m.ChannelIndex = b[3]
	m.PathLength = b[4]
	m.TextType = b[5]
	m.Timestamp = binary.LittleEndian.Uint32(b[6:10])
	m.Text = decodeFieldText(b[10:])
	return &m, nil
}

// SplitChannelSender splits a channel message body on the first
// ": " into (senderName, body). Absence of the separator yields an
// empty sender name and the whole text as body (spec.md §4.2,
// "implementers SHOULD split on the first ': ' for display").
func SplitChannelSender(text string) (sender, body string) {
	for i := 0; i+1 < len(text); i++ {
		if text[i] == ':' && text[i+1] == ' ' {
			return text[:i], text[i+2:]
		}
	}
	return "", text
}
