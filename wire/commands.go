package wire

import "encoding/binary"

// EncodeSendDirectMessage builds the "send direct message" command
// (spec.md §4.2): [code][ack_code:u32 LE][recipient_pubkey_prefix:6B][text...].
func EncodeSendDirectMessage(ackCode uint32, recipientPrefix [6]byte, text string) []byte {
	b := make([]byte, 0, 1+4+6+len(text))
	b = append(b, CmdSendDirectMessage)
	var ackBuf [4]byte
	binary.LittleEndian.PutUint32(ackBuf[:], ackCode)
	b = append(b, ackBuf[:]...)
	b = append(b, recipientPrefix[:]...)
	b = append(b, text...)
	return b
}

// EncodeSendDirectMessageFlood is EncodeSendDirectMessage with the
// flood-routing flag set, used once the delivery engine falls back
// from direct to flood mode (spec.md §4.5).
func EncodeSendDirectMessageFlood(ackCode uint32, recipientPrefix [6]byte, text string) []byte {
	out := EncodeSendDirectMessage(ackCode, recipientPrefix, text)
	out[0] = CmdSendDirectMessage | floodFlagBit
	return out
}

const floodFlagBit = 0x40

// EncodeSendChannelMessage builds the channel-send command payload.
// Channel sends carry no ack_code: channel messages produce no ACKs
// (spec.md §4.5).
func EncodeSendChannelMessage(channelIndex uint8, txtType uint8, text string) []byte {
	b := make([]byte, 0, 3+len(text))
	b = append(b, CmdSendChannelMsg, channelIndex, txtType)
	b = append(b, text...)
	return b
}

// EncodeGetContacts builds the incremental contact-sync request
// (spec.md §4.6 phase 1): since is a unix timestamp, 0 for a full sync.
func EncodeGetContacts(since uint32) []byte {
	b := make([]byte, 5)
	b[0] = CmdGetContacts
	binary.LittleEndian.PutUint32(b[1:5], since)
	return b
}

func EncodeGetSelfInfo() []byte { return []byte{CmdGetSelfInfo} }

func EncodeGetDeviceInfo() []byte { return []byte{CmdGetDeviceInfo} }

func EncodeGetNextMessage() []byte { return []byte{CmdGetNextMessage} }

func EncodeGetChannelInfo(slot uint8) []byte { return []byte{CmdGetChannelInfo, slot} }

func EncodeSetChannelInfo(c *ChannelInfo) []byte {
	return append([]byte{CmdSetChannelInfo}, c.Encode()...)
}

func EncodeGetStatus() []byte { return []byte{CmdGetStatus} }

func EncodeGetTraceData() []byte { return []byte{CmdGetTraceData} }

func EncodeGetCustomVars() []byte { return []byte{CmdGetCustomVars} }

// EncodeResetPath requests the device discard its cached route to
// recipientPrefix, issued exactly once on the direct-to-flood
// transition (spec.md §4.5).
func EncodeResetPath(recipientPrefix [6]byte) []byte {
	b := make([]byte, 0, 7)
	b = append(b, CmdResetPath)
	b = append(b, recipientPrefix[:]...)
	return b
}
