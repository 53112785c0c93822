package wire

// Response and push codes (spec.md §4.2). Push codes are the subset
// with the high bit set (>= 0x80); everything below is a command
// response.
const (
	RespOK             byte = 0x00
	RespError          byte = 0x01
	RespContactsStart  byte = 0x02
	RespContact        byte = 0x03
	RespEndOfContacts  byte = 0x04
	RespSelfInfo       byte = 0x05
	RespSent           byte = 0x06
	RespContactMsgRecv byte = 0x07
	RespChannelMsgRecv byte = 0x08
	RespCurrentTime    byte = 0x09
	RespNoMoreMessages byte = 0x0A
	RespDeviceInfo     byte = 0x0B
	RespChannelInfo    byte = 0x0C
	RespStatus         byte = 0x0D
	RespTraceData      byte = 0x0E
	RespCustomVars     byte = 0x0F

	PushAdvert          byte = 0x80
	PushPathUpdated     byte = 0x81
	PushSendConfirmed   byte = 0x82
	PushMessagesWaiting byte = 0x83
	PushRawData         byte = 0x84
	PushLoginFailed     byte = 0x85
	PushStatusResponse  byte = 0x86
)

// IsPush reports whether code is a push (the high bit is set).
func IsPush(code byte) bool { return code&0x80 != 0 }

// Command codes the session layer encodes for outbound requests.
const (
	CmdSendDirectMessage byte = 0x01
	CmdSendChannelMsg    byte = 0x02
	CmdGetContacts       byte = 0x03
	CmdGetSelfInfo       byte = 0x04
	CmdGetDeviceInfo     byte = 0x05
	CmdGetNextMessage    byte = 0x06
	CmdGetChannelInfo    byte = 0x07
	CmdSetChannelInfo    byte = 0x08
	CmdGetStatus         byte = 0x09
	CmdGetTraceData      byte = 0x0A
	CmdGetCustomVars     byte = 0x0B
	CmdResetPath         byte = 0x0C
)
