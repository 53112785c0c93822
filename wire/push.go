package wire

// Frame is a decoded, dispatch-ready unit: either a command response
// (non-push) or a push. Code carries the raw response/push code byte.
// DecodeFrame returns no Frame when decoding fails, so a frame that
// fails to parse yields only the *ParseError (which the session emits
// as a parse_failure event); no typed event is emitted for it.
type Frame struct {
	Code    byte
	IsPush  bool
	Payload interface{}
}

// DecodeFrame dispatches raw on its leading code byte to the
// appropriate typed decoder. Unknown codes produce a *ParseError
// rather than terminating the session (spec.md §4.2).
func DecodeFrame(raw []byte) (*Frame, error) {
	if len(raw) < 1 {
		return nil, newParseError(0, "empty frame")
	}
	code := raw[0]
	body := raw[1:]
	isPush := IsPush(code)

	var payload interface{}
	var err error
	switch code {
	case RespOK:
		payload, err = decodeOKPayload(body)
	case RespError:
		payload, err = decodeErrorPayload(body)
	case RespContact:
		payload, err = DecodeContactRecord(body)
	case RespSelfInfo:
		payload, err = DecodeSelfInfo(body)
	case RespSent:
		payload, err = decodeSentPayload(body)
	case RespContactMsgRecv:
		payload, err = DecodeContactMessage(body)
	case RespChannelMsgRecv:
		payload, err = DecodeChannelMessage(body)
	case RespDeviceInfo:
		payload, err = DecodeDeviceInfo(body)
	case RespChannelInfo:
		payload, err = DecodeChannelInfo(body)
	case RespStatus:
		payload, err = DecodeStatus(body)
	case RespTraceData:
		payload, err = DecodeTraceData(body)
	case RespCustomVars:
		payload = DecodeCustomVars(body)
	case RespContactsStart, RespEndOfContacts, RespNoMoreMessages, RespCurrentTime:
		payload = body
	case PushSendConfirmed:
		payload, err = decodeAckPushPayload(body)
	case PushMessagesWaiting, PushAdvert, PushPathUpdated, PushRawData, PushLoginFailed, PushStatusResponse:
		payload = body
	default:
		return nil, newParseError(code, "unknown response/push code")
	}
	if err != nil {
		return nil, err
	}
	return &Frame{Code: code, IsPush: isPush, Payload: payload}, nil
}

// SentPayload is the "sent" response's carried fields (spec.md §4.2).
type SentPayload struct {
	AckCode          uint32
	ExpectedAck      uint32
	RoundTripMs      uint32
	SuggestedTimeout uint32
}

func decodeSentPayload(b []byte) (*SentPayload, error) {
	if len(b) < 16 {
		return nil, newParseError(RespSent, "sent response too short: got %d want 16 bytes", len(b))
	}
	le := leUint32
	return &SentPayload{
		AckCode:          le(b[0:4]),
		ExpectedAck:      le(b[4:8]),
		RoundTripMs:      le(b[8:12]),
		SuggestedTimeout: le(b[12:16]),
	}, nil
}

// OKPayload is the 0-or-4-byte "ok" response (spec.md §4.2).
type OKPayload struct {
	HasValue bool
	Value    uint32
}

func decodeOKPayload(b []byte) (*OKPayload, error) {
	switch len(b) {
	case 0:
		return &OKPayload{}, nil
	case 4:
		return &OKPayload{HasValue: true, Value: leUint32(b)}, nil
	default:
		return nil, newParseError(RespOK, "ok response must be 0 or 4 bytes, got %d", len(b))
	}
}

// ErrorPayload is the 1-byte "error" response.
type ErrorPayload struct {
	Code byte
}

func decodeErrorPayload(b []byte) (*ErrorPayload, error) {
	if len(b) < 1 {
		return nil, newParseError(RespError, "error response missing code byte")
	}
	return &ErrorPayload{Code: b[0]}, nil
}

// AckPushPayload is the "send confirmed" push's carried ack_code
// (spec.md §4.5, "on ack push -> delivered"). The device echoes the
// ack_code a client assigned at send time, matched against the
// delivery engine's ack tracker.
type AckPushPayload struct {
	AckCode uint32
}

func decodeAckPushPayload(b []byte) (*AckPushPayload, error) {
	if len(b) < 4 {
		return nil, newParseError(PushSendConfirmed, "send-confirmed push too short: got %d want >= 4 bytes", len(b))
	}
	return &AckPushPayload{AckCode: leUint32(b)}, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
