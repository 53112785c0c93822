package session

import (
	"context"

	"github.com/meshcore-dev/meshclient/wire"
)

// Each operation below submits a run closure to the actor and
// type-asserts the expected response payload (spec.md §4.4 point 3).
// A timeout or device error surfaces as a typed Go error rather than a
// generic session_error sentinel; callers needing the spec.md
// "timeout" / "session_error" distinction can use errors.Is against
// ErrTimeout and errors.As against *SessionError.

func asSessionError(fr *wire.Frame) error {
	return &SessionError{Code: fr.Payload.(*wire.ErrorPayload).Code}
}

// SendDirectMessage sends a direct (contact) message and returns the
// device's "sent" acknowledgement (ack_code, suggested_timeout, ...).
// The delivery engine calls this, never the UI directly, so that ack
// tracking and retries stay centralized.
func (s *Session) SendDirectMessage(ctx context.Context, ackCode uint32, recipientPrefix [6]byte, text string, flood bool) (*wire.SentPayload, error) {
	cmd := wire.EncodeSendDirectMessage(ackCode, recipientPrefix, text)
	if flood {
		cmd = wire.EncodeSendDirectMessageFlood(ackCode, recipientPrefix, text)
	}
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, cmd, wire.RespSent, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return nil, asSessionError(fr)
	}
	return fr.Payload.(*wire.SentPayload), nil
}

// SendChannelMessage sends a channel message. Channel sends produce no
// ack_code (spec.md §4.5): a single attempt, no retry tracking.
func (s *Session) SendChannelMessage(ctx context.Context, channelIndex uint8, txtType uint8, text string) error {
	cmd := wire.EncodeSendChannelMessage(channelIndex, txtType, text)
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, cmd, wire.RespOK, wire.RespError)
	})
	if err != nil {
		return err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return asSessionError(fr)
	}
	return nil
}

// GetContacts drains the full contact stream for one sync pass
// (spec.md §4.6 phase 1): RespContactsStart, N x RespContact,
// RespEndOfContacts, all as one atomic actor operation so no other
// caller's command can interleave mid-stream.
func (s *Session) GetContacts(ctx context.Context, since uint32) ([]*wire.ContactRecord, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		if _, err := s.sendAndAwait(ctx, wire.EncodeGetContacts(since), wire.RespContactsStart, wire.RespError); err != nil {
			return nil, err
		}
		var contacts []*wire.ContactRecord
		for {
			fr, err := s.awaitInline(ctx, wire.RespContact, wire.RespEndOfContacts, wire.RespError)
			if err != nil {
				return nil, err
			}
			switch fr.Code {
			case wire.RespEndOfContacts:
				return contacts, nil
			case wire.RespError:
				return nil, &SessionError{Code: fr.Payload.(*wire.ErrorPayload).Code}
			default:
				contacts = append(contacts, fr.Payload.(*wire.ContactRecord))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return v.([]*wire.ContactRecord), nil
}

func (s *Session) GetSelfInfo(ctx context.Context) (*wire.SelfInfo, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeGetSelfInfo(), wire.RespSelfInfo, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return nil, asSessionError(fr)
	}
	return fr.Payload.(*wire.SelfInfo), nil
}

func (s *Session) GetDeviceInfo(ctx context.Context) (*wire.DeviceInfo, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeGetDeviceInfo(), wire.RespDeviceInfo, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return nil, asSessionError(fr)
	}
	return fr.Payload.(*wire.DeviceInfo), nil
}

// GetNextMessage drains one queued message (spec.md §4.6 phase 3); the
// sync coordinator loops this until RespNoMoreMessages.
func (s *Session) GetNextMessage(ctx context.Context) (*wire.Frame, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeGetNextMessage(), wire.RespContactMsgRecv, wire.RespChannelMsgRecv, wire.RespNoMoreMessages, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	return v.(*wire.Frame), nil
}

func (s *Session) GetChannelInfo(ctx context.Context, slot uint8) (*wire.ChannelInfo, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeGetChannelInfo(slot), wire.RespChannelInfo, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return nil, asSessionError(fr)
	}
	return fr.Payload.(*wire.ChannelInfo), nil
}

func (s *Session) SetChannelInfo(ctx context.Context, c *wire.ChannelInfo) error {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeSetChannelInfo(c), wire.RespOK, wire.RespError)
	})
	if err != nil {
		return err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return asSessionError(fr)
	}
	return nil
}

func (s *Session) GetStatus(ctx context.Context) (*wire.Status, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeGetStatus(), wire.RespStatus, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return nil, asSessionError(fr)
	}
	return fr.Payload.(*wire.Status), nil
}

func (s *Session) GetTraceData(ctx context.Context) ([]wire.TraceHop, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeGetTraceData(), wire.RespTraceData, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return nil, asSessionError(fr)
	}
	return fr.Payload.([]wire.TraceHop), nil
}

func (s *Session) GetCustomVars(ctx context.Context) (map[string]string, error) {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeGetCustomVars(), wire.RespCustomVars, wire.RespError)
	})
	if err != nil {
		return nil, err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return nil, asSessionError(fr)
	}
	return fr.Payload.(map[string]string), nil
}

// ResetPath is issued exactly once by the delivery engine on the
// direct-to-flood transition (spec.md §4.5).
func (s *Session) ResetPath(ctx context.Context, recipientPrefix [6]byte) error {
	v, err := s.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return s.sendAndAwait(ctx, wire.EncodeResetPath(recipientPrefix), wire.RespOK, wire.RespError)
	})
	if err != nil {
		return err
	}
	fr := v.(*wire.Frame)
	if fr.Code == wire.RespError {
		return asSessionError(fr)
	}
	return nil
}
