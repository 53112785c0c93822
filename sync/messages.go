package sync

import (
	"context"
	"errors"
	"strconv"

	"github.com/meshcore-dev/meshclient/delivery"
	"github.com/meshcore-dev/meshclient/event"
	"github.com/meshcore-dev/meshclient/store"
	"github.com/meshcore-dev/meshclient/wire"
)

// EventMessageReceived mirrors session.EventMessageReceived (spec.md
// §4.6 phase 3: "routing each to direct or channel conversation and
// writing to the store"). Declared locally rather than importing
// session to keep the dependency direction one-way.
const EventMessageReceived = "message_received"

var (
	errUnexpectedMessagePayload = errors.New("sync: get_next_message returned an unexpected payload type")
	errUnknownSenderPrefix      = errors.New("sync: contact message sender prefix matches no known contact")
)

// syncMessages implements spec.md §4.6 phase 3: drain the device
// queue via get_next_message until no_more_messages, persisting each
// message before its event is emitted (literal §8 scenario 6).
func (c *Coordinator) syncMessages(ctx context.Context, device *store.Device) (*PhaseResult, error) {
	result := &PhaseResult{Phase: PhaseMessages}

	for {
		fr, err := c.session.GetNextMessage(ctx)
		if err != nil {
			return result, phaseError(PhaseMessages, err)
		}
		if fr.Code == wire.RespNoMoreMessages {
			return result, nil
		}

		msg, err := c.storeReceivedMessage(ctx, device, fr)
		if err != nil {
			result.recordErr(err)
			continue
		}
		result.recordOK()
		c.disp.Dispatch(event.Event{Type: EventMessageReceived, Payload: msg})
	}
}

func (c *Coordinator) storeReceivedMessage(ctx context.Context, device *store.Device, fr *wire.Frame) (*store.Message, error) {
	switch p := fr.Payload.(type) {
	case *wire.ContactMessage:
		return c.storeContactMessage(ctx, device, p)
	case *wire.ChannelMessage:
		return c.storeChannelMessage(ctx, device, p)
	default:
		return nil, phaseError(PhaseMessages, errUnexpectedMessagePayload)
	}
}

func (c *Coordinator) storeContactMessage(ctx context.Context, device *store.Device, p *wire.ContactMessage) (*store.Message, error) {
	contactID, err := c.contactIDByPrefix(ctx, device.ID, p.SenderPrefix)
	if err != nil {
		return nil, err
	}
	msg := &store.Message{
		DeviceID:        device.ID,
		ContactID:       &contactID,
		Text:            p.Text,
		TextType:        store.TextType(p.TextType),
		Direction:       store.DirectionIncoming,
		Status:          store.StatusDelivered,
		Timestamp:       p.Timestamp,
		PathLength:      p.PathLength,
		SNR:             p.SNR,
		SenderKeyPrefix: p.SenderPrefix,
	}
	sender := contactID
	if dup, err := c.dedupOrStore(ctx, device.ID, &contactID, nil, sender, msg); err != nil {
		return nil, err
	} else if dup != nil {
		return dup, nil
	}
	return msg, nil
}

func (c *Coordinator) storeChannelMessage(ctx context.Context, device *store.Device, p *wire.ChannelMessage) (*store.Message, error) {
	channelIndex := p.ChannelIndex
	senderName, body := wire.SplitChannelSender(p.Text)
	msg := &store.Message{
		DeviceID:       device.ID,
		ChannelIndex:   &channelIndex,
		Text:           body,
		TextType:       store.TextType(p.TextType),
		Direction:      store.DirectionIncoming,
		Status:         store.StatusDelivered,
		Timestamp:      p.Timestamp,
		PathLength:     p.PathLength,
		SNR:            p.SNR,
		SenderNodeName: senderName,
	}
	sender := "channel:" + strconv.Itoa(int(channelIndex)) + ":" + senderName
	if dup, err := c.dedupOrStore(ctx, device.ID, nil, &channelIndex, sender, msg); err != nil {
		return nil, err
	} else if dup != nil {
		return dup, nil
	}
	return msg, nil
}

// dedupOrStore implements SPEC_FULL.md §3's supplemented dedup feature:
// a bloom-filter hint (fast, may false-positive, never false-negative)
// gates an exact lookup against the existing conversation; a confirmed
// repeat bumps HeardRepeats on the existing row instead of inserting a
// new one, a miss marks the filter and inserts normally. Returns the
// existing row (non-nil) iff msg was a confirmed duplicate.
func (c *Coordinator) dedupOrStore(ctx context.Context, deviceID string, contactID *string, channelIndex *uint8, sender string, msg *store.Message) (*store.Message, error) {
	key := delivery.Key(sender, msg.Timestamp, msg.Text)
	if c.dedup.Probably(key) {
		existing, err := c.store.ListMessages(ctx, deviceID, contactID, channelIndex)
		if err != nil {
			return nil, err
		}
		for _, e := range existing {
			if e.Timestamp == msg.Timestamp && e.Text == msg.Text && e.Direction == store.DirectionIncoming {
				e.HeardRepeats++
				if _, err := c.store.SaveMessage(ctx, e); err != nil {
					return nil, err
				}
				if c.deliveryMetrics != nil {
					c.deliveryMetrics.HeardRepeats.Inc()
				}
				return e, nil
			}
		}
	}
	c.dedup.Mark(key)
	if _, err := c.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	return nil, nil
}

// contactIDByPrefix resolves a 6-byte sender prefix (the only
// identifier a contact-message push carries) against the device's
// known contacts. Ambiguous prefixes resolve to the first match; the
// device itself is expected to have disambiguated at the path layer.
func (c *Coordinator) contactIDByPrefix(ctx context.Context, deviceID string, prefix [6]byte) (string, error) {
	contacts, err := c.store.ListContacts(ctx, deviceID)
	if err != nil {
		return "", err
	}
	for _, ct := range contacts {
		if [6]byte(ct.PublicKey[:6]) == prefix {
			return ct.ID, nil
		}
	}
	return "", errUnknownSenderPrefix
}
