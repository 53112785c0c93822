package boltstore

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/meshcore-dev/meshclient/store"
)

func (s *Store) FetchMessage(ctx context.Context, id string) (*store.Message, error) {
	var m store.Message
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMessages).Get([]byte(id))
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &m)
	})
	if err != nil {
		return nil, wrapErr("FetchMessage", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

// SaveMessage upserts m, validating the exactly-one-of
// contact_id/channel_index invariant (spec.md §3) and maintaining the
// ack_code secondary index for outgoing messages awaiting delivery
// confirmation.
func (s *Store) SaveMessage(ctx context.Context, m *store.Message) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = newID()
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if m.Direction == store.DirectionOutgoing && m.AckCode != 0 {
			if err := tx.Bucket(bucketMessagesByAck).Put(ackKeyIndex(m.DeviceID, m.AckCode), []byte(m.ID)); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMessages).Put([]byte(m.ID), encode(m))
	})
	if err != nil {
		return "", wrapErr("SaveMessage", err)
	}
	return m.ID, nil
}

// FetchNextPendingMessageByAck resolves an incoming ACK frame (spec.md
// §4.5) to the outgoing message it confirms, via the ack_code
// secondary index. Terminal messages (Delivered/Failed) are not
// returned: a late or duplicate ACK for an already-resolved message is
// the caller's no-op, not an error.
func (s *Store) FetchNextPendingMessageByAck(ctx context.Context, deviceID string, ack uint32) (*store.Message, error) {
	var m store.Message
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketMessagesByAck).Get(ackKeyIndex(deviceID, ack))
		if id == nil {
			return nil
		}
		raw := tx.Bucket(bucketMessages).Get(id)
		if raw == nil {
			return nil
		}
		var candidate store.Message
		if err := cbor.Unmarshal(raw, &candidate); err != nil {
			return err
		}
		if candidate.Status == store.StatusDelivered || candidate.Status == store.StatusFailed {
			return nil
		}
		m = candidate
		found = true
		return nil
	})
	if err != nil {
		return nil, wrapErr("FetchNextPendingMessageByAck", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

// UpdateMessageStatus overwrites the stored status with status. It
// does not check the transition against the lifecycle order: a
// backward transition is stored like any other. ack is recorded, and
// indexed for outgoing messages, whenever it is non-nil.
func (s *Store) UpdateMessageStatus(ctx context.Context, id string, status store.MessageStatus, ack *uint32) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		raw := b.Get([]byte(id))
		if raw == nil {
			return store.ErrNotFound
		}
		var m store.Message
		if err := cbor.Unmarshal(raw, &m); err != nil {
			return err
		}
		m.Status = status
		if ack != nil {
			m.AckCode = *ack
			if m.Direction == store.DirectionOutgoing {
				if err := tx.Bucket(bucketMessagesByAck).Put(ackKeyIndex(m.DeviceID, *ack), []byte(m.ID)); err != nil {
					return err
				}
			}
		}
		return b.Put([]byte(id), encode(&m))
	})
	return wrapErr("UpdateMessageStatus", err)
}

func (s *Store) ListMessages(ctx context.Context, deviceID string, contactID *string, channelIndex *uint8) ([]*store.Message, error) {
	var out []*store.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMessages).ForEach(func(k, v []byte) error {
			var m store.Message
			if err := cbor.Unmarshal(v, &m); err != nil {
				return err
			}
			if m.DeviceID != deviceID {
				return nil
			}
			if contactID != nil {
				if m.ContactID == nil || *m.ContactID != *contactID {
					return nil
				}
			}
			if channelIndex != nil {
				if m.ChannelIndex == nil || *m.ChannelIndex != *channelIndex {
					return nil
				}
			}
			out = append(out, &m)
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr("ListMessages", err)
	}
	return out, nil
}
