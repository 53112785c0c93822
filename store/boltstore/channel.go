package boltstore

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/meshcore-dev/meshclient/store"
)

func channelKey(deviceID string, slot uint8) []byte {
	return []byte(fmt.Sprintf("%s/%d", deviceID, slot))
}

func (s *Store) FetchChannel(ctx context.Context, deviceID string, slot uint8) (*store.Channel, error) {
	var c store.Channel
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketChannels).Get(channelKey(deviceID, slot))
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &c)
	})
	if err != nil {
		return nil, wrapErr("FetchChannel", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListChannels(ctx context.Context, deviceID string) ([]*store.Channel, error) {
	var out []*store.Channel
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChannels).ForEach(func(k, v []byte) error {
			var c store.Channel
			if err := cbor.Unmarshal(v, &c); err != nil {
				return err
			}
			if c.DeviceID == deviceID {
				out = append(out, &c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr("ListChannels", err)
	}
	return out, nil
}

func (s *Store) SaveChannel(ctx context.Context, c *store.Channel) (string, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChannels).Put(channelKey(c.DeviceID, c.SlotIndex), encode(c))
	})
	if err != nil {
		return "", wrapErr("SaveChannel", err)
	}
	return c.ID, nil
}
