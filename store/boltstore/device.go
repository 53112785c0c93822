package boltstore

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/meshcore-dev/meshclient/store"
)

func (s *Store) FetchDevice(ctx context.Context, id string) (*store.Device, error) {
	var d store.Device
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketDevices).Get([]byte(id))
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &d)
	})
	if err != nil {
		return nil, wrapErr("FetchDevice", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (s *Store) FetchActiveDevice(ctx context.Context) (*store.Device, error) {
	var found *store.Device
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		return b.ForEach(func(k, v []byte) error {
			var d store.Device
			if err := cbor.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.IsActive {
				found = &d
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapErr("FetchActiveDevice", err)
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

// SaveDevice upserts d. At most one Device may have IsActive set; if d
// is active, every other device is demoted within the same transaction
// (spec.md §3: "At most one device is is_active = true at any time").
func (s *Store) SaveDevice(ctx context.Context, d *store.Device) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if d.IsActive {
			if err := demoteOtherDevices(b, d.ID); err != nil {
				return err
			}
		}
		return b.Put([]byte(d.ID), encode(d))
	})
	return wrapErr("SaveDevice", err)
}

func demoteOtherDevices(b *bbolt.Bucket, exceptID string) error {
	type idRaw struct {
		id  string
		dev store.Device
	}
	var toDemote []idRaw
	err := b.ForEach(func(k, v []byte) error {
		if string(k) == exceptID {
			return nil
		}
		var d store.Device
		if err := cbor.Unmarshal(v, &d); err != nil {
			return err
		}
		if d.IsActive {
			d.IsActive = false
			toDemote = append(toDemote, idRaw{id: string(k), dev: d})
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range toDemote {
		if err := b.Put([]byte(e.id), encode(&e.dev)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDevices).Delete([]byte(id))
	})
	return wrapErr("DeleteDevice", err)
}
