package boltstore

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/meshcore-dev/meshclient/store"
)

func (s *Store) FetchContact(ctx context.Context, deviceID string, publicKey [32]byte) (*store.Contact, error) {
	var c store.Contact
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketContactsByKey)
		id := idx.Get(contactKeyIndex(deviceID, publicKey))
		if id == nil {
			return nil
		}
		raw := tx.Bucket(bucketContacts).Get(id)
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &c)
	})
	if err != nil {
		return nil, wrapErr("FetchContact", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FetchContactByID(ctx context.Context, id string) (*store.Contact, error) {
	var c store.Contact
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketContacts).Get([]byte(id))
		if raw == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(raw, &c)
	})
	if err != nil {
		return nil, wrapErr("FetchContactByID", err)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListContacts(ctx context.Context, deviceID string) ([]*store.Contact, error) {
	var out []*store.Contact
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketContacts).ForEach(func(k, v []byte) error {
			var c store.Contact
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
		return nil, wrapErr("ListContacts", err)
	}
	return out, nil
}

// SaveContact upserts c, enforcing the (device_id, public_key)
// uniqueness invariant (spec.md §3) and validating the out_path /
// discovered-archived invariants before writing.
func (s *Store) SaveContact(ctx context.Context, c *store.Contact) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if c.ID == "" {
		c.ID = newID()
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketContactsByKey)
		key := contactKeyIndex(c.DeviceID, c.PublicKey)
		if existingID := idx.Get(key); existingID != nil && string(existingID) != c.ID {
			return store.ErrDuplicatePublicKey
		}
		if err := idx.Put(key, []byte(c.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketContacts).Put([]byte(c.ID), encode(c))
	})
	if err != nil {
		return "", wrapErr("SaveContact", err)
	}
	return c.ID, nil
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketContacts)
		raw := b.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var c store.Contact
		if err := cbor.Unmarshal(raw, &c); err != nil {
			return err
		}
		if err := tx.Bucket(bucketContactsByKey).Delete(contactKeyIndex(c.DeviceID, c.PublicKey)); err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
	return wrapErr("DeleteContact", err)
}

// MarkContactsArchived implements spec.md §4.6 phase 1's archival rule:
// any local non-discovered contact whose public key is not in keep is
// archived; contacts whose key IS in keep have IsArchived cleared.
func (s *Store) MarkContactsArchived(ctx context.Context, deviceID string, keep map[[32]byte]bool) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketContacts)
		type upd struct {
			id string
			c  store.Contact
		}
		var updates []upd
		err := b.ForEach(func(k, v []byte) error {
			var c store.Contact
			if err := cbor.Unmarshal(v, &c); err != nil {
				return err
			}
			if c.DeviceID != deviceID {
				return nil
			}
			inSet := keep[c.PublicKey]
			changed := false
			if inSet && c.IsArchived {
				c.IsArchived = false
				changed = true
			} else if !inSet && !c.IsDiscovered && !c.IsArchived {
				c.IsArchived = true
				changed = true
			}
			if changed {
				updates = append(updates, upd{id: string(k), c: c})
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, u := range updates {
			if err := b.Put([]byte(u.id), encode(&u.c)); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapErr("MarkContactsArchived", err)
}
