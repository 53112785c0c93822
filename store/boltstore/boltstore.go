// Package boltstore is the concrete store.Store implementation shipped
// with this module: a single embedded bbolt file holding one bucket
// per entity kind plus small secondary-index buckets. See DESIGN.md
// for why bbolt (not a client/server database) fits a single-session
// edge client.
package boltstore

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	"go.etcd.io/bbolt"

	"github.com/meshcore-dev/meshclient/store"
)

var (
	bucketDevices       = []byte("devices")
	bucketContacts      = []byte("contacts")
	bucketContactsByKey = []byte("contacts_by_key") // "<device_id>/<hex pubkey>" -> contact id
	bucketChannels      = []byte("channels")
	bucketMessages      = []byte("messages")
	bucketMessagesByAck = []byte("messages_by_ack") // "<device_id>/<ack>" -> message id
	allBuckets          = [][]byte{bucketDevices, bucketContacts, bucketContactsByKey, bucketChannels, bucketMessages, bucketMessagesByAck}
)

// Store is a bbolt-backed store.Store.
type Store struct {
	db  *bbolt.DB
	log *log.Logger
}

// Open opens (creating if absent) a bbolt file at path and ensures the
// schema buckets exist.
func Open(path string, mylog *log.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init schema: %w", err)
	}
	if mylog == nil {
		mylog = log.NewWithOptions(nil, log.Options{})
	}
	return &Store{db: db, log: mylog.WithPrefix("boltstore")}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func newID() string {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails if the system RNG is broken; there is
		// no sane degraded mode for a persistence layer at that point.
		panic(err)
	}
	return id.String()
}

func contactKeyIndex(deviceID string, pubkey [32]byte) []byte {
	return []byte(fmt.Sprintf("%s/%x", deviceID, pubkey))
}

func ackKeyIndex(deviceID string, ack uint32) []byte {
	return []byte(fmt.Sprintf("%s/%d", deviceID, ack))
}

func encode(v interface{}) []byte {
	b, err := cbor.Marshal(v)
	if err != nil {
		panic(err) // programmer error: a model type became non-cbor-encodable
	}
	return b
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.Error{Op: op, Err: err}
}
