// Package store defines the persistence contract the core relies on
// (spec.md §3, §6). It does not mandate a storage engine; see
// store/boltstore for the concrete implementation shipped with this
// module.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a fetch finds no matching row.
	ErrNotFound = errors.New("store: not found")

	// ErrConversationTarget is returned by Message.Validate when
	// ContactID and ChannelIndex are not exactly one non-nil.
	ErrConversationTarget = errors.New("store: message must set exactly one of contact_id or channel_index")

	// ErrOutPathLength is returned by Contact.Validate on an
	// out-of-range or mismatched out_path_length/out_path pair.
	ErrOutPathLength = errors.New("store: invalid out_path_length/out_path")

	// ErrDiscoveredArchived is returned by Contact.Validate when both
	// IsDiscovered and IsArchived are set.
	ErrDiscoveredArchived = errors.New("store: contact cannot be both discovered and archived")

	// ErrDuplicatePublicKey is returned by SaveContact when the
	// (device_id, public_key) uniqueness invariant would be violated.
	ErrDuplicatePublicKey = errors.New("store: public_key already exists for this device")
)

// Error wraps a lower-level persistence failure (spec.md §7 StoreError).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Store is the persistence contract. Every method is a single
// transaction; writes MUST be durable before the corresponding event
// is dispatched by the caller (spec.md §6).
type Store interface {
	// Device
	FetchDevice(ctx context.Context, id string) (*Device, error)
	FetchActiveDevice(ctx context.Context) (*Device, error)
	SaveDevice(ctx context.Context, d *Device) error
	DeleteDevice(ctx context.Context, id string) error

	// Contact
	FetchContact(ctx context.Context, deviceID string, publicKey [32]byte) (*Contact, error)
	FetchContactByID(ctx context.Context, id string) (*Contact, error)
	ListContacts(ctx context.Context, deviceID string) ([]*Contact, error)
	SaveContact(ctx context.Context, c *Contact) (string, error)
	DeleteContact(ctx context.Context, id string) error
	// MarkContactsArchived atomically archives every non-discovered
	// contact of deviceID whose public key is not in keep, and clears
	// IsArchived on every contact whose key IS in keep (spec.md §4.6).
	MarkContactsArchived(ctx context.Context, deviceID string, keep map[[32]byte]bool) error

	// Channel
	FetchChannel(ctx context.Context, deviceID string, slot uint8) (*Channel, error)
	ListChannels(ctx context.Context, deviceID string) ([]*Channel, error)
	SaveChannel(ctx context.Context, c *Channel) (string, error)

	// Message
	FetchMessage(ctx context.Context, id string) (*Message, error)
	SaveMessage(ctx context.Context, m *Message) (string, error)
	// FetchNextPendingMessageByAck finds the outgoing message whose
	// AckCode matches ack and whose Status is not yet terminal.
	FetchNextPendingMessageByAck(ctx context.Context, deviceID string, ack uint32) (*Message, error)
	// UpdateMessageStatus sets the message's status as given; the
	// boltstore implementation does not reject non-monotonic transitions.
	UpdateMessageStatus(ctx context.Context, id string, status MessageStatus, ack *uint32) error
	ListMessages(ctx context.Context, deviceID string, contactID *string, channelIndex *uint8) ([]*Message, error)

	Close() error
}
