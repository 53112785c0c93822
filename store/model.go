package store

import "time"

// NodeKind mirrors the device's node_type byte. Values are preserved
// bit-exact: 0=chat, 1=repeater, 2=room, 3=sensor.
type NodeKind uint8

const (
	NodeKindChat NodeKind = iota
	NodeKindRepeater
	NodeKindRoom
	NodeKindSensor
)

// MessageDirection distinguishes locally-sent from device-received messages.
type MessageDirection uint8

const (
	DirectionOutgoing MessageDirection = iota
	DirectionIncoming
)

// MessageStatus is the lifecycle state of a Message. Status advances
// monotonically except Retrying, which returns to Sending. Delivered,
// Failed and Read are terminal.
type MessageStatus uint8

const (
	StatusPending MessageStatus = iota
	StatusSending
	StatusSent
	StatusDelivered
	StatusFailed
	StatusRetrying
	StatusRead
)

func (s MessageStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	case StatusRetrying:
		return "retrying"
	case StatusRead:
		return "read"
	default:
		return "unknown"
	}
}

// TextType distinguishes plain text from command invocations and
// cryptographically signed messages.
type TextType uint8

const (
	TextPlain TextType = iota
	TextCommand
	TextSigned
)

// Device is a node the client has paired with. At most one Device is
// IsActive per store.
type Device struct {
	ID              string
	PublicKey       [32]byte
	NodeName        string
	FirmwareVersion uint8
	FirmwareString  string
	BuildDate       string
	Manufacturer    string
	MaxContacts     int
	MaxChannels     int
	FrequencyKHz    uint32
	BandwidthHz     uint32
	SpreadingFactor uint8
	CodingRate      uint8
	TXPowerDBm      int8
	LatMicroDeg     int32
	LonMicroDeg     int32
	BLEPin          uint32
	ManualAdd       bool
	MultiAcks       bool
	TelemetryMode   uint8
	LastConnected   time.Time
	LastContactSync uint32
	IsActive        bool
}

// Contact is a peer known to a Device.
type Contact struct {
	ID                  string
	DeviceID            string
	PublicKey           [32]byte
	Name                string
	NodeType            NodeKind
	Flags               uint8
	OutPathLength       int8
	OutPath             []byte
	LastAdvertTimestamp uint32
	LatMicroDeg         int32
	LonMicroDeg         int32
	LastModified        uint32

	Nickname     string
	IsBlocked    bool
	IsFavorite   bool
	IsDiscovered bool
	IsArchived   bool
}

// Channel is a group-chat slot 0..7. Slot 0 is the public channel.
type Channel struct {
	ID              string
	DeviceID        string
	SlotIndex       uint8
	Name            string
	Secret          [16]byte
	IsEnabled       bool
	LastMessageDate uint32
	UnreadCount     int
}

// Message is a unit of text on a direct or channel conversation.
// Exactly one of ContactID / ChannelIndex is set, never both/neither.
type Message struct {
	ID               string
	DeviceID         string
	ContactID        *string
	ChannelIndex     *uint8
	Text             string
	Timestamp        uint32
	CreatedAt        time.Time
	Direction        MessageDirection
	Status           MessageStatus
	TextType         TextType
	AckCode          uint32
	PathLength       uint8
	SNR              float32
	SenderKeyPrefix  [6]byte
	SenderNodeName   string
	RetryAttempt     int
	MaxRetryAttempts int
	HeardRepeats     int
}

// IsDirect reports whether this message belongs to a direct conversation.
func (m *Message) IsDirect() bool { return m.ContactID != nil }

// IsChannel reports whether this message belongs to a channel conversation.
func (m *Message) IsChannel() bool { return m.ChannelIndex != nil }

// Validate enforces the "exactly one of ContactID/ChannelIndex" invariant
// from spec.md §3.
func (m *Message) Validate() error {
	if (m.ContactID == nil) == (m.ChannelIndex == nil) {
		return ErrConversationTarget
	}
	return nil
}

// Validate enforces the out_path_length/out_path invariants from spec.md §3.
func (c *Contact) Validate() error {
	if c.OutPathLength != -1 && (c.OutPathLength < 0 || c.OutPathLength > 64) {
		return ErrOutPathLength
	}
	want := c.OutPathLength
	if want < 0 {
		want = 0
	}
	if len(c.OutPath) != int(want) {
		return ErrOutPathLength
	}
	if c.IsDiscovered && c.IsArchived {
		return ErrDiscoveredArchived
	}
	return nil
}
