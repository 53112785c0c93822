package wire

import "encoding/binary"

// ContactRecordSize is the bit-exact, fixed wire size of a contact
// record (spec.md §4.2 / §8 property 3).
const ContactRecordSize = 147

// ContactRecord is the wire shape of a single contact. OutPathLength
// of -1 means flood-only; OutPath holds max(OutPathLength, 0) bytes of
// meaningful data, the rest of the 64-byte field is padding.
type ContactRecord struct {
	PublicKey        [32]byte
	NodeType         uint8
	Flags            uint8
	OutPathLength    int8
	OutPath          []byte // len == max(OutPathLength, 0)
	Name             string
	LastAdvertUnix   uint32
	LatMicroDeg      int32
	LonMicroDeg      int32
	LastModifiedUnix uint32
}

// DecodeContactRecord parses a 147-byte contact record. A short buffer
// is a parse_failure per spec.md §8 scenario 3 ("reason contains
// 147").
func DecodeContactRecord(b []byte) (*ContactRecord, error) {
	if len(b) < ContactRecordSize {
		return nil, newParseError(RespContact, "contact record too short: got %d want %d bytes", len(b), ContactRecordSize)
	}
	var c ContactRecord
	copy(c.PublicKey[:], b[0:32])
	c.NodeType = b[32]
	c.Flags = b[33]
	c.OutPathLength = int8(b[34])
	rawPath := b[35:99]
	n := int(c.OutPathLength)
	if n < 0 {
		n = 0
	}
	if n > 64 {
		n = 64
	}
	c.OutPath = append([]byte(nil), rawPath[:n]...)
	c.Name = decodeFieldText(b[99:131])
	c.LastAdvertUnix = binary.LittleEndian.Uint32(b[131:135])
	c.LatMicroDeg = int32(binary.LittleEndian.Uint32(b[135:139]))
	c.LonMicroDeg = int32(binary.LittleEndian.Uint32(b[139:143]))
	c.LastModifiedUnix = binary.LittleEndian.Uint32(b[143:147])
	return &c, nil
}

// Encode serializes c back into a 147-byte contact record. Bytes of
// OutPath beyond len(OutPath) are zero-padded.
func (c *ContactRecord) Encode() []byte {
	b := make([]byte, ContactRecordSize)
	copy(b[0:32], c.PublicKey[:])
	b[32] = c.NodeType
	b[33] = c.Flags
	b[34] = byte(c.OutPathLength)
	copy(b[35:99], c.OutPath)
	nameBytes := []byte(c.Name)
	if len(nameBytes) > 32 {
		nameBytes = nameBytes[:32]
	}
	copy(b[99:131], nameBytes)
	binary.LittleEndian.PutUint32(b[131:135], c.LastAdvertUnix)
	binary.LittleEndian.PutUint32(b[135:139], uint32(c.LatMicroDeg))
	binary.LittleEndian.PutUint32(b[139:143], uint32(c.LonMicroDeg))
	binary.LittleEndian.PutUint32(b[143:147], c.LastModifiedUnix)
	return b
}
