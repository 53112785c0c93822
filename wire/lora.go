package wire

// RouteType is the low 2 bits of a LoRa RX-log header byte. The
// "transport" variants additionally carry a 4-byte transport code
// immediately after the header (spec.md §4.2's "route type carries a
// transport code" clause; the source protocol does not name which
// values these are, so this module's concrete choice -- transport_flood
// and transport_direct carry a code, plain flood/direct do not -- is
// recorded as an Open Question resolution in SPEC_FULL.md §5).
type RouteType uint8

const (
	RouteFlood           RouteType = 0
	RouteDirect          RouteType = 1
	RouteTransportFlood  RouteType = 2
	RouteTransportDirect RouteType = 3
)

func (r RouteType) carriesTransportCode() bool {
	return r == RouteTransportFlood || r == RouteTransportDirect
}

// PayloadType is the 4-bit payload type field. PayloadTypeText is the
// only value this module's dest/src pubkey-prefix extraction cares
// about.
type PayloadType uint8

const PayloadTypeText PayloadType = 2

// RXLogHeader decomposes the LoRa RX-log header byte:
// route_type:2 | payload_type:4 | payload_version:2.
type RXLogHeader struct {
	RouteType      RouteType
	PayloadType    PayloadType
	PayloadVersion uint8
}

func decodeRXLogHeader(b byte) RXLogHeader {
	return RXLogHeader{
		RouteType:      RouteType(b & 0x03),
		PayloadType:    PayloadType((b >> 2) & 0x0F),
		PayloadVersion: (b >> 6) & 0x03,
	}
}

// RXLogPacket is a parsed LoRa receive-log entry (spec.md §4.2).
// DestPrefix/SrcPrefix are only populated for direct text messages
// (RouteDirect or RouteTransportDirect with PayloadTypeText).
type RXLogPacket struct {
	Header        RXLogHeader
	TransportCode uint32
	PathNodes     []byte
	Payload       []byte
	DestPrefix    byte
	SrcPrefix     byte
	HasPrefixes   bool
}

// DecodeRXLogPacket parses one RX-log entry.
func DecodeRXLogPacket(b []byte) (*RXLogPacket, error) {
	if len(b) < 1 {
		return nil, newParseError(0, "rx_log packet empty")
	}
	var p RXLogPacket
	p.Header = decodeRXLogHeader(b[0])
	off := 1

	if p.Header.RouteType.carriesTransportCode() {
		if len(b) < off+4 {
			return nil, newParseError(0, "rx_log packet truncated before transport code")
		}
		p.TransportCode = uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
		off += 4
	}

	if len(b) < off+1 {
		return nil, newParseError(0, "rx_log packet truncated before path_length")
	}
	pathLength := int(b[off])
	off++

	if len(b) < off+pathLength {
		return nil, newParseError(0, "rx_log packet truncated path_nodes: want %d bytes", pathLength)
	}
	p.PathNodes = append([]byte(nil), b[off:off+pathLength]...)
	off += pathLength

	p.Payload = append([]byte(nil), b[off:]...)

	isDirect := p.Header.RouteType == RouteDirect || p.Header.RouteType == RouteTransportDirect
	if isDirect && p.Header.PayloadType == PayloadTypeText && len(p.Payload) >= 2 {
		p.DestPrefix = p.Payload[0]
		p.SrcPrefix = p.Payload[1]
		p.HasPrefixes = true
	}

	return &p, nil
}
