package wire

import "encoding/binary"

// DeviceInfoSize is the bit-exact v3+ device info layout (spec.md §6):
// fw_ver:1 | max_contacts_half:1 | max_channels:1 | ble_pin:u32 |
// build_date:12 | manufacturer:40 | version:20.
const DeviceInfoSize = 1 + 1 + 1 + 4 + 12 + 40 + 20 // 79

// DeviceInfo is the device's static capability/identity report.
// MaxContacts is already doubled from the wire's halved encoding
// (spec.md §9's resolved open question: "wire value × 2 is the
// device-reported capacity").
type DeviceInfo struct {
	FirmwareVersion uint8
	MaxContacts     uint16
	MaxChannels     uint8
	BLEPin          uint32
	BuildDate       string
	Manufacturer    string
	VersionString   string
}

func DecodeDeviceInfo(b []byte) (*DeviceInfo, error) {
	if len(b) < DeviceInfoSize {
		return nil, newParseError(RespDeviceInfo, "device_info too short: got %d want >= %d bytes", len(b), DeviceInfoSize)
	}
	var d DeviceInfo
	d.FirmwareVersion = b[0]
	d.MaxContacts = uint16(b[1]) * 2
	d.MaxChannels = b[2]
	d.BLEPin = binary.LittleEndian.Uint32(b[3:7])
	d.BuildDate = decodeFieldText(b[7:19])
	d.Manufacturer = decodeFieldText(b[19:59])
	d.VersionString = decodeFieldText(b[59:79])
	return &d, nil
}

func (d *DeviceInfo) Encode() []byte {
	b := make([]byte, DeviceInfoSize)
	b[0] = d.FirmwareVersion
	b[1] = byte(d.MaxContacts / 2)
	b[2] = d.MaxChannels
	binary.LittleEndian.PutUint32(b[3:7], d.BLEPin)
	copy(b[7:19], []byte(d.BuildDate))
	copy(b[19:59], []byte(d.Manufacturer))
	copy(b[59:79], []byte(d.VersionString))
	return b
}
