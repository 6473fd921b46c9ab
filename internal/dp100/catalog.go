package dp100

import (
	"fmt"

	"github.com/muurk/psulink/internal/protocol"
)

// USB identifiers of the DP100 HID interface.
const (
	VendorID  = 0x2E3C
	ProductID = 0xAF01
)

// ReportSize is the HID report length; every message is padded to it.
const ReportSize = 64

// Dir is the first byte of every frame.
type Dir byte

const (
	DirHostToDevice Dir = 0xFB
	DirDeviceToHost Dir = 0xFA
)

func (d Dir) String() string {
	switch d {
	case DirHostToDevice:
		return "TX"
	case DirDeviceToHost:
		return "RX"
	default:
		return fmt.Sprintf("Dir(0x%02X)", byte(d))
	}
}

// Operation is the tag byte of a DP100 frame.
type Operation byte

const (
	OpDeviceInfo   Operation = 0x10
	OpFirmwareInfo Operation = 0x11
	OpStartTrans   Operation = 0x12
	OpDataTrans    Operation = 0x13
	OpEndTrans     Operation = 0x14
	OpDevUpgrade   Operation = 0x15
	OpBasicInfo    Operation = 0x30
	OpBasicSet     Operation = 0x35
	OpSystemInfo   Operation = 0x40
	OpSystemSet    Operation = 0x45
	OpScanOut      Operation = 0x50
	OpSerialOut    Operation = 0x55
	OpDisconnect   Operation = 0x80
)

// Operations is the DP100 operation catalog. Firmware transfer and the
// scan/serial operations carry no documented payload and stay opaque.
var Operations = protocol.NewCatalog("dp100 operation",
	protocol.Composite(byte(OpDeviceInfo), "DEVICE_INFO", DecodeDeviceInfo),
	protocol.Composite(byte(OpFirmwareInfo), "FIRMWARE_INFO", DecodeDeviceInfo),
	protocol.Opaque(byte(OpStartTrans), "START_TRANS"),
	protocol.Opaque(byte(OpDataTrans), "DATA_TRANS"),
	protocol.Opaque(byte(OpEndTrans), "END_TRANS"),
	protocol.Opaque(byte(OpDevUpgrade), "DEV_UPGRADE"),
	protocol.Composite(byte(OpBasicInfo), "BASIC_INFO", DecodeBasicInfo),
	protocol.Composite(byte(OpBasicSet), "BASIC_SET", decodeBasicSetReply),
	protocol.Composite(byte(OpSystemInfo), "SYSTEM_INFO", decodeSystemInfoReply),
	protocol.Opaque(byte(OpSystemSet), "SYSTEM_SET"),
	protocol.Opaque(byte(OpScanOut), "SCAN_OUT"),
	protocol.Opaque(byte(OpSerialOut), "SERIAL_OUT"),
	protocol.Opaque(byte(OpDisconnect), "DISCONNECT"),
)

func (op Operation) String() string {
	return Operations.TagName(byte(op))
}

// LookupOperation resolves an operation by name ("BASIC_INFO",
// "basic-info") or hex tag ("0x30").
func LookupOperation(name string) (Operation, error) {
	if e, ok := Operations.ByName(name); ok {
		return Operation(e.Tag), nil
	}
	var tag byte
	if _, err := fmt.Sscanf(name, "0x%02x", &tag); err == nil {
		if _, ok := Operations.Lookup(tag); ok {
			return Operation(tag), nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", name)
}

// SYSTEM_INFO and BASIC_SET answer a write with a one-byte status and a
// read with the full record.

func decodeSystemInfoReply(payload []byte) (protocol.Value, error) {
	if len(payload) == 1 {
		return DecodeAck(payload)
	}
	return DecodeSystemInfo(payload)
}

func decodeBasicSetReply(payload []byte) (protocol.Value, error) {
	if len(payload) == 1 {
		return DecodeAck(payload)
	}
	return DecodeBasicSet(payload)
}
