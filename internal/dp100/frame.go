package dp100

import (
	"encoding/binary"
	"fmt"

	"github.com/muurk/psulink/internal/protocol"
)

const (
	// HeaderSize is dir + op + seq + length
	HeaderSize = 4
	// CRCSize is the trailing little-endian CRC-16
	CRCSize = 2
	// Overhead is header plus CRC
	Overhead = HeaderSize + CRCSize
)

// Frame is one DP100 message:
//
//	[dir][op][seq][len][payload...][crc lo][crc hi]
//
// The CRC-16/Modbus covers every byte before it.
type Frame struct {
	Dir     Dir
	Op      Operation
	Seq     byte
	Payload []byte
	CRC     uint16
}

func (f *Frame) header() []byte {
	b := make([]byte, 0, Overhead+len(f.Payload))
	b = append(b, byte(f.Dir), byte(f.Op), f.Seq, byte(len(f.Payload)))
	return append(b, f.Payload...)
}

// Bytes returns the wire encoding with the stored CRC, unpadded.
func (f *Frame) Bytes() []byte {
	return protocol.AppendCRC16(f.header(), f.CRC)
}

// ComputeCRC recomputes the CRC over header and payload.
func (f *Frame) ComputeCRC() uint16 {
	return protocol.CRC16Modbus(f.header())
}

// Verify reports whether the stored CRC matches.
func (f *Frame) Verify() bool {
	return f.CRC == f.ComputeCRC()
}

// Decode interprets the payload; see the package-level Decode.
func (f *Frame) Decode() (protocol.Value, error) {
	return Decode(f)
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s %s seq=%d len=%d payload=[%s] crc=0x%04X",
		f.Dir, f.Op, f.Seq, len(f.Payload), protocol.FormatHex(f.Payload), f.CRC)
}

// Build encodes a frame without report padding. Hosts normally send
// seq 0.
func Build(dir Dir, op Operation, seq byte, payload protocol.Payload) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = payload.Bytes()
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", op, err)
		}
	}
	if len(body) > protocol.MaxPayloadSize {
		return nil, protocol.NewTooLargeError(len(body))
	}
	f := &Frame{Dir: dir, Op: op, Seq: seq, Payload: body}
	f.CRC = f.ComputeCRC()
	return f.Bytes(), nil
}

// Command builds a host-to-device frame with sequence 0.
//
// Example:
//
//	b, _ := dp100.Command(dp100.OpDeviceInfo, nil)
//	// b = FB 10 00 00 30 C5
func Command(op Operation, payload protocol.Payload) ([]byte, error) {
	return Build(DirHostToDevice, op, 0, payload)
}

// Parse decodes a device-to-host frame from the start of data. Trailing
// bytes (HID report padding) are ignored.
func Parse(data []byte) (*Frame, error) {
	return parse(data, DirDeviceToHost)
}

// ParseCommand decodes a host-to-device frame, for inspecting captures of
// what the host sent.
func ParseCommand(data []byte) (*Frame, error) {
	return parse(data, DirHostToDevice)
}

func parse(data []byte, want Dir) (*Frame, error) {
	if len(data) == 0 {
		return nil, protocol.NewTruncatedError("frame", 0, Overhead)
	}
	if Dir(data[0]) != want {
		return nil, protocol.NewWrongDirectionError(data[0], byte(want))
	}
	if len(data) < HeaderSize {
		return nil, protocol.NewTruncatedError("frame header", len(data), HeaderSize)
	}
	n := int(data[3])
	total := Overhead + n
	if len(data) < total {
		return nil, protocol.NewTruncatedError("frame", len(data), total)
	}

	payload := make([]byte, n)
	copy(payload, data[HeaderSize:HeaderSize+n])
	f := &Frame{
		Dir:     want,
		Op:      Operation(data[1]),
		Seq:     data[2],
		Payload: payload,
		CRC:     binary.LittleEndian.Uint16(data[HeaderSize+n:]),
	}
	if crc := f.ComputeCRC(); f.CRC != crc {
		return nil, protocol.NewChecksumError(byte(f.Op), f.CRC, crc)
	}
	return f, nil
}

// ReadFrame reads one report from r and parses it. An empty read (the
// device did not answer in time) is a Truncated error.
func ReadFrame(r protocol.Reader) (*Frame, error) {
	report, err := r.ReadN(ReportSize)
	if err != nil {
		return nil, err
	}
	return Parse(report)
}

// Decode resolves the operation and decodes the payload of a device frame.
// Host frames and operations without a payload layout yield (nil, nil); an
// operation outside the catalog yields UnknownTag with the payload kept.
func Decode(f *Frame) (protocol.Value, error) {
	if f.Dir != DirDeviceToHost {
		return nil, nil
	}
	return Operations.Decode(byte(f.Op), f.Payload)
}
