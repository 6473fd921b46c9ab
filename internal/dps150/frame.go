package dps150

import (
	"fmt"

	"github.com/muurk/psulink/internal/protocol"
)

const (
	// HeaderSize is dir + action + field + length
	HeaderSize = 4
	// Overhead is the header plus the trailing checksum byte
	Overhead = HeaderSize + 1
	// MaxMarkerScan bounds how much noise is skipped looking for a frame
	MaxMarkerScan = 1024
)

// Frame is one DPS-150 serial frame:
//
//	[dir][action][field][len][payload...][checksum]
//
// The checksum covers field, len and payload; the dir and action bytes are
// not included.
type Frame struct {
	Dir      Dir
	Action   Action
	Field    Field
	Payload  []byte
	Checksum byte
}

// Bytes returns the wire encoding of the frame as stored, checksum included.
func (f *Frame) Bytes() []byte {
	b := make([]byte, 0, Overhead+len(f.Payload))
	b = append(b, byte(f.Dir), byte(f.Action), byte(f.Field), byte(len(f.Payload)))
	b = append(b, f.Payload...)
	return append(b, f.Checksum)
}

// ComputeChecksum recomputes the checksum over field, length and payload.
func (f *Frame) ComputeChecksum() byte {
	return protocol.Sum8(byte(f.Field), byte(len(f.Payload)), f.Payload)
}

// Verify reports whether the stored checksum matches the contents.
func (f *Frame) Verify() bool {
	return f.Checksum == f.ComputeChecksum()
}

// Decode interprets the payload; see the package-level Decode.
func (f *Frame) Decode() (protocol.Value, error) {
	return Decode(f)
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s %s %s len=%d payload=[%s] checksum=0x%02X",
		f.Dir, f.Action, f.Field, len(f.Payload), protocol.FormatHex(f.Payload), f.Checksum)
}

// Build encodes a frame. Payloads longer than 255 bytes are rejected with
// a PayloadTooLarge error.
//
// Parameters:
//   - dir: DirHostToDevice for commands; DirDeviceToHost only for simulation
//   - action: GET, SET, BAUD or LOCK
//   - field: the register tag (FieldNone for BAUD and LOCK)
//   - payload: nil or protocol.Empty() for no body
//
// Example:
//
//	b, err := dps150.Build(dps150.DirHostToDevice, dps150.ActionSet,
//	    dps150.FieldVSet, protocol.Float32(1.9))
//	// b = F1 B1 C1 04 33 33 F3 3F 5D
func Build(dir Dir, action Action, field Field, payload protocol.Payload) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = payload.Bytes()
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", field, err)
		}
	}
	if len(body) > protocol.MaxPayloadSize {
		return nil, protocol.NewTooLargeError(len(body))
	}

	f := &Frame{Dir: dir, Action: action, Field: field, Payload: body}
	f.Checksum = f.ComputeChecksum()
	return f.Bytes(), nil
}

// Command builds a host-to-device frame.
func Command(action Action, field Field, payload protocol.Payload) ([]byte, error) {
	return Build(DirHostToDevice, action, field, payload)
}

// Parse decodes one frame from the start of data. The first byte must be a
// direction marker. Bytes after the frame are ignored.
//
// A buffer holding only part of a frame yields a Truncated error; a frame
// whose checksum fails yields ChecksumMismatch and no frame.
func Parse(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, protocol.NewTruncatedError("frame", 0, Overhead)
	}
	dir := Dir(data[0])
	if dir != DirDeviceToHost && dir != DirHostToDevice {
		return nil, protocol.NewWrongDirectionError(data[0], byte(DirDeviceToHost))
	}
	if len(data) < HeaderSize {
		return nil, protocol.NewTruncatedError("frame header", len(data), HeaderSize)
	}
	total := Overhead + int(data[3])
	if len(data) < total {
		return nil, protocol.NewTruncatedError("frame", len(data), total)
	}
	return assemble(dir, data[1:HeaderSize], data[HeaderSize:total])
}

// ReadFrame reads the next device-to-host frame from r.
//
// Bytes before the 0xF0 marker are discarded (up to MaxMarkerScan). Then the
// action, field and length bytes are read, then length+1 bytes of payload and
// checksum. A short read at any stage returns a Truncated error, which means
// "no frame available" rather than a fault.
func ReadFrame(r protocol.Reader) (*Frame, error) {
	if _, err := protocol.ScanMarker(r, byte(DirDeviceToHost), MaxMarkerScan); err != nil {
		return nil, err
	}
	head, err := protocol.ReadExactly(r, "frame header", HeaderSize-1)
	if err != nil {
		return nil, err
	}
	tail, err := protocol.ReadExactly(r, "frame payload", int(head[2])+1)
	if err != nil {
		return nil, err
	}
	return assemble(DirDeviceToHost, head, tail)
}

// assemble verifies and builds a frame from the three header bytes after
// dir and the payload+checksum tail.
func assemble(dir Dir, head, tail []byte) (*Frame, error) {
	payload := make([]byte, len(tail)-1)
	copy(payload, tail)

	f := &Frame{
		Dir:      dir,
		Action:   Action(head[0]),
		Field:    Field(head[1]),
		Payload:  payload,
		Checksum: tail[len(tail)-1],
	}
	if want := f.ComputeChecksum(); f.Checksum != want {
		return nil, protocol.NewChecksumError(byte(f.Field), uint16(f.Checksum), uint16(want))
	}
	return f, nil
}

// ShouldDecode reports whether the payload of f carries a value: frames
// from the device always do, and SET commands echo the value being set.
func ShouldDecode(f *Frame) bool {
	return f.Dir == DirDeviceToHost || f.Action == ActionSet
}

// Decode resolves the frame's field and decodes its payload.
//
// It returns (nil, nil) when the decode policy skips the frame or the field
// carries no structured payload. An unknown field yields an UnknownTag error
// whose payload is still available via protocol.UnknownPayload.
func Decode(f *Frame) (protocol.Value, error) {
	if !ShouldDecode(f) {
		return nil, nil
	}
	return Fields.Decode(byte(f.Field), f.Payload)
}
