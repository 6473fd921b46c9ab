package protocol

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// Value is a decoded payload. Every value can be written back to its wire
// form, so a decoded value can be passed to Record unchanged.
type Value interface {
	fmt.Stringer
	encoding.BinaryMarshaler
}

// DecodeFunc turns a payload into a Value. Decoders never read out of
// bounds: a payload of the wrong size is a MalformedPayload error.
type DecodeFunc func(payload []byte) (Value, error)

// Uint8Value is a single unsigned byte
type Uint8Value uint8

func (v Uint8Value) String() string                { return strconv.Itoa(int(v)) }
func (v Uint8Value) MarshalBinary() ([]byte, error) { return []byte{byte(v)}, nil }

// BoolValue is a strict 0x00/0x01 flag
type BoolValue bool

func (v BoolValue) String() string { return strconv.FormatBool(bool(v)) }
func (v BoolValue) MarshalBinary() ([]byte, error) {
	return boolPayload(v).Bytes()
}

// Float32Value is a little-endian IEEE-754 single
type Float32Value float32

func (v Float32Value) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
func (v Float32Value) MarshalBinary() ([]byte, error) {
	return floatPayload(v).Bytes()
}

// TextValue is a UTF-8 string carried verbatim, embedded NULs included
type TextValue string

func (v TextValue) String() string                { return string(v) }
func (v TextValue) MarshalBinary() ([]byte, error) { return []byte(v), nil }

// CheckLength returns a MalformedPayload error unless len(payload) == want.
func CheckLength(what string, payload []byte, want int) error {
	if len(payload) != want {
		return NewMalformedError(what, len(payload), want)
	}
	return nil
}

// DecodeUint8 decodes a one-byte unsigned integer.
func DecodeUint8(payload []byte) (Value, error) {
	if err := CheckLength("u8", payload, 1); err != nil {
		return nil, err
	}
	return Uint8Value(payload[0]), nil
}

// DecodeBool decodes a one-byte flag. Only 0x00 and 0x01 are accepted.
func DecodeBool(payload []byte) (Value, error) {
	if err := CheckLength("bool", payload, 1); err != nil {
		return nil, err
	}
	b, err := BoolAt(payload, 0)
	if err != nil {
		return nil, err
	}
	return BoolValue(b), nil
}

// DecodeFloat32 decodes a 4-byte little-endian float.
func DecodeFloat32(payload []byte) (Value, error) {
	if err := CheckLength("float32", payload, 4); err != nil {
		return nil, err
	}
	return Float32Value(Float32At(payload, 0)), nil
}

// DecodeText decodes a UTF-8 string without trimming.
func DecodeText(payload []byte) (Value, error) {
	if !utf8.Valid(payload) {
		return nil, &FrameError{
			Type:    ErrTypeMalformedPayload,
			Message: fmt.Sprintf("text payload is not valid UTF-8 (%d bytes)", len(payload)),
		}
	}
	return TextValue(payload), nil
}

// BoolAt reads a strict flag at offset off. The caller has checked the length.
func BoolAt(b []byte, off int) (bool, error) {
	switch b[off] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, NewInvalidValueError(fmt.Sprintf("bool at offset %d", off), int(b[off]))
	}
}

// Float32At reads a little-endian float at offset off.
func Float32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

// AppendFloat32 appends v in little-endian order.
func AppendFloat32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

// AppendBool appends 0x01 for true and 0x00 for false.
func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}
