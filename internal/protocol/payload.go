package protocol

import (
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Payload is the caller's statement of what a frame body holds. It can only
// be built through the constructors below, so every Payload has a byte form.
type Payload interface {
	// Bytes returns the wire encoding of the payload.
	Bytes() ([]byte, error)
	// Kind names the payload variant ("raw", "float", "u8", "bool", "record").
	Kind() string

	isPayload()
}

type rawPayload []byte

func (p rawPayload) Bytes() ([]byte, error) { return cloneBytes(p), nil }
func (p rawPayload) Kind() string           { return "raw" }
func (rawPayload) isPayload()               {}

type floatPayload float32

func (p floatPayload) Bytes() ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(p))), nil
}
func (p floatPayload) Kind() string { return "float" }
func (floatPayload) isPayload()     {}

type bytePayload uint8

func (p bytePayload) Bytes() ([]byte, error) { return []byte{byte(p)}, nil }
func (p bytePayload) Kind() string           { return "u8" }
func (bytePayload) isPayload()               {}

type boolPayload bool

func (p boolPayload) Bytes() ([]byte, error) {
	if p {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}
func (p boolPayload) Kind() string { return "bool" }
func (boolPayload) isPayload()     {}

type recordPayload struct {
	m encoding.BinaryMarshaler
}

func (p recordPayload) Bytes() ([]byte, error) {
	if p.m == nil {
		return nil, nil
	}
	return p.m.MarshalBinary()
}
func (p recordPayload) Kind() string { return "record" }
func (recordPayload) isPayload()     {}

// Raw wraps bytes that are already in wire form. nil means an empty payload.
func Raw(b []byte) Payload { return rawPayload(cloneBytes(b)) }

// Empty is the payload of frames that carry no body.
func Empty() Payload { return rawPayload(nil) }

// Float32 encodes v as a 4-byte little-endian IEEE-754 value.
func Float32(v float32) Payload { return floatPayload(v) }

// Uint8 encodes v as a single byte.
func Uint8(v uint8) Payload { return bytePayload(v) }

// Bool encodes v as 0x00 or 0x01.
func Bool(v bool) Payload { return boolPayload(v) }

// Record encodes a value that knows its own wire layout.
func Record(m encoding.BinaryMarshaler) Payload { return recordPayload{m: m} }

// Coerce converts a dynamically typed value into a Payload. It is the entry
// point for values that arrive untyped (JSON commands, scripted input).
//
// Rules, in order:
//   - nil: empty payload
//   - Payload: used as-is
//   - []byte: passed through
//   - encoding.BinaryMarshaler: its own serialization
//   - float32, float64: 4-byte little-endian float
//   - bool, uint8, and integers in 0..255: one byte
//
// Anything else is an UnsupportedPayloadType error.
func Coerce(v any) (Payload, error) {
	switch val := v.(type) {
	case nil:
		return Empty(), nil
	case Payload:
		return val, nil
	case []byte:
		return Raw(val), nil
	case encoding.BinaryMarshaler:
		return Record(val), nil
	case float32:
		return Float32(val), nil
	case float64:
		return Float32(float32(val)), nil
	case bool:
		return Bool(val), nil
	case uint8:
		return Uint8(val), nil
	case int:
		return byteFromInt(int64(val))
	case int64:
		return byteFromInt(val)
	case uint:
		return byteFromInt(int64(val))
	default:
		return nil, NewUnsupportedError(v)
	}
}

func byteFromInt(v int64) (Payload, error) {
	if v < 0 || v > math.MaxUint8 {
		return nil, NewOutOfRangeError(fmt.Sprintf("integer %d does not fit in one byte", v), nil)
	}
	return Uint8(uint8(v)), nil
}

// ParseValue builds a Payload from command-line text. kind is one of
// "empty", "hex" (alias "raw"), "float", "u8" or "bool".
func ParseValue(kind, text string) (Payload, error) {
	switch strings.ToLower(kind) {
	case "", "empty", "none":
		if strings.TrimSpace(text) != "" {
			return nil, fmt.Errorf("kind %q takes no value, got %q", kind, text)
		}
		return Empty(), nil
	case "hex", "raw":
		b, err := ParseHex(text)
		if err != nil {
			return nil, err
		}
		return Raw(b), nil
	case "float", "f32":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", text, err)
		}
		return Float32(float32(f)), nil
	case "u8", "int", "byte":
		n, err := strconv.ParseUint(strings.TrimSpace(text), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid u8 %q: %w", text, err)
		}
		return Uint8(uint8(n)), nil
	case "bool":
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q: %w", text, err)
		}
		return Bool(b), nil
	default:
		return nil, &FrameError{
			Type:    ErrTypeUnsupportedPayloadType,
			Message: fmt.Sprintf("unknown payload kind %q", kind),
		}
	}
}

// ParseHex decodes hex text, ignoring spaces, colons and an optional 0x prefix.
func ParseHex(text string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "", "\n", "").Replace(text)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", text, err)
	}
	return b, nil
}

// FormatHex renders bytes as upper-case hex pairs separated by spaces.
func FormatHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}
