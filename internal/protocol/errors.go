package protocol

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a codec failure
type ErrorType int

const (
	// ErrTypeTruncated means not enough bytes arrived to hold a frame yet.
	// It is the only non-fault outcome: a polling loop stops on it.
	ErrTypeTruncated ErrorType = iota
	// ErrTypeWrongDirection means the direction byte is not the expected marker
	ErrTypeWrongDirection
	// ErrTypeChecksumMismatch means the trailing integrity value did not verify
	ErrTypeChecksumMismatch
	// ErrTypeUnknownTag means the tag is not in the catalog
	ErrTypeUnknownTag
	// ErrTypeMalformedPayload means the payload does not fit the decoder layout
	ErrTypeMalformedPayload
	// ErrTypeUnsupportedPayloadType means a value has no byte coercion rule
	ErrTypeUnsupportedPayloadType
	// ErrTypePayloadTooLarge means the payload exceeds the one-byte length field
	ErrTypePayloadTooLarge
	// ErrTypeOutOfRange means a scaled value does not fit its fixed-point field
	ErrTypeOutOfRange
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeTruncated:
		return "Truncated"
	case ErrTypeWrongDirection:
		return "Wrong Direction"
	case ErrTypeChecksumMismatch:
		return "Checksum Mismatch"
	case ErrTypeUnknownTag:
		return "Unknown Tag"
	case ErrTypeMalformedPayload:
		return "Malformed Payload"
	case ErrTypeUnsupportedPayloadType:
		return "Unsupported Payload Type"
	case ErrTypePayloadTooLarge:
		return "Payload Too Large"
	case ErrTypeOutOfRange:
		return "Out Of Range"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Sentinels for errors.Is checks. A *FrameError matches the sentinel of its Type.
var (
	ErrTruncated              = &FrameError{Type: ErrTypeTruncated, Message: "no complete frame available"}
	ErrWrongDirection         = &FrameError{Type: ErrTypeWrongDirection, Message: "unexpected direction byte"}
	ErrChecksumMismatch       = &FrameError{Type: ErrTypeChecksumMismatch, Message: "checksum mismatch"}
	ErrUnknownTag             = &FrameError{Type: ErrTypeUnknownTag, Message: "tag not in catalog"}
	ErrMalformedPayload       = &FrameError{Type: ErrTypeMalformedPayload, Message: "payload does not match layout"}
	ErrUnsupportedPayloadType = &FrameError{Type: ErrTypeUnsupportedPayloadType, Message: "no byte coercion for value"}
	ErrPayloadTooLarge        = &FrameError{Type: ErrTypePayloadTooLarge, Message: "payload exceeds 255 bytes"}
	ErrOutOfRange             = &FrameError{Type: ErrTypeOutOfRange, Message: "value out of range"}
)

// FrameError is returned by every encode and decode operation in the codec.
type FrameError struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Tag     byte      // Tag the frame carried (valid when HasTag is set)
	HasTag  bool      // Whether Tag was read off the wire
	Payload []byte    // Raw payload kept for UnknownTag so callers can still inspect it
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *FrameError) Error() string {
	msg := e.Message
	if e.HasTag {
		msg = fmt.Sprintf("%s (tag 0x%02X)", msg, e.Tag)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *FrameError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a FrameError of the same Type.
func (e *FrameError) Is(target error) bool {
	t, ok := target.(*FrameError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewTruncatedError reports a short read while collecting part of a frame.
func NewTruncatedError(stage string, got, want int) *FrameError {
	return &FrameError{
		Type:    ErrTypeTruncated,
		Message: fmt.Sprintf("%s too short: %d bytes (minimum %d)", stage, got, want),
	}
}

// NewWrongDirectionError reports a direction byte other than the expected one.
func NewWrongDirectionError(got, want byte) *FrameError {
	return &FrameError{
		Type:    ErrTypeWrongDirection,
		Message: fmt.Sprintf("direction byte 0x%02X, want 0x%02X", got, want),
	}
}

// NewChecksumError reports an integrity failure. The payload is never attached.
func NewChecksumError(tag byte, got, want uint16) *FrameError {
	return &FrameError{
		Type:    ErrTypeChecksumMismatch,
		Message: fmt.Sprintf("got 0x%04X, want 0x%04X", got, want),
		Tag:     tag,
		HasTag:  true,
	}
}

// NewUnknownTagError reports a verified frame whose tag has no catalog entry.
func NewUnknownTagError(catalog string, tag byte, payload []byte) *FrameError {
	return &FrameError{
		Type:    ErrTypeUnknownTag,
		Message: fmt.Sprintf("%s has no entry", catalog),
		Tag:     tag,
		HasTag:  true,
		Payload: cloneBytes(payload),
	}
}

// NewMalformedError reports a payload whose length does not match a fixed layout.
func NewMalformedError(what string, got, want int) *FrameError {
	return &FrameError{
		Type:    ErrTypeMalformedPayload,
		Message: fmt.Sprintf("invalid %s length: got %d bytes, expected %d", what, got, want),
	}
}

// NewInvalidValueError reports a payload of the right size holding a value the layout forbids.
func NewInvalidValueError(what string, value int) *FrameError {
	return &FrameError{
		Type:    ErrTypeMalformedPayload,
		Message: fmt.Sprintf("invalid %s value %d", what, value),
	}
}

// NewUnsupportedError reports a value with no byte coercion rule.
func NewUnsupportedError(v any) *FrameError {
	return &FrameError{
		Type:    ErrTypeUnsupportedPayloadType,
		Message: fmt.Sprintf("cannot encode %T", v),
	}
}

// NewTooLargeError reports a payload that does not fit the one-byte length field.
func NewTooLargeError(size int) *FrameError {
	return &FrameError{
		Type:    ErrTypePayloadTooLarge,
		Message: fmt.Sprintf("payload too large: %d bytes (max %d)", size, MaxPayloadSize),
	}
}

// NewOutOfRangeError reports a value that cannot be represented in its field.
func NewOutOfRangeError(what string, err error) *FrameError {
	return &FrameError{
		Type:    ErrTypeOutOfRange,
		Message: what,
		Err:     err,
	}
}

// IsTruncated reports whether err means "no frame yet".
func IsTruncated(err error) bool {
	return errors.Is(err, ErrTruncated)
}

// IsChecksumMismatch reports whether err is an integrity failure.
func IsChecksumMismatch(err error) bool {
	return errors.Is(err, ErrChecksumMismatch)
}

// IsUnknownTag reports whether err is an unknown tag error.
func IsUnknownTag(err error) bool {
	return errors.Is(err, ErrUnknownTag)
}

// IsMalformed reports whether err is a payload layout error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedPayload)
}

// IsOutOfRange reports whether err is a fixed-point range error.
func IsOutOfRange(err error) bool {
	return errors.Is(err, ErrOutOfRange)
}

// UnknownPayload returns the preserved raw payload of an UnknownTag error.
func UnknownPayload(err error) ([]byte, bool) {
	var fe *FrameError
	if errors.As(err, &fe) && fe.Type == ErrTypeUnknownTag {
		return fe.Payload, true
	}
	return nil, false
}

// Hint returns a short troubleshooting hint for a codec error
func Hint(err error) string {
	var fe *FrameError
	if !errors.As(err, &fe) {
		return "Check the port address and that the device is powered"
	}

	switch fe.Type {
	case ErrTypeTruncated:
		return "The device sent nothing before the read timeout; raise the timeout or check the cable"
	case ErrTypeWrongDirection:
		return "The stream is out of sync or this is not the expected device family"
	case ErrTypeChecksumMismatch:
		return "Line noise or a baud rate mismatch; verify the configured baud rate"
	case ErrTypeUnknownTag:
		return "Firmware sent a tag this build does not know; the raw payload is still available"
	case ErrTypeMalformedPayload:
		return "Payload length or content does not match the documented layout"
	case ErrTypeUnsupportedPayloadType:
		return "Pass a float, u8, bool or raw hex payload"
	case ErrTypePayloadTooLarge:
		return "Split the payload; frames carry at most 255 bytes"
	case ErrTypeOutOfRange:
		return "Use a value with at most the field's decimal places and within 0..65535 raw units"
	default:
		return ""
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
