package protocol

import (
	"bytes"
	"errors"
	"testing"
)

type fixedRecord []byte

func (r fixedRecord) MarshalBinary() ([]byte, error) { return []byte(r), nil }

func TestPayloadBytes(t *testing.T) {
	tests := []struct {
		name     string
		payload  Payload
		want     []byte
		wantKind string
	}{
		{"empty", Empty(), nil, "raw"},
		{"raw nil", Raw(nil), nil, "raw"},
		{"raw bytes", Raw([]byte{0x01, 0x02}), []byte{0x01, 0x02}, "raw"},
		{"float 1.9", Float32(1.9), []byte{0x33, 0x33, 0xF3, 0x3F}, "float"},
		{"float zero", Float32(0), []byte{0, 0, 0, 0}, "float"},
		{"u8", Uint8(14), []byte{0x0E}, "u8"},
		{"bool true", Bool(true), []byte{0x01}, "bool"},
		{"bool false", Bool(false), []byte{0x00}, "bool"},
		{"record", Record(fixedRecord{0xAA, 0xBB}), []byte{0xAA, 0xBB}, "record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.payload.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = % X, want % X", got, tt.want)
			}
			if tt.payload.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", tt.payload.Kind(), tt.wantKind)
			}
		})
	}
}

func TestRawCopiesInput(t *testing.T) {
	src := []byte{0x01, 0x02}
	p := Raw(src)
	src[0] = 0xFF

	got, _ := p.Bytes()
	if got[0] != 0x01 {
		t.Errorf("Raw payload aliased caller slice: got 0x%02x", got[0])
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		want     []byte
		wantType ErrorType
		wantErr  bool
	}{
		{name: "nil", value: nil, want: nil},
		{name: "bytes", value: []byte{0x10, 0x20}, want: []byte{0x10, 0x20}},
		{name: "float64", value: 1.9, want: []byte{0x33, 0x33, 0xF3, 0x3F}},
		{name: "float32", value: float32(1.9), want: []byte{0x33, 0x33, 0xF3, 0x3F}},
		{name: "bool", value: true, want: []byte{0x01}},
		{name: "uint8", value: uint8(7), want: []byte{0x07}},
		{name: "int in range", value: 255, want: []byte{0xFF}},
		{name: "marshaler", value: fixedRecord{0x01}, want: []byte{0x01}},
		{name: "payload passes", value: Uint8(3), want: []byte{0x03}},
		{name: "int too large", value: 256, wantErr: true, wantType: ErrTypeOutOfRange},
		{name: "negative int", value: -1, wantErr: true, wantType: ErrTypeOutOfRange},
		{name: "string", value: "1.9", wantErr: true, wantType: ErrTypeUnsupportedPayloadType},
		{name: "map", value: map[string]int{}, wantErr: true, wantType: ErrTypeUnsupportedPayloadType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Coerce(tt.value)
			if tt.wantErr {
				var fe *FrameError
				if !errors.As(err, &fe) {
					t.Fatalf("Coerce() error = %v, want *FrameError", err)
				}
				if fe.Type != tt.wantType {
					t.Errorf("error type = %v, want %v", fe.Type, tt.wantType)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() error = %v", err)
			}
			got, err := p.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Coerce() bytes = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		text    string
		want    []byte
		wantErr bool
	}{
		{"empty", "empty", "", nil, false},
		{"empty with text", "empty", "1", nil, true},
		{"hex spaced", "hex", "F1 B1 c1", []byte{0xF1, 0xB1, 0xC1}, false},
		{"hex prefixed", "raw", "0x0102", []byte{0x01, 0x02}, false},
		{"hex odd", "hex", "ABC", nil, true},
		{"float", "float", "1.9", []byte{0x33, 0x33, 0xF3, 0x3F}, false},
		{"float bad", "float", "volts", nil, true},
		{"u8 decimal", "u8", "14", []byte{0x0E}, false},
		{"u8 hex", "u8", "0x0f", []byte{0x0F}, false},
		{"u8 overflow", "u8", "256", nil, true},
		{"bool", "bool", "true", []byte{0x01}, false},
		{"bool numeric", "bool", "0", []byte{0x00}, false},
		{"unknown kind", "double", "1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseValue(tt.kind, tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, _ := p.Bytes()
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ParseValue() bytes = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0xF1, 0x0A}); got != "F1 0A" {
		t.Errorf("FormatHex() = %q, want %q", got, "F1 0A")
	}
	if got := FormatHex(nil); got != "" {
		t.Errorf("FormatHex(nil) = %q, want empty", got)
	}
}
