package dp100

import (
	"bytes"
	"errors"
	"testing"

	"github.com/muurk/psulink/internal/protocol"
	"github.com/muurk/psulink/internal/transport"
)

func pad(b []byte) []byte {
	out := make([]byte, ReportSize)
	copy(out, b)
	return out
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		payload protocol.Payload
		want    []byte
	}{
		{"device info", OpDeviceInfo, nil, []byte{0xFB, 0x10, 0x00, 0x00, 0x30, 0xC5}},
		{"basic info", OpBasicInfo, protocol.Empty(), []byte{0xFB, 0x30, 0x00, 0x00, 0x31, 0x0F}},
		{"system info", OpSystemInfo, nil, []byte{0xFB, 0x40, 0x00, 0x00, 0x30, 0xD4}},
		{
			name: "basic set current",
			op:   OpBasicSet,
			payload: protocol.Record(&BasicSet{
				Action:     BasicSetAction{Op: BasicSetCurrent},
				VoltageSet: protocol.MustDecimal("1.234"),
				CurrentSet: protocol.MustDecimal("0.1"),
				OVP:        protocol.MustDecimal("30.5"),
				OCP:        protocol.MustDecimal("5.05"),
			}),
			want: []byte{
				0xFB, 0x35, 0x00, 0x0A,
				0x20, 0x00, 0xD2, 0x04, 0x64, 0x00, 0x24, 0x77, 0xBA, 0x13,
				0x75, 0x5B,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Command(tt.op, tt.payload)
			if err != nil {
				t.Fatalf("Command() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Command() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestBuildSeq(t *testing.T) {
	b, err := Build(DirHostToDevice, OpBasicInfo, 7, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if b[2] != 7 {
		t.Errorf("seq byte = %d, want 7", b[2])
	}
	f, err := ParseCommand(b)
	if err != nil || f.Seq != 7 || f.Op != OpBasicInfo {
		t.Errorf("ParseCommand() = %v, %v", f, err)
	}
}

func TestBuildPayloadTooLarge(t *testing.T) {
	_, err := Command(OpDataTrans, protocol.Raw(make([]byte, 256)))
	if !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Errorf("Command(256 bytes) error = %v, want PayloadTooLarge", err)
	}
}

func TestParseIgnoresPadding(t *testing.T) {
	raw, _ := Build(DirDeviceToHost, OpBasicSet, 0, protocol.Raw([]byte{0x01}))
	f, err := Parse(pad(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Op != OpBasicSet || !bytes.Equal(f.Payload, []byte{0x01}) || !f.Verify() {
		t.Errorf("Parse() = %v", f)
	}
	if !bytes.Equal(f.Bytes(), raw) {
		t.Errorf("Bytes() = % X, want % X", f.Bytes(), raw)
	}

	v, err := Decode(f)
	if err != nil || v != Ack(true) {
		t.Errorf("Decode() = %v, %v; want ACK", v, err)
	}
}

func TestParseDirection(t *testing.T) {
	cmd, _ := Command(OpDeviceInfo, nil)
	if _, err := Parse(cmd); !errors.Is(err, protocol.ErrWrongDirection) {
		t.Errorf("Parse(host frame) error = %v, want WrongDirection", err)
	}
	if _, err := Parse(pad([]byte{0x00})); !errors.Is(err, protocol.ErrWrongDirection) {
		t.Errorf("Parse(zero report) error = %v, want WrongDirection", err)
	}
}

func TestParseEveryPrefixIsTruncated(t *testing.T) {
	raw, _ := Build(DirDeviceToHost, OpSystemInfo, 0, protocol.Record(&SystemInfo{
		OTP: protocol.MustDecimal("80"), OPP: protocol.MustDecimal("105.5"), Backlight: 3, Volume: 2,
	}))
	for n := 0; n < len(raw); n++ {
		f, err := Parse(raw[:n])
		if !protocol.IsTruncated(err) || f != nil {
			t.Errorf("Parse(prefix %d) = %v, %v; want Truncated", n, f, err)
		}
	}
}

// Every single-bit flip after the direction byte is caught by the CRC. A
// flipped length byte may instead point past the end of the report.
func TestParseDetectsEveryBitFlip(t *testing.T) {
	raw, _ := Build(DirDeviceToHost, OpBasicInfo, 0, protocol.Raw(make([]byte, BasicInfoSize)))
	report := pad(raw)

	for i := 1; i < len(raw)-CRCSize; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte{}, report...)
			corrupt[i] ^= 1 << bit

			_, err := Parse(corrupt)
			if protocol.IsChecksumMismatch(err) {
				continue
			}
			if i == 3 && protocol.IsTruncated(err) {
				continue
			}
			t.Errorf("flip byte %d bit %d: err = %v, want ChecksumMismatch", i, bit, err)
		}
	}
}

func TestReadFrame(t *testing.T) {
	raw, _ := Build(DirDeviceToHost, OpBasicSet, 0, protocol.Raw([]byte{0x01}))
	port := transport.NewLoopback()
	port.Feed(pad(raw))

	f, err := ReadFrame(port)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if f.Op != OpBasicSet {
		t.Errorf("op = %s", f.Op)
	}

	if _, err := ReadFrame(port); !protocol.IsTruncated(err) {
		t.Errorf("ReadFrame(empty) error = %v, want Truncated", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		frame     *Frame
		wantValue bool
		wantErr   func(error) bool
	}{
		{"host frame", &Frame{Dir: DirHostToDevice, Op: OpBasicSet, Payload: []byte{1}}, false, nil},
		{"opaque op", &Frame{Dir: DirDeviceToHost, Op: OpScanOut, Payload: []byte{1, 2}}, false, nil},
		{"ack", &Frame{Dir: DirDeviceToHost, Op: OpSystemInfo, Payload: []byte{1}}, true, nil},
		{"unknown op", &Frame{Dir: DirDeviceToHost, Op: Operation(0x99), Payload: []byte{1, 2}}, false, protocol.IsUnknownTag},
		{"short basic info", &Frame{Dir: DirDeviceToHost, Op: OpBasicInfo, Payload: make([]byte, 15)}, false, protocol.IsMalformed},
		{"bad ack", &Frame{Dir: DirDeviceToHost, Op: OpBasicSet, Payload: []byte{2}}, false, protocol.IsMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(tt.frame)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("Decode() error = %v", err)
				}
			} else if err != nil {
				t.Errorf("Decode() error = %v", err)
			}
			if (v != nil) != tt.wantValue {
				t.Errorf("Decode() = %v, wantValue %v", v, tt.wantValue)
			}
		})
	}

	_, err := Decode(&Frame{Dir: DirDeviceToHost, Op: Operation(0x99), Payload: []byte{1, 2}})
	if p, ok := protocol.UnknownPayload(err); !ok || !bytes.Equal(p, []byte{1, 2}) {
		t.Errorf("UnknownPayload() = % X, %v", p, ok)
	}
}

func TestOperationsCatalog(t *testing.T) {
	want := map[Operation]string{
		OpDeviceInfo:   "DEVICE_INFO",
		OpFirmwareInfo: "FIRMWARE_INFO",
		OpStartTrans:   "START_TRANS",
		OpDataTrans:    "DATA_TRANS",
		OpEndTrans:     "END_TRANS",
		OpDevUpgrade:   "DEV_UPGRADE",
		OpBasicInfo:    "BASIC_INFO",
		OpBasicSet:     "BASIC_SET",
		OpSystemInfo:   "SYSTEM_INFO",
		OpSystemSet:    "SYSTEM_SET",
		OpScanOut:      "SCAN_OUT",
		OpSerialOut:    "SERIAL_OUT",
		OpDisconnect:   "DISCONNECT",
	}
	if n := len(Operations.Entries()); n != len(want) {
		t.Errorf("catalog has %d entries, want %d", n, len(want))
	}
	for op, name := range want {
		if op.String() != name {
			t.Errorf("Operation(0x%02X) = %s, want %s", byte(op), op, name)
		}
		got, err := LookupOperation(name)
		if err != nil || got != op {
			t.Errorf("LookupOperation(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := LookupOperation("0x99"); err == nil {
		t.Error("LookupOperation(0x99) succeeded")
	}
}
