package bridge

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/protocol"
	"github.com/muurk/psulink/internal/transport"
)

// dps150Responder answers GET ALL with a dump and echoes SET frames.
func dps150Responder(t *testing.T, dump *dps150.Dump) transport.Responder {
	return func(written []byte) []byte {
		f, err := dps150.Parse(written)
		if err != nil {
			t.Errorf("device got unparseable frame % X: %v", written, err)
			return nil
		}
		var reply []byte
		switch {
		case f.Action == dps150.ActionGet && f.Field == dps150.FieldAll:
			reply, err = dps150.Build(dps150.DirDeviceToHost, dps150.ActionGet, dps150.FieldAll, protocol.Record(dump))
		case f.Action == dps150.ActionSet:
			reply, err = dps150.Build(dps150.DirDeviceToHost, dps150.ActionSet, f.Field, protocol.Raw(f.Payload))
		}
		if err != nil {
			t.Fatalf("reply build: %v", err)
		}
		return reply
	}
}

func newDPS150Device(t *testing.T) (Device, *transport.Loopback) {
	t.Helper()
	lb := transport.NewLoopback()
	lb.Respond(dps150Responder(t, &dps150.Dump{InputVoltage: 20, Brightness: 9, Running: true}))
	return NewDPS150Device(dps150.NewSession(lb)), lb
}

func TestDPS150DevicePoll(t *testing.T) {
	dev, _ := newDPS150Device(t)
	if dev.Variant() != "dps150" {
		t.Errorf("Variant() = %q", dev.Variant())
	}

	events, err := dev.Poll()
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Poll() returned %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != EventReading || ev.Tag != "ALL" || ev.TagByte != 0xFF {
		t.Errorf("event = %+v", ev)
	}
	dump, ok := ev.Value.(*dps150.Dump)
	if !ok {
		t.Fatalf("Value is %T, want *dps150.Dump", ev.Value)
	}
	if dump.Brightness != 9 || !dump.Running {
		t.Errorf("dump = %+v", dump)
	}
	if !strings.HasPrefix(ev.FrameHex, "F0 A1 FF 8B") {
		t.Errorf("FrameHex = %q", ev.FrameHex)
	}
}

func TestDPS150DeviceApply(t *testing.T) {
	tests := []struct {
		name      string
		cmd       Command
		wantTag   string
		wantText  string
		wantWrite []byte
	}{
		{
			name:      "float from JSON number",
			cmd:       Command{Tag: "V_SET", Value: float64(1.9)},
			wantTag:   "V_SET",
			wantText:  "1.9",
			wantWrite: []byte{0xF1, 0xB1, 0xC1, 0x04, 0x33, 0x33, 0xF3, 0x3F, 0x5D},
		},
		{
			name:     "u8 with kind",
			cmd:      Command{Tag: "brightness", Kind: "u8", Value: float64(7)},
			wantTag:  "BRIGHTNESS",
			wantText: "7",
		},
		{
			name:      "bool",
			cmd:       Command{Tag: "RUNNING", Value: true},
			wantTag:   "RUNNING",
			wantText:  "true",
			wantWrite: []byte{0xF1, 0xB1, 0xDB, 0x01, 0x01, 0xDD},
		},
		{
			name:      "u8 field from JSON number",
			cmd:       Command{Tag: "BRIGHTNESS", Value: float64(7)},
			wantTag:   "BRIGHTNESS",
			wantText:  "7",
			wantWrite: []byte{0xF1, 0xB1, 0xD6, 0x01, 0x07, 0xDE},
		},
		{
			name:      "bool field from JSON number",
			cmd:       Command{Tag: "RUNNING", Value: float64(1)},
			wantTag:   "RUNNING",
			wantText:  "true",
			wantWrite: []byte{0xF1, 0xB1, 0xDB, 0x01, 0x01, 0xDD},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, lb := newDPS150Device(t)
			events, err := dev.Apply(tt.cmd)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if len(events) != 1 {
				t.Fatalf("Apply() returned %d events", len(events))
			}
			ev := events[0]
			if ev.Tag != tt.wantTag {
				t.Errorf("Tag = %q, want %q", ev.Tag, tt.wantTag)
			}
			if ev.Error != "" {
				t.Errorf("echo decode error = %s", ev.Error)
			}
			if ev.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", ev.Text, tt.wantText)
			}
			if tt.wantWrite != nil {
				if w := lb.Written(); len(w) != 1 || !bytes.Equal(w[0], tt.wantWrite) {
					t.Errorf("written = % X, want % X", w, tt.wantWrite)
				}
			}
		})
	}
}

func TestDPS150DeviceLockAndErrors(t *testing.T) {
	dev, lb := newDPS150Device(t)

	if _, err := dev.Apply(Command{Tag: "lock", Value: true}); err != nil {
		t.Fatalf("Apply(LOCK) error = %v", err)
	}
	if _, err := dev.Apply(Command{Tag: "LOCK", Value: false}); err != nil {
		t.Fatalf("Apply(UNLOCK) error = %v", err)
	}
	w := lb.Written()
	if !bytes.Equal(w[0], []byte{0xF1, 0xC1, 0x00, 0x01, 0x01, 0x02}) ||
		!bytes.Equal(w[1], []byte{0xF1, 0xC1, 0x00, 0x01, 0x00, 0x01}) {
		t.Errorf("lock frames = % X", w)
	}

	// JSON numbers arrive as float64
	if _, err := dev.Apply(Command{Tag: "LOCK", Value: float64(0)}); err != nil {
		t.Fatalf("Apply(LOCK 0) error = %v", err)
	}
	if _, err := dev.Apply(Command{Tag: "LOCK", Value: float64(1)}); err != nil {
		t.Fatalf("Apply(LOCK 1) error = %v", err)
	}
	w = lb.Written()
	if len(w) != 4 ||
		!bytes.Equal(w[2], []byte{0xF1, 0xC1, 0x00, 0x01, 0x00, 0x01}) ||
		!bytes.Equal(w[3], []byte{0xF1, 0xC1, 0x00, 0x01, 0x01, 0x02}) {
		t.Errorf("lock frames from numbers = % X", w)
	}
	if _, err := dev.Apply(Command{Tag: "LOCK", Value: float64(0.5)}); err == nil {
		t.Error("Apply(LOCK 0.5) accepted a fractional value")
	}

	if _, err := dev.Apply(Command{Tag: "NOPE", Value: 1.0}); err == nil {
		t.Error("Apply() accepted an unknown field")
	}
	if _, err := dev.Apply(Command{Tag: "V_SET", Value: "twelve"}); !isUnsupported(err) {
		t.Errorf("Apply() with string value error = %v, want UnsupportedPayloadType", err)
	}
}

func isUnsupported(err error) bool {
	return errors.Is(err, protocol.ErrUnsupportedPayloadType)
}

// dp100Responder is a minimal DP100: BASIC_INFO reports the live setting,
// BASIC_SET reads or replaces it.
type dp100Responder struct {
	t       *testing.T
	current dp100.BasicSet
}

func (d *dp100Responder) respond(written []byte) []byte {
	f, err := dp100.ParseCommand(written)
	if err != nil {
		d.t.Errorf("device got unparseable report: %v", err)
		return nil
	}
	var reply protocol.Payload
	switch f.Op {
	case dp100.OpBasicInfo:
		reply = protocol.Record(&dp100.BasicInfo{
			InputVoltage:  protocol.MustDecimal("20"),
			OutputVoltage: d.current.VoltageSet,
			MaxVoltage:    protocol.MustDecimal("19.5"),
			Output:        dp100.OutputCV,
		})
	case dp100.OpBasicSet:
		action, _ := dp100.ParseBasicSetAction(f.Payload[0])
		if action.Op == dp100.BasicGetCurrent {
			c := d.current
			c.Action = action
			reply = protocol.Record(&c)
			break
		}
		v, err := dp100.DecodeBasicSet(f.Payload)
		if err != nil {
			d.t.Errorf("bad BASIC_SET: %v", err)
		}
		d.current = *v.(*dp100.BasicSet)
		reply = protocol.Bool(true)
	default:
		reply = protocol.Empty()
	}
	b, err := dp100.Build(dp100.DirDeviceToHost, f.Op, f.Seq, reply)
	if err != nil {
		d.t.Fatalf("reply build: %v", err)
	}
	out := make([]byte, dp100.ReportSize)
	copy(out, b)
	return out
}

func newDP100Device(t *testing.T) (Device, *dp100Responder) {
	t.Helper()
	fake := &dp100Responder{t: t, current: dp100.BasicSet{
		VoltageSet: protocol.MustDecimal("5"),
		CurrentSet: protocol.MustDecimal("1"),
		OVP:        protocol.MustDecimal("30"),
		OCP:        protocol.MustDecimal("5"),
	}}
	lb := transport.NewLoopback()
	lb.Respond(fake.respond)
	return NewDP100Device(dp100.NewSession(transport.NewReportPort(lb, dp100.ReportSize))), fake
}

func TestDP100DevicePoll(t *testing.T) {
	dev, _ := newDP100Device(t)
	events, err := dev.Poll()
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(events) != 1 || events[0].Tag != "BASIC_INFO" {
		t.Fatalf("Poll() = %+v", events)
	}
	bi, ok := events[0].Value.(*dp100.BasicInfo)
	if !ok || bi.OutputVoltage.String() != "5" {
		t.Errorf("Value = %#v", events[0].Value)
	}
}

func TestDP100DeviceApply(t *testing.T) {
	dev, fake := newDP100Device(t)

	if _, err := dev.Apply(Command{Tag: "VOLTAGE", Value: "12.345"}); err != nil {
		t.Fatalf("Apply(VOLTAGE) error = %v", err)
	}
	if fake.current.VoltageSet.String() != "12.345" {
		t.Errorf("voltage = %s", fake.current.VoltageSet)
	}

	if _, err := dev.Apply(Command{Tag: "current", Value: float64(0.25)}); err != nil {
		t.Fatalf("Apply(CURRENT) error = %v", err)
	}
	if fake.current.CurrentSet.String() != "0.25" || fake.current.VoltageSet.String() != "12.345" {
		t.Errorf("current setting = %v", &fake.current)
	}

	events, err := dev.Apply(Command{Tag: "OUTPUT", Value: true})
	if err != nil {
		t.Fatalf("Apply(OUTPUT) error = %v", err)
	}
	if !fake.current.On {
		t.Error("output not enabled")
	}
	if len(events) != 1 || events[0].Tag != "BASIC_INFO" {
		t.Errorf("Apply() events = %+v", events)
	}

	if _, err := dev.Apply(Command{Tag: "OUTPUT", Value: float64(0)}); err != nil || fake.current.On {
		t.Errorf("Apply(OUTPUT 0) error = %v, on = %v", err, fake.current.On)
	}

	if _, err := dev.Apply(Command{Tag: "VOLTAGE", Value: "1.0005"}); !protocol.IsOutOfRange(err) {
		t.Errorf("Apply(VOLTAGE 1.0005) error = %v, want OutOfRange", err)
	}
	if _, err := dev.Apply(Command{Tag: "FAN"}); err == nil {
		t.Error("Apply() accepted an unknown setting")
	}

	got, err := dev.Apply(Command{Action: "get", Tag: "basic_info"})
	if err != nil || len(got) != 1 || got[0].TagByte != 0x30 {
		t.Errorf("Apply(get BASIC_INFO) = %+v, %v", got, err)
	}
}
