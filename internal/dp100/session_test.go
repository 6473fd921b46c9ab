package dp100

import (
	"bytes"
	"testing"

	"github.com/muurk/psulink/internal/protocol"
	"github.com/muurk/psulink/internal/transport"
)

// fakeDP100 answers each report like the device: reads return records,
// writes return a one-byte ACK.
type fakeDP100 struct {
	t       *testing.T
	system  SystemInfo
	current BasicSet
	presets [PresetCount]BasicSet
	// reject makes every write answer NAK
	reject bool
	// wrongOp answers with a different operation
	wrongOp bool
}

func (d *fakeDP100) respond(written []byte) []byte {
	if len(written) != ReportSize {
		d.t.Errorf("write of %d bytes, want a %d-byte report", len(written), ReportSize)
	}
	f, err := ParseCommand(written)
	if err != nil {
		d.t.Errorf("device got unparseable report: %v", err)
		return nil
	}

	var reply protocol.Payload
	switch f.Op {
	case OpDeviceInfo, OpFirmwareInfo:
		v, _ := DecodeDeviceInfo(deviceInfoPayload())
		reply = protocol.Record(v)
	case OpBasicInfo:
		reply = protocol.Record(&BasicInfo{
			InputVoltage:  dec("20"),
			OutputVoltage: d.current.VoltageSet,
			OutputCurrent: dec("0.1"),
			MaxVoltage:    dec("19.5"),
			Output:        OutputCV,
		})
	case OpSystemInfo:
		if len(f.Payload) == 0 {
			reply = protocol.Record(&d.system)
			break
		}
		v, err := DecodeSystemInfo(f.Payload)
		if err != nil {
			d.t.Errorf("bad SYSTEM_INFO write: %v", err)
		}
		d.system = *v.(*SystemInfo)
		reply = protocol.Bool(!d.reject)
	case OpBasicSet:
		action, err := ParseBasicSetAction(f.Payload[0])
		if err != nil {
			d.t.Errorf("bad BASIC_SET action: %v", err)
			return nil
		}
		switch action.Op {
		case BasicGetPreset:
			p := d.presets[action.Preset]
			p.Action = action
			reply = protocol.Record(&p)
		case BasicGetCurrent:
			c := d.current
			c.Action = action
			reply = protocol.Record(&c)
		case BasicUsePreset:
			if len(f.Payload) != BasicSetSize {
				d.t.Errorf("USE_PRESET payload is %d bytes", len(f.Payload))
			}
			d.current = d.presets[action.Preset]
			reply = protocol.Bool(!d.reject)
		case BasicSetCurrent, BasicSetPreset:
			v, err := DecodeBasicSet(f.Payload)
			if err != nil {
				d.t.Errorf("bad BASIC_SET record: %v", err)
			}
			bs := *v.(*BasicSet)
			if action.Op == BasicSetCurrent {
				d.current = bs
			} else {
				d.presets[action.Preset] = bs
			}
			reply = protocol.Bool(!d.reject)
		}
	}

	op := f.Op
	if d.wrongOp {
		op = OpDisconnect
	}
	b, err := Build(DirDeviceToHost, op, f.Seq, reply)
	if err != nil {
		d.t.Fatalf("reply build: %v", err)
	}
	out := make([]byte, ReportSize)
	copy(out, b)
	return out
}

func newFakeSession(t *testing.T) (*Session, *fakeDP100, *transport.Loopback) {
	t.Helper()
	dev := &fakeDP100{
		t:      t,
		system: SystemInfo{OTP: dec("80"), OPP: dec("105"), Backlight: 2, Volume: 1},
		current: BasicSet{
			VoltageSet: dec("5"), CurrentSet: dec("1"), OVP: dec("30.5"), OCP: dec("5.05"),
		},
	}
	for i := range dev.presets {
		dev.presets[i] = BasicSet{VoltageSet: dec("3.3"), CurrentSet: dec("0.5"), OVP: dec("30"), OCP: dec("5")}
	}
	lb := transport.NewLoopback()
	lb.Respond(dev.respond)
	return NewSession(transport.NewReportPort(lb, ReportSize)), dev, lb
}

func TestSessionDeviceInfo(t *testing.T) {
	s, _, lb := newFakeSession(t)

	info, err := s.DeviceInfo()
	if err != nil {
		t.Fatalf("DeviceInfo() error = %v", err)
	}
	if info.Name != "DP100" {
		t.Errorf("Name = %q", info.Name)
	}
	if _, err := s.FirmwareInfo(); err != nil {
		t.Errorf("FirmwareInfo() error = %v", err)
	}

	first := lb.Written()[0]
	if !bytes.Equal(first[:6], []byte{0xFB, 0x10, 0x00, 0x00, 0x30, 0xC5}) {
		t.Errorf("request = % X", first[:6])
	}
}

func TestSessionSetBacklight(t *testing.T) {
	s, dev, _ := newFakeSession(t)

	if err := s.SetBacklight(4); err != nil {
		t.Fatalf("SetBacklight() error = %v", err)
	}
	if dev.system.Backlight != 4 || !dev.system.OTP.Equal(dec("80")) || dev.system.Volume != 1 {
		t.Errorf("device settings = %+v", dev.system)
	}
}

func TestSessionRejectedWrite(t *testing.T) {
	s, dev, _ := newFakeSession(t)
	dev.reject = true
	if err := s.SetBacklight(1); err == nil {
		t.Error("SetBacklight() succeeded against NAK")
	}
}

func TestSessionWrongReplyOp(t *testing.T) {
	s, dev, _ := newFakeSession(t)
	dev.wrongOp = true
	if _, err := s.BasicInfo(); err == nil {
		t.Error("BasicInfo() accepted a DISCONNECT reply")
	}
}

func TestSessionNoReply(t *testing.T) {
	lb := transport.NewLoopback()
	s := NewSession(lb)
	if _, err := s.BasicInfo(); !protocol.IsTruncated(err) {
		t.Errorf("BasicInfo() error = %v, want Truncated", err)
	}
}

func TestSessionOutput(t *testing.T) {
	s, dev, _ := newFakeSession(t)

	if err := s.SetVoltage(dec("12.345")); err != nil {
		t.Fatalf("SetVoltage() error = %v", err)
	}
	if !dev.current.VoltageSet.Equal(dec("12.345")) || !dev.current.CurrentSet.Equal(dec("1")) {
		t.Errorf("device current = %v", &dev.current)
	}
	if err := s.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if !dev.current.On {
		t.Error("output not enabled")
	}

	bi, err := s.BasicInfo()
	if err != nil {
		t.Fatalf("BasicInfo() error = %v", err)
	}
	if bi.OutputVoltage.String() != "12.345" {
		t.Errorf("OutputVoltage = %s", bi.OutputVoltage)
	}

	if err := s.SetVoltage(dec("1.0005")); !protocol.IsOutOfRange(err) {
		t.Errorf("SetVoltage(1.0005) error = %v, want OutOfRange", err)
	}
}

func TestSessionPresets(t *testing.T) {
	s, dev, _ := newFakeSession(t)

	if err := s.SavePreset(7, BasicSet{VoltageSet: dec("9"), CurrentSet: dec("0.25"), OVP: dec("10"), OCP: dec("1")}); err != nil {
		t.Fatalf("SavePreset() error = %v", err)
	}
	presets, err := s.Presets()
	if err != nil {
		t.Fatalf("Presets() error = %v", err)
	}
	if len(presets) != PresetCount {
		t.Fatalf("got %d presets", len(presets))
	}
	if p := presets[7]; !p.VoltageSet.Equal(dec("9")) || p.Action.Preset != 7 {
		t.Errorf("preset 7 = %v", p)
	}

	if err := s.UsePreset(7); err != nil {
		t.Fatalf("UsePreset() error = %v", err)
	}
	if !dev.current.VoltageSet.Equal(dec("9")) {
		t.Errorf("current after UsePreset = %v", &dev.current)
	}

	if _, err := s.GetPreset(10); err == nil {
		t.Error("GetPreset(10) succeeded")
	}
}
