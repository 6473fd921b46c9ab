package dps150

import (
	"bytes"
	"testing"
	"time"

	"github.com/muurk/psulink/internal/protocol"
	"github.com/muurk/psulink/internal/transport"
)

// fakeDevice answers host commands the way a DPS-150 does: GET is
// answered with the current register, SET is echoed, LOCK and BAUD are
// silent.
type fakeDevice struct {
	t    *testing.T
	dump *Dump
	text map[Field]string
	// noise is prepended to the next reply
	noise []byte
}

func (d *fakeDevice) respond(written []byte) []byte {
	f, err := Parse(written)
	if err != nil {
		d.t.Errorf("device got unparseable frame % X: %v", written, err)
		return nil
	}
	if f.Dir != DirHostToDevice {
		d.t.Errorf("device got frame with dir %s", f.Dir)
	}

	var out []byte
	out = append(out, d.noise...)
	d.noise = nil

	reply := func(field Field, p protocol.Payload) {
		b, err := Build(DirDeviceToHost, ActionGet, field, p)
		if err != nil {
			d.t.Fatalf("reply build: %v", err)
		}
		out = append(out, b...)
	}

	switch f.Action {
	case ActionGet:
		switch {
		case f.Field == FieldAll:
			reply(FieldAll, protocol.Record(d.dump))
		case d.text[f.Field] != "":
			reply(f.Field, protocol.Raw([]byte(d.text[f.Field])))
		case f.Field == FieldProtection:
			reply(f.Field, protocol.Record(d.dump.State))
		case f.Field == FieldCVCC:
			reply(f.Field, protocol.Bool(d.dump.CV))
		case f.Field == FieldBrightness:
			reply(f.Field, protocol.Uint8(d.dump.Brightness))
		case f.Field == FieldVolume:
			reply(f.Field, protocol.Uint8(d.dump.Volume))
		case f.Field == FieldIdentifier:
			reply(f.Field, protocol.Uint8(d.dump.Identifier))
		}
	case ActionSet:
		reply(f.Field, protocol.Raw(f.Payload))
	}
	return out
}

func newFakeSession(t *testing.T) (*Session, *transport.Loopback, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{
		t:    t,
		dump: sampleDump(),
		text: map[Field]string{
			FieldModelName:       "DPS-150",
			FieldHardwareVersion: "V1.0",
			FieldFirmwareVersion: "V1.2",
		},
	}
	port := transport.NewLoopback()
	port.Respond(dev.respond)
	return NewSession(port), port, dev
}

func TestSessionHandshake(t *testing.T) {
	s, port, _ := newFakeSession(t)

	readings, err := s.Handshake(115200)
	if err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	written := port.Written()
	if len(written) != 2+len(handshakeFields) {
		t.Fatalf("wrote %d frames, want %d", len(written), 2+len(handshakeFields))
	}
	if !bytes.Equal(written[0], []byte{0xF1, 0xC1, 0x00, 0x01, 0x01, 0x02}) {
		t.Errorf("first frame = % X, want lock", written[0])
	}
	if !bytes.Equal(written[1], []byte{0xF1, 0xB0, 0x00, 0x01, 0x05, 0x06}) {
		t.Errorf("second frame = % X, want baud 115200", written[1])
	}
	if len(readings) != len(handshakeFields) {
		t.Errorf("got %d readings, want %d", len(readings), len(handshakeFields))
	}
	for _, r := range readings {
		if r.Err != nil {
			t.Errorf("reading %s: %v", r.Frame.Field, r.Err)
		}
	}

	st := s.Snapshot()
	if st.ModelName != "DPS-150" || st.FirmwareVersion != "V1.2" || st.HardwareVersion != "V1.0" {
		t.Errorf("identity = %q %q %q", st.ModelName, st.FirmwareVersion, st.HardwareVersion)
	}
	if st.Dump != *sampleDump() {
		t.Errorf("dump not folded into state: %+v", st.Dump)
	}
}

func TestSessionSetBaudRejectsUnknownRate(t *testing.T) {
	s, port, _ := newFakeSession(t)
	if err := s.SetBaud(4800); err == nil {
		t.Error("SetBaud(4800) succeeded")
	}
	if len(port.Written()) != 0 {
		t.Error("frame written for rejected baud rate")
	}
}

func TestSessionSetEchoUpdatesState(t *testing.T) {
	s, _, _ := newFakeSession(t)

	if err := s.Set(FieldVSet, protocol.Float32(12.5)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	readings, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(readings) != 1 || readings[0].Value != protocol.Float32Value(12.5) {
		t.Fatalf("readings = %+v", readings)
	}
	if got := s.Snapshot().Set.Voltage; got != 12.5 {
		t.Errorf("state V_SET = %v, want 12.5", got)
	}
}

func TestSessionDrainSkipsCorruptFrames(t *testing.T) {
	s, port, _ := newFakeSession(t)

	bad, _ := Build(DirDeviceToHost, ActionGet, FieldVolume, protocol.Uint8(4))
	bad[len(bad)-1]++
	good, _ := Build(DirDeviceToHost, ActionGet, FieldVolume, protocol.Uint8(5))
	port.Feed(bad)
	port.Feed(good)

	readings, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if s.ChecksumFailures != 1 {
		t.Errorf("ChecksumFailures = %d, want 1", s.ChecksumFailures)
	}
	if len(readings) != 1 || readings[0].Value != protocol.Uint8Value(5) {
		t.Errorf("readings = %+v", readings)
	}
	if s.Snapshot().Volume != 5 {
		t.Errorf("Volume = %d, want 5", s.Snapshot().Volume)
	}
}

// garbagePort repeats one frame forever and never writes anything back.
type garbagePort struct {
	frame []byte
	pos   int
	reads int
}

func (p *garbagePort) next() byte {
	b := p.frame[p.pos%len(p.frame)]
	p.pos++
	return b
}

func (p *garbagePort) ReadN(n int) ([]byte, error) {
	p.reads++
	out := make([]byte, n)
	for i := range out {
		out[i] = p.next()
	}
	return out, nil
}

func (p *garbagePort) ReadUntil(marker byte, max int) ([]byte, error) {
	p.reads++
	var out []byte
	for len(out) < max {
		b := p.next()
		out = append(out, b)
		if b == marker {
			break
		}
	}
	return out, nil
}

func (p *garbagePort) Write([]byte) error { return nil }

func TestSessionDrainStopsOnEndlessCorruptFrames(t *testing.T) {
	port := &garbagePort{frame: []byte{0xF0, 0xA1, 0xD6, 0x01, 0x07, 0x00}}
	s := NewSession(port)

	done := make(chan struct{})
	var readings []Reading
	var err error
	go func() {
		defer close(done)
		readings, err = s.Drain()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Drain() did not return on a port that only sends corrupt frames")
	}

	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("got %d readings from corrupt frames", len(readings))
	}
	if s.ChecksumFailures != maxDrainFrames {
		t.Errorf("ChecksumFailures = %d, want %d", s.ChecksumFailures, maxDrainFrames)
	}
}

func TestSessionDrainKeepsUnknownFields(t *testing.T) {
	s, port, _ := newFakeSession(t)

	unknown, _ := Build(DirDeviceToHost, ActionGet, Field(0xF5), protocol.Raw([]byte{1, 2}))
	port.Feed(unknown)

	readings, err := s.Drain()
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(readings) != 1 || !protocol.IsUnknownTag(readings[0].Err) {
		t.Fatalf("readings = %+v", readings)
	}
	if s.Snapshot().Frames != 0 {
		t.Error("unknown field changed state")
	}
}

func TestSessionQuery(t *testing.T) {
	s, _, dev := newFakeSession(t)
	dev.noise = []byte{0x11, 0x22}

	r, _, err := s.Query(FieldModelName)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if r.Value != protocol.TextValue("DPS-150") {
		t.Errorf("Query() value = %v", r.Value)
	}

	_, _, err = s.Query(FieldTemperature)
	if !protocol.IsTruncated(err) {
		t.Errorf("Query(unanswered) error = %v, want Truncated", err)
	}
}

func TestSessionPoll(t *testing.T) {
	s, _, _ := newFakeSession(t)
	readings, err := s.Poll()
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(readings) != 1 || readings[0].Frame.Field != FieldAll {
		t.Fatalf("readings = %+v", readings)
	}
	if s.Snapshot().Measurement != sampleDump().Measurement {
		t.Error("measurement not folded")
	}
}
