package dps150

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/psulink/internal/logging"
	"github.com/muurk/psulink/internal/protocol"
)

// maxDrainFrames bounds one Drain call, corrupt frames included, so a
// device streaming without pause cannot keep the caller in the loop forever.
const maxDrainFrames = 256

// Port is the transport a Session drives.
type Port interface {
	protocol.Reader
	Write(p []byte) error
}

// Reading is one frame received during Drain together with its decoded
// value. Err holds a per-frame decode failure (UnknownTag, MalformedPayload);
// the frame itself passed its checksum.
type Reading struct {
	Frame *Frame
	Value protocol.Value
	Err   error
}

// Session runs the request/response loop against one device. It is not
// safe for concurrent use; each goroutine needs its own session and port.
type Session struct {
	port  Port
	state State

	// ChecksumFailures counts frames dropped for integrity errors
	ChecksumFailures int
}

// NewSession wraps an open port.
func NewSession(port Port) *Session {
	return &Session{port: port}
}

// Send encodes and writes one host-to-device frame.
func (s *Session) Send(action Action, field Field, payload protocol.Payload) error {
	b, err := Command(action, field, payload)
	if err != nil {
		return err
	}
	logging.LogFrame("sent", "dps150", b)
	if err := s.port.Write(b); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", action, field, err)
	}
	return nil
}

// Lock takes front-panel control; the device ignores its buttons until Unlock.
func (s *Session) Lock() error {
	return s.Send(ActionLock, FieldNone, protocol.Bool(true))
}

// Unlock returns control to the front panel.
func (s *Session) Unlock() error {
	return s.Send(ActionLock, FieldNone, protocol.Bool(false))
}

// SetBaud tells the device which line rate the host uses.
func (s *Session) SetBaud(baud int) error {
	idx := BaudRateIndex(baud)
	if idx == 0 {
		return fmt.Errorf("unsupported baud rate %d (supported: %v)", baud, BaudRates())
	}
	return s.Send(ActionBaud, FieldNone, protocol.Uint8(idx))
}

// Get requests a field. The answer arrives on the next Drain.
func (s *Session) Get(field Field) error {
	return s.Send(ActionGet, field, protocol.Empty())
}

// Set writes a field. The device echoes the new value.
func (s *Session) Set(field Field, payload protocol.Payload) error {
	return s.Send(ActionSet, field, payload)
}

// Drain reads frames until the port has nothing more to give. Frames with
// a bad checksum are logged and skipped; any other read error ends the
// drain and is returned with the readings collected so far.
func (s *Session) Drain() ([]Reading, error) {
	var readings []Reading
	dropped := 0
	for len(readings)+dropped < maxDrainFrames {
		f, err := ReadFrame(s.port)
		if err != nil {
			if protocol.IsTruncated(err) {
				return readings, nil
			}
			if protocol.IsChecksumMismatch(err) {
				s.ChecksumFailures++
				dropped++
				logging.Warn("Dropped corrupt frame", zap.Error(err))
				continue
			}
			return readings, err
		}

		logging.LogFrame("received", "dps150", f.Bytes())
		v, derr := Decode(f)
		if derr != nil {
			logging.Debug("Frame not decoded",
				zap.String("field", f.Field.String()),
				zap.Error(derr),
			)
		} else if v != nil {
			s.state.Apply(f.Field, v)
		}
		readings = append(readings, Reading{Frame: f, Value: v, Err: derr})
	}
	return readings, nil
}

// Query sends GET for field and drains, returning the first answer for it.
func (s *Session) Query(field Field) (*Reading, []Reading, error) {
	if err := s.Get(field); err != nil {
		return nil, nil, err
	}
	readings, err := s.Drain()
	if err != nil {
		return nil, readings, err
	}
	for i := range readings {
		if readings[i].Frame.Field == field {
			return &readings[i], readings, nil
		}
	}
	return nil, readings, protocol.NewTruncatedError(fmt.Sprintf("answer to GET %s", field), 0, 1)
}

// handshakeFields are requested after lock and baud negotiation.
var handshakeFields = []Field{
	FieldModelName,
	FieldFirmwareVersion,
	FieldHardwareVersion,
	FieldProtection,
	FieldIdentifier,
	FieldCVCC,
	FieldBrightness,
	FieldVolume,
	FieldAll,
}

// Handshake locks the panel, announces the baud rate and reads the device
// identity plus a full dump. Call Unlock when done.
func (s *Session) Handshake(baud int) ([]Reading, error) {
	if err := s.Lock(); err != nil {
		return nil, err
	}
	if err := s.SetBaud(baud); err != nil {
		return nil, err
	}
	for _, f := range handshakeFields {
		if err := s.Get(f); err != nil {
			return nil, err
		}
	}
	readings, err := s.Drain()
	if err != nil {
		return readings, err
	}
	logging.Info("DPS-150 handshake complete",
		zap.String("model", s.state.ModelName),
		zap.String("firmware", s.state.FirmwareVersion),
		zap.String("hardware", s.state.HardwareVersion),
		zap.Int("frames", len(readings)),
	)
	return readings, nil
}

// Poll requests a full dump and drains the answer.
func (s *Session) Poll() ([]Reading, error) {
	if err := s.Get(FieldAll); err != nil {
		return nil, err
	}
	return s.Drain()
}

// Snapshot returns a copy of the folded device state.
func (s *Session) Snapshot() State {
	return s.state
}
