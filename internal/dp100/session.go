package dp100

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/muurk/psulink/internal/logging"
	"github.com/muurk/psulink/internal/protocol"
)

// Port is the transport a Session drives. Writes should be padded to
// ReportSize by the port (transport.ReportPort) when talking to hidraw.
type Port interface {
	protocol.Reader
	Write(p []byte) error
}

// Session runs request/response exchanges with one DP100. Each request
// gets exactly one report back. Not safe for concurrent use.
type Session struct {
	port Port
}

// NewSession wraps an open port.
func NewSession(port Port) *Session {
	return &Session{port: port}
}

// Exchange sends op with payload and reads the reply. The reply must carry
// the same operation. A reply whose payload cannot be decoded is returned
// together with the decode error.
func (s *Session) Exchange(op Operation, payload protocol.Payload) (*Frame, protocol.Value, error) {
	b, err := Command(op, payload)
	if err != nil {
		return nil, nil, err
	}
	logging.LogFrame("sent", "dp100", b)
	if err := s.port.Write(b); err != nil {
		return nil, nil, fmt.Errorf("failed to write %s: %w", op, err)
	}

	f, err := ReadFrame(s.port)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s reply: %w", op, err)
	}
	logging.LogFrame("received", "dp100", f.Bytes())
	if f.Op != op {
		return f, nil, fmt.Errorf("reply to %s carried %s", op, f.Op)
	}

	v, err := Decode(f)
	if err != nil {
		logging.Debug("Reply not decoded", zap.String("op", op.String()), zap.Error(err))
		return f, nil, err
	}
	return f, v, nil
}

func expect[T protocol.Value](op Operation, v protocol.Value) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s reply decoded to %T, want %T", op, v, zero)
	}
	return t, nil
}

func (s *Session) query(op Operation, payload protocol.Payload) (protocol.Value, error) {
	_, v, err := s.Exchange(op, payload)
	return v, err
}

func (s *Session) write(op Operation, payload protocol.Payload) error {
	v, err := s.query(op, payload)
	if err != nil {
		return err
	}
	ack, err := expect[Ack](op, v)
	if err != nil {
		return err
	}
	if !ack {
		return fmt.Errorf("device rejected %s", op)
	}
	return nil
}

// DeviceInfo reads the device identity.
func (s *Session) DeviceInfo() (*DeviceInfo, error) {
	v, err := s.query(OpDeviceInfo, nil)
	if err != nil {
		return nil, err
	}
	return expect[*DeviceInfo](OpDeviceInfo, v)
}

// FirmwareInfo reads the bootloader view of the identity record.
func (s *Session) FirmwareInfo() (*DeviceInfo, error) {
	v, err := s.query(OpFirmwareInfo, nil)
	if err != nil {
		return nil, err
	}
	return expect[*DeviceInfo](OpFirmwareInfo, v)
}

// SystemInfo reads the device settings.
func (s *Session) SystemInfo() (*SystemInfo, error) {
	v, err := s.query(OpSystemInfo, nil)
	if err != nil {
		return nil, err
	}
	return expect[*SystemInfo](OpSystemInfo, v)
}

// SetSystemInfo writes the device settings.
func (s *Session) SetSystemInfo(si *SystemInfo) error {
	return s.write(OpSystemInfo, protocol.Record(si))
}

// SetBacklight changes only the backlight level: it reads the settings,
// updates one field and writes them back.
func (s *Session) SetBacklight(level uint8) error {
	si, err := s.SystemInfo()
	if err != nil {
		return err
	}
	si.Backlight = level
	if err := s.SetSystemInfo(si); err != nil {
		return err
	}
	logging.Info("DP100 backlight set", zap.Uint8("level", level))
	return nil
}

// BasicInfo reads the live status.
func (s *Session) BasicInfo() (*BasicInfo, error) {
	v, err := s.query(OpBasicInfo, nil)
	if err != nil {
		return nil, err
	}
	return expect[*BasicInfo](OpBasicInfo, v)
}

func (s *Session) basicSet(action BasicSetAction) (*BasicSet, error) {
	v, err := s.query(OpBasicSet, protocol.Record(action))
	if err != nil {
		return nil, err
	}
	return expect[*BasicSet](OpBasicSet, v)
}

// GetPreset reads stored preset slot 0..9.
func (s *Session) GetPreset(slot int) (*BasicSet, error) {
	if slot < 0 || slot >= PresetCount {
		return nil, fmt.Errorf("preset %d out of range 0..%d", slot, PresetCount-1)
	}
	return s.basicSet(BasicSetAction{Op: BasicGetPreset, Preset: uint8(slot)})
}

// Presets reads every preset slot.
func (s *Session) Presets() ([]*BasicSet, error) {
	out := make([]*BasicSet, 0, PresetCount)
	for i := 0; i < PresetCount; i++ {
		p, err := s.GetPreset(i)
		if err != nil {
			return out, fmt.Errorf("preset %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Current reads the live output setting.
func (s *Session) Current() (*BasicSet, error) {
	return s.basicSet(BasicSetAction{Op: BasicGetCurrent})
}

// UsePreset loads a stored preset into the live setting.
func (s *Session) UsePreset(slot int) error {
	if slot < 0 || slot >= PresetCount {
		return fmt.Errorf("preset %d out of range 0..%d", slot, PresetCount-1)
	}
	return s.write(OpBasicSet, protocol.Record(BasicSetAction{Op: BasicUsePreset, Preset: uint8(slot)}))
}

// SavePreset stores bs into a preset slot.
func (s *Session) SavePreset(slot int, bs BasicSet) error {
	if slot < 0 || slot >= PresetCount {
		return fmt.Errorf("preset %d out of range 0..%d", slot, PresetCount-1)
	}
	bs.Action = BasicSetAction{Op: BasicSetPreset, Preset: uint8(slot)}
	return s.write(OpBasicSet, protocol.Record(&bs))
}

// SetOutput writes the live output setting.
func (s *Session) SetOutput(bs BasicSet) error {
	bs.Action = BasicSetAction{Op: BasicSetCurrent}
	if err := s.write(OpBasicSet, protocol.Record(&bs)); err != nil {
		return err
	}
	logging.Info("DP100 output set",
		zap.Bool("on", bs.On),
		zap.Stringer("v_set", bs.VoltageSet),
		zap.Stringer("i_set", bs.CurrentSet),
	)
	return nil
}

// SetVoltage changes the live voltage and keeps the other settings.
func (s *Session) SetVoltage(v decimal.Decimal) error {
	cur, err := s.Current()
	if err != nil {
		return err
	}
	cur.VoltageSet = v
	return s.SetOutput(*cur)
}

// SetEnabled switches the output on or off and keeps the other settings.
func (s *Session) SetEnabled(on bool) error {
	cur, err := s.Current()
	if err != nil {
		return err
	}
	cur.On = on
	return s.SetOutput(*cur)
}
