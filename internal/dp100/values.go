package dp100

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/muurk/psulink/internal/protocol"
)

// Record sizes.
const (
	DeviceInfoSize = 40
	SystemInfoSize = 8
	BasicInfoSize  = 16
	BasicSetSize   = 10

	nameSize   = 16
	serialSize = 12
)

// PresetCount is the number of stored presets, 0..9.
const PresetCount = 10

// Ack is the one-byte status returned after a SYSTEM_INFO or BASIC_SET write.
type Ack bool

// DecodeAck decodes a status byte (0x00 rejected, 0x01 accepted).
func DecodeAck(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("ack", payload, 1); err != nil {
		return nil, err
	}
	ok, err := protocol.BoolAt(payload, 0)
	if err != nil {
		return nil, err
	}
	return Ack(ok), nil
}

func (a Ack) String() string {
	if a {
		return "ACK"
	}
	return "NAK"
}

// MarshalBinary encodes the status byte.
func (a Ack) MarshalBinary() ([]byte, error) {
	return protocol.AppendBool(nil, bool(a)), nil
}

// DeviceInfo answers DEVICE_INFO and FIRMWARE_INFO. Versions are stored
// in tenths on the wire (12 = 1.2).
type DeviceInfo struct {
	Name            string
	HardwareVersion decimal.Decimal
	SoftwareVersion decimal.Decimal
	BootVersion     decimal.Decimal
	RunArea         uint16
	Serial          [serialSize]byte
	Year            uint16
	Month           uint8
	Day             uint8
}

// DecodeDeviceInfo decodes the 40-byte identity record. The name is cut at
// the first NUL.
func DecodeDeviceInfo(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("device info", payload, DeviceInfoSize); err != nil {
		return nil, err
	}
	name := payload[:nameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if !utf8.Valid(name) {
		return nil, &protocol.FrameError{
			Type:    protocol.ErrTypeMalformedPayload,
			Message: "device name is not valid UTF-8",
		}
	}

	le := binary.LittleEndian
	info := &DeviceInfo{
		Name:            string(name),
		HardwareVersion: protocol.Unscale(le.Uint16(payload[16:]), 1),
		SoftwareVersion: protocol.Unscale(le.Uint16(payload[18:]), 1),
		BootVersion:     protocol.Unscale(le.Uint16(payload[20:]), 1),
		RunArea:         le.Uint16(payload[22:]),
		Year:            le.Uint16(payload[36:]),
		Month:           payload[38],
		Day:             payload[39],
	}
	copy(info.Serial[:], payload[24:36])
	return info, nil
}

// MarshalBinary encodes the record; the name is NUL-padded to 16 bytes.
func (d *DeviceInfo) MarshalBinary() ([]byte, error) {
	if len(d.Name) > nameSize {
		return nil, protocol.NewOutOfRangeError(
			fmt.Sprintf("device name %q longer than %d bytes", d.Name, nameSize), nil)
	}
	vers, err := protocol.ScaleAll(1, []string{"hardware version", "software version", "boot version"},
		d.HardwareVersion, d.SoftwareVersion, d.BootVersion)
	if err != nil {
		return nil, err
	}

	b := make([]byte, nameSize, DeviceInfoSize)
	copy(b, d.Name)
	for _, v := range vers {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	b = binary.LittleEndian.AppendUint16(b, d.RunArea)
	b = append(b, d.Serial[:]...)
	b = binary.LittleEndian.AppendUint16(b, d.Year)
	return append(b, d.Month, d.Day), nil
}

// SerialString renders the serial number as hex.
func (d *DeviceInfo) SerialString() string {
	return fmt.Sprintf("%X", d.Serial[:])
}

func (d *DeviceInfo) String() string {
	return fmt.Sprintf("%s hw=%s sw=%s boot=%s sn=%s built %04d-%02d-%02d",
		d.Name, d.HardwareVersion, d.SoftwareVersion, d.BootVersion,
		d.SerialString(), d.Year, d.Month, d.Day)
}

// SystemInfo holds the device settings. OTP is whole degrees, OPP is
// tenths of a watt on the wire.
type SystemInfo struct {
	OTP       decimal.Decimal // C
	OPP       decimal.Decimal // W
	Backlight uint8
	Volume    uint8
	REP       bool // reverse-connection protection
	AutoOn    bool
}

// DecodeSystemInfo decodes the 8-byte settings record.
func DecodeSystemInfo(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("system info", payload, SystemInfoSize); err != nil {
		return nil, err
	}
	rep, err := protocol.BoolAt(payload, 6)
	if err != nil {
		return nil, err
	}
	autoOn, err := protocol.BoolAt(payload, 7)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	return &SystemInfo{
		OTP:       protocol.Unscale(le.Uint16(payload[0:]), 0),
		OPP:       protocol.Unscale(le.Uint16(payload[2:]), 1),
		Backlight: payload[4],
		Volume:    payload[5],
		REP:       rep,
		AutoOn:    autoOn,
	}, nil
}

// MarshalBinary encodes the settings for a SYSTEM_INFO write.
func (s *SystemInfo) MarshalBinary() ([]byte, error) {
	otp, err := protocol.Scale(s.OTP, 0)
	if err != nil {
		return nil, fmt.Errorf("otp: %w", err)
	}
	opp, err := protocol.Scale(s.OPP, 1)
	if err != nil {
		return nil, fmt.Errorf("opp: %w", err)
	}
	b := make([]byte, 0, SystemInfoSize)
	b = binary.LittleEndian.AppendUint16(b, otp)
	b = binary.LittleEndian.AppendUint16(b, opp)
	b = append(b, s.Backlight, s.Volume)
	b = protocol.AppendBool(b, s.REP)
	return protocol.AppendBool(b, s.AutoOn), nil
}

func (s *SystemInfo) String() string {
	return fmt.Sprintf("otp=%sC opp=%sW backlight=%d volume=%d rep=%t auto_on=%t",
		s.OTP, s.OPP, s.Backlight, s.Volume, s.REP, s.AutoOn)
}

// Output is the regulation mode reported in BASIC_INFO.
type Output uint8

const (
	OutputCC      Output = 0
	OutputCV      Output = 1
	OutputStopped Output = 2
	OutputNoInput Output = 130
)

func (o Output) String() string {
	switch o {
	case OutputCC:
		return "CC"
	case OutputCV:
		return "CV"
	case OutputStopped:
		return "STOPPED"
	case OutputNoInput:
		return "NO_INPUT"
	default:
		return fmt.Sprintf("Output(%d)", uint8(o))
	}
}

// Valid reports whether o is a documented mode.
func (o Output) Valid() bool {
	switch o {
	case OutputCC, OutputCV, OutputStopped, OutputNoInput:
		return true
	}
	return false
}

// State is the protection state reported in BASIC_INFO.
type State uint8

const (
	StateOK State = iota
	StateOVP
	StateOCP
	StateOPP
	StateOTP
	StateREP
	StateUVP
)

var stateNames = [...]string{"OK", "OVP", "OCP", "OPP", "OTP", "REP", "UVP"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Valid reports whether s is a documented state.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

// BasicInfo is the live status record. Voltages and current are in
// thousandths, temperatures in tenths.
type BasicInfo struct {
	InputVoltage  decimal.Decimal // V
	OutputVoltage decimal.Decimal // V
	OutputCurrent decimal.Decimal // A
	MaxVoltage    decimal.Decimal // V
	Temperature1  decimal.Decimal // C
	Temperature2  decimal.Decimal // C
	DC5V          decimal.Decimal // V
	Output        Output
	State         State
}

// DecodeBasicInfo decodes the 16-byte status record.
func DecodeBasicInfo(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("basic info", payload, BasicInfoSize); err != nil {
		return nil, err
	}
	out := Output(payload[14])
	if !out.Valid() {
		return nil, protocol.NewInvalidValueError("output mode", int(payload[14]))
	}
	st := State(payload[15])
	if !st.Valid() {
		return nil, protocol.NewInvalidValueError("protection state", int(payload[15]))
	}

	u := func(off int) uint16 { return binary.LittleEndian.Uint16(payload[off:]) }
	return &BasicInfo{
		InputVoltage:  protocol.Unscale(u(0), 3),
		OutputVoltage: protocol.Unscale(u(2), 3),
		OutputCurrent: protocol.Unscale(u(4), 3),
		MaxVoltage:    protocol.Unscale(u(6), 3),
		Temperature1:  protocol.Unscale(u(8), 1),
		Temperature2:  protocol.Unscale(u(10), 1),
		DC5V:          protocol.Unscale(u(12), 3),
		Output:        out,
		State:         st,
	}, nil
}

// MarshalBinary encodes the status record. Only a device sends it; the
// encoder exists for simulation and tests.
func (b *BasicInfo) MarshalBinary() ([]byte, error) {
	milli, err := protocol.ScaleAll(3, []string{"input voltage", "output voltage", "output current", "max voltage"},
		b.InputVoltage, b.OutputVoltage, b.OutputCurrent, b.MaxVoltage)
	if err != nil {
		return nil, err
	}
	temps, err := protocol.ScaleAll(1, []string{"temperature 1", "temperature 2"}, b.Temperature1, b.Temperature2)
	if err != nil {
		return nil, err
	}
	dc5v, err := protocol.Scale(b.DC5V, 3)
	if err != nil {
		return nil, fmt.Errorf("dc5v: %w", err)
	}

	out := make([]byte, 0, BasicInfoSize)
	for _, v := range append(append(milli, temps...), dc5v) {
		out = binary.LittleEndian.AppendUint16(out, v)
	}
	return append(out, byte(b.Output), byte(b.State)), nil
}

// Power is output voltage times current.
func (b *BasicInfo) Power() decimal.Decimal {
	return b.OutputVoltage.Mul(b.OutputCurrent)
}

func (b *BasicInfo) String() string {
	return fmt.Sprintf("in=%sV out=%sV %sA max=%sV temp=%sC/%sC 5v=%sV %s %s",
		b.InputVoltage, b.OutputVoltage, b.OutputCurrent, b.MaxVoltage,
		b.Temperature1, b.Temperature2, b.DC5V, b.Output, b.State)
}

// BasicSetOp is the high nibble of the BASIC_SET action byte.
type BasicSetOp uint8

const (
	BasicGetPreset  BasicSetOp = 0
	BasicSetCurrent BasicSetOp = 2
	BasicSetPreset  BasicSetOp = 6
	BasicGetCurrent BasicSetOp = 8
	BasicUsePreset  BasicSetOp = 10
)

func (o BasicSetOp) String() string {
	switch o {
	case BasicGetPreset:
		return "GET_PRESET"
	case BasicSetCurrent:
		return "SET_CURRENT"
	case BasicSetPreset:
		return "SET_PRESET"
	case BasicGetCurrent:
		return "GET_CURRENT"
	case BasicUsePreset:
		return "USE_PRESET"
	default:
		return fmt.Sprintf("BasicSetOp(%d)", uint8(o))
	}
}

// Valid reports whether o is a documented operation.
func (o BasicSetOp) Valid() bool {
	switch o {
	case BasicGetPreset, BasicSetCurrent, BasicSetPreset, BasicGetCurrent, BasicUsePreset:
		return true
	}
	return false
}

// BasicSetAction packs an operation and a preset index into one byte:
// op<<4 | preset.
type BasicSetAction struct {
	Op     BasicSetOp
	Preset uint8
}

// ParseBasicSetAction unpacks an action byte.
func ParseBasicSetAction(b byte) (BasicSetAction, error) {
	a := BasicSetAction{Op: BasicSetOp(b >> 4), Preset: b & 0x0F}
	if !a.Op.Valid() {
		return BasicSetAction{}, protocol.NewInvalidValueError("basic set operation", int(a.Op))
	}
	return a, nil
}

// Byte packs the action. Preset must fit in four bits.
func (a BasicSetAction) Byte() (byte, error) {
	if a.Preset > 0x0F {
		return 0, protocol.NewOutOfRangeError(fmt.Sprintf("preset %d does not fit in 4 bits", a.Preset), nil)
	}
	return byte(a.Op)<<4 | a.Preset, nil
}

// MarshalBinary encodes a bare action request. USE_PRESET is sent as a
// zero-filled 10-byte record; every other operation is a single byte.
func (a BasicSetAction) MarshalBinary() ([]byte, error) {
	b, err := a.Byte()
	if err != nil {
		return nil, err
	}
	if a.Op == BasicUsePreset {
		out := make([]byte, BasicSetSize)
		out[0] = b
		return out, nil
	}
	return []byte{b}, nil
}

func (a BasicSetAction) String() string {
	return fmt.Sprintf("%s[%d]", a.Op, a.Preset)
}

// BasicSet is the output setting record used for presets and the live
// set point. All values are in thousandths on the wire.
type BasicSet struct {
	Action     BasicSetAction
	On         bool
	VoltageSet decimal.Decimal // V
	CurrentSet decimal.Decimal // A
	OVP        decimal.Decimal // V
	OCP        decimal.Decimal // A
}

// DecodeBasicSet decodes the 10-byte record.
func DecodeBasicSet(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("basic set", payload, BasicSetSize); err != nil {
		return nil, err
	}
	action, err := ParseBasicSetAction(payload[0])
	if err != nil {
		return nil, err
	}
	on, err := protocol.BoolAt(payload, 1)
	if err != nil {
		return nil, err
	}
	u := func(off int) uint16 { return binary.LittleEndian.Uint16(payload[off:]) }
	return &BasicSet{
		Action:     action,
		On:         on,
		VoltageSet: protocol.Unscale(u(2), 3),
		CurrentSet: protocol.Unscale(u(4), 3),
		OVP:        protocol.Unscale(u(6), 3),
		OCP:        protocol.Unscale(u(8), 3),
	}, nil
}

// MarshalBinary encodes the record. A value with more than three decimal
// places is rejected rather than rounded.
func (s *BasicSet) MarshalBinary() ([]byte, error) {
	action, err := s.Action.Byte()
	if err != nil {
		return nil, err
	}
	raw, err := protocol.ScaleAll(3, []string{"v_set", "i_set", "ovp", "ocp"},
		s.VoltageSet, s.CurrentSet, s.OVP, s.OCP)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, BasicSetSize)
	b = append(b, action)
	b = protocol.AppendBool(b, s.On)
	for _, v := range raw {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b, nil
}

func (s *BasicSet) String() string {
	on := "off"
	if s.On {
		on = "on"
	}
	return fmt.Sprintf("%s %s set=%sV/%sA ovp=%sV ocp=%sA",
		s.Action, on, s.VoltageSet, s.CurrentSet, s.OVP, s.OCP)
}
