package dps150

import (
	"fmt"
	"strings"

	"github.com/muurk/psulink/internal/protocol"
)

const (
	// MeasurementSize is three little-endian floats
	MeasurementSize = 12
	// DumpSize is the length of the FieldAll payload
	DumpSize = 139
	// PresetCount is the number of M1..M6 memory slots
	PresetCount = 6
)

// Measurement is the live output reading.
type Measurement struct {
	Voltage float32 // V
	Current float32 // A
	Power   float32 // W
}

// DecodeMeasurement decodes a MEASUREMENT payload.
func DecodeMeasurement(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("measurement", payload, MeasurementSize); err != nil {
		return nil, err
	}
	m := readMeasurement(payload, 0)
	return m, nil
}

func readMeasurement(b []byte, off int) Measurement {
	return Measurement{
		Voltage: protocol.Float32At(b, off),
		Current: protocol.Float32At(b, off+4),
		Power:   protocol.Float32At(b, off+8),
	}
}

func (m Measurement) appendTo(dst []byte) []byte {
	dst = protocol.AppendFloat32(dst, m.Voltage)
	dst = protocol.AppendFloat32(dst, m.Current)
	return protocol.AppendFloat32(dst, m.Power)
}

// MarshalBinary encodes the measurement as three little-endian floats.
func (m Measurement) MarshalBinary() ([]byte, error) {
	return m.appendTo(make([]byte, 0, MeasurementSize)), nil
}

func (m Measurement) String() string {
	return fmt.Sprintf("%.3fV %.3fA %.3fW", m.Voltage, m.Current, m.Power)
}

// ProtectionState is the active protection trip, if any.
type ProtectionState uint8

const (
	ProtectionOK ProtectionState = iota
	ProtectionOVP
	ProtectionOCP
	ProtectionOPP
	ProtectionOTP
	ProtectionLVP
	ProtectionREP
)

var protectionNames = [...]string{"OK", "OVP", "OCP", "OPP", "OTP", "LVP", "REP"}

func (s ProtectionState) String() string {
	if int(s) < len(protectionNames) {
		return protectionNames[s]
	}
	return fmt.Sprintf("ProtectionState(%d)", uint8(s))
}

// Valid reports whether s is a documented state.
func (s ProtectionState) Valid() bool {
	return int(s) < len(protectionNames)
}

// Tripped reports whether any protection has fired.
func (s ProtectionState) Tripped() bool {
	return s != ProtectionOK
}

// MarshalBinary encodes the state as one byte.
func (s ProtectionState) MarshalBinary() ([]byte, error) {
	return []byte{byte(s)}, nil
}

// DecodeProtectionState decodes a PROTECTION payload. Undocumented states
// are rejected.
func DecodeProtectionState(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("protection state", payload, 1); err != nil {
		return nil, err
	}
	s := ProtectionState(payload[0])
	if !s.Valid() {
		return nil, protocol.NewInvalidValueError("protection state", int(payload[0]))
	}
	return s, nil
}

// Preset is a voltage/current pair, used for the set point and M1..M6.
type Preset struct {
	Voltage float32
	Current float32
}

func (p Preset) String() string {
	return fmt.Sprintf("%.3fV %.3fA", p.Voltage, p.Current)
}

// Limits holds the five protection thresholds.
type Limits struct {
	OVP float32 // V
	OCP float32 // A
	OPP float32 // W
	OTP float32 // C
	LVP float32 // V
}

// Dump is the FieldAll record. Field order and widths are fixed by the
// firmware:
//
//	offset  size  field
//	0       4     input voltage
//	4       8     set point (voltage, current)
//	12      12    measurement (voltage, current, power)
//	24      4     temperature
//	28      48    presets M1..M6 (voltage, current)
//	76      20    protection (OVP, OCP, OPP, OTP, LVP)
//	96      1     brightness
//	97      1     volume
//	98      1     metering
//	99      4     capacity
//	103     4     energy
//	107     1     running
//	108     1     protection state
//	109     1     CV (1) / CC (0)
//	110     1     identifier
//	111     8     max set point (voltage, current)
//	119     20    max protection (OVP, OCP, OPP, OTP, LVP)
type Dump struct {
	InputVoltage  float32
	Set           Preset
	Measurement   Measurement
	Temperature   float32
	Presets       [PresetCount]Preset
	Protection    Limits
	Brightness    uint8
	Volume        uint8
	Metering      bool
	Capacity      float32 // Ah
	Energy        float32 // Wh
	Running       bool
	State         ProtectionState
	CV            bool
	Identifier    uint8
	Max           Preset
	MaxProtection Limits
}

// DecodeDump decodes a FieldAll payload. Every flag byte must be 0x00 or
// 0x01; the protection state byte is kept as-is so a new firmware state
// does not hide the rest of the record.
func DecodeDump(payload []byte) (protocol.Value, error) {
	if err := protocol.CheckLength("dump", payload, DumpSize); err != nil {
		return nil, err
	}

	r := dumpReader{b: payload}
	d := &Dump{}
	d.InputVoltage = r.float()
	d.Set = r.preset()
	d.Measurement = Measurement{Voltage: r.float(), Current: r.float(), Power: r.float()}
	d.Temperature = r.float()
	for i := range d.Presets {
		d.Presets[i] = r.preset()
	}
	d.Protection = r.limits()
	d.Brightness = r.u8()
	d.Volume = r.u8()
	d.Metering = r.flag()
	d.Capacity = r.float()
	d.Energy = r.float()
	d.Running = r.flag()
	d.State = ProtectionState(r.u8())
	d.CV = r.flag()
	d.Identifier = r.u8()
	d.Max = r.preset()
	d.MaxProtection = r.limits()

	if r.err != nil {
		return nil, r.err
	}
	return d, nil
}

// MarshalBinary encodes the dump in firmware order.
func (d *Dump) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, DumpSize)
	b = protocol.AppendFloat32(b, d.InputVoltage)
	b = appendPreset(b, d.Set)
	b = d.Measurement.appendTo(b)
	b = protocol.AppendFloat32(b, d.Temperature)
	for _, p := range d.Presets {
		b = appendPreset(b, p)
	}
	b = appendLimits(b, d.Protection)
	b = append(b, d.Brightness, d.Volume)
	b = protocol.AppendBool(b, d.Metering)
	b = protocol.AppendFloat32(b, d.Capacity)
	b = protocol.AppendFloat32(b, d.Energy)
	b = protocol.AppendBool(b, d.Running)
	b = append(b, byte(d.State))
	b = protocol.AppendBool(b, d.CV)
	b = append(b, d.Identifier)
	b = appendPreset(b, d.Max)
	b = appendLimits(b, d.MaxProtection)
	return b, nil
}

func (d *Dump) String() string {
	mode := "CC"
	if d.CV {
		mode = "CV"
	}
	run := "off"
	if d.Running {
		run = "on"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "in=%.2fV set=%s out=%s temp=%.1fC %s %s state=%s",
		d.InputVoltage, d.Set, d.Measurement, d.Temperature, mode, run, d.State)
	return sb.String()
}

func appendPreset(dst []byte, p Preset) []byte {
	dst = protocol.AppendFloat32(dst, p.Voltage)
	return protocol.AppendFloat32(dst, p.Current)
}

func appendLimits(dst []byte, l Limits) []byte {
	for _, v := range []float32{l.OVP, l.OCP, l.OPP, l.OTP, l.LVP} {
		dst = protocol.AppendFloat32(dst, v)
	}
	return dst
}

// dumpReader walks a payload whose length has already been checked. The
// first invalid flag is kept in err.
type dumpReader struct {
	b   []byte
	off int
	err error
}

func (r *dumpReader) float() float32 {
	v := protocol.Float32At(r.b, r.off)
	r.off += 4
	return v
}

func (r *dumpReader) u8() uint8 {
	v := r.b[r.off]
	r.off++
	return v
}

func (r *dumpReader) flag() bool {
	v, err := protocol.BoolAt(r.b, r.off)
	if err != nil && r.err == nil {
		r.err = err
	}
	r.off++
	return v
}

func (r *dumpReader) preset() Preset {
	return Preset{Voltage: r.float(), Current: r.float()}
}

func (r *dumpReader) limits() Limits {
	return Limits{OVP: r.float(), OCP: r.float(), OPP: r.float(), OTP: r.float(), LVP: r.float()}
}
