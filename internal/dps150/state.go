package dps150

import (
	"github.com/muurk/psulink/internal/protocol"
)

// State is the host-side picture of a DPS-150, folded from decoded frames.
// A full dump replaces every register at once; single-field frames update
// just their register.
type State struct {
	Dump

	ModelName       string
	HardwareVersion string
	FirmwareVersion string

	// Frames counts values applied since the state was created
	Frames int
}

// Apply folds one decoded value into the state. It returns false when the
// field/value pair was not recognised and nothing changed.
func (s *State) Apply(field Field, v protocol.Value) bool {
	if v == nil {
		return false
	}
	if !s.apply(field, v) {
		return false
	}
	s.Frames++
	return true
}

func (s *State) apply(field Field, v protocol.Value) bool {
	switch val := v.(type) {
	case *Dump:
		if field != FieldAll {
			return false
		}
		s.Dump = *val
		return true
	case Measurement:
		if field != FieldMeasurement {
			return false
		}
		s.Measurement = val
		return true
	case ProtectionState:
		if field != FieldProtection {
			return false
		}
		s.State = val
		return true
	case protocol.TextValue:
		return s.applyText(field, string(val))
	case protocol.Uint8Value:
		return s.applyUint8(field, uint8(val))
	case protocol.BoolValue:
		return s.applyBool(field, bool(val))
	case protocol.Float32Value:
		if p := s.floatRegister(field); p != nil {
			*p = float32(val)
			return true
		}
	}
	return false
}

func (s *State) applyText(field Field, v string) bool {
	switch field {
	case FieldModelName:
		s.ModelName = v
	case FieldHardwareVersion:
		s.HardwareVersion = v
	case FieldFirmwareVersion:
		s.FirmwareVersion = v
	default:
		return false
	}
	return true
}

func (s *State) applyUint8(field Field, v uint8) bool {
	switch field {
	case FieldBrightness:
		s.Brightness = v
	case FieldVolume:
		s.Volume = v
	case FieldIdentifier:
		s.Identifier = v
	default:
		return false
	}
	return true
}

func (s *State) applyBool(field Field, v bool) bool {
	switch field {
	case FieldMetering:
		s.Metering = v
	case FieldRunning:
		s.Running = v
	case FieldCVCC:
		s.CV = v
	default:
		return false
	}
	return true
}

// floatRegister maps a float field to the state member it updates.
func (s *State) floatRegister(field Field) *float32 {
	switch field {
	case FieldInputVoltage:
		return &s.InputVoltage
	case FieldVSet:
		return &s.Set.Voltage
	case FieldISet:
		return &s.Set.Current
	case FieldTemperature:
		return &s.Temperature
	case FieldOVP:
		return &s.Protection.OVP
	case FieldOCP:
		return &s.Protection.OCP
	case FieldOPP:
		return &s.Protection.OPP
	case FieldOTP:
		return &s.Protection.OTP
	case FieldLVP:
		return &s.Protection.LVP
	case FieldCapacity:
		return &s.Capacity
	case FieldEnergy:
		return &s.Energy
	case FieldMaxVoltage:
		return &s.Max.Voltage
	case FieldMaxCurrent:
		return &s.Max.Current
	case FieldMaxOVP:
		return &s.MaxProtection.OVP
	case FieldMaxOCP:
		return &s.MaxProtection.OCP
	case FieldMaxOPP:
		return &s.MaxProtection.OPP
	case FieldMaxOTP:
		return &s.MaxProtection.OTP
	case FieldMaxLVP:
		return &s.MaxProtection.LVP
	}
	if slot, isVoltage, ok := PresetSlot(field); ok {
		if isVoltage {
			return &s.Presets[slot].Voltage
		}
		return &s.Presets[slot].Current
	}
	return nil
}

// PresetSlot maps M1_VOLTAGE..M6_CURRENT to a zero-based slot index.
func PresetSlot(field Field) (slot int, isVoltage bool, ok bool) {
	if field < FieldM1Voltage || field > FieldM6Current {
		return 0, false, false
	}
	off := int(field - FieldM1Voltage)
	return off / 2, off%2 == 0, true
}

// PresetFields returns the voltage and current fields of a zero-based slot.
func PresetFields(slot int) (voltage, current Field, ok bool) {
	if slot < 0 || slot >= PresetCount {
		return 0, 0, false
	}
	v := FieldM1Voltage + Field(slot*2)
	return v, v + 1, true
}
