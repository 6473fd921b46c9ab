package dps150

import (
	"fmt"

	"github.com/muurk/psulink/internal/protocol"
)

// USB identifiers of the DPS-150 CDC serial interface
const (
	VendorID  = 0x2E3C
	ProductID = 0x5740
)

// Dir is the first byte of every frame.
type Dir byte

const (
	DirHostToDevice Dir = 0xF1
	DirDeviceToHost Dir = 0xF0
)

func (d Dir) String() string {
	switch d {
	case DirHostToDevice:
		return "TX"
	case DirDeviceToHost:
		return "RX"
	default:
		return fmt.Sprintf("Dir(0x%02X)", byte(d))
	}
}

// Action selects what the device does with the field.
type Action byte

const (
	ActionGet  Action = 0xA1
	ActionBaud Action = 0xB0
	ActionSet  Action = 0xB1
	ActionLock Action = 0xC1
)

func (a Action) String() string {
	switch a {
	case ActionGet:
		return "GET"
	case ActionBaud:
		return "BAUD"
	case ActionSet:
		return "SET"
	case ActionLock:
		return "LOCK"
	default:
		return fmt.Sprintf("Action(0x%02X)", byte(a))
	}
}

// ParseAction resolves an action by name.
func ParseAction(name string) (Action, error) {
	for _, a := range []Action{ActionGet, ActionBaud, ActionSet, ActionLock} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q (want GET, BAUD, SET or LOCK)", name)
}

// Field is the tag byte selecting which register a frame concerns.
type Field byte

const (
	FieldNone         Field = 0x00
	FieldInputVoltage Field = 0xC0
	FieldVSet         Field = 0xC1
	FieldISet         Field = 0xC2
	FieldMeasurement  Field = 0xC3 // voltage, current, power
	FieldTemperature  Field = 0xC4

	// Preset slots M1..M6, voltage then current
	FieldM1Voltage Field = 0xC5
	FieldM1Current Field = 0xC6
	FieldM2Voltage Field = 0xC7
	FieldM2Current Field = 0xC8
	FieldM3Voltage Field = 0xC9
	FieldM3Current Field = 0xCA
	FieldM4Voltage Field = 0xCB
	FieldM4Current Field = 0xCC
	FieldM5Voltage Field = 0xCD
	FieldM5Current Field = 0xCE
	FieldM6Voltage Field = 0xCF
	FieldM6Current Field = 0xD0

	FieldOVP Field = 0xD1 // volts
	FieldOCP Field = 0xD2 // amps
	FieldOPP Field = 0xD3 // watts
	FieldOTP Field = 0xD4 // celsius
	FieldLVP Field = 0xD5 // volts

	FieldBrightness Field = 0xD6 // 1..14
	FieldVolume     Field = 0xD7 // 0..15

	FieldMetering   Field = 0xD8 // energy/capacity metering on
	FieldCapacity   Field = 0xD9 // Ah
	FieldEnergy     Field = 0xDA // Wh
	FieldRunning    Field = 0xDB
	FieldProtection Field = 0xDC
	FieldCVCC       Field = 0xDD // true = CV

	FieldModelName       Field = 0xDE
	FieldHardwareVersion Field = 0xDF
	FieldFirmwareVersion Field = 0xE0

	FieldIdentifier Field = 0xE1

	FieldMaxVoltage Field = 0xE2
	FieldMaxCurrent Field = 0xE3
	FieldMaxOVP     Field = 0xE4
	FieldMaxOCP     Field = 0xE5
	FieldMaxOPP     Field = 0xE6
	FieldMaxOTP     Field = 0xE7
	FieldMaxLVP     Field = 0xE8

	FieldAll Field = 0xFF
)

// Fields is the DPS-150 field catalog.
var Fields = protocol.NewCatalog("dps150 field",
	protocol.Opaque(byte(FieldNone), "NONE"),

	protocol.Scalar(byte(FieldInputVoltage), "INPUT_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldVSet), "V_SET", protocol.KindFloat32),
	protocol.Scalar(byte(FieldISet), "I_SET", protocol.KindFloat32),
	protocol.Composite(byte(FieldMeasurement), "MEASUREMENT", DecodeMeasurement),
	protocol.Scalar(byte(FieldTemperature), "TEMPERATURE", protocol.KindFloat32),

	protocol.Scalar(byte(FieldM1Voltage), "M1_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM1Current), "M1_CURRENT", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM2Voltage), "M2_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM2Current), "M2_CURRENT", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM3Voltage), "M3_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM3Current), "M3_CURRENT", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM4Voltage), "M4_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM4Current), "M4_CURRENT", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM5Voltage), "M5_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM5Current), "M5_CURRENT", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM6Voltage), "M6_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldM6Current), "M6_CURRENT", protocol.KindFloat32),

	protocol.Scalar(byte(FieldOVP), "OVP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldOCP), "OCP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldOPP), "OPP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldOTP), "OTP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldLVP), "LVP", protocol.KindFloat32),

	protocol.Scalar(byte(FieldBrightness), "BRIGHTNESS", protocol.KindUint8),
	protocol.Scalar(byte(FieldVolume), "VOLUME", protocol.KindUint8),

	protocol.Scalar(byte(FieldMetering), "METERING", protocol.KindBool),
	protocol.Scalar(byte(FieldCapacity), "CAPACITY", protocol.KindFloat32),
	protocol.Scalar(byte(FieldEnergy), "ENERGY", protocol.KindFloat32),
	protocol.Scalar(byte(FieldRunning), "RUNNING", protocol.KindBool),
	protocol.Composite(byte(FieldProtection), "PROTECTION", DecodeProtectionState),
	protocol.Scalar(byte(FieldCVCC), "CV_CC", protocol.KindBool),

	protocol.Scalar(byte(FieldModelName), "MODEL_NAME", protocol.KindText),
	protocol.Scalar(byte(FieldHardwareVersion), "HARDWARE_VERSION", protocol.KindText),
	protocol.Scalar(byte(FieldFirmwareVersion), "FIRMWARE_VERSION", protocol.KindText),

	protocol.Scalar(byte(FieldIdentifier), "IDENTIFIER", protocol.KindUint8),

	protocol.Scalar(byte(FieldMaxVoltage), "MAX_VOLTAGE", protocol.KindFloat32),
	protocol.Scalar(byte(FieldMaxCurrent), "MAX_CURRENT", protocol.KindFloat32),
	protocol.Scalar(byte(FieldMaxOVP), "MAX_OVP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldMaxOCP), "MAX_OCP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldMaxOPP), "MAX_OPP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldMaxOTP), "MAX_OTP", protocol.KindFloat32),
	protocol.Scalar(byte(FieldMaxLVP), "MAX_LVP", protocol.KindFloat32),

	protocol.Composite(byte(FieldAll), "ALL", DecodeDump),
)

func (f Field) String() string {
	return Fields.TagName(byte(f))
}

// LookupField resolves a field by catalog name ("V_SET", "v-set") or by
// hex tag ("0xC1").
func LookupField(name string) (Field, error) {
	if e, ok := Fields.ByName(name); ok {
		return Field(e.Tag), nil
	}
	var tag byte
	if _, err := fmt.Sscanf(name, "0x%02x", &tag); err == nil {
		if _, ok := Fields.Lookup(tag); ok {
			return Field(tag), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}
