package dps150

import (
	"testing"

	"github.com/muurk/psulink/internal/protocol"
)

func TestStateApply(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value protocol.Value
		check func(State) bool
	}{
		{"v set", FieldVSet, protocol.Float32Value(3.3), func(s State) bool { return s.Set.Voltage == 3.3 }},
		{"preset m2 current", FieldM2Current, protocol.Float32Value(0.2), func(s State) bool { return s.Presets[1].Current == 0.2 }},
		{"preset m6 voltage", FieldM6Voltage, protocol.Float32Value(24), func(s State) bool { return s.Presets[5].Voltage == 24 }},
		{"max lvp", FieldMaxLVP, protocol.Float32Value(30), func(s State) bool { return s.MaxProtection.LVP == 30 }},
		{"running", FieldRunning, protocol.BoolValue(true), func(s State) bool { return s.Running }},
		{"brightness", FieldBrightness, protocol.Uint8Value(9), func(s State) bool { return s.Brightness == 9 }},
		{"model", FieldModelName, protocol.TextValue("DPS-150"), func(s State) bool { return s.ModelName == "DPS-150" }},
		{"protection", FieldProtection, ProtectionOTP, func(s State) bool { return s.State == ProtectionOTP }},
		{"measurement", FieldMeasurement, Measurement{Voltage: 1, Current: 2, Power: 2}, func(s State) bool { return s.Measurement.Power == 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s State
			if !s.Apply(tt.field, tt.value) {
				t.Fatal("Apply() = false")
			}
			if !tt.check(s) || s.Frames != 1 {
				t.Errorf("state after Apply = %+v", s)
			}
		})
	}
}

func TestStateApplyRejectsMismatch(t *testing.T) {
	var s State
	if s.Apply(FieldBrightness, protocol.Float32Value(1)) {
		t.Error("float applied to BRIGHTNESS")
	}
	if s.Apply(FieldVSet, nil) {
		t.Error("nil value applied")
	}
	if s.Apply(FieldMeasurement, sampleDump()) {
		t.Error("dump applied to MEASUREMENT")
	}
	if s.Frames != 0 {
		t.Errorf("Frames = %d, want 0", s.Frames)
	}
}

func TestPresetMapping(t *testing.T) {
	for slot := 0; slot < PresetCount; slot++ {
		v, c, ok := PresetFields(slot)
		if !ok {
			t.Fatalf("PresetFields(%d) not ok", slot)
		}
		if got, isV, ok := PresetSlot(v); !ok || got != slot || !isV {
			t.Errorf("PresetSlot(%s) = %d, %v, %v", v, got, isV, ok)
		}
		if got, isV, ok := PresetSlot(c); !ok || got != slot || isV {
			t.Errorf("PresetSlot(%s) = %d, %v, %v", c, got, isV, ok)
		}
	}
	if _, _, ok := PresetFields(PresetCount); ok {
		t.Error("PresetFields(6) ok")
	}
	if _, _, ok := PresetSlot(FieldOVP); ok {
		t.Error("PresetSlot(OVP) ok")
	}
}
