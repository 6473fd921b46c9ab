package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/psulink/internal/config"
	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/ui"
)

var statusAsJSON bool

func init() {
	dumpCmd.Flags().BoolVar(&statusAsJSON, "json", false, "Print the record as JSON")
	infoCmd.Flags().BoolVar(&statusAsJSON, "json", false, "Print the records as JSON")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(infoCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Read the complete device state",
	Long: `DPS-150: lock, announce the baud rate, read the identity fields and the
full 139-byte state record, then unlock.

DP100: read the live status and the live output setting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget()
		if err != nil {
			return err
		}
		if !statusAsJSON {
			fmt.Println(ui.NewHeader("Device state", "psuctl dump", t.params()).Render())
		}
		if t.Profile.Protocol == config.ProtocolDP100 {
			return withDP100(t, dumpDP100)
		}
		return withDPS150(t, func(s *dps150.Session) error {
			return dumpDPS150(t, s)
		})
	},
}

func dumpDPS150(t *target, s *dps150.Session) error {
	readings, err := s.Handshake(t.Profile.BaudRate())
	if err != nil {
		return err
	}
	state := s.Snapshot()
	if state.Frames == 0 {
		return fmt.Errorf("no answer from %s after %d frame(s)", t.Profile.Port, len(readings))
	}

	if statusAsJSON {
		return printJSON(state)
	}
	fmt.Println(ui.RenderTable(nil, dps150StateRows(&state)))
	if id := t.Profile.Identifier; id != 0 && id != state.Identifier {
		fmt.Println(ui.RenderWarning("Unexpected device", map[string]string{
			"Expected": fmt.Sprint(id),
			"Reported": fmt.Sprint(state.Identifier),
		}))
	}
	return nil
}

func onOffText(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// dps150StateRows lays the folded state out as name/value rows.
func dps150StateRows(s *dps150.State) [][]string {
	mode := "CC"
	if s.CV {
		mode = "CV"
	}
	rows := [][]string{
		{"Model", s.ModelName},
		{"Firmware", s.FirmwareVersion},
		{"Hardware", s.HardwareVersion},
		{"Identifier", fmt.Sprint(s.Identifier)},
		{"Input", fmt.Sprintf("%.2f V", s.InputVoltage)},
		{"Set point", s.Set.String()},
		{"Output", s.Measurement.String()},
		{"Running", onOffText(s.Running)},
		{"Mode", mode},
		{"Protection", s.State.String()},
		{"Temperature", fmt.Sprintf("%.1f C", s.Temperature)},
		{"Limits", fmt.Sprintf("OVP %.2fV OCP %.3fA OPP %.1fW OTP %.0fC LVP %.2fV",
			s.Protection.OVP, s.Protection.OCP, s.Protection.OPP, s.Protection.OTP, s.Protection.LVP)},
		{"Maximum", s.Max.String()},
		{"Metering", fmt.Sprintf("%s, %.3f Ah, %.3f Wh", onOffText(s.Metering), s.Capacity, s.Energy)},
		{"Brightness", fmt.Sprint(s.Brightness)},
		{"Volume", fmt.Sprint(s.Volume)},
	}
	for i, p := range s.Presets {
		rows = append(rows, []string{fmt.Sprintf("M%d", i+1), p.String()})
	}
	return rows
}

// dp100Status is the dump output for a DP100.
type dp100Status struct {
	Status  *dp100.BasicInfo `json:"status"`
	Setting *dp100.BasicSet  `json:"setting"`
}

func dumpDP100(s *dp100.Session) error {
	info, err := s.BasicInfo()
	if err != nil {
		return err
	}
	setting, err := s.Current()
	if err != nil {
		return err
	}
	if statusAsJSON {
		return printJSON(dp100Status{Status: info, Setting: setting})
	}
	fmt.Println(ui.RenderTable(nil, [][]string{
		{"Input", info.InputVoltage.String() + " V"},
		{"Output", fmt.Sprintf("%s V %s A %s W", info.OutputVoltage, info.OutputCurrent, info.Power().StringFixed(3))},
		{"Mode", info.Output.String()},
		{"Protection", info.State.String()},
		{"Max voltage", info.MaxVoltage.String() + " V"},
		{"Temperature", fmt.Sprintf("%s C / %s C", info.Temperature1, info.Temperature2)},
		{"USB 5V", info.DC5V.String() + " V"},
		{"Setting", setting.String()},
	}))
	return nil
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device identity and stored presets",
	Long: `DP100: read DEVICE_INFO, FIRMWARE_INFO, SYSTEM_INFO and the ten preset slots.

DPS-150: run the handshake and show model, firmware, hardware and the six
M1..M6 presets.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget()
		if err != nil {
			return err
		}
		if !statusAsJSON {
			fmt.Println(ui.NewHeader("Device information", "psuctl info", t.params()).Render())
		}
		if t.Profile.Protocol == config.ProtocolDP100 {
			return withDP100(t, infoDP100)
		}
		return withDPS150(t, func(s *dps150.Session) error {
			if _, err := s.Handshake(t.Profile.BaudRate()); err != nil {
				return err
			}
			state := s.Snapshot()
			if statusAsJSON {
				return printJSON(map[string]any{
					"model":    state.ModelName,
					"firmware": state.FirmwareVersion,
					"hardware": state.HardwareVersion,
					"presets":  state.Presets,
				})
			}
			rows := dps150StateRows(&state)
			fmt.Println(ui.RenderTable(nil, append(rows[:4:4], rows[len(rows)-dps150.PresetCount:]...)))
			return nil
		})
	},
}

// dp100Info is the info output for a DP100.
type dp100Info struct {
	Device   *dp100.DeviceInfo `json:"device"`
	Firmware *dp100.DeviceInfo `json:"firmware"`
	System   *dp100.SystemInfo `json:"system"`
	Presets  []*dp100.BasicSet `json:"presets"`
}

func infoDP100(s *dp100.Session) error {
	var out dp100Info
	var err error
	if out.Device, err = s.DeviceInfo(); err != nil {
		return err
	}
	if out.Firmware, err = s.FirmwareInfo(); err != nil {
		return err
	}
	if out.System, err = s.SystemInfo(); err != nil {
		return err
	}
	if out.Presets, err = s.Presets(); err != nil {
		return err
	}

	if statusAsJSON {
		return printJSON(out)
	}
	rows := [][]string{
		{"Device", out.Device.String()},
		{"Bootloader", out.Firmware.String()},
		{"Settings", out.System.String()},
	}
	for i, p := range out.Presets {
		rows = append(rows, []string{fmt.Sprintf("Preset %d", i), strings.TrimSpace(p.String())})
	}
	fmt.Println(ui.RenderTable(nil, rows))
	return nil
}
