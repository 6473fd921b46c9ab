package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/psulink/internal/bridge"
	"github.com/muurk/psulink/internal/config"
	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/logging"
	"github.com/muurk/psulink/internal/protocol"
	"github.com/muurk/psulink/internal/transport"
	"github.com/muurk/psulink/internal/ui"
)

// Connection flags (persistent on root)
var (
	profileName  string
	portFlag     string
	protocolFlag string
	baudFlag     int
	timeoutFlag  time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Connection profile from the config file (default: default_profile)")
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "Device path or tcp://host:port (skips the config file)")
	rootCmd.PersistentFlags().StringVar(&protocolFlag, "protocol", "", "Protocol: dps150 or dp100")
	rootCmd.PersistentFlags().IntVar(&baudFlag, "baud", 0, "DPS-150 line rate to announce")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 0, "Read timeout (default: profile or 500ms)")
}

// target is a resolved connection: a profile with flag overrides applied.
type target struct {
	Name    string
	Profile config.Profile
}

func (t *target) timeout() time.Duration {
	if timeoutFlag > 0 {
		return timeoutFlag
	}
	return t.Profile.Timeout(transport.DefaultTimeout)
}

func (t *target) params() map[string]string {
	p := map[string]string{
		"Port":     t.Profile.Port,
		"Protocol": t.Profile.Protocol,
	}
	if t.Name != "" {
		p["Profile"] = t.Name
	}
	if t.Profile.Protocol == config.ProtocolDPS150 {
		p["Baud"] = fmt.Sprint(t.Profile.BaudRate())
	}
	return p
}

// resolveTarget picks the device from --port, or from the selected profile
// with --protocol and --baud layered on top.
func resolveTarget() (*target, error) {
	t := &target{}
	if portFlag != "" {
		t.Profile = config.Profile{Protocol: config.ProtocolDPS150, Port: portFlag}
	} else {
		registry, err := config.LoadRegistry()
		if err != nil {
			return nil, err
		}
		p, err := registry.GetProfile(profileName)
		if err != nil {
			return nil, fmt.Errorf("%w (use --port, or 'psuctl config init')", err)
		}
		t.Profile = *p
		t.Name = profileName
		if t.Name == "" {
			t.Name = registry.Preferences.DefaultProfile
		}
	}

	if protocolFlag != "" {
		t.Profile.Protocol = strings.ToLower(protocolFlag)
	}
	if baudFlag != 0 {
		t.Profile.Baud = baudFlag
	}
	if err := t.Profile.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// openPort opens the transport for t. DP100 ports are wrapped so every
// write fills one HID report.
func openPort(t *target) (transport.Port, error) {
	port, err := transport.Open(t.Profile.Port, t.timeout())
	if err != nil {
		return nil, err
	}
	logging.Debug("Port opened",
		zap.String("port", t.Profile.Port),
		zap.String("protocol", t.Profile.Protocol),
		zap.Duration("timeout", t.timeout()),
	)
	if t.Profile.Protocol == config.ProtocolDP100 {
		return transport.NewReportPort(port, dp100.ReportSize), nil
	}
	return port, nil
}

// withDPS150 runs fn with a session that has locked the panel and
// announced the baud rate. The panel is unlocked afterwards, even when fn
// fails.
func withDPS150(t *target, fn func(*dps150.Session) error) error {
	port, err := openPort(t)
	if err != nil {
		return err
	}
	defer port.Close()

	session := dps150.NewSession(port)
	if err := session.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := session.Unlock(); err != nil {
			logging.Warn("Unlock failed", zap.Error(err))
		}
	}()
	if err := session.SetBaud(t.Profile.BaudRate()); err != nil {
		return err
	}
	return fn(session)
}

func withDP100(t *target, fn func(*dp100.Session) error) error {
	port, err := openPort(t)
	if err != nil {
		return err
	}
	defer port.Close()
	return fn(dp100.NewSession(port))
}

// withDevice exposes either protocol through the bridge's Device adapter,
// so get and set share one code path with the network bridge.
func withDevice(t *target, fn func(bridge.Device) error) error {
	if t.Profile.Protocol == config.ProtocolDP100 {
		return withDP100(t, func(s *dp100.Session) error {
			return fn(bridge.NewDP100Device(s))
		})
	}
	return withDPS150(t, func(s *dps150.Session) error {
		return fn(bridge.NewDPS150Device(s))
	})
}

func requireDPS150(t *target, what string) error {
	if t.Profile.Protocol != config.ProtocolDPS150 {
		return fmt.Errorf("%s applies to the DPS-150 only (profile protocol is %s)", what, t.Profile.Protocol)
	}
	return nil
}

func printEvents(events []bridge.Event) {
	for _, ev := range events {
		if ev.FrameHex != "" {
			fmt.Println(ui.RenderFrame("RX", mustHex(ev.FrameHex)))
		}
		var err error
		if ev.Error != "" {
			err = errors.New(ev.Error)
		}
		fmt.Println(ui.RenderField(ev.Tag, ev.Text, err))
	}
}

func init() {
	setCmd.Flags().StringVar(&payloadKind, "kind", "", "Payload kind: float, u8, bool, hex (default: from the field catalog)")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(baudCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <field|operation>",
	Short: "Read one field from the device",
	Long: `Request one DPS-150 field, or run one DP100 read operation, and print
every frame the device answered with.`,
	Example: `  psuctl get MODEL_NAME
  psuctl get 0xC3
  psuctl --profile usb get BASIC_INFO`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget()
		if err != nil {
			return err
		}
		return withDevice(t, func(dev bridge.Device) error {
			events, err := dev.Apply(bridge.Command{Action: "get", Tag: args[0]})
			printEvents(events)
			return err
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Write one field on the device",
	Long: `Write a DPS-150 field, or one of the DP100 settings VOLTAGE, CURRENT,
OUTPUT, PRESET and BACKLIGHT. The device's answer is printed.

DP100 voltages and currents are exact to the millivolt/milliamp; a value
with more decimal places is refused rather than rounded.`,
	Example: `  psuctl set V_SET 12
  psuctl set RUNNING true
  psuctl set BRIGHTNESS 10
  psuctl --profile usb set VOLTAGE 3.3
  psuctl --profile usb set OUTPUT on`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget()
		if err != nil {
			return err
		}
		c, err := setCommand(t.Profile.Protocol, args[0], args[1])
		if err != nil {
			return err
		}
		return withDevice(t, func(dev bridge.Device) error {
			events, err := dev.Apply(c)
			printEvents(events)
			return err
		})
	},
}

// setCommand turns command-line text into a typed bridge command.
func setCommand(proto, tag, value string) (bridge.Command, error) {
	c := bridge.Command{Tag: tag, Kind: payloadKind, Value: value}
	if c.Kind != "" {
		return c, nil
	}

	if proto == config.ProtocolDP100 {
		switch strings.ToUpper(tag) {
		case "OUTPUT":
			c.Kind = "bool"
			c.Value = onOff(value)
		case "PRESET", "BACKLIGHT":
			c.Kind = "u8"
		}
		return c, nil
	}

	if strings.EqualFold(tag, "LOCK") {
		c.Kind = "bool"
		c.Value = onOff(value)
		return c, nil
	}
	field, err := dps150.LookupField(tag)
	if err != nil {
		return c, err
	}
	e, _ := dps150.Fields.Lookup(byte(field))
	if c.Kind = e.Kind.PayloadKind(); c.Kind == "" || c.Kind == "empty" {
		c.Kind = "hex"
	}
	if c.Kind == "bool" {
		c.Value = onOff(value)
	}
	return c, nil
}

// onOff maps on/off to the bool spellings ParseValue accepts.
func onOff(s string) string {
	switch strings.ToLower(s) {
	case "on", "yes", "enable", "enabled":
		return "true"
	case "off", "no", "disable", "disabled":
		return "false"
	}
	return s
}

var lockCmd = &cobra.Command{
	Use:   "lock [on|off]",
	Short: "Lock or unlock the DPS-150 front panel",
	Long: `Lock the front panel (the default) or hand control back to it.

Other device commands lock the panel while they run and unlock it when
they finish; use this command to keep it locked between runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget()
		if err != nil {
			return err
		}
		if err := requireDPS150(t, "lock"); err != nil {
			return err
		}
		lock := true
		if len(args) == 1 {
			p, err := protocol.ParseValue("bool", onOff(args[0]))
			if err != nil {
				return err
			}
			b, _ := p.Bytes()
			lock = b[0] == 1
		}

		port, err := openPort(t)
		if err != nil {
			return err
		}
		defer port.Close()
		session := dps150.NewSession(port)
		if lock {
			err = session.Lock()
		} else {
			err = session.Unlock()
		}
		if err != nil {
			return err
		}
		state := "unlocked"
		if lock {
			state = "locked"
		}
		fmt.Println(ui.RenderSuccess("Front panel "+state, t.params()))
		return nil
	},
}

var baudCmd = &cobra.Command{
	Use:   "baud <rate>",
	Short: "Announce the host line rate to the DPS-150",
	Long: fmt.Sprintf(`Send the BAUD action for one of the supported rates: %v.

The serial port itself must be configured to the same rate outside psuctl.`, dps150.BaudRates()),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget()
		if err != nil {
			return err
		}
		if err := requireDPS150(t, "baud"); err != nil {
			return err
		}
		var rate int
		if _, err := fmt.Sscan(args[0], &rate); err != nil {
			return fmt.Errorf("invalid baud rate %q", args[0])
		}

		port, err := openPort(t)
		if err != nil {
			return err
		}
		defer port.Close()
		if err := dps150.NewSession(port).SetBaud(rate); err != nil {
			return err
		}
		fmt.Println(ui.RenderSuccess("Baud rate announced", map[string]string{
			"Rate":  fmt.Sprint(rate),
			"Index": fmt.Sprint(dps150.BaudRateIndex(rate)),
		}))
		return nil
	},
}
