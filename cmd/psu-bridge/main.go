// Psu-bridge exposes one bench power supply to the network.
//
// It owns the serial or HID port, polls the device on a fixed interval and
// streams every decoded frame to WebSocket clients as JSON. Clients send
// get/set commands back over the same socket. The bridge can announce
// itself over mDNS so 'psuctl bridges' finds it, and can record every
// frame to a JSONL capture file.
//
// Usage:
//
//	psu-bridge serve [flags]
//
// See 'psu-bridge serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/psulink/internal/bridge"
	"github.com/muurk/psulink/internal/config"
	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/logging"
	"github.com/muurk/psulink/internal/transport"
	"github.com/muurk/psulink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "psu-bridge",
	Short: "Network bridge for DPS-150 and DP100 power supplies",
	Long: `Serve one bench power supply over WebSocket.

Readings are pushed to every client as JSON events; clients send commands
({"action":"set","tag":"V_SET","value":5}) on the same connection.
The latest reading per tag is also available at GET /state.

Use 'psuctl' for one-off commands against a locally attached supply.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve flags
var (
	profileName  string
	portPath     string
	protocolName string
	baudRate     int
	listenAddr   string
	interval     time.Duration
	captureDir   string
	noAdvertise  bool
	instanceName string
	logLevel     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the device and start the WebSocket server",
	Long: `Open the device named by --port or by a config profile and serve it.

Defaults for the listen address, poll interval, capture directory and mDNS
announcement come from the preferences section of the psulink config file.
A DPS-150 has its front panel locked for as long as the bridge runs.`,
	Example: `  # Serve the default profile
  psu-bridge serve

  # Serve a DPS-150 without a config file
  psu-bridge serve --port /dev/ttyACM0 --addr :8150

  # DP100 with captures and a faster poll
  psu-bridge serve --profile usb --interval 250ms --capture-dir ./captures

  # No mDNS, verbose logs
  psu-bridge serve --no-advertise --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&profileName, "profile", "", "Connection profile (default: default_profile)")
	serveCmd.Flags().StringVar(&portPath, "port", "", "Device path or tcp://host:port (skips the profile)")
	serveCmd.Flags().StringVar(&protocolName, "protocol", "", "Protocol: dps150 or dp100")
	serveCmd.Flags().IntVar(&baudRate, "baud", 0, "DPS-150 line rate to announce")
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default: bridge_addr, then :8150)")
	serveCmd.Flags().DurationVar(&interval, "interval", 0, "Poll interval (default: poll_interval_ms)")
	serveCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Directory for JSONL frame captures (default: capture_dir)")
	serveCmd.Flags().BoolVar(&noAdvertise, "no-advertise", false, "Do not announce the bridge over mDNS")
	serveCmd.Flags().StringVar(&instanceName, "instance", "", "mDNS instance name (default: <hostname>-<protocol>)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; default: log_level, then info)")
}

// settings merges the config file with the command line.
type settings struct {
	profile config.Profile
	bridge  bridge.Config
	level   string
}

func loadSettings() (*settings, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}
	prefs := registry.Preferences

	s := &settings{
		bridge: bridge.Config{
			Addr:         prefs.BridgeAddr,
			PollInterval: prefs.Poll(),
			CaptureDir:   prefs.CaptureDir,
			Advertise:    prefs.Advertise && !noAdvertise,
			Instance:     instanceName,
		},
		level: prefs.LogLevel,
	}
	if portPath != "" {
		s.profile = config.Profile{Protocol: config.ProtocolDPS150, Port: portPath}
	} else {
		p, err := registry.GetProfile(profileName)
		if err != nil {
			return nil, fmt.Errorf("%w (use --port, or 'psuctl config init')", err)
		}
		s.profile = *p
	}

	if protocolName != "" {
		s.profile.Protocol = strings.ToLower(protocolName)
	}
	if baudRate != 0 {
		s.profile.Baud = baudRate
	}
	if listenAddr != "" {
		s.bridge.Addr = listenAddr
	}
	if s.bridge.Addr == "" {
		s.bridge.Addr = ":8150"
	}
	if interval > 0 {
		s.bridge.PollInterval = interval
	}
	if captureDir != "" {
		s.bridge.CaptureDir = captureDir
	}
	if logLevel != "" {
		s.level = logLevel
	}
	if s.level == "" {
		s.level = "info"
	}
	if err := s.profile.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := logging.Initialize(s.level); err != nil {
		return err
	}
	defer logging.Sync()

	port, err := transport.Open(s.profile.Port, s.profile.Timeout(transport.DefaultTimeout))
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var device bridge.Device
	switch s.profile.Protocol {
	case config.ProtocolDP100:
		session := dp100.NewSession(transport.NewReportPort(port, dp100.ReportSize))
		info, err := session.DeviceInfo()
		if err != nil {
			return fmt.Errorf("no answer to DEVICE_INFO: %w", err)
		}
		logging.Info("Device identified", zap.String("device", info.String()))
		device = bridge.NewDP100Device(session)
	default:
		session := dps150.NewSession(port)
		if _, err := session.Handshake(s.profile.BaudRate()); err != nil {
			return fmt.Errorf("handshake failed: %w", err)
		}
		defer func() {
			if err := session.Unlock(); err != nil {
				logging.Warn("Unlock failed", zap.Error(err))
			}
		}()
		state := session.Snapshot()
		logging.Info("Device identified",
			zap.String("model", state.ModelName),
			zap.String("firmware", state.FirmwareVersion),
			zap.Uint8("identifier", state.Identifier),
		)
		if id := s.profile.Identifier; id != 0 && id != state.Identifier {
			logging.Warn("Unexpected device identifier",
				zap.Uint8("expected", id),
				zap.Uint8("reported", state.Identifier),
			)
		}
		device = bridge.NewDPS150Device(session)
	}

	b, err := bridge.New(s.bridge, device)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "psu-bridge %s serving %s (%s) on %s\n",
		version.Version, s.profile.Port, s.profile.Protocol, s.bridge.Addr)
	return b.Run(ctx)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("psu-bridge %s\n", version.Full())
	},
}
