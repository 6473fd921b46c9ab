package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/psulink/internal/config"
	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/protocol"
	"github.com/muurk/psulink/internal/transport"
	"github.com/muurk/psulink/internal/ui"
)

// Offline codec flags
var (
	payloadKind  string
	asDevice     bool
	seqNum       uint8
	simulate     bool
	decodeAsJSON bool
)

func init() {
	encodeCmd.Flags().StringVar(&payloadKind, "kind", "", "Payload kind: float, u8, bool, hex, empty (default: from the field catalog)")
	encodeCmd.Flags().BoolVar(&asDevice, "device", false, "Encode a device-to-host frame (for simulation)")
	encodeCmd.Flags().Uint8Var(&seqNum, "seq", 0, "DP100 sequence byte")

	decodeCmd.Flags().BoolVar(&simulate, "simulate", false, "Replay the bytes as a device stream and decode every frame")
	decodeCmd.Flags().BoolVar(&decodeAsJSON, "json", false, "Print the decoded frame as JSON")

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(fieldsCmd)
}

// offlineProtocol is --protocol, or dps150 when unset.
func offlineProtocol() (string, error) {
	switch strings.ToLower(protocolFlag) {
	case "", config.ProtocolDPS150:
		return config.ProtocolDPS150, nil
	case config.ProtocolDP100:
		return config.ProtocolDP100, nil
	default:
		return "", fmt.Errorf("unknown protocol %q (want dps150 or dp100)", protocolFlag)
	}
}

var encodeCmd = &cobra.Command{
	Use:   "encode <action> <field> [value] | encode <operation> [hex]",
	Short: "Encode a frame and print its bytes",
	Long: `Encode one frame without touching a device.

DPS-150 frames take an action (get, set, baud, lock) and a field. BAUD and
LOCK take only a value. SET values are parsed according to the field's
catalog type unless --kind is given.

DP100 frames take an operation and an optional hex payload.`,
	Example: `  # Set output voltage to 1.9 V
  psuctl encode set V_SET 1.9

  # Lock the front panel
  psuctl encode lock true

  # Announce 115200 baud
  psuctl encode baud 115200

  # DP100 device info request
  psuctl --protocol dp100 encode DEVICE_INFO`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runEncode,
}

func runEncode(cmd *cobra.Command, args []string) error {
	proto, err := offlineProtocol()
	if err != nil {
		return err
	}

	var frame []byte
	if proto == config.ProtocolDP100 {
		frame, err = encodeDP100(args)
	} else {
		frame, err = encodeDPS150(args)
	}
	if err != nil {
		return err
	}
	fmt.Println(protocol.FormatHex(frame))
	return nil
}

func encodeDPS150(args []string) ([]byte, error) {
	action, err := dps150.ParseAction(strings.ToUpper(args[0]))
	if err != nil {
		return nil, err
	}
	dir := dps150.DirHostToDevice
	if asDevice {
		dir = dps150.DirDeviceToHost
	}

	switch action {
	case dps150.ActionBaud, dps150.ActionLock:
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes exactly one value", action)
		}
		p, err := controlPayload(action, args[1])
		if err != nil {
			return nil, err
		}
		return dps150.Build(dir, action, dps150.FieldNone, p)
	}

	if len(args) < 2 {
		return nil, fmt.Errorf("%s needs a field", action)
	}
	field, err := dps150.LookupField(args[1])
	if err != nil {
		return nil, err
	}
	value := ""
	if len(args) == 3 {
		value = args[2]
	}
	p, err := fieldPayload(action, field, value)
	if err != nil {
		return nil, err
	}
	return dps150.Build(dir, action, field, p)
}

// controlPayload parses the value of a BAUD (rate or index) or LOCK frame.
func controlPayload(action dps150.Action, text string) (protocol.Payload, error) {
	if payloadKind != "" {
		return protocol.ParseValue(payloadKind, text)
	}
	if action == dps150.ActionLock {
		return protocol.ParseValue("bool", text)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("invalid baud rate %q: %w", text, err)
	}
	if idx := dps150.BaudRateIndex(n); idx != 0 {
		return protocol.Uint8(idx), nil
	}
	if n >= 1 && n <= len(dps150.BaudRates()) {
		return protocol.Uint8(uint8(n)), nil
	}
	return nil, fmt.Errorf("unsupported baud rate %d (supported: %v)", n, dps150.BaudRates())
}

// fieldPayload picks the payload kind from --kind or the field catalog.
// GET frames carry no payload unless one is forced.
func fieldPayload(action dps150.Action, field dps150.Field, text string) (protocol.Payload, error) {
	kind := payloadKind
	if kind == "" {
		switch {
		case action != dps150.ActionSet:
			kind = "empty"
		default:
			e, _ := dps150.Fields.Lookup(byte(field))
			if kind = e.Kind.PayloadKind(); kind == "" {
				kind = "hex"
			}
		}
	}
	return protocol.ParseValue(kind, text)
}

func encodeDP100(args []string) ([]byte, error) {
	if len(args) > 2 {
		return nil, fmt.Errorf("dp100 frames take an operation and at most one payload")
	}
	op, err := dp100.LookupOperation(args[0])
	if err != nil {
		return nil, err
	}
	var p protocol.Payload
	if len(args) == 2 {
		kind := payloadKind
		if kind == "" {
			kind = "hex"
		}
		if p, err = protocol.ParseValue(kind, args[1]); err != nil {
			return nil, err
		}
	}
	dir := dp100.DirHostToDevice
	if asDevice {
		dir = dp100.DirDeviceToHost
	}
	return dp100.Build(dir, op, seqNum, p)
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode frame bytes",
	Long: `Decode one frame given as hex. Spaces, colons and a 0x prefix are ignored.

With --simulate the bytes are replayed through an in-memory port as if a
device had sent them: DPS-150 input may hold several frames and noise
between them, DP100 input is split into 64-byte reports.`,
	Example: `  # A host SET frame
  psuctl decode F1 B1 C1 04 33 33 F3 3F 5D

  # Several device frames from a capture
  psuctl decode --simulate "F0A1DE03445053C8 F0A1D6010AE1"

  # DP100 request as JSON
  psuctl --protocol dp100 decode --json FB10000030C5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

// decodedFrame is the JSON form of one decoded frame.
type decodedFrame struct {
	Direction string         `json:"direction"`
	Action    string         `json:"action,omitempty"`
	Tag       string         `json:"tag"`
	TagByte   byte           `json:"tag_byte"`
	Seq       *byte          `json:"seq,omitempty"`
	Payload   string         `json:"payload"`
	Frame     string         `json:"frame"`
	Value     protocol.Value `json:"value,omitempty"`
	Text      string         `json:"text,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	proto, err := offlineProtocol()
	if err != nil {
		return err
	}
	data, err := protocol.ParseHex(strings.Join(args, ""))
	if err != nil {
		return err
	}

	var frames []decodedFrame
	switch {
	case simulate && proto == config.ProtocolDP100:
		frames, err = simulateDP100(data)
	case simulate:
		frames, err = simulateDPS150(data)
	case proto == config.ProtocolDP100:
		frames, err = decodeOneDP100(data)
	default:
		frames, err = decodeOneDPS150(data)
	}
	if err != nil {
		return err
	}
	return printFrames(frames)
}

func printFrames(frames []decodedFrame) error {
	if decodeAsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(frames) == 1 {
			return enc.Encode(frames[0])
		}
		return enc.Encode(frames)
	}
	for _, f := range frames {
		label := f.Direction + " " + f.Tag
		if f.Action != "" {
			label = f.Direction + " " + f.Action + " " + f.Tag
		}
		fmt.Println(ui.RenderFrame(label, mustHex(f.Frame)))
		var err error
		if f.Error != "" {
			err = errors.New(f.Error)
		}
		fmt.Println(ui.RenderValue(f.Tag, f.Value, err))
	}
	return nil
}

func mustHex(s string) []byte {
	b, _ := protocol.ParseHex(s)
	return b
}

func dps150Decoded(f *dps150.Frame) decodedFrame {
	out := decodedFrame{
		Direction: f.Dir.String(),
		Action:    f.Action.String(),
		Tag:       f.Field.String(),
		TagByte:   byte(f.Field),
		Payload:   protocol.FormatHex(f.Payload),
		Frame:     protocol.FormatHex(f.Bytes()),
	}
	v, err := dps150.Decode(f)
	return withValue(out, v, err)
}

func dp100Decoded(f *dp100.Frame) decodedFrame {
	seq := f.Seq
	out := decodedFrame{
		Direction: f.Dir.String(),
		Tag:       f.Op.String(),
		TagByte:   byte(f.Op),
		Seq:       &seq,
		Payload:   protocol.FormatHex(f.Payload),
		Frame:     protocol.FormatHex(f.Bytes()),
	}
	v, err := dp100.Decode(f)
	return withValue(out, v, err)
}

func withValue(out decodedFrame, v protocol.Value, err error) decodedFrame {
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if v != nil {
		out.Value = v
		out.Text = v.String()
	}
	return out
}

func decodeOneDPS150(data []byte) ([]decodedFrame, error) {
	f, err := dps150.Parse(data)
	if err != nil {
		return nil, err
	}
	return []decodedFrame{dps150Decoded(f)}, nil
}

func decodeOneDP100(data []byte) ([]decodedFrame, error) {
	f, err := dp100.Parse(data)
	if errors.Is(err, protocol.ErrWrongDirection) {
		f, err = dp100.ParseCommand(data)
	}
	if err != nil {
		return nil, err
	}
	return []decodedFrame{dp100Decoded(f)}, nil
}

// simulateDPS150 drains the bytes through a session, the same path live
// device traffic takes.
func simulateDPS150(data []byte) ([]decodedFrame, error) {
	lb := transport.NewLoopback()
	lb.Feed(data)
	session := dps150.NewSession(lb)

	readings, err := session.Drain()
	frames := make([]decodedFrame, 0, len(readings))
	for _, r := range readings {
		frames = append(frames, dps150Decoded(r.Frame))
	}
	if session.ChecksumFailures > 0 {
		fmt.Fprintf(os.Stderr, "%d frame(s) dropped with a bad checksum\n", session.ChecksumFailures)
	}
	if err != nil {
		return frames, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no device frame found in %d bytes", len(data))
	}
	return frames, nil
}

func simulateDP100(data []byte) ([]decodedFrame, error) {
	lb := transport.NewLoopback()
	lb.Feed(data)

	var frames []decodedFrame
	for lb.Buffered() > 0 {
		f, err := dp100.ReadFrame(lb)
		if err != nil {
			return frames, fmt.Errorf("report %d: %w", len(frames)+1, err)
		}
		frames = append(frames, dp100Decoded(f))
	}
	return frames, nil
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the tag catalog",
	Long:  `List every field (DPS-150) or operation (DP100) with its tag byte and payload type.`,
	Example: `  psuctl fields
  psuctl --protocol dp100 fields`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proto, err := offlineProtocol()
		if err != nil {
			return err
		}
		catalog := dps150.Fields
		if proto == config.ProtocolDP100 {
			catalog = dp100.Operations
		}

		table := &ui.Table{Headers: []string{"TAG", "NAME", "TYPE"}}
		for _, e := range catalog.Entries() {
			table.AddRow(fmt.Sprintf("0x%02X", e.Tag), e.Name, e.Kind.String())
		}
		fmt.Println(table.Render())
		return nil
	},
}
