package bridge

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/protocol"
)

// Device is a power supply the bridge can poll and command. Calls are
// serialised by the bridge.
type Device interface {
	// Poll reads the device's current state
	Poll() ([]Event, error)
	// Apply executes one client command and returns what the device answered
	Apply(cmd Command) ([]Event, error)
	// Variant names the protocol ("dps150" or "dp100")
	Variant() string
}

type dps150Device struct {
	session *dps150.Session
}

// NewDPS150Device exposes a DPS-150 session to the bridge. The caller
// performs the handshake first.
func NewDPS150Device(session *dps150.Session) Device {
	return &dps150Device{session: session}
}

func (d *dps150Device) Variant() string { return "dps150" }

func (d *dps150Device) Poll() ([]Event, error) {
	readings, err := d.session.Poll()
	return d.events(readings), err
}

func (d *dps150Device) Apply(cmd Command) ([]Event, error) {
	if strings.EqualFold(cmd.Tag, "LOCK") {
		b, err := oneByte(cmd)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			err = d.session.Unlock()
		} else {
			err = d.session.Lock()
		}
		return nil, err
	}

	field, err := dps150.LookupField(cmd.Tag)
	if err != nil {
		return nil, err
	}
	if cmd.IsGet() {
		err = d.session.Get(field)
	} else {
		var p protocol.Payload
		if p, err = fieldCommand(field, cmd).Payload(); err != nil {
			return nil, err
		}
		err = d.session.Set(field, p)
	}
	if err != nil {
		return nil, err
	}
	readings, err := d.session.Drain()
	return d.events(readings), err
}

// fieldCommand gives an untyped JSON number the field's own payload kind,
// so 7 for BRIGHTNESS is written as one byte rather than a float.
func fieldCommand(field dps150.Field, cmd Command) Command {
	if _, ok := cmd.Value.(float64); !ok || cmd.Kind != "" {
		return cmd
	}
	e, ok := dps150.Fields.Lookup(byte(field))
	if !ok {
		return cmd
	}
	switch kind := e.Kind.PayloadKind(); kind {
	case "u8", "bool", "float":
		cmd.Kind = kind
	}
	return cmd
}

func (d *dps150Device) events(readings []dps150.Reading) []Event {
	out := make([]Event, 0, len(readings))
	for _, r := range readings {
		out = append(out, newReading(d.Variant(), r.Frame.Field.String(), byte(r.Frame.Field), r.Frame.Bytes(), r.Value, r.Err))
	}
	return out
}

type dp100Device struct {
	session *dp100.Session
}

// NewDP100Device exposes a DP100 session to the bridge.
func NewDP100Device(session *dp100.Session) Device {
	return &dp100Device{session: session}
}

func (d *dp100Device) Variant() string { return "dp100" }

func (d *dp100Device) Poll() ([]Event, error) {
	ev, err := d.exchange(dp100.OpBasicInfo, nil)
	if err != nil {
		return nil, err
	}
	return []Event{ev}, nil
}

func (d *dp100Device) exchange(op dp100.Operation, payload protocol.Payload) (Event, error) {
	f, v, err := d.session.Exchange(op, payload)
	if f == nil {
		return Event{}, err
	}
	return newReading(d.Variant(), op.String(), byte(op), f.Bytes(), v, err), nil
}

// Apply understands VOLTAGE, CURRENT, OUTPUT, PRESET and BACKLIGHT writes.
// A "get" reads any operation by name.
func (d *dp100Device) Apply(cmd Command) ([]Event, error) {
	if cmd.IsGet() {
		op, err := dp100.LookupOperation(cmd.Tag)
		if err != nil {
			return nil, err
		}
		ev, err := d.exchange(op, nil)
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}

	var err error
	switch strings.ToUpper(cmd.Tag) {
	case "VOLTAGE", "CURRENT":
		var v decimal.Decimal
		if v, err = decimal.NewFromString(fmt.Sprint(cmd.Value)); err != nil {
			return nil, fmt.Errorf("invalid %s value %v: %w", cmd.Tag, cmd.Value, err)
		}
		err = d.setLevel(strings.ToUpper(cmd.Tag) == "VOLTAGE", v)
	case "OUTPUT":
		var b byte
		if b, err = oneByte(cmd); err == nil {
			err = d.session.SetEnabled(b != 0)
		}
	case "PRESET":
		var b byte
		if b, err = oneByte(cmd); err == nil {
			err = d.session.UsePreset(int(b))
		}
	case "BACKLIGHT":
		var b byte
		if b, err = oneByte(cmd); err == nil {
			err = d.session.SetBacklight(b)
		}
	default:
		return nil, fmt.Errorf("unknown dp100 setting %q (want VOLTAGE, CURRENT, OUTPUT, PRESET or BACKLIGHT)", cmd.Tag)
	}
	if err != nil {
		return nil, err
	}
	return d.Poll()
}

func (d *dp100Device) setLevel(voltage bool, v decimal.Decimal) error {
	if voltage {
		return d.session.SetVoltage(v)
	}
	cur, err := d.session.Current()
	if err != nil {
		return err
	}
	cur.CurrentSet = v
	return d.session.SetOutput(*cur)
}

func oneByte(cmd Command) (byte, error) {
	// JSON numbers arrive as float64
	if f, ok := cmd.Value.(float64); ok && cmd.Kind == "" && f == float64(int64(f)) {
		cmd.Value = int64(f)
	}
	p, err := cmd.Payload()
	if err != nil {
		return 0, err
	}
	b, err := p.Bytes()
	if err != nil {
		return 0, err
	}
	if len(b) != 1 {
		return 0, fmt.Errorf("%s takes a one-byte value, got %d bytes", cmd.Tag, len(b))
	}
	return b[0], nil
}
