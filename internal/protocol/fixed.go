package protocol

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var maxUint16 = decimal.NewFromInt(math.MaxUint16)

// Unscale converts a raw fixed-point register value into its decimal
// quantity: raw / 10^places. Unscale(1234, 3) is exactly 1.234.
func Unscale(raw uint16, places int32) decimal.Decimal {
	return decimal.New(int64(raw), -places)
}

// Scale converts a decimal quantity into a raw register value:
// d * 10^places. The result must be an integer in 0..65535; anything else
// is an OutOfRange error rather than a silently rounded value.
func Scale(d decimal.Decimal, places int32) (uint16, error) {
	raw := d.Shift(places)
	if !raw.IsInteger() {
		return 0, NewOutOfRangeError(
			fmt.Sprintf("%s has more than %d decimal places", d.String(), places), nil)
	}
	if raw.Sign() < 0 || raw.GreaterThan(maxUint16) {
		return 0, NewOutOfRangeError(
			fmt.Sprintf("%s scales to %s, outside 0..65535", d.String(), raw.String()), nil)
	}
	return uint16(raw.IntPart()), nil
}

// ScaleAll scales several values with the same number of places, stopping
// at the first failure. name labels each value in the error.
func ScaleAll(places int32, names []string, values ...decimal.Decimal) ([]uint16, error) {
	out := make([]uint16, len(values))
	for i, v := range values {
		raw, err := Scale(v, places)
		if err != nil {
			label := fmt.Sprintf("#%d", i)
			if i < len(names) {
				label = names[i]
			}
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		out[i] = raw
	}
	return out, nil
}

// ParseDecimal parses a decimal literal such as "1.234".
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustDecimal is ParseDecimal for literals known to be valid.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
