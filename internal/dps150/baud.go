package dps150

// baudRates lists the supported line rates; the index is what the BAUD
// action sends. Index 0 means "not supported".
var baudRates = [...]int{0, 9600, 19200, 38400, 57600, 115200}

// DefaultBaudRate is used when a profile does not name a rate.
const DefaultBaudRate = 115200

// BaudRateIndex returns the BAUD action payload for a line rate, or 0 when
// the rate is not supported.
func BaudRateIndex(baud int) byte {
	for i := 1; i < len(baudRates); i++ {
		if baudRates[i] == baud {
			return byte(i)
		}
	}
	return 0
}

// BaudRates returns the supported line rates in ascending order.
func BaudRates() []int {
	out := make([]int, len(baudRates)-1)
	copy(out, baudRates[1:])
	return out
}
