package protocol

const (
	// MaxPayloadSize is the largest payload a one-byte length field can carry
	MaxPayloadSize = 255

	crc16Init = 0xFFFF
	crc16Poly = 0xA001
)

// Sum8 computes the modular byte-sum used by serial frames:
// (tag + length + sum(payload)) mod 256. The direction byte is not covered.
//
// Different single-bit flips can cancel out mod 256, so this detects most
// but not all corruption.
func Sum8(tag, length byte, payload []byte) byte {
	sum := tag + length
	for _, b := range payload {
		sum += b
	}
	return sum
}

// CRC16Modbus computes CRC-16/Modbus (reflected poly 0xA001, init 0xFFFF).
// Running it over a frame that already ends in its little-endian CRC yields 0.
func CRC16Modbus(data []byte) uint16 {
	crc := uint16(crc16Init)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crc16Poly
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendCRC16 appends crc to dst in little-endian order.
func AppendCRC16(dst []byte, crc uint16) []byte {
	return append(dst, byte(crc), byte(crc>>8))
}
