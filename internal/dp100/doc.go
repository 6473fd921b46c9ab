// Package dp100 implements the Alientek DP100 USB HID protocol.
//
// Every message is one 64-byte HID report holding a frame:
//
//	[0xFB host->device | 0xFA device->host][op][seq][len][payload][crc lo][crc hi]
//
// The CRC is CRC-16/Modbus over everything before it. Fixed-point fields
// (millivolts, tenths of a degree) decode to shopspring decimals so that
// 1.234 V written is 1.234 V read back.
//
// A Session pairs each request with its single reply:
//
//	s := dp100.NewSession(transport.NewReportPort(port, dp100.ReportSize))
//	info, err := s.BasicInfo()
package dp100
