package transport

import "fmt"

// ReportPort pads every write to a fixed HID report size. hidraw devices
// expect whole reports; the DP100 uses 64 bytes.
type ReportPort struct {
	Port
	size int
}

// NewReportPort wraps port so writes are zero-padded to size bytes.
func NewReportPort(port Port, size int) *ReportPort {
	return &ReportPort{Port: port, size: size}
}

// Write pads p to the report size. A message longer than one report is
// rejected rather than split.
func (r *ReportPort) Write(p []byte) error {
	if len(p) > r.size {
		return fmt.Errorf("message of %d bytes exceeds %d-byte report", len(p), r.size)
	}
	report := make([]byte, r.size)
	copy(report, p)
	return r.Port.Write(report)
}
