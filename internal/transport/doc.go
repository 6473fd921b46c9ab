// Package transport provides byte ports to bench power supplies.
//
// A Port is an explicit handle: every session owns one and nothing is kept
// in package state. Three implementations exist:
//
//   - Stream wraps any io.ReadWriter (tty file, TCP connection) and turns
//     read timeouts and EOF into short reads.
//   - ReportPort pads writes to a fixed HID report size.
//   - Loopback is an in-memory device for tests and simulation.
//
// Serial line settings and USB HID enumeration are left to the operating
// system; Open only takes a path or a tcp:// address.
package transport
