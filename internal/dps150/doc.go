// Package dps150 implements the FNIRSI DPS-150 serial protocol.
//
// Frames are
//
//	[0xF1 host->device | 0xF0 device->host][action][field][len][payload][sum]
//
// where sum = (field + len + sum(payload)) mod 256. Actions are GET, SET,
// BAUD and LOCK; the field byte selects one register from the Fields
// catalog, or FieldAll for a 139-byte dump of everything.
//
// # Reading
//
// ReadFrame scans the stream for the 0xF0 marker, so it recovers from noise
// and partial frames. When the port times out before a whole frame arrives
// it returns protocol.ErrTruncated, which a polling loop treats as "done":
//
//	for {
//	    f, err := dps150.ReadFrame(port)
//	    if protocol.IsTruncated(err) {
//	        break
//	    }
//	    ...
//	}
//
// Session wraps that loop together with the lock, baud and query commands.
package dps150
