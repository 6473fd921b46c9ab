// Package protocol holds the pieces shared by the bench power-supply codecs.
//
// Each device family (see packages dps150 and dp100) has its own frame
// layout, checksum and tag catalog, but they are assembled from the same
// parts:
//   - Catalog: an immutable tag -> (name, decoder) table built once at init
//   - DecodeFunc: pure payload decoders with a fixed expected length
//   - Payload: the encode-side sum type (Raw, Float32, Uint8, Bool, Record)
//   - Sum8 and CRC16Modbus integrity functions
//   - Scale/Unscale: exact fixed-point conversion backed by shopspring/decimal
//
// # Errors
//
// Every failure is a *FrameError whose Type is one of the ErrorType values.
// Use errors.Is against the package sentinels:
//
//	frame, err := dps150.ReadFrame(port)
//	switch {
//	case protocol.IsTruncated(err):
//	    // nothing (more) to read; stop polling
//	case protocol.IsChecksumMismatch(err):
//	    // discard, never trust the payload
//	case err != nil:
//	    return err
//	}
//
// ErrTruncated is the only outcome that is not a fault. It plays the role
// io.EOF plays for readers.
//
// # Concurrency
//
// Nothing in this package holds mutable state. Catalogs are read-only after
// construction and may be shared by any number of goroutines.
package protocol
