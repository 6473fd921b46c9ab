package protocol

// Reader is the byte source a frame reader consumes. Implementations may
// return fewer bytes than asked for when a read times out or the stream
// ends; they return an error only for genuine I/O failures.
type Reader interface {
	// ReadN reads up to n bytes.
	ReadN(n int) ([]byte, error)
	// ReadUntil reads until marker has been consumed or max bytes have been
	// read. The returned bytes include the marker when it was found.
	ReadUntil(marker byte, max int) ([]byte, error)
}

// ReadExactly reads n bytes from r. A short read is reported as a
// Truncated error naming stage.
func ReadExactly(r Reader, stage string, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	b, err := r.ReadN(n)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, NewTruncatedError(stage, len(b), n)
	}
	return b, nil
}

// ScanMarker discards bytes until marker is consumed, reading at most max
// bytes. It returns the number of bytes discarded before the marker, or a
// Truncated error when the marker never arrived.
func ScanMarker(r Reader, marker byte, max int) (int, error) {
	b, err := r.ReadUntil(marker, max)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 || b[len(b)-1] != marker {
		return len(b), NewTruncatedError("marker scan", len(b), 1)
	}
	return len(b) - 1, nil
}
