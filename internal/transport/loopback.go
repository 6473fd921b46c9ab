package transport

import (
	"bytes"
	"sync"
)

// Responder produces the device's answer to one written message. It runs
// inside Write, so it must not call back into the Loopback.
type Responder func(written []byte) []byte

// Loopback is an in-memory Port. Bytes passed to Feed are what the
// "device" sends; writes are recorded and optionally answered by a
// Responder. An empty buffer behaves like a read timeout.
type Loopback struct {
	mu        sync.Mutex
	in        bytes.Buffer
	written   [][]byte
	responder Responder
	closed    bool
}

// NewLoopback returns an empty loopback port.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Feed queues bytes for the host to read.
func (l *Loopback) Feed(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.in.Write(b)
}

// Respond installs fn as the answer to every subsequent write.
func (l *Loopback) Respond(fn Responder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responder = fn
}

// Written returns a copy of every message written so far.
func (l *Loopback) Written() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.written))
	for i, w := range l.written {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Buffered is the number of unread bytes.
func (l *Loopback) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.Len()
}

// ReadN implements Port.
func (l *Loopback) ReadN(n int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		return []byte{}, nil
	}
	return append([]byte{}, l.in.Next(n)...), nil
}

// ReadUntil implements Port.
func (l *Loopback) ReadUntil(marker byte, max int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []byte
	for len(out) < max {
		b, err := l.in.ReadByte()
		if err != nil {
			break
		}
		out = append(out, b)
		if b == marker {
			break
		}
	}
	return out, nil
}

// Write implements Port.
func (l *Loopback) Write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	msg := append([]byte(nil), p...)
	l.written = append(l.written, msg)
	if l.responder != nil {
		l.in.Write(l.responder(msg))
	}
	return nil
}

// Close implements Port. Reads still drain buffered bytes.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
