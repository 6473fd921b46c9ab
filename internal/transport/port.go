package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// DefaultTimeout is how long a read waits for the device before it is
// reported as a short read.
const DefaultTimeout = 500 * time.Millisecond

// ErrClosed is returned by writes on a closed port.
var ErrClosed = errors.New("port closed")

// Port is a byte transport to one device. Reads may return fewer bytes
// than requested when the device goes quiet; that is not an error.
type Port interface {
	// ReadN reads up to n bytes.
	ReadN(n int) ([]byte, error)
	// ReadUntil reads until marker is consumed or max bytes were read.
	ReadUntil(marker byte, max int) ([]byte, error)
	// Write sends all of p.
	Write(p []byte) error
	Close() error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Stream adapts an io.ReadWriter (a tty file, a TCP connection) to Port.
type Stream struct {
	rw      io.ReadWriter
	r       *bufio.Reader
	timeout time.Duration
}

// NewStream wraps rw. When rw supports read deadlines each read is bounded
// by timeout; otherwise reads end only at EOF. A zero timeout disables
// deadlines.
func NewStream(rw io.ReadWriter, timeout time.Duration) *Stream {
	return &Stream{
		rw:      rw,
		r:       bufio.NewReader(rw),
		timeout: timeout,
	}
}

func (s *Stream) arm() {
	if s.timeout <= 0 {
		return
	}
	if d, ok := s.rw.(readDeadliner); ok {
		// regular files reject deadlines; they hit EOF instead
		_ = d.SetReadDeadline(time.Now().Add(s.timeout))
	}
}

// ReadN implements Port.
func (s *Stream) ReadN(n int) ([]byte, error) {
	if n <= 0 {
		return []byte{}, nil
	}
	s.arm()
	buf := make([]byte, n)
	got, err := io.ReadFull(s.r, buf)
	if err != nil && !isShortRead(err) {
		return buf[:got], fmt.Errorf("read failed: %w", err)
	}
	return buf[:got], nil
}

// ReadUntil implements Port.
func (s *Stream) ReadUntil(marker byte, max int) ([]byte, error) {
	s.arm()
	var out []byte
	for len(out) < max {
		b, err := s.r.ReadByte()
		if err != nil {
			if isShortRead(err) {
				return out, nil
			}
			return out, fmt.Errorf("read failed: %w", err)
		}
		out = append(out, b)
		if b == marker {
			break
		}
	}
	return out, nil
}

// Write implements Port.
func (s *Stream) Write(p []byte) error {
	n, err := s.rw.Write(p)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return nil
}

// Close closes the underlying handle when it is closable.
func (s *Stream) Close() error {
	if c, ok := s.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isShortRead(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Open connects to address. "tcp://host:port" dials a serial-over-TCP
// bridge such as ser2net; anything else is a device path (/dev/ttyACM0,
// /dev/hidraw2) opened read-write. Line settings are left as the OS has them.
func Open(address string, timeout time.Duration) (Port, error) {
	if address == "" {
		return nil, errors.New("no port address given")
	}
	if host, ok := strings.CutPrefix(address, "tcp://"); ok {
		conn, err := net.DialTimeout("tcp", host, dialTimeout(timeout))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
		}
		return NewStream(conn, timeout), nil
	}

	f, err := os.OpenFile(address, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", address, err)
	}
	return NewStream(f, timeout), nil
}

func dialTimeout(timeout time.Duration) time.Duration {
	if timeout < 5*time.Second {
		return 5 * time.Second
	}
	return timeout
}
