package bridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/psulink/internal/logging"
)

// CaptureRecord is one line of a capture file.
type CaptureRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	MessageNum int       `json:"message_num"`
	Variant    string    `json:"variant"`
	Tag        string    `json:"tag"`
	TagByte    byte      `json:"tag_byte"`
	FrameLen   int       `json:"frame_length"`
	FrameHex   string    `json:"frame_hex"`
	FrameASCII string    `json:"frame_ascii"`
	Value      string    `json:"value,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Capture appends every reading to a JSON Lines file
// (capture-YYYYMMDD-HHMMSS.jsonl) for later analysis.
type Capture struct {
	mu   sync.Mutex
	f    *os.File
	path string
	n    int
}

// NewCapture creates a capture file in dir. An empty dir disables
// capturing and returns a nil *Capture, which is safe to use.
func NewCapture(dir string, now time.Time) (*Capture, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", now.Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	logging.Info("Capturing frames", zap.String("filename", path))
	return &Capture{f: f, path: path}, nil
}

// Path returns the capture file name.
func (c *Capture) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Record writes the reading events; other event types are skipped.
func (c *Capture) Record(events []Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range events {
		if ev.Type != EventReading {
			continue
		}
		c.n++
		raw, _ := hex.DecodeString(stripSpaces(ev.FrameHex))
		rec := CaptureRecord{
			Timestamp:  ev.Time,
			MessageNum: c.n,
			Variant:    ev.Variant,
			Tag:        ev.Tag,
			TagByte:    ev.TagByte,
			FrameLen:   len(raw),
			FrameHex:   hex.EncodeToString(raw),
			FrameASCII: toASCII(raw),
			Value:      ev.Text,
			Error:      ev.Error,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			logging.Error("Failed to marshal capture record", zap.Error(err))
			continue
		}
		if _, err := c.f.Write(append(data, '\n')); err != nil {
			logging.Error("Failed to write to capture file",
				zap.String("filename", c.path),
				zap.Error(err),
			)
			return
		}
	}
}

// Close flushes and closes the file.
func (c *Capture) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.f.Close()
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
