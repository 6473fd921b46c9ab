package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/muurk/psulink/internal/protocol"
)

// Event types sent to clients
const (
	EventReading = "reading" // a decoded device frame
	EventError   = "error"   // a poll or command failure
	EventHello   = "hello"   // first message on a new connection
)

// Event is one JSON message pushed to every connected client.
type Event struct {
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	Variant   string    `json:"variant"`
	Tag       string    `json:"tag,omitempty"`
	TagByte   byte      `json:"tag_byte,omitempty"`
	FrameHex  string    `json:"frame_hex,omitempty"`
	Value     any       `json:"value,omitempty"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	Hint      string    `json:"hint,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// newReading builds a reading event. A decode error is attached but the
// raw frame is still reported.
func newReading(variant, tag string, tagByte byte, frame []byte, v protocol.Value, err error) Event {
	ev := Event{
		Type:     EventReading,
		Time:     time.Now(),
		Variant:  variant,
		Tag:      tag,
		TagByte:  tagByte,
		FrameHex: protocol.FormatHex(frame),
	}
	if v != nil {
		ev.Value = v
		ev.Text = v.String()
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func newError(variant string, err error) Event {
	return Event{
		Type:    EventError,
		Time:    time.Now(),
		Variant: variant,
		Error:   err.Error(),
		Hint:    protocol.Hint(err),
	}
}

// Command is a client request. Action is "set" (default) or "get". Value
// is applied through protocol.Coerce unless Kind names a ParseValue kind,
// in which case the value is read as text of that kind.
type Command struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action,omitempty"`
	Tag    string `json:"tag"`
	Kind   string `json:"kind,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// Payload converts the command value into a wire payload.
func (c Command) Payload() (protocol.Payload, error) {
	if c.Kind != "" {
		text := ""
		if c.Value != nil {
			text = fmt.Sprint(c.Value)
		}
		return protocol.ParseValue(c.Kind, text)
	}
	return protocol.Coerce(c.Value)
}

// IsGet reports whether the command only reads.
func (c Command) IsGet() bool {
	return strings.EqualFold(c.Action, "get")
}
