package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/psulink/internal/protocol"
)

// fakeDevice returns a counter reading on each poll and echoes commands.
type fakeDevice struct {
	mu      sync.Mutex
	polls   int
	applied []Command
	pollErr error
}

func (d *fakeDevice) Variant() string { return "fake" }

func (d *fakeDevice) Poll() ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.polls++
	if d.pollErr != nil {
		return nil, d.pollErr
	}
	return []Event{newReading("fake", "COUNT", 0x01, []byte{0x01, byte(d.polls)}, protocol.Uint8Value(d.polls), nil)}, nil
}

func (d *fakeDevice) Apply(cmd Command) ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cmd.Tag == "BAD" {
		return nil, protocol.ErrUnknownTag
	}
	d.applied = append(d.applied, cmd)
	p, err := cmd.Payload()
	if err != nil {
		return nil, err
	}
	b, _ := p.Bytes()
	return []Event{newReading("fake", cmd.Tag, 0x02, b, protocol.Uint8Value(len(b)), nil)}, nil
}

func startBridge(t *testing.T, dev Device, cfg Config) (*Bridge, string, func()) {
	t.Helper()
	b, err := New(cfg, dev)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, ln) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve() did not return after cancel")
		}
	}
	return b, ln.Addr().String(), stop
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	return conn
}

// readUntil reads events until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Event) bool) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if match(ev) {
			return ev
		}
	}
}

func TestNewDefaults(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("New() accepted a nil device")
	}
	b, err := New(Config{Instance: "x"}, &fakeDevice{})
	if err != nil {
		t.Fatal(err)
	}
	if b.config.Path != "/ws" || b.config.PollInterval != time.Second {
		t.Errorf("config = %+v", b.config)
	}
	b, _ = New(Config{}, &fakeDevice{})
	if b.config.Instance == "" {
		t.Error("Instance not defaulted")
	}
}

func TestBridgeStreamsReadings(t *testing.T) {
	dev := &fakeDevice{}
	b, addr, stop := startBridge(t, dev, Config{PollInterval: 20 * time.Millisecond})
	defer stop()

	conn := dial(t, addr)
	defer conn.Close()

	hello := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventHello })
	if hello.Variant != "fake" {
		t.Errorf("hello = %+v", hello)
	}
	ev := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventReading && ev.Tag == "COUNT" })
	if ev.FrameHex == "" || ev.Text == "" {
		t.Errorf("reading = %+v", ev)
	}
	if b.ActiveClients() != 1 {
		t.Errorf("ActiveClients() = %d", b.ActiveClients())
	}
}

func TestBridgeCommands(t *testing.T) {
	dev := &fakeDevice{}
	_, addr, stop := startBridge(t, dev, Config{PollInterval: time.Hour})
	defer stop()

	conn := dial(t, addr)
	defer conn.Close()
	readUntil(t, conn, func(ev Event) bool { return ev.Type == EventHello })

	if err := conn.WriteJSON(Command{ID: "1", Tag: "V_SET", Value: 1.5}); err != nil {
		t.Fatal(err)
	}
	ev := readUntil(t, conn, func(ev Event) bool { return ev.RequestID == "1" })
	if ev.Type != EventReading || ev.Tag != "V_SET" || ev.FrameHex != "00 00 C0 3F" {
		t.Errorf("command reply = %+v", ev)
	}

	if err := conn.WriteJSON(Command{ID: "2", Tag: "BAD"}); err != nil {
		t.Fatal(err)
	}
	ev = readUntil(t, conn, func(ev Event) bool { return ev.RequestID == "2" })
	if ev.Type != EventError || ev.Hint == "" || ev.Tag != "BAD" {
		t.Errorf("error reply = %+v", ev)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	ev = readUntil(t, conn, func(ev Event) bool { return ev.Type == EventError })
	if ev.Error == "" {
		t.Errorf("invalid JSON reply = %+v", ev)
	}

	// the connection survives a bad message
	if err := conn.WriteJSON(Command{ID: "3", Tag: "RUNNING", Value: true}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(ev Event) bool { return ev.RequestID == "3" })
}

func TestBridgeState(t *testing.T) {
	dev := &fakeDevice{}
	b, addr, stop := startBridge(t, dev, Config{PollInterval: time.Hour})
	defer stop()

	// the first poll runs immediately
	deadline := time.Now().Add(5 * time.Second)
	for len(b.Latest()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + addr + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode /state: %v", err)
	}
	if len(events) != 1 || events[0].Tag != "COUNT" {
		t.Errorf("/state = %+v", events)
	}
}

func TestPollOnceError(t *testing.T) {
	dev := &fakeDevice{pollErr: errors.New("port gone")}
	b, _ := New(Config{Instance: "t"}, dev)

	events := b.PollOnce()
	if len(events) != 1 || events[0].Type != EventError || events[0].Error != "port gone" {
		t.Errorf("PollOnce() = %+v", events)
	}
	if len(b.Latest()) != 0 {
		t.Error("error event remembered as a reading")
	}
}

func TestExecuteUnsupportedValue(t *testing.T) {
	b, _ := New(Config{Instance: "t"}, &fakeDevice{})
	events := b.Execute(Command{ID: "x", Tag: "V_SET", Value: map[string]any{"a": 1}})
	if len(events) != 1 || events[0].Type != EventError || events[0].RequestID != "x" {
		t.Errorf("Execute() = %+v", events)
	}
}

func TestClientsRefusedAfterShutdownStarts(t *testing.T) {
	b, _ := New(Config{Instance: "t"}, &fakeDevice{})
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	b.hub.closeAll()

	conn := dial(t, strings.TrimPrefix(srv.URL, "http://"))
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want going-away close", err)
	}
	if b.ActiveClients() != 0 {
		t.Errorf("ActiveClients() = %d after shutdown", b.ActiveClients())
	}

	done := make(chan struct{})
	go func() {
		b.hub.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("refused client left pumps running")
	}
}
