package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/psulink/internal/discovery"
	"github.com/muurk/psulink/internal/logging"
	"github.com/muurk/psulink/internal/version"
)

// Config holds the bridge configuration
type Config struct {
	Addr         string        // Listen address, e.g. ":8150"
	Path         string        // WebSocket path (default /ws)
	PollInterval time.Duration // Device poll period (default 1s)
	CaptureDir   string        // Directory for JSONL captures (empty = disabled)
	Advertise    bool          // Announce over mDNS
	Instance     string        // mDNS instance name (default: hostname)
}

// Bridge polls one device and streams its readings to WebSocket clients.
type Bridge struct {
	config   Config
	device   Device
	devMu    sync.Mutex
	hub      *hub
	upgrader websocket.Upgrader
	wg       sync.WaitGroup

	capture *Capture

	stateMu sync.Mutex
	latest  map[string]Event
}

// New creates a bridge for device.
func New(config Config, device Device) (*Bridge, error) {
	if device == nil {
		return nil, fmt.Errorf("bridge needs a device")
	}
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.Instance == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "psu-bridge"
		}
		config.Instance = fmt.Sprintf("%s-%s", host, device.Variant())
	}
	return &Bridge{
		config: config,
		device: device,
		hub:    newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser dashboards on other origins are expected.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		latest: make(map[string]Event),
	}, nil
}

// Handler returns the HTTP routes: the WebSocket stream at Config.Path and
// a JSON snapshot of the latest reading per tag at /state.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(b.config.Path, b.serveWS)
	mux.HandleFunc("/state", b.serveState)
	return mux
}

// Run listens on Config.Addr and serves until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.config.Addr, err)
	}
	return b.Serve(ctx, ln)
}

// Serve runs the bridge on an existing listener until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	capture, err := NewCapture(b.config.CaptureDir, time.Now())
	if err != nil {
		_ = ln.Close()
		return err
	}
	b.capture = capture
	defer func() { _ = capture.Close() }()

	logging.Info("Starting psu-bridge",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", b.config.Path),
		zap.String("variant", b.device.Variant()),
		zap.Duration("poll_interval", b.config.PollInterval),
		zap.String("capture", capture.Path()),
	)

	if b.config.Advertise {
		port := 0
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		ad, err := discovery.Advertise(b.config.Instance, port, map[string]string{
			"protocol": b.device.Variant(),
			"path":     b.config.Path,
			"version":  version.UserAgent("psu-bridge"),
		})
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer ad.Shutdown()
			logging.Info("Advertising bridge", zap.String("instance", b.config.Instance))
		}
	}

	srv := &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.pollLoop(pollCtx)
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutting down bridge...")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stopPoll()
			b.hub.closeAll()
			b.wg.Wait()
			b.hub.pumps.Wait()
			return fmt.Errorf("bridge server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	stopPoll()
	b.hub.closeAll()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		b.hub.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All clients closed gracefully")
	case <-time.After(10 * time.Second):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}
	logging.Sync()
	return nil
}

func (b *Bridge) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(b.config.PollInterval)
	defer ticker.Stop()

	for {
		b.hub.broadcast(b.PollOnce())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce polls the device and records the readings. A poll failure is
// returned as a single error event.
func (b *Bridge) PollOnce() []Event {
	b.devMu.Lock()
	events, err := b.device.Poll()
	b.devMu.Unlock()

	if err != nil {
		logging.Warn("Device poll failed", zap.Error(err))
		events = append(events, newError(b.device.Variant(), err))
	}
	b.remember(events)
	b.capture.Record(events)
	return events
}

// Execute applies one command to the device.
func (b *Bridge) Execute(cmd Command) []Event {
	b.devMu.Lock()
	events, err := b.device.Apply(cmd)
	b.devMu.Unlock()

	if err != nil {
		logging.Warn("Command failed",
			zap.String("tag", cmd.Tag),
			zap.Error(err),
		)
		ev := newError(b.device.Variant(), err)
		ev.Tag = cmd.Tag
		ev.RequestID = cmd.ID
		events = append(events, ev)
	}
	b.remember(events)
	b.capture.Record(events)
	return events
}

func (b *Bridge) remember(events []Event) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	for _, ev := range events {
		if ev.Type == EventReading && ev.Error == "" {
			b.latest[ev.Tag] = ev
		}
	}
}

// Latest returns the newest reading for every tag seen, sorted by tag.
func (b *Bridge) Latest() []Event {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	out := make([]Event, 0, len(b.latest))
	for _, ev := range b.latest {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// ActiveClients returns the number of connected WebSocket clients
func (b *Bridge) ActiveClients() int {
	return b.hub.count()
}

func (b *Bridge) serveState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b.Latest()); err != nil {
		logging.Error("Failed to write state", zap.Error(err))
	}
}

func (b *Bridge) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := newClient(conn)
	if !b.hub.add(c) {
		// shutdown already began; the server no longer tracks this conn
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	logging.LogConnection(c.remoteAddr, "websocket_connected")

	go func() {
		defer b.hub.pumps.Done()
		c.writePump()
	}()
	go func() {
		defer b.hub.pumps.Done()
		b.readPump(c)
	}()

	b.hub.unicast(c, Event{
		Type:    EventHello,
		Time:    time.Now(),
		Variant: b.device.Variant(),
		Text:    version.UserAgent("psu-bridge"),
	})
	for _, ev := range b.Latest() {
		b.hub.unicast(c, ev)
	}
}

// readPump decodes client commands until the connection closes.
func (b *Bridge) readPump(c *client) {
	defer func() {
		b.hub.remove(c)
		logging.LogConnection(c.remoteAddr, "websocket_closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				b.hub.unicast(c, newError(b.device.Variant(), fmt.Errorf("invalid command: %w", err)))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Client connection error",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		logging.Debug("Command received",
			zap.String("remote_addr", c.remoteAddr),
			zap.String("action", cmd.Action),
			zap.String("tag", cmd.Tag),
			zap.Any("value", cmd.Value),
		)

		events := b.Execute(cmd)
		var readings []Event
		for _, ev := range events {
			if ev.Type == EventError {
				b.hub.unicast(c, ev)
				continue
			}
			ev.RequestID = cmd.ID
			readings = append(readings, ev)
		}
		b.hub.broadcast(readings)
	}
}
