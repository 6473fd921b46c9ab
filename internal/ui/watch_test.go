package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m WatchModel, msg tea.Msg) (WatchModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(WatchModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return wm, cmd
}

func TestWatchModelPollCycle(t *testing.T) {
	calls := 0
	sample := func() (Sample, error) {
		calls++
		return Sample{Voltage: 12, Current: 0.5, Power: 6, MaxVoltage: 24, Output: true, Mode: "CV", Protection: "OK"}, nil
	}
	m := NewWatchModel(nil, sample, 10*time.Millisecond)
	if m.interval != 100*time.Millisecond {
		t.Errorf("interval = %v, want 100ms floor", m.interval)
	}

	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil || !m.inFlight {
		t.Fatal("tick did not start a poll")
	}
	// a second tick while a poll is running is ignored
	if _, again := update(t, m, tickMsg(time.Now())); again != nil {
		t.Error("overlapping poll started")
	}

	msg := cmd()
	if calls != 1 {
		t.Fatalf("sample called %d times", calls)
	}
	m, cmd = update(t, m, msg)
	if cmd == nil {
		t.Error("no tick scheduled after sample")
	}
	last, ok := m.Last()
	if !ok || last.Voltage != 12 || m.polls != 1 || m.inFlight {
		t.Errorf("after sample: last=%+v ok=%v polls=%d", last, ok, m.polls)
	}

	view := m.View()
	for _, want := range []string{"12.000", "0.500", "6.000", "ON", "CV", "of 24.00 V"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatchModelErrorKeepsLastSample(t *testing.T) {
	m := NewWatchModel(nil, nil, time.Second)
	m, _ = update(t, m, sampleMsg(Sample{Voltage: 5}))
	m, cmd := update(t, m, sampleErrMsg{errors.New("port closed")})
	if cmd == nil {
		t.Error("polling stopped after an error")
	}
	if m.Err() == nil {
		t.Fatal("error not recorded")
	}
	if last, ok := m.Last(); !ok || last.Voltage != 5 {
		t.Errorf("last sample lost: %+v", last)
	}
	if !strings.Contains(m.View(), "port closed") {
		t.Error("error not shown")
	}
}

func TestWatchModelKeys(t *testing.T) {
	sample := func() (Sample, error) { return Sample{}, nil }
	m := NewWatchModel(nil, sample, time.Second)

	m, _ = update(t, m, keyPress("p"))
	if !m.Paused() {
		t.Fatal("p did not pause")
	}
	if _, cmd := update(t, m, tickMsg(time.Now())); cmd != nil {
		t.Error("paused model polled on tick")
	}
	if !strings.Contains(m.View(), "paused") {
		t.Error("view does not show paused")
	}

	m, cmd := update(t, m, keyPress("p"))
	if m.Paused() || cmd == nil {
		t.Error("resume did not poll")
	}

	m, _ = update(t, m, keyPress("?"))
	if !m.help.ShowAll {
		t.Error("? did not expand help")
	}

	_, cmd = update(t, m, keyPress("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestWatchModelWindowSize(t *testing.T) {
	h := NewHeader("Live", "psuctl watch", nil)
	m := NewWatchModel(h, nil, time.Second)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 40})
	if m.width != MaxContentWidth || h.Width != MaxContentWidth {
		t.Errorf("width = %d, header = %d", m.width, h.Width)
	}
	if !strings.Contains(m.View(), "Waiting for first reading") {
		t.Error("empty view missing placeholder")
	}
}
