package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

var testChoices = []ProtocolChoice{
	{Name: "dps150", Label: "FNIRSI DPS-150", PortHint: "/dev/ttyACM0", DefaultName: "bench"},
	{Name: "dp100", Label: "Alientek DP100", PortHint: "/dev/hidraw0", DefaultName: "usb"},
}

func press(t *testing.T, m ProfileForm, msg tea.KeyMsg) (ProfileForm, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(ProfileForm), cmd
}

func typeText(t *testing.T, m ProfileForm, text string) ProfileForm {
	t.Helper()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
	downKey  = tea.KeyMsg{Type: tea.KeyDown}
)

func TestProfileFormComplete(t *testing.T) {
	m := NewProfileForm(testChoices)
	m, _ = press(t, m, downKey)
	m, _ = press(t, m, enterKey)
	if m.step != stepPort {
		t.Fatalf("step = %v after choosing a protocol, want port", m.step)
	}
	if got := m.Answers().Name; got != "usb" {
		t.Errorf("suggested name = %q, want usb", got)
	}

	m = typeText(t, m, "/dev/hidraw3")
	m, _ = press(t, m, enterKey)
	if m.step != stepName {
		t.Fatalf("step = %v after the port, want name", m.step)
	}
	m, cmd := press(t, m, enterKey)
	if !m.Done() || cmd == nil {
		t.Fatalf("form not done: step %v err %v", m.step, m.Err())
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("completing the form should quit")
	}

	want := ProfileAnswers{Name: "usb", Protocol: "dp100", Port: "/dev/hidraw3"}
	if got := m.Answers(); got != want {
		t.Errorf("Answers() = %+v, want %+v", got, want)
	}
	if m.View() != "" {
		t.Error("finished form should render nothing")
	}
}

func TestProfileFormRequiresPort(t *testing.T) {
	m := NewProfileForm(testChoices)
	m, _ = press(t, m, enterKey)
	m, _ = press(t, m, enterKey)
	if m.step != stepPort || m.Err() == nil {
		t.Fatalf("empty port accepted: step %v err %v", m.step, m.Err())
	}
	m = typeText(t, m, "/dev/ttyUSB0")
	m, _ = press(t, m, enterKey)
	if m.Err() != nil || m.step != stepName {
		t.Errorf("step %v err %v after entering a port", m.step, m.Err())
	}
}

func TestProfileFormValidate(t *testing.T) {
	m := NewProfileForm(testChoices)
	m.Validate = func(a ProfileAnswers) error {
		if a.Name == "bench" {
			return errors.New("profile bench already exists")
		}
		return nil
	}
	m, _ = press(t, m, enterKey)
	m = typeText(t, m, "/dev/ttyACM0")
	m, _ = press(t, m, enterKey)
	m, _ = press(t, m, enterKey)
	if m.Done() || m.Err() == nil {
		t.Fatal("validation error should keep the form open")
	}

	m = typeText(t, m, "2")
	m, _ = press(t, m, enterKey)
	if !m.Done() || m.Answers().Name != "bench2" {
		t.Errorf("done %v name %q", m.Done(), m.Answers().Name)
	}
}

func TestProfileFormBackAndCancel(t *testing.T) {
	m := NewProfileForm(testChoices)
	m, _ = press(t, m, enterKey)
	m, _ = press(t, m, escKey)
	if m.step != stepProtocol || m.Cancelled() {
		t.Fatalf("esc on port: step %v cancelled %v", m.step, m.Cancelled())
	}
	m, cmd := press(t, m, escKey)
	if !m.Cancelled() || cmd == nil {
		t.Fatal("esc on the first step should cancel")
	}

	m = NewProfileForm(testChoices)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.Cancelled() {
		t.Error("ctrl+c should cancel")
	}
}
