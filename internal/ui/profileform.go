package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProtocolChoice is one entry in the protocol list.
type ProtocolChoice struct {
	Name        string // value stored in the profile, e.g. "dps150"
	Label       string
	Help        string
	PortHint    string // placeholder for the port field
	DefaultName string // suggested profile name
}

func (c ProtocolChoice) Title() string       { return c.Label }
func (c ProtocolChoice) Description() string { return c.Help }
func (c ProtocolChoice) FilterValue() string { return c.Name + " " + c.Label }

// ProfileAnswers is what the form collected.
type ProfileAnswers struct {
	Name     string
	Protocol string
	Port     string
}

type formStep int

const (
	stepProtocol formStep = iota
	stepPort
	stepName
	stepDone
)

// formKeyMap defines key bindings for the profile form
type formKeyMap struct {
	Next key.Binding
	Back key.Binding
	Quit key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Back, k.Quit}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Back, k.Quit}}
}

// ProfileForm asks for a protocol, a port and a profile name, one screen
// at a time. Validate, when set, runs before the form completes; an error
// keeps the form on the name step.
type ProfileForm struct {
	Validate func(ProfileAnswers) error

	choices   []ProtocolChoice
	list      list.Model
	port      textinput.Model
	name      textinput.Model
	step      formStep
	cancelled bool
	err       error
	keys      formKeyMap
	help      help.Model
}

// NewProfileForm builds the form. choices must not be empty.
func NewProfileForm(choices []ProtocolChoice) ProfileForm {
	items := make([]list.Item, len(choices))
	for i, c := range choices {
		items[i] = c
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(PrimaryColor).
		BorderForeground(PrimaryColor)

	l := list.New(items, delegate, MinTerminalWidth, len(choices)+4)
	l.Title = "Protocol"
	l.Styles.Title = TableHeaderStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	port := textinput.New()
	port.Prompt = "Port: "
	port.CharLimit = 256

	name := textinput.New()
	name.Prompt = "Name: "
	name.CharLimit = 64

	return ProfileForm{
		choices: choices,
		list:    l,
		port:    port,
		name:    name,
		keys: formKeyMap{
			Next: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next")),
			Back: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
			Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		},
		help: help.New(),
	}
}

func (m ProfileForm) selected() ProtocolChoice {
	i := m.list.Index()
	if i < 0 || i >= len(m.choices) {
		return m.choices[0]
	}
	return m.choices[i]
}

// Answers returns the current field values.
func (m ProfileForm) Answers() ProfileAnswers {
	return ProfileAnswers{
		Name:     strings.TrimSpace(m.name.Value()),
		Protocol: m.selected().Name,
		Port:     strings.TrimSpace(m.port.Value()),
	}
}

// Done reports whether the form was completed.
func (m ProfileForm) Done() bool { return m.step == stepDone }

// Cancelled reports whether the user quit before finishing.
func (m ProfileForm) Cancelled() bool { return m.cancelled }

// Err is the last validation error shown.
func (m ProfileForm) Err() error { return m.err }

func (m ProfileForm) Init() tea.Cmd { return nil }

func (m ProfileForm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(clampWidth(msg.Width))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			return m.back()
		case key.Matches(msg, m.keys.Next):
			return m.next()
		}
	}

	var cmd tea.Cmd
	switch m.step {
	case stepProtocol:
		m.list, cmd = m.list.Update(msg)
	case stepPort:
		m.port, cmd = m.port.Update(msg)
	case stepName:
		m.name, cmd = m.name.Update(msg)
	}
	return m, cmd
}

func (m ProfileForm) next() (tea.Model, tea.Cmd) {
	m.err = nil
	switch m.step {
	case stepProtocol:
		c := m.selected()
		m.port.Placeholder = c.PortHint
		if m.name.Value() == "" {
			m.name.SetValue(c.DefaultName)
		}
		m.step = stepPort
		cmd := m.port.Focus()
		return m, cmd

	case stepPort:
		if m.Answers().Port == "" {
			m.err = fmt.Errorf("port is required")
			return m, nil
		}
		m.port.Blur()
		m.step = stepName
		cmd := m.name.Focus()
		return m, cmd

	case stepName:
		a := m.Answers()
		if a.Name == "" {
			m.err = fmt.Errorf("profile name is required")
			return m, nil
		}
		if m.Validate != nil {
			if err := m.Validate(a); err != nil {
				m.err = err
				return m, nil
			}
		}
		m.name.Blur()
		m.step = stepDone
		return m, tea.Quit
	}
	return m, nil
}

func (m ProfileForm) back() (tea.Model, tea.Cmd) {
	m.err = nil
	switch m.step {
	case stepProtocol:
		m.cancelled = true
		return m, tea.Quit
	case stepPort:
		m.port.Blur()
		m.step = stepProtocol
	case stepName:
		m.name.Blur()
		m.step = stepPort
		cmd := m.port.Focus()
		return m, cmd
	}
	return m, nil
}

func (m ProfileForm) View() string {
	if m.step == stepDone || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(HeaderTitleStyle.Render("NEW CONNECTION PROFILE"))
	b.WriteString("\n\n")

	switch m.step {
	case stepProtocol:
		b.WriteString(m.list.View())
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render(m.selected().Help))
	default:
		a := m.Answers()
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, ValueKeyStyle.Render("Protocol"), ResultValueStyle.Render(m.selected().Label)))
		b.WriteString("\n\n")
		b.WriteString(m.port.View())
		if m.step == stepName {
			b.WriteString("\n")
			b.WriteString(m.name.View())
		} else if a.Name != "" {
			b.WriteString("\n")
			b.WriteString(HelpStyle.Render("Name: " + a.Name))
		}
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(ErrorMessageStyle.Render(m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// RunProfileForm runs the form inline and returns the answers. ok is false
// when the user cancelled.
func RunProfileForm(m ProfileForm) (ProfileAnswers, bool, error) {
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return ProfileAnswers{}, false, err
	}
	form := final.(ProfileForm)
	if !form.Done() {
		return ProfileAnswers{}, false, nil
	}
	return form.Answers(), true, nil
}
