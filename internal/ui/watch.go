package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Sample is one poll of a supply, already converted to display units.
type Sample struct {
	Voltage    float64
	Current    float64
	Power      float64
	MaxVoltage float64 // gauge full scale; zero hides the gauge
	Output     bool
	Mode       string // "CV" or "CC"
	Protection string
	Extra      []Detail
}

// Detail is one extra labelled line under the live readings.
type Detail struct {
	Name  string
	Value string
}

// SampleFunc polls the device once.
type SampleFunc func() (Sample, error)

type watchKeyMap struct {
	Pause   key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Refresh, k.Quit}
}

func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Refresh},
		{k.Help, k.Quit},
	}
}

func newWatchKeyMap() watchKeyMap {
	return watchKeyMap{
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type tickMsg time.Time

type sampleMsg Sample

type sampleErrMsg struct{ err error }

// WatchModel is the bubbletea model behind "psuctl watch": it polls on a
// fixed interval and redraws the latest readings.
type WatchModel struct {
	header   *Header
	sample   SampleFunc
	interval time.Duration

	last     Sample
	haveLast bool
	err      error
	polls    int
	paused   bool
	inFlight bool

	spinner spinner.Model
	gauge   progress.Model
	keys    watchKeyMap
	help    help.Model
	width   int
}

// NewWatchModel creates a watch view. interval below 100ms is raised to
// 100ms.
func NewWatchModel(header *Header, sample SampleFunc, interval time.Duration) WatchModel {
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width := MinTerminalWidth
	if header != nil {
		width = clampWidth(header.Width)
	}

	return WatchModel{
		header:   header,
		sample:   sample,
		interval: interval,
		spinner:  s,
		gauge: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(width-24),
		),
		keys:  newWatchKeyMap(),
		help:  help.New(),
		width: width,
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m WatchModel) fetch() tea.Cmd {
	sample := m.sample
	return func() tea.Msg {
		s, err := sample()
		if err != nil {
			return sampleErrMsg{err}
		}
		return sampleMsg(s)
	}
}

// startFetch marks a poll in flight and returns the command running it.
func (m WatchModel) startFetch() (WatchModel, tea.Cmd) {
	if m.inFlight {
		return m, nil
	}
	m.inFlight = true
	return m, m.fetch()
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return tickMsg(time.Now()) })
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			if !m.paused {
				return m.startFetch()
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m.startFetch()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.gauge.Width = m.width - 24
		m.help.Width = m.width
		if m.header != nil {
			m.header.SetWidth(m.width)
		}
		return m, nil

	case tickMsg:
		if m.paused {
			return m, nil
		}
		return m.startFetch()

	case sampleMsg:
		m.inFlight = false
		m.last = Sample(msg)
		m.haveLast = true
		m.err = nil
		m.polls++
		if m.paused {
			return m, nil
		}
		return m, m.tick()

	case sampleErrMsg:
		m.inFlight = false
		m.err = msg.err
		if m.paused {
			return m, nil
		}
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Last returns the most recent successful sample.
func (m WatchModel) Last() (Sample, bool) {
	return m.last, m.haveLast
}

// Err returns the error from the most recent poll, if it failed.
func (m WatchModel) Err() error {
	return m.err
}

// Paused reports whether polling is paused.
func (m WatchModel) Paused() bool {
	return m.paused
}

func reading(value float64, unit string) string {
	return ReadingStyle.Render(fmt.Sprintf("%.3f", value)) + ReadingUnitStyle.Render(unit)
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder
	if m.header != nil {
		b.WriteString(m.header.Render())
		b.WriteString("\n\n")
	}

	if m.haveLast {
		s := m.last
		b.WriteString(reading(s.Voltage, "V") + "\n")
		b.WriteString(reading(s.Current, "A") + "\n")
		b.WriteString(reading(s.Power, "W") + "\n\n")

		if s.MaxVoltage > 0 {
			frac := s.Voltage / s.MaxVoltage
			if frac > 1 {
				frac = 1
			}
			if frac < 0 {
				frac = 0
			}
			b.WriteString("  " + m.gauge.ViewAs(frac))
			b.WriteString(HeaderParamKeyStyle.Render(fmt.Sprintf("of %.2f V", s.MaxVoltage)))
			b.WriteString("\n\n")
		}

		b.WriteString(m.statusLine(s))
		b.WriteString("\n")
		for _, d := range s.Extra {
			b.WriteString(ResultKeyStyle.Render("  "+d.Name+":") + " " + ResultValueStyle.Render(d.Value) + "\n")
		}
	} else if m.err == nil {
		b.WriteString("  " + m.spinner.View() + " Waiting for first reading...\n")
	}

	if m.err != nil {
		b.WriteString("\n" + ErrorMessageStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.paused:
		b.WriteString(HelpStyle.Render("paused"))
	case m.inFlight:
		b.WriteString("  " + m.spinner.View() + HeaderParamKeyStyle.Render(fmt.Sprintf("polling every %s", m.interval)))
	default:
		b.WriteString(HelpStyle.Render(fmt.Sprintf("%d polls, every %s", m.polls, m.interval)))
	}
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

func (m WatchModel) statusLine(s Sample) string {
	out := lipgloss.NewStyle().Foreground(MutedColor).Render(OffMarker + " OFF")
	if s.Output {
		out = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true).Render(OnMarker + " ON")
	}

	mode := s.Mode
	if mode == "CC" {
		mode = lipgloss.NewStyle().Foreground(WarningColor).Render(mode)
	}

	prot := s.Protection
	if prot != "" && prot != "OK" {
		prot = ErrorTitleStyle.Render(prot)
	}

	parts := []string{"  " + out}
	if mode != "" {
		parts = append(parts, mode)
	}
	if prot != "" {
		parts = append(parts, prot)
	}
	return strings.Join(parts, "   ")
}

// RunWatch runs the watch view until the user quits.
func RunWatch(m WatchModel) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
