package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type startupPhase uint8

const (
	phaseOpening startupPhase = iota
	phaseFailed
)

type startupResolvedMsg struct {
	sess *session
	err  error
}

// startupModel shows a spinner while the source opens, then hands the
// terminal to the meter display.
type startupModel struct {
	cfg     cliConfig
	open    func() (*session, error)
	phase   startupPhase
	err     error
	width   int
	height  int
	spinner spinner.Model
}

func newStartupModel(cfg cliConfig, open func() (*session, error)) startupModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	return startupModel{
		cfg:     cfg,
		open:    open,
		phase:   phaseOpening,
		spinner: s,
	}
}

func (m startupModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, openSessionCmd(m.open))
}

func openSessionCmd(open func() (*session, error)) tea.Cmd {
	return func() tea.Msg {
		sess, err := open()
		return startupResolvedMsg{sess: sess, err: err}
	}
}

func (m startupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.phase != phaseOpening {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startupResolvedMsg:
		if msg.err != nil {
			m.phase = phaseFailed
			m.err = msg.err
			return m, nil
		}

		model := msg.sess.model(m.cfg)
		cmds := []tea.Cmd{model.Init()}
		if m.width > 0 || m.height > 0 {
			w, h := m.width, m.height
			cmds = append(cmds, func() tea.Msg {
				return tea.WindowSizeMsg{Width: w, Height: h}
			})
		}
		return model, tea.Batch(cmds...)

	case tea.KeyMsg:
		if startupIsQuit(msg) || m.phase == phaseFailed {
			return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
		}
	}
	return m, nil
}

func (m startupModel) View() string {
	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(startupHeaderStyle.Render("climeter"))
	b.WriteString("\n\n  ")

	switch m.phase {
	case phaseFailed:
		b.WriteString(startupErrorStyle.Render(m.err.Error()))
		b.WriteString("\n\n  ")
		b.WriteString(startupHelpStyle.Render("press any key to exit"))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(startupStatusStyle.Render("Opening " + m.cfg.source + "..."))
		b.WriteString("\n\n  ")
		b.WriteString(startupHelpStyle.Render("q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func startupIsQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return true
	}
	return false
}

var (
	startupHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"})
	startupStatusStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"})
	startupHelpStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
	startupErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#A00000", Dark: "#FF8080"})
)
