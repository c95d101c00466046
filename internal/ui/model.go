package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/climeter/internal/analyzer"
	"github.com/olivier-w/climeter/internal/util"
)

const (
	defaultInterval = time.Millisecond
	defaultBarWidth = 32
)

// Meter is the read side of an analyzer.
type Meter interface {
	Snapshot(band int) (analyzer.Level, error)
	Bands() []analyzer.BandRange
	Config() analyzer.Config
}

// Options configure the meter display.
type Options struct {
	Title    string
	Interval time.Duration // poll interval, at least 1ms
	BarWidth int
	Now      func() time.Time
}

type dirtyFlags uint8

const (
	dirtyHeader dirtyFlags = 1 << iota
)

// bar is one drawn row: a single band of a single meter.
type bar struct {
	meter Meter
	band  int
	label string
	level float64
}

// Model is the Bubbletea model for the meter display.
type Model struct {
	bars     []bar
	labelW   int
	ranges   []string
	title    string
	interval time.Duration
	barWidth int
	now      func() time.Time
	start    time.Time
	elapsed  time.Duration
	width    int
	height   int
	quitting bool

	springs  bool
	field    springField
	gradient bool
	progress progress.Model

	dirty       dirtyFlags
	headerCache string
}

// New creates a Model drawing one bar per band of every meter.
func New(meters []Meter, opts Options) Model {
	if opts.Interval < time.Millisecond {
		opts.Interval = defaultInterval
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = defaultBarWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := Model{
		title:    opts.Title,
		interval: opts.Interval,
		barWidth: opts.BarWidth,
		now:      opts.Now,
		start:    opts.Now(),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(opts.BarWidth),
			progress.WithoutPercentage(),
		),
		dirty: dirtyHeader,
	}
	for _, mt := range meters {
		cfg := mt.Config()
		bands := mt.Bands()
		for i, b := range bands {
			label := cfg.Label
			if len(bands) > 1 {
				label += " " + util.FormatBand(b.Lower, b.Upper)
			}
			m.bars = append(m.bars, bar{meter: mt, band: i, label: label})
			m.labelW = max(m.labelW, len(label)+2)
			m.ranges = append(m.ranges, cfg.Label+" "+util.FormatBand(b.Lower, b.Upper))
		}
	}
	fps := int(time.Second / m.interval)
	m.field = newSpringField(fps, 6.0, 0.5)
	m.field.resize(len(m.bars))
	m.refreshHeader()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.interval), tea.SetWindowTitle(windowTitle(m.title)))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.handleMsg(msg)
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if isQuit(msg) {
			m.quitting = true
			return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
		}
		switch msg.String() {
		case "s":
			m.springs = !m.springs
		case "g":
			m.gradient = !m.gradient
		}
		return m, nil

	case tickMsg:
		m.poll()
		elapsed := m.now().Sub(m.start)
		if int(elapsed.Seconds()) != int(m.elapsed.Seconds()) {
			m.dirty |= dirtyHeader
		}
		m.elapsed = elapsed
		m.refreshHeader()
		return m, tickCmd(m.interval)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

// poll reads the current level of every bar. A meter that has shut down
// reads as silence.
func (m *Model) poll() {
	for i := range m.bars {
		b := &m.bars[i]
		lvl, err := b.meter.Snapshot(b.band)
		target := lvl.Value
		if err != nil {
			target = 0
		}
		if m.springs {
			b.level = m.field.step(i, target)
		} else {
			b.level = target
			m.field.set(i, target)
		}
	}
}

func (m *Model) refreshHeader() {
	if m.dirty&dirtyHeader == 0 {
		return
	}
	m.dirty &^= dirtyHeader

	var sb strings.Builder
	sb.WriteString("\n  " + headerStyle.Render("climeter") + "\n\n")
	if m.title != "" {
		sb.WriteString("  " + titleStyle.Render(m.title) + "\n")
	}
	sb.WriteString("  " + timeStyle.Render(util.FormatDuration(m.elapsed)))
	if len(m.ranges) > 0 {
		sb.WriteString("  " + rangeStyle.Render(strings.Join(m.ranges, "  ·  ")))
	}
	sb.WriteString("\n\n")
	m.headerCache = sb.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.headerCache)
	for _, b := range m.bars {
		sb.WriteString("  ")
		if m.gradient {
			sb.WriteString(renderGradientLine(b.label, m.labelW, b.level, m.barWidth, m.progress))
		} else {
			sb.WriteString(renderLine(b.label, m.labelW, b.level, m.barWidth))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n  " + helpStyle.Render(helpText(m.springs, m.gradient)) + "\n")

	view := sb.String()
	if pad := m.height - strings.Count(view, "\n"); pad > 0 {
		view = strings.Repeat("\n", pad) + view
	}
	return view
}

func windowTitle(title string) string {
	if title == "" {
		return "climeter"
	}
	return title + " - climeter"
}
