// Package tui renders a live view of the robot while a protocol runs.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/otbridge/internal/hardware"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	box     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
)

const (
	canvasWidth  = 60
	canvasHeight = 16
	gaugeWidth   = 20
)

// Controls are the actions the monitor can trigger. Each runs off the UI
// goroutine; nil entries are ignored.
type Controls struct {
	Pause  func() error
	Resume func() error
	Halt   func() error
}

// SampleMsg carries a position sample.
type SampleMsg hardware.Sample

// StepMsg reports that a protocol command finished.
type StepMsg struct {
	Index    int
	Command  string
	Duration time.Duration
}

// DoneMsg reports the end of the run.
type DoneMsg struct {
	Err error
}

type actionMsg struct {
	name string
	err  error
}

type phase int

const (
	phaseRunning phase = iota
	phasePaused
	phaseHalted
	phaseDone
	phaseFailed
)

// Model is the bubbletea model of the monitor.
type Model struct {
	title    string
	commands []string
	limits   hardware.AxisValues
	controls Controls

	phase   phase
	step    int
	sample  hardware.Sample
	samples int
	err     error
	note    string

	canvas *canvas
}

// NewModel returns a monitor for a protocol with the given commands.
// limits sets the full-scale travel of each axis, usually the home
// position.
func NewModel(title string, commands []string, limits hardware.AxisValues, controls Controls) Model {
	for i, v := range limits {
		if v <= 0 {
			limits[i] = 1
		}
	}
	return Model{
		title:    title,
		commands: commands,
		limits:   limits,
		controls: controls,
		canvas:   newCanvas(canvasWidth, canvasHeight, 60),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case SampleMsg:
		m.sample = hardware.Sample(msg)
		m.samples++
		m.canvas.push(m.carriage())
		return m, nil
	case StepMsg:
		m.step = msg.Index + 1
		return m, nil
	case DoneMsg:
		m.err = msg.Err
		if msg.Err != nil {
			m.phase = phaseFailed
		} else {
			m.phase = phaseDone
		}
		return m, nil
	case actionMsg:
		if msg.err != nil {
			m.note = fmt.Sprintf("%s failed: %v", msg.name, msg.err)
		} else {
			m.note = ""
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "p", " ":
		switch m.phase {
		case phaseRunning:
			m.phase = phasePaused
			return m, run("pause", m.controls.Pause)
		case phasePaused:
			m.phase = phaseRunning
			return m, run("resume", m.controls.Resume)
		}
	case "h":
		if m.phase == phaseRunning || m.phase == phasePaused {
			m.phase = phaseHalted
			return m, run("halt", m.controls.Halt)
		}
	}
	return m, nil
}

func run(name string, fn func() error) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		return actionMsg{name: name, err: fn()}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(cyan.Bold(true).Render(m.title))
	b.WriteString(dim.Render(fmt.Sprintf("   t=%.2fs", m.sample.Elapsed)))
	b.WriteString("\n")
	b.WriteString(m.stepLine())
	b.WriteString("\n")

	p := m.sample.Positions
	c := m.carriage()
	m.canvas.drawCarriage(c.x, c.y)
	b.WriteString(box.Render(white.Render(m.canvas.String())))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("  X %s  Y %s\n",
		white.Render(fmt.Sprintf("%8.2f", p[hardware.AxisX])),
		white.Render(fmt.Sprintf("%8.2f", p[hardware.AxisY]))))
	for _, ax := range []hardware.Axis{hardware.AxisZ, hardware.AxisA, hardware.AxisB, hardware.AxisC} {
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ax, gauge(p[ax], m.limits[ax]), dim.Render(fmt.Sprintf("%7.2f", p[ax]))))
	}

	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(dim.Render("  p pause/resume · h halt · q quit"))
	return b.String()
}

// carriage is the X/Y position in canvas cells, Y growing upwards.
func (m Model) carriage() point {
	p := m.sample.Positions
	return point{
		x: scale(p[hardware.AxisX], m.limits[hardware.AxisX], canvasWidth),
		y: canvasHeight - 1 - scale(p[hardware.AxisY], m.limits[hardware.AxisY], canvasHeight),
	}
}

func (m Model) stepLine() string {
	total := len(m.commands)
	if total == 0 {
		return dim.Render("  no commands")
	}
	next := ""
	if m.step < total {
		next = m.commands[m.step]
	}
	bar := progress(m.step, total, gaugeWidth)
	return fmt.Sprintf("  %s %s %s", bar, dim.Render(fmt.Sprintf("%d/%d", m.step, total)), magenta.Render(next))
}

func (m Model) statusLine() string {
	var s string
	switch m.phase {
	case phaseRunning:
		s = green.Render("● running")
	case phasePaused:
		s = yellow.Render("❚❚ paused")
	case phaseHalted:
		s = red.Render("■ halted")
	case phaseDone:
		s = green.Render("✓ complete")
	case phaseFailed:
		s = red.Render("✗ failed: " + m.err.Error())
	}
	if m.note != "" {
		s += "  " + yellow.Render(m.note)
	}
	return "  " + s + dim.Render(fmt.Sprintf("   %d samples", m.samples))
}

// scale maps v in [0, limit] onto [0, cells).
func scale(v, limit float64, cells int) int {
	i := int(math.Round(v / limit * float64(cells-1)))
	if i < 0 {
		return 0
	}
	if i > cells-1 {
		return cells - 1
	}
	return i
}

func gauge(v, limit float64) string {
	n := scale(v, limit, gaugeWidth+1)
	return cyan.Render(strings.Repeat("█", n)) + dim.Render(strings.Repeat("░", gaugeWidth-n))
}

func progress(done, total, width int) string {
	n := 0
	if total > 0 {
		n = done * width / total
	}
	return green.Render(strings.Repeat("━", n)) + dim.Render(strings.Repeat("━", width-n))
}

// NewProgram wraps m in a full-screen program. Feed it SampleMsg, StepMsg
// and DoneMsg with Program.Send.
func NewProgram(m Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}
