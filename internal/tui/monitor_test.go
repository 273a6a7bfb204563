package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/otbridge/internal/hardware"
)

var limits = hardware.AxisValues{418, 353, 218, 218, 19, 19}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func TestMonitorTracksProgress(t *testing.T) {
	m := NewModel("prime.json", []string{"home", "move_to", "delay"}, limits, Controls{})

	m, _ = update(t, m, SampleMsg{Elapsed: 1.5, Positions: [hardware.NumAxes]float64{100, 200, 50, 218, 5, 19}})
	m, _ = update(t, m, StepMsg{Index: 0, Command: "home"})

	view := m.View()
	for _, want := range []string{"prime.json", "1/3", "move_to", "100.00", "200.00", "running", "1 samples"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, _ = update(t, m, DoneMsg{})
	if !strings.Contains(m.View(), "complete") {
		t.Error("expected complete status")
	}
}

func TestMonitorShowsFailure(t *testing.T) {
	m := NewModel("p", []string{"home"}, limits, Controls{})
	m, _ = update(t, m, DoneMsg{Err: errors.New("handshake timed out")})

	if !strings.Contains(m.View(), "handshake timed out") {
		t.Errorf("failure not shown:\n%s", m.View())
	}
}

func TestMonitorKeys(t *testing.T) {
	var paused, resumed, halted int
	controls := Controls{
		Pause:  func() error { paused++; return nil },
		Resume: func() error { resumed++; return nil },
		Halt:   func() error { halted++; return errors.New("not moving") },
	}
	m := NewModel("p", []string{"home"}, limits, controls)
	key := func(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

	m, cmd := update(t, m, key("p"))
	if m.phase != phasePaused || cmd == nil {
		t.Fatal("p should pause")
	}
	m, _ = update(t, m, cmd())
	if paused != 1 {
		t.Errorf("pause called %d times", paused)
	}

	m, cmd = update(t, m, key("p"))
	m, _ = update(t, m, cmd())
	if m.phase != phaseRunning || resumed != 1 {
		t.Error("second p should resume")
	}

	m, cmd = update(t, m, key("h"))
	m, _ = update(t, m, cmd())
	if m.phase != phaseHalted || halted != 1 {
		t.Error("h should halt")
	}
	if !strings.Contains(m.View(), "halt failed: not moving") {
		t.Errorf("action error not shown:\n%s", m.View())
	}

	if _, cmd = update(t, m, key("h")); cmd != nil {
		t.Error("halting twice should do nothing")
	}
	if _, cmd = update(t, m, key("q")); cmd == nil {
		t.Error("q should quit")
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		v, limit float64
		cells    int
		want     int
	}{
		{0, 100, 10, 0},
		{100, 100, 10, 9},
		{50, 100, 11, 5},
		{-5, 100, 10, 0},
		{500, 100, 10, 9},
	}
	for _, tt := range tests {
		if got := scale(tt.v, tt.limit, tt.cells); got != tt.want {
			t.Errorf("scale(%v, %v, %d) = %d, want %d", tt.v, tt.limit, tt.cells, got, tt.want)
		}
	}
}

func TestCanvasTrail(t *testing.T) {
	c := newCanvas(10, 5, 3)
	for x := 0; x < 5; x++ {
		c.push(point{x, 2})
	}
	c.push(point{4, 2})
	if len(c.trail) != 3 {
		t.Fatalf("trail length = %d, want 3", len(c.trail))
	}

	c.drawCarriage(4, 2)
	rows := strings.Split(c.String(), "\n")
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[2][4] != 'O' {
		t.Errorf("carriage not drawn: %q", rows[2])
	}
}
