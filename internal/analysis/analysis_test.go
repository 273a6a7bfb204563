package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/storage"
)

// rampTrace moves X from 0 to 10 over one second, holds for a second, then
// moves Y from 0 to 5.
func rampTrace() *storage.Trace {
	tr := &storage.Trace{}
	add := func(t, x, y float64) {
		var s hardware.Sample
		s.Elapsed = t
		s.Positions[hardware.AxisX] = x
		s.Positions[hardware.AxisY] = y
		tr.Samples = append(tr.Samples, s)
	}
	for i := 0; i <= 10; i++ {
		add(float64(i)*0.1, float64(i), 0)
	}
	for i := 1; i <= 10; i++ {
		add(1+float64(i)*0.1, 10, 0)
	}
	for i := 1; i <= 5; i++ {
		add(2+float64(i)*0.1, 10, float64(i))
	}
	return tr
}

func TestSummarize(t *testing.T) {
	sum := Summarize(rampTrace())
	if len(sum) != hardware.NumAxes {
		t.Fatalf("expected %d summaries, got %d", hardware.NumAxes, len(sum))
	}

	x := sum[hardware.AxisX]
	if x.Min != 0 || x.Max != 10 {
		t.Errorf("x range = [%v, %v], want [0, 10]", x.Min, x.Max)
	}
	if math.Abs(x.Travel-10) > 1e-9 {
		t.Errorf("x travel = %v, want 10", x.Travel)
	}
	if math.Abs(x.PeakSpeed-10) > 1e-6 {
		t.Errorf("x peak speed = %v, want 10", x.PeakSpeed)
	}

	y := sum[hardware.AxisY]
	if math.Abs(y.Travel-5) > 1e-9 {
		t.Errorf("y travel = %v, want 5", y.Travel)
	}
	if sum[hardware.AxisA].Travel != 0 {
		t.Errorf("right z moved: %v", sum[hardware.AxisA])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	for _, s := range Summarize(&storage.Trace{}) {
		if s.Travel != 0 || s.PeakSpeed != 0 {
			t.Errorf("non-zero summary for empty trace: %+v", s)
		}
	}
}

func TestMoves(t *testing.T) {
	moves := Moves(rampTrace(), 1)
	if len(moves) != 2 {
		t.Fatalf("expected 2 moves, got %d: %+v", len(moves), moves)
	}

	first := moves[0]
	if first.Start != 0 || math.Abs(first.End-1) > 1e-9 {
		t.Errorf("first move spans [%v, %v], want [0, 1]", first.Start, first.End)
	}
	if first.To[hardware.AxisX] != 10 {
		t.Errorf("first move ends at x=%v", first.To[hardware.AxisX])
	}
	if math.Abs(moves[1].Duration()-0.5) > 1e-9 {
		t.Errorf("second move lasted %v, want 0.5", moves[1].Duration())
	}
	if moves[1].To[hardware.AxisY] != 5 {
		t.Errorf("second move ends at y=%v", moves[1].To[hardware.AxisY])
	}
}

func TestMovesShortTrace(t *testing.T) {
	if m := Moves(&storage.Trace{Samples: make([]hardware.Sample, 1)}, 1); m != nil {
		t.Errorf("expected no moves, got %v", m)
	}
}

func TestPathASCII(t *testing.T) {
	out := PathASCII(rampTrace(), hardware.AxisX, hardware.AxisY, 20, 8)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d", len(lines))
	}
	if !strings.Contains(out, "S") || !strings.Contains(out, "E") {
		t.Errorf("missing start or end marker:\n%s", out)
	}
	// The start is bottom left, the end top right.
	if !strings.Contains(lines[len(lines)-1], "S") {
		t.Errorf("start not near the bottom:\n%s", out)
	}
	if strings.Index(lines[1], "E") < 10 {
		t.Errorf("end not near the top right:\n%s", out)
	}
}

func TestPathBoundsPadding(t *testing.T) {
	b := PathBounds(rampTrace(), hardware.AxisX, hardware.AxisY)
	if math.Abs(b.MinX+1) > 1e-9 || math.Abs(b.MaxX-11) > 1e-9 {
		t.Errorf("x bounds = [%v, %v], want [-1, 11]", b.MinX, b.MaxX)
	}
	if math.Abs(b.MinY+0.5) > 1e-9 || math.Abs(b.MaxY-5.5) > 1e-9 {
		t.Errorf("y bounds = [%v, %v], want [-0.5, 5.5]", b.MinY, b.MaxY)
	}
}
