// Package export renders recorded traces as SVG.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/otbridge/internal/analysis"
	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/storage"
)

var ErrEmptyTrace = errors.New("export: trace has fewer than two samples")

// axisColors strokes the axes in AxesSVG.
var axisColors = [hardware.NumAxes]string{"#00ff87", "#5fd7ff", "#ffd700", "#ff87d7", "#af87ff", "#ff5f5f"}

func header(w *bufio.Writer, width, height int) {
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// PathSVG draws the carriage path in the (ax, ay) plane, seen from above.
func PathSVG(w io.Writer, tr *storage.Trace, ax, ay hardware.Axis, width, height int, stroke string) error {
	if tr == nil || tr.Len() < 2 {
		return ErrEmptyTrace
	}
	b := analysis.PathBounds(tr, ax, ay)
	rangeX := b.MaxX - b.MinX
	rangeY := b.MaxY - b.MinY

	bw := bufio.NewWriter(w)
	header(bw, width, height)
	fmt.Fprintf(bw, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, stroke)
	for i, s := range tr.Samples {
		x := (s.Positions[ax] - b.MinX) / rangeX * float64(width)
		y := float64(height) - (s.Positions[ay]-b.MinY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(bw, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(bw, " L%.1f,%.1f", x, y)
		}
	}
	bw.WriteString("\"/>\n</svg>\n")
	return bw.Flush()
}

// AxesSVG plots the given axes against time, one line per axis, all on the
// same position scale.
func AxesSVG(w io.Writer, tr *storage.Trace, axes []hardware.Axis, width, height int) error {
	if tr == nil || tr.Len() < 2 {
		return ErrEmptyTrace
	}
	times := tr.Times()
	t0, t1 := times[0], times[len(times)-1]
	if t1 <= t0 {
		t1 = t0 + 1
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, ax := range axes {
		for _, v := range tr.Axis(ax) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	bw := bufio.NewWriter(w)
	header(bw, width, height)
	for _, ax := range axes {
		vals := tr.Axis(ax)
		pts := make([]string, len(vals))
		for i, v := range vals {
			x := (times[i] - t0) / (t1 - t0) * float64(width)
			y := float64(height) - (v-lo)/(hi-lo)*float64(height)
			pts[i] = fmt.Sprintf("%.1f,%.1f", x, y)
		}
		fmt.Fprintf(bw, `<polyline id="%s" fill="none" stroke="%s" stroke-width="1.5" points="%s"/>`+"\n",
			strings.ToLower(ax.String()), axisColors[ax], strings.Join(pts, " "))
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}
