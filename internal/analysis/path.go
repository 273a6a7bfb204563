package analysis

import (
	"strings"

	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/storage"
)

// Bounds is the rectangle a path occupies, padded by 10% on each side.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// PathBounds returns the padded bounds of the trace in the (ax, ay) plane.
func PathBounds(tr *storage.Trace, ax, ay hardware.Axis) Bounds {
	if tr == nil || tr.Len() == 0 {
		return Bounds{MaxX: 1, MaxY: 1}
	}
	first := tr.Samples[0].Positions
	b := Bounds{MinX: first[ax], MaxX: first[ax], MinY: first[ay], MaxY: first[ay]}
	for _, s := range tr.Samples {
		x, y := s.Positions[ax], s.Positions[ay]
		if x < b.MinX {
			b.MinX = x
		}
		if x > b.MaxX {
			b.MaxX = x
		}
		if y < b.MinY {
			b.MinY = y
		}
		if y > b.MaxY {
			b.MaxY = y
		}
	}

	rangeX := b.MaxX - b.MinX
	rangeY := b.MaxY - b.MinY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.MinX -= rangeX * 0.1
	b.MaxX += rangeX * 0.1
	b.MinY -= rangeY * 0.1
	b.MaxY += rangeY * 0.1
	return b
}

// PathASCII draws the carriage path in the (ax, ay) plane. The start is
// marked 'S', the end 'E'.
func PathASCII(tr *storage.Trace, ax, ay hardware.Axis, width, height int) string {
	if tr == nil || tr.Len() == 0 || width < 2 || height < 2 {
		return ""
	}
	b := PathBounds(tr, ax, ay)
	rangeX := b.MaxX - b.MinX
	rangeY := b.MaxY - b.MinY

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	cell := func(s hardware.Sample) (int, int) {
		col := int((s.Positions[ax] - b.MinX) / rangeX * float64(width-1))
		row := height - 1 - int((s.Positions[ay]-b.MinY)/rangeY*float64(height-1))
		return row, col
	}
	put := func(row, col int, r rune) {
		if row >= 0 && row < height && col >= 0 && col < width {
			grid[row][col] = r
		}
	}

	for _, s := range tr.Samples {
		row, col := cell(s)
		put(row, col, '•')
	}
	row, col := cell(tr.Samples[0])
	put(row, col, 'S')
	row, col = cell(tr.Samples[tr.Len()-1])
	put(row, col, 'E')

	var sb strings.Builder
	for _, line := range grid {
		sb.WriteString(string(line))
		sb.WriteRune('\n')
	}
	return sb.String()
}
