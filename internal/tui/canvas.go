package tui

import "strings"

type point struct{ x, y int }

// canvas is a character grid with a fading trail.
type canvas struct {
	w, h  int
	cells [][]rune
	trail []point
	keep  int
}

func newCanvas(w, h, keep int) *canvas {
	cells := make([][]rune, h)
	for i := range cells {
		cells[i] = make([]rune, w)
	}
	return &canvas{w: w, h: h, cells: cells, keep: keep, trail: make([]point, 0, keep)}
}

func (c *canvas) clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = ' '
		}
	}
}

func (c *canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

// line draws with Bresenham's algorithm.
func (c *canvas) line(x1, y1, x2, y2 int, r rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *canvas) push(p point) {
	if n := len(c.trail); n > 0 && c.trail[n-1] == p {
		return
	}
	c.trail = append(c.trail, p)
	if len(c.trail) > c.keep {
		c.trail = c.trail[1:]
	}
}

// drawCarriage plots the carriage at (px, py) in grid coordinates over
// its trail and the gantry rail.
func (c *canvas) drawCarriage(px, py int) {
	c.clear()

	for i, pt := range c.trail {
		if i < len(c.trail)/2 {
			c.set(pt.x, pt.y, '.')
		} else {
			c.set(pt.x, pt.y, 'o')
		}
	}
	c.line(0, py, c.w-1, py, '-')
	c.set(px, py, 'O')
}

func (c *canvas) String() string {
	var b strings.Builder
	for i, row := range c.cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(row))
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
