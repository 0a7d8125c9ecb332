package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jp-hoehmann/bun/internal/whiteboard"
)

const inkRune = '█'

// Canvas rasterises whiteboard shapes into terminal cells.
type Canvas struct {
	width, height int
	cells         []rune
	colors        []string
}

// NewCanvas returns a blank canvas of width by height cells.
func NewCanvas(width, height int) *Canvas {
	width, height = max(width, 0), max(height, 0)
	c := &Canvas{
		width:  width,
		height: height,
		cells:  make([]rune, width*height),
		colors: make([]string, width*height),
	}
	for i := range c.cells {
		c.cells[i] = ' '
	}
	return c
}

// Draw plots every shape. Coordinates are scaled from [0,1] to the canvas.
func (c *Canvas) Draw(shapes []whiteboard.Shape) {
	if c.width == 0 || c.height == 0 {
		return
	}
	for _, s := range shapes {
		c.line(c.scale(s.X1, c.width), c.scale(s.Y1, c.height),
			c.scale(s.X2, c.width), c.scale(s.Y2, c.height), s.StrokeColor)
	}
}

// At returns the rune at x, y.
func (c *Canvas) At(x, y int) rune {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return ' '
	}
	return c.cells[y*c.width+x]
}

// String renders the canvas without colour.
func (c *Canvas) String() string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(c.cells[y*c.width : (y+1)*c.width]))
	}
	return b.String()
}

// View renders the canvas with each cell in its stroke colour.
func (c *Canvas) View() string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < c.width; x++ {
			i := y*c.width + x
			if c.colors[i] == "" {
				b.WriteRune(c.cells[i])
				continue
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(c.colors[i])).
				Render(string(c.cells[i])))
		}
	}
	return b.String()
}

func (c *Canvas) scale(v float64, size int) int {
	v = math.Max(0, math.Min(1, v))
	return int(math.Round(v * float64(size-1)))
}

// line plots a Bresenham line from x0,y0 to x1,y1.
func (c *Canvas) line(x0, y0, x1, y1 int, color string) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		c.plot(x0, y0, color)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *Canvas) plot(x, y int, color string) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return
	}
	i := y*c.width + x
	c.cells[i] = inkRune
	c.colors[i] = color
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
