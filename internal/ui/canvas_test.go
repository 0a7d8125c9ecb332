package ui

import (
	"testing"

	"github.com/jp-hoehmann/bun/internal/whiteboard"
	"github.com/stretchr/testify/assert"
)

func TestCanvasDrawsLines(t *testing.T) {
	c := NewCanvas(5, 3)
	c.Draw([]whiteboard.Shape{
		{X1: 0, Y1: 0, X2: 1, Y2: 0},
		{X1: 0, Y1: 1, X2: 0, Y2: 1},
	})

	assert.Equal(t, "█████\n     \n█    ", c.String())
}

func TestCanvasDiagonal(t *testing.T) {
	c := NewCanvas(3, 3)
	c.Draw([]whiteboard.Shape{{X1: 0, Y1: 0, X2: 1, Y2: 1}})

	for i := 0; i < 3; i++ {
		assert.Equal(t, inkRune, c.At(i, i))
	}
	assert.Equal(t, ' ', c.At(2, 0))
}

func TestCanvasClampsOutOfRange(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Draw([]whiteboard.Shape{{X1: -3, Y1: 0.5, X2: 7, Y2: 0.5}})

	assert.Equal(t, "    \n████", c.String())
	assert.Equal(t, ' ', c.At(10, 10))
}

func TestEmptyCanvas(t *testing.T) {
	c := NewCanvas(0, -1)
	c.Draw([]whiteboard.Shape{{X2: 1, Y2: 1}})
	assert.Empty(t, c.String())
}
