package whiteboard

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Snapshot is the full serialized state of a widget. Only the widget that
// produced it knows its structure.
type Snapshot []byte

// Widget is a drawing surface.
type Widget interface {
	// Snapshot serializes the whole drawing.
	Snapshot() Snapshot
	// Load replaces the drawing with s.
	Load(s Snapshot) error
	Clear()
	// OnDrawEnd registers fn to be called after each completed stroke.
	OnDrawEnd(fn func())
}

// MountFunc constructs a widget, seeded with initial when it is non-empty.
type MountFunc func(initial Snapshot) (Widget, error)

// Shape is a single stroke. Coordinates are normalised to [0,1] so a board can
// be rendered at any size.
type Shape struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

type boardState struct {
	Shapes []Shape `json:"shapes"`
}

// Board is the in-memory Widget used by the terminal client.
type Board struct {
	mu       sync.RWMutex
	shapes   []Shape
	handlers []func()
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// MountBoard is the MountFunc for Board.
func MountBoard(initial Snapshot) (Widget, error) {
	b := NewBoard()
	if len(initial) > 0 {
		if err := b.Load(initial); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Draw adds a stroke and fires the draw-end handlers.
func (b *Board) Draw(s Shape) {
	b.mu.Lock()
	b.shapes = append(b.shapes, s)
	handlers := append([]func(){}, b.handlers...)
	b.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// Shapes returns a copy of the strokes on the board.
func (b *Board) Shapes() []Shape {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Shape(nil), b.shapes...)
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state := boardState{Shapes: b.shapes}
	if state.Shapes == nil {
		state.Shapes = []Shape{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		// Shape has only plain fields; this cannot fail.
		panic(err)
	}
	return data
}

func (b *Board) Load(s Snapshot) error {
	var state boardState
	if err := json.Unmarshal(s, &state); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	b.mu.Lock()
	b.shapes = state.Shapes
	b.mu.Unlock()
	return nil
}

func (b *Board) Clear() {
	b.mu.Lock()
	b.shapes = nil
	b.mu.Unlock()
}

func (b *Board) OnDrawEnd(fn func()) {
	b.mu.Lock()
	b.handlers = append(b.handlers, fn)
	b.mu.Unlock()
}
