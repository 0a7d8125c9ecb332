package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresentationSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"landscape keeps a side column", 120, 40, 120 - SidePanelColumns, 40},
		{"portrait keeps side rows", 60, 50, 60, 50 - SidePanelRows},
		{"square cells count as portrait", 80, 40, 80, 40 - SidePanelRows},
		{"too narrow clamps to zero", 20, 5, 0, 5},
		{"too short clamps to zero", 10, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := PresentationSize(tt.width, tt.height)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}
