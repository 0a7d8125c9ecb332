package ui

// The side panel next to the whiteboard is 224px wide in landscape and 224px
// tall in portrait. A terminal cell is about 8x16 px.
const (
	SidePanelColumns = 224 / 8
	SidePanelRows    = 224 / 16
)

// PresentationSize returns the whiteboard size in cells for a main area of
// width by height cells. In landscape the board takes the full height and
// leaves room for the side panel on the right; in portrait it takes the full
// width and leaves room for the panel below.
func PresentationSize(width, height int) (w, h int) {
	if Landscape(width, height) {
		return max(width-SidePanelColumns, 0), max(height, 0)
	}
	return max(width, 0), max(height-SidePanelRows, 0)
}

// Landscape reports whether an area of width by height cells is wider than
// tall on screen. Cells are twice as tall as wide.
func Landscape(width, height int) bool {
	return width > 2*height
}
