// Package bitmap provides the binary pixel grids the search engine operates
// on: candidate grids produced per task, loaded target patterns, and the
// exact 2-D matcher that scans one for the other.
package bitmap

// Cell values. Every grid cell is exactly one of these.
const (
	Off uint8 = 0
	On  uint8 = 1
)

// Point is a top-left offset inside a grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid is a row-major binary pixel grid.
type Grid struct {
	Width  int
	Height int
	cells  []uint8
}

// NewGrid creates an all-Off grid of the given dimensions.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		cells:  make([]uint8, width*height),
	}
}

// At returns the cell at (x, y). Callers must stay in bounds.
func (g *Grid) At(x, y int) uint8 {
	return g.cells[y*g.Width+x]
}

// Set writes the cell at (x, y).
func (g *Grid) Set(x, y int, v uint8) {
	g.cells[y*g.Width+x] = v
}

// Blit copies src into g with its top-left corner at (ox, oy).
// Cells falling outside g are ignored.
func (g *Grid) Blit(src *Grid, ox, oy int) {
	for y := 0; y < src.Height; y++ {
		ty := oy + y
		if ty < 0 || ty >= g.Height {
			continue
		}
		for x := 0; x < src.Width; x++ {
			tx := ox + x
			if tx < 0 || tx >= g.Width {
				continue
			}
			g.cells[ty*g.Width+tx] = src.cells[y*src.Width+x]
		}
	}
}

// Clone returns an independent copy of g.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Width, g.Height)
	copy(out.cells, g.cells)
	return out
}
