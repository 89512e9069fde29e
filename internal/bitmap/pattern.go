package bitmap

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pattern is an immutable target pattern compiled from a PNG source.
// It is never mutated after Load returns it; each worker loads its own copy.
type Pattern struct {
	Name string
	Grid *Grid
}

// ValidationError reports the first pixel of a pattern source that is not
// one of the two canonical colors, in row-major scan order.
type ValidationError struct {
	Name  string
	X, Y  int
	Color string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pattern %q: disallowed color %s at (%d,%d)", e.Name, e.Color, e.X, e.Y)
}

// Store loads patterns from a directory of PNG files.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is not touched until
// Load or List is called.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// List returns the names (basenames without extension) of all PNG files in
// the store directory, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads <dir>/<name>.png, validates that every pixel is canonical on
// (opaque black) or off (opaque white), and compiles it into a Pattern.
// Any other pixel anywhere fails the load with a ValidationError naming the
// first offender in row-major order.
func (s *Store) Load(name string) (*Pattern, error) {
	path := filepath.Join(s.dir, name+".png")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern %q: %w", name, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pattern %q: %w", name, err)
	}

	return Compile(name, img)
}

// Compile validates an already-decoded image and flattens it into a Pattern.
// Exposed separately so tests and tools can compile in-memory images.
func Compile(name string, img image.Image) (*Pattern, error) {
	bounds := img.Bounds()
	grid := NewGrid(bounds.Dx(), bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			px, py := x-bounds.Min.X, y-bounds.Min.Y
			switch {
			case a == 0xffff && r == 0 && g == 0 && b == 0:
				grid.Set(px, py, On)
			case a == 0xffff && r == 0xffff && g == 0xffff && b == 0xffff:
				grid.Set(px, py, Off)
			default:
				return nil, &ValidationError{
					Name:  name,
					X:     px,
					Y:     py,
					Color: fmt.Sprintf("rgba(%d,%d,%d,%d)", r>>8, g>>8, b>>8, a>>8),
				}
			}
		}
	}

	return &Pattern{Name: name, Grid: grid}, nil
}
