package bitmap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
)

// EncodePNG renders the grid as a PNG, each cell drawn as a scale x scale
// block (On = black, Off = white).
func (g *Grid) EncodePNG(w io.Writer, scale int) error {
	if scale < 1 {
		scale = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, g.Width*scale, g.Height*scale))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if g.At(x, y) == On {
				c = color.RGBA{0, 0, 0, 255}
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}

	return png.Encode(w, img)
}

// WritePNG renders the grid to a PNG file at path.
func (g *Grid) WritePNG(path string, scale int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := g.EncodePNG(f, scale); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
