// Package qrgen renders text payloads into binary QR module grids for the
// search engine to scan.
package qrgen

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
)

// Options controls candidate rendering.
type Options struct {
	// ModuleScale is the number of grid cells per QR module.
	ModuleScale int
	// QuietZone is the number of blank modules around the symbol.
	QuietZone int
	// ECLevel is the error correction level: low, medium, high or highest.
	ECLevel string
}

// RecoveryLevel maps the textual level to the encoder's constant.
func (o Options) RecoveryLevel() (qrcode.RecoveryLevel, error) {
	switch o.ECLevel {
	case "", "medium":
		return qrcode.Medium, nil
	case "low":
		return qrcode.Low, nil
	case "high":
		return qrcode.High, nil
	case "highest":
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("unknown error correction level: %q", o.ECLevel)
	}
}

// Generator produces candidate grids from payloads. Generation can fail for
// some payloads (too long for the symbol version, unencodable); callers treat
// that as an expected, non-fatal condition.
type Generator struct {
	opts  Options
	level qrcode.RecoveryLevel
}

// New creates a generator with the given options.
func New(opts Options) (*Generator, error) {
	level, err := opts.RecoveryLevel()
	if err != nil {
		return nil, err
	}
	if opts.ModuleScale < 1 {
		opts.ModuleScale = 1
	}
	if opts.QuietZone < 0 {
		opts.QuietZone = 0
	}
	return &Generator{opts: opts, level: level}, nil
}

// Generate encodes payload into a QR symbol and expands it into a binary
// grid: each module becomes a ModuleScale x ModuleScale block, surrounded by
// a QuietZone of Off modules.
func (g *Generator) Generate(payload string) (*bitmap.Grid, error) {
	q, err := qrcode.New(payload, g.level)
	if err != nil {
		return nil, fmt.Errorf("qr encode failed: %w", err)
	}
	q.DisableBorder = true

	modules := q.Bitmap()
	n := len(modules)
	if n == 0 {
		return nil, fmt.Errorf("qr encode produced an empty symbol")
	}

	scale := g.opts.ModuleScale
	margin := g.opts.QuietZone
	size := (n + 2*margin) * scale

	grid := bitmap.NewGrid(size, size)
	for my, row := range modules {
		for mx, on := range row {
			if !on {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					grid.Set((mx+margin)*scale+dx, (my+margin)*scale+dy, bitmap.On)
				}
			}
		}
	}

	return grid, nil
}
