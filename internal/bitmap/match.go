package bitmap

// Find scans candidate for an exact occurrence of the pattern.
// The scan visits every feasible top-left offset in row-major order (y outer,
// x inner, both ascending), so the first matching offset in that order wins.
// Equality is exact, cell for cell. If the pattern exceeds the candidate in
// either dimension the scan is skipped entirely.
//
// Find is a pure function and safe to call concurrently against independent
// grids.
func Find(p *Pattern, candidate *Grid) (Point, bool) {
	pw, ph := p.Grid.Width, p.Grid.Height
	if pw > candidate.Width || ph > candidate.Height {
		return Point{}, false
	}

	for y := 0; y <= candidate.Height-ph; y++ {
		for x := 0; x <= candidate.Width-pw; x++ {
			if windowEqual(p.Grid, candidate, x, y) {
				return Point{X: x, Y: y}, true
			}
		}
	}
	return Point{}, false
}

// windowEqual compares the pattern against the candidate window whose
// top-left corner is (ox, oy), bailing on the first mismatching cell.
func windowEqual(p, candidate *Grid, ox, oy int) bool {
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			if candidate.At(ox+x, oy+y) != p.At(x, y) {
				return false
			}
		}
	}
	return true
}
