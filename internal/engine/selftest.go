package engine

import (
	"github.com/patternhunt/PatternHunt/internal/bitmap"
)

// selfTestOffset is the known blit offset for the synthesized candidate.
const selfTestOffset = 2

// runSelfTest synthesizes a known-answer candidate, an all-Off grid with
// the pattern blitted at a fixed offset, and runs the matcher directly.
// It returns the candidate, the reported location, and whether the matcher
// found the pattern at all. Not finding it is a correctness failure in the
// matcher or the compiled pattern.
func runSelfTest(p *bitmap.Pattern, margin int) (*bitmap.Grid, bitmap.Point, bool) {
	offset := selfTestOffset
	if offset > margin {
		offset = margin
	}

	candidate := bitmap.NewGrid(p.Grid.Width+margin, p.Grid.Height+margin)
	candidate.Blit(p.Grid, offset, offset)

	loc, found := bitmap.Find(p, candidate)
	return candidate, loc, found
}
