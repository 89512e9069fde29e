package bitmap

import "testing"

// fillPattern builds an all-On pattern of the given size.
func fillPattern(name string, w, h int) *Pattern {
	g := NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, On)
		}
	}
	return &Pattern{Name: name, Grid: g}
}

func TestFind_ExactMatch(t *testing.T) {
	p := fillPattern("square", 2, 2)

	candidate := NewGrid(4, 4)
	candidate.Blit(p.Grid, 1, 1)

	loc, ok := Find(p, candidate)
	if !ok {
		t.Fatal("expected a match, got none")
	}
	if loc.X != 1 || loc.Y != 1 {
		t.Errorf("expected match at (1,1), got (%d,%d)", loc.X, loc.Y)
	}
}

func TestFind_PatternLargerThanCandidate(t *testing.T) {
	cases := []struct {
		name   string
		pw, ph int
		cw, ch int
	}{
		{"wider", 5, 2, 4, 4},
		{"taller", 2, 5, 4, 4},
		{"both", 5, 5, 4, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := fillPattern("big", tc.pw, tc.ph)
			if _, ok := Find(p, NewGrid(tc.cw, tc.ch)); ok {
				t.Errorf("expected no match for %dx%d pattern in %dx%d candidate", tc.pw, tc.ph, tc.cw, tc.ch)
			}
		})
	}
}

func TestFind_NoMatch(t *testing.T) {
	p := fillPattern("square", 2, 2)
	if _, ok := Find(p, NewGrid(6, 6)); ok {
		t.Error("expected no match in an all-Off candidate")
	}
}

func TestFind_RowMajorTieBreak(t *testing.T) {
	p := fillPattern("square", 2, 2)

	// Two occurrences: (3,0) comes first in row-major order even though
	// (0,2) has the smaller x.
	candidate := NewGrid(6, 6)
	candidate.Blit(p.Grid, 3, 0)
	candidate.Blit(p.Grid, 0, 2)

	loc, ok := Find(p, candidate)
	if !ok {
		t.Fatal("expected a match")
	}
	if loc.X != 3 || loc.Y != 0 {
		t.Errorf("expected row-major first match at (3,0), got (%d,%d)", loc.X, loc.Y)
	}
}

func TestFind_EqualSizeGrids(t *testing.T) {
	p := fillPattern("square", 3, 3)

	candidate := p.Grid.Clone()
	loc, ok := Find(p, candidate)
	if !ok {
		t.Fatal("expected a match when candidate equals pattern")
	}
	if loc.X != 0 || loc.Y != 0 {
		t.Errorf("expected match at (0,0), got (%d,%d)", loc.X, loc.Y)
	}

	candidate.Set(2, 2, Off)
	if _, ok := Find(p, candidate); ok {
		t.Error("expected no match after flipping one cell")
	}
}

func TestFind_MixedPattern(t *testing.T) {
	p := &Pattern{Name: "checker", Grid: NewGrid(2, 2)}
	p.Grid.Set(0, 0, On)
	p.Grid.Set(1, 1, On)

	candidate := NewGrid(5, 5)
	candidate.Blit(p.Grid, 2, 3)

	loc, ok := Find(p, candidate)
	if !ok {
		t.Fatal("expected a match")
	}
	if loc.X != 2 || loc.Y != 3 {
		t.Errorf("expected match at (2,3), got (%d,%d)", loc.X, loc.Y)
	}
}
