package engine

import (
	"testing"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
)

func TestRunSelfTest_FindsPlantedPattern(t *testing.T) {
	p := testPattern()
	candidate, loc, found := runSelfTest(p, 8)

	if !found {
		t.Fatal("self-test did not find the planted pattern")
	}
	if candidate.Width != p.Grid.Width+8 || candidate.Height != p.Grid.Height+8 {
		t.Errorf("unexpected candidate size %dx%d", candidate.Width, candidate.Height)
	}
	if loc.X != selfTestOffset || loc.Y != selfTestOffset {
		t.Errorf("expected location (%d,%d), got (%d,%d)", selfTestOffset, selfTestOffset, loc.X, loc.Y)
	}
}

func TestRunSelfTest_ClampsOffsetToMargin(t *testing.T) {
	p := testPattern()
	candidate, loc, found := runSelfTest(p, 1)

	if !found {
		t.Fatal("self-test did not find the planted pattern")
	}
	if candidate.Width != p.Grid.Width+1 {
		t.Errorf("unexpected candidate width %d", candidate.Width)
	}
	if loc.X != 1 || loc.Y != 1 {
		t.Errorf("expected clamped location (1,1), got (%d,%d)", loc.X, loc.Y)
	}
}

func TestRunSelfTest_ZeroMargin(t *testing.T) {
	p := testPattern()
	candidate, loc, found := runSelfTest(p, 0)

	if !found {
		t.Fatal("self-test did not find the planted pattern")
	}
	if candidate.Width != p.Grid.Width || candidate.Height != p.Grid.Height {
		t.Error("zero margin should yield an exact-size candidate")
	}
	if loc.X != 0 || loc.Y != 0 {
		t.Errorf("expected (0,0), got (%d,%d)", loc.X, loc.Y)
	}
}

func TestRunSelfTest_BrokenPattern(t *testing.T) {
	// A pattern wider than the candidate margin allows cannot be planted
	// whole, but runSelfTest sizes the candidate off the pattern itself, so
	// only a genuinely broken matcher fails. Simulate that with a pattern
	// whose grid is mutated after planting.
	p := testPattern()
	candidate, _, _ := runSelfTest(p, 4)

	// Flip a planted cell; the original pattern no longer appears.
	candidate.Set(selfTestOffset, selfTestOffset, bitmap.Off)
	if _, found := bitmap.Find(p, candidate); found {
		t.Error("expected no match after corrupting the planted cells")
	}
}
