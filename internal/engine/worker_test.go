package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
)

// testPattern is a 2x2 all-On pattern.
func testPattern() *bitmap.Pattern {
	g := bitmap.NewGrid(2, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			g.Set(x, y, bitmap.On)
		}
	}
	return &bitmap.Pattern{Name: "square", Grid: g}
}

// stubLoader returns a fixed pattern, or fails a configured number of times
// first. Safe for concurrent use: workers load their copies in parallel.
type stubLoader struct {
	mu       sync.Mutex
	pattern  *bitmap.Pattern
	failures int
}

func (l *stubLoader) Load(name string) (*bitmap.Pattern, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures > 0 {
		l.failures--
		return nil, errors.New("simulated load failure")
	}
	return &bitmap.Pattern{Name: l.pattern.Name, Grid: l.pattern.Grid.Clone()}, nil
}

// stubSource keys behavior off the payload prefix: "hit" yields a grid
// containing the pattern at (3,2), "fail" yields an error, "boom" panics,
// anything else yields an all-Off grid.
type stubSource struct {
	pattern *bitmap.Pattern
}

func (s *stubSource) Generate(payload string) (*bitmap.Grid, error) {
	switch {
	case hasPrefix(payload, "boom"):
		panic("simulated worker crash")
	case hasPrefix(payload, "fail"):
		return nil, errors.New("simulated generation failure")
	case hasPrefix(payload, "hit"):
		g := bitmap.NewGrid(8, 8)
		g.Blit(s.pattern.Grid, 3, 2)
		return g, nil
	default:
		return bitmap.NewGrid(8, 8), nil
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func recvEvent(t *testing.T, ch chan workerEvent) workerEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for worker event")
		return workerEvent{}
	}
}

func TestWorker_ReadyAndResults(t *testing.T) {
	p := testPattern()
	ch := make(chan workerEvent, 16)
	w := newWorker(1, "square", &stubLoader{pattern: p}, &stubSource{pattern: p}, ch)
	w.start()

	if ev := recvEvent(t, ch); ev.kind != evReady {
		t.Fatalf("expected ready, got kind %d", ev.kind)
	}

	w.assign(Task{ID: "t1", Payload: "miss"})
	ev := recvEvent(t, ch)
	if ev.kind != evResult {
		t.Fatalf("expected result, got kind %d", ev.kind)
	}
	if ev.result.Found || ev.result.Err != nil {
		t.Errorf("expected clean no-match result, got %+v", ev.result)
	}

	w.assign(Task{ID: "t2", Payload: "hit"})
	ev = recvEvent(t, ch)
	if !ev.result.Found {
		t.Fatal("expected a match result")
	}
	if ev.result.Loc.X != 3 || ev.result.Loc.Y != 2 {
		t.Errorf("expected match at (3,2), got (%d,%d)", ev.result.Loc.X, ev.result.Loc.Y)
	}
	if ev.result.Grid == nil {
		t.Error("expected matched result to carry its candidate grid")
	}

	w.shutdown()
	ev = recvEvent(t, ch)
	if ev.kind != evExited || ev.exitCode != exitOK {
		t.Errorf("expected clean exit, got kind %d code %d", ev.kind, ev.exitCode)
	}
}

func TestWorker_GenerationFailureIsNonFatal(t *testing.T) {
	p := testPattern()
	ch := make(chan workerEvent, 16)
	w := newWorker(2, "square", &stubLoader{pattern: p}, &stubSource{pattern: p}, ch)
	w.start()
	recvEvent(t, ch) // ready

	w.assign(Task{ID: "t1", Payload: "fail"})
	ev := recvEvent(t, ch)
	if ev.kind != evResult {
		t.Fatalf("expected a result, got kind %d", ev.kind)
	}
	if ev.result.Err == nil || ev.result.Found {
		t.Errorf("expected an error result with no match, got %+v", ev.result)
	}

	// Worker must still be alive and processing.
	w.assign(Task{ID: "t2", Payload: "miss"})
	if ev := recvEvent(t, ch); ev.kind != evResult {
		t.Fatalf("expected worker to keep processing, got kind %d", ev.kind)
	}

	w.shutdown()
}

func TestWorker_InitErrorRejectsTasks(t *testing.T) {
	p := testPattern()
	ch := make(chan workerEvent, 16)
	w := newWorker(3, "square", &stubLoader{pattern: p, failures: 1}, &stubSource{pattern: p}, ch)
	w.start()

	ev := recvEvent(t, ch)
	if ev.kind != evInitError {
		t.Fatalf("expected init error, got kind %d", ev.kind)
	}
	var initErr *WorkerInitError
	if !errors.As(ev.err, &initErr) {
		t.Fatalf("expected WorkerInitError, got %v", ev.err)
	}

	// The worker does not terminate itself; it rejects tasks with the
	// same error until told to shut down.
	w.assign(Task{ID: "t1", Payload: "hit"})
	ev = recvEvent(t, ch)
	if ev.kind != evResult {
		t.Fatalf("expected rejection result, got kind %d", ev.kind)
	}
	if !errors.As(ev.result.Err, &initErr) {
		t.Errorf("expected task rejected with init error, got %v", ev.result.Err)
	}

	w.shutdown()
	if ev := recvEvent(t, ch); ev.kind != evExited || ev.exitCode != exitOK {
		t.Errorf("expected clean exit after shutdown, got kind %d", ev.kind)
	}
}

func TestWorker_PanicBecomesCrashExit(t *testing.T) {
	p := testPattern()
	ch := make(chan workerEvent, 16)
	w := newWorker(4, "square", &stubLoader{pattern: p}, &stubSource{pattern: p}, ch)
	w.start()
	recvEvent(t, ch) // ready

	w.assign(Task{ID: "t1", Payload: "boom"})
	ev := recvEvent(t, ch)
	if ev.kind != evExited {
		t.Fatalf("expected exit after panic, got kind %d", ev.kind)
	}
	if ev.exitCode != exitCrash {
		t.Errorf("expected crash exit code %d, got %d", exitCrash, ev.exitCode)
	}
	if ev.err == nil {
		t.Error("expected crash exit to carry the panic error")
	}
}
