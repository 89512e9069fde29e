package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
	"github.com/patternhunt/PatternHunt/internal/engine"
)

// fakeEngine is a canned EngineControl for handler tests.
type fakeEngine struct {
	status    engine.Status
	matches   []engine.MatchRecord
	startErr  error
	stopErr   error
	selectErr error

	started  int
	stopped  int
	selected []string
}

func (f *fakeEngine) Start() error { f.started++; return f.startErr }
func (f *fakeEngine) Stop() error  { f.stopped++; return f.stopErr }
func (f *fakeEngine) SelectPattern(name string) error {
	f.selected = append(f.selected, name)
	return f.selectErr
}
func (f *fakeEngine) Status() engine.Status { return f.status }
func (f *fakeEngine) Matches(limit int) []engine.MatchRecord {
	if limit > 0 && limit < len(f.matches) {
		return f.matches[:limit]
	}
	return f.matches
}

type fakeLister struct {
	names []string
	err   error
}

func (f *fakeLister) List() ([]string, error) { return f.names, f.err }

func setupHandlers(t *testing.T, fe *fakeEngine) {
	t.Helper()
	prevEngine, prevLister, prevAuth := engineControl, patternLister, auth
	t.Cleanup(func() {
		engineControl, patternLister, auth = prevEngine, prevLister, prevAuth
	})
	engineControl = fe
	patternLister = &fakeLister{names: []string{"bullseye", "square"}}
	auth = nil // handlers run unauthenticated in these tests
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	healthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "hunterd" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestStatusHandler(t *testing.T) {
	fe := &fakeEngine{status: engine.Status{Running: true, SearchedCount: 99, Pattern: "square"}}
	setupHandlers(t, fe)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	statusHandler(rec, req)

	var st engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !st.Running || st.SearchedCount != 99 || st.Pattern != "square" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestMatchesHandler_Limit(t *testing.T) {
	fe := &fakeEngine{matches: []engine.MatchRecord{
		{ID: "a", Location: bitmap.Point{X: 1, Y: 2}},
		{ID: "b"},
		{ID: "c"},
	}}
	setupHandlers(t, fe)

	req := httptest.NewRequest(http.MethodGet, "/matches?limit=2", nil)
	rec := httptest.NewRecorder()
	matchesHandler(rec, req)

	var got []engine.MatchRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("unexpected matches: %+v", got)
	}
}

func TestMatchesHandler_BadLimit(t *testing.T) {
	setupHandlers(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/matches?limit=zebra", nil)
	rec := httptest.NewRecorder()
	matchesHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestMatchesHandler_PersistedFallsBackWithoutPostgres(t *testing.T) {
	fe := &fakeEngine{matches: []engine.MatchRecord{{ID: "mem"}}}
	setupHandlers(t, fe)

	// No Postgres client configured: the handler serves the in-memory
	// history instead of failing.
	req := httptest.NewRequest(http.MethodGet, "/matches?persisted=true", nil)
	rec := httptest.NewRecorder()
	matchesHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []engine.MatchRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0].ID != "mem" {
		t.Errorf("unexpected matches: %+v", got)
	}
}

func TestEventsHandler_PersistedFallsBackWithoutPostgres(t *testing.T) {
	setupHandlers(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/events?persisted=true", nil)
	rec := httptest.NewRecorder()
	eventsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// Body is the ring buffer snapshot, a JSON array either way.
	var got []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestEventsHandler_PersistedBadLimit(t *testing.T) {
	setupHandlers(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/events?persisted=true&limit=-3", nil)
	rec := httptest.NewRecorder()
	eventsHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPatternsHandler(t *testing.T) {
	setupHandlers(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/patterns", nil)
	rec := httptest.NewRecorder()
	patternsHandler(rec, req)

	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(names) != 2 || names[0] != "bullseye" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestStartHandler(t *testing.T) {
	fe := &fakeEngine{}
	setupHandlers(t, fe)

	req := httptest.NewRequest(http.MethodPost, "/search/start", nil)
	rec := httptest.NewRecorder()
	startHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fe.started != 1 {
		t.Errorf("expected one start call, got %d", fe.started)
	}
}

func TestStartHandler_Refused(t *testing.T) {
	fe := &fakeEngine{startErr: engine.ErrNoPatternSelected}
	setupHandlers(t, fe)

	req := httptest.NewRequest(http.MethodPost, "/search/start", nil)
	rec := httptest.NewRecorder()
	startHandler(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	var resp ControlResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("expected refusal details, got %+v", resp)
	}
}

func TestStartHandler_MethodNotAllowed(t *testing.T) {
	setupHandlers(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/search/start", nil)
	rec := httptest.NewRecorder()
	startHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestStopHandler_NotRunning(t *testing.T) {
	fe := &fakeEngine{stopErr: engine.ErrNotRunning}
	setupHandlers(t, fe)

	req := httptest.NewRequest(http.MethodPost, "/search/stop", nil)
	rec := httptest.NewRecorder()
	stopHandler(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestSelectHandler(t *testing.T) {
	fe := &fakeEngine{}
	setupHandlers(t, fe)

	body, _ := json.Marshal(SelectRequest{Pattern: "bullseye"})
	req := httptest.NewRequest(http.MethodPost, "/pattern/select", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	selectHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(fe.selected) != 1 || fe.selected[0] != "bullseye" {
		t.Errorf("unexpected select calls: %v", fe.selected)
	}
}

func TestSelectHandler_MissingPattern(t *testing.T) {
	setupHandlers(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/pattern/select", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	selectHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSelectHandler_InvalidJSON(t *testing.T) {
	setupHandlers(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/pattern/select", bytes.NewReader([]byte(`{`)))
	rec := httptest.NewRecorder()
	selectHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestUIHandler_RootOnly(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	uiHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	uiHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for root, got %d", rec.Code)
	}
}

func TestMetricsHandler(t *testing.T) {
	fe := &fakeEngine{status: engine.Status{Running: true, SearchedCount: 7, ActiveWorkers: 4}}
	setupHandlers(t, fe)
	InitMetrics()
	SetHuntName("test-hunt")
	SetEngineReady(true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	metricsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"patternhunt_uptime_seconds",
		"patternhunt_search_running",
		"patternhunt_searched_total",
		"patternhunt_workers_active",
		`hunt="test-hunt"`,
	} {
		if !bytes.Contains([]byte(body), []byte(want)) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
