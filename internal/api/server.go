package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/patternhunt/PatternHunt/internal/engine"
	"github.com/patternhunt/PatternHunt/internal/events"
	"github.com/patternhunt/PatternHunt/internal/storage/postgres"
)

// EngineControl is the surface the HTTP handlers drive.
type EngineControl interface {
	Start() error
	Stop() error
	SelectPattern(name string) error
	Status() engine.Status
	Matches(limit int) []engine.MatchRecord
}

// PatternLister lists the pattern names available for selection.
type PatternLister interface {
	List() ([]string, error)
}

var (
	engineControl EngineControl
	patternLister PatternLister
)

// SetEngine wires the engine control surface into the handlers.
func SetEngine(e EngineControl) {
	engineControl = e
}

// SetPatternLister wires the pattern store into the handlers.
func SetPatternLister(l PatternLister) {
	patternLister = l
}

// readinessState tracks dependency health for /health and /metrics.
type readinessState struct {
	mu                sync.RWMutex
	engineReady       bool
	mqttConnected     bool
	postgresConnected bool
}

var readiness = &readinessState{}

// SetEngineReady marks the engine loop as started.
func SetEngineReady(v bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.engineReady = v
}

// SetMQTTConnected records broker connectivity for health and metrics.
func SetMQTTConnected(v bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.mqttConnected = v
}

// SetPostgresConnected records database connectivity for health and metrics.
func SetPostgresConnected(v bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.postgresConnected = v
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "hunterd",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// eventsHandler serves the in-memory ring buffer. With ?persisted=true and
// Postgres configured, it serves the durable event log instead.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("persisted") == "true" {
		if pg := events.GetPostgresClient(); pg != nil {
			rows, err := pg.QueryEvents(limit)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: err.Error()})
				return
			}
			if rows == nil {
				rows = []postgres.EventRow{}
			}
			_ = json.NewEncoder(w).Encode(rows)
			return
		}
	}

	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

// parseLimit reads the optional limit query param. On a bad value it writes
// a 400 and returns ok=false.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "invalid limit"})
		return 0, false
	}
	return n, true
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if engineControl == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "engine not ready"})
		return
	}
	_ = json.NewEncoder(w).Encode(engineControl.Status())
}

// matchesHandler serves the session's in-memory history. With
// ?persisted=true and Postgres configured, it serves the durable match log,
// which survives restarts of the process.
func matchesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("persisted") == "true" {
		if pg := events.GetPostgresClient(); pg != nil {
			rows, err := pg.QueryMatches(limit)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: err.Error()})
				return
			}
			if rows == nil {
				rows = []postgres.MatchRow{}
			}
			_ = json.NewEncoder(w).Encode(rows)
			return
		}
	}

	if engineControl == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "engine not ready"})
		return
	}

	matches := engineControl.Matches(limit)
	if matches == nil {
		matches = []engine.MatchRecord{}
	}
	_ = json.NewEncoder(w).Encode(matches)
}

func patternsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if patternLister == nil {
		_ = json.NewEncoder(w).Encode([]string{})
		return
	}

	names, err := patternLister.List()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	_ = json.NewEncoder(w).Encode(names)
}

// ControlResponse is the JSON reply for operator control endpoints.
type ControlResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SelectRequest is the body accepted by /pattern/select.
type SelectRequest struct {
	Pattern string `json:"pattern"`
}

func startHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "method not allowed"})
		return
	}
	if engineControl == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "engine not ready"})
		return
	}

	events.Emit("info", "operator.start", "", nil)
	if err := engineControl.Start(); err != nil {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(ControlResponse{OK: true})
}

func stopHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "method not allowed"})
		return
	}
	if engineControl == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "engine not ready"})
		return
	}

	events.Emit("info", "operator.stop", "", nil)
	if err := engineControl.Stop(); err != nil {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(ControlResponse{OK: true})
}

func selectHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "method not allowed"})
		return
	}
	if engineControl == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "engine not ready"})
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "invalid JSON"})
		return
	}
	if req.Pattern == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: "pattern required"})
		return
	}

	events.Emit("info", "operator.select", "", map[string]interface{}{
		"pattern": req.Pattern,
	})
	if err := engineControl.SelectPattern(req.Pattern); err != nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ControlResponse{OK: false, Error: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(ControlResponse{OK: true})
}

// NewMux builds the full handler tree. Control endpoints require operator
// or admin credentials when auth is configured.
func NewMux(artifactDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", uiHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/status", RequireAnyRole(statusHandler))
	mux.HandleFunc("/matches", RequireAnyRole(matchesHandler))
	mux.HandleFunc("/patterns", RequireAnyRole(patternsHandler))
	mux.HandleFunc("/events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("/ws/events", wsEventsHandler)
	mux.HandleFunc("/search/start", RequireAnyRole(startHandler))
	mux.HandleFunc("/search/stop", RequireAnyRole(stopHandler))
	mux.HandleFunc("/pattern/select", RequireAnyRole(selectHandler))

	if artifactDir != "" {
		fs := http.FileServer(http.Dir(artifactDir))
		mux.Handle("/artifacts/", http.StripPrefix("/artifacts/", fs))
	}

	return mux
}

// ListenAndServe starts the UI server on the given port.
// It blocks until the server exits.
func ListenAndServe(port int, artifactDir string) error {
	mux := NewMux(artifactDir)
	addr := fmt.Sprintf(":%d", port)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	if IsTLSEnabled() {
		server.TLSConfig = LoadTLSConfig()
		if server.TLSConfig != nil {
			log.Printf("UI listening on %s (TLS)\n", addr)
			return server.ListenAndServeTLS("", "")
		}
	}

	log.Printf("UI listening on %s\n", addr)
	return server.ListenAndServe()
}

// Start starts the UI server in a goroutine.
// Errors are logged but do not stop the caller.
func Start(port int, artifactDir string) {
	go func() {
		if err := ListenAndServe(port, artifactDir); err != nil {
			log.Printf("ui server error: %v", err)
		}
	}()
}
