package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/patternhunt/PatternHunt/internal/engine"
	"github.com/patternhunt/PatternHunt/internal/events"
	"github.com/patternhunt/PatternHunt/internal/version"
)

// Metrics state
var (
	metricsState = &MetricsState{}
)

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	huntName  string
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetHuntName sets the hunt name for metrics labels.
func SetHuntName(name string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.huntName = name
}

// GetHuntName returns the current hunt name.
func GetHuntName() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.huntName
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Gather metrics
	metricsState.mu.RLock()
	startTime := metricsState.startTime
	huntName := metricsState.huntName
	metricsState.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	eventsTotal := events.TotalCount()

	readiness.mu.RLock()
	engineReady := readiness.engineReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	var st engine.Status
	if engineControl != nil {
		st = engineControl.Status()
	}

	wsClients := events.SubscriberCount()

	engineReadyVal := 0
	if engineReady {
		engineReadyVal = 1
	}
	runningVal := 0
	if st.Running {
		runningVal = 1
	}
	mqttConnectedVal := 0
	if mqttConnected {
		mqttConnectedVal = 1
	}
	postgresConnectedVal := 0
	if postgresConnected {
		postgresConnectedVal = 1
	}

	// Get hostname for instance label
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	// Build Prometheus text format response
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper to write metric with optional labels
	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	// Common labels
	labels := fmt.Sprintf(`hunt="%s",instance="%s",version="%s"`, huntName, hostname, version.Version)

	writeMetric("patternhunt_uptime_seconds", "gauge",
		"Number of seconds since the daemon started", uptime, labels)

	writeMetric("patternhunt_engine_ready", "gauge",
		"Whether the search engine loop is running (1) or not (0)", engineReadyVal, labels)

	writeMetric("patternhunt_search_running", "gauge",
		"Whether a search session is active (1) or not (0)", runningVal, labels)

	writeMetric("patternhunt_searched_total", "counter",
		"Number of candidates examined in the current session", st.SearchedCount, labels)

	writeMetric("patternhunt_matches_total", "counter",
		"Number of matches in the session history", st.MatchCount, labels)

	writeMetric("patternhunt_workers_active", "gauge",
		"Number of live workers in the pool", st.ActiveWorkers, labels)

	writeMetric("patternhunt_queue_length", "gauge",
		"Number of tasks waiting in the dispatch queue", st.QueueLength, labels)

	writeMetric("patternhunt_events_total", "counter",
		"Total number of events emitted since startup", eventsTotal, labels)

	writeMetric("patternhunt_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", mqttConnectedVal, labels)

	writeMetric("patternhunt_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", postgresConnectedVal, labels)

	writeMetric("patternhunt_ws_clients", "gauge",
		"Number of active WebSocket client connections", wsClients, labels)
}
