package engine

import (
	"time"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
)

// MatchRecord is one discovery, appended newest-first to the session history.
type MatchRecord struct {
	ID          string       `json:"id"`
	Payload     string       `json:"payload"`
	Artifact    string       `json:"artifact"`
	PatternName string       `json:"pattern"`
	Location    bitmap.Point `json:"location"`
	Timestamp   time.Time    `json:"ts"`
	IsSelfTest  bool         `json:"is_self_test"`
}

// Session is the process-wide mutable search state. It is owned by the
// scheduler goroutine and passed explicitly to the handlers that mutate it;
// nothing else touches it.
type Session struct {
	Running       bool
	SearchedCount int64
	SelfTestDone  bool
	// History is newest-first. Whether it survives a restart of the
	// session is a configuration choice (clear_history_on_start).
	History []MatchRecord
}

// start flips the session into the running state. Counters and the
// self-test flag reset on exactly this transition; history only resets when
// asked to.
func (s *Session) start(clearHistory bool) {
	s.Running = true
	s.SearchedCount = 0
	s.SelfTestDone = false
	if clearHistory {
		s.History = nil
	}
}

// stop flips the session out of the running state. History and counters are
// left as they are.
func (s *Session) stop() {
	s.Running = false
}

// record prepends a match to the history.
func (s *Session) record(m MatchRecord) {
	s.History = append([]MatchRecord{m}, s.History...)
}

// Status is the reporting snapshot consumed by the UI layer.
type Status struct {
	Running       bool   `json:"running"`
	SearchedCount int64  `json:"searched_count"`
	MatchCount    int    `json:"match_count"`
	QueueLength   int    `json:"queue_length"`
	ActiveWorkers int    `json:"active_workers"`
	IdleWorkers   int    `json:"idle_workers"`
	Pattern       string `json:"pattern,omitempty"`
	SelfTestDone  bool   `json:"self_test_done"`
}
