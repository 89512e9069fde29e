package engine

import (
	"testing"
	"time"
)

func TestSession_StartResetsCounters(t *testing.T) {
	s := &Session{}
	s.start(false)
	if !s.Running {
		t.Error("expected running")
	}
	s.SearchedCount = 42
	s.SelfTestDone = true
	s.record(MatchRecord{ID: "a"})
	s.stop()

	s.start(false)
	if s.SearchedCount != 0 {
		t.Errorf("expected searched count reset, got %d", s.SearchedCount)
	}
	if s.SelfTestDone {
		t.Error("expected self-test flag reset")
	}
	if len(s.History) != 1 {
		t.Errorf("expected history preserved, got %d records", len(s.History))
	}
}

func TestSession_StartClearsHistoryWhenAsked(t *testing.T) {
	s := &Session{}
	s.record(MatchRecord{ID: "a"})
	s.record(MatchRecord{ID: "b"})

	s.start(true)
	if len(s.History) != 0 {
		t.Errorf("expected history cleared, got %d records", len(s.History))
	}
}

func TestSession_RecordIsNewestFirst(t *testing.T) {
	s := &Session{}
	base := time.Now()
	s.record(MatchRecord{ID: "first", Timestamp: base})
	s.record(MatchRecord{ID: "second", Timestamp: base.Add(time.Second)})
	s.record(MatchRecord{ID: "third", Timestamp: base.Add(2 * time.Second)})

	want := []string{"third", "second", "first"}
	for i, id := range want {
		if s.History[i].ID != id {
			t.Errorf("history[%d] = %q, want %q", i, s.History[i].ID, id)
		}
	}
}

func TestSession_StopLeavesState(t *testing.T) {
	s := &Session{}
	s.start(false)
	s.SearchedCount = 7
	s.record(MatchRecord{ID: "a"})

	s.stop()
	if s.Running {
		t.Error("expected stopped")
	}
	if s.SearchedCount != 7 || len(s.History) != 1 {
		t.Error("stop must not touch counters or history")
	}
}
