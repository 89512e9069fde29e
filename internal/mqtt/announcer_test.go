package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
	"github.com/patternhunt/PatternHunt/internal/engine"
)

// PublishedMessage captures a single publish call.
type PublishedMessage struct {
	Topic   string
	Payload []byte
}

// MockPublisher records publishes for assertions.
type MockPublisher struct {
	mu        sync.Mutex
	published []PublishedMessage
	connected bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{connected: true}
}

func (m *MockPublisher) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedMessage{Topic: topic, Payload: payload})
	return nil
}

func (m *MockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockPublisher) SetConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

func (m *MockPublisher) GetPublished() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage{}, m.published...)
}

func TestAnnouncer_PublishesMatch(t *testing.T) {
	mock := NewMockPublisher()
	ann := NewAnnouncer(mock, "patternhunt")

	rec := engine.MatchRecord{
		ID:          "abc",
		Payload:     "https://hunt.example/xyz",
		PatternName: "square",
		Location:    bitmap.Point{X: 3, Y: 2},
		Timestamp:   time.Now().UTC(),
	}
	ann.AnnounceMatch(rec)

	published := mock.GetPublished()
	if len(published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(published))
	}
	if published[0].Topic != "patternhunt/matches" {
		t.Errorf("unexpected topic %q", published[0].Topic)
	}

	var got engine.MatchRecord
	if err := json.Unmarshal(published[0].Payload, &got); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if got.ID != "abc" || got.PatternName != "square" || got.Location.X != 3 {
		t.Errorf("unexpected decoded record: %+v", got)
	}
}

func TestAnnouncer_PublishesStatus(t *testing.T) {
	mock := NewMockPublisher()
	ann := NewAnnouncer(mock, "hunt")

	ann.AnnounceStatus(engine.Status{Running: true, SearchedCount: 10, ActiveWorkers: 4})

	published := mock.GetPublished()
	if len(published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(published))
	}
	if published[0].Topic != "hunt/status" {
		t.Errorf("unexpected topic %q", published[0].Topic)
	}

	var got engine.Status
	if err := json.Unmarshal(published[0].Payload, &got); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if !got.Running || got.SearchedCount != 10 {
		t.Errorf("unexpected decoded status: %+v", got)
	}
}

func TestAnnouncer_SkipsWhenDisconnected(t *testing.T) {
	mock := NewMockPublisher()
	mock.SetConnected(false)
	ann := NewAnnouncer(mock, "hunt")

	ann.AnnounceStatus(engine.Status{})
	if len(mock.GetPublished()) != 0 {
		t.Error("expected no publish while disconnected")
	}
}
