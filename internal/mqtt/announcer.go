package mqtt

import (
	"encoding/json"

	"github.com/patternhunt/PatternHunt/internal/engine"
	"github.com/patternhunt/PatternHunt/internal/events"
)

// Publisher is the narrow surface Announcer needs from the MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// Announcer pushes match discoveries and status snapshots to the broker.
// It implements engine.Announcer. Publish failures are logged as events
// and otherwise swallowed; the search never depends on the broker.
type Announcer struct {
	client Publisher
	prefix string
}

// NewAnnouncer creates an announcer publishing under the given topic prefix.
func NewAnnouncer(client Publisher, prefix string) *Announcer {
	return &Announcer{client: client, prefix: prefix}
}

// MatchTopic is the topic discoveries are published to.
func (a *Announcer) MatchTopic() string {
	return a.prefix + "/matches"
}

// StatusTopic is the topic status snapshots are published to.
func (a *Announcer) StatusTopic() string {
	return a.prefix + "/status"
}

// AnnounceMatch publishes a discovery as JSON.
func (a *Announcer) AnnounceMatch(rec engine.MatchRecord) {
	a.publish(a.MatchTopic(), rec)
}

// AnnounceStatus publishes a status snapshot as JSON.
func (a *Announcer) AnnounceStatus(st engine.Status) {
	a.publish(a.StatusTopic(), st)
}

func (a *Announcer) publish(topic string, v interface{}) {
	if !a.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		events.Emit("error", "broker.error", "failed to encode broker payload", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
		return
	}

	if err := a.client.Publish(topic, payload); err != nil {
		events.Emit("error", "broker.error", "broker publish failed", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
	}
}
