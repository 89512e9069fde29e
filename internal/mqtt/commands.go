package mqtt

import (
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/patternhunt/PatternHunt/internal/events"
)

// Controller is the narrow surface the command listener drives.
type Controller interface {
	Start() error
	Stop() error
	SelectPattern(name string) error
}

// Command is the JSON shape accepted on the command topic.
type Command struct {
	Action  string `json:"action"`
	Pattern string `json:"pattern,omitempty"`
}

// CommandListener subscribes to the command topic and forwards
// start/stop/select actions to the engine.
type CommandListener struct {
	client *Client
	prefix string
	ctrl   Controller
}

// NewCommandListener creates a listener; call Start to subscribe.
func NewCommandListener(client *Client, prefix string, ctrl Controller) *CommandListener {
	return &CommandListener{client: client, prefix: prefix, ctrl: ctrl}
}

// Topic is the command topic the listener subscribes to.
func (l *CommandListener) Topic() string {
	return l.prefix + "/commands"
}

// Start connects the client and subscribes to the command topic.
// Returns true if connected and subscribed, false otherwise.
func (l *CommandListener) Start() bool {
	return l.client.StartWithRetry(l.Topic(), l.handle)
}

func (l *CommandListener) handle(_ paho.Client, msg paho.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		events.Emit("warning", "broker.command", "malformed command payload", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}

	events.Emit("info", "broker.command", "", map[string]interface{}{
		"action":  cmd.Action,
		"pattern": cmd.Pattern,
	})

	l.Dispatch(cmd)
}

// Dispatch runs a single command against the controller, emitting operator
// events for the audit trail. Exported so tests can drive commands without
// a broker.
func (l *CommandListener) Dispatch(cmd Command) {
	switch cmd.Action {
	case "start":
		events.Emit("info", "operator.start", "", nil)
		if err := l.ctrl.Start(); err != nil {
			events.Emit("error", "search.error", "start refused", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case "stop":
		events.Emit("info", "operator.stop", "", nil)
		if err := l.ctrl.Stop(); err != nil {
			events.Emit("error", "search.error", "stop refused", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case "select":
		events.Emit("info", "operator.select", "", map[string]interface{}{
			"pattern": cmd.Pattern,
		})
		if err := l.ctrl.SelectPattern(cmd.Pattern); err != nil {
			events.Emit("error", "pattern.error", "select refused", map[string]interface{}{
				"pattern": cmd.Pattern,
				"error":   err.Error(),
			})
		}
	default:
		events.Emit("warning", "broker.command", "unknown action", map[string]interface{}{
			"action": cmd.Action,
		})
	}
}
