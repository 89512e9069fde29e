package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// search session
	"search.started": {},
	"search.stopped": {},
	"search.status":  {},
	"search.error":   {},

	// worker lifecycle
	"worker.ready":    {},
	"worker.error":    {},
	"worker.crashed":  {},
	"worker.replaced": {},
	"worker.exited":   {},
	"worker.stuck":    {},

	// discoveries
	"match.found": {},

	// self test
	"selftest.started": {},
	"selftest.passed":  {},
	"selftest.failed":  {},

	// pattern selection
	"pattern.selected": {},
	"pattern.error":    {},

	// operator
	"operator.start":  {},
	"operator.stop":   {},
	"operator.select": {},

	// mqtt broker
	"broker.connected":    {},
	"broker.disconnected": {},
	"broker.command":      {},
	"broker.error":        {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
