package engine

import (
	"errors"
	"fmt"
)

// ErrNoPatternSelected is returned by Start when no pattern has been
// selected. The session stays stopped.
var ErrNoPatternSelected = errors.New("no pattern selected")

// ErrNotRunning is returned by Stop when no session is active.
var ErrNotRunning = errors.New("search is not running")

// WorkerInitError wraps a worker's pattern-load failure. The worker rejects
// every task with this error until the scheduler replaces it.
type WorkerInitError struct {
	WorkerID int
	Err      error
}

func (e *WorkerInitError) Error() string {
	return fmt.Sprintf("worker %d failed to initialize: %v", e.WorkerID, e.Err)
}

func (e *WorkerInitError) Unwrap() error {
	return e.Err
}
