package engine

import (
	"github.com/patternhunt/PatternHunt/internal/bitmap"
)

// Task is one unit of search work: render the payload and scan it.
type Task struct {
	ID      string
	Payload string
}

// Result is a worker's report for one task. Err covers both candidate
// generation failures (expected) and init-error rejections.
type Result struct {
	Task  Task
	Found bool
	Loc   bitmap.Point
	// Grid is the candidate that matched. Only set when Found, so the
	// orchestrator can render the artifact without regenerating.
	Grid *bitmap.Grid
	Err  error
}

// Worker exit codes.
const (
	exitOK    = 0
	exitCrash = 1
)

// workerCommand is the inbound half of the worker protocol.
type workerCommand struct {
	kind commandKind
	task Task
}

type commandKind int

const (
	cmdProcessTask commandKind = iota
	cmdShutdown
)

// workerEvent is the outbound half of the worker protocol.
type workerEvent struct {
	workerID int
	kind     workerEventKind
	result   Result
	err      error
	exitCode int
}

type workerEventKind int

const (
	evReady workerEventKind = iota
	evInitError
	evResult
	evExited
)

// WorkerState is the lifecycle state of a pool slot's worker.
type WorkerState string

const (
	WorkerInitializing WorkerState = "initializing"
	WorkerReady        WorkerState = "ready"
	WorkerBusy         WorkerState = "busy"
	WorkerDead         WorkerState = "dead"
)
