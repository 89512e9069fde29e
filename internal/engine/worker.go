package engine

import (
	"fmt"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
)

// Source produces a candidate grid for a payload. Generation failures are
// expected for some payloads and must not kill the worker.
type Source interface {
	Generate(payload string) (*bitmap.Grid, error)
}

// PatternLoader hands each worker its own immutable pattern copy.
type PatternLoader interface {
	Load(name string) (*bitmap.Pattern, error)
}

// worker is an isolated unit of parallel execution. It owns its pattern copy
// and the candidate grid of the task it is processing; nothing is shared
// with other workers or the orchestrator except the message channels.
type worker struct {
	id          int
	patternName string
	loader      PatternLoader
	source      Source
	in          chan workerCommand
	events      chan<- workerEvent
}

func newWorker(id int, patternName string, loader PatternLoader, source Source, events chan<- workerEvent) *worker {
	return &worker{
		id:          id,
		patternName: patternName,
		loader:      loader,
		source:      source,
		// Buffered: a shutdown may be queued while a task is in flight.
		in:     make(chan workerCommand, 2),
		events: events,
	}
}

// start launches the worker goroutine.
func (w *worker) start() {
	go w.run()
}

// run is the worker loop. A panic anywhere in task processing is recovered
// and reported as a non-success exit; the scheduler decides on replacement.
func (w *worker) run() {
	defer func() {
		if r := recover(); r != nil {
			w.events <- workerEvent{
				workerID: w.id,
				kind:     evExited,
				exitCode: exitCrash,
				err:      fmt.Errorf("worker panic: %v", r),
			}
		}
	}()

	// Load our own pattern copy. On failure the worker stays alive and
	// rejects every task with the same error; it never terminates itself.
	var initErr error
	pattern, err := w.loader.Load(w.patternName)
	if err != nil {
		initErr = &WorkerInitError{WorkerID: w.id, Err: err}
		w.events <- workerEvent{workerID: w.id, kind: evInitError, err: initErr}
	} else {
		w.events <- workerEvent{workerID: w.id, kind: evReady}
	}

	for cmd := range w.in {
		switch cmd.kind {
		case cmdShutdown:
			w.events <- workerEvent{workerID: w.id, kind: evExited, exitCode: exitOK}
			return

		case cmdProcessTask:
			w.events <- workerEvent{
				workerID: w.id,
				kind:     evResult,
				result:   w.process(pattern, initErr, cmd.task),
			}
		}
	}
}

// process handles exactly one task.
func (w *worker) process(pattern *bitmap.Pattern, initErr error, task Task) Result {
	if initErr != nil {
		return Result{Task: task, Err: initErr}
	}

	grid, err := w.source.Generate(task.Payload)
	if err != nil {
		return Result{Task: task, Err: err}
	}

	loc, found := bitmap.Find(pattern, grid)
	res := Result{Task: task, Found: found, Loc: loc}
	if found {
		res.Grid = grid
	}
	return res
}

// shutdown asks the worker to exit after its current task, if any.
func (w *worker) shutdown() {
	select {
	case w.in <- workerCommand{kind: cmdShutdown}:
	default:
		// Inbox full: a shutdown is already queued behind at most one
		// in-flight command.
	}
}

// assign hands the worker a task. Only called by the scheduler for idle
// workers, so the send never blocks for long.
func (w *worker) assign(task Task) {
	w.in <- workerCommand{kind: cmdProcessTask, task: task}
}
