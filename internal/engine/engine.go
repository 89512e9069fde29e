// Package engine implements the concurrent pattern-search core: the worker
// pool and its scheduler, the bounded task queue, the search session state
// and the per-session self-test gate.
package engine

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/patternhunt/PatternHunt/internal/bitmap"
	"github.com/patternhunt/PatternHunt/internal/events"
)

// PayloadSource produces the payloads fed into the task queue.
type PayloadSource interface {
	Next() string
}

// Announcer pushes discoveries and status snapshots to an external channel
// (MQTT in production). Optional.
type Announcer interface {
	AnnounceMatch(rec MatchRecord)
	AnnounceStatus(st Status)
}

// MatchSink persists discoveries (Postgres in production). Optional.
type MatchSink interface {
	SaveMatch(rec MatchRecord) error
}

// Config bundles the engine's collaborators and tuning knobs.
type Config struct {
	// Workers is the target pool size N. Values below 1 are raised to 1.
	Workers int

	Loader   PatternLoader
	Source   Source
	Payloads PayloadSource

	// DefaultPattern, when set, is selected at Run startup.
	DefaultPattern string

	// SelfTestMargin is the extra size of the synthesized self-test
	// candidate around the pattern.
	SelfTestMargin int

	// ArtifactDir is where matched candidates are rendered as PNGs.
	// Empty disables artifact rendering.
	ArtifactDir   string
	ArtifactScale int

	Tick            time.Duration
	StatusInterval  time.Duration
	ShutdownTimeout time.Duration

	// ClearHistoryOnStart controls whether the match history survives a
	// session restart within one process.
	ClearHistoryOnStart bool

	Announcer Announcer
	Sink      MatchSink
}

// slot is one arena cell of the worker pool: Empty (w == nil) or Active.
type slot struct {
	w      *worker
	state  WorkerState
	taskID string
}

// Engine owns the worker pool, the bounded task queue and the session.
// All of that state is mutated only by the Run goroutine; the exported
// control surface hands commands to it over a channel, so no locks are
// needed anywhere in the scheduler.
type Engine struct {
	cfg       Config
	highWater int

	session Session
	pattern *bitmap.Pattern // current selection
	active  *bitmap.Pattern // selection captured at session start

	slots    []slot
	idle     []int
	queue    []Task
	idToSlot map[int]int
	nextID   int

	workerEvents chan workerEvent
	commands     chan command
}

type command struct {
	kind    commandType
	pattern string
	limit   int
	reply   chan commandReply
}

type commandType int

const (
	ctrlStart commandType = iota
	ctrlStop
	ctrlSelect
	ctrlStatus
	ctrlMatches
)

type commandReply struct {
	err     error
	status  Status
	matches []MatchRecord
}

// New creates an engine. Run must be started before the control surface
// (Start/Stop/Status/...) is used.
func New(cfg Config) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 250 * time.Millisecond
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 2 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.SelfTestMargin <= 0 {
		cfg.SelfTestMargin = 8
	}
	if cfg.ArtifactScale < 1 {
		cfg.ArtifactScale = 1
	}

	return &Engine{
		cfg:          cfg,
		highWater:    cfg.Workers * 3,
		slots:        make([]slot, cfg.Workers),
		idToSlot:     make(map[int]int),
		workerEvents: make(chan workerEvent, cfg.Workers*4+16),
		commands:     make(chan command),
	}
}

// Run is the orchestrating loop. It blocks until ctx is cancelled, then
// stops any running session and waits (bounded) for worker exits.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.ArtifactDir != "" {
		if err := os.MkdirAll(e.cfg.ArtifactDir, 0o755); err != nil {
			log.Printf("engine: failed to create artifact dir: %v", err)
		}
	}

	if e.cfg.DefaultPattern != "" {
		if err := e.selectPattern(e.cfg.DefaultPattern); err != nil {
			log.Printf("engine: default pattern %q: %v", e.cfg.DefaultPattern, err)
		}
	}

	tick := time.NewTicker(e.cfg.Tick)
	defer tick.Stop()
	status := time.NewTicker(e.cfg.StatusInterval)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			e.teardown(&e.session)
			return nil

		case c := <-e.commands:
			e.handleCommand(&e.session, c)

		case ev := <-e.workerEvents:
			e.handleWorkerEvent(&e.session, ev)

		case <-tick.C:
			e.tick(&e.session)

		case <-status.C:
			e.emitStatus(&e.session)
		}
	}
}

// Control surface. Each call round-trips through the Run goroutine.

func (e *Engine) Start() error {
	return e.exec(command{kind: ctrlStart}).err
}

func (e *Engine) Stop() error {
	return e.exec(command{kind: ctrlStop}).err
}

func (e *Engine) SelectPattern(name string) error {
	return e.exec(command{kind: ctrlSelect, pattern: name}).err
}

func (e *Engine) Status() Status {
	return e.exec(command{kind: ctrlStatus}).status
}

func (e *Engine) Matches(limit int) []MatchRecord {
	return e.exec(command{kind: ctrlMatches, limit: limit}).matches
}

func (e *Engine) exec(c command) commandReply {
	c.reply = make(chan commandReply, 1)
	e.commands <- c
	return <-c.reply
}

func (e *Engine) handleCommand(s *Session, c command) {
	var r commandReply
	switch c.kind {
	case ctrlStart:
		r.err = e.startSession(s)
	case ctrlStop:
		r.err = e.stopSession(s)
	case ctrlSelect:
		r.err = e.selectPattern(c.pattern)
	case ctrlStatus:
		r.status = e.status(s)
	case ctrlMatches:
		r.matches = e.matches(s, c.limit)
	}
	c.reply <- r
}

// startSession implements the start transition: terminate any pre-existing
// workers and wait for their exit, reset the session, spawn N fresh workers,
// run the self-test gate, then prime the queue.
func (e *Engine) startSession(s *Session) error {
	if e.pattern == nil {
		return ErrNoPatternSelected
	}

	e.terminateWorkers(e.cfg.ShutdownTimeout)
	e.queue = e.queue[:0]
	e.idle = e.idle[:0]

	e.active = e.pattern
	s.start(e.cfg.ClearHistoryOnStart)

	for i := range e.slots {
		e.spawnWorker(i)
	}

	e.runSelfTest(s)

	events.Emit("info", "search.started", "", map[string]interface{}{
		"pattern": e.active.Name,
		"workers": e.cfg.Workers,
	})

	e.refillQueue()
	return nil
}

// stopSession drops all queued tasks, asks every worker to exit and clears
// the idle set. It does not wait: late exit events are handled by the
// ordinary exit handler, which does not replace workers once running is
// false. In-flight results are still received but have no further effect.
func (e *Engine) stopSession(s *Session) error {
	if !s.Running {
		return ErrNotRunning
	}

	s.stop()
	dropped := len(e.queue)
	e.queue = e.queue[:0]
	e.idle = e.idle[:0]

	for i := range e.slots {
		if e.slots[i].w != nil {
			e.slots[i].w.shutdown()
		}
	}

	events.Emit("info", "search.stopped", "", map[string]interface{}{
		"searched":      s.SearchedCount,
		"dropped_tasks": dropped,
		"matches":       len(s.History),
	})
	return nil
}

func (e *Engine) selectPattern(name string) error {
	p, err := e.cfg.Loader.Load(name)
	if err != nil {
		events.Emit("error", "pattern.error", "pattern load failed", map[string]interface{}{
			"pattern": name,
			"error":   err.Error(),
		})
		return err
	}

	e.pattern = p
	events.Emit("info", "pattern.selected", "", map[string]interface{}{
		"pattern": name,
		"width":   p.Grid.Width,
		"height":  p.Grid.Height,
	})
	return nil
}

// runSelfTest executes the known-answer gate once, on this goroutine,
// before any generated task is counted. A failure is a logged correctness
// failure, not a session abort; the flag is set regardless so the test runs
// exactly once per session.
func (e *Engine) runSelfTest(s *Session) {
	events.Emit("info", "selftest.started", "", map[string]interface{}{
		"pattern": e.active.Name,
		"margin":  e.cfg.SelfTestMargin,
	})

	candidate, loc, ok := runSelfTest(e.active, e.cfg.SelfTestMargin)
	s.SelfTestDone = true

	if !ok {
		events.Emit("error", "selftest.failed", "matcher did not find the blitted pattern", map[string]interface{}{
			"pattern": e.active.Name,
		})
		return
	}

	rec := e.recordMatch(s, "self-test:"+e.active.Name, candidate, loc, true)
	events.Emit("info", "selftest.passed", "", map[string]interface{}{
		"pattern": e.active.Name,
		"x":       rec.Location.X,
		"y":       rec.Location.Y,
	})
}

// handleWorkerEvent reacts to one worker protocol message. Events from
// workers that have already been removed (replaced or timed out) carry an
// unknown id and are dropped.
func (e *Engine) handleWorkerEvent(s *Session, ev workerEvent) {
	i, ok := e.idToSlot[ev.workerID]
	if !ok {
		return
	}
	sl := &e.slots[i]

	switch ev.kind {
	case evReady:
		sl.state = WorkerReady
		events.Emit("info", "worker.ready", "", map[string]interface{}{
			"worker_id": ev.workerID,
		})
		if !s.Running {
			return
		}
		if len(e.queue) > 0 {
			e.assignTask(i)
		} else {
			e.idle = append(e.idle, i)
		}

	case evInitError:
		events.Emit("error", "worker.error", "worker failed to initialize", map[string]interface{}{
			"worker_id": ev.workerID,
			"error":     ev.err.Error(),
		})
		e.removeWorker(s, i, ev.workerID)

	case evResult:
		if !s.Running {
			return
		}
		s.SearchedCount++
		res := ev.result
		if res.Found {
			rec := e.recordMatch(s, res.Task.Payload, res.Grid, res.Loc, false)
			events.Emit("info", "match.found", "", map[string]interface{}{
				"id":      rec.ID,
				"payload": rec.Payload,
				"pattern": rec.PatternName,
				"x":       rec.Location.X,
				"y":       rec.Location.Y,
			})
		}
		sl.taskID = ""
		if len(e.queue) > 0 {
			e.assignTask(i)
		} else {
			sl.state = WorkerReady
			e.idle = append(e.idle, i)
		}

	case evExited:
		delete(e.idToSlot, ev.workerID)
		e.removeFromIdle(i)
		e.slots[i] = slot{}

		if ev.exitCode != exitOK {
			fields := map[string]interface{}{
				"worker_id": ev.workerID,
				"exit_code": ev.exitCode,
			}
			if ev.err != nil {
				fields["error"] = ev.err.Error()
			}
			events.Emit("error", "worker.crashed", "", fields)
			if s.Running {
				e.spawnWorker(i)
				events.Emit("info", "worker.replaced", "", map[string]interface{}{
					"slot": i,
				})
			}
		} else {
			events.Emit("info", "worker.exited", "", map[string]interface{}{
				"worker_id": ev.workerID,
			})
		}
	}
}

// tick refills the queue to the high-water mark and pairs idle workers with
// queued tasks.
func (e *Engine) tick(s *Session) {
	if !s.Running {
		return
	}
	e.refillQueue()
	for len(e.idle) > 0 && len(e.queue) > 0 {
		i := e.idle[0]
		e.idle = e.idle[1:]
		e.assignTask(i)
	}
}

func (e *Engine) refillQueue() {
	for len(e.queue) < e.highWater {
		e.queue = append(e.queue, Task{
			ID:      uuid.New().String(),
			Payload: e.cfg.Payloads.Next(),
		})
	}
}

// assignTask pops exactly one task off the queue and delivers it to the
// worker in slot i.
func (e *Engine) assignTask(i int) {
	task := e.queue[0]
	e.queue = e.queue[1:]

	sl := &e.slots[i]
	sl.state = WorkerBusy
	sl.taskID = task.ID
	sl.w.assign(task)
}

// removeWorker terminates the worker in slot i, drops it from all tracking
// and, while the session is running, spawns a replacement into the same
// slot to keep the pool at size N.
func (e *Engine) removeWorker(s *Session, i, workerID int) {
	if e.slots[i].w != nil {
		e.slots[i].w.shutdown()
	}
	delete(e.idToSlot, workerID)
	e.removeFromIdle(i)
	e.slots[i] = slot{}

	if s.Running {
		e.spawnWorker(i)
		events.Emit("info", "worker.replaced", "", map[string]interface{}{
			"slot": i,
		})
	}
}

func (e *Engine) spawnWorker(i int) {
	e.nextID++
	w := newWorker(e.nextID, e.active.Name, e.cfg.Loader, e.cfg.Source, e.workerEvents)
	e.slots[i] = slot{w: w, state: WorkerInitializing}
	e.idToSlot[w.id] = i
	w.start()
}

func (e *Engine) removeFromIdle(i int) {
	for k, idx := range e.idle {
		if idx == i {
			e.idle = append(e.idle[:k], e.idle[k+1:]...)
			return
		}
	}
}

// terminateWorkers asks every active worker to exit and consumes worker
// events until all have, or the timeout passes. Stragglers are logged and
// forgotten; any later events from them carry unknown ids and are dropped.
func (e *Engine) terminateWorkers(timeout time.Duration) {
	pending := make(map[int]int) // worker id -> slot
	for i := range e.slots {
		if e.slots[i].w != nil {
			e.slots[i].w.shutdown()
			pending[e.slots[i].w.id] = i
		}
	}
	if len(pending) == 0 {
		return
	}

	deadline := time.After(timeout)
	for len(pending) > 0 {
		select {
		case ev := <-e.workerEvents:
			if ev.kind != evExited {
				continue
			}
			i, ok := pending[ev.workerID]
			if !ok {
				continue
			}
			delete(pending, ev.workerID)
			delete(e.idToSlot, ev.workerID)
			e.slots[i] = slot{}

		case <-deadline:
			for id, i := range pending {
				events.Emit("error", "worker.stuck", "worker did not exit before timeout", map[string]interface{}{
					"worker_id": id,
				})
				delete(e.idToSlot, id)
				e.slots[i] = slot{}
			}
			return
		}
	}
}

// recordMatch renders the artifact, appends the record to the session
// history (newest first) and forwards it to the sink and announcer.
func (e *Engine) recordMatch(s *Session, payload string, grid *bitmap.Grid, loc bitmap.Point, selfTest bool) MatchRecord {
	rec := MatchRecord{
		ID:          uuid.New().String(),
		Payload:     payload,
		PatternName: e.active.Name,
		Location:    loc,
		Timestamp:   time.Now().UTC(),
		IsSelfTest:  selfTest,
	}

	if e.cfg.ArtifactDir != "" && grid != nil {
		name := rec.ID + ".png"
		if err := grid.WritePNG(filepath.Join(e.cfg.ArtifactDir, name), e.cfg.ArtifactScale); err != nil {
			events.Emit("error", "search.error", "artifact render failed", map[string]interface{}{
				"id":    rec.ID,
				"error": err.Error(),
			})
		} else {
			rec.Artifact = name
		}
	}

	s.record(rec)

	if e.cfg.Sink != nil {
		if err := e.cfg.Sink.SaveMatch(rec); err != nil {
			log.Printf("engine: failed to persist match %s: %v", rec.ID, err)
		}
	}
	if e.cfg.Announcer != nil {
		e.cfg.Announcer.AnnounceMatch(rec)
	}

	return rec
}

func (e *Engine) emitStatus(s *Session) {
	if !s.Running {
		return
	}

	st := e.status(s)
	events.Emit("info", "search.status", "", map[string]interface{}{
		"searched": st.SearchedCount,
		"matches":  st.MatchCount,
		"queue":    st.QueueLength,
		"workers":  st.ActiveWorkers,
	})
	if e.cfg.Announcer != nil {
		e.cfg.Announcer.AnnounceStatus(st)
	}
}

func (e *Engine) status(s *Session) Status {
	active := 0
	for i := range e.slots {
		if e.slots[i].w != nil {
			active++
		}
	}

	st := Status{
		Running:       s.Running,
		SearchedCount: s.SearchedCount,
		MatchCount:    len(s.History),
		QueueLength:   len(e.queue),
		ActiveWorkers: active,
		IdleWorkers:   len(e.idle),
		SelfTestDone:  s.SelfTestDone,
	}
	if e.pattern != nil {
		st.Pattern = e.pattern.Name
	}
	return st
}

func (e *Engine) matches(s *Session, limit int) []MatchRecord {
	h := s.History
	if limit > 0 && limit < len(h) {
		h = h[:limit]
	}
	out := make([]MatchRecord, len(h))
	copy(out, h)
	return out
}

// teardown runs on context cancellation: stop the session if needed, then
// wait (bounded) for workers to exit.
func (e *Engine) teardown(s *Session) {
	if s.Running {
		if err := e.stopSession(s); err != nil {
			log.Printf("engine: stop during teardown: %v", err)
		}
	}
	e.terminateWorkers(e.cfg.ShutdownTimeout)
	events.Emit("info", "system.shutdown", "engine stopped", nil)
}
