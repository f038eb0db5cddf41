package exec

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaingraph-labs/engine/chainerr"
	"github.com/chaingraph-labs/engine/flow"
	"github.com/chaingraph-labs/engine/store"
)

// Execution drives one flow.Snapshot to completion (spec §3, §4.4).
type Execution struct {
	ID                string
	FlowID            string
	ParentExecutionID string
	ExecutionDepth    int
	Options           Options

	engine   *Engine
	snapshot *flow.Snapshot
	bus      *eventBus

	// public, mutex-guarded state read by the Control API's getState and by
	// Stop/Pause/Resume/Step before they nudge the dispatcher.
	mu               sync.Mutex
	status           Status
	startedAt        *time.Time
	completedAt      *time.Time
	errMessage       string
	errNodeID        string
	failureTriggered bool

	breakpoints *breakpointSet

	baseCtx   context.Context
	runCtx    context.Context
	runCancel context.CancelFunc

	wake        chan struct{}
	completions chan nodeResult
	retryCh     chan string
	ctrlCh      chan ctrlMsg
	started     sync.Once
	stopOnce    sync.Once

	eventSeq int64

	// dispatcher-owned state (see runtime.go's comment on nodeRuntime).
	nodes      map[string]*nodeRuntime
	readyQueue []string
	parked     []string
	pauseFlag  bool
	running    int
	stepTokens int

	streamsMu sync.Mutex
	streams   map[string]*streamChannel
}

// ctrlKind identifies a Control API request that mutates dispatcher-owned
// state. These cross from the calling goroutine to the dispatcher goroutine
// over ctrlCh rather than touching pauseFlag/parked/readyQueue directly, so
// that state stays single-writer (spec §5, §6.1).
type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
	ctrlStep
)

type ctrlMsg struct {
	kind ctrlKind
}

type nodeResult struct {
	nodeID      string
	result      flow.Result
	selectedKey string
	err         error
	cause       string
	duration    time.Duration
}

// NewExecution constructs an execution against snapshot, in status=created
// (spec §3 Lifecycle).
func NewExecution(engine *Engine, id, flowID, parentID string, depth int, snapshot *flow.Snapshot, opts Options, baseCtx context.Context) *Execution {
	opts = opts.withDefaults()
	e := &Execution{
		ID:                 id,
		FlowID:             flowID,
		ParentExecutionID:  parentID,
		ExecutionDepth:     depth,
		Options:            opts,
		engine:             engine,
		snapshot:           snapshot,
		bus:                newEventBus(),
		status:             StatusCreated,
		breakpoints:        newBreakpointSet(opts.Breakpoints),
		baseCtx:            baseCtx,
		wake:               make(chan struct{}, 1),
		completions:        make(chan nodeResult, 8),
		retryCh:            make(chan string, 8),
		ctrlCh:             make(chan ctrlMsg, 8),
		nodes:              make(map[string]*nodeRuntime),
		streams:            make(map[string]*streamChannel),
	}
	for _, nodeID := range snapshot.NodeIDs() {
		n := snapshot.InstantiateNode(nodeID)
		e.nodes[nodeID] = newNodeRuntime(n, systemEdges(snapshot, nodeID), dataEdges(snapshot, nodeID))
	}
	return e
}

// systemEdges returns the incoming system (flow-control) edges to nodeID —
// the ones readiness computation tracks via pendingSystem (spec §4.4
// readiness rule 1).
func systemEdges(s *flow.Snapshot, nodeID string) []*flow.Edge {
	var out []*flow.Edge
	for _, e := range s.IncomingEdges(nodeID) {
		if s.IsSystemEdge(e) {
			out = append(out, e)
		}
	}
	return out
}

// dataEdges returns the incoming edges to nodeID that are neither system
// edges nor stream edges — the ones readiness computation tracks via
// pendingData (spec §4.4 readiness rule 2).
func dataEdges(s *flow.Snapshot, nodeID string) []*flow.Edge {
	var out []*flow.Edge
	for _, e := range s.IncomingEdges(nodeID) {
		if s.IsSystemEdge(e) || s.IsStreamEdge(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// State is the result of GetState (spec §6.1).
type State struct {
	Status       Status
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	ErrorNodeID  string
}

// GetState returns a snapshot of the execution's current status and timings.
func (e *Execution) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Status:       e.status,
		StartedAt:    e.startedAt,
		CompletedAt:  e.completedAt,
		ErrorMessage: e.errMessage,
		ErrorNodeID:  e.errNodeID,
	}
}

// GetBreakpoints returns the current breakpoint node ids (spec §6.1).
func (e *Execution) GetBreakpoints() []string { return e.breakpoints.List() }

// AddBreakpoint / RemoveBreakpoint mutate the breakpoint set; effective
// immediately for future ready->running transitions (spec §5).
func (e *Execution) AddBreakpoint(nodeID string)    { e.breakpoints.Add(nodeID); e.nudge() }
func (e *Execution) RemoveBreakpoint(nodeID string) { e.breakpoints.Remove(nodeID) }

func (e *Execution) nudge() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers a new subscription on this execution's event bus
// (spec §6.2).
func (e *Execution) Subscribe(capacity int, eventTypes []EventType) *Subscription {
	if capacity <= 0 {
		capacity = DefaultSubscriptionCapacity
	}
	return e.bus.subscribe(capacity, eventTypes)
}

// Start begins the dispatcher goroutine. Idempotent on an already-started
// execution; errors if the execution is terminal (spec §6.1).
func (e *Execution) Start() error {
	e.mu.Lock()
	if e.status.Terminal() {
		e.mu.Unlock()
		return chainerr.New(chainerr.InvalidState, "execution %s is terminal", e.ID)
	}
	if e.status != StatusCreated {
		e.mu.Unlock()
		return nil // idempotent on already-started
	}
	now := time.Now()
	e.status = StatusRunning
	e.startedAt = &now
	e.runCtx, e.runCancel = context.WithTimeout(e.baseCtx, e.Options.FlowTimeout)
	e.mu.Unlock()

	e.started.Do(func() {
		e.publish(EventFlowStarted, nil)
		go e.run()
	})
	return nil
}

// Stop cancels the execution; legal from any non-terminal status, idempotent
// on a terminal one (spec §5, §6.1). On an execution that has not been
// started yet there is nothing to cancel: Stop returns nil and changes
// nothing, and a later Stop after Start still cancels.
func (e *Execution) Stop() error {
	e.mu.Lock()
	terminal := e.status.Terminal()
	cancel := e.runCancel
	e.mu.Unlock()
	if terminal || cancel == nil {
		return nil
	}
	e.stopOnce.Do(cancel)
	return nil
}

// Pause is legal only when running (spec §6.1). The actual state mutation
// happens on the dispatcher goroutine, reached via ctrlCh, so pauseFlag and
// the ready/parked queues stay single-writer.
func (e *Execution) Pause() error {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	if st != StatusRunning {
		return chainerr.New(chainerr.InvalidState, "pause requires status=running, got %s", st)
	}
	return e.sendCtrl(ctrlMsg{kind: ctrlPause})
}

// Resume is legal only when paused (spec §6.1).
func (e *Execution) Resume() error {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	if st != StatusPaused {
		return chainerr.New(chainerr.InvalidState, "resume requires status=paused, got %s", st)
	}
	return e.sendCtrl(ctrlMsg{kind: ctrlResume})
}

// Step releases exactly one parked node; legal only when paused (spec §6.1).
func (e *Execution) Step() error {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	if st != StatusPaused {
		return chainerr.New(chainerr.InvalidState, "step requires status=paused, got %s", st)
	}
	return e.sendCtrl(ctrlMsg{kind: ctrlStep})
}

// sendCtrl hands a control request to the dispatcher goroutine, giving up
// without error if the run has already ended (runCtx.Done fires once and
// stays fired, so a post-terminal request just becomes a no-op here).
func (e *Execution) sendCtrl(msg ctrlMsg) error {
	select {
	case e.ctrlCh <- msg:
	case <-e.runCtx.Done():
	}
	return nil
}

func (e *Execution) nextIndex() int64 {
	e.eventSeq++
	return e.eventSeq
}

// publish assigns the next index under the execution's single producer
// lock (the dispatcher goroutine is the only caller, so a plain field
// increment is safe — spec §5 "event index assignment is serialized by a
// single producer lock per execution"), then fans out and enqueues
// persistence.
func (e *Execution) publish(t EventType, data any) Event {
	ev := Event{
		Index:       e.nextIndex(),
		Type:        t,
		Timestamp:   time.Now(),
		ExecutionID: e.ID,
		Data:        data,
	}
	e.bus.publish(ev)
	if e.engine != nil {
		e.engine.persist(e.ID, ev)
	}
	return ev
}

func (e *Execution) publishNode(t EventType, nodeID string, extra NodeEventData) Event {
	extra.NodeID = nodeID
	return e.publish(t, extra)
}

func newExecutionID() string { return uuid.NewString() }

// storeRowFromExecution builds the durable row for CreateExecution.
func storeRowFromExecution(e *Execution) store.ExecutionRow {
	now := time.Now()
	return store.ExecutionRow{
		ID:                e.ID,
		FlowID:            e.FlowID,
		FlowVersion:       e.snapshot.FlowVersion,
		OwnerID:           e.Options.Owner,
		ParentExecutionID: e.ParentExecutionID,
		ExecutionDepth:    e.ExecutionDepth,
		Status:            string(StatusCreated),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
