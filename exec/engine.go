package exec

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chaingraph-labs/engine/chainerr"
	"github.com/chaingraph-labs/engine/flow"
	chainlog "github.com/chaingraph-labs/engine/log"
	"github.com/chaingraph-labs/engine/store"
)

// Logger is the minimal shape the engine and ExecContext.Logger both need;
// log.Logger satisfies it structurally.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// scopeCapable is implemented by *log.GologLogger. Logger backends that
// don't support scoping (log.DefaultLogger, log.NoOpLogger) fall through
// scopedLogger unchanged.
type scopeCapable interface {
	WithScope(name string) chainlog.Logger
}

// scopedLogger attaches an execution id to every line logged through base,
// when base supports it, so a process logging many concurrent executions
// can tell their lines apart without every call site splicing the id into
// its own format string.
func scopedLogger(base Logger, name string) Logger {
	if sc, ok := base.(scopeCapable); ok {
		return sc.WithScope(name)
	}
	return base
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// EngineConfig configures an Engine's defaults and collaborators.
type EngineConfig struct {
	FlowStore            flow.Store
	ExecutionStore       store.Store
	Logger               Logger
	PersistBatchSize     int
	PersistFlushInterval time.Duration
}

// Engine is ChainGraph's top-level registry of executions: it resolves
// flowId -> Flow via flow.Store, creates and tracks Execution instances,
// wires their event streams to persistence, and spawns child executions
// from emitted events (spec §4, §6).
type Engine struct {
	flows      flow.Store
	execStore  store.Store
	log        Logger
	batchSize  int
	flushEvery time.Duration

	mu         sync.RWMutex
	executions map[string]*Execution
	batchers   map[string]*persistBatcher

	flowEvents *flowEventHub
}

// NewEngine constructs an Engine. cfg.FlowStore and cfg.ExecutionStore are
// required collaborators; a nil Logger becomes a no-op logger.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Engine{
		flows:      cfg.FlowStore,
		execStore:  cfg.ExecutionStore,
		log:        logger,
		batchSize:  cfg.PersistBatchSize,
		flushEvery: cfg.PersistFlushInterval,
		executions: make(map[string]*Execution),
		batchers:   make(map[string]*persistBatcher),
		flowEvents: newFlowEventHub(),
	}
}

func (eng *Engine) logger() Logger {
	if eng == nil || eng.log == nil {
		return nopLogger{}
	}
	return eng.log
}

// CreateExecution resolves flowID to a Snapshot, registers a new Execution
// in status=created, and durably records its row (spec §6.1 create()).
func (eng *Engine) CreateExecution(ctx context.Context, flowID string, opts Options) (*Execution, error) {
	return eng.createExecution(ctx, flowID, "", 0, opts)
}

func (eng *Engine) createExecution(ctx context.Context, flowID, parentID string, depth int, opts Options) (*Execution, error) {
	f, err := eng.flows.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	snapshot, err := flow.NewSnapshot(f)
	if err != nil {
		return nil, err
	}

	id := newExecutionID()
	e := NewExecution(eng, id, flowID, parentID, depth, snapshot, opts, context.Background())

	if eng.execStore != nil {
		row := storeRowFromExecution(e)
		if err := eng.execStore.CreateExecution(ctx, row); err != nil {
			return nil, chainerr.Wrap(chainerr.PersistenceFailure, err, "create execution row")
		}
	}

	eng.mu.Lock()
	eng.executions[id] = e
	if eng.execStore != nil {
		eng.batchers[id] = newPersistBatcher(id, eng.execStore, scopedLogger(eng.log, "execution:"+id), eng.batchSize, eng.flushEvery)
	}
	eng.mu.Unlock()

	return e, nil
}

// spawnChild creates and starts a child execution bound to an emitted
// event (spec §4.4 child-flow spawning), returning its executionId.
func (eng *Engine) spawnChild(ctx context.Context, childFlowID, parentExecutionID string, parentDepth int, payload any) (string, error) {
	child, err := eng.createExecution(ctx, childFlowID, parentExecutionID, parentDepth+1, Options{ExternalEvent: payload})
	if err != nil {
		return "", err
	}
	if err := child.Start(); err != nil {
		return child.ID, err
	}
	return child.ID, nil
}

// GetExecution looks up a tracked execution by id.
func (eng *Engine) GetExecution(executionID string) (*Execution, error) {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	e, ok := eng.executions[executionID]
	if !ok {
		return nil, chainerr.New(chainerr.NotFound, "execution %s not found", executionID)
	}
	return e, nil
}

// persist enqueues one event for durable, batched append (spec §6.5).
func (eng *Engine) persist(executionID string, ev Event) {
	eng.mu.RLock()
	b, ok := eng.batchers[executionID]
	eng.mu.RUnlock()
	if !ok {
		return
	}
	b.enqueue(store.EventRecord{
		ExecutionID: executionID,
		Index:       ev.Index,
		EventType:   string(ev.Type),
		Timestamp:   ev.Timestamp,
		Data:        eventDataJSON(ev.Data),
	})
}

// finalizeExecution flushes remaining persisted events and records the
// execution's final status/timings (called once from Execution.finish).
func (eng *Engine) finalizeExecution(ctx context.Context, e *Execution) {
	eng.mu.Lock()
	b, ok := eng.batchers[e.ID]
	delete(eng.batchers, e.ID)
	eng.mu.Unlock()
	if ok {
		b.close()
	}

	if eng.execStore == nil {
		return
	}
	st := e.GetState()
	if err := eng.execStore.UpdateStatus(ctx, e.ID, string(st.Status), st.StartedAt, st.CompletedAt, st.ErrorMessage, st.ErrorNodeID); err != nil {
		eng.log.Error("update execution status for %s: %v", e.ID, err)
	}
}

// SubscribeToEvents implements §6.2: replay persisted events after
// lastEventID, then stream live events from the execution's bus until
// termination or disconnect.
func (eng *Engine) SubscribeToEvents(ctx context.Context, executionID string, eventTypes []EventType, lastEventID int64) (<-chan Event, func(), error) {
	e, err := eng.GetExecution(executionID)
	if err != nil {
		return nil, nil, err
	}

	sub := e.Subscribe(DefaultSubscriptionCapacity, eventTypes)
	out := make(chan Event, DefaultSubscriptionCapacity)

	go func() {
		defer close(out)
		defer sub.Close()

		if eng.execStore != nil {
			recs, err := eng.execStore.ListEventsSince(ctx, executionID, lastEventID)
			if err == nil {
				filter := eventTypeFilter(eventTypes)
				for _, rec := range recs {
					if filter != nil && !filter[EventType(rec.EventType)] {
						continue
					}
					select {
					case out <- Event{Index: rec.Index, Type: EventType(rec.EventType), Timestamp: rec.Timestamp, ExecutionID: rec.ExecutionID, Data: rec.Data}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		for {
			ev, ok, err := sub.Next(ctx)
			if err != nil || !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }, nil
}

func eventTypeFilter(types []EventType) map[EventType]bool {
	if len(types) == 0 {
		return nil
	}
	m := make(map[EventType]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// sortedExecutionIDs is a small helper for deterministic listings in tests.
func sortedExecutionIDs(m map[string]*Execution) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
