package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chaingraph-labs/engine/flow"
	"github.com/chaingraph-labs/engine/store/memory"
)

// numberNode is a root node that emits a constant on its "value" port and
// fires "then" unconditionally (scenario S1).
func numberNode(id string, n float64) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "number",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"value": flow.NewPort("value", "value", flow.DirectionOutput, flow.PortConfig{Kind: flow.PortNumber}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			return flow.Result{Outputs: map[string]any{"value": n}}, nil
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	return node
}

// stringNode is a root node that emits a constant string on its "value"
// port and fires "then" unconditionally.
func stringNode(id, s string) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "string",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"value": flow.NewPort("value", "value", flow.DirectionOutput, flow.PortConfig{Kind: flow.PortString}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			return flow.Result{Outputs: map[string]any{"value": s}}, nil
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	return node
}

// addNode sums its "a"/"b" data inputs into "sum" and fires "then".
func addNode(id string) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "add",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"a":     flow.NewPort("a", "a", flow.DirectionInput, flow.PortConfig{Kind: flow.PortNumber}, nil),
			"b":     flow.NewPort("b", "b", flow.DirectionInput, flow.PortConfig{Kind: flow.PortNumber}, nil),
			"sum":   flow.NewPort("sum", "sum", flow.DirectionOutput, flow.PortConfig{Kind: flow.PortNumber}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			a, _ := ec.Input("a")
			b, _ := ec.Input("b")
			af, _ := a.(float64)
			bf, _ := b.(float64)
			return flow.Result{Outputs: map[string]any{"sum": af + bf}}, nil
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	return node
}

// outputNode records whatever value arrives on its "in" input port.
func outputNode(id string, got *any) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "output",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"in":    flow.NewPort("in", "in", flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			v, _ := ec.Input("in")
			*got = v
			return flow.Result{}, nil
		},
	}
	node.Ports["start"].System = true
	return node
}

// sleepNode blocks until ctx is done or the duration elapses, whichever is
// first, so it can be used to exercise the per-node timeout path.
func sleepNode(id string, d time.Duration) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "sleep",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return flow.Result{}, nil
			case <-ctx.Done():
				return flow.Result{}, ctx.Err()
			}
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	return node
}

// rangeStreamNode publishes 1..n on a stream output port, one per tick, then
// closes it (scenario S4).
func rangeStreamNode(id string, n int, tick time.Duration) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "range-stream",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"items": flow.NewPort("items", "items", flow.DirectionOutput, flow.PortConfig{
				Kind: flow.PortStream, Stream: &flow.StreamConfig{ElemConfig: &flow.PortConfig{Kind: flow.PortNumber}},
			}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			publish, closeFn, err := ec.StreamOut("items")
			if err != nil {
				return flow.Result{}, err
			}
			defer closeFn()
			for i := 1; i <= n; i++ {
				if err := publish(float64(i)); err != nil {
					return flow.Result{}, err
				}
				if tick > 0 {
					time.Sleep(tick)
				}
			}
			return flow.Result{}, nil
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	return node
}

// sumStreamNode consumes a stream input port to exhaustion and reports the
// total on "total" (scenario S4).
func sumStreamNode(id string, started chan<- struct{}) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "sum-stream",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"items": flow.NewPort("items", "items", flow.DirectionInput, flow.PortConfig{
				Kind: flow.PortStream, Stream: &flow.StreamConfig{ElemConfig: &flow.PortConfig{Kind: flow.PortNumber}},
			}, nil),
			"total": flow.NewPort("total", "total", flow.DirectionOutput, flow.PortConfig{Kind: flow.PortNumber}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			if started != nil {
				close(started)
			}
			next, err := ec.StreamIn("items")
			if err != nil {
				return flow.Result{}, err
			}
			total := 0.0
			for {
				item, ok, err := next(ctx)
				if err != nil {
					return flow.Result{}, err
				}
				if !ok {
					break
				}
				total += item.(float64)
			}
			return flow.Result{Outputs: map[string]any{"total": total}}, nil
		},
	}
	node.Ports["start"].System = true
	return node
}

// emitterNode fires a named event with payload after completing, used to
// exercise child-execution spawning (scenario S5).
func emitterNode(id, eventName string, payload any) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "emitter",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			ec.Emit(eventName, payload)
			return flow.Result{}, nil
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	return node
}

// failingNode always fails with errBoom.
var errBoom = errors.New("boom")

func failingNode(id string) *flow.Node {
	node := &flow.Node{
		ID:   id,
		Type: "failing",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"error": flow.NewPort("error", flow.SystemPortError, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			return flow.Result{}, errBoom
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	node.Ports["error"].System = true
	return node
}

// flakyNode fails its first failTimes invocations with errBoom, then
// succeeds; used to exercise RetryPolicy (spec §4.4 "added" retry feature).
func flakyNode(id string, failTimes int) *flow.Node {
	attempts := 0
	node := &flow.Node{
		ID:   id,
		Type: "flaky",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortAny}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortAny}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			attempts++
			if attempts <= failTimes {
				return flow.Result{}, errBoom
			}
			return flow.Result{}, nil
		},
	}
	node.Ports["start"].System = true
	node.Ports["then"].System = true
	return node
}

// sysEdge wires a system (flow-control) edge between two "then"/"start"
// ports; tests build data edges as flow.Edge literals directly.
func sysEdge(id, srcNode, srcPort, tgtNode, tgtPort string) *flow.Edge {
	return &flow.Edge{ID: id, SourceNodeID: srcNode, SourcePortID: srcPort, TargetNodeID: tgtNode, TargetPortID: tgtPort}
}

func newTestEngine() (*Engine, *flow.MemoryStore, *memory.Store) {
	fs := flow.NewMemoryStore()
	st := memory.New()
	eng := NewEngine(EngineConfig{
		FlowStore:            fs,
		ExecutionStore:       st,
		PersistBatchSize:     2,
		PersistFlushInterval: 5 * time.Millisecond,
	})
	return eng, fs, st
}

// drain collects every event off ch until it closes or ctx expires.
func drain(ctx context.Context, ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-ctx.Done():
			return out
		}
	}
}

func mustCreateAndStart(eng *Engine, flowID string, opts Options) (*Execution, <-chan Event) {
	e, err := eng.CreateExecution(context.Background(), flowID, opts)
	if err != nil {
		panic(fmt.Sprintf("create execution: %v", err))
	}
	ctx, _ := context.WithTimeout(context.Background(), 10*time.Second)
	events, _, err := eng.SubscribeToEvents(ctx, e.ID, nil, 0)
	if err != nil {
		panic(fmt.Sprintf("subscribe: %v", err))
	}
	if err := e.Start(); err != nil {
		panic(fmt.Sprintf("start: %v", err))
	}
	return e, events
}
