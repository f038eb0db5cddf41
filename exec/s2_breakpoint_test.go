package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaingraph-labs/engine/flow"
)

// S2: same flow as S1 with debug=true, breakpoints=[add]. After start, the
// subscriber observes DEBUG_BREAKPOINT_HIT(add) and status=paused; after
// step, NODE_STARTED(add), NODE_COMPLETED(add), FLOW_COMPLETED (spec §8 S2).
func TestScenarioBreakpointAndStep(t *testing.T) {
	eng, fs, _ := newTestEngine()

	f := flow.NewFlow("bp", flow.Metadata{})
	n2 := numberNode("n2", 2)
	f.AddNode(n2)
	add := addNode("add")
	f.AddNode(add)
	var got any
	out := outputNode("out", &got)
	f.AddNode(out)
	f.AddEdge(sysEdge("e1", "n2", flow.SystemPortThen, "add", flow.SystemPortStart))
	f.AddEdge(&flow.Edge{ID: "e2", SourceNodeID: "n2", SourcePortID: "value", TargetNodeID: "add", TargetPortID: "a"})
	f.AddEdge(&flow.Edge{ID: "e3", SourceNodeID: "n2", SourcePortID: "value", TargetNodeID: "add", TargetPortID: "b"})
	f.AddEdge(sysEdge("e4", "add", flow.SystemPortThen, "out", flow.SystemPortStart))
	f.AddEdge(&flow.Edge{ID: "e5", SourceNodeID: "add", SourcePortID: "sum", TargetNodeID: "out", TargetPortID: "in"})
	fs.Put(f)

	e, err := eng.CreateExecution(context.Background(), "bp", Options{Debug: true, Breakpoints: []string{"add"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, _, err := eng.SubscribeToEvents(ctx, e.ID, nil, 0)
	require.NoError(t, err)

	require.NoError(t, e.Start())

	hit := waitForEvent(t, events, EventDebugBreakpointHit, 2*time.Second)
	data := hit.Data.(NodeEventData)
	assert.Equal(t, "add", data.NodeID)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if e.GetState().Status == StatusPaused {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, StatusPaused, e.GetState().Status)

	require.NoError(t, e.Step())

	started := waitForEvent(t, events, EventNodeStarted, 2*time.Second)
	assert.Equal(t, "add", started.Data.(NodeEventData).NodeID)

	completed := waitForEvent(t, events, EventNodeCompleted, 2*time.Second)
	assert.Equal(t, "add", completed.Data.(NodeEventData).NodeID)

	waitForEvent(t, events, EventFlowCompleted, 2*time.Second)
}

func waitForEvent(t *testing.T, ch <-chan Event, want EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed before seeing %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
