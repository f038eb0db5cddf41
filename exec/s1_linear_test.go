package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaingraph-labs/engine/flow"
)

// S1: Number(2) -> Add, Number(3) -> Add -> Output. Expect NODE_STARTED(Add),
// NODE_COMPLETED(Add) carrying sum=5, then FLOW_COMPLETED (spec §8 S1).
func TestScenarioLinearAddition(t *testing.T) {
	eng, fs, _ := newTestEngine()

	f := flow.NewFlow("linear", flow.Metadata{Name: "linear"})
	n2 := numberNode("n2", 2)
	n3 := numberNode("n3", 3)
	add := addNode("add")
	var got any
	out := outputNode("out", &got)

	f.AddNode(n2)
	f.AddNode(n3)
	f.AddNode(add)
	f.AddNode(out)
	f.AddEdge(sysEdge("e1", "n2", flow.SystemPortThen, "add", flow.SystemPortStart))
	f.AddEdge(&flow.Edge{ID: "e2", SourceNodeID: "n2", SourcePortID: "value", TargetNodeID: "add", TargetPortID: "a"})
	f.AddEdge(sysEdge("e3", "n3", flow.SystemPortThen, "add", flow.SystemPortStart))
	f.AddEdge(&flow.Edge{ID: "e4", SourceNodeID: "n3", SourcePortID: "value", TargetNodeID: "add", TargetPortID: "b"})
	f.AddEdge(sysEdge("e5", "add", flow.SystemPortThen, "out", flow.SystemPortStart))
	f.AddEdge(&flow.Edge{ID: "e6", SourceNodeID: "add", SourcePortID: "sum", TargetNodeID: "out", TargetPortID: "in"})
	fs.Put(f)

	_, events := mustCreateAndStart(eng, "linear", Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seen := drain(ctx, events)

	var sawStarted, sawCompleted, sawFlowCompleted bool
	for _, ev := range seen {
		data, _ := ev.Data.(NodeEventData)
		switch ev.Type {
		case EventNodeStarted:
			if data.NodeID == "add" {
				sawStarted = true
			}
		case EventNodeCompleted:
			if data.NodeID == "add" {
				sawCompleted = true
				assert.Equal(t, 5.0, data.Outputs["sum"])
			}
		case EventFlowCompleted:
			sawFlowCompleted = true
		}
	}
	assert.True(t, sawStarted, "expected NODE_STARTED(add)")
	assert.True(t, sawCompleted, "expected NODE_COMPLETED(add)")
	assert.True(t, sawFlowCompleted, "expected FLOW_COMPLETED")
	assert.Equal(t, 5.0, got)
}

// Event ordering property (spec §8 invariant 1): for a single node, its
// events form a prefix of [STARTED, TRANSFER*, (COMPLETED|FAILED|SKIPPED)].
func TestEventOrderingPerNode(t *testing.T) {
	eng, fs, _ := newTestEngine()
	f := flow.NewFlow("linear2", flow.Metadata{})
	n2 := numberNode("n2", 1)
	var got any
	out := outputNode("out", &got)
	f.AddNode(n2)
	f.AddNode(out)
	f.AddEdge(sysEdge("e1", "n2", flow.SystemPortThen, "out", flow.SystemPortStart))
	f.AddEdge(&flow.Edge{ID: "e2", SourceNodeID: "n2", SourcePortID: "value", TargetNodeID: "out", TargetPortID: "in"})
	fs.Put(f)

	_, events := mustCreateAndStart(eng, "linear2", Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seen := drain(ctx, events)

	perNode := map[string][]EventType{}
	for _, ev := range seen {
		switch ev.Type {
		case EventNodeStarted, EventEdgeTransferStarted, EventEdgeTransferCompleted, EventNodeCompleted, EventNodeFailed, EventNodeSkipped:
			data, ok := ev.Data.(NodeEventData)
			var nodeID string
			if ok {
				nodeID = data.NodeID
			} else if d, ok := ev.Data.(EdgeTransferData); ok {
				nodeID = d.SourceNodeID
			}
			if nodeID != "" {
				perNode[nodeID] = append(perNode[nodeID], ev.Type)
			}
		}
	}
	require.Contains(t, perNode, "n2")
	require.NotEmpty(t, perNode["n2"])
	assert.Equal(t, EventNodeStarted, perNode["n2"][0])
	last := perNode["n2"][len(perNode["n2"])-1]
	assert.Contains(t, []EventType{EventNodeCompleted, EventNodeFailed, EventNodeSkipped}, last)
}

// Index monotonicity (spec §8 invariant 2).
func TestEventIndexMonotonic(t *testing.T) {
	eng, fs, _ := newTestEngine()
	f := flow.NewFlow("linear3", flow.Metadata{})
	f.AddNode(numberNode("n1", 1))
	fs.Put(f)

	_, events := mustCreateAndStart(eng, "linear3", Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seen := drain(ctx, events)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Index, seen[i-1].Index)
	}
}
