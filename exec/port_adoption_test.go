package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chaingraph-labs/engine/flow"
)

// An `any`-kind port adopts the first concrete type it receives a value
// from; a later edge delivering a conflicting concrete type must then be
// rejected rather than silently accepted (spec §4.1, §9).
func TestAnyPortAdoptionRejectsConflictingLaterEdge(t *testing.T) {
	eng, fs, _ := newTestEngine()
	f := flow.NewFlow("adoption", flow.Metadata{})

	n := numberNode("n", 1)
	s := stringNode("s", "x")
	var got any
	sink := outputNode("sink", &got) // "in" port is Kind: PortAny

	f.AddNode(n)
	f.AddNode(s)
	f.AddNode(sink)
	// n's edge into sink arrives first, adopting "in" onto PortNumber;
	// s's edge then conflicts and must fail instead of being accepted.
	f.AddEdge(&flow.Edge{ID: "e1", SourceNodeID: "n", SourcePortID: "value", TargetNodeID: "sink", TargetPortID: "in"})
	f.AddEdge(&flow.Edge{ID: "e2", SourceNodeID: "s", SourcePortID: "value", TargetNodeID: "sink", TargetPortID: "in"})
	fs.Put(f)

	_, events := mustCreateAndStart(eng, "adoption", Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seen := drain(ctx, events)

	var sawNodeFailed, sawFlowFailed bool
	for _, ev := range seen {
		switch ev.Type {
		case EventNodeFailed:
			if ev.Data.(NodeEventData).NodeID == "sink" {
				sawNodeFailed = true
			}
		case EventFlowFailed:
			sawFlowFailed = true
		}
	}
	assert.True(t, sawNodeFailed, "sink should fail: its adopted-number port rejects the string edge")
	assert.True(t, sawFlowFailed)
}
