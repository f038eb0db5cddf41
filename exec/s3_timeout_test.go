package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chaingraph-labs/engine/flow"
)

// S3: Sleep(100s) -> Output, nodeTimeoutMs=500. Expect NODE_FAILED(Sleep,
// cause=timeout) within ~700ms, then FLOW_FAILED since nothing routes the
// failure (spec §8 S3).
func TestScenarioNodeTimeout(t *testing.T) {
	eng, fs, _ := newTestEngine()

	f := flow.NewFlow("timeout", flow.Metadata{})
	sleep := sleepNode("sleep", 100*time.Second)
	f.AddNode(sleep)
	var got any
	out := outputNode("out", &got)
	f.AddNode(out)
	f.AddEdge(sysEdge("e1", "sleep", flow.SystemPortThen, "out", flow.SystemPortStart))
	fs.Put(f)

	start := time.Now()
	_, events := mustCreateAndStart(eng, "timeout", Options{NodeTimeout: 500 * time.Millisecond, FlowTimeout: 10 * time.Second})

	failed := waitForEvent(t, events, EventNodeFailed, 2*time.Second)
	elapsed := time.Since(start)
	assert.LessOrEqual(t, elapsed, 700*time.Millisecond, "NODE_FAILED should fire within ~700ms of nodeTimeoutMs=500")

	data := failed.Data.(NodeEventData)
	assert.Equal(t, "sleep", data.NodeID)
	assert.Equal(t, "timeout", data.Cause)

	waitForEvent(t, events, EventFlowFailed, 2*time.Second)
}
