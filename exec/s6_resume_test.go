package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaingraph-labs/engine/flow"
)

// S6: subscribe, receive events up through index 7, disconnect, reconnect
// with lastEventId=7. Expect the next yielded event has index 8, every
// intermediate event arrives in order, and nothing is duplicated (spec §8
// S6, and invariant 3 "resumable subscriptions").
func TestScenarioResumeAfterDisconnect(t *testing.T) {
	eng, fs, _ := newTestEngine()

	// A flow with enough nodes to produce at least 8 events before
	// completing: five independent root number nodes (each contributes a
	// NODE_STARTED + NODE_COMPLETED pair) plus FLOW_STARTED/FLOW_COMPLETED.
	f := flow.NewFlow("resume", flow.Metadata{})
	for i := 0; i < 5; i++ {
		f.AddNode(numberNode(string(rune('a'+i)), float64(i)))
	}
	fs.Put(f)

	e, err := eng.CreateExecution(context.Background(), "resume", Options{MaxConcurrency: 1})
	require.NoError(t, err)

	firstCtx, firstCancel := context.WithTimeout(context.Background(), 5*time.Second)
	events1, _, err := eng.SubscribeToEvents(firstCtx, e.ID, nil, 0)
	require.NoError(t, err)
	require.NoError(t, e.Start())

	var upToSeven []Event
	for ev := range events1 {
		upToSeven = append(upToSeven, ev)
		if ev.Index == 7 {
			break
		}
	}
	firstCancel() // simulate disconnect
	require.Len(t, upToSeven, 7)
	for i, ev := range upToSeven {
		assert.Equal(t, int64(i+1), ev.Index)
	}

	// Give the batcher a moment to persist what was produced before we
	// disconnected, then reconnect from lastEventId=7.
	time.Sleep(50 * time.Millisecond)

	// The execution is already terminal by now, so subscribing registers an
	// already-closed queue: replay drains everything after index 7, then the
	// live loop sees ok=false immediately and closes `out` on its own. No
	// need to bound this context short.
	secondCtx, secondCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer secondCancel()
	events2, _, err := eng.SubscribeToEvents(secondCtx, e.ID, nil, 7)
	require.NoError(t, err)

	rest := drain(secondCtx, events2)
	require.NotEmpty(t, rest)
	assert.Equal(t, int64(8), rest[0].Index)
	for i := 1; i < len(rest); i++ {
		assert.Greater(t, rest[i].Index, rest[i-1].Index)
	}

	seenIdx := map[int64]bool{}
	for _, ev := range upToSeven {
		seenIdx[ev.Index] = true
	}
	for _, ev := range rest {
		assert.False(t, seenIdx[ev.Index], "index %d observed twice", ev.Index)
		seenIdx[ev.Index] = true
	}
}

// Concurrency bound (spec §8 invariant 4): running node count never exceeds
// maxConcurrency.
func TestConcurrencyBound(t *testing.T) {
	eng, fs, _ := newTestEngine()
	f := flow.NewFlow("concurrency", flow.Metadata{})
	for i := 0; i < 6; i++ {
		f.AddNode(sleepNode(string(rune('a'+i)), 30*time.Millisecond))
	}
	fs.Put(f)

	e, events := mustCreateAndStart(eng, "concurrency", Options{MaxConcurrency: 2, NodeTimeout: time.Second})

	running := 0
	maxObserved := 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, ev := range drain(ctx, events) {
		switch ev.Type {
		case EventNodeStarted:
			running++
		case EventNodeCompleted, EventNodeFailed:
			running--
		}
		if running > maxObserved {
			maxObserved = running
		}
	}
	assert.LessOrEqual(t, maxObserved, 2)
	assert.Equal(t, StatusCompleted, e.GetState().Status)
}

// Skipping correctness (spec §8 invariant 6): a node is skipped iff every
// incoming system edge resolved but none was selected — here the failing
// node's "then" edge is never selected (it fails and is routed on "error"
// instead), so its downstream-through-then sibling never runs but the
// downstream reachable only through "error" does.
func TestSkipCorrectness(t *testing.T) {
	eng, fs, _ := newTestEngine()
	f := flow.NewFlow("skip", flow.Metadata{})
	fail := failingNode("fail")
	var thenGot, errGot any
	thenOut := outputNode("then-out", &thenGot)
	errOut := outputNode("err-out", &errGot)
	f.AddNode(fail)
	f.AddNode(thenOut)
	f.AddNode(errOut)
	f.AddEdge(sysEdge("e-then", "fail", flow.SystemPortThen, "then-out", flow.SystemPortStart))
	f.AddEdge(sysEdge("e-err", "fail", flow.SystemPortError, "err-out", flow.SystemPortStart))
	fs.Put(f)

	_, events := mustCreateAndStart(eng, "skip", Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sawSkipped bool
	for _, ev := range drain(ctx, events) {
		if ev.Type == EventNodeSkipped && ev.Data.(NodeEventData).NodeID == "then-out" {
			sawSkipped = true
		}
	}
	assert.True(t, sawSkipped, "then-out should be skipped since fail routed to its error port instead")
}
