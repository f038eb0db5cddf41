package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaingraph-labs/engine/flow"
)

// S5: parent flow emits "newTask" after running; it is bound to a child
// flow. Expect a child execution created with parentExecutionId=<parent>,
// executionDepth=1, and the parent terminates completed independently
// (spec §8 S5).
func TestScenarioChildExecution(t *testing.T) {
	eng, fs, execStore := newTestEngine()

	child := flow.NewFlow("child-flow", flow.Metadata{})
	child.AddNode(numberNode("child-root", 99))
	fs.Put(child)

	parent := flow.NewFlow("parent-flow", flow.Metadata{})
	parent.AddNode(emitterNode("emit", "newTask", map[string]any{"k": "v"}))
	parent.BindEvent("newTask", "child-flow")
	fs.Put(parent)

	e, events := mustCreateAndStart(eng, "parent-flow", Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	userEvent := waitForEvent(t, events, EventUserEmitted, 2*time.Second)
	data := userEvent.Data.(UserEventData)
	require.NotEmpty(t, data.ChildExecutionID)

	waitForEvent(t, events, EventFlowCompleted, 2*time.Second)
	assert.Equal(t, StatusCompleted, e.GetState().Status)

	childRow, err := execStore.GetExecution(ctx, data.ChildExecutionID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, childRow.ParentExecutionID)
	assert.Equal(t, 1, childRow.ExecutionDepth)
}
