package exec

import (
	"context"
	"time"
)

// finish runs once, deferred from run(), and determines the execution's
// terminal status (spec §3 lifecycle, §5 "clients see exactly one of
// FLOW_COMPLETED, FLOW_FAILED, or FLOW_CANCELLED").
func (e *Execution) finish() {
	now := time.Now()

	var final Status
	switch {
	case e.failureTriggered:
		final = StatusFailed
	case e.runCtx.Err() != nil:
		final = StatusCancelled
	default:
		final = StatusCompleted
	}

	e.mu.Lock()
	e.status = final
	e.completedAt = &now
	errMsg, errNode := e.errMessage, e.errNodeID
	e.mu.Unlock()

	switch final {
	case StatusCompleted:
		e.publish(EventFlowCompleted, nil)
	case StatusFailed:
		e.publish(EventFlowFailed, FlowEventData{ErrorMessage: errMsg, ErrorNodeID: errNode})
	case StatusCancelled:
		e.publish(EventFlowCancelled, nil)
	}

	if e.engine != nil {
		e.engine.finalizeExecution(context.Background(), e)
	}
	e.bus.closeAll()
}
