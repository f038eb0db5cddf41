package exec

import (
	"context"
	"errors"
	"time"

	"github.com/chaingraph-labs/engine/chainerr"
	"github.com/chaingraph-labs/engine/flow"
)

// handleNodeResult is called once per completions-channel receive, after
// the dispatcher has already decremented the running count.
func (e *Execution) handleNodeResult(res nodeResult) {
	nr := e.nodes[res.nodeID]
	if nr == nil {
		return
	}

	if res.err != nil {
		e.handleNodeFailure(nr, res)
		return
	}

	nr.retryAttempt = 0
	nr.state = NodeCompleted
	for k, v := range res.result.Outputs {
		if port := nr.node.PortByKey(k); port != nil {
			_ = port.SetValue(v, false)
		}
	}

	for _, ev := range res.result.EmittedEvents {
		e.handleEmittedEvent(res.nodeID, ev)
	}

	e.publishNode(EventNodeCompleted, res.nodeID, NodeEventData{Outputs: res.result.Outputs})
	e.resolveOutgoing(res.nodeID, res.selectedKey, true)
}

// handleNodeFailure decides between retry, error-edge routing, or global
// failure (spec §4.4, §5).
func (e *Execution) handleNodeFailure(nr *nodeRuntime, res nodeResult) {
	if retry := nr.node.Retry; retry != nil && nr.retryAttempt < retry.MaxRetries && retryable(retry, res.err) {
		nr.retryAttempt++
		nr.state = NodeRetryPending
		nr.errMessage = res.err.Error()
		nr.cause = res.cause
		delay := backoffDelay(retry, nr.retryAttempt)
		e.publishNode(EventNodeRetrying, res.nodeID, NodeEventData{Attempt: nr.retryAttempt, Error: res.err.Error()})
		nodeID := res.nodeID
		go func() {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
				select {
				case e.retryCh <- nodeID:
				case <-e.runCtx.Done():
				}
			case <-e.runCtx.Done():
			}
		}()
		return
	}

	nr.state = NodeFailed
	nr.errMessage = res.err.Error()
	nr.cause = res.cause

	routedKey, routed := errorRouteKey(e.snapshot, nr.node)
	e.publishNode(EventNodeFailed, res.nodeID, NodeEventData{Error: res.err.Error(), Cause: res.cause})

	if routed {
		e.resolveOutgoing(res.nodeID, routedKey, true)
		return
	}

	e.resolveOutgoing(res.nodeID, "", false)
	e.failFlow(res.nodeID, res.err)
}

// errorRouteKey reports the outgoing system port key to treat as selected
// when a node fails, if it has an outgoing system edge from a port keyed
// flow.SystemPortError (spec §4.4 "failure routing").
func errorRouteKey(s *flow.Snapshot, n *flow.Node) (string, bool) {
	for _, edge := range s.OutgoingEdges(n.ID) {
		if !s.IsSystemEdge(edge) {
			continue
		}
		port := n.Ports[edge.SourcePortID]
		if port != nil && port.Key == flow.SystemPortError {
			return flow.SystemPortError, true
		}
	}
	return "", false
}

// resolveOutgoing marks every outgoing edge of nodeID as resolved on its
// target, crediting selectedKey as "selected" on system edges sourced from
// the matching port when selected is true, then re-evaluates each target's
// readiness (spec §4.4).
func (e *Execution) resolveOutgoing(nodeID, selectedKey string, selected bool) {
	srcNode := e.nodes[nodeID].node
	for _, edge := range e.snapshot.OutgoingEdges(nodeID) {
		if e.snapshot.IsStreamEdge(edge) {
			continue
		}
		tgt := e.nodes[edge.TargetNodeID]
		if tgt == nil {
			continue
		}
		if e.snapshot.IsSystemEdge(edge) {
			if !tgt.pendingSystem[edge.ID] {
				continue
			}
			delete(tgt.pendingSystem, edge.ID)
			if selected {
				port := srcNode.Ports[edge.SourcePortID]
				if port != nil && port.Key == selectedKey {
					tgt.selectedSystemCount++
				}
			}
		} else {
			delete(tgt.pendingData, edge.ID)
		}
		e.checkReadiness(edge.TargetNodeID)
	}
}

// checkReadiness re-evaluates one node against the readiness rule of
// spec §4.4: ready once all incoming system edges are resolved AND (it is
// a root with none, or at least one resolved edge was selected) AND all
// incoming data edges have delivered. A node whose system edges are all
// resolved but none selected is skipped, cascading to its own dependents.
func (e *Execution) checkReadiness(nodeID string) {
	nr := e.nodes[nodeID]
	if nr == nil || nr.state != NodeIdle {
		return
	}
	if !nr.systemResolved() {
		return
	}
	if nr.totalSystemIncoming > 0 && nr.selectedSystemCount == 0 {
		e.skipNode(nodeID)
		return
	}
	if !nr.dataResolved() {
		return
	}
	e.enqueueReady(nodeID)
}

// skipNode marks nodeID Skipped and cascades the same resolution its
// completion would have performed, but with nothing selected, so
// downstream nodes reachable only through it skip in turn (spec §4.4).
func (e *Execution) skipNode(nodeID string) {
	nr := e.nodes[nodeID]
	if nr == nil || nr.state != NodeIdle {
		return
	}
	nr.state = NodeSkipped
	e.publishNode(EventNodeSkipped, nodeID, NodeEventData{})
	e.resolveOutgoing(nodeID, "", false)
}

// handleEmittedEvent publishes a USER_EVENT and, if the flow's definition
// binds that event name to a child flow, asks the engine to spawn a child
// execution (spec §4.4).
func (e *Execution) handleEmittedEvent(nodeID string, ev flow.EmittedEvent) {
	data := UserEventData{NodeID: nodeID, Name: ev.Name, Payload: ev.Payload}
	if childFlowID, ok := e.snapshot.EventBindingFor(ev.Name); ok && e.engine != nil {
		childID, err := e.engine.spawnChild(e.runCtx, childFlowID, e.ID, e.ExecutionDepth, ev.Payload)
		if err == nil {
			data.ChildExecutionID = childID
		}
	}
	e.publish(EventUserEmitted, data)
}

// relaunchNode is invoked off retryCh: a continuation, not a fresh
// scheduling decision, so it bypasses the ready queue and breakpoints
// entirely (spec §4.4 "added" retry semantics).
func (e *Execution) relaunchNode(nodeID string) {
	if e.runCtx.Err() != nil {
		return
	}
	nr := e.nodes[nodeID]
	if nr == nil || nr.state.Terminal() {
		return
	}
	nr.state = NodeRunning
	e.running++
	e.publishNode(EventNodeStarted, nodeID, NodeEventData{Attempt: nr.retryAttempt})
	nodeCtx, cancel := context.WithTimeout(e.runCtx, e.Options.NodeTimeout)
	go e.runNode(nodeCtx, cancel, nr)
}

// failFlow records the first node failure that is not routed via a system-
// error edge and cancels the run context so every other in-flight node
// observes cancellation (spec §4.4 item 2: "remaining ready/running nodes
// are cancelled as in stop").
func (e *Execution) failFlow(nodeID string, err error) {
	e.mu.Lock()
	if e.errMessage == "" {
		e.errMessage = err.Error()
		e.errNodeID = nodeID
	}
	e.mu.Unlock()
	e.failureTriggered = true
	if e.runCancel != nil {
		e.runCancel()
	}
}

// abandonRunningNodes marks every still-outstanding node failed once the
// grace period has elapsed (spec §5, "Cancellation & timeouts"). A node that
// was actually mid-execution and never reported back is genuinely
// unresponsive. A node that was only waiting out a retry backoff timer
// already failed earlier (that's why it was retrying) and simply never got
// its continuation scheduled before cancellation cut the wait short — it
// reports the failure that put it there, not a fabricated "unresponsive".
func (e *Execution) abandonRunningNodes() {
	for id, nr := range e.nodes {
		switch nr.state {
		case NodeRunning:
			nr.state = NodeFailed
			nr.cause = "cancelled-unresponsive"
			e.publishNode(EventNodeFailed, id, NodeEventData{Error: "forced termination", Cause: nr.cause})
		case NodeRetryPending:
			nr.state = NodeFailed
			e.publishNode(EventNodeFailed, id, NodeEventData{Error: nr.errMessage, Cause: nr.cause})
		}
	}
}

// retryable reports whether err qualifies for retry under policy.
func retryable(policy *flow.RetryPolicy, err error) bool {
	if policy.RetryableErrors == nil {
		return true
	}
	return policy.RetryableErrors(err)
}

// backoffDelay computes the delay before retry attempt n (1-indexed),
// capped at MaxDelay (SPEC_FULL §4.4).
func backoffDelay(policy *flow.RetryPolicy, attempt int) time.Duration {
	var d time.Duration
	switch policy.Backoff {
	case flow.LinearBackoff:
		d = policy.InitialDelay * time.Duration(attempt)
	case flow.ExponentialBackoff:
		d = policy.InitialDelay
		for i := 1; i < attempt; i++ {
			d *= 2
		}
	default: // FixedBackoff
		d = policy.InitialDelay
	}
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

var errNodePanic = chainerr.New(chainerr.NodeFailure, "node panicked")
