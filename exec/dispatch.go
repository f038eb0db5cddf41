package exec

import (
	"context"
	"time"

	"github.com/chaingraph-labs/engine/chainerr"
	"github.com/chaingraph-labs/engine/flow"
)

// run is the dispatcher goroutine body: one per Execution, owning every
// piece of scheduling state so no locking is needed around readiness,
// the ready queue, or per-node bookkeeping (spec §5). It mirrors the
// teacher's state_graph.go stepping loop generalized from "one node per
// step" to "admit up to MaxConcurrency concurrently, track readiness via
// edge resolution instead of a fixed successor list".
func (e *Execution) run() {
	defer e.finish()

	for _, id := range e.snapshot.NodeIDs() {
		e.checkReadiness(id)
	}

	graceTimer := (*time.Timer)(nil)
	var graceC <-chan time.Time

	// doneCh is nulled out after its first observation: a receive from an
	// already-cancelled context never blocks, so leaving it selectable
	// forever would busy-spin the loop for the rest of the grace period
	// whenever no other channel has anything ready (e.g. a node mid-flight,
	// or sleeping out a retry backoff).
	doneCh := e.runCtx.Done()

	for {
		if graceC == nil {
			e.admitReady()

			// Nothing running and a node parked on a breakpoint: the
			// execution reports paused until a step or resume launches a
			// node again. An explicit Pause (pauseFlag) manages its own status.
			if !e.pauseFlag {
				e.mu.Lock()
				if e.status == StatusRunning && e.running == 0 && len(e.parked) > 0 {
					e.status = StatusPaused
				} else if e.status == StatusPaused && e.running > 0 {
					e.status = StatusRunning
				}
				e.mu.Unlock()
			}
		}

		if e.isQuiescent() {
			return
		}

		select {
		case res := <-e.completions:
			e.running--
			e.handleNodeResult(res)

		case nodeID := <-e.retryCh:
			e.relaunchNode(nodeID)

		case msg := <-e.ctrlCh:
			e.applyCtrl(msg)

		case <-e.wake:
			// breakpoint set edited; loop back around to re-evaluate admission.

		case <-doneCh:
			doneCh = nil
			if graceC == nil {
				graceTimer = time.NewTimer(e.Options.GracePeriod)
				graceC = graceTimer.C
			}
			if e.running == 0 && !e.hasPendingRetry() {
				if graceTimer != nil {
					graceTimer.Stop()
				}
				return
			}

		case <-graceC:
			e.abandonRunningNodes()
			return
		}
	}
}

// isQuiescent reports whether the dispatcher has nothing left to do: no
// node running, none ready/parked, and the run context hasn't already
// fired (that case is handled by the cancellation branch instead).
func (e *Execution) isQuiescent() bool {
	if e.runCtx.Err() != nil {
		return false
	}
	if e.running > 0 || len(e.readyQueue) > 0 {
		return false
	}
	for _, nr := range e.nodes {
		if nr.state == NodeRunning || nr.state == NodeReady || nr.state == NodeWaitingBreakpoint || nr.state == NodeRetryPending {
			return false
		}
	}
	return true
}

// hasPendingRetry reports whether any node is waiting out a retry backoff
// timer. Such a node holds no slot in e.running (the backoff runs in a
// detached goroutine, not a node-execution goroutine), so the run-context
// cancellation branch below consults this directly rather than relying on
// e.running alone to decide whether the grace period still has work to wait
// out.
func (e *Execution) hasPendingRetry() bool {
	for _, nr := range e.nodes {
		if nr.state == NodeRetryPending {
			return true
		}
	}
	return false
}

func (e *Execution) enqueueReady(nodeID string) {
	nr := e.nodes[nodeID]
	if nr == nil || nr.state != NodeIdle {
		return
	}
	nr.state = NodeReady
	e.readyQueue = append(e.readyQueue, nodeID)
}

// admitReady launches nodes off the front of the ready queue, honoring
// MaxConcurrency, pause, and breakpoints (spec §4.4, §5).
func (e *Execution) admitReady() {
	for len(e.readyQueue) > 0 && e.running < e.Options.MaxConcurrency {
		nodeID := e.readyQueue[0]
		nr := e.nodes[nodeID]

		if e.pauseFlagActive() && !nr.bypassBreak {
			if e.stepTokens <= 0 {
				return
			}
			e.stepTokens--
		}

		if e.breakpoints.Has(nodeID) && !nr.bypassBreak {
			e.readyQueue = e.readyQueue[1:]
			nr.state = NodeWaitingBreakpoint
			e.parked = append(e.parked, nodeID)
			e.publishNode(EventDebugBreakpointHit, nodeID, NodeEventData{})
			continue
		}

		e.readyQueue = e.readyQueue[1:]
		nr.bypassBreak = false
		e.launchNode(nodeID)
	}
}

func (e *Execution) pauseFlagActive() bool { return e.pauseFlag }

// applyCtrl runs a Control API request on the dispatcher goroutine, the
// only writer of pauseFlag/parked/readyQueue/stepTokens (spec §5, §6.1).
func (e *Execution) applyCtrl(msg ctrlMsg) {
	switch msg.kind {
	case ctrlPause:
		e.reqPause()
	case ctrlResume:
		e.reqResume()
	case ctrlStep:
		e.reqStep()
	}
}

func (e *Execution) reqPause() {
	e.mu.Lock()
	e.status = StatusPaused
	e.mu.Unlock()
	e.pauseFlag = true
	e.publish(EventFlowPaused, nil)
}

func (e *Execution) reqResume() {
	e.mu.Lock()
	e.status = StatusRunning
	e.mu.Unlock()
	e.pauseFlag = false
	for _, id := range e.parked {
		nr := e.nodes[id]
		nr.state = NodeReady
		nr.bypassBreak = true
		e.readyQueue = append(e.readyQueue, id)
	}
	e.parked = nil
	e.publish(EventFlowResumed, nil)
}

func (e *Execution) reqStep() {
	if len(e.parked) == 0 {
		e.stepTokens++
		return
	}
	id := e.parked[0]
	e.parked = e.parked[1:]
	nr := e.nodes[id]
	nr.state = NodeReady
	nr.bypassBreak = true
	e.readyQueue = append([]string{id}, e.readyQueue...)
	e.publishNode(EventDebugStepTaken, id, NodeEventData{})
}

// launchNode transfers pending data values onto the node's ports and starts
// its goroutine. Stream channels are not wired here: each is created on
// first use by the producer or a consumer (see streams.go).
func (e *Execution) launchNode(nodeID string) {
	nr := e.nodes[nodeID]
	nr.state = NodeRunning
	e.running++

	if err := e.transferIncoming(nodeID); err != nil {
		e.completions <- nodeResult{nodeID: nodeID, err: err}
		return
	}

	e.publishNode(EventNodeStarted, nodeID, NodeEventData{Attempt: nr.retryAttempt})

	nodeCtx, cancel := context.WithTimeout(e.runCtx, e.Options.NodeTimeout)
	go e.runNode(nodeCtx, cancel, nr)
}

// transferIncoming copies each resolved incoming data edge's source-port
// value onto the target port, deep-copying object/array values (spec
// §4.1), and emits the EDGE_TRANSFER pair (spec §9 open question 1).
func (e *Execution) transferIncoming(nodeID string) error {
	for _, edge := range e.snapshot.IncomingEdges(nodeID) {
		if e.snapshot.IsSystemEdge(edge) || e.snapshot.IsStreamEdge(edge) {
			continue
		}
		src := e.nodes[edge.SourceNodeID]
		if src == nil || src.state == NodeSkipped || src.state == NodeFailed {
			continue
		}
		srcNode := src.node
		srcPort := srcNode.Ports[edge.SourcePortID]
		if srcPort == nil {
			continue
		}
		val, ok := srcPort.Resolve()
		if !ok {
			continue
		}
		e.publish(EventEdgeTransferStarted, EdgeTransferData{
			EdgeID: edge.ID, SourceNodeID: edge.SourceNodeID, SourcePortID: edge.SourcePortID,
			TargetNodeID: edge.TargetNodeID, TargetPortID: edge.TargetPortID,
		})
		copied, err := flow.DeepCopyJSON(val)
		if err != nil {
			return chainerr.Wrap(chainerr.TypeMismatch, err, "deep-copy value for edge %s", edge.ID)
		}
		tgtNode := e.nodes[edge.TargetNodeID].node
		tgtPort := tgtNode.Ports[edge.TargetPortID]
		if tgtPort != nil {
			if err := tgtPort.SetValue(copied, true); err != nil {
				return chainerr.Wrap(chainerr.TypeMismatch, err, "edge %s: target port rejected value", edge.ID)
			}
			// First delivery into an `any` port locks it onto the source's
			// concrete kind; later edges into the same port are then checked
			// against that adopted kind instead of accepting anything
			// forever (spec §4.1, §9).
			tgtPort.Config.Adopt(&srcPort.Config)
		}
		e.publish(EventEdgeTransferCompleted, EdgeTransferData{
			EdgeID: edge.ID, SourceNodeID: edge.SourceNodeID, SourcePortID: edge.SourcePortID,
			TargetNodeID: edge.TargetNodeID, TargetPortID: edge.TargetPortID,
		})
	}
	return nil
}
