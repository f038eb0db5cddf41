package exec

import "time"

// EventType enumerates every event ChainGraph's execution engine emits
// (spec §3, §4.4). NodeRetrying is an addition (SPEC_FULL §4.4) supplementing
// the retry/backoff machinery the distillation dropped; clients that don't
// recognize it simply skip it per the §6.2 filtering rule.
type EventType string

const (
	EventFlowStarted   EventType = "FLOW_STARTED"
	EventFlowCompleted EventType = "FLOW_COMPLETED"
	EventFlowFailed    EventType = "FLOW_FAILED"
	EventFlowCancelled EventType = "FLOW_CANCELLED"
	EventFlowPaused    EventType = "FLOW_PAUSED"
	EventFlowResumed   EventType = "FLOW_RESUMED"

	EventNodeStarted   EventType = "NODE_STARTED"
	EventNodeCompleted EventType = "NODE_COMPLETED"
	// EventNodeFailed carries Cause="timeout" for the node-timeout case
	// rather than a distinct wire event (spec §8 scenario S3).
	EventNodeFailed   EventType = "NODE_FAILED"
	EventNodeSkipped  EventType = "NODE_SKIPPED"
	EventNodeRetrying EventType = "NODE_RETRYING" // added, SPEC_FULL §4.4

	EventEdgeTransferStarted   EventType = "EDGE_TRANSFER_STARTED"
	EventEdgeTransferCompleted EventType = "EDGE_TRANSFER_COMPLETED"

	EventDebugBreakpointHit EventType = "DEBUG_BREAKPOINT_HIT"
	EventDebugStepTaken     EventType = "DEBUG_STEP_TAKEN"

	EventUserEmitted EventType = "USER_EVENT"
)

// Event is one entry in an execution's ordered log (spec §3). Index is
// assigned under the execution's single producer lock (spec §5) and is
// strictly increasing and unique within one execution.
type Event struct {
	Index       int64
	Type        EventType
	Timestamp   time.Time
	ExecutionID string
	Data        any
}

// NodeEventData is the payload for node lifecycle events.
type NodeEventData struct {
	NodeID  string
	Error   string
	Cause   string // "timeout", "cancelled-unresponsive", "" for ordinary failure
	Outputs map[string]any
	Attempt int // retry attempt number, set on NodeRetrying
}

// EdgeTransferData is the payload for edge-transfer events.
type EdgeTransferData struct {
	EdgeID       string
	SourceNodeID string
	SourcePortID string
	TargetNodeID string
	TargetPortID string
}

// UserEventData is the payload for a node-emitted named event.
type UserEventData struct {
	NodeID           string
	Name             string
	Payload          any
	ChildExecutionID string // set if a child execution was spawned from this event
}

// FlowEventData is the payload for flow lifecycle events.
type FlowEventData struct {
	ErrorMessage string
	ErrorNodeID  string
}
