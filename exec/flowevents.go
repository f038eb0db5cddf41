package exec

import (
	"context"
	"sync"

	"github.com/chaingraph-labs/engine/eventqueue"
	"github.com/chaingraph-labs/engine/flow"
)

// FlowEventType enumerates the flow-mutation events of spec §6.3.
type FlowEventType string

const (
	FlowEventInitStart           FlowEventType = "FlowInitStart"
	FlowEventNodeAdded           FlowEventType = "NodeAdded"
	FlowEventEdgeAdded           FlowEventType = "EdgeAdded"
	FlowEventNodeUIPositionMoved FlowEventType = "NodeUIPositionChanged"
	FlowEventMetadataUpdated     FlowEventType = "MetadataUpdated"
	FlowEventInitEnd             FlowEventType = "FlowInitEnd"
)

// FlowEvent is one entry in a flow's mutation event stream (spec §6.3).
type FlowEvent struct {
	Index  int64
	Type   FlowEventType
	FlowID string
	Data   any
}

// NodeAddedData is FlowEventNodeAdded's payload.
type NodeAddedData struct {
	NodeID string
	Type   string
	Title  string
}

// EdgeAddedData is FlowEventEdgeAdded's payload.
type EdgeAddedData struct {
	EdgeID       string
	SourceNodeID string
	SourcePortID string
	TargetNodeID string
	TargetPortID string
}

// MetadataUpdatedData is FlowEventMetadataUpdated's payload.
type MetadataUpdatedData struct {
	Name        string
	Description string
	Version     int64
}

// flowEventHub fans live flow-mutation events out to subscribers of one
// flow, mirroring the per-execution eventBus but keyed by flowId instead
// of a single execution (spec §6.3 "structurally identical" to §6.2).
type flowEventHub struct {
	mu   sync.Mutex
	subs map[string]map[int64]*eventqueue.Queue[FlowEvent]
	seq  map[string]int64
	next int64
}

func newFlowEventHub() *flowEventHub {
	return &flowEventHub{
		subs: make(map[string]map[int64]*eventqueue.Queue[FlowEvent]),
		seq:  make(map[string]int64),
	}
}

func (h *flowEventHub) subscribe(flowID string, capacity int) (int64, *eventqueue.Queue[FlowEvent]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	q := eventqueue.New[FlowEvent](capacity)
	if h.subs[flowID] == nil {
		h.subs[flowID] = make(map[int64]*eventqueue.Queue[FlowEvent])
	}
	h.subs[flowID][id] = q
	return id, q
}

func (h *flowEventHub) unsubscribe(flowID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[flowID], id)
}

// publish assigns the next per-flow index and fans the event out to every
// live subscriber of flowID.
func (h *flowEventHub) publish(flowID string, t FlowEventType, data any) FlowEvent {
	h.mu.Lock()
	h.seq[flowID]++
	ev := FlowEvent{Index: h.seq[flowID], Type: t, FlowID: flowID, Data: data}
	for _, q := range h.subs[flowID] {
		q.Publish(ev)
	}
	h.mu.Unlock()
	return ev
}

// PublishFlowEvent lets an external flow-authoring collaborator (out of
// scope per §1) feed live mutation events through the same hub subscribers
// read from.
func (eng *Engine) PublishFlowEvent(flowID string, t FlowEventType, data any) {
	eng.flowEvents.publish(flowID, t, data)
}

// SubscribeFlowEvents implements §6.3: on initial connection it synthesizes
// FlowInitStart/NodeAdded/EdgeAdded/MetadataUpdated/FlowInitEnd from the
// flow's current definition, then streams live mutation events.
func (eng *Engine) SubscribeFlowEvents(ctx context.Context, flowID string) (<-chan FlowEvent, func(), error) {
	f, err := eng.flows.GetFlow(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	id, q := eng.flowEvents.subscribe(flowID, DefaultSubscriptionCapacity)
	out := make(chan FlowEvent, DefaultSubscriptionCapacity)

	go func() {
		defer close(out)
		defer eng.flowEvents.unsubscribe(flowID, id)

		for _, ev := range synthesizeFlowInit(f) {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}

		it := q.Iterator()
		for {
			ev, ok, err := it.Next(ctx)
			if err != nil || !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { eng.flowEvents.unsubscribe(flowID, id) }, nil
}

// synthesizeFlowInit replays f's current definition as an ordered
// FlowInitStart..FlowInitEnd sequence (spec §6.3). Indexes here are local
// to the synthesized sequence; live events continue from the hub's own
// per-flow counter.
func synthesizeFlowInit(f *flow.Flow) []FlowEvent {
	var out []FlowEvent
	idx := int64(0)
	next := func(t FlowEventType, data any) {
		idx++
		out = append(out, FlowEvent{Index: idx, Type: t, FlowID: f.ID, Data: data})
	}

	next(FlowEventInitStart, nil)
	for _, nodeID := range f.NodeOrder {
		n := f.Nodes[nodeID]
		next(FlowEventNodeAdded, NodeAddedData{NodeID: n.ID, Type: n.Type, Title: n.Title})
	}
	for _, edgeID := range f.EdgeOrder {
		e := f.Edges[edgeID]
		next(FlowEventEdgeAdded, EdgeAddedData{
			EdgeID: e.ID, SourceNodeID: e.SourceNodeID, SourcePortID: e.SourcePortID,
			TargetNodeID: e.TargetNodeID, TargetPortID: e.TargetPortID,
		})
	}
	next(FlowEventMetadataUpdated, MetadataUpdatedData{
		Name: f.Metadata.Name, Description: f.Metadata.Description, Version: f.Metadata.Version,
	})
	next(FlowEventInitEnd, nil)
	return out
}
