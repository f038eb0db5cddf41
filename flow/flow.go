package flow

// Metadata describes a flow's authoring-level identity (spec §3). The
// engine never interprets these fields beyond carrying them through to
// persistence and subscription events.
type Metadata struct {
	Name        string
	Description string
	Tags        []string
	Owner       string
	Version     int64
}

// Flow is a directed graph of nodes connected by edges (spec §3). Flow
// values are mutable while being authored; the engine never runs against a
// live *Flow directly — it takes a Snapshot at execution-creation time
// (spec §4.3).
type Flow struct {
	ID       string
	Metadata Metadata

	// Nodes and Edges are ordered (insertion order matters for FIFO
	// tie-breaking among nodes that become ready simultaneously, spec
	// §4.4), so both the set and the order are carried alongside the
	// id-indexed maps used for O(1) lookup.
	NodeOrder []string
	Nodes     map[string]*Node
	EdgeOrder []string
	Edges     map[string]*Edge

	// EventBindings maps an emitted event name to the id of a child flow
	// to spawn when that event fires (spec §4.4 "child-flow spawning from
	// events").
	EventBindings map[string]string
}

// NewFlow constructs an empty Flow.
func NewFlow(id string, meta Metadata) *Flow {
	return &Flow{
		ID:            id,
		Metadata:      meta,
		Nodes:         make(map[string]*Node),
		Edges:         make(map[string]*Edge),
		EventBindings: make(map[string]string),
	}
}

// AddNode appends a node, preserving insertion order.
func (f *Flow) AddNode(n *Node) {
	if _, exists := f.Nodes[n.ID]; !exists {
		f.NodeOrder = append(f.NodeOrder, n.ID)
	}
	f.Nodes[n.ID] = n
}

// AddEdge appends an edge, preserving insertion order.
func (f *Flow) AddEdge(e *Edge) {
	if _, exists := f.Edges[e.ID]; !exists {
		f.EdgeOrder = append(f.EdgeOrder, e.ID)
	}
	f.Edges[e.ID] = e
}

// BindEvent registers a named-event -> child-flow-id binding.
func (f *Flow) BindEvent(eventName, childFlowID string) {
	f.EventBindings[eventName] = childFlowID
}
