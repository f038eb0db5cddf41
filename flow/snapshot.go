package flow

import (
	"github.com/chaingraph-labs/engine/chainerr"
)

// Snapshot is the immutable-at-run view of a Flow's nodes, edges, and
// metadata taken at execution-creation time (spec §4.3). Further edits to
// the source Flow do not affect a Snapshot already taken.
type Snapshot struct {
	FlowID      string
	FlowVersion int64
	Metadata    Metadata

	nodeOrder     []string
	nodes         map[string]*Node
	edgeOrder     []string
	edges         map[string]*Edge
	eventBindings map[string]string

	incoming map[string][]*Edge
	outgoing map[string][]*Edge
}

// NewSnapshot copies f's current node/edge definitions and validates the
// edge invariants of spec §3 (source/target existence, direction
// compatibility, type compatibility, system-edge acyclicity).
func NewSnapshot(f *Flow) (*Snapshot, error) {
	s := &Snapshot{
		FlowID:        f.ID,
		FlowVersion:   f.Metadata.Version,
		Metadata:      f.Metadata,
		nodeOrder:     append([]string(nil), f.NodeOrder...),
		nodes:         make(map[string]*Node, len(f.Nodes)),
		edgeOrder:     append([]string(nil), f.EdgeOrder...),
		edges:         make(map[string]*Edge, len(f.Edges)),
		eventBindings: make(map[string]string, len(f.EventBindings)),
		incoming:      make(map[string][]*Edge),
		outgoing:      make(map[string][]*Edge),
	}
	for id, n := range f.Nodes {
		s.nodes[id] = n.Clone()
	}
	for id, e := range f.Edges {
		ec := *e
		s.edges[id] = &ec
	}
	for k, v := range f.EventBindings {
		s.eventBindings[k] = v
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	for _, id := range s.edgeOrder {
		e := s.edges[id]
		s.incoming[e.TargetNodeID] = append(s.incoming[e.TargetNodeID], e)
		s.outgoing[e.SourceNodeID] = append(s.outgoing[e.SourceNodeID], e)
	}
	return s, nil
}

func (s *Snapshot) validate() error {
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		src, ok := s.nodes[e.SourceNodeID]
		if !ok {
			return chainerr.New(chainerr.NotFound, "edge %s: source node %s not found", e.ID, e.SourceNodeID)
		}
		tgt, ok := s.nodes[e.TargetNodeID]
		if !ok {
			return chainerr.New(chainerr.NotFound, "edge %s: target node %s not found", e.ID, e.TargetNodeID)
		}
		srcPort, ok := src.Ports[e.SourcePortID]
		if !ok {
			return chainerr.New(chainerr.NotFound, "edge %s: source port %s not found on node %s", e.ID, e.SourcePortID, e.SourceNodeID)
		}
		tgtPort, ok := tgt.Ports[e.TargetPortID]
		if !ok {
			return chainerr.New(chainerr.NotFound, "edge %s: target port %s not found on node %s", e.ID, e.TargetPortID, e.TargetNodeID)
		}
		if !directionsCompatible(srcPort.Direction, tgtPort.Direction) {
			return chainerr.New(chainerr.InvalidState, "edge %s: incompatible directions %s -> %s", e.ID, srcPort.Direction, tgtPort.Direction)
		}
		if !IsCompatible(&srcPort.Config, &tgtPort.Config) {
			return chainerr.New(chainerr.TypeMismatch, "edge %s: incompatible port types", e.ID)
		}
	}
	return s.checkSystemEdgeAcyclic()
}

func directionsCompatible(src, tgt Direction) bool {
	if src == DirectionPassthrough || tgt == DirectionPassthrough {
		return true
	}
	return src == DirectionOutput && tgt == DirectionInput
}

// checkSystemEdgeAcyclic rejects cycles among system (flow-control) ports.
// Data cycles are legal when they cross a stream port (spec §4.4, §9 open
// question 3), so only edges where IsSystemEdge is true participate here.
func (s *Snapshot) checkSystemEdgeAcyclic() error {
	adj := make(map[string][]string)
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		if s.IsSystemEdge(e) {
			adj[e.SourceNodeID] = append(adj[e.SourceNodeID], e.TargetNodeID)
		}
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(s.nodes))
	var visit func(n string) error
	visit = func(n string) error {
		color[n] = gray
		for _, next := range adj[n] {
			switch color[next] {
			case gray:
				return chainerr.New(chainerr.InvalidState, "system-edge cycle detected through node %s", next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[n] = black
		return nil
	}
	for _, id := range s.nodeOrder {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// NodeIDs returns all node ids in authoring order.
func (s *Snapshot) NodeIDs() []string { return append([]string(nil), s.nodeOrder...) }

// Node returns the node definition for id, or nil.
func (s *Snapshot) Node(id string) *Node { return s.nodes[id] }

// EdgeIDs returns all edge ids in authoring order.
func (s *Snapshot) EdgeIDs() []string { return append([]string(nil), s.edgeOrder...) }

// Edge returns the edge for id, or nil.
func (s *Snapshot) Edge(id string) *Edge { return s.edges[id] }

// IncomingEdges returns edges whose target is nodeID.
func (s *Snapshot) IncomingEdges(nodeID string) []*Edge {
	return append([]*Edge(nil), s.incoming[nodeID]...)
}

// OutgoingEdges returns edges whose source is nodeID.
func (s *Snapshot) OutgoingEdges(nodeID string) []*Edge {
	return append([]*Edge(nil), s.outgoing[nodeID]...)
}

// EdgesFromPort returns outgoing edges from a specific port.
func (s *Snapshot) EdgesFromPort(nodeID, portID string) []*Edge {
	var out []*Edge
	for _, e := range s.outgoing[nodeID] {
		if e.SourcePortID == portID {
			out = append(out, e)
		}
	}
	return out
}

// EdgesToPort returns incoming edges to a specific port.
func (s *Snapshot) EdgesToPort(nodeID, portID string) []*Edge {
	var out []*Edge
	for _, e := range s.incoming[nodeID] {
		if e.TargetPortID == portID {
			out = append(out, e)
		}
	}
	return out
}

// IsSystemEdge reports whether both of e's endpoints are system ports.
func (s *Snapshot) IsSystemEdge(e *Edge) bool {
	src := s.nodes[e.SourceNodeID]
	tgt := s.nodes[e.TargetNodeID]
	if src == nil || tgt == nil {
		return false
	}
	srcPort := src.Ports[e.SourcePortID]
	tgtPort := tgt.Ports[e.TargetPortID]
	return srcPort != nil && tgtPort != nil && srcPort.System && tgtPort.System
}

// IsStreamEdge reports whether e connects two stream ports.
func (s *Snapshot) IsStreamEdge(e *Edge) bool {
	src := s.nodes[e.SourceNodeID]
	tgt := s.nodes[e.TargetNodeID]
	if src == nil || tgt == nil {
		return false
	}
	srcPort := src.Ports[e.SourcePortID]
	tgtPort := tgt.Ports[e.TargetPortID]
	return srcPort != nil && tgtPort != nil &&
		srcPort.Config.EffectiveKind() == PortStream && tgtPort.Config.EffectiveKind() == PortStream
}

// Roots returns node ids with no incoming system edge — ready at flow
// start (spec §4.3, §4.4).
func (s *Snapshot) Roots() []string {
	hasIncomingSystem := make(map[string]bool)
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		if s.IsSystemEdge(e) {
			hasIncomingSystem[e.TargetNodeID] = true
		}
	}
	var out []string
	for _, id := range s.nodeOrder {
		if !hasIncomingSystem[id] {
			out = append(out, id)
		}
	}
	return out
}

// EventBindingFor returns the child flow id bound to eventName, if any
// (spec §4.4 child-flow spawning).
func (s *Snapshot) EventBindingFor(eventName string) (string, bool) {
	id, ok := s.eventBindings[eventName]
	return id, ok
}

// InstantiateNode returns a fresh, independently-mutable clone of the node
// definition for id, for a specific execution to run against.
func (s *Snapshot) InstantiateNode(id string) *Node {
	n := s.nodes[id]
	if n == nil {
		return nil
	}
	return n.Clone()
}
