package exec

import (
	"github.com/chaingraph-labs/engine/chainerr"
	flowstream "github.com/chaingraph-labs/engine/stream"
)

// streamChannel wraps the MultiChannel wired between a stream-kind output
// port and every stream-kind input port it feeds (spec §4.5). Keyed by
// (sourceNodeID, sourcePortID) since one output can fan out to many
// consumers, each with its own cursor.
type streamChannel struct {
	mc *flowstream.MultiChannel[any]
}

func streamKey(sourceNodeID, sourcePortID string) string {
	return sourceNodeID + "#" + sourcePortID
}

// streamForOutput lazily creates the MultiChannel a producer node's
// StreamOut publishes on, sized from the port's configured water marks.
func (e *Execution) streamForOutput(sourceNodeID, sourcePortID string) *streamChannel {
	key := streamKey(sourceNodeID, sourcePortID)

	e.streamsMu.Lock()
	defer e.streamsMu.Unlock()
	if sc, ok := e.streams[key]; ok {
		return sc
	}

	high, low := flowstream.DefaultHighWaterMark, flowstream.DefaultLowWaterMark
	if src := e.nodes[sourceNodeID]; src != nil {
		if port := src.node.PortByKey(sourcePortID); port != nil && port.Config.Stream != nil {
			if port.Config.Stream.HighWaterMark > 0 {
				high = port.Config.Stream.HighWaterMark
			}
			if port.Config.Stream.LowWaterMark > 0 {
				low = port.Config.Stream.LowWaterMark
			}
		}
	}

	sc := &streamChannel{mc: flowstream.New[any](high, low)}
	e.streams[key] = sc
	return sc
}

// streamForInput resolves the MultiChannel feeding a consumer node's
// StreamIn port: it finds the upstream edge wired to (nodeID, portKey) and
// locates (or lazily creates, if the producer hasn't started yet) the
// channel keyed by that edge's source.
func (e *Execution) streamForInput(nodeID, portKey string) (*streamChannel, error) {
	port := e.nodes[nodeID].node.PortByKey(portKey)
	if port == nil {
		return nil, chainerr.New(chainerr.NotFound, "node %s: no port keyed %s", nodeID, portKey)
	}
	for _, edge := range e.snapshot.EdgesToPort(nodeID, port.ID) {
		if e.snapshot.IsStreamEdge(edge) {
			return e.streamForOutput(edge.SourceNodeID, edge.SourcePortID), nil
		}
	}
	return nil, chainerr.New(chainerr.NotFound, "node %s port %s: no incoming stream edge", nodeID, portKey)
}
