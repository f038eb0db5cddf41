package exec

import (
	"sort"

	"github.com/chaingraph-labs/engine/flow"
)

// nodeRuntime is the dispatcher's private bookkeeping for one node within
// one execution. Only the dispatcher goroutine touches these fields, so no
// locking is needed around them (spec §5: node tasks report results back
// over a channel rather than mutating scheduler state directly).
type nodeRuntime struct {
	node  *flow.Node
	state NodeState

	pendingSystem       map[string]bool // incoming system edge id -> still unresolved
	totalSystemIncoming int
	selectedSystemCount int

	pendingData map[string]bool // incoming non-system, non-stream edge id -> still unresolved

	retryAttempt int
	bypassBreak  bool // one-shot: next ready->running transition skips breakpoint parking

	startedAt, endedAt string // RFC3339; the dispatcher never sets them and GetState does not read them
	errMessage, cause  string
}

func newNodeRuntime(n *flow.Node, incomingSystem, incomingData []*flow.Edge) *nodeRuntime {
	nr := &nodeRuntime{
		node:                n,
		state:               NodeIdle,
		pendingSystem:       make(map[string]bool, len(incomingSystem)),
		pendingData:         make(map[string]bool, len(incomingData)),
		totalSystemIncoming: len(incomingSystem),
	}
	for _, e := range incomingSystem {
		nr.pendingSystem[e.ID] = true
	}
	for _, e := range incomingData {
		nr.pendingData[e.ID] = true
	}
	return nr
}

func (nr *nodeRuntime) systemResolved() bool { return len(nr.pendingSystem) == 0 }
func (nr *nodeRuntime) dataResolved() bool   { return len(nr.pendingData) == 0 }

// sortByNodeOrder sorts ids in the order they appear in order — ties among
// simultaneously-ready nodes are broken by authoring order (spec §4.4).
func sortByNodeOrder(ids []string, order []string) []string {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	out := append([]string(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}
