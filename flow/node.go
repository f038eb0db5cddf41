package flow

import (
	"context"
	"encoding/json"
	"time"
)

// System port keys every node may expose for flow-control.
const (
	SystemPortStart    = "start"
	SystemPortThen     = "then"
	SystemPortError    = "error"
	SystemPortComplete = "complete"
)

// BackoffStrategy selects how RetryPolicy spaces out retry attempts.
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	LinearBackoff
	ExponentialBackoff
)

// RetryPolicy declares node-level retry behavior (SPEC_FULL §4.4, added
// feature grounded in the teacher's graph/retry.go RetryConfig).
type RetryPolicy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Backoff         BackoffStrategy
	RetryableErrors func(error) bool // nil means "retry everything"
}

// RouterFunc selects which system edge fires after a node completes,
// given its produced outputs (SPEC_FULL §4.4: "conditional/router edges").
type RouterFunc func(ctx context.Context, outputs map[string]any) (selectedPortKey string, err error)

// Result is what a node's Execute function returns: the values it produced
// on its output/passthrough ports, plus which system port (if any) it
// selected to fire next. A non-empty selection takes precedence over the
// node's RouterFunc.
type Result struct {
	Outputs       map[string]any
	SelectedEdge  string // system port key selected, "" means default/then
	EmittedEvents []EmittedEvent
}

// EmittedEvent is a named event a node raises via its ExecContext, which
// may trigger a child execution (spec §3, §4.4).
type EmittedEvent struct {
	Name    string
	Payload any
}

// ExecuteFunc is a node's execute(context) -> result contract (spec §3).
type ExecuteFunc func(ctx context.Context, ec *ExecContext) (Result, error)

// ExecContext is the handle a node's ExecuteFunc uses to read its inputs,
// access a stream consumer, and emit named events. The execution engine
// implements this; the flow package only declares the shape so node
// authors can be written against it without importing the engine.
type ExecContext struct {
	NodeID string
	Input  func(portKey string) (any, bool)

	// StreamOut returns a publish/close pair for a stream-kind output port
	// (spec §4.5): the engine wires this to a MultiChannel that is created
	// the first time the producer or one of its consumers asks for it.
	StreamOut func(portKey string) (publish func(item any) error, closeFn func(), err error)
	// StreamIn returns a consumer-advancing function for a stream-kind
	// input port, reading from the producer's MultiChannel.
	StreamIn func(portKey string) (next func(ctx context.Context) (item any, ok bool, err error), err error)

	EmitFunc func(name string, payload any)
	Logger   interface {
		Debug(format string, v ...any)
		Info(format string, v ...any)
	}
}

// Emit records a named event for the engine to publish and, if bound,
// spawn a child execution from.
func (ec *ExecContext) Emit(name string, payload any) {
	if ec.EmitFunc != nil {
		ec.EmitFunc(name, payload)
	}
}

// Node is a unit of computation with typed input/output ports (spec §3).
type Node struct {
	ID       string
	Type     string
	Title    string
	Category string
	Config   json.RawMessage

	// Ports is keyed by portId, per spec §3 ("Port identity: portId unique
	// within node").
	Ports map[string]*Port

	// Version is bumped on any authoring mutation; the engine treats it as
	// opaque (spec §3: "used for concurrency control on edits, not on
	// execution").
	Version int64

	Execute ExecuteFunc
	Router  RouterFunc
	Retry   *RetryPolicy
}

// PortByKey finds a port by its sibling-unique key rather than its id.
func (n *Node) PortByKey(key string) *Port {
	for _, p := range n.Ports {
		if p.Key == key {
			return p
		}
	}
	return nil
}

// SystemPorts returns the subset of n's ports that are flow-control ports.
func (n *Node) SystemPorts() []*Port {
	var out []*Port
	for _, p := range n.Ports {
		if p.System {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a definition-level copy of n: same behavior (Execute,
// Router, Retry) and static port configuration, but with fresh, independent
// port value state — used to instantiate one flow-authored node into a
// brand-new execution instance (spec §4.3).
func (n *Node) Clone() *Node {
	out := &Node{
		ID:       n.ID,
		Type:     n.Type,
		Title:    n.Title,
		Category: n.Category,
		Config:   n.Config,
		Version:  n.Version,
		Execute:  n.Execute,
		Router:   n.Router,
		Retry:    n.Retry,
		Ports:    make(map[string]*Port, len(n.Ports)),
	}
	for id, p := range n.Ports {
		out.Ports[id] = p.Clone()
	}
	return out
}
