package exec

import (
	"context"
	"time"

	"github.com/chaingraph-labs/engine/flow"
)

// runNode executes one node outside the dispatcher goroutine and reports
// the outcome back over e.completions. It owns panic recovery (teacher's
// graph/parallel.go pattern: a node author's bug must fail that node, not
// the whole process) and per-node timeout via ctx.
func (e *Execution) runNode(ctx context.Context, cancel context.CancelFunc, nr *nodeRuntime) {
	defer cancel()

	node := nr.node
	start := time.Now()

	var emitted []flow.EmittedEvent
	ec := &flow.ExecContext{
		NodeID: node.ID,
		Input: func(portKey string) (any, bool) {
			p := node.PortByKey(portKey)
			if p == nil {
				return nil, false
			}
			return p.Resolve()
		},
		StreamOut: func(portKey string) (func(item any) error, func(), error) {
			sc := e.streamForOutput(node.ID, portKey)
			publish := func(item any) error { return sc.mc.Publish(ctx, item) }
			closeFn := sc.mc.Close
			return publish, closeFn, nil
		},
		StreamIn: func(portKey string) (func(context.Context) (any, bool, error), error) {
			sc, err := e.streamForInput(node.ID, portKey)
			if err != nil {
				return nil, err
			}
			consumer := sc.mc.NewConsumer()
			return consumer.Next, nil
		},
		EmitFunc: func(name string, payload any) {
			emitted = append(emitted, flow.EmittedEvent{Name: name, Payload: payload})
		},
		Logger: scopedLogger(e.engine.logger(), "execution:"+e.ID),
	}

	result, err := e.callNode(ctx, node, ec)
	result.EmittedEvents = append(result.EmittedEvents, emitted...)
	duration := time.Since(start)

	cause := ""
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
		cause = "timeout"
	}

	selectedKey := ""
	if err == nil {
		selectedKey, err = selectOutgoingPort(ctx, node, result)
	}

	res := nodeResult{nodeID: node.ID, result: result, selectedKey: selectedKey, err: err, cause: cause, duration: duration}
	select {
	case e.completions <- res:
	case <-e.baseCtx.Done():
	}
}

// callNode invokes node.Execute with panic recovery, so a node author's bug
// surfaces as a NodeFailure rather than crashing the dispatcher.
func (e *Execution) callNode(ctx context.Context, node *flow.Node, ec *flow.ExecContext) (result flow.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errNodePanic
		}
	}()
	return node.Execute(ctx, ec)
}

// selectOutgoingPort resolves which system port key a successfully
// completed node fires next: Result.SelectedEdge takes precedence, then the
// node's RouterFunc, then the default "then" port (spec §4.4).
func selectOutgoingPort(ctx context.Context, node *flow.Node, result flow.Result) (string, error) {
	if result.SelectedEdge != "" {
		return result.SelectedEdge, nil
	}
	if node.Router != nil {
		key, err := node.Router(ctx, result.Outputs)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return flow.SystemPortThen, nil
}
