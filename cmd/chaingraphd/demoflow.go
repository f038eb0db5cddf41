package main

import (
	"context"
	"fmt"

	"github.com/chaingraph-labs/engine/flow"
)

// buildDemoFlow assembles a tiny two-node flow: a root node that produces a
// greeting string, wired over a system "then" edge and a data edge into a
// node that shouts it. It exists so chaingraphd is runnable end-to-end
// without a real flow-authoring backend (SPEC_FULL §6.4).
func buildDemoFlow(id string) *flow.Flow {
	f := flow.NewFlow(id, flow.Metadata{Name: "demo", Version: 1})

	greet := &flow.Node{
		ID:    "greet",
		Type:  "greet",
		Title: "Greet",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortString}, nil),
			"then":  flow.NewPort("then", flow.SystemPortThen, flow.DirectionOutput, flow.PortConfig{Kind: flow.PortString}, nil),
			"out":   flow.NewPort("out", "message", flow.DirectionOutput, flow.PortConfig{Kind: flow.PortString}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			ec.Emit("greeted", "hello from chaingraphd")
			return flow.Result{Outputs: map[string]any{"message": "hello from chaingraphd"}}, nil
		},
	}
	greet.Ports["start"].System = true
	greet.Ports["then"].System = true

	shout := &flow.Node{
		ID:    "shout",
		Type:  "shout",
		Title: "Shout",
		Ports: map[string]*flow.Port{
			"start": flow.NewPort("start", flow.SystemPortStart, flow.DirectionInput, flow.PortConfig{Kind: flow.PortString}, nil),
			"in":    flow.NewPort("in", "message", flow.DirectionInput, flow.PortConfig{Kind: flow.PortString}, nil),
		},
		Execute: func(ctx context.Context, ec *flow.ExecContext) (flow.Result, error) {
			msg, _ := ec.Input("message")
			fmt.Printf("[shout] %v!!!\n", msg)
			return flow.Result{}, nil
		},
	}
	shout.Ports["start"].System = true

	f.AddNode(greet)
	f.AddNode(shout)
	f.AddEdge(&flow.Edge{ID: "e-then", SourceNodeID: "greet", SourcePortID: "then", TargetNodeID: "shout", TargetPortID: "start"})
	f.AddEdge(&flow.Edge{ID: "e-data", SourceNodeID: "greet", SourcePortID: "out", TargetNodeID: "shout", TargetPortID: "in"})

	return f
}
