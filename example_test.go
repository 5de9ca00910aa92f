package fluxgraph_test

import (
	"context"
	"fmt"
	"log"

	"github.com/fluxgraph/fluxgraph"
)

// Example_workflowBuilder demonstrates composing and running a simple
// two-node graph on a Runtime.
func Example_workflowBuilder() {
	ctx := context.Background()

	rt := fluxgraph.NewRuntime()
	defer rt.Close()

	rt.Executor.RegisterExecutor("greet", func(ctx context.Context, n *fluxgraph.Node, in map[string]any, ec *fluxgraph.ExecutionContext) (map[string]any, error) {
		return map[string]any{"text": "hello, " + in["name"].(string)}, nil
	})
	rt.Executor.RegisterExecutor("shout", func(ctx context.Context, n *fluxgraph.Node, in map[string]any, ec *fluxgraph.ExecutionContext) (map[string]any, error) {
		return map[string]any{"text": in["text"].(string) + "!"}, nil
	})

	wf := fluxgraph.NewWorkflow("greeting", "greeting pipeline").
		Node(&fluxgraph.Node{ID: "greet", Type: "greet", Name: "greet",
			Inputs:  []fluxgraph.Port{fluxgraph.In("name", "text")},
			Outputs: []fluxgraph.Port{fluxgraph.Out("text", "text")},
		}).
		Node(&fluxgraph.Node{ID: "shout", Type: "shout", Name: "shout",
			Inputs:  []fluxgraph.Port{fluxgraph.In("text", "text")},
			Outputs: []fluxgraph.Port{fluxgraph.Out("text", "text")},
		}).
		Connect("greet:text", "shout:text").
		Entry("greet").
		Exit("shout").
		Build()

	result, err := rt.Execute(ctx, wf, fluxgraph.RunOptions{
		Inputs: map[string]any{"name": "gopher"},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(result.Outputs["shout"]["text"])
	// Output: hello, gopher!
}
