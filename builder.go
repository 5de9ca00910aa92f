package fluxgraph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// WorkflowBuilder provides a fluent API for composing workflow graphs:
//
//	wf := fluxgraph.NewWorkflow("sum", "linear sum").
//	    Node(&fluxgraph.Node{
//	        ID: "A", Type: "const", Name: "A",
//	        Outputs: []fluxgraph.Port{fluxgraph.Out("v", "number")},
//	    }).
//	    Node(&fluxgraph.Node{
//	        ID: "B", Type: "double", Name: "B",
//	        Inputs:  []fluxgraph.Port{fluxgraph.In("v", "number")},
//	        Outputs: []fluxgraph.Port{fluxgraph.Out("v", "number")},
//	    }).
//	    Connect("A:v", "B:v").
//	    Entry("A").Exit("B").
//	    Build()
//
// The builder panics on structural misuse (empty or duplicate ids,
// malformed port references); semantic validity is checked by the
// Validator and by the engine at run start.
type WorkflowBuilder struct {
	wf api.Workflow
}

// NewWorkflow creates a new workflow builder with the given id and name.
func NewWorkflow(id, name string) *WorkflowBuilder {
	if id == "" {
		panic("fluxgraph: workflow id must not be empty")
	}
	return &WorkflowBuilder{
		wf: api.Workflow{
			ID:   id,
			Name: name,
		},
	}
}

// Node appends a node to the workflow.
func (b *WorkflowBuilder) Node(n *api.Node) *WorkflowBuilder {
	if n == nil || n.ID == "" {
		panic("fluxgraph: node with a non-empty id is required")
	}
	for _, existing := range b.wf.Nodes {
		if existing.ID == n.ID {
			panic(fmt.Sprintf("fluxgraph: duplicate node id %q", n.ID))
		}
	}
	if n.Status == "" {
		n.Status = api.NodeIdle
	}
	b.wf.Nodes = append(b.wf.Nodes, n)
	return b
}

// Connect adds a connection between two "nodeID:portID" references.
func (b *WorkflowBuilder) Connect(sourceRef, targetRef string) *WorkflowBuilder {
	srcNode, srcPort, ok := api.ParsePortRef(sourceRef)
	if !ok {
		panic(fmt.Sprintf("fluxgraph: malformed source port reference %q", sourceRef))
	}
	tgtNode, tgtPort, ok := api.ParsePortRef(targetRef)
	if !ok {
		panic(fmt.Sprintf("fluxgraph: malformed target port reference %q", targetRef))
	}

	b.wf.Connections = append(b.wf.Connections, &api.Connection{
		ID:           uuid.NewString(),
		SourceNodeID: srcNode,
		SourcePortID: srcPort,
		TargetNodeID: tgtNode,
		TargetPortID: tgtPort,
	})
	return b
}

// Entry appends the given node ids to the workflow's entry points.
func (b *WorkflowBuilder) Entry(nodeIDs ...string) *WorkflowBuilder {
	b.wf.EntryPoints = append(b.wf.EntryPoints, nodeIDs...)
	return b
}

// Exit appends the given node ids to the workflow's exit points.
func (b *WorkflowBuilder) Exit(nodeIDs ...string) *WorkflowBuilder {
	b.wf.ExitPoints = append(b.wf.ExitPoints, nodeIDs...)
	return b
}

// Meta sets a workflow metadata key.
func (b *WorkflowBuilder) Meta(key string, value any) *WorkflowBuilder {
	if b.wf.Metadata == nil {
		b.wf.Metadata = make(map[string]any)
	}
	b.wf.Metadata[key] = value
	return b
}

// Build returns the composed workflow.
func (b *WorkflowBuilder) Build() *Workflow {
	wf := b.wf
	return &wf
}

// Port construction helpers.

// In returns an input port. The port id doubles as its name.
func In(id, dataType string) Port {
	return Port{ID: id, Name: id, DataType: dataType, Direction: api.DirectionIn}
}

// InDefault returns an input port carrying a default value, substituted
// when no connection supplies the input at execution time.
func InDefault(id, dataType string, def any) Port {
	p := In(id, dataType)
	p.Default = def
	return p
}

// Out returns an output port. The port id doubles as its name.
func Out(id, dataType string) Port {
	return Port{ID: id, Name: id, DataType: dataType, Direction: api.DirectionOut}
}
