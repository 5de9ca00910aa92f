// Package graph derives execution order from a workflow's connections:
// topological sort with cycle detection, and the longest-path level
// partition used by parallel scheduling.
package graph

import (
	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// Topology is the result of analyzing one workflow.
type Topology struct {
	// Order lists every node id exactly once, consistent with dependency
	// edges: a node appears after every node whose outputs feed it.
	// Nodes reachable from an entry point come before unreached nodes.
	Order []string

	// Levels partitions Order by longest-path depth: Levels[0] holds nodes
	// with no predecessors, and a node sits at 1 + the maximum level of
	// its predecessors. Nodes within one level share no dependency edges.
	Levels [][]string

	deps map[string][]string
}

// Dependencies returns the ids of the nodes whose outputs feed the given
// node, in connection declaration order.
func (t *Topology) Dependencies(nodeID string) []string {
	return t.deps[nodeID]
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS stack
	colorBlack        // finished
)

// Analyze validates the dependency relation of the workflow and derives its
// topological order and level partition. A back-edge fails the analysis
// with a *api.CycleError naming a node on the cycle.
func Analyze(wf *api.Workflow) (*Topology, error) {
	deps := make(map[string][]string, len(wf.Nodes))
	for _, n := range wf.Nodes {
		seen := make(map[string]bool)
		for _, c := range wf.InboundConnections(n.ID) {
			if !seen[c.SourceNodeID] {
				seen[c.SourceNodeID] = true
				deps[n.ID] = append(deps[n.ID], c.SourceNodeID)
			}
		}
	}

	t := &Topology{deps: deps}

	color := make(map[string]int, len(wf.Nodes))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case colorBlack:
			return nil
		case colorGray:
			return &api.CycleError{NodeID: id}
		}
		color[id] = colorGray
		for _, dep := range deps[id] {
			if _, ok := wf.NodeByID(dep); !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = colorBlack
		t.Order = append(t.Order, id)
		return nil
	}

	// Entry-reachable nodes first, then everything else in declaration
	// order; every node runs exactly once either way.
	for _, id := range wf.EntryPoints {
		if _, ok := wf.NodeByID(id); !ok {
			continue
		}
		if err := visitFrom(wf, id, color, visit); err != nil {
			return nil, err
		}
	}
	for _, n := range wf.Nodes {
		if err := visit(n.ID); err != nil {
			return nil, err
		}
	}

	t.buildLevels()
	return t, nil
}

// visitFrom visits id and then walks forward along outbound connections so
// the nodes downstream of an entry point are ordered ahead of unreached
// nodes.
func visitFrom(wf *api.Workflow, id string, color map[string]int, visit func(string) error) error {
	if err := visit(id); err != nil {
		return err
	}
	for _, c := range wf.OutboundConnections(id) {
		if color[c.TargetNodeID] == colorBlack {
			continue
		}
		if _, ok := wf.NodeByID(c.TargetNodeID); !ok {
			continue
		}
		if err := visitFrom(wf, c.TargetNodeID, color, visit); err != nil {
			return err
		}
	}
	return nil
}

// buildLevels assigns each node its longest-path depth. Order already puts
// every dependency before its dependents, so one forward pass suffices.
func (t *Topology) buildLevels() {
	depth := make(map[string]int, len(t.Order))
	maxDepth := -1
	for _, id := range t.Order {
		d := 0
		for _, dep := range t.deps[id] {
			if dd, ok := depth[dep]; ok && dd+1 > d {
				d = dd + 1
			}
		}
		depth[id] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	t.Levels = make([][]string, maxDepth+1)
	for _, id := range t.Order {
		d := depth[id]
		t.Levels[d] = append(t.Levels[d], id)
	}
}
