package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

func node(id string) *api.Node {
	return &api.Node{
		ID:      id,
		Type:    "noop",
		Name:    id,
		Inputs:  []api.Port{{ID: "in", Name: "in", DataType: "any", Direction: api.DirectionIn}},
		Outputs: []api.Port{{ID: "out", Name: "out", DataType: "any", Direction: api.DirectionOut}},
	}
}

func conn(src, tgt string) *api.Connection {
	return &api.Connection{
		ID:           src + "->" + tgt,
		SourceNodeID: src,
		SourcePortID: "out",
		TargetNodeID: tgt,
		TargetPortID: "in",
	}
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// TestAnalyzeLinearOrder verifies that a linear chain is ordered
// source-to-sink and that every node appears exactly once.
func TestAnalyzeLinearOrder(t *testing.T) {
	t.Parallel()

	wf := &api.Workflow{
		ID:          "linear",
		Nodes:       []*api.Node{node("C"), node("A"), node("B")},
		Connections: []*api.Connection{conn("A", "B"), conn("B", "C")},
		EntryPoints: []string{"A"},
	}

	topo, err := Analyze(wf)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, topo.Order)
}

// TestAnalyzeDiamondLevels verifies the longest-path level partition of a
// diamond: {0:[S], 1:[L,R], 2:[J]}.
func TestAnalyzeDiamondLevels(t *testing.T) {
	t.Parallel()

	wf := &api.Workflow{
		ID:    "diamond",
		Nodes: []*api.Node{node("S"), node("L"), node("R"), node("J")},
		Connections: []*api.Connection{
			conn("S", "L"), conn("S", "R"), conn("L", "J"), conn("R", "J"),
		},
		EntryPoints: []string{"S"},
	}

	topo, err := Analyze(wf)
	require.NoError(t, err)
	require.Len(t, topo.Order, 4)
	require.Len(t, topo.Levels, 3)
	require.Equal(t, []string{"S"}, topo.Levels[0])
	require.ElementsMatch(t, []string{"L", "R"}, topo.Levels[1])
	require.Equal(t, []string{"J"}, topo.Levels[2])
}

// TestAnalyzeCycleFails verifies that a two-node cycle fails analysis with
// a CycleError naming a node on the cycle.
func TestAnalyzeCycleFails(t *testing.T) {
	t.Parallel()

	wf := &api.Workflow{
		ID:          "cyclic",
		Nodes:       []*api.Node{node("A"), node("B")},
		Connections: []*api.Connection{conn("A", "B"), conn("B", "A")},
		EntryPoints: []string{"A"},
	}

	_, err := Analyze(wf)
	var cerr *api.CycleError
	require.ErrorAs(t, err, &cerr)
	require.Contains(t, []string{"A", "B"}, cerr.NodeID)
}

// TestAnalyzeUnreachedNodesScheduled verifies that nodes with no path from
// an entry point are still scheduled, after reachable nodes, consistent
// with their own dependency edges.
func TestAnalyzeUnreachedNodesScheduled(t *testing.T) {
	t.Parallel()

	wf := &api.Workflow{
		ID:    "islands",
		Nodes: []*api.Node{node("X"), node("Y"), node("A"), node("B")},
		Connections: []*api.Connection{
			conn("A", "B"),
			conn("X", "Y"),
		},
		EntryPoints: []string{"A"},
	}

	topo, err := Analyze(wf)
	require.NoError(t, err)
	require.Len(t, topo.Order, 4)

	// Reachable chain first.
	require.Equal(t, "A", topo.Order[0])
	require.Equal(t, "B", topo.Order[1])
	// The island still honors its own edge.
	require.Less(t, indexOf(topo.Order, "X"), indexOf(topo.Order, "Y"))
}

// TestAnalyzeDependenciesHonored verifies the ordering invariant for every
// edge regardless of declaration order.
func TestAnalyzeDependenciesHonored(t *testing.T) {
	t.Parallel()

	wf := &api.Workflow{
		ID:    "shuffled",
		Nodes: []*api.Node{node("E"), node("D"), node("C"), node("B"), node("A")},
		Connections: []*api.Connection{
			conn("A", "C"), conn("B", "C"), conn("C", "D"), conn("C", "E"),
		},
		EntryPoints: []string{"A", "B"},
	}

	topo, err := Analyze(wf)
	require.NoError(t, err)
	require.Len(t, topo.Order, 5)
	for _, edge := range [][2]string{{"A", "C"}, {"B", "C"}, {"C", "D"}, {"C", "E"}} {
		require.Less(t, indexOf(topo.Order, edge[0]), indexOf(topo.Order, edge[1]),
			"edge %s -> %s must be honored", edge[0], edge[1])
	}
}

// TestAnalyzeEmptyWorkflow verifies that an empty graph yields an empty
// order and no levels.
func TestAnalyzeEmptyWorkflow(t *testing.T) {
	t.Parallel()

	topo, err := Analyze(&api.Workflow{ID: "empty"})
	require.NoError(t, err)
	require.Empty(t, topo.Order)
	require.Empty(t, topo.Levels)
}
