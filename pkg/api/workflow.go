package api

import "strings"

// PortDirection tells whether a port accepts or produces data.
type PortDirection string

const (
	DirectionIn  PortDirection = "in"
	DirectionOut PortDirection = "out"
)

// Port is a typed, named attachment point for connections on a node.
// Port IDs are unique within their node and direction. Direction is fixed
// at construction.
type Port struct {
	ID          string
	Name        string
	DataType    string
	Direction   PortDirection
	Description string

	// Default, if non-nil, is substituted when no connection supplies a
	// value for this input port at execution time.
	Default any
}

// NodeStatus represents the lifecycle state of a node within a run.
type NodeStatus string

const (
	NodeIdle       NodeStatus = "IDLE"
	NodeProcessing NodeStatus = "PROCESSING"
	NodeCompleted  NodeStatus = "COMPLETED"
	NodeFailed     NodeStatus = "FAILED"
	NodeCancelled  NodeStatus = "CANCELLED"
	NodeWaiting    NodeStatus = "WAITING"
)

// Node is a typed unit of computation in a workflow graph. Type is the key
// into the node executor registry; behavior is installed by registration,
// not by subclassing.
type Node struct {
	ID       string
	Type     string
	Name     string
	Inputs   []Port
	Outputs  []Port
	Config   map[string]any
	Metadata map[string]any

	// Status is the node's design-time state, NodeIdle for a fresh node.
	// Per-run statuses live in the ExecutionContext; the engine never
	// mutates the workflow value it is given.
	Status NodeStatus
}

// InputPort returns the input port with the given id.
func (n *Node) InputPort(id string) (*Port, bool) {
	for i := range n.Inputs {
		if n.Inputs[i].ID == id {
			return &n.Inputs[i], true
		}
	}
	return nil, false
}

// OutputPort returns the output port with the given id.
func (n *Node) OutputPort(id string) (*Port, bool) {
	for i := range n.Outputs {
		if n.Outputs[i].ID == id {
			return &n.Outputs[i], true
		}
	}
	return nil, false
}

// Connection is a directed edge from an output port of one node to an input
// port of another. A target input port admits at most one inbound
// connection; a source output port may fan out.
type Connection struct {
	ID           string
	SourceNodeID string
	SourcePortID string
	TargetNodeID string
	TargetPortID string
}

// Workflow is a directed graph of nodes and connections with named entry
// and exit nodes. Workflows are value-like inputs to a run: the engine
// reads them and never writes them.
type Workflow struct {
	ID          string
	Name        string
	Nodes       []*Node
	Connections []*Connection
	EntryPoints []string
	ExitPoints  []string
	Metadata    map[string]any
}

// NodeByID returns the node with the given id.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// InboundConnections returns every connection targeting the given node, in
// declaration order.
func (w *Workflow) InboundConnections(nodeID string) []*Connection {
	var out []*Connection
	for _, c := range w.Connections {
		if c.TargetNodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// OutboundConnections returns every connection originating at the given
// node, in declaration order.
func (w *Workflow) OutboundConnections(nodeID string) []*Connection {
	var out []*Connection
	for _, c := range w.Connections {
		if c.SourceNodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// IsEntryPoint reports whether the node id is listed as an entry point.
func (w *Workflow) IsEntryPoint(nodeID string) bool {
	for _, id := range w.EntryPoints {
		if id == nodeID {
			return true
		}
	}
	return false
}

// MakePortRef builds a "nodeID:portID" reference.
func MakePortRef(nodeID, portID string) string {
	return nodeID + ":" + portID
}

// ParsePortRef splits a "nodeID:portID" reference into its components.
func ParsePortRef(ref string) (nodeID, portID string, ok bool) {
	i := strings.IndexByte(ref, ':')
	if i < 0 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}
