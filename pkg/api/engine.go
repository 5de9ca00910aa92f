package api

import "context"

// ExecutorFunc is the computation installed for a node type. It receives
// the gathered inputs keyed by input-port id and returns outputs keyed by
// output-port id. The context carries run cancellation and timeout.
type ExecutorFunc func(ctx context.Context, node *Node, inputs map[string]any, ec *ExecutionContext) (map[string]any, error)

// TransformFunc rewrites a port-value map before or after execution.
// Transforms registered for a node type run left-to-right in registration
// order.
type TransformFunc func(values map[string]any, node *Node, ec *ExecutionContext) (map[string]any, error)

// ValidatorFunc checks a port-value map. Returning false, or an error,
// fails the node with a validation error.
type ValidatorFunc func(values map[string]any, node *Node, ec *ExecutionContext) (bool, error)

// NodeExecutor executes single nodes end-to-end through the per-type
// interceptor chain: input transforms, input validators, executor, output
// validators, output transforms. It owns the type registry and is stateless
// across calls.
type NodeExecutor interface {
	// RegisterExecutor installs the executor for a node type. Registering
	// the same type again replaces the prior executor (last wins).
	RegisterExecutor(nodeType string, fn ExecutorFunc)

	RegisterInputTransform(nodeType string, fn TransformFunc)
	RegisterOutputTransform(nodeType string, fn TransformFunc)
	RegisterInputValidator(nodeType string, fn ValidatorFunc)
	RegisterOutputValidator(nodeType string, fn ValidatorFunc)

	// Execute runs one node. It emits node:execution:started before the
	// interceptor chain and node:execution:completed / failed after it,
	// and returns the transformed outputs.
	Execute(ctx context.Context, node *Node, inputs map[string]any, ec *ExecutionContext) (map[string]any, error)
}

// Engine validates workflows, derives execution order, and drives runs to
// completion under sequential or level-parallel scheduling.
type Engine interface {
	// Execute runs the workflow to settlement. The returned result carries
	// the terminal status, exit-node outputs, and run stats; Err mirrors
	// the returned error on failure. At most one run per workflow id may
	// be active at a time.
	Execute(ctx context.Context, wf *Workflow, opts RunOptions) (*RunResult, error)

	// Pause blocks further scheduling of the given run until Resume.
	// Nodes already in flight run to completion.
	Pause(workflowID string) error

	// Resume unblocks a paused run.
	Resume(workflowID string) error

	// Stop cancels the run; it settles as RunCancelled.
	Stop(workflowID string) error

	// Status reports the current run status. A workflow with no active
	// run reports RunCompleted.
	Status(workflowID string) RunStatus
}

// Rule is a named node-validation predicate.
type Rule struct {
	ID        string
	Name      string
	Predicate func(node *Node) bool
	Message   string
}

// RuleError reports one failed rule.
type RuleError struct {
	RuleID  string
	Message string
}

// NodeValidation is the outcome of validating one node.
type NodeValidation struct {
	OK     bool
	Errors []RuleError
}

// WorkflowValidation aggregates node and connection validation over a whole
// workflow.
type WorkflowValidation struct {
	OK               bool
	NodeErrors       map[string][]RuleError
	ConnectionErrors []*ConnectionError
}

// Validator carries the rule registry and validates nodes, connections, and
// whole workflows against the structural invariants of the graph model.
type Validator interface {
	AddRule(r Rule) error
	Rule(id string) (Rule, bool)
	RemoveRule(id string) bool

	// ValidateNode runs every rule, or only the named subset when ruleIDs
	// is non-empty.
	ValidateNode(node *Node, ruleIDs ...string) NodeValidation

	// ValidateConnection checks that the connection's endpoints exist,
	// point the right way, and carry equal data-type tags.
	ValidateConnection(wf *Workflow, conn *Connection) *ConnectionError

	ValidateWorkflow(wf *Workflow) WorkflowValidation
}
