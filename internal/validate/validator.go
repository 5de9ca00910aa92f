// Package validate carries the node-rule registry and checks workflows
// against the structural invariants of the graph model.
package validate

import (
	"fmt"
	"sync"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// Built-in rule ids.
const (
	RuleNonEmptyID   = "node.id.non-empty"
	RuleNonEmptyName = "node.name.non-empty"
)

// Validator is the default api.Validator implementation. Rules are
// read-mostly; mutating the registry while runs are active should be fenced
// by the caller.
type Validator struct {
	mu    sync.RWMutex
	rules []api.Rule
}

var _ api.Validator = (*Validator)(nil)

// New creates a Validator seeded with the built-in rules: non-empty node id
// and non-empty node name.
func New() *Validator {
	v := &Validator{}
	v.rules = append(v.rules,
		api.Rule{
			ID:        RuleNonEmptyID,
			Name:      "node id must not be empty",
			Predicate: func(n *api.Node) bool { return n.ID != "" },
			Message:   "node id is empty",
		},
		api.Rule{
			ID:        RuleNonEmptyName,
			Name:      "node name must not be empty",
			Predicate: func(n *api.Node) bool { return n.Name != "" },
			Message:   "node name is empty",
		},
	)
	return v
}

func (v *Validator) AddRule(r api.Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Predicate == nil {
		return fmt.Errorf("rule %q has no predicate", r.ID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, existing := range v.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("rule already registered: %s", r.ID)
		}
	}
	v.rules = append(v.rules, r)
	return nil
}

func (v *Validator) Rule(id string) (api.Rule, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, r := range v.rules {
		if r.ID == id {
			return r, true
		}
	}
	return api.Rule{}, false
}

func (v *Validator) RemoveRule(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, r := range v.rules {
		if r.ID == id {
			v.rules = append(v.rules[:i], v.rules[i+1:]...)
			return true
		}
	}
	return false
}

// ValidateNode runs every registered rule against the node, or only the
// named subset when ruleIDs is non-empty.
func (v *Validator) ValidateNode(node *api.Node, ruleIDs ...string) api.NodeValidation {
	v.mu.RLock()
	rules := make([]api.Rule, 0, len(v.rules))
	if len(ruleIDs) == 0 {
		rules = append(rules, v.rules...)
	} else {
		for _, id := range ruleIDs {
			for _, r := range v.rules {
				if r.ID == id {
					rules = append(rules, r)
					break
				}
			}
		}
	}
	v.mu.RUnlock()

	result := api.NodeValidation{OK: true}
	for _, r := range rules {
		if !r.Predicate(node) {
			result.OK = false
			result.Errors = append(result.Errors, api.RuleError{
				RuleID:  r.ID,
				Message: r.Message,
			})
		}
	}
	return result
}

// ValidateConnection checks that both endpoints exist, that the source port
// faces out and the target port faces in, and that their data-type tags are
// exactly equal. No subtype relation or conversion is applied.
func (v *Validator) ValidateConnection(wf *api.Workflow, conn *api.Connection) *api.ConnectionError {
	srcNode, ok := wf.NodeByID(conn.SourceNodeID)
	if !ok {
		return &api.ConnectionError{
			ConnectionID: conn.ID,
			Reason:       fmt.Sprintf("source node %q not in workflow", conn.SourceNodeID),
		}
	}
	tgtNode, ok := wf.NodeByID(conn.TargetNodeID)
	if !ok {
		return &api.ConnectionError{
			ConnectionID: conn.ID,
			Reason:       fmt.Sprintf("target node %q not in workflow", conn.TargetNodeID),
		}
	}

	srcPort, ok := srcNode.OutputPort(conn.SourcePortID)
	if !ok {
		return &api.ConnectionError{
			ConnectionID: conn.ID,
			Reason:       fmt.Sprintf("source port %q not an output of node %q", conn.SourcePortID, srcNode.ID),
		}
	}
	tgtPort, ok := tgtNode.InputPort(conn.TargetPortID)
	if !ok {
		return &api.ConnectionError{
			ConnectionID: conn.ID,
			Reason:       fmt.Sprintf("target port %q not an input of node %q", conn.TargetPortID, tgtNode.ID),
		}
	}

	if srcPort.DataType != tgtPort.DataType {
		return &api.ConnectionError{
			ConnectionID: conn.ID,
			Reason: fmt.Sprintf("data type mismatch: %s outputs %q, %s expects %q",
				api.MakePortRef(srcNode.ID, srcPort.ID), srcPort.DataType,
				api.MakePortRef(tgtNode.ID, tgtPort.ID), tgtPort.DataType),
		}
	}
	return nil
}

// ValidateWorkflow aggregates node validation, connection validation, and
// the graph-wide invariants: at most one inbound connection per target port
// and no duplicate connection 4-tuples.
func (v *Validator) ValidateWorkflow(wf *api.Workflow) api.WorkflowValidation {
	result := api.WorkflowValidation{
		OK:         true,
		NodeErrors: make(map[string][]api.RuleError),
	}

	for _, n := range wf.Nodes {
		nv := v.ValidateNode(n)
		if !nv.OK {
			result.OK = false
			result.NodeErrors[n.ID] = nv.Errors
		}
	}

	seenTuple := make(map[[4]string]bool)
	seenTarget := make(map[string]bool)
	for _, c := range wf.Connections {
		if cerr := v.ValidateConnection(wf, c); cerr != nil {
			result.OK = false
			result.ConnectionErrors = append(result.ConnectionErrors, cerr)
			continue
		}

		tuple := [4]string{c.SourceNodeID, c.SourcePortID, c.TargetNodeID, c.TargetPortID}
		if seenTuple[tuple] {
			result.OK = false
			result.ConnectionErrors = append(result.ConnectionErrors, &api.ConnectionError{
				ConnectionID: c.ID,
				Reason: fmt.Sprintf("duplicate connection %s -> %s",
					api.MakePortRef(c.SourceNodeID, c.SourcePortID),
					api.MakePortRef(c.TargetNodeID, c.TargetPortID)),
			})
			continue
		}
		seenTuple[tuple] = true

		target := api.MakePortRef(c.TargetNodeID, c.TargetPortID)
		if seenTarget[target] {
			result.OK = false
			result.ConnectionErrors = append(result.ConnectionErrors, &api.ConnectionError{
				ConnectionID: c.ID,
				Reason:       fmt.Sprintf("input port %s already has an inbound connection", target),
			})
			continue
		}
		seenTarget[target] = true
	}

	return result
}
