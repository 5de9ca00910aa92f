// Package nodeexec executes single nodes through their per-type
// interceptor chains and emits node lifecycle events.
package nodeexec

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// registration holds the five per-type slots: one executor plus the four
// interceptor chains.
type registration struct {
	executor         api.ExecutorFunc
	inputTransforms  []api.TransformFunc
	outputTransforms []api.TransformFunc
	inputValidators  []api.ValidatorFunc
	outputValidators []api.ValidatorFunc
}

// Executor is the default api.NodeExecutor implementation. It owns the
// type registry and is stateless across calls; all per-run state lives in
// the execution context.
type Executor struct {
	bus api.EventBus

	mu    sync.RWMutex
	types map[string]*registration
}

var _ api.NodeExecutor = (*Executor)(nil)

// New creates an Executor that emits node lifecycle events on bus.
func New(bus api.EventBus) *Executor {
	return &Executor{
		bus:   bus,
		types: make(map[string]*registration),
	}
}

func (e *Executor) reg(nodeType string) *registration {
	r, ok := e.types[nodeType]
	if !ok {
		r = &registration{}
		e.types[nodeType] = r
	}
	return r
}

// RegisterExecutor installs the executor for a node type; registering the
// same type again replaces the prior executor.
func (e *Executor) RegisterExecutor(nodeType string, fn api.ExecutorFunc) {
	if fn == nil {
		panic(fmt.Sprintf("nodeexec: nil executor for type %q", nodeType))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg(nodeType).executor = fn
}

func (e *Executor) RegisterInputTransform(nodeType string, fn api.TransformFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reg(nodeType)
	r.inputTransforms = append(r.inputTransforms, fn)
}

func (e *Executor) RegisterOutputTransform(nodeType string, fn api.TransformFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reg(nodeType)
	r.outputTransforms = append(r.outputTransforms, fn)
}

func (e *Executor) RegisterInputValidator(nodeType string, fn api.ValidatorFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reg(nodeType)
	r.inputValidators = append(r.inputValidators, fn)
}

func (e *Executor) RegisterOutputValidator(nodeType string, fn api.ValidatorFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reg(nodeType)
	r.outputValidators = append(r.outputValidators, fn)
}

// snapshot copies the registration for a type so a call in flight is not
// affected by concurrent re-registration.
func (e *Executor) snapshot(nodeType string) (registration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.types[nodeType]
	if !ok || r.executor == nil {
		return registration{}, false
	}
	return registration{
		executor:         r.executor,
		inputTransforms:  append([]api.TransformFunc(nil), r.inputTransforms...),
		outputTransforms: append([]api.TransformFunc(nil), r.outputTransforms...),
		inputValidators:  append([]api.ValidatorFunc(nil), r.inputValidators...),
		outputValidators: append([]api.ValidatorFunc(nil), r.outputValidators...),
	}, true
}

// Execute runs one node end-to-end: input transforms, input validators, the
// executor, output validators, output transforms. node:execution:started is
// emitted before the chain; node:execution:completed or failed after it.
// Failures are returned wrapped in *api.NodeExecutionError.
func (e *Executor) Execute(ctx context.Context, node *api.Node, inputs map[string]any, ec *api.ExecutionContext) (map[string]any, error) {
	// Missing registration fails fast, before any lifecycle event.
	reg, ok := e.snapshot(node.Type)
	if !ok {
		return nil, &api.NodeExecutionError{
			NodeID:   node.ID,
			NodeType: node.Type,
			Err:      fmt.Errorf("%w: %q", api.ErrNoExecutor, node.Type),
		}
	}

	_ = e.bus.Publish(ctx, api.EventNodeStarted, map[string]any{
		"workflowId": ec.WorkflowID,
		"nodeId":     node.ID,
		"nodeType":   node.Type,
		"inputs":     inputs,
	})

	outputs, err := e.run(ctx, reg, node, inputs, ec)
	if err != nil {
		nerr := &api.NodeExecutionError{NodeID: node.ID, NodeType: node.Type, Err: err}
		e.emitFailed(ctx, node, ec, nerr)
		return nil, nerr
	}

	_ = e.bus.Publish(ctx, api.EventNodeCompleted, map[string]any{
		"workflowId": ec.WorkflowID,
		"nodeId":     node.ID,
		"nodeType":   node.Type,
		"outputs":    outputs,
	})
	return outputs, nil
}

// run drives the interceptor chain with panic containment around all user
// code.
func (e *Executor) run(ctx context.Context, reg registration, node *api.Node, inputs map[string]any, ec *api.ExecutionContext) (outputs map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = &api.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	for _, tf := range reg.inputTransforms {
		inputs, err = tf(inputs, node, ec)
		if err != nil {
			return nil, fmt.Errorf("input transform: %w", err)
		}
	}

	for _, vf := range reg.inputValidators {
		ok, verr := vf(inputs, node, ec)
		if verr != nil || !ok {
			return nil, &api.ValidationFailure{NodeID: node.ID, Stage: "input", Err: verr}
		}
	}

	outputs, err = reg.executor(ctx, node, inputs, ec)
	if err != nil {
		return nil, err
	}

	for _, vf := range reg.outputValidators {
		ok, verr := vf(outputs, node, ec)
		if verr != nil || !ok {
			return nil, &api.ValidationFailure{NodeID: node.ID, Stage: "output", Err: verr}
		}
	}

	for _, tf := range reg.outputTransforms {
		outputs, err = tf(outputs, node, ec)
		if err != nil {
			return nil, fmt.Errorf("output transform: %w", err)
		}
	}

	return outputs, nil
}

func (e *Executor) emitFailed(ctx context.Context, node *api.Node, ec *api.ExecutionContext, err error) {
	_ = e.bus.Publish(ctx, api.EventNodeFailed, map[string]any{
		"workflowId": ec.WorkflowID,
		"nodeId":     node.ID,
		"nodeType":   node.Type,
		"error":      err,
	})
}
