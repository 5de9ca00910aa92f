// Package engine coordinates workflow runs: validation, topological
// analysis, sequential and level-parallel scheduling, and run control.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxgraph/fluxgraph/internal/graph"
	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// Config describes how to construct an Engine. Bus and Executor are
// required; a nil Logger falls back to slog.Default(). Validator is
// optional: when it is nil, Execute skips rule validation and only the
// topological analysis (cycle detection) checks the graph.
type Config struct {
	Bus       api.EventBus
	Executor  api.NodeExecutor
	Validator api.Validator
	Logger    *slog.Logger
}

// runHandle is the per-run bookkeeping the engine owns, keyed by workflow
// id. It is inserted at run start and removed on settlement; absence means
// the workflow has no active run.
type runHandle struct {
	workflowID string
	context    *api.ExecutionContext
	cancel     context.CancelCauseFunc

	mu     sync.Mutex
	status api.RunStatus

	// paused is non-nil while the run is paused; Resume closes it to
	// release the scheduler.
	paused chan struct{}
}

func (h *runHandle) setStatus(s api.RunStatus) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
	h.context.SetStatus(s)
}

func (h *runHandle) getStatus() api.RunStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Engine is the default api.Engine implementation.
type Engine struct {
	bus       api.EventBus
	executor  api.NodeExecutor
	validator api.Validator
	logger    *slog.Logger

	mu   sync.Mutex
	runs map[string]*runHandle
}

var _ api.Engine = (*Engine)(nil)

// New creates an Engine from the given configuration.
func New(cfg Config) *Engine {
	if cfg.Bus == nil {
		panic("engine: Config.Bus is required")
	}
	if cfg.Executor == nil {
		panic("engine: Config.Executor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		bus:       cfg.Bus,
		executor:  cfg.Executor,
		validator: cfg.Validator,
		logger:    logger,
		runs:      make(map[string]*runHandle),
	}
}

// Execute runs the workflow to settlement. Structural problems (validation
// failures, cycles) fail before workflow:started is emitted; all later
// failures settle through the single workflow:failed emission.
func (e *Engine) Execute(ctx context.Context, wf *api.Workflow, opts api.RunOptions) (*api.RunResult, error) {
	if wf == nil || wf.ID == "" {
		return nil, fmt.Errorf("workflow with a non-empty id is required")
	}

	if e.validator != nil {
		if vr := e.validator.ValidateWorkflow(wf); !vr.OK {
			return nil, &api.ValidationError{Result: vr}
		}
	}

	topo, err := graph.Analyze(wf)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	logger := opts.Logger
	if logger == nil {
		logger = e.logger
	}
	ec := api.NewExecutionContext(wf.ID, opts.Variables, logger)

	h := &runHandle{
		workflowID: wf.ID,
		context:    ec,
		cancel:     cancel,
		status:     api.RunPending,
	}
	e.mu.Lock()
	if _, exists := e.runs[wf.ID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", api.ErrRunActive, wf.ID)
	}
	e.runs[wf.ID] = h
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.runs, wf.ID)
		e.mu.Unlock()
	}()

	if opts.Timeout > 0 {
		timer := time.AfterFunc(opts.Timeout, func() {
			cancel(api.ErrRunTimeout)
		})
		defer timer.Stop()
	}

	h.setStatus(api.RunRunning)
	_ = e.bus.Publish(runCtx, api.EventWorkflowStarted, map[string]any{
		"workflowId": wf.ID,
	})

	for _, entryID := range wf.EntryPoints {
		ec.SeedInitialInputs(entryID, opts.Inputs)
	}

	var executed atomic.Int64
	var runErr error
	if opts.Parallel {
		runErr = e.runLevels(runCtx, wf, topo, ec, h, &executed)
	} else {
		runErr = e.runSequential(runCtx, wf, topo, ec, h, &executed)
	}

	endTime := time.Now()
	stats := api.RunStats{
		StartTime:     ec.StartTime,
		EndTime:       endTime,
		ExecutionTime: endTime.Sub(ec.StartTime),
		NodesExecuted: int(executed.Load()),
	}

	if runErr != nil {
		status := api.RunFailed
		if errors.Is(runErr, api.ErrRunCancelled) || errors.Is(runErr, context.Canceled) {
			status = api.RunCancelled
		}
		h.setStatus(status)
		_ = e.bus.Publish(context.WithoutCancel(runCtx), api.EventWorkflowFailed, map[string]any{
			"workflowId": wf.ID,
			"error":      runErr,
		})
		return &api.RunResult{
			WorkflowID: wf.ID,
			Status:     status,
			Stats:      stats,
			Err:        runErr,
		}, runErr
	}

	outputs := make(map[string]map[string]any, len(wf.ExitPoints))
	for _, exitID := range wf.ExitPoints {
		if out, ok := ec.NodeOutputs(exitID); ok {
			outputs[exitID] = out
		}
	}

	h.setStatus(api.RunCompleted)
	_ = e.bus.Publish(runCtx, api.EventWorkflowCompleted, map[string]any{
		"workflowId": wf.ID,
		"outputs":    outputs,
	})

	return &api.RunResult{
		WorkflowID: wf.ID,
		Status:     api.RunCompleted,
		Outputs:    outputs,
		Stats:      stats,
	}, nil
}

// runSequential iterates the topological order one node at a time.
func (e *Engine) runSequential(ctx context.Context, wf *api.Workflow, topo *graph.Topology, ec *api.ExecutionContext, h *runHandle, executed *atomic.Int64) error {
	for _, nodeID := range topo.Order {
		if err := e.checkpoint(ctx, h); err != nil {
			return err
		}
		node, ok := wf.NodeByID(nodeID)
		if !ok {
			return fmt.Errorf("node %q not in workflow %q", nodeID, wf.ID)
		}
		if err := e.runNode(ctx, wf, node, ec, h); err != nil {
			return err
		}
		executed.Add(1)
	}
	return nil
}

// runLevels executes each level as a concurrency cohort: every node in a
// level starts only after the previous level has fully joined, so a node's
// dependencies are always complete before it begins.
func (e *Engine) runLevels(ctx context.Context, wf *api.Workflow, topo *graph.Topology, ec *api.ExecutionContext, h *runHandle, executed *atomic.Int64) error {
	for _, level := range topo.Levels {
		if err := e.checkpoint(ctx, h); err != nil {
			return err
		}

		var (
			wg       sync.WaitGroup
			errMu    sync.Mutex
			firstErr error
		)
		for _, nodeID := range level {
			node, ok := wf.NodeByID(nodeID)
			if !ok {
				return fmt.Errorf("node %q not in workflow %q", nodeID, wf.ID)
			}
			wg.Add(1)
			go func(node *api.Node) {
				defer wg.Done()
				if ctx.Err() != nil {
					return
				}
				if err := e.runNode(ctx, wf, node, ec, h); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					return
				}
				executed.Add(1)
			}(node)
		}
		wg.Wait()

		if firstErr != nil {
			return firstErr
		}
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
	}
	return nil
}

// runNode gathers a node's inputs, drives it through the node executor, and
// stores its outputs. On failure the run's cancellation token fires so no
// further nodes begin.
func (e *Engine) runNode(ctx context.Context, wf *api.Workflow, node *api.Node, ec *api.ExecutionContext, h *runHandle) error {
	inputs := e.gatherInputs(ctx, wf, node, ec)

	ec.SetNodeStatus(node.ID, api.NodeProcessing)
	outputs, err := e.executor.Execute(ctx, node, inputs, ec)
	if err != nil {
		ec.SetNodeStatus(node.ID, api.NodeFailed)
		h.cancel(err)
		return err
	}

	ec.SetNodeOutputs(node.ID, outputs)
	ec.SetNodeStatus(node.ID, api.NodeCompleted)
	return nil
}

// gatherInputs threads data across the node's inbound connections: each
// connection reads the source node's recorded output and stores it under
// the target port. Entry-node seed inputs are merged in first so
// connection-sourced values win on conflict, and port defaults fill any
// input still missing.
func (e *Engine) gatherInputs(ctx context.Context, wf *api.Workflow, node *api.Node, ec *api.ExecutionContext) map[string]any {
	inputs := make(map[string]any)

	if wf.IsEntryPoint(node.ID) {
		if seed, ok := ec.InitialInputs(node.ID); ok {
			for k, v := range seed {
				inputs[k] = v
			}
		}
	}

	conns := wf.InboundConnections(node.ID)
	if len(conns) > 0 {
		_ = e.bus.Publish(ctx, api.EventDataFlowStarted, map[string]any{
			"workflowId": wf.ID,
			"nodeId":     node.ID,
		})
	}

	var missing []string
	for _, c := range conns {
		outs, ok := ec.NodeOutputs(c.SourceNodeID)
		if !ok {
			missing = append(missing, api.MakePortRef(c.SourceNodeID, c.SourcePortID))
			continue
		}
		v, ok := outs[c.SourcePortID]
		if !ok {
			missing = append(missing, api.MakePortRef(c.SourceNodeID, c.SourcePortID))
			continue
		}
		inputs[c.TargetPortID] = v
	}

	for i := range node.Inputs {
		p := &node.Inputs[i]
		if _, ok := inputs[p.ID]; !ok && p.Default != nil {
			inputs[p.ID] = p.Default
		}
	}

	if len(conns) > 0 {
		if len(missing) > 0 {
			_ = e.bus.Publish(ctx, api.EventDataFlowFailed, map[string]any{
				"workflowId":   wf.ID,
				"nodeId":       node.ID,
				"missingPorts": missing,
			})
		} else {
			_ = e.bus.Publish(ctx, api.EventDataFlowCompleted, map[string]any{
				"workflowId": wf.ID,
				"nodeId":     node.ID,
			})
		}
	}

	return inputs
}

// checkpoint observes cancellation and the pause gate between scheduling
// steps. Paused runs block here until Resume or cancellation.
func (e *Engine) checkpoint(ctx context.Context, h *runHandle) error {
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		default:
		}

		h.mu.Lock()
		gate := h.paused
		h.mu.Unlock()
		if gate == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-gate:
		}
	}
}

func (e *Engine) handle(workflowID string) (*runHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.runs[workflowID]
	return h, ok
}

// Pause gates the scheduler of an active run: nodes already in flight run
// to completion, but no further node or level starts until Resume.
func (e *Engine) Pause(workflowID string) error {
	h, ok := e.handle(workflowID)
	if !ok {
		return fmt.Errorf("%w: no active run for %q", api.ErrUnknownWorkflow, workflowID)
	}

	h.mu.Lock()
	if h.status != api.RunRunning {
		status := h.status
		h.mu.Unlock()
		return fmt.Errorf("cannot pause run in status %s", status)
	}
	h.status = api.RunPaused
	h.paused = make(chan struct{})
	h.mu.Unlock()
	h.context.SetStatus(api.RunPaused)

	_ = e.bus.Publish(context.Background(), api.EventWorkflowPaused, map[string]any{
		"workflowId": workflowID,
	})
	return nil
}

// Resume releases a paused run.
func (e *Engine) Resume(workflowID string) error {
	h, ok := e.handle(workflowID)
	if !ok {
		return fmt.Errorf("%w: no active run for %q", api.ErrUnknownWorkflow, workflowID)
	}

	h.mu.Lock()
	if h.status != api.RunPaused {
		status := h.status
		h.mu.Unlock()
		return fmt.Errorf("cannot resume run in status %s", status)
	}
	h.status = api.RunRunning
	close(h.paused)
	h.paused = nil
	h.mu.Unlock()
	h.context.SetStatus(api.RunRunning)

	_ = e.bus.Publish(context.Background(), api.EventWorkflowResumed, map[string]any{
		"workflowId": workflowID,
	})
	return nil
}

// Stop cancels the run's token. Nodes already started run to completion;
// the run settles as RunCancelled through the normal settlement path, which
// emits workflow:failed exactly once.
func (e *Engine) Stop(workflowID string) error {
	h, ok := e.handle(workflowID)
	if !ok {
		return fmt.Errorf("%w: no active run for %q", api.ErrUnknownWorkflow, workflowID)
	}
	h.cancel(api.ErrRunCancelled)
	return nil
}

// Status reports the status of the workflow's active run. A workflow with
// no run handle reports RunCompleted: absence means any past run settled.
func (e *Engine) Status(workflowID string) api.RunStatus {
	h, ok := e.handle(workflowID)
	if !ok {
		return api.RunCompleted
	}
	return h.getStatus()
}
