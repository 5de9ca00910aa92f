// Package propagate routes events from a source node along its workflow's
// outgoing connections to per-node addressable event types.
package propagate

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// Propagator is the default api.Propagator implementation. It holds the
// workflows it can route over and an ordered list of filters combined with
// AND semantics.
type Propagator struct {
	bus api.EventBus

	mu        sync.RWMutex
	workflows map[string]*api.Workflow
	filters   map[int]api.FilterFunc
	filterIDs []int
	nextID    int
}

var _ api.Propagator = (*Propagator)(nil)

// New creates a Propagator publishing on bus.
func New(bus api.EventBus) *Propagator {
	return &Propagator{
		bus:       bus,
		workflows: make(map[string]*api.Workflow),
		filters:   make(map[int]api.FilterFunc),
	}
}

func (p *Propagator) RegisterWorkflow(wf *api.Workflow) error {
	if wf == nil || wf.ID == "" {
		return fmt.Errorf("workflow with a non-empty id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workflows[wf.ID] = wf
	return nil
}

func (p *Propagator) UnregisterWorkflow(workflowID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.workflows, workflowID)
}

func (p *Propagator) HasWorkflow(workflowID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.workflows[workflowID]
	return ok
}

// AddFilter registers a filter and returns the id to remove it with.
// Filters run in registration order; all must admit an edge's payload.
func (p *Propagator) AddFilter(f api.FilterFunc) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.filters[p.nextID] = f
	p.filterIDs = append(p.filterIDs, p.nextID)
	return p.nextID
}

func (p *Propagator) RemoveFilter(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.filters[id]; !ok {
		return false
	}
	delete(p.filters, id)
	for i, fid := range p.filterIDs {
		if fid == id {
			p.filterIDs = append(p.filterIDs[:i], p.filterIDs[i+1:]...)
			break
		}
	}
	return true
}

func (p *Propagator) ClearFilters() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = make(map[int]api.FilterFunc)
	p.filterIDs = nil
}

// Propagate publishes eventType from sourceNodeID along every outgoing
// connection under api.PropagatedEventType(target, eventType). Each edge's
// payload is the original payload plus "sourceNodeId", rewritten by
// opts.Transform when supplied, and gated by the registered filters. With
// opts.PropagateChain the walk recurses from each target using the
// transformed payload; a per-call visited set guarantees each node receives
// the event at most once, so the walk terminates on cyclic graphs.
func (p *Propagator) Propagate(ctx context.Context, workflowID, sourceNodeID, eventType string, payload map[string]any, opts api.PropagateOptions) error {
	p.mu.RLock()
	wf, ok := p.workflows[workflowID]
	filters := make([]api.FilterFunc, 0, len(p.filterIDs))
	for _, id := range p.filterIDs {
		filters = append(filters, p.filters[id])
	}
	p.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", api.ErrUnknownWorkflow, workflowID)
	}

	visited := map[string]bool{sourceNodeID: true}
	return p.walk(ctx, wf, filters, sourceNodeID, eventType, payload, opts, visited)
}

func (p *Propagator) walk(ctx context.Context, wf *api.Workflow, filters []api.FilterFunc, sourceNodeID, eventType string, payload map[string]any, opts api.PropagateOptions, visited map[string]bool) error {
	for _, conn := range wf.OutboundConnections(sourceNodeID) {
		target := conn.TargetNodeID
		if visited[target] {
			continue
		}

		edgePayload := make(map[string]any, len(payload)+1)
		for k, v := range payload {
			edgePayload[k] = v
		}
		edgePayload["sourceNodeId"] = sourceNodeID
		if opts.Transform != nil {
			edgePayload = opts.Transform(edgePayload, sourceNodeID, target)
		}

		if !admit(filters, eventType, edgePayload) {
			continue
		}

		visited[target] = true
		if err := p.bus.Publish(ctx, api.PropagatedEventType(target, eventType), edgePayload); err != nil {
			return err
		}

		if opts.PropagateChain {
			if err := p.walk(ctx, wf, filters, target, eventType, edgePayload, opts, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func admit(filters []api.FilterFunc, eventType string, payload map[string]any) bool {
	for _, f := range filters {
		if !f(eventType, payload) {
			return false
		}
	}
	return true
}
