package fluxgraph

import (
	"context"
	"log/slog"
	"sync"
)

// Runtime bundles a bus, a node executor registry, a validator, a
// propagator, and an engine wired together for a single process.
//
// Typical usage:
//
//	rt := fluxgraph.NewRuntime()
//	rt.Executor.RegisterExecutor("const", constExecutor)
//
//	wf := fluxgraph.NewWorkflow("sum", "linear sum"). ... .Build()
//	result, err := rt.Execute(ctx, wf, fluxgraph.RunOptions{})
//
// Every Runtime owns its own bus, so concurrent runtimes (and tests) are
// fully isolated from one another.
type Runtime struct {
	Bus        EventBus
	Executor   NodeExecutor
	Validator  Validator
	Propagator Propagator
	Engine     Engine

	mu       sync.Mutex
	recorder *HistoryRecorder
}

// NewRuntime constructs a Runtime with default wiring and slog.Default()
// logging.
func NewRuntime() *Runtime {
	return NewRuntimeWithLogger(nil)
}

// NewRuntimeWithLogger constructs a Runtime whose bus and engine log to the
// given logger. A nil logger falls back to slog.Default().
func NewRuntimeWithLogger(logger *slog.Logger) *Runtime {
	bus := NewEventBus(logger)
	executor := NewNodeExecutor(bus)
	validator := NewValidator()
	eng := NewEngine(EngineConfig{
		Bus:       bus,
		Executor:  executor,
		Validator: validator,
		Logger:    logger,
	})

	return &Runtime{
		Bus:        bus,
		Executor:   executor,
		Validator:  validator,
		Propagator: NewPropagator(bus),
		Engine:     eng,
	}
}

// Execute runs a workflow on the runtime's engine.
func (r *Runtime) Execute(ctx context.Context, wf *Workflow, opts RunOptions) (*RunResult, error) {
	return r.Engine.Execute(ctx, wf, opts)
}

// EnableHistory journals the runtime's lifecycle events into store. Calling
// it again replaces the previous recorder.
func (r *Runtime) EnableHistory(store HistoryStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recorder != nil {
		r.recorder.Close()
	}
	r.recorder = NewHistoryRecorder(r.Bus, store)
}

// Close detaches the history recorder, if any, and drops all bus
// subscriptions.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.recorder != nil {
		r.recorder.Close()
		r.recorder = nil
	}
	r.mu.Unlock()
	r.Bus.ClearAllSubscriptions()
}
