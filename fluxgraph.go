package fluxgraph

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/fluxgraph/fluxgraph/internal/engine"
	"github.com/fluxgraph/fluxgraph/internal/eventbus"
	"github.com/fluxgraph/fluxgraph/internal/history"
	"github.com/fluxgraph/fluxgraph/internal/nodeexec"
	"github.com/fluxgraph/fluxgraph/internal/propagate"
	"github.com/fluxgraph/fluxgraph/internal/validate"
	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Workflow         = api.Workflow
	Node             = api.Node
	Port             = api.Port
	Connection       = api.Connection
	PortDirection    = api.PortDirection
	NodeStatus       = api.NodeStatus
	RunStatus        = api.RunStatus
	RunOptions       = api.RunOptions
	RunResult        = api.RunResult
	RunStats         = api.RunStats
	ExecutionContext = api.ExecutionContext

	Engine       = api.Engine
	NodeExecutor = api.NodeExecutor
	EventBus     = api.EventBus
	Propagator   = api.Propagator
	Validator    = api.Validator

	ExecutorFunc  = api.ExecutorFunc
	TransformFunc = api.TransformFunc
	ValidatorFunc = api.ValidatorFunc

	Event                = api.Event
	HandlerFunc          = api.HandlerFunc
	Subscription         = api.Subscription
	SubscribeOptions     = api.SubscribeOptions
	FilterFunc           = api.FilterFunc
	TransformPayloadFunc = api.TransformPayloadFunc
	PropagateOptions     = api.PropagateOptions

	Rule               = api.Rule
	RuleError          = api.RuleError
	NodeValidation     = api.NodeValidation
	WorkflowValidation = api.WorkflowValidation

	HistoryEvent = api.HistoryEvent
	HistoryStore = api.HistoryStore
)

// Re-export status values for convenience.

const (
	DirectionIn  = api.DirectionIn
	DirectionOut = api.DirectionOut

	NodeIdle       = api.NodeIdle
	NodeProcessing = api.NodeProcessing
	NodeCompleted  = api.NodeCompleted
	NodeFailed     = api.NodeFailed
	NodeCancelled  = api.NodeCancelled
	NodeWaiting    = api.NodeWaiting

	RunPending   = api.RunPending
	RunRunning   = api.RunRunning
	RunPaused    = api.RunPaused
	RunCompleted = api.RunCompleted
	RunFailed    = api.RunFailed
	RunCancelled = api.RunCancelled
)

// Re-export the stable event-name catalog.

const (
	EventWorkflowStarted   = api.EventWorkflowStarted
	EventWorkflowCompleted = api.EventWorkflowCompleted
	EventWorkflowFailed    = api.EventWorkflowFailed
	EventWorkflowPaused    = api.EventWorkflowPaused
	EventWorkflowResumed   = api.EventWorkflowResumed
	EventNodeStarted       = api.EventNodeStarted
	EventNodeCompleted     = api.EventNodeCompleted
	EventNodeFailed        = api.EventNodeFailed
	EventDataFlowStarted   = api.EventDataFlowStarted
	EventDataFlowCompleted = api.EventDataFlowCompleted
	EventDataFlowFailed    = api.EventDataFlowFailed
	EventSystemError       = api.EventSystemError
	EventSystemWarning     = api.EventSystemWarning
	EventSystemInfo        = api.EventSystemInfo
)

// PropagatedEventType derives the per-node address the propagator
// publishes under.
func PropagatedEventType(targetNodeID, eventType string) string {
	return api.PropagatedEventType(targetNodeID, eventType)
}

// EngineConfig describes how to construct an Engine; see NewEngine.
type EngineConfig = engine.Config

// Component constructors
// These wrap the internal packages so external callers never need to
// import internal paths. There is no package-level default bus: every bus
// is constructed explicitly, and components that publish take theirs by
// injection, which keeps runs and tests isolated.

// NewEventBus returns an empty event bus. If logger is nil, slog.Default()
// is used for subscriber-failure reporting.
func NewEventBus(logger *slog.Logger) EventBus {
	return eventbus.New(logger)
}

// NewNodeExecutor returns a node executor emitting lifecycle events on bus.
func NewNodeExecutor(bus EventBus) NodeExecutor {
	return nodeexec.New(bus)
}

// NewPropagator returns an event propagator publishing on bus.
func NewPropagator(bus EventBus) Propagator {
	return propagate.New(bus)
}

// NewValidator returns a validator seeded with the built-in node rules.
func NewValidator() Validator {
	return validate.New()
}

// NewEngine returns a workflow engine using the given collaborators.
func NewEngine(cfg EngineConfig) Engine {
	return engine.New(cfg)
}

// NewMemoryHistoryStore returns an in-memory run journal store.
func NewMemoryHistoryStore() HistoryStore {
	return history.NewMemoryStore()
}

// NewSQLiteHistoryStore returns a run journal store backed by the given
// SQLite database:
//
//	db, _ := sql.Open("sqlite", "file:runs.db?_journal=WAL")
//	store, err := fluxgraph.NewSQLiteHistoryStore(db)
func NewSQLiteHistoryStore(db *sql.DB) (HistoryStore, error) {
	return history.NewSQLiteStore(db)
}

// HistoryRecorder journals bus lifecycle events into a HistoryStore.
type HistoryRecorder struct {
	inner *history.Recorder
}

// NewHistoryRecorder attaches a recorder to the bus. Call Close to detach.
func NewHistoryRecorder(bus EventBus, store HistoryStore) *HistoryRecorder {
	return &HistoryRecorder{inner: history.NewRecorder(bus, store)}
}

// Close detaches the recorder from its bus.
func (r *HistoryRecorder) Close() {
	r.inner.Close()
}

// Convenience helpers that just forward to the underlying Engine.

// Execute runs a workflow to settlement on the given engine.
func Execute(ctx context.Context, eng Engine, wf *Workflow, opts RunOptions) (*RunResult, error) {
	return eng.Execute(ctx, wf, opts)
}

// Stop cancels the active run of the given workflow.
func Stop(eng Engine, workflowID string) error {
	return eng.Stop(workflowID)
}
