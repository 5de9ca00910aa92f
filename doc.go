// Package fluxgraph provides an embeddable execution engine for node-graph
// workflows.
//
// Fluxgraph is the computational substrate for visual automation tools:
// end-users compose directed graphs of typed nodes connected at ports, and
// the engine validates the graph, derives a dependency-consistent order,
// threads data across connections, and drives every node to completion. It
// runs fully in-process and integrates cleanly into existing codebases.
//
// # Core Concepts
//
// The fluxgraph programming model is intentionally small:
//
//  1. Workflow
//  2. Engine
//  3. NodeExecutor
//  4. EventBus
//  5. Propagator
//  6. Runtime
//
// # Workflow
//
// A Workflow is a directed graph: Nodes carry typed input and output Ports,
// and Connections move data from an output port of one node to an input
// port of another. Entry nodes receive seed inputs at run start; exit
// nodes' outputs become the run result. Workflows are plain values —
// compose them directly or with the fluent WorkflowBuilder — and the
// engine never mutates them.
//
// # Engine
//
// The Engine runs a workflow to settlement. It validates the graph (a
// cycle is an error), executes nodes sequentially or in level-parallel
// cohorts, and returns a result carrying the exit-node outputs and run
// statistics. Active runs can be paused (the scheduler genuinely blocks),
// resumed, stopped, or bounded by a timeout.
//
// # NodeExecutor
//
// Node behavior is installed by registration: an executor function per
// node-type string, plus optional chains of input transforms, input
// validators, output validators, and output transforms. The executor is
// the extension seam — everything a node does flows through it.
//
// # EventBus
//
// The EventBus fans lifecycle signals out to prioritized subscribers.
// Subscriber failures are isolated, logged, and republished as
// system:error events; a publish returns only after every subscriber has
// settled. LoggingSubscriber, Metrics, and the history Recorder are
// ready-made subscribers.
//
// # Propagator
//
// The Propagator routes user events from a source node along the graph's
// edges, publishing on per-node addressable event types with filters,
// per-edge payload transforms, and cycle-safe chaining.
//
// # Runtime
//
// Runtime bundles a bus, executor registry, validator, propagator, and
// engine with default wiring — the convenient starting point for
// applications and tests. Every Runtime owns its own bus, so concurrent
// runtimes are isolated.
//
// For a runnable example, see Example_workflowBuilder in example_test.go.
package fluxgraph
