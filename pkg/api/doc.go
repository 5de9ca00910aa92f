// Package api contains the core building blocks used by the fluxgraph
// workflow engine. It provides the graph data model, the contracts between
// the engine and its collaborators, the stable event-name catalog, and the
// error types runs settle with.
//
// Most users interact with the higher-level fluxgraph package, which
// re-exports selected types and helpers from this package. The api package
// is intended for advanced use cases, custom integrations, or contributors
// extending the engine itself.
//
// # Concepts
//
// The api package centers around a small set of concepts:
//
//   - The graph model: workflows, nodes, ports, connections
//   - Execution: the engine, run options, run results, execution contexts
//   - Node behavior: the executor registry and interceptor chains
//   - Observability: the event bus, the propagator, and the event catalog
//
// # The Graph Model
//
// A Workflow is a directed graph of typed Nodes connected at Ports. Data
// flows from output ports to input ports along Connections; the engine
// invokes nodes in dependency order. Workflows are value-like inputs to a
// run: the engine reads them and never writes them.
//
// Connections are constrained: source ports face out, target ports face in,
// the two ports' data-type tags must be exactly equal, and a target input
// port admits at most one inbound connection.
//
// # Execution
//
// The Engine validates a workflow, derives a topological order, and drives
// nodes to completion sequentially or in level-parallel cohorts. Each run
// owns a fresh ExecutionContext holding node outputs, seed inputs, per-run
// node statuses, and variables. Runs can be paused, resumed, stopped, and
// bounded by a timeout.
//
// # Node Behavior
//
// A node's type is a string key into the NodeExecutor registry. Behavior is
// installed by registration rather than subclassing: an executor function
// plus optional chains of input transforms, input validators, output
// validators, and output transforms, invoked in that order around the
// executor.
//
// # Observability
//
// The EventBus fans lifecycle signals out to prioritized subscribers with
// failure isolation. The Propagator routes user events from a source node
// along the graph's edges to per-node addressable event types, with
// filters, per-edge transforms, and cycle-safe chaining.
//
// See the fluxgraph package documentation and its example for end-to-end
// usage.
package api
