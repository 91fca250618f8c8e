// Package rendergraph provides a typed frame-graph engine for GPU work.
//
// # Overview
//
// rendergraph lets callers assemble rendering work as a graph of typed,
// composable nodes (device setup, swapchain, pipelines, descriptor sets,
// dispatch, present) and have the engine validate, order, and execute them
// once per frame. Values flow between nodes as type-tagged resource
// variants; connections are checked at wire time, so a buffer output can
// never reach an image input.
//
// # Quick Start
//
//	g := rendergraph.New(rendergraph.Options{})
//
//	producer, _ := g.AddNode("example.Source", "source")
//	consumer, _ := g.AddNode("example.Sink", "sink")
//
//	if err := g.Connect(producer, 0, consumer, 0); err != nil {
//	    log.Fatal(err) // rejected immediately on type or arity mismatch
//	}
//
//	if err := g.Compile(); err != nil {
//	    log.Fatal(err)
//	}
//	for running {
//	    if err := g.Execute(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	g.Cleanup()
//
// # Node Lifecycle
//
// Every node moves through four phases driven by the graph:
//
//   - Setup: allocate node-local state needing no external resources.
//   - Compile: read connected inputs, validate required slots, create
//     derived state. Re-entered when upstream outputs change identity.
//   - Execute: once per frame, refresh outputs in dependency order.
//   - Cleanup: release everything; idempotent.
//
// Node types are authored once as a [Schema] plus a [NodeLogic]
// implementation and registered with [RegisterType]. Malformed schemas are
// rejected at registration, never on a live graph.
//
// # Variadic Slots
//
// Nodes whose exact input set depends on a compiled shader (descriptor
// gatherers) declare a single variadic input slot. Connections may be
// pre-registered by binding name before the shader exists; at Compile the
// node reads a reflection bundle, confirms each tentative slot against the
// discovered bindings, and gathers the confirmed values into one output
// array ordered by ascending binding index.
//
// # Architecture
//
// The module is organized into:
//   - rendergraph: graph, schema, node lifecycle, variadic negotiation
//   - resource: type-tagged variants and resource descriptors
//   - reflection: shader binding discovery (naga-backed)
//   - nodes: concrete node types wired to a GPU factory collaborator
package rendergraph
