package rendergraph

import (
	"fmt"
	"time"

	"github.com/gogpu/rendergraph/resource"
)

// edge is one recorded connection from a producer output slot to a
// consumer input slot. vslot is set for connections bound to a variadic
// slot instead of a static one.
type edge struct {
	from    *Instance
	fromOut int
	to      *Instance
	toIn    int
	vslot   *VariadicSlot
}

// Options configures a Graph.
type Options struct {
	// Registry resolves node type names. Nil means DefaultRegistry.
	Registry *Registry

	// Name labels the graph in log output.
	Name string
}

// Graph owns a set of node instances and the connections between their
// slots. It validates connections at wire time, orders nodes by their
// dependencies, and drives the four-phase lifecycle across all of them.
//
// Compile and Execute are single-threaded and strictly sequential: later
// nodes read outputs the earlier nodes just produced. A Graph must not
// be shared between goroutines.
type Graph struct {
	name     string
	registry *Registry

	nodes  []*Instance
	byName map[string]*Instance
	edges  []*edge

	// order is the compiled topological order, nil until Compile.
	order []*Instance

	dirty     map[*Instance]bool
	executing bool
	frame     uint64
}

// New creates an empty graph.
func New(opts Options) *Graph {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry
	}
	name := opts.Name
	if name == "" {
		name = "rendergraph"
	}
	return &Graph{
		name:     name,
		registry: reg,
		byName:   make(map[string]*Instance),
		dirty:    make(map[*Instance]bool),
	}
}

// AddNode instantiates the registered node type typeName under the
// unique instance name and adds it to the graph.
func (g *Graph) AddNode(typeName, instanceName string) (*Instance, error) {
	nt, ok := g.registry.lookupType(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	if instanceName == "" {
		return nil, fmt.Errorf("%w: empty instance name", ErrDuplicateNode)
	}
	if _, exists := g.byName[instanceName]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, instanceName)
	}

	n := &Instance{
		name:    instanceName,
		schema:  nt.schema,
		logic:   nt.factory(),
		graph:   g,
		inEdges: make([][]*edge, len(nt.schema.Inputs)),
		outputs: make([]resource.Variant, len(nt.schema.Outputs)),
	}
	if decl, ok := nt.schema.VariadicInput(); ok {
		n.variadic = newVariadicState(n, decl)
	}
	g.nodes = append(g.nodes, n)
	g.byName[instanceName] = n
	g.order = nil
	return n, nil
}

// Node returns the instance with the given name.
func (g *Graph) Node(name string) (*Instance, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Nodes returns all instances in insertion order.
func (g *Graph) Nodes() []*Instance {
	out := make([]*Instance, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Connect wires producer output outIdx into consumer static input inIdx.
// Type tags and arity are validated immediately: a mismatch fails with
// ErrConnectionTypeMismatch or ErrVariadicArity and the connection is
// never recorded. Variadic slots are wired with ConnectVariadic instead.
func (g *Graph) Connect(from *Instance, outIdx int, to *Instance, inIdx int) error {
	if err := g.checkMembers(from, to); err != nil {
		return err
	}
	outDesc, ok := from.schema.Output(outIdx)
	if !ok {
		return nodeErr(from.name, "", fmt.Errorf("output index %d out of range", outIdx))
	}
	inDesc, ok := to.schema.Input(inIdx)
	if !ok {
		return nodeErr(to.name, "", fmt.Errorf("input index %d out of range", inIdx))
	}
	if inDesc.Arity.Kind == Variadic {
		return nodeErr(to.name, inDesc.Name,
			fmt.Errorf("%w: slot is variadic, use ConnectVariadic", ErrVariadicArity))
	}
	if !resource.Compatible(outDesc.Type, inDesc.Type) {
		return nodeErr(to.name, inDesc.Name,
			fmt.Errorf("%w: %s output %q into %s input",
				ErrConnectionTypeMismatch, outDesc.Type, outDesc.Name, inDesc.Type))
	}
	bound := len(to.inEdges[inIdx])
	switch inDesc.Arity.Kind {
	case Single:
		if bound >= 1 {
			return nodeErr(to.name, inDesc.Name,
				fmt.Errorf("%w: single slot already connected", ErrVariadicArity))
		}
	case Array:
		if max := inDesc.Arity.Max; max != 0 && bound >= max {
			return nodeErr(to.name, inDesc.Name,
				fmt.Errorf("%w: at most %d connections", ErrVariadicArity, max))
		}
	}

	e := &edge{from: from, fromOut: outIdx, to: to, toIn: inIdx}
	g.edges = append(g.edges, e)
	to.inEdges[inIdx] = append(to.inEdges[inIdx], e)
	g.order = nil
	return nil
}

// ConnectVariadic wires producer output outIdx into the consumer's
// variadic input under slotName. The slot may have been pre-registered
// via [VariadicState.PreRegister]; otherwise a tentative slot is created
// with the producer's output type and the given binding hint. The
// connection is validated against the reflection bundle when the
// consumer compiles.
func (g *Graph) ConnectVariadic(from *Instance, outIdx int, to *Instance, slotName string, bindingHint uint32) error {
	if err := g.checkMembers(from, to); err != nil {
		return err
	}
	if to.variadic == nil {
		return nodeErr(to.name, slotName,
			fmt.Errorf("%w: node type %q has no variadic input", ErrVariadicArity, to.TypeName()))
	}
	outDesc, ok := from.schema.Output(outIdx)
	if !ok {
		return nodeErr(from.name, "", fmt.Errorf("output index %d out of range", outIdx))
	}

	slot := to.variadic.byName(slotName)
	if slot == nil {
		var err error
		slot, err = to.variadic.PreRegister(slotName, bindingHint, outDesc.Type, Dependency)
		if err != nil {
			return err
		}
	} else {
		if !resource.Compatible(outDesc.Type, slot.Type) {
			return nodeErr(to.name, slotName,
				fmt.Errorf("%w: %s output %q into %s variadic slot",
					ErrConnectionTypeMismatch, outDesc.Type, outDesc.Name, slot.Type))
		}
		if slot.conn != nil {
			return nodeErr(to.name, slotName,
				fmt.Errorf("%w: variadic slot already connected", ErrVariadicArity))
		}
	}

	e := &edge{from: from, fromOut: outIdx, to: to, toIn: to.variadic.decl.Index, vslot: slot}
	slot.conn = e
	g.edges = append(g.edges, e)
	g.order = nil
	return nil
}

// Disconnect removes every connection bound to the consumer's static
// input slot inIdx and marks the consumer dirty.
func (g *Graph) Disconnect(to *Instance, inIdx int) error {
	if err := g.checkMembers(to, to); err != nil {
		return err
	}
	inDesc, ok := to.schema.Input(inIdx)
	if !ok {
		return nodeErr(to.name, "", fmt.Errorf("input index %d out of range", inIdx))
	}
	if len(to.inEdges[inIdx]) == 0 {
		return nil
	}
	removed := make(map[*edge]bool, len(to.inEdges[inIdx]))
	for _, e := range to.inEdges[inIdx] {
		removed[e] = true
	}
	to.inEdges[inIdx] = nil
	kept := g.edges[:0]
	for _, e := range g.edges {
		if !removed[e] {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.order = nil
	g.MarkDirty(to)
	Logger().Debug("disconnected input", "graph", g.name, "node", to.name, "slot", inDesc.Name)
	return nil
}

func (g *Graph) checkMembers(a, b *Instance) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: nil node", ErrUnknownType)
	}
	if a.graph != g || b.graph != g {
		return fmt.Errorf("%w: node belongs to a different graph", ErrUnknownType)
	}
	return nil
}

// topoSort computes a dependency ordering (producers before consumers)
// over all nodes using Kahn's algorithm, stable in insertion order.
// A cycle fails with ErrCycleDetected naming one involved node.
func (g *Graph) topoSort() ([]*Instance, error) {
	indegree := make(map[*Instance]int, len(g.nodes))
	out := make(map[*Instance][]*Instance, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.to]++
		out[e.from] = append(out[e.from], e.to)
	}

	var queue []*Instance
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]*Instance, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, m := range out[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if len(order) != len(g.nodes) {
		for _, n := range g.nodes {
			if indegree[n] > 0 {
				return nil, &NodeError{Node: n.name, Err: ErrCycleDetected}
			}
		}
		return nil, ErrCycleDetected
	}
	for i, n := range order {
		n.order = i
	}
	return order, nil
}

// Compile builds the dependency ordering and invokes every node's Setup
// (once) and Compile phases in topological order, so a node's Compile
// always observes already-compiled producers.
//
// A cyclic graph fails with ErrCycleDetected before any node hook runs.
// A node failure aborts Compile with that node's error; already compiled
// nodes keep their state.
func (g *Graph) Compile() error {
	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order

	for _, n := range order {
		if n.phase == Created || n.phase == CleanedUp {
			if err := n.logic.Setup(n); err != nil {
				return nodeErr(n.name, "", err)
			}
			n.phase = SetupDone
		}
	}
	for _, n := range order {
		if err := g.compileNode(n); err != nil {
			return err
		}
	}
	g.dirty = make(map[*Instance]bool)

	names := make([]string, len(order))
	for i, n := range order {
		names[i] = n.name
	}
	Logger().Info("graph compiled", "graph", g.name, "order", names)
	return nil
}

// compileNode validates the node's bound inputs and runs its Compile
// hook. Re-entry releases previously created derived state first, so
// recompilation replaces rather than duplicates.
func (g *Graph) compileNode(n *Instance) error {
	if n.phase == Compiled {
		n.runReleasers()
	}

	for _, d := range n.schema.Inputs {
		if d.Arity.Kind == Variadic {
			continue
		}
		bound := len(n.inEdges[d.Index])
		// Re-validate connection types; Connect already enforced this,
		// but schemas registered on separate registries may disagree.
		for _, e := range n.inEdges[d.Index] {
			outDesc, _ := e.from.schema.Output(e.fromOut)
			if !resource.Compatible(outDesc.Type, d.Type) {
				return nodeErr(n.name, d.Name,
					fmt.Errorf("%w: %s output into %s input",
						ErrConnectionTypeMismatch, outDesc.Type, d.Type))
			}
		}
		if d.Role != Dependency {
			continue
		}
		if bound == 0 && !d.Nullable {
			return nodeErr(n.name, d.Name, ErrMissingRequiredInput)
		}
		if d.Arity.Kind == Array && bound < d.Arity.Min {
			return nodeErr(n.name, d.Name,
				fmt.Errorf("%w: %d connections, at least %d required",
					ErrVariadicArity, bound, d.Arity.Min))
		}
	}

	start := time.Now()
	if err := n.logic.Compile(n); err != nil {
		return nodeErr(n.name, "", err)
	}
	n.stats.LastCompile = time.Since(start)
	n.phase = Compiled
	n.needsRecompile = false
	n.cleanedUp = false
	n.hasPrev = false
	Logger().Debug("node compiled",
		"graph", g.name, "node", n.name, "type", n.TypeName(), "took", n.stats.LastCompile)
	return nil
}

// Execute runs one frame: every node's Execute hook in topological
// order, so consumers observe this frame's freshly produced outputs.
// Dirty nodes are recompiled first; dirty marks landing during the frame
// are deferred to the next one.
func (g *Graph) Execute() error {
	if g.order == nil {
		return fmt.Errorf("%w: graph not compiled", ErrPhase)
	}
	if err := g.RecompileDirty(); err != nil {
		return err
	}

	g.executing = true
	err := g.executeFrame()
	g.executing = false
	if err != nil {
		return err
	}
	g.frame++

	// Dirty marks raised mid-frame apply from the next frame.
	for _, n := range g.order {
		if n.deferredRecompile {
			n.deferredRecompile = false
			g.markDownstream(n)
		}
	}
	return nil
}

func (g *Graph) executeFrame() error {
	for _, n := range g.order {
		if n.phase != Compiled {
			return nodeErr(n.name, "",
				fmt.Errorf("%w: node is %s, not Compiled", ErrPhase, n.phase))
		}
		start := time.Now()
		if err := n.logic.Execute(n); err != nil {
			return nodeErr(n.name, "", err)
		}
		took := time.Since(start)
		n.stats.LastExecute = took
		n.stats.TotalExecute += took
		n.stats.Executes++
		n.recordInputs()
	}
	return nil
}

// Frame returns the number of completed Execute passes.
func (g *Graph) Frame() uint64 { return g.frame }

// MarkDirty re-enters n and its transitive downstream consumers into
// Compile at the next safe point (RecompileDirty, or the start of the
// next Execute). Unaffected branches keep their Compiled state. Marks
// raised while a frame is executing are deferred to the next frame.
func (g *Graph) MarkDirty(n *Instance) {
	if n == nil || n.graph != g {
		return
	}
	if g.executing {
		n.deferredRecompile = true
		return
	}
	g.markDownstream(n)
}

func (g *Graph) markDownstream(n *Instance) {
	if g.dirty[n] {
		return
	}
	g.dirty[n] = true
	n.needsRecompile = true
	for _, e := range g.edges {
		if e.from == n {
			g.markDownstream(e.to)
		}
	}
}

// MarkDirtyByTag marks every node carrying tag, with the usual
// downstream propagation.
func (g *Graph) MarkDirtyByTag(tag string) {
	for _, n := range g.nodes {
		if n.HasTag(tag) {
			g.MarkDirty(n)
		}
	}
}

// RecompileDirty re-runs Compile for exactly the dirty set, in
// topological order. It is a no-op when nothing is dirty.
func (g *Graph) RecompileDirty() error {
	if len(g.dirty) == 0 {
		return nil
	}
	if g.order == nil {
		order, err := g.topoSort()
		if err != nil {
			return err
		}
		g.order = order
	}
	count := 0
	for _, n := range g.order {
		if !g.dirty[n] {
			continue
		}
		if n.phase == Created {
			if err := n.logic.Setup(n); err != nil {
				return nodeErr(n.name, "", err)
			}
			n.phase = SetupDone
		}
		if err := g.compileNode(n); err != nil {
			return err
		}
		count++
	}
	g.dirty = make(map[*Instance]bool)
	Logger().Debug("recompiled dirty nodes", "graph", g.name, "count", count)
	return nil
}

// ExecutionOrder returns instance names in compiled topological order,
// nil before a successful Compile.
func (g *Graph) ExecutionOrder() []string {
	if g.order == nil {
		return nil
	}
	names := make([]string, len(g.order))
	for i, n := range g.order {
		names[i] = n.name
	}
	return names
}

// Cleanup releases every node's resources in reverse dependency order.
// It is idempotent and legal from any state.
func (g *Graph) Cleanup() error {
	nodes := g.order
	if nodes == nil {
		nodes = g.nodes
	}
	var firstErr error
	for i := len(nodes) - 1; i >= 0; i-- {
		if err := nodes[i].cleanup(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			Logger().Warn("node cleanup failed", "graph", g.name, "node", nodes[i].name, "err", err)
		}
	}
	return firstErr
}
