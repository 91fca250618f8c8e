package rendergraph

import (
	"fmt"
	"time"

	"github.com/gogpu/rendergraph/resource"
)

// Phase is a node instance's lifecycle state.
type Phase uint8

const (
	// Created means the instance exists but Setup has not run.
	Created Phase = iota

	// SetupDone means node-local state is allocated.
	SetupDone

	// Compiled means connected inputs were validated and derived state
	// exists; the node is ready to Execute.
	Compiled

	// CleanedUp means all resources were released.
	CleanedUp
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case SetupDone:
		return "SetupDone"
	case Compiled:
		return "Compiled"
	case CleanedUp:
		return "CleanedUp"
	default:
		return "Created"
	}
}

// NodeLogic holds the type-specific behavior of a node. Implementations
// embed [BaseNode] to pick up no-op defaults and override the phases they
// need; the graph guarantees phase order (Setup before Compile before
// Execute) and never skips a phase.
type NodeLogic interface {
	// Setup allocates node-local state that requires no external
	// resources. No slot values may be read.
	Setup(n *Instance) error

	// Compile reads connected dependency inputs and creates derived
	// state. Register release handlers for created resources with
	// [Instance.OnCleanup]; the graph runs them before re-entering
	// Compile, so implementations replace rather than accumulate.
	Compile(n *Instance) error

	// Execute runs once per frame after a successful Compile. It reads
	// dependency and execute-only inputs and refreshes outputs.
	Execute(n *Instance) error

	// Cleanup releases any state not covered by OnCleanup handlers.
	// It must be idempotent; the graph already latches double calls.
	Cleanup(n *Instance) error
}

// BaseNode provides no-op implementations of every phase. Node types
// embed it and override only the phases they participate in.
type BaseNode struct{}

// Setup implements NodeLogic with a no-op.
func (BaseNode) Setup(*Instance) error { return nil }

// Compile implements NodeLogic with a no-op.
func (BaseNode) Compile(*Instance) error { return nil }

// Execute implements NodeLogic with a no-op.
func (BaseNode) Execute(*Instance) error { return nil }

// Cleanup implements NodeLogic with a no-op.
func (BaseNode) Cleanup(*Instance) error { return nil }

// PhaseStats records coarse per-node timing, logged at Debug level.
type PhaseStats struct {
	// LastCompile is the duration of the most recent Compile.
	LastCompile time.Duration

	// LastExecute is the duration of the most recent Execute.
	LastExecute time.Duration

	// TotalExecute accumulates Execute durations.
	TotalExecute time.Duration

	// Executes counts completed Execute calls.
	Executes uint64
}

// Instance is one graph participant: a node type's logic bound to slot
// values, parameters, and a lifecycle state. Instances are created by
// [Graph.AddNode] and owned by their graph; they are not safe for use
// from multiple goroutines.
type Instance struct {
	name   string
	schema *Schema
	logic  NodeLogic
	graph  *Graph

	phase Phase

	// inEdges[i] lists the connections bound to static input slot i,
	// in connection order.
	inEdges [][]*edge

	// outputs holds the produced Variant per output slot.
	outputs []resource.Variant

	// prevInputs is last frame's dependency input snapshot, backing
	// InputsChanged.
	prevInputs []resource.Variant
	hasPrev    bool

	params map[string]any
	tags   map[string]struct{}

	// variadic holds the negotiation state for schemas with a variadic
	// input, nil otherwise.
	variadic *VariadicState

	releasers []func() error
	cleanedUp bool

	needsRecompile    bool
	deferredRecompile bool

	order int
	stats PhaseStats
}

// Name returns the instance name.
func (n *Instance) Name() string { return n.name }

// TypeName returns the registered node type name.
func (n *Instance) TypeName() string { return n.schema.TypeName }

// Schema returns the shared, read-only schema of the node's type.
func (n *Instance) Schema() *Schema { return n.schema }

// Phase returns the current lifecycle phase.
func (n *Instance) Phase() Phase { return n.phase }

// Stats returns the node's phase timing stats.
func (n *Instance) Stats() PhaseStats { return n.stats }

// ExecutionOrder returns the node's position in the compiled topological
// order. Valid after a successful Graph.Compile.
func (n *Instance) ExecutionOrder() int { return n.order }

// Variadic returns the variadic negotiation state, or nil when the
// node's schema declares no variadic input.
func (n *Instance) Variadic() *VariadicState { return n.variadic }

// In returns the value currently bound to static input slot i. For an
// unconnected slot it returns an unset Variant and no error; required
// slots are enforced by the graph before Compile, and execute-only or
// nullable slots treat absence as a valid empty value.
func (n *Instance) In(i int) resource.Variant {
	if i < 0 || i >= len(n.inEdges) || len(n.inEdges[i]) == 0 {
		return resource.Variant{}
	}
	e := n.inEdges[i][0]
	return e.from.outputs[e.fromOut]
}

// InOr returns the value bound to input slot i, or fallback when the
// slot is unconnected or unset.
func (n *Instance) InOr(i int, fallback resource.Variant) resource.Variant {
	if v := n.In(i); v.IsSet() {
		return v
	}
	return fallback
}

// Ins returns all values bound to an Array input slot, in connection
// order.
func (n *Instance) Ins(i int) []resource.Variant {
	if i < 0 || i >= len(n.inEdges) {
		return nil
	}
	edges := n.inEdges[i]
	out := make([]resource.Variant, len(edges))
	for k, e := range edges {
		out[k] = e.from.outputs[e.fromOut]
	}
	return out
}

// InConnected reports whether static input slot i has at least one
// connection.
func (n *Instance) InConnected(i int) bool {
	return i >= 0 && i < len(n.inEdges) && len(n.inEdges[i]) > 0
}

// Out returns the Variant currently produced at output slot i.
func (n *Instance) Out(i int) resource.Variant {
	if i < 0 || i >= len(n.outputs) {
		return resource.Variant{}
	}
	return n.outputs[i]
}

// SetOut stores v as the produced value of output slot i, checking the
// value's tag against the slot's declared type.
func (n *Instance) SetOut(i int, v resource.Variant) error {
	d, ok := n.schema.Output(i)
	if !ok {
		return nodeErr(n.name, "", fmt.Errorf("output index %d out of range", i))
	}
	if v.IsSet() && !resource.Compatible(v.Type(), d.Type) {
		return nodeErr(n.name, d.Name,
			fmt.Errorf("%w: produced %s for %s output", ErrConnectionTypeMismatch, v.Type(), d.Type))
	}
	n.outputs[i] = v
	return nil
}

// ClearOut resets output slot i to unset.
func (n *Instance) ClearOut(i int) {
	if i >= 0 && i < len(n.outputs) {
		n.outputs[i] = resource.Variant{}
	}
}

// Param returns the parameter value for name: the instance override if
// one was set, else the schema default, else nil.
func (n *Instance) Param(name string) any {
	if v, ok := n.params[name]; ok {
		return v
	}
	if n.schema.Params != nil {
		if v, ok := n.schema.Params[name]; ok {
			return v
		}
	}
	return nil
}

// SetParam overrides a parameter for this instance. Setting a parameter
// after Compile takes effect at the next (re)compile; callers typically
// pair it with [Graph.MarkDirty].
func (n *Instance) SetParam(name string, value any) {
	if n.params == nil {
		n.params = make(map[string]any)
	}
	n.params[name] = value
}

// ParamAs returns the parameter value for name as T, or fallback when
// the parameter is absent or holds a different type.
func ParamAs[T any](n *Instance, name string, fallback T) T {
	if v, ok := n.Param(name).(T); ok {
		return v
	}
	return fallback
}

// AddTag attaches a tag for bulk operations like Graph.MarkDirtyByTag.
func (n *Instance) AddTag(tag string) {
	if n.tags == nil {
		n.tags = make(map[string]struct{})
	}
	n.tags[tag] = struct{}{}
}

// RemoveTag detaches a tag.
func (n *Instance) RemoveTag(tag string) { delete(n.tags, tag) }

// HasTag reports whether the instance carries tag.
func (n *Instance) HasTag(tag string) bool {
	_, ok := n.tags[tag]
	return ok
}

// OnCleanup registers a release handler for a resource created during
// Compile. Handlers run in reverse registration order on Cleanup and
// before the node is re-entered into Compile, so a recompile replaces
// derived state instead of duplicating it.
func (n *Instance) OnCleanup(release func() error) {
	n.releasers = append(n.releasers, release)
}

// InputsChanged reports whether any dependency input differs, by Variant
// equality, from the snapshot taken after the previous Execute. The first
// frame always reports true. Nodes may use this as a dirty guard to skip
// expensive re-derivation; skipping must never change observable outputs.
func (n *Instance) InputsChanged() bool {
	if !n.hasPrev {
		return true
	}
	cur := n.dependencySnapshot()
	if len(cur) != len(n.prevInputs) {
		return true
	}
	for i := range cur {
		if !cur[i].Equal(n.prevInputs[i]) {
			return true
		}
	}
	return false
}

// dependencySnapshot collects the current values of all dependency-role
// static inputs, in slot-then-connection order, plus confirmed variadic
// dependency slots.
func (n *Instance) dependencySnapshot() []resource.Variant {
	var snap []resource.Variant
	for _, d := range n.schema.Inputs {
		if d.Role != Dependency || d.Arity.Kind == Variadic {
			continue
		}
		for _, e := range n.inEdges[d.Index] {
			snap = append(snap, e.from.outputs[e.fromOut])
		}
	}
	if n.variadic != nil {
		snap = append(snap, n.variadic.dependencyValues()...)
	}
	return snap
}

// recordInputs refreshes the dirty-guard snapshot. Called by the graph
// after each Execute.
func (n *Instance) recordInputs() {
	n.prevInputs = n.dependencySnapshot()
	n.hasPrev = true
}

// runReleasers pops and runs all registered release handlers in reverse
// order. Release errors are logged at Warn and do not abort the sweep.
func (n *Instance) runReleasers() {
	for i := len(n.releasers) - 1; i >= 0; i-- {
		if err := n.releasers[i](); err != nil {
			Logger().Warn("resource release failed",
				"node", n.name, "err", err)
		}
	}
	n.releasers = n.releasers[:0]
}

// cleanup releases everything the node created. Safe to call from any
// phase and idempotent: the second and later calls are no-ops.
func (n *Instance) cleanup() error {
	if n.cleanedUp {
		return nil
	}
	n.cleanedUp = true
	n.runReleasers()
	err := n.logic.Cleanup(n)
	for i := range n.outputs {
		n.outputs[i] = resource.Variant{}
	}
	n.phase = CleanedUp
	if err != nil {
		return nodeErr(n.name, "", err)
	}
	return nil
}
