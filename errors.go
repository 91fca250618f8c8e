package rendergraph

import (
	"errors"
	"fmt"
)

// Package errors. Connect- and Compile-time failures wrap one of these
// sentinels in a [NodeError] carrying the offending node and slot, so
// callers can branch with errors.Is and still report the exact location.
var (
	// ErrSchemaViolation is returned when a node-type schema is
	// malformed (sparse or duplicate slot indices, inconsistent arity).
	// It is surfaced at registration time and never on a live graph.
	ErrSchemaViolation = errors.New("rendergraph: schema violation")

	// ErrConnectionTypeMismatch is returned by Connect when the
	// producer output's type tag differs from the consumer input's.
	ErrConnectionTypeMismatch = errors.New("rendergraph: connection type mismatch")

	// ErrVariadicArity is returned by Connect when a connection would
	// violate the consumer slot's declared arity.
	ErrVariadicArity = errors.New("rendergraph: variadic arity violation")

	// ErrCycleDetected is returned by Graph.Compile when the connection
	// graph contains a cycle. No node's Compile hook runs in that case.
	ErrCycleDetected = errors.New("rendergraph: cycle detected")

	// ErrMissingRequiredInput is returned by Compile when a
	// non-nullable dependency input slot is unconnected.
	ErrMissingRequiredInput = errors.New("rendergraph: missing required input")

	// ErrVariadicTypeMismatch is returned by Compile when a tentative
	// variadic slot does not match any discovered binding, or matches
	// one with an incompatible type.
	ErrVariadicTypeMismatch = errors.New("rendergraph: variadic type mismatch")

	// ErrUnknownType is returned by AddNode for an unregistered node
	// type name.
	ErrUnknownType = errors.New("rendergraph: unknown node type")

	// ErrDuplicateNode is returned by AddNode when the instance name is
	// already taken.
	ErrDuplicateNode = errors.New("rendergraph: duplicate node name")

	// ErrDuplicateType is returned by RegisterType when the type name
	// is already registered.
	ErrDuplicateType = errors.New("rendergraph: duplicate node type")

	// ErrPhase is returned when an operation is attempted in an illegal
	// lifecycle phase (e.g. Execute before Compile).
	ErrPhase = errors.New("rendergraph: illegal phase")
)

// NodeError identifies a failure at a specific node and, where known, a
// specific slot. Unwrap yields the underlying sentinel (or node-specific
// error), so errors.Is(err, ErrMissingRequiredInput) works through it.
type NodeError struct {
	// Node is the instance name of the failing node.
	Node string

	// Slot names the offending slot, empty when the failure is not
	// slot-specific.
	Slot string

	// Err is the underlying error.
	Err error
}

// Error formats as "node "x" slot "y": cause".
func (e *NodeError) Error() string {
	if e.Slot != "" {
		return fmt.Sprintf("node %q slot %q: %v", e.Node, e.Slot, e.Err)
	}
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error { return e.Err }

// nodeErr wraps err with node/slot context unless it already carries it.
func nodeErr(node, slot string, err error) error {
	var ne *NodeError
	if errors.As(err, &ne) {
		return err
	}
	return &NodeError{Node: node, Slot: slot, Err: err}
}
