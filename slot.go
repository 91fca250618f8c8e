package rendergraph

import (
	"fmt"

	"github.com/gogpu/rendergraph/resource"
)

// SlotRole distinguishes inputs that drive compilation from inputs that
// are only read per frame.
type SlotRole uint8

const (
	// Dependency inputs must be bound before Compile and participate in
	// dependency ordering and dirty propagation.
	Dependency SlotRole = iota

	// ExecuteOnly inputs are read during Execute each frame. They do
	// not gate Compile and an absent value is not an error.
	ExecuteOnly
)

// String returns "Dependency" or "ExecuteOnly".
func (r SlotRole) String() string {
	if r == ExecuteOnly {
		return "ExecuteOnly"
	}
	return "Dependency"
}

// ArityKind classifies how many connections a slot accepts.
type ArityKind uint8

const (
	// Single slots accept exactly one connection.
	Single ArityKind = iota

	// Array slots accept any number of connections, delivered as an
	// ordered list in connection order.
	Array

	// Variadic slots are discovered at Compile time from a reflection
	// bundle; connections are matched to discovered bindings by name.
	Variadic
)

// String returns the arity kind name.
func (k ArityKind) String() string {
	switch k {
	case Array:
		return "Array"
	case Variadic:
		return "Variadic"
	default:
		return "Single"
	}
}

// Arity describes a slot's connection cardinality. Min and Max apply to
// Array and Variadic slots; Max == 0 means unbounded.
type Arity struct {
	Kind ArityKind
	Min  int
	Max  int
}

// SingleArity is the default arity: exactly one connection.
var SingleArity = Arity{Kind: Single, Min: 1, Max: 1}

// ArrayArity accepts between min and max connections (max 0 = unbounded).
func ArrayArity(min, max int) Arity { return Arity{Kind: Array, Min: min, Max: max} }

// VariadicArity accepts between min and max discovered bindings
// (max 0 = unbounded).
func VariadicArity(min, max int) Arity { return Arity{Kind: Variadic, Min: min, Max: max} }

// validate checks internal consistency at schema registration.
func (a Arity) validate() error {
	if a.Min < 0 || a.Max < 0 {
		return fmt.Errorf("negative arity bounds [%d,%d]", a.Min, a.Max)
	}
	if a.Max != 0 && a.Min > a.Max {
		return fmt.Errorf("arity min %d > max %d", a.Min, a.Max)
	}
	if a.Kind == Single && (a.Min != 1 || a.Max != 1) {
		return fmt.Errorf("single arity must be [1,1], got [%d,%d]", a.Min, a.Max)
	}
	return nil
}

// SlotDescriptor is the static metadata for one input or output of a
// node type. Descriptors are immutable once the owning schema is
// registered.
type SlotDescriptor struct {
	// Index is the slot's position. Indices must form a dense 0..N-1
	// range within the input list and within the output list.
	Index int

	// Name identifies the slot in error messages and variadic
	// negotiation. Unique within its list.
	Name string

	// Type is the resource tag values bound to this slot must carry.
	Type resource.Type

	// Nullable marks an input that may be left unconnected. Ignored
	// for outputs.
	Nullable bool

	// Role distinguishes Dependency from ExecuteOnly inputs. Ignored
	// for outputs.
	Role SlotRole

	// Arity describes connection cardinality. Defaults to Single when
	// zero-valued via InputSlot/OutputSlot constructors.
	Arity Arity

	// Lifetime declares how long produced values stay valid. Only
	// meaningful on outputs.
	Lifetime resource.Lifetime
}

// InputSlot builds a required single dependency input descriptor.
func InputSlot(index int, name string, t resource.Type) SlotDescriptor {
	return SlotDescriptor{Index: index, Name: name, Type: t, Arity: SingleArity}
}

// OptionalInput builds a nullable single dependency input descriptor.
func OptionalInput(index int, name string, t resource.Type) SlotDescriptor {
	d := InputSlot(index, name, t)
	d.Nullable = true
	return d
}

// ExecInput builds an execute-only input descriptor. Execute-only inputs
// never gate Compile, so they are implicitly nullable.
func ExecInput(index int, name string, t resource.Type) SlotDescriptor {
	d := InputSlot(index, name, t)
	d.Role = ExecuteOnly
	d.Nullable = true
	return d
}

// OutputSlot builds a persistent output descriptor.
func OutputSlot(index int, name string, t resource.Type) SlotDescriptor {
	return SlotDescriptor{
		Index:    index,
		Name:     name,
		Type:     t,
		Arity:    SingleArity,
		Lifetime: resource.Persistent,
	}
}

// TransientOutput builds an output whose values are only valid for the
// current frame.
func TransientOutput(index int, name string, t resource.Type) SlotDescriptor {
	d := OutputSlot(index, name, t)
	d.Lifetime = resource.Transient
	return d
}
