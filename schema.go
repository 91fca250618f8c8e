package rendergraph

import "fmt"

// Schema is the fixed, registered contract of a node type: an ordered set
// of input and output slot descriptors plus named parameters with
// defaults. A Schema is authored once per node type, validated eagerly by
// [RegisterType], and never mutated afterwards; every instance of the
// type shares it read-only.
type Schema struct {
	// TypeName is the registered node type name, e.g. "nodes.Swapchain".
	TypeName string

	// Inputs are the input slot descriptors, ordered by Index.
	Inputs []SlotDescriptor

	// Outputs are the output slot descriptors, ordered by Index.
	Outputs []SlotDescriptor

	// Params maps parameter names to their default values.
	Params map[string]any
}

// Input returns the input descriptor at index i.
func (s *Schema) Input(i int) (SlotDescriptor, bool) {
	if i < 0 || i >= len(s.Inputs) {
		return SlotDescriptor{}, false
	}
	return s.Inputs[i], true
}

// Output returns the output descriptor at index i.
func (s *Schema) Output(i int) (SlotDescriptor, bool) {
	if i < 0 || i >= len(s.Outputs) {
		return SlotDescriptor{}, false
	}
	return s.Outputs[i], true
}

// InputByName returns the input descriptor with the given name.
func (s *Schema) InputByName(name string) (SlotDescriptor, bool) {
	for _, d := range s.Inputs {
		if d.Name == name {
			return d, true
		}
	}
	return SlotDescriptor{}, false
}

// VariadicInput returns the schema's variadic input descriptor, if any.
func (s *Schema) VariadicInput() (SlotDescriptor, bool) {
	for _, d := range s.Inputs {
		if d.Arity.Kind == Variadic {
			return d, true
		}
	}
	return SlotDescriptor{}, false
}

// validate checks the schema's static invariants: dense unique indices
// per list, unique non-empty names, known type tags, consistent arity
// declarations, and at most one variadic input placed last. Violations
// are programmer errors surfaced at registration, wrapped in
// ErrSchemaViolation.
func (s *Schema) validate() error {
	if s.TypeName == "" {
		return fmt.Errorf("%w: empty type name", ErrSchemaViolation)
	}
	if err := validateSlotList(s.Inputs, "input"); err != nil {
		return fmt.Errorf("%w: type %q: %v", ErrSchemaViolation, s.TypeName, err)
	}
	if err := validateSlotList(s.Outputs, "output"); err != nil {
		return fmt.Errorf("%w: type %q: %v", ErrSchemaViolation, s.TypeName, err)
	}

	seenVariadic := false
	for i, d := range s.Inputs {
		if d.Arity.Kind != Variadic {
			continue
		}
		if seenVariadic {
			return fmt.Errorf("%w: type %q: multiple variadic inputs", ErrSchemaViolation, s.TypeName)
		}
		seenVariadic = true
		if i != len(s.Inputs)-1 {
			return fmt.Errorf("%w: type %q: variadic input %q must be the last input",
				ErrSchemaViolation, s.TypeName, d.Name)
		}
	}
	for _, d := range s.Outputs {
		if d.Arity.Kind == Variadic {
			return fmt.Errorf("%w: type %q: output %q cannot be variadic",
				ErrSchemaViolation, s.TypeName, d.Name)
		}
	}
	return nil
}

func validateSlotList(slots []SlotDescriptor, kind string) error {
	names := make(map[string]struct{}, len(slots))
	seen := make([]bool, len(slots))
	for _, d := range slots {
		if d.Index < 0 || d.Index >= len(slots) {
			return fmt.Errorf("%s slot %q index %d outside dense range 0..%d",
				kind, d.Name, d.Index, len(slots)-1)
		}
		if seen[d.Index] {
			return fmt.Errorf("duplicate %s slot index %d", kind, d.Index)
		}
		seen[d.Index] = true
		if d.Name == "" {
			return fmt.Errorf("%s slot %d has empty name", kind, d.Index)
		}
		if _, dup := names[d.Name]; dup {
			return fmt.Errorf("duplicate %s slot name %q", kind, d.Name)
		}
		names[d.Name] = struct{}{}
		if !d.Type.Valid() {
			return fmt.Errorf("%s slot %q has invalid type tag", kind, d.Name)
		}
		if err := d.Arity.validate(); err != nil {
			return fmt.Errorf("%s slot %q: %v", kind, d.Name, err)
		}
	}
	return nil
}

// sortedByIndex returns the list reordered by slot index. The validated
// dense-index invariant makes this a stable positional layout.
func sortedByIndex(slots []SlotDescriptor) []SlotDescriptor {
	out := make([]SlotDescriptor, len(slots))
	for _, d := range slots {
		out[d.Index] = d
	}
	return out
}
