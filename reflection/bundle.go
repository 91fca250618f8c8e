// Package reflection exposes shader resource binding layouts to the
// render graph.
//
// A [Bundle] is a read-only, ordered list of resource bindings for one
// compiled shader program. The graph's variadic nodes only read bundles;
// producing one is the job of a shader compilation collaborator — either
// [FromWGSL], which compiles WGSL through naga and scans the emitted
// SPIR-V, or [FromBindings] for layouts known up front.
package reflection

import (
	"errors"
	"fmt"
	"sort"
)

// Package errors.
var (
	// ErrCompile is returned when shader compilation fails.
	ErrCompile = errors.New("reflection: shader compile failed")

	// ErrMalformed is returned when SPIR-V scanning encounters a
	// truncated or inconsistent module.
	ErrMalformed = errors.New("reflection: malformed SPIR-V module")

	// ErrDuplicateBinding is returned when two bindings share a
	// (group, index) pair.
	ErrDuplicateBinding = errors.New("reflection: duplicate binding index")
)

// BindingKind classifies a shader resource binding.
type BindingKind uint8

const (
	// KindUnknown marks a binding whose kind could not be classified.
	KindUnknown BindingKind = iota

	// KindUniformBuffer is a uniform buffer binding.
	KindUniformBuffer

	// KindStorageBuffer is a (read-write or read-only) storage buffer.
	KindStorageBuffer

	// KindSampledTexture is a sampled texture binding.
	KindSampledTexture

	// KindStorageTexture is a storage texture binding.
	KindStorageTexture

	// KindSampler is a sampler binding.
	KindSampler
)

// String returns the binding kind name.
func (k BindingKind) String() string {
	switch k {
	case KindUniformBuffer:
		return "UniformBuffer"
	case KindStorageBuffer:
		return "StorageBuffer"
	case KindSampledTexture:
		return "SampledTexture"
	case KindStorageTexture:
		return "StorageTexture"
	case KindSampler:
		return "Sampler"
	default:
		return "Unknown"
	}
}

// Binding is one externally reported resource requirement: the shader
// declares a resource of Kind at (Group, Index) under Name.
type Binding struct {
	// Group is the bind group (descriptor set) index.
	Group uint32

	// Index is the binding index within the group.
	Index uint32

	// Kind classifies the bound resource.
	Kind BindingKind

	// Name is the shader-declared variable name, empty if the module
	// carries no debug names.
	Name string

	// Size is the byte size for buffer bindings, 0 when not reported.
	Size uint32

	// Offset is the byte offset for scalar fields, 0 when not
	// reported.
	Offset uint32
}

// Bundle is an immutable, ordered list of bindings for one shader
// program, sorted by (Group, Index).
type Bundle struct {
	bindings []Binding
}

// FromBindings builds a Bundle from an explicit binding list, sorting it
// by (Group, Index). It fails with ErrDuplicateBinding when two bindings
// collide.
func FromBindings(bindings []Binding) (*Bundle, error) {
	sorted := make([]Binding, len(bindings))
	copy(sorted, bindings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Group != sorted[j].Group {
			return sorted[i].Group < sorted[j].Group
		}
		return sorted[i].Index < sorted[j].Index
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Group == sorted[i-1].Group && sorted[i].Index == sorted[i-1].Index {
			return nil, fmt.Errorf("%w: group %d binding %d",
				ErrDuplicateBinding, sorted[i].Group, sorted[i].Index)
		}
	}
	return &Bundle{bindings: sorted}, nil
}

// Len returns the number of bindings.
func (b *Bundle) Len() int { return len(b.bindings) }

// Bindings returns the bindings ordered by (Group, Index). The returned
// slice is a copy; the Bundle itself never changes.
func (b *Bundle) Bindings() []Binding {
	out := make([]Binding, len(b.bindings))
	copy(out, b.bindings)
	return out
}

// ByName returns the binding with the given shader-declared name.
func (b *Bundle) ByName(name string) (Binding, bool) {
	if name == "" {
		return Binding{}, false
	}
	for _, bd := range b.bindings {
		if bd.Name == name {
			return bd, true
		}
	}
	return Binding{}, false
}

// ByIndex returns the binding at (group, index).
func (b *Bundle) ByIndex(group, index uint32) (Binding, bool) {
	for _, bd := range b.bindings {
		if bd.Group == group && bd.Index == index {
			return bd, true
		}
	}
	return Binding{}, false
}
