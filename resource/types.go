// Package resource defines the type-tagged value container passed between
// render graph nodes, along with the closed set of resource type tags and
// the descriptors used to request concrete GPU objects.
//
// Every slot value in the graph is a [Variant]: one opaque value (a handle,
// a scalar, or a struct pointer) paired with a [Type] tag. Reads are checked
// against the tag, so wiring a buffer into an image slot is caught by the
// tag check instead of by handle confusion at the GPU boundary.
package resource

import "strconv"

// Type identifies the kind of value stored in a Variant.
//
// The set is closed: one tag per resource kind the graph can carry.
// Tags use WebGPU vocabulary since concrete handles come from wgpu.
type Type uint32

const (
	// TypeInvalid is the zero value, marking an unset Variant.
	TypeInvalid Type = iota

	// TypeDevice is a logical GPU device handle.
	TypeDevice

	// TypeQueue is a device submission queue handle.
	TypeQueue

	// TypeAdapter is a physical adapter handle.
	TypeAdapter

	// TypeSurface is a presentable surface handle.
	TypeSurface

	// TypeTexture is a GPU texture handle.
	TypeTexture

	// TypeTextureView is a view over a texture.
	TypeTextureView

	// TypeSampler is a texture sampler handle.
	TypeSampler

	// TypeBuffer is a GPU buffer handle.
	TypeBuffer

	// TypeShaderModule is a compiled shader module handle.
	TypeShaderModule

	// TypeComputePipeline is a compute pipeline handle.
	TypeComputePipeline

	// TypeRenderPipeline is a render pipeline handle.
	TypeRenderPipeline

	// TypePipelineLayout is a pipeline layout handle.
	TypePipelineLayout

	// TypeBindGroupLayout is a bind group layout handle.
	TypeBindGroupLayout

	// TypeBindGroup is a bind group handle.
	TypeBindGroup

	// TypeCommandBuffer is a recorded command buffer handle.
	TypeCommandBuffer

	// TypeReflection is a shader reflection bundle
	// (*reflection.Bundle from this module's reflection package).
	TypeReflection

	// TypeGathered is an ordered array of Variants produced by a
	// gatherer node ([]Variant, ordered by ascending binding index).
	TypeGathered

	// TypeScalar is a plain numeric or string value (parameters,
	// extents, counts).
	TypeScalar

	typeCount // sentinel, keep last
)

// typeInfo is the per-tag capability table. It is the single source of
// truth for tag names and for which tags hold GPU object handles (and
// therefore participate in cleanup and identity-based dirty checks).
var typeInfo = [typeCount]struct {
	name   string
	handle bool
}{
	TypeInvalid:         {"Invalid", false},
	TypeDevice:          {"Device", true},
	TypeQueue:           {"Queue", true},
	TypeAdapter:         {"Adapter", true},
	TypeSurface:         {"Surface", true},
	TypeTexture:         {"Texture", true},
	TypeTextureView:     {"TextureView", true},
	TypeSampler:         {"Sampler", true},
	TypeBuffer:          {"Buffer", true},
	TypeShaderModule:    {"ShaderModule", true},
	TypeComputePipeline: {"ComputePipeline", true},
	TypeRenderPipeline:  {"RenderPipeline", true},
	TypePipelineLayout:  {"PipelineLayout", true},
	TypeBindGroupLayout: {"BindGroupLayout", true},
	TypeBindGroup:       {"BindGroup", true},
	TypeCommandBuffer:   {"CommandBuffer", true},
	TypeReflection:      {"Reflection", false},
	TypeGathered:        {"Gathered", false},
	TypeScalar:          {"Scalar", false},
}

// String returns the tag name, or "Type(n)" for out-of-range values.
func (t Type) String() string {
	if t < typeCount {
		return typeInfo[t].name
	}
	return "Type(" + strconv.FormatUint(uint64(t), 10) + ")"
}

// IsHandle reports whether values with this tag are GPU object handles.
func (t Type) IsHandle() bool {
	return t < typeCount && typeInfo[t].handle
}

// Valid reports whether t is a known, non-Invalid tag.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < typeCount
}

// Compatible reports whether a value produced with tag `produced` may be
// consumed by a slot declared with tag `consumed`. The table is closed:
// only identical tags are compatible. There are deliberately no implicit
// widenings (a Texture is not a TextureView; a view must be produced
// explicitly by the node that owns the texture).
func Compatible(produced, consumed Type) bool {
	return produced.Valid() && produced == consumed
}

// Lifetime declares how long a produced output value remains valid for
// consumers holding a reference to it.
type Lifetime uint8

const (
	// Transient values are valid only for the current Compile/Execute
	// pass; consumers must not retain them across frames.
	Transient Lifetime = iota

	// Persistent values remain valid until the producing node is
	// recompiled or destroyed.
	Persistent
)

// String returns "Transient" or "Persistent".
func (l Lifetime) String() string {
	if l == Persistent {
		return "Persistent"
	}
	return "Transient"
}
