package nodes

import (
	"errors"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/reflection"
	"github.com/gogpu/rendergraph/resource"
)

// Package sentinel errors.
var (
	// ErrNoFactory is returned when a node compiles without a Factory
	// reachable through its device input.
	ErrNoFactory = errors.New("nodes: node requires a factory")

	// ErrBadParam is returned when a node parameter is missing or holds
	// an unusable value.
	ErrBadParam = errors.New("nodes: invalid parameter")

	// ErrUnknownHandle is returned when a handle is not owned by the
	// factory it was passed to.
	ErrUnknownHandle = errors.New("nodes: unknown handle")

	// ErrUnsupported is returned for operations a factory cannot
	// perform, such as presenting from a headless device.
	ErrUnsupported = errors.New("nodes: operation not supported by this factory")
)

// Handle identifies one GPU object created through a Factory. Handles
// are opaque and only meaningful to the factory that issued them; the
// zero Handle is never issued.
type Handle uint64

// Extent is a texture upload extent in texels.
type Extent struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// LayoutEntry describes one binding in a bind group layout.
type LayoutEntry struct {
	// Binding is the binding index within the group.
	Binding uint32

	// Visibility is the shader stages that access the binding.
	Visibility gputypes.ShaderStage

	// Kind selects the WebGPU binding category.
	Kind reflection.BindingKind

	// Format applies to storage texture bindings only.
	Format gputypes.TextureFormat

	// MinBindingSize is the minimum buffer binding size, 0 = unchecked.
	MinBindingSize uint64
}

// GroupEntry binds one resource into a bind group. Exactly one of
// Buffer, View and Sampler is set; the factory picks whichever handle
// is non-zero.
type GroupEntry struct {
	Binding uint32

	Buffer Handle
	Offset uint64
	Size   uint64 // 0 = whole buffer

	View    Handle
	Sampler Handle
}

// SamplerOptions configures CreateSampler.
type SamplerOptions struct {
	Label       string
	AddressMode gputypes.AddressMode
	MagFilter   gputypes.FilterMode
	MinFilter   gputypes.FilterMode
}

// ComputePipelineOptions configures CreateComputePipeline.
type ComputePipelineOptions struct {
	Label      string
	Module     Handle
	EntryPoint string

	// Layouts are bind group layout handles, indexed by group.
	Layouts []Handle
}

// RenderPipelineOptions configures CreateRenderPipeline.
type RenderPipelineOptions struct {
	Label         string
	Module        Handle
	VertexEntry   string
	FragmentEntry string
	Layouts       []Handle

	ColorFormat gputypes.TextureFormat

	// DepthFormat enables a depth/stencil state when not Undefined.
	DepthFormat gputypes.TextureFormat

	VertexStride     uint64
	VertexAttributes []gputypes.VertexAttribute
	Topology         gputypes.PrimitiveTopology
	SampleCount      uint32
}

// DispatchOptions configures one compute submission.
type DispatchOptions struct {
	Label      string
	Pipeline   Handle
	BindGroups []Handle // indexed by group

	GroupsX uint32
	GroupsY uint32
	GroupsZ uint32
}

// DrawOptions configures one render submission: a single pass over one
// color target with an optional depth attachment.
type DrawOptions struct {
	Label      string
	Pipeline   Handle
	BindGroups []Handle

	VertexBuffer  Handle // 0 = no vertex buffer
	VertexCount   uint32
	InstanceCount uint32

	Target Handle
	Depth  Handle // 0 = no depth attachment

	Clear      bool
	ClearColor gputypes.Color
}

// Factory creates and destroys GPU objects on behalf of node types.
// Nodes hold only [Handle] values, so the graph core stays independent
// of any particular GPU backend and tests run against [NullFactory].
//
// Dispatch and Draw are one-shot submissions: the factory encodes,
// submits and (for blocking backends) waits before returning. A
// factory is not safe for concurrent use; graphs drive it from a
// single goroutine.
type Factory interface {
	CreateShaderModule(label string, spirv []uint32) (Handle, error)

	CreateBuffer(desc *resource.BufferDescriptor) (Handle, error)
	WriteBuffer(buf Handle, offset uint64, data []byte) error

	CreateTexture(desc *resource.ImageDescriptor) (Handle, error)
	WriteTexture(tex Handle, data []byte, bytesPerRow uint32, extent Extent) error
	CreateView(tex Handle, label string) (Handle, error)

	CreateSampler(opts *SamplerOptions) (Handle, error)

	CreateBindGroupLayout(label string, entries []LayoutEntry) (Handle, error)
	CreateBindGroup(label string, layout Handle, entries []GroupEntry) (Handle, error)

	CreateComputePipeline(opts *ComputePipelineOptions) (Handle, error)
	CreateRenderPipeline(opts *RenderPipelineOptions) (Handle, error)

	Dispatch(opts *DispatchOptions) error
	Draw(opts *DrawOptions) error
	Present(view Handle) error

	// Destroy releases the object behind h. The type tag selects the
	// object table; destroying an unknown handle is an error.
	Destroy(t resource.Type, h Handle) error
}

// layoutEntries derives the bind group layout entries for one
// descriptor-set group of a reflection bundle.
func layoutEntries(b *reflection.Bundle, group uint32, visibility gputypes.ShaderStage) []LayoutEntry {
	var out []LayoutEntry
	for _, bd := range b.Bindings() {
		if bd.Group != group {
			continue
		}
		out = append(out, LayoutEntry{
			Binding:        bd.Index,
			Visibility:     visibility,
			Kind:           bd.Kind,
			Format:         gputypes.TextureFormatRGBA8Unorm,
			MinBindingSize: uint64(bd.Size),
		})
	}
	return out
}

// groupCount returns the number of descriptor-set groups a bundle
// spans: max group index + 1, or 0 for an empty bundle.
func groupCount(b *reflection.Bundle) uint32 {
	var max uint32
	seen := false
	for _, bd := range b.Bindings() {
		if !seen || bd.Group > max {
			max = bd.Group
			seen = true
		}
	}
	if !seen {
		return 0
	}
	return max + 1
}
