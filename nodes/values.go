package nodes

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/reflection"
	"github.com/gogpu/rendergraph/resource"
)

// Payload types stored in slot Variants. Every payload travels as a
// pointer, so Variant equality is identity: a recreated object yields a
// new pointer and trips downstream dirty guards, while an unchanged one
// compares equal frame over frame.

// Device is the TypeDevice payload: the factory all downstream nodes
// create their objects through, plus the host's device provider when
// one exists.
type Device struct {
	Factory  Factory
	Provider gpucontext.DeviceProvider

	// Format is the preferred color target format: the provider's
	// surface format, or RGBA8Unorm headless.
	Format gputypes.TextureFormat
}

// ShaderModule is the TypeShaderModule payload.
type ShaderModule struct {
	Handle Handle

	// Bundle is the module's reflected resource interface.
	Bundle *reflection.Bundle

	// EntryPoint is the default compute entry point.
	EntryPoint string
}

// Buffer is the TypeBuffer payload.
type Buffer struct {
	Handle Handle
	Size   uint64
	Usage  resource.BufferUsage
}

// Texture is the TypeTexture payload.
type Texture struct {
	Handle Handle
	Desc   resource.ImageDescriptor
}

// View is the TypeTextureView payload.
type View struct {
	Handle Handle
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32
}

// Sampler is the TypeSampler payload.
type Sampler struct {
	Handle Handle
}

// BindGroupLayout is the TypeBindGroupLayout payload.
type BindGroupLayout struct {
	Handle  Handle
	Entries []LayoutEntry
}

// BindGroup is the TypeBindGroup payload.
type BindGroup struct {
	Handle Handle
	Layout *BindGroupLayout
}

// ComputePipeline is the TypeComputePipeline payload.
type ComputePipeline struct {
	Handle     Handle
	Layout     *BindGroupLayout
	EntryPoint string
}

// RenderPipeline is the TypeRenderPipeline payload.
type RenderPipeline struct {
	Handle Handle
	Layout *BindGroupLayout
}

// deviceIn reads the *Device payload bound to input slot i.
func deviceIn(n *rendergraph.Instance, i int) (*Device, error) {
	return resource.Get[*Device](n.In(i), resource.TypeDevice)
}
