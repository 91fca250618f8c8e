package nodes

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/reflection"
	"github.com/gogpu/rendergraph/resource"
)

// fenceTimeout bounds how long a one-shot submission waits for the GPU.
const fenceTimeout = 5 * time.Second

// HALFactory implements Factory over a wgpu hal.Device. Objects are
// tracked in per-type tables keyed by the issued Handle, so node code
// never holds hal types directly.
type HALFactory struct {
	device hal.Device
	queue  hal.Queue
	next   Handle

	shaders     map[Handle]hal.ShaderModule
	buffers     map[Handle]hal.Buffer
	textures    map[Handle]hal.Texture
	views       map[Handle]hal.TextureView
	samplers    map[Handle]hal.Sampler
	bgLayouts   map[Handle]hal.BindGroupLayout
	groups      map[Handle]hal.BindGroup
	compute     map[Handle]hal.ComputePipeline
	render      map[Handle]hal.RenderPipeline
	pipeLayouts map[Handle]hal.PipelineLayout
}

// NewHALFactory wraps a hal device and its submission queue.
func NewHALFactory(device hal.Device, queue hal.Queue) *HALFactory {
	return &HALFactory{
		device:      device,
		queue:       queue,
		shaders:     make(map[Handle]hal.ShaderModule),
		buffers:     make(map[Handle]hal.Buffer),
		textures:    make(map[Handle]hal.Texture),
		views:       make(map[Handle]hal.TextureView),
		samplers:    make(map[Handle]hal.Sampler),
		bgLayouts:   make(map[Handle]hal.BindGroupLayout),
		groups:      make(map[Handle]hal.BindGroup),
		compute:     make(map[Handle]hal.ComputePipeline),
		render:      make(map[Handle]hal.RenderPipeline),
		pipeLayouts: make(map[Handle]hal.PipelineLayout),
	}
}

func (f *HALFactory) issue() Handle {
	f.next++
	return f.next
}

// CreateShaderModule implements Factory.
func (f *HALFactory) CreateShaderModule(label string, spirv []uint32) (Handle, error) {
	m, err := f.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return 0, fmt.Errorf("create shader module %q: %w", label, err)
	}
	h := f.issue()
	f.shaders[h] = m
	return h, nil
}

// CreateBuffer implements Factory.
func (f *HALFactory) CreateBuffer(desc *resource.BufferDescriptor) (Handle, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	b, err := f.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return 0, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	h := f.issue()
	f.buffers[h] = b
	return h, nil
}

// WriteBuffer implements Factory.
func (f *HALFactory) WriteBuffer(buf Handle, offset uint64, data []byte) error {
	b, ok := f.buffers[buf]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, buf)
	}
	f.queue.WriteBuffer(b, offset, data)
	return nil
}

// CreateTexture implements Factory.
func (f *HALFactory) CreateTexture(desc *resource.ImageDescriptor) (Handle, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	t, err := f.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Depth,
		},
		MipLevelCount: desc.MipLevelCount,
		SampleCount:   desc.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return 0, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	h := f.issue()
	f.textures[h] = t
	return h, nil
}

// WriteTexture implements Factory.
func (f *HALFactory) WriteTexture(tex Handle, data []byte, bytesPerRow uint32, extent Extent) error {
	t, ok := f.textures[tex]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownHandle, tex)
	}
	f.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t},
		data,
		&hal.ImageDataLayout{BytesPerRow: bytesPerRow, RowsPerImage: extent.Height},
		&hal.Extent3D{
			Width:              extent.Width,
			Height:             extent.Height,
			DepthOrArrayLayers: extent.Depth,
		},
	)
	return nil
}

// CreateView implements Factory.
func (f *HALFactory) CreateView(tex Handle, label string) (Handle, error) {
	t, ok := f.textures[tex]
	if !ok {
		return 0, fmt.Errorf("%w: texture %d", ErrUnknownHandle, tex)
	}
	v, err := f.device.CreateTextureView(t, &hal.TextureViewDescriptor{Label: label})
	if err != nil {
		return 0, fmt.Errorf("create texture view %q: %w", label, err)
	}
	h := f.issue()
	f.views[h] = v
	return h, nil
}

// CreateSampler implements Factory.
func (f *HALFactory) CreateSampler(opts *SamplerOptions) (Handle, error) {
	s, err := f.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        opts.Label,
		AddressModeU: opts.AddressMode,
		AddressModeV: opts.AddressMode,
		AddressModeW: opts.AddressMode,
		MagFilter:    opts.MagFilter,
		MinFilter:    opts.MinFilter,
		MipmapFilter: opts.MinFilter,
	})
	if err != nil {
		return 0, fmt.Errorf("create sampler %q: %w", opts.Label, err)
	}
	h := f.issue()
	f.samplers[h] = s
	return h, nil
}

// CreateBindGroupLayout implements Factory.
func (f *HALFactory) CreateBindGroupLayout(label string, entries []LayoutEntry) (Handle, error) {
	halEntries := make([]gputypes.BindGroupLayoutEntry, 0, len(entries))
	for _, e := range entries {
		halEntries = append(halEntries, layoutEntry(e))
	}
	l, err := f.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: halEntries,
	})
	if err != nil {
		return 0, fmt.Errorf("create bind group layout %q: %w", label, err)
	}
	h := f.issue()
	f.bgLayouts[h] = l
	return h, nil
}

// layoutEntry converts one LayoutEntry into the hal representation.
func layoutEntry(e LayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: e.Visibility,
	}
	switch e.Kind {
	case reflection.KindUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: e.MinBindingSize,
		}
	case reflection.KindStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeStorage,
			MinBindingSize: e.MinBindingSize,
		}
	case reflection.KindSampledTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case reflection.KindStorageTexture:
		out.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        e.Format,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case reflection.KindSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{
			Type: gputypes.SamplerBindingTypeFiltering,
		}
	}
	return out
}

// CreateBindGroup implements Factory.
func (f *HALFactory) CreateBindGroup(label string, layout Handle, entries []GroupEntry) (Handle, error) {
	l, ok := f.bgLayouts[layout]
	if !ok {
		return 0, fmt.Errorf("%w: bind group layout %d", ErrUnknownHandle, layout)
	}
	halEntries := make([]gputypes.BindGroupEntry, 0, len(entries))
	for _, e := range entries {
		he := gputypes.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != 0:
			b, ok := f.buffers[e.Buffer]
			if !ok {
				return 0, fmt.Errorf("%w: buffer %d", ErrUnknownHandle, e.Buffer)
			}
			he.Resource = gputypes.BufferBinding{
				Buffer: b.NativeHandle(),
				Offset: e.Offset,
				Size:   e.Size, // 0 = entire buffer
			}
		case e.View != 0:
			v, ok := f.views[e.View]
			if !ok {
				return 0, fmt.Errorf("%w: texture view %d", ErrUnknownHandle, e.View)
			}
			nh, ok := v.(interface{ NativeHandle() uintptr })
			if !ok {
				return 0, fmt.Errorf("%w: backend exposes no texture view handles", ErrUnsupported)
			}
			he.Resource = gputypes.TextureViewBinding{TextureView: nh.NativeHandle()}
		case e.Sampler != 0:
			s, ok := f.samplers[e.Sampler]
			if !ok {
				return 0, fmt.Errorf("%w: sampler %d", ErrUnknownHandle, e.Sampler)
			}
			nh, ok := s.(interface{ NativeHandle() uintptr })
			if !ok {
				return 0, fmt.Errorf("%w: backend exposes no sampler handles", ErrUnsupported)
			}
			he.Resource = gputypes.SamplerBinding{Sampler: nh.NativeHandle()}
		default:
			return 0, fmt.Errorf("%w: bind group %q entry %d has no resource", ErrBadParam, label, e.Binding)
		}
		halEntries = append(halEntries, he)
	}
	g, err := f.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  l,
		Entries: halEntries,
	})
	if err != nil {
		return 0, fmt.Errorf("create bind group %q: %w", label, err)
	}
	h := f.issue()
	f.groups[h] = g
	return h, nil
}

func (f *HALFactory) pipelineLayout(label string, layouts []Handle) (hal.PipelineLayout, error) {
	halLayouts := make([]hal.BindGroupLayout, 0, len(layouts))
	for _, lh := range layouts {
		l, ok := f.bgLayouts[lh]
		if !ok {
			return nil, fmt.Errorf("%w: bind group layout %d", ErrUnknownHandle, lh)
		}
		halLayouts = append(halLayouts, l)
	}
	return f.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: halLayouts,
	})
}

// CreateComputePipeline implements Factory.
func (f *HALFactory) CreateComputePipeline(opts *ComputePipelineOptions) (Handle, error) {
	m, ok := f.shaders[opts.Module]
	if !ok {
		return 0, fmt.Errorf("%w: shader module %d", ErrUnknownHandle, opts.Module)
	}
	pl, err := f.pipelineLayout(opts.Label, opts.Layouts)
	if err != nil {
		return 0, fmt.Errorf("create pipeline layout %q: %w", opts.Label, err)
	}
	p, err := f.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  opts.Label,
		Layout: pl,
		Compute: hal.ComputeState{
			Module:     m,
			EntryPoint: opts.EntryPoint,
		},
	})
	if err != nil {
		f.device.DestroyPipelineLayout(pl)
		return 0, fmt.Errorf("create compute pipeline %q: %w", opts.Label, err)
	}
	h := f.issue()
	f.compute[h] = p
	f.pipeLayouts[h] = pl
	return h, nil
}

// CreateRenderPipeline implements Factory.
func (f *HALFactory) CreateRenderPipeline(opts *RenderPipelineOptions) (Handle, error) {
	m, ok := f.shaders[opts.Module]
	if !ok {
		return 0, fmt.Errorf("%w: shader module %d", ErrUnknownHandle, opts.Module)
	}
	pl, err := f.pipelineLayout(opts.Label, opts.Layouts)
	if err != nil {
		return 0, fmt.Errorf("create pipeline layout %q: %w", opts.Label, err)
	}

	var buffers []gputypes.VertexBufferLayout
	if opts.VertexStride > 0 {
		buffers = []gputypes.VertexBufferLayout{{
			ArrayStride: opts.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  opts.VertexAttributes,
		}}
	}
	samples := opts.SampleCount
	if samples == 0 {
		samples = 1
	}
	blend := gputypes.BlendStatePremultiplied()
	desc := &hal.RenderPipelineDescriptor{
		Label:  opts.Label,
		Layout: pl,
		Vertex: hal.VertexState{
			Module:     m,
			EntryPoint: opts.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     m,
			EntryPoint: opts.FragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    opts.ColorFormat,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: opts.Topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	}
	if opts.DepthFormat != gputypes.TextureFormatUndefined {
		noStencil := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            opts.DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      noStencil,
			StencilBack:       noStencil,
		}
	}
	p, err := f.device.CreateRenderPipeline(desc)
	if err != nil {
		f.device.DestroyPipelineLayout(pl)
		return 0, fmt.Errorf("create render pipeline %q: %w", opts.Label, err)
	}
	h := f.issue()
	f.render[h] = p
	f.pipeLayouts[h] = pl
	return h, nil
}

// Dispatch implements Factory: encode one compute pass, submit, wait.
func (f *HALFactory) Dispatch(opts *DispatchOptions) error {
	p, ok := f.compute[opts.Pipeline]
	if !ok {
		return fmt.Errorf("%w: compute pipeline %d", ErrUnknownHandle, opts.Pipeline)
	}
	groups := make([]hal.BindGroup, 0, len(opts.BindGroups))
	for _, gh := range opts.BindGroups {
		g, ok := f.groups[gh]
		if !ok {
			return fmt.Errorf("%w: bind group %d", ErrUnknownHandle, gh)
		}
		groups = append(groups, g)
	}

	encoder, err := f.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: opts.Label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(opts.Label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: opts.Label})
	pass.SetPipeline(p)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g, nil)
	}
	pass.Dispatch(opts.GroupsX, opts.GroupsY, opts.GroupsZ)
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	return f.submitAndWait(cmdBuf)
}

// Draw implements Factory: encode one render pass, submit, wait.
func (f *HALFactory) Draw(opts *DrawOptions) error {
	p, ok := f.render[opts.Pipeline]
	if !ok {
		return fmt.Errorf("%w: render pipeline %d", ErrUnknownHandle, opts.Pipeline)
	}
	target, ok := f.views[opts.Target]
	if !ok {
		return fmt.Errorf("%w: texture view %d", ErrUnknownHandle, opts.Target)
	}
	groups := make([]hal.BindGroup, 0, len(opts.BindGroups))
	for _, gh := range opts.BindGroups {
		g, ok := f.groups[gh]
		if !ok {
			return fmt.Errorf("%w: bind group %d", ErrUnknownHandle, gh)
		}
		groups = append(groups, g)
	}

	encoder, err := f.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: opts.Label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(opts.Label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	loadOp := gputypes.LoadOpLoad
	if opts.Clear {
		loadOp = gputypes.LoadOpClear
	}
	rpDesc := &hal.RenderPassDescriptor{
		Label: opts.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: opts.ClearColor,
		}},
	}
	if opts.Depth != 0 {
		depth, ok := f.views[opts.Depth]
		if !ok {
			encoder.DiscardEncoding()
			return fmt.Errorf("%w: texture view %d", ErrUnknownHandle, opts.Depth)
		}
		rpDesc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              depth,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}

	rp := encoder.BeginRenderPass(rpDesc)
	rp.SetPipeline(p)
	for i, g := range groups {
		rp.SetBindGroup(uint32(i), g, nil)
	}
	if opts.VertexBuffer != 0 {
		vb, ok := f.buffers[opts.VertexBuffer]
		if !ok {
			encoder.DiscardEncoding()
			return fmt.Errorf("%w: buffer %d", ErrUnknownHandle, opts.VertexBuffer)
		}
		rp.SetVertexBuffer(0, vb, 0)
	}
	instances := opts.InstanceCount
	if instances == 0 {
		instances = 1
	}
	rp.Draw(opts.VertexCount, instances, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	return f.submitAndWait(cmdBuf)
}

// submitAndWait submits one command buffer and blocks until the GPU
// reports the submission complete.
func (f *HALFactory) submitAndWait(cmdBuf hal.CommandBuffer) error {
	defer f.device.FreeCommandBuffer(cmdBuf)

	idx, err := f.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := f.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if f.queue.PollCompleted() < idx {
		return fmt.Errorf("GPU timeout after %v", fenceTimeout)
	}
	return nil
}

// Present implements Factory. Presentation belongs to the host surface,
// not the hal device, so the HAL factory cannot perform it.
func (f *HALFactory) Present(view Handle) error {
	if _, ok := f.views[view]; !ok {
		return fmt.Errorf("%w: texture view %d", ErrUnknownHandle, view)
	}
	return ErrUnsupported
}

// Destroy implements Factory.
func (f *HALFactory) Destroy(t resource.Type, h Handle) error {
	switch t {
	case resource.TypeShaderModule:
		if m, ok := f.shaders[h]; ok {
			f.device.DestroyShaderModule(m)
			delete(f.shaders, h)
			return nil
		}
	case resource.TypeBuffer:
		if b, ok := f.buffers[h]; ok {
			f.device.DestroyBuffer(b)
			delete(f.buffers, h)
			return nil
		}
	case resource.TypeTexture:
		if tx, ok := f.textures[h]; ok {
			f.device.DestroyTexture(tx)
			delete(f.textures, h)
			return nil
		}
	case resource.TypeTextureView:
		if v, ok := f.views[h]; ok {
			f.device.DestroyTextureView(v)
			delete(f.views, h)
			return nil
		}
	case resource.TypeSampler:
		if s, ok := f.samplers[h]; ok {
			f.device.DestroySampler(s)
			delete(f.samplers, h)
			return nil
		}
	case resource.TypeBindGroupLayout:
		if l, ok := f.bgLayouts[h]; ok {
			f.device.DestroyBindGroupLayout(l)
			delete(f.bgLayouts, h)
			return nil
		}
	case resource.TypeBindGroup:
		if g, ok := f.groups[h]; ok {
			f.device.DestroyBindGroup(g)
			delete(f.groups, h)
			return nil
		}
	case resource.TypeComputePipeline:
		if p, ok := f.compute[h]; ok {
			f.device.DestroyComputePipeline(p)
			f.destroyPipeLayout(h)
			delete(f.compute, h)
			return nil
		}
	case resource.TypeRenderPipeline:
		if p, ok := f.render[h]; ok {
			f.device.DestroyRenderPipeline(p)
			f.destroyPipeLayout(h)
			delete(f.render, h)
			return nil
		}
	}
	return fmt.Errorf("%w: %s handle %d", ErrUnknownHandle, t, h)
}

func (f *HALFactory) destroyPipeLayout(h Handle) {
	if pl, ok := f.pipeLayouts[h]; ok {
		f.device.DestroyPipelineLayout(pl)
		delete(f.pipeLayouts, h)
	}
}

// bufferUsage maps resource usage flags onto gputypes flags.
func bufferUsage(u resource.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u&resource.BufferUsageCopySrc != 0 {
		out |= gputypes.BufferUsageCopySrc
	}
	if u&resource.BufferUsageCopyDst != 0 {
		out |= gputypes.BufferUsageCopyDst
	}
	if u&resource.BufferUsageIndex != 0 {
		out |= gputypes.BufferUsageIndex
	}
	if u&resource.BufferUsageVertex != 0 {
		out |= gputypes.BufferUsageVertex
	}
	if u&resource.BufferUsageUniform != 0 {
		out |= gputypes.BufferUsageUniform
	}
	if u&resource.BufferUsageStorage != 0 {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

// textureUsage maps resource usage flags onto gputypes flags.
func textureUsage(u resource.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&resource.TextureUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&resource.TextureUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if u&resource.TextureUsageTextureBinding != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&resource.TextureUsageStorageBinding != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u&resource.TextureUsageRenderAttachment != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}
