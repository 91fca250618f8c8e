package nodes

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/internal/cache"
	"github.com/gogpu/rendergraph/resource"
)

// computeEntry is one memoized pipeline: the payload published to
// consumers plus every layout handle created for it.
type computeEntry struct {
	pipeline *ComputePipeline
	layouts  []Handle
}

// ComputePipelineNode derives bind group layouts from its module's
// reflection bundle and creates the compute pipeline.
//
// Pipelines are memoized per instance, keyed by module identity and
// entry point. A recompile that leaves the shader untouched republishes
// the identical pipeline payload, so downstream dirty guards see no
// change; cache eviction and node cleanup destroy the GPU objects.
type ComputePipelineNode struct {
	rendergraph.BaseNode

	fac   Factory
	cache *cache.LRU[uint64, *computeEntry]
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.ComputePipeline",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
			rendergraph.InputSlot(1, "module", resource.TypeShaderModule),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "pipeline", resource.TypeComputePipeline),
			rendergraph.OutputSlot(1, "layout", resource.TypeBindGroupLayout),
		},
		Params: map[string]any{
			"entry": "",
			"label": "",
		},
	}, func() rendergraph.NodeLogic { return &ComputePipelineNode{} })
}

// Setup allocates the pipeline cache.
func (c *ComputePipelineNode) Setup(*rendergraph.Instance) error {
	c.cache = cache.New[uint64, *computeEntry](8)
	c.cache.OnEvict(func(_ uint64, e *computeEntry) {
		_ = c.fac.Destroy(resource.TypeComputePipeline, e.pipeline.Handle)
		for _, l := range e.layouts {
			_ = c.fac.Destroy(resource.TypeBindGroupLayout, l)
		}
	})
	return nil
}

// Compile creates or reuses the pipeline for the current module.
func (c *ComputePipelineNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	mod, err := resource.Get[*ShaderModule](n.In(1), resource.TypeShaderModule)
	if err != nil {
		return err
	}
	c.fac = dev.Factory

	entry := rendergraph.ParamAs(n, "entry", "")
	if entry == "" {
		entry = mod.EntryPoint
	}
	label := rendergraph.ParamAs(n, "label", n.Name())

	key := cache.HashString(fmt.Sprintf("%d/%s", mod.Handle, entry))
	ent, err := c.cache.GetOrCreate(key, func() (*computeEntry, error) {
		return c.build(label, mod, entry)
	})
	if err != nil {
		return err
	}

	if err := n.SetOut(0, resource.New(resource.TypeComputePipeline, ent.pipeline)); err != nil {
		return err
	}
	if ent.pipeline.Layout != nil {
		return n.SetOut(1, resource.New(resource.TypeBindGroupLayout, ent.pipeline.Layout))
	}
	return nil
}

// build creates the layouts and pipeline for one cache entry.
func (c *ComputePipelineNode) build(label string, mod *ShaderModule, entry string) (*computeEntry, error) {
	var (
		layouts []Handle
		first   *BindGroupLayout
	)
	for g := uint32(0); g < groupCount(mod.Bundle); g++ {
		entries := layoutEntries(mod.Bundle, g, gputypes.ShaderStageCompute)
		lh, err := c.fac.CreateBindGroupLayout(label, entries)
		if err != nil {
			for _, l := range layouts {
				_ = c.fac.Destroy(resource.TypeBindGroupLayout, l)
			}
			return nil, err
		}
		layouts = append(layouts, lh)
		if g == 0 {
			first = &BindGroupLayout{Handle: lh, Entries: entries}
		}
	}
	ph, err := c.fac.CreateComputePipeline(&ComputePipelineOptions{
		Label:      label,
		Module:     mod.Handle,
		EntryPoint: entry,
		Layouts:    layouts,
	})
	if err != nil {
		for _, l := range layouts {
			_ = c.fac.Destroy(resource.TypeBindGroupLayout, l)
		}
		return nil, err
	}
	return &computeEntry{
		pipeline: &ComputePipeline{Handle: ph, Layout: first, EntryPoint: entry},
		layouts:  layouts,
	}, nil
}

// Cleanup evicts every cached pipeline.
func (c *ComputePipelineNode) Cleanup(*rendergraph.Instance) error {
	if c.cache != nil {
		c.cache.Clear()
	}
	return nil
}

// RenderPipelineNode creates a render pipeline from its module, with
// the color target defaulting to the device's preferred format. The
// "depth" parameter enables a Depth24PlusStencil8 depth state to pair
// with a DepthBufferNode attachment.
type RenderPipelineNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.RenderPipeline",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
			rendergraph.InputSlot(1, "module", resource.TypeShaderModule),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "pipeline", resource.TypeRenderPipeline),
			rendergraph.OutputSlot(1, "layout", resource.TypeBindGroupLayout),
		},
		Params: map[string]any{
			"vertex_entry":   "vs_main",
			"fragment_entry": "fs_main",
			"format":         gputypes.TextureFormatUndefined,
			"depth":          false,
			"stride":         uint64(0),
			"attributes":     nil,
			"topology":       gputypes.PrimitiveTopologyTriangleList,
			"samples":        uint32(1),
			"label":          "",
		},
	}, func() rendergraph.NodeLogic { return &RenderPipelineNode{} })
}

// Compile creates the layouts and pipeline.
func (r *RenderPipelineNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	mod, err := resource.Get[*ShaderModule](n.In(1), resource.TypeShaderModule)
	if err != nil {
		return err
	}
	fac := dev.Factory
	label := rendergraph.ParamAs(n, "label", n.Name())

	var (
		layouts []Handle
		first   *BindGroupLayout
	)
	visibility := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	for g := uint32(0); g < groupCount(mod.Bundle); g++ {
		entries := layoutEntries(mod.Bundle, g, visibility)
		lh, err := fac.CreateBindGroupLayout(label, entries)
		if err != nil {
			return err
		}
		n.OnCleanup(func() error { return fac.Destroy(resource.TypeBindGroupLayout, lh) })
		layouts = append(layouts, lh)
		if g == 0 {
			first = &BindGroupLayout{Handle: lh, Entries: entries}
		}
	}

	format := rendergraph.ParamAs(n, "format", gputypes.TextureFormatUndefined)
	if format == gputypes.TextureFormatUndefined {
		format = dev.Format
	}
	depthFormat := gputypes.TextureFormatUndefined
	if rendergraph.ParamAs(n, "depth", false) {
		depthFormat = gputypes.TextureFormatDepth24PlusStencil8
	}
	attrs, _ := n.Param("attributes").([]gputypes.VertexAttribute)

	ph, err := fac.CreateRenderPipeline(&RenderPipelineOptions{
		Label:            label,
		Module:           mod.Handle,
		VertexEntry:      rendergraph.ParamAs(n, "vertex_entry", "vs_main"),
		FragmentEntry:    rendergraph.ParamAs(n, "fragment_entry", "fs_main"),
		Layouts:          layouts,
		ColorFormat:      format,
		DepthFormat:      depthFormat,
		VertexStride:     rendergraph.ParamAs(n, "stride", uint64(0)),
		VertexAttributes: attrs,
		Topology:         rendergraph.ParamAs(n, "topology", gputypes.PrimitiveTopologyTriangleList),
		SampleCount:      rendergraph.ParamAs(n, "samples", uint32(1)),
	})
	if err != nil {
		return err
	}
	n.OnCleanup(func() error { return fac.Destroy(resource.TypeRenderPipeline, ph) })

	if err := n.SetOut(0, resource.New(resource.TypeRenderPipeline,
		&RenderPipeline{Handle: ph, Layout: first})); err != nil {
		return err
	}
	if first != nil {
		return n.SetOut(1, resource.New(resource.TypeBindGroupLayout, first))
	}
	return nil
}
