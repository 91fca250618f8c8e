package nodes

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/reflection"
	"github.com/gogpu/rendergraph/resource"
)

// testSPIRV stands in for compiled shader words; every test pairs it
// with an explicit "layout" bundle so no scanner runs over it.
var testSPIRV = []uint32{0x07230203, 1, 2, 3}

func mustBundle(t *testing.T, bindings []reflection.Binding) *reflection.Bundle {
	t.Helper()
	b, err := reflection.FromBindings(bindings)
	if err != nil {
		t.Fatalf("FromBindings: %v", err)
	}
	return b
}

func addNode(t *testing.T, g *rendergraph.Graph, typeName, name string) *rendergraph.Instance {
	t.Helper()
	n, err := g.AddNode(typeName, name)
	if err != nil {
		t.Fatalf("AddNode(%s, %s): %v", typeName, name, err)
	}
	return n
}

func connect(t *testing.T, g *rendergraph.Graph, from *rendergraph.Instance, out int, to *rendergraph.Instance, in int) {
	t.Helper()
	if err := g.Connect(from, out, to, in); err != nil {
		t.Fatalf("Connect %s[%d] -> %s[%d]: %v", from.Name(), out, to.Name(), in, err)
	}
}

// computeGraph wires device -> shader -> pipeline -> bind group ->
// dispatch with two storage buffers gathered by binding name.
type computeGraph struct {
	g                *rendergraph.Graph
	device, shader   *rendergraph.Instance
	pipeline, gather *rendergraph.Instance
	bufA, bufB       *rendergraph.Instance
	bind, dispatch   *rendergraph.Instance
}

func buildComputeGraph(t *testing.T, fac Factory) *computeGraph {
	t.Helper()
	bundle := mustBundle(t, []reflection.Binding{
		{Group: 0, Index: 0, Kind: reflection.KindStorageBuffer, Name: "positions", Size: 64},
		{Group: 0, Index: 1, Kind: reflection.KindStorageBuffer, Name: "velocities", Size: 64},
	})

	g := rendergraph.New(rendergraph.Options{Name: "compute-test"})
	c := &computeGraph{
		g:        g,
		device:   addNode(t, g, "gpu.Device", "device"),
		shader:   addNode(t, g, "gpu.ShaderModule", "shader"),
		pipeline: addNode(t, g, "gpu.ComputePipeline", "pipeline"),
		gather:   addNode(t, g, "gpu.Gatherer", "gather"),
		bufA:     addNode(t, g, "gpu.Buffer", "positions"),
		bufB:     addNode(t, g, "gpu.Buffer", "velocities"),
		bind:     addNode(t, g, "gpu.BindGroup", "bind"),
		dispatch: addNode(t, g, "gpu.Dispatch", "dispatch"),
	}
	c.device.SetParam("factory", fac)
	c.shader.SetParam("spirv", testSPIRV)
	c.shader.SetParam("layout", bundle)
	c.bufA.SetParam("data", make([]byte, 64))
	c.bufB.SetParam("data", make([]byte, 64))
	c.dispatch.SetParam("x", uint32(8))

	for _, n := range []*rendergraph.Instance{c.shader, c.pipeline, c.bufA, c.bufB, c.bind, c.dispatch} {
		connect(t, g, c.device, 0, n, 0)
	}
	connect(t, g, c.shader, 0, c.pipeline, 1)
	connect(t, g, c.shader, 1, c.gather, 0)
	if err := g.ConnectVariadic(c.bufA, 0, c.gather, "positions", 0); err != nil {
		t.Fatalf("ConnectVariadic positions: %v", err)
	}
	if err := g.ConnectVariadic(c.bufB, 0, c.gather, "velocities", 1); err != nil {
		t.Fatalf("ConnectVariadic velocities: %v", err)
	}
	connect(t, g, c.pipeline, 1, c.bind, 1)
	connect(t, g, c.gather, 0, c.bind, 2)
	connect(t, g, c.pipeline, 0, c.dispatch, 1)
	connect(t, g, c.bind, 0, c.dispatch, 2)
	return c
}

func TestComputeGraphRoundTrip(t *testing.T) {
	fac := NewNullFactory()
	c := buildComputeGraph(t, fac)

	if err := c.g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for frame := 0; frame < 3; frame++ {
		if err := c.g.Execute(); err != nil {
			t.Fatalf("Execute frame %d: %v", frame, err)
		}
	}

	if got := len(fac.Dispatches); got != 3 {
		t.Fatalf("dispatches = %d, want 3", got)
	}
	first := fac.Dispatches[0]
	if first.GroupsX != 8 || first.GroupsY != 1 || first.GroupsZ != 1 {
		t.Errorf("workgroups = (%d,%d,%d), want (8,1,1)", first.GroupsX, first.GroupsY, first.GroupsZ)
	}
	if len(first.BindGroups) != 1 {
		t.Fatalf("bind groups per dispatch = %d, want 1", len(first.BindGroups))
	}

	// Stable frames must not churn GPU objects.
	if got := fac.CreatedOf(resource.TypeBindGroup); got != 1 {
		t.Errorf("bind groups created = %d, want 1", got)
	}
	if got := fac.CreatedOf(resource.TypeComputePipeline); got != 1 {
		t.Errorf("compute pipelines created = %d, want 1", got)
	}
	for _, d := range fac.Dispatches[1:] {
		if d.BindGroups[0] != first.BindGroups[0] {
			t.Errorf("bind group handle changed between frames: %d vs %d",
				d.BindGroups[0], first.BindGroups[0])
		}
	}
	if fac.BufferWrites != 2 {
		t.Errorf("buffer writes = %d, want 2", fac.BufferWrites)
	}
}

func TestGatherOrderedByBinding(t *testing.T) {
	fac := NewNullFactory()
	c := buildComputeGraph(t, fac)
	if err := c.g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := c.g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	arr, err := c.gather.Out(0).Gathered()
	if err != nil {
		t.Fatalf("Gathered: %v", err)
	}
	if len(arr) != 2 {
		t.Fatalf("gathered len = %d, want 2", len(arr))
	}
	posOut, _ := resource.Get[*Buffer](c.bufA.Out(0), resource.TypeBuffer)
	velOut, _ := resource.Get[*Buffer](c.bufB.Out(0), resource.TypeBuffer)
	got0, _ := resource.Get[*Buffer](arr[0], resource.TypeBuffer)
	got1, _ := resource.Get[*Buffer](arr[1], resource.TypeBuffer)
	if got0 != posOut || got1 != velOut {
		t.Errorf("gathered order wrong: got (%v,%v), want (positions,velocities)", got0, got1)
	}
}

func TestBindGroupRecreatedWhenBufferRecompiles(t *testing.T) {
	fac := NewNullFactory()
	c := buildComputeGraph(t, fac)
	if err := c.g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := c.g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	c.bufA.SetParam("data", make([]byte, 128))
	c.g.MarkDirty(c.bufA)
	if err := c.g.Execute(); err != nil {
		t.Fatalf("Execute after dirty: %v", err)
	}

	if got := fac.CreatedOf(resource.TypeBindGroup); got != 2 {
		t.Errorf("bind groups created = %d, want 2 after buffer recompile", got)
	}
	if got := fac.LiveOf(resource.TypeBindGroup); got != 1 {
		t.Errorf("live bind groups = %d, want 1", got)
	}
	// The shader was untouched, so the pipeline must survive.
	if got := fac.CreatedOf(resource.TypeComputePipeline); got != 1 {
		t.Errorf("compute pipelines created = %d, want 1", got)
	}
}

func TestGraphCleanupReleasesEverything(t *testing.T) {
	fac := NewNullFactory()
	c := buildComputeGraph(t, fac)
	if err := c.g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := c.g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fac.Live() == 0 {
		t.Fatal("expected live GPU objects before Cleanup")
	}
	if err := c.g.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if got := fac.Live(); got != 0 {
		t.Errorf("live objects after Cleanup = %d, want 0", got)
	}
}

// renderGraph wires swapchain -> draw -> present with a depth buffer
// tracking the swapchain extent.
type renderGraph struct {
	g                 *rendergraph.Graph
	device, swapchain *rendergraph.Instance
	depth, draw       *rendergraph.Instance
	present           *rendergraph.Instance
}

func buildRenderGraph(t *testing.T, fac Factory) *renderGraph {
	t.Helper()
	g := rendergraph.New(rendergraph.Options{Name: "render-test"})
	r := &renderGraph{
		g:         g,
		device:    addNode(t, g, "gpu.Device", "device"),
		swapchain: addNode(t, g, "gpu.Swapchain", "swapchain"),
		depth:     addNode(t, g, "gpu.DepthBuffer", "depth"),
		draw:      addNode(t, g, "gpu.Draw", "draw"),
		present:   addNode(t, g, "gpu.Present", "present"),
	}
	shader := addNode(t, g, "gpu.ShaderModule", "shader")
	pipeline := addNode(t, g, "gpu.RenderPipeline", "pipeline")
	vertices := addNode(t, g, "gpu.VertexBuffer", "vertices")

	r.device.SetParam("factory", fac)
	shader.SetParam("spirv", testSPIRV)
	shader.SetParam("layout", mustBundle(t, nil))
	pipeline.SetParam("depth", true)
	vertices.SetParam("data", []float32{0, 0.5, -0.5, -0.5, 0.5, -0.5})
	r.swapchain.SetParam("width", uint32(320))
	r.swapchain.SetParam("height", uint32(240))

	for _, n := range []*rendergraph.Instance{r.swapchain, shader, pipeline, vertices, r.depth, r.draw, r.present} {
		connect(t, g, r.device, 0, n, 0)
	}
	connect(t, g, shader, 0, pipeline, 1)
	connect(t, g, r.swapchain, 0, r.depth, 1)
	connect(t, g, pipeline, 0, r.draw, 1)
	connect(t, g, r.swapchain, 0, r.draw, 2)
	connect(t, g, vertices, 0, r.draw, 3)
	connect(t, g, r.depth, 0, r.draw, 5)
	connect(t, g, r.draw, 0, r.present, 1)
	connect(t, g, r.draw, 1, r.present, 2)
	return r
}

func TestRenderGraphDrawAndPresent(t *testing.T) {
	fac := NewNullFactory()
	r := buildRenderGraph(t, fac)
	if err := r.g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := r.g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(fac.Draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(fac.Draws))
	}
	d := fac.Draws[0]
	if d.VertexCount != 3 || d.InstanceCount != 1 {
		t.Errorf("draw count = (%d,%d), want (3,1)", d.VertexCount, d.InstanceCount)
	}
	if !d.Clear {
		t.Error("first pass should clear the target")
	}
	if d.VertexBuffer == 0 {
		t.Error("vertex buffer not bound")
	}
	if d.Depth == 0 {
		t.Error("depth attachment not bound")
	}

	target, err := resource.Get[*View](r.swapchain.Out(0), resource.TypeTextureView)
	if err != nil {
		t.Fatalf("swapchain target: %v", err)
	}
	if d.Target != target.Handle {
		t.Errorf("draw target = %d, want swapchain view %d", d.Target, target.Handle)
	}
	if len(fac.Presents) != 1 || fac.Presents[0] != target.Handle {
		t.Errorf("presents = %v, want [%d]", fac.Presents, target.Handle)
	}
}

func TestSwapchainResizePropagates(t *testing.T) {
	fac := NewNullFactory()
	r := buildRenderGraph(t, fac)
	if err := r.g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := r.g.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	r.swapchain.SetParam("width", uint32(800))
	r.swapchain.SetParam("height", uint32(600))
	r.g.MarkDirtyByTag(SwapchainTag)
	if err := r.g.Execute(); err != nil {
		t.Fatalf("Execute after resize: %v", err)
	}

	target, err := resource.Get[*View](r.swapchain.Out(0), resource.TypeTextureView)
	if err != nil {
		t.Fatalf("swapchain target: %v", err)
	}
	if target.Width != 800 || target.Height != 600 {
		t.Errorf("target extent = %dx%d, want 800x600", target.Width, target.Height)
	}
	depth, err := resource.Get[*View](r.depth.Out(0), resource.TypeTextureView)
	if err != nil {
		t.Fatalf("depth view: %v", err)
	}
	if depth.Width != 800 || depth.Height != 600 {
		t.Errorf("depth extent = %dx%d, want 800x600", depth.Width, depth.Height)
	}
	if got := fac.Draws[1].Target; got != target.Handle {
		t.Errorf("second draw target = %d, want resized view %d", got, target.Handle)
	}
	// The old attachment must be gone: one swapchain texture plus one
	// depth texture alive.
	if got := fac.LiveOf(resource.TypeTexture); got != 2 {
		t.Errorf("live textures = %d, want 2", got)
	}
}

func TestTextureNodeRescalesImage(t *testing.T) {
	fac := NewNullFactory()
	g := rendergraph.New(rendergraph.Options{})
	dev := addNode(t, g, "gpu.Device", "device")
	tex := addNode(t, g, "gpu.Texture", "tex")
	dev.SetParam("factory", fac)

	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	tex.SetParam("image", src)
	tex.SetParam("width", uint32(4))
	tex.SetParam("height", uint32(4))
	connect(t, g, dev, 0, tex, 0)

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	w := fac.LastTextureWrite
	if w.Bytes != 4*4*4 {
		t.Errorf("upload bytes = %d, want 64", w.Bytes)
	}
	if w.BytesPerRow != 16 {
		t.Errorf("bytes per row = %d, want 16", w.BytesPerRow)
	}
	if w.Extent != (Extent{Width: 4, Height: 4, Depth: 1}) {
		t.Errorf("upload extent = %+v, want 4x4x1", w.Extent)
	}
}

func TestDepthBufferNeedsExtent(t *testing.T) {
	fac := NewNullFactory()
	g := rendergraph.New(rendergraph.Options{})
	dev := addNode(t, g, "gpu.Device", "device")
	depth := addNode(t, g, "gpu.DepthBuffer", "depth")
	dev.SetParam("factory", fac)
	connect(t, g, dev, 0, depth, 0)

	err := g.Compile()
	if !errors.Is(err, ErrBadParam) {
		t.Fatalf("Compile = %v, want ErrBadParam", err)
	}
}

func TestSamplerRejectsUnknownFilter(t *testing.T) {
	fac := NewNullFactory()
	g := rendergraph.New(rendergraph.Options{})
	dev := addNode(t, g, "gpu.Device", "device")
	smp := addNode(t, g, "gpu.Sampler", "sampler")
	dev.SetParam("factory", fac)
	smp.SetParam("filter", "cubic")
	connect(t, g, dev, 0, smp, 0)

	err := g.Compile()
	if !errors.Is(err, ErrBadParam) {
		t.Fatalf("Compile = %v, want ErrBadParam", err)
	}
}

func TestDeviceNodeRequiresFactory(t *testing.T) {
	g := rendergraph.New(rendergraph.Options{})
	addNode(t, g, "gpu.Device", "device")

	err := g.Compile()
	if !errors.Is(err, ErrNoFactory) {
		t.Fatalf("Compile = %v, want ErrNoFactory", err)
	}
}

func TestShaderNodeNeedsSource(t *testing.T) {
	fac := NewNullFactory()
	g := rendergraph.New(rendergraph.Options{})
	dev := addNode(t, g, "gpu.Device", "device")
	sh := addNode(t, g, "gpu.ShaderModule", "shader")
	dev.SetParam("factory", fac)
	connect(t, g, dev, 0, sh, 0)

	err := g.Compile()
	if !errors.Is(err, ErrBadParam) {
		t.Fatalf("Compile = %v, want ErrBadParam", err)
	}
}

func TestGathererRejectsUnknownSlot(t *testing.T) {
	fac := NewNullFactory()
	c := buildComputeGraph(t, fac)
	extra := addNode(t, c.g, "gpu.Buffer", "extra")
	extra.SetParam("data", make([]byte, 16))
	connect(t, c.g, c.device, 0, extra, 0)
	if err := c.g.ConnectVariadic(extra, 0, c.gather, "missing", 7); err != nil {
		t.Fatalf("ConnectVariadic: %v", err)
	}

	err := c.g.Compile()
	if !errors.Is(err, rendergraph.ErrVariadicTypeMismatch) {
		t.Fatalf("Compile = %v, want ErrVariadicTypeMismatch", err)
	}
}

func TestVertexBufferPacksFloats(t *testing.T) {
	fac := NewNullFactory()
	g := rendergraph.New(rendergraph.Options{})
	dev := addNode(t, g, "gpu.Device", "device")
	vb := addNode(t, g, "gpu.VertexBuffer", "vertices")
	dev.SetParam("factory", fac)
	vb.SetParam("data", []float32{1, 2, 3, 4})
	connect(t, g, dev, 0, vb, 0)

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	buf, err := resource.Get[*Buffer](vb.Out(0), resource.TypeBuffer)
	if err != nil {
		t.Fatalf("buffer out: %v", err)
	}
	if buf.Size != 16 {
		t.Errorf("buffer size = %d, want 16", buf.Size)
	}
	if buf.Usage&resource.BufferUsageVertex == 0 {
		t.Error("buffer missing vertex usage")
	}
	if fac.BufferWrites != 1 {
		t.Errorf("buffer writes = %d, want 1", fac.BufferWrites)
	}
}

func TestRenderPipelineWithoutBindings(t *testing.T) {
	fac := NewNullFactory()
	g := rendergraph.New(rendergraph.Options{})
	dev := addNode(t, g, "gpu.Device", "device")
	sh := addNode(t, g, "gpu.ShaderModule", "shader")
	pipe := addNode(t, g, "gpu.RenderPipeline", "pipeline")
	dev.SetParam("factory", fac)
	sh.SetParam("spirv", testSPIRV)
	sh.SetParam("layout", mustBundle(t, nil))
	connect(t, g, dev, 0, sh, 0)
	connect(t, g, dev, 0, pipe, 0)
	connect(t, g, sh, 0, pipe, 1)

	if err := g.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	out, err := resource.Get[*RenderPipeline](pipe.Out(0), resource.TypeRenderPipeline)
	if err != nil {
		t.Fatalf("pipeline out: %v", err)
	}
	if out.Handle == 0 {
		t.Fatal("pipeline handle not set")
	}
	if out.Layout != nil {
		t.Errorf("layout = %+v, want nil for a bindingless shader", out.Layout)
	}
	if got := fac.CreatedOf(resource.TypeBindGroupLayout); got != 0 {
		t.Errorf("bind group layouts created = %d, want 0", got)
	}
}
