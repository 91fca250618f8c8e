// Command rgdump builds a demonstration frame graph, runs a few frames
// against the recording factory and dumps what the graph asked the GPU
// to do. Useful for eyeballing execution order, dirty propagation and
// resource lifetimes without a GPU.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/nodes"
	"github.com/gogpu/rendergraph/reflection"
)

func main() {
	var (
		frames = flag.Int("frames", 3, "frames to execute")
		resize = flag.Bool("resize", true, "resize the swapchain mid-run")
	)
	flag.Parse()

	fac := nodes.NewNullFactory()
	g := buildGraph(fac)

	if err := g.Compile(); err != nil {
		log.Fatalf("compile: %v", err)
	}
	fmt.Println("execution order:")
	for i, name := range g.ExecutionOrder() {
		fmt.Printf("  %2d. %s\n", i, name)
	}

	for frame := 0; frame < *frames; frame++ {
		if *resize && frame == *frames/2 {
			sc, _ := g.Node("swapchain")
			sc.SetParam("width", uint32(1280))
			sc.SetParam("height", uint32(720))
			g.MarkDirtyByTag(nodes.SwapchainTag)
			fmt.Printf("frame %d: resized swapchain to 1280x720\n", frame)
		}
		if err := g.Execute(); err != nil {
			log.Fatalf("execute frame %d: %v", frame, err)
		}
	}

	fmt.Printf("\nafter %d frames:\n", g.Frame())
	fmt.Printf("  dispatches: %d\n", len(fac.Dispatches))
	fmt.Printf("  draws:      %d\n", len(fac.Draws))
	fmt.Printf("  presents:   %d\n", len(fac.Presents))
	fmt.Printf("  live objects: %d\n", fac.Live())

	fmt.Println("\nper-node stats:")
	for _, n := range g.Nodes() {
		s := n.Stats()
		fmt.Printf("  %-14s executes=%d lastCompile=%v lastExecute=%v\n",
			n.Name(), s.Executes, s.LastCompile, s.LastExecute)
	}

	if err := g.Cleanup(); err != nil {
		log.Fatalf("cleanup: %v", err)
	}
	fmt.Printf("\nlive objects after cleanup: %d\n", fac.Live())
}

// buildGraph wires a compute pass feeding a render pass: a simulation
// dispatch writes a storage buffer, then a fullscreen draw renders into
// the swapchain and presents.
func buildGraph(fac nodes.Factory) *rendergraph.Graph {
	computeBundle, err := reflection.FromBindings([]reflection.Binding{
		{Group: 0, Index: 0, Kind: reflection.KindStorageBuffer, Name: "particles", Size: 4096},
	})
	if err != nil {
		log.Fatalf("bundle: %v", err)
	}
	renderBundle, err := reflection.FromBindings(nil)
	if err != nil {
		log.Fatalf("bundle: %v", err)
	}

	g := rendergraph.New(rendergraph.Options{Name: "rgdump"})
	add := func(typeName, name string) *rendergraph.Instance {
		n, err := g.AddNode(typeName, name)
		if err != nil {
			log.Fatalf("add %s: %v", name, err)
		}
		return n
	}
	connect := func(from *rendergraph.Instance, out int, to *rendergraph.Instance, in int) {
		if err := g.Connect(from, out, to, in); err != nil {
			log.Fatalf("connect %s -> %s: %v", from.Name(), to.Name(), err)
		}
	}

	device := add("gpu.Device", "device")
	sim := add("gpu.ShaderModule", "sim-shader")
	pipeline := add("gpu.ComputePipeline", "sim-pipeline")
	particles := add("gpu.Buffer", "particles")
	gather := add("gpu.Gatherer", "gather")
	bind := add("gpu.BindGroup", "bind")
	dispatch := add("gpu.Dispatch", "dispatch")
	blit := add("gpu.ShaderModule", "blit-shader")
	rpipe := add("gpu.RenderPipeline", "blit-pipeline")
	verts := add("gpu.VertexBuffer", "quad")
	swapchain := add("gpu.Swapchain", "swapchain")
	draw := add("gpu.Draw", "draw")
	present := add("gpu.Present", "present")

	device.SetParam("factory", fac)
	sim.SetParam("spirv", []uint32{0x07230203, 0, 0, 0})
	sim.SetParam("layout", computeBundle)
	blit.SetParam("spirv", []uint32{0x07230203, 0, 0, 1})
	blit.SetParam("layout", renderBundle)
	particles.SetParam("size", uint64(4096))
	dispatch.SetParam("x", uint32(64))
	verts.SetParam("data", []float32{-1, -1, 3, -1, -1, 3})
	swapchain.SetParam("width", uint32(640))
	swapchain.SetParam("height", uint32(480))

	for _, n := range []*rendergraph.Instance{
		sim, pipeline, particles, bind, dispatch, blit, rpipe, verts, swapchain, draw, present,
	} {
		connect(device, 0, n, 0)
	}
	connect(sim, 0, pipeline, 1)
	connect(sim, 1, gather, 0)
	connect(pipeline, 1, bind, 1)
	connect(gather, 0, bind, 2)
	connect(pipeline, 0, dispatch, 1)
	connect(bind, 0, dispatch, 2)
	connect(blit, 0, rpipe, 1)
	connect(rpipe, 0, draw, 1)
	connect(swapchain, 0, draw, 2)
	connect(verts, 0, draw, 3)
	connect(draw, 0, present, 1)
	connect(draw, 1, present, 2)
	if err := g.ConnectVariadic(particles, 0, gather, "particles", 0); err != nil {
		log.Fatalf("connect particles: %v", err)
	}
	return g
}
