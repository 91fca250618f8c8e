package nodes

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// DrawNode submits one render pass per frame against the connected
// color target, with optional vertex buffer, bind groups and depth
// attachment. The target view is passed through on output 0 so a chain
// of draw nodes composes into one frame, each pass loading the previous
// pass's result when "clear" is false.
type DrawNode struct {
	rendergraph.BaseNode

	submissions uint64
}

func init() {
	groups := rendergraph.ExecInput(4, "groups", resource.TypeBindGroup)
	groups.Arity = rendergraph.ArrayArity(0, 4)

	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Draw",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
			rendergraph.InputSlot(1, "pipeline", resource.TypeRenderPipeline),
			rendergraph.InputSlot(2, "target", resource.TypeTextureView),
			rendergraph.OptionalInput(3, "vertices", resource.TypeBuffer),
			groups,
			rendergraph.OptionalInput(5, "depth", resource.TypeTextureView),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "target", resource.TypeTextureView),
			rendergraph.TransientOutput(1, "done", resource.TypeScalar),
		},
		Params: map[string]any{
			"count":       uint32(3),
			"instances":   uint32(1),
			"clear":       true,
			"clear_color": gputypes.Color{A: 1},
			"label":       "",
		},
	}, func() rendergraph.NodeLogic { return &DrawNode{} })
}

// Compile passes the color target through.
func (d *DrawNode) Compile(n *rendergraph.Instance) error {
	return n.SetOut(0, n.In(2))
}

// Execute submits the pass.
func (d *DrawNode) Execute(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	pipe, err := resource.Get[*RenderPipeline](n.In(1), resource.TypeRenderPipeline)
	if err != nil {
		return err
	}
	target, err := resource.Get[*View](n.In(2), resource.TypeTextureView)
	if err != nil {
		return err
	}

	opts := &DrawOptions{
		Label:         rendergraph.ParamAs(n, "label", n.Name()),
		Pipeline:      pipe.Handle,
		Target:        target.Handle,
		VertexCount:   rendergraph.ParamAs(n, "count", uint32(3)),
		InstanceCount: rendergraph.ParamAs(n, "instances", uint32(1)),
		Clear:         rendergraph.ParamAs(n, "clear", true),
		ClearColor:    rendergraph.ParamAs(n, "clear_color", gputypes.Color{A: 1}),
	}
	if n.InConnected(3) {
		vb, err := resource.Get[*Buffer](n.In(3), resource.TypeBuffer)
		if err != nil {
			return err
		}
		opts.VertexBuffer = vb.Handle
	}
	for _, v := range n.Ins(4) {
		bg, err := resource.Get[*BindGroup](v, resource.TypeBindGroup)
		if err != nil {
			return err
		}
		opts.BindGroups = append(opts.BindGroups, bg.Handle)
	}
	if n.InConnected(5) {
		depth, err := resource.Get[*View](n.In(5), resource.TypeTextureView)
		if err != nil {
			return err
		}
		opts.Depth = depth.Handle
	}

	if err := dev.Factory.Draw(opts); err != nil {
		return err
	}

	d.submissions++
	return n.SetOut(1, resource.New(resource.TypeScalar, d.submissions))
}
