package nodes

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// DepthBufferNode creates a depth/stencil attachment. The extent comes
// from the optional "target" input (typically a swapchain view) so the
// depth buffer tracks resizes, or from explicit width/height params.
type DepthBufferNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.DepthBuffer",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
			rendergraph.OptionalInput(1, "target", resource.TypeTextureView),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "depth", resource.TypeTextureView),
		},
		Params: map[string]any{
			"width":   uint32(0),
			"height":  uint32(0),
			"samples": uint32(1),
			"label":   "",
		},
	}, func() rendergraph.NodeLogic { return &DepthBufferNode{} })
}

// Compile creates the depth texture and its view.
func (d *DepthBufferNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	w := rendergraph.ParamAs(n, "width", uint32(0))
	h := rendergraph.ParamAs(n, "height", uint32(0))
	if n.InConnected(1) {
		target, err := resource.Get[*View](n.In(1), resource.TypeTextureView)
		if err != nil {
			return err
		}
		w, h = target.Width, target.Height
	}
	if w == 0 || h == 0 {
		return fmt.Errorf("%w: depth buffer needs an extent (connect %q or set width/height)",
			ErrBadParam, "target")
	}

	label := rendergraph.ParamAs(n, "label", n.Name())
	desc := resource.ImageDescriptor{
		Label:         label,
		Width:         w,
		Height:        h,
		Depth:         1,
		MipLevelCount: 1,
		SampleCount:   rendergraph.ParamAs(n, "samples", uint32(1)),
		Format:        gputypes.TextureFormatDepth24PlusStencil8,
		Usage:         resource.TextureUsageRenderAttachment,
	}
	fac := dev.Factory
	th, err := fac.CreateTexture(&desc)
	if err != nil {
		return err
	}
	n.OnCleanup(func() error { return fac.Destroy(resource.TypeTexture, th) })

	vh, err := fac.CreateView(th, label)
	if err != nil {
		return err
	}
	n.OnCleanup(func() error { return fac.Destroy(resource.TypeTextureView, vh) })

	return n.SetOut(0, resource.New(resource.TypeTextureView,
		&View{Handle: vh, Format: desc.Format, Width: w, Height: h}))
}
