package nodes

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// SwapchainTag marks swapchain nodes so a window resize can dirty all
// of them at once with Graph.MarkDirtyByTag.
const SwapchainTag = "swapchain"

// SwapchainNode owns the frame's presentation target: a render
// attachment texture sized to the window, recreated whenever the node
// recompiles. Resize by updating the width/height parameters and
// calling Graph.MarkDirtyByTag(SwapchainTag); dependent nodes such as
// DepthBufferNode recompile with it.
type SwapchainNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Swapchain",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "target", resource.TypeTextureView),
			rendergraph.OutputSlot(1, "texture", resource.TypeTexture),
		},
		Params: map[string]any{
			"width":  uint32(640),
			"height": uint32(480),
			"format": gputypes.TextureFormatUndefined,
			"label":  "",
		},
	}, func() rendergraph.NodeLogic { return &SwapchainNode{} })
}

// Setup tags the node for resize propagation.
func (s *SwapchainNode) Setup(n *rendergraph.Instance) error {
	n.AddTag(SwapchainTag)
	return nil
}

// Compile creates the attachment at the current extent.
func (s *SwapchainNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	format := rendergraph.ParamAs(n, "format", gputypes.TextureFormatUndefined)
	if format == gputypes.TextureFormatUndefined {
		format = dev.Format
	}
	w := rendergraph.ParamAs(n, "width", uint32(640))
	h := rendergraph.ParamAs(n, "height", uint32(480))
	label := rendergraph.ParamAs(n, "label", n.Name())

	desc := resource.ImageDescriptor{
		Label:         label,
		Width:         w,
		Height:        h,
		Depth:         1,
		MipLevelCount: 1,
		SampleCount:   1,
		Format:        format,
		Usage:         resource.TextureUsageRenderAttachment | resource.TextureUsageCopySrc,
	}
	if err := desc.Validate(); err != nil {
		return err
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

	if err := n.SetOut(0, resource.New(resource.TypeTextureView,
		&View{Handle: vh, Format: format, Width: w, Height: h})); err != nil {
		return err
	}
	return n.SetOut(1, resource.New(resource.TypeTexture, &Texture{Handle: th, Desc: desc}))
}
