package nodes

import (
	"image"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// TextureNode creates a sampled 2D texture plus its default view, and
// optionally uploads an image.Image from the "image" parameter. When
// the requested extent differs from the source image, pixels are
// rescaled on the CPU with a bilinear kernel before upload.
type TextureNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Texture",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "texture", resource.TypeTexture),
			rendergraph.OutputSlot(1, "view", resource.TypeTextureView),
		},
		Params: map[string]any{
			"image":  nil,
			"width":  uint32(0),
			"height": uint32(0),
			"format": gputypes.TextureFormatRGBA8Unorm,
			"label":  "",
		},
	}, func() rendergraph.NodeLogic { return &TextureNode{} })
}

// Compile creates texture and view, uploading the source image if set.
func (t *TextureNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	src, _ := n.Param("image").(image.Image)
	w := rendergraph.ParamAs(n, "width", uint32(0))
	h := rendergraph.ParamAs(n, "height", uint32(0))
	if src != nil {
		b := src.Bounds()
		if w == 0 {
			w = uint32(b.Dx())
		}
		if h == 0 {
			h = uint32(b.Dy())
		}
	}
	format := rendergraph.ParamAs(n, "format", gputypes.TextureFormatRGBA8Unorm)
	label := rendergraph.ParamAs(n, "label", n.Name())

	desc := resource.DefaultImageDescriptor(w, h, format)
	desc.Label = label
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

	if src != nil {
		pix := rgbaPixels(src, w, h)
		if err := fac.WriteTexture(th, pix, w*4, Extent{Width: w, Height: h, Depth: 1}); err != nil {
			return err
		}
	}

	if err := n.SetOut(0, resource.New(resource.TypeTexture, &Texture{Handle: th, Desc: desc})); err != nil {
		return err
	}
	return n.SetOut(1, resource.New(resource.TypeTextureView,
		&View{Handle: vh, Format: format, Width: w, Height: h}))
}

// rgbaPixels converts src to tightly packed RGBA at the requested
// extent, rescaling when the sizes differ.
func rgbaPixels(src image.Image, w, h uint32) []byte {
	dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	sb := src.Bounds()
	if sb.Dx() == int(w) && sb.Dy() == int(h) {
		xdraw.Draw(dst, dst.Bounds(), src, sb.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	}
	return dst.Pix
}
