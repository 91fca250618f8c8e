package nodes

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// DeviceNode introduces the GPU into a graph. It owns nothing: the
// Factory comes in through the "factory" parameter and an optional
// host provider through "provider". Every other gpu.* node reaches the
// factory through this node's device output.
type DeviceNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Device",
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "device", resource.TypeDevice),
			rendergraph.OutputSlot(1, "queue", resource.TypeQueue),
			rendergraph.OutputSlot(2, "adapter", resource.TypeAdapter),
		},
		Params: map[string]any{
			"factory":  nil,
			"provider": nil,
		},
	}, func() rendergraph.NodeLogic { return &DeviceNode{} })
}

// Compile publishes the device payload, plus queue and adapter handles
// when a host provider is configured.
func (d *DeviceNode) Compile(n *rendergraph.Instance) error {
	fac, ok := n.Param("factory").(Factory)
	if !ok || fac == nil {
		return fmt.Errorf("%w: set the %q parameter", ErrNoFactory, "factory")
	}

	dev := &Device{Factory: fac, Format: gputypes.TextureFormatRGBA8Unorm}
	if p, ok := n.Param("provider").(gpucontext.DeviceProvider); ok && p != nil {
		dev.Provider = p
		if f := p.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			dev.Format = f
		}
	}

	if err := n.SetOut(0, resource.New(resource.TypeDevice, dev)); err != nil {
		return err
	}
	if dev.Provider != nil {
		if err := n.SetOut(1, resource.New(resource.TypeQueue, dev.Provider.Queue())); err != nil {
			return err
		}
		if err := n.SetOut(2, resource.New(resource.TypeAdapter, dev.Provider.Adapter())); err != nil {
			return err
		}
	}
	return nil
}
