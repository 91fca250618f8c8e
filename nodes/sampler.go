package nodes

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// SamplerNode creates a texture sampler. Parameters: "filter" is
// "linear" or "nearest", "address" is "clamp" or "repeat".
type SamplerNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Sampler",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "sampler", resource.TypeSampler),
		},
		Params: map[string]any{
			"filter":  "linear",
			"address": "clamp",
			"label":   "",
		},
	}, func() rendergraph.NodeLogic { return &SamplerNode{} })
}

// Compile creates the sampler.
func (s *SamplerNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	opts := &SamplerOptions{Label: rendergraph.ParamAs(n, "label", n.Name())}

	switch filter := rendergraph.ParamAs(n, "filter", "linear"); filter {
	case "linear":
		opts.MagFilter = gputypes.FilterModeLinear
		opts.MinFilter = gputypes.FilterModeLinear
	case "nearest":
		opts.MagFilter = gputypes.FilterModeNearest
		opts.MinFilter = gputypes.FilterModeNearest
	default:
		return fmt.Errorf("%w: filter %q", ErrBadParam, filter)
	}
	switch address := rendergraph.ParamAs(n, "address", "clamp"); address {
	case "clamp":
		opts.AddressMode = gputypes.AddressModeClampToEdge
	case "repeat":
		opts.AddressMode = gputypes.AddressModeRepeat
	default:
		return fmt.Errorf("%w: address mode %q", ErrBadParam, address)
	}

	fac := dev.Factory
	h, err := fac.CreateSampler(opts)
	if err != nil {
		return err
	}
	n.OnCleanup(func() error { return fac.Destroy(resource.TypeSampler, h) })

	return n.SetOut(0, resource.New(resource.TypeSampler, &Sampler{Handle: h}))
}
