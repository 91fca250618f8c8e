package nodes

import (
	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// PresentNode hands the finished frame's view to the factory at the end
// of each frame. The "after" input takes submission counters from draw
// or dispatch nodes so presentation orders behind them; its values are
// otherwise ignored.
type PresentNode struct {
	rendergraph.BaseNode
}

func init() {
	after := rendergraph.ExecInput(2, "after", resource.TypeScalar)
	after.Arity = rendergraph.ArrayArity(0, 0)

	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Present",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
			rendergraph.InputSlot(1, "target", resource.TypeTextureView),
			after,
		},
	}, func() rendergraph.NodeLogic { return &PresentNode{} })
}

// Execute presents the target view.
func (p *PresentNode) Execute(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	target, err := resource.Get[*View](n.In(1), resource.TypeTextureView)
	if err != nil {
		return err
	}
	return dev.Factory.Present(target.Handle)
}
