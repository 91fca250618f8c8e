package nodes

import (
	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/reflection"
	"github.com/gogpu/rendergraph/resource"
)

// GathererNode matches its variadic resource connections against a
// shader's reflected binding interface and publishes the confirmed
// values as one array, ordered by ascending binding index.
//
// Connections are made with Graph.ConnectVariadic under the shader's
// binding names; negotiation happens at Compile against the bundle on
// the "bindings" input, so a shader edit that changes the interface
// fails the gatherer's recompile instead of producing a skewed array.
type GathererNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Gatherer",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "bindings", resource.TypeReflection),
			{
				Index: 1, Name: "resources", Type: resource.TypeGathered,
				Arity: rendergraph.VariadicArity(0, 0),
			},
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.TransientOutput(0, "gathered", resource.TypeGathered),
		},
	}, func() rendergraph.NodeLogic { return &GathererNode{} })
}

// Compile negotiates the variadic slots against the reflection bundle.
func (g *GathererNode) Compile(n *rendergraph.Instance) error {
	bundle, err := resource.Get[*reflection.Bundle](n.In(0), resource.TypeReflection)
	if err != nil {
		return err
	}
	return n.Variadic().Negotiate(bundle)
}

// Execute publishes this frame's gathered array.
func (g *GathererNode) Execute(n *rendergraph.Instance) error {
	v, err := n.Variadic().Gather()
	if err != nil {
		return err
	}
	return n.SetOut(0, v)
}
