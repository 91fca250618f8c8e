package nodes

import (
	"fmt"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// BindGroupNode builds a bind group from a layout and a gathered
// resource array, writing entries positionally: gathered element i
// fills the layout's entry i. The group is (re)created during Execute
// only when an input actually changed, so stable frames reuse the same
// GPU object.
type BindGroupNode struct {
	rendergraph.BaseNode

	fac   Factory
	group Handle
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.BindGroup",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
			rendergraph.InputSlot(1, "layout", resource.TypeBindGroupLayout),
			rendergraph.InputSlot(2, "resources", resource.TypeGathered),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "group", resource.TypeBindGroup),
		},
		Params: map[string]any{
			"label": "",
		},
	}, func() rendergraph.NodeLogic { return &BindGroupNode{} })
}

// Compile stashes the factory and arms cleanup for whatever group is
// live when the node is released.
func (b *BindGroupNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	b.fac = dev.Factory
	n.OnCleanup(func() error { return b.release() })
	return nil
}

func (b *BindGroupNode) release() error {
	if b.group == 0 {
		return nil
	}
	h := b.group
	b.group = 0
	return b.fac.Destroy(resource.TypeBindGroup, h)
}

// Execute rebuilds the group when the layout or a gathered resource
// changed since the previous frame.
func (b *BindGroupNode) Execute(n *rendergraph.Instance) error {
	if b.group != 0 && !n.InputsChanged() {
		return nil
	}
	layout, err := resource.Get[*BindGroupLayout](n.In(1), resource.TypeBindGroupLayout)
	if err != nil {
		return err
	}
	gathered, err := n.In(2).Gathered()
	if err != nil {
		return err
	}
	if len(gathered) != len(layout.Entries) {
		return fmt.Errorf("%w: %d gathered resources for %d layout entries",
			ErrBadParam, len(gathered), len(layout.Entries))
	}

	entries := make([]GroupEntry, len(gathered))
	for i, v := range gathered {
		e := GroupEntry{Binding: layout.Entries[i].Binding}
		switch payload := valueOf(v).(type) {
		case *Buffer:
			e.Buffer = payload.Handle
		case *View:
			e.View = payload.Handle
		case *Sampler:
			e.Sampler = payload.Handle
		default:
			return fmt.Errorf("%w: gathered element %d holds %T", ErrBadParam, i, payload)
		}
		entries[i] = e
	}

	if err := b.release(); err != nil {
		rendergraph.Logger().Warn("stale bind group release failed", "node", n.Name(), "err", err)
	}
	h, err := b.fac.CreateBindGroup(rendergraph.ParamAs(n, "label", n.Name()), layout.Handle, entries)
	if err != nil {
		return err
	}
	b.group = h
	return n.SetOut(0, resource.New(resource.TypeBindGroup,
		&BindGroup{Handle: h, Layout: layout}))
}

// valueOf unwraps a Variant's payload regardless of tag.
func valueOf(v resource.Variant) any {
	raw, err := v.Value(v.Type())
	if err != nil {
		return nil
	}
	return raw
}
