package nodes

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/resource"
)

// BufferNode creates a GPU buffer from a size or an initial byte
// payload. The "usage" parameter defaults to storage + copy-dst; pass
// explicit flags for uniform or vertex use.
type BufferNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.Buffer",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "buffer", resource.TypeBuffer),
		},
		Params: map[string]any{
			"size":  uint64(0),
			"usage": resource.BufferUsageStorage | resource.BufferUsageCopyDst,
			"data":  nil,
			"label": "",
		},
	}, func() rendergraph.NodeLogic { return &BufferNode{} })
}

// Compile creates the buffer and uploads the initial data, if any.
func (b *BufferNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	data, _ := n.Param("data").([]byte)
	size := rendergraph.ParamAs(n, "size", uint64(0))
	if size == 0 {
		size = uint64(len(data))
	}
	usage := rendergraph.ParamAs(n, "usage", resource.BufferUsageStorage|resource.BufferUsageCopyDst)

	desc := &resource.BufferDescriptor{
		Label: rendergraph.ParamAs(n, "label", n.Name()),
		Size:  size,
		Usage: usage,
	}
	fac := dev.Factory
	h, err := fac.CreateBuffer(desc)
	if err != nil {
		return err
	}
	n.OnCleanup(func() error { return fac.Destroy(resource.TypeBuffer, h) })

	if len(data) > 0 {
		if err := fac.WriteBuffer(h, 0, data); err != nil {
			return err
		}
	}
	return n.SetOut(0, resource.New(resource.TypeBuffer,
		&Buffer{Handle: h, Size: size, Usage: usage}))
}

// VertexBufferNode creates a vertex buffer from float32 data in the
// "data" parameter.
type VertexBufferNode struct {
	rendergraph.BaseNode
}

func init() {
	rendergraph.MustRegisterType(&rendergraph.Schema{
		TypeName: "gpu.VertexBuffer",
		Inputs: []rendergraph.SlotDescriptor{
			rendergraph.InputSlot(0, "device", resource.TypeDevice),
		},
		Outputs: []rendergraph.SlotDescriptor{
			rendergraph.OutputSlot(0, "buffer", resource.TypeBuffer),
		},
		Params: map[string]any{
			"data":  nil,
			"label": "",
		},
	}, func() rendergraph.NodeLogic { return &VertexBufferNode{} })
}

// Compile packs the vertex data and creates the buffer.
func (v *VertexBufferNode) Compile(n *rendergraph.Instance) error {
	dev, err := deviceIn(n, 0)
	if err != nil {
		return err
	}
	data, _ := n.Param("data").([]float32)
	if len(data) == 0 {
		return fmt.Errorf("%w: vertex buffer needs a non-empty %q parameter", ErrBadParam, "data")
	}

	bytes := vertexBytes(data)
	usage := resource.BufferUsageVertex | resource.BufferUsageCopyDst
	desc := &resource.BufferDescriptor{
		Label: rendergraph.ParamAs(n, "label", n.Name()),
		Size:  uint64(len(bytes)),
		Usage: usage,
	}
	fac := dev.Factory
	h, err := fac.CreateBuffer(desc)
	if err != nil {
		return err
	}
	n.OnCleanup(func() error { return fac.Destroy(resource.TypeBuffer, h) })

	if err := fac.WriteBuffer(h, 0, bytes); err != nil {
		return err
	}
	return n.SetOut(0, resource.New(resource.TypeBuffer,
		&Buffer{Handle: h, Size: desc.Size, Usage: usage}))
}

// vertexBytes packs float32 vertex data little-endian.
func vertexBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
