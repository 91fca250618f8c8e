package nodes

import (
	"fmt"

	"github.com/gogpu/rendergraph/resource"
)

// NullFactory is an allocating no-op Factory. Every create issues a
// fresh handle and records the object's type; destroys validate their
// handles. Submissions are recorded instead of executed, so tests can
// assert on exactly what a graph asked the GPU to do.
type NullFactory struct {
	next    Handle
	objects map[Handle]resource.Type
	created map[resource.Type]int

	// Dispatches, Draws and Presents record submissions in order.
	Dispatches []DispatchOptions
	Draws      []DrawOptions
	Presents   []Handle

	// BufferWrites and TextureWrites count upload calls.
	BufferWrites  int
	TextureWrites int

	// LastTextureWrite is the most recent WriteTexture payload.
	LastTextureWrite struct {
		Tex         Handle
		Bytes       int
		BytesPerRow uint32
		Extent      Extent
	}
}

// NewNullFactory creates an empty NullFactory.
func NewNullFactory() *NullFactory {
	return &NullFactory{
		objects: make(map[Handle]resource.Type),
		created: make(map[resource.Type]int),
	}
}

// Live returns the number of objects created and not yet destroyed.
func (f *NullFactory) Live() int { return len(f.objects) }

// LiveOf returns the number of live objects with the given type tag.
func (f *NullFactory) LiveOf(t resource.Type) int {
	count := 0
	for _, ot := range f.objects {
		if ot == t {
			count++
		}
	}
	return count
}

// CreatedOf returns the total number of objects of the given type ever
// created, destroyed or not.
func (f *NullFactory) CreatedOf(t resource.Type) int { return f.created[t] }

func (f *NullFactory) alloc(t resource.Type) Handle {
	f.next++
	f.objects[f.next] = t
	f.created[t]++
	return f.next
}

func (f *NullFactory) check(t resource.Type, h Handle) error {
	ot, ok := f.objects[h]
	if !ok {
		return fmt.Errorf("%w: %s handle %d", ErrUnknownHandle, t, h)
	}
	if ot != t {
		return fmt.Errorf("%w: handle %d is %s, not %s", ErrUnknownHandle, h, ot, t)
	}
	return nil
}

// CreateShaderModule implements Factory.
func (f *NullFactory) CreateShaderModule(label string, spirv []uint32) (Handle, error) {
	if len(spirv) == 0 {
		return 0, fmt.Errorf("%w: empty shader module %q", ErrBadParam, label)
	}
	return f.alloc(resource.TypeShaderModule), nil
}

// CreateBuffer implements Factory.
func (f *NullFactory) CreateBuffer(desc *resource.BufferDescriptor) (Handle, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	return f.alloc(resource.TypeBuffer), nil
}

// WriteBuffer implements Factory.
func (f *NullFactory) WriteBuffer(buf Handle, offset uint64, data []byte) error {
	if err := f.check(resource.TypeBuffer, buf); err != nil {
		return err
	}
	f.BufferWrites++
	return nil
}

// CreateTexture implements Factory.
func (f *NullFactory) CreateTexture(desc *resource.ImageDescriptor) (Handle, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	return f.alloc(resource.TypeTexture), nil
}

// WriteTexture implements Factory.
func (f *NullFactory) WriteTexture(tex Handle, data []byte, bytesPerRow uint32, extent Extent) error {
	if err := f.check(resource.TypeTexture, tex); err != nil {
		return err
	}
	f.TextureWrites++
	f.LastTextureWrite.Tex = tex
	f.LastTextureWrite.Bytes = len(data)
	f.LastTextureWrite.BytesPerRow = bytesPerRow
	f.LastTextureWrite.Extent = extent
	return nil
}

// CreateView implements Factory.
func (f *NullFactory) CreateView(tex Handle, label string) (Handle, error) {
	if err := f.check(resource.TypeTexture, tex); err != nil {
		return 0, err
	}
	return f.alloc(resource.TypeTextureView), nil
}

// CreateSampler implements Factory.
func (f *NullFactory) CreateSampler(opts *SamplerOptions) (Handle, error) {
	return f.alloc(resource.TypeSampler), nil
}

// CreateBindGroupLayout implements Factory.
func (f *NullFactory) CreateBindGroupLayout(label string, entries []LayoutEntry) (Handle, error) {
	return f.alloc(resource.TypeBindGroupLayout), nil
}

// CreateBindGroup implements Factory.
func (f *NullFactory) CreateBindGroup(label string, layout Handle, entries []GroupEntry) (Handle, error) {
	if err := f.check(resource.TypeBindGroupLayout, layout); err != nil {
		return 0, err
	}
	for _, e := range entries {
		switch {
		case e.Buffer != 0:
			if err := f.check(resource.TypeBuffer, e.Buffer); err != nil {
				return 0, err
			}
		case e.View != 0:
			if err := f.check(resource.TypeTextureView, e.View); err != nil {
				return 0, err
			}
		case e.Sampler != 0:
			if err := f.check(resource.TypeSampler, e.Sampler); err != nil {
				return 0, err
			}
		default:
			return 0, fmt.Errorf("%w: bind group %q entry %d has no resource", ErrBadParam, label, e.Binding)
		}
	}
	return f.alloc(resource.TypeBindGroup), nil
}

// CreateComputePipeline implements Factory.
func (f *NullFactory) CreateComputePipeline(opts *ComputePipelineOptions) (Handle, error) {
	if err := f.check(resource.TypeShaderModule, opts.Module); err != nil {
		return 0, err
	}
	return f.alloc(resource.TypeComputePipeline), nil
}

// CreateRenderPipeline implements Factory.
func (f *NullFactory) CreateRenderPipeline(opts *RenderPipelineOptions) (Handle, error) {
	if err := f.check(resource.TypeShaderModule, opts.Module); err != nil {
		return 0, err
	}
	return f.alloc(resource.TypeRenderPipeline), nil
}

// Dispatch implements Factory by recording the submission.
func (f *NullFactory) Dispatch(opts *DispatchOptions) error {
	if err := f.check(resource.TypeComputePipeline, opts.Pipeline); err != nil {
		return err
	}
	for _, g := range opts.BindGroups {
		if err := f.check(resource.TypeBindGroup, g); err != nil {
			return err
		}
	}
	f.Dispatches = append(f.Dispatches, *opts)
	return nil
}

// Draw implements Factory by recording the submission.
func (f *NullFactory) Draw(opts *DrawOptions) error {
	if err := f.check(resource.TypeRenderPipeline, opts.Pipeline); err != nil {
		return err
	}
	if err := f.check(resource.TypeTextureView, opts.Target); err != nil {
		return err
	}
	f.Draws = append(f.Draws, *opts)
	return nil
}

// Present implements Factory by recording the presented view.
func (f *NullFactory) Present(view Handle) error {
	if err := f.check(resource.TypeTextureView, view); err != nil {
		return err
	}
	f.Presents = append(f.Presents, view)
	return nil
}

// Destroy implements Factory.
func (f *NullFactory) Destroy(t resource.Type, h Handle) error {
	if err := f.check(t, h); err != nil {
		return err
	}
	delete(f.objects, h)
	return nil
}
