package resource

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// ErrInvalidDescriptor is returned when a descriptor fails validation.
var ErrInvalidDescriptor = errors.New("resource: invalid descriptor")

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << iota

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage
)

// TextureUsage specifies how a texture can be used.
// These flags can be combined with bitwise OR.
type TextureUsage uint32

const (
	// TextureUsageCopySrc allows the texture to be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota

	// TextureUsageCopyDst allows the texture to be used as a copy destination.
	TextureUsageCopyDst

	// TextureUsageTextureBinding allows the texture to be sampled from shaders.
	TextureUsageTextureBinding

	// TextureUsageStorageBinding allows the texture to be used as a storage binding.
	TextureUsageStorageBinding

	// TextureUsageRenderAttachment allows the texture to be rendered to.
	TextureUsageRenderAttachment
)

// ImageDescriptor describes parameters for creating a texture resource.
// Node compile phases hand this to the resource-creation collaborator;
// the graph core itself never interprets it beyond Validate.
type ImageDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Width is the texture width in pixels.
	Width uint32

	// Height is the texture height in pixels.
	Height uint32

	// Depth is the depth for 3D textures, or the array layer count.
	// Use 1 for regular 2D textures.
	Depth uint32

	// MipLevelCount is the number of mipmap levels. Use 1 for no mipmaps.
	MipLevelCount uint32

	// SampleCount is the number of samples for multisampling.
	SampleCount uint32

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// DefaultImageDescriptor creates an image descriptor with sensible
// defaults: one mip level, no multisampling, sampled + copy-dst usage.
func DefaultImageDescriptor(width, height uint32, format gputypes.TextureFormat) ImageDescriptor {
	return ImageDescriptor{
		Width:         width,
		Height:        height,
		Depth:         1,
		MipLevelCount: 1,
		SampleCount:   1,
		Format:        format,
		Usage:         TextureUsageTextureBinding | TextureUsageCopyDst,
	}
}

// Validate checks the descriptor for internally inconsistent values.
func (d ImageDescriptor) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return errors.Join(ErrInvalidDescriptor, errors.New("zero extent"))
	}
	if d.Format == gputypes.TextureFormatUndefined {
		return errors.Join(ErrInvalidDescriptor, errors.New("undefined format"))
	}
	if d.Depth == 0 || d.MipLevelCount == 0 || d.SampleCount == 0 {
		return errors.Join(ErrInvalidDescriptor, errors.New("zero depth, mip or sample count"))
	}
	return nil
}

// BufferDescriptor describes parameters for creating a buffer resource.
type BufferDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage BufferUsage
}

// Validate checks the descriptor for internally inconsistent values.
func (d BufferDescriptor) Validate() error {
	if d.Size == 0 {
		return errors.Join(ErrInvalidDescriptor, errors.New("zero size"))
	}
	if d.Usage == 0 {
		return errors.Join(ErrInvalidDescriptor, errors.New("no usage flags"))
	}
	return nil
}
