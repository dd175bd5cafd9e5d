package gpu

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TextureFormat represents the pixel format of a GPU texture.
type TextureFormat uint8

const (
	// TextureFormatRGBA8 is the standard RGBA format with 8 bits per channel.
	TextureFormatRGBA8 TextureFormat = iota

	// TextureFormatBGRA8 is BGRA format, often used for surface presentation.
	TextureFormatBGRA8

	// TextureFormatR8 is single-channel 8-bit format, used for masks.
	TextureFormatR8

	// TextureFormatRG8 is two-channel 8-bit format.
	TextureFormatRG8

	// TextureFormatRGBA16F is RGBA with 16-bit float channels.
	TextureFormatRGBA16F

	// TextureFormatRGBA32F is RGBA with 32-bit float channels.
	TextureFormatRGBA32F

	// TextureFormatDepth32F is a 32-bit float depth format.
	TextureFormatDepth32F
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "RGBA8"
	case TextureFormatBGRA8:
		return "BGRA8"
	case TextureFormatR8:
		return "R8"
	case TextureFormatRG8:
		return "RG8"
	case TextureFormatRGBA16F:
		return "RGBA16F"
	case TextureFormatRGBA32F:
		return "RGBA32F"
	case TextureFormatDepth32F:
		return "Depth32F"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatR8:
		return 1
	case TextureFormatRG8:
		return 2
	case TextureFormatRGBA16F:
		return 8
	case TextureFormatRGBA32F:
		return 16
	default:
		return 4
	}
}

// ToWGPUFormat converts to gputypes.TextureFormat.
func (f TextureFormat) ToWGPUFormat() gputypes.TextureFormat {
	switch f {
	case TextureFormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	case TextureFormatR8:
		return gputypes.TextureFormatR8Unorm
	case TextureFormatRG8:
		return gputypes.TextureFormatRG8Unorm
	case TextureFormatRGBA16F:
		return gputypes.TextureFormatRGBA16Float
	case TextureFormatRGBA32F:
		return gputypes.TextureFormatRGBA32Float
	case TextureFormatDepth32F:
		return gputypes.TextureFormatDepth32Float
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// IsDepth reports whether the format holds depth values.
func (f TextureFormat) IsDepth() bool { return f == TextureFormatDepth32F }

// WrapMode selects how texture coordinates outside [0, 1] are handled.
type WrapMode uint8

const (
	WrapClamp WrapMode = iota
	WrapRepeat
	WrapMirror
)

func (w WrapMode) addressMode() gputypes.AddressMode {
	switch w {
	case WrapRepeat:
		return gputypes.AddressModeRepeat
	case WrapMirror:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

// FilterMode selects texel filtering.
type FilterMode uint8

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

func (f FilterMode) filterMode() gputypes.FilterMode {
	if f == FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

// DefaultTextureUsage is the default usage for textures created without specific flags.
const DefaultTextureUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding

// RenderTargetUsage is the usage of textures that can be rendered to,
// sampled and read back.
const RenderTargetUsage = DefaultTextureUsage | gputypes.TextureUsageRenderAttachment

// Texture is a 2D GPU texture with its default view and a lazily built
// sampler.
//
// A Texture starts empty; Create or LoadFromFile allocate GPU storage.
// Release frees it and returns the Texture to the empty state, after which
// it can be created again.
//
// Texture is safe for concurrent use.
type Texture struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	label  string

	texture hal.Texture
	view    hal.TextureView
	sampler hal.Sampler

	width  int
	height int
	format TextureFormat
	usage  gputypes.TextureUsage

	wrapS, wrapT WrapMode
	minFilter    FilterMode
	magFilter    FilterMode
	samplerDirty bool

	// releaser, when set, decides when a replaced sampler is destroyed.
	releaser func(func())
}

// NewTexture returns an empty texture bound to device and queue.
func NewTexture(device hal.Device, queue hal.Queue, label string) *Texture {
	return &Texture{device: device, queue: queue, label: label}
}

// Create allocates a width x height texture with DefaultTextureUsage and
// uploads data when it is non-nil. data must hold exactly
// width*height*BytesPerPixel bytes, rows tightly packed.
func (t *Texture) Create(width, height int, format TextureFormat, data []byte) error {
	return t.CreateWithUsage(width, height, format, DefaultTextureUsage, data)
}

// CreateWithUsage is Create with explicit usage flags. Any storage the
// texture already holds is released first.
func (t *Texture) CreateWithUsage(width, height int, format TextureFormat, usage gputypes.TextureUsage, data []byte) error {
	if t.device == nil || t.queue == nil {
		return ErrNilDevice
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: texture %dx%d", ErrInvalidSize, width, height)
	}
	if data != nil && len(data) != width*height*format.BytesPerPixel() {
		return fmt.Errorf("%w: %dx%d %s needs %d bytes, got %d", ErrTextureSizeMismatch,
			width, height, format, width*height*format.BytesPerPixel(), len(data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()

	//nolint:gosec // G115: dimensions are validated positive
	tex, err := t.device.CreateTexture(&hal.TextureDescriptor{
		Label:         t.label,
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format.ToWGPUFormat(),
		Usage:         usage,
	})
	if err != nil {
		return fmt.Errorf("create texture %s: %w", t.label, err)
	}
	view, err := t.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           t.label + "_view",
		Format:          format.ToWGPUFormat(),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		t.device.DestroyTexture(tex)
		return fmt.Errorf("create texture view %s: %w", t.label, err)
	}

	t.texture = tex
	t.view = view
	t.width = width
	t.height = height
	t.format = format
	t.usage = usage
	t.samplerDirty = true

	if data != nil {
		if err := t.writeLocked(data, image.Rect(0, 0, width, height)); err != nil {
			t.releaseLocked()
			return err
		}
	}
	return nil
}

// LoadFromFile decodes an image file and creates an RGBA8 texture from it.
// On failure the texture is left unchanged.
func (t *Texture) LoadFromFile(path string) error {
	img, err := LoadImage(path)
	if err != nil {
		return err
	}
	if t.label == "" {
		t.label = path
	}
	b := img.Bounds()
	return t.Create(b.Dx(), b.Dy(), TextureFormatRGBA8, img.Pix)
}

// UpdateData uploads data into region of the texture, or into the whole
// texture when region is nil. data must be tightly packed for the region.
func (t *Texture) UpdateData(data []byte, region *image.Rectangle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.texture == nil {
		return ErrTextureReleased
	}
	r := image.Rect(0, 0, t.width, t.height)
	if region != nil {
		if region.Empty() || !region.In(r) {
			return fmt.Errorf("%w: region %v outside %dx%d texture", ErrInvalidSize, *region, t.width, t.height)
		}
		r = *region
	}
	if want := r.Dx() * r.Dy() * t.format.BytesPerPixel(); len(data) != want {
		return fmt.Errorf("%w: region %v needs %d bytes, got %d", ErrTextureSizeMismatch, r, want, len(data))
	}
	return t.writeLocked(data, r)
}

func (t *Texture) writeLocked(data []byte, r image.Rectangle) error {
	//nolint:gosec // G115: region is validated inside the texture
	err := t.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture: t.texture,
			Origin:  hal.Origin3D{X: uint32(r.Min.X), Y: uint32(r.Min.Y)},
			Aspect:  gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			BytesPerRow:  uint32(r.Dx() * t.format.BytesPerPixel()),
			RowsPerImage: uint32(r.Dy()),
		},
		&hal.Extent3D{Width: uint32(r.Dx()), Height: uint32(r.Dy()), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("write texture %s: %w", t.label, err)
	}
	return nil
}

// SetWrap sets the wrap modes for the s and t coordinates. The sampler is
// rebuilt on next use.
func (t *Texture) SetWrap(s, tt WrapMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.wrapS != s || t.wrapT != tt {
		t.wrapS, t.wrapT = s, tt
		t.samplerDirty = true
	}
}

// SetFilter sets minification and magnification filters. The sampler is
// rebuilt on next use.
func (t *Texture) SetFilter(minFilter, magFilter FilterMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.minFilter != minFilter || t.magFilter != magFilter {
		t.minFilter, t.magFilter = minFilter, magFilter
		t.samplerDirty = true
	}
}

// Sampler returns the texture's sampler, creating it when the wrap or
// filter settings changed.
func (t *Texture) Sampler() (hal.Sampler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.texture == nil {
		return nil, ErrTextureReleased
	}
	if t.sampler != nil && !t.samplerDirty {
		return t.sampler, nil
	}
	s, err := t.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        t.label + "_sampler",
		AddressModeU: t.wrapS.addressMode(),
		AddressModeV: t.wrapT.addressMode(),
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    t.magFilter.filterMode(),
		MinFilter:    t.minFilter.filterMode(),
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %s: %w", t.label, err)
	}
	if old := t.sampler; old != nil {
		if t.releaser != nil {
			device := t.device
			t.releaser(func() { device.DestroySampler(old) })
		} else {
			t.device.DestroySampler(old)
		}
	}
	t.sampler = s
	t.samplerDirty = false
	return s, nil
}

// SetReleaser routes the destruction of replaced samplers through fn,
// which runs its argument once the GPU no longer uses the sampler. A nil
// fn destroys them immediately.
func (t *Texture) SetReleaser(fn func(func())) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaser = fn
}

// SamplerDirty reports whether the next Sampler call rebuilds the sampler.
func (t *Texture) SamplerDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampler == nil || t.samplerDirty
}

// View returns the default texture view, or nil when empty.
func (t *Texture) View() hal.TextureView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Raw returns the underlying HAL texture, or nil when empty.
func (t *Texture) Raw() hal.Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.texture
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}

// Height returns the texture height in pixels.
func (t *Texture) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

// Format returns the texture format.
func (t *Texture) Format() TextureFormat {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.format
}

// Usage returns the usage flags the texture was created with.
func (t *Texture) Usage() gputypes.TextureUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// IsRenderTarget reports whether the texture can be used as a color attachment.
func (t *Texture) IsRenderTarget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.texture != nil && t.usage.Contains(gputypes.TextureUsageRenderAttachment)
}

// SizeBytes returns the texture size in bytes.
func (t *Texture) SizeBytes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	//nolint:gosec // G115: dimensions are non-negative
	return uint64(t.width * t.height * t.format.BytesPerPixel())
}

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// IsValid reports whether the texture holds GPU storage.
func (t *Texture) IsValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.texture != nil
}

// Release frees the GPU resources and zeroes the dimensions. The texture
// can be created again afterwards.
//
// This method is idempotent - calling it multiple times is safe.
func (t *Texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

func (t *Texture) releaseLocked() {
	if t.sampler != nil {
		t.device.DestroySampler(t.sampler)
		t.sampler = nil
	}
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.texture != nil {
		t.device.DestroyTexture(t.texture)
		t.texture = nil
	}
	t.width, t.height = 0, 0
}

// String returns a string representation of the texture.
func (t *Texture) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := "active"
	if t.texture == nil {
		status = "released"
	}
	return fmt.Sprintf("Texture[%s %dx%d %s %s]", t.label, t.width, t.height, t.format, status)
}
