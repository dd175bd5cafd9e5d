package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/drawlist"
)

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

// readbackTimeout bounds how long ReadTexturePixels waits for the GPU.
const readbackTimeout = 5 * time.Second

// textureEntry is a texture registered under a handle, with its cached
// group(1) bind group.
type textureEntry struct {
	tex *Texture

	group   hal.BindGroup
	view    hal.TextureView
	sampler hal.Sampler
}

// textureFormatOf maps a color format onto a TextureFormat. Formats without
// an equivalent fall back to RGBA8.
func textureFormatOf(f gputypes.TextureFormat) TextureFormat {
	switch f {
	case gputypes.TextureFormatBGRA8Unorm:
		return TextureFormatBGRA8
	case gputypes.TextureFormatR8Unorm:
		return TextureFormatR8
	case gputypes.TextureFormatRG8Unorm:
		return TextureFormatRG8
	case gputypes.TextureFormatRGBA16Float:
		return TextureFormatRGBA16F
	case gputypes.TextureFormatRGBA32Float:
		return TextureFormatRGBA32F
	default:
		return TextureFormatRGBA8
	}
}

// register assigns the next handle to tex.
func (r *Renderer) register(tex *Texture) drawlist.TextureHandle {
	tex.SetReleaser(r.sync.release)
	r.next++
	h := r.next
	r.entries[h] = &textureEntry{tex: tex}
	r.byTex[tex] = h
	return h
}

func (r *Renderer) createRenderTarget(width, height int, label string) (drawlist.TextureHandle, error) {
	tex := NewTexture(r.device, r.queue, label)
	if err := tex.CreateWithUsage(width, height, textureFormatOf(r.cfg.Format), RenderTargetUsage, nil); err != nil {
		return 0, fmt.Errorf("create render target: %w", err)
	}
	r.textures.Adopt(tex)
	return r.register(tex), nil
}

// CreateRenderTarget creates a texture that can be drawn to with
// SetRenderTarget, sampled by later draws and read back.
func (r *Renderer) CreateRenderTarget(width, height int) (drawlist.TextureHandle, error) {
	if err := r.checkUsable(); err != nil {
		return 0, err
	}
	return r.createRenderTarget(width, height, fmt.Sprintf("framepipe_target_%d", r.next+1))
}

// CreateTexture creates an RGBA8 texture from tightly packed pixels. A nil
// data leaves the contents undefined.
func (r *Renderer) CreateTexture(width, height int, data []byte) (drawlist.TextureHandle, error) {
	if err := r.checkUsable(); err != nil {
		return 0, err
	}
	tex, err := r.textures.Create(width, height, TextureFormatRGBA8, data)
	if err != nil {
		return 0, err
	}
	return r.register(tex), nil
}

// LoadTexture loads an image file. Loading the same path again returns
// the same handle.
func (r *Renderer) LoadTexture(path string) (drawlist.TextureHandle, error) {
	if err := r.checkUsable(); err != nil {
		return 0, err
	}
	tex, err := r.textures.Load(path)
	if err != nil {
		return 0, err
	}
	if h, ok := r.byTex[tex]; ok {
		return h, nil
	}
	return r.register(tex), nil
}

// LookupTexture returns the texture registered under h.
func (r *Renderer) LookupTexture(h drawlist.TextureHandle) (*Texture, bool) {
	e, ok := r.entries[h]
	if !ok {
		return nil, false
	}
	return e.tex, true
}

// TextureCount returns the number of registered textures, the default
// target included.
func (r *Renderer) TextureCount() int { return len(r.entries) }

// DestroyTexture releases the texture h once every frame that may use it
// has completed. Unknown handles and the default target are ignored. If h
// is the current render target, the frame continues on the default target.
func (r *Renderer) DestroyTexture(h drawlist.TextureHandle) {
	if h.IsZero() || h == r.defaultHandle {
		return
	}
	e, ok := r.entries[h]
	if !ok {
		return
	}
	if r.state == StateFrameActive && r.frame.target.handle == h {
		r.endPass()
		r.frame.target = r.defaultTarget()
		r.viewportSet = false
	}
	delete(r.entries, h)
	delete(r.byTex, e.tex)
	r.depth.remove(h)
	r.sync.release(func() {
		r.destroyEntry(e)
		r.textures.Destroy(e.tex)
	})
}

func (r *Renderer) destroyEntry(e *textureEntry) {
	if e.group != nil {
		r.device.DestroyBindGroup(e.group)
		e.group = nil
	}
	e.tex.Release()
}

// DefaultRenderTarget returns the handle of the default target. It is
// zero when the renderer presents to a surface.
func (r *Renderer) DefaultRenderTarget() drawlist.TextureHandle { return r.defaultHandle }

// DepthBuffersCreated returns how many depth buffers have been allocated.
func (r *Renderer) DepthBuffersCreated() int {
	if r.depth == nil {
		return 0
	}
	return r.depth.created
}

// textureGroup returns the group(1) bind group for h. Zero and unknown
// handles use the white fallback texture.
func (r *Renderer) textureGroup(h drawlist.TextureHandle) (hal.BindGroup, error) {
	e := r.white
	if !h.IsZero() {
		if found, ok := r.entries[h]; ok && found.tex.IsValid() {
			e = found
		} else {
			slogger().Debug("unknown texture handle, using fallback", "texture", h)
		}
	}

	sampler, err := e.tex.Sampler()
	if err != nil {
		return nil, err
	}
	view := e.tex.View()
	if e.group != nil && e.view == view && e.sampler == sampler {
		return e.group, nil
	}
	group, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  e.tex.Label() + "_bind",
		Layout: r.pipelines.TextureLayout(),
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create texture bind group: %w", err)
	}
	if old := e.group; old != nil {
		r.sync.release(func() { r.device.DestroyBindGroup(old) })
	}
	e.group, e.view, e.sampler = group, view, sampler
	return group, nil
}

// ReadTexturePixels copies the top-left width x height pixels of texture h
// into dst, one row every stride bytes. It reads what the GPU has
// finished, so draws of a frame still being recorded are not included.
// Pixels keep the texture's own format.
func (r *Renderer) ReadTexturePixels(h drawlist.TextureHandle, dst []byte, width, height, stride int) error {
	if err := r.checkUsable(); err != nil {
		return err
	}
	if h.IsZero() {
		h = r.defaultHandle
	}
	e, ok := r.entries[h]
	if !ok || !e.tex.IsValid() {
		return fmt.Errorf("%w: %d", ErrTextureNotFound, h)
	}
	tex := e.tex
	if width <= 0 || height <= 0 || width > tex.Width() || height > tex.Height() {
		return fmt.Errorf("%w: read %dx%d from %dx%d texture", ErrInvalidSize, width, height, tex.Width(), tex.Height())
	}
	row := width * tex.Format().BytesPerPixel()
	if stride < row || len(dst) < (height-1)*stride+row {
		return fmt.Errorf("%w: %d-byte destination with stride %d for %dx%d", ErrInvalidSize, len(dst), stride, width, height)
	}

	alignedRow := alignUp(uint64(row), copyPitchAlignment) //nolint:gosec // G115: row is positive
	size := alignedRow * uint64(height)                    //nolint:gosec // G115: height is positive
	staging, err := r.readback.Acquire(size, 0)
	if err != nil {
		return fmt.Errorf("readback staging: %w", err)
	}
	defer r.readback.Release(staging)

	if err := r.copyToStaging(tex, staging.Buffer(0), width, height, alignedRow); err != nil {
		return err
	}
	data, err := staging.Read(0, 0, size)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	for y := range height {
		src := uint64(y) * alignedRow //nolint:gosec // G115: y is non-negative
		copy(dst[y*stride:y*stride+row], data[src:src+uint64(row)])
	}
	return nil
}

// copyToStaging encodes and submits a texture to buffer copy and waits for
// it to complete.
func (r *Renderer) copyToStaging(tex *Texture, staging hal.Buffer, width, height int, bytesPerRow uint64) error {
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "framepipe_readback"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("framepipe_readback"); err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("begin encoding: %w", err)
	}

	steady := gputypes.TextureUsageTextureBinding
	if tex.IsRenderTarget() {
		steady = gputypes.TextureUsageRenderAttachment
	}
	raw := tex.Raw()
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: raw,
		Usage:   hal.TextureUsageTransition{OldUsage: steady, NewUsage: gputypes.TextureUsageCopySrc},
	}})
	//nolint:gosec // G115: dimensions are validated positive
	encoder.CopyTextureToBuffer(raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(bytesPerRow), RowsPerImage: uint32(height)},
		TextureBase:  hal.ImageCopyTexture{Texture: raw, MipLevel: 0},
		Size:         hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: raw,
		Usage:   hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageCopySrc, NewUsage: steady},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	index, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := r.waitSubmission(index); err != nil {
		return err
	}
	r.sync.retire()
	return nil
}

// waitSubmission polls the queue until index completes.
func (r *Renderer) waitSubmission(index uint64) error {
	deadline := time.Now().Add(readbackTimeout)
	for r.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: submission %d not complete after %s", index, readbackTimeout)
		}
		time.Sleep(r.cfg.PollInterval)
	}
	return nil
}
