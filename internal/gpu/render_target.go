package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/drawlist"
)

// depthBuffer is the Depth24PlusStencil8 attachment paired with a color
// target.
type depthBuffer struct {
	texture hal.Texture
	view    hal.TextureView
	width   uint32
	height  uint32

	// cleared is set once the buffer has been cleared in the current frame.
	cleared bool
}

// renderTarget is the color attachment draws currently go to.
type renderTarget struct {
	// handle is zero for a surface target.
	handle drawlist.TextureHandle
	// texture is the offscreen texture; nil for a surface target.
	texture *Texture
	// surfaceView is the view of the acquired swapchain image.
	surfaceView hal.TextureView

	width, height uint32
	format        gputypes.TextureFormat
}

func (t *renderTarget) view() hal.TextureView {
	if t.texture != nil {
		return t.texture.View()
	}
	return t.surfaceView
}

// depthBuffers provisions one depth buffer per render target and reuses it
// while the target keeps its dimensions.
type depthBuffers struct {
	device hal.Device
	byKey  map[drawlist.TextureHandle]*depthBuffer

	// release defers destruction until in-flight frames are done; nil
	// destroys immediately.
	release func(func())

	// created counts depth textures allocated over the lifetime.
	created int
}

func newDepthBuffers(device hal.Device) *depthBuffers {
	return &depthBuffers{device: device, byKey: make(map[drawlist.TextureHandle]*depthBuffer)}
}

// get returns the depth buffer for key, creating or resizing it so it
// matches width x height.
func (d *depthBuffers) get(key drawlist.TextureHandle, width, height uint32) (*depthBuffer, error) {
	if db, ok := d.byKey[key]; ok {
		if db.width == width && db.height == height {
			return db, nil
		}
		d.retire(db)
		delete(d.byKey, key)
	}

	label := fmt.Sprintf("framepipe_depth_%d", key)
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthStencilFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("create depth texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           label + "_view",
		Format:          depthStencilFormat,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create depth view: %w", err)
	}
	db := &depthBuffer{texture: tex, view: view, width: width, height: height}
	d.byKey[key] = db
	d.created++
	slogger().Debug("depth buffer created", "target", key, "width", width, "height", height)
	return db, nil
}

// remove retires the depth buffer of key.
func (d *depthBuffers) remove(key drawlist.TextureHandle) {
	if db, ok := d.byKey[key]; ok {
		delete(d.byKey, key)
		d.retire(db)
	}
}

// newFrame marks every depth buffer as not yet cleared.
func (d *depthBuffers) newFrame() {
	for _, db := range d.byKey {
		db.cleared = false
	}
}

func (d *depthBuffers) retire(db *depthBuffer) {
	if d.release == nil {
		d.destroy(db)
		return
	}
	d.release(func() { d.destroy(db) })
}

func (d *depthBuffers) destroy(db *depthBuffer) {
	if db == nil {
		return
	}
	if db.view != nil {
		d.device.DestroyTextureView(db.view)
	}
	if db.texture != nil {
		d.device.DestroyTexture(db.texture)
	}
}

func (d *depthBuffers) destroyAll() {
	for key, db := range d.byKey {
		d.destroy(db)
		delete(d.byKey, key)
	}
}
