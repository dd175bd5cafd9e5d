package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/drawlist"
)

// drawCall is the part of Draw2D and Draw3D the encoder needs.
type drawCall struct {
	family       ShaderFamily
	vertexOffset uint32
	vertexCount  uint32
	indexOffset  uint32
	indexCount   uint32
	blend        drawlist.BlendMode
	primitive    drawlist.PrimitiveType
	texture      drawlist.TextureHandle
	depthTest    bool
	depthWrite   bool
	cull         gputypes.CullMode
}

// cursorAlignment returns the alignment of each write in buffer kind k.
func cursorAlignment(k bufferKind) uint64 {
	if k == bufUniform {
		return uniformAlignment
	}
	return copyBufferAlignment
}

// ExecuteDrawList uploads the list's payload into the current frame slot
// and records its commands in order.
//
// When a payload does not fit the slot's remaining capacity no command
// executes and the error wraps ErrCapacityExceeded. The demand is recorded
// and the slot grows at its next BeginFrame unless the demand exceeds the
// maximum buffer size. The renderer stays usable either way.
func (r *Renderer) ExecuteDrawList(list *drawlist.DrawList) error {
	if list == nil {
		return ErrEmptyDrawList
	}
	if err := r.checkFrame(); err != nil {
		return err
	}
	if list.CommandCount() == 0 {
		return nil
	}
	if err := list.Validate(); err != nil {
		return fmt.Errorf("execute draw list: %w", err)
	}

	r.uniformScratch = encodeUniforms(r.uniformScratch, list, r.light)
	payload := [bufferKindCount][]byte{
		bufVertex2D: list.Vertex2DData(),
		bufVertex3D: list.Vertex3DData(),
		bufIndex:    list.IndexData(),
		bufUniform:  r.uniformScratch,
	}
	if err := r.reserve(&payload); err != nil {
		return err
	}

	// Cursors move only once every payload is uploaded.
	slot := r.frame.slot
	base := r.frame.cursors
	next := base
	for k, data := range payload {
		if len(data) == 0 {
			continue
		}
		if err := r.buffers[k].Write(slot, base[k], data); err != nil {
			return fmt.Errorf("upload %s: %w", bufferKindNames[k], err)
		}
		next[k] = alignUp(base[k]+uint64(len(data)), cursorAlignment(bufferKind(k)))
	}
	r.frame.cursors = next

	uniformOffset := base[bufUniform]
	for i, cmd := range list.Commands() {
		var err error
		switch c := cmd.(type) {
		case drawlist.Draw2D:
			if c.VertexCount == 0 {
				continue
			}
			err = r.draw(drawCall{
				family:       Family2D,
				vertexOffset: c.VertexOffset,
				vertexCount:  c.VertexCount,
				indexOffset:  c.IndexOffset,
				indexCount:   c.IndexCount,
				blend:        c.Blend,
				primitive:    c.Primitive,
				texture:      c.Texture,
				depthTest:    r.depthTest,
				depthWrite:   r.depthWrite,
				cull:         r.cullMode(),
			}, &base, uniformOffset)
			uniformOffset += uniformAlignment
		case drawlist.Draw3D:
			if c.VertexCount == 0 {
				continue
			}
			cull := gputypes.CullModeNone
			if c.CullBackFace {
				cull = gputypes.CullModeBack
			}
			err = r.draw(drawCall{
				family:       Family3D,
				vertexOffset: c.VertexOffset,
				vertexCount:  c.VertexCount,
				indexOffset:  c.IndexOffset,
				indexCount:   c.IndexCount,
				blend:        c.Blend,
				primitive:    c.Primitive,
				texture:      c.Texture,
				depthTest:    c.DepthTest,
				depthWrite:   c.DepthWrite,
				cull:         cull,
			}, &base, uniformOffset)
			uniformOffset += uniformAlignment
		case drawlist.SetViewport:
			r.setViewport(c.Viewport)
		case drawlist.SetScissor:
			r.scissor = c.Scissor
			r.scissorEnabled = c.Enabled
			r.applyScissor()
		case drawlist.Clear:
			err = r.clearTarget(c)
		case drawlist.SetRenderTarget:
			err = r.setRenderTarget(c.Target)
		default:
			err = fmt.Errorf("unsupported command %T", cmd)
		}
		if err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmd.Type(), err)
		}
	}
	return nil
}

// reserve checks that every payload fits behind the frame's cursors.
// Demands that could be met by growing are recorded for the slot's next
// BeginFrame.
func (r *Renderer) reserve(payload *[bufferKindCount][]byte) error {
	slot := r.frame.slot
	var firstErr error
	for k, data := range payload {
		if len(data) == 0 {
			continue
		}
		b := r.buffers[k]
		need := r.frame.cursors[k] + uint64(len(data))
		if need <= b.Size(slot) {
			continue
		}
		if need > b.MaxSize() {
			slogger().Warn("draw list exceeds maximum buffer size",
				"buffer", bufferKindNames[k], "need", need, "max", b.MaxSize())
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s needs %d bytes, maximum is %d",
					ErrCapacityExceeded, bufferKindNames[k], need, b.MaxSize())
			}
			continue
		}
		r.demand[k] = max(r.demand[k], need)
		slogger().Warn("draw list exceeds frame capacity",
			"buffer", bufferKindNames[k], "slot", slot, "need", need, "capacity", b.Size(slot))
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: %s needs %d bytes, slot %d holds %d",
				ErrCapacityExceeded, bufferKindNames[k], need, slot, b.Size(slot))
		}
	}
	return firstErr
}

func (r *Renderer) draw(d drawCall, base *[bufferKindCount]uint64, uniformOffset uint64) error {
	if r.viewportEmpty() {
		return nil
	}
	if err := r.ensurePass(); err != nil {
		return err
	}
	pass := r.frame.pass
	slot := r.frame.slot

	blendMode := d.blend
	if !blendMode.Valid() {
		blendMode = r.blendMode
	}
	pipeline, err := r.pipelines.Get(PipelineKey{
		Family:     d.family,
		Blend:      blendMode,
		Topology:   topology(d.primitive),
		DepthTest:  d.depthTest,
		DepthWrite: d.depthWrite,
		Cull:       d.cull,
		Format:     r.frame.target.format,
	})
	if err != nil {
		return err
	}
	if pipeline != r.frame.pipeline {
		pass.SetPipeline(pipeline)
		r.frame.pipeline = pipeline
	}

	uniforms, err := r.uniformGroup(slot)
	if err != nil {
		return err
	}
	pass.SetBindGroup(0, uniforms, []uint32{uint32(uniformOffset)}) //nolint:gosec // G115: offsets stay below MaxBufferSize
	textures, err := r.textureGroup(d.texture)
	if err != nil {
		return err
	}
	pass.SetBindGroup(1, textures, nil)

	kind := bufVertex2D
	if d.family == Family3D {
		kind = bufVertex3D
	}
	pass.SetVertexBuffer(0, r.buffers[kind].Buffer(slot), base[kind]+uint64(d.vertexOffset)*d.family.VertexStride())

	if d.indexCount > 0 {
		if !r.frame.indexBound {
			pass.SetIndexBuffer(r.buffers[bufIndex].Buffer(slot), gputypes.IndexFormatUint32, 0)
			r.frame.indexBound = true
		}
		firstIndex := uint32(base[bufIndex]/drawlist.IndexSize) + d.indexOffset //nolint:gosec // G115: bounded by buffer size
		pass.DrawIndexed(d.indexCount, 1, firstIndex, 0, 0)
	} else {
		pass.Draw(d.vertexCount, 1, 0, 0)
	}

	r.drawCalls.Add(1)
	r.vertices.Add(d.vertexCount)
	return nil
}

// uniformGroup returns the group(0) bind group of slot, rebuilding it
// when the slot's uniform buffer was reallocated.
func (r *Renderer) uniformGroup(slot int) (hal.BindGroup, error) {
	b := r.buffers[bufUniform]
	gen := b.Generation(slot)
	if g := r.uniformGroups[slot]; g != nil && r.uniformGroupGens[slot] == gen {
		return g, nil
	}
	group, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("framepipe_uniforms[%d]", slot),
		Layout: r.pipelines.UniformLayout(),
		Entries: []gputypes.BindGroupEntry{{
			Binding: 0,
			Resource: gputypes.BufferBinding{
				Buffer: b.Buffer(slot).NativeHandle(),
				Offset: 0,
				Size:   uniform3DSize,
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform bind group: %w", err)
	}
	if old := r.uniformGroups[slot]; old != nil {
		r.sync.release(func() { r.device.DestroyBindGroup(old) })
	}
	r.uniformGroups[slot] = group
	r.uniformGroupGens[slot] = gen
	return group, nil
}

// ensurePass opens a render pass on the current target if none is open.
func (r *Renderer) ensurePass() error {
	if r.frame.pass != nil {
		return nil
	}
	return r.openPass()
}

// openPass begins a render pass on the current target, applying any
// pending clear as load ops. A depth buffer is cleared the first time it
// is used in a frame.
func (r *Renderer) openPass() error {
	t := &r.frame.target
	db, err := r.depth.get(t.handle, t.width, t.height)
	if err != nil {
		return err
	}
	clearCmd := r.frame.clear
	r.frame.clear = nil

	color := hal.RenderPassColorAttachment{
		View:    t.view(),
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	ds := &hal.RenderPassDepthStencilAttachment{
		View:            db.view,
		DepthLoadOp:     gputypes.LoadOpLoad,
		DepthStoreOp:    gputypes.StoreOpStore,
		DepthClearValue: 1.0,
		StencilLoadOp:   gputypes.LoadOpLoad,
		StencilStoreOp:  gputypes.StoreOpStore,
	}
	if !db.cleared {
		ds.DepthLoadOp = gputypes.LoadOpClear
		ds.StencilLoadOp = gputypes.LoadOpClear
		db.cleared = true
	}
	if clearCmd != nil {
		if clearCmd.ClearColor {
			color.LoadOp = gputypes.LoadOpClear
			color.ClearValue = gputypes.Color{
				R: float64(clearCmd.Color[0]),
				G: float64(clearCmd.Color[1]),
				B: float64(clearCmd.Color[2]),
				A: float64(clearCmd.Color[3]),
			}
		}
		if clearCmd.ClearDepth {
			ds.DepthLoadOp = gputypes.LoadOpClear
			ds.DepthClearValue = clearCmd.Depth
		}
		if clearCmd.ClearStencil {
			ds.StencilLoadOp = gputypes.LoadOpClear
			ds.StencilClearValue = clearCmd.Stencil
		}
	}

	r.frame.pass = r.frame.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  "framepipe_pass",
		ColorAttachments:       []hal.RenderPassColorAttachment{color},
		DepthStencilAttachment: ds,
	})
	r.frame.pipeline = nil
	r.frame.indexBound = false
	r.applyViewport()
	r.applyScissor()
	r.phase = PhaseEncoding
	return nil
}

func (r *Renderer) endPass() {
	if r.frame.pass != nil {
		r.frame.pass.End()
		r.frame.pass = nil
	}
}

// flushClear opens a pass on the current target if a clear is still
// waiting for one.
func (r *Renderer) flushClear() error {
	if r.frame.clear == nil || r.frame.pass != nil {
		return nil
	}
	return r.openPass()
}

// clearTarget ends the current pass and opens a new one that clears the
// requested attachments.
func (r *Renderer) clearTarget(c drawlist.Clear) error {
	r.endPass()
	r.frame.clear = &c
	return r.openPass()
}

// setRenderTarget ends the current pass and directs further draws to the
// texture h, or to the default target when h is zero. The viewport
// resets to the full new target.
func (r *Renderer) setRenderTarget(h drawlist.TextureHandle) error {
	if err := r.flushClear(); err != nil {
		return err
	}
	var target renderTarget
	if h.IsZero() || h == r.defaultHandle {
		target = r.defaultTarget()
	} else {
		e, ok := r.entries[h]
		if !ok {
			return fmt.Errorf("%w: %d", ErrTextureNotFound, h)
		}
		if !e.tex.IsRenderTarget() {
			return fmt.Errorf("%w: %d", ErrInvalidRenderTarget, h)
		}
		target = renderTarget{
			handle:  h,
			texture: e.tex,
			width:   uint32(e.tex.Width()),  //nolint:gosec // G115: positive dimensions
			height:  uint32(e.tex.Height()), //nolint:gosec // G115: positive dimensions
			format:  e.tex.Format().ToWGPUFormat(),
		}
	}
	if _, err := r.depth.get(target.handle, target.width, target.height); err != nil {
		return err
	}
	r.endPass()
	r.frame.target = target
	r.viewportSet = false
	slogger().Debug("render target switched", "target", h, "width", target.width, "height", target.height)
	return nil
}

// --------------------------------------------------------------------------
// Viewport and scissor
// --------------------------------------------------------------------------

// targetSize returns the dimensions of the current target, or of the
// default target outside a frame.
func (r *Renderer) targetSize() (uint32, uint32) {
	if r.state == StateFrameActive {
		return r.frame.target.width, r.frame.target.height
	}
	return r.cfg.Width, r.cfg.Height
}

// clampRect intersects rc with [0, w) x [0, h).
func clampRect(rc drawlist.Rect, w, h uint32) drawlist.Rect {
	x0 := min(max(rc.X, 0), float32(w))
	y0 := min(max(rc.Y, 0), float32(h))
	x1 := min(max(rc.X+rc.Width, 0), float32(w))
	y1 := min(max(rc.Y+rc.Height, 0), float32(h))
	return drawlist.Rect{X: x0, Y: y0, Width: max(x1-x0, 0), Height: max(y1-y0, 0)}
}

// effectiveViewport returns the viewport clamped to the current target.
func (r *Renderer) effectiveViewport() drawlist.Rect {
	w, h := r.targetSize()
	if !r.viewportSet {
		return drawlist.Rect{Width: float32(w), Height: float32(h)}
	}
	return clampRect(r.viewport, w, h)
}

func (r *Renderer) viewportEmpty() bool {
	return r.effectiveViewport().Empty()
}

func (r *Renderer) setViewport(vp drawlist.Rect) {
	r.viewport = vp
	r.viewportSet = true
	r.applyViewport()
}

func (r *Renderer) applyViewport() {
	if r.frame.pass == nil {
		return
	}
	vp := r.effectiveViewport()
	if vp.Empty() {
		return
	}
	r.frame.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, 0, 1)
}

func (r *Renderer) applyScissor() {
	if r.frame.pass == nil {
		return
	}
	w, h := r.targetSize()
	sc := drawlist.Rect{Width: float32(w), Height: float32(h)}
	if r.scissorEnabled {
		sc = clampRect(r.scissor, w, h)
	}
	r.frame.pass.SetScissorRect(uint32(sc.X), uint32(sc.Y), uint32(sc.Width), uint32(sc.Height))
}

// --------------------------------------------------------------------------
// Immediate state
// --------------------------------------------------------------------------

// SetViewport sets the viewport. It applies to the open pass at once and
// to every pass opened later.
func (r *Renderer) SetViewport(x, y, width, height float32) {
	r.setViewport(drawlist.NewRect(x, y, width, height))
}

// SetScissor sets the scissor rectangle. It takes effect while scissoring
// is enabled.
func (r *Renderer) SetScissor(x, y, width, height float32) {
	r.scissor = drawlist.NewRect(x, y, width, height)
	r.applyScissor()
}

// SetScissorEnabled turns scissoring on or off.
func (r *Renderer) SetScissorEnabled(enabled bool) {
	r.scissorEnabled = enabled
	r.applyScissor()
}

// Clear clears the current target. Outside a frame the clear is applied
// when the next frame opens its first pass.
func (r *Renderer) Clear(color [4]float32, clearColor, clearDepth bool, depth float32) error {
	if err := r.checkUsable(); err != nil {
		return err
	}
	c := drawlist.Clear{Color: color, ClearColor: clearColor, ClearDepth: clearDepth, Depth: depth}
	if r.state != StateFrameActive {
		r.pendingClear = &c
		return nil
	}
	return r.clearTarget(c)
}

// SetBlendMode sets the renderer's blend mode. Draws whose own blend mode
// is out of range use it.
func (r *Renderer) SetBlendMode(mode drawlist.BlendMode) {
	if mode.Valid() {
		r.blendMode = mode
	}
}

// BlendMode returns the renderer's blend mode.
func (r *Renderer) BlendMode() drawlist.BlendMode { return r.blendMode }

// SetDepthTestEnabled sets depth testing for 2D draws.
func (r *Renderer) SetDepthTestEnabled(enabled bool) { r.depthTest = enabled }

// SetDepthWriteEnabled sets depth writes for 2D draws.
func (r *Renderer) SetDepthWriteEnabled(enabled bool) { r.depthWrite = enabled }

// SetCullingMode sets face culling for 2D draws: back faces when cullBack
// is set, front faces otherwise. Disabled culls nothing.
func (r *Renderer) SetCullingMode(cullBack, enabled bool) {
	r.cullEnabled = enabled
	r.cullBack = cullBack
}

func (r *Renderer) cullMode() gputypes.CullMode {
	switch {
	case !r.cullEnabled:
		return gputypes.CullModeNone
	case r.cullBack:
		return gputypes.CullModeBack
	default:
		return gputypes.CullModeFront
	}
}

// SetLighting sets the view-space light direction of 3D draws. Disabled
// lighting draws 3D vertices with their unshaded color.
func (r *Renderer) SetLighting(direction [3]float32, enabled bool) {
	w := float32(0)
	if enabled {
		w = 1
	}
	r.light = [4]float32{direction[0], direction[1], direction[2], w}
}

// SetRenderTarget directs further draws of the frame to the texture h, or
// to the default target when h is zero. The texture must have been created
// with CreateRenderTarget.
func (r *Renderer) SetRenderTarget(h drawlist.TextureHandle) error {
	if err := r.checkFrame(); err != nil {
		return err
	}
	return r.setRenderTarget(h)
}

// ViewportWidth returns the width of the effective viewport.
func (r *Renderer) ViewportWidth() uint32 {
	return uint32(r.effectiveViewport().Width)
}

// ViewportHeight returns the height of the effective viewport.
func (r *Renderer) ViewportHeight() uint32 {
	return uint32(r.effectiveViewport().Height)
}
