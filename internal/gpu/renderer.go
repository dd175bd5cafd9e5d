package gpu

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/drawlist"
)

// RendererState is the lifecycle state of a Renderer.
type RendererState uint8

const (
	StateUninitialized RendererState = iota
	StateInitialized
	StateFrameActive
	StateShutdown
)

// String returns the state name.
func (s RendererState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateFrameActive:
		return "FrameActive"
	case StateShutdown:
		return "Shutdown"
	default:
		return fmt.Sprintf("RendererState(%d)", s)
	}
}

// FramePhase is the sub-state of an active frame.
type FramePhase uint8

const (
	PhaseIdle FramePhase = iota
	// PhaseCommandBufferOpen: BeginFrame opened the encoder, no pass yet.
	PhaseCommandBufferOpen
	// PhaseEncoding: a render pass is or has been recorded.
	PhaseEncoding
	// PhasePresented: the frame was submitted.
	PhasePresented
)

// String returns the phase name.
func (p FramePhase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseCommandBufferOpen:
		return "CommandBufferOpen"
	case PhaseEncoding:
		return "Encoding"
	case PhasePresented:
		return "Presented"
	default:
		return fmt.Sprintf("FramePhase(%d)", p)
	}
}

// bufferKind indexes the per-frame dynamic buffers.
type bufferKind int

const (
	bufVertex2D bufferKind = iota
	bufVertex3D
	bufIndex
	bufUniform
	bufferKindCount
)

var bufferKindNames = [bufferKindCount]string{"vertex2d", "vertex3d", "index", "uniform"}

// frameState is everything that lives between BeginFrame and EndFrame.
type frameState struct {
	slot    int
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	target  renderTarget

	surface     *hal.AcquiredSurfaceTexture
	surfaceView hal.TextureView

	// cursors are the next free byte of each buffer in this frame's slot.
	cursors [bufferKindCount]uint64

	pipeline   hal.RenderPipeline
	indexBound bool
	// clear is applied as load ops when the next pass opens.
	clear *drawlist.Clear
}

// Renderer executes draw lists on a HAL device with a bounded number of
// frames in flight.
//
// A Renderer is driven from a single goroutine. LastGPUTime and
// Statistics may be read from any goroutine.
type Renderer struct {
	cfg   Config
	state RendererState
	phase FramePhase

	dev       *deviceHandle
	device    hal.Device
	queue     hal.Queue
	pipelines *PipelineCache
	sync      *frameSync
	depth     *depthBuffers

	buffers [bufferKindCount]*DynamicBuffer
	// demand is the per-slot size a failed ExecuteDrawList asked for.
	// Slots grow to it at their next BeginFrame.
	demand [bufferKindCount]uint64

	uniformGroups    []hal.BindGroup
	uniformGroupGens []uint64
	uniformScratch   []byte

	readback *BufferPool
	textures *TextureCache
	entries  map[drawlist.TextureHandle]*textureEntry
	byTex    map[*Texture]drawlist.TextureHandle
	next     drawlist.TextureHandle
	white    *textureEntry

	defaultHandle drawlist.TextureHandle

	// Immediate state.
	viewport       drawlist.Rect
	viewportSet    bool
	scissor        drawlist.Rect
	scissorEnabled bool
	blendMode      drawlist.BlendMode
	depthTest      bool
	depthWrite     bool
	cullBack       bool
	cullEnabled    bool
	light          [4]float32
	pendingClear   *drawlist.Clear

	frame      frameState
	frameIndex int
	frames     uint64

	drawCalls atomic.Uint32
	vertices  atomic.Uint32
}

// NewRenderer returns an uninitialized renderer.
func NewRenderer(opts ...Option) *Renderer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()
	return &Renderer{
		cfg:       cfg,
		blendMode: drawlist.BlendModeAlpha,
		light:     [4]float32{0, 0, 1, 0},
	}
}

// Initialize opens the device and creates pipelines, frame buffers and the
// default render target. On failure every partially created resource is
// released and the error wraps ErrInitFailed.
func (r *Renderer) Initialize() error {
	switch r.state {
	case StateShutdown:
		return ErrShutdown
	case StateUninitialized:
	default:
		return nil
	}
	if err := r.initialize(); err != nil {
		r.releaseResources()
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	r.state = StateInitialized
	slogger().Info("renderer initialized",
		"device", r.Name(), "frames_in_flight", r.cfg.FramesInFlight,
		"size", fmt.Sprintf("%dx%d", r.cfg.Width, r.cfg.Height), "variants", r.pipelines.Len())
	return nil
}

func (r *Renderer) initialize() error {
	dev, err := openDevice(&r.cfg)
	if err != nil {
		return err
	}
	r.dev = dev
	r.device = dev.device
	r.queue = dev.queue

	r.pipelines, err = NewPipelineCache(r.device, r.cfg.Format, r.cfg.PrecompileSPIRV)
	if err != nil {
		return err
	}

	n := r.cfg.FramesInFlight
	r.sync = newFrameSync(r.queue, n, r.cfg.PollInterval)
	r.depth = newDepthBuffers(r.device)
	r.depth.release = r.sync.release

	sizes := [bufferKindCount]uint64{
		bufVertex2D: r.cfg.InitialBufferSize,
		bufVertex3D: r.cfg.InitialBufferSize,
		bufIndex:    r.cfg.InitialBufferSize,
		bufUniform:  uint64(r.cfg.MaxDrawsPerFrame) * uniformAlignment,
	}
	usages := [bufferKindCount]gputypes.BufferUsage{
		bufVertex2D: gputypes.BufferUsageVertex,
		bufVertex3D: gputypes.BufferUsageVertex,
		bufIndex:    gputypes.BufferUsageIndex,
		bufUniform:  gputypes.BufferUsageUniform,
	}
	for k := range bufferKindCount {
		b, err := NewDynamicBuffer(r.device, r.queue, sizes[k], n, usages[k], "framepipe_"+bufferKindNames[k])
		if err != nil {
			return err
		}
		b.SetMaxSize(max(r.cfg.MaxBufferSize, sizes[k]))
		r.buffers[k] = b
	}
	r.uniformGroups = make([]hal.BindGroup, n)
	r.uniformGroupGens = make([]uint64, n)

	r.readback = NewBufferPool(r.device, r.queue, 1,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst, "framepipe_readback")
	r.textures = NewTextureCache(r.device, r.queue)
	r.entries = make(map[drawlist.TextureHandle]*textureEntry)
	r.byTex = make(map[*Texture]drawlist.TextureHandle)

	white := NewTexture(r.device, r.queue, "framepipe_white")
	if err := white.Create(1, 1, TextureFormatRGBA8, []byte{255, 255, 255, 255}); err != nil {
		return fmt.Errorf("create fallback texture: %w", err)
	}
	white.SetReleaser(r.sync.release)
	r.white = &textureEntry{tex: white}

	return r.createDefaultTarget()
}

// createDefaultTarget configures the surface, or creates the offscreen
// texture that stands in for it.
func (r *Renderer) createDefaultTarget() error {
	if r.cfg.Surface != nil {
		err := r.cfg.Surface.Configure(r.device, &hal.SurfaceConfiguration{
			Width:       r.cfg.Width,
			Height:      r.cfg.Height,
			Format:      r.cfg.Format,
			Usage:       gputypes.TextureUsageRenderAttachment,
			PresentMode: gputypes.PresentModeFifo,
			AlphaMode:   gputypes.CompositeAlphaModeOpaque,
		})
		if err != nil {
			return fmt.Errorf("configure surface: %w", err)
		}
		return nil
	}
	h, err := r.createRenderTarget(int(r.cfg.Width), int(r.cfg.Height), "framepipe_default_target")
	if err != nil {
		return err
	}
	r.defaultHandle = h
	return nil
}

// IsInitialized reports whether Initialize succeeded and Shutdown has not
// been called.
func (r *Renderer) IsInitialized() bool {
	return r.state == StateInitialized || r.state == StateFrameActive
}

// State returns the lifecycle state.
func (r *Renderer) State() RendererState { return r.state }

// Phase returns the sub-state of the active frame.
func (r *Renderer) Phase() FramePhase { return r.phase }

func (r *Renderer) checkUsable() error {
	switch r.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateShutdown:
		return ErrShutdown
	}
	return nil
}

func (r *Renderer) checkFrame() error {
	if err := r.checkUsable(); err != nil {
		return err
	}
	if r.state != StateFrameActive {
		return ErrNoActiveFrame
	}
	return nil
}

// BeginFrame waits until fewer than N frames are in flight, then opens the
// next frame slot for recording.
//
// It blocks while N frames are unfinished, polling for completions, and
// returns ctx's error if ctx ends first.
func (r *Renderer) BeginFrame(ctx context.Context) error {
	if err := r.checkUsable(); err != nil {
		return err
	}
	if r.state == StateFrameActive {
		return ErrFrameActive
	}
	if err := r.sync.acquire(ctx); err != nil {
		return fmt.Errorf("begin frame: %w", err)
	}
	r.sync.retire()

	slot := r.frameIndex
	if err := r.growSlot(slot); err != nil {
		r.sync.abandon()
		return fmt.Errorf("begin frame: %w", err)
	}

	r.frame = frameState{slot: slot}
	r.drawCalls.Store(0)
	r.vertices.Store(0)
	r.depth.newFrame()

	if err := r.acquireSurface(); err != nil {
		r.sync.abandon()
		return fmt.Errorf("begin frame: %w", err)
	}
	r.frame.target = r.defaultTarget()

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "framepipe_frame"})
	if err != nil {
		r.releaseSurface()
		r.sync.abandon()
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(fmt.Sprintf("framepipe_frame_%d", r.frames)); err != nil {
		r.releaseSurface()
		r.sync.abandon()
		return fmt.Errorf("begin encoding: %w", err)
	}
	r.frame.encoder = encoder
	r.frame.clear = r.pendingClear
	r.pendingClear = nil

	r.state = StateFrameActive
	r.phase = PhaseCommandBufferOpen
	return nil
}

// growSlot grows slot's buffers to the demand recorded by earlier
// capacity failures.
func (r *Renderer) growSlot(slot int) error {
	for k, b := range r.buffers {
		want := r.demand[k]
		if want == 0 || want <= b.Size(slot) {
			continue
		}
		if _, err := b.Allocate(want, slot); err != nil {
			return fmt.Errorf("grow %s: %w", bufferKindNames[k], err)
		}
	}
	return nil
}

// acquireSurface acquires the next surface texture and its view for the
// frame. It does nothing for an offscreen default target.
func (r *Renderer) acquireSurface() error {
	if r.cfg.Surface == nil {
		return nil
	}
	acquired, err := r.cfg.Surface.AcquireTexture(nil)
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	if acquired.Suboptimal {
		slogger().Debug("surface texture suboptimal")
	}
	view, err := r.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:           "framepipe_surface_view",
		Format:          r.cfg.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		r.cfg.Surface.DiscardTexture(acquired.Texture)
		return fmt.Errorf("create surface view: %w", err)
	}
	r.frame.surface = acquired
	r.frame.surfaceView = view
	return nil
}

// defaultTarget returns the default target of the current frame.
func (r *Renderer) defaultTarget() renderTarget {
	if r.cfg.Surface != nil {
		return renderTarget{
			surfaceView: r.frame.surfaceView,
			width:       r.cfg.Width,
			height:      r.cfg.Height,
			format:      r.cfg.Format,
		}
	}
	e := r.entries[r.defaultHandle]
	return renderTarget{
		handle:  r.defaultHandle,
		texture: e.tex,
		width:   uint32(e.tex.Width()),  //nolint:gosec // G115: positive dimensions
		height:  uint32(e.tex.Height()), //nolint:gosec // G115: positive dimensions
		format:  e.tex.Format().ToWGPUFormat(),
	}
}

// releaseSurface discards an acquired but unpresented surface texture.
func (r *Renderer) releaseSurface() {
	if r.frame.surface == nil {
		return
	}
	if r.frame.surfaceView != nil {
		r.device.DestroyTextureView(r.frame.surfaceView)
	}
	r.cfg.Surface.DiscardTexture(r.frame.surface.Texture)
	r.frame.surface = nil
	r.frame.surfaceView = nil
}

// EndFrame ends the open pass, submits the frame, presents it in surface
// mode and advances to the next slot. It never waits for the GPU.
func (r *Renderer) EndFrame() error {
	if err := r.checkFrame(); err != nil {
		return err
	}
	if err := r.flushClear(); err != nil {
		r.abortFrame()
		return err
	}
	r.endPass()

	cmdBuf, err := r.frame.encoder.EndEncoding()
	if err != nil {
		r.abortFrame()
		return fmt.Errorf("end encoding: %w", err)
	}
	index, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		r.device.FreeCommandBuffer(cmdBuf)
		r.abortFrame()
		return fmt.Errorf("submit: %w", err)
	}
	r.sync.submitted(index, r.frame.slot)
	r.sync.release(func() { r.device.FreeCommandBuffer(cmdBuf) })

	var presentErr error
	if r.frame.surface != nil {
		if err := r.queue.Present(r.cfg.Surface, r.frame.surface.Texture, nil); err != nil {
			presentErr = fmt.Errorf("present: %w", err)
		}
		if view := r.frame.surfaceView; view != nil {
			r.sync.release(func() { r.device.DestroyTextureView(view) })
		}
	}

	r.phase = PhasePresented
	r.frame = frameState{}
	r.frameIndex = (r.frameIndex + 1) % r.cfg.FramesInFlight
	r.frames++
	r.state = StateInitialized
	return presentErr
}

// abortFrame drops the current frame without submitting it.
func (r *Renderer) abortFrame() {
	if r.frame.pass != nil {
		r.frame.pass.End()
		r.frame.pass = nil
	}
	if r.frame.encoder != nil {
		r.frame.encoder.DiscardEncoding()
	}
	r.releaseSurface()
	r.frame = frameState{}
	r.sync.abandon()
	r.state = StateInitialized
	r.phase = PhaseIdle
}

// Shutdown waits for the device to go idle and releases every resource.
// It is idempotent.
func (r *Renderer) Shutdown() {
	if r.state == StateShutdown {
		return
	}
	if r.state == StateFrameActive {
		r.abortFrame()
	}
	if r.device != nil {
		if err := r.device.WaitIdle(); err != nil {
			slogger().Warn("wait idle failed during shutdown", "err", err)
		}
	}
	if r.sync != nil {
		r.sync.drain()
	}
	r.releaseResources()
	r.state = StateShutdown
	r.phase = PhaseIdle
	slogger().Debug("renderer shut down", "frames", r.frames)
}

// releaseResources destroys everything Initialize created, in reverse
// order. Safe on partially initialized renderers.
func (r *Renderer) releaseResources() {
	if r.device != nil {
		for i, g := range r.uniformGroups {
			if g != nil {
				r.device.DestroyBindGroup(g)
				r.uniformGroups[i] = nil
			}
		}
		for h, e := range r.entries {
			r.destroyEntry(e)
			delete(r.entries, h)
		}
		if r.white != nil {
			r.destroyEntry(r.white)
			r.white = nil
		}
	}
	if r.textures != nil {
		r.textures.Clear()
	}
	if r.readback != nil {
		r.readback.Clear()
	}
	for k, b := range r.buffers {
		if b != nil {
			b.Destroy()
			r.buffers[k] = nil
		}
	}
	if r.depth != nil {
		r.depth.destroyAll()
	}
	if r.pipelines != nil {
		r.pipelines.Destroy()
		r.pipelines = nil
	}
	if r.cfg.Surface != nil && r.device != nil {
		r.cfg.Surface.Unconfigure(r.device)
	}
	r.dev.release()
	r.device = nil
	r.queue = nil
}

// CurrentFrameIndex returns the slot of the current or next frame, in
// [0, N).
func (r *Renderer) CurrentFrameIndex() int { return r.frameIndex }

// FramesInFlight returns N.
func (r *Renderer) FramesInFlight() int { return r.cfg.FramesInFlight }

// FrameCount returns the number of submitted frames.
func (r *Renderer) FrameCount() uint64 { return r.frames }

// InFlight returns the number of submitted frames the GPU has not
// finished.
func (r *Renderer) InFlight() int {
	if r.sync == nil {
		return 0
	}
	return r.sync.inFlight()
}

// Statistics returns draw calls and vertices submitted in the current or
// last frame.
func (r *Renderer) Statistics() (drawCalls, vertices uint32) {
	return r.drawCalls.Load(), r.vertices.Load()
}

// LastGPUTime returns the time in milliseconds between submission and
// observed completion of the most recently completed frame.
func (r *Renderer) LastGPUTime() float64 {
	if r.sync == nil {
		return 0
	}
	return r.sync.gpuTime()
}

// Device returns the HAL device, or nil before Initialize.
func (r *Renderer) Device() hal.Device { return r.device }

// Queue returns the HAL queue, or nil before Initialize.
func (r *Renderer) Queue() hal.Queue { return r.queue }

// Name returns a description of the backend and adapter.
func (r *Renderer) Name() string {
	if r.dev == nil {
		return "framepipe (" + r.cfg.Backend + ")"
	}
	if r.dev.external {
		return "framepipe (external: " + r.dev.adapterName + ")"
	}
	return "framepipe (" + r.cfg.Backend + ": " + r.dev.adapterName + ")"
}

// Config returns the normalized configuration.
func (r *Renderer) Config() Config { return r.cfg }

// PipelineVariants returns the number of built pipeline variants.
func (r *Renderer) PipelineVariants() int {
	if r.pipelines == nil {
		return 0
	}
	return r.pipelines.Len()
}

// bufferSize returns the capacity of slot in the buffer of kind k.
func (r *Renderer) bufferSize(k bufferKind, slot int) uint64 {
	if r.buffers[k] == nil {
		return 0
	}
	return r.buffers[k].Size(slot)
}
