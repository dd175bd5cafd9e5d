package framepipe

import (
	"context"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/drawlist"
	"github.com/gogpu/framepipe/internal/gpu"
)

// Renderer is the backend contract: it executes command lists against a
// GPU device one frame at a time.
//
// A Renderer is driven from a single goroutine. Operations that need an
// open frame return an error wrapping ErrNoActiveFrame outside
// BeginFrame/EndFrame.
type Renderer interface {
	// Initialize opens the device and creates pipelines, frame buffers and
	// the default render target. Failure wraps ErrInitFailed.
	Initialize() error
	// Shutdown waits for the GPU and releases everything. Idempotent.
	Shutdown()
	IsInitialized() bool

	// BeginFrame blocks while N frames are unfinished and returns ctx's
	// error if ctx ends first.
	BeginFrame(ctx context.Context) error
	// EndFrame submits the frame and presents it. It never waits for the GPU.
	EndFrame() error
	// CurrentFrameIndex returns the slot in [0, N) of the current frame.
	CurrentFrameIndex() int

	// ExecuteDrawList uploads the list's payload and records its commands.
	ExecuteDrawList(list *drawlist.DrawList) error

	SetViewport(x, y, width, height float32)
	SetScissor(x, y, width, height float32)
	SetScissorEnabled(enabled bool)
	Clear(color [4]float32, clearColor, clearDepth bool, depth float32) error
	SetBlendMode(mode drawlist.BlendMode)
	SetDepthTestEnabled(enabled bool)
	SetDepthWriteEnabled(enabled bool)
	SetCullingMode(cullBack, enabled bool)

	// SetRenderTarget directs further draws to h, or to the default target
	// when h is zero.
	SetRenderTarget(h drawlist.TextureHandle) error
	DefaultRenderTarget() drawlist.TextureHandle
	CreateRenderTarget(width, height int) (drawlist.TextureHandle, error)

	CreateTexture(width, height int, data []byte) (drawlist.TextureHandle, error)
	LoadTexture(path string) (drawlist.TextureHandle, error)
	// DestroyTexture releases h once no frame in flight can use it.
	DestroyTexture(h drawlist.TextureHandle)
	// ReadTexturePixels copies width x height RGBA pixels of h into dst,
	// stride bytes per row. Zero h reads the default target.
	ReadTexturePixels(h drawlist.TextureHandle, dst []byte, width, height, stride int) error

	Device() hal.Device
	Name() string
	ViewportWidth() uint32
	ViewportHeight() uint32
	// Statistics returns draw calls and vertices of the current or last frame.
	Statistics() (drawCalls, vertices uint32)
	// LastGPUTime returns the submit-to-completion time of the most
	// recently completed frame in milliseconds.
	LastGPUTime() float64
}

// GPURenderer is the Renderer implementation on gogpu/wgpu HAL.
type GPURenderer = gpu.Renderer

var _ Renderer = (*GPURenderer)(nil)

// NewRenderer returns an uninitialized GPURenderer.
func NewRenderer(opts ...Option) *GPURenderer {
	return gpu.NewRenderer(opts...)
}

// New returns an initialized GPURenderer.
func New(opts ...Option) (*GPURenderer, error) {
	r := gpu.NewRenderer(opts...)
	if err := r.Initialize(); err != nil {
		return nil, err
	}
	return r, nil
}
