package framepipe

import (
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framepipe/internal/gpu"
)

// Option configures a renderer during creation.
//
// Example:
//
//	// Offscreen 1080p on the software backend
//	r, err := framepipe.New(
//		framepipe.WithSize(1920, 1080),
//		framepipe.WithBackend("software"),
//	)
type Option = gpu.Option

// Config is the normalized renderer configuration.
type Config = gpu.Config

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config { return gpu.DefaultConfig() }

// WithSize sets the size of the default render target.
func WithSize(width, height uint32) Option { return gpu.WithSize(width, height) }

// WithFramesInFlight sets how many frames the CPU may run ahead of the GPU.
// The default is 3.
func WithFramesInFlight(n int) Option { return gpu.WithFramesInFlight(n) }

// WithBackend selects the HAL backend by name: "noop", "software",
// "vulkan", "metal", "dx12" or "gl".
func WithBackend(name string) Option { return gpu.WithBackend(name) }

// WithDeviceProvider shares the GPU device of a host application.
//
// The provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option { return gpu.WithDeviceProvider(p) }

// WithHAL uses an already opened device and queue. They are not destroyed
// at Shutdown.
func WithHAL(device hal.Device, queue hal.Queue) Option { return gpu.WithHAL(device, queue) }

// WithSurface makes surface the default render target, presented at every
// EndFrame.
func WithSurface(surface hal.Surface) Option { return gpu.WithSurface(surface) }

// WithFormat sets the color format of the default target.
func WithFormat(f gputypes.TextureFormat) Option { return gpu.WithFormat(f) }

// WithInitialBufferSize sets the initial per-slot size of the vertex and
// index buffers.
func WithInitialBufferSize(n uint64) Option { return gpu.WithInitialBufferSize(n) }

// WithMaxBufferSize caps per-slot buffer growth.
func WithMaxBufferSize(n uint64) Option { return gpu.WithMaxBufferSize(n) }

// WithMaxDrawsPerFrame sets the number of per-draw uniform blocks in each
// frame slot.
func WithMaxDrawsPerFrame(n int) Option { return gpu.WithMaxDrawsPerFrame(n) }

// WithSPIRV compiles the built-in WGSL shaders to SPIR-V with naga before
// handing them to the backend.
func WithSPIRV(enabled bool) Option { return gpu.WithSPIRV(enabled) }

// WithPollInterval sets how often a blocked BeginFrame polls for completed
// frames.
func WithPollInterval(d time.Duration) Option { return gpu.WithPollInterval(d) }
