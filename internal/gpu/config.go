package gpu

import (
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Defaults used when an option is not given.
const (
	DefaultFramesInFlight    = 3
	DefaultWidth             = 800
	DefaultHeight            = 600
	DefaultInitialBufferSize = 1 << 20  // 1 MiB per slot
	DefaultMaxBufferSize     = 64 << 20 // 64 MiB per slot
	DefaultMaxDrawsPerFrame  = 1024
	DefaultPollInterval      = 500 * time.Microsecond
	DefaultBackend           = "noop"
)

// uniformAlignment is the slot size of one per-draw uniform block. It is
// the largest MinUniformBufferOffsetAlignment WebGPU permits.
const uniformAlignment = 256

// Config holds the renderer configuration.
type Config struct {
	Width, Height  uint32
	FramesInFlight int

	// Backend names the HAL backend opened by Initialize: "noop",
	// "software", "vulkan", "metal", "dx12" or "gl". Ignored when a device
	// is supplied through Provider or Device/Queue.
	Backend string

	Provider gpucontext.DeviceProvider
	Device   hal.Device
	Queue    hal.Queue

	// Surface, when set, is configured at Initialize and becomes the
	// default render target. Otherwise an offscreen texture is used.
	Surface hal.Surface

	// Format is the color format of the default target and of the
	// prebuilt pipeline variants.
	Format gputypes.TextureFormat

	InitialBufferSize uint64
	MaxBufferSize     uint64
	MaxDrawsPerFrame  int

	// PrecompileSPIRV compiles WGSL to SPIR-V with naga before handing
	// it to the backend.
	PrecompileSPIRV bool

	// PollInterval paces the wait loop of BeginFrame.
	PollInterval time.Duration
}

// Option configures a Renderer.
type Option func(*Config)

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		FramesInFlight:    DefaultFramesInFlight,
		Backend:           DefaultBackend,
		Format:            gputypes.TextureFormatRGBA8Unorm,
		InitialBufferSize: DefaultInitialBufferSize,
		MaxBufferSize:     DefaultMaxBufferSize,
		MaxDrawsPerFrame:  DefaultMaxDrawsPerFrame,
		PollInterval:      DefaultPollInterval,
	}
}

// normalize replaces zero and out-of-range values with defaults.
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Height == 0 {
		c.Height = d.Height
	}
	if c.FramesInFlight <= 0 {
		c.FramesInFlight = d.FramesInFlight
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = d.Format
	}
	if c.InitialBufferSize == 0 {
		c.InitialBufferSize = d.InitialBufferSize
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = d.MaxBufferSize
	}
	if c.MaxBufferSize < c.InitialBufferSize {
		c.MaxBufferSize = c.InitialBufferSize
	}
	if c.MaxDrawsPerFrame <= 0 {
		c.MaxDrawsPerFrame = d.MaxDrawsPerFrame
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
}

// WithSize sets the default target size.
func WithSize(width, height uint32) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithFramesInFlight sets how many frames the CPU may run ahead of the GPU.
func WithFramesInFlight(n int) Option {
	return func(c *Config) { c.FramesInFlight = n }
}

// WithBackend selects the HAL backend by name.
func WithBackend(name string) Option {
	return func(c *Config) { c.Backend = name }
}

// WithDeviceProvider shares the device of a host application. The
// provider's surface format becomes the default format when defined.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(c *Config) { c.Provider = p }
}

// WithHAL uses an already opened device and queue. The renderer does not
// destroy them at Shutdown.
func WithHAL(device hal.Device, queue hal.Queue) Option {
	return func(c *Config) {
		c.Device = device
		c.Queue = queue
	}
}

// WithSurface renders the default target into surface and presents it at
// EndFrame.
func WithSurface(s hal.Surface) Option {
	return func(c *Config) { c.Surface = s }
}

// WithFormat sets the default color format.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(c *Config) { c.Format = f }
}

// WithInitialBufferSize sets the initial per-slot size of the vertex and
// index buffers.
func WithInitialBufferSize(n uint64) Option {
	return func(c *Config) { c.InitialBufferSize = n }
}

// WithMaxBufferSize caps per-slot buffer growth.
func WithMaxBufferSize(n uint64) Option {
	return func(c *Config) { c.MaxBufferSize = n }
}

// WithMaxDrawsPerFrame sets the initial number of per-draw uniform blocks
// in each frame slot.
func WithMaxDrawsPerFrame(n int) Option {
	return func(c *Config) { c.MaxDrawsPerFrame = n }
}

// WithSPIRV enables WGSL to SPIR-V precompilation.
func WithSPIRV(enabled bool) Option {
	return func(c *Config) { c.PrecompileSPIRV = enabled }
}

// WithPollInterval sets how often a blocked BeginFrame polls for
// completed submissions.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}
