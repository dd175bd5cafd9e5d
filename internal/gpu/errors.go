package gpu

import "errors"

// Renderer errors.
var (
	// ErrInitFailed is returned when Initialize cannot bring up the device,
	// shaders, pipelines or buffers.
	ErrInitFailed = errors.New("gpu: initialization failed")

	// ErrNotInitialized is returned when an operation needs an initialized renderer.
	ErrNotInitialized = errors.New("gpu: renderer not initialized")

	// ErrFrameActive is returned by BeginFrame when a frame is already open.
	ErrFrameActive = errors.New("gpu: frame already active")

	// ErrNoActiveFrame is returned by frame operations outside BeginFrame/EndFrame.
	ErrNoActiveFrame = errors.New("gpu: no active frame")

	// ErrShutdown is returned after Shutdown.
	ErrShutdown = errors.New("gpu: renderer shut down")

	// ErrNilDevice is returned when a device or queue is missing.
	ErrNilDevice = errors.New("gpu: device is nil")
)

// Buffer errors.
var (
	// ErrCapacityExceeded is returned when a draw list does not fit the
	// current frame slot. The demand is remembered and the slot grows at
	// its next BeginFrame.
	ErrCapacityExceeded = errors.New("gpu: frame buffer capacity exceeded")

	// ErrInvalidSlot is returned for a frame slot outside [0, N).
	ErrInvalidSlot = errors.New("gpu: invalid frame slot")

	// ErrInvalidSize is returned for a zero or oversized allocation.
	ErrInvalidSize = errors.New("gpu: invalid size")

	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")
)

// Texture errors.
var (
	// ErrTextureLoad is returned when an image file cannot be read or decoded.
	ErrTextureLoad = errors.New("gpu: texture load failed")

	// ErrTextureNotFound is returned for an unknown texture handle.
	ErrTextureNotFound = errors.New("gpu: texture not found")

	// ErrTextureReleased is returned when operating on a released texture.
	ErrTextureReleased = errors.New("gpu: texture has been released")

	// ErrTextureSizeMismatch is returned when pixel data does not match
	// the texture or region size.
	ErrTextureSizeMismatch = errors.New("gpu: pixel data size does not match texture")

	// ErrInvalidRenderTarget is returned when a texture cannot be rendered to.
	ErrInvalidRenderTarget = errors.New("gpu: texture is not a render target")
)

// ErrEmptyDrawList is returned by ExecuteDrawList for a nil list.
var ErrEmptyDrawList = errors.New("gpu: draw list is nil")
