package framepipe

import "github.com/gogpu/framepipe/internal/gpu"

// Errors returned by renderers. Test with errors.Is.
var (
	ErrInitFailed          = gpu.ErrInitFailed
	ErrNotInitialized      = gpu.ErrNotInitialized
	ErrFrameActive         = gpu.ErrFrameActive
	ErrNoActiveFrame       = gpu.ErrNoActiveFrame
	ErrShutdown            = gpu.ErrShutdown
	ErrNilDevice           = gpu.ErrNilDevice
	ErrCapacityExceeded    = gpu.ErrCapacityExceeded
	ErrInvalidSlot         = gpu.ErrInvalidSlot
	ErrInvalidSize         = gpu.ErrInvalidSize
	ErrTextureLoad         = gpu.ErrTextureLoad
	ErrTextureNotFound     = gpu.ErrTextureNotFound
	ErrInvalidRenderTarget = gpu.ErrInvalidRenderTarget
	ErrEmptyDrawList       = gpu.ErrEmptyDrawList
)
