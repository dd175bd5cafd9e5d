// Package gpu executes frames of recorded draw commands on a
// gogpu/wgpu HAL device.
//
// It is the private implementation behind framepipe.Renderer. The package
// owns every GPU resource the pipeline needs and exposes them through a
// single Renderer that is driven from one goroutine.
//
// # Architecture Overview
//
//	DrawList -> Renderer.ExecuteDrawList -> DynamicBuffer ring (per frame slot)
//	                                     -> PipelineCache (family x blend x state)
//	                                     -> render pass on the current target
//
// Key components:
//
//   - DynamicBuffer: one GPU buffer per frame slot, grown on demand by 1.5x
//   - BufferPool: first-fit reuse of DynamicBuffers for transient work
//   - Texture, TextureCache: sampled textures, path-keyed load cache
//   - PipelineCache: render pipelines for every shader family and blend mode
//   - frameSync: frames-in-flight semaphore fed by queue completion polling
//   - Renderer: the frame state machine
//
// # Frames in flight
//
// The renderer keeps up to N frames queued on the GPU (default 3). Each
// frame writes into its own slot of every DynamicBuffer, so the CPU never
// overwrites memory the GPU may still read. BeginFrame blocks until one of
// the N permits is free; a permit is returned when the submission that
// used it is observed complete by Queue.PollCompleted.
//
// # Capacity
//
// Buffers never grow in the middle of a frame. When a draw list does not
// fit the remaining capacity of the current slot, ExecuteDrawList returns
// ErrCapacityExceeded without executing anything and remembers the demand;
// the slot is grown the next time it is acquired by BeginFrame.
//
// # Logging
//
// The package logs through log/slog. The logger is silent until
// framepipe.SetLogger installs one.
package gpu
