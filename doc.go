// Package framepipe records drawing work into deferred command lists and
// executes them on a GPU with a bounded number of frames in flight.
//
// # Overview
//
// A caller fills a [drawlist.DrawList] with vertices, indices and commands,
// then hands it to a [Renderer] between BeginFrame and EndFrame. The
// renderer uploads the payload into per-frame dynamic buffers, switches
// render targets and pipeline variants as the commands ask, and submits
// the frame without waiting for the GPU. BeginFrame blocks only when N
// frames are still unfinished.
//
// # Quick Start
//
//	r, err := framepipe.New(framepipe.WithSize(640, 480))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Shutdown()
//
//	list := drawlist.New()
//	first := list.AddVertices2D(
//		drawlist.White2D(0, 0, 0, 0),
//		drawlist.White2D(100, 0, 1, 0),
//		drawlist.White2D(0, 100, 0, 1),
//	)
//	cmd := drawlist.NewDraw2D()
//	cmd.VertexOffset = first
//	cmd.VertexCount = 3
//	cmd.Transform = drawlist.ScreenOrtho(640, 480)
//	list.AddCommand(cmd)
//
//	if err := r.BeginFrame(ctx); err != nil {
//		return err
//	}
//	if err := r.ExecuteDrawList(list); err != nil {
//		return err
//	}
//	return r.EndFrame()
//
// # Backends
//
// The renderer runs on any gogpu/wgpu HAL backend. "noop" and "software"
// are always available; import github.com/gogpu/wgpu/hal/allbackends to
// register Vulkan, Metal, DX12 and GLES. A host application that already
// owns a device shares it through [WithDeviceProvider] or [WithHAL].
//
// # Errors
//
// Every failing operation returns an error that wraps one of the sentinels
// re-exported here, such as [ErrCapacityExceeded]. Capacity failures and
// degenerate calls leave the renderer usable.
package framepipe

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
