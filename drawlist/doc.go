// Package drawlist records one frame of drawing work for deferred
// execution by a renderer.
//
// A DrawList holds three append-only payload arrays (2D vertices, 3D
// vertices, 32-bit indices) and an ordered sequence of typed commands that
// reference ranges of those arrays. Nothing here touches the GPU; the
// renderer uploads the payload into per-frame buffers and replays the
// commands in order.
//
// # Commands
//
// The command set is closed:
//   - Draw2D, Draw3D draw a vertex range with a blend mode, topology,
//     transform and optional texture
//   - SetViewport, SetScissor update rasterizer state
//   - Clear clears attachments of the current target
//   - SetRenderTarget switches between an offscreen texture and the
//     default target
//
// Commands are plain values; executors switch on the concrete type.
//
// # Example
//
//	l := drawlist.New()
//	first := l.AddVertices2D(
//	    drawlist.White2D(0, 0, 0, 0),
//	    drawlist.White2D(100, 0, 1, 0),
//	    drawlist.White2D(100, 100, 1, 1),
//	    drawlist.White2D(0, 100, 0, 1),
//	)
//	// Indices are relative to the draw's VertexOffset.
//	idx := l.AddIndices(0, 1, 2, 0, 2, 3)
//
//	cmd := drawlist.NewDraw2D()
//	cmd.VertexOffset, cmd.VertexCount = first, 4
//	cmd.IndexOffset, cmd.IndexCount = idx, 6
//	cmd.Transform = drawlist.ScreenOrtho(800, 600)
//	l.AddCommand(cmd)
//
//	r.ExecuteDrawList(l)
package drawlist
