package drawlist

// CommandType identifies the type of a command.
type CommandType uint8

const (
	// Drawing commands
	CmdDraw2D CommandType = iota // Draw a range of 2D vertices
	CmdDraw3D                    // Draw a range of 3D vertices

	// State commands
	CmdSetViewport     // Set viewport rectangle
	CmdSetScissor      // Set or disable scissor rectangle
	CmdClear           // Clear the current render target
	CmdSetRenderTarget // Switch render target
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdDraw2D:          "Draw2D",
	CmdDraw3D:          "Draw3D",
	CmdSetViewport:     "SetViewport",
	CmdSetScissor:      "SetScissor",
	CmdClear:           "Clear",
	CmdSetRenderTarget: "SetRenderTarget",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is implemented by every command a DrawList can hold.
//
// The set of commands is closed: the unexported method keeps other packages
// from adding variants, so executors can switch exhaustively on the
// concrete type.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType

	command()
}

// TextureHandle is an opaque reference to a renderer-owned texture.
// The zero value means "no texture" for draws and "default target" for
// SetRenderTarget.
type TextureHandle uint64

// IsZero reports whether h refers to no texture.
func (h TextureHandle) IsZero() bool { return h == 0 }

// Rect is an axis-aligned rectangle in pixels, origin top-left.
type Rect struct {
	X, Y          float32
	Width, Height float32
}

// NewRect creates a rectangle from origin and size.
func NewRect(x, y, w, h float32) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// --------------------------------------------------------------------------
// Drawing Commands
// --------------------------------------------------------------------------

// Draw2D draws a range of the list's 2D vertices.
type Draw2D struct {
	// VertexOffset is the index of the first vertex in the 2D vertex array.
	VertexOffset uint32
	// VertexCount is the number of vertices to draw.
	VertexCount uint32

	// IndexOffset is the position of the first index in the index array.
	// Index values are relative to VertexOffset.
	IndexOffset uint32
	// IndexCount is the number of indices; zero draws non-indexed.
	IndexCount uint32

	Blend     BlendMode
	Primitive PrimitiveType

	// Transform is applied to every vertex position.
	Transform Mat4

	// Texture is sampled by the fragment stage; zero draws untextured.
	Texture TextureHandle
}

// NewDraw2D returns a Draw2D with alpha blending, triangle topology and an
// identity transform.
func NewDraw2D() Draw2D {
	return Draw2D{
		Blend:     BlendModeAlpha,
		Primitive: PrimitiveTriangle,
		Transform: Identity4(),
	}
}

// Type implements Command.
func (Draw2D) Type() CommandType { return CmdDraw2D }

func (Draw2D) command() {}

// Draw3D draws a range of the list's 3D vertices.
type Draw3D struct {
	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32

	Blend     BlendMode
	Primitive PrimitiveType
	Texture   TextureHandle

	// ModelView transforms object space into view space.
	ModelView Mat4
	// Projection transforms view space into clip space.
	Projection Mat4
	// Normal transforms normals; usually the inverse transpose of ModelView.
	Normal Mat3

	DepthTest    bool
	DepthWrite   bool
	CullBackFace bool
}

// NewDraw3D returns a Draw3D with alpha blending, triangle topology,
// identity matrices and depth disabled.
func NewDraw3D() Draw3D {
	return Draw3D{
		Blend:      BlendModeAlpha,
		Primitive:  PrimitiveTriangle,
		ModelView:  Identity4(),
		Projection: Identity4(),
		Normal:     Identity3(),
	}
}

// Type implements Command.
func (Draw3D) Type() CommandType { return CmdDraw3D }

func (Draw3D) command() {}

// --------------------------------------------------------------------------
// State Commands
// --------------------------------------------------------------------------

// SetViewport sets the viewport rectangle.
type SetViewport struct {
	Viewport Rect
}

// Type implements Command.
func (SetViewport) Type() CommandType { return CmdSetViewport }

func (SetViewport) command() {}

// SetScissor sets the scissor rectangle, or disables scissoring.
type SetScissor struct {
	Scissor Rect
	Enabled bool
}

// Type implements Command.
func (SetScissor) Type() CommandType { return CmdSetScissor }

func (SetScissor) command() {}

// Clear clears attachments of the current render target.
type Clear struct {
	// Color is the RGBA clear colour in the 0..1 range.
	Color [4]float32
	// Depth is the depth clear value in the 0..1 range.
	Depth float32
	// Stencil is the stencil clear value.
	Stencil uint32

	ClearColor   bool
	ClearDepth   bool
	ClearStencil bool
}

// NewClear returns a Clear of the colour buffer to opaque black.
func NewClear() Clear {
	return Clear{
		Color:      [4]float32{0, 0, 0, 1},
		Depth:      1,
		ClearColor: true,
	}
}

// Type implements Command.
func (Clear) Type() CommandType { return CmdClear }

func (Clear) command() {}

// SetRenderTarget redirects subsequent draws to a texture, or back to the
// default target when Target is zero.
type SetRenderTarget struct {
	Target TextureHandle
}

// Type implements Command.
func (SetRenderTarget) Type() CommandType { return CmdSetRenderTarget }

func (SetRenderTarget) command() {}
