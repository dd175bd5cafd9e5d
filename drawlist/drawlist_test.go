package drawlist

import (
	"errors"
	"strings"
	"testing"
	"unsafe"
)

func quad(l *DrawList) Draw2D {
	first := l.AddVertices2D(
		White2D(0, 0, 0, 0),
		White2D(10, 0, 1, 0),
		White2D(10, 10, 1, 1),
		White2D(0, 10, 0, 1),
	)
	idx := l.AddIndices(0, 1, 2, 0, 2, 3)
	cmd := NewDraw2D()
	cmd.VertexOffset, cmd.VertexCount = first, 4
	cmd.IndexOffset, cmd.IndexCount = idx, 6
	return cmd
}

func TestDrawListAppendReturnsFirstIndex(t *testing.T) {
	l := New()

	if got := l.AddVertex2D(White2D(0, 0, 0, 0)); got != 0 {
		t.Errorf("first AddVertex2D = %d, want 0", got)
	}
	if got := l.AddVertices2D(White2D(1, 1, 0, 0), White2D(2, 2, 0, 0)); got != 1 {
		t.Errorf("AddVertices2D = %d, want 1", got)
	}
	if got := l.AddVertex3D(Vertex3D{}); got != 0 {
		t.Errorf("first AddVertex3D = %d, want 0", got)
	}
	if got := l.AddIndex(7); got != 0 {
		t.Errorf("AddIndex = %d, want 0", got)
	}
	if got := l.AddIndices(1, 2, 3); got != 1 {
		t.Errorf("AddIndices = %d, want 1", got)
	}

	if l.Vertex2DCount() != 3 || l.Vertex3DCount() != 1 || l.IndexCount() != 4 {
		t.Errorf("counts = (%d, %d, %d), want (3, 1, 4)",
			l.Vertex2DCount(), l.Vertex3DCount(), l.IndexCount())
	}
}

func TestDrawListByteViews(t *testing.T) {
	l := New()
	if l.Vertex2DData() != nil || l.Vertex3DData() != nil || l.IndexData() != nil {
		t.Fatal("empty list should return nil byte views")
	}

	l.AddVertices2D(V2(1, 2, 3, 4, 5, 6, 7, 8), V2(9, 10, 11, 12, 13, 14, 15, 16))
	l.AddVertex3D(V3(1, 2, 3, 0, 0, 1, 0, 0, 1, 1, 1, 1))
	l.AddIndices(0, 1)

	if got, want := len(l.Vertex2DData()), 2*Vertex2DSize; got != want {
		t.Errorf("len(Vertex2DData) = %d, want %d", got, want)
	}
	if l.Vertex2DDataSize() != 2*Vertex2DSize {
		t.Errorf("Vertex2DDataSize = %d", l.Vertex2DDataSize())
	}
	if got, want := len(l.Vertex3DData()), Vertex3DSize; got != want {
		t.Errorf("len(Vertex3DData) = %d, want %d", got, want)
	}
	if got, want := len(l.IndexData()), 2*IndexSize; got != want {
		t.Errorf("len(IndexData) = %d, want %d", got, want)
	}

	// The first float of the second vertex starts at byte 32.
	data := l.Vertex2DData()
	x := *(*float32)(unsafe.Pointer(&data[Vertex2DSize]))
	if x != 9 {
		t.Errorf("second vertex x = %v, want 9", x)
	}
}

func TestVertexSizes(t *testing.T) {
	if Vertex2DSize != 32 {
		t.Errorf("Vertex2DSize = %d, want 32", Vertex2DSize)
	}
	if Vertex3DSize != 48 {
		t.Errorf("Vertex3DSize = %d, want 48", Vertex3DSize)
	}
}

func TestDrawListCommandsKeepOrder(t *testing.T) {
	l := New()
	draw := quad(l)

	cmds := []Command{
		SetRenderTarget{Target: 3},
		NewClear(),
		SetViewport{Viewport: NewRect(0, 0, 64, 64)},
		draw,
		SetScissor{Scissor: NewRect(0, 0, 8, 8), Enabled: true},
		draw,
		SetRenderTarget{},
	}
	for _, c := range cmds {
		l.AddCommand(c)
	}
	l.AddCommand(nil)

	got := l.Commands()
	if len(got) != len(cmds) {
		t.Fatalf("CommandCount = %d, want %d", len(got), len(cmds))
	}
	for i := range cmds {
		if got[i].Type() != cmds[i].Type() {
			t.Errorf("command %d = %v, want %v", i, got[i].Type(), cmds[i].Type())
		}
	}
}

func TestDrawListResetKeepsCapacity(t *testing.T) {
	l := New()
	l.AddCommand(quad(l))
	capBefore := cap(l.Vertices2D())

	l.Reset()

	if !l.IsEmpty() {
		t.Error("IsEmpty() = false after Reset")
	}
	if cap(l.Vertices2D()) != capBefore {
		t.Errorf("capacity changed: %d -> %d", capBefore, cap(l.Vertices2D()))
	}
}

func TestDrawListReserve(t *testing.T) {
	l := &DrawList{}
	l.AddIndex(1)
	l.ReserveIndices(100)
	if cap(l.Indices())-len(l.Indices()) < 100 {
		t.Errorf("ReserveIndices: spare capacity %d, want >= 100", cap(l.Indices())-len(l.Indices()))
	}
	if l.Indices()[0] != 1 {
		t.Error("ReserveIndices lost existing data")
	}
	l.ReserveCommands(10)
	l.ReserveVertices2D(10)
	l.ReserveVertices3D(10)
	if cap(l.Vertices3D()) < 10 {
		t.Errorf("ReserveVertices3D: cap = %d", cap(l.Vertices3D()))
	}
}

func TestDrawListStats(t *testing.T) {
	l := New()
	l.AddCommand(NewClear())
	l.AddCommand(quad(l))
	l.AddCommand(NewDraw3D())

	s := l.Stats()
	if s.Commands != 3 || s.Draws != 2 || s.Vertices2D != 4 || s.Indices != 6 {
		t.Errorf("Stats() = %+v", s)
	}
	if !strings.Contains(s.String(), "draws=2") {
		t.Errorf("String() = %q", s.String())
	}
}

func TestDrawListValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func(l *DrawList)
		wantErr bool
	}{
		{"valid quad", func(l *DrawList) { l.AddCommand(quad(l)) }, false},
		{"vertex overflow", func(l *DrawList) {
			c := quad(l)
			c.VertexCount = 5
			l.AddCommand(c)
		}, true},
		{"index overflow", func(l *DrawList) {
			c := quad(l)
			c.IndexOffset = 4
			l.AddCommand(c)
		}, true},
		{"3D without vertices", func(l *DrawList) {
			c := NewDraw3D()
			c.VertexCount = 3
			l.AddCommand(c)
		}, true},
		{"zero count is fine", func(l *DrawList) {
			c := NewDraw2D()
			c.VertexOffset = 99
			l.AddCommand(c)
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			tt.build(l)
			err := l.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommandDefaults(t *testing.T) {
	d := NewDraw2D()
	if d.Blend != BlendModeAlpha || d.Primitive != PrimitiveTriangle || d.Transform != Identity4() {
		t.Errorf("NewDraw2D() = %+v", d)
	}
	d3 := NewDraw3D()
	if d3.DepthTest || d3.DepthWrite || d3.CullBackFace {
		t.Error("NewDraw3D should start with depth and culling disabled")
	}
	if d3.Normal != Identity3() {
		t.Error("NewDraw3D normal matrix should be identity")
	}
	c := NewClear()
	if !c.ClearColor || c.ClearDepth || c.Depth != 1 || c.Color[3] != 1 {
		t.Errorf("NewClear() = %+v", c)
	}
}

func TestCommandType_String(t *testing.T) {
	tests := []struct {
		ct   CommandType
		want string
	}{
		{CmdDraw2D, "Draw2D"},
		{CmdDraw3D, "Draw3D"},
		{CmdSetViewport, "SetViewport"},
		{CmdSetScissor, "SetScissor"},
		{CmdClear, "Clear"},
		{CmdSetRenderTarget, "SetRenderTarget"},
		{CommandType(200), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.ct.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBlendModes(t *testing.T) {
	modes := BlendModes()
	if len(modes) != int(BlendModeCount) {
		t.Fatalf("len(BlendModes()) = %d, want %d", len(modes), BlendModeCount)
	}
	for _, m := range modes {
		if !m.Valid() {
			t.Errorf("%v not valid", m)
		}
		parsed, ok := ParseBlendMode(m.String())
		if !ok || parsed != m {
			t.Errorf("ParseBlendMode(%q) = %v, %v", m.String(), parsed, ok)
		}
	}
	if BlendModeCount.Valid() {
		t.Error("BlendModeCount should not be valid")
	}
	if m, ok := ParseBlendMode("premultipliedalpha"); !ok || m != BlendModePremultipliedAlpha {
		t.Errorf("ParseBlendMode is case sensitive: %v, %v", m, ok)
	}
	if _, ok := ParseBlendMode("Burn"); ok {
		t.Error("ParseBlendMode accepted unknown name")
	}
	if BlendModeDisabled != 0 || BlendModeDifference != 10 {
		t.Error("blend mode numbering changed")
	}
}

func TestPrimitiveType(t *testing.T) {
	if PrimitiveTriangleStrip.String() != "TriangleStrip" {
		t.Errorf("String() = %q", PrimitiveTriangleStrip.String())
	}
	if PrimitiveType(9).Valid() || PrimitiveType(9).String() != "Unknown" {
		t.Error("out-of-range primitive should be invalid and Unknown")
	}
}

func TestCheckRangeMessage(t *testing.T) {
	err := checkRange(2, 4, 4, 6, "index")
	if err == nil || errors.Unwrap(err) != nil {
		t.Fatalf("checkRange = %v", err)
	}
	if !strings.Contains(err.Error(), "command 2") {
		t.Errorf("message %q missing command number", err)
	}
}

func BenchmarkDrawListRecordQuads(b *testing.B) {
	l := New()
	for i := 0; i < b.N; i++ {
		l.Reset()
		for q := 0; q < 1000; q++ {
			l.AddCommand(quad(l))
		}
	}
}
