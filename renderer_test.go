package framepipe

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/framepipe/drawlist"
)

func newRenderer(t *testing.T, opts ...Option) *GPURenderer {
	t.Helper()
	r, err := New(append([]Option{WithBackend("noop"), WithSize(32, 32)}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(r.Shutdown)
	return r
}

func triangleList(w, h float32) *drawlist.DrawList {
	list := drawlist.New()
	first := list.AddVertices2D(
		drawlist.White2D(0, 0, 0, 0),
		drawlist.White2D(w, 0, 1, 0),
		drawlist.White2D(0, h, 0, 1),
	)
	cmd := drawlist.NewDraw2D()
	cmd.VertexOffset = first
	cmd.VertexCount = 3
	cmd.Transform = drawlist.ScreenOrtho(w, h)
	list.AddCommand(cmd)
	return list
}

func TestNewRunsFrames(t *testing.T) {
	var r Renderer = newRenderer(t)
	if !r.IsInitialized() {
		t.Fatal("New returned an uninitialized renderer")
	}

	ctx := context.Background()
	for frame := range 5 {
		if err := r.BeginFrame(ctx); err != nil {
			t.Fatalf("frame %d: BeginFrame failed: %v", frame, err)
		}
		if err := r.ExecuteDrawList(triangleList(32, 32)); err != nil {
			t.Fatalf("frame %d: ExecuteDrawList failed: %v", frame, err)
		}
		if err := r.EndFrame(); err != nil {
			t.Fatalf("frame %d: EndFrame failed: %v", frame, err)
		}
	}
	if draws, verts := r.Statistics(); draws != 1 || verts != 3 {
		t.Errorf("Statistics() = (%d, %d), want (1, 3)", draws, verts)
	}
	if r.CurrentFrameIndex() != 5%3 {
		t.Errorf("CurrentFrameIndex() = %d, want %d", r.CurrentFrameIndex(), 5%3)
	}
}

func TestNewFailsWithWrappedError(t *testing.T) {
	_, err := New(WithBackend("does-not-exist"))
	if !errors.Is(err, ErrInitFailed) {
		t.Errorf("error = %v, want ErrInitFailed", err)
	}
}

func TestReexportedErrors(t *testing.T) {
	r := newRenderer(t)

	if err := r.EndFrame(); !errors.Is(err, ErrNoActiveFrame) {
		t.Errorf("EndFrame error = %v, want ErrNoActiveFrame", err)
	}
	if err := r.BeginFrame(context.Background()); err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if err := r.ExecuteDrawList(nil); !errors.Is(err, ErrEmptyDrawList) {
		t.Errorf("ExecuteDrawList(nil) error = %v, want ErrEmptyDrawList", err)
	}
	if err := r.SetRenderTarget(12345); !errors.Is(err, ErrTextureNotFound) {
		t.Errorf("SetRenderTarget error = %v, want ErrTextureNotFound", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame failed: %v", err)
	}
	if _, err := r.LoadTexture("missing.png"); !errors.Is(err, ErrTextureLoad) {
		t.Errorf("LoadTexture error = %v, want ErrTextureLoad", err)
	}

	r.Shutdown()
	if err := r.BeginFrame(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("BeginFrame after Shutdown error = %v, want ErrShutdown", err)
	}
}

func TestRenderToTextureAndRead(t *testing.T) {
	r := newRenderer(t)

	target, err := r.CreateRenderTarget(16, 16)
	if err != nil {
		t.Fatalf("CreateRenderTarget failed: %v", err)
	}

	list := drawlist.New()
	list.AddCommand(drawlist.SetRenderTarget{Target: target})
	list.AddCommand(drawlist.NewClear())
	tri := triangleList(16, 16)
	list.AddVertices2D(tri.Vertices2D()...)
	list.AddCommand(tri.Commands()[0])
	list.AddCommand(drawlist.SetRenderTarget{})

	if err := r.BeginFrame(context.Background()); err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if err := r.ExecuteDrawList(list); err != nil {
		t.Fatalf("ExecuteDrawList failed: %v", err)
	}
	if r.ViewportWidth() != 32 {
		t.Errorf("ViewportWidth() = %d after returning to the default target, want 32", r.ViewportWidth())
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame failed: %v", err)
	}

	pixels := make([]byte, 16*16*4)
	if err := r.ReadTexturePixels(target, pixels, 16, 16, 16*4); err != nil {
		t.Fatalf("ReadTexturePixels failed: %v", err)
	}
	r.DestroyTexture(target)
	if err := r.ReadTexturePixels(target, pixels, 16, 16, 16*4); !errors.Is(err, ErrTextureNotFound) {
		t.Errorf("read after destroy error = %v, want ErrTextureNotFound", err)
	}
}
