package gpu

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framepipe/drawlist"
)

// createNoopDevice opens a device on the noop backend.
func createNoopDevice(tb testing.TB) (hal.Device, hal.Queue, func()) {
	tb.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		tb.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		tb.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// gatedQueue wraps a queue so tests decide when submissions complete.
type gatedQueue struct {
	hal.Queue

	submitted atomic.Uint64
	completed atomic.Uint64
}

func (q *gatedQueue) Submit(buffers []hal.CommandBuffer) (uint64, error) {
	if _, err := q.Queue.Submit(buffers); err != nil {
		return 0, err
	}
	return q.submitted.Add(1), nil
}

func (q *gatedQueue) PollCompleted() uint64 { return q.completed.Load() }

// complete marks every submission up to index as done.
func (q *gatedQueue) complete(index uint64) { q.completed.Store(index) }

// completeAll marks every submission so far as done.
func (q *gatedQueue) completeAll() { q.completed.Store(q.submitted.Load()) }

// failingQueue wraps a queue so writes into one chosen buffer fail.
type failingQueue struct {
	hal.Queue

	fail hal.Buffer
}

var errWriteRejected = errors.New("write rejected")

func (q *failingQueue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	if q.fail != nil && buffer == q.fail {
		return errWriteRejected
	}
	return q.Queue.WriteBuffer(buffer, offset, data)
}

// encoderDevice wraps a device so tests can fail command encoding and see
// whether failed encoders are discarded.
type encoderDevice struct {
	hal.Device

	failBegin bool
	failEnd   bool
	discarded int
}

var errEncodingRejected = errors.New("encoding rejected")

func (d *encoderDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &trackedEncoder{CommandEncoder: enc, device: d}, nil
}

type trackedEncoder struct {
	hal.CommandEncoder

	device *encoderDevice
}

func (e *trackedEncoder) BeginEncoding(label string) error {
	if e.device.failBegin {
		return errEncodingRejected
	}
	return e.CommandEncoder.BeginEncoding(label)
}

func (e *trackedEncoder) EndEncoding() (hal.CommandBuffer, error) {
	if e.device.failEnd {
		return nil, errEncodingRejected
	}
	return e.CommandEncoder.EndEncoding()
}

func (e *trackedEncoder) DiscardEncoding() {
	e.device.discarded++
	e.CommandEncoder.DiscardEncoding()
}

// newTestRenderer returns an initialized 64x64 renderer on the noop
// backend. It is shut down when the test ends.
func newTestRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	all := append([]Option{WithBackend("noop"), WithSize(64, 64)}, opts...)
	r := NewRenderer(all...)
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(r.Shutdown)
	return r
}

// newGatedRenderer returns an initialized renderer whose submissions only
// complete when the test says so.
func newGatedRenderer(t *testing.T, opts ...Option) (*Renderer, *gatedQueue) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	gq := &gatedQueue{Queue: queue}
	return newTestRenderer(t, append([]Option{WithHAL(device, gq)}, opts...)...), gq
}

// runFrame records list, if any, into one complete frame.
func runFrame(t *testing.T, r *Renderer, list *drawlist.DrawList) {
	t.Helper()
	if err := r.BeginFrame(context.Background()); err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if list != nil {
		if err := r.ExecuteDrawList(list); err != nil {
			t.Fatalf("ExecuteDrawList failed: %v", err)
		}
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame failed: %v", err)
	}
}

// quadList returns a list with one indexed Draw2D of a 4-vertex quad.
func quadList(texture drawlist.TextureHandle) *drawlist.DrawList {
	list := drawlist.New()
	first := list.AddVertices2D(
		drawlist.White2D(0, 0, 0, 0),
		drawlist.White2D(16, 0, 1, 0),
		drawlist.White2D(16, 16, 1, 1),
		drawlist.White2D(0, 16, 0, 1),
	)
	idx := list.AddIndices(first, first+1, first+2, first, first+2, first+3)
	cmd := drawlist.NewDraw2D()
	cmd.VertexOffset = 0
	cmd.VertexCount = 4
	cmd.IndexOffset = idx
	cmd.IndexCount = 6
	cmd.Texture = texture
	list.AddCommand(cmd)
	return list
}
