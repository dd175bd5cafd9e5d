package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferPool recycles DynamicBuffers for transient work such as texture
// readback.
//
// Acquire is first-fit: the first available buffer whose capacity for the
// requested slot is large enough is handed out. Buffers move between the
// available and in-use sets; nothing is destroyed until Clear.
type BufferPool struct {
	mu sync.Mutex

	device         hal.Device
	queue          hal.Queue
	framesInFlight int
	usage          gputypes.BufferUsage
	label          string

	available []*DynamicBuffer
	inUse     map[*DynamicBuffer]struct{}
	created   int
}

// NewBufferPool creates an empty pool. Buffers it creates have
// framesInFlight slots and the given usage.
func NewBufferPool(
	device hal.Device,
	queue hal.Queue,
	framesInFlight int,
	usage gputypes.BufferUsage,
	label string,
) *BufferPool {
	return &BufferPool{
		device:         device,
		queue:          queue,
		framesInFlight: framesInFlight,
		usage:          usage,
		label:          label,
		inUse:          make(map[*DynamicBuffer]struct{}),
	}
}

// Acquire returns a buffer whose slot capacity is at least size bytes,
// reusing an available one when possible.
func (p *BufferPool) Acquire(size uint64, slot int) (*DynamicBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: acquire 0 bytes", ErrInvalidSize)
	}
	if slot < 0 || slot >= p.framesInFlight {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidSlot, slot, p.framesInFlight)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, buf := range p.available {
		if buf.Size(slot) >= size {
			p.available = append(p.available[:i], p.available[i+1:]...)
			p.inUse[buf] = struct{}{}
			return buf, nil
		}
	}

	p.created++
	buf, err := NewDynamicBuffer(p.device, p.queue, size, p.framesInFlight, p.usage,
		fmt.Sprintf("%s#%d", p.label, p.created))
	if err != nil {
		return nil, fmt.Errorf("buffer pool %s: %w", p.label, err)
	}
	p.inUse[buf] = struct{}{}
	return buf, nil
}

// Release returns a buffer to the pool. Buffers the pool did not hand
// out, and buffers already released, are ignored.
func (p *BufferPool) Release(buf *DynamicBuffer) {
	if buf == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inUse[buf]; !ok {
		return
	}
	delete(p.inUse, buf)
	p.available = append(p.available, buf)
}

// Clear destroys every buffer the pool owns, available or in use.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, buf := range p.available {
		buf.Destroy()
	}
	for buf := range p.inUse {
		buf.Destroy()
	}
	p.available = nil
	p.inUse = make(map[*DynamicBuffer]struct{})
}

// Len returns the number of buffers owned by the pool.
func (p *BufferPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available) + len(p.inUse)
}

// Available returns the number of buffers ready for reuse.
func (p *BufferPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}
