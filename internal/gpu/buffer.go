package gpu

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyBufferAlignment is the size and offset alignment for buffer copies.
const copyBufferAlignment uint64 = 4

// growthNumerator and growthDenominator give the 1.5x growth factor.
const (
	growthNumerator   = 3
	growthDenominator = 2
)

// alignUp rounds n up to a multiple of a (a power of two).
func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

// bufferSlot is the storage for one frame slot.
type bufferSlot struct {
	buffer hal.Buffer
	size   uint64

	// contents is the host-visible write region. Flush and Write upload
	// it to buffer through Queue.WriteBuffer.
	contents []byte

	// generation increments every time buffer is replaced.
	generation uint64
}

// DynamicBuffer is a GPU buffer replicated once per frame in flight.
//
// Each slot is written by exactly one frame at a time, so the CPU can fill
// slot i while the GPU still reads slot j. A slot only grows: when an
// allocation exceeds its size the slot's buffer is replaced by one 1.5x
// the requested size. Other slots are never touched by a slot's growth.
//
// DynamicBuffer is safe for concurrent use, though the renderer drives it
// from a single goroutine.
type DynamicBuffer struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	usage  gputypes.BufferUsage
	label  string

	// maxSize caps growth; zero means unlimited.
	maxSize uint64

	slots     []bufferSlot
	destroyed bool
}

// NewDynamicBuffer creates a buffer with framesInFlight slots of
// initialSize bytes each. CopyDst is always added to usage so slots can
// be uploaded through the queue.
func NewDynamicBuffer(
	device hal.Device,
	queue hal.Queue,
	initialSize uint64,
	framesInFlight int,
	usage gputypes.BufferUsage,
	label string,
) (*DynamicBuffer, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if initialSize == 0 {
		return nil, fmt.Errorf("%w: initial size is 0", ErrInvalidSize)
	}
	if framesInFlight <= 0 {
		return nil, fmt.Errorf("%w: %d frames in flight", ErrInvalidSlot, framesInFlight)
	}

	b := &DynamicBuffer{
		device: device,
		queue:  queue,
		usage:  usage | gputypes.BufferUsageCopyDst,
		label:  label,
		slots:  make([]bufferSlot, framesInFlight),
	}
	for i := range b.slots {
		if err := b.replaceLocked(i, initialSize); err != nil {
			b.Destroy()
			return nil, err
		}
	}
	return b, nil
}

// SetMaxSize caps slot growth at n bytes. Zero removes the cap.
func (b *DynamicBuffer) SetMaxSize(n uint64) {
	b.mu.Lock()
	b.maxSize = n
	b.mu.Unlock()
}

// MaxSize returns the growth cap, or zero when unlimited.
func (b *DynamicBuffer) MaxSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxSize
}

// Allocate returns the host-visible write region of slot, sized to size
// bytes.
//
// When size exceeds the slot's current capacity the slot's buffer is
// replaced by one of size*1.5 bytes (capped at the maximum size). The
// previous contents are not carried over. Each call hands out the whole
// slot from offset zero.
func (b *DynamicBuffer) Allocate(size uint64, slot int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(slot); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: allocate 0 bytes", ErrInvalidSize)
	}
	if b.maxSize > 0 && size > b.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrInvalidSize, size, b.maxSize)
	}

	s := &b.slots[slot]
	if size > s.size {
		old := s.size
		if err := b.replaceLocked(slot, grownSize(size, b.maxSize)); err != nil {
			return nil, err
		}
		slogger().Debug("dynamic buffer grown",
			"label", b.label, "slot", slot, "from", old, "to", b.slots[slot].size)
	}
	return b.slots[slot].contents[:size], nil
}

// grownSize returns the capacity a slot grows to for size bytes: 1.5x
// size, capped at maxSize when it is non-zero. Sizes whose growth would
// overflow are returned unchanged.
func grownSize(size, maxSize uint64) uint64 {
	newSize := size
	if size <= math.MaxUint64/growthNumerator {
		newSize = size * growthNumerator / growthDenominator
	}
	if maxSize > 0 && newSize > maxSize {
		newSize = maxSize
	}
	return newSize
}

// replaceLocked swaps the slot's buffer for a fresh one of size bytes.
func (b *DynamicBuffer) replaceLocked(slot int, size uint64) error {
	size = alignUp(size, copyBufferAlignment)
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("%s[%d]", b.label, slot),
		Size:  size,
		Usage: b.usage,
	})
	if err != nil {
		return fmt.Errorf("create %s slot %d (%d bytes): %w", b.label, slot, size, err)
	}

	s := &b.slots[slot]
	if s.buffer != nil {
		b.device.DestroyBuffer(s.buffer)
	}
	s.buffer = buf
	s.size = size
	s.contents = make([]byte, size)
	s.generation++
	return nil
}

func (b *DynamicBuffer) checkLocked(slot int) error {
	if b.destroyed {
		return ErrBufferDestroyed
	}
	if slot < 0 || slot >= len(b.slots) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidSlot, slot, len(b.slots))
	}
	return nil
}

// Flush uploads the first n bytes of slot's write region to the GPU.
func (b *DynamicBuffer) Flush(slot int, n uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(slot); err != nil {
		return err
	}
	s := &b.slots[slot]
	n = alignUp(n, copyBufferAlignment)
	if n > s.size {
		return fmt.Errorf("%w: flush %d bytes of %d", ErrInvalidSize, n, s.size)
	}
	if n == 0 {
		return nil
	}
	if err := b.queue.WriteBuffer(s.buffer, 0, s.contents[:n]); err != nil {
		return fmt.Errorf("flush %s slot %d: %w", b.label, slot, err)
	}
	return nil
}

// Write copies data into slot at offset and uploads it. The write must fit
// inside the slot's current capacity; Write never grows the buffer.
func (b *DynamicBuffer) Write(slot int, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(slot); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	s := &b.slots[slot]
	end := offset + uint64(len(data))
	if offset%copyBufferAlignment != 0 || end > s.size {
		return fmt.Errorf("%w: write [%d, %d) into %d-byte slot", ErrInvalidSize, offset, end, s.size)
	}
	copy(s.contents[offset:end], data)

	// Uploads are padded to the copy alignment with whatever the write
	// region already holds.
	upEnd := alignUp(end, copyBufferAlignment)
	if err := b.queue.WriteBuffer(s.buffer, offset, s.contents[offset:upEnd]); err != nil {
		return fmt.Errorf("write %s slot %d: %w", b.label, slot, err)
	}
	return nil
}

// Read maps slot's buffer and copies size bytes starting at offset.
// The buffer must be host-readable and the GPU must be done with it.
func (b *DynamicBuffer) Read(slot int, offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(slot); err != nil {
		return nil, err
	}
	s := &b.slots[slot]
	if size == 0 || offset+size > s.size {
		return nil, fmt.Errorf("%w: read [%d, %d) from %d-byte slot", ErrInvalidSize, offset, offset+size, s.size)
	}
	mapping, err := b.device.MapBuffer(s.buffer, offset, size)
	if err != nil {
		return nil, fmt.Errorf("map %s slot %d: %w", b.label, slot, err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := b.device.UnmapBuffer(s.buffer); err != nil {
		return nil, fmt.Errorf("unmap %s slot %d: %w", b.label, slot, err)
	}
	return out, nil
}

// Buffer returns slot's GPU buffer, or nil for an invalid slot.
func (b *DynamicBuffer) Buffer(slot int) hal.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.checkLocked(slot) != nil {
		return nil
	}
	return b.slots[slot].buffer
}

// Contents returns slot's whole write region, or nil for an invalid slot.
func (b *DynamicBuffer) Contents(slot int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.checkLocked(slot) != nil {
		return nil
	}
	return b.slots[slot].contents
}

// Size returns slot's capacity in bytes, or zero for an invalid slot.
func (b *DynamicBuffer) Size(slot int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.checkLocked(slot) != nil {
		return 0
	}
	return b.slots[slot].size
}

// Generation returns a counter that changes whenever slot's buffer is
// replaced. Bind groups referencing the buffer must be rebuilt when it
// changes.
func (b *DynamicBuffer) Generation(slot int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.checkLocked(slot) != nil {
		return 0
	}
	return b.slots[slot].generation
}

// Slots returns the number of frame slots.
func (b *DynamicBuffer) Slots() int { return len(b.slots) }

// Label returns the debug label.
func (b *DynamicBuffer) Label() string { return b.label }

// Usage returns the buffer usage flags.
func (b *DynamicBuffer) Usage() gputypes.BufferUsage { return b.usage }

// Reset does nothing. Allocate always hands out a slot from offset zero,
// so there is no per-slot cursor to rewind; sub-allocation within a frame
// is tracked by the renderer.
func (b *DynamicBuffer) Reset(_ int) {}

// ResetAll does nothing; see Reset.
func (b *DynamicBuffer) ResetAll() {}

// IsDestroyed reports whether Destroy has been called.
func (b *DynamicBuffer) IsDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Destroy releases every slot's GPU buffer.
//
// This method is idempotent - calling it multiple times is safe.
func (b *DynamicBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	for i := range b.slots {
		if b.slots[i].buffer != nil {
			b.device.DestroyBuffer(b.slots[i].buffer)
		}
		b.slots[i] = bufferSlot{}
	}
}

// String returns a short description, useful in logs.
func (b *DynamicBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	sizes := make([]uint64, len(b.slots))
	for i := range b.slots {
		sizes[i] = b.slots[i].size
	}
	return fmt.Sprintf("DynamicBuffer(%s, slots=%v)", b.label, sizes)
}
