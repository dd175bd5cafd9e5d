package gpu

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu/hal"
	"golang.org/x/sync/semaphore"
)

// submission is one submitted frame waiting for the GPU.
type submission struct {
	index     uint64
	slot      int
	submitted time.Time
}

// deferredRelease runs once the submission it was queued behind completes.
type deferredRelease struct {
	after uint64
	fn    func()
}

// frameSync bounds the number of frames in flight.
//
// Every frame holds one permit of a weighted semaphore from BeginFrame
// until its submission is observed complete through Queue.PollCompleted.
// Completions are retired in submission order and each releases its
// permit exactly once.
type frameSync struct {
	mu sync.Mutex

	sem          *semaphore.Weighted
	queue        hal.Queue
	pollInterval time.Duration

	pending   []submission
	deferred  []deferredRelease
	lastIndex uint64

	// recording is set between acquire and submitted or abandon. Releases
	// queued meanwhile wait for the recorded frame's own submission.
	recording bool
	staged    []func()

	// lastGPUTime holds float64 milliseconds as bits.
	lastGPUTime atomic.Uint64
	retired     atomic.Uint64
}

func newFrameSync(queue hal.Queue, framesInFlight int, pollInterval time.Duration) *frameSync {
	return &frameSync{
		sem:          semaphore.NewWeighted(int64(framesInFlight)),
		queue:        queue,
		pollInterval: pollInterval,
	}
}

// acquire takes a frame permit, retiring completed submissions while it
// waits. It returns ctx.Err() if ctx ends first. On success the frame is
// recording until submitted or abandon.
func (s *frameSync) acquire(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.recording = true
	s.mu.Unlock()
	return nil
}

func (s *frameSync) wait(ctx context.Context) error {
	if s.sem.TryAcquire(1) {
		return nil
	}
	s.retire()
	if s.sem.TryAcquire(1) {
		return nil
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.retire()
			if s.sem.TryAcquire(1) {
				return nil
			}
		}
	}
}

// abandon returns a permit whose frame never reached the queue. Releases
// staged by that frame fall back to waiting for earlier submissions.
func (s *frameSync) abandon() {
	s.mu.Lock()
	staged := s.staged
	s.staged = nil
	s.recording = false
	var now []func()
	if len(s.pending) == 0 {
		now = staged
	} else {
		for _, fn := range staged {
			s.deferred = append(s.deferred, deferredRelease{after: s.lastIndex, fn: fn})
		}
	}
	s.mu.Unlock()

	s.sem.Release(1)
	for _, fn := range now {
		fn()
	}
}

// submitted records a frame submission. Its permit is released when the
// queue reports index complete, together with every release staged while
// the frame was recorded.
func (s *frameSync) submitted(index uint64, slot int) {
	s.mu.Lock()
	s.pending = append(s.pending, submission{index: index, slot: slot, submitted: time.Now()})
	if index > s.lastIndex {
		s.lastIndex = index
	}
	for _, fn := range s.staged {
		s.deferred = append(s.deferred, deferredRelease{after: index, fn: fn})
	}
	s.staged = nil
	s.recording = false
	s.mu.Unlock()
}

// release queues fn to run once nothing submitted or being recorded can
// still reference the object it frees. While a frame is recording, fn
// waits for that frame's submission to complete. Otherwise it waits for
// every submission made so far, and with nothing in flight it runs
// immediately.
func (s *frameSync) release(fn func()) {
	s.mu.Lock()
	if s.recording {
		s.staged = append(s.staged, fn)
		s.mu.Unlock()
		return
	}
	if len(s.pending) == 0 {
		s.mu.Unlock()
		fn()
		return
	}
	s.deferred = append(s.deferred, deferredRelease{after: s.lastIndex, fn: fn})
	s.mu.Unlock()
}

// stagedCount returns the number of releases waiting for the frame being
// recorded.
func (s *frameSync) stagedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

// retire releases the permits of every completed submission and returns
// how many were retired.
func (s *frameSync) retire() int {
	done := s.queue.PollCompleted()
	return s.retireThrough(done)
}

func (s *frameSync) retireThrough(done uint64) int {
	s.mu.Lock()
	n := 0
	now := time.Now()
	for len(s.pending) > 0 && s.pending[0].index <= done {
		sub := s.pending[0]
		s.pending = s.pending[1:]
		ms := float64(now.Sub(sub.submitted)) / float64(time.Millisecond)
		s.lastGPUTime.Store(math.Float64bits(ms))
		s.sem.Release(1)
		n++
	}
	var run []func()
	kept := s.deferred[:0]
	for _, d := range s.deferred {
		if d.after <= done {
			run = append(run, d.fn)
		} else {
			kept = append(kept, d)
		}
	}
	s.deferred = kept
	s.mu.Unlock()

	for _, fn := range run {
		fn()
	}
	if n > 0 {
		s.retired.Add(uint64(n))
	}
	return n
}

// drain retires everything. The caller must have waited for the device
// to go idle.
func (s *frameSync) drain() {
	s.mu.Lock()
	last := s.lastIndex
	s.mu.Unlock()
	s.retireThrough(max(last, s.queue.PollCompleted()))
}

// inFlight returns the number of submitted, unretired frames.
func (s *frameSync) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// gpuTime returns the elapsed time in milliseconds between submission and
// observed completion of the most recently retired frame.
func (s *frameSync) gpuTime() float64 {
	return math.Float64frombits(s.lastGPUTime.Load())
}
