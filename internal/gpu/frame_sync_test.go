package gpu

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestFrameSync(t *testing.T, n int) (*frameSync, *gatedQueue) {
	t.Helper()
	_, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	gq := &gatedQueue{Queue: queue}
	return newFrameSync(gq, n, time.Millisecond), gq
}

// submitFrame acquires a permit and records a submission for it.
func submitFrame(t *testing.T, s *frameSync, q *gatedQueue, slot int) uint64 {
	t.Helper()
	if err := s.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	index, err := q.Submit(nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	s.submitted(index, slot)
	return index
}

func TestFrameSyncBoundsFramesInFlight(t *testing.T) {
	s, q := newTestFrameSync(t, 2)
	submitFrame(t, s, q, 0)
	submitFrame(t, s, q, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third acquire error = %v, want DeadlineExceeded", err)
	}
	if s.inFlight() != 2 {
		t.Errorf("inFlight() = %d, want 2", s.inFlight())
	}

	q.complete(1)
	if err := s.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after completion failed: %v", err)
	}
	if s.inFlight() != 1 {
		t.Errorf("inFlight() = %d after one retirement, want 1", s.inFlight())
	}
}

func TestFrameSyncRetiresInOrder(t *testing.T) {
	s, q := newTestFrameSync(t, 3)
	for slot := range 3 {
		submitFrame(t, s, q, slot)
	}

	q.complete(2)
	if n := s.retire(); n != 2 {
		t.Errorf("retire() = %d, want 2", n)
	}
	if n := s.retire(); n != 0 {
		t.Errorf("second retire() = %d, want 0", n)
	}
	if s.retired.Load() != 2 {
		t.Errorf("retired = %d, want 2", s.retired.Load())
	}
	if s.gpuTime() < 0 {
		t.Errorf("gpuTime() = %v, want >= 0", s.gpuTime())
	}

	// Exactly two permits came back.
	if !s.sem.TryAcquire(2) {
		t.Fatal("two permits not available after two retirements")
	}
	if s.sem.TryAcquire(1) {
		t.Error("more permits available than retired frames")
	}
}

func TestFrameSyncDeferredRelease(t *testing.T) {
	s, q := newTestFrameSync(t, 3)

	ran := 0
	s.release(func() { ran++ })
	if ran != 1 {
		t.Fatalf("release with nothing in flight ran %d times, want 1", ran)
	}

	submitFrame(t, s, q, 0)
	second := submitFrame(t, s, q, 1)
	s.release(func() { ran++ })
	if ran != 1 {
		t.Fatal("release ran while frames were in flight")
	}

	q.complete(second - 1)
	s.retire()
	if ran != 1 {
		t.Fatal("release ran before the last submission completed")
	}

	q.complete(second)
	s.retire()
	if ran != 2 {
		t.Errorf("release ran %d times after completion, want 2", ran)
	}
}

func TestFrameSyncReleaseWhileRecording(t *testing.T) {
	s, q := newTestFrameSync(t, 3)
	first := submitFrame(t, s, q, 0)

	if err := s.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	ran := false
	s.release(func() { ran = true })
	if s.stagedCount() != 1 {
		t.Fatalf("stagedCount() = %d, want 1", s.stagedCount())
	}

	q.complete(first)
	s.retire()
	if ran {
		t.Fatal("release of the recording frame ran before its submission")
	}

	second, err := q.Submit(nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	s.submitted(second, 1)
	s.retire()
	if ran {
		t.Fatal("release ran before its frame completed")
	}

	q.complete(second)
	s.retire()
	if !ran {
		t.Error("release did not run after its frame completed")
	}
}

func TestFrameSyncAbandonFlushesStaged(t *testing.T) {
	tests := []struct {
		name     string
		inFlight bool
		wantRun  bool
	}{
		{"idle queue runs immediately", false, true},
		{"waits for earlier frames", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, q := newTestFrameSync(t, 3)
			if tt.inFlight {
				submitFrame(t, s, q, 0)
			}
			if err := s.acquire(context.Background()); err != nil {
				t.Fatalf("acquire failed: %v", err)
			}
			ran := false
			s.release(func() { ran = true })
			s.abandon()

			if ran != tt.wantRun {
				t.Errorf("ran = %v after abandon, want %v", ran, tt.wantRun)
			}
			if s.stagedCount() != 0 {
				t.Errorf("stagedCount() = %d after abandon, want 0", s.stagedCount())
			}
			q.completeAll()
			s.retire()
			if !ran {
				t.Error("release never ran")
			}
		})
	}
}

func TestFrameSyncAbandon(t *testing.T) {
	s, _ := newTestFrameSync(t, 1)

	if err := s.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	s.abandon()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.acquire(ctx); err != nil {
		t.Fatalf("acquire after abandon failed: %v", err)
	}
}

func TestFrameSyncDrain(t *testing.T) {
	s, q := newTestFrameSync(t, 3)
	for slot := range 3 {
		submitFrame(t, s, q, slot)
	}
	ran := false
	s.release(func() { ran = true })

	s.drain()

	if s.inFlight() != 0 {
		t.Errorf("inFlight() = %d after drain, want 0", s.inFlight())
	}
	if !ran {
		t.Error("drain did not run deferred releases")
	}
}
