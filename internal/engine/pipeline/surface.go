package pipeline

import (
	"errors"
	"sync"
	"time"
)

// Static errors for the render surface.
var (
	// ErrFrameTimeout is returned when no decoded frame arrives within the
	// configured wait. This is a fatal stall, not a retry condition.
	ErrFrameTimeout = errors.New("timed out waiting for a decoded frame")
	// ErrSurfaceClosed is returned when publishing to a closed surface.
	ErrSurfaceClosed = errors.New("render surface is closed")
)

// Surface is the single-buffered hand-off between the decoder and the render
// stage. The decoder publishes one frame at a time and blocks until the
// render stage has consumed it; the render stage waits for the
// frame-available signal with a hard timeout. Single writer, single waiter.
type Surface struct {
	mu   sync.Mutex
	cond *sync.Cond

	frame  []byte
	ready  bool
	closed bool
	err    error
}

// NewSurface creates a surface holding frames of the given byte size.
func NewSurface(frameSize int) *Surface {
	s := &Surface{frame: make([]byte, frameSize)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish copies a decoded frame into the surface and signals the waiter.
// It blocks until the previous frame has been consumed, which is what keeps
// the pipeline processing frames strictly one at a time.
func (s *Surface) Publish(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.ready && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		if s.err != nil {
			return s.err
		}
		return ErrSurfaceClosed
	}

	copy(s.frame, frame)
	s.ready = true
	s.cond.Broadcast()
	return nil
}

// Await blocks until a new frame is available, the surface is closed, or the
// timeout elapses. It returns the frame buffer and true when a frame is
// ready; the buffer stays valid until Release is called. A false return with
// nil error means the stream ended cleanly.
func (s *Surface) Await(timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	wake := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer wake.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.ready && !s.closed {
		if !time.Now().Before(deadline) {
			return nil, false, ErrFrameTimeout
		}
		s.cond.Wait()
	}

	if s.ready {
		return s.frame, true, nil
	}
	return nil, false, s.err
}

// Release marks the current frame consumed, unblocking the publisher.
func (s *Surface) Release() {
	s.mu.Lock()
	s.ready = false
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Close ends the stream. A nil error means clean end-of-stream; a non-nil
// error is surfaced to the waiter. Close is idempotent and the first error
// wins.
func (s *Surface) Close(err error) {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.err = err
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}
